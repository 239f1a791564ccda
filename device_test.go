package cmdq

import (
	"errors"
	"testing"

	"github.com/gogpu/cmdq/backend/sim"
)

// newTestDevice creates a device pinned to the sim backend and tears it
// down with the test. The returned adapter exposes the simulation's
// inspection hooks.
func newTestDevice(t *testing.T, debug bool) (*Device, *sim.Adapter) {
	t.Helper()
	d, err := CreateDevice(DeviceConfig{
		ShaderFormats: ShaderFormatWGSL | ShaderFormatSPIRV,
		Debug:         debug,
		Backend:       "sim",
	})
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	t.Cleanup(d.Destroy)
	return d, d.adapter.(*sim.Adapter)
}

func TestCreateDevice_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  DeviceConfig
		want error
	}{
		{"no shader formats", DeviceConfig{Backend: "sim"}, ErrInvalidDescriptor},
		{"frames below minimum", DeviceConfig{ShaderFormats: ShaderFormatWGSL, FramesInFlight: -1, Backend: "sim"}, ErrInvalidDescriptor},
		{"frames above maximum", DeviceConfig{ShaderFormats: ShaderFormatWGSL, FramesInFlight: 4, Backend: "sim"}, ErrInvalidDescriptor},
		{"unknown backend", DeviceConfig{ShaderFormats: ShaderFormatWGSL, Backend: "metalsim"}, ErrNoSuitableBackend},
		{"backend rejects formats", DeviceConfig{ShaderFormats: ShaderFormatDXIL, Backend: "sim"}, ErrNoSuitableBackend},
		{"no backend matches", DeviceConfig{ShaderFormats: ShaderFormatDXIL}, ErrNoSuitableBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := CreateDevice(tt.cfg)
			if d != nil {
				d.Destroy()
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateDevice(%+v) error = %v, want %v", tt.cfg, err, tt.want)
			}
		})
	}
}

func TestCreateDevice_NegotiatesFormats(t *testing.T) {
	// Sim accepts WGSL and SPIRV; requesting WGSL|DXIL must negotiate
	// down to the intersection.
	d, err := CreateDevice(DeviceConfig{
		ShaderFormats: ShaderFormatWGSL | ShaderFormatDXIL,
		Backend:       "sim",
	})
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	defer d.Destroy()

	if got := d.ShaderFormats(); got != ShaderFormatWGSL {
		t.Errorf("ShaderFormats() = 0x%x, want 0x%x", uint32(got), uint32(ShaderFormatWGSL))
	}
}

func TestCreateDevice_DefaultFramesInFlight(t *testing.T) {
	d, _ := newTestDevice(t, false)
	if got := d.AllowedFramesInFlight(); got != DefaultFramesInFlight {
		t.Errorf("AllowedFramesInFlight() = %d, want %d", got, DefaultFramesInFlight)
	}
}

func TestDevice_CapabilityQueries(t *testing.T) {
	d, _ := newTestDevice(t, false)

	if got := d.BackendName(); got != "sim" {
		t.Errorf("BackendName() = %q, want %q", got, "sim")
	}
	if d.DeviceName() == "" {
		t.Error("DeviceName() is empty")
	}
	if d.DriverName() == "" {
		t.Error("DriverName() is empty")
	}
	if !d.SupportsTextureFormat(TextureFormatRGBA8Unorm, TextureUsageSampler) {
		t.Error("RGBA8 sampler unsupported")
	}
	if !d.SupportsSampleCount(TextureFormatRGBA8Unorm, 4) {
		t.Error("4x MSAA unsupported")
	}
	if d.SupportsSampleCount(TextureFormatRGBA8Unorm, 8) {
		t.Error("sim reports 8x MSAA as supported")
	}
}

func TestSetAllowedFramesInFlight(t *testing.T) {
	d, _ := newTestDevice(t, false)

	for _, n := range []int{0, -1, MaxFramesInFlight + 1} {
		if err := d.SetAllowedFramesInFlight(n); !errors.Is(err, ErrInvalidDescriptor) {
			t.Errorf("SetAllowedFramesInFlight(%d) = %v, want ErrInvalidDescriptor", n, err)
		}
	}

	if err := d.SetAllowedFramesInFlight(1); err != nil {
		t.Fatalf("SetAllowedFramesInFlight(1): %v", err)
	}
	if got := d.AllowedFramesInFlight(); got != 1 {
		t.Errorf("AllowedFramesInFlight() = %d, want 1", got)
	}
}

func TestDevice_DestroyIdempotent(t *testing.T) {
	d, err := CreateDevice(DeviceConfig{ShaderFormats: ShaderFormatWGSL, Backend: "sim"})
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	d.Destroy()
	d.Destroy() // second call must be a no-op

	if _, err := d.AcquireCommandBuffer(); !errors.Is(err, ErrDeviceDestroyed) {
		t.Errorf("AcquireCommandBuffer after Destroy = %v, want ErrDeviceDestroyed", err)
	}
}

func TestCreateBuffer_Validation(t *testing.T) {
	d, _ := newTestDevice(t, false)

	tests := []struct {
		name string
		desc *BufferDescriptor
		want error
	}{
		{"nil descriptor", nil, ErrInvalidDescriptor},
		{"zero size", &BufferDescriptor{Usage: BufferUsageVertex}, ErrInvalidDescriptor},
		{"no usage", &BufferDescriptor{Size: 64}, ErrInvalidDescriptor},
		{"vertex and index", &BufferDescriptor{Size: 64, Usage: BufferUsageVertex | BufferUsageIndex}, ErrUnsupportedUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.CreateBuffer(tt.desc); !errors.Is(err, tt.want) {
				t.Errorf("CreateBuffer() error = %v, want %v", err, tt.want)
			}
		})
	}

	b, err := d.CreateBuffer(&BufferDescriptor{Label: "verts", Size: 256, Usage: BufferUsageVertex})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer b.Release()
	if b.Size() != 256 || b.Usage() != BufferUsageVertex || b.Label() != "verts" {
		t.Errorf("buffer = %v, want 256 bytes VERTEX %q", b, "verts")
	}
	if got := b.InstanceCount(); got != 1 {
		t.Errorf("InstanceCount() = %d, want 1", got)
	}
}

func TestCreateTexture_Validation(t *testing.T) {
	d, _ := newTestDevice(t, false)

	tests := []struct {
		name string
		desc *TextureDescriptor
		want error
	}{
		{"nil descriptor", nil, ErrInvalidDescriptor},
		{"zero width", &TextureDescriptor{Height: 4, Format: TextureFormatRGBA8Unorm, Usage: TextureUsageSampler}, ErrInvalidDescriptor},
		{"no usage", &TextureDescriptor{Width: 4, Height: 4, Format: TextureFormatRGBA8Unorm}, ErrInvalidDescriptor},
		{"sampler and storage read", &TextureDescriptor{
			Width: 4, Height: 4, Format: TextureFormatRGBA8Unorm,
			Usage: TextureUsageSampler | TextureUsageGraphicsStorageRead,
		}, ErrUnsupportedUsage},
		{"color and depth target", &TextureDescriptor{
			Width: 4, Height: 4, Format: TextureFormatRGBA8Unorm,
			Usage: TextureUsageColorTarget | TextureUsageDepthStencilTarget,
		}, ErrUnsupportedUsage},
		{"depth format as color target", &TextureDescriptor{
			Width: 4, Height: 4, Format: TextureFormatDepth32Float,
			Usage: TextureUsageColorTarget,
		}, ErrUnsupportedFormat},
		{"color format as depth target", &TextureDescriptor{
			Width: 4, Height: 4, Format: TextureFormatRGBA8Unorm,
			Usage: TextureUsageDepthStencilTarget,
		}, ErrUnsupportedFormat},
		{"bad sample count", &TextureDescriptor{
			Width: 4, Height: 4, Format: TextureFormatRGBA8Unorm,
			Usage: TextureUsageColorTarget, SampleCount: 3,
		}, ErrUnsupportedSampleCount},
		{"unsupported sample count", &TextureDescriptor{
			Width: 4, Height: 4, Format: TextureFormatRGBA8Unorm,
			Usage: TextureUsageColorTarget, SampleCount: 8,
		}, ErrUnsupportedSampleCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.CreateTexture(tt.desc); !errors.Is(err, tt.want) {
				t.Errorf("CreateTexture() error = %v, want %v", err, tt.want)
			}
		})
	}

	tex, err := d.CreateTexture(&TextureDescriptor{
		Width: 16, Height: 8,
		Format: TextureFormatRGBA8Unorm,
		Usage:  TextureUsageSampler,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer tex.Release()
	if tex.Width() != 16 || tex.Height() != 8 || tex.Format() != TextureFormatRGBA8Unorm {
		t.Errorf("texture = %v, want 16x8 RGBA8", tex)
	}
}

func TestCreateTransferBuffer_ZeroSize(t *testing.T) {
	d, _ := newTestDevice(t, false)
	if _, err := d.CreateTransferBuffer(0, TransferBufferUpload); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("CreateTransferBuffer(0) = %v, want ErrInvalidDescriptor", err)
	}
}

func TestCreateShader_Validation(t *testing.T) {
	d, _ := newTestDevice(t, false)

	tests := []struct {
		name string
		desc *ShaderDescriptor
		want error
	}{
		{"nil descriptor", nil, ErrInvalidDescriptor},
		{"empty code", &ShaderDescriptor{Format: ShaderFormatWGSL}, ErrInvalidDescriptor},
		{"no format", &ShaderDescriptor{Code: []byte("x")}, ErrInvalidDescriptor},
		{"two formats", &ShaderDescriptor{Code: []byte("x"), Format: ShaderFormatWGSL | ShaderFormatSPIRV}, ErrInvalidDescriptor},
		{"format outside negotiated set", &ShaderDescriptor{Code: []byte("x"), Format: ShaderFormatMSL}, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.CreateShader(tt.desc); !errors.Is(err, tt.want) {
				t.Errorf("CreateShader() error = %v, want %v", err, tt.want)
			}
		})
	}

	sh, err := d.CreateShader(&ShaderDescriptor{
		Label:  "fullscreen",
		Code:   []byte("@vertex fn main() {}"),
		Format: ShaderFormatWGSL,
		Stage:  ShaderStageVertex,
	})
	if err != nil {
		t.Fatalf("CreateShader: %v", err)
	}
	defer sh.Release()
	if sh.Stage() != ShaderStageVertex || sh.Label() != "fullscreen" {
		t.Errorf("shader stage/label = %v/%q", sh.Stage(), sh.Label())
	}
}

func TestCreateGraphicsPipeline_Validation(t *testing.T) {
	d, _ := newTestDevice(t, false)

	vs, err := d.CreateShader(&ShaderDescriptor{Code: []byte("vs"), Format: ShaderFormatWGSL, Stage: ShaderStageVertex})
	if err != nil {
		t.Fatalf("CreateShader: %v", err)
	}
	defer vs.Release()

	if _, err := d.CreateGraphicsPipeline(nil); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("nil descriptor = %v, want ErrInvalidDescriptor", err)
	}
	if _, err := d.CreateGraphicsPipeline(&GraphicsPipelineDescriptor{
		ColorTargets: []ColorTargetDescription{{Format: TextureFormatRGBA8Unorm}},
	}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("missing vertex shader = %v, want ErrInvalidDescriptor", err)
	}
	if _, err := d.CreateGraphicsPipeline(&GraphicsPipelineDescriptor{
		VertexShader: vs.id,
	}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("no targets = %v, want ErrInvalidDescriptor", err)
	}
	if _, err := d.CreateGraphicsPipeline(&GraphicsPipelineDescriptor{
		VertexShader: vs.id,
		ColorTargets: make([]ColorTargetDescription, MaxColorTargets+1),
	}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("too many targets = %v, want ErrInvalidDescriptor", err)
	}

	p, err := d.CreateGraphicsPipeline(&GraphicsPipelineDescriptor{
		Label:        "blit",
		VertexShader: vs.id,
		ColorTargets: []ColorTargetDescription{{Format: TextureFormatRGBA8Unorm}},
	})
	if err != nil {
		t.Fatalf("CreateGraphicsPipeline: %v", err)
	}
	defer p.Release()
	if p.Label() != "blit" {
		t.Errorf("Label() = %q, want %q", p.Label(), "blit")
	}
}

func TestCreateComputePipeline_Validation(t *testing.T) {
	d, _ := newTestDevice(t, false)

	if _, err := d.CreateComputePipeline(nil); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("nil descriptor = %v, want ErrInvalidDescriptor", err)
	}
	if _, err := d.CreateComputePipeline(&ComputePipelineDescriptor{}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("missing shader = %v, want ErrInvalidDescriptor", err)
	}

	cs, err := d.CreateShader(&ShaderDescriptor{Code: []byte("cs"), Format: ShaderFormatWGSL, Stage: ShaderStageCompute})
	if err != nil {
		t.Fatalf("CreateShader: %v", err)
	}
	defer cs.Release()

	p, err := d.CreateComputePipeline(&ComputePipelineDescriptor{Shader: cs.id})
	if err != nil {
		t.Fatalf("CreateComputePipeline: %v", err)
	}
	p.Release()
}

func TestDeviceStats_CountsCompletedWork(t *testing.T) {
	d, _ := newTestDevice(t, false)

	up, err := d.CreateTransferBuffer(16, TransferBufferUpload)
	if err != nil {
		t.Fatalf("CreateTransferBuffer: %v", err)
	}
	defer up.Release()
	buf, err := d.CreateBuffer(&BufferDescriptor{Size: 16, Usage: BufferUsageVertex})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer buf.Release()

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	cp, err := cb.BeginCopyPass()
	if err != nil {
		t.Fatalf("BeginCopyPass: %v", err)
	}
	if err := cp.UploadToBuffer(up, 0, buf, 0, 16, false); err != nil {
		t.Fatalf("UploadToBuffer: %v", err)
	}
	if err := cp.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := cb.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	d.WaitForIdle()

	stats := d.Stats()
	if stats.Submissions != 1 {
		t.Errorf("Submissions = %d, want 1", stats.Submissions)
	}
	if stats.Copies != 1 {
		t.Errorf("Copies = %d, want 1", stats.Copies)
	}
}
