package cmdq

import (
	"errors"
	"testing"
)

func testGraphicsPipeline(t *testing.T, d *Device) *GraphicsPipeline {
	t.Helper()
	vs, err := d.CreateShader(&ShaderDescriptor{Code: []byte("vs"), Format: ShaderFormatWGSL, Stage: ShaderStageVertex})
	if err != nil {
		t.Fatalf("CreateShader: %v", err)
	}
	t.Cleanup(vs.Release)
	p, err := d.CreateGraphicsPipeline(&GraphicsPipelineDescriptor{
		VertexShader: vs.id,
		Topology:     PrimitiveTopologyTriangleList,
		ColorTargets: []ColorTargetDescription{{Format: TextureFormatRGBA8Unorm}},
	})
	if err != nil {
		t.Fatalf("CreateGraphicsPipeline: %v", err)
	}
	t.Cleanup(p.Release)
	return p
}

func TestBeginRenderPass_Validation(t *testing.T) {
	d, _ := newTestDevice(t, false)
	sampled, err := d.CreateTexture(&TextureDescriptor{
		Width: 8, Height: 8, Format: TextureFormatRGBA8Unorm, Usage: TextureUsageSampler,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer sampled.Release()
	depth, err := d.CreateTexture(&TextureDescriptor{
		Width: 8, Height: 8, Format: TextureFormatDepth32Float, Usage: TextureUsageDepthStencilTarget,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer depth.Release()

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	defer cb.Cancel()

	tests := []struct {
		name   string
		colors []ColorTargetBinding
		ds     *DepthStencilBinding
		want   error
	}{
		{"no targets", nil, nil, ErrInvalidDescriptor},
		{"too many targets", make([]ColorTargetBinding, MaxColorTargets+1), nil, ErrInvalidDescriptor},
		{"nil color texture", []ColorTargetBinding{{}}, nil, ErrInvalidDescriptor},
		{"color target lacks usage", []ColorTargetBinding{{Texture: sampled}}, nil, ErrUnsupportedUsage},
		{"nil depth texture", nil, &DepthStencilBinding{}, ErrInvalidDescriptor},
		{"depth target lacks usage", nil, &DepthStencilBinding{Texture: sampled}, ErrUnsupportedUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := cb.BeginRenderPass(tt.colors, tt.ds); !errors.Is(err, tt.want) {
				t.Errorf("BeginRenderPass() error = %v, want %v", err, tt.want)
			}
		})
	}

	// Depth-only passes are valid.
	rp, err := cb.BeginRenderPass(nil, &DepthStencilBinding{
		Texture: depth, LoadOp: LoadOpClear, StoreOp: StoreOpStore, ClearDepth: 1,
	})
	if err != nil {
		t.Fatalf("depth-only BeginRenderPass: %v", err)
	}
	if err := rp.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
}

func TestRenderPass_DrawRequiresPipeline(t *testing.T) {
	d, adapter := newTestDevice(t, false)
	tex := testColorTarget(t, d)
	pipe := testGraphicsPipeline(t, d)

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	rp, err := cb.BeginRenderPass([]ColorTargetBinding{{Texture: tex, LoadOp: LoadOpClear}}, nil)
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}

	if err := rp.Draw(3, 1, 0, 0); !errors.Is(err, ErrNoPipeline) {
		t.Errorf("Draw without pipeline = %v, want ErrNoPipeline", err)
	}
	if err := rp.DrawIndexed(3, 1, 0, 0, 0); !errors.Is(err, ErrNoPipeline) {
		t.Errorf("DrawIndexed without pipeline = %v, want ErrNoPipeline", err)
	}

	if err := rp.BindGraphicsPipeline(nil); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("BindGraphicsPipeline(nil) = %v, want ErrInvalidDescriptor", err)
	}
	if err := rp.BindGraphicsPipeline(pipe); err != nil {
		t.Fatalf("BindGraphicsPipeline: %v", err)
	}
	if err := rp.Draw(3, 1, 0, 0); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if err := rp.DrawIndexed(6, 2, 0, -1, 0); err != nil {
		t.Fatalf("DrawIndexed: %v", err)
	}
	if err := rp.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := cb.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	d.WaitForIdle()

	draws, _ := adapter.Counts()
	if draws != 2 {
		t.Errorf("executed draws = %d, want 2", draws)
	}
	if got := d.Stats().Draws; got != 2 {
		t.Errorf("Stats().Draws = %d, want 2", got)
	}
}

func TestRenderPass_BindingValidation(t *testing.T) {
	d, _ := newTestDevice(t, false)
	tex := testColorTarget(t, d)

	vbuf, err := d.CreateBuffer(&BufferDescriptor{Size: 64, Usage: BufferUsageVertex})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer vbuf.Release()
	plain, err := d.CreateBuffer(&BufferDescriptor{Size: 64, Usage: BufferUsageUniform})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer plain.Release()
	sampled, err := d.CreateTexture(&TextureDescriptor{
		Width: 4, Height: 4, Format: TextureFormatRGBA8Unorm, Usage: TextureUsageSampler,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer sampled.Release()
	smp, err := d.CreateSampler(&SamplerDescriptor{MinFilter: FilterModeLinear, MagFilter: FilterModeLinear})
	if err != nil {
		t.Fatalf("CreateSampler: %v", err)
	}
	defer smp.Release()

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	defer cb.Cancel()
	rp, err := cb.BeginRenderPass([]ColorTargetBinding{{Texture: tex, LoadOp: LoadOpClear}}, nil)
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}

	if err := rp.BindVertexBuffers(0, []VertexBufferBinding{{Buffer: plain}}); !errors.Is(err, ErrUnsupportedUsage) {
		t.Errorf("vertex bind of non-VERTEX buffer = %v, want ErrUnsupportedUsage", err)
	}
	if err := rp.BindVertexBuffers(0, []VertexBufferBinding{{}}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("vertex bind of nil buffer = %v, want ErrInvalidDescriptor", err)
	}
	if err := rp.BindVertexBuffers(0, []VertexBufferBinding{{Buffer: vbuf}}); err != nil {
		t.Errorf("BindVertexBuffers: %v", err)
	}
	if err := rp.BindVertexBuffers(0, []VertexBufferBinding{{Buffer: vbuf, Offset: 65}}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("vertex bind past buffer end = %v, want ErrInvalidDescriptor", err)
	}

	ibuf, err := d.CreateBuffer(&BufferDescriptor{Size: 64, Usage: BufferUsageIndex})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer ibuf.Release()
	if err := rp.BindIndexBuffer(vbuf, 0, IndexFormatUint16); !errors.Is(err, ErrUnsupportedUsage) {
		t.Errorf("index bind of non-INDEX buffer = %v, want ErrUnsupportedUsage", err)
	}
	if err := rp.BindIndexBuffer(nil, 0, IndexFormatUint16); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("index bind of nil buffer = %v, want ErrInvalidDescriptor", err)
	}
	if err := rp.BindIndexBuffer(ibuf, 65, IndexFormatUint16); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("index bind past buffer end = %v, want ErrInvalidDescriptor", err)
	}
	if err := rp.BindIndexBuffer(ibuf, 0, IndexFormatUint16); err != nil {
		t.Errorf("BindIndexBuffer: %v", err)
	}

	if err := rp.BindFragmentSamplers(0, []SamplerBinding{{Texture: tex, Sampler: smp}}); !errors.Is(err, ErrUnsupportedUsage) {
		t.Errorf("sampler bind of non-SAMPLER texture = %v, want ErrUnsupportedUsage", err)
	}
	if err := rp.BindFragmentSamplers(0, []SamplerBinding{{Texture: sampled}}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("incomplete sampler binding = %v, want ErrInvalidDescriptor", err)
	}
	if err := rp.BindFragmentSamplers(0, []SamplerBinding{{Texture: sampled, Sampler: smp}}); err != nil {
		t.Errorf("BindFragmentSamplers: %v", err)
	}

	if err := rp.SetViewport(Viewport{W: 4, H: 4, MaxDepth: 1}); err != nil {
		t.Errorf("SetViewport: %v", err)
	}
	if err := rp.SetScissor(Scissor{W: 4, H: 4}); err != nil {
		t.Errorf("SetScissor: %v", err)
	}
	if err := rp.SetBlendConstant(Color{R: 1}); err != nil {
		t.Errorf("SetBlendConstant: %v", err)
	}
	if err := rp.SetStencilReference(0x80); err != nil {
		t.Errorf("SetStencilReference: %v", err)
	}

	if err := rp.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := rp.SetViewport(Viewport{}); !errors.Is(err, ErrPassEnded) {
		t.Errorf("SetViewport after End = %v, want ErrPassEnded", err)
	}
}

func TestRenderPass_DrawIndirect(t *testing.T) {
	d, adapter := newTestDevice(t, false)
	tex := testColorTarget(t, d)
	pipe := testGraphicsPipeline(t, d)

	// Two packed argument records.
	var records []byte
	records = DrawIndirectArgs{VertexCount: 3, InstanceCount: 1}.Encode(records)
	records = DrawIndirectArgs{VertexCount: 6, InstanceCount: 2, FirstVertex: 3}.Encode(records)

	up, err := d.CreateTransferBuffer(uint64(len(records)), TransferBufferUpload)
	if err != nil {
		t.Fatalf("CreateTransferBuffer: %v", err)
	}
	defer up.Release()
	stageBytes(t, up, records)

	args, err := d.CreateBuffer(&BufferDescriptor{Size: uint64(len(records)), Usage: BufferUsageIndirect})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer args.Release()
	nonIndirect, err := d.CreateBuffer(&BufferDescriptor{Size: 64, Usage: BufferUsageVertex})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer nonIndirect.Release()

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	cp, err := cb.BeginCopyPass()
	if err != nil {
		t.Fatalf("BeginCopyPass: %v", err)
	}
	if err := cp.UploadToBuffer(up, 0, args, 0, uint64(len(records)), false); err != nil {
		t.Fatalf("UploadToBuffer: %v", err)
	}
	if err := cp.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	rp, err := cb.BeginRenderPass([]ColorTargetBinding{{Texture: tex, LoadOp: LoadOpClear}}, nil)
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	if err := rp.BindGraphicsPipeline(pipe); err != nil {
		t.Fatalf("BindGraphicsPipeline: %v", err)
	}

	if err := rp.DrawIndirect(nonIndirect, 0, 1); !errors.Is(err, ErrUnsupportedUsage) {
		t.Errorf("indirect draw from non-INDIRECT buffer = %v, want ErrUnsupportedUsage", err)
	}
	if err := rp.DrawIndirect(args, 2, 1); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("misaligned indirect offset = %v, want ErrInvalidDescriptor", err)
	}
	if err := rp.DrawIndirect(args, 0, 3); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("indirect records past buffer end = %v, want ErrInvalidDescriptor", err)
	}

	if err := rp.DrawIndirect(args, 0, 2); err != nil {
		t.Fatalf("DrawIndirect: %v", err)
	}
	if err := rp.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := cb.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	d.WaitForIdle()

	draws, _ := adapter.Counts()
	if draws != 2 {
		t.Errorf("executed draws = %d, want 2 (one per record)", draws)
	}
}
