// Package sim provides a CPU-memory simulation backend.
//
// The sim backend executes submissions against plain byte slices:
// copy commands move real bytes, draws and dispatches are counted,
// presents are counted. It exists so the submission pipeline, the
// cycling protocol, and application plumbing can be exercised without
// GPU hardware, and it is the backend the package tests run against.
//
// Importing the package registers it:
//
//	import _ "github.com/gogpu/cmdq/backend/sim"
package sim

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/cmdq/backend"
	"github.com/gogpu/cmdq/gpucore"
)

func init() {
	backend.Register(backend.BackendSim, func() gpucore.Adapter { return New() })
}

// Adapter is the simulation backend. Safe for concurrent use; Execute
// is additionally serialized by the device's submission goroutine.
type Adapter struct {
	mu     sync.Mutex
	logger *slog.Logger
	open   bool
	nextID uint64

	// Latency is slept per executed submission, approximating GPU
	// execution time. Useful in tests that need work to stay in
	// flight.
	Latency time.Duration

	buffers   map[gpucore.BufferID][]byte
	transfers map[gpucore.TransferBufferID][]byte
	textures  map[gpucore.TextureID]*simTexture
	samplers  map[gpucore.SamplerID]gpucore.SamplerDescriptor
	shaders   map[gpucore.ShaderID]gpucore.ShaderStage
	pipelines map[gpucore.PipelineID]bool // true = graphics

	executed []uint64 // submission seqs in execution order
	presents int
	draws    int
	dispatch int
}

// New returns an unopened sim adapter.
func New() *Adapter {
	return &Adapter{
		buffers:   make(map[gpucore.BufferID][]byte),
		transfers: make(map[gpucore.TransferBufferID][]byte),
		textures:  make(map[gpucore.TextureID]*simTexture),
		samplers:  make(map[gpucore.SamplerID]gpucore.SamplerDescriptor),
		shaders:   make(map[gpucore.ShaderID]gpucore.ShaderStage),
		pipelines: make(map[gpucore.PipelineID]bool),
	}
}

type simTexture struct {
	desc    gpucore.TextureDescriptor
	surface bool
	levels  map[levelKey][]byte
}

type levelKey struct {
	mip, layer uint32
}

// Name implements gpucore.Adapter.
func (a *Adapter) Name() string { return backend.BackendSim }

// ShaderFormats implements gpucore.Adapter. The sim backend accepts
// WGSL and SPIR-V; it never executes shaders, it only stores them.
func (a *Adapter) ShaderFormats() gpucore.ShaderFormat {
	return gpucore.ShaderFormatWGSL | gpucore.ShaderFormatSPIRV
}

// DeviceName implements gpucore.Adapter.
func (a *Adapter) DeviceName() string { return "cmdq simulation device" }

// DriverName implements gpucore.Adapter.
func (a *Adapter) DriverName() string { return "sim" }

// SupportsTextureFormat implements gpucore.Adapter.
func (a *Adapter) SupportsTextureFormat(format gpucore.TextureFormat, usage gpucore.TextureUsage) bool {
	return format.BytesPerTexel() > 0
}

// SupportsSampleCount implements gpucore.Adapter. The sim backend caps
// multisampling at 4x so callers have an unsupported count to test
// against.
func (a *Adapter) SupportsSampleCount(format gpucore.TextureFormat, samples uint32) bool {
	return samples == 1 || samples == 2 || samples == 4
}

// SetLogger allows the device to propagate its logger.
func (a *Adapter) SetLogger(l *slog.Logger) {
	a.mu.Lock()
	a.logger = l
	a.mu.Unlock()
}

// Open implements gpucore.Adapter.
func (a *Adapter) Open() error {
	a.mu.Lock()
	a.open = true
	a.mu.Unlock()
	return nil
}

// Close implements gpucore.Adapter.
func (a *Adapter) Close() {
	a.mu.Lock()
	a.open = false
	a.mu.Unlock()
}

func (a *Adapter) id() uint64 {
	a.nextID++
	return a.nextID
}

// CreateBuffer implements gpucore.Adapter.
func (a *Adapter) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.BufferID(a.id())
	a.buffers[id] = make([]byte, desc.Size)
	return id, nil
}

// DestroyBuffer implements gpucore.Adapter.
func (a *Adapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	delete(a.buffers, id)
	a.mu.Unlock()
}

// CreateTexture implements gpucore.Adapter.
func (a *Adapter) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.TextureID(a.id())
	a.textures[id] = &simTexture{desc: *desc, levels: make(map[levelKey][]byte)}
	return id, nil
}

// DestroyTexture implements gpucore.Adapter.
func (a *Adapter) DestroyTexture(id gpucore.TextureID) {
	a.mu.Lock()
	delete(a.textures, id)
	a.mu.Unlock()
}

// CreateTransferBuffer implements gpucore.Adapter.
func (a *Adapter) CreateTransferBuffer(size uint64, usage gpucore.TransferBufferUsage) (gpucore.TransferBufferID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.TransferBufferID(a.id())
	a.transfers[id] = make([]byte, size)
	return id, nil
}

// DestroyTransferBuffer implements gpucore.Adapter.
func (a *Adapter) DestroyTransferBuffer(id gpucore.TransferBufferID) {
	a.mu.Lock()
	delete(a.transfers, id)
	a.mu.Unlock()
}

// MapTransferBuffer implements gpucore.Adapter. The returned slice is
// the backing store itself; sim transfers are always CPU-visible.
func (a *Adapter) MapTransferBuffer(id gpucore.TransferBufferID) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.transfers[id]
	if !ok {
		return nil, fmt.Errorf("sim: unknown transfer buffer %d", id)
	}
	return data, nil
}

// UnmapTransferBuffer implements gpucore.Adapter. A no-op: sim
// mappings are direct.
func (a *Adapter) UnmapTransferBuffer(id gpucore.TransferBufferID) {}

// CreateSampler implements gpucore.Adapter.
func (a *Adapter) CreateSampler(desc *gpucore.SamplerDescriptor) (gpucore.SamplerID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.SamplerID(a.id())
	a.samplers[id] = *desc
	return id, nil
}

// DestroySampler implements gpucore.Adapter.
func (a *Adapter) DestroySampler(id gpucore.SamplerID) {
	a.mu.Lock()
	delete(a.samplers, id)
	a.mu.Unlock()
}

// CreateShader implements gpucore.Adapter. Code is accepted as-is; the
// sim backend never runs it.
func (a *Adapter) CreateShader(desc *gpucore.ShaderDescriptor) (gpucore.ShaderID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.ShaderID(a.id())
	a.shaders[id] = desc.Stage
	return id, nil
}

// DestroyShader implements gpucore.Adapter.
func (a *Adapter) DestroyShader(id gpucore.ShaderID) {
	a.mu.Lock()
	delete(a.shaders, id)
	a.mu.Unlock()
}

// CreateGraphicsPipeline implements gpucore.Adapter.
func (a *Adapter) CreateGraphicsPipeline(desc *gpucore.GraphicsPipelineDescriptor) (gpucore.PipelineID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.PipelineID(a.id())
	a.pipelines[id] = true
	return id, nil
}

// CreateComputePipeline implements gpucore.Adapter.
func (a *Adapter) CreateComputePipeline(desc *gpucore.ComputePipelineDescriptor) (gpucore.PipelineID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.PipelineID(a.id())
	a.pipelines[id] = false
	return id, nil
}

// DestroyPipeline implements gpucore.Adapter.
func (a *Adapter) DestroyPipeline(id gpucore.PipelineID) {
	a.mu.Lock()
	delete(a.pipelines, id)
	a.mu.Unlock()
}

// CreateSurfaceTexture implements gpucore.Adapter.
func (a *Adapter) CreateSurfaceTexture(width, height uint32, format gpucore.TextureFormat) (gpucore.TextureID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.TextureID(a.id())
	a.textures[id] = &simTexture{
		desc: gpucore.TextureDescriptor{
			Width: width, Height: height,
			LayerCountOrDepth: 1, MipLevelCount: 1, SampleCount: 1,
			Format: format,
			Usage:  gpucore.TextureUsageColorTarget,
		},
		surface: true,
		levels:  make(map[levelKey][]byte),
	}
	return id, nil
}

// Present implements gpucore.Adapter.
func (a *Adapter) Present(id gpucore.TextureID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.textures[id]
	if !ok || !t.surface {
		return fmt.Errorf("sim: present of non-surface texture %d", id)
	}
	a.presents++
	return nil
}

// === Test inspection ===

// BufferData returns a copy of a buffer's current bytes.
func (a *Adapter) BufferData(id gpucore.BufferID) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]byte, len(a.buffers[id]))
	copy(out, a.buffers[id])
	return out
}

// TextureData returns a copy of one mip/layer of a texture, or nil if
// it was never written.
func (a *Adapter) TextureData(id gpucore.TextureID, mip, layer uint32) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.textures[id]
	if !ok {
		return nil
	}
	data := t.levels[levelKey{mip, layer}]
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// ExecutedSeqs returns the submission sequence numbers in the order
// they executed.
func (a *Adapter) ExecutedSeqs() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]uint64, len(a.executed))
	copy(out, a.executed)
	return out
}

// Presents returns how many textures have been presented.
func (a *Adapter) Presents() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.presents
}

// Counts returns the number of executed draws and dispatches.
func (a *Adapter) Counts() (draws, dispatches int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.draws, a.dispatch
}
