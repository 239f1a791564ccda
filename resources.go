package cmdq

import (
	"fmt"

	"github.com/gogpu/cmdq/gpucore"
)

// Buffer is a logical GPU buffer handle.
//
// A Buffer wraps a ring of physical backing allocations (cycle
// instances); write operations that pass cycle=true may transparently
// rotate the ring so that pending GPU reads of older data are never
// overwritten. See the package documentation for the cycling contract.
type Buffer struct {
	device *Device
	slot   *resourceSlot

	size  uint64
	usage BufferUsage
	label string
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the buffer's usage flags.
func (b *Buffer) Usage() BufferUsage { return b.usage }

// Label returns the buffer's debug label.
func (b *Buffer) Label() string { return b.label }

// InstanceCount returns the number of physical backing allocations the
// buffer currently owns. It starts at 1 and grows with cycling
// pressure; it never shrinks.
func (b *Buffer) InstanceCount() int { return b.slot.instanceCount() }

// Release returns the buffer to the device. The physical instances are
// destroyed once no pending submission references them.
func (b *Buffer) Release() {
	if b == nil || b.device == nil {
		return
	}
	b.device.releaseSlot(b.slot)
	b.device = nil
}

// Texture is a logical GPU texture handle.
//
// Like Buffer, a Texture wraps a ring of physical cycle instances.
// Cycling a texture always rotates the entire texture even when only a
// sub-region is written: after a rotation the whole texture's prior
// contents are undefined through this handle.
type Texture struct {
	device *Device
	slot   *resourceSlot

	width, height uint32
	layers        uint32
	mipLevels     uint32
	samples       uint32
	format        TextureFormat
	usage         TextureUsage
	label         string

	// swapchain textures are single-use, write-only, and scoped to the
	// command buffer that acquired them.
	swapchain bool
}

// Width returns the level-0 width in texels.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the level-0 height in texels.
func (t *Texture) Height() uint32 { return t.height }

// Format returns the texel format.
func (t *Texture) Format() TextureFormat { return t.format }

// Usage returns the texture's usage flags.
func (t *Texture) Usage() TextureUsage { return t.usage }

// Label returns the texture's debug label.
func (t *Texture) Label() string { return t.label }

// InstanceCount returns the number of physical backing allocations.
func (t *Texture) InstanceCount() int { return t.slot.instanceCount() }

// Release returns the texture to the device. Swapchain textures are
// owned by their window's swapchain and must not be released; calling
// Release on one is a no-op.
func (t *Texture) Release() {
	if t == nil || t.device == nil || t.swapchain {
		return
	}
	t.device.releaseSlot(t.slot)
	t.device = nil
}

// TransferBuffer is a CPU-visible staging buffer used by copy passes
// to move data between the application and GPU resources. It cycles
// like any other resource slot.
type TransferBuffer struct {
	device *Device
	slot   *resourceSlot

	size  uint64
	usage TransferBufferUsage
}

// Size returns the transfer buffer size in bytes.
func (t *TransferBuffer) Size() uint64 { return t.size }

// Usage returns the transfer direction.
func (t *TransferBuffer) Usage() TransferBufferUsage { return t.usage }

// Map returns a CPU-addressable window over the current instance's
// bytes. When cycle is set and the current instance is still
// referenced by pending work, the slot rotates first, exactly as a
// write operation would.
//
// The window stays valid until Unmap. Mapping a download buffer before
// its producing submission's fence has signaled reads undefined data.
func (t *TransferBuffer) Map(cycle bool) ([]byte, error) {
	inst, _, hazard, err := t.slot.writeTarget(cycle)
	if err != nil {
		return nil, err
	}
	if hazard {
		t.device.noteHazard(t.slot, "mapped without cycling while bound")
	}
	return t.device.adapter.MapTransferBuffer(gpucore.TransferBufferID(inst.buffer))
}

// Unmap invalidates the window returned by Map.
func (t *TransferBuffer) Unmap() {
	inst := t.slot.currentInstance()
	t.device.adapter.UnmapTransferBuffer(gpucore.TransferBufferID(inst.buffer))
}

// Release returns the transfer buffer to the device.
func (t *TransferBuffer) Release() {
	if t == nil || t.device == nil {
		return
	}
	t.device.releaseSlot(t.slot)
	t.device = nil
}

// Sampler is an immutable texture sampler.
type Sampler struct {
	device *Device
	id     gpucore.SamplerID
	label  string
}

// Label returns the sampler's debug label.
func (s *Sampler) Label() string { return s.label }

// Release destroys the sampler.
func (s *Sampler) Release() {
	if s == nil || s.device == nil {
		return
	}
	s.device.adapter.DestroySampler(s.id)
	s.device = nil
}

// Shader is a compiled shader module.
type Shader struct {
	device *Device
	id     gpucore.ShaderID
	stage  ShaderStage
	label  string
}

// ID returns the handle pipeline descriptors reference the shader by.
func (s *Shader) ID() ShaderID { return s.id }

// Stage returns the pipeline stage the shader targets.
func (s *Shader) Stage() ShaderStage { return s.stage }

// Label returns the shader's debug label.
func (s *Shader) Label() string { return s.label }

// Release destroys the shader module. Pipelines created from it are
// unaffected.
func (s *Shader) Release() {
	if s == nil || s.device == nil {
		return
	}
	s.device.adapter.DestroyShader(s.id)
	s.device = nil
}

// GraphicsPipeline is a compiled graphics pipeline state object.
type GraphicsPipeline struct {
	device *Device
	id     gpucore.PipelineID
	desc   GraphicsPipelineDescriptor
}

// Label returns the pipeline's debug label.
func (p *GraphicsPipeline) Label() string { return p.desc.Label }

// Release destroys the pipeline.
func (p *GraphicsPipeline) Release() {
	if p == nil || p.device == nil {
		return
	}
	p.device.adapter.DestroyPipeline(p.id)
	p.device = nil
}

// ComputePipeline is a compiled compute pipeline state object.
type ComputePipeline struct {
	device *Device
	id     gpucore.PipelineID
	desc   ComputePipelineDescriptor
}

// Label returns the pipeline's debug label.
func (p *ComputePipeline) Label() string { return p.desc.Label }

// Release destroys the pipeline.
func (p *ComputePipeline) Release() {
	if p == nil || p.device == nil {
		return
	}
	p.device.adapter.DestroyPipeline(p.id)
	p.device = nil
}

// String returns a short description for debugging.
func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%q, %d bytes, %d instances)", b.label, b.size, b.InstanceCount())
}

// String returns a short description for debugging.
func (t *Texture) String() string {
	return fmt.Sprintf("Texture(%q, %dx%d, %d instances)", t.label, t.width, t.height, t.InstanceCount())
}
