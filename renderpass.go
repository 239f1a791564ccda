package cmdq

import (
	"fmt"

	"github.com/gogpu/cmdq/gpucore"
)

// ColorTargetBinding describes one color attachment of a render pass.
type ColorTargetBinding struct {
	Texture  *Texture
	MipLevel uint32
	Layer    uint32

	LoadOp     LoadOp
	StoreOp    StoreOp
	ClearColor Color

	// ResolveTexture receives the multisample resolve when StoreOp is
	// StoreOpResolve or StoreOpResolveAndStore.
	ResolveTexture *Texture

	// Cycle rotates the texture's backing if it is still referenced by
	// in-flight work. Ignored when LoadOp is LoadOpLoad, since loading
	// requires the existing contents.
	Cycle        bool
	CycleResolve bool
}

// DepthStencilBinding describes the depth-stencil attachment of a
// render pass.
type DepthStencilBinding struct {
	Texture *Texture

	LoadOp         LoadOp
	StoreOp        StoreOp
	StencilLoadOp  LoadOp
	StencilStoreOp StoreOp

	ClearDepth   float32
	ClearStencil uint8

	Cycle bool
}

// VertexBufferBinding pairs a vertex buffer with a byte offset.
type VertexBufferBinding struct {
	Buffer *Buffer
	Offset uint64
}

// SamplerBinding pairs a sampled texture with a sampler.
type SamplerBinding struct {
	Texture *Texture
	Sampler *Sampler
}

// RenderPass records draw commands against a fixed set of targets.
//
// Beginning a pass resets all render state: no pipeline is bound, the
// viewport and scissor cover the full target, blend constant and
// stencil reference are zero. Pushed uniform data is command-buffer
// state and survives pass boundaries.
type RenderPass struct {
	cb            *CommandBuffer
	width, height uint32
	ended         bool
	pipeline      bool
}

// BeginRenderPass opens a render pass on the command buffer. At least
// one target is required and at most MaxColorTargets color targets are
// allowed. Fails with ErrPassOpen while another pass is open.
func (cb *CommandBuffer) BeginRenderPass(colors []ColorTargetBinding, depthStencil *DepthStencilBinding) (*RenderPass, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.require(); err != nil {
		return nil, err
	}
	if cb.pass != passNone {
		return nil, ErrPassOpen
	}
	if len(colors) > MaxColorTargets {
		return nil, fmt.Errorf("%w: %d color targets (max %d)", ErrInvalidDescriptor, len(colors), MaxColorTargets)
	}
	if len(colors) == 0 && depthStencil == nil {
		return nil, fmt.Errorf("%w: render pass needs at least one target", ErrInvalidDescriptor)
	}

	cmd := &gpucore.BeginRenderPassCommand{}
	var width, height uint32
	for i, c := range colors {
		if c.Texture == nil {
			return nil, fmt.Errorf("%w: color target %d has no texture", ErrInvalidDescriptor, i)
		}
		if c.Texture.usage&TextureUsageColorTarget == 0 {
			return nil, fmt.Errorf("%w: color target %d lacks COLOR_TARGET usage", ErrUnsupportedUsage, i)
		}
		id, err := cb.renderTarget(c.Texture, c.Cycle && c.LoadOp != LoadOpLoad, "render to color target")
		if err != nil {
			return nil, err
		}
		info := gpucore.ColorTargetInfo{
			Texture:    id,
			MipLevel:   c.MipLevel,
			Layer:      c.Layer,
			LoadOp:     c.LoadOp,
			StoreOp:    c.StoreOp,
			ClearColor: c.ClearColor,
		}
		if c.ResolveTexture != nil {
			rid, err := cb.renderTarget(c.ResolveTexture, c.CycleResolve, "resolve to texture")
			if err != nil {
				return nil, err
			}
			info.ResolveTexture = rid
		}
		cmd.Colors = append(cmd.Colors, info)
		if i == 0 {
			width = max(c.Texture.width>>c.MipLevel, 1)
			height = max(c.Texture.height>>c.MipLevel, 1)
		}
	}
	if depthStencil != nil {
		t := depthStencil.Texture
		if t == nil {
			return nil, fmt.Errorf("%w: depth-stencil binding has no texture", ErrInvalidDescriptor)
		}
		if t.usage&TextureUsageDepthStencilTarget == 0 {
			return nil, fmt.Errorf("%w: depth-stencil target lacks DEPTH_STENCIL_TARGET usage", ErrUnsupportedUsage)
		}
		id, err := cb.renderTarget(t, depthStencil.Cycle && depthStencil.LoadOp != LoadOpLoad, "render to depth-stencil target")
		if err != nil {
			return nil, err
		}
		cmd.DepthStencil = &gpucore.DepthStencilTargetInfo{
			Texture:        id,
			LoadOp:         depthStencil.LoadOp,
			StoreOp:        depthStencil.StoreOp,
			StencilLoadOp:  depthStencil.StencilLoadOp,
			StencilStoreOp: depthStencil.StencilStoreOp,
			ClearDepth:     depthStencil.ClearDepth,
			ClearStencil:   depthStencil.ClearStencil,
		}
		if width == 0 {
			width, height = t.width, t.height
		}
	}

	cb.pass = passRender
	cb.record(cmd)
	cb.record(&gpucore.SetViewportCommand{Viewport: Viewport{W: float32(width), H: float32(height), MaxDepth: 1}})
	cb.record(&gpucore.SetScissorCommand{Scissor: Scissor{W: width, H: height}})
	return &RenderPass{cb: cb, width: width, height: height}, nil
}

// renderTarget resolves a texture used as a pass attachment. Swapchain
// textures are per-frame and never cycle; everything else goes through
// the write path.
func (cb *CommandBuffer) renderTarget(t *Texture, cycle bool, op string) (gpucore.TextureID, error) {
	if t.swapchain {
		id, err := cb.readResource(t.slot)
		return gpucore.TextureID(id), err
	}
	id, err := cb.writeResource(t.slot, cycle, op)
	return gpucore.TextureID(id), err
}

// check is the common precondition for every render pass operation.
// Caller must hold rp.cb.mu.
func (rp *RenderPass) check() error {
	if rp.ended {
		return ErrPassEnded
	}
	return rp.cb.require()
}

// BindGraphicsPipeline makes pipeline current for subsequent draws.
func (rp *RenderPass) BindGraphicsPipeline(p *GraphicsPipeline) error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.check(); err != nil {
		return err
	}
	if p == nil || p.device == nil {
		return fmt.Errorf("%w: nil or released pipeline", ErrInvalidDescriptor)
	}
	rp.pipeline = true
	rp.cb.record(&gpucore.BindGraphicsPipelineCommand{Pipeline: p.id})
	return nil
}

// BindVertexBuffers binds vertex buffers to consecutive input slots
// starting at firstSlot.
func (rp *RenderPass) BindVertexBuffers(firstSlot uint32, bindings []VertexBufferBinding) error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.check(); err != nil {
		return err
	}
	cmd := &gpucore.BindVertexBuffersCommand{FirstSlot: firstSlot}
	for i, b := range bindings {
		if b.Buffer == nil {
			return fmt.Errorf("%w: vertex binding %d has no buffer", ErrInvalidDescriptor, i)
		}
		if b.Buffer.usage&BufferUsageVertex == 0 {
			return fmt.Errorf("%w: vertex binding %d lacks VERTEX usage", ErrUnsupportedUsage, i)
		}
		if b.Offset > b.Buffer.size {
			return fmt.Errorf("%w: vertex binding %d offset %d past buffer size %d",
				ErrInvalidDescriptor, i, b.Offset, b.Buffer.size)
		}
		id, err := rp.cb.readResource(b.Buffer.slot)
		if err != nil {
			return err
		}
		cmd.Buffers = append(cmd.Buffers, gpucore.BufferRegion{
			Buffer: gpucore.BufferID(id),
			Offset: b.Offset,
			Size:   b.Buffer.size - b.Offset,
		})
	}
	rp.cb.record(cmd)
	return nil
}

// BindIndexBuffer binds the index buffer for indexed draws.
func (rp *RenderPass) BindIndexBuffer(b *Buffer, offset uint64, format IndexFormat) error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.check(); err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("%w: nil index buffer", ErrInvalidDescriptor)
	}
	if b.usage&BufferUsageIndex == 0 {
		return fmt.Errorf("%w: index buffer lacks INDEX usage", ErrUnsupportedUsage)
	}
	if offset > b.size {
		return fmt.Errorf("%w: index buffer offset %d past buffer size %d",
			ErrInvalidDescriptor, offset, b.size)
	}
	id, err := rp.cb.readResource(b.slot)
	if err != nil {
		return err
	}
	rp.cb.record(&gpucore.BindIndexBufferCommand{
		Buffer: gpucore.BufferRegion{Buffer: gpucore.BufferID(id), Offset: offset, Size: b.size - offset},
		Format: format,
	})
	return nil
}

// BindFragmentSamplers binds texture-sampler pairs to consecutive
// fragment sampler slots starting at firstSlot.
func (rp *RenderPass) BindFragmentSamplers(firstSlot uint32, bindings []SamplerBinding) error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.check(); err != nil {
		return err
	}
	cmd := &gpucore.BindFragmentSamplersCommand{FirstSlot: firstSlot}
	for i, b := range bindings {
		if b.Texture == nil || b.Sampler == nil {
			return fmt.Errorf("%w: sampler binding %d is incomplete", ErrInvalidDescriptor, i)
		}
		if b.Texture.usage&TextureUsageSampler == 0 {
			return fmt.Errorf("%w: sampler binding %d lacks SAMPLER usage", ErrUnsupportedUsage, i)
		}
		id, err := rp.cb.readResource(b.Texture.slot)
		if err != nil {
			return err
		}
		cmd.Bindings = append(cmd.Bindings, gpucore.TextureSamplerBinding{
			Texture: gpucore.TextureID(id),
			Sampler: b.Sampler.id,
		})
	}
	rp.cb.record(cmd)
	return nil
}

// SetViewport overrides the full-target viewport set at pass begin.
func (rp *RenderPass) SetViewport(v Viewport) error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.check(); err != nil {
		return err
	}
	rp.cb.record(&gpucore.SetViewportCommand{Viewport: v})
	return nil
}

// SetScissor overrides the full-target scissor set at pass begin.
func (rp *RenderPass) SetScissor(s Scissor) error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.check(); err != nil {
		return err
	}
	rp.cb.record(&gpucore.SetScissorCommand{Scissor: s})
	return nil
}

// SetBlendConstant sets the constant color used by constant blend
// factors.
func (rp *RenderPass) SetBlendConstant(c Color) error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.check(); err != nil {
		return err
	}
	rp.cb.record(&gpucore.SetBlendConstantCommand{Color: c})
	return nil
}

// SetStencilReference sets the stencil reference value.
func (rp *RenderPass) SetStencilReference(ref uint32) error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.check(); err != nil {
		return err
	}
	rp.cb.record(&gpucore.SetStencilReferenceCommand{Reference: ref})
	return nil
}

// Draw issues a non-indexed draw. Fails with ErrNoPipeline until a
// graphics pipeline has been bound in this pass.
func (rp *RenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.drawCheck(); err != nil {
		return err
	}
	rp.cb.record(&gpucore.DrawCommand{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
	return nil
}

// DrawIndexed issues an indexed draw using the bound index buffer.
func (rp *RenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.drawCheck(); err != nil {
		return err
	}
	rp.cb.record(&gpucore.DrawIndexedCommand{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		VertexOffset:  vertexOffset,
		FirstInstance: firstInstance,
	})
	return nil
}

// DrawIndirect issues drawCount draws whose arguments live in buf as
// packed DrawIndirectArgs records starting at offset. The offset must
// be 4-byte aligned and the buffer must carry INDIRECT usage.
func (rp *RenderPass) DrawIndirect(buf *Buffer, offset uint64, drawCount uint32) error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.drawCheck(); err != nil {
		return err
	}
	id, err := rp.indirectArgs(buf, offset, uint64(drawCount)*DrawIndirectArgsSize)
	if err != nil {
		return err
	}
	rp.cb.record(&gpucore.DrawIndirectCommand{Buffer: id, Offset: offset, DrawCount: drawCount})
	return nil
}

// DrawIndexedIndirect issues drawCount indexed draws whose arguments
// live in buf as packed DrawIndexedIndirectArgs records.
func (rp *RenderPass) DrawIndexedIndirect(buf *Buffer, offset uint64, drawCount uint32) error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.drawCheck(); err != nil {
		return err
	}
	id, err := rp.indirectArgs(buf, offset, uint64(drawCount)*DrawIndexedIndirectArgsSize)
	if err != nil {
		return err
	}
	rp.cb.record(&gpucore.DrawIndexedIndirectCommand{Buffer: id, Offset: offset, DrawCount: drawCount})
	return nil
}

func (rp *RenderPass) drawCheck() error {
	if err := rp.check(); err != nil {
		return err
	}
	if !rp.pipeline {
		return ErrNoPipeline
	}
	return nil
}

// indirectArgs validates an indirect argument buffer reference.
// Caller must hold rp.cb.mu.
func (rp *RenderPass) indirectArgs(buf *Buffer, offset, span uint64) (gpucore.BufferID, error) {
	if buf == nil {
		return 0, fmt.Errorf("%w: nil indirect buffer", ErrInvalidDescriptor)
	}
	if buf.usage&BufferUsageIndirect == 0 {
		return 0, fmt.Errorf("%w: indirect buffer lacks INDIRECT usage", ErrUnsupportedUsage)
	}
	if offset%4 != 0 {
		return 0, fmt.Errorf("%w: indirect offset %d not 4-byte aligned", ErrInvalidDescriptor, offset)
	}
	if offset+span > buf.size {
		return 0, fmt.Errorf("%w: indirect records [%d,%d) exceed buffer size %d",
			ErrInvalidDescriptor, offset, offset+span, buf.size)
	}
	id, err := rp.cb.readResource(buf.slot)
	if err != nil {
		return 0, err
	}
	return gpucore.BufferID(id), nil
}

// End closes the pass. The handle is dead afterwards; the command
// buffer may begin another pass or be submitted.
func (rp *RenderPass) End() error {
	rp.cb.mu.Lock()
	defer rp.cb.mu.Unlock()
	if err := rp.check(); err != nil {
		return err
	}
	rp.ended = true
	rp.cb.pass = passNone
	rp.cb.record(&gpucore.EndPassCommand{})
	return nil
}
