package native

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmdq/gpucore"
)

// fenceTimeout bounds how long Execute waits for the GPU.
const fenceTimeout = 5 * time.Second

// rowAlignment is the hal requirement for bytes-per-row in
// buffer-texture copies.
const rowAlignment = 256

// pendingRead is a staged readback resolved after the fence signals.
type pendingRead struct {
	staging hal.Buffer
	size    uint64

	// Row de-padding. rows == 0 means a plain byte copy.
	rows       uint32
	tightRow   uint32
	alignedRow uint32

	// Exactly one of dst and dstTexture is set.
	dst        []byte
	dstTexture *writeTexels
}

// writeTexels describes a deferred texture write fed from readback
// bytes. Used for texture-to-texture copies, which hal has no direct
// encoder command for.
type writeTexels struct {
	tex    *nativeTexture
	region gpucore.TextureRegion
}

// execState carries replay state across one submission's commands.
type execState struct {
	encoder hal.CommandEncoder
	rp      hal.RenderPassEncoder
	cp      hal.ComputePassEncoder

	pipeline *nativePipeline // bound graphics pipeline
	cpipe    *nativePipeline // bound compute pipeline

	uniforms      [3][gpucore.MaxUniformSlots][]byte
	uniformsDirty bool

	// Compute pass storage bindings, writables from pass begin,
	// read-onlys from BindComputeStorage.
	rwBuffers []gpucore.BufferID
	roBuffers []gpucore.BufferID
	bindDirty bool

	transient  []hal.Buffer
	bindGroups []hal.BindGroup
	reads      []pendingRead
}

// Execute implements gpucore.Adapter. The submission is replayed into
// one hal command encoder, submitted with a fence, and waited on
// before returning, so download effects are complete when the caller's
// fence signals.
//
// Uploads go through queue writes, which land before the encoded
// passes run. A submission that reads a resource and then uploads over
// it would observe the new bytes; the layer above orders uploads in
// copy passes ahead of consuming passes, so this does not arise in
// practice.
func (a *Adapter) Execute(sub *gpucore.Submission) error {
	a.mu.Lock()
	open := a.open
	a.mu.Unlock()
	if !open {
		return fmt.Errorf("native: adapter not open")
	}

	label := sub.Label
	if label == "" {
		label = fmt.Sprintf("submission_%d", sub.Seq)
	}
	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}

	st := &execState{encoder: encoder}
	defer a.releaseTransients(st)

	for i, cmd := range sub.Commands {
		if err := a.exec(st, cmd); err != nil {
			encoder.DiscardEncoding()
			return fmt.Errorf("native: command %d (%s) in submission %d: %w", i, cmd.Type(), sub.Seq, err)
		}
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	fence, err := a.device.CreateFence()
	if err != nil {
		return fmt.Errorf("native: create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("native: submit: %w", err)
	}
	ok, err := a.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("native: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("native: GPU timeout after %v in submission %d", fenceTimeout, sub.Seq)
	}

	return a.resolveReads(st)
}

// resolveReads copies staged readback bytes into transfer shadows and
// deferred texture writes. Called after the submission's fence.
func (a *Adapter) resolveReads(st *execState) error {
	for i := range st.reads {
		r := &st.reads[i]
		raw := make([]byte, r.size)
		if err := a.queue.ReadBuffer(r.staging, 0, raw); err != nil {
			return fmt.Errorf("native: readback: %w", err)
		}
		tight := raw
		if r.rows > 0 && r.alignedRow != r.tightRow {
			tight = make([]byte, uint64(r.tightRow)*uint64(r.rows))
			for row := uint32(0); row < r.rows; row++ {
				src := raw[uint64(row)*uint64(r.alignedRow):]
				copy(tight[uint64(row)*uint64(r.tightRow):], src[:r.tightRow])
			}
		}
		if r.dstTexture != nil {
			a.writeTextureRegion(r.dstTexture.tex, r.dstTexture.region, tight, r.tightRow)
			continue
		}
		copy(r.dst, tight)
	}
	return nil
}

func (a *Adapter) releaseTransients(st *execState) {
	for _, bg := range st.bindGroups {
		a.device.DestroyBindGroup(bg)
	}
	for _, b := range st.transient {
		a.device.DestroyBuffer(b)
	}
	for i := range st.reads {
		a.device.DestroyBuffer(st.reads[i].staging)
	}
}

func (a *Adapter) buffer(id gpucore.BufferID) (*nativeBuffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	nb, ok := a.buffers[id]
	if !ok {
		return nil, fmt.Errorf("unknown buffer %d", id)
	}
	return nb, nil
}

func (a *Adapter) texture(id gpucore.TextureID) (*nativeTexture, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	nt, ok := a.textures[id]
	if !ok {
		return nil, fmt.Errorf("unknown texture %d", id)
	}
	return nt, nil
}

func (a *Adapter) transfer(id gpucore.TransferBufferID) (*nativeTransfer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	nt, ok := a.transfers[id]
	if !ok {
		return nil, fmt.Errorf("unknown transfer buffer %d", id)
	}
	return nt, nil
}

func (a *Adapter) pipelineByID(id gpucore.PipelineID) (*nativePipeline, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pipelines[id]
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %d", id)
	}
	return p, nil
}

//nolint:gocyclo // one arm per command type
func (a *Adapter) exec(st *execState, cmd gpucore.Command) error {
	switch c := cmd.(type) {
	case gpucore.BeginRenderPassCommand:
		return a.beginRenderPass(st, c)

	case gpucore.BeginComputePassCommand:
		st.cp = st.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "compute"})
		st.rwBuffers = c.StorageBuffers
		st.roBuffers = nil
		st.cpipe = nil
		st.bindDirty = true
		if len(c.StorageTextures) > 0 {
			a.log().Debug("native: storage texture bindings skipped")
		}
		return nil

	case gpucore.BeginCopyPassCommand:
		// Copy commands encode directly; no hal pass object exists.
		return nil

	case gpucore.EndPassCommand:
		if st.rp != nil {
			st.rp.End()
			st.rp = nil
			st.pipeline = nil
		}
		if st.cp != nil {
			st.cp.End()
			st.cp = nil
			st.cpipe = nil
		}
		return nil

	case gpucore.BindGraphicsPipelineCommand:
		p, err := a.pipelineByID(c.Pipeline)
		if err != nil {
			return err
		}
		st.pipeline = p
		st.uniformsDirty = true
		st.rp.SetPipeline(p.render)
		return nil

	case gpucore.BindVertexBuffersCommand:
		for i, region := range c.Buffers {
			nb, err := a.buffer(region.Buffer)
			if err != nil {
				return err
			}
			st.rp.SetVertexBuffer(c.FirstSlot+uint32(i), nb.handle, region.Offset)
		}
		return nil

	case gpucore.BindIndexBufferCommand:
		nb, err := a.buffer(c.Buffer.Buffer)
		if err != nil {
			return err
		}
		st.rp.SetIndexBuffer(nb.handle, mapIndexFormat(c.Format), c.Buffer.Offset)
		return nil

	case gpucore.BindFragmentSamplersCommand:
		a.log().Debug("native: fragment sampler bindings skipped", "count", len(c.Bindings))
		return nil

	case gpucore.SetViewportCommand, gpucore.SetScissorCommand,
		gpucore.SetBlendConstantCommand, gpucore.SetStencilReferenceCommand:
		// hal's render pass encoder carries no dynamic state setters;
		// passes run with pipeline defaults and full-target viewport.
		a.log().Debug("native: dynamic state command skipped", "type", cmd.Type().String())
		return nil

	case gpucore.DrawCommand:
		if err := a.flushGraphicsBindings(st); err != nil {
			return err
		}
		st.rp.Draw(c.VertexCount, c.InstanceCount, c.FirstVertex, c.FirstInstance)
		return nil

	case gpucore.DrawIndexedCommand:
		if err := a.flushGraphicsBindings(st); err != nil {
			return err
		}
		st.rp.DrawIndexed(c.IndexCount, c.InstanceCount, c.FirstIndex, c.VertexOffset, c.FirstInstance)
		return nil

	case gpucore.DrawIndirectCommand:
		return a.drawIndirect(st, c)

	case gpucore.DrawIndexedIndirectCommand:
		return a.drawIndexedIndirect(st, c)

	case gpucore.BindComputePipelineCommand:
		p, err := a.pipelineByID(c.Pipeline)
		if err != nil {
			return err
		}
		st.cpipe = p
		st.bindDirty = true
		st.cp.SetPipeline(p.compute)
		return nil

	case gpucore.BindComputeStorageCommand:
		need := int(c.FirstSlot) + len(c.Buffers)
		if need > len(st.roBuffers) {
			grown := make([]gpucore.BufferID, need)
			copy(grown, st.roBuffers)
			st.roBuffers = grown
		}
		copy(st.roBuffers[c.FirstSlot:], c.Buffers)
		st.bindDirty = true
		if len(c.Textures) > 0 {
			a.log().Debug("native: storage texture bindings skipped")
		}
		return nil

	case gpucore.DispatchCommand:
		if err := a.flushComputeBindings(st); err != nil {
			return err
		}
		st.cp.Dispatch(c.GroupsX, c.GroupsY, c.GroupsZ)
		return nil

	case gpucore.DispatchIndirectCommand:
		nb, err := a.buffer(c.Buffer)
		if err != nil {
			return err
		}
		args, err := decodeShadow(nb, c.Offset, gpucore.DispatchIndirectArgsSize)
		if err != nil {
			return err
		}
		rec, _ := gpucore.DecodeDispatchIndirectArgs(args)
		if err := a.flushComputeBindings(st); err != nil {
			return err
		}
		st.cp.Dispatch(rec.GroupsX, rec.GroupsY, rec.GroupsZ)
		return nil

	case gpucore.UploadToBufferCommand:
		return a.uploadToBuffer(c)

	case gpucore.UploadToTextureCommand:
		return a.uploadToTexture(c)

	case gpucore.DownloadFromBufferCommand:
		return a.downloadFromBuffer(st, c)

	case gpucore.DownloadFromTextureCommand:
		return a.downloadFromTexture(st, c)

	case gpucore.CopyBufferToBufferCommand:
		return a.copyBufferToBuffer(st, c)

	case gpucore.CopyTextureToTextureCommand:
		return a.copyTextureToTexture(st, c)

	case gpucore.PushUniformDataCommand:
		st.uniforms[c.Stage][c.Slot] = c.Data
		st.uniformsDirty = true
		st.bindDirty = true
		return nil

	case gpucore.InsertDebugLabelCommand, gpucore.PushDebugGroupCommand, gpucore.PopDebugGroupCommand:
		// No hal marker API; annotations are dropped.
		return nil

	default:
		return fmt.Errorf("unhandled command type %s", cmd.Type())
	}
}

func mapLoadOp(op gpucore.LoadOp) gputypes.LoadOp {
	if op == gpucore.LoadOpLoad {
		return gputypes.LoadOpLoad
	}
	// DontCare collapses to Clear; hal offers no undefined-contents op.
	return gputypes.LoadOpClear
}

func mapStoreOp(op gpucore.StoreOp) gputypes.StoreOp {
	switch op {
	case gpucore.StoreOpDontCare, gpucore.StoreOpResolve:
		return gputypes.StoreOpDiscard
	default:
		return gputypes.StoreOpStore
	}
}

func (a *Adapter) beginRenderPass(st *execState, c gpucore.BeginRenderPassCommand) error {
	desc := &hal.RenderPassDescriptor{Label: "render"}
	for _, ct := range c.Colors {
		nt, err := a.texture(ct.Texture)
		if err != nil {
			return err
		}
		if ct.MipLevel > 0 || ct.Layer > 0 {
			a.log().Warn("native: sub-resource render targets use the full view",
				"mip", ct.MipLevel, "layer", ct.Layer)
		}
		att := hal.RenderPassColorAttachment{
			View:    nt.view,
			LoadOp:  mapLoadOp(ct.LoadOp),
			StoreOp: mapStoreOp(ct.StoreOp),
			ClearValue: gputypes.Color{
				R: ct.ClearColor.R,
				G: ct.ClearColor.G,
				B: ct.ClearColor.B,
				A: ct.ClearColor.A,
			},
		}
		if ct.ResolveTexture != gpucore.InvalidID {
			rt, err := a.texture(ct.ResolveTexture)
			if err != nil {
				return err
			}
			att.ResolveTarget = rt.view
		}
		desc.ColorAttachments = append(desc.ColorAttachments, att)
	}
	if c.DepthStencil != nil {
		ds := c.DepthStencil
		nt, err := a.texture(ds.Texture)
		if err != nil {
			return err
		}
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              nt.view,
			DepthLoadOp:       mapLoadOp(ds.LoadOp),
			DepthStoreOp:      mapStoreOp(ds.StoreOp),
			DepthClearValue:   ds.ClearDepth,
			StencilLoadOp:     mapLoadOp(ds.StencilLoadOp),
			StencilStoreOp:    mapStoreOp(ds.StencilStoreOp),
			StencilClearValue: uint32(ds.ClearStencil),
		}
	}
	st.rp = st.encoder.BeginRenderPass(desc)
	st.pipeline = nil
	st.uniformsDirty = true
	return nil
}

// flushGraphicsBindings materializes pushed uniform bytes as a
// transient bind group before a draw. Slots the pipeline does not
// declare are ignored.
func (a *Adapter) flushGraphicsBindings(st *execState) error {
	p := st.pipeline
	if p == nil {
		return fmt.Errorf("draw without a bound pipeline")
	}
	if !st.uniformsDirty || p.vertexUniforms+p.fragmentUniforms == 0 {
		st.uniformsDirty = false
		return nil
	}

	var entries []gputypes.BindGroupEntry
	binding := uint32(0)
	add := func(stage gpucore.ShaderStage, count uint32) error {
		for slot := uint32(0); slot < count; slot++ {
			ub, size, err := a.transientUniform(st, st.uniforms[stage][slot])
			if err != nil {
				return err
			}
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  binding,
				Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: size},
			})
			binding++
		}
		return nil
	}
	if err := add(gpucore.ShaderStageVertex, p.vertexUniforms); err != nil {
		return err
	}
	if err := add(gpucore.ShaderStageFragment, p.fragmentUniforms); err != nil {
		return err
	}

	bg, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "uniforms",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create uniform bind group: %w", err)
	}
	st.bindGroups = append(st.bindGroups, bg)
	st.rp.SetBindGroup(0, bg, nil)
	st.uniformsDirty = false
	return nil
}

// flushComputeBindings builds the bind group for the next dispatch:
// uniforms, then the pass's writable storage buffers, then the bound
// read-only storage buffers, in the pipeline's declared layout order.
func (a *Adapter) flushComputeBindings(st *execState) error {
	p := st.cpipe
	if p == nil {
		return fmt.Errorf("dispatch without a bound pipeline")
	}
	if !st.bindDirty {
		return nil
	}
	cd := &p.computeDesc
	if cd.NumUniformBuffers+cd.NumReadWriteStorageBuffers+cd.NumReadOnlyStorageBuffers == 0 {
		st.bindDirty = false
		return nil
	}

	var entries []gputypes.BindGroupEntry
	binding := uint32(0)
	for slot := uint32(0); slot < cd.NumUniformBuffers; slot++ {
		ub, size, err := a.transientUniform(st, st.uniforms[gpucore.ShaderStageCompute][slot])
		if err != nil {
			return err
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  binding,
			Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: size},
		})
		binding++
	}
	addStorage := func(ids []gpucore.BufferID, count uint32) error {
		for slot := uint32(0); slot < count; slot++ {
			if int(slot) >= len(ids) {
				return fmt.Errorf("pipeline declares %d storage bindings, %d bound", count, len(ids))
			}
			nb, err := a.buffer(ids[slot])
			if err != nil {
				return err
			}
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  binding,
				Resource: gputypes.BufferBinding{Buffer: nb.handle.NativeHandle(), Offset: 0, Size: nb.size},
			})
			binding++
		}
		return nil
	}
	if err := addStorage(st.rwBuffers, cd.NumReadWriteStorageBuffers); err != nil {
		return err
	}
	if err := addStorage(st.roBuffers, cd.NumReadOnlyStorageBuffers); err != nil {
		return err
	}

	bg, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "compute_bindings",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create compute bind group: %w", err)
	}
	st.bindGroups = append(st.bindGroups, bg)
	st.cp.SetBindGroup(0, bg, nil)
	st.bindDirty = false
	return nil
}

// transientUniform creates a small uniform buffer holding data for the
// duration of the submission. Empty slots get 16 zero bytes so the
// binding stays valid.
func (a *Adapter) transientUniform(st *execState, data []byte) (hal.Buffer, uint64, error) {
	if len(data) == 0 {
		data = make([]byte, 16)
	}
	ub, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "push_uniform",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("create uniform buffer: %w", err)
	}
	st.transient = append(st.transient, ub)
	a.queue.WriteBuffer(ub, 0, data)
	return ub, uint64(len(data)), nil
}

// decodeShadow returns size bytes at offset from the buffer's CPU
// shadow. Indirect-capable buffers always carry one.
func decodeShadow(nb *nativeBuffer, offset, size uint64) ([]byte, error) {
	if nb.shadow == nil {
		return nil, fmt.Errorf("buffer has no CPU shadow for indirect arguments")
	}
	if offset+size > uint64(len(nb.shadow)) {
		return nil, fmt.Errorf("indirect arguments at %d+%d exceed buffer size %d", offset, size, len(nb.shadow))
	}
	return nb.shadow[offset : offset+size], nil
}

// drawIndirect unrolls argument records on the CPU. hal exposes no
// indirect draw, and the records were written from the host, so the
// shadow bytes are authoritative.
func (a *Adapter) drawIndirect(st *execState, c gpucore.DrawIndirectCommand) error {
	nb, err := a.buffer(c.Buffer)
	if err != nil {
		return err
	}
	if err := a.flushGraphicsBindings(st); err != nil {
		return err
	}
	for i := uint32(0); i < c.DrawCount; i++ {
		raw, err := decodeShadow(nb, c.Offset+uint64(i)*gpucore.DrawIndirectArgsSize, gpucore.DrawIndirectArgsSize)
		if err != nil {
			return err
		}
		rec, _ := gpucore.DecodeDrawIndirectArgs(raw)
		st.rp.Draw(rec.VertexCount, rec.InstanceCount, rec.FirstVertex, rec.FirstInstance)
	}
	return nil
}

func (a *Adapter) drawIndexedIndirect(st *execState, c gpucore.DrawIndexedIndirectCommand) error {
	nb, err := a.buffer(c.Buffer)
	if err != nil {
		return err
	}
	if err := a.flushGraphicsBindings(st); err != nil {
		return err
	}
	for i := uint32(0); i < c.DrawCount; i++ {
		raw, err := decodeShadow(nb, c.Offset+uint64(i)*gpucore.DrawIndexedIndirectArgsSize, gpucore.DrawIndexedIndirectArgsSize)
		if err != nil {
			return err
		}
		rec, _ := gpucore.DecodeDrawIndexedIndirectArgs(raw)
		st.rp.DrawIndexed(rec.IndexCount, rec.InstanceCount, rec.FirstIndex, rec.VertexOffset, rec.FirstInstance)
	}
	return nil
}

func (a *Adapter) uploadToBuffer(c gpucore.UploadToBufferCommand) error {
	src, err := a.transfer(c.Src.Transfer)
	if err != nil {
		return err
	}
	dst, err := a.buffer(c.Dst.Buffer)
	if err != nil {
		return err
	}
	if c.Src.Offset+c.Dst.Size > uint64(len(src.shadow)) {
		return fmt.Errorf("upload source range out of bounds")
	}
	data := src.shadow[c.Src.Offset : c.Src.Offset+c.Dst.Size]
	a.queue.WriteBuffer(dst.handle, c.Dst.Offset, data)
	if dst.shadow != nil && c.Dst.Offset+c.Dst.Size <= uint64(len(dst.shadow)) {
		copy(dst.shadow[c.Dst.Offset:], data)
	}
	return nil
}

func (a *Adapter) uploadToTexture(c gpucore.UploadToTextureCommand) error {
	src, err := a.transfer(c.Src.Transfer)
	if err != nil {
		return err
	}
	nt, err := a.texture(c.Dst.Texture)
	if err != nil {
		return err
	}
	if c.Src.Offset+c.Src.Size > uint64(len(src.shadow)) {
		return fmt.Errorf("upload source range out of bounds")
	}
	data := src.shadow[c.Src.Offset : c.Src.Offset+c.Src.Size]
	pitch := c.BytesPerRow
	if pitch == 0 {
		pitch = c.Dst.Size.Width * uint32(nt.desc.Format.BytesPerTexel())
	}
	a.writeTextureRegion(nt, c.Dst, data, pitch)
	return nil
}

// writeTextureRegion issues a queue texture write for one region.
func (a *Adapter) writeTextureRegion(nt *nativeTexture, region gpucore.TextureRegion, data []byte, bytesPerRow uint32) {
	depth := max(region.Size.Depth, 1)
	a.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  nt.tex,
			MipLevel: region.MipLevel,
			Origin: hal.Origin3D{
				X: region.Origin.X,
				Y: region.Origin.Y,
				Z: region.Origin.Z + region.Layer,
			},
			Aspect: gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  bytesPerRow,
			RowsPerImage: region.Size.Height,
		},
		&hal.Extent3D{
			Width:              region.Size.Width,
			Height:             region.Size.Height,
			DepthOrArrayLayers: depth,
		},
	)
}

// stagingBuffer allocates a mappable readback buffer tracked in st.
func (a *Adapter) stagingBuffer(st *execState, size uint64) (hal.Buffer, error) {
	buf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	return buf, nil
}

func (a *Adapter) downloadFromBuffer(st *execState, c gpucore.DownloadFromBufferCommand) error {
	src, err := a.buffer(c.Src.Buffer)
	if err != nil {
		return err
	}
	dst, err := a.transfer(c.Dst.Transfer)
	if err != nil {
		return err
	}
	if c.Dst.Offset+c.Src.Size > uint64(len(dst.shadow)) {
		return fmt.Errorf("download destination range out of bounds")
	}
	staging, err := a.stagingBuffer(st, c.Src.Size)
	if err != nil {
		return err
	}
	st.encoder.CopyBufferToBuffer(src.handle, staging, []hal.BufferCopy{{
		SrcOffset: c.Src.Offset,
		DstOffset: 0,
		Size:      c.Src.Size,
	}})
	st.reads = append(st.reads, pendingRead{
		staging: staging,
		size:    c.Src.Size,
		dst:     dst.shadow[c.Dst.Offset : c.Dst.Offset+c.Src.Size],
	})
	return nil
}

// alignRow rounds a row pitch up to the copy alignment.
func alignRow(pitch uint32) uint32 {
	return (pitch + rowAlignment - 1) / rowAlignment * rowAlignment
}

func (a *Adapter) downloadFromTexture(st *execState, c gpucore.DownloadFromTextureCommand) error {
	nt, err := a.texture(c.Src.Texture)
	if err != nil {
		return err
	}
	dst, err := a.transfer(c.Dst.Transfer)
	if err != nil {
		return err
	}
	tight := c.BytesPerRow
	if tight == 0 {
		tight = c.Src.Size.Width * uint32(nt.desc.Format.BytesPerTexel())
	}
	aligned := alignRow(tight)
	rows := c.Src.Size.Height
	size := uint64(aligned) * uint64(rows)

	want := uint64(tight) * uint64(rows)
	if c.Dst.Offset+want > uint64(len(dst.shadow)) {
		return fmt.Errorf("download destination range out of bounds")
	}

	staging, err := a.stagingBuffer(st, size)
	if err != nil {
		return err
	}
	a.copyTextureToStaging(st, nt, c.Src, staging, aligned)
	st.reads = append(st.reads, pendingRead{
		staging:    staging,
		size:       size,
		rows:       rows,
		tightRow:   tight,
		alignedRow: aligned,
		dst:        dst.shadow[c.Dst.Offset : c.Dst.Offset+want],
	})
	return nil
}

func (a *Adapter) copyTextureToStaging(st *execState, nt *nativeTexture, region gpucore.TextureRegion, staging hal.Buffer, alignedRow uint32) {
	st.encoder.CopyTextureToBuffer(nt.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  alignedRow,
			RowsPerImage: region.Size.Height,
		},
		TextureBase: hal.ImageCopyTexture{
			Texture:  nt.tex,
			MipLevel: region.MipLevel,
			Origin: hal.Origin3D{
				X: region.Origin.X,
				Y: region.Origin.Y,
				Z: region.Origin.Z + region.Layer,
			},
			Aspect: gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{
			Width:              region.Size.Width,
			Height:             region.Size.Height,
			DepthOrArrayLayers: max(region.Size.Depth, 1),
		},
	}})
}

func (a *Adapter) copyBufferToBuffer(st *execState, c gpucore.CopyBufferToBufferCommand) error {
	src, err := a.buffer(c.Src.Buffer)
	if err != nil {
		return err
	}
	dst, err := a.buffer(c.Dst.Buffer)
	if err != nil {
		return err
	}
	st.encoder.CopyBufferToBuffer(src.handle, dst.handle, []hal.BufferCopy{{
		SrcOffset: c.Src.Offset,
		DstOffset: c.Dst.Offset,
		Size:      c.Src.Size,
	}})
	// Keep the indirect shadow coherent when both sides track one.
	if dst.shadow != nil && src.shadow != nil &&
		c.Src.Offset+c.Src.Size <= uint64(len(src.shadow)) &&
		c.Dst.Offset+c.Src.Size <= uint64(len(dst.shadow)) {
		copy(dst.shadow[c.Dst.Offset:], src.shadow[c.Src.Offset:c.Src.Offset+c.Src.Size])
	}
	return nil
}

// copyTextureToTexture stages the source region into a readback buffer
// and replays it as a queue write after the fence. hal has no direct
// texture-to-texture encoder command.
func (a *Adapter) copyTextureToTexture(st *execState, c gpucore.CopyTextureToTextureCommand) error {
	src, err := a.texture(c.Src.Texture)
	if err != nil {
		return err
	}
	dst, err := a.texture(c.Dst.Texture)
	if err != nil {
		return err
	}
	tight := c.Src.Size.Width * uint32(src.desc.Format.BytesPerTexel())
	aligned := alignRow(tight)
	rows := c.Src.Size.Height
	size := uint64(aligned) * uint64(rows)

	staging, err := a.stagingBuffer(st, size)
	if err != nil {
		return err
	}
	a.copyTextureToStaging(st, src, c.Src, staging, aligned)
	region := c.Dst
	region.Size = c.Src.Size
	st.reads = append(st.reads, pendingRead{
		staging:    staging,
		size:       size,
		rows:       rows,
		tightRow:   tight,
		alignedRow: aligned,
		dstTexture: &writeTexels{tex: dst, region: region},
	})
	return nil
}
