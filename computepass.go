package cmdq

import (
	"fmt"

	"github.com/gogpu/cmdq/gpucore"
)

// StorageBufferBinding declares a buffer the compute pass will write.
type StorageBufferBinding struct {
	Buffer *Buffer
	Cycle  bool
}

// StorageTextureBinding declares a texture the compute pass will write.
type StorageTextureBinding struct {
	Texture *Texture
	Cycle   bool
}

// ComputePass records dispatch commands.
//
// Writable storage resources are declared up front at BeginComputePass
// so the cycling decision happens once per pass; read-only storage can
// be bound mid-pass.
type ComputePass struct {
	cb       *CommandBuffer
	ended    bool
	pipeline bool
}

// BeginComputePass opens a compute pass. Every buffer and texture the
// pass dispatches will write to must be declared here with
// COMPUTE_STORAGE_WRITE usage; the Cycle flag on each binding applies
// the cycling protocol to that resource.
func (cb *CommandBuffer) BeginComputePass(buffers []StorageBufferBinding, textures []StorageTextureBinding) (*ComputePass, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.require(); err != nil {
		return nil, err
	}
	if cb.pass != passNone {
		return nil, ErrPassOpen
	}

	cmd := &gpucore.BeginComputePassCommand{}
	for i, b := range buffers {
		if b.Buffer == nil {
			return nil, fmt.Errorf("%w: storage buffer binding %d has no buffer", ErrInvalidDescriptor, i)
		}
		if b.Buffer.usage&BufferUsageComputeStorageWrite == 0 {
			return nil, fmt.Errorf("%w: storage buffer binding %d lacks COMPUTE_STORAGE_WRITE usage", ErrUnsupportedUsage, i)
		}
		id, err := cb.writeResource(b.Buffer.slot, b.Cycle, "compute write to buffer")
		if err != nil {
			return nil, err
		}
		cmd.StorageBuffers = append(cmd.StorageBuffers, gpucore.BufferID(id))
	}
	for i, t := range textures {
		if t.Texture == nil {
			return nil, fmt.Errorf("%w: storage texture binding %d has no texture", ErrInvalidDescriptor, i)
		}
		if t.Texture.usage&TextureUsageComputeStorageWrite == 0 {
			return nil, fmt.Errorf("%w: storage texture binding %d lacks COMPUTE_STORAGE_WRITE usage", ErrUnsupportedUsage, i)
		}
		id, err := cb.writeResource(t.Texture.slot, t.Cycle, "compute write to texture")
		if err != nil {
			return nil, err
		}
		cmd.StorageTextures = append(cmd.StorageTextures, gpucore.TextureID(id))
	}

	cb.pass = passCompute
	cb.record(cmd)
	return &ComputePass{cb: cb}, nil
}

func (cp *ComputePass) check() error {
	if cp.ended {
		return ErrPassEnded
	}
	return cp.cb.require()
}

// BindComputePipeline makes pipeline current for subsequent dispatches.
func (cp *ComputePass) BindComputePipeline(p *ComputePipeline) error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	if p == nil || p.device == nil {
		return fmt.Errorf("%w: nil or released pipeline", ErrInvalidDescriptor)
	}
	cp.pipeline = true
	cp.cb.record(&gpucore.BindComputePipelineCommand{Pipeline: p.id})
	return nil
}

// BindStorageBuffers binds read-only storage buffers to consecutive
// slots starting at firstSlot.
func (cp *ComputePass) BindStorageBuffers(firstSlot uint32, buffers []*Buffer) error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	cmd := &gpucore.BindComputeStorageCommand{FirstSlot: firstSlot}
	for i, b := range buffers {
		if b == nil {
			return fmt.Errorf("%w: storage buffer %d is nil", ErrInvalidDescriptor, i)
		}
		if b.usage&BufferUsageComputeStorageRead == 0 {
			return fmt.Errorf("%w: storage buffer %d lacks COMPUTE_STORAGE_READ usage", ErrUnsupportedUsage, i)
		}
		id, err := cp.cb.readResource(b.slot)
		if err != nil {
			return err
		}
		cmd.Buffers = append(cmd.Buffers, gpucore.BufferID(id))
	}
	cp.cb.record(cmd)
	return nil
}

// BindStorageTextures binds read-only storage textures to consecutive
// slots starting at firstSlot.
func (cp *ComputePass) BindStorageTextures(firstSlot uint32, textures []*Texture) error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	cmd := &gpucore.BindComputeStorageCommand{FirstSlot: firstSlot}
	for i, t := range textures {
		if t == nil {
			return fmt.Errorf("%w: storage texture %d is nil", ErrInvalidDescriptor, i)
		}
		if t.usage&TextureUsageComputeStorageRead == 0 {
			return fmt.Errorf("%w: storage texture %d lacks COMPUTE_STORAGE_READ usage", ErrUnsupportedUsage, i)
		}
		id, err := cp.cb.readResource(t.slot)
		if err != nil {
			return err
		}
		cmd.Textures = append(cmd.Textures, gpucore.TextureID(id))
	}
	cp.cb.record(cmd)
	return nil
}

// Dispatch launches groupsX*groupsY*groupsZ workgroups. Fails with
// ErrNoPipeline until a compute pipeline has been bound in this pass.
func (cp *ComputePass) Dispatch(groupsX, groupsY, groupsZ uint32) error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	if !cp.pipeline {
		return ErrNoPipeline
	}
	cp.cb.record(&gpucore.DispatchCommand{GroupsX: groupsX, GroupsY: groupsY, GroupsZ: groupsZ})
	return nil
}

// DispatchIndirect launches workgroups whose counts live in buf as one
// DispatchIndirectArgs record at offset. The offset must be 4-byte
// aligned and the buffer must carry INDIRECT usage.
func (cp *ComputePass) DispatchIndirect(buf *Buffer, offset uint64) error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	if !cp.pipeline {
		return ErrNoPipeline
	}
	if buf == nil {
		return fmt.Errorf("%w: nil indirect buffer", ErrInvalidDescriptor)
	}
	if buf.usage&BufferUsageIndirect == 0 {
		return fmt.Errorf("%w: indirect buffer lacks INDIRECT usage", ErrUnsupportedUsage)
	}
	if offset%4 != 0 {
		return fmt.Errorf("%w: indirect offset %d not 4-byte aligned", ErrInvalidDescriptor, offset)
	}
	if offset+DispatchIndirectArgsSize > buf.size {
		return fmt.Errorf("%w: indirect record at %d exceeds buffer size %d", ErrInvalidDescriptor, offset, buf.size)
	}
	id, err := cp.cb.readResource(buf.slot)
	if err != nil {
		return err
	}
	cp.cb.record(&gpucore.DispatchIndirectCommand{Buffer: gpucore.BufferID(id), Offset: offset})
	return nil
}

// End closes the pass.
func (cp *ComputePass) End() error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	cp.ended = true
	cp.cb.pass = passNone
	cp.cb.record(&gpucore.EndPassCommand{})
	return nil
}
