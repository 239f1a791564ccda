package cmdq

import (
	"fmt"
	"sync"

	"github.com/gogpu/cmdq/gpucore"
)

// cbStatus tracks the lifecycle of a command buffer.
type cbStatus uint8

const (
	statusRecording cbStatus = iota
	statusSubmitted
	statusCanceled
)

var cbStatusNames = [...]string{"recording", "submitted", "canceled"}

func (s cbStatus) String() string {
	if int(s) < len(cbStatusNames) {
		return cbStatusNames[s]
	}
	return fmt.Sprintf("cbStatus(%d)", uint8(s))
}

// passKind identifies which pass, if any, is open on a command buffer.
type passKind uint8

const (
	passNone passKind = iota
	passRender
	passCompute
	passCopy
)

// CommandBuffer records GPU commands for one submission.
//
// A command buffer is thread-affine: it must be recorded, submitted,
// or canceled only on the goroutine that acquired it. At most one pass
// may be open at a time, and commands that target a pass are issued
// through the pass handle, not the command buffer.
//
// Submission hands the command buffer to the device's timeline; the
// handle is dead afterwards and every further call fails with a
// sequencing error.
type CommandBuffer struct {
	device *Device
	owner  uint64 // goroutine that acquired the buffer

	mu     sync.Mutex
	status cbStatus
	pass   passKind
	cmds   []gpucore.Command

	// pinned cycle instances: each recorded reference takes one ref at
	// record time and drops it at cancel or submission completion.
	pinned map[*cycleInstance]struct{}
	pins   []*cycleInstance

	presents   []gpucore.TextureID
	frames     []frameCredit
	debugDepth int
}

// AcquireCommandBuffer returns a fresh command buffer in the recording
// state, bound to the calling goroutine.
func (d *Device) AcquireCommandBuffer() (*CommandBuffer, error) {
	d.qmu.Lock()
	closed := d.closed
	d.qmu.Unlock()
	if closed {
		return nil, ErrDeviceDestroyed
	}
	return &CommandBuffer{
		device: d,
		owner:  goroutineID(),
		pinned: make(map[*cycleInstance]struct{}),
	}, nil
}

// checkOwner verifies the calling goroutine acquired this buffer.
func (cb *CommandBuffer) checkOwner() error {
	if goroutineID() != cb.owner {
		return ErrWrongGoroutine
	}
	return nil
}

// require is the common precondition for recording outside a pass.
// Caller must hold cb.mu.
func (cb *CommandBuffer) require() error {
	if cb.status != statusRecording {
		return ErrNotRecording
	}
	return nil
}

// record appends a command. Caller must hold cb.mu and have passed the
// status checks.
func (cb *CommandBuffer) record(cmd gpucore.Command) {
	cb.cmds = append(cb.cmds, cmd)
}

// pin takes one reference on a cycle instance for the lifetime of this
// command buffer's submission. Duplicate pins of the same instance are
// collapsed.
func (cb *CommandBuffer) pin(ci *cycleInstance) {
	if _, ok := cb.pinned[ci]; ok {
		return
	}
	ci.refs.Add(1)
	cb.pinned[ci] = struct{}{}
	cb.pins = append(cb.pins, ci)
}

// writeResource resolves the physical instance a write command targets,
// applying the cycling protocol, and pins it.
func (cb *CommandBuffer) writeResource(s *resourceSlot, cycle bool, op string) (uint64, error) {
	inst, rotated, hazard, err := s.writeTarget(cycle)
	if err != nil {
		return 0, err
	}
	if hazard {
		cb.device.noteHazard(s, op+" without cycling while in flight")
	}
	if rotated {
		cb.device.stats.Cycles.Add(1)
	}
	cb.pin(inst)
	return inst.buffer, nil
}

// readResource pins the current physical instance for a read. Reads
// never rotate the slot; they latch whatever instance is current when
// the command is recorded.
func (cb *CommandBuffer) readResource(s *resourceSlot) (uint64, error) {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return 0, fmt.Errorf("cmdq: %s %q used after release", s.kind, s.label)
	}
	inst := s.currentInstance()
	cb.pin(inst)
	return inst.buffer, nil
}

// === Uniform data ===

// PushVertexUniformData sets the vertex-stage uniform data for a
// numbered slot (0 to MaxUniformSlots-1). The data persists for the
// rest of the command buffer until pushed again; it may be pushed
// inside or outside passes, but not while a copy pass is open.
func (cb *CommandBuffer) PushVertexUniformData(slot uint32, data []byte) error {
	return cb.pushUniform(ShaderStageVertex, slot, data)
}

// PushFragmentUniformData sets the fragment-stage uniform data for a
// numbered slot. Same persistence rules as PushVertexUniformData.
func (cb *CommandBuffer) PushFragmentUniformData(slot uint32, data []byte) error {
	return cb.pushUniform(ShaderStageFragment, slot, data)
}

// PushComputeUniformData sets the compute-stage uniform data for a
// numbered slot. Same persistence rules as PushVertexUniformData.
func (cb *CommandBuffer) PushComputeUniformData(slot uint32, data []byte) error {
	return cb.pushUniform(ShaderStageCompute, slot, data)
}

func (cb *CommandBuffer) pushUniform(stage ShaderStage, slot uint32, data []byte) error {
	if slot >= MaxUniformSlots {
		return fmt.Errorf("%w: uniform slot %d (max %d)", ErrInvalidDescriptor, slot, MaxUniformSlots-1)
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.require(); err != nil {
		return err
	}
	if cb.pass == passCopy {
		return seqError("uniform data cannot be pushed inside a copy pass")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	cb.record(&gpucore.PushUniformDataCommand{Stage: stage, Slot: slot, Data: buf})
	return nil
}

// === Debug annotations ===

// InsertDebugLabel records a point annotation in the command stream.
func (cb *CommandBuffer) InsertDebugLabel(text string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.require(); err != nil {
		return err
	}
	cb.record(&gpucore.InsertDebugLabelCommand{Label: text})
	return nil
}

// PushDebugGroup opens a named annotation region. Groups nest; each
// push must be balanced by a PopDebugGroup before submit.
func (cb *CommandBuffer) PushDebugGroup(name string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.require(); err != nil {
		return err
	}
	cb.debugDepth++
	cb.record(&gpucore.PushDebugGroupCommand{Name: name})
	return nil
}

// PopDebugGroup closes the innermost annotation region.
func (cb *CommandBuffer) PopDebugGroup() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.require(); err != nil {
		return err
	}
	if cb.debugDepth == 0 {
		return seqError("debug group pop without matching push")
	}
	cb.debugDepth--
	cb.record(&gpucore.PopDebugGroupCommand{})
	return nil
}

// === Submission ===

// Submit hands the recorded commands to the device's submission
// goroutine. Work submitted earlier, from any goroutine, executes
// first; the order in which Submit calls complete defines the GPU
// timeline. The command buffer is dead afterwards.
func (cb *CommandBuffer) Submit() error {
	_, err := cb.submit(false)
	return err
}

// SubmitAndAcquireFence submits like Submit and returns a fence that
// signals when this submission's GPU work has completed. The caller
// must Release the fence.
func (cb *CommandBuffer) SubmitAndAcquireFence() (*Fence, error) {
	return cb.submit(true)
}

func (cb *CommandBuffer) submit(withFence bool) (*Fence, error) {
	if err := cb.checkOwner(); err != nil {
		return nil, err
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.require(); err != nil {
		return nil, err
	}
	if cb.pass != passNone {
		return nil, ErrPassOpen
	}
	if cb.debugDepth != 0 && cb.device.debug {
		Logger().Warn("cmdq: submitting with unbalanced debug groups", "depth", cb.debugDepth)
	}

	s := &submission{
		sub: &gpucore.Submission{
			Commands: cb.cmds,
			Presents: cb.presents,
		},
		pins:   cb.pins,
		frames: cb.frames,
	}
	var fence *Fence
	if withFence {
		fence = newFence(cb.device)
		s.fence = fence
	}
	if err := cb.device.enqueue(s); err != nil {
		cb.abandon()
		cb.status = statusCanceled
		if fence != nil {
			fence.signal(err)
			fence.Release()
		}
		return nil, err
	}
	cb.status = statusSubmitted
	cb.cmds = nil
	cb.pins = nil
	cb.pinned = nil
	cb.frames = nil
	cb.presents = nil
	return fence, nil
}

// Cancel discards the recorded commands without submitting them.
// A command buffer that acquired a swapchain texture cannot be
// canceled; its presentation slot is already committed.
func (cb *CommandBuffer) Cancel() error {
	if err := cb.checkOwner(); err != nil {
		return err
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.require(); err != nil {
		return err
	}
	if len(cb.presents) > 0 {
		return ErrPresentPending
	}
	cb.abandon()
	cb.status = statusCanceled
	cb.cmds = nil
	cb.pinned = nil
	return nil
}

// abandon drops every pin and frame credit held by this command
// buffer. Caller must hold cb.mu.
func (cb *CommandBuffer) abandon() {
	for _, ci := range cb.pins {
		ci.refs.Add(-1)
	}
	cb.pins = nil
	for _, fc := range cb.frames {
		fc.sc.frameDone(fc.idx)
	}
	cb.frames = nil
}
