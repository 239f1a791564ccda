package cmdq

import (
	"fmt"
	"sync"

	"github.com/gogpu/cmdq/backend"
	"github.com/gogpu/cmdq/gpucore"
)

// Frame-in-flight limits.
const (
	// MinFramesInFlight is the smallest allowed frame-in-flight budget.
	MinFramesInFlight = 1

	// MaxFramesInFlight is the largest allowed frame-in-flight budget.
	MaxFramesInFlight = 3

	// DefaultFramesInFlight is used when DeviceConfig leaves the
	// budget at zero.
	DefaultFramesInFlight = 2
)

// DeviceConfig holds configuration for creating a Device.
type DeviceConfig struct {
	// ShaderFormats declares the shader formats the application can
	// provide. A backend is selected whose supported set intersects
	// this one. Required.
	ShaderFormats ShaderFormat

	// Debug enables the validation layer: hazard detection, fence leak
	// reporting, and verbose sequencing diagnostics.
	Debug bool

	// FramesInFlight bounds how many submitted-but-incomplete frames
	// the CPU may run ahead by (1-3). Defaults to DefaultFramesInFlight.
	FramesInFlight int

	// Backend optionally pins a specific backend by name instead of
	// priority selection.
	Backend string
}

// Device owns all GPU resources and the backend adapter, and runs the
// GPU timeline: a single submission goroutine that executes submitted
// command buffers strictly in submission order.
//
// A Device is safe for concurrent use. Command buffers themselves are
// thread-affine (see [Device.AcquireCommandBuffer]).
type Device struct {
	adapter gpucore.Adapter
	formats ShaderFormat // negotiated: requested ∩ adapter
	debug   bool

	// Submission queue. qmu guards queue, pending, framesInFlight,
	// destroyed; qcond signals the submission goroutine, idleCond
	// signals drain waiters.
	qmu      sync.Mutex
	qcond    *sync.Cond
	idleCond *sync.Cond
	queue    []*submission
	pending  int
	nextSeq  uint64
	closed   bool

	framesInFlight int

	// Claimed windows.
	winMu   sync.Mutex
	windows map[Window]*swapchain

	// Released slots awaiting their last in-flight reference.
	slotMu  sync.Mutex
	retired []*resourceSlot

	// Outstanding fences, for leak reporting in debug mode.
	fenceMu    sync.Mutex
	liveFences int

	stats   DeviceStats
	hazards hazardLog
}

// submission pairs a recorded command stream with the bookkeeping the
// GPU timeline must perform once it completes.
type submission struct {
	sub    *gpucore.Submission
	fence  *Fence
	pins   []*cycleInstance
	frames []frameCredit
}

// CreateDevice selects a backend adapter whose shader format support
// intersects cfg.ShaderFormats, opens it, and starts the device's
// submission goroutine.
//
// Returns ErrNoSuitableBackend when no registered backend qualifies.
func CreateDevice(cfg DeviceConfig) (*Device, error) {
	if cfg.ShaderFormats == 0 {
		return nil, fmt.Errorf("%w: no shader formats declared", ErrInvalidDescriptor)
	}
	if cfg.FramesInFlight == 0 {
		cfg.FramesInFlight = DefaultFramesInFlight
	}
	if cfg.FramesInFlight < MinFramesInFlight || cfg.FramesInFlight > MaxFramesInFlight {
		return nil, fmt.Errorf("%w: frames in flight %d out of range [%d,%d]",
			ErrInvalidDescriptor, cfg.FramesInFlight, MinFramesInFlight, MaxFramesInFlight)
	}

	var adapter gpucore.Adapter
	if cfg.Backend != "" {
		adapter = backend.Get(cfg.Backend)
		if adapter == nil {
			return nil, fmt.Errorf("%w: backend %q not registered", ErrNoSuitableBackend, cfg.Backend)
		}
		if !adapter.ShaderFormats().Intersects(cfg.ShaderFormats) {
			return nil, fmt.Errorf("%w: backend %q accepts none of the requested shader formats",
				ErrNoSuitableBackend, cfg.Backend)
		}
		propagateLogger(adapter)
		if err := adapter.Open(); err != nil {
			return nil, fmt.Errorf("cmdq: open backend %q: %w", cfg.Backend, err)
		}
	} else {
		// Try matching backends in priority order; one failing to open
		// (no GPU, missing driver) falls through to the next.
		candidates := backend.SelectAll(cfg.ShaderFormats)
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: %w", ErrNoSuitableBackend, backend.ErrNoFormatMatch)
		}
		var openErr error
		for _, cand := range candidates {
			propagateLogger(cand)
			if err := cand.Open(); err != nil {
				Logger().Warn("cmdq: backend failed to open", "backend", cand.Name(), "error", err)
				openErr = err
				continue
			}
			adapter = cand
			break
		}
		if adapter == nil {
			return nil, fmt.Errorf("%w: every matching backend failed to open: %w",
				ErrNoSuitableBackend, openErr)
		}
	}

	d := &Device{
		adapter:        adapter,
		formats:        cfg.ShaderFormats & adapter.ShaderFormats(),
		debug:          cfg.Debug,
		framesInFlight: cfg.FramesInFlight,
		windows:        make(map[Window]*swapchain),
	}
	d.qcond = sync.NewCond(&d.qmu)
	d.idleCond = sync.NewCond(&d.qmu)

	Logger().Info("cmdq: device created",
		"backend", adapter.Name(),
		"device", adapter.DeviceName(),
		"driver", adapter.DriverName(),
		"formats", uint32(d.formats),
		"debug", d.debug)

	go d.run()
	return d, nil
}

// run is the GPU timeline: it pops submissions strictly in enqueue
// order and executes them on the adapter. All completion side effects
// (fence signals, cycle instance unpinning, frame budget return)
// happen here, after Execute returns.
func (d *Device) run() {
	for {
		d.qmu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.qcond.Wait()
		}
		if len(d.queue) == 0 && d.closed {
			d.qmu.Unlock()
			return
		}
		s := d.queue[0]
		d.queue = d.queue[1:]
		d.qmu.Unlock()

		err := d.adapter.Execute(s.sub)
		if err != nil {
			Logger().Warn("cmdq: submission failed", "seq", s.sub.Seq, "err", err)
		}
		for _, id := range s.sub.Presents {
			if perr := d.adapter.Present(id); perr != nil {
				Logger().Warn("cmdq: present failed", "seq", s.sub.Seq, "err", perr)
			}
		}

		for _, ci := range s.pins {
			ci.refs.Add(-1)
		}
		for _, fc := range s.frames {
			fc.sc.frameDone(fc.idx)
		}
		if s.fence != nil {
			s.fence.signal(err)
		}

		d.stats.noteCompleted(s.sub)
		d.reapRetired()

		d.qmu.Lock()
		d.pending--
		if d.pending == 0 {
			d.idleCond.Broadcast()
		}
		d.qmu.Unlock()
	}
}

// enqueue appends a submission under the queue lock, assigning its
// global sequence number. Call order defines execution order.
func (d *Device) enqueue(s *submission) error {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	if d.closed {
		return ErrDeviceDestroyed
	}
	d.nextSeq++
	s.sub.Seq = d.nextSeq
	d.queue = append(d.queue, s)
	d.pending++
	d.qcond.Signal()
	Logger().Debug("cmdq: submission enqueued", "seq", s.sub.Seq, "commands", len(s.sub.Commands))
	return nil
}

// WaitForIdle blocks until the GPU timeline has fully drained. It is
// intended for teardown and mode transitions, not per-frame use.
func (d *Device) WaitForIdle() {
	d.qmu.Lock()
	for d.pending > 0 {
		d.idleCond.Wait()
	}
	d.qmu.Unlock()
	d.reapRetired()
}

// SetAllowedFramesInFlight changes the frame-in-flight budget
// (1-3). The submission queue is drained first so in-flight cycle
// instances are never orphaned by the change.
func (d *Device) SetAllowedFramesInFlight(n int) error {
	if n < MinFramesInFlight || n > MaxFramesInFlight {
		return fmt.Errorf("%w: frames in flight %d out of range [%d,%d]",
			ErrInvalidDescriptor, n, MinFramesInFlight, MaxFramesInFlight)
	}
	d.WaitForIdle()
	d.qmu.Lock()
	d.framesInFlight = n
	d.qmu.Unlock()
	return nil
}

// AllowedFramesInFlight returns the current frame-in-flight budget.
func (d *Device) AllowedFramesInFlight() int {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	return d.framesInFlight
}

// Destroy drains the GPU timeline, stops the submission goroutine, and
// closes the backend adapter. No commands may be outstanding on other
// goroutines when Destroy is called; resources created from the device
// are invalid afterwards.
func (d *Device) Destroy() {
	d.WaitForIdle()

	d.qmu.Lock()
	if d.closed {
		d.qmu.Unlock()
		return
	}
	d.closed = true
	d.qcond.Broadcast()
	d.qmu.Unlock()

	d.winMu.Lock()
	for w, sc := range d.windows {
		sc.destroy()
		delete(d.windows, w)
	}
	d.winMu.Unlock()

	d.reapRetired()

	if d.debug {
		d.fenceMu.Lock()
		leaked := d.liveFences
		d.fenceMu.Unlock()
		if leaked > 0 {
			Logger().Warn("cmdq: fences leaked at device destroy", "count", leaked)
		}
	}

	d.adapter.Close()
	Logger().Info("cmdq: device destroyed", "stats", d.stats.String())
}

// === Capability queries ===

// ShaderFormats returns the negotiated shader format set (requested ∩
// backend-supported).
func (d *Device) ShaderFormats() ShaderFormat { return d.formats }

// BackendName returns the selected backend's registry name.
func (d *Device) BackendName() string { return d.adapter.Name() }

// DeviceName returns the backend's device description.
func (d *Device) DeviceName() string { return d.adapter.DeviceName() }

// DriverName returns the backend's driver description.
func (d *Device) DriverName() string { return d.adapter.DriverName() }

// SupportsTextureFormat reports whether format may be created with the
// given usage set on this backend.
func (d *Device) SupportsTextureFormat(format TextureFormat, usage TextureUsage) bool {
	return d.adapter.SupportsTextureFormat(format, usage)
}

// SupportsSampleCount reports whether format supports the multisample
// count as a render target on this backend.
func (d *Device) SupportsSampleCount(format TextureFormat, samples uint32) bool {
	return d.adapter.SupportsSampleCount(format, samples)
}

// === Resource factories ===

// CreateBuffer creates a GPU buffer. The descriptor is validated
// against backend capabilities before any allocation happens.
func (d *Device) CreateBuffer(desc *BufferDescriptor) (*Buffer, error) {
	if desc == nil || desc.Size == 0 {
		return nil, fmt.Errorf("%w: buffer size must be positive", ErrInvalidDescriptor)
	}
	if desc.Usage == 0 {
		return nil, fmt.Errorf("%w: buffer needs at least one usage flag", ErrInvalidDescriptor)
	}
	if desc.Usage&BufferUsageVertex != 0 && desc.Usage&BufferUsageIndex != 0 {
		return nil, fmt.Errorf("%w: VERTEX and INDEX on one buffer", ErrUnsupportedUsage)
	}

	dcopy := *desc
	slot, err := d.newSlot(kindBuffer, desc.Label, func() (uint64, error) {
		id, err := d.adapter.CreateBuffer(&dcopy)
		return uint64(id), err
	})
	if err != nil {
		return nil, err
	}
	return &Buffer{device: d, slot: slot, size: desc.Size, usage: desc.Usage, label: desc.Label}, nil
}

// CreateTexture creates a GPU texture.
func (d *Device) CreateTexture(desc *TextureDescriptor) (*Texture, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: texture dimensions must be positive", ErrInvalidDescriptor)
	}
	if desc.Usage == 0 {
		return nil, fmt.Errorf("%w: texture needs at least one usage flag", ErrInvalidDescriptor)
	}
	if desc.Usage&TextureUsageSampler != 0 && desc.Usage&TextureUsageGraphicsStorageRead != 0 {
		return nil, fmt.Errorf("%w: SAMPLER and GRAPHICS_STORAGE_READ on one texture", ErrUnsupportedUsage)
	}
	if desc.Usage&TextureUsageColorTarget != 0 && desc.Usage&TextureUsageDepthStencilTarget != 0 {
		return nil, fmt.Errorf("%w: COLOR_TARGET and DEPTH_STENCIL_TARGET on one texture", ErrUnsupportedUsage)
	}
	if desc.Format.IsDepthStencil() && desc.Usage&TextureUsageColorTarget != 0 {
		return nil, fmt.Errorf("%w: depth format as color target", ErrUnsupportedFormat)
	}
	if !desc.Format.IsDepthStencil() && desc.Usage&TextureUsageDepthStencilTarget != 0 {
		return nil, fmt.Errorf("%w: color format as depth-stencil target", ErrUnsupportedFormat)
	}
	if !d.adapter.SupportsTextureFormat(desc.Format, desc.Usage) {
		return nil, fmt.Errorf("%w: format %d with usage 0x%x", ErrUnsupportedFormat, desc.Format, uint32(desc.Usage))
	}

	dcopy := *desc
	if dcopy.LayerCountOrDepth == 0 {
		dcopy.LayerCountOrDepth = 1
	}
	if dcopy.MipLevelCount == 0 {
		dcopy.MipLevelCount = 1
	}
	if dcopy.SampleCount == 0 {
		dcopy.SampleCount = 1
	}
	switch dcopy.SampleCount {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("%w: sample count %d", ErrUnsupportedSampleCount, dcopy.SampleCount)
	}
	if dcopy.SampleCount > 1 && !d.adapter.SupportsSampleCount(dcopy.Format, dcopy.SampleCount) {
		return nil, fmt.Errorf("%w: %dx for format %d", ErrUnsupportedSampleCount, dcopy.SampleCount, dcopy.Format)
	}

	slot, err := d.newSlot(kindTexture, desc.Label, func() (uint64, error) {
		id, err := d.adapter.CreateTexture(&dcopy)
		return uint64(id), err
	})
	if err != nil {
		return nil, err
	}
	return &Texture{
		device: d, slot: slot,
		width: dcopy.Width, height: dcopy.Height,
		layers: dcopy.LayerCountOrDepth, mipLevels: dcopy.MipLevelCount,
		samples: dcopy.SampleCount,
		format:  dcopy.Format, usage: dcopy.Usage, label: dcopy.Label,
	}, nil
}

// CreateTransferBuffer creates a CPU-visible staging buffer.
func (d *Device) CreateTransferBuffer(size uint64, usage TransferBufferUsage) (*TransferBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: transfer buffer size must be positive", ErrInvalidDescriptor)
	}
	slot, err := d.newSlot(kindTransfer, "", func() (uint64, error) {
		id, err := d.adapter.CreateTransferBuffer(size, usage)
		return uint64(id), err
	})
	if err != nil {
		return nil, err
	}
	return &TransferBuffer{device: d, slot: slot, size: size, usage: usage}, nil
}

// CreateSampler creates a texture sampler.
func (d *Device) CreateSampler(desc *SamplerDescriptor) (*Sampler, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: sampler descriptor is nil", ErrInvalidDescriptor)
	}
	id, err := d.adapter.CreateSampler(desc)
	if err != nil {
		return nil, fmt.Errorf("cmdq: create sampler: %w", err)
	}
	return &Sampler{device: d, id: id, label: desc.Label}, nil
}

// CreateShader creates a shader module. The descriptor's format must
// be a single bit inside the device's negotiated format set; backends
// compile or validate the code eagerly so malformed shaders fail here,
// not at first draw.
func (d *Device) CreateShader(desc *ShaderDescriptor) (*Shader, error) {
	if desc == nil || len(desc.Code) == 0 {
		return nil, fmt.Errorf("%w: shader code is empty", ErrInvalidDescriptor)
	}
	if desc.Format == 0 || desc.Format&(desc.Format-1) != 0 {
		return nil, fmt.Errorf("%w: shader descriptor must declare exactly one format", ErrInvalidDescriptor)
	}
	if !d.formats.Has(desc.Format) {
		return nil, fmt.Errorf("%w: shader format 0x%x not in negotiated set 0x%x",
			ErrUnsupportedFormat, uint32(desc.Format), uint32(d.formats))
	}
	id, err := d.adapter.CreateShader(desc)
	if err != nil {
		return nil, fmt.Errorf("cmdq: create shader: %w", err)
	}
	return &Shader{device: d, id: id, stage: desc.Stage, label: desc.Label}, nil
}

// CreateGraphicsPipeline creates a graphics pipeline state object.
func (d *Device) CreateGraphicsPipeline(desc *GraphicsPipelineDescriptor) (*GraphicsPipeline, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: pipeline descriptor is nil", ErrInvalidDescriptor)
	}
	if desc.VertexShader == gpucore.InvalidID {
		return nil, fmt.Errorf("%w: graphics pipeline needs a vertex shader", ErrInvalidDescriptor)
	}
	if len(desc.ColorTargets) > MaxColorTargets {
		return nil, fmt.Errorf("%w: %d color targets (max %d)",
			ErrInvalidDescriptor, len(desc.ColorTargets), MaxColorTargets)
	}
	if len(desc.ColorTargets) == 0 && desc.DepthStencilFormat == 0 {
		return nil, fmt.Errorf("%w: graphics pipeline needs at least one target", ErrInvalidDescriptor)
	}
	id, err := d.adapter.CreateGraphicsPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("cmdq: create graphics pipeline: %w", err)
	}
	return &GraphicsPipeline{device: d, id: id, desc: *desc}, nil
}

// CreateComputePipeline creates a compute pipeline state object.
func (d *Device) CreateComputePipeline(desc *ComputePipelineDescriptor) (*ComputePipeline, error) {
	if desc == nil || desc.Shader == gpucore.InvalidID {
		return nil, fmt.Errorf("%w: compute pipeline needs a shader", ErrInvalidDescriptor)
	}
	id, err := d.adapter.CreateComputePipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("cmdq: create compute pipeline: %w", err)
	}
	return &ComputePipeline{device: d, id: id, desc: *desc}, nil
}

// === Slot bookkeeping ===

// newSlot creates a resource slot with its first physical instance.
func (d *Device) newSlot(kind resourceKind, label string, allocate func() (uint64, error)) (*resourceSlot, error) {
	id, err := allocate()
	if err != nil {
		return nil, fmt.Errorf("cmdq: create %s: %w", kind, err)
	}
	s := &resourceSlot{kind: kind, label: label, allocate: allocate}
	s.instances = []*cycleInstance{{buffer: id}}
	return s, nil
}

// releaseSlot retires a slot. Instances are destroyed as soon as no
// pending submission references them; the rest are reaped when their
// submissions complete.
func (d *Device) releaseSlot(s *resourceSlot) {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()

	d.slotMu.Lock()
	d.retired = append(d.retired, s)
	d.slotMu.Unlock()
	d.reapRetired()
}

// reapRetired destroys the physical instances of retired slots whose
// in-flight references have drained. Called from the submission
// goroutine after each completion and from WaitForIdle/Destroy.
func (d *Device) reapRetired() {
	d.slotMu.Lock()
	defer d.slotMu.Unlock()

	remaining := d.retired[:0]
	for _, s := range d.retired {
		s.mu.Lock()
		live := s.instances[:0]
		for _, ci := range s.instances {
			if ci.bound() {
				live = append(live, ci)
				continue
			}
			d.destroyInstance(s.kind, ci.buffer)
		}
		s.instances = live
		empty := len(s.instances) == 0
		s.mu.Unlock()
		if !empty {
			remaining = append(remaining, s)
		}
	}
	d.retired = remaining
}

// destroyInstance releases one physical backing on the adapter.
func (d *Device) destroyInstance(kind resourceKind, id uint64) {
	switch kind {
	case kindBuffer:
		d.adapter.DestroyBuffer(gpucore.BufferID(id))
	case kindTexture:
		d.adapter.DestroyTexture(gpucore.TextureID(id))
	case kindTransfer:
		d.adapter.DestroyTransferBuffer(gpucore.TransferBufferID(id))
	}
}

// noteHazard records a detected synchronization hazard. Hazards are
// only tracked when the device was created with Debug; release devices
// skip the bookkeeping entirely (the behavior stays undefined either
// way, per the cycling contract).
func (d *Device) noteHazard(s *resourceSlot, msg string) {
	if !d.debug {
		return
	}
	d.stats.Hazards.Add(1)
	d.hazards.add(Hazard{Kind: s.kind.String(), Label: s.label, Detail: msg})
	Logger().Warn("cmdq: synchronization hazard", "resource", s.kind.String(), "label", s.label, "detail", msg)
}

// Hazards returns the hazards detected so far. Always empty on
// non-debug devices.
func (d *Device) Hazards() []Hazard { return d.hazards.snapshot() }

// Stats returns a snapshot of the device's counters.
func (d *Device) Stats() DeviceStatsSnapshot { return d.stats.snapshot() }
