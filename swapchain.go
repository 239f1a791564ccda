package cmdq

import (
	"fmt"
	"sync"

	"github.com/gogpu/cmdq/gpucore"
)

// Window is the presentation surface a device can claim. Implemented
// by the application's windowing layer; the device only needs the
// current pixel size and whether the surface can be presented to at
// all (a minimized window is not presentable).
type Window interface {
	Size() (width, height int)
	Presentable() bool
}

// swapchain is the per-window presentation state: a small ring of
// surface textures and the frame-in-flight accounting that throttles
// the CPU against presentation.
type swapchain struct {
	device *Device
	win    Window
	format TextureFormat

	mu       sync.Mutex
	cond     *sync.Cond
	ring     []surfaceTexture
	inFlight int
}

// frameCredit ties one acquired surface texture to the command buffer
// holding it. Submissions may complete out of acquisition order, so
// completion must free the exact ring slot the credit names, not the
// oldest acquired one.
type frameCredit struct {
	sc  *swapchain
	idx int
}

type surfaceTexture struct {
	id    gpucore.TextureID
	w, h  uint32
	inUse bool
}

// ClaimWindow prepares win for presentation. A window must be claimed
// before swapchain textures can be acquired for it.
func (d *Device) ClaimWindow(win Window) error {
	if win == nil {
		return fmt.Errorf("%w: nil window", ErrInvalidDescriptor)
	}
	d.winMu.Lock()
	defer d.winMu.Unlock()
	if _, ok := d.windows[win]; ok {
		return seqError("window already claimed")
	}
	sc := &swapchain{device: d, win: win, format: TextureFormatBGRA8Unorm}
	sc.cond = sync.NewCond(&sc.mu)
	d.windows[win] = sc
	Logger().Debug("cmdq: window claimed")
	return nil
}

// ReleaseWindow drains the device and releases win's presentation
// state. Safe to call with swapchain work in flight; unsafe while
// another goroutine is still acquiring.
func (d *Device) ReleaseWindow(win Window) error {
	d.winMu.Lock()
	sc, ok := d.windows[win]
	if ok {
		delete(d.windows, win)
	}
	d.winMu.Unlock()
	if !ok {
		return ErrWindowNotClaimed
	}
	d.WaitForIdle()
	sc.destroy()
	return nil
}

// SwapchainTextureFormat returns the texel format swapchain textures
// for win will have.
func (d *Device) SwapchainTextureFormat(win Window) (TextureFormat, error) {
	d.winMu.Lock()
	sc, ok := d.windows[win]
	d.winMu.Unlock()
	if !ok {
		return 0, ErrWindowNotClaimed
	}
	return sc.format, nil
}

// AcquireSwapchainTexture returns a texture to render this frame into,
// or nil without error when the frame-in-flight budget is exhausted or
// the window is not presentable. The texture is valid only on this
// command buffer and is presented when the buffer is submitted; a
// command buffer holding one can no longer be canceled.
func (cb *CommandBuffer) AcquireSwapchainTexture(win Window) (*Texture, error) {
	return cb.acquireSwapchain(win, false)
}

// WaitAndAcquireSwapchainTexture blocks until the frame-in-flight
// budget has room, then acquires like AcquireSwapchainTexture. It can
// still return nil without error when the window is not presentable.
func (cb *CommandBuffer) WaitAndAcquireSwapchainTexture(win Window) (*Texture, error) {
	return cb.acquireSwapchain(win, true)
}

func (cb *CommandBuffer) acquireSwapchain(win Window, wait bool) (*Texture, error) {
	if err := cb.checkOwner(); err != nil {
		return nil, err
	}
	cb.mu.Lock()
	err := cb.require()
	cb.mu.Unlock()
	if err != nil {
		return nil, err
	}

	d := cb.device
	d.winMu.Lock()
	sc, ok := d.windows[win]
	d.winMu.Unlock()
	if !ok {
		return nil, ErrWindowNotClaimed
	}
	if !win.Presentable() {
		return nil, nil
	}

	limit := d.AllowedFramesInFlight()
	sc.mu.Lock()
	if wait {
		for sc.inFlight >= limit {
			sc.cond.Wait()
		}
	} else if sc.inFlight >= limit {
		sc.mu.Unlock()
		return nil, nil
	}

	w, h := win.Size()
	idx, err := sc.surfaceLocked(uint32(w), uint32(h))
	if err != nil {
		sc.mu.Unlock()
		return nil, err
	}
	sc.inFlight++
	sc.ring[idx].inUse = true
	id := sc.ring[idx].id
	sc.mu.Unlock()

	inst := &cycleInstance{buffer: uint64(id)}
	tex := &Texture{
		device: d,
		slot: &resourceSlot{
			kind:      kindTexture,
			label:     "swapchain",
			instances: []*cycleInstance{inst},
		},
		width:  uint32(w),
		height: uint32(h),
		layers: 1, mipLevels: 1, samples: 1,
		format:    sc.format,
		usage:     TextureUsageColorTarget,
		swapchain: true,
	}

	cb.mu.Lock()
	cb.pin(inst)
	cb.presents = append(cb.presents, id)
	cb.frames = append(cb.frames, frameCredit{sc: sc, idx: idx})
	cb.mu.Unlock()
	return tex, nil
}

// surfaceLocked finds or creates a free surface texture matching the
// window's current size. Stale sizes are destroyed on the way.
// Caller holds sc.mu.
func (sc *swapchain) surfaceLocked(w, h uint32) (int, error) {
	for i := range sc.ring {
		st := &sc.ring[i]
		if st.inUse {
			continue
		}
		if st.w == w && st.h == h {
			return i, nil
		}
		sc.device.adapter.DestroyTexture(st.id)
		id, err := sc.device.adapter.CreateSurfaceTexture(w, h, sc.format)
		if err != nil {
			return 0, fmt.Errorf("cmdq: create surface texture: %w", err)
		}
		*st = surfaceTexture{id: id, w: w, h: h}
		return i, nil
	}
	id, err := sc.device.adapter.CreateSurfaceTexture(w, h, sc.format)
	if err != nil {
		return 0, fmt.Errorf("cmdq: create surface texture: %w", err)
	}
	sc.ring = append(sc.ring, surfaceTexture{id: id, w: w, h: h})
	return len(sc.ring) - 1, nil
}

// frameDone returns one frame's budget and frees the ring slot the
// completed submission acquired. Called from the submission goroutine
// on completion, and from CommandBuffer.abandon when a submission
// never made it onto the timeline.
func (sc *swapchain) frameDone(idx int) {
	sc.mu.Lock()
	sc.inFlight--
	if idx < len(sc.ring) {
		sc.ring[idx].inUse = false
	}
	sc.cond.Broadcast()
	sc.mu.Unlock()
}

func (sc *swapchain) destroy() {
	sc.mu.Lock()
	for _, st := range sc.ring {
		sc.device.adapter.DestroyTexture(st.id)
	}
	sc.ring = nil
	sc.mu.Unlock()
}
