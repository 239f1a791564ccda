package cmdq

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// testWindow is a fake presentation surface.
type testWindow struct {
	mu          sync.Mutex
	w, h        int
	presentable bool
}

func newTestWindow(w, h int) *testWindow {
	return &testWindow{w: w, h: h, presentable: true}
}

func (tw *testWindow) Size() (int, int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.w, tw.h
}

func (tw *testWindow) Presentable() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.presentable
}

func (tw *testWindow) resize(w, h int) {
	tw.mu.Lock()
	tw.w, tw.h = w, h
	tw.mu.Unlock()
}

func (tw *testWindow) setPresentable(p bool) {
	tw.mu.Lock()
	tw.presentable = p
	tw.mu.Unlock()
}

func TestClaimWindow(t *testing.T) {
	d, _ := newTestDevice(t, false)
	win := newTestWindow(8, 8)

	if err := d.ClaimWindow(nil); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("ClaimWindow(nil) = %v, want ErrInvalidDescriptor", err)
	}
	if err := d.ClaimWindow(win); err != nil {
		t.Fatalf("ClaimWindow: %v", err)
	}
	if err := d.ClaimWindow(win); !errors.Is(err, ErrSequencing) {
		t.Errorf("double claim = %v, want a sequencing error", err)
	}

	format, err := d.SwapchainTextureFormat(win)
	if err != nil {
		t.Fatalf("SwapchainTextureFormat: %v", err)
	}
	if format != TextureFormatBGRA8Unorm {
		t.Errorf("swapchain format = %d, want BGRA8", format)
	}

	if err := d.ReleaseWindow(win); err != nil {
		t.Fatalf("ReleaseWindow: %v", err)
	}
	if err := d.ReleaseWindow(win); !errors.Is(err, ErrWindowNotClaimed) {
		t.Errorf("double release = %v, want ErrWindowNotClaimed", err)
	}
	if _, err := d.SwapchainTextureFormat(win); !errors.Is(err, ErrWindowNotClaimed) {
		t.Errorf("format after release = %v, want ErrWindowNotClaimed", err)
	}
}

func TestAcquireSwapchainTexture_RequiresClaim(t *testing.T) {
	d, _ := newTestDevice(t, false)
	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	defer cb.Cancel()

	if _, err := cb.AcquireSwapchainTexture(newTestWindow(8, 8)); !errors.Is(err, ErrWindowNotClaimed) {
		t.Errorf("acquire on unclaimed window = %v, want ErrWindowNotClaimed", err)
	}
}

func TestAcquireSwapchainTexture_PresentFlow(t *testing.T) {
	d, adapter := newTestDevice(t, false)
	win := newTestWindow(32, 16)
	if err := d.ClaimWindow(win); err != nil {
		t.Fatalf("ClaimWindow: %v", err)
	}

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	tex, err := cb.AcquireSwapchainTexture(win)
	if err != nil {
		t.Fatalf("AcquireSwapchainTexture: %v", err)
	}
	if tex == nil {
		t.Fatal("AcquireSwapchainTexture returned nil with budget available")
	}
	if tex.Width() != 32 || tex.Height() != 16 {
		t.Errorf("swapchain texture = %dx%d, want 32x16", tex.Width(), tex.Height())
	}
	if tex.Format() != TextureFormatBGRA8Unorm {
		t.Errorf("swapchain texture format = %d, want BGRA8", tex.Format())
	}

	rp, err := cb.BeginRenderPass([]ColorTargetBinding{{
		Texture: tex,
		LoadOp:  LoadOpClear,
		StoreOp: StoreOpStore,
	}}, nil)
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	if err := rp.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := cb.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	d.WaitForIdle()

	if got := adapter.Presents(); got != 1 {
		t.Errorf("Presents() = %d, want 1", got)
	}
	if got := d.Stats().Presents; got != 1 {
		t.Errorf("Stats().Presents = %d, want 1", got)
	}
}

func TestAcquireSwapchainTexture_NotPresentable(t *testing.T) {
	d, _ := newTestDevice(t, false)
	win := newTestWindow(8, 8)
	win.setPresentable(false)
	if err := d.ClaimWindow(win); err != nil {
		t.Fatalf("ClaimWindow: %v", err)
	}

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	defer cb.Cancel()

	// A minimized window yields nil without error: the frame is simply
	// skipped.
	tex, err := cb.AcquireSwapchainTexture(win)
	if err != nil || tex != nil {
		t.Errorf("acquire on unpresentable window = (%v, %v), want (nil, nil)", tex, err)
	}
	tex, err = cb.WaitAndAcquireSwapchainTexture(win)
	if err != nil || tex != nil {
		t.Errorf("blocking acquire on unpresentable window = (%v, %v), want (nil, nil)", tex, err)
	}
}

func TestAcquireSwapchainTexture_BudgetExhausted(t *testing.T) {
	d, _ := newTestDevice(t, false)
	if err := d.SetAllowedFramesInFlight(1); err != nil {
		t.Fatalf("SetAllowedFramesInFlight: %v", err)
	}
	win := newTestWindow(8, 8)
	if err := d.ClaimWindow(win); err != nil {
		t.Fatalf("ClaimWindow: %v", err)
	}

	cb1, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	if _, err := cb1.AcquireSwapchainTexture(win); err != nil {
		t.Fatalf("AcquireSwapchainTexture: %v", err)
	}

	// cb1 holds the single frame credit until it completes; a second
	// non-blocking acquire must come back empty.
	cb2, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	tex, err := cb2.AcquireSwapchainTexture(win)
	if err != nil || tex != nil {
		t.Errorf("acquire past budget = (%v, %v), want (nil, nil)", tex, err)
	}
	if err := cb2.Cancel(); err != nil {
		t.Fatalf("Cancel cb2: %v", err)
	}

	// Holding a swapchain texture commits the presentation slot.
	if err := cb1.Cancel(); !errors.Is(err, ErrPresentPending) {
		t.Errorf("Cancel with pending present = %v, want ErrPresentPending", err)
	}
	if err := cb1.Submit(); err != nil {
		t.Fatalf("Submit cb1: %v", err)
	}
	d.WaitForIdle()
}

func TestSwapchainTexture_OutOfOrderCompletion(t *testing.T) {
	d, _ := newTestDevice(t, false)
	win := newTestWindow(8, 8)
	if err := d.ClaimWindow(win); err != nil {
		t.Fatalf("ClaimWindow: %v", err)
	}

	cb1, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	tex1, err := cb1.AcquireSwapchainTexture(win)
	if err != nil || tex1 == nil {
		t.Fatalf("acquire on cb1 = (%v, %v)", tex1, err)
	}

	cb2, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	tex2, err := cb2.AcquireSwapchainTexture(win)
	if err != nil || tex2 == nil {
		t.Fatalf("acquire on cb2 = (%v, %v)", tex2, err)
	}

	// Submit the later-acquired frame first. Its completion must free
	// cb2's surface, not cb1's, which is still held by a recording
	// command buffer.
	if err := cb2.Submit(); err != nil {
		t.Fatalf("Submit cb2: %v", err)
	}
	d.WaitForIdle()

	cb3, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	tex3, err := cb3.AcquireSwapchainTexture(win)
	if err != nil || tex3 == nil {
		t.Fatalf("acquire on cb3 = (%v, %v)", tex3, err)
	}
	held := tex1.slot.currentInstance().buffer
	if got := tex3.slot.currentInstance().buffer; got == held {
		t.Errorf("surface texture %d handed out twice while cb1 still holds it", got)
	}

	if err := cb3.Submit(); err != nil {
		t.Fatalf("Submit cb3: %v", err)
	}
	if err := cb1.Submit(); err != nil {
		t.Fatalf("Submit cb1: %v", err)
	}
	d.WaitForIdle()
}

func TestWaitAndAcquireSwapchainTexture_Blocks(t *testing.T) {
	d, adapter := newTestDevice(t, false)
	adapter.Latency = 20 * time.Millisecond
	if err := d.SetAllowedFramesInFlight(1); err != nil {
		t.Fatalf("SetAllowedFramesInFlight: %v", err)
	}
	win := newTestWindow(8, 8)
	if err := d.ClaimWindow(win); err != nil {
		t.Fatalf("ClaimWindow: %v", err)
	}

	cb1, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	if _, err := cb1.AcquireSwapchainTexture(win); err != nil {
		t.Fatalf("AcquireSwapchainTexture: %v", err)
	}
	if err := cb1.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The blocking acquire rides out cb1's latency and then gets its
	// frame.
	cb2, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	tex, err := cb2.WaitAndAcquireSwapchainTexture(win)
	if err != nil {
		t.Fatalf("WaitAndAcquireSwapchainTexture: %v", err)
	}
	if tex == nil {
		t.Fatal("blocking acquire returned nil with a presentable window")
	}
	if err := cb2.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	d.WaitForIdle()

	if got := adapter.Presents(); got != 2 {
		t.Errorf("Presents() = %d, want 2", got)
	}
}

func TestSwapchainTexture_SurvivesResize(t *testing.T) {
	d, _ := newTestDevice(t, false)
	win := newTestWindow(8, 8)
	if err := d.ClaimWindow(win); err != nil {
		t.Fatalf("ClaimWindow: %v", err)
	}

	acquire := func() *Texture {
		cb, err := d.AcquireCommandBuffer()
		if err != nil {
			t.Fatalf("AcquireCommandBuffer: %v", err)
		}
		tex, err := cb.AcquireSwapchainTexture(win)
		if err != nil {
			t.Fatalf("AcquireSwapchainTexture: %v", err)
		}
		if err := cb.Submit(); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		d.WaitForIdle()
		return tex
	}

	if tex := acquire(); tex.Width() != 8 || tex.Height() != 8 {
		t.Errorf("texture = %dx%d, want 8x8", tex.Width(), tex.Height())
	}
	win.resize(16, 12)
	if tex := acquire(); tex.Width() != 16 || tex.Height() != 12 {
		t.Errorf("texture after resize = %dx%d, want 16x12", tex.Width(), tex.Height())
	}
}

func TestSwapchainTexture_ReleaseIsNoOp(t *testing.T) {
	d, _ := newTestDevice(t, false)
	win := newTestWindow(8, 8)
	if err := d.ClaimWindow(win); err != nil {
		t.Fatalf("ClaimWindow: %v", err)
	}

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	tex, err := cb.AcquireSwapchainTexture(win)
	if err != nil {
		t.Fatalf("AcquireSwapchainTexture: %v", err)
	}

	tex.Release()
	if tex.device == nil {
		t.Error("Release() detached a swapchain texture; it is owned by the window")
	}
	if err := cb.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	d.WaitForIdle()
}
