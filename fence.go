package cmdq

import (
	"sync"
	"sync/atomic"
)

// Fence tracks completion of one submission on the GPU timeline.
// Fences are reference counted: the device holds a reference until the
// submission completes, and the caller holds one from
// SubmitAndAcquireFence until Release. The fence stays queryable as
// long as the caller's reference lives, even long after signaling.
type Fence struct {
	device   *Device
	done     chan struct{}
	err      error // submission error, set before done closes
	refs     atomic.Int32
	released atomic.Bool // caller reference dropped
}

func newFence(d *Device) *Fence {
	f := &Fence{device: d, done: make(chan struct{})}
	f.refs.Store(2) // one for the caller, one for the timeline
	d.fenceMu.Lock()
	d.liveFences++
	d.fenceMu.Unlock()
	return f
}

// signal is called exactly once, from the submission goroutine.
func (f *Fence) signal(err error) {
	f.err = err
	close(f.done)
	f.unref()
}

func (f *Fence) unref() {
	if f.refs.Add(-1) == 0 {
		f.device.fenceMu.Lock()
		f.device.liveFences--
		f.device.fenceMu.Unlock()
	}
}

// Query reports whether the fence has signaled. It never blocks.
func (f *Fence) Query() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err returns the submission's execution error, if any. Only
// meaningful after Query reports true or a wait returns. Calling Err
// after Release returns ErrFenceReleased.
func (f *Fence) Err() error {
	if f.released.Load() {
		return ErrFenceReleased
	}
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Release drops the caller's reference. The fence must not be waited
// on afterwards; Err reports ErrFenceReleased. Release is idempotent.
func (f *Fence) Release() {
	if f.released.Swap(true) {
		return
	}
	f.unref()
}

// WaitForFences blocks until fences signal. With waitAll true it waits
// for every fence; otherwise it returns as soon as any one signals.
// Passing no fences returns immediately.
func (d *Device) WaitForFences(fences []*Fence, waitAll bool) {
	if len(fences) == 0 {
		return
	}
	if waitAll {
		for _, f := range fences {
			<-f.done
		}
		return
	}
	first := make(chan struct{})
	var once sync.Once
	for _, f := range fences {
		go func(f *Fence) {
			<-f.done
			once.Do(func() { close(first) })
		}(f)
	}
	<-first
}

// WaitForFence blocks until the single fence signals.
func (d *Device) WaitForFence(f *Fence) {
	<-f.done
}
