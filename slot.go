package cmdq

import (
	"sync"
	"sync/atomic"
)

// resourceKind distinguishes what a slot's instances are backed by.
type resourceKind uint8

const (
	kindBuffer resourceKind = iota
	kindTexture
	kindTransfer
)

// String returns the string representation of a resourceKind.
func (k resourceKind) String() string {
	switch k {
	case kindBuffer:
		return "buffer"
	case kindTexture:
		return "texture"
	case kindTransfer:
		return "transfer buffer"
	default:
		return "unknown"
	}
}

// cycleInstance is one physical backing allocation of a resource slot.
//
// refs counts the pending/active command buffers that reference the
// instance. A recording command buffer pins the instance the first
// time it binds or writes it; the device's submission goroutine
// releases every pin of a submission once it completes (canceling a
// command buffer releases immediately). An instance with refs > 0 is
// "bound" in the cycling protocol's sense.
type cycleInstance struct {
	buffer   uint64 // adapter ID; interpreted per the slot's kind
	refs     atomic.Int32
	creation uint64 // generation at which this instance became current
}

// bound reports whether any pending or active command buffer still
// references the instance. The answer is a live snapshot: a submission
// completing concurrently can unbind the instance immediately after.
func (ci *cycleInstance) bound() bool { return ci.refs.Load() > 0 }

// resourceSlot is the logical identity behind a Buffer, Texture, or
// TransferBuffer handle: an ordered ring of physical cycle instances,
// of which exactly one is "current" (the target of the next
// non-cycling write and of all new bindings).
//
// Cycling never discards data referenced by a command buffer. It only
// redirects future writes: if the current instance is bound, the slot
// advances to an unbound instance in the ring, allocating a fresh
// physical backing when none is free. The ring therefore grows to the
// high-water mark of concurrently in-flight copies and stays there.
type resourceSlot struct {
	mu sync.Mutex

	kind  resourceKind
	label string

	instances []*cycleInstance
	current   int

	// generation increments every time the slot rotates. Reads that
	// survived a rotation can compare generations to detect that their
	// instance is no longer current.
	generation uint64

	// allocate appends a new physical backing via the device's adapter.
	allocate func() (uint64, error)

	// released marks a slot whose handle was released; the instances
	// are destroyed by the device once their refs drain.
	released bool
}

// currentInstance returns the instance that new bindings and
// non-cycling writes target.
func (s *resourceSlot) currentInstance() *cycleInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instances[s.current]
}

// instanceCount returns the ring size (the physical allocation count).
func (s *resourceSlot) instanceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}

// writeTarget resolves the instance a write should land in, running
// the cycling algorithm when cycle is set.
//
// cycle == false: the current instance is returned unconditionally.
// The caller asserts nothing else touches the written region; if the
// instance is bound this is a synchronization hazard, reported via the
// hazard return so the debug validation layer can flag it.
//
// rotated reports whether the slot moved to a different instance, and
// is computed under the slot lock so concurrent writers each observe
// their own rotation exactly once.
//
// cycle == true: if the current instance is unbound it is kept (no
// allocation, no rotation). Otherwise the ring is scanned for an
// unbound instance; if none exists a new physical instance is
// allocated and appended. Either way the chosen instance becomes
// current and the prior instance's data, while intact for its pending
// readers, is no longer reachable through the slot.
func (s *resourceSlot) writeTarget(cycle bool) (ci *cycleInstance, rotated, hazard bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.instances[s.current]
	if !cycle {
		return cur, false, cur.bound(), nil
	}
	if !cur.bound() {
		return cur, false, false, nil
	}

	// Rotate: reuse the first unbound instance in ring order.
	n := len(s.instances)
	for i := 1; i < n; i++ {
		idx := (s.current + i) % n
		if inst := s.instances[idx]; !inst.bound() {
			s.generation++
			inst.creation = s.generation
			s.current = idx
			return inst, true, false, nil
		}
	}

	// Every instance is in flight; grow the ring.
	id, err := s.allocate()
	if err != nil {
		return nil, false, false, err
	}
	s.generation++
	inst := &cycleInstance{buffer: id, creation: s.generation}
	s.instances = append(s.instances, inst)
	s.current = len(s.instances) - 1
	return inst, true, false, nil
}
