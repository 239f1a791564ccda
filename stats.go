package cmdq

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/cmdq/gpucore"
)

// DeviceStats counts work that has completed on the GPU timeline.
// All fields are updated atomically from the submission goroutine.
type DeviceStats struct {
	Submissions atomic.Uint64
	Draws       atomic.Uint64
	Dispatches  atomic.Uint64
	Copies      atomic.Uint64
	Presents    atomic.Uint64
	Cycles      atomic.Uint64
	Hazards     atomic.Uint64
}

// DeviceStatsSnapshot is a plain-value copy of DeviceStats.
type DeviceStatsSnapshot struct {
	Submissions uint64
	Draws       uint64
	Dispatches  uint64
	Copies      uint64
	Presents    uint64
	Cycles      uint64
	Hazards     uint64
}

func (s *DeviceStats) snapshot() DeviceStatsSnapshot {
	return DeviceStatsSnapshot{
		Submissions: s.Submissions.Load(),
		Draws:       s.Draws.Load(),
		Dispatches:  s.Dispatches.Load(),
		Copies:      s.Copies.Load(),
		Presents:    s.Presents.Load(),
		Cycles:      s.Cycles.Load(),
		Hazards:     s.Hazards.Load(),
	}
}

// noteCompleted tallies one completed submission's command stream.
func (s *DeviceStats) noteCompleted(sub *gpucore.Submission) {
	s.Submissions.Add(1)
	s.Presents.Add(uint64(len(sub.Presents)))
	for _, cmd := range sub.Commands {
		switch cmd.Type() {
		case gpucore.CmdDraw, gpucore.CmdDrawIndexed, gpucore.CmdDrawIndirect, gpucore.CmdDrawIndexedIndirect:
			s.Draws.Add(1)
		case gpucore.CmdDispatch, gpucore.CmdDispatchIndirect:
			s.Dispatches.Add(1)
		case gpucore.CmdUploadToBuffer, gpucore.CmdUploadToTexture,
			gpucore.CmdDownloadFromBuffer, gpucore.CmdDownloadFromTexture,
			gpucore.CmdCopyBufferToBuffer, gpucore.CmdCopyTextureToTexture:
			s.Copies.Add(1)
		}
	}
}

func (s *DeviceStats) String() string {
	v := s.snapshot()
	return fmt.Sprintf("submissions=%d draws=%d dispatches=%d copies=%d presents=%d cycles=%d hazards=%d",
		v.Submissions, v.Draws, v.Dispatches, v.Copies, v.Presents, v.Cycles, v.Hazards)
}

// Hazard describes one detected synchronization hazard: a write to a
// resource instance still referenced by pending GPU work, performed
// without requesting a cycle.
type Hazard struct {
	Kind   string // resource kind ("buffer", "texture", "transfer buffer")
	Label  string // resource debug label, may be empty
	Detail string
}

func (h Hazard) String() string {
	if h.Label != "" {
		return fmt.Sprintf("%s %q: %s", h.Kind, h.Label, h.Detail)
	}
	return fmt.Sprintf("%s: %s", h.Kind, h.Detail)
}

// hazardLog is an append-only record of detected hazards. Only debug
// devices write to it.
type hazardLog struct {
	mu      sync.Mutex
	records []Hazard
}

func (l *hazardLog) add(h Hazard) {
	l.mu.Lock()
	l.records = append(l.records, h)
	l.mu.Unlock()
}

func (l *hazardLog) snapshot() []Hazard {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Hazard, len(l.records))
	copy(out, l.records)
	return out
}
