package cmdq

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the numeric ID of the calling goroutine, parsed
// from the runtime stack header ("goroutine N [running]:"). It is used
// only to tag command buffers with their acquiring goroutine so that
// cross-goroutine submit/cancel can be detected, never for
// synchronization.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := buf[:n]
	s = bytes.TrimPrefix(s, []byte("goroutine "))
	if i := bytes.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	id, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
