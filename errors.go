package cmdq

import "errors"

// Creation failures. Returned from Device create calls when a
// descriptor is rejected; the resource is not created.
var (
	// ErrUnsupportedUsage is returned when a descriptor combines usage
	// flags the backend cannot satisfy in one resource.
	ErrUnsupportedUsage = errors.New("cmdq: unsupported usage flag combination")

	// ErrUnsupportedFormat is returned when a format is not supported
	// for the requested usage.
	ErrUnsupportedFormat = errors.New("cmdq: unsupported format")

	// ErrUnsupportedSampleCount is returned when a sample count is not
	// supported for the target format.
	ErrUnsupportedSampleCount = errors.New("cmdq: unsupported sample count")

	// ErrInvalidDescriptor is returned for descriptors that are
	// malformed independent of backend capabilities (zero sizes,
	// missing shaders, too many color targets).
	ErrInvalidDescriptor = errors.New("cmdq: invalid descriptor")

	// ErrNoSuitableBackend is returned by CreateDevice when no
	// registered backend accepts any of the requested shader formats.
	ErrNoSuitableBackend = errors.New("cmdq: no suitable backend")
)

// ErrSequencing is the root of all sequencing violations: opening a
// second pass, drawing without a bound pipeline, submitting from the
// wrong goroutine, reusing a submitted command buffer. These are
// programmer errors; the API reports them so tests and debug builds
// can catch them, but a release caller must simply never trigger them.
// All sequencing errors satisfy errors.Is(err, ErrSequencing).
var ErrSequencing = errors.New("cmdq: sequencing violation")

// Specific sequencing violations. Each wraps ErrSequencing.
var (
	// ErrPassOpen is returned when a pass is begun while another pass
	// is still open on the same command buffer.
	ErrPassOpen = seqError("a pass is already open on this command buffer")

	// ErrPassEnded is returned when an operation is issued on a pass
	// handle after its End call.
	ErrPassEnded = seqError("pass has already ended")

	// ErrNoPipeline is returned when a draw or dispatch is issued
	// before a pipeline is bound.
	ErrNoPipeline = seqError("no pipeline bound")

	// ErrNotRecording is returned when an operation is issued on a
	// command buffer that was already submitted or canceled.
	ErrNotRecording = seqError("command buffer is not recording")

	// ErrWrongGoroutine is returned when submit or cancel is called
	// from a goroutine other than the acquiring one.
	ErrWrongGoroutine = seqError("submit/cancel must happen on the acquiring goroutine")

	// ErrPresentPending is returned when cancel is attempted after a
	// swapchain texture was acquired on the command buffer.
	ErrPresentPending = seqError("cannot cancel after acquiring a swapchain texture")

	// ErrDeviceDestroyed is returned when the device was already
	// destroyed.
	ErrDeviceDestroyed = seqError("device destroyed")

	// ErrWindowNotClaimed is returned when a swapchain operation
	// references a window that was never claimed.
	ErrWindowNotClaimed = seqError("window not claimed for presentation")

	// ErrFenceReleased is returned when a fence is used after its
	// final Release.
	ErrFenceReleased = seqError("fence already released")
)

// seqError builds a sequencing sentinel wrapping ErrSequencing so that
// errors.Is(err, ErrSequencing) holds for every specific violation.
func seqError(msg string) error {
	return &sequencingError{msg: msg}
}

type sequencingError struct {
	msg string
}

func (e *sequencingError) Error() string { return "cmdq: " + e.msg }

func (e *sequencingError) Unwrap() error { return ErrSequencing }
