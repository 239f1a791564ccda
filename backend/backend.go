package backend

import (
	"errors"

	"github.com/gogpu/cmdq/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNoFormatMatch is returned when no registered backend accepts
	// any of the requested shader formats.
	ErrNoFormatMatch = errors.New("backend: no backend accepts the requested shader formats")
)

// Backend name constants.
const (
	// BackendSim is the name of the CPU-simulated backend.
	BackendSim = "sim"

	// BackendNative is the name of the Pure Go GPU backend (gogpu/wgpu).
	BackendNative = "native"
)

// Factory creates a new adapter instance.
type Factory func() gpucore.Adapter
