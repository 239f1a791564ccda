// Package gpucore provides the shared types of the cmdq command
// submission layer.
//
// This package defines the [Adapter] interface, which abstracts over
// different GPU backend implementations, allowing the same recording
// and submission machinery to work with:
//   - backend/native (Pure Go WebGPU via gogpu/wgpu HAL)
//   - backend/sim (CPU-simulated GPU timeline, used in tests)
//
// It also defines the descriptor structs, capability/usage bitmasks,
// and the typed command structures that command buffers record and
// adapters execute. Commands are typed structs rather than a binary
// stream so that submissions stay inspectable and the simulated
// backend can replay them exactly.
//
// gpucore is imported by both the root cmdq package and the backend
// packages; it must not import either of them.
package gpucore
