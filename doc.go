// Package cmdq is a command-submission and resource-cycling core for
// GPU workloads.
//
// # Overview
//
// cmdq sits between an application and a GPU backend. Applications
// record work into command buffers through typed passes (render,
// compute, copy), then submit; a single device goroutine executes
// submissions strictly in submission order, which defines the GPU
// timeline. Resources are logical handles over rings of physical
// allocations, and the cycling protocol lets the CPU overwrite a
// resource every frame without stalling on in-flight GPU reads.
//
// # Quick Start
//
//	device, err := cmdq.CreateDevice(cmdq.DeviceConfig{
//		ShaderFormats: cmdq.ShaderFormatWGSL,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer device.Destroy()
//
//	cb, _ := device.AcquireCommandBuffer()
//	pass, _ := cb.BeginCopyPass()
//	pass.UploadToBuffer(staging, 0, vertices, 0, size, true)
//	pass.End()
//	fence, _ := cb.SubmitAndAcquireFence()
//	device.WaitForFence(fence)
//	fence.Release()
//
// # Cycling
//
// Writes take a cycle flag. With cycle set, a write to a resource that
// pending GPU work still references transparently rotates to a fresh
// physical allocation; the handle keeps pointing at the newest data
// and completed allocations are reused on later rotations. With cycle
// unset, such a write is a synchronization hazard: contents become
// undefined, and devices created with Debug record and log it.
//
// Cycling trades memory for throughput. A resource rewritten every
// frame stabilizes at about as many physical instances as the device's
// frame-in-flight budget.
//
// # Threading
//
// A Device is safe for concurrent use and command buffers may be
// recorded in parallel, one goroutine each: every command buffer is
// bound to the goroutine that acquired it. The total order of Submit
// calls across all goroutines is the execution order on the GPU
// timeline.
//
// # Backends
//
// Backends register themselves in the backend package. The sim backend
// executes submissions against CPU memory and is always available; the
// native backend drives real hardware through wgpu. Importing a
// backend package for its side effects registers it:
//
//	import _ "github.com/gogpu/cmdq/backend/sim"
package cmdq
