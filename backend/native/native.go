// Package native provides the hardware backend built on the wgpu HAL.
//
// The native backend opens a Vulkan device through hal and replays
// submissions as real command encoders, passes, and queue submits.
// Transfer buffers are CPU shadows moved with queue writes and staged
// readbacks, so the fence-confirmation contract holds: by the time
// Execute returns, downloads have landed in the shadow bytes.
//
// Importing the package registers it:
//
//	import _ "github.com/gogpu/cmdq/backend/native"
//
// Presentation is not wired yet: surface textures are allocated as
// ordinary render attachments and Present is a no-op. TODO: connect
// Present to a hal surface swapchain once hal exposes one.
package native

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Vulkan is the only hal driver the backend targets today.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/cmdq/backend"
	"github.com/gogpu/cmdq/gpucore"
)

func init() {
	backend.Register(backend.BackendNative, func() gpucore.Adapter { return New() })
}

// Adapter is the hal-backed hardware backend. Resource creation is
// safe for concurrent use; Execute is serialized by the device's
// submission goroutine.
type Adapter struct {
	mu     sync.Mutex
	logger *slog.Logger

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	// external is set when the device and queue were injected through
	// SetDeviceProvider. Injected handles are never destroyed here.
	external   bool
	open       bool
	deviceName string

	nextID    uint64
	buffers   map[gpucore.BufferID]*nativeBuffer
	textures  map[gpucore.TextureID]*nativeTexture
	transfers map[gpucore.TransferBufferID]*nativeTransfer
	samplers  map[gpucore.SamplerID]hal.Sampler
	shaders   map[gpucore.ShaderID]*nativeShader
	pipelines map[gpucore.PipelineID]*nativePipeline
}

// New returns an unopened native adapter.
func New() *Adapter {
	return &Adapter{
		buffers:   make(map[gpucore.BufferID]*nativeBuffer),
		textures:  make(map[gpucore.TextureID]*nativeTexture),
		transfers: make(map[gpucore.TransferBufferID]*nativeTransfer),
		samplers:  make(map[gpucore.SamplerID]hal.Sampler),
		shaders:   make(map[gpucore.ShaderID]*nativeShader),
		pipelines: make(map[gpucore.PipelineID]*nativePipeline),
	}
}

// Name implements gpucore.Adapter.
func (a *Adapter) Name() string { return backend.BackendNative }

// ShaderFormats implements gpucore.Adapter. WGSL is handed to hal
// directly; SPIR-V words are wrapped as-is. Both end up as hal shader
// modules.
func (a *Adapter) ShaderFormats() gpucore.ShaderFormat {
	return gpucore.ShaderFormatWGSL | gpucore.ShaderFormatSPIRV
}

// DeviceName implements gpucore.Adapter.
func (a *Adapter) DeviceName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deviceName != "" {
		return a.deviceName
	}
	return "native device"
}

// DriverName implements gpucore.Adapter.
func (a *Adapter) DriverName() string { return "wgpu-hal/vulkan" }

// SupportsTextureFormat implements gpucore.Adapter.
func (a *Adapter) SupportsTextureFormat(format gpucore.TextureFormat, usage gpucore.TextureUsage) bool {
	_, err := mapTextureFormat(format)
	return err == nil
}

// SupportsSampleCount implements gpucore.Adapter. Vulkan guarantees 1x
// and 4x for the color formats the layer exposes.
func (a *Adapter) SupportsSampleCount(format gpucore.TextureFormat, samples uint32) bool {
	return samples == 1 || samples == 4
}

// SetLogger allows the device to propagate its logger.
func (a *Adapter) SetLogger(l *slog.Logger) {
	a.mu.Lock()
	a.logger = l
	a.mu.Unlock()
}

func (a *Adapter) log() *slog.Logger {
	a.mu.Lock()
	l := a.logger
	a.mu.Unlock()
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}

// logLocked returns the logger without taking the mutex. Callers hold it.
func (a *Adapter) logLocked() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// SetDeviceProvider switches the adapter to a shared hal device from
// an external provider instead of opening its own Vulkan device. The
// provider must expose HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. Must be called before the adapter is
// handed to a device.
func (a *Adapter) SetDeviceProvider(provider gpucontext.DeviceProvider) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("native: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("native: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("native: provider HalQueue is not hal.Queue")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open {
		return fmt.Errorf("native: adapter already open")
	}
	a.device = device
	a.queue = queue
	a.external = true
	a.deviceName = "external device"
	return nil
}

// Open implements gpucore.Adapter. Unless a device was injected via
// SetDeviceProvider, Open brings up Vulkan: instance, adapter
// enumeration preferring discrete then integrated GPUs, and a device
// with default features and limits.
func (a *Adapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open {
		return nil
	}
	if a.external {
		a.open = true
		return nil
	}

	hb, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("native: vulkan backend not available")
	}
	instance, err := hb.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return fmt.Errorf("native: no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("native: open device: %w", err)
	}

	a.instance = instance
	a.device = openDev.Device
	a.queue = openDev.Queue
	a.deviceName = selected.Info.Name
	a.open = true
	if a.logger != nil {
		a.logger.Info("native: device opened", "adapter", selected.Info.Name)
	}
	return nil
}

// Close implements gpucore.Adapter. The device layer guarantees no
// submissions are in flight when Close is called.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return
	}
	a.open = false

	for id, p := range a.pipelines {
		a.destroyPipelineLocked(p)
		delete(a.pipelines, id)
	}
	for id, s := range a.shaders {
		a.device.DestroyShaderModule(s.module)
		delete(a.shaders, id)
	}
	for id, s := range a.samplers {
		a.device.DestroySampler(s)
		delete(a.samplers, id)
	}
	for id, t := range a.textures {
		a.device.DestroyTextureView(t.view)
		a.device.DestroyTexture(t.tex)
		delete(a.textures, id)
	}
	for id, b := range a.buffers {
		a.device.DestroyBuffer(b.handle)
		delete(a.buffers, id)
	}
	for id := range a.transfers {
		delete(a.transfers, id)
	}

	if !a.external {
		if a.device != nil {
			a.device.Destroy()
		}
		if a.instance != nil {
			a.instance.Destroy()
		}
	}
	a.device = nil
	a.queue = nil
	a.instance = nil
}

func (a *Adapter) id() uint64 {
	a.nextID++
	return a.nextID
}
