package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmdq/gpucore"
)

// nativeBuffer pairs a hal buffer with an optional CPU shadow. The
// shadow exists only for indirect-capable buffers: indirect draws are
// unrolled on the CPU, so the argument records must be readable
// without a GPU roundtrip. The shadow tracks CPU-side writes (uploads
// and buffer copies); storage writes from shaders are not reflected.
type nativeBuffer struct {
	handle hal.Buffer
	size   uint64
	usage  gpucore.BufferUsage
	shadow []byte
}

type nativeTexture struct {
	tex       hal.Texture
	view      hal.TextureView
	desc      gpucore.TextureDescriptor
	halFormat gputypes.TextureFormat
	surface   bool
}

// nativeTransfer is a plain CPU allocation. Uploads feed queue writes,
// downloads land here after a staged readback inside Execute.
type nativeTransfer struct {
	shadow []byte
	usage  gpucore.TransferBufferUsage
}

type nativeShader struct {
	module hal.ShaderModule
	desc   gpucore.ShaderDescriptor
}

type nativePipeline struct {
	graphics bool
	render   hal.RenderPipeline
	compute  hal.ComputePipeline

	layout     hal.PipelineLayout
	bindLayout hal.BindGroupLayout

	// Uniform slot counts per stage, used to assemble transient bind
	// groups at draw/dispatch time. Binding order within group 0:
	// vertex uniforms, then fragment uniforms. Compute pipelines use
	// the descriptor's declared layout order instead.
	vertexUniforms   uint32
	fragmentUniforms uint32
	computeDesc      gpucore.ComputePipelineDescriptor
}

// === Enum mapping ===

func mapTextureFormat(f gpucore.TextureFormat) (gputypes.TextureFormat, error) {
	switch f {
	case gpucore.TextureFormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case gpucore.TextureFormatRGBA8UnormSRGB:
		return gputypes.TextureFormatRGBA8UnormSrgb, nil
	case gpucore.TextureFormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm, nil
	case gpucore.TextureFormatBGRA8UnormSRGB:
		return gputypes.TextureFormatBGRA8UnormSrgb, nil
	case gpucore.TextureFormatR8Unorm:
		return gputypes.TextureFormatR8Unorm, nil
	case gpucore.TextureFormatR32Float:
		return gputypes.TextureFormatR32Float, nil
	case gpucore.TextureFormatRG32Float:
		return gputypes.TextureFormatRG32Float, nil
	case gpucore.TextureFormatRGBA32Float:
		return gputypes.TextureFormatRGBA32Float, nil
	case gpucore.TextureFormatDepth32Float:
		return gputypes.TextureFormatDepth32Float, nil
	case gpucore.TextureFormatDepth24PlusStencil8:
		return gputypes.TextureFormatDepth24PlusStencil8, nil
	default:
		return gputypes.TextureFormatUndefined, fmt.Errorf("native: unsupported texture format %d", f)
	}
}

func mapBufferUsage(u gpucore.BufferUsage) gputypes.BufferUsage {
	// Every buffer gets the copy bits so transfer commands always work.
	out := gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	if u&gpucore.BufferUsageVertex != 0 {
		out |= gputypes.BufferUsageVertex
	}
	if u&gpucore.BufferUsageIndex != 0 {
		out |= gputypes.BufferUsageIndex
	}
	if u&gpucore.BufferUsageUniform != 0 {
		out |= gputypes.BufferUsageUniform
	}
	if u&(gpucore.BufferUsageGraphicsStorageRead|
		gpucore.BufferUsageComputeStorageRead|
		gpucore.BufferUsageComputeStorageWrite) != 0 {
		out |= gputypes.BufferUsageStorage
	}
	return out
}

func mapTextureUsage(u gpucore.TextureUsage) gputypes.TextureUsage {
	out := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	if u&gpucore.TextureUsageSampler != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u&(gpucore.TextureUsageColorTarget|gpucore.TextureUsageDepthStencilTarget) != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	if u&(gpucore.TextureUsageGraphicsStorageRead|
		gpucore.TextureUsageComputeStorageRead|
		gpucore.TextureUsageComputeStorageWrite) != 0 {
		out |= gputypes.TextureUsageStorageBinding
	}
	return out
}

func mapFilter(f gpucore.FilterMode) gputypes.FilterMode {
	if f == gpucore.FilterModeLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

func mapAddress(m gpucore.AddressMode) gputypes.AddressMode {
	switch m {
	case gpucore.AddressModeRepeat:
		return gputypes.AddressModeRepeat
	case gpucore.AddressModeMirrorRepeat:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeClampToEdge
	}
}

func mapTopology(t gpucore.PrimitiveTopology) gputypes.PrimitiveTopology {
	switch t {
	case gpucore.PrimitiveTopologyTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip
	case gpucore.PrimitiveTopologyLineList:
		return gputypes.PrimitiveTopologyLineList
	case gpucore.PrimitiveTopologyLineStrip:
		return gputypes.PrimitiveTopologyLineStrip
	case gpucore.PrimitiveTopologyPointList:
		return gputypes.PrimitiveTopologyPointList
	default:
		return gputypes.PrimitiveTopologyTriangleList
	}
}

func mapIndexFormat(f gpucore.IndexFormat) gputypes.IndexFormat {
	if f == gpucore.IndexFormatUint32 {
		return gputypes.IndexFormatUint32
	}
	return gputypes.IndexFormatUint16
}

func mapVertexFormat(componentCount uint32) (gputypes.VertexFormat, error) {
	switch componentCount {
	case 1:
		return gputypes.VertexFormatFloat32, nil
	case 2:
		return gputypes.VertexFormatFloat32x2, nil
	case 3:
		return gputypes.VertexFormatFloat32x3, nil
	case 4:
		return gputypes.VertexFormatFloat32x4, nil
	default:
		return 0, fmt.Errorf("native: vertex attribute component count %d out of range", componentCount)
	}
}

// === Buffers ===

// CreateBuffer implements gpucore.Adapter.
func (a *Adapter) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return gpucore.InvalidID, fmt.Errorf("native: adapter not open")
	}
	buf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: mapBufferUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer: %w", err)
	}
	nb := &nativeBuffer{handle: buf, size: desc.Size, usage: desc.Usage}
	if desc.Usage&gpucore.BufferUsageIndirect != 0 {
		nb.shadow = make([]byte, desc.Size)
	}
	id := gpucore.BufferID(a.id())
	a.buffers[id] = nb
	return id, nil
}

// DestroyBuffer implements gpucore.Adapter.
func (a *Adapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	nb, ok := a.buffers[id]
	delete(a.buffers, id)
	open := a.open
	a.mu.Unlock()
	if ok && open {
		a.device.DestroyBuffer(nb.handle)
	}
}

// === Textures ===

// CreateTexture implements gpucore.Adapter. Each texture gets a full
// default view; render passes and copies address mips and layers
// through hal copy/attachment descriptors.
func (a *Adapter) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.createTextureLocked(desc, false)
}

func (a *Adapter) createTextureLocked(desc *gpucore.TextureDescriptor, surface bool) (gpucore.TextureID, error) {
	if !a.open {
		return gpucore.InvalidID, fmt.Errorf("native: adapter not open")
	}
	format, err := mapTextureFormat(desc.Format)
	if err != nil {
		return gpucore.InvalidID, err
	}
	depth := desc.LayerCountOrDepth
	if depth == 0 {
		depth = 1
	}
	mips := desc.MipLevelCount
	if mips == 0 {
		mips = 1
	}
	samples := desc.SampleCount
	if samples == 0 {
		samples = 1
	}
	tex, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: depth,
		},
		MipLevelCount: mips,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         mapTextureUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create texture: %w", err)
	}
	view, err := a.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: desc.Label})
	if err != nil {
		a.device.DestroyTexture(tex)
		return gpucore.InvalidID, fmt.Errorf("native: create texture view: %w", err)
	}
	id := gpucore.TextureID(a.id())
	a.textures[id] = &nativeTexture{
		tex:       tex,
		view:      view,
		desc:      *desc,
		halFormat: format,
		surface:   surface,
	}
	return id, nil
}

// DestroyTexture implements gpucore.Adapter.
func (a *Adapter) DestroyTexture(id gpucore.TextureID) {
	a.mu.Lock()
	nt, ok := a.textures[id]
	delete(a.textures, id)
	open := a.open
	a.mu.Unlock()
	if ok && open {
		a.device.DestroyTextureView(nt.view)
		a.device.DestroyTexture(nt.tex)
	}
}

// === Transfer buffers ===

// CreateTransferBuffer implements gpucore.Adapter.
func (a *Adapter) CreateTransferBuffer(size uint64, usage gpucore.TransferBufferUsage) (gpucore.TransferBufferID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return gpucore.InvalidID, fmt.Errorf("native: adapter not open")
	}
	id := gpucore.TransferBufferID(a.id())
	a.transfers[id] = &nativeTransfer{shadow: make([]byte, size), usage: usage}
	return id, nil
}

// DestroyTransferBuffer implements gpucore.Adapter.
func (a *Adapter) DestroyTransferBuffer(id gpucore.TransferBufferID) {
	a.mu.Lock()
	delete(a.transfers, id)
	a.mu.Unlock()
}

// MapTransferBuffer implements gpucore.Adapter.
func (a *Adapter) MapTransferBuffer(id gpucore.TransferBufferID) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	nt, ok := a.transfers[id]
	if !ok {
		return nil, fmt.Errorf("native: unknown transfer buffer %d", id)
	}
	return nt.shadow, nil
}

// UnmapTransferBuffer implements gpucore.Adapter. The shadow is plain
// host memory, so unmap has nothing to flush.
func (a *Adapter) UnmapTransferBuffer(id gpucore.TransferBufferID) {}

// === Samplers ===

// CreateSampler implements gpucore.Adapter.
func (a *Adapter) CreateSampler(desc *gpucore.SamplerDescriptor) (gpucore.SamplerID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return gpucore.InvalidID, fmt.Errorf("native: adapter not open")
	}
	s, err := a.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: mapAddress(desc.AddressU),
		AddressModeV: mapAddress(desc.AddressV),
		AddressModeW: mapAddress(desc.AddressW),
		MagFilter:    mapFilter(desc.MagFilter),
		MinFilter:    mapFilter(desc.MinFilter),
		MipmapFilter: mapFilter(desc.MipFilter),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create sampler: %w", err)
	}
	id := gpucore.SamplerID(a.id())
	a.samplers[id] = s
	return id, nil
}

// DestroySampler implements gpucore.Adapter.
func (a *Adapter) DestroySampler(id gpucore.SamplerID) {
	a.mu.Lock()
	s, ok := a.samplers[id]
	delete(a.samplers, id)
	open := a.open
	a.mu.Unlock()
	if ok && open {
		a.device.DestroySampler(s)
	}
}

// === Shaders ===

// CreateShader implements gpucore.Adapter. WGSL source is compiled to
// SPIR-V through naga; SPIR-V input is re-packed into words. Either
// way hal receives SPIR-V, which is what the Vulkan driver consumes.
func (a *Adapter) CreateShader(desc *gpucore.ShaderDescriptor) (gpucore.ShaderID, error) {
	var words []uint32
	switch desc.Format {
	case gpucore.ShaderFormatWGSL:
		spirvBytes, err := naga.Compile(string(desc.Code))
		if err != nil {
			return gpucore.InvalidID, fmt.Errorf("native: compile shader %q: %w", desc.Label, err)
		}
		words = spirvWords(spirvBytes)
	case gpucore.ShaderFormatSPIRV:
		if len(desc.Code)%4 != 0 {
			return gpucore.InvalidID, fmt.Errorf("native: SPIR-V byte length %d is not word aligned", len(desc.Code))
		}
		words = spirvWords(desc.Code)
	default:
		return gpucore.InvalidID, fmt.Errorf("native: unsupported shader format %d", desc.Format)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return gpucore.InvalidID, fmt.Errorf("native: adapter not open")
	}
	module, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create shader module: %w", err)
	}
	id := gpucore.ShaderID(a.id())
	a.shaders[id] = &nativeShader{module: module, desc: *desc}
	return id, nil
}

// spirvWords re-packs little-endian SPIR-V bytes as 32-bit words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}

// DestroyShader implements gpucore.Adapter.
func (a *Adapter) DestroyShader(id gpucore.ShaderID) {
	a.mu.Lock()
	s, ok := a.shaders[id]
	delete(a.shaders, id)
	open := a.open
	a.mu.Unlock()
	if ok && open {
		a.device.DestroyShaderModule(s.module)
	}
}

func entryPoint(desc *gpucore.ShaderDescriptor) string {
	if desc.EntryPoint == "" {
		return "main"
	}
	return desc.EntryPoint
}

// === Pipelines ===

// CreateGraphicsPipeline implements gpucore.Adapter.
//
// The bind group layout is synthesized from the shaders' declared
// binding counts: vertex uniform slots first, fragment uniform slots
// after. Texture-sampler bindings are not wired on this backend yet;
// pipelines that declare samplers are created without those layout
// entries and draws depending on them will not sample correctly.
func (a *Adapter) CreateGraphicsPipeline(desc *gpucore.GraphicsPipelineDescriptor) (gpucore.PipelineID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return gpucore.InvalidID, fmt.Errorf("native: adapter not open")
	}
	vs, ok := a.shaders[desc.VertexShader]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("native: unknown vertex shader %d", desc.VertexShader)
	}
	var fs *nativeShader
	if desc.FragmentShader != gpucore.InvalidID {
		fs, ok = a.shaders[desc.FragmentShader]
		if !ok {
			return gpucore.InvalidID, fmt.Errorf("native: unknown fragment shader %d", desc.FragmentShader)
		}
	}

	var entries []gputypes.BindGroupLayoutEntry
	binding := uint32(0)
	for i := uint32(0); i < vs.desc.NumUniformBuffers; i++ {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageVertex,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
		binding++
	}
	if fs != nil {
		for i := uint32(0); i < fs.desc.NumUniformBuffers; i++ {
			entries = append(entries, gputypes.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			})
			binding++
		}
		if fs.desc.NumSamplers > 0 {
			a.logLocked().Warn("native: fragment sampler bindings are not wired yet",
				"pipeline", desc.Label, "samplers", fs.desc.NumSamplers)
		}
	}

	bindLayout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group layout: %w", err)
	}
	layout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		a.device.DestroyBindGroupLayout(bindLayout)
		return gpucore.InvalidID, fmt.Errorf("native: create pipeline layout: %w", err)
	}

	buffers, err := vertexLayouts(desc)
	if err != nil {
		a.device.DestroyPipelineLayout(layout)
		a.device.DestroyBindGroupLayout(bindLayout)
		return gpucore.InvalidID, err
	}

	hd := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs.module,
			EntryPoint: entryPoint(&vs.desc),
			Buffers:    buffers,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: mapTopology(desc.Topology),
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: max(desc.SampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
	}
	if fs != nil {
		targets := make([]gputypes.ColorTargetState, len(desc.ColorTargets))
		for i, ct := range desc.ColorTargets {
			format, ferr := mapTextureFormat(ct.Format)
			if ferr != nil {
				a.device.DestroyPipelineLayout(layout)
				a.device.DestroyBindGroupLayout(bindLayout)
				return gpucore.InvalidID, ferr
			}
			targets[i] = gputypes.ColorTargetState{
				Format:    format,
				WriteMask: gputypes.ColorWriteMaskAll,
			}
			if ct.BlendEnabled {
				blend := gputypes.BlendStatePremultiplied()
				targets[i].Blend = &blend
			}
		}
		hd.Fragment = &hal.FragmentState{
			Module:     fs.module,
			EntryPoint: entryPoint(&fs.desc),
			Targets:    targets,
		}
	}
	if desc.DepthStencilFormat != 0 {
		dsFormat, ferr := mapTextureFormat(desc.DepthStencilFormat)
		if ferr != nil {
			a.device.DestroyPipelineLayout(layout)
			a.device.DestroyBindGroupLayout(bindLayout)
			return gpucore.InvalidID, ferr
		}
		hd.DepthStencil = &hal.DepthStencilState{
			Format:            dsFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionAlways,
			StencilFront:      passThroughStencil(),
			StencilBack:       passThroughStencil(),
		}
	}

	pipeline, err := a.device.CreateRenderPipeline(hd)
	if err != nil {
		a.device.DestroyPipelineLayout(layout)
		a.device.DestroyBindGroupLayout(bindLayout)
		return gpucore.InvalidID, fmt.Errorf("native: create render pipeline: %w", err)
	}

	np := &nativePipeline{
		graphics:       true,
		render:         pipeline,
		layout:         layout,
		bindLayout:     bindLayout,
		vertexUniforms: vs.desc.NumUniformBuffers,
	}
	if fs != nil {
		np.fragmentUniforms = fs.desc.NumUniformBuffers
	}
	id := gpucore.PipelineID(a.id())
	a.pipelines[id] = np
	return id, nil
}

func passThroughStencil() hal.StencilFaceState {
	return hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
}

func vertexLayouts(desc *gpucore.GraphicsPipelineDescriptor) ([]gputypes.VertexBufferLayout, error) {
	buffers := make([]gputypes.VertexBufferLayout, len(desc.VertexBuffers))
	for i, vb := range desc.VertexBuffers {
		layout := gputypes.VertexBufferLayout{
			ArrayStride: uint64(vb.Pitch),
			StepMode:    gputypes.VertexStepModeVertex,
		}
		if vb.PerInstance {
			layout.StepMode = gputypes.VertexStepModeInstance
		}
		for _, attr := range desc.VertexAttributes {
			if attr.BufferSlot != vb.Slot {
				continue
			}
			format, err := mapVertexFormat(attr.ComponentCount)
			if err != nil {
				return nil, err
			}
			layout.Attributes = append(layout.Attributes, gputypes.VertexAttribute{
				Format:         format,
				Offset:         uint64(attr.Offset),
				ShaderLocation: attr.Location,
			})
		}
		buffers[i] = layout
	}
	return buffers, nil
}

// CreateComputePipeline implements gpucore.Adapter. The bind group
// layout follows the descriptor's declared binding order: uniform
// buffers, read-write storage buffers, then read-only storage
// buffers. Storage texture bindings are not wired on this backend.
func (a *Adapter) CreateComputePipeline(desc *gpucore.ComputePipelineDescriptor) (gpucore.PipelineID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return gpucore.InvalidID, fmt.Errorf("native: adapter not open")
	}
	sh, ok := a.shaders[desc.Shader]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("native: unknown compute shader %d", desc.Shader)
	}
	if desc.NumReadWriteStorageTextures > 0 || desc.NumReadOnlyStorageTextures > 0 {
		a.logLocked().Warn("native: storage texture bindings are not wired yet",
			"pipeline", desc.Label)
	}

	var entries []gputypes.BindGroupLayoutEntry
	binding := uint32(0)
	addBuffer := func(n uint32, t gputypes.BufferBindingType) {
		for i := uint32(0); i < n; i++ {
			entries = append(entries, gputypes.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: t},
			})
			binding++
		}
	}
	addBuffer(desc.NumUniformBuffers, gputypes.BufferBindingTypeUniform)
	addBuffer(desc.NumReadWriteStorageBuffers, gputypes.BufferBindingTypeStorage)
	addBuffer(desc.NumReadOnlyStorageBuffers, gputypes.BufferBindingTypeReadOnlyStorage)

	bindLayout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group layout: %w", err)
	}
	layout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		a.device.DestroyBindGroupLayout(bindLayout)
		return gpucore.InvalidID, fmt.Errorf("native: create pipeline layout: %w", err)
	}
	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Compute: hal.ComputeState{
			Module:     sh.module,
			EntryPoint: entryPoint(&sh.desc),
		},
	})
	if err != nil {
		a.device.DestroyPipelineLayout(layout)
		a.device.DestroyBindGroupLayout(bindLayout)
		return gpucore.InvalidID, fmt.Errorf("native: create compute pipeline: %w", err)
	}

	id := gpucore.PipelineID(a.id())
	a.pipelines[id] = &nativePipeline{
		compute:     pipeline,
		layout:      layout,
		bindLayout:  bindLayout,
		computeDesc: *desc,
	}
	return id, nil
}

// DestroyPipeline implements gpucore.Adapter.
func (a *Adapter) DestroyPipeline(id gpucore.PipelineID) {
	a.mu.Lock()
	p, ok := a.pipelines[id]
	delete(a.pipelines, id)
	open := a.open
	a.mu.Unlock()
	if ok && open {
		a.destroyPipelineLocked(p)
	}
}

func (a *Adapter) destroyPipelineLocked(p *nativePipeline) {
	if p.graphics {
		a.device.DestroyRenderPipeline(p.render)
	} else {
		a.device.DestroyComputePipeline(p.compute)
	}
	a.device.DestroyPipelineLayout(p.layout)
	a.device.DestroyBindGroupLayout(p.bindLayout)
}

// === Presentation ===

// CreateSurfaceTexture implements gpucore.Adapter. Surface textures
// are plain render attachments until hal grows a surface API.
func (a *Adapter) CreateSurfaceTexture(width, height uint32, format gpucore.TextureFormat) (gpucore.TextureID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.createTextureLocked(&gpucore.TextureDescriptor{
		Label:  "surface",
		Width:  width,
		Height: height,
		Format: format,
		Usage:  gpucore.TextureUsageColorTarget,
	}, true)
}

// Present implements gpucore.Adapter. No-op pending hal surface
// support; the rendered image stays in the surface texture.
func (a *Adapter) Present(id gpucore.TextureID) error {
	a.mu.Lock()
	nt, ok := a.textures[id]
	a.mu.Unlock()
	if !ok || !nt.surface {
		return fmt.Errorf("native: texture %d is not a surface texture", id)
	}
	a.log().Debug("native: present skipped, no surface attached", "texture", uint64(id))
	return nil
}
