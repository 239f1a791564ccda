package gpucore

// Resource IDs
//
// These opaque IDs represent backend resources. Each adapter
// implementation maintains a mapping between IDs and actual backend
// objects. IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a GPU buffer backing allocation.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture backing allocation.
type TextureID uint64

// TransferBufferID is an opaque handle to a CPU-visible staging allocation.
type TransferBufferID uint64

// SamplerID is an opaque handle to a texture sampler.
type SamplerID uint64

// ShaderID is an opaque handle to a compiled shader module.
type ShaderID uint64

// PipelineID is an opaque handle to a graphics or compute pipeline.
type PipelineID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// ShaderFormat is a bitmask of shader bytecode formats an adapter can
// consume. Device creation intersects the application's declared set
// with each adapter's set to select a backend.
type ShaderFormat uint32

// Shader formats.
const (
	// ShaderFormatSPIRV is SPIR-V bytecode (Vulkan-like backends).
	ShaderFormatSPIRV ShaderFormat = 1 << 0

	// ShaderFormatWGSL is WGSL source text (WebGPU backends).
	ShaderFormatWGSL ShaderFormat = 1 << 1

	// ShaderFormatDXIL is DXIL bytecode (D3D12-like backends).
	ShaderFormatDXIL ShaderFormat = 1 << 2

	// ShaderFormatMSL is Metal Shading Language source (Metal-like backends).
	ShaderFormatMSL ShaderFormat = 1 << 3
)

// Has reports whether f contains every format in want.
func (f ShaderFormat) Has(want ShaderFormat) bool { return f&want == want }

// Intersects reports whether f and other share at least one format.
func (f ShaderFormat) Intersects(other ShaderFormat) bool { return f&other != 0 }

// ShaderStage identifies the pipeline stage a shader or uniform slot
// belongs to.
type ShaderStage uint8

// Shader stages.
const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageFragment
	ShaderStageCompute
)

// String returns the string representation of a ShaderStage.
func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// MaxUniformSlots is the number of numbered uniform slots per stage.
const MaxUniformSlots = 4

// MaxColorTargets is the maximum number of color targets in a render pass.
const MaxColorTargets = 4

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageVertex indicates the buffer can supply vertex data.
	BufferUsageVertex BufferUsage = 1 << 0

	// BufferUsageIndex indicates the buffer can supply index data.
	BufferUsageIndex BufferUsage = 1 << 1

	// BufferUsageIndirect indicates the buffer can supply indirect
	// draw/dispatch argument records.
	BufferUsageIndirect BufferUsage = 1 << 2

	// BufferUsageUniform indicates the buffer can back uniform reads.
	BufferUsageUniform BufferUsage = 1 << 3

	// BufferUsageGraphicsStorageRead indicates the buffer can be read
	// as storage from graphics stages.
	BufferUsageGraphicsStorageRead BufferUsage = 1 << 4

	// BufferUsageComputeStorageRead indicates the buffer can be read
	// as storage from compute stages.
	BufferUsageComputeStorageRead BufferUsage = 1 << 5

	// BufferUsageComputeStorageWrite indicates the buffer can be
	// written as storage from compute stages.
	BufferUsageComputeStorageWrite BufferUsage = 1 << 6
)

// TransferBufferUsage selects the direction of a transfer buffer.
type TransferBufferUsage uint8

// Transfer buffer usages.
const (
	// TransferBufferUpload stages CPU data for upload to GPU resources.
	TransferBufferUpload TransferBufferUsage = iota

	// TransferBufferDownload receives GPU data for CPU readback.
	TransferBufferDownload
)

// TextureUsage is a bitmask specifying how a texture will be used.
type TextureUsage uint32

// Texture usage flags.
const (
	// TextureUsageSampler indicates the texture can be sampled in shaders.
	TextureUsageSampler TextureUsage = 1 << 0

	// TextureUsageColorTarget indicates the texture can be a render
	// pass color target.
	TextureUsageColorTarget TextureUsage = 1 << 1

	// TextureUsageDepthStencilTarget indicates the texture can be a
	// render pass depth-stencil target.
	TextureUsageDepthStencilTarget TextureUsage = 1 << 2

	// TextureUsageGraphicsStorageRead indicates storage reads from
	// graphics stages.
	TextureUsageGraphicsStorageRead TextureUsage = 1 << 3

	// TextureUsageComputeStorageRead indicates storage reads from
	// compute stages.
	TextureUsageComputeStorageRead TextureUsage = 1 << 4

	// TextureUsageComputeStorageWrite indicates storage writes from
	// compute stages.
	TextureUsageComputeStorageWrite TextureUsage = 1 << 5
)

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1

	// TextureFormatRGBA8UnormSRGB is 8-bit RGBA in sRGB color space.
	TextureFormatRGBA8UnormSRGB

	// TextureFormatBGRA8Unorm is 8-bit BGRA, normalized unsigned integer.
	TextureFormatBGRA8Unorm

	// TextureFormatBGRA8UnormSRGB is 8-bit BGRA in sRGB color space.
	TextureFormatBGRA8UnormSRGB

	// TextureFormatR8Unorm is 8-bit red channel only.
	TextureFormatR8Unorm

	// TextureFormatR32Float is 32-bit red channel only, floating point.
	TextureFormatR32Float

	// TextureFormatRG32Float is 32-bit RG, floating point.
	TextureFormatRG32Float

	// TextureFormatRGBA32Float is 32-bit RGBA, floating point.
	TextureFormatRGBA32Float

	// TextureFormatDepth32Float is a 32-bit floating point depth format.
	TextureFormatDepth32Float

	// TextureFormatDepth24PlusStencil8 is a combined depth-stencil format.
	TextureFormatDepth24PlusStencil8
)

// IsDepthStencil reports whether the format carries depth or stencil data.
func (f TextureFormat) IsDepthStencil() bool {
	return f == TextureFormatDepth32Float || f == TextureFormatDepth24PlusStencil8
}

// BytesPerTexel returns the byte size of one texel, or 0 for formats
// without a fixed texel size.
func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case TextureFormatR8Unorm:
		return 1
	case TextureFormatRGBA8Unorm, TextureFormatRGBA8UnormSRGB,
		TextureFormatBGRA8Unorm, TextureFormatBGRA8UnormSRGB,
		TextureFormatR32Float, TextureFormatDepth32Float,
		TextureFormatDepth24PlusStencil8:
		return 4
	case TextureFormatRG32Float:
		return 8
	case TextureFormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// LoadOp specifies how a render target's prior contents are treated at
// the beginning of a render pass.
type LoadOp uint8

// Load operations.
const (
	// LoadOpLoad preserves the target's existing contents.
	LoadOpLoad LoadOp = iota

	// LoadOpClear clears the target to the provided clear value.
	LoadOpClear

	// LoadOpDontCare leaves the initial contents undefined.
	LoadOpDontCare
)

// StoreOp specifies how a render target's contents are treated at the
// end of a render pass.
type StoreOp uint8

// Store operations.
const (
	// StoreOpStore writes pass results to the target.
	StoreOpStore StoreOp = iota

	// StoreOpDontCare leaves the target contents undefined after the pass.
	StoreOpDontCare

	// StoreOpResolve resolves multisampled results into the resolve
	// texture, leaving the multisample target undefined.
	StoreOpResolve

	// StoreOpResolveAndStore resolves multisampled results and also
	// stores the multisample contents.
	StoreOpResolveAndStore
)

// IndexFormat specifies the element size of an index buffer.
type IndexFormat uint8

// Index formats.
const (
	// IndexFormatUint16 is 16-bit indices.
	IndexFormatUint16 IndexFormat = iota

	// IndexFormatUint32 is 32-bit indices.
	IndexFormatUint32
)

// FilterMode selects how a sampler interpolates texels.
type FilterMode uint8

// Filter modes.
const (
	FilterModeNearest FilterMode = iota
	FilterModeLinear
)

// AddressMode selects how a sampler treats out-of-range coordinates.
type AddressMode uint8

// Address modes.
const (
	AddressModeClampToEdge AddressMode = iota
	AddressModeRepeat
	AddressModeMirrorRepeat
)

// PrimitiveTopology selects how vertices are assembled into primitives.
type PrimitiveTopology uint8

// Primitive topologies.
const (
	PrimitiveTopologyTriangleList PrimitiveTopology = iota
	PrimitiveTopologyTriangleStrip
	PrimitiveTopologyLineList
	PrimitiveTopologyLineStrip
	PrimitiveTopologyPointList
)

// Color is an RGBA clear color with float components.
type Color struct {
	R, G, B, A float64
}

// Viewport describes a viewport transform.
type Viewport struct {
	X, Y, W, H         float32
	MinDepth, MaxDepth float32
}

// Scissor describes a scissor rectangle in pixels.
type Scissor struct {
	X, Y, W, H uint32
}

// Extent3D is a texture region size in texels/layers.
type Extent3D struct {
	Width, Height, Depth uint32
}

// Origin3D is a texture region offset in texels/layers.
type Origin3D struct {
	X, Y, Z uint32
}

// TextureRegion selects a sub-region of one mip level of a texture.
type TextureRegion struct {
	Texture  TextureID
	MipLevel uint32
	Layer    uint32
	Origin   Origin3D
	Size     Extent3D
}

// BufferRegion selects a byte range of a buffer.
type BufferRegion struct {
	Buffer BufferID
	Offset uint64
	Size   uint64
}

// TransferRegion selects a byte range of a transfer buffer.
type TransferRegion struct {
	Transfer TransferBufferID
	Offset   uint64
	Size     uint64
}
