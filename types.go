package cmdq

import "github.com/gogpu/cmdq/gpucore"

// The command-submission surface shares its value types with the
// backend contract. Aliases keep one definition in gpucore (imported
// by both this package and the backends) while letting applications
// import only cmdq.

// ShaderID names a compiled shader module in pipeline descriptors.
type ShaderID = gpucore.ShaderID

// Capability and usage bitmasks.
type (
	ShaderFormat        = gpucore.ShaderFormat
	ShaderStage         = gpucore.ShaderStage
	BufferUsage         = gpucore.BufferUsage
	TransferBufferUsage = gpucore.TransferBufferUsage
	TextureUsage        = gpucore.TextureUsage
	TextureFormat       = gpucore.TextureFormat
)

// Pass and binding value types.
type (
	LoadOp            = gpucore.LoadOp
	StoreOp           = gpucore.StoreOp
	IndexFormat       = gpucore.IndexFormat
	FilterMode        = gpucore.FilterMode
	AddressMode       = gpucore.AddressMode
	PrimitiveTopology = gpucore.PrimitiveTopology
	Color             = gpucore.Color
	Viewport          = gpucore.Viewport
	Scissor           = gpucore.Scissor
	Extent3D          = gpucore.Extent3D
	Origin3D          = gpucore.Origin3D
)

// Descriptors.
type (
	BufferDescriptor           = gpucore.BufferDescriptor
	TextureDescriptor          = gpucore.TextureDescriptor
	SamplerDescriptor          = gpucore.SamplerDescriptor
	ShaderDescriptor           = gpucore.ShaderDescriptor
	VertexAttribute            = gpucore.VertexAttribute
	VertexBufferLayout         = gpucore.VertexBufferLayout
	ColorTargetDescription     = gpucore.ColorTargetDescription
	GraphicsPipelineDescriptor = gpucore.GraphicsPipelineDescriptor
	ComputePipelineDescriptor  = gpucore.ComputePipelineDescriptor
)

// Indirect argument records.
type (
	DrawIndirectArgs        = gpucore.DrawIndirectArgs
	DrawIndexedIndirectArgs = gpucore.DrawIndexedIndirectArgs
	DispatchIndirectArgs    = gpucore.DispatchIndirectArgs
)

// Shader formats.
const (
	ShaderFormatSPIRV = gpucore.ShaderFormatSPIRV
	ShaderFormatWGSL  = gpucore.ShaderFormatWGSL
	ShaderFormatDXIL  = gpucore.ShaderFormatDXIL
	ShaderFormatMSL   = gpucore.ShaderFormatMSL
)

// Shader stages.
const (
	ShaderStageVertex   = gpucore.ShaderStageVertex
	ShaderStageFragment = gpucore.ShaderStageFragment
	ShaderStageCompute  = gpucore.ShaderStageCompute
)

// Buffer usage flags.
const (
	BufferUsageVertex              = gpucore.BufferUsageVertex
	BufferUsageIndex               = gpucore.BufferUsageIndex
	BufferUsageIndirect            = gpucore.BufferUsageIndirect
	BufferUsageUniform             = gpucore.BufferUsageUniform
	BufferUsageGraphicsStorageRead = gpucore.BufferUsageGraphicsStorageRead
	BufferUsageComputeStorageRead  = gpucore.BufferUsageComputeStorageRead
	BufferUsageComputeStorageWrite = gpucore.BufferUsageComputeStorageWrite
)

// Transfer buffer usages.
const (
	TransferBufferUpload   = gpucore.TransferBufferUpload
	TransferBufferDownload = gpucore.TransferBufferDownload
)

// Texture usage flags.
const (
	TextureUsageSampler             = gpucore.TextureUsageSampler
	TextureUsageColorTarget         = gpucore.TextureUsageColorTarget
	TextureUsageDepthStencilTarget  = gpucore.TextureUsageDepthStencilTarget
	TextureUsageGraphicsStorageRead = gpucore.TextureUsageGraphicsStorageRead
	TextureUsageComputeStorageRead  = gpucore.TextureUsageComputeStorageRead
	TextureUsageComputeStorageWrite = gpucore.TextureUsageComputeStorageWrite
)

// Texture formats.
const (
	TextureFormatRGBA8Unorm          = gpucore.TextureFormatRGBA8Unorm
	TextureFormatRGBA8UnormSRGB      = gpucore.TextureFormatRGBA8UnormSRGB
	TextureFormatBGRA8Unorm          = gpucore.TextureFormatBGRA8Unorm
	TextureFormatBGRA8UnormSRGB      = gpucore.TextureFormatBGRA8UnormSRGB
	TextureFormatR8Unorm             = gpucore.TextureFormatR8Unorm
	TextureFormatR32Float            = gpucore.TextureFormatR32Float
	TextureFormatRG32Float           = gpucore.TextureFormatRG32Float
	TextureFormatRGBA32Float         = gpucore.TextureFormatRGBA32Float
	TextureFormatDepth32Float        = gpucore.TextureFormatDepth32Float
	TextureFormatDepth24PlusStencil8 = gpucore.TextureFormatDepth24PlusStencil8
)

// Load and store operations.
const (
	LoadOpLoad     = gpucore.LoadOpLoad
	LoadOpClear    = gpucore.LoadOpClear
	LoadOpDontCare = gpucore.LoadOpDontCare

	StoreOpStore           = gpucore.StoreOpStore
	StoreOpDontCare        = gpucore.StoreOpDontCare
	StoreOpResolve         = gpucore.StoreOpResolve
	StoreOpResolveAndStore = gpucore.StoreOpResolveAndStore
)

// Index formats.
const (
	IndexFormatUint16 = gpucore.IndexFormatUint16
	IndexFormatUint32 = gpucore.IndexFormatUint32
)

// Sampler modes.
const (
	FilterModeNearest = gpucore.FilterModeNearest
	FilterModeLinear  = gpucore.FilterModeLinear

	AddressModeClampToEdge  = gpucore.AddressModeClampToEdge
	AddressModeRepeat       = gpucore.AddressModeRepeat
	AddressModeMirrorRepeat = gpucore.AddressModeMirrorRepeat
)

// Primitive topologies.
const (
	PrimitiveTopologyTriangleList  = gpucore.PrimitiveTopologyTriangleList
	PrimitiveTopologyTriangleStrip = gpucore.PrimitiveTopologyTriangleStrip
	PrimitiveTopologyLineList      = gpucore.PrimitiveTopologyLineList
	PrimitiveTopologyLineStrip     = gpucore.PrimitiveTopologyLineStrip
	PrimitiveTopologyPointList     = gpucore.PrimitiveTopologyPointList
)

// Indirect record sizes, in bytes.
const (
	DrawIndirectArgsSize        = gpucore.DrawIndirectArgsSize
	DrawIndexedIndirectArgsSize = gpucore.DrawIndexedIndirectArgsSize
	DispatchIndirectArgsSize    = gpucore.DispatchIndirectArgsSize
)

// MaxUniformSlots is the number of numbered uniform slots per stage.
const MaxUniformSlots = gpucore.MaxUniformSlots

// MaxColorTargets is the maximum number of color targets in a render pass.
const MaxColorTargets = gpucore.MaxColorTargets
