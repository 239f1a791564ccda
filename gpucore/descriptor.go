package gpucore

// Resource descriptors.
//
// Descriptors are plain configuration structs validated at creation
// time. Unsupported combinations are rejected by the device before the
// adapter ever sees them; adapters may apply additional backend
// restrictions on top.

// BufferDescriptor describes a GPU buffer.
type BufferDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Size is the buffer size in bytes. Must be positive.
	Size uint64

	// Usage is the set of ways the buffer will be used.
	Usage BufferUsage
}

// TextureDescriptor describes a GPU texture.
type TextureDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Width and Height are the level-0 dimensions in texels.
	Width, Height uint32

	// LayerCountOrDepth is the array layer count (2D) or depth (3D).
	// Zero is treated as 1.
	LayerCountOrDepth uint32

	// MipLevelCount is the number of mip levels. Zero is treated as 1.
	MipLevelCount uint32

	// SampleCount is the multisample count. Zero is treated as 1.
	SampleCount uint32

	// Format is the texel format.
	Format TextureFormat

	// Usage is the set of ways the texture will be used.
	Usage TextureUsage
}

// SamplerDescriptor describes a texture sampler.
type SamplerDescriptor struct {
	Label string

	MinFilter FilterMode
	MagFilter FilterMode
	MipFilter FilterMode

	AddressU AddressMode
	AddressV AddressMode
	AddressW AddressMode

	MaxAnisotropy uint32
}

// ShaderDescriptor describes a shader module.
type ShaderDescriptor struct {
	Label string

	// Format declares the format of Code. Exactly one bit must be set,
	// and it must be in the device's negotiated format set.
	Format ShaderFormat

	// Code is the shader bytecode or source text.
	Code []byte

	// EntryPoint is the entry function name. Empty means "main".
	EntryPoint string

	// Stage is the pipeline stage the shader targets.
	Stage ShaderStage

	// NumSamplers and NumUniformBuffers declare how many sampler and
	// uniform-buffer bindings the shader consumes. Backends without
	// shader reflection use these to build binding layouts.
	NumSamplers       uint32
	NumUniformBuffers uint32
}

// VertexAttribute describes one vertex input attribute.
type VertexAttribute struct {
	// Location is the shader input location.
	Location uint32

	// BufferSlot selects which bound vertex buffer supplies the data.
	BufferSlot uint32

	// Offset is the byte offset within one vertex element.
	Offset uint32

	// ComponentCount is the number of float32 components (1-4).
	ComponentCount uint32
}

// VertexBufferLayout describes the stride of one vertex buffer slot.
type VertexBufferLayout struct {
	Slot  uint32
	Pitch uint32

	// PerInstance steps the slot per instance instead of per vertex.
	PerInstance bool
}

// ColorTargetDescription describes one color target of a graphics
// pipeline.
type ColorTargetDescription struct {
	Format TextureFormat

	// BlendEnabled turns on standard premultiplied alpha blending.
	BlendEnabled bool
}

// GraphicsPipelineDescriptor describes a graphics pipeline.
type GraphicsPipelineDescriptor struct {
	Label string

	VertexShader   ShaderID
	FragmentShader ShaderID

	Topology         PrimitiveTopology
	VertexBuffers    []VertexBufferLayout
	VertexAttributes []VertexAttribute

	ColorTargets       []ColorTargetDescription
	DepthStencilFormat TextureFormat // zero when no depth-stencil target
	SampleCount        uint32        // zero is treated as 1
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label string

	Shader ShaderID

	// ThreadCountX/Y/Z are the workgroup dimensions declared by the
	// shader. Informational for backends that cannot introspect.
	ThreadCountX, ThreadCountY, ThreadCountZ uint32

	// Binding counts, in layout order: uniforms, then read-write
	// storage, then read-only storage. Backends without shader
	// reflection use these to build binding layouts.
	NumUniformBuffers           uint32
	NumReadWriteStorageBuffers  uint32
	NumReadWriteStorageTextures uint32
	NumReadOnlyStorageBuffers   uint32
	NumReadOnlyStorageTextures  uint32
}
