package gpucore

// Adapter abstracts over different GPU backend implementations.
//
// This interface is the fixed capability contract between the device
// layer and a backend. Implementations must be safe for concurrent use:
// resource creation may be called from any goroutine, while Execute is
// only ever called from the device's single submission goroutine.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying a resource still referenced by a pending submission
//     is undefined behavior (the device layer prevents it)
//   - IDs become invalid after destruction and must not be reused
type Adapter interface {
	// === Identity and capabilities ===

	// Name returns the backend identifier (e.g., "sim", "native").
	Name() string

	// ShaderFormats returns the set of shader formats the backend
	// accepts. Device creation selects the first registered backend
	// whose set intersects the application's.
	ShaderFormats() ShaderFormat

	// DeviceName returns a human-readable device description.
	// Valid only after Open.
	DeviceName() string

	// DriverName returns a human-readable driver description.
	DriverName() string

	// SupportsTextureFormat reports whether the format may be created
	// with the given usage set.
	SupportsTextureFormat(format TextureFormat, usage TextureUsage) bool

	// SupportsSampleCount reports whether the format supports the
	// given multisample count as a render target.
	SupportsSampleCount(format TextureFormat, samples uint32) bool

	// === Lifecycle ===

	// Open initializes the backend. Called once by the device before
	// any other method (except Name and ShaderFormats).
	Open() error

	// Close releases all backend resources. The adapter must not be
	// used after Close.
	Close()

	// === Resource creation ===

	// CreateBuffer allocates one physical buffer backing.
	CreateBuffer(desc *BufferDescriptor) (BufferID, error)

	// DestroyBuffer releases a buffer backing.
	DestroyBuffer(id BufferID)

	// CreateTexture allocates one physical texture backing.
	CreateTexture(desc *TextureDescriptor) (TextureID, error)

	// DestroyTexture releases a texture backing.
	DestroyTexture(id TextureID)

	// CreateTransferBuffer allocates a CPU-visible staging backing.
	CreateTransferBuffer(size uint64, usage TransferBufferUsage) (TransferBufferID, error)

	// DestroyTransferBuffer releases a staging backing.
	DestroyTransferBuffer(id TransferBufferID)

	// MapTransferBuffer returns a CPU-addressable byte window over the
	// whole staging allocation. The window stays valid until
	// UnmapTransferBuffer.
	MapTransferBuffer(id TransferBufferID) ([]byte, error)

	// UnmapTransferBuffer invalidates the window returned by Map.
	UnmapTransferBuffer(id TransferBufferID)

	// CreateSampler creates a sampler.
	CreateSampler(desc *SamplerDescriptor) (SamplerID, error)

	// DestroySampler releases a sampler.
	DestroySampler(id SamplerID)

	// CreateShader creates a shader module from the descriptor. The
	// descriptor's format is guaranteed to be in ShaderFormats().
	CreateShader(desc *ShaderDescriptor) (ShaderID, error)

	// DestroyShader releases a shader module.
	DestroyShader(id ShaderID)

	// CreateGraphicsPipeline creates a graphics pipeline.
	CreateGraphicsPipeline(desc *GraphicsPipelineDescriptor) (PipelineID, error)

	// CreateComputePipeline creates a compute pipeline.
	CreateComputePipeline(desc *ComputePipelineDescriptor) (PipelineID, error)

	// DestroyPipeline releases a pipeline of either kind.
	DestroyPipeline(id PipelineID)

	// === Presentation ===

	// CreateSurfaceTexture allocates a presentable texture for a
	// claimed window surface.
	CreateSurfaceTexture(width, height uint32, format TextureFormat) (TextureID, error)

	// Present queues a surface texture for display. Called from the
	// submission goroutine after the producing submission executes.
	Present(id TextureID) error

	// === Execution ===

	// Execute runs one submission's commands on the backend timeline.
	// Called only from the device's submission goroutine, strictly in
	// Seq order; it must not return until the submission's effects
	// (including downloads into transfer buffers) are complete.
	Execute(sub *Submission) error
}
