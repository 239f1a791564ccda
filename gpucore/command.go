package gpucore

// Typed command structures.
//
// A command buffer records its work as a flat, ordered slice of typed
// commands. Nothing executes at record time; the device's submission
// goroutine hands whole submissions to the adapter, which replays the
// commands on the real backend (or simulates them). Typed structs are
// used instead of a serialized stream so commands stay inspectable,
// following the same design as display-list style recorders.

// CommandType identifies the type of a command.
type CommandType uint8

const (
	// Pass structure commands.
	CmdBeginRenderPass CommandType = iota
	CmdBeginComputePass
	CmdBeginCopyPass
	CmdEndPass

	// Render state commands.
	CmdBindGraphicsPipeline
	CmdBindVertexBuffers
	CmdBindIndexBuffer
	CmdBindFragmentSamplers
	CmdSetViewport
	CmdSetScissor
	CmdSetBlendConstant
	CmdSetStencilReference

	// Draw commands.
	CmdDraw
	CmdDrawIndexed
	CmdDrawIndirect
	CmdDrawIndexedIndirect

	// Compute commands.
	CmdBindComputePipeline
	CmdBindComputeStorage
	CmdDispatch
	CmdDispatchIndirect

	// Copy commands.
	CmdUploadToBuffer
	CmdUploadToTexture
	CmdDownloadFromBuffer
	CmdDownloadFromTexture
	CmdCopyBufferToBuffer
	CmdCopyTextureToTexture

	// Command buffer level commands.
	CmdPushUniformData
	CmdInsertDebugLabel
	CmdPushDebugGroup
	CmdPopDebugGroup
)

// commandTypeNames maps CommandType values to their string representation.
var commandTypeNames = [...]string{
	CmdBeginRenderPass:      "BeginRenderPass",
	CmdBeginComputePass:     "BeginComputePass",
	CmdBeginCopyPass:        "BeginCopyPass",
	CmdEndPass:              "EndPass",
	CmdBindGraphicsPipeline: "BindGraphicsPipeline",
	CmdBindVertexBuffers:    "BindVertexBuffers",
	CmdBindIndexBuffer:      "BindIndexBuffer",
	CmdBindFragmentSamplers: "BindFragmentSamplers",
	CmdSetViewport:          "SetViewport",
	CmdSetScissor:           "SetScissor",
	CmdSetBlendConstant:     "SetBlendConstant",
	CmdSetStencilReference:  "SetStencilReference",
	CmdDraw:                 "Draw",
	CmdDrawIndexed:          "DrawIndexed",
	CmdDrawIndirect:         "DrawIndirect",
	CmdDrawIndexedIndirect:  "DrawIndexedIndirect",
	CmdBindComputePipeline:  "BindComputePipeline",
	CmdBindComputeStorage:   "BindComputeStorage",
	CmdDispatch:             "Dispatch",
	CmdDispatchIndirect:     "DispatchIndirect",
	CmdUploadToBuffer:       "UploadToBuffer",
	CmdUploadToTexture:      "UploadToTexture",
	CmdDownloadFromBuffer:   "DownloadFromBuffer",
	CmdDownloadFromTexture:  "DownloadFromTexture",
	CmdCopyBufferToBuffer:   "CopyBufferToBuffer",
	CmdCopyTextureToTexture: "CopyTextureToTexture",
	CmdPushUniformData:      "PushUniformData",
	CmdInsertDebugLabel:     "InsertDebugLabel",
	CmdPushDebugGroup:       "PushDebugGroup",
	CmdPopDebugGroup:        "PopDebugGroup",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is the interface implemented by all recorded command types.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType
}

// --------------------------------------------------------------------------
// Pass structure
// --------------------------------------------------------------------------

// ColorTargetInfo describes one color target binding of a render pass.
type ColorTargetInfo struct {
	Texture  TextureID
	MipLevel uint32
	Layer    uint32

	LoadOp     LoadOp
	StoreOp    StoreOp
	ClearColor Color

	// ResolveTexture receives resolved samples for StoreOpResolve and
	// StoreOpResolveAndStore.
	ResolveTexture TextureID
}

// DepthStencilTargetInfo describes the depth-stencil target binding of
// a render pass.
type DepthStencilTargetInfo struct {
	Texture TextureID

	LoadOp         LoadOp
	StoreOp        StoreOp
	StencilLoadOp  LoadOp
	StencilStoreOp StoreOp

	ClearDepth   float32
	ClearStencil uint8
}

// BeginRenderPassCommand opens a render pass section.
type BeginRenderPassCommand struct {
	Colors       []ColorTargetInfo
	DepthStencil *DepthStencilTargetInfo
}

// Type implements Command.
func (BeginRenderPassCommand) Type() CommandType { return CmdBeginRenderPass }

// BeginComputePassCommand opens a compute pass section. Storage
// resources are bound up front; dispatches within the pass are
// unordered relative to each other.
type BeginComputePassCommand struct {
	StorageBuffers  []BufferID
	StorageTextures []TextureID
}

// Type implements Command.
func (BeginComputePassCommand) Type() CommandType { return CmdBeginComputePass }

// BeginCopyPassCommand opens a copy pass section.
type BeginCopyPassCommand struct{}

// Type implements Command.
func (BeginCopyPassCommand) Type() CommandType { return CmdBeginCopyPass }

// EndPassCommand closes the currently open pass section.
type EndPassCommand struct{}

// Type implements Command.
func (EndPassCommand) Type() CommandType { return CmdEndPass }

// --------------------------------------------------------------------------
// Render state
// --------------------------------------------------------------------------

// BindGraphicsPipelineCommand binds the pipeline for subsequent draws.
type BindGraphicsPipelineCommand struct {
	Pipeline PipelineID
}

// Type implements Command.
func (BindGraphicsPipelineCommand) Type() CommandType { return CmdBindGraphicsPipeline }

// BindVertexBuffersCommand binds one or more vertex buffer slots
// starting at FirstSlot.
type BindVertexBuffersCommand struct {
	FirstSlot uint32
	Buffers   []BufferRegion
}

// Type implements Command.
func (BindVertexBuffersCommand) Type() CommandType { return CmdBindVertexBuffers }

// BindIndexBufferCommand binds the index buffer.
type BindIndexBufferCommand struct {
	Buffer BufferRegion
	Format IndexFormat
}

// Type implements Command.
func (BindIndexBufferCommand) Type() CommandType { return CmdBindIndexBuffer }

// TextureSamplerBinding pairs a sampled texture with a sampler.
type TextureSamplerBinding struct {
	Texture TextureID
	Sampler SamplerID
}

// BindFragmentSamplersCommand binds texture-sampler pairs for the
// fragment stage starting at FirstSlot.
type BindFragmentSamplersCommand struct {
	FirstSlot uint32
	Bindings  []TextureSamplerBinding
}

// Type implements Command.
func (BindFragmentSamplersCommand) Type() CommandType { return CmdBindFragmentSamplers }

// SetViewportCommand sets the viewport transform.
type SetViewportCommand struct {
	Viewport Viewport
}

// Type implements Command.
func (SetViewportCommand) Type() CommandType { return CmdSetViewport }

// SetScissorCommand sets the scissor rectangle.
type SetScissorCommand struct {
	Scissor Scissor
}

// Type implements Command.
func (SetScissorCommand) Type() CommandType { return CmdSetScissor }

// SetBlendConstantCommand sets the constant blend color.
type SetBlendConstantCommand struct {
	Color Color
}

// Type implements Command.
func (SetBlendConstantCommand) Type() CommandType { return CmdSetBlendConstant }

// SetStencilReferenceCommand sets the stencil reference value.
type SetStencilReferenceCommand struct {
	Reference uint32
}

// Type implements Command.
func (SetStencilReferenceCommand) Type() CommandType { return CmdSetStencilReference }

// --------------------------------------------------------------------------
// Draws
// --------------------------------------------------------------------------

// DrawCommand draws primitives.
type DrawCommand struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// Type implements Command.
func (DrawCommand) Type() CommandType { return CmdDraw }

// DrawIndexedCommand draws indexed primitives.
type DrawIndexedCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

// Type implements Command.
func (DrawIndexedCommand) Type() CommandType { return CmdDrawIndexed }

// DrawIndirectCommand draws primitives with parameters read from a
// buffer holding DrawIndirectArgs records.
type DrawIndirectCommand struct {
	Buffer    BufferID
	Offset    uint64
	DrawCount uint32
}

// Type implements Command.
func (DrawIndirectCommand) Type() CommandType { return CmdDrawIndirect }

// DrawIndexedIndirectCommand draws indexed primitives with parameters
// read from a buffer holding DrawIndexedIndirectArgs records.
type DrawIndexedIndirectCommand struct {
	Buffer    BufferID
	Offset    uint64
	DrawCount uint32
}

// Type implements Command.
func (DrawIndexedIndirectCommand) Type() CommandType { return CmdDrawIndexedIndirect }

// --------------------------------------------------------------------------
// Compute
// --------------------------------------------------------------------------

// BindComputePipelineCommand binds the pipeline for subsequent
// dispatches.
type BindComputePipelineCommand struct {
	Pipeline PipelineID
}

// Type implements Command.
func (BindComputePipelineCommand) Type() CommandType { return CmdBindComputePipeline }

// BindComputeStorageCommand binds read-only storage resources for the
// compute stage.
type BindComputeStorageCommand struct {
	FirstSlot uint32
	Buffers   []BufferID
	Textures  []TextureID
}

// Type implements Command.
func (BindComputeStorageCommand) Type() CommandType { return CmdBindComputeStorage }

// DispatchCommand dispatches compute workgroups.
type DispatchCommand struct {
	GroupsX, GroupsY, GroupsZ uint32
}

// Type implements Command.
func (DispatchCommand) Type() CommandType { return CmdDispatch }

// DispatchIndirectCommand dispatches with group counts read from a
// buffer holding a DispatchIndirectArgs record.
type DispatchIndirectCommand struct {
	Buffer BufferID
	Offset uint64
}

// Type implements Command.
func (DispatchIndirectCommand) Type() CommandType { return CmdDispatchIndirect }

// --------------------------------------------------------------------------
// Copies
// --------------------------------------------------------------------------

// UploadToBufferCommand copies transfer buffer bytes into a GPU buffer.
type UploadToBufferCommand struct {
	Src TransferRegion
	Dst BufferRegion
}

// Type implements Command.
func (UploadToBufferCommand) Type() CommandType { return CmdUploadToBuffer }

// UploadToTextureCommand copies transfer buffer bytes into a texture
// region. Rows are tightly packed unless BytesPerRow is nonzero.
type UploadToTextureCommand struct {
	Src         TransferRegion
	Dst         TextureRegion
	BytesPerRow uint32
}

// Type implements Command.
func (UploadToTextureCommand) Type() CommandType { return CmdUploadToTexture }

// DownloadFromBufferCommand copies GPU buffer bytes into a transfer
// buffer. The data is fence-confirmed: it is only safe to read after
// the submission's fence signals.
type DownloadFromBufferCommand struct {
	Src BufferRegion
	Dst TransferRegion
}

// Type implements Command.
func (DownloadFromBufferCommand) Type() CommandType { return CmdDownloadFromBuffer }

// DownloadFromTextureCommand copies texture texels into a transfer
// buffer. The data is fence-confirmed.
type DownloadFromTextureCommand struct {
	Src         TextureRegion
	Dst         TransferRegion
	BytesPerRow uint32
}

// Type implements Command.
func (DownloadFromTextureCommand) Type() CommandType { return CmdDownloadFromTexture }

// CopyBufferToBufferCommand copies between two GPU buffers.
type CopyBufferToBufferCommand struct {
	Src BufferRegion
	Dst BufferRegion
}

// Type implements Command.
func (CopyBufferToBufferCommand) Type() CommandType { return CmdCopyBufferToBuffer }

// CopyTextureToTextureCommand copies between two texture regions of
// equal size.
type CopyTextureToTextureCommand struct {
	Src TextureRegion
	Dst TextureRegion
}

// Type implements Command.
func (CopyTextureToTextureCommand) Type() CommandType { return CmdCopyTextureToTexture }

// --------------------------------------------------------------------------
// Command buffer level
// --------------------------------------------------------------------------

// PushUniformDataCommand pushes uniform bytes to a numbered slot of a
// stage. The slot persists for the rest of the recording until
// overwritten.
type PushUniformDataCommand struct {
	Stage ShaderStage
	Slot  uint32
	Data  []byte
}

// Type implements Command.
func (PushUniformDataCommand) Type() CommandType { return CmdPushUniformData }

// InsertDebugLabelCommand inserts a debug marker.
type InsertDebugLabelCommand struct {
	Label string
}

// Type implements Command.
func (InsertDebugLabelCommand) Type() CommandType { return CmdInsertDebugLabel }

// PushDebugGroupCommand opens a named debug group.
type PushDebugGroupCommand struct {
	Name string
}

// Type implements Command.
func (PushDebugGroupCommand) Type() CommandType { return CmdPushDebugGroup }

// PopDebugGroupCommand closes the innermost debug group.
type PopDebugGroupCommand struct{}

// Type implements Command.
func (PopDebugGroupCommand) Type() CommandType { return CmdPopDebugGroup }

// --------------------------------------------------------------------------
// Submission
// --------------------------------------------------------------------------

// Submission is one command buffer's recorded work, handed to an
// adapter for execution on the GPU timeline. Submissions are executed
// strictly in Seq order.
type Submission struct {
	// Seq is the global submission sequence number, assigned at submit
	// time under the device's submission lock.
	Seq uint64

	// Label is the originating command buffer's debug label.
	Label string

	// Commands is the ordered recording.
	Commands []Command

	// Presents lists surface textures to present after execution.
	Presents []TextureID
}
