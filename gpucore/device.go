package gpucore

import "github.com/gogpu/gputypes"

// Device abstracts the GPU operations the render graph needs.
//
// Implementations are not required to be safe for concurrent recording;
// framegraph drives a single recording goroutine. Resource creation may be
// called concurrently during setup and must then be synchronized by the
// implementation.
type Device interface {
	// CreateShaderModule compiles or loads a shader module.
	CreateShaderModule(desc *ShaderModuleDesc) (ShaderModuleID, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(id ShaderModuleID)

	// CreateBuffer allocates a GPU buffer.
	CreateBuffer(desc *BufferDesc) (BufferID, error)

	// WriteBuffer uploads data into a buffer at offset. The buffer keeps its
	// identity; bind groups that reference it stay valid.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// DestroyBuffer releases a GPU buffer.
	DestroyBuffer(id BufferID)

	// CreateTexture allocates a 2D texture and its default view.
	CreateTexture(desc *TextureDesc) (TextureID, error)

	// WriteTexture uploads tightly packed pixel rows into a texture.
	WriteTexture(id TextureID, data []byte) error

	// DestroyTexture releases a texture and its view.
	DestroyTexture(id TextureID)

	// CreateSampler creates a texture sampler.
	CreateSampler(desc *SamplerDesc) (SamplerID, error)

	// DestroySampler releases a sampler.
	DestroySampler(id SamplerID)

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)

	// DestroyBindGroupLayout releases a bind group layout.
	DestroyBindGroupLayout(id BindGroupLayoutID)

	// CreatePipelineLayout creates a pipeline layout.
	CreatePipelineLayout(desc *PipelineLayoutDesc) (PipelineLayoutID, error)

	// DestroyPipelineLayout releases a pipeline layout.
	DestroyPipelineLayout(id PipelineLayoutID)

	// CreateRenderPipeline builds an immutable render pipeline.
	CreateRenderPipeline(desc *RenderPipelineDesc) (RenderPipelineID, error)

	// DestroyRenderPipeline releases a render pipeline.
	DestroyRenderPipeline(id RenderPipelineID)

	// CreateBindGroup creates a bind group.
	CreateBindGroup(desc *BindGroupDesc) (BindGroupID, error)

	// DestroyBindGroup releases a bind group.
	DestroyBindGroup(id BindGroupID)

	// BeginCommands starts recording a command buffer.
	BeginCommands(label string) (CommandEncoder, error)
}

// CommandEncoder records render passes into one command buffer.
type CommandEncoder interface {
	// BeginRenderPass starts a render pass. The previous pass must have
	// been ended.
	BeginRenderPass(desc *RenderPassDesc) (RenderPassEncoder, error)

	// Submit finishes encoding, submits the command buffer and blocks until
	// the GPU has completed it.
	Submit() error

	// Discard abandons the recording.
	Discard()
}

// RenderPassEncoder records draw commands within a render pass.
type RenderPassEncoder interface {
	SetPipeline(id RenderPipelineID)
	SetBindGroup(index uint32, id BindGroupID)
	SetVertexBuffer(slot uint32, id BufferID, offset uint64)
	SetIndexBuffer(id BufferID, format gputypes.IndexFormat, offset uint64)
	SetViewport(v Viewport)
	SetScissorRect(s Scissor)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	End()
}

// Surface is the presentation target supplied by the windowing collaborator.
type Surface interface {
	// Size returns the current surface dimensions in pixels.
	Size() (width, height uint32)

	// Format returns the texture format of acquired surface textures.
	Format() gputypes.TextureFormat

	// Acquire returns the texture to render the next frame into.
	Acquire() (TextureID, error)

	// Present hands the acquired texture to the display. It is called after
	// the frame's commands have been submitted.
	Present() error
}
