package gpucore

import "github.com/gogpu/gputypes"

// Resource IDs
//
// These opaque IDs represent GPU resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture together with its
// default view.
type TextureID uint64

// SamplerID is an opaque handle to a texture sampler.
type SamplerID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// BindGroupLayoutID is an opaque handle to a bind group layout.
type BindGroupLayoutID uint64

// PipelineLayoutID is an opaque handle to a pipeline layout.
type PipelineLayoutID uint64

// RenderPipelineID is an opaque handle to a render pipeline.
type RenderPipelineID uint64

// BindGroupID is an opaque handle to a bind group.
type BindGroupID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// ShaderModuleDesc describes a shader module. Exactly one of WGSL or SPIRV
// is set.
type ShaderModuleDesc struct {
	Label string
	WGSL  string
	SPIRV []uint32
}

// BufferDesc describes a GPU buffer.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
}

// TextureDesc describes a 2D texture with a single mip level.
type TextureDesc struct {
	Label  string
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
}

// SamplerDesc describes a texture sampler.
type SamplerDesc struct {
	Label       string
	AddressMode gputypes.AddressMode
	Filter      gputypes.FilterMode
}

// BindingKind is the kind of resource a bind group layout slot accepts.
type BindingKind uint8

// Binding kinds.
const (
	// BindingUniformBuffer is a uniform buffer binding.
	BindingUniformBuffer BindingKind = iota + 1

	// BindingStorageBuffer is a read-only storage buffer binding.
	BindingStorageBuffer

	// BindingTexture is a sampled float texture binding.
	BindingTexture

	// BindingDepthTexture is a sampled depth texture binding.
	BindingDepthTexture

	// BindingSampler is a filtering sampler binding.
	BindingSampler

	// BindingNonFilteringSampler is a non-filtering sampler binding,
	// required when depth textures are sampled.
	BindingNonFilteringSampler
)

// String returns the kind name.
func (k BindingKind) String() string {
	switch k {
	case BindingUniformBuffer:
		return "uniform"
	case BindingStorageBuffer:
		return "storage"
	case BindingTexture:
		return "texture"
	case BindingDepthTexture:
		return "depth-texture"
	case BindingSampler:
		return "sampler"
	case BindingNonFilteringSampler:
		return "non-filtering-sampler"
	default:
		return "unknown"
	}
}

// BindGroupLayoutEntry describes a single binding in a bind group layout.
type BindGroupLayoutEntry struct {
	Binding    uint32
	Kind       BindingKind
	Visibility gputypes.ShaderStage
}

// BindGroupLayoutDesc describes a bind group layout.
type BindGroupLayoutDesc struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// ResourceKind discriminates the ID carried by a [ResourceRef].
type ResourceKind uint8

// Resource kinds.
const (
	ResourceBuffer ResourceKind = iota + 1
	ResourceTexture
	ResourceSampler
)

// ResourceRef names one bindable resource by kind and ID.
type ResourceRef struct {
	Kind ResourceKind
	ID   uint64
}

// BufferRef returns a reference to a buffer.
func BufferRef(id BufferID) ResourceRef { return ResourceRef{Kind: ResourceBuffer, ID: uint64(id)} }

// TextureRef returns a reference to a texture's default view.
func TextureRef(id TextureID) ResourceRef { return ResourceRef{Kind: ResourceTexture, ID: uint64(id)} }

// SamplerRef returns a reference to a sampler.
func SamplerRef(id SamplerID) ResourceRef { return ResourceRef{Kind: ResourceSampler, ID: uint64(id)} }

// BindGroupEntry binds one resource at a binding index.
type BindGroupEntry struct {
	Binding  uint32
	Resource ResourceRef

	// Size is the bound byte range for buffers. Zero binds the whole buffer.
	Size uint64
}

// BindGroupDesc describes a bind group.
type BindGroupDesc struct {
	Label   string
	Layout  BindGroupLayoutID
	Entries []BindGroupEntry
}

// PipelineLayoutDesc describes a pipeline layout as an ordered list of bind
// group layouts. Index i is bind group i.
type PipelineLayoutDesc struct {
	Label            string
	BindGroupLayouts []BindGroupLayoutID
}

// RenderPipelineDesc describes a render pipeline.
type RenderPipelineDesc struct {
	Label  string
	Layout PipelineLayoutID

	VertexModule   ShaderModuleID
	VertexEntry    string
	FragmentModule ShaderModuleID
	FragmentEntry  string

	VertexBuffers []gputypes.VertexBufferLayout
	Topology      gputypes.PrimitiveTopology

	// ColorFormats lists one format per color attachment. Empty for
	// depth-only passes.
	ColorFormats []gputypes.TextureFormat

	// DepthFormat is TextureFormatUndefined when the target has no depth
	// attachment; DepthRead and DepthWrite are then ignored.
	DepthFormat gputypes.TextureFormat
	DepthRead   bool
	DepthWrite  bool
}

// ColorAttachment is one color target of a render pass.
type ColorAttachment struct {
	Texture TextureID

	// Load keeps the previous contents instead of clearing to Clear.
	Load  bool
	Clear gputypes.Color
}

// DepthAttachment is the depth target of a render pass.
type DepthAttachment struct {
	Texture TextureID
	Load    bool
	Clear   float32
}

// RenderPassDesc describes one render pass.
type RenderPassDesc struct {
	Label string
	Color []ColorAttachment
	Depth *DepthAttachment
}

// Viewport is a dynamic viewport rectangle in framebuffer pixels.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Scissor is a dynamic scissor rectangle in framebuffer pixels.
type Scissor struct {
	X, Y, Width, Height uint32
}

// IsDepthFormat reports whether f is a depth or depth-stencil format.
func IsDepthFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatDepth16Unorm,
		gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8,
		gputypes.TextureFormatDepth32Float,
		gputypes.TextureFormatDepth32FloatStencil8:
		return true
	default:
		return false
	}
}
