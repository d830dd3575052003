package driver

import "math"

// WaitForever is the timeout used when the caller is willing to block
// until the GPU signals.
const WaitForever uint64 = math.MaxUint64

// UndefinedExtent is the width reported by a surface whose current
// extent is decided by the swapchain.
const UndefinedExtent uint32 = math.MaxUint32

type Format int

const (
	FormatUndefined Format = iota
	FormatR8G8B8A8Unorm
	FormatB8G8R8A8Unorm
	FormatA8B8G8R8UnormPack32
	FormatR8G8B8A8Srgb
	FormatB8G8R8A8Srgb
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
	FormatR32G32Sfloat
	FormatR32G32B32Sfloat
	FormatR32G32B32A32Sfloat
)

func (f Format) String() string {
	switch f {
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatA8B8G8R8UnormPack32:
		return "A8B8G8R8_UNORM_PACK32"
	case FormatR8G8B8A8Srgb:
		return "R8G8B8A8_SRGB"
	case FormatB8G8R8A8Srgb:
		return "B8G8R8A8_SRGB"
	case FormatD32Sfloat:
		return "D32_SFLOAT"
	case FormatD32SfloatS8Uint:
		return "D32_SFLOAT_S8_UINT"
	case FormatD24UnormS8Uint:
		return "D24_UNORM_S8_UINT"
	case FormatR32G32Sfloat:
		return "R32G32_SFLOAT"
	case FormatR32G32B32Sfloat:
		return "R32G32B32_SFLOAT"
	case FormatR32G32B32A32Sfloat:
		return "R32G32B32A32_SFLOAT"
	default:
		return "UNDEFINED"
	}
}

// IsDepth reports whether the format carries a depth component.
func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat || f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

type ColorSpace int

const (
	ColorSpaceSrgbNonlinear ColorSpace = iota
	ColorSpaceOther
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode int

const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo-relaxed"
	default:
		return "unknown"
	}
}

type Extent2D struct {
	Width  uint32
	Height uint32
}

type Extent3D struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

// SurfaceCapabilities mirrors the subset of the surface capabilities the
// swapchain policy looks at.
type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

// Limits holds the device limits the renderer depends on.
type Limits struct {
	MinUniformBufferOffsetAlignment uint64
	MaxPushConstantsSize            uint32
	MaxSamplerAnisotropy            float32
}

// Residency is the requested placement of an allocation.
type Residency int

const (
	// ResidencyDeviceLocal memory is not host visible; writes go through a
	// staging buffer.
	ResidencyDeviceLocal Residency = iota
	// ResidencyHostSequentialWrite memory is host visible and mapped at
	// creation, intended for write-once-per-frame data.
	ResidencyHostSequentialWrite
	// ResidencyHostMappedPersistent memory is host visible and stays
	// mapped for its whole lifetime.
	ResidencyHostMappedPersistent
)

func (r Residency) HostVisible() bool {
	return r == ResidencyHostSequentialWrite || r == ResidencyHostMappedPersistent
}

func (r Residency) String() string {
	switch r {
	case ResidencyDeviceLocal:
		return "device-local"
	case ResidencyHostSequentialWrite:
		return "host-sequential-write"
	case ResidencyHostMappedPersistent:
		return "host-mapped-persistent"
	default:
		return "unknown"
	}
}

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageVertex
	BufferUsageIndex
)

type ImageUsage uint32

const (
	ImageUsageTransferSrc ImageUsage = 1 << iota
	ImageUsageTransferDst
	ImageUsageSampled
	ImageUsageColorAttachment
	ImageUsageDepthStencilAttachment
)

type Aspect uint32

const (
	AspectColor Aspect = 1 << iota
	AspectDepth
)

type ImageLayout int

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutTransferDstOptimal
	ImageLayoutShaderReadOnlyOptimal
	ImageLayoutColorAttachmentOptimal
	ImageLayoutDepthStencilAttachmentOptimal
	ImageLayoutPresentSrc
)

type PipelineStage uint32

const (
	PipelineStageTopOfPipe PipelineStage = 1 << iota
	PipelineStageTransfer
	PipelineStageVertexShader
	PipelineStageFragmentShader
	PipelineStageColorAttachmentOutput
)

type Access uint32

const (
	AccessNone          Access = 0
	AccessTransferWrite Access = 1 << iota
	AccessShaderRead
)

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

type DescriptorType int

const (
	DescriptorTypeUniformBuffer DescriptorType = iota
	DescriptorTypeUniformBufferDynamic
	DescriptorTypeStorageBuffer
	DescriptorTypeCombinedImageSampler
)

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
	Count   uint32
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorWrite points a binding at a buffer range or at an image.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType

	Buffer Buffer
	Offset uint64
	Range  uint64

	View    ImageView
	Sampler Sampler
	Layout  ImageLayout
}

type BufferSpec struct {
	Size      uint64
	Usage     BufferUsage
	Residency Residency
}

type ImageSpec struct {
	Format Format
	Extent Extent3D
	Usage  ImageUsage
	Aspect Aspect
}

type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcStage  PipelineStage
	DstStage  PipelineStage
	SrcAccess Access
	DstAccess Access
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type Rect2D struct {
	X, Y   int32
	Extent Extent2D
}

type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type SwapchainConfig struct {
	Format      SurfaceFormat
	PresentMode PresentMode
	ImageCount  uint32
	Extent      Extent2D
}

type CommandPoolFlags uint32

const (
	CommandPoolTransient CommandPoolFlags = 1 << iota
	CommandPoolResetCommandBuffer
)

type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

type FrontFace int

const (
	FrontFaceCounterClockwise FrontFace = iota
	FrontFaceClockwise
)

type CompareOp int

const (
	CompareOpLess CompareOp = iota
	CompareOpLessOrEqual
	CompareOpAlways
)

// PipelineConfig describes a graphics pipeline with a single vertex
// binding, dynamic viewport and dynamic scissor.
type PipelineConfig struct {
	RenderPass RenderPass
	Layout     PipelineLayout
	Vertex     ShaderModule
	Fragment   ShaderModule

	Stride     uint32
	Attributes []VertexAttribute

	CullMode     CullMode
	FrontFace    FrontFace
	Wireframe    bool
	Blend        bool
	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareOp
}

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

type SamplerConfig struct {
	Filter     Filter
	Anisotropy float32
}

// SubmitInfo is a single queue submission. WaitStages has one entry per
// Wait semaphore.
type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	Wait           []Semaphore
	WaitStages     []PipelineStage
	Signal         []Semaphore
	Fence          Fence
}
