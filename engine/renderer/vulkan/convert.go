package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

var formats = map[driver.Format]vk.Format{
	driver.FormatUndefined:           vk.FormatUndefined,
	driver.FormatR8G8B8A8Unorm:       vk.FormatR8g8b8a8Unorm,
	driver.FormatB8G8R8A8Unorm:       vk.FormatB8g8r8a8Unorm,
	driver.FormatA8B8G8R8UnormPack32: vk.FormatA8b8g8r8UnormPack32,
	driver.FormatR8G8B8A8Srgb:        vk.FormatR8g8b8a8Srgb,
	driver.FormatB8G8R8A8Srgb:        vk.FormatB8g8r8a8Srgb,
	driver.FormatD32Sfloat:           vk.FormatD32Sfloat,
	driver.FormatD32SfloatS8Uint:     vk.FormatD32SfloatS8Uint,
	driver.FormatD24UnormS8Uint:      vk.FormatD24UnormS8Uint,
	driver.FormatR32G32Sfloat:        vk.FormatR32g32Sfloat,
	driver.FormatR32G32B32Sfloat:     vk.FormatR32g32b32Sfloat,
	driver.FormatR32G32B32A32Sfloat:  vk.FormatR32g32b32a32Sfloat,
}

func toVkFormat(f driver.Format) vk.Format {
	return formats[f]
}

// fromVkFormat returns FormatUndefined for formats the renderer never
// asks for.
func fromVkFormat(f vk.Format) driver.Format {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return driver.FormatUndefined
}

func fromVkColorSpace(cs vk.ColorSpace) driver.ColorSpace {
	if cs == vk.ColorSpaceSrgbNonlinear {
		return driver.ColorSpaceSrgbNonlinear
	}
	return driver.ColorSpaceOther
}

var presentModes = map[driver.PresentMode]vk.PresentMode{
	driver.PresentModeImmediate:   vk.PresentModeImmediate,
	driver.PresentModeMailbox:     vk.PresentModeMailbox,
	driver.PresentModeFifo:        vk.PresentModeFifo,
	driver.PresentModeFifoRelaxed: vk.PresentModeFifoRelaxed,
}

func toVkPresentMode(m driver.PresentMode) vk.PresentMode {
	if mode, ok := presentModes[m]; ok {
		return mode
	}
	return vk.PresentModeFifo
}

func fromVkPresentMode(m vk.PresentMode) (driver.PresentMode, bool) {
	for k, v := range presentModes {
		if v == m {
			return k, true
		}
	}
	return 0, false
}

// bitMapping pairs a driver flag with its Vulkan bit.
type bitMapping struct {
	from uint32
	to   uint32
}

func mapBits(value uint32, table []bitMapping) uint32 {
	var out uint32
	for _, m := range table {
		if value&m.from != 0 {
			out |= m.to
		}
	}
	return out
}

var bufferUsageBits = []bitMapping{
	{uint32(driver.BufferUsageTransferSrc), uint32(vk.BufferUsageTransferSrcBit)},
	{uint32(driver.BufferUsageTransferDst), uint32(vk.BufferUsageTransferDstBit)},
	{uint32(driver.BufferUsageUniform), uint32(vk.BufferUsageUniformBufferBit)},
	{uint32(driver.BufferUsageStorage), uint32(vk.BufferUsageStorageBufferBit)},
	{uint32(driver.BufferUsageVertex), uint32(vk.BufferUsageVertexBufferBit)},
	{uint32(driver.BufferUsageIndex), uint32(vk.BufferUsageIndexBufferBit)},
}

func toVkBufferUsage(u driver.BufferUsage) vk.BufferUsageFlags {
	return vk.BufferUsageFlags(mapBits(uint32(u), bufferUsageBits))
}

var imageUsageBits = []bitMapping{
	{uint32(driver.ImageUsageTransferSrc), uint32(vk.ImageUsageTransferSrcBit)},
	{uint32(driver.ImageUsageTransferDst), uint32(vk.ImageUsageTransferDstBit)},
	{uint32(driver.ImageUsageSampled), uint32(vk.ImageUsageSampledBit)},
	{uint32(driver.ImageUsageColorAttachment), uint32(vk.ImageUsageColorAttachmentBit)},
	{uint32(driver.ImageUsageDepthStencilAttachment), uint32(vk.ImageUsageDepthStencilAttachmentBit)},
}

func toVkImageUsage(u driver.ImageUsage) vk.ImageUsageFlags {
	return vk.ImageUsageFlags(mapBits(uint32(u), imageUsageBits))
}

var aspectBits = []bitMapping{
	{uint32(driver.AspectColor), uint32(vk.ImageAspectColorBit)},
	{uint32(driver.AspectDepth), uint32(vk.ImageAspectDepthBit)},
}

func toVkAspect(a driver.Aspect) vk.ImageAspectFlags {
	return vk.ImageAspectFlags(mapBits(uint32(a), aspectBits))
}

var stageBits = []bitMapping{
	{uint32(driver.PipelineStageTopOfPipe), uint32(vk.PipelineStageTopOfPipeBit)},
	{uint32(driver.PipelineStageTransfer), uint32(vk.PipelineStageTransferBit)},
	{uint32(driver.PipelineStageVertexShader), uint32(vk.PipelineStageVertexShaderBit)},
	{uint32(driver.PipelineStageFragmentShader), uint32(vk.PipelineStageFragmentShaderBit)},
	{uint32(driver.PipelineStageColorAttachmentOutput), uint32(vk.PipelineStageColorAttachmentOutputBit)},
}

func toVkStage(s driver.PipelineStage) vk.PipelineStageFlags {
	return vk.PipelineStageFlags(mapBits(uint32(s), stageBits))
}

var accessBits = []bitMapping{
	{uint32(driver.AccessTransferWrite), uint32(vk.AccessTransferWriteBit)},
	{uint32(driver.AccessShaderRead), uint32(vk.AccessShaderReadBit)},
}

func toVkAccess(a driver.Access) vk.AccessFlags {
	return vk.AccessFlags(mapBits(uint32(a), accessBits))
}

var shaderStageBits = []bitMapping{
	{uint32(driver.ShaderStageVertex), uint32(vk.ShaderStageVertexBit)},
	{uint32(driver.ShaderStageFragment), uint32(vk.ShaderStageFragmentBit)},
}

func toVkShaderStage(s driver.ShaderStage) vk.ShaderStageFlags {
	return vk.ShaderStageFlags(mapBits(uint32(s), shaderStageBits))
}

func toVkLayout(l driver.ImageLayout) vk.ImageLayout {
	switch l {
	case driver.ImageLayoutTransferDstOptimal:
		return vk.ImageLayoutTransferDstOptimal
	case driver.ImageLayoutShaderReadOnlyOptimal:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case driver.ImageLayoutColorAttachmentOptimal:
		return vk.ImageLayoutColorAttachmentOptimal
	case driver.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case driver.ImageLayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

func toVkDescriptorType(t driver.DescriptorType) vk.DescriptorType {
	switch t {
	case driver.DescriptorTypeUniformBufferDynamic:
		return vk.DescriptorTypeUniformBufferDynamic
	case driver.DescriptorTypeStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case driver.DescriptorTypeCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	default:
		return vk.DescriptorTypeUniformBuffer
	}
}

func toVkCullMode(c driver.CullMode) vk.CullModeFlags {
	switch c {
	case driver.CullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case driver.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	default:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
}

func toVkFrontFace(f driver.FrontFace) vk.FrontFace {
	if f == driver.FrontFaceClockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func toVkCompareOp(op driver.CompareOp) vk.CompareOp {
	switch op {
	case driver.CompareOpLessOrEqual:
		return vk.CompareOpLessOrEqual
	case driver.CompareOpAlways:
		return vk.CompareOpAlways
	default:
		return vk.CompareOpLess
	}
}

func toVkFilter(f driver.Filter) vk.Filter {
	if f == driver.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}
