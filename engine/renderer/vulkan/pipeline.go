package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// maxPushConstantRanges is the most ranges that fit the 128 bytes the
// Vulkan spec guarantees, at 4-byte granularity.
const maxPushConstantRanges = 32

type PipelineLayout struct {
	ctx    *Context
	Handle vk.PipelineLayout
}

func (vc *Context) NewPipelineLayout(sets []driver.DescriptorSetLayout, push []driver.PushConstantRange) (driver.PipelineLayout, error) {
	if len(push) > maxPushConstantRanges {
		return nil, fmt.Errorf("cannot have more than %d push constant ranges. Passed count: %d", maxPushConstantRanges, len(push))
	}

	setLayouts := make([]vk.DescriptorSetLayout, len(sets))
	for i, s := range sets {
		setLayouts[i] = s.(*DescriptorSetLayout).Handle
	}

	var total uint32
	ranges := make([]vk.PushConstantRange, len(push))
	for i, r := range push {
		ranges[i] = vk.PushConstantRange{
			StageFlags: toVkShaderStage(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
		total = max(total, r.Offset+r.Size)
	}
	if limit := vc.limits.MaxPushConstantsSize; limit > 0 && total > limit {
		return nil, fmt.Errorf("push constants need %d bytes, device allows %d", total, limit)
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}

	l := &PipelineLayout{ctx: vc}
	if err := vc.locks.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreatePipelineLayout", vk.CreatePipelineLayout(vc.LogicalDevice, &pipelineLayoutCreateInfo, vc.Allocator, &l.Handle))
	}); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *PipelineLayout) Destroy() {
	if l.Handle == nil {
		return
	}
	l.ctx.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipelineLayout(l.ctx.LogicalDevice, l.Handle, l.ctx.Allocator)
		return nil
	})
	l.Handle = nil
}

type Pipeline struct {
	ctx    *Context
	Handle vk.Pipeline
}

func (vc *Context) NewGraphicsPipeline(cfg driver.PipelineConfig) (driver.Pipeline, error) {
	if cfg.RenderPass == nil || cfg.Layout == nil || cfg.Vertex == nil || cfg.Fragment == nil {
		return nil, fmt.Errorf("graphics pipeline needs a render pass, a layout and both shader stages")
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: cfg.Vertex.(*ShaderModule).Handle,
			PName:  VulkanSafeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: cfg.Fragment.(*ShaderModule).Handle,
			PName:  VulkanSafeString("main"),
		},
	}

	// Viewport and scissor are dynamic; only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                toVkCullMode(cfg.CullMode),
		FrontFace:               toVkFrontFace(cfg.FrontFace),
		DepthBiasEnable:         vk.False,
	}
	if cfg.Wireframe {
		rasterizerCreateInfo.PolygonMode = vk.PolygonModeLine
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.False,
		DepthWriteEnable:      vk.False,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}
	if cfg.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthCompareOp = toVkCompareOp(cfg.DepthCompare)
	}
	if cfg.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if cfg.Blend {
		colorBlendAttachmentState.BlendEnable = vk.True
		colorBlendAttachmentState.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		colorBlendAttachmentState.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		colorBlendAttachmentState.ColorBlendOp = vk.BlendOpAdd
		colorBlendAttachmentState.SrcAlphaBlendFactor = vk.BlendFactorSrcAlpha
		colorBlendAttachmentState.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		colorBlendAttachmentState.AlphaBlendOp = vk.BlendOpAdd
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    cfg.Stride,
		InputRate: vk.VertexInputRateVertex,
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(cfg.Attributes))
	for i, a := range cfg.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   toVkFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              cfg.Layout.(*PipelineLayout).Handle,
		RenderPass:          cfg.RenderPass.(*RenderPass).Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := vc.locks.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(
			vc.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			vc.Allocator,
			pipelines))
	}); err != nil {
		return nil, err
	}
	if pipelines[0] == nil {
		return nil, fmt.Errorf("vulkan pipeline handle is nil")
	}

	core.LogDebug("Graphics pipeline created!")
	return &Pipeline{ctx: vc, Handle: pipelines[0]}, nil
}

func (p *Pipeline) Destroy() {
	if p.Handle == nil {
		return
	}
	p.ctx.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(p.ctx.LogicalDevice, p.Handle, p.ctx.Allocator)
		return nil
	})
	p.Handle = nil
}

var _ driver.Device = (*Context)(nil)
