package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// RenderPass is a single subpass pass with one color attachment that ends
// in the present layout and one depth attachment.
type RenderPass struct {
	ctx    *Context
	Handle vk.RenderPass
}

func (vc *Context) NewRenderPass(color, depth driver.Format) (driver.RenderPass, error) {
	attachmentDescriptions := []vk.AttachmentDescription{
		{
			Format:         toVkFormat(color),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		},
		{
			Format:         toVkFormat(depth),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	colorAttachmentReference := []vk.AttachmentReference{
		{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal},
	}
	depthAttachmentReference := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       colorAttachmentReference,
		PDepthStencilAttachment: &depthAttachmentReference,
	}

	// The acquire semaphore is waited at color output, so the first write
	// to the image has to wait for the same stage. Depth is cleared at
	// early fragment tests.
	dependency := vk.SubpassDependency{
		SrcSubpass: vk.SubpassExternal,
		DstSubpass: 0,
		SrcStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
			vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
			vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit |
			vk.AccessDepthStencilAttachmentWriteBit),
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	rp := &RenderPass{ctx: vc}
	if err := vc.locks.SafeCall(RenderpassManagement, func() error {
		return resultError("vkCreateRenderPass", vk.CreateRenderPass(vc.LogicalDevice, &renderpassCreateInfo, vc.Allocator, &rp.Handle))
	}); err != nil {
		return nil, err
	}
	return rp, nil
}

func (rp *RenderPass) Destroy() {
	if rp.Handle == nil {
		return
	}
	rp.ctx.locks.SafeCall(RenderpassManagement, func() error {
		vk.DestroyRenderPass(rp.ctx.LogicalDevice, rp.Handle, rp.ctx.Allocator)
		return nil
	})
	rp.Handle = nil
}
