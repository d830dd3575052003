package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

type Framebuffer struct {
	ctx         *Context
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
}

func (vc *Context) NewFramebuffer(rp driver.RenderPass, attachments []driver.ImageView, extent driver.Extent2D) (driver.Framebuffer, error) {
	fb := &Framebuffer{
		ctx:         vc,
		Attachments: make([]vk.ImageView, len(attachments)),
	}
	for i, a := range attachments {
		fb.Attachments[i] = a.(*ImageView).Handle
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.(*RenderPass).Handle,
		AttachmentCount: uint32(len(fb.Attachments)),
		PAttachments:    fb.Attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	if res := vk.CreateFramebuffer(vc.LogicalDevice, &framebufferCreateInfo, vc.Allocator, &fb.Handle); res != vk.Success {
		return nil, resultError("vkCreateFramebuffer", res)
	}
	return fb, nil
}

func (fb *Framebuffer) Destroy() {
	if fb.Handle != nil {
		vk.DestroyFramebuffer(fb.ctx.LogicalDevice, fb.Handle, fb.ctx.Allocator)
		fb.Handle = nil
	}
	fb.Attachments = nil
}
