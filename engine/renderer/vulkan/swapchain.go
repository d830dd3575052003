package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// Swapchain is a VkSwapchainKHR with one color view per image. The views
// belong to the caller and must be destroyed before the chain.
type Swapchain struct {
	ctx         *Context
	Handle      vk.Swapchain
	format      driver.SurfaceFormat
	presentMode driver.PresentMode
	extent      driver.Extent2D
	Images      []vk.Image
	views       []driver.ImageView
}

func (vs *Swapchain) Format() driver.SurfaceFormat    { return vs.format }
func (vs *Swapchain) PresentMode() driver.PresentMode { return vs.presentMode }
func (vs *Swapchain) Extent() driver.Extent2D         { return vs.extent }
func (vs *Swapchain) Views() []driver.ImageView       { return vs.views }

// Destroy destroys the chain only. The images are owned by the swapchain
// and go with it.
func (vs *Swapchain) Destroy() {
	if vs.Handle == nil {
		return
	}
	vs.ctx.locks.SafeCall(SwapchainManagement, func() error {
		vk.DestroySwapchain(vs.ctx.LogicalDevice, vs.Handle, vs.ctx.Allocator)
		return nil
	})
	vs.Handle = nil
	vs.Images = nil
}

// surfaceFormatFor returns the exact surface format reported by the
// device, so the color space is the one the surface advertised.
func (vc *Context) surfaceFormatFor(f driver.SurfaceFormat) vk.SurfaceFormat {
	for _, sf := range vc.surfaceFormats {
		if fromVkFormat(sf.Format) == f.Format && fromVkColorSpace(sf.ColorSpace) == f.ColorSpace {
			return sf
		}
	}
	return vk.SurfaceFormat{Format: toVkFormat(f.Format), ColorSpace: vk.ColorSpaceSrgbNonlinear}
}

func (vc *Context) NewSwapchain(cfg driver.SwapchainConfig, old driver.Swapchain) (driver.Swapchain, error) {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(vc.PhysicalDevice, vc.Surface, &caps); res != vk.Success {
		return nil, resultError("vkGetPhysicalDeviceSurfaceCapabilities", res)
	}
	caps.Deref()

	if len(vc.surfaceFormats) == 0 {
		if _, err := vc.SurfaceFormats(); err != nil {
			return nil, err
		}
	}
	surfaceFormat := vc.surfaceFormatFor(cfg.Format)

	var oldHandle vk.Swapchain
	if old != nil {
		oldHandle = old.(*Swapchain).Handle
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          vc.Surface,
		MinImageCount:    cfg.ImageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      vk.Extent2D{Width: cfg.Extent.Width, Height: cfg.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		// Graphics and present share one family.
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      toVkPresentMode(cfg.PresentMode),
		Clipped:          vk.True,
		OldSwapchain:     oldHandle,
	}

	var handle vk.Swapchain
	if err := vc.locks.SafeCall(SwapchainManagement, func() error {
		return resultError("vkCreateSwapchain", vk.CreateSwapchain(vc.LogicalDevice, &swapchainCreateInfo, vc.Allocator, &handle))
	}); err != nil {
		return nil, err
	}

	swapchain := &Swapchain{
		ctx:         vc,
		Handle:      handle,
		format:      cfg.Format,
		presentMode: cfg.PresentMode,
		extent:      cfg.Extent,
	}

	var imageCount uint32
	if res := vk.GetSwapchainImages(vc.LogicalDevice, handle, &imageCount, nil); res != vk.Success {
		swapchain.Destroy()
		return nil, resultError("vkGetSwapchainImages", res)
	}
	swapchain.Images = make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(vc.LogicalDevice, handle, &imageCount, swapchain.Images); res != vk.Success {
		swapchain.Destroy()
		return nil, resultError("vkGetSwapchainImages", res)
	}

	swapchain.views = make([]driver.ImageView, 0, imageCount)
	for _, image := range swapchain.Images {
		view, err := vc.newImageView(image, surfaceFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			for _, v := range swapchain.views {
				v.Destroy()
			}
			swapchain.Destroy()
			return nil, fmt.Errorf("failed to create swapchain image view: %w", err)
		}
		swapchain.views = append(swapchain.views, view)
	}

	core.LogInfo("Swapchain created: %dx%d, %d images, %s.", cfg.Extent.Width, cfg.Extent.Height, imageCount, cfg.PresentMode)
	return swapchain, nil
}

func (vc *Context) AcquireNextImage(sc driver.Swapchain, timeout uint64, signal driver.Semaphore) (uint32, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(vc.LogicalDevice, sc.(*Swapchain).Handle, timeout,
		signal.(*Semaphore).Handle, vk.NullFence, &imageIndex)
	switch result {
	case vk.Success:
		return imageIndex, nil
	case vk.Suboptimal:
		// The semaphore is signaled and the image acquired.
		return imageIndex, resultError("vkAcquireNextImage", result)
	default:
		return 0, resultError("vkAcquireNextImage", result)
	}
}

func (vc *Context) Present(sc driver.Swapchain, imageIndex uint32, wait driver.Semaphore) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.(*Semaphore).Handle},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.(*Swapchain).Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	return vc.locks.SafeQueueCall(vc.QueueFamily, func() error {
		return resultError("vkQueuePresent", vk.QueuePresent(vc.Queue, &presentInfo))
	})
}
