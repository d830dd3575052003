package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// Image is a 2D, single mip, device-local VkImage with a dedicated
// allocation and a default view over the whole image.
type Image struct {
	ctx    *Context
	Handle vk.Image
	Memory vk.DeviceMemory
	spec   driver.ImageSpec
	view   *ImageView
}

func (img *Image) Format() driver.Format   { return img.spec.Format }
func (img *Image) Extent() driver.Extent3D { return img.spec.Extent }
func (img *Image) View() driver.ImageView  { return img.view }

func (vc *Context) NewImage(spec driver.ImageSpec) (driver.Image, error) {
	if spec.Extent.Width == 0 || spec.Extent.Height == 0 {
		return nil, fmt.Errorf("cannot create an image of size %dx%d", spec.Extent.Width, spec.Extent.Height)
	}
	if spec.Aspect == 0 {
		spec.Aspect = driver.AspectColor
		if spec.Format.IsDepth() {
			spec.Aspect = driver.AspectDepth
		}
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    toVkFormat(spec.Format),
		Extent: vk.Extent3D{
			Width:  spec.Extent.Width,
			Height: spec.Extent.Height,
			Depth:  max(spec.Extent.Depth, 1),
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         toVkImageUsage(spec.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	img := &Image{ctx: vc, spec: spec}
	if err := vc.locks.SafeCall(ImageManagement, func() error {
		return resultError("vkCreateImage", vk.CreateImage(vc.LogicalDevice, &imageCreateInfo, vc.Allocator, &img.Handle))
	}); err != nil {
		return nil, err
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(vc.LogicalDevice, img.Handle, &req)
	req.Deref()

	memory, err := vc.allocateMemory(req, uint32(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.Memory = memory

	if res := vk.BindImageMemory(vc.LogicalDevice, img.Handle, img.Memory, 0); res != vk.Success {
		img.Destroy()
		return nil, resultError("vkBindImageMemory", res)
	}

	view, err := vc.newImageView(img.Handle, imageCreateInfo.Format, toVkAspect(spec.Aspect))
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.view = view
	return img, nil
}

func (img *Image) Destroy() {
	if img.view != nil {
		img.view.Destroy()
		img.view = nil
	}
	img.ctx.locks.SafeCall(ImageManagement, func() error {
		if img.Handle != nil {
			vk.DestroyImage(img.ctx.LogicalDevice, img.Handle, img.ctx.Allocator)
			img.Handle = nil
		}
		if img.Memory != nil {
			vk.FreeMemory(img.ctx.LogicalDevice, img.Memory, img.ctx.Allocator)
			img.Memory = nil
		}
		return nil
	})
}

type ImageView struct {
	ctx    *Context
	Handle vk.ImageView
}

func (vc *Context) newImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (*ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	view := &ImageView{ctx: vc}
	if err := vc.locks.SafeCall(ImageManagement, func() error {
		return resultError("vkCreateImageView", vk.CreateImageView(vc.LogicalDevice, &viewInfo, vc.Allocator, &view.Handle))
	}); err != nil {
		return nil, err
	}
	return view, nil
}

func (v *ImageView) Destroy() {
	if v.Handle == nil {
		return
	}
	v.ctx.locks.SafeCall(ImageManagement, func() error {
		vk.DestroyImageView(v.ctx.LogicalDevice, v.Handle, v.ctx.Allocator)
		return nil
	})
	v.Handle = nil
}

// Sampler is a repeat-addressed sampler over a single mip level.
type Sampler struct {
	ctx    *Context
	Handle vk.Sampler
}

// NewSampler enables anisotropic filtering only when the device feature
// was turned on at bootstrap, clamping the level to the device limit.
func (vc *Context) NewSampler(cfg driver.SamplerConfig) (driver.Sampler, error) {
	filter := toVkFilter(cfg.Filter)
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter,
		MinFilter:               filter,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if vc.anisotropy && cfg.Anisotropy > 1 {
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = min(cfg.Anisotropy, vc.limits.MaxSamplerAnisotropy)
	}

	s := &Sampler{ctx: vc}
	if res := vk.CreateSampler(vc.LogicalDevice, &info, vc.Allocator, &s.Handle); res != vk.Success {
		return nil, resultError("vkCreateSampler", res)
	}
	return s, nil
}

func (s *Sampler) Destroy() {
	if s.Handle != nil {
		vk.DestroySampler(s.ctx.LogicalDevice, s.Handle, s.ctx.Allocator)
		s.Handle = nil
	}
}
