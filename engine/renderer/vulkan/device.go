package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

const portabilitySubsetName = "VK_KHR_portability_subset"

// selectPhysicalDevice takes the first enumerated device with a queue
// family that can both draw and present to the surface.
func (vc *Context) selectPhysicalDevice() error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(vc.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		return fmt.Errorf("no devices which support Vulkan were found: %w", driver.ErrNoSuitableDevice)
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(vc.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}

	for _, physicalDevice := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
		properties.Deref()
		properties.Limits.Deref()

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(physicalDevice, &features)
		features.Deref()

		family, ok := vc.physicalDeviceMeetsRequirements(physicalDevice, &properties)
		if !ok {
			continue
		}

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memory)
		memory.Deref()

		vc.PhysicalDevice = physicalDevice
		vc.QueueFamily = family
		vc.Properties = properties
		vc.Features = features
		vc.Memory = memory
		vc.name = cString(properties.DeviceName[:])
		vc.anisotropy = features.SamplerAnisotropy == vk.True
		vc.limits = driver.Limits{
			MinUniformBufferOffsetAlignment: uint64(properties.Limits.MinUniformBufferOffsetAlignment),
			MaxPushConstantsSize:            properties.Limits.MaxPushConstantsSize,
			MaxSamplerAnisotropy:            properties.Limits.MaxSamplerAnisotropy,
		}
		logDeviceInfo(vc.name, &properties, &memory)
		return nil
	}

	return fmt.Errorf("no physical devices were found which meet the requirements: %w", driver.ErrNoSuitableDevice)
}

func logDeviceInfo(name string, properties *vk.PhysicalDeviceProperties, memory *vk.PhysicalDeviceMemoryProperties) {
	core.LogInfo("Selected device: '%s'.", name)
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}

	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(properties.DriverVersion).Major(),
		vk.Version(properties.DriverVersion).Minor(),
		vk.Version(properties.DriverVersion).Patch(),
	)
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch(),
	)

	for j := uint32(0); j < memory.MemoryHeapCount; j++ {
		heap := memory.MemoryHeaps[j]
		heap.Deref()
		memorySizeGib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
}

// physicalDeviceMeetsRequirements returns the queue family to use when the
// device has one with graphics and present support, the swapchain
// extension and at least one surface format and present mode.
func (vc *Context) physicalDeviceMeetsRequirements(device vk.PhysicalDevice, properties *vk.PhysicalDeviceProperties) (uint32, bool) {
	name := cString(properties.DeviceName[:])

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	family, found := uint32(0), false
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit == 0 {
			continue
		}
		var supportsPresent vk.Bool32 = vk.False
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), vc.Surface, &supportsPresent); res != vk.Success {
			core.LogWarn("vkGetPhysicalDeviceSurfaceSupport failed on '%s': %s", name, VulkanResultString(res, false))
			return 0, false
		}
		if supportsPresent == vk.True {
			family, found = uint32(i), true
			break
		}
	}
	if !found {
		core.LogInfo("Device '%s' has no graphics+present queue family, skipping.", name)
		return 0, false
	}

	extensions, err := deviceExtensions(device)
	if err != nil {
		core.LogWarn("Enumerating extensions of '%s' failed: %s", name, err)
		return 0, false
	}
	if !extensions[vk.KhrSwapchainExtensionName] {
		core.LogInfo("Required extension not found: '%s', skipping device.", vk.KhrSwapchainExtensionName)
		return 0, false
	}

	formats, err := querySurfaceFormats(device, vc.Surface)
	if err != nil || len(formats) == 0 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return 0, false
	}
	modes, err := querySurfacePresentModes(device, vc.Surface)
	if err != nil || len(modes) == 0 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return 0, false
	}

	core.LogDebug("Device '%s' meets requirements, queue family %d.", name, family)
	return family, true
}

// deviceExtensions returns the set of extension names the device exposes,
// trimmed of their null padding.
func deviceExtensions(device vk.PhysicalDevice) (map[string]bool, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
	}
	available := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
			return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
		}
	}
	names := make(map[string]bool, count)
	for i := range available {
		available[i].Deref()
		names[cString(available[i].ExtensionName[:])] = true
	}
	return names, nil
}

func (vc *Context) createLogicalDevice() error {
	core.LogInfo("Creating logical device...")

	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: vc.QueueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if vc.anisotropy {
		deviceFeatures.SamplerAnisotropy = vk.True
	}

	extensions, err := deviceExtensions(vc.PhysicalDevice)
	if err != nil {
		return err
	}
	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if extensions[portabilitySubsetName] {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetName)
		extensionNames = append(extensionNames, portabilitySubsetName)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var device vk.Device
	if res := vk.CreateDevice(vc.PhysicalDevice, &deviceCreateInfo, vc.Allocator, &device); res != vk.Success {
		return resultError("vkCreateDevice", res)
	}
	vc.LogicalDevice = device
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(vc.LogicalDevice, vc.QueueFamily, 0, &queue)
	vc.Queue = queue
	vc.locks.SetQueueFamily(vc.QueueFamily)
	core.LogInfo("Queue obtained.")
	return nil
}

// detectDepthFormat picks the first candidate usable as an optimal-tiling
// depth attachment.
func (vc *Context) detectDepthFormat() error {
	candidates := []driver.Format{
		driver.FormatD32Sfloat,
		driver.FormatD32SfloatS8Uint,
		driver.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(vc.PhysicalDevice, toVkFormat(candidate), &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			vc.depthFormat = candidate
			return nil
		}
	}
	return fmt.Errorf("failed to find a supported depth format: %w", driver.ErrNoSuitableDevice)
}

func (vc *Context) SurfaceCapabilities() (driver.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(vc.PhysicalDevice, vc.Surface, &caps); res != vk.Success {
		return driver.SurfaceCapabilities{}, resultError("vkGetPhysicalDeviceSurfaceCapabilities", res)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	return driver.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  driver.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinImageExtent: driver.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxImageExtent: driver.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
	}, nil
}

func (vc *Context) SurfaceFormats() ([]driver.SurfaceFormat, error) {
	formats, err := querySurfaceFormats(vc.PhysicalDevice, vc.Surface)
	if err != nil {
		return nil, err
	}
	vc.surfaceFormats = formats

	out := make([]driver.SurfaceFormat, 0, len(formats))
	for _, f := range formats {
		out = append(out, driver.SurfaceFormat{
			Format:     fromVkFormat(f.Format),
			ColorSpace: fromVkColorSpace(f.ColorSpace),
		})
	}
	return out, nil
}

func (vc *Context) PresentModes() ([]driver.PresentMode, error) {
	modes, err := querySurfacePresentModes(vc.PhysicalDevice, vc.Surface)
	if err != nil {
		return nil, err
	}
	out := make([]driver.PresentMode, 0, len(modes))
	for _, m := range modes {
		if mode, ok := fromVkPresentMode(m); ok {
			out = append(out, mode)
		}
	}
	return out, nil
}

func querySurfaceFormats(device vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, error) {
	var count uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(device, surface, &count, nil); res != vk.Success {
		return nil, resultError("vkGetPhysicalDeviceSurfaceFormats", res)
	}
	formats := make([]vk.SurfaceFormat, count)
	if count > 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(device, surface, &count, formats); res != vk.Success {
			return nil, resultError("vkGetPhysicalDeviceSurfaceFormats", res)
		}
	}
	for i := range formats {
		formats[i].Deref()
	}
	return formats, nil
}

func querySurfacePresentModes(device vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, error) {
	var count uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &count, nil); res != vk.Success {
		return nil, resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
	}
	modes := make([]vk.PresentMode, count)
	if count > 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &count, modes); res != vk.Success {
			return nil, resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
		}
	}
	return modes, nil
}
