package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// Config drives the instance and device setup.
type Config struct {
	ApplicationName string
	// Validation enables VK_LAYER_KHRONOS_validation and the debug report
	// callback. Missing the layer is fatal when set.
	Validation bool
	// Diagnostics receives converted validation messages. Nil drops them.
	Diagnostics driver.DiagnosticHandler
}

// Window is the platform side of the bootstrap: it names the instance
// extensions the windowing system needs and creates the surface.
type Window interface {
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

// Context owns the instance, the surface and the logical device with its
// single graphics and present queue. It implements driver.Device.
type Context struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugCallback vk.DebugReportCallback

	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	QueueFamily    uint32
	Queue          vk.Queue

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	name        string
	limits      driver.Limits
	depthFormat driver.Format
	anisotropy  bool

	surfaceFormats []vk.SurfaceFormat

	locks *VulkanLockPool
}

// Bootstrap creates the instance, the surface and the logical device.
// Any error is fatal for the renderer.
func Bootstrap(cfg Config, window Window) (*Context, error) {
	ctx := &Context{
		Allocator: nil,
		locks:     NewVulkanLockPool(),
	}

	if err := ctx.createInstance(cfg, window.RequiredInstanceExtensions()); err != nil {
		ctx.Destroy()
		return nil, err
	}

	if cfg.Validation {
		if err := ctx.createDebugCallback(cfg.Diagnostics); err != nil {
			ctx.Destroy()
			return nil, err
		}
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateSurface(ctx.Instance)
	if err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("vulkan surface creation failed: %w", err)
	}
	ctx.Surface = surface
	core.LogDebug("Vulkan surface created.")

	if err := ctx.selectPhysicalDevice(); err != nil {
		ctx.Destroy()
		return nil, err
	}
	if err := ctx.createLogicalDevice(); err != nil {
		ctx.Destroy()
		return nil, err
	}
	if err := ctx.detectDepthFormat(); err != nil {
		ctx.Destroy()
		return nil, err
	}

	core.LogInfo("Vulkan device context initialized successfully.")
	return ctx, nil
}

// Destroy tears everything down in the opposite order of creation. It is
// safe to call on a partially bootstrapped context.
func (vc *Context) Destroy() {
	if vc.LogicalDevice != nil {
		vk.DeviceWaitIdle(vc.LogicalDevice)
		core.LogDebug("Destroying logical device...")
		vk.DestroyDevice(vc.LogicalDevice, vc.Allocator)
		vc.LogicalDevice = nil
		vc.Queue = nil
	}
	// Physical devices are not destroyed.
	vc.PhysicalDevice = nil

	if vc.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(vc.Instance, vc.Surface, vc.Allocator)
		vc.Surface = vk.NullSurface
	}
	if vc.debugCallback != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vc.Instance, vc.debugCallback, vc.Allocator)
		vc.debugCallback = vk.NullDebugReportCallback
		setDiagnosticHandler(nil)
	}
	if vc.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// has every bit of propertyFlags, or -1.
func (vc *Context) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	for i := uint32(0); i < vc.Memory.MemoryTypeCount; i++ {
		memoryType := vc.Memory.MemoryTypes[i]
		memoryType.Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryType.PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

func (vc *Context) Name() string {
	return vc.name
}

func (vc *Context) Limits() driver.Limits {
	return vc.limits
}

func (vc *Context) DepthFormat() driver.Format {
	return vc.depthFormat
}

func (vc *Context) WaitIdle() error {
	return resultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(vc.LogicalDevice))
}

func (vc *Context) QueueWaitIdle() error {
	return vc.locks.SafeQueueCall(vc.QueueFamily, func() error {
		return resultError("vkQueueWaitIdle", vk.QueueWaitIdle(vc.Queue))
	})
}
