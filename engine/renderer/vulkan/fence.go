package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

type Fence struct {
	ctx        *Context
	Handle     vk.Fence
	IsSignaled bool
}

func (vc *Context) NewFence(createSignaled bool) (driver.Fence, error) {
	fence := &Fence{
		ctx: vc,
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if createSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if res := vk.CreateFence(vc.LogicalDevice, &fenceCreateInfo, vc.Allocator, &handle); res != vk.Success {
		return nil, resultError("vkCreateFence", res)
	}
	fence.Handle = handle
	return fence, nil
}

func (vf *Fence) Destroy() {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(vf.ctx.LogicalDevice, vf.Handle, vf.ctx.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// Wait returns immediately when the fence is known to be signaled.
func (vf *Fence) Wait(timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(vf.ctx.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
	default:
		core.LogError("vk_fence_wait - %s", VulkanResultString(result, false))
	}
	return resultError("vkWaitForFences", result)
}

func (vf *Fence) Reset() error {
	if res := vk.ResetFences(vf.ctx.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
		return resultError("vkResetFences", res)
	}
	vf.IsSignaled = false
	return nil
}

type Semaphore struct {
	ctx    *Context
	Handle vk.Semaphore
}

func (vc *Context) NewSemaphore() (driver.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var handle vk.Semaphore
	if res := vk.CreateSemaphore(vc.LogicalDevice, &semaphoreCreateInfo, vc.Allocator, &handle); res != vk.Success {
		return nil, resultError("vkCreateSemaphore", res)
	}
	return &Semaphore{ctx: vc, Handle: handle}, nil
}

func (s *Semaphore) Destroy() {
	if s.Handle != vk.NullSemaphore {
		vk.DestroySemaphore(s.ctx.LogicalDevice, s.Handle, s.ctx.Allocator)
		s.Handle = vk.NullSemaphore
	}
}
