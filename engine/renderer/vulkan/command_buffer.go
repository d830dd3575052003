package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type CommandPool struct {
	ctx     *Context
	Handle  vk.CommandPool
	buffers []*CommandBuffer
}

func (vc *Context) NewCommandPool(flags driver.CommandPoolFlags) (driver.CommandPool, error) {
	var createFlags vk.CommandPoolCreateFlags
	if flags&driver.CommandPoolTransient != 0 {
		createFlags |= vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit)
	}
	if flags&driver.CommandPoolResetCommandBuffer != 0 {
		createFlags |= vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit)
	}

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: vc.QueueFamily,
		Flags:            createFlags,
	}
	var handle vk.CommandPool
	if err := vc.locks.SafeCall(CommandPoolManagement, func() error {
		return resultError("vkCreateCommandPool", vk.CreateCommandPool(vc.LogicalDevice, &poolCreateInfo, vc.Allocator, &handle))
	}); err != nil {
		return nil, err
	}
	return &CommandPool{ctx: vc, Handle: handle}, nil
}

// Destroy frees the pool and every command buffer allocated from it.
func (cp *CommandPool) Destroy() {
	if cp.Handle == nil {
		return
	}
	cp.ctx.locks.SafeCall(CommandPoolManagement, func() error {
		vk.DestroyCommandPool(cp.ctx.LogicalDevice, cp.Handle, cp.ctx.Allocator)
		return nil
	})
	for _, cb := range cp.buffers {
		cb.Handle = nil
		cb.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
	}
	cp.buffers = nil
	cp.Handle = nil
}

func (cp *CommandPool) Allocate() (driver.CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        cp.Handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if err := cp.ctx.locks.SafeCall(CommandBufferManagement, func() error {
		return resultError("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(cp.ctx.LogicalDevice, &allocateInfo, handles))
	}); err != nil {
		return nil, err
	}
	cb := &CommandBuffer{pool: cp, Handle: handles[0], State: COMMAND_BUFFER_STATE_READY}
	cp.buffers = append(cp.buffers, cb)
	return cb, nil
}

// Reset returns every buffer of the pool to the initial state.
func (cp *CommandPool) Reset() error {
	if res := vk.ResetCommandPool(cp.ctx.LogicalDevice, cp.Handle, 0); res != vk.Success {
		return resultError("vkResetCommandPool", res)
	}
	for _, cb := range cp.buffers {
		cb.State = COMMAND_BUFFER_STATE_READY
	}
	return nil
}

type CommandBuffer struct {
	pool   *CommandPool
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState
}

func (v *CommandBuffer) Destroy() {
	if v.Handle == nil {
		return
	}
	ctx := v.pool.ctx
	ctx.locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(ctx.LogicalDevice, v.pool.Handle, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	for i, cb := range v.pool.buffers {
		if cb == v {
			v.pool.buffers = append(v.pool.buffers[:i], v.pool.buffers[i+1:]...)
			break
		}
	}
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *CommandBuffer) Begin(oneTimeSubmit bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if res := vk.BeginCommandBuffer(v.Handle, beginInfo); res != vk.Success {
		return resultError("vkBeginCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *CommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		return resultError("vkEndCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *CommandBuffer) BeginRenderPass(rp driver.RenderPass, fb driver.Framebuffer, area driver.Rect2D, clear driver.ClearValues) {
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(clear.Color[:])
	clearValues[1].SetDepthStencil(clear.Depth, clear.Stencil)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.(*RenderPass).Handle,
		Framebuffer: fb.(*Framebuffer).Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: area.X, Y: area.Y},
			Extent: vk.Extent2D{Width: area.Extent.Width, Height: area.Extent.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(v.Handle, &beginInfo, vk.SubpassContentsInline)
	v.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (v *CommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(v.Handle)
	v.State = COMMAND_BUFFER_STATE_RECORDING
}

func (v *CommandBuffer) SetViewport(vp driver.Viewport) {
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}})
}

func (v *CommandBuffer) SetScissor(rect driver.Rect2D) {
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: rect.X, Y: rect.Y},
		Extent: vk.Extent2D{Width: rect.Extent.Width, Height: rect.Extent.Height},
	}})
}

func (v *CommandBuffer) BindPipeline(p driver.Pipeline) {
	vk.CmdBindPipeline(v.Handle, vk.PipelineBindPointGraphics, p.(*Pipeline).Handle)
}

func (v *CommandBuffer) BindDescriptorSets(layout driver.PipelineLayout, firstSet uint32, sets []driver.DescriptorSet, dynamicOffsets []uint32) {
	handles := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		handles[i] = s.(*DescriptorSet).Handle
	}
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, layout.(*PipelineLayout).Handle,
		firstSet, uint32(len(handles)), handles, uint32(len(dynamicOffsets)), dynamicOffsets)
}

func (v *CommandBuffer) BindVertexBuffer(b driver.Buffer, offset uint64) {
	vk.CmdBindVertexBuffers(v.Handle, 0, 1, []vk.Buffer{b.(*Buffer).Handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (v *CommandBuffer) PushConstants(layout driver.PipelineLayout, stages driver.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(v.Handle, layout.(*PipelineLayout).Handle, toVkShaderStage(stages),
		offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (v *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(v.Handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (v *CommandBuffer) CopyBuffer(src, dst driver.Buffer, regions ...driver.BufferCopy) {
	if len(regions) == 0 {
		regions = []driver.BufferCopy{{Size: src.Size()}}
	}
	copies := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		copies[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(v.Handle, src.(*Buffer).Handle, dst.(*Buffer).Handle, uint32(len(copies)), copies)
}

// CopyBufferToImage copies a tightly packed buffer into the whole first
// mip level of dst.
func (v *CommandBuffer) CopyBufferToImage(src driver.Buffer, dst driver.Image, layout driver.ImageLayout) {
	img := dst.(*Image)
	extent := img.Extent()
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     toVkAspect(img.spec.Aspect),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: max(extent.Depth, 1)},
	}
	vk.CmdCopyBufferToImage(v.Handle, src.(*Buffer).Handle, img.Handle, toVkLayout(layout), 1, []vk.BufferImageCopy{region})
}

func (v *CommandBuffer) PipelineBarrier(barriers ...driver.ImageBarrier) {
	for _, b := range barriers {
		img := b.Image.(*Image)
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       toVkAccess(b.SrcAccess),
			DstAccessMask:       toVkAccess(b.DstAccess),
			OldLayout:           toVkLayout(b.OldLayout),
			NewLayout:           toVkLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img.Handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     toVkAspect(img.spec.Aspect),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		vk.CmdPipelineBarrier(v.Handle, toVkStage(b.SrcStage), toVkStage(b.DstStage), 0,
			0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	}
}

// Submit hands one batch to the graphics queue under the queue lock.
func (vc *Context) Submit(info driver.SubmitInfo) error {
	commandBuffers := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, cb := range info.CommandBuffers {
		commandBuffers[i] = cb.(*CommandBuffer).Handle
	}
	waits := make([]vk.Semaphore, len(info.Wait))
	stages := make([]vk.PipelineStageFlags, len(info.Wait))
	for i, s := range info.Wait {
		waits[i] = s.(*Semaphore).Handle
		if i < len(info.WaitStages) {
			stages[i] = toVkStage(info.WaitStages[i])
		}
	}
	signals := make([]vk.Semaphore, len(info.Signal))
	for i, s := range info.Signal {
		signals[i] = s.(*Semaphore).Handle
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(commandBuffers)),
		PCommandBuffers:      commandBuffers,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}

	fence := vk.NullFence
	var vf *Fence
	if info.Fence != nil {
		vf = info.Fence.(*Fence)
		fence = vf.Handle
	}

	if err := vc.locks.SafeQueueCall(vc.QueueFamily, func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(vc.Queue, 1, []vk.SubmitInfo{submitInfo}, fence))
	}); err != nil {
		core.LogError("%s", err)
		return err
	}

	for _, cb := range info.CommandBuffers {
		cb.(*CommandBuffer).State = COMMAND_BUFFER_STATE_SUBMITTED
	}
	if vf != nil {
		vf.IsSignaled = false
	}
	return nil
}
