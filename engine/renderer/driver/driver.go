// Package driver defines the GPU object model the renderer is written
// against. The vulkan package implements it on top of goki/vulkan, and
// drivertest provides a recording fake for tests.
package driver

// Destroyer is implemented by every GPU object with an explicit lifetime.
type Destroyer interface {
	Destroy()
}

type Semaphore interface {
	Destroyer
}

// Fence is a CPU-observable signal of GPU completion.
type Fence interface {
	Destroyer
	// Wait blocks until the fence is signaled or timeout nanoseconds pass.
	Wait(timeout uint64) error
	// Reset returns the fence to the unsignaled state.
	Reset() error
}

type CommandPool interface {
	Destroyer
	// Allocate returns a new primary command buffer from the pool.
	Allocate() (CommandBuffer, error)
	// Reset recycles every command buffer allocated from the pool.
	Reset() error
}

// CommandBuffer records GPU work. Destroy frees it back to its pool.
type CommandBuffer interface {
	Destroyer
	Begin(oneTimeSubmit bool) error
	End() error

	BeginRenderPass(rp RenderPass, fb Framebuffer, area Rect2D, clear ClearValues)
	EndRenderPass()
	SetViewport(vp Viewport)
	SetScissor(rect Rect2D)

	BindPipeline(p Pipeline)
	BindDescriptorSets(layout PipelineLayout, firstSet uint32, sets []DescriptorSet, dynamicOffsets []uint32)
	BindVertexBuffer(b Buffer, offset uint64)
	PushConstants(layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	CopyBuffer(src, dst Buffer, regions ...BufferCopy)
	CopyBufferToImage(src Buffer, dst Image, layout ImageLayout)
	PipelineBarrier(barriers ...ImageBarrier)
}

// Buffer is a linear GPU allocation.
type Buffer interface {
	Destroyer
	Size() uint64
	Usage() BufferUsage
	Residency() Residency
	// Mapped returns the persistent host mapping, or nil if the buffer
	// was not mapped at creation.
	Mapped() []byte
	// Map maps the whole buffer. Only valid for host visible memory.
	Map() ([]byte, error)
	// Flush makes host writes in [offset, offset+size) visible to the device.
	Flush(offset, size uint64) error
	Unmap()
}

// Image is a device-local image together with its default view.
type Image interface {
	Destroyer
	Format() Format
	Extent() Extent3D
	View() ImageView
}

type ImageView interface {
	Destroyer
}

type Sampler interface {
	Destroyer
}

// Swapchain is the chain of presentable images. The image views are
// owned by the caller and must be destroyed before the chain.
type Swapchain interface {
	Destroyer
	Format() SurfaceFormat
	PresentMode() PresentMode
	Extent() Extent2D
	Views() []ImageView
}

type RenderPass interface {
	Destroyer
}

type Framebuffer interface {
	Destroyer
}

type DescriptorSetLayout interface {
	Destroyer
}

// DescriptorPool hands out descriptor sets. Destroying the pool frees
// every set allocated from it.
type DescriptorPool interface {
	Destroyer
	Allocate(layout DescriptorSetLayout) (DescriptorSet, error)
}

type DescriptorSet interface {
	Update(writes ...DescriptorWrite)
}

type ShaderModule interface {
	Destroyer
}

type PipelineLayout interface {
	Destroyer
}

type Pipeline interface {
	Destroyer
}

// Device is a logical device with a single graphics and present queue,
// bound to one presentation surface.
type Device interface {
	Destroyer

	Name() string
	Limits() Limits
	DepthFormat() Format

	// WaitIdle blocks until the device has no pending work.
	WaitIdle() error
	// QueueWaitIdle blocks until the graphics queue is drained.
	QueueWaitIdle() error

	SurfaceCapabilities() (SurfaceCapabilities, error)
	SurfaceFormats() ([]SurfaceFormat, error)
	PresentModes() ([]PresentMode, error)

	NewSwapchain(cfg SwapchainConfig, old Swapchain) (Swapchain, error)
	// AcquireNextImage returns ErrSuboptimal or ErrOutOfDate when the
	// swapchain no longer matches the surface.
	AcquireNextImage(sc Swapchain, timeout uint64, signal Semaphore) (uint32, error)
	// Present returns ErrSuboptimal or ErrOutOfDate when the swapchain no
	// longer matches the surface.
	Present(sc Swapchain, imageIndex uint32, wait Semaphore) error

	NewSemaphore() (Semaphore, error)
	NewFence(signaled bool) (Fence, error)
	NewCommandPool(flags CommandPoolFlags) (CommandPool, error)
	Submit(info SubmitInfo) error

	NewBuffer(spec BufferSpec) (Buffer, error)
	NewImage(spec ImageSpec) (Image, error)
	NewSampler(cfg SamplerConfig) (Sampler, error)

	NewRenderPass(color, depth Format) (RenderPass, error)
	NewFramebuffer(rp RenderPass, attachments []ImageView, extent Extent2D) (Framebuffer, error)

	NewDescriptorSetLayout(bindings ...DescriptorBinding) (DescriptorSetLayout, error)
	NewDescriptorPool(maxSets uint32, sizes ...DescriptorPoolSize) (DescriptorPool, error)

	NewShaderModule(code []byte) (ShaderModule, error)
	NewPipelineLayout(sets []DescriptorSetLayout, push []PushConstantRange) (PipelineLayout, error)
	NewGraphicsPipeline(cfg PipelineConfig) (Pipeline, error)
}
