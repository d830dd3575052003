package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// descriptorsPerType is the capacity of the frame descriptor pool for each
// descriptor type.
const descriptorsPerType = 10

// FrameSlot holds everything one in-flight frame needs. The CPU must not
// touch the command buffer or the buffers before Fence has been waited on.
type FrameSlot struct {
	Index uint32

	CommandPool   driver.CommandPool
	CommandBuffer driver.CommandBuffer
	Fence         driver.Fence

	// AcquireSemaphore is the semaphore the current image was acquired
	// with. It is swapped for a pooled one every frame.
	AcquireSemaphore driver.Semaphore
	// ReleaseSemaphore is created on first submit and signaled when
	// rendering to the slot's image is done.
	ReleaseSemaphore driver.Semaphore

	CameraBuffer *AllocatedBuffer
	ObjectBuffer *AllocatedBuffer

	GlobalSet driver.DescriptorSet
	ObjectSet driver.DescriptorSet

	// fenceWaited is set once Fence has been waited on and cleared by the
	// next submit, so a frame that fails to begin does not wait twice.
	fenceWaited bool
}

// FramePool owns one FrameSlot per swapchain image, the shared scene
// uniform buffer and the descriptor pool the slot sets come from.
type FramePool struct {
	dc         *DeviceContext
	alloc      *Allocator
	semaphores *SemaphorePool
	layouts    *DescriptorLayouts
	maxObjects uint32

	slots          []*FrameSlot
	sceneBuffer    *AllocatedBuffer
	sceneStride    uint64
	descriptorPool driver.DescriptorPool
}

func NewFramePool(dc *DeviceContext, alloc *Allocator, semaphores *SemaphorePool, layouts *DescriptorLayouts, maxObjects uint32) *FramePool {
	if maxObjects == 0 {
		maxObjects = MaxObjects
	}
	return &FramePool{
		dc:          dc,
		alloc:       alloc,
		semaphores:  semaphores,
		layouts:     layouts,
		maxObjects:  maxObjects,
		sceneStride: dc.PadUniformBufferSize(SceneDataSize),
	}
}

// Init creates n slots together with the scene buffer and descriptor pool
// they share.
func (p *FramePool) Init(n uint32) error {
	if len(p.slots) > 0 {
		return errors.New("frame pool is already initialized")
	}
	if n == 0 {
		return fmt.Errorf("frame pool of zero slots: %w", core.ErrInvalidConfig)
	}

	pool, err := p.dc.Device().NewDescriptorPool(max(descriptorsPerType, 2*n), descriptorPoolSizes(descriptorsPerType)...)
	if err != nil {
		return fmt.Errorf("failed to create frame descriptor pool: %w", err)
	}
	p.descriptorPool = pool

	p.sceneBuffer, err = p.alloc.CreateBuffer("scene", uint64(n)*p.sceneStride, driver.BufferUsageUniform, driver.ResidencyHostSequentialWrite)
	if err != nil {
		p.Teardown()
		return err
	}

	p.slots = make([]*FrameSlot, 0, n)
	for i := uint32(0); i < n; i++ {
		slot, err := p.InitSlot(i)
		if err != nil {
			p.Teardown()
			return fmt.Errorf("failed to initialize frame slot %d: %w", i, err)
		}
		p.slots = append(p.slots, slot)
	}
	core.LogDebug("Frame pool initialized with %d slots.", n)
	return nil
}

// InitSlot creates the synchronization primitives, command buffer, buffers
// and descriptor sets of a single slot. Init must have created the shared
// scene buffer and descriptor pool first.
func (p *FramePool) InitSlot(index uint32) (*FrameSlot, error) {
	if p.descriptorPool == nil || p.sceneBuffer == nil {
		return nil, errors.New("frame pool has no descriptor pool")
	}
	dev := p.dc.Device()
	slot := &FrameSlot{Index: index}

	var err error
	// Signaled so the first wait on the slot returns immediately.
	if slot.Fence, err = dev.NewFence(true); err != nil {
		return nil, fmt.Errorf("failed to create in-flight fence: %w", err)
	}
	if slot.CommandPool, err = dev.NewCommandPool(driver.CommandPoolTransient | driver.CommandPoolResetCommandBuffer); err != nil {
		p.TeardownSlot(slot)
		return nil, fmt.Errorf("failed to create command pool: %w", err)
	}
	if slot.CommandBuffer, err = slot.CommandPool.Allocate(); err != nil {
		p.TeardownSlot(slot)
		return nil, fmt.Errorf("failed to allocate command buffer: %w", err)
	}

	name := fmt.Sprintf("camera-%d", index)
	if slot.CameraBuffer, err = p.alloc.CreateBuffer(name, CameraDataSize, driver.BufferUsageUniform|driver.BufferUsageTransferDst, driver.ResidencyHostSequentialWrite); err != nil {
		p.TeardownSlot(slot)
		return nil, err
	}
	name = fmt.Sprintf("objects-%d", index)
	if slot.ObjectBuffer, err = p.alloc.CreateBuffer(name, uint64(p.maxObjects)*ObjectDataSize, driver.BufferUsageStorage, driver.ResidencyHostSequentialWrite); err != nil {
		p.TeardownSlot(slot)
		return nil, err
	}

	if slot.GlobalSet, err = p.descriptorPool.Allocate(p.layouts.Global); err != nil {
		p.TeardownSlot(slot)
		return nil, fmt.Errorf("failed to allocate global descriptor set: %w", err)
	}
	slot.GlobalSet.Update(
		driver.DescriptorWrite{
			Binding: 0,
			Type:    driver.DescriptorTypeUniformBuffer,
			Buffer:  slot.CameraBuffer.Buffer,
			Range:   CameraDataSize,
		},
		driver.DescriptorWrite{
			Binding: 1,
			Type:    driver.DescriptorTypeUniformBufferDynamic,
			Buffer:  p.sceneBuffer.Buffer,
			Range:   SceneDataSize,
		},
	)

	if slot.ObjectSet, err = p.descriptorPool.Allocate(p.layouts.Object); err != nil {
		p.TeardownSlot(slot)
		return nil, fmt.Errorf("failed to allocate object descriptor set: %w", err)
	}
	slot.ObjectSet.Update(driver.DescriptorWrite{
		Binding: 0,
		Type:    driver.DescriptorTypeStorageBuffer,
		Buffer:  slot.ObjectBuffer.Buffer,
		Range:   uint64(p.maxObjects) * ObjectDataSize,
	})
	return slot, nil
}

// TeardownSlot destroys the slot's objects. The caller must make sure the
// device no longer uses them. The descriptor sets go with the pool.
func (p *FramePool) TeardownSlot(slot *FrameSlot) {
	if slot == nil {
		return
	}
	if err := p.alloc.DestroyBuffer(slot.CameraBuffer); err != nil {
		core.LogError("frame slot %d: %s", slot.Index, err)
	}
	if err := p.alloc.DestroyBuffer(slot.ObjectBuffer); err != nil {
		core.LogError("frame slot %d: %s", slot.Index, err)
	}
	slot.CameraBuffer, slot.ObjectBuffer = nil, nil
	slot.GlobalSet, slot.ObjectSet = nil, nil

	if slot.Fence != nil {
		slot.Fence.Destroy()
		slot.Fence = nil
	}
	if slot.CommandBuffer != nil {
		slot.CommandBuffer.Destroy()
		slot.CommandBuffer = nil
	}
	if slot.CommandPool != nil {
		slot.CommandPool.Destroy()
		slot.CommandPool = nil
	}
	if slot.AcquireSemaphore != nil {
		slot.AcquireSemaphore.Destroy()
		slot.AcquireSemaphore = nil
	}
	if slot.ReleaseSemaphore != nil {
		slot.ReleaseSemaphore.Destroy()
		slot.ReleaseSemaphore = nil
	}
}

// Teardown destroys every slot, the shared scene buffer and descriptor
// pool, and drains the semaphore pool.
func (p *FramePool) Teardown() {
	for _, slot := range p.slots {
		p.TeardownSlot(slot)
	}
	p.slots = nil

	if p.sceneBuffer != nil {
		if err := p.alloc.DestroyBuffer(p.sceneBuffer); err != nil {
			core.LogError("frame pool: %s", err)
		}
		p.sceneBuffer = nil
	}
	if p.descriptorPool != nil {
		p.descriptorPool.Destroy()
		p.descriptorPool = nil
	}
	p.semaphores.Drain()
}

// Slot returns the slot for a swapchain image index.
func (p *FramePool) Slot(i uint32) *FrameSlot {
	if int(i) >= len(p.slots) {
		return nil
	}
	return p.slots[i]
}

func (p *FramePool) Len() int {
	return len(p.slots)
}

func (p *FramePool) MaxObjects() uint32 {
	return p.maxObjects
}

// SceneOffset returns the dynamic offset of slot i's entry in the scene
// buffer.
func (p *FramePool) SceneOffset(i uint32) uint32 {
	return uint32(uint64(i) * p.sceneStride)
}

// SceneBuffer is the shared dynamic scene uniform buffer.
func (p *FramePool) SceneBuffer() *AllocatedBuffer {
	return p.sceneBuffer
}

// Semaphores is the acquire semaphore recycle pool.
func (p *FramePool) Semaphores() *SemaphorePool {
	return p.semaphores
}
