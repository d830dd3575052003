package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// Buffer is a VkBuffer with its own dedicated memory allocation.
type Buffer struct {
	ctx        *Context
	Handle     vk.Buffer
	Memory     vk.DeviceMemory
	spec       driver.BufferSpec
	coherent   bool
	persistent []byte
	mapped     []byte
}

func memoryFlagsFor(residency driver.Residency) uint32 {
	if residency.HostVisible() {
		return uint32(vk.MemoryPropertyHostVisibleBit) | uint32(vk.MemoryPropertyHostCoherentBit)
	}
	return uint32(vk.MemoryPropertyDeviceLocalBit)
}

func (vc *Context) allocateMemory(req vk.MemoryRequirements, flags uint32) (vk.DeviceMemory, error) {
	memoryIndex := vc.FindMemoryIndex(req.MemoryTypeBits, flags)
	if memoryIndex < 0 {
		return nil, fmt.Errorf("no memory type with flags 0x%x: %w", flags, driver.ErrOutOfMemory)
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if err := vc.locks.SafeCall(MemoryManagement, func() error {
		return resultError("vkAllocateMemory", vk.AllocateMemory(vc.LogicalDevice, &allocateInfo, vc.Allocator, &memory))
	}); err != nil {
		return nil, err
	}
	return memory, nil
}

func (vc *Context) NewBuffer(spec driver.BufferSpec) (driver.Buffer, error) {
	if spec.Size == 0 {
		return nil, fmt.Errorf("cannot create a buffer of size 0")
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(spec.Size),
		Usage:       toVkBufferUsage(spec.Usage),
		SharingMode: vk.SharingModeExclusive,
	}

	b := &Buffer{ctx: vc, spec: spec}
	if err := vc.locks.SafeCall(BufferManagement, func() error {
		return resultError("vkCreateBuffer", vk.CreateBuffer(vc.LogicalDevice, &bufferInfo, vc.Allocator, &b.Handle))
	}); err != nil {
		return nil, err
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(vc.LogicalDevice, b.Handle, &req)
	req.Deref()

	flags := memoryFlagsFor(spec.Residency)
	memory, err := vc.allocateMemory(req, flags)
	if err != nil {
		b.Destroy()
		return nil, err
	}
	b.Memory = memory
	b.coherent = flags&uint32(vk.MemoryPropertyHostCoherentBit) != 0

	if res := vk.BindBufferMemory(vc.LogicalDevice, b.Handle, b.Memory, 0); res != vk.Success {
		b.Destroy()
		return nil, resultError("vkBindBufferMemory", res)
	}

	if spec.Residency.HostVisible() {
		data, err := b.mapMemory()
		if err != nil {
			b.Destroy()
			return nil, err
		}
		b.persistent = data
	}
	return b, nil
}

func (b *Buffer) Size() uint64                { return b.spec.Size }
func (b *Buffer) Usage() driver.BufferUsage   { return b.spec.Usage }
func (b *Buffer) Residency() driver.Residency { return b.spec.Residency }
func (b *Buffer) Mapped() []byte              { return b.persistent }

func (b *Buffer) mapMemory() ([]byte, error) {
	var ptr unsafe.Pointer
	if res := vk.MapMemory(b.ctx.LogicalDevice, b.Memory, 0, vk.DeviceSize(b.spec.Size), 0, &ptr); res != vk.Success {
		return nil, resultError("vkMapMemory", res)
	}
	return unsafe.Slice((*byte)(ptr), b.spec.Size), nil
}

// Map returns the persistent mapping when there is one.
func (b *Buffer) Map() ([]byte, error) {
	if !b.spec.Residency.HostVisible() {
		return nil, driver.ErrNotHostVisible
	}
	if b.persistent != nil {
		return b.persistent, nil
	}
	if b.mapped != nil {
		return nil, fmt.Errorf("buffer is already mapped")
	}
	data, err := b.mapMemory()
	if err != nil {
		return nil, err
	}
	b.mapped = data
	return data, nil
}

func (b *Buffer) Flush(offset, size uint64) error {
	if offset+size > b.spec.Size {
		return fmt.Errorf("flush range [%d, %d) outside buffer of size %d", offset, offset+size, b.spec.Size)
	}
	if b.coherent {
		return nil
	}
	memoryRange := vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: b.Memory,
		Offset: 0,
		Size:   vk.DeviceSize(vk.WholeSize),
	}
	return resultError("vkFlushMappedMemoryRanges", vk.FlushMappedMemoryRanges(b.ctx.LogicalDevice, 1, []vk.MappedMemoryRange{memoryRange}))
}

// Unmap releases a mapping made by Map. Persistent mappings stay.
func (b *Buffer) Unmap() {
	if b.mapped == nil {
		return
	}
	vk.UnmapMemory(b.ctx.LogicalDevice, b.Memory)
	b.mapped = nil
}

func (b *Buffer) Destroy() {
	if b.persistent != nil || b.mapped != nil {
		vk.UnmapMemory(b.ctx.LogicalDevice, b.Memory)
		b.persistent, b.mapped = nil, nil
	}
	b.ctx.locks.SafeCall(BufferManagement, func() error {
		if b.Handle != nil {
			vk.DestroyBuffer(b.ctx.LogicalDevice, b.Handle, b.ctx.Allocator)
			b.Handle = nil
		}
		if b.Memory != nil {
			vk.FreeMemory(b.ctx.LogicalDevice, b.Memory, b.ctx.Allocator)
			b.Memory = nil
		}
		return nil
	})
}
