package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// Uploader moves data from host memory into buffers and images. Transfers
// to device-local memory are submitted synchronously on a dedicated
// command buffer and fence.
type Uploader struct {
	dc    *DeviceContext
	alloc *Allocator

	pool  driver.CommandPool
	cmd   driver.CommandBuffer
	fence driver.Fence
}

func NewUploader(dc *DeviceContext, alloc *Allocator) (*Uploader, error) {
	dev := dc.Device()
	u := &Uploader{dc: dc, alloc: alloc}

	var err error
	if u.fence, err = dev.NewFence(false); err != nil {
		return nil, fmt.Errorf("failed to create upload fence: %w", err)
	}
	if u.pool, err = dev.NewCommandPool(driver.CommandPoolTransient); err != nil {
		u.Destroy()
		return nil, fmt.Errorf("failed to create upload command pool: %w", err)
	}
	if u.cmd, err = u.pool.Allocate(); err != nil {
		u.Destroy()
		return nil, fmt.Errorf("failed to allocate upload command buffer: %w", err)
	}
	return u, nil
}

// ImmediateSubmit records the commands of record into the upload command
// buffer, submits them alone and blocks until the device is done.
func (u *Uploader) ImmediateSubmit(record func(cb driver.CommandBuffer)) error {
	if err := u.cmd.Begin(true); err != nil {
		return fmt.Errorf("failed to begin upload command buffer: %w", err)
	}
	record(u.cmd)
	if err := u.cmd.End(); err != nil {
		return fmt.Errorf("failed to end upload command buffer: %w", err)
	}

	if err := u.dc.Device().Submit(driver.SubmitInfo{
		CommandBuffers: []driver.CommandBuffer{u.cmd},
		Fence:          u.fence,
	}); err != nil {
		u.pool.Reset()
		return fmt.Errorf("failed to submit upload: %w", err)
	}
	if err := u.fence.Wait(driver.WaitForever); err != nil {
		return fmt.Errorf("failed to wait for upload: %w", err)
	}
	if err := u.fence.Reset(); err != nil {
		return err
	}
	return u.pool.Reset()
}

// WriteBuffer copies data into dst starting at offset.
func (u *Uploader) WriteBuffer(dst *AllocatedBuffer, data []byte, offset uint64) error {
	if dst == nil {
		return errors.New("write to a nil buffer")
	}
	if len(data) == 0 {
		return nil
	}
	size := uint64(len(data))
	if offset > dst.Size() || size > dst.Size()-offset {
		return fmt.Errorf("write of %d bytes at offset %d exceeds buffer %q of %d bytes", size, offset, dst.name, dst.Size())
	}

	if dst.HostVisible() {
		return writeHost(dst.Buffer, data, offset)
	}

	staging, err := u.alloc.CreateBuffer("staging", size, driver.BufferUsageTransferSrc, driver.ResidencyHostSequentialWrite)
	if err != nil {
		return err
	}
	defer u.alloc.DestroyBuffer(staging)

	if err := writeHost(staging.Buffer, data, 0); err != nil {
		return err
	}
	return u.ImmediateSubmit(func(cb driver.CommandBuffer) {
		cb.CopyBuffer(staging.Buffer, dst.Buffer, driver.BufferCopy{SrcOffset: 0, DstOffset: offset, Size: size})
	})
}

// WriteImage fills dst with tightly packed RGBA8 pixels and leaves it in
// the shader read-only layout.
func (u *Uploader) WriteImage(dst *AllocatedImage, pixels []byte) error {
	if dst == nil {
		return errors.New("write to a nil image")
	}
	ext := dst.Extent()
	want := uint64(ext.Width) * uint64(ext.Height) * 4
	if uint64(len(pixels)) != want {
		return fmt.Errorf("image %q expects %d bytes of pixels, got %d", dst.name, want, len(pixels))
	}

	staging, err := u.alloc.CreateBuffer("staging", want, driver.BufferUsageTransferSrc, driver.ResidencyHostSequentialWrite)
	if err != nil {
		return err
	}
	defer u.alloc.DestroyBuffer(staging)

	if err := writeHost(staging.Buffer, pixels, 0); err != nil {
		return err
	}
	return u.ImmediateSubmit(func(cb driver.CommandBuffer) {
		cb.PipelineBarrier(driver.ImageBarrier{
			Image:     dst.Image,
			OldLayout: driver.ImageLayoutUndefined,
			NewLayout: driver.ImageLayoutTransferDstOptimal,
			SrcStage:  driver.PipelineStageTopOfPipe,
			DstStage:  driver.PipelineStageTransfer,
			SrcAccess: driver.AccessNone,
			DstAccess: driver.AccessTransferWrite,
		})
		cb.CopyBufferToImage(staging.Buffer, dst.Image, driver.ImageLayoutTransferDstOptimal)
		cb.PipelineBarrier(driver.ImageBarrier{
			Image:     dst.Image,
			OldLayout: driver.ImageLayoutTransferDstOptimal,
			NewLayout: driver.ImageLayoutShaderReadOnlyOptimal,
			SrcStage:  driver.PipelineStageTransfer,
			DstStage:  driver.PipelineStageFragmentShader,
			SrcAccess: driver.AccessTransferWrite,
			DstAccess: driver.AccessShaderRead,
		})
	})
}

// writeHost copies into host visible memory, through the persistent
// mapping when there is one.
func writeHost(b driver.Buffer, data []byte, offset uint64) error {
	if mapped := b.Mapped(); mapped != nil {
		copy(mapped[offset:], data)
		return nil
	}
	mapped, err := b.Map()
	if err != nil {
		return fmt.Errorf("failed to map buffer: %w", err)
	}
	copy(mapped[offset:], data)
	err = b.Flush(offset, uint64(len(data)))
	b.Unmap()
	if err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

func (u *Uploader) Destroy() {
	if u.cmd != nil {
		u.cmd.Destroy()
		u.cmd = nil
	}
	if u.pool != nil {
		u.pool.Destroy()
		u.pool = nil
	}
	if u.fence != nil {
		u.fence.Destroy()
		u.fence = nil
	}
}
