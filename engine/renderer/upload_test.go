package renderer

import (
	"bytes"
	stdmath "math"
	"testing"

	"github.com/spaghettifunk/okapi/engine/renderer/driver"
	"github.com/spaghettifunk/okapi/engine/renderer/driver/drivertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUploader(t *testing.T, dev *drivertest.Device) (*Allocator, *Uploader) {
	t.Helper()
	dc := NewDeviceContext(dev)
	alloc := NewAllocator(dc)
	up, err := NewUploader(dc, alloc)
	require.NoError(t, err)
	t.Cleanup(func() {
		up.Destroy()
		alloc.Shutdown()
		assert.Zero(t, dev.Live())
		assert.Empty(t, dev.Violations)
	})
	return alloc, up
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestWriteBufferPersistentMapping(t *testing.T) {
	dev := drivertest.NewDevice()
	alloc, up := newTestUploader(t, dev)

	buf, err := alloc.CreateBuffer("ubo", 1024, driver.BufferUsageUniform, driver.ResidencyHostMappedPersistent)
	require.NoError(t, err)
	require.NotNil(t, buf.Mapped())

	data := pattern(1024)
	require.NoError(t, up.WriteBuffer(buf, data, 0))

	assert.Equal(t, data, buf.Buffer.(*drivertest.Buffer).Bytes())
	assert.Zero(t, dev.StagingCreated)
	assert.Empty(t, dev.Submits)
	require.NoError(t, alloc.DestroyBuffer(buf))
}

func TestWriteBufferMapsWhenNotPersistent(t *testing.T) {
	dev := drivertest.NewDevice()
	dev.UnmappedHostBuffers = true
	alloc, up := newTestUploader(t, dev)

	buf, err := alloc.CreateBuffer("ubo", 256, driver.BufferUsageUniform, driver.ResidencyHostSequentialWrite)
	require.NoError(t, err)
	require.Nil(t, buf.Mapped())

	data := pattern(64)
	require.NoError(t, up.WriteBuffer(buf, data, 128))

	fb := buf.Buffer.(*drivertest.Buffer)
	assert.Equal(t, data, fb.Bytes()[128:192])
	assert.Equal(t, 1, fb.Flushes)
	assert.False(t, fb.MappedNow())
	assert.Empty(t, dev.Submits)
	require.NoError(t, alloc.DestroyBuffer(buf))
}

func TestWriteBufferDeviceLocal(t *testing.T) {
	dev := drivertest.NewDevice()
	alloc, up := newTestUploader(t, dev)

	buf, err := alloc.CreateBuffer("vertices", 4096, driver.BufferUsageVertex|driver.BufferUsageTransferDst, driver.ResidencyDeviceLocal)
	require.NoError(t, err)

	data := pattern(1000)
	require.NoError(t, up.WriteBuffer(buf, data, 512))

	assert.Equal(t, 1, dev.StagingCreated)
	assert.Equal(t, 1, dev.StagingDestroyed)
	require.Len(t, dev.Submits, 1)
	assert.Nil(t, dev.Submits[0].Wait)
	assert.NotNil(t, dev.Submits[0].Fence)

	got := buf.Buffer.(*drivertest.Buffer).Bytes()
	assert.Equal(t, data, got[512:1512])
	assert.True(t, bytes.Equal(make([]byte, 512), got[:512]), "bytes before the offset were touched")

	// The upload fence and pool are ready for the next transfer.
	require.NoError(t, up.WriteBuffer(buf, pattern(16), 0))
	assert.Len(t, dev.Submits, 2)
	assert.Equal(t, 2, dev.StagingDestroyed)
	require.NoError(t, alloc.DestroyBuffer(buf))
}

func TestWriteBufferBounds(t *testing.T) {
	dev := drivertest.NewDevice()
	alloc, up := newTestUploader(t, dev)

	buf, err := alloc.CreateBuffer("small", 64, driver.BufferUsageStorage, driver.ResidencyHostSequentialWrite)
	require.NoError(t, err)

	assert.Error(t, up.WriteBuffer(buf, pattern(65), 0))
	assert.Error(t, up.WriteBuffer(buf, pattern(8), 60))
	assert.Error(t, up.WriteBuffer(buf, pattern(32), stdmath.MaxUint64-15), "offset wraps around")
	assert.Error(t, up.WriteBuffer(buf, pattern(8), 65))
	assert.NoError(t, up.WriteBuffer(buf, pattern(8), 56))
	assert.NoError(t, up.WriteBuffer(buf, nil, 64))
	assert.Error(t, up.WriteBuffer(nil, pattern(8), 0))
	require.NoError(t, alloc.DestroyBuffer(buf))
}

func TestWriteBufferSubmitFailure(t *testing.T) {
	dev := drivertest.NewDevice()
	alloc, up := newTestUploader(t, dev)

	buf, err := alloc.CreateBuffer("vertices", 64, driver.BufferUsageVertex|driver.BufferUsageTransferDst, driver.ResidencyDeviceLocal)
	require.NoError(t, err)

	dev.Fail("Submit", driver.ErrDeviceLost)
	require.ErrorIs(t, up.WriteBuffer(buf, pattern(64), 0), driver.ErrDeviceLost)
	assert.Equal(t, 1, dev.StagingDestroyed, "staging buffer leaked on failure")

	require.NoError(t, up.WriteBuffer(buf, pattern(64), 0))
	require.NoError(t, alloc.DestroyBuffer(buf))
}

func TestWriteImage(t *testing.T) {
	dev := drivertest.NewDevice()
	alloc, up := newTestUploader(t, dev)

	img, err := alloc.CreateImage("checker", driver.FormatR8G8B8A8Srgb, driver.Extent3D{Width: 4, Height: 4, Depth: 1},
		driver.ImageUsageSampled|driver.ImageUsageTransferDst, driver.AspectColor)
	require.NoError(t, err)

	pixels := pattern(4 * 4 * 4)
	require.NoError(t, up.WriteImage(img, pixels))

	fi := img.Image.(*drivertest.Image)
	assert.Equal(t, pixels, fi.Bytes())
	assert.Equal(t, driver.ImageLayoutShaderReadOnlyOptimal, fi.Layout)
	assert.Len(t, dev.Submits, 1)
	assert.Equal(t, 1, dev.StagingDestroyed)

	assert.Error(t, up.WriteImage(img, pixels[:10]))
	require.NoError(t, alloc.DestroyImage(img))
}
