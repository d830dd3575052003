package renderer

import (
	"encoding/binary"
	stdmath "math"
	"testing"

	"github.com/spaghettifunk/okapi/engine/math"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
	"github.com/spaghettifunk/okapi/engine/renderer/driver/drivertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadSize(t *testing.T) {
	tests := []struct {
		size, alignment, want uint64
	}{
		{80, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{0, 256, 0},
		{80, 0, 80},
		{80, 1, 80},
		{13, 4, 16},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PadSize(tt.size, tt.alignment), "size %d alignment %d", tt.size, tt.alignment)
	}
}

func TestPadSizeProperties(t *testing.T) {
	for shift := 0; shift <= 10; shift++ {
		a := uint64(1) << shift
		for s := uint64(0); s < 2048; s++ {
			p := PadSize(s, a)
			require.GreaterOrEqual(t, p, s)
			require.Zero(t, p%a, "PadSize(%d, %d) = %d", s, a, p)
			require.Less(t, p-s, a)
			require.Equal(t, p, PadSize(p, a), "not idempotent")
		}
	}
}

func TestDeviceContextPadsUniforms(t *testing.T) {
	dev := drivertest.NewDevice()
	dev.DeviceLimits.MinUniformBufferOffsetAlignment = 64
	dc := NewDeviceContext(dev)

	assert.Equal(t, uint64(64), dc.Limits().MinUniformBufferOffsetAlignment)
	assert.Equal(t, uint64(128), dc.PadUniformBufferSize(SceneDataSize))

	dc.Destroy()
	dc.Destroy()
	assert.Nil(t, dc.Device())
}

func TestAllocatorOwnership(t *testing.T) {
	dev := drivertest.NewDevice()
	dc := NewDeviceContext(dev)
	a := NewAllocator(dc)
	other := NewAllocator(dc)

	buf, err := a.CreateBuffer("b", 128, driver.BufferUsageUniform, driver.ResidencyHostSequentialWrite)
	require.NoError(t, err)
	assert.True(t, buf.HostVisible())
	assert.NotNil(t, buf.Mapped())
	assert.Equal(t, uint64(128), buf.Size())

	img, err := a.CreateImage("i", driver.FormatD32Sfloat, driver.Extent3D{Width: 8, Height: 8, Depth: 1},
		driver.ImageUsageDepthStencilAttachment, driver.AspectDepth)
	require.NoError(t, err)
	assert.Equal(t, driver.FormatD32Sfloat, img.Format())

	bufs, imgs := a.Live()
	assert.Equal(t, 1, bufs)
	assert.Equal(t, 1, imgs)

	assert.ErrorIs(t, other.DestroyBuffer(buf), ErrNotOwned)
	assert.ErrorIs(t, other.DestroyImage(img), ErrNotOwned)

	require.NoError(t, a.DestroyBuffer(buf))
	assert.ErrorIs(t, a.DestroyBuffer(buf), ErrNotOwned)
	require.NoError(t, a.DestroyImage(img))
	assert.ErrorIs(t, a.DestroyImage(img), ErrNotOwned)

	assert.Zero(t, dev.Live())
	assert.Empty(t, dev.Violations, "double destroy reached the driver")
}

func TestAllocatorShutdownReportsLeaks(t *testing.T) {
	dev := drivertest.NewDevice()
	a := NewAllocator(NewDeviceContext(dev))

	_, err := a.CreateBuffer("leak-a", 16, driver.BufferUsageStorage, driver.ResidencyDeviceLocal)
	require.NoError(t, err)
	_, err = a.CreateBuffer("leak-b", 16, driver.BufferUsageStorage, driver.ResidencyDeviceLocal)
	require.NoError(t, err)
	_, err = a.CreateImage("leak-c", driver.FormatR8G8B8A8Unorm, driver.Extent3D{Width: 1, Height: 1, Depth: 1},
		driver.ImageUsageSampled, driver.AspectColor)
	require.NoError(t, err)

	assert.Equal(t, 3, a.Shutdown())
	assert.Zero(t, dev.Live())
	assert.Zero(t, a.Shutdown())
}

func TestAllocatorCreateFailure(t *testing.T) {
	dev := drivertest.NewDevice()
	a := NewAllocator(NewDeviceContext(dev))

	dev.Fail("NewBuffer", driver.ErrOutOfMemory)
	_, err := a.CreateBuffer("b", 16, driver.BufferUsageStorage, driver.ResidencyDeviceLocal)
	assert.ErrorIs(t, err, driver.ErrOutOfMemory)

	bufs, _ := a.Live()
	assert.Zero(t, bufs)
}

func TestSemaphorePool(t *testing.T) {
	dev := drivertest.NewDevice()
	p := NewSemaphorePool(dev)

	a, err := p.Acquire()
	require.NoError(t, err)
	b, err := p.Acquire()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Zero(t, p.Len())

	require.NoError(t, p.Release(a))
	require.NoError(t, p.Release(b))
	assert.ErrorIs(t, p.Release(a), ErrDoubleRelease)
	assert.Equal(t, 2, p.Len())
	assert.True(t, p.Contains(a))

	// Last in, first out.
	got, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, b, got)
	assert.False(t, p.Contains(b))
	require.NoError(t, p.Release(b))

	p.Drain()
	assert.Zero(t, p.Len())
	assert.Zero(t, dev.LiveOf("semaphore"))
	assert.NoError(t, p.Release(nil))
}

func TestGPULayoutSizes(t *testing.T) {
	assert.Equal(t, 192, CameraDataSize)
	assert.Equal(t, 80, SceneDataSize)
	assert.Equal(t, 64, ObjectDataSize)
	assert.Equal(t, 80, PushConstantsSize)
	assert.Equal(t, 44, VertexStride)

	assert.Len(t, GPUCameraData{}.Bytes(), CameraDataSize)
	assert.Len(t, GPUSceneData{}.Bytes(), SceneDataSize)
	assert.Len(t, GPUObjectData{}.Bytes(), ObjectDataSize)
	assert.Len(t, MeshPushConstants{}.Bytes(), PushConstantsSize)

	attrs := VertexAttributes()
	require.Len(t, attrs, 4)
	last := attrs[3]
	assert.Equal(t, uint32(VertexStride-8), last.Offset)
}

func TestCameraDataViewProj(t *testing.T) {
	view := math.NewMat4Translation(math.NewVec3(1, 2, 3))
	proj := math.NewMat4Scale(math.NewVec3(2, 2, 2))
	cam := NewCameraData(view, proj)
	assert.True(t, cam.ViewProj.Compare(proj.Mul(view), 1e-6))

	b := cam.Bytes()
	// Column-major: the translation sits in elements 12..14 of the view.
	x := stdmath.Float32frombits(binary.LittleEndian.Uint32(b[12*4:]))
	assert.Equal(t, view.Data[12], x)
}

func TestEncodeVertices(t *testing.T) {
	v := math.Vertex3D{
		Position: math.NewVec3(1, 2, 3),
		Normal:   math.NewVec3(4, 5, 6),
		Color:    math.NewVec3(7, 8, 9),
		UV:       math.NewVec2(10, 11),
	}
	b := EncodeVertices([]math.Vertex3D{v, v})
	require.Len(t, b, 2*VertexStride)
	for i := 0; i < 11; i++ {
		f := stdmath.Float32frombits(binary.LittleEndian.Uint32(b[VertexStride+i*4:]))
		assert.Equal(t, float32(i+1), f)
	}
}
