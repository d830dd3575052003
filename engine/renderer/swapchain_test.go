package renderer

import (
	"slices"
	"testing"

	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
	"github.com/spaghettifunk/okapi/engine/renderer/driver/drivertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseSurfaceFormat(t *testing.T) {
	sf := func(f driver.Format) driver.SurfaceFormat {
		return driver.SurfaceFormat{Format: f, ColorSpace: driver.ColorSpaceSrgbNonlinear}
	}
	tests := []struct {
		name    string
		formats []driver.SurfaceFormat
		want    driver.Format
	}{
		{"rgba first", []driver.SurfaceFormat{sf(driver.FormatB8G8R8A8Unorm), sf(driver.FormatR8G8B8A8Unorm)}, driver.FormatR8G8B8A8Unorm},
		{"bgra", []driver.SurfaceFormat{sf(driver.FormatB8G8R8A8Srgb), sf(driver.FormatB8G8R8A8Unorm)}, driver.FormatB8G8R8A8Unorm},
		{"abgr", []driver.SurfaceFormat{sf(driver.FormatA8B8G8R8UnormPack32)}, driver.FormatA8B8G8R8UnormPack32},
		{"fallback", []driver.SurfaceFormat{sf(driver.FormatB8G8R8A8Srgb), sf(driver.FormatR8G8B8A8Srgb)}, driver.FormatB8G8R8A8Srgb},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChooseSurfaceFormat(tt.formats)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format)
		})
	}

	_, err := ChooseSurfaceFormat(nil)
	assert.Error(t, err)
}

func TestChoosePresentMode(t *testing.T) {
	assert.Equal(t, driver.PresentModeMailbox, ChoosePresentMode([]driver.PresentMode{driver.PresentModeFifo, driver.PresentModeMailbox}))
	assert.Equal(t, driver.PresentModeFifo, ChoosePresentMode([]driver.PresentMode{driver.PresentModeImmediate, driver.PresentModeFifo}))
	assert.Equal(t, driver.PresentModeFifo, ChoosePresentMode(nil))
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		min, max, want uint32
	}{
		{2, 3, 3},
		{2, 2, 2},
		{1, 2, 2},
		{2, 0, 3},
		{3, 8, 4},
	}
	for _, tt := range tests {
		caps := driver.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
		assert.Equal(t, tt.want, ChooseImageCount(caps), "min %d max %d", tt.min, tt.max)
	}
}

func TestChooseExtent(t *testing.T) {
	caps := driver.SurfaceCapabilities{
		CurrentExtent:  driver.Extent2D{Width: 640, Height: 480},
		MinImageExtent: driver.Extent2D{Width: 100, Height: 50},
		MaxImageExtent: driver.Extent2D{Width: 1000, Height: 700},
	}
	assert.Equal(t, driver.Extent2D{Width: 640, Height: 480}, ChooseExtent(caps, &fakeWindow{1, 1}))

	caps.CurrentExtent.Width = driver.UndefinedExtent
	assert.Equal(t, driver.Extent2D{Width: 800, Height: 600}, ChooseExtent(caps, &fakeWindow{800, 600}))
	// Each axis is clamped against its own bounds.
	assert.Equal(t, driver.Extent2D{Width: 1000, Height: 50}, ChooseExtent(caps, &fakeWindow{4000, 10}))
	assert.Equal(t, driver.Extent2D{Width: 100, Height: 700}, ChooseExtent(caps, &fakeWindow{20, 900}))
	assert.Equal(t, driver.Extent2D{}, ChooseExtent(caps, &fakeWindow{0, 600}))
}

func TestResizeIsIdempotent(t *testing.T) {
	dev := drivertest.NewDevice()
	r := newTestRenderer(t, dev)
	sc := r.Swapchain()

	waits := dev.WaitIdles
	rebuilt, err := r.Resize()
	require.NoError(t, err)
	assert.False(t, rebuilt)
	assert.Equal(t, 1, dev.SwapchainsBuilt)
	assert.Equal(t, waits, dev.WaitIdles, "no-op resize must not stall the device")

	dev.SetExtent(1024, 768)
	rebuilt, err = r.Resize()
	require.NoError(t, err)
	assert.True(t, rebuilt)
	assert.Equal(t, 2, dev.SwapchainsBuilt)
	assert.Equal(t, driver.Extent2D{Width: 1024, Height: 768}, sc.Extent())
	assert.Equal(t, 3, sc.Frames().Len())

	for i := 0; i < 3; i++ {
		rebuilt, err = r.Resize()
		require.NoError(t, err)
		assert.False(t, rebuilt)
	}
	assert.Equal(t, 2, dev.SwapchainsBuilt)
	assert.Equal(t, 1, sc.Rebuilds())

	frame := renderFrame(t, r)
	assert.Equal(t, driver.Extent2D{Width: 1024, Height: 768}, frame.Extent())

	shutdown(t, r, dev)
}

func TestRebuildReleasesOldResources(t *testing.T) {
	dev := drivertest.NewDevice()
	r := newTestRenderer(t, dev)

	for i := 0; i < 4; i++ {
		renderFrame(t, r)
	}
	counts := map[string]int{}
	for _, kind := range []string{"image", "image-view", "framebuffer", "fence", "command-pool", "command-buffer", "buffer", "descriptor-pool"} {
		counts[kind] = dev.LiveOf(kind)
	}

	dev.SetExtent(640, 480)
	mark := len(dev.Destroyed)
	rebuilt, err := r.Resize()
	require.NoError(t, err)
	require.True(t, rebuilt)

	// Framebuffers, then image views, then slot fences, then the depth image.
	order := dev.Destroyed[mark:]
	lastFramebuffer := -1
	for i, kind := range order {
		if kind == "framebuffer" {
			lastFramebuffer = i
		}
	}
	firstView := slices.Index(order, "image-view")
	firstFence := slices.Index(order, "fence")
	depth := slices.Index(order, "image")
	require.NotEqual(t, -1, lastFramebuffer)
	assert.Less(t, lastFramebuffer, firstView)
	assert.Less(t, firstView, firstFence)
	assert.Less(t, firstFence, depth)

	// Same image count, so the same number of everything is alive.
	for kind, n := range counts {
		assert.Equal(t, n, dev.LiveOf(kind), kind)
	}
	assert.Zero(t, dev.LiveOf("semaphore"), "rebuild drains slot and pooled semaphores")
	assert.Equal(t, 1, dev.LiveOf("swapchain"))
	assert.Equal(t, 1, dev.LiveOf("render-pass"), "render pass survives rebuilds")
	assert.Empty(t, dev.Violations)

	shutdown(t, r, dev)
}

func TestMinimisedWindowPostponesRebuild(t *testing.T) {
	dev := drivertest.NewDevice()
	r := newTestRenderer(t, dev)
	sc := r.Swapchain()

	dev.SetExtent(0, 0)
	rebuilt, err := r.Resize()
	require.NoError(t, err)
	assert.False(t, rebuilt)
	assert.True(t, sc.Invalid())
	assert.Equal(t, 1, dev.SwapchainsBuilt)

	_, err = r.BeginFrame()
	assert.ErrorIs(t, err, core.ErrSwapchainBooting)
	assert.Empty(t, dev.Submits)

	dev.SetExtent(320, 200)
	frame, err := r.BeginFrame()
	require.NoError(t, err)
	assert.Equal(t, driver.Extent2D{Width: 320, Height: 200}, frame.Extent())
	assert.False(t, sc.Invalid())
	require.NoError(t, r.EndFrame(frame))

	shutdown(t, r, dev)
}

func TestSwapchainBuildFailure(t *testing.T) {
	dev := drivertest.NewDevice()
	dev.Fail("NewSwapchain", driver.ErrOutOfMemory)

	_, err := New(dev, &fakeWindow{800, 600}, testConfig())
	require.ErrorIs(t, err, driver.ErrOutOfMemory)
	assert.Zero(t, dev.Live())
}
