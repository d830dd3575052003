package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/math"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// Window is the part of the platform window the swapchain needs.
type Window interface {
	// FramebufferSize returns the drawable size in pixels.
	FramebufferSize() (width, height int)
}

var preferredSurfaceFormats = []driver.Format{
	driver.FormatR8G8B8A8Unorm,
	driver.FormatB8G8R8A8Unorm,
	driver.FormatA8B8G8R8UnormPack32,
}

// ChooseSurfaceFormat picks the first preferred format the surface
// supports, falling back to the first reported one.
func ChooseSurfaceFormat(formats []driver.SurfaceFormat) (driver.SurfaceFormat, error) {
	if len(formats) == 0 {
		return driver.SurfaceFormat{}, errors.New("surface reports no formats")
	}
	for _, want := range preferredSurfaceFormats {
		for _, f := range formats {
			if f.Format == want {
				return f, nil
			}
		}
	}
	return formats[0], nil
}

// ChoosePresentMode prefers mailbox. FIFO is always available.
func ChoosePresentMode(modes []driver.PresentMode) driver.PresentMode {
	for _, m := range modes {
		if m == driver.PresentModeMailbox {
			return m
		}
	}
	return driver.PresentModeFifo
}

func ChooseImageCount(caps driver.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// ChooseExtent returns the surface's current extent, or the window size
// clamped to the supported range when the surface leaves it to the
// swapchain. A zero extent means the window is minimised.
func ChooseExtent(caps driver.SurfaceCapabilities, window Window) driver.Extent2D {
	if caps.CurrentExtent.Width != driver.UndefinedExtent {
		return caps.CurrentExtent
	}
	w, h := window.FramebufferSize()
	if w <= 0 || h <= 0 {
		return driver.Extent2D{}
	}
	return driver.Extent2D{
		Width:  math.Clamp(uint32(w), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: math.Clamp(uint32(h), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// Swapchain owns the presentable images, the depth buffer, the main render
// pass and one framebuffer per image. It sizes the frame pool to the image
// count every time it is built.
type Swapchain struct {
	dc     *DeviceContext
	alloc  *Allocator
	window Window
	frames *FramePool

	chain        driver.Swapchain
	views        []driver.ImageView
	format       driver.SurfaceFormat
	presentMode  driver.PresentMode
	extent       driver.Extent2D
	renderPass   driver.RenderPass
	depth        *AllocatedImage
	framebuffers []driver.Framebuffer

	invalid  bool
	rebuilds int
}

func NewSwapchain(dc *DeviceContext, alloc *Allocator, window Window, frames *FramePool) (*Swapchain, error) {
	s := &Swapchain{
		dc:     dc,
		alloc:  alloc,
		window: window,
		frames: frames,
	}
	if err := s.Build(nil); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

// Build creates the chain, passing old as the chain it replaces, and
// everything sized by it. old is destroyed once the new chain exists; its
// image views must already be gone.
func (s *Swapchain) Build(old driver.Swapchain) error {
	dev := s.dc.Device()

	caps, err := dev.SurfaceCapabilities()
	if err != nil {
		return fmt.Errorf("failed to query surface capabilities: %w", err)
	}
	extent := ChooseExtent(caps, s.window)
	if extent.Width == 0 || extent.Height == 0 {
		return ErrSurfaceUnavailable
	}
	formats, err := dev.SurfaceFormats()
	if err != nil {
		return fmt.Errorf("failed to query surface formats: %w", err)
	}
	format, err := ChooseSurfaceFormat(formats)
	if err != nil {
		return err
	}
	modes, err := dev.PresentModes()
	if err != nil {
		return fmt.Errorf("failed to query present modes: %w", err)
	}

	cfg := driver.SwapchainConfig{
		Format:      format,
		PresentMode: ChoosePresentMode(modes),
		ImageCount:  ChooseImageCount(caps),
		Extent:      extent,
	}
	chain, err := dev.NewSwapchain(cfg, old)
	if err != nil {
		return fmt.Errorf("failed to create swapchain: %w", err)
	}
	if old != nil {
		old.Destroy()
	}
	s.chain = chain
	s.views = chain.Views()
	s.format = cfg.Format
	s.presentMode = cfg.PresentMode
	s.extent = extent

	if s.renderPass == nil {
		if s.renderPass, err = dev.NewRenderPass(format.Format, dev.DepthFormat()); err != nil {
			return fmt.Errorf("failed to create main render pass: %w", err)
		}
	}

	s.depth, err = s.alloc.CreateImage("depth", dev.DepthFormat(),
		driver.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		driver.ImageUsageDepthStencilAttachment, driver.AspectDepth)
	if err != nil {
		return err
	}

	s.framebuffers = make([]driver.Framebuffer, 0, len(s.views))
	for i, view := range s.views {
		fb, err := dev.NewFramebuffer(s.renderPass, []driver.ImageView{view, s.depth.View()}, extent)
		if err != nil {
			return fmt.Errorf("failed to create framebuffer %d: %w", i, err)
		}
		s.framebuffers = append(s.framebuffers, fb)
	}

	if err := s.frames.Init(uint32(len(s.views))); err != nil {
		return err
	}
	return nil
}

// Invalidate marks the chain stale so the next Rebuild recreates it even
// if the extent did not change.
func (s *Swapchain) Invalidate() {
	s.invalid = true
}

func (s *Swapchain) Invalid() bool {
	return s.invalid
}

// Rebuild recreates the chain when the surface extent changed or the chain
// was invalidated. It reports whether a rebuild happened. A minimised
// window postpones the rebuild and leaves the chain invalid.
func (s *Swapchain) Rebuild() (bool, error) {
	dev := s.dc.Device()
	caps, err := dev.SurfaceCapabilities()
	if err != nil {
		return false, fmt.Errorf("failed to query surface capabilities: %w", err)
	}
	extent := ChooseExtent(caps, s.window)
	if !s.invalid && extent == s.extent && s.chain != nil {
		return false, nil
	}
	if extent.Width == 0 || extent.Height == 0 {
		core.LogDebug("Surface has a zero extent, postponing swapchain rebuild.")
		s.invalid = true
		return false, nil
	}

	if err := dev.WaitIdle(); err != nil {
		return false, fmt.Errorf("failed to wait for device idle: %w", err)
	}
	s.release()

	if err := s.Build(s.chain); err != nil {
		s.invalid = true
		if errors.Is(err, ErrSurfaceUnavailable) {
			return false, nil
		}
		return false, err
	}
	s.invalid = false
	s.rebuilds++
	core.LogDebug("Swapchain rebuilt (%dx%d, %d images).", s.extent.Width, s.extent.Height, len(s.views))
	return true, nil
}

// release destroys everything sized by the chain except the chain itself,
// which is handed to the next Build as the old swapchain. Framebuffers go
// first, then the image views, then the frame slots and the depth image.
func (s *Swapchain) release() {
	if len(s.framebuffers) > 0 {
		if err := s.dc.Device().QueueWaitIdle(); err != nil {
			core.LogWarn("failed to wait for queue idle: %s", err)
		}
		for _, fb := range s.framebuffers {
			fb.Destroy()
		}
		s.framebuffers = nil
	}

	for _, v := range s.views {
		v.Destroy()
	}
	s.views = nil

	s.frames.Teardown()

	if s.depth != nil {
		if err := s.alloc.DestroyImage(s.depth); err != nil {
			core.LogError("swapchain: %s", err)
		}
		s.depth = nil
	}
}

// Destroy tears down the frame pool and everything the swapchain owns.
// The device must be idle.
func (s *Swapchain) Destroy() {
	s.release()
	if s.chain != nil {
		s.chain.Destroy()
		s.chain = nil
	}
	if s.renderPass != nil {
		s.renderPass.Destroy()
		s.renderPass = nil
	}
}

func (s *Swapchain) Chain() driver.Swapchain         { return s.chain }
func (s *Swapchain) Extent() driver.Extent2D         { return s.extent }
func (s *Swapchain) Format() driver.SurfaceFormat    { return s.format }
func (s *Swapchain) PresentMode() driver.PresentMode { return s.presentMode }
func (s *Swapchain) RenderPass() driver.RenderPass   { return s.renderPass }
func (s *Swapchain) ImageCount() int                 { return len(s.views) }
func (s *Swapchain) Frames() *FramePool              { return s.frames }
func (s *Swapchain) Rebuilds() int                   { return s.rebuilds }

// Framebuffer returns the framebuffer of swapchain image i.
func (s *Swapchain) Framebuffer(i uint32) driver.Framebuffer {
	if int(i) >= len(s.framebuffers) {
		return nil
	}
	return s.framebuffers[i]
}
