package systems

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer"
)

// FrameRenderer is the part of renderer.Renderer the render system drives.
type FrameRenderer interface {
	BeginFrame() (*renderer.Frame, error)
	EndFrame(frame *renderer.Frame) error
	UploadCamera(frame *renderer.Frame, cam renderer.GPUCameraData) error
	UploadScene(frame *renderer.Frame, scene renderer.GPUSceneData) error
	DrawObjects(frame *renderer.Frame, objects []renderer.Renderable, opts renderer.DrawOptions) (renderer.DrawStats, error)
}

// OverlayHook records into the open frame after the scene. The command
// buffer and render pass of the frame are valid until it returns.
type OverlayHook func(frame *renderer.Frame) error

// RenderSystem draws the world once per update: begin, camera and scene
// upload, draws, overlays, end.
type RenderSystem struct {
	renderer FrameRenderer
	overlays []OverlayHook

	Options renderer.DrawOptions

	frames  uint64
	skipped uint64
	stats   renderer.DrawStats
}

func NewRenderSystem(r FrameRenderer) *RenderSystem {
	return &RenderSystem{
		renderer: r,
		Options:  renderer.DrawOptions{Batched: true},
	}
}

func (rs *RenderSystem) AddOverlay(hook OverlayHook) {
	rs.overlays = append(rs.overlays, hook)
}

// Update skips the frame without error while the swapchain is being
// rebuilt or an acquire failed transiently.
func (rs *RenderSystem) Update(world *World, dt float64) error {
	frame, err := rs.renderer.BeginFrame()
	switch {
	case errors.Is(err, core.ErrSwapchainBooting), errors.Is(err, core.ErrFrameSkipped):
		core.LogDebug("frame skipped: %s", err)
		rs.skipped++
		return nil
	case err != nil:
		return err
	}

	recordErr := rs.record(frame, world)
	if err := rs.renderer.EndFrame(frame); err != nil {
		return errors.Join(recordErr, err)
	}
	if recordErr != nil {
		return recordErr
	}
	rs.frames++
	return nil
}

func (rs *RenderSystem) record(frame *renderer.Frame, world *World) error {
	extent := frame.Extent()
	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	if world.Camera != nil {
		if err := rs.renderer.UploadCamera(frame, world.Camera.Data(aspect)); err != nil {
			return fmt.Errorf("camera upload: %w", err)
		}
	}
	if err := rs.renderer.UploadScene(frame, world.Scene); err != nil {
		return fmt.Errorf("scene upload: %w", err)
	}

	stats, err := rs.renderer.DrawObjects(frame, world.Renderables(), rs.Options)
	if err != nil {
		return err
	}
	rs.stats = stats

	for _, hook := range rs.overlays {
		if err := hook(frame); err != nil {
			return fmt.Errorf("overlay: %w", err)
		}
	}
	return nil
}

func (rs *RenderSystem) Frames() uint64                { return rs.frames }
func (rs *RenderSystem) Skipped() uint64               { return rs.skipped }
func (rs *RenderSystem) LastStats() renderer.DrawStats { return rs.stats }
