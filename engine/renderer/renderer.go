package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// Config is the renderer part of the engine configuration.
type Config struct {
	ClearColor [4]float32
	MaxObjects uint32

	// SPIR-V bytecode of the default material. The textured fragment
	// shader is optional; without it no textured material is built.
	VertexShader           []byte
	FragmentShader         []byte
	TexturedFragmentShader []byte
}

func DefaultConfig() Config {
	return Config{
		ClearColor: [4]float32{0.1, 0.1, 0.2, 1},
		MaxObjects: MaxObjects,
	}
}

// Renderer wires the frame core together. Objects are created in
// ownership order and destroyed in reverse by Shutdown.
type Renderer struct {
	cfg Config

	dc           *DeviceContext
	alloc        *Allocator
	semaphores   *SemaphorePool
	layouts      *DescriptorLayouts
	frames       *FramePool
	swapchain    *Swapchain
	uploader     *Uploader
	registry     *Registry
	orchestrator *Orchestrator
}

// New builds the renderer on top of an initialized device. On error
// everything created so far is destroyed, but not the device.
func New(dev driver.Device, window Window, cfg Config) (*Renderer, error) {
	if cfg.MaxObjects == 0 {
		cfg.MaxObjects = MaxObjects
	}
	if len(cfg.VertexShader) == 0 || len(cfg.FragmentShader) == 0 {
		return nil, fmt.Errorf("default material needs a vertex and a fragment shader: %w", core.ErrInvalidConfig)
	}

	r := &Renderer{cfg: cfg}
	r.dc = NewDeviceContext(dev)
	r.alloc = NewAllocator(r.dc)
	r.semaphores = NewSemaphorePool(dev)

	var err error
	if r.layouts, err = NewDescriptorLayouts(dev); err != nil {
		r.release()
		return nil, err
	}
	r.frames = NewFramePool(r.dc, r.alloc, r.semaphores, r.layouts, cfg.MaxObjects)
	if r.swapchain, err = NewSwapchain(r.dc, r.alloc, window, r.frames); err != nil {
		r.release()
		return nil, err
	}
	if r.uploader, err = NewUploader(r.dc, r.alloc); err != nil {
		r.release()
		return nil, err
	}
	r.registry = NewRegistry(r.dc, r.alloc, r.uploader, r.layouts)
	r.orchestrator = NewOrchestrator(r.dc, r.swapchain, cfg.ClearColor)

	if err := r.ReloadDefaultMaterial(cfg.VertexShader, cfg.FragmentShader); err != nil {
		r.release()
		return nil, err
	}
	if len(cfg.TexturedFragmentShader) > 0 {
		if _, err := NewDefaultMaterial(r.registry, r.swapchain.RenderPass(), MaterialConfig{
			Name:           TexturedMaterialName,
			VertexShader:   cfg.VertexShader,
			FragmentShader: cfg.TexturedFragmentShader,
			Textured:       true,
		}); err != nil {
			r.release()
			return nil, err
		}
	}

	core.LogInfo("Renderer initialized: %d frames in flight, %dx%d, %s.",
		r.frames.Len(), r.swapchain.Extent().Width, r.swapchain.Extent().Height, r.swapchain.PresentMode())
	return r, nil
}

// TexturedMaterialName is the default material variant sampling a texture.
const TexturedMaterialName = "textured"

// ReloadDefaultMaterial rebuilds the default pipeline from new shader
// bytecode. Renderables holding the default material draw with the new
// pipeline from the next frame on.
func (r *Renderer) ReloadDefaultMaterial(vertex, fragment []byte) error {
	if r.orchestrator.State() != StateIdle {
		return fmt.Errorf("reload default material: %w", ErrFrameInProgress)
	}
	_, err := NewDefaultMaterial(r.registry, r.swapchain.RenderPass(), MaterialConfig{
		Name:           DefaultMaterialName,
		VertexShader:   vertex,
		FragmentShader: fragment,
	})
	if err != nil {
		return err
	}
	r.cfg.VertexShader, r.cfg.FragmentShader = vertex, fragment
	return nil
}

func (r *Renderer) BeginFrame() (*Frame, error) {
	return r.orchestrator.BeginFrame()
}

func (r *Renderer) EndFrame(frame *Frame) error {
	return r.orchestrator.EndFrame(frame)
}

// Resize is called on window resize events. It rebuilds the swapchain if
// the surface extent changed.
func (r *Renderer) Resize() (bool, error) {
	return r.orchestrator.Resize()
}

// UploadCamera writes the camera block of the frame's slot.
func (r *Renderer) UploadCamera(frame *Frame, cam GPUCameraData) error {
	if frame == nil {
		return errors.New("upload camera into a nil frame")
	}
	return r.uploader.WriteBuffer(frame.slot.CameraBuffer, cam.Bytes(), 0)
}

// UploadScene writes the frame's entry of the dynamic scene buffer.
func (r *Renderer) UploadScene(frame *Frame, scene GPUSceneData) error {
	if frame == nil {
		return errors.New("upload scene into a nil frame")
	}
	return r.uploader.WriteBuffer(r.frames.SceneBuffer(), scene.Bytes(), uint64(frame.sceneOffset))
}

func (r *Renderer) DrawObjects(frame *Frame, objects []Renderable, opts DrawOptions) (DrawStats, error) {
	return DrawObjects(frame, objects, opts)
}

func (r *Renderer) Registry() *Registry           { return r.registry }
func (r *Renderer) Uploader() *Uploader           { return r.uploader }
func (r *Renderer) Allocator() *Allocator         { return r.alloc }
func (r *Renderer) Swapchain() *Swapchain         { return r.swapchain }
func (r *Renderer) Orchestrator() *Orchestrator   { return r.orchestrator }
func (r *Renderer) DeviceContext() *DeviceContext { return r.dc }

// Shutdown waits for the device and destroys everything in reverse order
// of creation, the device last.
func (r *Renderer) Shutdown() error {
	var err error
	if r.dc.Device() != nil {
		if werr := r.dc.Device().WaitIdle(); werr != nil {
			err = fmt.Errorf("failed to wait for device idle: %w", werr)
		}
	}
	r.release()
	r.dc.Destroy()
	return err
}

func (r *Renderer) release() {
	if r.registry != nil {
		r.registry.Destroy()
		r.registry = nil
	}
	if r.uploader != nil {
		r.uploader.Destroy()
		r.uploader = nil
	}
	if r.orchestrator != nil {
		r.orchestrator.Destroy()
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
	}
	if r.layouts != nil {
		r.layouts.Destroy()
		r.layouts = nil
	}
	if r.semaphores != nil {
		r.semaphores.Drain()
	}
	if r.alloc != nil {
		if leaks := r.alloc.Shutdown(); leaks > 0 {
			core.LogWarn("Allocator shut down with %d live resources.", leaks)
		}
	}
}
