package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the window. Callbacks run inside PumpMessages and only
// queue events on the bus, so handlers execute on the same goroutine as
// the frame loop.
type Platform struct {
	Window *glfw.Window

	bus   *core.EventBus
	input *core.InputState

	startTime float64
}

func New(bus *core.EventBus, input *core.InputState) *Platform {
	return &Platform{
		bus:   bus,
		input: input,
	}
}

func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize glfw: %w", err)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create window: %w", err)
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	p.startTime = glfw.GetTime()
	core.LogInfo("Window '%s' created (%dx%d)", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages polls the window system and reports whether the window is
// still open.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return p.Window != nil && !p.Window.ShouldClose()
}

// WaitMessages blocks until an event arrives or timeout seconds pass. Used
// while the window is minimised.
func (p *Platform) WaitMessages(timeout float64) bool {
	glfw.WaitEventsTimeout(timeout)
	return p.Window != nil && !p.Window.ShouldClose()
}

// FramebufferSize returns the drawable size in pixels. A minimised window
// reports zero.
func (p *Platform) FramebufferSize() (int, int) {
	if p.Window == nil {
		return 0, 0
	}
	return p.Window.GetFramebufferSize()
}

// GetAbsoluteTime returns the seconds elapsed since Startup.
func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime() - p.startTime
}

func (p *Platform) RequiredInstanceExtensions() []string {
	if p.Window == nil {
		return nil
	}
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, err
	}
	return vk.SurfaceFromPointer(surface), nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat || p.input == nil {
		return
	}
	code := translateKey(key)
	if code == core.KeyUnknown {
		return
	}
	p.input.ProcessKey(code, action == glfw.Press)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	if p.bus == nil || width < 0 || height < 0 {
		return
	}
	p.bus.Fire(core.Event{Code: core.EventResized, Width: uint32(width), Height: uint32(height)})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	if p.bus != nil {
		p.bus.Fire(core.Event{Code: core.EventQuit})
	}
}

func translateKey(key glfw.Key) core.KeyCode {
	switch {
	case key >= glfw.KeyA && key <= glfw.KeyZ:
		return core.KeyA + core.KeyCode(key-glfw.KeyA)
	case key >= glfw.Key0 && key <= glfw.Key9:
		return core.Key0 + core.KeyCode(key-glfw.Key0)
	case key >= glfw.KeyF1 && key <= glfw.KeyF12:
		return core.KeyF1 + core.KeyCode(key-glfw.KeyF1)
	}
	switch key {
	case glfw.KeyBackspace:
		return core.KeyBackspace
	case glfw.KeyTab:
		return core.KeyTab
	case glfw.KeyEnter:
		return core.KeyEnter
	case glfw.KeyEscape:
		return core.KeyEscape
	case glfw.KeySpace:
		return core.KeySpace
	case glfw.KeyLeft:
		return core.KeyLeft
	case glfw.KeyUp:
		return core.KeyUp
	case glfw.KeyRight:
		return core.KeyRight
	case glfw.KeyDown:
		return core.KeyDown
	}
	return core.KeyUnknown
}
