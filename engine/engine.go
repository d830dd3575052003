package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/okapi/engine/assets"
	"github.com/spaghettifunk/okapi/engine/assets/loaders"
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/platform"
	"github.com/spaghettifunk/okapi/engine/renderer"
	"github.com/spaghettifunk/okapi/engine/renderer/vulkan"
	"github.com/spaghettifunk/okapi/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const (
	jobWorkers     = 2
	jobQueueSize   = 32
	metricsPeriod  = 5 * time.Second
	suspendedSleep = 0.1
)

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	isRunning     bool
	isSuspended   bool
	bus           *core.EventBus
	input         *core.InputState
	platform      *platform.Platform
	assetManager  *assets.AssetManager
	jobSystem     *systems.JobSystem
	renderer      *renderer.Renderer
	world         *systems.World
	systemManager *systems.SystemManager
	width         uint32
	height        uint32
	clock         *core.Clock
	metrics       *core.FrameMetrics
	lastTime      time.Duration
	lastReport    time.Duration
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("%w: game without application config", core.ErrInvalidConfig)
	}
	bus := core.NewEventBus()
	input := core.NewInputState(bus)

	am, err := assets.NewAssetManager()
	if err != nil {
		return nil, err
	}
	js, err := systems.NewJobSystem(jobWorkers, jobQueueSize)
	if err != nil {
		return nil, err
	}

	return &Engine{
		currentStage:  EngineStageUninitialized,
		gameInstance:  g,
		bus:           bus,
		input:         input,
		platform:      platform.New(bus, input),
		assetManager:  am,
		jobSystem:     js,
		world:         systems.NewWorld(),
		systemManager: systems.NewSystemManager(),
		clock:         core.NewClock(),
		metrics:       core.NewFrameMetrics(),
		isRunning:     true,
		width:         g.ApplicationConfig.StartWidth,
		height:        g.ApplicationConfig.StartHeight,
	}, nil
}

func (e *Engine) Initialize() error {
	cfg := e.gameInstance.ApplicationConfig
	core.SetLogLevel(cfg.LogLevel)

	e.currentStage = EngineStageBooting
	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageBootComplete

	// register some events
	e.bus.Register(core.EventQuit, e.onEvent)
	e.bus.Register(core.EventKeyPressed, e.onKey)
	e.bus.Register(core.EventResized, e.onResized)
	e.bus.Register(core.EventAssetChanged, e.onAssetChanged)

	e.currentStage = EngineStageInitializing
	if err := e.platform.Startup(cfg.Name, cfg.StartPosX, cfg.StartPosY, cfg.StartWidth, cfg.StartHeight); err != nil {
		return err
	}

	if err := e.assetManager.Initialize(cfg.AssetsRoot, cfg.WatchAssets); err != nil {
		return err
	}

	rcfg, err := e.rendererConfig()
	if err != nil {
		return err
	}
	device, err := vulkan.Bootstrap(vulkan.Config{
		ApplicationName: cfg.Name,
		Validation:      cfg.Validation,
		Diagnostics:     renderer.LogDiagnostic,
	}, e.platform)
	if err != nil {
		return err
	}
	if e.renderer, err = renderer.New(device, e.platform, rcfg); err != nil {
		device.Destroy()
		return err
	}

	g := e.gameInstance
	g.Renderer = e.renderer
	g.World = e.world
	g.SystemManager = e.systemManager
	g.JobSystem = e.jobSystem
	g.AssetManager = e.assetManager
	g.Input = e.input

	if err := e.systemManager.Register("camera", systems.NewCameraSystem(e.input)); err != nil {
		return err
	}
	if g.FnInitialize != nil {
		if err := g.FnInitialize(); err != nil {
			return err
		}
	}
	// Rendering goes last so it sees every update of this frame.
	if err := e.systemManager.Register("render", systems.NewRenderSystem(e.renderer)); err != nil {
		return err
	}

	if g.FnOnResize != nil {
		if err := g.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) rendererConfig() (renderer.Config, error) {
	cfg := e.gameInstance.ApplicationConfig
	rcfg := renderer.DefaultConfig()
	rcfg.ClearColor = cfg.ClearColor
	if cfg.MaxObjects > 0 {
		rcfg.MaxObjects = cfg.MaxObjects
	}

	var err error
	if rcfg.VertexShader, rcfg.FragmentShader, err = e.loadDefaultShaders(); err != nil {
		return rcfg, err
	}
	if cfg.TexturedFragmentShader != "" {
		code, err := loaders.LoadShader(e.assetManager.Path(cfg.TexturedFragmentShader))
		if err != nil {
			core.LogWarn("textured material disabled: %s", err)
		} else {
			rcfg.TexturedFragmentShader = code
		}
	}
	return rcfg, nil
}

func (e *Engine) loadDefaultShaders() ([]byte, []byte, error) {
	cfg := e.gameInstance.ApplicationConfig
	vert, err := loaders.LoadShader(e.assetManager.Path(cfg.VertexShader))
	if err != nil {
		return nil, nil, err
	}
	frag, err := loaders.LoadShader(e.assetManager.Path(cfg.FragmentShader))
	if err != nil {
		return nil, nil, err
	}
	return vert, frag, nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		if !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}
		e.pollAssets()
		e.bus.Dispatch()
		if !e.isRunning {
			break
		}
		e.jobSystem.Update()

		if e.isSuspended {
			e.platform.WaitMessages(suspendedSleep)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := (currentTime - e.lastTime).Seconds()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				return fmt.Errorf("game update failed: %w", err)
			}
		}
		if err := e.systemManager.Update(e.world, delta); err != nil {
			return err
		}

		e.clock.Update()
		e.metrics.Update(e.clock.Elapsed() - currentTime)
		if currentTime-e.lastReport >= metricsPeriod {
			core.LogDebug("%.1f fps, %.2f ms/frame", e.metrics.FPS(), e.metrics.FrameTime())
			e.lastReport = currentTime
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		// As a safety, input is the last thing to be updated before
		// this frame ends.
		e.input.Update()

		// Update last time
		e.lastTime = currentTime
	}
	return nil
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	errs = append(errs, e.jobSystem.Shutdown())
	if e.renderer != nil {
		errs = append(errs, e.renderer.Shutdown())
		e.renderer = nil
	}
	errs = append(errs, e.assetManager.Shutdown())
	errs = append(errs, e.platform.Shutdown())
	core.LogInfo("Engine shut down.")
	return errors.Join(errs...)
}

// Quit asks the loop to stop after the current frame. Safe from any
// goroutine.
func (e *Engine) Quit() {
	e.bus.Fire(core.Event{Code: core.EventQuit})
}

// pollAssets turns file changes from the watcher into events.
func (e *Engine) pollAssets() {
	for _, name := range e.assetManager.PollChanges() {
		e.bus.Fire(core.Event{Code: core.EventAssetChanged, Path: name})
	}
}

func (e *Engine) onEvent(ev core.Event) bool {
	if ev.Code == core.EventQuit {
		core.LogInfo("EventQuit received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(ev core.Event) bool {
	if ev.Key == core.KeyEscape {
		e.bus.Fire(core.Event{Code: core.EventQuit})
		return true
	}
	return false
}

func (e *Engine) onResized(ev core.Event) bool {
	if ev.Width == e.width && ev.Height == e.height {
		return false
	}
	e.width, e.height = ev.Width, ev.Height

	if ev.Width == 0 || ev.Height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.renderer != nil {
		if _, err := e.renderer.Resize(); err != nil {
			core.LogError("swapchain rebuild failed: %s", err)
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(ev.Width, ev.Height); err != nil {
			core.LogError("game resize failed: %s", err)
		}
	}
	return false
}

// onAssetChanged hot reloads the default material when one of its shaders
// changed on disk. A broken shader keeps the previous pipeline.
func (e *Engine) onAssetChanged(ev core.Event) bool {
	cfg := e.gameInstance.ApplicationConfig
	if ev.Path != cfg.VertexShader && ev.Path != cfg.FragmentShader {
		return false
	}
	if e.renderer == nil {
		return true
	}
	vert, frag, err := e.loadDefaultShaders()
	if err == nil {
		err = e.renderer.ReloadDefaultMaterial(vert, frag)
	}
	if err != nil {
		core.LogError("shader reload failed, keeping the previous pipeline: %s", err)
		return true
	}
	core.LogInfo("Reloaded %s after %s changed.", renderer.DefaultMaterialName, ev.Path)
	return true
}
