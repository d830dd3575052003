package engine

import (
	"github.com/spaghettifunk/okapi/engine/assets"
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer"
	"github.com/spaghettifunk/okapi/engine/systems"
)

// Game is the application plugged into the engine. The engine fills in the
// subsystem fields before FnInitialize runs.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}

	Renderer      *renderer.Renderer
	World         *systems.World
	SystemManager *systems.SystemManager
	JobSystem     *systems.JobSystem
	AssetManager  *assets.AssetManager
	Input         *core.InputState

	FnBoot       Boot
	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Boot func() error
type Initialize func() error
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
