package testbed

import (
	"fmt"

	"github.com/spaghettifunk/okapi/engine"
	"github.com/spaghettifunk/okapi/engine/assets/loaders"
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/math"
	"github.com/spaghettifunk/okapi/engine/renderer"
	"github.com/spaghettifunk/okapi/engine/systems"
)

const (
	modelAsset   = "models/pyramid.obj"
	checkerSize  = 64
	checkerCells = 8
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	cubes  []*systems.Entity
	model  *systems.Entity
	paused bool
}

func NewTestGame(cfg *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			State:             &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.Renderer == nil || g.World == nil {
		return fmt.Errorf("the engine is not yet initialized with all the subsystems")
	}
	state := g.State.(*gameState)
	reg := g.Renderer.Registry()

	g.World.Camera.SetPosition(math.NewVec3(0, 4, 18))
	g.World.Camera.Turn(0, math.DegToRad(-10))

	cube, err := reg.CreateMesh("cube", cubeVertices(1))
	if err != nil {
		return err
	}
	material := reg.GetMaterial(renderer.DefaultMaterialName)

	// Three nested cubes, each child orbiting its parent.
	var parent *math.Transform
	offsets := []math.Vec3{math.NewVec3(0, 0, 0), math.NewVec3(6, 0, 0), math.NewVec3(3, 0, 0)}
	scales := []float32{2, 1, 0.5}
	for i, offset := range offsets {
		t := math.NewTransformFrom(offset, math.NewQuatIdentity(), math.NewVec3(scales[i], scales[i], scales[i]))
		t.Parent = parent
		state.cubes = append(state.cubes, g.World.Spawn(fmt.Sprintf("cube-%d", i), cube, material, t))
		parent = t
	}

	if err := g.createFloor(); err != nil {
		// The floor needs the textured material, which is optional.
		core.LogWarn("no textured floor: %s", err)
	}
	return g.loadModelAsync()
}

// createFloor uploads a procedural checker texture and draws a quad with it.
func (g *TestGame) createFloor() error {
	reg := g.Renderer.Registry()
	textured := reg.GetMaterial(renderer.TexturedMaterialName)
	if textured == nil {
		return fmt.Errorf("material %q not available", renderer.TexturedMaterialName)
	}
	tex, err := reg.CreateTexture("checker", checkerSize, checkerSize, checkerPixels(checkerSize, checkerCells))
	if err != nil {
		return err
	}
	if err := reg.BindTexture(textured, tex); err != nil {
		return err
	}
	quad, err := reg.CreateMesh("floor", quadVertices(20))
	if err != nil {
		return err
	}
	g.World.Spawn("floor", quad, textured, math.NewTransformFrom(math.NewVec3(0, -3, 0), math.NewQuatIdentity(), math.NewVec3One()))
	return nil
}

// loadModelAsync parses the OBJ on a worker. The mesh upload happens in the
// completion callback, on the render goroutine.
func (g *TestGame) loadModelAsync() error {
	if _, ok := g.AssetManager.Lookup(modelAsset); !ok {
		core.LogWarn("model %s not found, skipping", modelAsset)
		return nil
	}
	return g.JobSystem.Submit(systems.Job{
		Name: modelAsset,
		Run: func() (interface{}, error) {
			return g.AssetManager.LoadAsset(modelAsset, nil)
		},
		OnComplete: func(result interface{}) {
			res := result.(*loaders.Resource)
			mesh, err := g.Renderer.Registry().CreateMesh(res.Name, res.Data.([]math.Vertex3D))
			if err != nil {
				core.LogError("failed to upload %s: %s", modelAsset, err)
				return
			}
			state := g.State.(*gameState)
			material := g.Renderer.Registry().GetMaterial(renderer.DefaultMaterialName)
			state.model = g.World.Spawn(res.Name, mesh, material,
				math.NewTransformFrom(math.NewVec3(-6, 0, 0), math.NewQuatIdentity(), math.NewVec3(2, 2, 2)))
			core.LogInfo("loaded %s (%d vertices)", modelAsset, len(mesh.Vertices))
		},
		OnFailure: func(err error) {
			core.LogError("failed to load %s: %s", modelAsset, err)
		},
	})
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)

	// Space toggles the animation on release.
	if g.Input.IsKeyUp(core.KeySpace) && g.Input.WasKeyDown(core.KeySpace) {
		state.paused = !state.paused
	}
	if g.Input.IsKeyUp(core.KeyR) && g.Input.WasKeyDown(core.KeyR) {
		pos := g.World.Camera.Position()
		core.LogInfo("Camera Pos: [%.3f, %.3f, %.3f] Yaw: %.1f Pitch: %.1f",
			pos.X, pos.Y, pos.Z, math.RadToDeg(g.World.Camera.Yaw()), math.RadToDeg(g.World.Camera.Pitch()))
	}
	if state.paused {
		return nil
	}

	// Perform a small rotation on every cube.
	rotation := math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), float32(0.5*deltaTime))
	for _, c := range state.cubes {
		c.Transform.Rotate(rotation)
	}
	if state.model != nil {
		state.model.Transform.Rotate(math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), float32(-deltaTime)))
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("shutting down testbed...")
	return nil
}
