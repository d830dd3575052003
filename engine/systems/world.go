package systems

import (
	"slices"

	"github.com/spaghettifunk/okapi/engine/math"
	"github.com/spaghettifunk/okapi/engine/renderer"
)

// Entity places a mesh with a material in the world.
type Entity struct {
	Name      string
	Mesh      *renderer.Mesh
	Material  *renderer.Material
	Transform *math.Transform
	Hidden    bool
}

// World is the flat list of entities a frame draws, plus the camera and
// the scene lighting parameters.
type World struct {
	Camera *Camera
	Scene  renderer.GPUSceneData

	entities []*Entity
}

func NewWorld() *World {
	return &World{
		Camera: NewCamera(),
		Scene: renderer.GPUSceneData{
			AmbientColor:      math.NewVec4(0.1, 0.1, 0.1, 1),
			SunlightDirection: math.NewVec4(0, -1, 0, 0),
			SunlightColor:     math.NewVec4(1, 1, 1, 1),
		},
	}
}

func (w *World) Spawn(name string, mesh *renderer.Mesh, material *renderer.Material, transform *math.Transform) *Entity {
	if transform == nil {
		transform = math.NewTransform()
	}
	e := &Entity{Name: name, Mesh: mesh, Material: material, Transform: transform}
	w.entities = append(w.entities, e)
	return e
}

func (w *World) Despawn(e *Entity) bool {
	i := slices.Index(w.entities, e)
	if i < 0 {
		return false
	}
	w.entities = slices.Delete(w.entities, i, i+1)
	return true
}

func (w *World) Entities() []*Entity {
	return w.entities
}

// Renderables lists the visible entities that have both a mesh and a
// material, in spawn order.
func (w *World) Renderables() []renderer.Renderable {
	out := make([]renderer.Renderable, 0, len(w.entities))
	for _, e := range w.entities {
		if e.Hidden || e.Mesh == nil || e.Material == nil {
			continue
		}
		out = append(out, renderer.Renderable{
			Mesh:      e.Mesh,
			Material:  e.Material,
			Transform: e.Transform.World(),
		})
	}
	return out
}
