package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/spaghettifunk/okapi/engine/math"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// Renderable is one draw. It does not own its mesh or material.
type Renderable struct {
	Mesh      *Mesh
	Material  *Material
	Transform math.Mat4
}

type DrawOptions struct {
	// Batched sorts the objects by material, then mesh, before recording
	// so each pipeline and vertex buffer is bound as few times as
	// possible. The sort is stable.
	Batched bool
}

// DrawStats counts what DrawObjects recorded.
type DrawStats struct {
	Draws             int
	PipelineBinds     int
	VertexBufferBinds int
}

// DrawObjects writes the model matrix of every object into the frame's
// object buffer and records one draw per object. Objects are appended
// after those of earlier calls in the same frame, and each is drawn with
// its buffer slot as firstInstance so the vertex shader can index it.
func DrawObjects(frame *Frame, objects []Renderable, opts DrawOptions) (DrawStats, error) {
	var stats DrawStats
	if frame == nil {
		return stats, errors.New("draw into a nil frame")
	}
	if len(objects) == 0 {
		return stats, nil
	}
	slot := frame.slot
	capacity := slot.ObjectBuffer.Size() / ObjectDataSize
	base := uint64(frame.objects)
	if uint64(len(objects)) > capacity-base {
		return stats, fmt.Errorf("%d objects after %d for a buffer of %d: %w", len(objects), base, capacity, ErrTooManyObjects)
	}
	for i, obj := range objects {
		if obj.Mesh == nil || obj.Material == nil {
			return stats, fmt.Errorf("object %d has no mesh or material", i)
		}
		if obj.Material.Textured && obj.Material.TextureSet == nil {
			return stats, fmt.Errorf("object %d: material %q has no texture bound", i, obj.Material.Name)
		}
	}

	if opts.Batched {
		objects = slices.Clone(objects)
		slices.SortStableFunc(objects, func(a, b Renderable) int {
			if c := bytes.Compare(a.Material.ID[:], b.Material.ID[:]); c != 0 {
				return c
			}
			return bytes.Compare(a.Mesh.ID[:], b.Mesh.ID[:])
		})
	}

	models := make([]byte, len(objects)*ObjectDataSize)
	for i, obj := range objects {
		putMat4(models[i*ObjectDataSize:], obj.Transform)
	}
	if err := writeHost(slot.ObjectBuffer.Buffer, models, base*ObjectDataSize); err != nil {
		return stats, fmt.Errorf("failed to write object buffer: %w", err)
	}
	frame.objects += uint32(len(objects))

	cb := slot.CommandBuffer
	var lastMaterial *Material
	var lastMesh *Mesh
	for i, obj := range objects {
		mat := obj.Material
		if mat != lastMaterial {
			cb.BindPipeline(mat.Pipeline)
			cb.BindDescriptorSets(mat.Layout, 0, []driver.DescriptorSet{slot.GlobalSet}, []uint32{frame.sceneOffset})
			cb.BindDescriptorSets(mat.Layout, 1, []driver.DescriptorSet{slot.ObjectSet}, nil)
			if mat.Textured {
				cb.BindDescriptorSets(mat.Layout, 2, []driver.DescriptorSet{mat.TextureSet}, nil)
			}
			lastMaterial = mat
			stats.PipelineBinds++
		}

		constants := MeshPushConstants{RenderMatrix: obj.Transform}
		cb.PushConstants(mat.Layout, driver.ShaderStageVertex, 0, constants.Bytes())

		if obj.Mesh != lastMesh {
			cb.BindVertexBuffer(obj.Mesh.VertexBuffer.Buffer, 0)
			lastMesh = obj.Mesh
			stats.VertexBufferBinds++
		}

		cb.Draw(uint32(len(obj.Mesh.Vertices)), 1, 0, uint32(base)+uint32(i))
		stats.Draws++
	}
	return stats, nil
}
