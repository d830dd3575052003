package renderer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/math"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// textureSetsPerPool is the number of texture descriptor sets the registry
// can hand out.
const textureSetsPerPool = 64

// Material is a pipeline and its layout, plus an optional texture set.
// Materials live until the registry is destroyed.
type Material struct {
	ID       uuid.UUID
	Name     string
	Pipeline driver.Pipeline
	Layout   driver.PipelineLayout

	// Textured materials are built with the texture set layout at set 2.
	Textured   bool
	TextureSet driver.DescriptorSet
}

// Mesh is an immutable vertex list uploaded to device-local memory.
type Mesh struct {
	ID           uuid.UUID
	Name         string
	Vertices     []math.Vertex3D
	VertexBuffer *AllocatedBuffer
}

type Texture struct {
	ID      uuid.UUID
	Name    string
	Image   *AllocatedImage
	Sampler driver.Sampler
}

// Registry stores materials, meshes and textures by name.
type Registry struct {
	dc       *DeviceContext
	alloc    *Allocator
	uploader *Uploader
	layouts  *DescriptorLayouts

	materials   map[string]*Material
	meshes      map[string]*Mesh
	textures    map[string]*Texture
	texturePool driver.DescriptorPool
}

func NewRegistry(dc *DeviceContext, alloc *Allocator, uploader *Uploader, layouts *DescriptorLayouts) *Registry {
	return &Registry{
		dc:        dc,
		alloc:     alloc,
		uploader:  uploader,
		layouts:   layouts,
		materials: make(map[string]*Material),
		meshes:    make(map[string]*Mesh),
		textures:  make(map[string]*Texture),
	}
}

// CreateMaterial registers a material under name. Registering a name
// again replaces the pipeline of the existing material in place, so
// renderables holding it pick up the new pipeline.
func (r *Registry) CreateMaterial(pipeline driver.Pipeline, layout driver.PipelineLayout, name string) *Material {
	if m, ok := r.materials[name]; ok {
		if err := r.dc.Device().WaitIdle(); err != nil {
			core.LogWarn("failed to wait for device idle before replacing material %q: %s", name, err)
		}
		if m.Pipeline != pipeline {
			m.Pipeline.Destroy()
		}
		if m.Layout != layout {
			m.Layout.Destroy()
		}
		m.Pipeline = pipeline
		m.Layout = layout
		core.LogInfo("Material %q (%s) replaced.", name, m.ID)
		return m
	}

	m := &Material{
		ID:       uuid.New(),
		Name:     name,
		Pipeline: pipeline,
		Layout:   layout,
	}
	r.materials[name] = m
	core.LogDebug("Material %q created (%s).", name, m.ID)
	return m
}

// GetMaterial returns the material registered under name, or nil.
func (r *Registry) GetMaterial(name string) *Material {
	return r.materials[name]
}

// CreateMesh uploads vertices into a device-local vertex buffer. Creating
// a mesh that already exists returns it unchanged.
func (r *Registry) CreateMesh(name string, vertices []math.Vertex3D) (*Mesh, error) {
	if m, ok := r.meshes[name]; ok {
		return m, nil
	}
	if len(vertices) == 0 {
		return nil, fmt.Errorf("mesh %q has no vertices", name)
	}

	data := EncodeVertices(vertices)
	buf, err := r.alloc.CreateBuffer("mesh:"+name, uint64(len(data)), driver.BufferUsageVertex|driver.BufferUsageTransferDst, driver.ResidencyDeviceLocal)
	if err != nil {
		return nil, err
	}
	if err := r.uploader.WriteBuffer(buf, data, 0); err != nil {
		r.alloc.DestroyBuffer(buf)
		return nil, fmt.Errorf("failed to upload mesh %q: %w", name, err)
	}

	m := &Mesh{
		ID:           uuid.New(),
		Name:         name,
		Vertices:     append([]math.Vertex3D(nil), vertices...),
		VertexBuffer: buf,
	}
	r.meshes[name] = m
	core.LogDebug("Mesh %q uploaded: %d vertices (%s).", name, len(vertices), m.ID)
	return m, nil
}

func (r *Registry) GetMesh(name string) *Mesh {
	return r.meshes[name]
}

// CreateTexture uploads tightly packed RGBA8 pixels into a sampled sRGB
// image. Creating a texture that already exists returns it unchanged.
func (r *Registry) CreateTexture(name string, width, height uint32, pixels []byte) (*Texture, error) {
	if t, ok := r.textures[name]; ok {
		return t, nil
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("texture %q has a zero extent", name)
	}

	img, err := r.alloc.CreateImage("texture:"+name, driver.FormatR8G8B8A8Srgb,
		driver.Extent3D{Width: width, Height: height, Depth: 1},
		driver.ImageUsageSampled|driver.ImageUsageTransferDst, driver.AspectColor)
	if err != nil {
		return nil, err
	}
	if err := r.uploader.WriteImage(img, pixels); err != nil {
		r.alloc.DestroyImage(img)
		return nil, fmt.Errorf("failed to upload texture %q: %w", name, err)
	}

	sampler, err := r.dc.Device().NewSampler(driver.SamplerConfig{
		Filter:     driver.FilterLinear,
		Anisotropy: r.dc.Limits().MaxSamplerAnisotropy,
	})
	if err != nil {
		r.alloc.DestroyImage(img)
		return nil, fmt.Errorf("failed to create sampler for texture %q: %w", name, err)
	}

	t := &Texture{ID: uuid.New(), Name: name, Image: img, Sampler: sampler}
	r.textures[name] = t
	core.LogDebug("Texture %q uploaded: %dx%d (%s).", name, width, height, t.ID)
	return t, nil
}

func (r *Registry) GetTexture(name string) *Texture {
	return r.textures[name]
}

// BindTexture points the material's texture set at t, allocating the set
// on first use.
func (r *Registry) BindTexture(m *Material, t *Texture) error {
	if m == nil || t == nil {
		return errors.New("bind texture with a nil material or texture")
	}
	if !m.Textured {
		return fmt.Errorf("material %q: %w", m.Name, ErrNotTextured)
	}

	if m.TextureSet == nil {
		if r.texturePool == nil {
			pool, err := r.dc.Device().NewDescriptorPool(textureSetsPerPool, driver.DescriptorPoolSize{
				Type:  driver.DescriptorTypeCombinedImageSampler,
				Count: textureSetsPerPool,
			})
			if err != nil {
				return fmt.Errorf("failed to create texture descriptor pool: %w", err)
			}
			r.texturePool = pool
		}
		set, err := r.texturePool.Allocate(r.layouts.Texture)
		if err != nil {
			return fmt.Errorf("failed to allocate texture set for material %q: %w", m.Name, err)
		}
		m.TextureSet = set
	}

	m.TextureSet.Update(driver.DescriptorWrite{
		Binding: 0,
		Type:    driver.DescriptorTypeCombinedImageSampler,
		View:    t.Image.View(),
		Sampler: t.Sampler,
		Layout:  driver.ImageLayoutShaderReadOnlyOptimal,
	})
	return nil
}

// Destroy releases every registered object. The device must be idle.
func (r *Registry) Destroy() {
	for name, t := range r.textures {
		t.Sampler.Destroy()
		if err := r.alloc.DestroyImage(t.Image); err != nil {
			core.LogError("texture %q: %s", name, err)
		}
	}
	clear(r.textures)

	for name, m := range r.meshes {
		if err := r.alloc.DestroyBuffer(m.VertexBuffer); err != nil {
			core.LogError("mesh %q: %s", name, err)
		}
	}
	clear(r.meshes)

	for _, m := range r.materials {
		m.TextureSet = nil
		m.Pipeline.Destroy()
		m.Layout.Destroy()
	}
	clear(r.materials)

	if r.texturePool != nil {
		r.texturePool.Destroy()
		r.texturePool = nil
	}
}
