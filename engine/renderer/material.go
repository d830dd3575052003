package renderer

import (
	"fmt"

	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// DefaultMaterialName is the material every mesh is drawn with unless the
// game registers its own.
const DefaultMaterialName = "default"

// MaterialConfig is the input of NewDefaultMaterial. The shaders are
// SPIR-V bytecode.
type MaterialConfig struct {
	Name           string
	VertexShader   []byte
	FragmentShader []byte
	// Textured adds the texture set layout at set 2.
	Textured bool
}

// NewDefaultMaterial builds the standard opaque-or-blended mesh pipeline
// and registers it. Building a material whose name is already registered
// replaces its pipeline.
func NewDefaultMaterial(reg *Registry, renderPass driver.RenderPass, cfg MaterialConfig) (*Material, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultMaterialName
	}
	dev := reg.dc.Device()

	vert, err := dev.NewShaderModule(cfg.VertexShader)
	if err != nil {
		return nil, fmt.Errorf("material %q: failed to load vertex shader: %w", cfg.Name, err)
	}
	defer vert.Destroy()
	frag, err := dev.NewShaderModule(cfg.FragmentShader)
	if err != nil {
		return nil, fmt.Errorf("material %q: failed to load fragment shader: %w", cfg.Name, err)
	}
	defer frag.Destroy()

	sets := []driver.DescriptorSetLayout{reg.layouts.Global, reg.layouts.Object}
	if cfg.Textured {
		sets = append(sets, reg.layouts.Texture)
	}
	layout, err := dev.NewPipelineLayout(sets, []driver.PushConstantRange{
		{Stages: driver.ShaderStageVertex, Offset: 0, Size: PushConstantsSize},
	})
	if err != nil {
		return nil, fmt.Errorf("material %q: failed to create pipeline layout: %w", cfg.Name, err)
	}

	pipeline, err := dev.NewGraphicsPipeline(driver.PipelineConfig{
		RenderPass:   renderPass,
		Layout:       layout,
		Vertex:       vert,
		Fragment:     frag,
		Stride:       VertexStride,
		Attributes:   VertexAttributes(),
		CullMode:     driver.CullModeNone,
		FrontFace:    driver.FrontFaceClockwise,
		Blend:        true,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: driver.CompareOpLessOrEqual,
	})
	if err != nil {
		layout.Destroy()
		return nil, fmt.Errorf("material %q: failed to create pipeline: %w", cfg.Name, err)
	}

	m := reg.CreateMaterial(pipeline, layout, cfg.Name)
	m.Textured = cfg.Textured
	return m, nil
}
