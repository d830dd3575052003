package renderer

import (
	"fmt"

	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// DescriptorLayouts are the set layouts shared by every pipeline:
// set 0 holds the camera and the dynamic scene block, set 1 the object
// storage buffer and set 2 the optional material texture.
type DescriptorLayouts struct {
	Global  driver.DescriptorSetLayout
	Object  driver.DescriptorSetLayout
	Texture driver.DescriptorSetLayout
}

func NewDescriptorLayouts(dev driver.Device) (*DescriptorLayouts, error) {
	l := &DescriptorLayouts{}
	var err error

	l.Global, err = dev.NewDescriptorSetLayout(
		driver.DescriptorBinding{Binding: 0, Type: driver.DescriptorTypeUniformBuffer, Stages: driver.ShaderStageVertex},
		driver.DescriptorBinding{Binding: 1, Type: driver.DescriptorTypeUniformBufferDynamic, Stages: driver.ShaderStageVertex | driver.ShaderStageFragment},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create global set layout: %w", err)
	}

	l.Object, err = dev.NewDescriptorSetLayout(
		driver.DescriptorBinding{Binding: 0, Type: driver.DescriptorTypeStorageBuffer, Stages: driver.ShaderStageVertex},
	)
	if err != nil {
		l.Destroy()
		return nil, fmt.Errorf("failed to create object set layout: %w", err)
	}

	l.Texture, err = dev.NewDescriptorSetLayout(
		driver.DescriptorBinding{Binding: 0, Type: driver.DescriptorTypeCombinedImageSampler, Stages: driver.ShaderStageFragment},
	)
	if err != nil {
		l.Destroy()
		return nil, fmt.Errorf("failed to create texture set layout: %w", err)
	}
	return l, nil
}

func (l *DescriptorLayouts) Destroy() {
	for _, layout := range []*driver.DescriptorSetLayout{&l.Global, &l.Object, &l.Texture} {
		if *layout != nil {
			(*layout).Destroy()
			*layout = nil
		}
	}
}

// descriptorPoolSizes is the per-type capacity of every descriptor pool
// the renderer creates.
func descriptorPoolSizes(perType uint32) []driver.DescriptorPoolSize {
	return []driver.DescriptorPoolSize{
		{Type: driver.DescriptorTypeUniformBuffer, Count: perType},
		{Type: driver.DescriptorTypeUniformBufferDynamic, Count: perType},
		{Type: driver.DescriptorTypeStorageBuffer, Count: perType},
		{Type: driver.DescriptorTypeCombinedImageSampler, Count: perType},
	}
}
