package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

type DescriptorSetLayout struct {
	ctx      *Context
	Handle   vk.DescriptorSetLayout
	bindings []driver.DescriptorBinding
}

func (vc *Context) NewDescriptorSetLayout(bindings ...driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toVkDescriptorType(b.Type),
			DescriptorCount: max(b.Count, 1),
			StageFlags:      toVkShaderStage(b.Stages),
		}
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}

	l := &DescriptorSetLayout{ctx: vc, bindings: bindings}
	if err := vc.locks.SafeCall(DescriptorManagement, func() error {
		return resultError("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(vc.LogicalDevice, &layoutInfo, vc.Allocator, &l.Handle))
	}); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *DescriptorSetLayout) Destroy() {
	if l.Handle == nil {
		return
	}
	l.ctx.locks.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorSetLayout(l.ctx.LogicalDevice, l.Handle, l.ctx.Allocator)
		return nil
	})
	l.Handle = nil
}

// DescriptorPool does not set the free bit: sets live as long as the pool.
type DescriptorPool struct {
	ctx    *Context
	Handle vk.DescriptorPool
}

func (vc *Context) NewDescriptorPool(maxSets uint32, sizes ...driver.DescriptorPoolSize) (driver.DescriptorPool, error) {
	if maxSets == 0 || len(sizes) == 0 {
		return nil, fmt.Errorf("descriptor pool needs at least one set and one pool size")
	}
	poolSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		poolSizes[i] = vk.DescriptorPoolSize{
			Type:            toVkDescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}

	p := &DescriptorPool{ctx: vc}
	if err := vc.locks.SafeCall(DescriptorManagement, func() error {
		return resultError("vkCreateDescriptorPool", vk.CreateDescriptorPool(vc.LogicalDevice, &poolInfo, vc.Allocator, &p.Handle))
	}); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *DescriptorPool) Allocate(layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.(*DescriptorSetLayout).Handle},
	}

	handles := make([]vk.DescriptorSet, 1)
	if err := p.ctx.locks.SafeCall(DescriptorManagement, func() error {
		return resultError("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(p.ctx.LogicalDevice, &allocInfo, &handles[0]))
	}); err != nil {
		return nil, err
	}
	return &DescriptorSet{ctx: p.ctx, Handle: handles[0]}, nil
}

func (p *DescriptorPool) Destroy() {
	if p.Handle == nil {
		return
	}
	p.ctx.locks.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorPool(p.ctx.LogicalDevice, p.Handle, p.ctx.Allocator)
		return nil
	})
	p.Handle = nil
}

type DescriptorSet struct {
	ctx    *Context
	Handle vk.DescriptorSet
}

// Update writes every binding in one vkUpdateDescriptorSets call. Image
// writes without an explicit layout default to shader read-only.
func (s *DescriptorSet) Update(writes ...driver.DescriptorWrite) {
	if len(writes) == 0 {
		return
	}
	vkWrites := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		vkWrites[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.Handle,
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorType:  toVkDescriptorType(w.Type),
			DescriptorCount: 1,
		}
		if w.Type == driver.DescriptorTypeCombinedImageSampler {
			layout := w.Layout
			if layout == driver.ImageLayoutUndefined {
				layout = driver.ImageLayoutShaderReadOnlyOptimal
			}
			vkWrites[i].PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     w.Sampler.(*Sampler).Handle,
				ImageView:   w.View.(*ImageView).Handle,
				ImageLayout: toVkLayout(layout),
			}}
			continue
		}
		vkWrites[i].PBufferInfo = []vk.DescriptorBufferInfo{{
			Buffer: w.Buffer.(*Buffer).Handle,
			Offset: vk.DeviceSize(w.Offset),
			Range:  vk.DeviceSize(w.Range),
		}}
	}
	s.ctx.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(s.ctx.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
		return nil
	})
}
