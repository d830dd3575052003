package drivertest

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

type handle struct {
	dev  *Device
	kind string
}

func (h *handle) Destroy() { h.dev.release(h) }

type Semaphore struct {
	dev      *Device
	id       uint64
	signaled bool
	// epoch is the device idle epoch at the time of the last signal.
	epoch uint64
}

func (s *Semaphore) ID() uint64 { return s.id }

// Pending reports whether the semaphore has been signaled and not yet
// waited on.
func (s *Semaphore) Pending() bool { return s.signaled }

func (s *Semaphore) Destroy() { s.dev.release(s) }

type Fence struct {
	dev              *Device
	signaled         bool
	waitsSinceSignal int

	Waits  int
	Resets int
}

func (f *Fence) Signaled() bool { return f.signaled }

func (f *Fence) Wait(timeout uint64) error {
	d := f.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("Fence.Wait"); err != nil {
		return err
	}
	f.Waits++
	f.waitsSinceSignal++
	if f.waitsSinceSignal > 1 {
		d.violate("fence waited %d times without a submit in between", f.waitsSinceSignal)
	}
	if !f.signaled {
		d.violate("wait on an unsignaled fence with no pending submission")
		return driver.ErrTimeout
	}
	return nil
}

func (f *Fence) Reset() error {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()
	f.Resets++
	f.signaled = false
	return nil
}

func (f *Fence) Destroy() { f.dev.release(f) }

type CommandPool struct {
	dev     *Device
	buffers []*CommandBuffer

	Flags  driver.CommandPoolFlags
	Resets int
}

func (p *CommandPool) Allocate() (driver.CommandBuffer, error) {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	if err := p.dev.takeFailure("Allocate"); err != nil {
		return nil, err
	}
	cb := &CommandBuffer{dev: p.dev, pool: p}
	p.buffers = append(p.buffers, cb)
	p.dev.track(cb, "command-buffer")
	return cb, nil
}

func (p *CommandPool) Reset() error {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	if err := p.dev.takeFailure("CommandPool.Reset"); err != nil {
		return err
	}
	p.Resets++
	for _, cb := range p.buffers {
		cb.state = stateInitial
		cb.commands = nil
		cb.inRenderPass = false
	}
	return nil
}

func (p *CommandPool) Destroy() { p.dev.release(p) }

type bufferState int

const (
	stateInitial bufferState = iota
	stateRecording
	stateEnded
	stateSubmitted
)

func (s bufferState) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateRecording:
		return "recording"
	case stateEnded:
		return "ended"
	case stateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

type Op int

const (
	OpBeginRenderPass Op = iota
	OpEndRenderPass
	OpSetViewport
	OpSetScissor
	OpBindPipeline
	OpBindDescriptorSets
	OpBindVertexBuffer
	OpPushConstants
	OpDraw
	OpCopyBuffer
	OpCopyBufferToImage
	OpPipelineBarrier
)

// Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op Op

	RenderPass  driver.RenderPass
	Framebuffer driver.Framebuffer
	Clear       driver.ClearValues
	Viewport    driver.Viewport
	Scissor     driver.Rect2D

	Pipeline       driver.Pipeline
	Layout         driver.PipelineLayout
	FirstSet       uint32
	Sets           []driver.DescriptorSet
	DynamicOffsets []uint32

	Buffer  driver.Buffer
	Offset  uint64
	Stages  driver.ShaderStage
	Payload []byte

	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32

	Src      driver.Buffer
	Dst      driver.Buffer
	Regions  []driver.BufferCopy
	Image    driver.Image
	Barriers []driver.ImageBarrier
}

type CommandBuffer struct {
	dev          *Device
	pool         *CommandPool
	state        bufferState
	inRenderPass bool
	commands     []Command

	Begins int
}

// Commands returns the commands recorded since the last Begin or pool reset.
func (cb *CommandBuffer) Commands() []Command {
	return append([]Command(nil), cb.commands...)
}

// Count returns how many commands of the given kind were recorded.
func (cb *CommandBuffer) Count(op Op) int {
	n := 0
	for _, c := range cb.commands {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (cb *CommandBuffer) Recording() bool { return cb.state == stateRecording }

func (cb *CommandBuffer) record(c Command) {
	if cb.state != stateRecording {
		cb.dev.mu.Lock()
		cb.dev.violate("command %d recorded outside Begin/End", c.Op)
		cb.dev.mu.Unlock()
	}
	cb.commands = append(cb.commands, c)
}

func (cb *CommandBuffer) Begin(oneTimeSubmit bool) error {
	cb.dev.mu.Lock()
	err := cb.dev.takeFailure("CommandBuffer.Begin")
	cb.dev.mu.Unlock()
	if err != nil {
		return err
	}
	if cb.state == stateRecording {
		return errors.New("command buffer is already recording")
	}
	cb.state = stateRecording
	cb.commands = nil
	cb.Begins++
	return nil
}

func (cb *CommandBuffer) End() error {
	if cb.state != stateRecording {
		return fmt.Errorf("end of command buffer in state %s", cb.state)
	}
	if cb.inRenderPass {
		return errors.New("end of command buffer inside a render pass")
	}
	cb.state = stateEnded
	return nil
}

func (cb *CommandBuffer) BeginRenderPass(rp driver.RenderPass, fb driver.Framebuffer, area driver.Rect2D, clear driver.ClearValues) {
	cb.inRenderPass = true
	cb.record(Command{Op: OpBeginRenderPass, RenderPass: rp, Framebuffer: fb, Scissor: area, Clear: clear})
}

func (cb *CommandBuffer) EndRenderPass() {
	cb.inRenderPass = false
	cb.record(Command{Op: OpEndRenderPass})
}

func (cb *CommandBuffer) SetViewport(vp driver.Viewport) {
	cb.record(Command{Op: OpSetViewport, Viewport: vp})
}

func (cb *CommandBuffer) SetScissor(rect driver.Rect2D) {
	cb.record(Command{Op: OpSetScissor, Scissor: rect})
}

func (cb *CommandBuffer) BindPipeline(p driver.Pipeline) {
	cb.record(Command{Op: OpBindPipeline, Pipeline: p})
}

func (cb *CommandBuffer) BindDescriptorSets(layout driver.PipelineLayout, firstSet uint32, sets []driver.DescriptorSet, dynamicOffsets []uint32) {
	cb.record(Command{
		Op:             OpBindDescriptorSets,
		Layout:         layout,
		FirstSet:       firstSet,
		Sets:           append([]driver.DescriptorSet(nil), sets...),
		DynamicOffsets: append([]uint32(nil), dynamicOffsets...),
	})
}

func (cb *CommandBuffer) BindVertexBuffer(b driver.Buffer, offset uint64) {
	cb.record(Command{Op: OpBindVertexBuffer, Buffer: b, Offset: offset})
}

func (cb *CommandBuffer) PushConstants(layout driver.PipelineLayout, stages driver.ShaderStage, offset uint32, data []byte) {
	cb.record(Command{Op: OpPushConstants, Layout: layout, Stages: stages, Offset: uint64(offset), Payload: append([]byte(nil), data...)})
}

func (cb *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if !cb.inRenderPass {
		cb.dev.mu.Lock()
		cb.dev.violate("draw outside a render pass")
		cb.dev.mu.Unlock()
	}
	cb.record(Command{Op: OpDraw, VertexCount: vertexCount, InstanceCount: instanceCount, FirstVertex: firstVertex, FirstInstance: firstInstance})
}

func (cb *CommandBuffer) CopyBuffer(src, dst driver.Buffer, regions ...driver.BufferCopy) {
	cb.record(Command{Op: OpCopyBuffer, Src: src, Dst: dst, Regions: append([]driver.BufferCopy(nil), regions...)})
}

func (cb *CommandBuffer) CopyBufferToImage(src driver.Buffer, dst driver.Image, layout driver.ImageLayout) {
	cb.record(Command{Op: OpCopyBufferToImage, Src: src, Image: dst})
}

func (cb *CommandBuffer) PipelineBarrier(barriers ...driver.ImageBarrier) {
	cb.record(Command{Op: OpPipelineBarrier, Barriers: append([]driver.ImageBarrier(nil), barriers...)})
}

func (cb *CommandBuffer) Destroy() { cb.dev.release(cb) }

// execute applies the transfer commands. Called with the device lock held.
func (cb *CommandBuffer) execute() {
	d := cb.dev
	for _, c := range cb.commands {
		switch c.Op {
		case OpCopyBuffer:
			src, dst := c.Src.(*Buffer), c.Dst.(*Buffer)
			if _, ok := d.live[src]; !ok {
				d.violate("copy from a destroyed buffer")
			}
			for _, r := range c.Regions {
				if r.SrcOffset+r.Size > uint64(len(src.data)) || r.DstOffset+r.Size > uint64(len(dst.data)) {
					d.violate("copy region %+v out of bounds", r)
					continue
				}
				copy(dst.data[r.DstOffset:r.DstOffset+r.Size], src.data[r.SrcOffset:r.SrcOffset+r.Size])
			}
		case OpCopyBufferToImage:
			src, img := c.Src.(*Buffer), c.Image.(*Image)
			if img.Layout != driver.ImageLayoutTransferDstOptimal {
				d.violate("copy into image in layout %d", img.Layout)
			}
			copy(img.data, src.data)
		case OpPipelineBarrier:
			for _, b := range c.Barriers {
				img := b.Image.(*Image)
				if b.OldLayout != driver.ImageLayoutUndefined && img.Layout != b.OldLayout {
					d.violate("barrier from layout %d but image is in layout %d", b.OldLayout, img.Layout)
				}
				img.Layout = b.NewLayout
			}
		}
	}
}

type Buffer struct {
	dev        *Device
	spec       driver.BufferSpec
	data       []byte
	persistent bool
	mapped     bool

	Flushes int
}

func (b *Buffer) Size() uint64                { return b.spec.Size }
func (b *Buffer) Usage() driver.BufferUsage   { return b.spec.Usage }
func (b *Buffer) Residency() driver.Residency { return b.spec.Residency }
func (b *Buffer) Bytes() []byte               { return b.data }
func (b *Buffer) MappedNow() bool             { return b.mapped }

// staging reports whether the buffer looks like an upload staging buffer.
func (b *Buffer) staging() bool {
	return b.spec.Usage == driver.BufferUsageTransferSrc && b.spec.Residency.HostVisible()
}

func (b *Buffer) Mapped() []byte {
	if !b.persistent {
		return nil
	}
	return b.data
}

func (b *Buffer) Map() ([]byte, error) {
	if !b.spec.Residency.HostVisible() {
		return nil, driver.ErrNotHostVisible
	}
	if b.mapped {
		return nil, errors.New("buffer is already mapped")
	}
	b.mapped = true
	return b.data, nil
}

func (b *Buffer) Flush(offset, size uint64) error {
	if !b.spec.Residency.HostVisible() {
		return driver.ErrNotHostVisible
	}
	if offset+size > b.spec.Size {
		return fmt.Errorf("flush range [%d, %d) exceeds buffer size %d", offset, offset+size, b.spec.Size)
	}
	b.Flushes++
	return nil
}

func (b *Buffer) Unmap() { b.mapped = false }

func (b *Buffer) Destroy() {
	if b.mapped {
		b.dev.mu.Lock()
		b.dev.violate("buffer destroyed while mapped")
		b.dev.mu.Unlock()
	}
	b.dev.release(b)
}

type Image struct {
	dev  *Device
	spec driver.ImageSpec
	view *ImageView
	data []byte

	Layout driver.ImageLayout
}

func (i *Image) Format() driver.Format    { return i.spec.Format }
func (i *Image) Extent() driver.Extent3D  { return i.spec.Extent }
func (i *Image) View() driver.ImageView   { return i.view }
func (i *Image) Usage() driver.ImageUsage { return i.spec.Usage }
func (i *Image) Bytes() []byte            { return i.data }

func (i *Image) Destroy() {
	i.view.Destroy()
	i.dev.release(i)
}

type ImageView struct {
	dev *Device
}

func (v *ImageView) Destroy() { v.dev.release(v) }

type Swapchain struct {
	dev     *Device
	cfg     driver.SwapchainConfig
	views   []*ImageView
	retired bool

	Previous *Swapchain
}

func (s *Swapchain) Config() driver.SwapchainConfig  { return s.cfg }
func (s *Swapchain) Format() driver.SurfaceFormat    { return s.cfg.Format }
func (s *Swapchain) PresentMode() driver.PresentMode { return s.cfg.PresentMode }
func (s *Swapchain) Extent() driver.Extent2D         { return s.cfg.Extent }
func (s *Swapchain) Retired() bool                   { return s.retired }

func (s *Swapchain) Views() []driver.ImageView {
	out := make([]driver.ImageView, len(s.views))
	for i, v := range s.views {
		out[i] = v
	}
	return out
}

func (s *Swapchain) Destroy() {
	s.dev.mu.Lock()
	for _, v := range s.views {
		if _, ok := s.dev.live[v]; ok {
			s.dev.violate("swapchain destroyed before its image views")
			break
		}
	}
	s.dev.mu.Unlock()
	s.dev.release(s)
}

type Framebuffer struct {
	handle
	Extent      driver.Extent2D
	Attachments []driver.ImageView
}

func (f *Framebuffer) Destroy() { f.dev.release(f) }

type DescriptorSetLayout struct {
	handle
	Bindings []driver.DescriptorBinding
}

func (l *DescriptorSetLayout) Destroy() { l.dev.release(l) }

type DescriptorPool struct {
	handle
	maxSets uint32
	sets    []*DescriptorSet
}

func (p *DescriptorPool) Allocate(layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	if _, ok := p.dev.live[p]; !ok {
		return nil, errors.New("allocate from a destroyed descriptor pool")
	}
	if uint32(len(p.sets)) >= p.maxSets {
		return nil, fmt.Errorf("descriptor pool exhausted: %w", driver.ErrOutOfMemory)
	}
	s := &DescriptorSet{pool: p, Layout: layout, Writes: map[uint32]driver.DescriptorWrite{}}
	p.sets = append(p.sets, s)
	return s, nil
}

// Allocated returns the number of sets allocated from the pool.
func (p *DescriptorPool) Allocated() int { return len(p.sets) }

func (p *DescriptorPool) Destroy() { p.dev.release(p) }

type DescriptorSet struct {
	pool   *DescriptorPool
	Layout driver.DescriptorSetLayout
	Writes map[uint32]driver.DescriptorWrite
}

func (s *DescriptorSet) Update(writes ...driver.DescriptorWrite) {
	for _, w := range writes {
		s.Writes[w.Binding] = w
	}
}

type PipelineLayout struct {
	handle
	Sets []driver.DescriptorSetLayout
	Push []driver.PushConstantRange
}

func (l *PipelineLayout) Destroy() { l.dev.release(l) }

type Pipeline struct {
	handle
	Config driver.PipelineConfig
}

func (p *Pipeline) Destroy() { p.dev.release(p) }
