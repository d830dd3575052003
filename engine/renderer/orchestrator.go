package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// FrameState is the position of the orchestrator in the frame protocol.
type FrameState int

const (
	StateIdle FrameState = iota
	StateAcquiring
	StateRecording
	StateSubmitted
	StatePresenting
)

func (s FrameState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateSubmitted:
		return "submitted"
	case StatePresenting:
		return "presenting"
	default:
		return "unknown"
	}
}

// Frame is a frame being recorded. Its command buffer is inside the main
// render pass between BeginFrame and EndFrame.
type Frame struct {
	slot        *FrameSlot
	index       uint32
	number      uint64
	extent      driver.Extent2D
	renderPass  driver.RenderPass
	sceneOffset uint32
	// objects counts the object buffer entries written this frame.
	objects uint32
}

func (f *Frame) CommandBuffer() driver.CommandBuffer { return f.slot.CommandBuffer }
func (f *Frame) RenderPass() driver.RenderPass       { return f.renderPass }
func (f *Frame) Index() uint32                       { return f.index }
func (f *Frame) Number() uint64                      { return f.number }
func (f *Frame) Extent() driver.Extent2D             { return f.extent }
func (f *Frame) Slot() *FrameSlot                    { return f.slot }

// Objects returns how many objects were drawn into this frame so far.
func (f *Frame) Objects() uint32 { return f.objects }

// SceneOffset is the dynamic offset of this frame's entry in the scene
// uniform buffer.
func (f *Frame) SceneOffset() uint32 { return f.sceneOffset }

// Orchestrator drives acquire, record, submit and present against the
// swapchain and its frame pool.
type Orchestrator struct {
	dc         *DeviceContext
	swapchain  *Swapchain
	semaphores *SemaphorePool
	clearColor [4]float32

	state       FrameState
	current     *Frame
	frameNumber uint64
	retired     []driver.Semaphore
}

func NewOrchestrator(dc *DeviceContext, swapchain *Swapchain, clearColor [4]float32) *Orchestrator {
	return &Orchestrator{
		dc:         dc,
		swapchain:  swapchain,
		semaphores: swapchain.Frames().Semaphores(),
		clearColor: clearColor,
	}
}

// BeginFrame acquires the next image and starts recording into its slot.
// It returns core.ErrSwapchainBooting when the swapchain had to be rebuilt
// and the frame should be skipped.
func (o *Orchestrator) BeginFrame() (*Frame, error) {
	if o.state != StateIdle {
		return nil, fmt.Errorf("begin frame in state %s: %w", o.state, ErrFrameInProgress)
	}
	if o.swapchain.Invalid() {
		if err := o.rebuildSwapchain(); err != nil {
			return nil, err
		}
		if o.swapchain.Invalid() {
			return nil, core.ErrSwapchainBooting
		}
	}

	dev := o.dc.Device()
	o.state = StateAcquiring

	sem, err := o.semaphores.Acquire()
	if err != nil {
		o.state = StateIdle
		return nil, fmt.Errorf("%w: %w", core.ErrFrameSkipped, err)
	}

	index, err := dev.AcquireNextImage(o.swapchain.Chain(), driver.WaitForever, sem)
	switch {
	case err == nil:
	case errors.Is(err, driver.ErrSuboptimal):
		// The semaphore is signaled and nothing will wait on it.
		core.LogDebug("Acquire reported a suboptimal swapchain.")
		o.retire(sem)
		o.state = StateIdle
		if err := o.rebuild(); err != nil {
			return nil, err
		}
		return nil, core.ErrSwapchainBooting
	case errors.Is(err, driver.ErrOutOfDate):
		core.LogDebug("Acquire reported an out of date swapchain.")
		o.releaseSemaphore(sem)
		o.state = StateIdle
		if err := o.rebuild(); err != nil {
			return nil, err
		}
		return nil, core.ErrSwapchainBooting
	default:
		o.releaseSemaphore(sem)
		o.state = StateIdle
		return nil, fmt.Errorf("%w: %w", core.ErrFrameSkipped, err)
	}

	frame, err := o.begin(index, sem)
	if err != nil {
		o.retire(sem)
		o.state = StateIdle
		return nil, err
	}
	o.current = frame
	o.state = StateRecording
	return frame, nil
}

// begin prepares the slot of image index for recording. The acquire
// semaphore is stored on the slot only once nothing can fail anymore.
func (o *Orchestrator) begin(index uint32, sem driver.Semaphore) (*Frame, error) {
	frames := o.swapchain.Frames()
	slot := frames.Slot(index)
	if slot == nil {
		return nil, fmt.Errorf("acquired image %d has no frame slot", index)
	}

	if !slot.fenceWaited {
		if err := slot.Fence.Wait(driver.WaitForever); err != nil {
			return nil, fmt.Errorf("failed to wait for frame slot %d: %w", index, err)
		}
		slot.fenceWaited = true
	}
	if err := slot.CommandPool.Reset(); err != nil {
		return nil, fmt.Errorf("failed to reset command pool of frame slot %d: %w", index, err)
	}
	cb := slot.CommandBuffer
	if err := cb.Begin(true); err != nil {
		return nil, fmt.Errorf("failed to begin command buffer: %w", err)
	}

	// The previous acquire semaphore was consumed by the submit the fence
	// just guarded.
	if slot.AcquireSemaphore != nil {
		o.releaseSemaphore(slot.AcquireSemaphore)
	}
	slot.AcquireSemaphore = sem

	extent := o.swapchain.Extent()
	area := driver.Rect2D{Extent: extent}
	cb.BeginRenderPass(o.swapchain.RenderPass(), o.swapchain.Framebuffer(index), area,
		driver.ClearValues{Color: o.clearColor, Depth: 1})
	cb.SetViewport(driver.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	cb.SetScissor(area)

	return &Frame{
		slot:        slot,
		index:       index,
		number:      o.frameNumber,
		extent:      extent,
		renderPass:  o.swapchain.RenderPass(),
		sceneOffset: frames.SceneOffset(index),
	}, nil
}

// EndFrame closes the render pass, submits the frame and presents it. A
// stale swapchain reported by present is rebuilt and not an error.
func (o *Orchestrator) EndFrame(frame *Frame) error {
	if o.state != StateRecording || frame == nil || frame != o.current {
		return fmt.Errorf("end frame in state %s: %w", o.state, ErrFrameInProgress)
	}
	dev := o.dc.Device()
	slot := frame.slot
	submitted := false
	defer func() {
		if !submitted {
			o.abandon(slot)
		}
		o.state = StateIdle
		o.current = nil
	}()

	cb := slot.CommandBuffer
	cb.EndRenderPass()
	if err := cb.End(); err != nil {
		return fmt.Errorf("failed to end command buffer: %w", err)
	}

	if slot.ReleaseSemaphore == nil {
		s, err := dev.NewSemaphore()
		if err != nil {
			return fmt.Errorf("failed to create release semaphore: %w", err)
		}
		slot.ReleaseSemaphore = s
	}

	// The fence is reset only right before the submit that signals it.
	if err := slot.Fence.Reset(); err != nil {
		return fmt.Errorf("failed to reset fence of frame slot %d: %w", frame.index, err)
	}
	o.state = StateSubmitted
	if err := dev.Submit(driver.SubmitInfo{
		CommandBuffers: []driver.CommandBuffer{cb},
		Wait:           []driver.Semaphore{slot.AcquireSemaphore},
		WaitStages:     []driver.PipelineStage{driver.PipelineStageColorAttachmentOutput},
		Signal:         []driver.Semaphore{slot.ReleaseSemaphore},
		Fence:          slot.Fence,
	}); err != nil {
		o.replaceFence(slot)
		return fmt.Errorf("failed to submit frame %d: %w", frame.number, err)
	}
	submitted = true
	slot.fenceWaited = false

	o.state = StatePresenting
	err := dev.Present(o.swapchain.Chain(), frame.index, slot.ReleaseSemaphore)
	switch {
	case err == nil:
		o.frameNumber++
		return nil
	case driver.IsStale(err):
		o.frameNumber++
		core.LogDebug("Present reported a stale swapchain: %s", err)
		return o.rebuild()
	default:
		return fmt.Errorf("%w: %w", core.ErrPresentFailed, err)
	}
}

// abandon retires the acquire semaphore of a frame that was never
// submitted, so the slot does not hand a signaled semaphore back to the
// pool.
func (o *Orchestrator) abandon(slot *FrameSlot) {
	o.retire(slot.AcquireSemaphore)
	slot.AcquireSemaphore = nil
}

// replaceFence swaps a fence that was reset for a submit that never
// happened with a signaled one.
func (o *Orchestrator) replaceFence(slot *FrameSlot) {
	fence, err := o.dc.Device().NewFence(true)
	if err != nil {
		core.LogError("failed to replace fence of frame slot %d: %s", slot.Index, err)
		return
	}
	slot.Fence.Destroy()
	slot.Fence = fence
	slot.fenceWaited = false
}

// Resize rebuilds the swapchain if the surface extent changed.
func (o *Orchestrator) Resize() (bool, error) {
	if o.state != StateIdle {
		return false, fmt.Errorf("resize in state %s: %w", o.state, ErrFrameInProgress)
	}
	rebuilt, err := o.swapchain.Rebuild()
	if rebuilt {
		o.destroyRetired()
	}
	return rebuilt, err
}

func (o *Orchestrator) rebuild() error {
	o.swapchain.Invalidate()
	return o.rebuildSwapchain()
}

// rebuildSwapchain rebuilds the chain and, when the device was idled for
// it, destroys the retired semaphores.
func (o *Orchestrator) rebuildSwapchain() error {
	rebuilt, err := o.swapchain.Rebuild()
	if rebuilt {
		o.destroyRetired()
	}
	return err
}

// retire parks a semaphore signaled by an acquire nothing will wait on.
// It may only be destroyed after the device has been idled.
func (o *Orchestrator) retire(s driver.Semaphore) {
	if s != nil {
		o.retired = append(o.retired, s)
	}
}

func (o *Orchestrator) destroyRetired() {
	for _, s := range o.retired {
		s.Destroy()
	}
	o.retired = nil
}

// Destroy releases the retired semaphores. The device must be idle.
func (o *Orchestrator) Destroy() {
	o.destroyRetired()
}

// Retired returns how many semaphores wait for the device to go idle.
func (o *Orchestrator) Retired() int { return len(o.retired) }

func (o *Orchestrator) releaseSemaphore(s driver.Semaphore) {
	if err := o.semaphores.Release(s); err != nil {
		core.LogError("failed to recycle acquire semaphore: %s", err)
	}
}

func (o *Orchestrator) FrameNumber() uint64 { return o.frameNumber }
func (o *Orchestrator) State() FrameState   { return o.state }

// Current returns the frame being recorded, or nil.
func (o *Orchestrator) Current() *Frame { return o.current }
