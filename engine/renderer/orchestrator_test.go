package renderer

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
	"github.com/spaghettifunk/okapi/engine/renderer/driver/drivertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderFrame(t *testing.T, r *Renderer) *Frame {
	t.Helper()
	frame, err := r.BeginFrame()
	require.NoError(t, err)
	require.NoError(t, r.EndFrame(frame))
	return frame
}

func TestSingleFrameOnTwoImages(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)
	o := r.Orchestrator()

	frame, err := r.BeginFrame()
	require.NoError(t, err)
	assert.Equal(t, StateRecording, o.State())
	assert.Equal(t, uint32(0), frame.Index())
	assert.Equal(t, uint64(0), frame.Number())
	assert.Equal(t, driver.Extent2D{Width: 800, Height: 600}, frame.Extent())
	assert.Equal(t, r.Swapchain().RenderPass(), frame.RenderPass())

	cb := frame.CommandBuffer().(*drivertest.CommandBuffer)
	cmds := cb.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, drivertest.OpBeginRenderPass, cmds[0].Op)
	assert.Equal(t, [4]float32{0.1, 0.1, 0.2, 1}, cmds[0].Clear.Color)
	assert.Equal(t, float32(1), cmds[0].Clear.Depth)
	assert.Equal(t, drivertest.OpSetViewport, cmds[1].Op)
	assert.Equal(t, driver.Viewport{Width: 800, Height: 600, MinDepth: 0, MaxDepth: 1}, cmds[1].Viewport)
	assert.Equal(t, drivertest.OpSetScissor, cmds[2].Op)

	require.NoError(t, r.EndFrame(frame))
	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, uint64(1), o.FrameNumber())
	assert.Equal(t, 1, dev.Presents)
	assert.Equal(t, []uint32{0}, dev.PresentedImages)
	require.Len(t, dev.Submits, 1)

	submit := dev.Submits[0]
	slot := frame.Slot()
	assert.Equal(t, []driver.Semaphore{slot.AcquireSemaphore}, submit.Wait)
	assert.Equal(t, []driver.PipelineStage{driver.PipelineStageColorAttachmentOutput}, submit.WaitStages)
	assert.Equal(t, []driver.Semaphore{slot.ReleaseSemaphore}, submit.Signal)
	assert.Equal(t, slot.Fence, submit.Fence)
	assert.Equal(t, 1, cb.Count(drivertest.OpEndRenderPass))

	shutdown(t, r, dev)
}

func TestFenceWaitedOncePerReuse(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)

	const frames = 6
	for i := 0; i < frames; i++ {
		frame := renderFrame(t, r)
		assert.Equal(t, uint32(i%2), frame.Index())
	}

	pool := r.Swapchain().Frames()
	for i := uint32(0); i < 2; i++ {
		fence := pool.Slot(i).Fence.(*drivertest.Fence)
		assert.Equal(t, frames/2, fence.Waits, "slot %d", i)
		assert.Equal(t, frames/2, fence.Resets, "slot %d", i)
		assert.Equal(t, frames/2, pool.Slot(i).CommandPool.(*drivertest.CommandPool).Resets, "slot %d", i)
	}
	assert.Empty(t, dev.Violations)
	assert.Equal(t, uint64(frames), r.Orchestrator().FrameNumber())

	shutdown(t, r, dev)
}

func TestSemaphorePoolDisjointFromSlots(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)
	pool := r.Swapchain().Frames()
	sems := pool.Semaphores()

	for i := 0; i < 8; i++ {
		renderFrame(t, r)

		seen := map[driver.Semaphore]bool{}
		for j := uint32(0); j < uint32(pool.Len()); j++ {
			s := pool.Slot(j).AcquireSemaphore
			if s == nil {
				continue
			}
			assert.False(t, sems.Contains(s), "frame %d: slot %d semaphore is pooled", i, j)
			assert.False(t, seen[s], "frame %d: semaphore shared by two slots", i)
			seen[s] = true
		}
	}
	// Two in slots plus one recycled at most.
	assert.LessOrEqual(t, dev.LiveOf("semaphore"), 2+2+1)

	shutdown(t, r, dev)
}

func TestAcquireOutOfDateRebuilds(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)
	oldChain := r.Swapchain().Chain().(*drivertest.Swapchain)

	dev.QueueAcquire(driver.ErrOutOfDate)
	frame, err := r.BeginFrame()
	require.ErrorIs(t, err, core.ErrSwapchainBooting)
	assert.Nil(t, frame)
	assert.Equal(t, StateIdle, r.Orchestrator().State())

	assert.Equal(t, 2, dev.SwapchainsBuilt)
	assert.True(t, oldChain.Retired())
	assert.Same(t, oldChain, r.Swapchain().Chain().(*drivertest.Swapchain).Previous)
	assert.Empty(t, dev.Submits)
	assert.Zero(t, dev.PresentCalls)
	assert.Equal(t, uint64(0), r.Orchestrator().FrameNumber())
	for i := uint32(0); i < 2; i++ {
		cb := r.Swapchain().Frames().Slot(i).CommandBuffer.(*drivertest.CommandBuffer)
		assert.Empty(t, cb.Commands(), "slot %d recorded commands", i)
	}
	assert.Zero(t, dev.LiveOf("semaphore"))

	renderFrame(t, r)
	assert.Equal(t, 1, dev.Presents)

	shutdown(t, r, dev)
}

func TestAcquireSuboptimalRebuilds(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)

	dev.QueueAcquire(driver.ErrSuboptimal)
	_, err := r.BeginFrame()
	require.ErrorIs(t, err, core.ErrSwapchainBooting)
	assert.Equal(t, 2, dev.SwapchainsBuilt)
	assert.Zero(t, dev.LiveOf("semaphore"), "signaled acquire semaphore must not be recycled")

	renderFrame(t, r)
	renderFrame(t, r)
	assert.Empty(t, dev.Violations)

	shutdown(t, r, dev)
}

func TestAcquireFailureSkipsFrame(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)

	dev.QueueAcquire(driver.ErrTimeout)
	_, err := r.BeginFrame()
	require.ErrorIs(t, err, core.ErrFrameSkipped)
	assert.ErrorIs(t, err, driver.ErrTimeout)
	assert.Equal(t, 1, dev.SwapchainsBuilt)
	assert.Equal(t, 1, r.Swapchain().Frames().Semaphores().Len())

	// The recycled semaphore is used by the next acquire.
	frame := renderFrame(t, r)
	assert.Zero(t, r.Swapchain().Frames().Semaphores().Len())
	assert.NotNil(t, frame.Slot().AcquireSemaphore)

	shutdown(t, r, dev)
}

func TestPresentStaleRebuilds(t *testing.T) {
	for _, stale := range []error{driver.ErrOutOfDate, driver.ErrSuboptimal} {
		t.Run(stale.Error(), func(t *testing.T) {
			dev := twoImageDevice()
			r := newTestRenderer(t, dev)

			dev.QueuePresent(stale)
			frame, err := r.BeginFrame()
			require.NoError(t, err)
			require.NoError(t, r.EndFrame(frame))

			assert.Equal(t, uint64(1), r.Orchestrator().FrameNumber())
			assert.Equal(t, 2, dev.SwapchainsBuilt)
			assert.Zero(t, dev.Presents)
			assert.Equal(t, 1, dev.PresentCalls)

			renderFrame(t, r)
			assert.Equal(t, 1, dev.Presents)
			shutdown(t, r, dev)
		})
	}
}

func TestPresentFailure(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)

	dev.QueuePresent(driver.ErrDeviceLost)
	frame, err := r.BeginFrame()
	require.NoError(t, err)
	err = r.EndFrame(frame)
	require.ErrorIs(t, err, core.ErrPresentFailed)
	assert.ErrorIs(t, err, driver.ErrDeviceLost)
	assert.Equal(t, StateIdle, r.Orchestrator().State())
	assert.Equal(t, 1, dev.SwapchainsBuilt)

	shutdown(t, r, dev)
}

func TestBeginFailureKeepsSlotUsable(t *testing.T) {
	for _, method := range []string{"Fence.Wait", "CommandPool.Reset", "CommandBuffer.Begin"} {
		t.Run(method, func(t *testing.T) {
			dev := twoImageDevice()
			r := newTestRenderer(t, dev)
			renderFrame(t, r)
			renderFrame(t, r)

			boom := errors.New("boom")
			dev.Fail(method, boom)
			frame, err := r.BeginFrame()
			require.ErrorIs(t, err, boom)
			assert.Nil(t, frame)
			assert.Equal(t, StateIdle, r.Orchestrator().State())
			assert.Equal(t, 1, r.Orchestrator().Retired(), "acquired semaphore parked")

			slot := r.Swapchain().Frames().Slot(0)
			assert.True(t, slot.Fence.(*drivertest.Fence).Signaled(), "fence left unsignaled")

			// Both slots keep rendering without waiting on a dead fence.
			for i := 0; i < 4; i++ {
				renderFrame(t, r)
			}
			assert.Equal(t, 6, dev.Presents)
			assert.Empty(t, dev.Violations)

			shutdown(t, r, dev)
			assert.Zero(t, dev.LiveOf("semaphore"))
		})
	}
}

func TestSubmitFailureKeepsSlotUsable(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)

	dev.Fail("Submit", driver.ErrDeviceLost)
	frame, err := r.BeginFrame()
	require.NoError(t, err)
	err = r.EndFrame(frame)
	require.ErrorIs(t, err, driver.ErrDeviceLost)
	assert.Equal(t, StateIdle, r.Orchestrator().State())
	assert.Nil(t, frame.Slot().AcquireSemaphore)
	assert.True(t, frame.Slot().Fence.(*drivertest.Fence).Signaled())

	for i := 0; i < 4; i++ {
		renderFrame(t, r)
	}
	assert.Equal(t, 4, dev.Presents)
	shutdown(t, r, dev)
}

func TestSuboptimalAcquireWhileMinimised(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)

	dev.SetExtent(0, 0)
	dev.QueueAcquire(driver.ErrSuboptimal)
	_, err := r.BeginFrame()
	require.ErrorIs(t, err, core.ErrSwapchainBooting)
	assert.Equal(t, 1, dev.SwapchainsBuilt, "rebuild postponed")
	assert.Equal(t, 1, r.Orchestrator().Retired())
	assert.Empty(t, dev.Violations, "signaled semaphore destroyed before the device was idle")

	_, err = r.BeginFrame()
	require.ErrorIs(t, err, core.ErrSwapchainBooting)

	dev.SetExtent(800, 600)
	renderFrame(t, r)
	assert.Equal(t, 2, dev.SwapchainsBuilt)
	assert.Zero(t, r.Orchestrator().Retired())

	shutdown(t, r, dev)
}

func TestFrameProtocolMisuse(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)

	frame, err := r.BeginFrame()
	require.NoError(t, err)

	_, err = r.BeginFrame()
	assert.ErrorIs(t, err, ErrFrameInProgress)
	_, err = r.Resize()
	assert.ErrorIs(t, err, ErrFrameInProgress)
	assert.ErrorIs(t, r.EndFrame(&Frame{}), ErrFrameInProgress)

	require.NoError(t, r.EndFrame(frame))
	assert.ErrorIs(t, r.EndFrame(frame), ErrFrameInProgress)

	shutdown(t, r, dev)
}

func TestFrameStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "recording", StateRecording.String())
	assert.Equal(t, "presenting", StatePresenting.String())
	assert.Equal(t, "unknown", FrameState(42).String())
}
