package systems

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/math"
	"github.com/spaghettifunk/okapi/engine/renderer"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
	"github.com/spaghettifunk/okapi/engine/renderer/driver/drivertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct{ width, height int }

func (w *fakeWindow) FramebufferSize() (int, int) { return w.width, w.height }

var spirv = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}

func newTestRenderer(t *testing.T) (*renderer.Renderer, *drivertest.Device) {
	t.Helper()
	dev := drivertest.NewDevice()
	dev.Caps.MinImageCount = 1
	dev.Caps.MaxImageCount = 2

	cfg := renderer.DefaultConfig()
	cfg.MaxObjects = 16
	cfg.VertexShader = spirv
	cfg.FragmentShader = spirv
	r, err := renderer.New(dev, &fakeWindow{800, 600}, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, r.Shutdown())
		assert.Zero(t, dev.Live())
		assert.Empty(t, dev.Violations)
	})
	return r, dev
}

func triangle() []math.Vertex3D {
	return []math.Vertex3D{
		{Position: math.NewVec3(0, 0, 0)},
		{Position: math.NewVec3(1, 0, 0)},
		{Position: math.NewVec3(0, 1, 0)},
	}
}

func TestRenderSystemDrawsWorld(t *testing.T) {
	r, dev := newTestRenderer(t)
	mesh, err := r.Registry().CreateMesh("triangle", triangle())
	require.NoError(t, err)
	material := r.Registry().GetMaterial(renderer.DefaultMaterialName)

	world := NewWorld()
	world.Spawn("a", mesh, material, nil)
	world.Spawn("b", mesh, material, math.NewTransformFrom(math.NewVec3(2, 0, 0), math.NewQuatIdentity(), math.NewVec3One()))
	hidden := world.Spawn("hidden", mesh, material, nil)
	hidden.Hidden = true
	world.Spawn("no material", mesh, nil, nil)

	rs := NewRenderSystem(r)
	var overlayCalls int
	rs.AddOverlay(func(frame *renderer.Frame) error {
		overlayCalls++
		assert.NotNil(t, frame.CommandBuffer())
		assert.NotNil(t, frame.RenderPass())
		return nil
	})

	presents := dev.Presents
	require.NoError(t, rs.Update(world, 1.0/60))
	assert.Equal(t, presents+1, dev.Presents)
	assert.Equal(t, uint64(1), rs.Frames())
	assert.Equal(t, 1, overlayCalls)
	assert.Equal(t, 2, rs.LastStats().Draws)
	assert.Equal(t, 1, rs.LastStats().PipelineBinds)
	assert.Equal(t, 1, rs.LastStats().VertexBufferBinds)
}

func TestRenderSystemSkipsWhileBooting(t *testing.T) {
	r, dev := newTestRenderer(t)
	rs := NewRenderSystem(r)
	world := NewWorld()

	dev.QueueAcquire(driver.ErrOutOfDate)
	require.NoError(t, rs.Update(world, 0))
	assert.Equal(t, uint64(1), rs.Skipped())
	assert.Zero(t, rs.Frames())

	dev.QueueAcquire(driver.ErrTimeout)
	require.NoError(t, rs.Update(world, 0))
	assert.Equal(t, uint64(2), rs.Skipped())

	require.NoError(t, rs.Update(world, 0))
	assert.Equal(t, uint64(1), rs.Frames())
}

func TestRenderSystemEndsFrameOnOverlayError(t *testing.T) {
	r, _ := newTestRenderer(t)
	rs := NewRenderSystem(r)
	boom := errors.New("boom")
	rs.AddOverlay(func(*renderer.Frame) error { return boom })

	err := rs.Update(NewWorld(), 0)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, renderer.StateIdle, r.Orchestrator().State(), "frame left open")

	err = rs.Update(NewWorld(), 0)
	assert.ErrorIs(t, err, boom, "the next frame must start cleanly")
}

func TestRenderSystemPresentFailure(t *testing.T) {
	r, dev := newTestRenderer(t)
	rs := NewRenderSystem(r)
	dev.QueuePresent(driver.ErrDeviceLost)
	err := rs.Update(NewWorld(), 0)
	assert.ErrorIs(t, err, core.ErrPresentFailed)
}

func TestSystemManagerOrder(t *testing.T) {
	sm := NewSystemManager()
	var order []string
	add := func(name string, err error) {
		require.NoError(t, sm.Register(name, SystemFunc(func(*World, float64) error {
			order = append(order, name)
			return err
		})))
	}
	add("input", nil)
	add("physics", nil)
	boom := errors.New("boom")
	add("render", boom)
	add("never", nil)

	assert.Error(t, sm.Register("input", SystemFunc(nil)))
	assert.Equal(t, []string{"input", "physics", "render", "never"}, sm.Names())
	assert.NotNil(t, sm.Get("physics"))
	assert.Nil(t, sm.Get("missing"))

	err := sm.Update(NewWorld(), 0.016)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "system render")
	assert.Equal(t, []string{"input", "physics", "render"}, order)
}

func TestWorldDespawn(t *testing.T) {
	w := NewWorld()
	a := w.Spawn("a", nil, nil, nil)
	b := w.Spawn("b", nil, nil, nil)
	assert.True(t, w.Despawn(a))
	assert.False(t, w.Despawn(a))
	assert.Equal(t, []*Entity{b}, w.Entities())
	assert.Empty(t, w.Renderables())
}

func TestCamera(t *testing.T) {
	c := NewCamera()
	assert.True(t, c.Forward().Compare(math.NewVec3(0, 0, -1), 1e-6))
	assert.True(t, c.Right().Compare(math.NewVec3(1, 0, 0), 1e-6))

	c.SetPosition(math.NewVec3(0, 0, 5))
	origin := math.NewVec3Zero().Transform(c.View())
	assert.True(t, origin.Compare(math.NewVec3(0, 0, -5), 1e-5), "got %v", origin)

	c.Turn(0, 10)
	assert.Equal(t, pitchLimit, c.Pitch())

	proj := c.Projection(1)
	assert.Less(t, proj.Data[5], float32(0), "Y is flipped")
}

func TestCameraSystemMoves(t *testing.T) {
	in := core.NewInputState(nil)
	cs := NewCameraSystem(in)
	w := NewWorld()

	in.ProcessKey(core.KeyW, true)
	require.NoError(t, cs.Update(w, 1))
	assert.True(t, w.Camera.Position().Compare(math.NewVec3(0, 0, -5), 1e-5))

	in.ProcessKey(core.KeyW, false)
	in.ProcessKey(core.KeyRight, true)
	require.NoError(t, cs.Update(w, 1))
	assert.InDelta(t, 1.5, w.Camera.Yaw(), 1e-6)
}

func TestJobSystemDeliversOnUpdate(t *testing.T) {
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)

	var ran atomic.Int32
	var completed []int
	var failed []error
	boom := errors.New("boom")
	for i := 0; i < 6; i++ {
		i := i
		require.NoError(t, js.Submit(Job{
			Name: "square",
			Run: func() (interface{}, error) {
				ran.Add(1)
				if i == 3 {
					return nil, boom
				}
				return i * i, nil
			},
			OnComplete: func(result interface{}) { completed = append(completed, result.(int)) },
			OnFailure:  func(err error) { failed = append(failed, err) },
		}))
	}

	require.Eventually(t, func() bool { return ran.Load() == 6 }, 5*time.Second, time.Millisecond)
	// Callbacks only run here.
	delivered := 0
	require.Eventually(t, func() bool {
		delivered += js.Update()
		return delivered == 6
	}, 5*time.Second, time.Millisecond)

	assert.ElementsMatch(t, []int{0, 1, 4, 16, 25}, completed)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0], boom)
	assert.Zero(t, js.Pending())

	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
	assert.ErrorIs(t, js.Submit(Job{Run: func() (interface{}, error) { return nil, nil }}), ErrJobSystemClosed)
}

func TestJobSystemShutdownDrains(t *testing.T) {
	js, err := NewJobSystem(1, 8)
	require.NoError(t, err)

	var completed atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, js.Submit(Job{
			Run:        func() (interface{}, error) { return nil, nil },
			OnComplete: func(interface{}) { completed.Add(1) },
		}))
	}
	require.NoError(t, js.Shutdown())
	assert.Equal(t, int32(5), completed.Load())
}

func TestNewJobSystemValidation(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}
