package renderer

import (
	"testing"

	"github.com/spaghettifunk/okapi/engine/math"
	"github.com/spaghettifunk/okapi/engine/renderer/driver/drivertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	width, height int
}

func (w *fakeWindow) FramebufferSize() (int, int) { return w.width, w.height }

// spirv is the smallest byte slice the shader module checks accept.
var spirv = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxObjects = 16
	cfg.VertexShader = spirv
	cfg.FragmentShader = spirv
	cfg.TexturedFragmentShader = spirv
	return cfg
}

// twoImageDevice reports a surface whose swapchain has exactly two images.
func twoImageDevice() *drivertest.Device {
	dev := drivertest.NewDevice()
	dev.Caps.MinImageCount = 1
	dev.Caps.MaxImageCount = 2
	return dev
}

func newTestRenderer(t *testing.T, dev *drivertest.Device) *Renderer {
	t.Helper()
	r, err := New(dev, &fakeWindow{800, 600}, testConfig())
	require.NoError(t, err)
	return r
}

// shutdown destroys the renderer and checks nothing leaked and no
// synchronization rule was broken.
func shutdown(t *testing.T, r *Renderer, dev *drivertest.Device) {
	t.Helper()
	require.NoError(t, r.Shutdown())
	assert.Zero(t, dev.Live(), "live driver objects after shutdown")
	assert.Empty(t, dev.Violations)
}

func testVertices(n int) []math.Vertex3D {
	vs := make([]math.Vertex3D, n)
	for i := range vs {
		vs[i].Position = math.NewVec3(float32(i), 0, 0)
		vs[i].Color = math.NewVec3One()
	}
	return vs
}

func TestNewRendererBuildsEverything(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)

	assert.Equal(t, 1, dev.SwapchainsBuilt)
	assert.Equal(t, 2, r.Swapchain().ImageCount())
	assert.Equal(t, 2, r.Swapchain().Frames().Len())
	assert.NotNil(t, r.Registry().GetMaterial(DefaultMaterialName))
	assert.NotNil(t, r.Registry().GetMaterial(TexturedMaterialName))
	assert.Zero(t, dev.LiveOf("shader-module"))
	assert.Equal(t, StateIdle, r.Orchestrator().State())

	shutdown(t, r, dev)
}

func TestNewRendererRejectsMissingShaders(t *testing.T) {
	dev := drivertest.NewDevice()
	cfg := testConfig()
	cfg.FragmentShader = nil

	_, err := New(dev, &fakeWindow{800, 600}, cfg)
	require.Error(t, err)
	assert.Zero(t, dev.Live())
}

func TestNewRendererCleansUpOnFailure(t *testing.T) {
	dev := drivertest.NewDevice()
	dev.Fail("NewGraphicsPipeline", assert.AnError)

	_, err := New(dev, &fakeWindow{800, 600}, testConfig())
	require.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, dev.Live(), "objects left behind by a failed New")
}

func TestUploadCameraAndScene(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)

	frame, err := r.BeginFrame()
	require.NoError(t, err)

	view := math.NewMat4Translation(math.NewVec3(0, 0, -5))
	proj := math.NewMat4Perspective(1.2, 4.0/3.0, 0.1, 100)
	cam := NewCameraData(view, proj)
	require.NoError(t, r.UploadCamera(frame, cam))

	scene := GPUSceneData{AmbientColor: math.NewVec4(0.1, 0.2, 0.3, 1)}
	require.NoError(t, r.UploadScene(frame, scene))
	require.NoError(t, r.EndFrame(frame))

	camBytes := frame.Slot().CameraBuffer.Buffer.(*drivertest.Buffer).Bytes()
	assert.Equal(t, cam.Bytes(), camBytes)

	sceneBytes := r.Swapchain().Frames().SceneBuffer().Buffer.(*drivertest.Buffer).Bytes()
	off := frame.SceneOffset()
	assert.Equal(t, scene.Bytes(), sceneBytes[off:off+SceneDataSize])

	// Host visible writes never go through a staging buffer.
	assert.Zero(t, dev.StagingCreated)
	assert.Len(t, dev.Submits, 1)

	shutdown(t, r, dev)
}

func TestReloadDefaultMaterialKeepsIdentity(t *testing.T) {
	dev := twoImageDevice()
	r := newTestRenderer(t, dev)

	before := r.Registry().GetMaterial(DefaultMaterialName)
	oldPipeline := before.Pipeline
	id := before.ID

	require.NoError(t, r.ReloadDefaultMaterial(spirv, spirv))

	after := r.Registry().GetMaterial(DefaultMaterialName)
	assert.Same(t, before, after)
	assert.Equal(t, id, after.ID)
	assert.NotEqual(t, oldPipeline, after.Pipeline)
	assert.Equal(t, 2, dev.LiveOf("pipeline"), "default and textured pipelines only")

	_, err := r.BeginFrame()
	require.NoError(t, err)
	assert.ErrorIs(t, r.ReloadDefaultMaterial(spirv, spirv), ErrFrameInProgress)
	require.NoError(t, r.EndFrame(r.Orchestrator().Current()))

	shutdown(t, r, dev)
}
