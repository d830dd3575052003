package systems

import (
	stdmath "math"

	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/math"
	"github.com/spaghettifunk/okapi/engine/renderer"
)

// pitchLimit is 89 degrees, which keeps the view away from gimbal lock.
const pitchLimit = float32(1.55334306)

/**
 * @brief A perspective fly camera. Yaw and pitch are in radians; a zero
 * yaw looks down -Z. The view matrix is rebuilt lazily after a change.
 */
type Camera struct {
	position math.Vec3
	yaw      float32
	pitch    float32
	dirty    bool
	view     math.Mat4

	FOV  float32
	Near float32
	Far  float32
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.position = math.NewVec3Zero()
	c.yaw = 0
	c.pitch = 0
	c.FOV = math.DegToRad(70)
	c.Near = 0.1
	c.Far = 200
	c.dirty = true
}

func (c *Camera) Position() math.Vec3 { return c.position }
func (c *Camera) Yaw() float32        { return c.yaw }
func (c *Camera) Pitch() float32      { return c.pitch }

func (c *Camera) SetPosition(position math.Vec3) {
	c.position = position
	c.dirty = true
}

func (c *Camera) Turn(yaw, pitch float32) {
	c.yaw += yaw
	c.pitch = math.Clamp(c.pitch+pitch, -pitchLimit, pitchLimit)
	c.dirty = true
}

func (c *Camera) Forward() math.Vec3 {
	cp := float32(stdmath.Cos(float64(c.pitch)))
	return math.NewVec3(
		float32(stdmath.Sin(float64(c.yaw)))*cp,
		float32(stdmath.Sin(float64(c.pitch))),
		-float32(stdmath.Cos(float64(c.yaw)))*cp,
	)
}

func (c *Camera) Right() math.Vec3 {
	return c.Forward().Cross(math.NewVec3Up()).Normalized()
}

func (c *Camera) Move(direction math.Vec3, amount float32) {
	c.position = c.position.Add(direction.MulScalar(amount))
	c.dirty = true
}

func (c *Camera) View() math.Mat4 {
	if c.dirty {
		c.view = math.NewMat4LookAt(c.position, c.position.Add(c.Forward()), math.NewVec3Up())
		c.dirty = false
	}
	return c.view
}

// Projection flips Y for Vulkan's clip space.
func (c *Camera) Projection(aspect float32) math.Mat4 {
	proj := math.NewMat4Perspective(c.FOV, aspect, c.Near, c.Far)
	proj.Data[5] *= -1
	return proj
}

func (c *Camera) Data(aspect float32) renderer.GPUCameraData {
	return renderer.NewCameraData(c.View(), c.Projection(aspect))
}

// CameraSystem flies the world camera from the keyboard: WASD moves, Q and
// Z move up and down, the arrow keys turn.
type CameraSystem struct {
	input *core.InputState

	Speed     float32
	TurnSpeed float32
}

func NewCameraSystem(input *core.InputState) *CameraSystem {
	return &CameraSystem{input: input, Speed: 5, TurnSpeed: 1.5}
}

func (cs *CameraSystem) Update(world *World, dt float64) error {
	if cs.input == nil || world.Camera == nil {
		return nil
	}
	cam := world.Camera
	step := cs.Speed * float32(dt)
	turn := cs.TurnSpeed * float32(dt)

	axis := func(positive, negative core.KeyCode) float32 {
		var v float32
		if cs.input.IsKeyDown(positive) {
			v++
		}
		if cs.input.IsKeyDown(negative) {
			v--
		}
		return v
	}

	if f := axis(core.KeyW, core.KeyS); f != 0 {
		cam.Move(cam.Forward(), f*step)
	}
	if r := axis(core.KeyD, core.KeyA); r != 0 {
		cam.Move(cam.Right(), r*step)
	}
	if u := axis(core.KeyQ, core.KeyZ); u != 0 {
		cam.Move(math.NewVec3Up(), u*step)
	}
	yaw := axis(core.KeyRight, core.KeyLeft)
	pitch := axis(core.KeyUp, core.KeyDown)
	if yaw != 0 || pitch != 0 {
		cam.Turn(yaw*turn, pitch*turn)
	}
	return nil
}
