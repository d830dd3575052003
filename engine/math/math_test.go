package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-5

func TestClamp(t *testing.T) {
	assert.Equal(t, uint32(5), Clamp(uint32(3), 5, 10))
	assert.Equal(t, uint32(10), Clamp(uint32(30), 5, 10))
	assert.Equal(t, 0.5, Clamp(0.5, 0.0, 1.0))
}

func TestMulIdentity(t *testing.T) {
	tr := NewMat4Translation(NewVec3(1, 2, 3))
	assert.Equal(t, tr, NewMat4Identity().Mul(tr))
	assert.Equal(t, tr, tr.Mul(NewMat4Identity()))
}

func TestMulAppliesRightOperandFirst(t *testing.T) {
	scale := NewMat4Scale(NewVec3(2, 2, 2))
	translate := NewMat4Translation(NewVec3(1, 0, 0))

	p := NewVec3(1, 0, 0).Transform(translate.Mul(scale))
	assert.True(t, p.Compare(NewVec3(3, 0, 0), tolerance), "got %+v", p)

	p = NewVec3(1, 0, 0).Transform(scale.Mul(translate))
	assert.True(t, p.Compare(NewVec3(4, 0, 0), tolerance), "got %+v", p)
}

func TestLookAt(t *testing.T) {
	view := NewMat4LookAt(NewVec3(0, 0, 5), NewVec3Zero(), NewVec3Up())

	// The target ends up straight ahead, on the negative Z axis.
	p := NewVec3Zero().Transform(view)
	assert.True(t, p.Compare(NewVec3(0, 0, -5), tolerance), "got %+v", p)

	p = NewVec3(1, 0, 0).Transform(view)
	assert.True(t, p.Compare(NewVec3(1, 0, -5), tolerance), "got %+v", p)
}

func TestPerspective(t *testing.T) {
	proj := NewMat4Perspective(DegToRad(90), 1, 0.1, 100)
	assert.InDelta(t, 1.0, proj.At(0, 0), tolerance)
	assert.InDelta(t, 1.0, proj.At(1, 1), tolerance)
	assert.Equal(t, float32(-1), proj.At(3, 2))
}

func TestQuaternionRotation(t *testing.T) {
	q := NewQuatFromAxisAngle(NewVec3Up(), DegToRad(90))
	p := NewVec3(1, 0, 0).Transform(q.ToMat4())
	assert.True(t, p.Compare(NewVec3(0, 0, -1), tolerance), "got %+v", p)

	assert.True(t, q.ToMat4().Compare(NewMat4EulerY(DegToRad(90)), tolerance))
}

func TestTransformWorld(t *testing.T) {
	parent := NewTransform()
	parent.SetPosition(NewVec3(10, 0, 0))

	child := NewTransformFrom(NewVec3(0, 1, 0), NewQuatIdentity(), NewVec3(2, 2, 2))
	child.Parent = parent

	p := NewVec3(1, 0, 0).Transform(child.World())
	assert.True(t, p.Compare(NewVec3(12, 1, 0), tolerance), "got %+v", p)

	child.Translate(NewVec3(0, 1, 0))
	p = NewVec3Zero().Transform(child.World())
	assert.True(t, p.Compare(NewVec3(10, 2, 0), tolerance), "got %+v", p)
}

func TestGenerateFaceNormals(t *testing.T) {
	verts := []Vertex3D{
		{Position: NewVec3(0, 0, 0)},
		{Position: NewVec3(1, 0, 0)},
		{Position: NewVec3(0, 1, 0)},
		{Position: NewVec3(5, 5, 5)},
	}
	GenerateFaceNormals(verts)
	for i := 0; i < 3; i++ {
		assert.True(t, verts[i].Normal.Compare(NewVec3(0, 0, 1), tolerance))
	}
	assert.Equal(t, Vec3{}, verts[3].Normal)
}
