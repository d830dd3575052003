package math

/**
 * @brief Position, rotation and scale of an object in the world. The local
 * matrix is cached and recomputed only after one of the fields changes
 * through a setter. A transform may have a parent whose world matrix is
 * applied after its own.
 */
type Transform struct {
	position Vec3
	rotation Quaternion
	scale    Vec3
	dirty    bool
	local    Mat4

	Parent *Transform
}

func NewTransform() *Transform {
	return NewTransformFrom(NewVec3Zero(), NewQuatIdentity(), NewVec3One())
}

func NewTransformFrom(position Vec3, rotation Quaternion, scale Vec3) *Transform {
	return &Transform{position: position, rotation: rotation, scale: scale, dirty: true}
}

func (t *Transform) Position() Vec3       { return t.position }
func (t *Transform) Rotation() Quaternion { return t.rotation }
func (t *Transform) Scale() Vec3          { return t.scale }

func (t *Transform) SetPosition(position Vec3) {
	t.position = position
	t.dirty = true
}

func (t *Transform) Translate(translation Vec3) {
	t.position = t.position.Add(translation)
	t.dirty = true
}

func (t *Transform) SetRotation(rotation Quaternion) {
	t.rotation = rotation
	t.dirty = true
}

func (t *Transform) Rotate(rotation Quaternion) {
	t.rotation = t.rotation.Mul(rotation)
	t.dirty = true
}

func (t *Transform) SetScale(scale Vec3) {
	t.scale = scale
	t.dirty = true
}

// Local returns translation * rotation * scale.
func (t *Transform) Local() Mat4 {
	if t == nil {
		return NewMat4Identity()
	}
	if t.dirty {
		t.local = NewMat4Translation(t.position).Mul(t.rotation.ToMat4()).Mul(NewMat4Scale(t.scale))
		t.dirty = false
	}
	return t.local
}

func (t *Transform) World() Mat4 {
	if t == nil {
		return NewMat4Identity()
	}
	if t.Parent != nil {
		return t.Parent.World().Mul(t.Local())
	}
	return t.Local()
}
