package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief A quaternion, used to represent rotational orientation. */
type Quaternion Vec4

/**
 * @brief A 4x4 matrix. Translation lives in Data[12..14], which is the
 * column-major layout GLSL expects for a mat4.
 */
type Mat4 struct {
	Data [16]float32
}

/**
 * @brief A single vertex as laid out in the vertex buffer: position,
 * normal and colour at locations 0..2, texture coordinate at location 3.
 */
type Vertex3D struct {
	Position Vec3
	Normal   Vec3
	Color    Vec3
	UV       Vec2
}
