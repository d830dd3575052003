package renderer

import (
	"encoding/binary"
	stdmath "math"

	"github.com/spaghettifunk/okapi/engine/math"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// Sizes of the shader-visible blocks, in bytes. They must match
// assets/shaders/shader.vert and shader.frag.
const (
	CameraDataSize    = 3 * mat4Size
	SceneDataSize     = 5 * vec4Size
	ObjectDataSize    = mat4Size
	PushConstantsSize = vec4Size + mat4Size
	VertexStride      = 11 * 4

	// MaxObjects is the default capacity of the per-frame object buffer.
	MaxObjects = 10000

	vec4Size = 16
	mat4Size = 64
)

// GPUCameraData is the camera uniform block at set 0, binding 0.
type GPUCameraData struct {
	View     math.Mat4
	Proj     math.Mat4
	ViewProj math.Mat4
}

// GPUSceneData is one entry of the dynamic scene uniform buffer at set 0,
// binding 1.
type GPUSceneData struct {
	FogColor          math.Vec4
	FogDistances      math.Vec4
	AmbientColor      math.Vec4
	SunlightDirection math.Vec4
	SunlightColor     math.Vec4
}

// GPUObjectData is one element of the object storage buffer at set 1,
// binding 0, indexed by gl_BaseInstance.
type GPUObjectData struct {
	Model math.Mat4
}

// MeshPushConstants is pushed to the vertex stage for every draw.
type MeshPushConstants struct {
	Data         math.Vec4
	RenderMatrix math.Mat4
}

func NewCameraData(view, proj math.Mat4) GPUCameraData {
	return GPUCameraData{View: view, Proj: proj, ViewProj: proj.Mul(view)}
}

func (c GPUCameraData) Bytes() []byte {
	b := make([]byte, CameraDataSize)
	putMat4(b[0:], c.View)
	putMat4(b[mat4Size:], c.Proj)
	putMat4(b[2*mat4Size:], c.ViewProj)
	return b
}

func (s GPUSceneData) Bytes() []byte {
	b := make([]byte, SceneDataSize)
	putVec4(b[0:], s.FogColor)
	putVec4(b[vec4Size:], s.FogDistances)
	putVec4(b[2*vec4Size:], s.AmbientColor)
	putVec4(b[3*vec4Size:], s.SunlightDirection)
	putVec4(b[4*vec4Size:], s.SunlightColor)
	return b
}

func (o GPUObjectData) Bytes() []byte {
	b := make([]byte, ObjectDataSize)
	putMat4(b, o.Model)
	return b
}

func (p MeshPushConstants) Bytes() []byte {
	b := make([]byte, PushConstantsSize)
	putVec4(b, p.Data)
	putMat4(b[vec4Size:], p.RenderMatrix)
	return b
}

// VertexAttributes describes math.Vertex3D at binding 0.
func VertexAttributes() []driver.VertexAttribute {
	return []driver.VertexAttribute{
		{Location: 0, Format: driver.FormatR32G32B32Sfloat, Offset: 0},
		{Location: 1, Format: driver.FormatR32G32B32Sfloat, Offset: 12},
		{Location: 2, Format: driver.FormatR32G32B32Sfloat, Offset: 24},
		{Location: 3, Format: driver.FormatR32G32Sfloat, Offset: 36},
	}
}

// EncodeVertices packs vertices tightly with VertexStride bytes each.
func EncodeVertices(vertices []math.Vertex3D) []byte {
	b := make([]byte, len(vertices)*VertexStride)
	for i, v := range vertices {
		o := b[i*VertexStride:]
		putFloats(o, v.Position.X, v.Position.Y, v.Position.Z,
			v.Normal.X, v.Normal.Y, v.Normal.Z,
			v.Color.X, v.Color.Y, v.Color.Z,
			v.UV.X, v.UV.Y)
	}
	return b
}

func putFloats(b []byte, values ...float32) {
	for i, f := range values {
		binary.LittleEndian.PutUint32(b[i*4:], stdmath.Float32bits(f))
	}
}

func putVec4(b []byte, v math.Vec4) {
	putFloats(b, v.X, v.Y, v.Z, v.W)
}

func putMat4(b []byte, m math.Mat4) {
	putFloats(b, m.Data[:]...)
}
