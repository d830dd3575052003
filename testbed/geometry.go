package testbed

import "github.com/spaghettifunk/okapi/engine/math"

// cubeVertices returns a unit cube scaled by half as a triangle list with
// flat normals.
func cubeVertices(half float32) []math.Vertex3D {
	corners := [8]math.Vec3{
		math.NewVec3(-half, -half, half), math.NewVec3(half, -half, half),
		math.NewVec3(half, half, half), math.NewVec3(-half, half, half),
		math.NewVec3(-half, -half, -half), math.NewVec3(half, -half, -half),
		math.NewVec3(half, half, -half), math.NewVec3(-half, half, -half),
	}
	// Counter-clockwise quads seen from outside.
	faces := [6][4]int{
		{0, 1, 2, 3}, // front
		{5, 4, 7, 6}, // back
		{4, 0, 3, 7}, // left
		{1, 5, 6, 2}, // right
		{3, 2, 6, 7}, // top
		{4, 5, 1, 0}, // bottom
	}
	uvs := [4]math.Vec2{math.NewVec2(0, 1), math.NewVec2(1, 1), math.NewVec2(1, 0), math.NewVec2(0, 0)}

	out := make([]math.Vertex3D, 0, 36)
	for _, f := range faces {
		for _, i := range [6]int{0, 1, 2, 0, 2, 3} {
			out = append(out, math.Vertex3D{Position: corners[f[i]], UV: uvs[i]})
		}
	}
	math.GenerateFaceNormals(out)
	for i := range out {
		n := out[i].Normal
		out[i].Color = math.NewVec3(0.5+0.5*n.X, 0.5+0.5*n.Y, 0.5+0.5*n.Z)
	}
	return out
}

// quadVertices is a square in the XZ plane facing up.
func quadVertices(size float32) []math.Vertex3D {
	h := size / 2
	p := [4]math.Vec3{
		math.NewVec3(-h, 0, h), math.NewVec3(h, 0, h),
		math.NewVec3(h, 0, -h), math.NewVec3(-h, 0, -h),
	}
	uv := [4]math.Vec2{math.NewVec2(0, 4), math.NewVec2(4, 4), math.NewVec2(4, 0), math.NewVec2(0, 0)}
	out := make([]math.Vertex3D, 0, 6)
	for _, i := range [6]int{0, 1, 2, 0, 2, 3} {
		out = append(out, math.Vertex3D{Position: p[i], Normal: math.NewVec3Up(), Color: math.NewVec3One(), UV: uv[i]})
	}
	return out
}

// checkerPixels is an RGBA8 checkerboard of cells by cells squares.
func checkerPixels(size, cells int) []byte {
	pix := make([]byte, size*size*4)
	cell := size / cells
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := byte(60)
			if (x/cell+y/cell)%2 == 0 {
				v = 220
			}
			i := (y*size + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 255
		}
	}
	return pix
}
