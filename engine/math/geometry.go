package math

// GenerateFaceNormals assigns every vertex of a triangle list the normal
// of the face it belongs to. Counter-clockwise winding is front facing.
// Trailing vertices that do not form a full triangle are left untouched.
func GenerateFaceNormals(vertices []Vertex3D) {
	for i := 0; i+2 < len(vertices); i += 3 {
		edge1 := vertices[i+1].Position.Sub(vertices[i].Position)
		edge2 := vertices[i+2].Position.Sub(vertices[i].Position)
		normal := edge1.Cross(edge2).Normalized()

		// NOTE: flat shading only, no smoothing across shared vertices.
		vertices[i].Normal = normal
		vertices[i+1].Normal = normal
		vertices[i+2].Normal = normal
	}
}
