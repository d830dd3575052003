package loaders

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/g3n/engine/loader/obj"
	"github.com/spaghettifunk/okapi/engine/math"
)

type ModelLoader struct{}

func (ml *ModelLoader) Load(path string, params interface{}) (*Resource, error) {
	vertices, err := LoadOBJ(path)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Name:     resourceName(path, params),
		FullPath: path,
		Type:     ResourceTypeModel,
		DataSize: uint64(len(vertices)),
		Data:     vertices,
	}, nil
}

func (ml *ModelLoader) Unload(r *Resource) error {
	r.Data = nil
	return nil
}

func LoadOBJ(path string) ([]math.Vertex3D, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vertices, err := ParseOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return vertices, nil
}

// ParseOBJ decodes a Wavefront OBJ stream and returns an unindexed triangle
// list. Polygons are fan triangulated. Files without normals get flat face
// normals. The vertex color is the normal. Materials are not loaded.
func ParseOBJ(r io.Reader) ([]math.Vertex3D, error) {
	// an empty material stream keeps the decoder from opening mtllib files
	decoder, err := obj.DecodeReader(r, bytes.NewReader(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var out []math.Vertex3D
	for _, object := range decoder.Objects {
		for fi, face := range object.Faces {
			if len(face.Vertices) < 3 {
				return nil, fmt.Errorf("%w: %s face %d has %d vertices", ErrMalformed, object.Name, fi, len(face.Vertices))
			}
			corners := make([]math.Vertex3D, len(face.Vertices))
			for i := range face.Vertices {
				v, err := corner(decoder, &face, i)
				if err != nil {
					return nil, fmt.Errorf("%w: %s face %d: %w", ErrMalformed, object.Name, fi, err)
				}
				corners[i] = v
			}
			for i := 2; i < len(corners); i++ {
				out = append(out, corners[0], corners[i-1], corners[i])
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no faces", ErrMalformed)
	}
	if len(decoder.Normals) == 0 {
		math.GenerateFaceNormals(out)
		for i := range out {
			out[i].Color = out[i].Normal
		}
	}
	return out, nil
}

// corner resolves the i-th reference of a decoded face. Missing texture
// coordinates and normals are left zero.
func corner(d *obj.Decoder, face *obj.Face, i int) (math.Vertex3D, error) {
	var v math.Vertex3D

	vi := face.Vertices[i]
	if vi < 0 || vi*3+2 >= len(d.Vertices) {
		return v, fmt.Errorf("vertex index %d out of range [1, %d]", vi+1, len(d.Vertices)/3)
	}
	v.Position = math.NewVec3(d.Vertices[vi*3], d.Vertices[vi*3+1], d.Vertices[vi*3+2])

	if i < len(face.Uvs) {
		if ui := face.Uvs[i]; ui >= 0 && ui*2+1 < len(d.Uvs) {
			v.UV = math.NewVec2(d.Uvs[ui*2], 1-d.Uvs[ui*2+1])
		}
	}
	if i < len(face.Normals) {
		if ni := face.Normals[i]; ni >= 0 && ni*3+2 < len(d.Normals) {
			v.Normal = math.NewVec3(d.Normals[ni*3], d.Normals[ni*3+1], d.Normals[ni*3+2])
		}
	}
	v.Color = v.Normal
	return v, nil
}
