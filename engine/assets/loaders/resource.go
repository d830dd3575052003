package loaders

import "errors"

var ErrMalformed = errors.New("malformed asset")

type ResourceType uint8

const (
	ResourceTypeNone ResourceType = iota
	ResourceTypeBinary
	ResourceTypeShader
	ResourceTypeImage
	ResourceTypeModel
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeModel:
		return "model"
	default:
		return "none"
	}
}

// Resource is what a loader hands back. Data holds []byte for binaries and
// shaders, *ImageData for images and []math.Vertex3D for models.
type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	DataSize uint64
	Data     interface{}
}
