package loaders

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type ImageParams struct {
	FlipY bool
}

// ImageData is a tightly packed RGBA8 image, rows top to bottom unless it
// was loaded flipped.
type ImageData struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

type ImageLoader struct{}

func (il *ImageLoader) Load(path string, params interface{}) (*Resource, error) {
	flip := false
	if p, ok := params.(*ImageParams); ok && p != nil {
		flip = p.FlipY
	}
	img, err := LoadImage(path, flip)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Name:     resourceName(path, nil),
		FullPath: path,
		Type:     ResourceTypeImage,
		DataSize: uint64(len(img.Pixels)),
		Data:     img,
	}, nil
}

func (il *ImageLoader) Unload(r *Resource) error {
	r.Data = nil
	return nil
}

func LoadImage(path string, flipY bool) (*ImageData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := DecodeImage(f, flipY)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", path, err)
	}
	return img, nil
}

// DecodeImage decodes png, jpeg, bmp, tiff or webp and converts the result
// to RGBA8.
func DecodeImage(r io.Reader, flipY bool) (*ImageData, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty %s image", ErrMalformed, format)
	}

	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	}

	out := &ImageData{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Pixels: rgba.Pix,
	}
	if flipY {
		flipRows(out.Pixels, int(out.Width)*4, int(out.Height))
	}
	return out, nil
}

func flipRows(pix []byte, stride, rows int) {
	tmp := make([]byte, stride)
	for top, bottom := 0, rows-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}
