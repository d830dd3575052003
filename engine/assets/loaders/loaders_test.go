package loaders

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/okapi/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func spirvModule(words ...uint32) []byte {
	b := make([]byte, 4*(len(words)+1))
	binary.LittleEndian.PutUint32(b, spirvMagic)
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[4*(i+1):], w)
	}
	return b
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadShader(t *testing.T) {
	path := writeFile(t, "shader.vert.spv", spirvModule(0x00010000, 0))
	code, err := LoadShader(path)
	require.NoError(t, err)
	assert.Len(t, code, 12)

	res, err := (&ShaderLoader{}).Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "shader", res.Name)
	assert.Equal(t, ResourceTypeShader, res.Type)
	assert.Equal(t, uint64(12), res.DataSize)
}

func TestLoadShaderRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unaligned", append(spirvModule(), 0)},
		{"bad magic", []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadShader(writeFile(t, "bad.spv", tt.data))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	_, err := LoadShader(filepath.Join(t.TempDir(), "missing.spv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBinaryLoaderName(t *testing.T) {
	path := writeFile(t, "blob.bin", []byte("abc"))

	res, err := (&BinaryLoader{}).Load(path, map[string]string{"name": "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", res.Name)
	assert.Equal(t, []byte("abc"), res.Data)

	res, err = (&BinaryLoader{}).Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "blob", res.Name)
	require.NoError(t, (&BinaryLoader{}).Unload(res))
	assert.Nil(t, res.Data)
}

const quadOBJ = `
# a unit quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vn 0 0 1
vt 0 0
vt 1 1
o quad
usemtl none
f 1/1/1 2/1/1 3/2/1 4/2/1
`

func TestParseOBJFanTriangulation(t *testing.T) {
	vertices, err := ParseOBJ(strings.NewReader(quadOBJ))
	require.NoError(t, err)
	require.Len(t, vertices, 6)

	assert.Equal(t, math.NewVec3(0, 0, 0), vertices[0].Position)
	assert.Equal(t, math.NewVec3(1, 0, 0), vertices[1].Position)
	assert.Equal(t, math.NewVec3(1, 1, 0), vertices[2].Position)
	assert.Equal(t, vertices[0].Position, vertices[3].Position)
	assert.Equal(t, math.NewVec3(0, 1, 0), vertices[5].Position)

	for _, v := range vertices {
		assert.Equal(t, math.NewVec3(0, 0, 1), v.Normal)
		assert.Equal(t, v.Normal, v.Color)
	}
	assert.Equal(t, math.NewVec2(0, 1), vertices[0].UV)
	assert.Equal(t, math.NewVec2(1, 0), vertices[2].UV)
}

func TestParseOBJPositionsOnly(t *testing.T) {
	vertices, err := ParseOBJ(strings.NewReader("o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf -3 -2 -1\n"))
	require.NoError(t, err)
	require.Len(t, vertices, 3)
	assert.Equal(t, math.NewVec3(0, 1, 0), vertices[2].Position)
	for _, v := range vertices {
		assert.Equal(t, math.NewVec3(0, 0, 1), v.Normal, "face normal generated")
	}
}

func TestParseOBJErrors(t *testing.T) {
	tests := []struct {
		name, data string
	}{
		{"no faces", "v 0 0 0\n"},
		{"index out of range", "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n"},
		{"two corner face", "o tri\nv 0 0 0\nv 1 0 0\nf 1 2\n"},
		{"bad float", "v 0 x 0\n"},
		{"index zero", "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{G: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})
	img.Set(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

func TestDecodeImagePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))

	img, err := DecodeImage(bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	require.Len(t, img.Pixels, 16)
	assert.Equal(t, []byte{255, 0, 0, 255}, img.Pixels[0:4])
	assert.Equal(t, []byte{0, 0, 255, 255}, img.Pixels[8:12])

	flipped, err := DecodeImage(bytes.NewReader(buf.Bytes()), true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 255, 255}, flipped.Pixels[0:4])
	assert.Equal(t, []byte{255, 0, 0, 255}, flipped.Pixels[8:12])
}

func TestLoadImageBMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, testImage()))
	path := writeFile(t, "checker.bmp", buf.Bytes())

	res, err := (&ImageLoader{}).Load(path, &ImageParams{})
	require.NoError(t, err)
	img, ok := res.Data.(*ImageData)
	require.True(t, ok)
	assert.Equal(t, uint32(2), img.Width)
	assert.Equal(t, []byte{0, 255, 0, 255}, img.Pixels[4:8])
}

func TestDecodeImageGarbage(t *testing.T) {
	_, err := DecodeImage(strings.NewReader("not an image"), false)
	assert.ErrorIs(t, err, ErrMalformed)
}
