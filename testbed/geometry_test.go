package testbed

import (
	"testing"

	"github.com/spaghettifunk/okapi/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubeNormalsPointOutward(t *testing.T) {
	vs := cubeVertices(1)
	require.Len(t, vs, 36)
	for i, v := range vs {
		assert.InDelta(t, 1, v.Normal.Length(), 1e-5, "vertex %d", i)
		assert.Greater(t, v.Normal.Dot(v.Position), float32(0), "vertex %d faces inward", i)
	}
}

func TestQuadFacesUp(t *testing.T) {
	vs := quadVertices(2)
	require.Len(t, vs, 6)
	for _, v := range vs {
		assert.Equal(t, math.NewVec3Up(), v.Normal)
		assert.Zero(t, v.Position.Y)
	}
}

func TestCheckerPixels(t *testing.T) {
	pix := checkerPixels(8, 2)
	require.Len(t, pix, 8*8*4)
	assert.Equal(t, []byte{220, 220, 220, 255}, pix[0:4])
	// First pixel of the second cell on the first row.
	assert.Equal(t, []byte{60, 60, 60, 255}, pix[4*4:4*4+4])
}
