package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSize_WithinBounds(t *testing.T) {
	w, h := ResolveSize(640, 480)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestResolveSize_ScalesDownLongestSide(t *testing.T) {
	w, h := ResolveSize(2560, 1440)
	maxDim := w
	if h > maxDim {
		maxDim = h
	}
	assert.Equal(t, MaxDimension, maxDim)
}

func TestDownscaleNearest_SameSizeIsCopy(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	out := DownscaleNearest(src, 2, 1, 2, 1)
	assert.Equal(t, src, out)

	out[0] = 99
	assert.NotEqual(t, src[0], out[0], "result must not alias the source")
}

func TestDownscaleNearest_PicksExpectedSourceIndex(t *testing.T) {
	// 4x1 source -> 2x1 dest: src_x = x*4/2 = x*2.
	src := []byte{
		1, 1, 1, 1,
		2, 2, 2, 2,
		3, 3, 3, 3,
		4, 4, 4, 4,
	}
	out := DownscaleNearest(src, 4, 1, 2, 1)
	assert.Equal(t, byte(1), out[0])
	assert.Equal(t, byte(3), out[4])
}
