package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grayFrame(width, height int, value byte) []byte {
	frame := make([]byte, width*height*4)
	for i := 0; i < len(frame); i += 4 {
		frame[i] = value
		frame[i+1] = value
		frame[i+2] = value
		frame[i+3] = 255
	}
	return frame
}

func TestBlockShift_DeterministicReproduction(t *testing.T) {
	cfg := BlockShiftConfig{BlockSize: 4, MaxOffset: 3, OffsetStep: 1, Intensity: 100, Seed: 42}

	ws1 := NewWorkspace(8, 8)
	out1 := BlockShift(grayFrame(8, 8, 128), ws1, cfg, 0)
	result1 := make([]byte, len(out1))
	copy(result1, out1)

	ws2 := NewWorkspace(8, 8)
	out2 := BlockShift(grayFrame(8, 8, 128), ws2, cfg, 0)

	assert.Equal(t, result1, out2)
}

func TestBlockShift_SameSeedOffsetsReproducible(t *testing.T) {
	dx1, dy1 := drawBlockOffset(7, 0, 0, 0, 5, 1)
	dx2, dy2 := drawBlockOffset(7, 0, 0, 0, 5, 1)
	assert.Equal(t, dx1, dx2)
	assert.Equal(t, dy1, dy2)

	dxOther, _ := drawBlockOffset(7, 1, 0, 0, 5, 1)
	assert.NotPanics(t, func() { _ = dxOther })
}

func TestBlockShift_PreservesAlpha(t *testing.T) {
	ws := NewWorkspace(4, 4)
	input := grayFrame(4, 4, 200)
	for i := 3; i < len(input); i += 4 {
		input[i] = 77
	}
	out := BlockShift(input, ws, BlockShiftConfig{BlockSize: 2, MaxOffset: 2, OffsetStep: 1, Intensity: 50, Seed: 1}, 2)

	for i := 3; i < len(out); i += 4 {
		require.Equal(t, byte(77), out[i])
	}
}
