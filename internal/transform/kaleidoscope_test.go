package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKaleidoscope_Identity(t *testing.T) {
	ws := NewWorkspace(2, 2)
	input := grayFrame(2, 2, 77)
	out := Kaleidoscope(input, ws, KaleidoscopeConfig{Intensity: 50}, 3)
	assert.Equal(t, input, out)
}
