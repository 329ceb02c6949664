package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVaporwave_BlackClamp(t *testing.T) {
	ws := NewWorkspace(1, 1)
	input := []byte{3, 5, 2, 200}
	cfg := VaporwaveConfig{
		Black: 8, CyanMax: 64, MagentaMax: 128, PurpleMax: 192, TealMax: 224, White: 240, Intensity: 100,
	}

	out := Vaporwave(input, ws, cfg, 0)
	assert.Equal(t, []byte{0, 0, 0, 200}, out)
}

func TestVaporwave_WhiteClamp(t *testing.T) {
	ws := NewWorkspace(1, 1)
	input := []byte{250, 245, 250, 111}
	cfg := VaporwaveConfig{
		Black: 8, CyanMax: 64, MagentaMax: 128, PurpleMax: 192, TealMax: 224, White: 240, Intensity: 100,
	}

	out := Vaporwave(input, ws, cfg, 0)
	assert.Equal(t, []byte{255, 255, 255, 111}, out)
}

func TestVaporwave_PassThroughOutsideBands(t *testing.T) {
	ws := NewWorkspace(1, 1)
	// R in cyan band, G in magenta band: not all three channels share a
	// band, so the pixel passes through.
	input := []byte{20, 100, 20, 255}
	cfg := VaporwaveConfig{
		Black: 8, CyanMax: 64, MagentaMax: 128, PurpleMax: 192, TealMax: 224, White: 240, Intensity: 100,
	}

	out := Vaporwave(input, ws, cfg, 0)
	assert.Equal(t, input, out)
}
