package transform

import "sort"

// VaporwaveConfig configures the vaporwave palette quantization.
type VaporwaveConfig struct {
	Black      uint8
	CyanMax    uint8
	MagentaMax uint8
	PurpleMax  uint8
	TealMax    uint8
	White      uint8
	Intensity  float64
}

var (
	vaporwaveCyan    = [3]byte{0, 184, 255}
	vaporwaveMagenta = [3]byte{255, 0, 193}
	vaporwavePurple  = [3]byte{150, 0, 255}
	vaporwaveTeal    = [3]byte{0, 255, 249}
)

// Vaporwave implements the vaporwave palette: pixels at or below the black
// threshold clamp to black, at or above white clamp to white, and pixels
// whose three channels all fall in the same band map to a fixed palette
// color; anything else passes through unchanged. Blended toward the
// mapped color by intensity.
func Vaporwave(input []byte, ws *Workspace, cfg VaporwaveConfig, frameIndex int) []byte {
	copy(ws.Output, input)
	intensity := normalizeIntensity(cfg.Intensity)

	thresholds := []byte{cfg.Black, cfg.CyanMax, cfg.MagentaMax, cfg.PurpleMax, cfg.TealMax, cfg.White}
	sort.Slice(thresholds, func(i, j int) bool { return thresholds[i] < thresholds[j] })
	black, cyanMax, magentaMax, purpleMax, tealMax, white := thresholds[0], thresholds[1], thresholds[2], thresholds[3], thresholds[4], thresholds[5]

	for i := 0; i < len(input); i += 4 {
		r, g, b := input[i], input[i+1], input[i+2]

		var mapped [3]byte
		matched := false

		switch {
		case r <= black && g <= black && b <= black:
			mapped = [3]byte{0, 0, 0}
			matched = true
		case r >= white && g >= white && b >= white:
			mapped = [3]byte{255, 255, 255}
			matched = true
		case inBand(r, black, cyanMax) && inBand(g, black, cyanMax) && inBand(b, black, cyanMax):
			mapped = vaporwaveCyan
			matched = true
		case inBand(r, cyanMax, magentaMax) && inBand(g, cyanMax, magentaMax) && inBand(b, cyanMax, magentaMax):
			mapped = vaporwaveMagenta
			matched = true
		case inBand(r, magentaMax, purpleMax) && inBand(g, magentaMax, purpleMax) && inBand(b, magentaMax, purpleMax):
			mapped = vaporwavePurple
			matched = true
		case inBand(r, purpleMax, tealMax) && inBand(g, purpleMax, tealMax) && inBand(b, purpleMax, tealMax):
			mapped = vaporwaveTeal
			matched = true
		}

		if matched {
			ws.Output[i] = clampByte(int((1-intensity)*float64(r) + intensity*float64(mapped[0]) + 0.5))
			ws.Output[i+1] = clampByte(int((1-intensity)*float64(g) + intensity*float64(mapped[1]) + 0.5))
			ws.Output[i+2] = clampByte(int((1-intensity)*float64(b) + intensity*float64(mapped[2]) + 0.5))
		}
		ws.Output[i+3] = input[i+3]
	}

	return ws.Output
}

// inBand reports whether v falls in the half-open-above band (lo, hi].
func inBand(v, lo, hi byte) bool {
	return v > lo && v <= hi
}
