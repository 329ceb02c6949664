package transform

// KaleidoscopeConfig is accepted for symmetry with the other variants but
// currently unused: Kaleidoscope is treated as identity, per the reference
// spec's explicit allowance to do so in the absence of a prescribed
// algorithm.
type KaleidoscopeConfig struct {
	Intensity float64
}

// Kaleidoscope passes the input frame through unchanged, alpha included.
func Kaleidoscope(input []byte, ws *Workspace, cfg KaleidoscopeConfig, frameIndex int) []byte {
	copy(ws.Output, input)
	return ws.Output
}
