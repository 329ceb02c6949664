package pipeline

import "github.com/sixem/databendd/internal/transform"

// Effect wraps one of the five FrameTransform variants, bound to its
// config, into the single shape the frame loop drives.
type Effect struct {
	Name  string
	Apply func(input []byte, ws *transform.Workspace, frameIndex int) []byte
}

// NewPixelsortEffect binds the luma-banded segment sort transform.
func NewPixelsortEffect(cfg transform.PixelsortConfig) Effect {
	return Effect{
		Name: "pixelsort",
		Apply: func(input []byte, ws *transform.Workspace, frameIndex int) []byte {
			return transform.Pixelsort(input, ws, cfg, frameIndex)
		},
	}
}

// NewByteRangeEffect binds the modulo-mapping transform.
func NewByteRangeEffect(cfg transform.ByteRangeConfig) Effect {
	return Effect{
		Name: "byte_range",
		Apply: func(input []byte, ws *transform.Workspace, frameIndex int) []byte {
			return transform.ByteRange(input, ws, cfg, frameIndex)
		},
	}
}

// NewBlockShiftEffect binds the block shift transform.
func NewBlockShiftEffect(cfg transform.BlockShiftConfig) Effect {
	return Effect{
		Name: "block_shift",
		Apply: func(input []byte, ws *transform.Workspace, frameIndex int) []byte {
			return transform.BlockShift(input, ws, cfg, frameIndex)
		},
	}
}

// NewVaporwaveEffect binds the vaporwave palette transform.
func NewVaporwaveEffect(cfg transform.VaporwaveConfig) Effect {
	return Effect{
		Name: "vaporwave",
		Apply: func(input []byte, ws *transform.Workspace, frameIndex int) []byte {
			return transform.Vaporwave(input, ws, cfg, frameIndex)
		},
	}
}

// NewKaleidoscopeEffect binds the kaleidoscope transform.
func NewKaleidoscopeEffect(cfg transform.KaleidoscopeConfig) Effect {
	return Effect{
		Name: "kaleidoscope",
		Apply: func(input []byte, ws *transform.Workspace, frameIndex int) []byte {
			return transform.Kaleidoscope(input, ws, cfg, frameIndex)
		},
	}
}
