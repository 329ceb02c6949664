package transform

// BlockShiftConfig configures the per-block macroblock shift.
type BlockShiftConfig struct {
	BlockSize  int // >= 2
	MaxOffset  int
	OffsetStep int // >= 1
	Intensity  float64
	Seed       uint64
}

// lcgMultiplier and lcgIncrement are the 64-bit LCG constants used for all
// deterministic per-job randomness: x(n+1) = multiplier*x(n) + increment,
// relying on uint64 wraparound for the modulus.
const (
	lcgMultiplier uint64 = 1664525
	lcgIncrement  uint64 = 1013904223
	blockYMixer   uint64 = 69069
)

func lcgNext(state uint64) uint64 {
	return state*lcgMultiplier + lcgIncrement
}

// blockShiftSeed derives a per-block PRNG seed from the job seed, frame
// index and block coordinates.
func blockShiftSeed(seed uint64, frameIndex, blockX, blockY int) uint64 {
	return seed ^ (uint64(frameIndex) * lcgMultiplier) ^ (uint64(blockX) * lcgIncrement) ^ (uint64(blockY) * blockYMixer)
}

// BlockShift implements macroblock shift: every block_size*block_size tile
// is displaced by an offset drawn from a per-block LCG, quantized to
// multiples of offset_step and clamped to the frame bounds at the source.
func BlockShift(input []byte, ws *Workspace, cfg BlockShiftConfig, frameIndex int) []byte {
	width, height := ws.Width, ws.Height
	copy(ws.Output, input)

	intensity := normalizeIntensity(cfg.Intensity)
	blockSize := cfg.BlockSize
	if blockSize < 2 {
		blockSize = 2
	}
	offsetStep := cfg.OffsetStep
	if offsetStep < 1 {
		offsetStep = 1
	}
	maxOffset := cfg.MaxOffset
	if maxOffset < 0 {
		maxOffset = -maxOffset
	}

	if intensity <= 0 {
		return ws.Output
	}

	blockX, blockY := 0, 0
	for by := 0; by < height; by += blockSize {
		blockX = 0
		y1 := clampI(by+blockSize, 0, height)
		for bx := 0; bx < width; bx += blockSize {
			x1 := clampI(bx+blockSize, 0, width)

			dx, dy := drawBlockOffset(cfg.Seed, frameIndex, blockX, blockY, maxOffset, offsetStep)

			for y := by; y < y1; y++ {
				srcY := clampI(y+dy, 0, height-1)
				for x := bx; x < x1; x++ {
					srcX := clampI(x+dx, 0, width-1)
					dstOff := (y*width + x) * 4
					srcOff := (srcY*width + srcX) * 4
					blendPixel(ws.Output, dstOff, input, dstOff, input, srcOff, intensity)
				}
			}
			blockX++
		}
		blockY++
	}

	return ws.Output
}

// drawBlockOffset returns the (dx, dy) displacement for one block: two
// successive LCG draws, mapped into [-maxOffset, maxOffset] and truncated
// toward zero to a multiple of offsetStep.
func drawBlockOffset(seed uint64, frameIndex, blockX, blockY, maxOffset, offsetStep int) (int, int) {
	if maxOffset <= 0 {
		return 0, 0
	}
	state := blockShiftSeed(seed, frameIndex, blockX, blockY)

	state = lcgNext(state)
	span := uint64(2*maxOffset + 1)
	dx := int(state%span) - maxOffset

	state = lcgNext(state)
	dy := int(state%span) - maxOffset

	dx = quantizeOffset(dx, offsetStep)
	dy = quantizeOffset(dy, offsetStep)
	return dx, dy
}

func quantizeOffset(v, step int) int {
	if step <= 1 {
		return v
	}
	return (v / step) * step
}
