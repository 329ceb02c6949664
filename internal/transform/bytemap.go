package transform

import "math"

// ByteRangeConfig configures the modulo-coherent block displacement.
type ByteRangeConfig struct {
	Modulus   int // >= 2, tile side length
	Stride    int // >= 1
	Offset    int // scalar seed / displacement magnitude
	Intensity float64
}

// ByteRange implements the activity-gated modulo-mapping variant: the
// frame is tiled into modulus*modulus blocks; each tile's displacement
// field comes from a sinusoidal function of normalized tile-local
// coordinates and the frame index, scaled by a contrast/motion "energy"
// term, and wraps around the tile with true modulo arithmetic. A
// saturation boost proportional to energy is applied after displacement.
func ByteRange(input []byte, ws *Workspace, cfg ByteRangeConfig, frameIndex int) []byte {
	width, height := ws.Width, ws.Height
	copy(ws.Scratch, input)

	intensity := normalizeIntensity(cfg.Intensity)
	modulus := cfg.Modulus
	if modulus < 2 {
		modulus = 2
	}
	stride := cfg.Stride
	if stride < 1 {
		stride = 1
	}
	offsetF := float64(cfg.Offset)
	hasPrev := ws.HasPrev()

	for by := 0; by < height; by += modulus {
		bh := modulus
		if by+bh > height {
			bh = height - by
		}
		for bx := 0; bx < width; bx += modulus {
			bw := modulus
			if bx+bw > width {
				bw = width - bx
			}
			processByteRangeTile(input, ws.Prev, ws.Output, width, bx, by, bw, bh, offsetF, stride, intensity, frameIndex, hasPrev)
		}
	}

	for i := 3; i < len(ws.Output); i += 4 {
		ws.Output[i] = ws.Scratch[i]
	}
	ws.SavePrev(input)
	return ws.Output
}

func processByteRangeTile(input, prev, output []byte, width, bx, by, bw, bh int, offsetF float64, stride int, intensity float64, frameIndex int, hasPrev bool) {
	minLuma, maxLuma := math.MaxFloat64, -math.MaxFloat64
	motionSum := 0.0
	area := bw * bh

	for ry := 0; ry < bh; ry++ {
		row := (by + ry) * width
		for rx := 0; rx < bw; rx++ {
			idx := row + bx + rx
			o := idx * 4
			l := luma709(input[o], input[o+1], input[o+2])
			if l < minLuma {
				minLuma = l
			}
			if l > maxLuma {
				maxLuma = l
			}
			if hasPrev {
				pl := luma709(prev[o], prev[o+1], prev[o+2])
				motionSum += math.Abs(l - pl)
			}
		}
	}

	contrastNorm := clampF((maxLuma-minLuma)/255, 0, 1)
	motionNorm := 0.0
	if hasPrev && area > 0 {
		motionNorm = clampF(motionSum/(float64(area)*255), 0, 1)
	}
	energy := clampF((contrastNorm+motionNorm)/2, 0, 1)
	scale := 0.35 + energy*0.65

	// The flow field is sampled once at the block center and applied
	// uniformly to every pixel in the block: a single (dx, dy) per block
	// is what makes the modular wraparound below a permutation of the
	// block's pixels. Sampling per-pixel would vary the shift within a
	// block and break that guarantee.
	nx := 0.5
	ny := 0.5
	phase := float64(frameIndex) * 0.01

	fx := math.Sin(2 * math.Pi * (nx + phase))
	fy := math.Cos(2 * math.Pi * (ny + phase))

	dx := quantize(fx*offsetF*scale, stride)
	dy := quantize(fy*offsetF*scale, stride)

	for ry := 0; ry < bh; ry++ {
		for rx := 0; rx < bw; rx++ {
			srcX := ((rx+dx)%bw + bw) % bw
			srcY := ((ry+dy)%bh + bh) % bh

			dstIdx := (by+ry)*width + bx + rx
			srcIdx := (by+srcY)*width + bx + srcX

			dstOff, srcOff := dstIdx*4, srcIdx*4
			blendPixel(output, dstOff, input, dstOff, input, srcOff, intensity)
			boostSaturation(output, dstOff, energy)
		}
	}
}

// quantize rounds v to the nearest multiple of stride.
func quantize(v float64, stride int) int {
	if stride <= 0 {
		stride = 1
	}
	return int(math.Round(v/float64(stride))) * stride
}

// boostSaturation pushes a pixel's channels away from its luma in
// proportion to energy, scaled by a fixed boost factor.
func boostSaturation(buf []byte, off int, energy float64) {
	const boostFactor = 0.5
	if energy <= 0 {
		return
	}
	r, g, b := buf[off], buf[off+1], buf[off+2]
	l := luma709(r, g, b)
	factor := 1 + energy*boostFactor
	buf[off] = clampByte(int(l + (float64(r)-l)*factor + 0.5))
	buf[off+1] = clampByte(int(l + (float64(g)-l)*factor + 0.5))
	buf[off+2] = clampByte(int(l + (float64(b)-l)*factor + 0.5))
}
