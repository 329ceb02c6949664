package transform

// PixelsortConfig configures the luma-banded segment sort.
type PixelsortConfig struct {
	Intensity    float64 // host-facing 0-100
	Threshold    int     // 0-255
	MaxThreshold int     // 0-255
	BlockSize    int     // >= 2
	Direction    Direction
}

// postStackSeed is the fixed seed the reference implementation's post-stack
// documents for its (currently disabled) per-pixel noise term.
const postStackSeed = 1337

// Pixelsort implements luma-banded segment sort with a fixed post-stack
// (chroma shift, desaturation, brightness) applied unconditionally, even
// when intensity is at or below the identity threshold — the sort stage
// alone becomes a no-op in that case, but the post-stack still runs.
func Pixelsort(input []byte, ws *Workspace, cfg PixelsortConfig, frameIndex int) []byte {
	width, height := ws.Width, ws.Height
	copy(ws.Output, input)

	intensity := normalizeIntensity(cfg.Intensity)
	lo, hi := clampI(cfg.Threshold, 0, 255), clampI(cfg.MaxThreshold, 0, 255)
	if lo > hi {
		lo, hi = hi, lo
	}
	blockSize := cfg.BlockSize
	if blockSize < 2 {
		blockSize = 2
	}

	if intensity > 0 {
		switch cfg.Direction {
		case DirectionVertical:
			sortColumns(input, ws.Output, width, height, lo, hi, intensity)
		case DirectionBlock:
			sortBlocks(input, ws.Output, width, height, blockSize, lo, hi, intensity)
		default:
			sortRows(input, ws.Output, width, height, lo, hi, intensity)
		}
	}

	applyPostStack(ws.Output, ws.Scratch, width, height)
	return ws.Output
}

func pixelLuma(buf []byte, idx int) int {
	o := idx * 4
	return luma601(buf[o], buf[o+1], buf[o+2])
}

func blendPixel(dst []byte, dstOff int, orig []byte, origOff int, src []byte, srcOff int, intensity float64) {
	if intensity >= 0.999 {
		dst[dstOff] = src[srcOff]
		dst[dstOff+1] = src[srcOff+1]
		dst[dstOff+2] = src[srcOff+2]
	} else {
		dst[dstOff] = clampByte(int((1-intensity)*float64(orig[origOff]) + intensity*float64(src[srcOff]) + 0.5))
		dst[dstOff+1] = clampByte(int((1-intensity)*float64(orig[origOff+1]) + intensity*float64(src[srcOff+1]) + 0.5))
		dst[dstOff+2] = clampByte(int((1-intensity)*float64(orig[origOff+2]) + intensity*float64(src[srcOff+2]) + 0.5))
	}
	dst[dstOff+3] = src[srcOff+3]
}

// applyRunSort sorts run (a list of pixel indices in their natural scan
// order) by descending luma and blends the sorted result back into output
// at run's original positions.
func applyRunSort(input, output []byte, run []int, intensity float64, hist, offsets *[256]int) {
	if len(run) < 2 {
		return
	}
	sorted := sortDescByLuma(run, func(idx int) int { return pixelLuma(input, idx) }, hist, offsets)
	for k, dst := range run {
		src := sorted[k]
		blendPixel(output, dst*4, input, dst*4, input, src*4, intensity)
	}
}

func sortRows(input, output []byte, width, height, lo, hi int, intensity float64) {
	var hist, offsets [256]int
	run := make([]int, 0, width)
	for y := 0; y < height; y++ {
		run = run[:0]
		base := y * width
		for x := 0; x < width; x++ {
			idx := base + x
			l := pixelLuma(input, idx)
			eligible := l >= lo && l <= hi
			if eligible {
				run = append(run, idx)
				continue
			}
			if len(run) >= 2 {
				applyRunSort(input, output, run, intensity, &hist, &offsets)
			}
			run = run[:0]
		}
		if len(run) >= 2 {
			applyRunSort(input, output, run, intensity, &hist, &offsets)
		}
	}
}

func sortColumns(input, output []byte, width, height, lo, hi int, intensity float64) {
	var hist, offsets [256]int
	run := make([]int, 0, height)
	for x := 0; x < width; x++ {
		run = run[:0]
		for y := 0; y < height; y++ {
			idx := y*width + x
			l := pixelLuma(input, idx)
			eligible := l >= lo && l <= hi
			if eligible {
				run = append(run, idx)
				continue
			}
			if len(run) >= 2 {
				applyRunSort(input, output, run, intensity, &hist, &offsets)
			}
			run = run[:0]
		}
		if len(run) >= 2 {
			applyRunSort(input, output, run, intensity, &hist, &offsets)
		}
	}
}

func sortBlocks(input, output []byte, width, height, blockSize, lo, hi int, intensity float64) {
	var hist, offsets [256]int
	run := make([]int, 0, blockSize*blockSize)

	for by := 0; by < height; by += blockSize {
		y1 := clampI(by+blockSize, 0, height)
		for bx := 0; bx < width; bx += blockSize {
			x1 := clampI(bx+blockSize, 0, width)

			run = run[:0]
			sum := 0
			for y := by; y < y1; y++ {
				base := y * width
				for x := bx; x < x1; x++ {
					idx := base + x
					run = append(run, idx)
					sum += pixelLuma(input, idx)
				}
			}
			if len(run) == 0 {
				continue
			}
			mean := sum / len(run)
			if mean < lo || mean > hi {
				continue
			}
			applyRunSort(input, output, run, intensity, &hist, &offsets)
		}
	}
}

// applyPostStack applies the fixed chroma shift, desaturation and
// brightness pass every pixelsort frame receives.
func applyPostStack(buf, scratch []byte, width, height int) {
	copy(scratch, buf)

	const radius = 2
	for y := 0; y < height; y++ {
		base := y * width
		for x := 0; x < width; x++ {
			idx := base + x
			o := idx * 4

			rx := clampI(x+radius, 0, width-1)
			bx := clampI(x-radius, 0, width-1)
			rIdx := (base + rx) * 4
			bIdx := (base + bx) * 4

			buf[o] = scratch[rIdx]
			buf[o+1] = scratch[o+1]
			buf[o+2] = scratch[bIdx+2]
		}
	}

	const desat = 0.275
	for i := 0; i < len(buf); i += 4 {
		r, g, b := buf[i], buf[i+1], buf[i+2]
		l := float64(luma601(r, g, b))
		buf[i] = clampByte(int((1-desat)*float64(r) + desat*l + 0.5))
		buf[i+1] = clampByte(int((1-desat)*float64(g) + desat*l + 0.5))
		buf[i+2] = clampByte(int((1-desat)*float64(b) + desat*l + 0.5))
	}

	const brightness = -2
	for i := 0; i < len(buf); i += 4 {
		buf[i] = clampByte(int(buf[i]) + brightness)
		buf[i+1] = clampByte(int(buf[i+1]) + brightness)
		buf[i+2] = clampByte(int(buf[i+2]) + brightness)
	}
}
