package preview

// ResolveSize scales (width, height) down so its longest side is at most
// MaxDimension, preserving aspect ratio. Returns the input unchanged if it
// already fits.
func ResolveSize(width, height int) (int, int) {
	maxDim := width
	if height > maxDim {
		maxDim = height
	}
	if maxDim <= MaxDimension {
		return width, height
	}

	scale := float64(MaxDimension) / float64(maxDim)
	scaledWidth := int(float64(width)*scale + 0.5)
	scaledHeight := int(float64(height)*scale + 0.5)
	if scaledWidth < 1 {
		scaledWidth = 1
	}
	if scaledHeight < 1 {
		scaledHeight = 1
	}
	return scaledWidth, scaledHeight
}

// DownscaleNearest resizes an RGBA buffer with nearest-neighbor sampling,
// using truncating integer division for the source-index mapping
// (src = dst*srcDim/dstDim) so the pixel selection is bit-exactly
// reproducible rather than whatever rounding a generic image-scaling
// library happens to choose.
func DownscaleNearest(src []byte, srcWidth, srcHeight, dstWidth, dstHeight int) []byte {
	if srcWidth == dstWidth && srcHeight == dstHeight {
		out := make([]byte, len(src))
		copy(out, src)
		return out
	}

	dst := make([]byte, dstWidth*dstHeight*4)
	for y := 0; y < dstHeight; y++ {
		srcY := y * srcHeight / dstHeight
		for x := 0; x < dstWidth; x++ {
			srcX := x * srcWidth / dstWidth
			srcIdx := (srcY*srcWidth + srcX) * 4
			dstIdx := (y*dstWidth + x) * 4
			copy(dst[dstIdx:dstIdx+4], src[srcIdx:srcIdx+4])
		}
	}
	return dst
}
