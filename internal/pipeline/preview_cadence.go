package pipeline

import "math"

// PreviewCadence returns the frame gap between preview renders:
// clamp(round(fps/2), 5, 60).
func PreviewCadence(fps float64) int {
	every := int(math.Round(fps / 2))
	if every < 5 {
		return 5
	}
	if every > 60 {
		return 60
	}
	return every
}
