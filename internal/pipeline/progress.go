package pipeline

import (
	"time"

	"github.com/sixem/databendd/internal/events"
)

const progressInterval = 200 * time.Millisecond

// progressTracker throttles progress emission to at most once per
// progressInterval, plus a forced final emission.
type progressTracker struct {
	start      time.Time
	lastEmit   time.Time
	targetFPS  float64
	totalFrame *int
}

func newProgressTracker(start time.Time, targetFPS float64, total *int) *progressTracker {
	return &progressTracker{start: start, lastEmit: start, targetFPS: targetFPS, totalFrame: total}
}

// shouldEmit reports whether enough time has passed since the last
// emission, or force is set (used for the mandatory final emission).
func (t *progressTracker) shouldEmit(now time.Time, force bool) bool {
	if force {
		return true
	}
	return now.Sub(t.lastEmit) >= progressInterval
}

// compute builds a ProgressPayload for the given frame at time now,
// recording now as the last-emit time.
func (t *progressTracker) compute(now time.Time, frame int) events.ProgressPayload {
	t.lastEmit = now

	elapsed := now.Sub(t.start).Seconds()
	payload := events.ProgressPayload{
		Frame:          frame,
		TotalFrames:    t.totalFrame,
		ElapsedSeconds: floatPtr(elapsed),
	}

	if t.totalFrame != nil && *t.totalFrame > 0 {
		payload.Percent = clampPercent(float64(frame) / float64(*t.totalFrame) * 100)
	}

	var processingFPS float64
	if elapsed > 0 {
		processingFPS = float64(frame) / elapsed
		payload.FPS = floatPtr(processingFPS)
	}

	if processingFPS > 0 && t.targetFPS > 0 {
		payload.Speed = floatPtr(processingFPS / t.targetFPS)
	}

	if t.targetFPS > 0 {
		payload.OutTimeSeconds = floatPtr(float64(frame) / t.targetFPS)
	}

	if t.totalFrame != nil && processingFPS > 0 {
		remaining := float64(*t.totalFrame - frame)
		if remaining < 0 {
			remaining = 0
		}
		payload.ETASeconds = floatPtr(remaining / processingFPS)
	}

	return payload
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func floatPtr(v float64) *float64 { return &v }
