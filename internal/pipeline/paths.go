package pipeline

import (
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// TrimRange is a normalized (start, end) clip in seconds, end > start.
type TrimRange struct {
	Start float64
	End   float64
}

// NormalizeTrim validates an optional trim range. A nil input (no trim
// requested) returns (nil, nil).
func NormalizeTrim(start, end *float64) (*TrimRange, error) {
	if start == nil && end == nil {
		return nil, nil
	}
	if start == nil || end == nil {
		return nil, newError(KindValidation, "trim range requires both start and end")
	}
	if !isFinite(*start) || !isFinite(*end) {
		return nil, newError(KindValidation, "trim range must be finite")
	}
	if *start < 0 || *end < 0 {
		return nil, newError(KindValidation, "trim range must be non-negative")
	}
	if *end <= *start {
		return nil, newError(KindValidation, "trim range end must be greater than start")
	}
	return &TrimRange{Start: *start, End: *end}, nil
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// NormalizeDimensions validates width/height and rounds each down to the
// nearest even number, reporting whether an adjustment was made.
func NormalizeDimensions(width, height int) (adjWidth, adjHeight int, adjusted bool, err error) {
	if width < 2 || height < 2 {
		return 0, 0, false, newError(KindValidation, "dimensions must be at least 2x2, got %dx%d", width, height)
	}
	adjWidth, adjHeight = width, height
	if adjWidth%2 != 0 {
		adjWidth--
	}
	if adjHeight%2 != 0 {
		adjHeight--
	}
	return adjWidth, adjHeight, adjWidth != width || adjHeight != height, nil
}

// ClampFPS clamps fps to a positive value, falling back to 30 when fps is
// zero or negative.
func ClampFPS(fps float64) float64 {
	if fps <= 0 {
		return 30
	}
	return fps
}

// FrameBytes returns the byte length of a single RGBA frame.
func FrameBytes(width, height int) int {
	return width * height * 4
}

// TotalFrames computes the number of frames in an effective duration at
// the given fps. Returns 0 if duration is unknown (nil).
func TotalFrames(duration *float64, fps float64) (int, bool) {
	if duration == nil {
		return 0, false
	}
	return int(math.Ceil(*duration * fps)), true
}

// EffectiveDuration picks the trimmed length when a trim range is present,
// otherwise the declared duration, otherwise unknown.
func EffectiveDuration(trim *TrimRange, declared *float64) *float64 {
	if trim != nil {
		d := trim.End - trim.Start
		return &d
	}
	return declared
}

// PathsMatch reports whether two paths refer to the same file after
// trimming whitespace, stripping surrounding quotes, normalizing path
// separators, and dropping a trailing separator. On Windows the
// comparison case-folds; on POSIX it does not.
func PathsMatch(a, b string) bool {
	return normalizePath(a) == normalizePath(b)
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, `"'`)
	p = filepath.ToSlash(p)
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasSuffix(p, "/") && len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
	}
	return p
}

// TempVideoPath builds the unique intermediate video path for a job's
// effect pass, adjacent to the final output path and tagged with the job
// id and effect name to avoid collisions across concurrent jobs.
func TempVideoPath(outputPath, effect, jobID string) string {
	dir := filepath.Dir(outputPath)
	ext := filepath.Ext(outputPath)
	if ext == "" {
		ext = ".mp4"
	}
	stem := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	name := fmt.Sprintf("%s.%s.%s.video%s", stem, effect, jobID, ext)
	return filepath.Join(dir, name)
}

// PreviewFramePath builds a one-shot preview PNG path in dir, incorporating
// the job id and a nanosecond nonce so concurrent preview renders for the
// same job never collide.
func PreviewFramePath(dir, jobID string, nonce int64) string {
	name := fmt.Sprintf("preview-%s-%d.png", jobID, nonce)
	return filepath.Join(dir, name)
}

// Nonce returns a nanosecond-resolution value suitable for PreviewFramePath.
func Nonce() int64 {
	return time.Now().UnixNano()
}
