package pipeline

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTrim(t *testing.T) {
	t.Run("nil nil returns nil nil", func(t *testing.T) {
		trim, err := NormalizeTrim(nil, nil)
		require.NoError(t, err)
		assert.Nil(t, trim)
	})

	t.Run("one nil one set is validation error", func(t *testing.T) {
		start := 1.0
		_, err := NormalizeTrim(&start, nil)
		require.Error(t, err)
		assert.Equal(t, KindValidation, err.(*Error).Kind)
	})

	t.Run("end before start is validation error", func(t *testing.T) {
		start, end := 5.0, 2.0
		_, err := NormalizeTrim(&start, &end)
		require.Error(t, err)
	})

	t.Run("negative is validation error", func(t *testing.T) {
		start, end := -1.0, 2.0
		_, err := NormalizeTrim(&start, &end)
		require.Error(t, err)
	})

	t.Run("valid range", func(t *testing.T) {
		start, end := 1.5, 4.5
		trim, err := NormalizeTrim(&start, &end)
		require.NoError(t, err)
		assert.Equal(t, &TrimRange{Start: 1.5, End: 4.5}, trim)
	})
}

func TestNormalizeDimensions(t *testing.T) {
	t.Run("rejects below minimum", func(t *testing.T) {
		_, _, _, err := NormalizeDimensions(1, 10)
		require.Error(t, err)
		assert.Equal(t, KindValidation, err.(*Error).Kind)
	})

	t.Run("rounds odd dimensions down to even", func(t *testing.T) {
		w, h, adjusted, err := NormalizeDimensions(101, 51)
		require.NoError(t, err)
		assert.Equal(t, 100, w)
		assert.Equal(t, 50, h)
		assert.True(t, adjusted)
	})

	t.Run("already even is unadjusted", func(t *testing.T) {
		w, h, adjusted, err := NormalizeDimensions(640, 480)
		require.NoError(t, err)
		assert.Equal(t, 640, w)
		assert.Equal(t, 480, h)
		assert.False(t, adjusted)
	})
}

func TestClampFPS(t *testing.T) {
	assert.Equal(t, 30.0, ClampFPS(0))
	assert.Equal(t, 30.0, ClampFPS(-5))
	assert.Equal(t, 24.0, ClampFPS(24))
}

func TestFrameBytes(t *testing.T) {
	assert.Equal(t, 16, FrameBytes(2, 2))
	assert.Equal(t, 640*480*4, FrameBytes(640, 480))
}

func TestTotalFrames(t *testing.T) {
	t.Run("unknown duration", func(t *testing.T) {
		total, ok := TotalFrames(nil, 30)
		assert.False(t, ok)
		assert.Zero(t, total)
	})

	t.Run("ceils fractional frame counts", func(t *testing.T) {
		duration := 2.1
		total, ok := TotalFrames(&duration, 10)
		assert.True(t, ok)
		assert.Equal(t, 21, total)
	})
}

func TestEffectiveDuration(t *testing.T) {
	t.Run("prefers trim length over declared", func(t *testing.T) {
		declared := 100.0
		trim := &TrimRange{Start: 2, End: 7}
		got := EffectiveDuration(trim, &declared)
		require.NotNil(t, got)
		assert.Equal(t, 5.0, *got)
	})

	t.Run("falls back to declared when no trim", func(t *testing.T) {
		declared := 42.0
		got := EffectiveDuration(nil, &declared)
		require.NotNil(t, got)
		assert.Equal(t, 42.0, *got)
	})

	t.Run("unknown when neither present", func(t *testing.T) {
		assert.Nil(t, EffectiveDuration(nil, nil))
	})
}

func TestPathsMatch(t *testing.T) {
	assert.True(t, PathsMatch("./x", "./x/"))
	assert.True(t, PathsMatch(`"/a/b.mp4"`, "/a/b.mp4"))
	assert.True(t, PathsMatch(`a\b\c.mp4`, "a/b/c.mp4"))
	assert.False(t, PathsMatch("/a/b.mp4", "/a/c.mp4"))

	if runtime.GOOS == "windows" {
		assert.True(t, PathsMatch("C:/a/b.mp4", "c:/a/b.mp4"))
	} else {
		assert.False(t, PathsMatch("C:/a/b.mp4", "c:/a/b.mp4"))
	}
}

func TestTempVideoPath(t *testing.T) {
	got := TempVideoPath("/out/final.mp4", "pixelsort", "01J0ID")
	assert.Equal(t, "/out/final.pixelsort.01J0ID.video.mp4", got)
}

func TestTempVideoPathDefaultsExtension(t *testing.T) {
	got := TempVideoPath("/out/final", "pixelsort", "01J0ID")
	assert.Equal(t, "/out/final.pixelsort.01J0ID.video.mp4", got)
}

func TestPreviewFramePathAndNonceUniqueness(t *testing.T) {
	a := PreviewFramePath("/tmp/previews", "job1", 111)
	b := PreviewFramePath("/tmp/previews", "job1", 222)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "/tmp/previews/preview-job1-111.png", a)
}
