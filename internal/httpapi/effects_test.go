package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixem/databendd/internal/jobs"
	"github.com/sixem/databendd/internal/pipeline"
)

func doJSON(t *testing.T, env *testEnv, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	return rec
}

func TestPixelsortProcess_StartsAndCompletesJob(t *testing.T) {
	env := newTestEnv(t)

	width, height := 2, 2
	fps := 10.0
	duration := 0.3 // ceil(0.3*10) = 3 frames
	frameBytes := pipeline.FrameBytes(width, height)
	t.Setenv("FAKE_CODEC_BYTES", strconv.Itoa(frameBytes*3))

	outputPath := filepath.Join(t.TempDir(), "out.mp4")

	body := map[string]any{
		"inputPath":  "/nonexistent/in.mp4",
		"outputPath": outputPath,
		"width":      width,
		"height":     height,
		"fps":        fps,
		"duration":   duration,
		"encoding":   map[string]any{"encoder": "libx264", "format": "mp4"},
		"config": map[string]any{
			"intensity":    50.0,
			"threshold":    10,
			"maxThreshold": 200,
			"blockSize":    4,
			"direction":    "horizontal",
		},
	}

	rec := doJSON(t, env, http.MethodPost, "/v1/effects/pixelsort/process", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ProcessResponseBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.JobID)

	require.Eventually(t, func() bool {
		job, ok := env.Registry.Get(resp.JobID)
		return ok && job.State() == jobs.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEffectCancel_UnknownJobReturns404(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodPost, "/v1/effects/pixelsort/jobs/does-not-exist/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEffectCancel_RunningJobCancelled(t *testing.T) {
	env := newTestEnv(t)

	width, height := 2, 2
	fps := 10.0
	duration := 5.0 // long enough to cancel mid-flight
	frameBytes := pipeline.FrameBytes(width, height)
	t.Setenv("FAKE_CODEC_BYTES", strconv.Itoa(frameBytes*int(fps*duration)))
	t.Setenv("FAKE_CODEC_SLOW", "1")

	outputPath := filepath.Join(t.TempDir(), "out.mp4")
	body := map[string]any{
		"inputPath":  "/nonexistent/in.mp4",
		"outputPath": outputPath,
		"width":      width,
		"height":     height,
		"fps":        fps,
		"duration":   duration,
		"encoding":   map[string]any{"encoder": "libx264", "format": "mp4"},
		"config":     map[string]any{"intensity": 1.0},
	}

	rec := doJSON(t, env, http.MethodPost, "/v1/effects/kaleidoscope/process", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ProcessResponseBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	sub := env.Bus.Subscribe(resp.JobID)
	defer env.Bus.Unsubscribe(sub.ID)

	require.Eventually(t, func() bool {
		_, ok := env.Registry.Get(resp.JobID)
		return ok
	}, 2*time.Second, 5*time.Millisecond, "job should be registered before it can be cancelled")

	cancelRec := doJSON(t, env, http.MethodPost, fmt.Sprintf("/v1/effects/kaleidoscope/jobs/%s/cancel", resp.JobID), nil)
	assert.Equal(t, http.StatusOK, cancelRec.Code, cancelRec.Body.String())

	// Cancellation is cooperative: the job is removed from the registry
	// once the frame loop notices the cancel flag and unwinds.
	require.Eventually(t, func() bool {
		_, ok := env.Registry.Get(resp.JobID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "cancelled job should be removed from the registry")
}
