package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixem/databendd/internal/codec"
	"github.com/sixem/databendd/internal/events"
	"github.com/sixem/databendd/internal/jobs"
	"github.com/sixem/databendd/internal/transform"
)

func newTestPipeline(t *testing.T, fakeBinary string) (*Pipeline, *events.Bus) {
	t.Helper()
	resolver := &codec.Resolver{
		Overrides: map[codec.Role]string{codec.RoleDecoder: fakeBinary},
	}
	registry := jobs.NewRegistry()
	bus := events.NewBus()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(resolver, registry, bus, logger), bus
}

// TestPipeline_RunProducesExactFrameCount exercises spec's literal testable
// property: given a synthetic decoder that yields exactly
// ceil(duration*fps) frames in one chunk, the pipeline writes that many
// frames to the encoder and completes successfully.
func TestPipeline_RunProducesExactFrameCount(t *testing.T) {
	fake := writeFakeFFmpeg(t)
	p, bus := newTestPipeline(t, fake)

	sub := bus.Subscribe("")
	defer bus.Unsubscribe(sub.ID)

	width, height := 2, 2
	fps := 10.0
	frameBytes := FrameBytes(width, height)
	duration := 0.3 // ceil(0.3*10) = 3 frames
	totalExpected := 3

	t.Setenv("FAKE_FFMPEG_BYTES", strconv.Itoa(frameBytes*totalExpected))

	outDir := t.TempDir()
	outputPath := filepath.Join(outDir, "out.mp4")

	job := p.Registry.Register("pixelsort")

	req := Request{
		JobID:      job.ID,
		InputPath:  "/nonexistent/in.mp4",
		OutputPath: outputPath,
		Width:      width,
		Height:     height,
		FPS:        fps,
		Duration:   &duration,
		Effect:     NewPixelsortEffect(transform.PixelsortConfig{}),
		Encoding:   EncodingProfile{Encoder: "libx264", Format: "mp4"},
	}

	err := p.Run(context.Background(), req)
	require.NoError(t, err)

	_, statErr := os.Stat(outputPath)
	assert.NoError(t, statErr, "final output should exist")

	assert.Equal(t, jobs.StateCompleted, job.State())

	var sawStarted, sawFrameCount, sawCompleted bool
	drain := true
	for drain {
		select {
		case ev := <-sub.Events:
			if ev.Kind == events.KindLog && ev.Log != nil {
				if ev.Log.Message == "started" {
					sawStarted = true
				}
				if ev.Log.Message == "wrote "+strconv.Itoa(totalExpected)+" frames" {
					sawFrameCount = true
				}
				if ev.Log.Message == "completed" {
					sawCompleted = true
				}
			}
		default:
			drain = false
		}
	}
	assert.True(t, sawStarted)
	assert.True(t, sawFrameCount, "pipeline should report writing exactly %d frames", totalExpected)
	assert.True(t, sawCompleted)
}

func TestPipeline_RunRejectsSamePath(t *testing.T) {
	fake := writeFakeFFmpeg(t)
	p, _ := newTestPipeline(t, fake)

	req := Request{
		InputPath:  "/same/path.mp4",
		OutputPath: "/same/path.mp4",
		Width:      2,
		Height:     2,
		FPS:        10,
		Effect:     NewPixelsortEffect(transform.PixelsortConfig{}),
	}

	err := p.Run(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, KindValidation, err.(*Error).Kind)
}

func TestPipeline_RunHonorsPreRegisteredJobID(t *testing.T) {
	fake := writeFakeFFmpeg(t)
	p, _ := newTestPipeline(t, fake)

	job := p.Registry.Register("pixelsort")

	width, height := 2, 2
	frameBytes := FrameBytes(width, height)
	t.Setenv("FAKE_FFMPEG_BYTES", strconv.Itoa(frameBytes*2))

	outDir := t.TempDir()
	req := Request{
		JobID:      job.ID,
		InputPath:  "/in.mp4",
		OutputPath: filepath.Join(outDir, "out.mp4"),
		Width:      width,
		Height:     height,
		FPS:        10,
		Effect:     NewPixelsortEffect(transform.PixelsortConfig{}),
		Encoding:   EncodingProfile{Encoder: "libx264", Format: "mp4"},
	}

	err := p.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateCompleted, job.State())
}

func TestPipeline_CancelStopsRun(t *testing.T) {
	fake := writeFakeFFmpeg(t)
	p, bus := newTestPipeline(t, fake)
	sub := bus.Subscribe("")
	defer bus.Unsubscribe(sub.ID)

	width, height := 8, 8
	frameBytes := FrameBytes(width, height)
	// A large frame count gives the test goroutine time to cancel mid-loop.
	const frameCount = 5000
	t.Setenv("FAKE_FFMPEG_BYTES", strconv.Itoa(frameBytes*frameCount))
	t.Setenv("FAKE_FFMPEG_SLOW", "1")

	outDir := t.TempDir()
	req := Request{
		InputPath:  "/in.mp4",
		OutputPath: filepath.Join(outDir, "out.mp4"),
		Width:      width,
		Height:     height,
		FPS:        30,
		Effect:     NewPixelsortEffect(transform.PixelsortConfig{}),
		Encoding:   EncodingProfile{Encoder: "libx264", Format: "mp4"},
	}

	job := p.Registry.Register(req.Effect.Name)
	req.JobID = job.ID

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = p.Cancel(job.ID)
	}()

	err := p.Run(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, jobs.StateCancelled, job.State())

	_, stillRegistered := p.Registry.Get(job.ID)
	assert.False(t, stillRegistered, "canceled job should be removed from the registry")
}

func TestPipeline_CancelUnknownJobIsNotFound(t *testing.T) {
	fake := writeFakeFFmpeg(t)
	p, _ := newTestPipeline(t, fake)

	err := p.Cancel("does-not-exist")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, err.(*Error).Kind)
}
