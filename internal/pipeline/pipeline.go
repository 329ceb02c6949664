// Package pipeline implements the Pipeline: the main orchestration that
// decodes a source video to raw RGBA frames, runs a FrameTransform over
// each frame, re-encodes the transformed stream, and muxes it with the
// source audio into the final output.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sixem/databendd/internal/codec"
	"github.com/sixem/databendd/internal/codecproc"
	"github.com/sixem/databendd/internal/events"
	"github.com/sixem/databendd/internal/jobs"
	"github.com/sixem/databendd/internal/preview"
	"github.com/sixem/databendd/internal/transform"
)

// compactMultiple sets the read_offset at which the decoder byte buffer is
// compacted, expressed as a multiple of frame_bytes.
const compactMultiple = 4

// Request describes a single effect invocation.
type Request struct {
	JobID      string
	InputPath  string
	OutputPath string

	Width  int
	Height int
	FPS    float64

	Trim     *TrimRange
	Duration *float64 // declared source duration, if known

	Effect   Effect
	Encoding EncodingProfile

	PreviewEnabled bool
	PreviewDir     string
}

// Pipeline owns the resolver, job registry and event bus shared across
// every job it runs.
type Pipeline struct {
	Resolver       *codec.Resolver
	Registry       *jobs.Registry
	Bus            *events.Bus
	PreviewEncoder *preview.Encoder
	Logger         *slog.Logger
}

// New constructs a Pipeline.
func New(resolver *codec.Resolver, registry *jobs.Registry, bus *events.Bus, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Resolver:       resolver,
		Registry:       registry,
		Bus:            bus,
		PreviewEncoder: preview.NewEncoder(resolver),
		Logger:         logger,
	}
}

// Run executes the full pipeline for req. If req.JobID names a job the
// caller has already registered (the usual RPC-layer path: mint or accept
// a host-supplied id, hand it back to the caller, then invoke Run), that
// job is used; otherwise Run mints and registers one itself.
func (p *Pipeline) Run(ctx context.Context, req Request) error {
	if PathsMatch(req.InputPath, req.OutputPath) {
		return newError(KindValidation, "input and output paths must differ")
	}
	if req.InputPath == "" || req.OutputPath == "" {
		return newError(KindValidation, "input and output paths are required")
	}

	job, ok := p.Registry.Get(req.JobID)
	if !ok {
		job = p.Registry.Register(req.Effect.Name)
		req.JobID = job.ID
	}
	p.Bus.Publish(events.NewLog(job.ID, "started"))
	if err := p.Registry.Start(job.ID); err != nil {
		return err
	}

	width, height, adjusted, err := NormalizeDimensions(req.Width, req.Height)
	if err != nil {
		_ = p.Registry.Finish(job.ID, err)
		return err
	}
	if adjusted {
		p.Bus.Publish(events.NewLog(job.ID, fmt.Sprintf("adjusted dimensions to %dx%d (must be even)", width, height)))
	}
	fps := ClampFPS(req.FPS)

	duration := EffectiveDuration(req.Trim, req.Duration)
	total, haveTotal := TotalFrames(duration, fps)
	var totalPtr *int
	if haveTotal {
		totalPtr = &total
	}

	tempVideo := TempVideoPath(req.OutputPath, req.Effect.Name, job.ID)
	var lastPreviewPath string

	runErr := p.runEffectPass(ctx, job, req, width, height, fps, tempVideo, totalPtr, &lastPreviewPath)
	if runErr != nil {
		if lastPreviewPath != "" {
			retryDeleteFile(lastPreviewPath)
		}
		if errors.Is(runErr, ErrCanceled) {
			cleanupFiles(tempVideo, "")
			_ = p.Registry.Finish(job.ID, nil)
			p.Bus.Publish(events.NewLog(job.ID, "canceled"))
			p.Registry.Remove(job.ID)
			return runErr
		}
		cleanupFiles(tempVideo, "")
		_ = p.Registry.Finish(job.ID, runErr)
		p.emitFailure(job.ID, runErr)
		return runErr
	}

	if err := p.finalizeMux(ctx, req, tempVideo); err != nil {
		cleanupFiles(tempVideo, req.OutputPath)
		_ = p.Registry.Finish(job.ID, err)
		p.emitFailure(job.ID, err)
		return err
	}

	cleanupFiles(tempVideo, "")
	p.Bus.Publish(events.NewLog(job.ID, "completed"))
	_ = p.Registry.Finish(job.ID, nil)
	return nil
}

func (p *Pipeline) emitFailure(jobID string, err error) {
	p.Bus.Publish(events.NewError(jobID, err.Error()))
}

// runEffectPass spawns the decoder and encoder, splices frames through
// the effect, and waits for both to exit successfully.
func (p *Pipeline) runEffectPass(ctx context.Context, job *jobs.Job, req Request, width, height int, fps float64, tempVideo string, total *int, lastPreviewPath *string) error {
	decoderResolved, err := p.Resolver.Resolve(codec.RoleDecoder)
	if err != nil {
		return newError(KindSpawn, "resolving decoder: %v", err)
	}

	decoderArgs := BuildDecodeArgs(req.InputPath, req.Trim, width, height)
	decoderProc := codecproc.New(decoderResolved.Path, decoderArgs)
	if err := decoderProc.Start(ctx); err != nil {
		return newError(KindSpawn, "spawning decoder: %v", err)
	}

	encoderArgs := BuildEncodeArgs(req.Encoding, width, height, fps, tempVideo)
	encoderProc := codecproc.New(decoderResolved.Path, encoderArgs)
	if err := encoderProc.Start(ctx); err != nil {
		_ = decoderProc.Kill()
		return newError(KindSpawn, "spawning encoder: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for line := range decoderProc.Lines() {
			p.Bus.Publish(events.NewLog(job.ID, "decode: "+line))
		}
		return nil
	})

	var frameCount int
	g.Go(func() error {
		n, err := p.spliceFrames(gctx, job, req, width, height, fps, total, decoderProc, encoderProc, lastPreviewPath)
		frameCount = n
		return err
	})

	spliceErr := g.Wait()

	decoderTerm := decoderProc.Wait()
	_ = encoderProc.CloseStdin()
	encoderTerm := encoderProc.Wait()

	if spliceErr != nil {
		_ = decoderProc.Kill()
		_ = encoderProc.Kill()
		return spliceErr
	}

	if decoderTerm.Err != nil {
		return newError(KindStream, "decoder wait failed: %v", decoderTerm.Err)
	}
	if decoderTerm.ExitCode != 0 {
		return newError(KindExitCode, "decoder exited with code %d: %s", decoderTerm.ExitCode, lastStderr(decoderProc))
	}
	if encoderTerm.Err != nil {
		return newError(KindStream, "encoder wait failed: %v", encoderTerm.Err)
	}
	if encoderTerm.ExitCode != 0 {
		return newError(KindExitCode, "encoder exited with code %d: %s", encoderTerm.ExitCode, lastStderr(encoderProc))
	}

	p.Bus.Publish(events.NewLog(job.ID, fmt.Sprintf("wrote %d frames", frameCount)))
	return nil
}

// spliceFrames is the frame splicing and transform loop (spec.md §4.3.3).
func (p *Pipeline) spliceFrames(ctx context.Context, job *jobs.Job, req Request, width, height int, fps float64, total *int, decoderProc, encoderProc *codecproc.Process, lastPreviewPath *string) (int, error) {
	frameBytes := FrameBytes(width, height)
	ws := transform.NewWorkspace(width, height)

	reader := bufio.NewReaderSize(decoderProc.Stdout(), 256*1024)
	stdin := encoderProc.Stdin()

	buf := make([]byte, 0, frameBytes*compactMultiple)
	readOffset := 0
	chunk := make([]byte, 64*1024)

	frameIndex := 0
	tracker := newProgressTracker(time.Now(), fps, total)
	previewCadence := PreviewCadence(fps)
	lastPreviewFrame := -previewCadence
	var previewInFlight bool

	for {
		if job.Cancelled() {
			return frameIndex, ErrCanceled
		}

		n, readErr := reader.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)

			for len(buf)-readOffset >= frameBytes {
				frame := buf[readOffset : readOffset+frameBytes]
				out := req.Effect.Apply(frame, ws, frameIndex)

				if _, err := stdin.Write(out); err != nil {
					return frameIndex, newError(KindStream, "writing frame %d to encoder: %v", frameIndex, err)
				}

				readOffset += frameBytes
				frameIndex++

				now := time.Now()
				if tracker.shouldEmit(now, false) {
					p.Bus.Publish(events.Event{JobID: job.ID, Kind: events.KindProgress, Progress: progressPayload(tracker.compute(now, frameIndex))})
				}

				if req.PreviewEnabled && !previewInFlight && frameIndex-lastPreviewFrame >= previewCadence {
					lastPreviewFrame = frameIndex
					previewInFlight = true
					p.launchPreview(ctx, job, req, out, width, height, frameIndex, &previewInFlight, lastPreviewPath)
				}

				if readOffset >= frameBytes*compactMultiple {
					copy(buf, buf[readOffset:])
					buf = buf[:len(buf)-readOffset]
					readOffset = 0
				}
			}

			if readOffset == len(buf) {
				buf = buf[:0]
				readOffset = 0
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				now := time.Now()
				p.Bus.Publish(events.Event{JobID: job.ID, Kind: events.KindProgress, Progress: progressPayload(tracker.compute(now, frameIndex))})
				return frameIndex, nil
			}
			return frameIndex, newError(KindStream, "reading decoder stdout: %v", readErr)
		}
	}
}

func progressPayload(p events.ProgressPayload) *events.ProgressPayload { return &p }

// launchPreview runs a background preview render, clearing inFlight when
// done regardless of outcome. The caller must not read or reuse frame
// after the background goroutine starts, so a copy is taken first.
func (p *Pipeline) launchPreview(ctx context.Context, job *jobs.Job, req Request, frame []byte, width, height, frameIndex int, inFlight *bool, lastPreviewPath *string) {
	frameCopy := make([]byte, len(frame))
	copy(frameCopy, frame)

	dstW, dstH := preview.ResolveSize(width, height)
	scaled := preview.DownscaleNearest(frameCopy, width, height, dstW, dstH)
	path := PreviewFramePath(req.PreviewDir, job.ID, Nonce())
	*lastPreviewPath = path

	go func() {
		defer func() { *inFlight = false }()
		if err := p.PreviewEncoder.EncodeFrame(ctx, scaled, dstW, dstH, path); err != nil {
			p.Bus.Publish(events.NewLog(job.ID, fmt.Sprintf("preview render failed: %v", err)))
			return
		}
		p.Bus.Publish(events.NewPreview(job.ID, frameIndex, path))
	}()
}

// finalizeMux runs the third codec invocation, muxing the temp effect
// video with the source audio (if enabled) into the final output.
func (p *Pipeline) finalizeMux(ctx context.Context, req Request, tempVideo string) error {
	resolved, err := p.Resolver.Resolve(codec.RoleDecoder)
	if err != nil {
		return newError(KindSpawn, "resolving muxer: %v", err)
	}

	args := BuildMuxArgs(req.Encoding, tempVideo, req.InputPath, req.OutputPath, req.Trim)
	proc := codecproc.New(resolved.Path, args)
	if err := proc.Start(ctx); err != nil {
		return newError(KindSpawn, "spawning muxer: %v", err)
	}
	_ = proc.CloseStdin()

	for range proc.Lines() {
		// drained; mux stderr is not forwarded as job log, only used for
		// the exit-code error tail below.
	}

	term := proc.Wait()
	if term.Err != nil {
		return newError(KindStream, "mux wait failed: %v", term.Err)
	}
	if term.ExitCode != 0 {
		return newError(KindExitCode, "mux exited with code %d: %s", term.ExitCode, lastStderr(proc))
	}
	return nil
}

func lastStderr(p *codecproc.Process) string {
	lines := p.StderrLines()
	if len(lines) == 0 {
		return ""
	}
	if len(lines) > 10 {
		lines = lines[len(lines)-10:]
	}
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}

// cleanupFiles best-effort deletes the temp video and, if outputPath is
// non-empty, the partial final output, retrying each up to six times with
// a 120ms backoff to tolerate transient file locks.
func cleanupFiles(tempVideo, outputPath string) {
	if tempVideo != "" {
		retryDeleteFile(tempVideo)
	}
	if outputPath != "" {
		retryDeleteFile(outputPath)
	}
}

func retryDeleteFile(path string) {
	for attempt := 0; attempt < 6; attempt++ {
		err := os.Remove(path)
		if err == nil || os.IsNotExist(err) {
			return
		}
		time.Sleep(120 * time.Millisecond)
	}
}

// Cancel requests cancellation of a running job.
func (p *Pipeline) Cancel(jobID string) error {
	if err := p.Registry.Cancel(jobID); err != nil {
		return newError(KindNotFound, "job %s not found", jobID)
	}
	return nil
}
