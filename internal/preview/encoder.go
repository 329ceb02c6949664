package preview

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sixem/databendd/internal/codec"
	"github.com/sixem/databendd/internal/codecproc"
)

// Encoder runs a one-shot external encode of a single RGBA frame to PNG.
type Encoder struct {
	Resolver *codec.Resolver
}

// NewEncoder creates a PreviewEncoder backed by the given CodecResolver.
func NewEncoder(resolver *codec.Resolver) *Encoder {
	return &Encoder{Resolver: resolver}
}

// EncodeFrame writes frame to outputPath as a PNG via an external
// rawvideo->image2 invocation. On spawn failure or non-zero exit, the
// target path is removed (best effort) and the concatenated stderr is
// returned as the error.
func (e *Encoder) EncodeFrame(ctx context.Context, frame []byte, width, height int, outputPath string) error {
	resolved, err := e.Resolver.Resolve(codec.RoleDecoder)
	if err != nil {
		return fmt.Errorf("resolving preview encoder binary: %w", err)
	}

	args := buildEncodeArgs(width, height, outputPath)
	proc := codecproc.New(resolved.Path, args)
	if err := proc.Start(ctx); err != nil {
		retryDelete(outputPath)
		return fmt.Errorf("failed to spawn preview encoder: %w", err)
	}

	if _, err := proc.Stdin().Write(frame); err != nil {
		_ = proc.CloseStdin()
		_ = proc.Kill()
		retryDelete(outputPath)
		return fmt.Errorf("failed to write preview frame: %w", err)
	}
	if err := proc.CloseStdin(); err != nil {
		retryDelete(outputPath)
		return fmt.Errorf("failed to close preview encoder stdin: %w", err)
	}

	term := proc.Wait()
	if term.Err != nil {
		retryDelete(outputPath)
		return fmt.Errorf("preview encoder wait failed: %w", term.Err)
	}
	if term.ExitCode != 0 {
		retryDelete(outputPath)
		lines := proc.StderrLines()
		if len(lines) == 0 {
			return fmt.Errorf("preview encoder failed with exit code %d", term.ExitCode)
		}
		return fmt.Errorf("%s", joinLines(lines))
	}
	return nil
}

func buildEncodeArgs(width, height int, outputPath string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", strconv.Itoa(width) + "x" + strconv.Itoa(height),
		"-i", "-",
		"-frames:v", "1",
		"-f", "image2",
		"-vcodec", "png",
		outputPath,
	}
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}

// retryDelete attempts to remove path up to six times with a 120ms
// backoff, tolerating transient file locks held by the just-killed
// encoder process.
func retryDelete(path string) {
	for attempt := 0; attempt < 6; attempt++ {
		err := os.Remove(path)
		if err == nil || os.IsNotExist(err) {
			return
		}
		time.Sleep(120 * time.Millisecond)
	}
}
