package httpapi

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/sixem/databendd/internal/codec"
	"github.com/sixem/databendd/internal/codecproc"
	"github.com/sixem/databendd/internal/events"
)

// allowedPrograms is the set of program names ffmpeg_execute and
// ffmpeg_spawn may launch, after trimming and lowercasing.
var allowedPrograms = map[string]bool{
	"ffmpeg":  true,
	"ffprobe": true,
}

func validateProgram(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if !allowedPrograms[normalized] {
		return "", huma.Error400BadRequest(fmt.Sprintf("program %q is not one of ffmpeg, ffprobe", name))
	}
	return normalized, nil
}

// FFmpegExecuteInput is the input for ffmpeg_execute.
type FFmpegExecuteInput struct {
	Body struct {
		Program string   `json:"program" doc:"ffmpeg | ffprobe"`
		Args    []string `json:"args"`
	}
}

// FFmpegExecuteOutput is the output for ffmpeg_execute.
type FFmpegExecuteOutput struct {
	Body struct {
		ExitCode    int      `json:"exitCode"`
		Stdout      string   `json:"stdout"`
		StderrLines []string `json:"stderrLines"`
	}
}

// FFmpegExecute runs a codec binary to completion and returns its exit
// code and captured output. Intended for short-lived invocations such as
// version queries; use ffmpeg_spawn for long-running streamed processes.
func (h *Handler) FFmpegExecute(ctx context.Context, input *FFmpegExecuteInput) (*FFmpegExecuteOutput, error) {
	program, err := validateProgram(input.Body.Program)
	if err != nil {
		return nil, err
	}

	resolved, rerr := h.Resolver.Resolve(roleForProgram(program))
	if rerr != nil {
		return nil, huma.Error500InternalServerError("resolving binary", rerr)
	}

	proc := codecproc.New(resolved.Path, input.Body.Args)
	if err := proc.Start(ctx); err != nil {
		return nil, huma.Error500InternalServerError("spawning process", err)
	}

	var stdout strings.Builder
	scanner := bufio.NewScanner(proc.Stdout())
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		stdout.WriteString(scanner.Text())
		stdout.WriteByte('\n')
	}

	term := proc.Wait()
	if term.Err != nil {
		return nil, huma.Error500InternalServerError("waiting for process", term.Err)
	}

	out := &FFmpegExecuteOutput{}
	out.Body.ExitCode = term.ExitCode
	out.Body.Stdout = stdout.String()
	out.Body.StderrLines = proc.StderrLines()
	return out, nil
}

// FFmpegSpawnInput is the input for ffmpeg_spawn.
type FFmpegSpawnInput struct {
	Body struct {
		Program string   `json:"program" doc:"ffmpeg | ffprobe"`
		Args    []string `json:"args"`
	}
}

// FFmpegSpawnOutput is the output for ffmpeg_spawn.
type FFmpegSpawnOutput struct {
	Body struct {
		Handle string `json:"handle"`
	}
}

// FFmpegSpawn starts a long-running codec process and returns a handle.
// Its stderr lines are forwarded to the handle's event-stream topic as
// log events; its exit is forwarded as a final log event.
func (h *Handler) FFmpegSpawn(ctx context.Context, input *FFmpegSpawnInput) (*FFmpegSpawnOutput, error) {
	program, err := validateProgram(input.Body.Program)
	if err != nil {
		return nil, err
	}

	resolved, rerr := h.Resolver.Resolve(roleForProgram(program))
	if rerr != nil {
		return nil, huma.Error500InternalServerError("resolving binary", rerr)
	}

	handle := uuid.NewString()
	proc := codecproc.New(resolved.Path, input.Body.Args)
	if err := proc.Start(context.Background()); err != nil {
		return nil, huma.Error500InternalServerError("spawning process", err)
	}

	h.procMu.Lock()
	h.processes[handle] = proc
	h.procMu.Unlock()

	go func() {
		for line := range proc.Lines() {
			h.Bus.Publish(events.NewLog(handle, "stderr: "+line))
		}
	}()
	go func() {
		term := proc.Wait()
		h.procMu.Lock()
		delete(h.processes, handle)
		h.procMu.Unlock()
		if term.Err != nil {
			h.Bus.Publish(events.NewError(handle, term.Err.Error()))
			return
		}
		h.Bus.Publish(events.NewLog(handle, fmt.Sprintf("closed: exit code %d", term.ExitCode)))
	}()

	out := &FFmpegSpawnOutput{}
	out.Body.Handle = handle
	return out, nil
}

// FFmpegKillInput is the input for ffmpeg_kill.
type FFmpegKillInput struct {
	Handle string `path:"handle"`
}

// FFmpegKillOutput is the output for ffmpeg_kill.
type FFmpegKillOutput struct{}

// FFmpegKill forcibly terminates a process started by ffmpeg_spawn.
func (h *Handler) FFmpegKill(ctx context.Context, input *FFmpegKillInput) (*FFmpegKillOutput, error) {
	h.procMu.Lock()
	proc, ok := h.processes[input.Handle]
	h.procMu.Unlock()
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("handle %s not found", input.Handle))
	}
	if err := proc.Kill(); err != nil {
		return nil, huma.Error500InternalServerError("killing process", err)
	}
	return &FFmpegKillOutput{}, nil
}

func roleForProgram(program string) codec.Role {
	if program == "ffprobe" {
		return codec.RoleProbe
	}
	return codec.RoleDecoder
}

func (h *Handler) registerCodecProcess(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "ffmpegExecute",
		Method:      "POST",
		Path:        "/v1/codec/execute",
		Summary:     "Run a codec process to completion",
		Description: "Program must be ffmpeg or ffprobe after trimming and lowercasing.",
		Tags:        []string{"Codec"},
	}, h.FFmpegExecute)

	huma.Register(api, huma.Operation{
		OperationID: "ffmpegSpawn",
		Method:      "POST",
		Path:        "/v1/codec/spawn",
		Summary:     "Spawn a long-running codec process",
		Description: "Program must be ffmpeg or ffprobe after trimming and lowercasing. Stderr and close events are delivered over the returned handle's event stream.",
		Tags:        []string{"Codec"},
	}, h.FFmpegSpawn)

	huma.Register(api, huma.Operation{
		OperationID: "ffmpegKill",
		Method:      "POST",
		Path:        "/v1/codec/spawn/{handle}/kill",
		Summary:     "Kill a spawned codec process",
		Tags:        []string{"Codec"},
	}, h.FFmpegKill)
}
