package httpapi

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sixem/databendd/internal/pipeline"
)

// ProcessRequestBody carries the fields common to every E_process
// operation, independent of the effect-specific config.
type ProcessRequestBody struct {
	JobID string `json:"jobId,omitempty" doc:"Host-supplied job id; a fresh one is minted when omitted"`

	InputPath  string `json:"inputPath" doc:"Source video path"`
	OutputPath string `json:"outputPath" doc:"Final output path"`

	Width  int     `json:"width" doc:"Target frame width"`
	Height int     `json:"height" doc:"Target frame height"`
	FPS    float64 `json:"fps" doc:"Target frame rate"`

	TrimStart *float64 `json:"trimStart,omitempty" doc:"Trim range start, seconds"`
	TrimEnd   *float64 `json:"trimEnd,omitempty" doc:"Trim range end, seconds"`
	Duration  *float64 `json:"duration,omitempty" doc:"Declared source duration, seconds, if known"`

	Encoding EncodingInput `json:"encoding"`

	PreviewEnabled bool   `json:"previewEnabled,omitempty"`
	PreviewDir     string `json:"previewDir,omitempty" doc:"Directory one-shot cadence previews are written to"`
}

// EncodingInput is the host-facing EncodingProfile, accepted as-is.
type EncodingInput struct {
	Encoder string `json:"encoder,omitempty" doc:"libx264 | h264_nvenc | libvpx-vp9" enum:"libx264,h264_nvenc,libvpx-vp9,"`
	Preset  string `json:"preset,omitempty"`

	CRF               *int   `json:"crf,omitempty"`
	CQ                *int   `json:"cq,omitempty"`
	MaxBitrateKbps    *int   `json:"maxBitrateKbps,omitempty"`
	TargetBitrateKbps *int   `json:"targetBitrateKbps,omitempty"`
	VP9Deadline       string `json:"vp9Deadline,omitempty"`
	VP9CPUUsed        *int   `json:"vp9CpuUsed,omitempty"`

	Format string `json:"format,omitempty" doc:"Output container extension, e.g. mp4"`

	AudioEnabled     bool   `json:"audioEnabled,omitempty"`
	AudioCodec       string `json:"audioCodec,omitempty" doc:"aac | opus | copy" enum:"aac,opus,copy,"`
	AudioBitrateKbps int    `json:"audioBitrateKbps,omitempty"`

	ExtraEncodeArgs []string `json:"extraEncodeArgs,omitempty" doc:"Trusted verbatim extra encoder arguments"`
	ExtraMuxArgs    []string `json:"extraMuxArgs,omitempty" doc:"Trusted verbatim extra mux arguments"`
}

func (e EncodingInput) toProfile() pipeline.EncodingProfile {
	return pipeline.EncodingProfile{
		Encoder:           e.Encoder,
		Preset:            e.Preset,
		CRF:               e.CRF,
		CQ:                e.CQ,
		MaxBitrateKbps:    e.MaxBitrateKbps,
		TargetBitrateKbps: e.TargetBitrateKbps,
		VP9Deadline:       e.VP9Deadline,
		VP9CPUUsed:        e.VP9CPUUsed,
		Format:            e.Format,
		AudioEnabled:      e.AudioEnabled,
		AudioCodec:        e.AudioCodec,
		AudioBitrateKbps:  e.AudioBitrateKbps,
		ExtraEncodeArgs:   e.ExtraEncodeArgs,
		ExtraMuxArgs:      e.ExtraMuxArgs,
	}
}

// ProcessResponseBody is the immediate response to an E_process call: the
// job id the caller should use for cancel and event-stream requests.
type ProcessResponseBody struct {
	JobID string `json:"jobId"`
}

// CancelInput is the input shared by every E_cancel operation.
type CancelInput struct {
	ID string `path:"id" doc:"Job id"`
}

// CancelOutput is the output shared by every E_cancel operation.
type CancelOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// runRequest starts a job for req in the background, detached from the
// triggering HTTP request's context, and returns the job id the caller
// should poll and cancel by. A job's lifetime is independent of the
// request that started it.
func (h *Handler) runRequest(req pipeline.Request) (string, error) {
	job, ok := h.Registry.Get(req.JobID)
	if !ok {
		job = h.Registry.Register(req.Effect.Name)
		req.JobID = job.ID
	}

	go func() {
		if err := h.Pipeline.Run(context.Background(), req); err != nil {
			h.Logger.Warn("effect run failed", "job", req.JobID, "effect", req.Effect.Name, "error", err)
		}
	}()

	return req.JobID, nil
}

func (h *Handler) cancel(id string) (*CancelOutput, error) {
	if err := h.Pipeline.Cancel(id); err != nil {
		return nil, errToHuma(err)
	}
	out := &CancelOutput{}
	out.Body.Message = "job " + id + " canceled"
	return out, nil
}

// errToHuma maps a *pipeline.Error to the matching Huma status, following
// the same kind-to-status mapping the error taxonomy documents; any other
// error (resolver failure, I/O) is a 500.
func errToHuma(err error) error {
	var perr *pipeline.Error
	if errors.As(err, &perr) {
		switch perr.Kind {
		case pipeline.KindValidation:
			return huma.Error400BadRequest(perr.Message)
		case pipeline.KindNotFound:
			return huma.Error404NotFound(perr.Message)
		case pipeline.KindCanceled:
			return huma.Error409Conflict(perr.Message)
		case pipeline.KindBitstream:
			return huma.Error422UnprocessableEntity(perr.Message)
		default: // Spawn, Stream, ExitCode
			return huma.Error500InternalServerError(perr.Message)
		}
	}
	return huma.Error500InternalServerError("internal error", err)
}
