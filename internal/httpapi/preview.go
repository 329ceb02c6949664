package httpapi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/sixem/databendd/internal/pipeline"
	"github.com/sixem/databendd/internal/preview"
)

// PreviewStartInput is the input for preview_start.
type PreviewStartInput struct {
	ID   string `path:"id" doc:"Preview upload id; a fresh uuid when the caller has none"`
	Body struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
}

// PreviewStartOutput is the output for preview_start.
type PreviewStartOutput struct {
	Body struct {
		ID string `json:"id"`
	}
}

// PreviewStart begins a chunked RGBA upload, keyed by id. Pass "new" as
// the path id to mint a fresh uuid server-side.
func (h *Handler) PreviewStart(ctx context.Context, input *PreviewStartInput) (*PreviewStartOutput, error) {
	id := input.ID
	if id == "" || id == "new" {
		id = uuid.NewString()
	}
	if err := h.PreviewStore.Start(id, input.Body.Width, input.Body.Height); err != nil {
		return nil, previewErrToHuma(err)
	}
	out := &PreviewStartOutput{}
	out.Body.ID = id
	return out, nil
}

// PreviewAppendInput is the input for preview_append.
type PreviewAppendInput struct {
	ID   string `path:"id"`
	Body struct {
		// Chunk is base64-encoded on the wire, per encoding/json's []byte
		// handling.
		Chunk []byte `json:"chunk"`
	}
}

// PreviewAppendOutput is the output for preview_append.
type PreviewAppendOutput struct{}

// PreviewAppend extends id's in-progress upload with a chunk of raw RGBA.
func (h *Handler) PreviewAppend(ctx context.Context, input *PreviewAppendInput) (*PreviewAppendOutput, error) {
	if err := h.PreviewStore.Append(input.ID, input.Body.Chunk); err != nil {
		return nil, previewErrToHuma(err)
	}
	return &PreviewAppendOutput{}, nil
}

// PreviewFinishInput is the input for preview_finish.
type PreviewFinishInput struct {
	ID   string `path:"id"`
	Body struct {
		Dir string `json:"dir,omitempty" doc:"Directory the encoded PNG is written to; defaults to the server's configured preview directory"`
	}
}

// PreviewFinishOutput is the output for preview_finish.
type PreviewFinishOutput struct {
	Body struct {
		Path string `json:"path"`
	}
}

// PreviewFinish completes id's upload, validates its length against the
// dimensions declared at start, and encodes it to a PNG.
func (h *Handler) PreviewFinish(ctx context.Context, input *PreviewFinishInput) (*PreviewFinishOutput, error) {
	buf, err := h.PreviewStore.Finish(input.ID)
	if err != nil {
		return nil, previewErrToHuma(err)
	}
	if len(buf.Data) != buf.ExpectedLen {
		return nil, huma.Error400BadRequest(fmt.Sprintf("preview upload incomplete: got %d of %d bytes", len(buf.Data), buf.ExpectedLen))
	}

	dir := input.Body.Dir
	if dir == "" {
		dir = h.PreviewDir
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, huma.Error500InternalServerError("creating preview directory", err)
	}

	width, height := preview.ResolveSize(buf.Width, buf.Height)
	frame := buf.Data
	if width != buf.Width || height != buf.Height {
		frame = preview.DownscaleNearest(buf.Data, buf.Width, buf.Height, width, height)
	}

	path := pipeline.PreviewFramePath(dir, input.ID, pipeline.Nonce())
	if err := h.PreviewEncoder.EncodeFrame(ctx, frame, width, height, path); err != nil {
		return nil, huma.Error500InternalServerError("encoding preview frame", err)
	}

	out := &PreviewFinishOutput{}
	out.Body.Path = filepath.ToSlash(path)
	return out, nil
}

// PreviewDiscardInput is the input for preview_discard.
type PreviewDiscardInput struct {
	ID string `path:"id"`
}

// PreviewDiscardOutput is the output for preview_discard.
type PreviewDiscardOutput struct{}

// PreviewDiscard silently drops id's in-progress upload, if any.
func (h *Handler) PreviewDiscard(ctx context.Context, input *PreviewDiscardInput) (*PreviewDiscardOutput, error) {
	h.PreviewStore.Discard(input.ID)
	return &PreviewDiscardOutput{}, nil
}

// previewErrToHuma maps PreviewBufferStore's plain-string errors to HTTP
// status codes by substring, the way the handler package elsewhere
// dispatches on a service's un-typed error messages.
func previewErrToHuma(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return huma.Error404NotFound(msg)
	case strings.Contains(msg, "already exists"):
		return huma.Error409Conflict(msg)
	case strings.Contains(msg, "overflow"), strings.Contains(msg, "invalid"):
		return huma.Error400BadRequest(msg)
	default:
		return huma.Error500InternalServerError(msg)
	}
}

// registerPreview registers the chunked preview-upload operations.
func (h *Handler) registerPreview(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "previewStart",
		Method:      "POST",
		Path:        "/v1/preview/{id}/start",
		Summary:     "Start a chunked preview upload",
		Description: "Prunes uploads stale for more than 30s, then allocates a fresh buffer sized width*height*4.",
		Tags:        []string{"Preview"},
	}, h.PreviewStart)

	huma.Register(api, huma.Operation{
		OperationID: "previewAppend",
		Method:      "POST",
		Path:        "/v1/preview/{id}/append",
		Summary:     "Append a chunk to a preview upload",
		Tags:        []string{"Preview"},
	}, h.PreviewAppend)

	huma.Register(api, huma.Operation{
		OperationID: "previewFinish",
		Method:      "POST",
		Path:        "/v1/preview/{id}/finish",
		Summary:     "Finish a preview upload",
		Description: "Completes the upload, downscales if needed so the longest side is at most 1280px, and encodes it to a PNG.",
		Tags:        []string{"Preview"},
	}, h.PreviewFinish)

	huma.Register(api, huma.Operation{
		OperationID: "previewDiscard",
		Method:      "POST",
		Path:        "/v1/preview/{id}/discard",
		Summary:     "Discard a preview upload",
		Tags:        []string{"Preview"},
	}, h.PreviewDiscard)
}
