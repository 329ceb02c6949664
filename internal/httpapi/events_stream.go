package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/go-chi/chi/v5"

	"github.com/sixem/databendd/internal/events"
)

// JobLogEvent is the SSE event type wrapper for the "log" topic, required
// by Huma for OpenAPI schema generation even though the real streaming
// endpoint is served directly off the chi router, below.
type JobLogEvent struct {
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// JobProgressEvent is the SSE event type wrapper for the "progress" topic.
type JobProgressEvent struct {
	JobID          string   `json:"jobId"`
	Frame          int      `json:"frame"`
	TotalFrames    *int     `json:"totalFrames,omitempty"`
	Percent        float64  `json:"percent"`
	FPS            *float64 `json:"fps,omitempty"`
	Speed          *float64 `json:"speed,omitempty"`
	OutTimeSeconds *float64 `json:"outTimeSeconds,omitempty"`
	ElapsedSeconds *float64 `json:"elapsedSeconds,omitempty"`
	ETASeconds     *float64 `json:"etaSeconds,omitempty"`
}

// JobPreviewEvent is the SSE event type wrapper for the "preview" topic.
type JobPreviewEvent struct {
	JobID string `json:"jobId"`
	Frame int    `json:"frame"`
	Path  string `json:"path"`
}

// JobErrorEvent is the SSE event type wrapper for the "error" topic.
type JobErrorEvent struct {
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// JobEventStreamInput defines the path and query parameters of the
// per-job event-stream endpoint.
type JobEventStreamInput struct {
	ID string `path:"id" doc:"Job id to subscribe to"`
}

// registerEventsSchema registers the per-job event stream with Huma for
// OpenAPI documentation only; the actual handler is served by RegisterSSE
// on the chi router, which takes precedence for this path.
func (h *Handler) registerEventsSchema(api huma.API) {
	sse.Register(api, huma.Operation{
		OperationID: "jobEventStream",
		Method:      "GET",
		Path:        "/v1/jobs/{id}/stream",
		Summary:     "Subscribe to a job's log, progress, preview and error events",
		Description: `Server-Sent Events stream scoped to a single job id.

## Connection Protocol
- On connect: receives a ` + "`:connected`" + ` comment
- Every 15s without events: receives a ` + "`:heartbeat <unix_epoch>`" + ` comment

## Event Types
- ` + "`log`" + `: jobId, message
- ` + "`progress`" + `: jobId, frame, totalFrames?, percent, fps?, speed?, outTimeSeconds?, elapsedSeconds?, etaSeconds?
- ` + "`preview`" + `: jobId, frame, path
- ` + "`error`" + `: jobId, message`,
		Tags: []string{"Events"},
	}, map[string]any{
		"log":      JobLogEvent{},
		"progress": JobProgressEvent{},
		"preview":  JobPreviewEvent{},
		"error":    JobErrorEvent{},
	}, func(ctx context.Context, input *JobEventStreamInput, send sse.Sender) {
		<-ctx.Done()
	})
}

// handleJobEventStream is the raw HTTP handler for per-job event
// streaming, bypassing Huma the same way this codebase's log-streaming
// handler does.
func (h *Handler) handleJobEventStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.Bus.Subscribe(jobID)
	defer h.Bus.Unsubscribe(sub.ID)

	rc := http.NewResponseController(w)
	ctx := r.Context()

	if _, err := fmt.Fprint(w, ":connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.Logger.Debug("failed to flush initial job event stream connection", "error", err)
		return
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix()); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				h.Logger.Debug("job event stream heartbeat flush failed", "error", err)
				return
			}
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := writeJobEvent(w, ev); err != nil {
				h.Logger.Debug("failed to write job event", "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				h.Logger.Debug("job event stream flush failed", "error", err)
				return
			}
		}
	}
}

// writeJobEvent writes a single Event in SSE wire format, tagged with the
// event name the topic table documents.
func writeJobEvent(w http.ResponseWriter, ev events.Event) error {
	var name string
	var payload any

	switch ev.Kind {
	case events.KindLog:
		name = "log"
		payload = JobLogEvent{JobID: ev.JobID, Message: ev.Log.Message}
	case events.KindProgress:
		name = "progress"
		payload = JobProgressEvent{
			JobID:          ev.JobID,
			Frame:          ev.Progress.Frame,
			TotalFrames:    ev.Progress.TotalFrames,
			Percent:        ev.Progress.Percent,
			FPS:            ev.Progress.FPS,
			Speed:          ev.Progress.Speed,
			OutTimeSeconds: ev.Progress.OutTimeSeconds,
			ElapsedSeconds: ev.Progress.ElapsedSeconds,
			ETASeconds:     ev.Progress.ETASeconds,
		}
	case events.KindPreview:
		name = "preview"
		payload = JobPreviewEvent{JobID: ev.JobID, Frame: ev.Preview.Frame, Path: ev.Preview.Path}
	case events.KindError:
		name = "error"
		payload = JobErrorEvent{JobID: ev.JobID, Message: ev.Error.Message}
	default:
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	message := fmt.Sprintf("event: %s\ndata: %s\n\n", name, data)
	n, err := w.Write([]byte(message))
	if err != nil {
		return err
	}
	if n < len(message) {
		return fmt.Errorf("short write: wrote %d of %d bytes", n, len(message))
	}
	return nil
}
