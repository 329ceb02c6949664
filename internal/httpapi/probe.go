package httpapi

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// FrameMapInput is the input for ffprobe_frame_map.
type FrameMapInput struct {
	Body struct {
		InputPath string `json:"inputPath"`
	}
}

// FrameMapOutput is the output for ffprobe_frame_map.
type FrameMapOutput struct {
	Body struct {
		Times         []float64 `json:"times"`
		KeyframeTimes []float64 `json:"keyframeTimes"`
		DurationSec   *float64  `json:"durationSec,omitempty"`
	}
}

// FrameMap streams inputPath's per-frame keyframe and timestamp records.
func (h *Handler) FrameMap(ctx context.Context, input *FrameMapInput) (*FrameMapOutput, error) {
	result, err := h.Prober.FrameMap(ctx, input.Body.InputPath)
	if err != nil {
		return nil, huma.Error500InternalServerError("probing frame map", err)
	}

	out := &FrameMapOutput{}
	out.Body.Times = result.Times
	out.Body.KeyframeTimes = result.KeyframeTimes
	out.Body.DurationSec = result.DurationSec
	return out, nil
}

func (h *Handler) registerProbe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "ffprobeFrameMap",
		Method:      "POST",
		Path:        "/v1/probe/frame-map",
		Summary:     "Probe a video's per-frame keyframe and timestamp records",
		Description: "Returns per-frame times, keyframe times, and the independently probed format-level duration.",
		Tags:        []string{"Probe"},
	}, h.FrameMap)
}
