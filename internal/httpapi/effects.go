package httpapi

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sixem/databendd/internal/pipeline"
	"github.com/sixem/databendd/internal/transform"
)

// buildRequest normalizes the fields common to every E_process body into
// a pipeline.Request bound to effect.
func buildRequest(body ProcessRequestBody, effect pipeline.Effect) (pipeline.Request, error) {
	trim, err := pipeline.NormalizeTrim(body.TrimStart, body.TrimEnd)
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{
		JobID:          body.JobID,
		InputPath:      body.InputPath,
		OutputPath:     body.OutputPath,
		Width:          body.Width,
		Height:         body.Height,
		FPS:            body.FPS,
		Trim:           trim,
		Duration:       body.Duration,
		Effect:         effect,
		Encoding:       body.Encoding.toProfile(),
		PreviewEnabled: body.PreviewEnabled,
		PreviewDir:     body.PreviewDir,
	}, nil
}

// --- pixelsort ---

// PixelsortConfigInput is the host-facing PixelsortConfig.
type PixelsortConfigInput struct {
	Intensity    float64 `json:"intensity" doc:"0-100"`
	Threshold    int     `json:"threshold" doc:"0-255"`
	MaxThreshold int     `json:"maxThreshold" doc:"0-255"`
	BlockSize    int     `json:"blockSize" doc:">= 2"`
	Direction    string  `json:"direction" doc:"horizontal | vertical | block" enum:"horizontal,vertical,block"`
}

func (c PixelsortConfigInput) toConfig() transform.PixelsortConfig {
	dir := transform.DirectionHorizontal
	switch c.Direction {
	case "vertical":
		dir = transform.DirectionVertical
	case "block":
		dir = transform.DirectionBlock
	}
	return transform.PixelsortConfig{
		Intensity:    c.Intensity,
		Threshold:    c.Threshold,
		MaxThreshold: c.MaxThreshold,
		BlockSize:    c.BlockSize,
		Direction:    dir,
	}
}

// PixelsortProcessInput is the input for pixelsort_process.
type PixelsortProcessInput struct {
	Body struct {
		ProcessRequestBody
		Config PixelsortConfigInput `json:"config"`
	}
}

// ProcessOutput is the output shared by every E_process operation.
type ProcessOutput struct {
	Body ProcessResponseBody
}

// PixelsortProcess starts a pixelsort job and returns its job id.
func (h *Handler) PixelsortProcess(ctx context.Context, input *PixelsortProcessInput) (*ProcessOutput, error) {
	req, err := buildRequest(input.Body.ProcessRequestBody, pipeline.NewPixelsortEffect(input.Body.Config.toConfig()))
	if err != nil {
		return nil, errToHuma(err)
	}
	id, err := h.runRequest(req)
	if err != nil {
		return nil, errToHuma(err)
	}
	out := &ProcessOutput{}
	out.Body.JobID = id
	return out, nil
}

// PixelsortCancel cancels a running pixelsort job.
func (h *Handler) PixelsortCancel(ctx context.Context, input *CancelInput) (*CancelOutput, error) {
	return h.cancel(input.ID)
}

// --- byte_range (modulo-mapping) ---

// ByteRangeConfigInput is the host-facing ByteRangeConfig.
type ByteRangeConfigInput struct {
	Modulus   int     `json:"modulus" doc:">= 2, tile side length"`
	Stride    int     `json:"stride" doc:">= 1"`
	Offset    int     `json:"offset"`
	Intensity float64 `json:"intensity"`
}

func (c ByteRangeConfigInput) toConfig() transform.ByteRangeConfig {
	return transform.ByteRangeConfig{
		Modulus:   c.Modulus,
		Stride:    c.Stride,
		Offset:    c.Offset,
		Intensity: c.Intensity,
	}
}

// ByteRangeProcessInput is the input for byte_range_process.
type ByteRangeProcessInput struct {
	Body struct {
		ProcessRequestBody
		Config ByteRangeConfigInput `json:"config"`
	}
}

// ByteRangeProcess starts a byte_range job and returns its job id.
func (h *Handler) ByteRangeProcess(ctx context.Context, input *ByteRangeProcessInput) (*ProcessOutput, error) {
	req, err := buildRequest(input.Body.ProcessRequestBody, pipeline.NewByteRangeEffect(input.Body.Config.toConfig()))
	if err != nil {
		return nil, errToHuma(err)
	}
	id, err := h.runRequest(req)
	if err != nil {
		return nil, errToHuma(err)
	}
	out := &ProcessOutput{}
	out.Body.JobID = id
	return out, nil
}

// ByteRangeCancel cancels a running byte_range job.
func (h *Handler) ByteRangeCancel(ctx context.Context, input *CancelInput) (*CancelOutput, error) {
	return h.cancel(input.ID)
}

// --- block_shift ---

// BlockShiftConfigInput is the host-facing BlockShiftConfig.
type BlockShiftConfigInput struct {
	BlockSize  int     `json:"blockSize" doc:">= 2"`
	MaxOffset  int     `json:"maxOffset"`
	OffsetStep int     `json:"offsetStep" doc:">= 1"`
	Intensity  float64 `json:"intensity"`
	Seed       uint64  `json:"seed"`
}

func (c BlockShiftConfigInput) toConfig() transform.BlockShiftConfig {
	return transform.BlockShiftConfig{
		BlockSize:  c.BlockSize,
		MaxOffset:  c.MaxOffset,
		OffsetStep: c.OffsetStep,
		Intensity:  c.Intensity,
		Seed:       c.Seed,
	}
}

// BlockShiftProcessInput is the input for block_shift_process.
type BlockShiftProcessInput struct {
	Body struct {
		ProcessRequestBody
		Config BlockShiftConfigInput `json:"config"`
	}
}

// BlockShiftProcess starts a block_shift job and returns its job id.
func (h *Handler) BlockShiftProcess(ctx context.Context, input *BlockShiftProcessInput) (*ProcessOutput, error) {
	req, err := buildRequest(input.Body.ProcessRequestBody, pipeline.NewBlockShiftEffect(input.Body.Config.toConfig()))
	if err != nil {
		return nil, errToHuma(err)
	}
	id, err := h.runRequest(req)
	if err != nil {
		return nil, errToHuma(err)
	}
	out := &ProcessOutput{}
	out.Body.JobID = id
	return out, nil
}

// BlockShiftCancel cancels a running block_shift job.
func (h *Handler) BlockShiftCancel(ctx context.Context, input *CancelInput) (*CancelOutput, error) {
	return h.cancel(input.ID)
}

// --- vaporwave ---

// VaporwaveConfigInput is the host-facing VaporwaveConfig.
type VaporwaveConfigInput struct {
	Black      uint8   `json:"black"`
	CyanMax    uint8   `json:"cyanMax"`
	MagentaMax uint8   `json:"magentaMax"`
	PurpleMax  uint8   `json:"purpleMax"`
	TealMax    uint8   `json:"tealMax"`
	White      uint8   `json:"white"`
	Intensity  float64 `json:"intensity"`
}

func (c VaporwaveConfigInput) toConfig() transform.VaporwaveConfig {
	return transform.VaporwaveConfig{
		Black:      c.Black,
		CyanMax:    c.CyanMax,
		MagentaMax: c.MagentaMax,
		PurpleMax:  c.PurpleMax,
		TealMax:    c.TealMax,
		White:      c.White,
		Intensity:  c.Intensity,
	}
}

// VaporwaveProcessInput is the input for vaporwave_process.
type VaporwaveProcessInput struct {
	Body struct {
		ProcessRequestBody
		Config VaporwaveConfigInput `json:"config"`
	}
}

// VaporwaveProcess starts a vaporwave job and returns its job id.
func (h *Handler) VaporwaveProcess(ctx context.Context, input *VaporwaveProcessInput) (*ProcessOutput, error) {
	req, err := buildRequest(input.Body.ProcessRequestBody, pipeline.NewVaporwaveEffect(input.Body.Config.toConfig()))
	if err != nil {
		return nil, errToHuma(err)
	}
	id, err := h.runRequest(req)
	if err != nil {
		return nil, errToHuma(err)
	}
	out := &ProcessOutput{}
	out.Body.JobID = id
	return out, nil
}

// VaporwaveCancel cancels a running vaporwave job.
func (h *Handler) VaporwaveCancel(ctx context.Context, input *CancelInput) (*CancelOutput, error) {
	return h.cancel(input.ID)
}

// --- kaleidoscope ---

// KaleidoscopeConfigInput is the host-facing KaleidoscopeConfig.
type KaleidoscopeConfigInput struct {
	Intensity float64 `json:"intensity"`
}

func (c KaleidoscopeConfigInput) toConfig() transform.KaleidoscopeConfig {
	return transform.KaleidoscopeConfig{Intensity: c.Intensity}
}

// KaleidoscopeProcessInput is the input for kaleidoscope_process.
type KaleidoscopeProcessInput struct {
	Body struct {
		ProcessRequestBody
		Config KaleidoscopeConfigInput `json:"config"`
	}
}

// KaleidoscopeProcess starts a kaleidoscope job and returns its job id.
func (h *Handler) KaleidoscopeProcess(ctx context.Context, input *KaleidoscopeProcessInput) (*ProcessOutput, error) {
	req, err := buildRequest(input.Body.ProcessRequestBody, pipeline.NewKaleidoscopeEffect(input.Body.Config.toConfig()))
	if err != nil {
		return nil, errToHuma(err)
	}
	id, err := h.runRequest(req)
	if err != nil {
		return nil, errToHuma(err)
	}
	out := &ProcessOutput{}
	out.Body.JobID = id
	return out, nil
}

// KaleidoscopeCancel cancels a running kaleidoscope job.
func (h *Handler) KaleidoscopeCancel(ctx context.Context, input *CancelInput) (*CancelOutput, error) {
	return h.cancel(input.ID)
}

// registerEffects registers the process/cancel operation pair for each of
// the five FrameTransform variants.
func (h *Handler) registerEffects(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "pixelsortProcess",
		Method:      "POST",
		Path:        "/v1/effects/pixelsort/process",
		Summary:     "Run pixelsort",
		Description: "Starts a luma-banded segment sort job and returns its job id immediately; progress, log and preview events are delivered over the job's event stream.",
		Tags:        []string{"Effects"},
	}, h.PixelsortProcess)
	huma.Register(api, huma.Operation{
		OperationID: "pixelsortCancel",
		Method:      "POST",
		Path:        "/v1/effects/pixelsort/jobs/{id}/cancel",
		Summary:     "Cancel pixelsort job",
		Tags:        []string{"Effects"},
	}, h.PixelsortCancel)

	huma.Register(api, huma.Operation{
		OperationID: "byteRangeProcess",
		Method:      "POST",
		Path:        "/v1/effects/byte_range/process",
		Summary:     "Run byte_range (modulo-mapping)",
		Description: "Starts an activity-gated modulo-mapping job and returns its job id immediately.",
		Tags:        []string{"Effects"},
	}, h.ByteRangeProcess)
	huma.Register(api, huma.Operation{
		OperationID: "byteRangeCancel",
		Method:      "POST",
		Path:        "/v1/effects/byte_range/jobs/{id}/cancel",
		Summary:     "Cancel byte_range job",
		Tags:        []string{"Effects"},
	}, h.ByteRangeCancel)

	huma.Register(api, huma.Operation{
		OperationID: "blockShiftProcess",
		Method:      "POST",
		Path:        "/v1/effects/block_shift/process",
		Summary:     "Run block_shift",
		Description: "Starts a deterministic per-block macroblock shift job and returns its job id immediately.",
		Tags:        []string{"Effects"},
	}, h.BlockShiftProcess)
	huma.Register(api, huma.Operation{
		OperationID: "blockShiftCancel",
		Method:      "POST",
		Path:        "/v1/effects/block_shift/jobs/{id}/cancel",
		Summary:     "Cancel block_shift job",
		Tags:        []string{"Effects"},
	}, h.BlockShiftCancel)

	huma.Register(api, huma.Operation{
		OperationID: "vaporwaveProcess",
		Method:      "POST",
		Path:        "/v1/effects/vaporwave/process",
		Summary:     "Run vaporwave",
		Description: "Starts a vaporwave palette remap job and returns its job id immediately.",
		Tags:        []string{"Effects"},
	}, h.VaporwaveProcess)
	huma.Register(api, huma.Operation{
		OperationID: "vaporwaveCancel",
		Method:      "POST",
		Path:        "/v1/effects/vaporwave/jobs/{id}/cancel",
		Summary:     "Cancel vaporwave job",
		Tags:        []string{"Effects"},
	}, h.VaporwaveCancel)

	huma.Register(api, huma.Operation{
		OperationID: "kaleidoscopeProcess",
		Method:      "POST",
		Path:        "/v1/effects/kaleidoscope/process",
		Summary:     "Run kaleidoscope",
		Description: "Starts a pass-through kaleidoscope job (identity transform, alpha preserved) and returns its job id immediately.",
		Tags:        []string{"Effects"},
	}, h.KaleidoscopeProcess)
	huma.Register(api, huma.Operation{
		OperationID: "kaleidoscopeCancel",
		Method:      "POST",
		Path:        "/v1/effects/kaleidoscope/jobs/{id}/cancel",
		Summary:     "Cancel kaleidoscope job",
		Tags:        []string{"Effects"},
	}, h.KaleidoscopeCancel)
}
