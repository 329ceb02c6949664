package httpapi

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sixem/databendd/internal/datamosh"
)

// SceneWindowInput is the host-facing SceneWindow.
type SceneWindowInput struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// DatamoshBitstreamInput is the input for datamosh_bitstream.
type DatamoshBitstreamInput struct {
	Body struct {
		InputPath    string             `json:"inputPath"`
		OutputPath   string             `json:"outputPath"`
		FPS          float64            `json:"fps"`
		Windows      []SceneWindowInput `json:"windows"`
		Intensity    float64            `json:"intensity" doc:"0-100"`
		Seed         uint64             `json:"seed"`
		ExtradataHex string             `json:"extradataHex,omitempty"`
	}
}

// DatamoshBitstreamOutput is the output for datamosh_bitstream.
type DatamoshBitstreamOutput struct{}

// DatamoshBitstream runs the synchronous bitstream datamosh operator. It
// is not cancellable: the call completes or fails.
func (h *Handler) DatamoshBitstream(ctx context.Context, input *DatamoshBitstreamInput) (*DatamoshBitstreamOutput, error) {
	windows := make([]datamosh.SceneWindow, len(input.Body.Windows))
	for i, w := range input.Body.Windows {
		windows[i] = datamosh.SceneWindow{Start: w.Start, End: w.End}
	}

	err := datamosh.Process(
		input.Body.InputPath,
		input.Body.OutputPath,
		input.Body.FPS,
		windows,
		input.Body.Intensity,
		input.Body.Seed,
		input.Body.ExtradataHex,
	)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	return &DatamoshBitstreamOutput{}, nil
}

func (h *Handler) registerDatamosh(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "datamoshBitstream",
		Method:      "POST",
		Path:        "/v1/datamosh/bitstream",
		Summary:     "Run bitstream datamosh",
		Description: "Streams an MPEG-4 elementary stream, dropping intra VOPs inside scene windows under a deterministic PRNG gate. Operates directly on the file, independent of the frame pipeline, and is not cancellable.",
		Tags:        []string{"Datamosh"},
	}, h.DatamoshBitstream)
}
