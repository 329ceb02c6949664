package httpapi

import (
	"context"
	"runtime"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/sixem/databendd/internal/codec"
)

// BinaryCapabilitiesResponse reports how a single codec role's binary was
// resolved and what it supports.
type BinaryCapabilitiesResponse struct {
	Resolved bool     `json:"resolved"`
	Path     string   `json:"path,omitempty"`
	Source   string   `json:"source,omitempty"`
	Version  string   `json:"version,omitempty"`
	Encoders []string `json:"encoders,omitempty"`
	Decoders []string `json:"decoders,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// SystemCapabilitiesInput is the input for the capabilities endpoint.
type SystemCapabilitiesInput struct{}

// SystemCapabilitiesOutput is the output for the capabilities endpoint.
type SystemCapabilitiesOutput struct {
	Body struct {
		Decoder BinaryCapabilitiesResponse `json:"decoder"`
		Probe   BinaryCapabilitiesResponse `json:"probe"`

		CPUCores      int     `json:"cpuCores"`
		TotalMemoryMB float64 `json:"totalMemoryMb"`
		FreeMemoryMB  float64 `json:"freeMemoryMb"`
	}
}

// GetCapabilities reports the resolved decoder/probe binaries and a
// snapshot of host CPU/memory, so a caller can size concurrent job
// submission without guessing.
func (h *Handler) GetCapabilities(ctx context.Context, input *SystemCapabilitiesInput) (*SystemCapabilitiesOutput, error) {
	out := &SystemCapabilitiesOutput{}
	out.Body.Decoder = probeBinaryCapabilities(ctx, h.Resolver, codec.RoleDecoder)
	out.Body.Probe = probeBinaryCapabilities(ctx, h.Resolver, codec.RoleProbe)

	if cores, err := cpu.Counts(true); err == nil {
		out.Body.CPUCores = cores
	} else {
		out.Body.CPUCores = runtime.NumCPU()
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		out.Body.TotalMemoryMB = float64(vm.Total) / 1024 / 1024
		out.Body.FreeMemoryMB = float64(vm.Available) / 1024 / 1024
	}

	return out, nil
}

func probeBinaryCapabilities(ctx context.Context, resolver *codec.Resolver, role codec.Role) BinaryCapabilitiesResponse {
	resolved, caps, err := resolver.Probe(ctx, role)
	if err != nil {
		return BinaryCapabilitiesResponse{Resolved: false, Error: err.Error()}
	}
	resp := BinaryCapabilitiesResponse{
		Resolved: true,
		Path:     resolved.Path,
		Source:   resolved.Source.String(),
	}
	if caps != nil {
		resp.Version = caps.Version
		resp.Encoders = caps.Encoders
		resp.Decoders = caps.Decoders
	}
	return resp
}

func (h *Handler) registerCapabilities(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSystemCapabilities",
		Method:      "GET",
		Path:        "/v1/system/capabilities",
		Summary:     "Report resolved codec binaries and host resources",
		Description: "Resolves the decoder and probe binaries via the configured search order and reports their version/codec support, plus a CPU/memory snapshot.",
		Tags:        []string{"System"},
	}, h.GetCapabilities)
}
