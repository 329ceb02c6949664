package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCapabilities_ReportsResolvedBinariesAndHostStats(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodGet, "/v1/system/capabilities", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Decoder struct {
			Resolved bool     `json:"resolved"`
			Version  string   `json:"version"`
			Encoders []string `json:"encoders"`
			Decoders []string `json:"decoders"`
		} `json:"decoder"`
		Probe struct {
			Resolved bool   `json:"resolved"`
			Version  string `json:"version"`
		} `json:"probe"`
		CPUCores      int     `json:"cpuCores"`
		TotalMemoryMB float64 `json:"totalMemoryMb"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.True(t, resp.Decoder.Resolved)
	assert.Contains(t, resp.Decoder.Version, "6.0.1")
	assert.Contains(t, resp.Decoder.Encoders, "libx264")
	assert.True(t, resp.Probe.Resolved)
	assert.Greater(t, resp.CPUCores, 0)
	assert.Greater(t, resp.TotalMemoryMB, 0.0)
}
