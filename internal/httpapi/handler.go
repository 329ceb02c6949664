// Package httpapi implements the RpcSurface: the HTTP transport that
// exposes every effect's process/cancel operations, the chunked preview
// upload protocol, the bitstream datamosh operation, the raw codec-process
// primitives, the frame-map probe, and per-job event streaming, in the
// huma/v2 + chi idiom used across the rest of this codebase's HTTP layer.
package httpapi

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sixem/databendd/internal/codec"
	"github.com/sixem/databendd/internal/codecproc"
	"github.com/sixem/databendd/internal/events"
	"github.com/sixem/databendd/internal/jobs"
	"github.com/sixem/databendd/internal/pipeline"
	"github.com/sixem/databendd/internal/preview"
	"github.com/sixem/databendd/internal/probe"
)

// Handler wires every RpcSurface operation to the underlying Pipeline,
// JobRegistry, EventBus, PreviewBufferStore, CodecResolver and frame-map
// Prober shared across a running process.
type Handler struct {
	Pipeline       *pipeline.Pipeline
	Registry       *jobs.Registry
	Bus            *events.Bus
	PreviewStore   *preview.Store
	PreviewEncoder *preview.Encoder
	Prober         *probe.Prober
	Resolver       *codec.Resolver
	Logger         *slog.Logger

	// PreviewDir is where chunked-upload preview frames are encoded to
	// when a request does not supply its own directory.
	PreviewDir string

	heartbeatInterval time.Duration

	procMu    sync.Mutex
	processes map[string]*codecproc.Process
}

// New constructs a Handler from the process-wide components a running
// databendd assembles at startup.
func New(
	pl *pipeline.Pipeline,
	registry *jobs.Registry,
	bus *events.Bus,
	previewStore *preview.Store,
	resolver *codec.Resolver,
	logger *slog.Logger,
	previewDir string,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Pipeline:          pl,
		Registry:          registry,
		Bus:               bus,
		PreviewStore:      previewStore,
		PreviewEncoder:    preview.NewEncoder(resolver),
		Prober:            probe.NewProber(resolver),
		Resolver:          resolver,
		Logger:            logger,
		PreviewDir:        previewDir,
		heartbeatInterval: sseHeartbeatInterval,
		processes:         make(map[string]*codecproc.Process),
	}
}

// SetHeartbeatInterval overrides the per-job event stream's heartbeat
// cadence, primarily so tests don't have to wait out the production
// interval.
func (h *Handler) SetHeartbeatInterval(d time.Duration) {
	h.heartbeatInterval = d
}

// Register registers every RpcSurface operation with the Huma API.
func (h *Handler) Register(api huma.API) {
	h.registerEffects(api)
	h.registerPreview(api)
	h.registerDatamosh(api)
	h.registerCodecProcess(api)
	h.registerProbe(api)
	h.registerCapabilities(api)
	h.registerEventsSchema(api)
}

// RegisterSSE registers the raw chi routes used for per-job event
// streaming, bypassing Huma the same way logs/progress streaming does
// elsewhere in this codebase's HTTP layer: Huma documents the shape,
// chi serves the bytes.
func (h *Handler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get("/v1/jobs/{id}/stream", h.handleJobEventStream)
}

const sseHeartbeatInterval = 15 * time.Second
