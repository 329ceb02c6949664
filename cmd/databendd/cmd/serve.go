package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: Intentional pprof exposure for debugging
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sixem/databendd/internal/codec"
	"github.com/sixem/databendd/internal/config"
	"github.com/sixem/databendd/internal/events"
	databendhttp "github.com/sixem/databendd/internal/http"
	"github.com/sixem/databendd/internal/httpapi"
	"github.com/sixem/databendd/internal/jobs"
	"github.com/sixem/databendd/internal/pipeline"
	"github.com/sixem/databendd/internal/preview"
	"github.com/sixem/databendd/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the databendd HTTP server",
	Long: `Start databendd's HTTP server.

The server resolves the decoder and probe binaries, wires up the job
registry, event bus, chunked preview-upload store and frame pipeline, then
exposes the RpcSurface: per-effect process/cancel, the preview upload
protocol, bitstream datamosh, raw codec-process primitives, the frame-map
probe, and per-job Server-Sent Events streaming.

Example:
  DATABENDD_SERVER_PORT=9090 databendd serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("config", "", "path to config file")
	serveCmd.Flags().Int("port", 0, "HTTP listen port (overrides config/env)")
	serveCmd.Flags().String("host", "", "HTTP listen host (overrides config/env)")
	serveCmd.Flags().String("preview-dir", "", "directory chunked-upload preview PNGs are written to when the request names none (defaults to the OS temp dir)")

	serveCmd.Flags().Bool("pprof", false, "enable pprof profiling server")
	serveCmd.Flags().Int("pprof-port", 6060, "port for pprof profiling server")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	versionInfo := version.GetInfo()
	logger.Info("databendd starting",
		slog.String("version", versionInfo.Version),
		slog.String("commit", versionInfo.CommitSHA),
		slog.String("built", versionInfo.Date),
		slog.String("go", versionInfo.GoVersion),
		slog.String("platform", versionInfo.Platform),
	)

	pprofEnabled, _ := cmd.Flags().GetBool("pprof")
	if pprofEnabled {
		pprofPort, _ := cmd.Flags().GetInt("pprof-port")
		pprofAddr := fmt.Sprintf("localhost:%d", pprofPort)
		go func() {
			logger.Info("pprof server starting",
				slog.String("address", pprofAddr),
				slog.String("cpu_profile", fmt.Sprintf("http://%s/debug/pprof/profile", pprofAddr)),
				slog.String("heap_profile", fmt.Sprintf("http://%s/debug/pprof/heap", pprofAddr)),
			)
			// Uses http.DefaultServeMux which has pprof handlers registered via blank import
			if err := http.ListenAndServe(pprofAddr, nil); err != nil { //nolint:gosec // G114: pprof server doesn't need timeouts
				logger.Error("pprof server failed", slog.String("error", err.Error()))
			}
		}()
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	previewDir, _ := cmd.Flags().GetString("preview-dir")

	overrides := map[codec.Role]string{}
	if cfg.Codec.BinaryPath != "" {
		overrides[codec.RoleDecoder] = cfg.Codec.BinaryPath
	}
	if cfg.Codec.ProbePath != "" {
		overrides[codec.RoleProbe] = cfg.Codec.ProbePath
	}
	resolver := codec.NewResolver(overrides, cfg.Codec.BinariesDir, cfg.Codec.ProbeCacheTTL)

	if decoder, caps, derr := resolver.Probe(context.Background(), codec.RoleDecoder); derr != nil {
		logger.Warn("decoder binary not resolved at startup", slog.String("error", derr.Error()))
	} else {
		logger.Info("decoder binary resolved",
			slog.String("path", decoder.Path),
			slog.String("source", decoder.Source.String()),
			slog.String("version", caps.Version),
			slog.Int("encoders", len(caps.Encoders)),
			slog.Int("decoders", len(caps.Decoders)),
		)
	}
	if probeBin, _, perr := resolver.Probe(context.Background(), codec.RoleProbe); perr != nil {
		logger.Warn("probe binary not resolved at startup", slog.String("error", perr.Error()))
	} else {
		logger.Info("probe binary resolved", slog.String("path", probeBin.Path), slog.String("source", probeBin.Source.String()))
	}

	registry := jobs.NewRegistry()
	bus := events.NewBus()
	previewStore := preview.NewStore()
	pl := pipeline.New(resolver, registry, bus, logger)

	serverConfig := databendhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     databendhttp.DefaultServerConfig().IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	server := databendhttp.NewServer(serverConfig, logger, versionInfo.Version)

	handler := httpapi.New(pl, registry, bus, previewStore, resolver, logger, previewDir)
	handler.Register(server.API())
	handler.RegisterSSE(server.Router())

	logger.Info("server configured",
		slog.String("address", cfg.Server.Address()),
		slog.Int("jobs_max_active", cfg.Jobs.MaxActive),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case sig := <-waitForSignalCh():
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
		return <-errCh
	}
}

// waitForSignalCh returns a channel that receives exactly one SIGINT or
// SIGTERM.
func waitForSignalCh() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
