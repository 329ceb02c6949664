package httpapi

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/sixem/databendd/internal/codec"
	"github.com/sixem/databendd/internal/events"
	"github.com/sixem/databendd/internal/jobs"
	"github.com/sixem/databendd/internal/pipeline"
	"github.com/sixem/databendd/internal/preview"
)

// writeFakeCodecBinary installs a shell-script stand-in for the
// decoder/probe binary that answers every invocation this package's
// handlers and their dependencies make: "-version"/"-encoders"/
// "-decoders" introspection for CodecResolver.Probe, the frame/duration
// show_entries invocations Prober.FrameMap drives ffprobe with, and the
// decode/rawvideo-encode/mux argument shapes Pipeline and PreviewEncoder
// drive a real ffmpeg with.
func writeFakeCodecBinary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fakecodec.sh")

	script := `#!/bin/sh
for a in "$@"; do
  case "$a" in
    -version)
      printf 'fakecodec version 6.0.1 Copyright (c) test\n'
      exit 0
      ;;
    -encoders)
      printf 'Encoders:\n ------\n V..... libx264 H.264\n'
      exit 0
      ;;
    -decoders)
      printf 'Decoders:\n ------\n V..... h264 H.264\n'
      exit 0
      ;;
    frame=*)
      printf '1,I,0.000000,0.000000\n'
      printf '0,P,0.040000,0.040000\n'
      printf '0,P,0.080000,0.080000\n'
      exit 0
      ;;
    format=duration)
      printf '0.120000\n'
      exit 0
      ;;
  esac
done

prev=""
mode=""
out=""
for a in "$@"; do
  if [ "$prev" = "-f" ] && [ "$a" = "rawvideo" ]; then
    mode="rawvideo"
  fi
  out="$a"
  prev="$a"
done

if [ "$out" = "-" ]; then
  remaining="${FAKE_CODEC_BYTES:-0}"
  chunk=65536
  while [ "$remaining" -gt 0 ]; do
    if [ "$remaining" -lt "$chunk" ]; then
      chunk="$remaining"
    fi
    head -c "$chunk" /dev/zero
    remaining=$((remaining - chunk))
    chunk=65536
    [ -n "$FAKE_CODEC_SLOW" ] && sleep 0.05
  done
  exit 0
fi

if [ "$mode" = "rawvideo" ]; then
  cat > "$out"
  exit 0
fi

: > "$out"
exit 0
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake codec binary: %v", err)
	}
	return path
}

// testEnv bundles every component a Handler needs, all built against the
// same fake codec binary.
type testEnv struct {
	Handler  *Handler
	Router   *chi.Mux
	API      huma.API
	Registry *jobs.Registry
	Bus      *events.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fake := writeFakeCodecBinary(t)

	resolver := &codec.Resolver{
		Overrides: map[codec.Role]string{
			codec.RoleDecoder: fake,
			codec.RoleProbe:   fake,
		},
	}
	registry := jobs.NewRegistry()
	bus := events.NewBus()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pl := pipeline.New(resolver, registry, bus, logger)
	previewStore := preview.NewStore()

	previewDir := t.TempDir()
	handler := New(pl, registry, bus, previewStore, resolver, logger, previewDir)

	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("test API", "0.0.0"))
	handler.Register(api)
	handler.RegisterSSE(router)

	return &testEnv{Handler: handler, Router: router, API: api, Registry: registry, Bus: bus}
}
