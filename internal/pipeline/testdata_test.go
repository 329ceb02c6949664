package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

// writeFakeFFmpeg installs a shell-script stand-in for ffmpeg that
// distinguishes decode, encode and mux invocations by argument shape
// instead of actually transcoding: decode mode (output "-") emits
// FAKE_FFMPEG_BYTES zero bytes to stdout; encode mode ("-f rawvideo"
// present) copies stdin verbatim to its output path; mux mode creates an
// empty output file.
func writeFakeFFmpeg(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fakeffmpeg.sh")

	script := `#!/bin/sh
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
  remaining="$FAKE_FFMPEG_BYTES"
  chunk=65536
  while [ "$remaining" -gt 0 ]; do
    if [ "$remaining" -lt "$chunk" ]; then
      chunk="$remaining"
    fi
    head -c "$chunk" /dev/zero
    remaining=$((remaining - chunk))
    chunk=65536
    [ -n "$FAKE_FFMPEG_SLOW" ] && sleep 0.01
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
		t.Fatalf("writing fake ffmpeg: %v", err)
	}
	return path
}
