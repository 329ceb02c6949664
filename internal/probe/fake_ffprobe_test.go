package probe

import (
	"os"
	"path/filepath"
	"testing"
)

// writeFakeFFprobe installs a shell-script stand-in for ffprobe that
// recognizes the two invocations FrameMap makes by argument shape: a
// "frame=..." show_entries prints fixed per-frame CSV lines, a
// "format=duration" show_entries prints a fixed duration value.
func writeFakeFFprobe(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fakeffprobe.sh")

	script := `#!/bin/sh
for a in "$@"; do
  case "$a" in
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
exit 1
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake ffprobe: %v", err)
	}
	return path
}
