package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sixem/databendd/internal/codec"
)

// detectCmd represents the detect command.
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Resolve and probe the decoder/probe binaries",
	Long: `Resolve the decoder and probe binaries via the configured search order
and report their version and supported codecs as JSON.

Use this to verify which binaries databendd will use before starting the
server.

Examples:
  # Basic detection (JSON output)
  databendd detect

  # Pretty-printed JSON
  databendd detect --pretty`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().Bool("pretty", false, "pretty-print JSON output")
	detectCmd.Flags().Duration("timeout", 30*time.Second, "detection timeout")
	detectCmd.Flags().String("binary-path", "", "override the decoder binary (empty = auto-detect)")
	detectCmd.Flags().String("probe-path", "", "override the probe binary (empty = auto-detect)")
	detectCmd.Flags().String("binaries-dir", "", "additional sidecar directory to search before PATH")
}

// DetectionResult is the full detect-command output.
type DetectionResult struct {
	Decoder BinaryDetection `json:"decoder"`
	Probe   BinaryDetection `json:"probe"`
}

// BinaryDetection reports how a single codec role's binary was resolved.
type BinaryDetection struct {
	Resolved bool     `json:"resolved"`
	Path     string   `json:"path,omitempty"`
	Source   string   `json:"source,omitempty"`
	Version  string   `json:"version,omitempty"`
	Major    int      `json:"major,omitempty"`
	Minor    int      `json:"minor,omitempty"`
	Encoders []string `json:"encoders,omitempty"`
	Decoders []string `json:"decoders,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func runDetect(cmd *cobra.Command, _ []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	pretty, _ := cmd.Flags().GetBool("pretty")
	binaryPath, _ := cmd.Flags().GetString("binary-path")
	probePath, _ := cmd.Flags().GetString("probe-path")
	binariesDir, _ := cmd.Flags().GetString("binaries-dir")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	overrides := map[codec.Role]string{}
	if binaryPath != "" {
		overrides[codec.RoleDecoder] = binaryPath
	}
	if probePath != "" {
		overrides[codec.RoleProbe] = probePath
	}
	resolver := codec.NewResolver(overrides, binariesDir, 0)

	result := DetectionResult{
		Decoder: detectBinary(ctx, resolver, codec.RoleDecoder),
		Probe:   detectBinary(ctx, resolver, codec.RoleProbe),
	}

	var output []byte
	var err error
	if pretty {
		output, err = json.MarshalIndent(result, "", "  ")
	} else {
		output, err = json.Marshal(result)
	}
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	fmt.Fprintln(os.Stdout, string(output))
	return nil
}

func detectBinary(ctx context.Context, resolver *codec.Resolver, role codec.Role) BinaryDetection {
	resolved, caps, err := resolver.Probe(ctx, role)
	if err != nil {
		return BinaryDetection{Resolved: false, Error: err.Error()}
	}
	det := BinaryDetection{
		Resolved: true,
		Path:     resolved.Path,
		Source:   resolved.Source.String(),
	}
	if caps != nil {
		det.Version = caps.Version
		det.Major = caps.Major
		det.Minor = caps.Minor
		det.Encoders = caps.Encoders
		det.Decoders = caps.Decoders
	}
	return det
}
