// Package probe implements the frame-map probe: streaming a video's
// per-frame keyframe/timestamp records out of an external probe process,
// generalizing the reference implementation's batch ffprobe wrapper to a
// line-at-a-time scan so a caller can start consuming times before the
// whole file has been probed.
package probe

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sixem/databendd/internal/codec"
	"github.com/sixem/databendd/internal/codecproc"
)

// Prober runs the frame-map probe against a CodecResolver-located binary.
type Prober struct {
	Resolver *codec.Resolver
}

// NewProber constructs a Prober.
func NewProber(resolver *codec.Resolver) *Prober {
	return &Prober{Resolver: resolver}
}

// FrameMap is the result of probing a file's video stream frame-by-frame.
type FrameMap struct {
	Times         []float64
	KeyframeTimes []float64
	DurationSec   *float64
}

// frameRecordFields is the show_entries field list, fixed so positional
// records can be parsed by index.
var frameRecordFields = []string{"key_frame", "pict_type", "pkt_pts_time", "best_effort_timestamp_time"}

// FrameMap streams per-frame records for inputPath's first video stream
// and probes duration independently via format-level metadata.
func (p *Prober) FrameMap(ctx context.Context, inputPath string) (*FrameMap, error) {
	resolved, err := p.Resolver.Resolve(codec.RoleProbe)
	if err != nil {
		return nil, fmt.Errorf("resolving probe binary: %w", err)
	}

	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "frame=" + strings.Join(frameRecordFields, ","),
		"-of", "csv=p=0",
		inputPath,
	}

	proc := codecproc.New(resolved.Path, args)
	if err := proc.Start(ctx); err != nil {
		return nil, fmt.Errorf("spawning probe: %w", err)
	}

	result := &FrameMap{}

	scanner := bufio.NewScanner(proc.Stdout())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		record, err := parseRecord(line)
		if err != nil {
			continue
		}
		t, ok := record.time()
		if !ok {
			continue
		}
		result.Times = append(result.Times, t)
		if record.isKeyframe() {
			result.KeyframeTimes = append(result.KeyframeTimes, t)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = proc.Kill()
		return nil, fmt.Errorf("reading probe output: %w", err)
	}

	term := proc.Wait()
	if term.Err != nil {
		return nil, fmt.Errorf("probe wait failed: %w", term.Err)
	}
	if term.ExitCode != 0 {
		return nil, fmt.Errorf("probe exited with code %d: %s", term.ExitCode, lastLines(proc.StderrLines()))
	}

	duration, err := p.duration(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	result.DurationSec = duration

	return result, nil
}

// duration probes format-level duration independently of the frame scan.
func (p *Prober) duration(ctx context.Context, inputPath string) (*float64, error) {
	resolved, err := p.Resolver.Resolve(codec.RoleProbe)
	if err != nil {
		return nil, fmt.Errorf("resolving probe binary: %w", err)
	}

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	}

	proc := codecproc.New(resolved.Path, args)
	if err := proc.Start(ctx); err != nil {
		return nil, fmt.Errorf("spawning duration probe: %w", err)
	}

	scanner := bufio.NewScanner(proc.Stdout())
	var raw string
	if scanner.Scan() {
		raw = strings.TrimSpace(scanner.Text())
	}

	term := proc.Wait()
	if term.Err != nil {
		return nil, fmt.Errorf("duration probe wait failed: %w", term.Err)
	}
	if term.ExitCode != 0 {
		return nil, fmt.Errorf("duration probe exited with code %d: %s", term.ExitCode, lastLines(proc.StderrLines()))
	}

	if raw == "" || raw == "N/A" {
		return nil, nil
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, nil
	}
	return &d, nil
}

func lastLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	if len(lines) > 10 {
		lines = lines[len(lines)-10:]
	}
	return strings.Join(lines, "\n")
}

// frameRecord is a single parsed per-frame record.
type frameRecord struct {
	keyFrame               *int
	pictType               string
	pktPtsTime             *float64
	bestEffortTimestampSec *float64
}

// time returns pkt_pts_time if present, else best_effort_timestamp_time.
func (r frameRecord) time() (float64, bool) {
	if r.pktPtsTime != nil {
		return *r.pktPtsTime, true
	}
	if r.bestEffortTimestampSec != nil {
		return *r.bestEffortTimestampSec, true
	}
	return 0, false
}

func (r frameRecord) isKeyframe() bool {
	if r.keyFrame != nil && *r.keyFrame == 1 {
		return true
	}
	return r.pictType == "I" || r.pictType == "i"
}

// parseRecord accepts either "k=v" compact records delimited by "|", or
// comma/pipe-delimited positional records in frameRecordFields order.
func parseRecord(line string) (frameRecord, error) {
	if strings.Contains(line, "=") {
		return parseCompactRecord(line)
	}
	return parsePositionalRecord(line)
}

func parseCompactRecord(line string) (frameRecord, error) {
	var record frameRecord
	for _, field := range strings.Split(line, "|") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		assignField(&record, kv[0], kv[1])
	}
	return record, nil
}

func parsePositionalRecord(line string) (frameRecord, error) {
	sep := ","
	if !strings.Contains(line, ",") && strings.Contains(line, "|") {
		sep = "|"
	}
	values := strings.Split(line, sep)
	if len(values) < len(frameRecordFields) {
		return frameRecord{}, fmt.Errorf("short record: %q", line)
	}

	var record frameRecord
	for i, name := range frameRecordFields {
		assignField(&record, name, values[i])
	}
	return record, nil
}

func assignField(record *frameRecord, key, value string) {
	value = strings.TrimSpace(value)
	switch key {
	case "key_frame":
		if v, err := strconv.Atoi(value); err == nil {
			record.keyFrame = &v
		}
	case "pict_type":
		record.pictType = value
	case "pkt_pts_time":
		if v, ok := parseTimeValue(value); ok {
			record.pktPtsTime = &v
		}
	case "best_effort_timestamp_time":
		if v, ok := parseTimeValue(value); ok {
			record.bestEffortTimestampSec = &v
		}
	}
}

func parseTimeValue(value string) (float64, bool) {
	if value == "" || value == "N/A" {
		return 0, false
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
