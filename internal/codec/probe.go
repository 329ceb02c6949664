package codec

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

var versionLineRegex = regexp.MustCompile(`^n?(\d+)\.(\d+)`)

// probeBinary runs the resolved binary's "-version", "-encoders" and
// "-decoders" introspection flags and parses the results.
func probeBinary(ctx context.Context, path string) (*Capabilities, error) {
	caps := &Capabilities{}

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return nil, fmt.Errorf("probing %s -version: %w", path, err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "version") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		caps.Version = fields[2]
		if m := versionLineRegex.FindStringSubmatch(fields[2]); len(m) == 3 {
			caps.Major, _ = strconv.Atoi(m[1])
			caps.Minor, _ = strconv.Atoi(m[2])
		}
		break
	}

	if encoders, err := listCodecNames(ctx, path, "-encoders"); err == nil {
		caps.Encoders = encoders
	}
	if decoders, err := listCodecNames(ctx, path, "-decoders"); err == nil {
		caps.Decoders = decoders
	}

	return caps, nil
}

// listCodecNames parses the tabular "-encoders"/"-decoders" listing format
// shared by the decoder/encoder binary: a banner, a "-----" separator, then
// one "FLAGS name description" row per entry.
func listCodecNames(ctx context.Context, path, flag string) ([]string, error) {
	out, err := exec.CommandContext(ctx, path, flag, "-hide_banner").Output()
	if err != nil {
		return nil, err
	}

	var names []string
	inList := false
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, "------") {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		line = strings.TrimLeft(line, " ")
		if len(line) < 8 {
			continue
		}
		if line[0] != 'V' && line[0] != 'A' && line[0] != 'S' {
			continue
		}
		fields := strings.Fields(strings.TrimSpace(line[6:]))
		if len(fields) > 0 && fields[0] != "" {
			names = append(names, fields[0])
		}
	}
	return names, nil
}

// HasEncoder reports whether the named encoder is present.
func (c *Capabilities) HasEncoder(name string) bool {
	for _, e := range c.Encoders {
		if e == name {
			return true
		}
	}
	return false
}

// HasDecoder reports whether the named decoder is present.
func (c *Capabilities) HasDecoder(name string) bool {
	for _, d := range c.Decoders {
		if d == name {
			return true
		}
	}
	return false
}
