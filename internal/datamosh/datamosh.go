// Package datamosh implements BitstreamDatamosh: a pure streaming operator
// over an MPEG-4 Part 2 elementary stream that drops intra VOPs inside
// scene windows under a deterministic probability gate, to produce the
// smeared "datamoshed" look. It is independent of the frame pipeline.
package datamosh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// SceneWindow is a closed interval [Start, End] in seconds, sorted by
// Start, over which intra VOPs become eligible for dropping.
type SceneWindow struct {
	Start float64
	End   float64
}

const (
	startCodePrefix0 = 0x00
	startCodePrefix1 = 0x00
	startCodePrefix2 = 0x01
	vopStartCode     = 0xB6

	chunkSize = 64 * 1024
)

// lcg is the deterministic 64-bit generator all job randomness uses:
// multiplier 1664525, increment 1013904223, advanced by wraparound.
type lcg struct{ state uint64 }

func newLCG(seed uint64) *lcg {
	if seed == 0 {
		seed = 1
	}
	return &lcg{state: seed}
}

func (l *lcg) nextF64() float64 {
	l.state = l.state*1664525 + 1013904223
	return float64((l.state>>8)&0xFFFFFF) / float64(0xFFFFFF)
}

// Process streams input to output, dropping intra VOPs per the windows,
// intensity and seed. fps must be positive (degraded to 1 otherwise).
func Process(inputPath, outputPath string, fps float64, windows []SceneWindow, intensity float64, seed uint64, extradataHex string) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening bitstream: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output bitstream: %w", err)
	}
	defer out.Close()

	w := bufio.NewWriterSize(out, chunkSize)

	if prefix := extradataPrefix(extradataHex); len(prefix) > 0 {
		if _, err := w.Write(prefix); err != nil {
			return fmt.Errorf("writing extradata prefix: %w", err)
		}
	}

	if fps <= 0 {
		fps = 1
	}
	dropProbability := clamp01(intensity / 100)
	rng := newLCG(seed)
	windowStarted := make([]bool, len(windows))
	cursor := 0

	s := &scanner{r: bufio.NewReaderSize(in, chunkSize)}

	firstUnit, err := s.next()
	if err != nil {
		return err
	}
	if firstUnit == nil {
		return fmt.Errorf("No MPEG-4 start codes found")
	}

	haveVOP := false
	sawAnyVOP := false
	haveReferenceIntra := false
	vopIndex := 0

	unit := firstUnit
	for unit != nil {
		isVOP := unit.code == vopStartCode
		if isVOP {
			sawAnyVOP = true
		}

		switch {
		case !isVOP && !haveVOP:
			// Header/config unit before the first VOP: always emitted verbatim.
			if _, err := w.Write(unit.payload); err != nil {
				return fmt.Errorf("writing header unit: %w", err)
			}

		case isVOP && !haveReferenceIntra:
			intra, err := isIntraVOP(unit.payload)
			if err != nil {
				return err
			}
			haveVOP = true
			if intra {
				if _, err := w.Write(unit.payload); err != nil {
					return fmt.Errorf("writing reference intra: %w", err)
				}
				haveReferenceIntra = true
				vopIndex++
			} else {
				// Non-intra before any reference intra still needs a
				// decodable stream; keep scanning until an intra arrives.
				if _, err := w.Write(unit.payload); err != nil {
					return fmt.Errorf("writing leading non-intra: %w", err)
				}
				vopIndex++
			}

		case !isVOP:
			// Non-VOP units after the first VOP are always emitted.
			if _, err := w.Write(unit.payload); err != nil {
				return fmt.Errorf("writing unit: %w", err)
			}

		default:
			intra, err := isIntraVOP(unit.payload)
			if err != nil {
				return err
			}

			t := float64(vopIndex) / fps
			windowIdx := windowIndexAt(windows, &cursor, t)
			inWindow := windowIdx >= 0

			shouldDrop := intra && inWindow && dropProbability > 0
			if shouldDrop {
				if windowStarted[windowIdx] {
					shouldDrop = true
				} else {
					roll := rng.nextF64()
					if roll >= dropProbability {
						shouldDrop = false
					} else {
						windowStarted[windowIdx] = true
					}
				}
			}

			if !shouldDrop {
				if _, err := w.Write(unit.payload); err != nil {
					return fmt.Errorf("writing unit: %w", err)
				}
			}
			vopIndex++
		}

		unit, err = s.next()
		if err != nil {
			return err
		}
	}

	if !sawAnyVOP {
		return fmt.Errorf("No VOP frames found")
	}

	return w.Flush()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// windowIndexAt returns the index of the window containing t, advancing
// cursor monotonically past windows whose End has already elapsed
// (windows are supplied sorted by Start).
func windowIndexAt(windows []SceneWindow, cursor *int, t float64) int {
	for *cursor < len(windows) && t > windows[*cursor].End {
		*cursor++
	}
	if *cursor < len(windows) && t >= windows[*cursor].Start && t <= windows[*cursor].End {
		return *cursor
	}
	return -1
}

// isIntraVOP reads the leading 2 bits of a VOP's payload: 0 means intra.
func isIntraVOP(unit []byte) (bool, error) {
	payload := unit[4:]
	if len(payload) == 0 {
		return false, fmt.Errorf("truncated VOP payload")
	}
	vopType := payload[0] >> 6
	return vopType == 0, nil
}

// extradataPrefix parses an optional hex string into bytes, ensuring a
// leading start-code prefix.
func extradataPrefix(hex string) []byte {
	var filtered strings.Builder
	for _, r := range hex {
		if isHexDigit(r) {
			filtered.WriteRune(r)
		}
	}
	s := filtered.String()
	if len(s) < 2 || len(s)%2 != 0 {
		return nil
	}

	bytes := make([]byte, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		v, err := parseHexByte(s[i], s[i+1])
		if err != nil {
			continue
		}
		bytes = append(bytes, v)
	}
	if len(bytes) == 0 {
		return nil
	}
	if len(bytes) >= 3 && bytes[0] == 0 && bytes[1] == 0 && bytes[2] == 1 {
		return bytes
	}
	return append([]byte{0, 0, 1}, bytes...)
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func parseHexByte(hi, lo byte) (byte, error) {
	h, err := hexNibble(hi)
	if err != nil {
		return 0, err
	}
	l, err := hexNibble(lo)
	if err != nil {
		return 0, err
	}
	return h<<4 | l, nil
}

func hexNibble(b byte) (byte, error) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', nil
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, nil
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", b)
	}
}

// streamUnit is one MPEG-4 elementary-stream unit: the 3-byte start code,
// its code byte, and payload, as a single contiguous slice.
type streamUnit struct {
	payload []byte
	code    byte
}

// scanner reads the input in chunkSize pieces into a growing tail buffer
// and yields units one at a time, keeping memory bounded to roughly one
// unit's worth of bytes rather than the whole file.
type scanner struct {
	r      *bufio.Reader
	buf    []byte
	eof    bool
	primed bool
}

func (s *scanner) readMore() error {
	if s.eof {
		return nil
	}
	chunk := make([]byte, chunkSize)
	n, err := s.r.Read(chunk)
	if n > 0 {
		s.buf = append(s.buf, chunk[:n]...)
	}
	if err != nil {
		if err == io.EOF {
			s.eof = true
			return nil
		}
		return err
	}
	return nil
}

// findStartCode returns the index of the first complete "00 00 01 <code>"
// sequence in buf at or after from, or -1 if none is yet present.
func findStartCode(buf []byte, from int) int {
	for i := from; i+3 < len(buf); i++ {
		if buf[i] == startCodePrefix0 && buf[i+1] == startCodePrefix1 && buf[i+2] == startCodePrefix2 {
			return i
		}
	}
	return -1
}

// prime discards any leading bytes before the first start code.
func (s *scanner) prime() error {
	for {
		if idx := findStartCode(s.buf, 0); idx >= 0 {
			s.buf = s.buf[idx:]
			return nil
		}
		if s.eof {
			s.buf = nil
			return nil
		}
		if err := s.readMore(); err != nil {
			return err
		}
	}
}

// next returns the next unit, or nil once the stream is exhausted.
func (s *scanner) next() (*streamUnit, error) {
	if !s.primed {
		s.primed = true
		if err := s.prime(); err != nil {
			return nil, err
		}
	}
	if len(s.buf) == 0 {
		return nil, nil
	}

	for {
		if idx := findStartCode(s.buf, 3); idx >= 0 {
			payload := s.buf[:idx]
			code := payload[3]
			s.buf = s.buf[idx:]
			return &streamUnit{payload: payload, code: code}, nil
		}
		if s.eof {
			payload := s.buf
			var code byte
			if len(payload) >= 4 {
				code = payload[3]
			}
			s.buf = nil
			return &streamUnit{payload: payload, code: code}, nil
		}
		if err := s.readMore(); err != nil {
			return nil, err
		}
	}
}
