package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodingProfile configures the encoder and final mux stage, accepted
// from the host as-is (extra argument lists are trusted verbatim).
type EncodingProfile struct {
	Encoder string // libx264 | h264_nvenc | libvpx-vp9
	Preset  string

	CRF               *int
	CQ                *int
	MaxBitrateKbps    *int
	TargetBitrateKbps *int
	VP9Deadline       string
	VP9CPUUsed        *int

	Format string // output container extension, e.g. "mp4"

	AudioEnabled     bool
	AudioCodec       string // aac | opus | copy
	AudioBitrateKbps int

	ExtraEncodeArgs []string
	ExtraMuxArgs    []string
}

var faststartContainers = map[string]bool{
	"mp4": true,
	"m4v": true,
	"mov": true,
}

// BuildDecodeArgs builds the decoder invocation's argument vector per the
// staging contract: quiet, optional trim, first video stream only, no
// audio, scaled with a fixed sample aspect ratio, raw rgba to stdout.
func BuildDecodeArgs(inputPath string, trim *TrimRange, width, height int) []string {
	args := []string{"-hide_banner", "-loglevel", "quiet"}
	if trim != nil {
		args = append(args, "-ss", formatSeconds(trim.Start), "-to", formatSeconds(trim.End))
	}
	args = append(args,
		"-i", inputPath,
		"-map", "0:v:0",
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d,setsar=1", width, height),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	return args
}

// BuildEncodeArgs builds the encoder invocation's argument vector: raw
// rgba from stdin at the negotiated size and rate, configured per profile.
func BuildEncodeArgs(profile EncodingProfile, width, height int, fps float64, outputPath string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "quiet", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", formatFPS(fps),
		"-i", "-",
		"-an",
	}
	args = append(args, encoderCodecArgs(profile)...)
	args = append(args, profile.ExtraEncodeArgs...)
	args = append(args, outputPath)
	return args
}

func encoderCodecArgs(profile EncodingProfile) []string {
	switch profile.Encoder {
	case "h264_nvenc":
		cq := orDefault(profile.CQ, 19)
		args := []string{
			"-c:v", "h264_nvenc",
			"-preset", orDefaultStr(profile.Preset, "p4"),
			"-rc", "vbr",
			"-cq", strconv.Itoa(cq),
			"-b:v", "0",
			"-pix_fmt", "yuv420p",
		}
		if profile.MaxBitrateKbps != nil {
			args = append(args, "-maxrate", kbps(*profile.MaxBitrateKbps))
		}
		return args
	case "libvpx-vp9":
		deadline := orDefaultStr(profile.VP9Deadline, "good")
		cpuUsed := orDefault(profile.VP9CPUUsed, 4)
		args := []string{
			"-c:v", "libvpx-vp9",
			"-deadline", deadline,
			"-cpu-used", strconv.Itoa(cpuUsed),
			"-row-mt", "1",
		}
		if profile.TargetBitrateKbps != nil {
			args = append(args, "-b:v", kbps(*profile.TargetBitrateKbps))
		} else {
			crf := orDefault(profile.CRF, 30)
			args = append(args, "-crf", strconv.Itoa(crf), "-b:v", "0")
		}
		return args
	default: // libx264
		crf := orDefault(profile.CRF, 20)
		args := []string{
			"-c:v", "libx264",
			"-preset", orDefaultStr(profile.Preset, "medium"),
			"-crf", strconv.Itoa(crf),
			"-pix_fmt", "yuv420p",
		}
		if profile.MaxBitrateKbps != nil {
			args = append(args, "-maxrate", kbps(*profile.MaxBitrateKbps), "-bufsize", kbps(2*(*profile.MaxBitrateKbps)))
		}
		return args
	}
}

// BuildMuxArgs builds the final mux invocation: stream-copies the temp
// effect video's video stream, optionally re-encodes the source input's
// first audio stream (re-applying the trim for the audio side), and
// writes the final output.
func BuildMuxArgs(profile EncodingProfile, tempVideoPath, inputPath, outputPath string, trim *TrimRange) []string {
	args := []string{"-hide_banner", "-loglevel", "quiet", "-y", "-i", tempVideoPath}

	if profile.AudioEnabled {
		if trim != nil {
			args = append(args, "-ss", formatSeconds(trim.Start), "-to", formatSeconds(trim.End))
		}
		args = append(args, "-i", inputPath)
		args = append(args, "-map", "0:v:0", "-map", "1:a:0?")
		args = append(args, "-c:v", "copy")
		args = append(args, audioCodecArgs(profile)...)
	} else {
		args = append(args, "-map", "0:v:0", "-an", "-c:v", "copy")
	}

	if faststartContainers[strings.ToLower(profile.Format)] {
		args = append(args, "-movflags", "+faststart")
	}

	args = append(args, profile.ExtraMuxArgs...)
	args = append(args, outputPath)
	return args
}

func audioCodecArgs(profile EncodingProfile) []string {
	codec := profile.AudioCodec
	if codec == "" {
		codec = "aac"
	}
	if codec == "copy" {
		return []string{"-c:a", "copy"}
	}
	bitrate := profile.AudioBitrateKbps
	if bitrate <= 0 {
		bitrate = 192
	}
	return []string{"-c:a", codec, "-b:a", kbps(bitrate)}
}

func orDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func orDefaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func kbps(v int) string {
	return strconv.Itoa(v) + "k"
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func formatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', 3, 64)
}
