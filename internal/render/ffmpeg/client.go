// Package ffmpeg wraps the ffmpeg binary for clip re-encoding and stitching.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// BlendSpec describes a blended transition between two clips.
type BlendSpec struct {
	// Transition names the visual effect (fade, dissolve, crossfade).
	Transition string
	// OffsetSeconds is where in the first clip the blend begins.
	OffsetSeconds float64
	// OverlapSeconds is how long the two clips overlap.
	OverlapSeconds float64
	// FirstHasAudio and SecondHasAudio gate the audio crossfade. Both
	// must be true for audio to survive the blend.
	FirstHasAudio  bool
	SecondHasAudio bool
}

// Client defines the ffmpeg operations the stitcher depends on.
type Client interface {
	Reencode(ctx context.Context, inputPath, outputPath string) error
	Concat(ctx context.Context, firstPath, secondPath, outputPath string, withAudio bool) error
	Blend(ctx context.Context, firstPath, secondPath, outputPath string, spec BlendSpec) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithCodecs overrides the canonical output encoding parameters.
func WithCodecs(videoCodec, pixelFormat, audioCodec string) Option {
	return func(c *CLI) {
		if videoCodec != "" {
			c.videoCodec = videoCodec
		}
		if pixelFormat != "" {
			c.pixelFormat = pixelFormat
		}
		if audioCodec != "" {
			c.audioCodec = audioCodec
		}
	}
}

// CLI wraps the ffmpeg command-line encoder.
type CLI struct {
	binary      string
	videoCodec  string
	pixelFormat string
	audioCodec  string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{
		binary:      "ffmpeg",
		videoCodec:  "libx264",
		pixelFormat: "yuv420p",
		audioCodec:  "aac",
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Reencode transcodes a single clip to the canonical output encoding.
func (c *CLI) Reencode(ctx context.Context, inputPath, outputPath string) error {
	if inputPath == "" {
		return errors.New("input path required")
	}
	if outputPath == "" {
		return errors.New("output path required")
	}
	return c.run(ctx, c.reencodeArgs(inputPath, outputPath))
}

// Concat joins two clips back to back with a hard cut.
func (c *CLI) Concat(ctx context.Context, firstPath, secondPath, outputPath string, withAudio bool) error {
	if firstPath == "" || secondPath == "" {
		return errors.New("input paths required")
	}
	if outputPath == "" {
		return errors.New("output path required")
	}
	return c.run(ctx, c.concatArgs(firstPath, secondPath, outputPath, withAudio))
}

// Blend joins two clips with an overlapping visual transition, crossfading
// audio when both inputs carry it.
func (c *CLI) Blend(ctx context.Context, firstPath, secondPath, outputPath string, spec BlendSpec) error {
	if firstPath == "" || secondPath == "" {
		return errors.New("input paths required")
	}
	if outputPath == "" {
		return errors.New("output path required")
	}
	if spec.OverlapSeconds <= 0 {
		return errors.New("blend overlap must be positive")
	}
	return c.run(ctx, c.blendArgs(firstPath, secondPath, outputPath, spec))
}

func (c *CLI) reencodeArgs(inputPath, outputPath string) []string {
	return append([]string{
		"-y", "-hide_banner", "-v", "error",
		"-i", inputPath,
	}, c.encodeTail(outputPath)...)
}

func (c *CLI) concatArgs(firstPath, secondPath, outputPath string, withAudio bool) []string {
	filter := "[0:v][1:v]concat=n=2:v=1:a=0[v]"
	maps := []string{"-map", "[v]"}
	if withAudio {
		filter = "[0:v][0:a][1:v][1:a]concat=n=2:v=1:a=1[v][a]"
		maps = append(maps, "-map", "[a]")
	}
	args := []string{
		"-y", "-hide_banner", "-v", "error",
		"-i", firstPath,
		"-i", secondPath,
		"-filter_complex", filter,
	}
	args = append(args, maps...)
	return append(args, c.encodeTail(outputPath)...)
}

func (c *CLI) blendArgs(firstPath, secondPath, outputPath string, spec BlendSpec) []string {
	filters := []string{fmt.Sprintf(
		"[0:v][1:v]xfade=transition=%s:duration=%s:offset=%s[v]",
		xfadeTransition(spec.Transition),
		formatSeconds(spec.OverlapSeconds),
		formatSeconds(spec.OffsetSeconds),
	)}
	maps := []string{"-map", "[v]"}
	if spec.FirstHasAudio && spec.SecondHasAudio {
		filters = append(filters, fmt.Sprintf("[0:a][1:a]acrossfade=d=%s[a]", formatSeconds(spec.OverlapSeconds)))
		maps = append(maps, "-map", "[a]")
	}
	args := []string{
		"-y", "-hide_banner", "-v", "error",
		"-i", firstPath,
		"-i", secondPath,
		"-filter_complex", strings.Join(filters, ";"),
	}
	args = append(args, maps...)
	return append(args, c.encodeTail(outputPath)...)
}

func (c *CLI) encodeTail(outputPath string) []string {
	return []string{
		"-c:v", c.videoCodec,
		"-pix_fmt", c.pixelFormat,
		"-c:a", c.audioCodec,
		outputPath,
	}
}

func (c *CLI) run(ctx context.Context, args []string) error {
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", c.binary, args[len(args)-1], err, strings.TrimSpace(string(output)))
	}
	return nil
}

// xfadeTransition maps a transition name onto an xfade effect. Unknown
// names fall back to a plain fade.
func xfadeTransition(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dissolve":
		return "dissolve"
	case "fade", "crossfade":
		return "fade"
	default:
		return "fade"
	}
}

func formatSeconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

var _ Client = (*CLI)(nil)
