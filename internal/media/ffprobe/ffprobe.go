package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoDuration is returned when ffprobe succeeds but reports no usable duration.
var ErrNoDuration = errors.New("ffprobe: no duration reported")

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse(output)
}

// Parse decodes raw ffprobe JSON output.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds. When the
// container omits it, the longest video stream duration is used. Returns 0
// when unavailable and NaN when the value is malformed.
func (r Result) DurationSeconds() float64 {
	if d := parseFloat(r.Format.Duration); d != 0 {
		return d
	}
	var longest float64
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		if d := parseFloat(stream.Duration); d > longest {
			longest = d
		}
	}
	return longest
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "N/A" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

// Prober reads durations with a per-file deadline.
type Prober struct {
	Binary  string
	Timeout time.Duration
}

// NewProber returns a Prober for the given binary and timeout.
func NewProber(binary string, timeout time.Duration) *Prober {
	return &Prober{Binary: binary, Timeout: timeout}
}

// ProbeDuration returns the playable duration of path in seconds.
func (p *Prober) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	result, err := Inspect(ctx, p.Binary, path)
	if err != nil {
		return 0, err
	}
	d := result.DurationSeconds()
	if math.IsNaN(d) || d <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoDuration, path)
	}
	return d, nil
}
