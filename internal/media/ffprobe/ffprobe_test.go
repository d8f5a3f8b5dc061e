package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestDurationSecondsPrefersFormat(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "10"}},
		Format:  Format{Duration: "123.45"},
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
}

func TestDurationSecondsFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio", Duration: "900"},
			{CodecType: "video", Duration: "61.5"},
			{CodecType: "video", Duration: "60"},
		},
		Format: Format{Duration: "N/A"},
	}
	if result.DurationSeconds() != 61.5 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestDurationSecondsInvalid(t *testing.T) {
	result := Result{Format: Format{Duration: "bad"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected NaN, got %v", result.DurationSeconds())
	}
}

func TestParse(t *testing.T) {
	raw := []byte(`{"streams":[{"index":0,"codec_type":"video","codec_name":"h264"}],"format":{"duration":"42.000000","format_name":"mov,mp4"}}`)
	result, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.DurationSeconds() != 42 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func writeStub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestProberReadsDurationFromStub(t *testing.T) {
	stub := writeStub(t, `echo '{"streams":[],"format":{"duration":"300.5"}}'`)
	prober := NewProber(stub, 5*time.Second)

	got, err := prober.ProbeDuration(context.Background(), "/tmp/video.mp4")
	if err != nil {
		t.Fatalf("ProbeDuration: %v", err)
	}
	if got != 300.5 {
		t.Fatalf("ProbeDuration = %v, want 300.5", got)
	}
}

func TestProberRejectsMissingDuration(t *testing.T) {
	stub := writeStub(t, `echo '{"streams":[],"format":{}}'`)
	_, err := NewProber(stub, time.Second).ProbeDuration(context.Background(), "/tmp/video.mp4")
	if !errors.Is(err, ErrNoDuration) {
		t.Fatalf("expected ErrNoDuration, got %v", err)
	}
}

func TestProberReportsFailure(t *testing.T) {
	stub := writeStub(t, `echo "corrupt" >&2; exit 1`)
	if _, err := NewProber(stub, time.Second).ProbeDuration(context.Background(), "/tmp/video.mp4"); err == nil {
		t.Fatal("expected error from failing ffprobe")
	}
}
