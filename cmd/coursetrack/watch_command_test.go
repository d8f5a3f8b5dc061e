package main

import (
	"path/filepath"
	"testing"
)

func TestParsePositionLine(t *testing.T) {
	tests := []struct {
		line    string
		file    string
		seconds float64
		wantErr bool
	}{
		{line: "/c/1 Intro.mp4 12.5", file: "/c/1 Intro.mp4", seconds: 12.5},
		{line: "  /c/a.mp4\t7  ", file: "/c/a.mp4", seconds: 7},
		{line: "/c/a.mp4", wantErr: true},
		{line: "/c/a.mp4 soon", wantErr: true},
		{line: "/c/a.mp4 NaN", wantErr: true},
		{line: "/c/a.mp4 +Inf", wantErr: true},
		{line: "", wantErr: true},
	}
	for _, tt := range tests {
		file, seconds, err := parsePositionLine(tt.line)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tt.line)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tt.line, err)
		}
		if file != tt.file || seconds != tt.seconds {
			t.Fatalf("%q: got (%q, %v)", tt.line, file, seconds)
		}
	}
}

func TestAcquireOwnershipIsExclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".coursetrack")
	first, err := acquireOwnership(dir)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := acquireOwnership(dir); err == nil {
		t.Fatal("expected second lock to fail while the first is held")
	}
	if err := first.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	second, err := acquireOwnership(dir)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	_ = second.Unlock()
}

func TestFormatSeconds(t *testing.T) {
	tests := map[float64]string{
		0:      "0:00",
		59.6:   "1:00",
		125:    "2:05",
		3725.2: "1:02:05",
	}
	for in, want := range tests {
		if got := formatSeconds(in); got != want {
			t.Fatalf("formatSeconds(%v) = %q, want %q", in, got, want)
		}
	}
}
