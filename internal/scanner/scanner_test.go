package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"coursetrack/internal/course"
	"coursetrack/internal/logging"
	"coursetrack/internal/testsupport"
)

type stubProber struct {
	mu        sync.Mutex
	durations map[string]float64
	calls     int
}

func (s *stubProber) ProbeDuration(_ context.Context, path string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if d, ok := s.durations[filepath.Base(path)]; ok {
		return d, nil
	}
	return 0, errors.New("no duration")
}

func newTestScanner(t *testing.T, prober DurationProber) *Scanner {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	s := New(cfg, prober, logging.NewNop())
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return s
}

func partNames(ch *course.Chapter) []string {
	names := make([]string, 0, len(ch.Parts))
	for _, p := range ch.Parts {
		names = append(names, p.FileName)
	}
	return names
}

func TestScanBuildsOrderedChapters(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Go Course")
	testsupport.WriteFile(t, filepath.Join(root, "intro.mp4"), 10)
	testsupport.WriteFile(t, filepath.Join(root, "10 - Advanced", "2 Channels.mkv"), 20)
	testsupport.WriteFile(t, filepath.Join(root, "10 - Advanced", "1 Goroutines.mkv"), 30)
	testsupport.WriteFile(t, filepath.Join(root, "2 - Basics", "10 Maps.MP4"), 40)
	testsupport.WriteFile(t, filepath.Join(root, "2 - Basics", "9 Slices.mp4"), 50)
	testsupport.WriteFile(t, filepath.Join(root, "2 - Basics", "notes.txt"), 5)

	s := newTestScanner(t, nil)
	c, err := s.Scan(context.Background(), Options{Root: root, MaxDepth: 5})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if c.Title != "Go Course" {
		t.Fatalf("title = %q", c.Title)
	}
	if c.Status != course.StatusInProgress {
		t.Fatalf("status = %q", c.Status)
	}
	if len(c.Chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(c.Chapters))
	}

	// Root chapter order falls back to its first part index (sequential = 1).
	wantTitles := []string{"Go Course", "2 - Basics", "10 - Advanced"}
	for i, want := range wantTitles {
		if got := c.Chapters[i].Title; got != want {
			t.Fatalf("chapter %d title = %q, want %q", i, got, want)
		}
	}
	if c.Chapters[0].RelativePath != "." {
		t.Fatalf("root chapter relative path = %q", c.Chapters[0].RelativePath)
	}

	basics := c.Chapters[1]
	if got := strings.Join(partNames(basics), ","); got != "9 Slices.mp4,10 Maps.MP4" {
		t.Fatalf("basics order = %s", got)
	}
	if basics.Parts[1].Title != "10 Maps" {
		t.Fatalf("title = %q", basics.Parts[1].Title)
	}
	if basics.Parts[0].FileSizeBytes != 50 {
		t.Fatalf("size = %d", basics.Parts[0].FileSizeBytes)
	}
	if c.PartCount() != 5 {
		t.Fatalf("part count = %d", c.PartCount())
	}
	if c.TotalDurationSeconds != nil {
		t.Fatalf("expected nil total duration without probing")
	}
}

func TestScanAssignsSequentialIndicesWhenNamesHaveNoNumbers(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "beta.mp4"), 1)
	testsupport.WriteFile(t, filepath.Join(root, "Alpha.mp4"), 1)
	testsupport.WriteFile(t, filepath.Join(root, "gamma.mkv"), 1)

	c, err := newTestScanner(t, nil).Scan(context.Background(), Options{Root: root, MaxDepth: 1})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	parts := c.Chapters[0].Parts
	want := []string{"Alpha.mp4", "beta.mp4", "gamma.mkv"}
	for i, p := range parts {
		if p.FileName != want[i] {
			t.Fatalf("part %d = %q, want %q", i, p.FileName, want[i])
		}
		if p.Index == nil || *p.Index != i+1 {
			t.Fatalf("part %d index = %v", i, p.Index)
		}
	}
}

func TestScanSkipsDirectoriesWithoutVideos(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "docs", "readme.md"), 1)
	testsupport.WriteFile(t, filepath.Join(root, "1 Lesson", "a.webm"), 1)

	c, err := newTestScanner(t, nil).Scan(context.Background(), Options{Root: root, MaxDepth: 3})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(c.Chapters) != 1 || c.Chapters[0].Title != "1 Lesson" {
		t.Fatalf("unexpected chapters: %+v", c.Chapters)
	}
}

func TestScanHonorsMaxDepth(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a.mp4"), 1)
	testsupport.WriteFile(t, filepath.Join(root, "one", "b.mp4"), 1)
	testsupport.WriteFile(t, filepath.Join(root, "one", "two", "c.mp4"), 1)

	tests := []struct {
		depth int
		parts int
	}{
		{depth: 0, parts: 1},
		{depth: 1, parts: 2},
		{depth: 2, parts: 3},
	}
	for _, tt := range tests {
		c, err := newTestScanner(t, nil).Scan(context.Background(), Options{Root: root, MaxDepth: tt.depth})
		if err != nil {
			t.Fatalf("Scan depth %d: %v", tt.depth, err)
		}
		if got := c.PartCount(); got != tt.parts {
			t.Fatalf("depth %d: part count = %d, want %d", tt.depth, got, tt.parts)
		}
	}
}

func TestScanIgnoresMetadataFolderAndSymlinkCycles(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "1 Start", "a.mp4"), 1)
	testsupport.WriteFile(t, filepath.Join(root, ".coursetrack", "cache.mp4"), 1)
	if err := os.Symlink(root, filepath.Join(root, "1 Start", "loop")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	c, err := newTestScanner(t, nil).Scan(context.Background(), Options{Root: root, MaxDepth: 10})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if c.PartCount() != 1 {
		t.Fatalf("expected 1 part, got %d", c.PartCount())
	}
}

func TestScanSkipsUnreadableSubtree(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "ok", "a.mp4"), 1)
	testsupport.WriteFile(t, filepath.Join(root, "locked", "b.mp4"), 1)

	s := newTestScanner(t, nil)
	s.readable = func(path string) error {
		if filepath.Base(path) == "locked" {
			return os.ErrPermission
		}
		return nil
	}
	c, err := s.Scan(context.Background(), Options{Root: root, MaxDepth: 2})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if c.PartCount() != 1 || c.Chapters[0].Title != "ok" {
		t.Fatalf("unexpected scan result: %d parts", c.PartCount())
	}
}

func TestScanProbesDurations(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "1 a.mp4"), 1)
	testsupport.WriteFile(t, filepath.Join(root, "2 b.mp4"), 1)

	prober := &stubProber{durations: map[string]float64{"1 a.mp4": 120}}
	c, err := newTestScanner(t, prober).Scan(context.Background(), Options{Root: root, ProbeDurations: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if prober.calls != 2 {
		t.Fatalf("expected 2 probe calls, got %d", prober.calls)
	}
	parts := c.Parts()
	if parts[0].DurationSeconds == nil || *parts[0].DurationSeconds != 120 {
		t.Fatalf("expected probed duration, got %v", parts[0].DurationSeconds)
	}
	if parts[1].DurationSeconds != nil {
		t.Fatalf("failed probe should leave duration nil")
	}
	if c.TotalDurationSeconds == nil || *c.TotalDurationSeconds != 120 {
		t.Fatalf("total duration = %v", c.TotalDurationSeconds)
	}
}

func TestScanRejectsMissingOrFileRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "video.mp4")
	testsupport.WriteFile(t, file, 1)

	s := newTestScanner(t, nil)
	for _, root := range []string{"", filepath.Join(dir, "missing"), file} {
		if _, err := s.Scan(context.Background(), Options{Root: root}); err == nil {
			t.Fatalf("expected error for root %q", root)
		}
	}
}

func TestScanAssignsUniqueIDs(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a.mp4"), 1)
	testsupport.WriteFile(t, filepath.Join(root, "x", "b.mp4"), 1)

	cfg := testsupport.NewConfig(t)
	c, err := New(cfg, nil, nil).Scan(context.Background(), OptionsFromConfig(cfg, root))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
