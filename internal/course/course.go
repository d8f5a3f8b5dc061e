package course

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"
)

// Status is the advisory lifecycle state of a course.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusChanged    Status = "changed"
	StatusCompleted  Status = "completed"
)

// WatchedRatio is the fraction of a part's duration that counts as fully watched.
const WatchedRatio = 0.95

// ResumeMarker records where playback should resume for a course.
type ResumeMarker struct {
	PartID          string  `json:"part_id"`
	PositionSeconds float64 `json:"position_seconds"`
}

// Course is one scanned folder tree of video content.
type Course struct {
	RootPath             string        `json:"root_path"`
	Title                string        `json:"title"`
	CreatedAt            time.Time     `json:"created_at"`
	LastScanAt           time.Time     `json:"last_scan_at"`
	Fingerprint          string        `json:"fingerprint"`
	TotalDurationSeconds *float64      `json:"total_duration_seconds,omitempty"`
	WatchedSeconds       float64       `json:"watched_seconds"`
	Status               Status        `json:"status"`
	StatusNote           string        `json:"status_note,omitempty"`
	Resume               *ResumeMarker `json:"resume,omitempty"`
	Chapters             []*Chapter    `json:"chapters"`
}

// Chapter is a directory node grouping parts.
type Chapter struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	RelativePath string  `json:"relative_path"`
	Order        *int    `json:"order,omitempty"`
	Parts        []*Part `json:"parts"`
}

// Part is one playable video file with progress and identity metadata.
type Part struct {
	ID                  string   `json:"id"`
	FileName            string   `json:"file_name"`
	Path                string   `json:"path"`
	Index               *int     `json:"index,omitempty"`
	Title               string   `json:"title"`
	DurationSeconds     *float64 `json:"duration_seconds,omitempty"`
	FileSizeBytes       int64    `json:"file_size_bytes"`
	LastPositionSeconds float64  `json:"last_position_seconds"`
	Watched             bool     `json:"watched"`
}

// Parts returns every part of the course in chapter order.
func (c *Course) Parts() []*Part {
	if c == nil {
		return nil
	}
	var parts []*Part
	for _, ch := range c.Chapters {
		parts = append(parts, ch.Parts...)
	}
	return parts
}

// PartCount returns the number of parts across all chapters.
func (c *Course) PartCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, ch := range c.Chapters {
		n += len(ch.Parts)
	}
	return n
}

// FindPart returns the part with the given identifier and its chapter.
func (c *Course) FindPart(id string) (*Part, *Chapter) {
	if c == nil || id == "" {
		return nil, nil
	}
	for _, ch := range c.Chapters {
		for _, p := range ch.Parts {
			if p.ID == id {
				return p, ch
			}
		}
	}
	return nil, nil
}

// FindPartByPath returns the part whose normalized absolute path equals path.
func (c *Course) FindPartByPath(path string) *Part {
	if c == nil || path == "" {
		return nil
	}
	target := NormalizePath(path)
	for _, ch := range c.Chapters {
		for _, p := range ch.Parts {
			if NormalizePath(p.Path) == target {
				return p
			}
		}
	}
	return nil
}

// RecomputeWatchedSeconds sums min(position, duration) over all parts. Parts
// without a known duration contribute their full position.
func (c *Course) RecomputeWatchedSeconds() float64 {
	if c == nil {
		return 0
	}
	var total float64
	for _, p := range c.Parts() {
		pos := p.LastPositionSeconds
		if p.DurationSeconds != nil {
			pos = math.Min(pos, *p.DurationSeconds)
		}
		total += pos
	}
	c.WatchedSeconds = total
	return total
}

// RecomputeTotalDuration sums known part durations. The total stays nil when
// no part has been probed.
func (c *Course) RecomputeTotalDuration() *float64 {
	if c == nil {
		return nil
	}
	var total float64
	known := false
	for _, p := range c.Parts() {
		if p.DurationSeconds != nil {
			total += *p.DurationSeconds
			known = true
		}
	}
	if !known {
		c.TotalDurationSeconds = nil
		return nil
	}
	c.TotalDurationSeconds = &total
	return c.TotalDurationSeconds
}

// RecomputeAggregates refreshes the watched-seconds and total-duration fields.
func (c *Course) RecomputeAggregates() {
	c.RecomputeWatchedSeconds()
	c.RecomputeTotalDuration()
}

// AllWatched reports whether the course has parts and every one is watched.
func (c *Course) AllWatched() bool {
	parts := c.Parts()
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if !p.Watched {
			return false
		}
	}
	return true
}

// Validate checks structural invariants: a root path is set and part and
// chapter identifiers are unique.
func (c *Course) Validate() error {
	if c == nil {
		return errors.New("course is nil")
	}
	if c.RootPath == "" {
		return errors.New("course root path is empty")
	}
	chapterIDs := make(map[string]struct{}, len(c.Chapters))
	partIDs := make(map[string]struct{})
	for _, ch := range c.Chapters {
		if ch == nil {
			return errors.New("course contains a nil chapter")
		}
		if _, dup := chapterIDs[ch.ID]; dup {
			return fmt.Errorf("duplicate chapter id %q", ch.ID)
		}
		chapterIDs[ch.ID] = struct{}{}
		for _, p := range ch.Parts {
			if p == nil {
				return fmt.Errorf("chapter %q contains a nil part", ch.ID)
			}
			if p.ID == "" {
				return fmt.Errorf("part %q has no id", p.FileName)
			}
			if _, dup := partIDs[p.ID]; dup {
				return fmt.Errorf("duplicate part id %q", p.ID)
			}
			partIDs[p.ID] = struct{}{}
		}
	}
	return nil
}

// WatchedThresholdSeconds returns the position at which a part of the given
// duration counts as watched.
func WatchedThresholdSeconds(duration float64) float64 {
	return math.Round(duration * WatchedRatio)
}

// IsWatchedAt reports whether position reaches the watched threshold for a
// known duration. Unknown durations never qualify.
func IsWatchedAt(position float64, duration *float64) bool {
	if duration == nil || *duration <= 0 {
		return false
	}
	return position >= WatchedThresholdSeconds(*duration)
}

// NormalizePath cleans path and makes it absolute for equality comparisons.
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
