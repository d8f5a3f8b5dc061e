package course

import "math"

// ApplyPosition records a playback position on the part and flags it watched
// once the position reaches the watched threshold. An already watched part
// stays watched.
func (p *Part) ApplyPosition(seconds float64) {
	if p == nil {
		return
	}
	if !ValidPosition(seconds) {
		seconds = 0
	}
	p.LastPositionSeconds = seconds
	if IsWatchedAt(seconds, p.DurationSeconds) {
		p.Watched = true
	}
}

// ValidPosition reports whether seconds is a finite, non-negative playback
// position.
func ValidPosition(seconds float64) bool {
	return seconds >= 0 && !math.IsInf(seconds, 1)
}

// MarkWatched forces the watched flag and clamps the position up to the known
// duration.
func (p *Part) MarkWatched() {
	if p == nil {
		return
	}
	p.Watched = true
	if p.DurationSeconds != nil {
		p.LastPositionSeconds = math.Max(p.LastPositionSeconds, *p.DurationSeconds)
	}
}

// SetResume points the course resume marker at partID.
func (c *Course) SetResume(partID string, seconds float64) {
	c.Resume = &ResumeMarker{PartID: partID, PositionSeconds: seconds}
}

// ClearResumeIf drops the resume marker when it points at partID.
func (c *Course) ClearResumeIf(partID string) bool {
	if c.Resume != nil && c.Resume.PartID == partID {
		c.Resume = nil
		return true
	}
	return false
}
