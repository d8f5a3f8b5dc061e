package reconcile

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"coursetrack/internal/course"
	"coursetrack/internal/logging"
	"coursetrack/internal/textutil"
)

// DefaultFuzzyThreshold is the minimum tier-4 score accepted as a match.
const DefaultFuzzyThreshold = 0.75

// Decision policy bounds on MatchedPercent.
const (
	ChangedBelow       = 0.50
	MostlyMatchedAbove = 0.95
)

const (
	sameSizeBoost   = 0.90
	nearSizeBoost   = 0.85
	nearSizeRelDiff = 0.02
)

// Match pairs a previously known part with its newly scanned counterpart.
type Match struct {
	Existing *course.Part
	New      *course.Part
	Tier     Tier
	Score    float64
}

// Result is the outcome of one merge.
type Result struct {
	Merged            *course.Course
	Matches           []Match
	UnmatchedExisting []*course.Part
	UnmatchedNew      []*course.Part
	MatchedPercent    float64
	Note              string
}

// Engine merges scanned courses into persisted ones.
type Engine struct {
	threshold float64
	logger    *slog.Logger
}

// New constructs an engine. A threshold outside (0, 1] falls back to
// DefaultFuzzyThreshold.
func New(threshold float64, logger *slog.Logger) *Engine {
	if threshold <= 0 || threshold > 1 || math.IsNaN(threshold) {
		threshold = DefaultFuzzyThreshold
	}
	return &Engine{
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "reconcile"),
	}
}

// Threshold returns the fuzzy acceptance threshold.
func (e *Engine) Threshold() float64 { return e.threshold }

// Merge reconciles scanned against existing. existing may be nil for a first
// scan. The returned course is a new graph; neither input is modified.
func (e *Engine) Merge(existing, scanned *course.Course) Result {
	merged := scanned.Clone()
	if merged == nil {
		merged = &course.Course{Status: course.StatusInProgress, Chapters: []*course.Chapter{}}
	}
	if existing == nil {
		merged.Status = course.StatusInProgress
		merged.StatusNote = "first scan"
		merged.RecomputeAggregates()
		res := Result{
			Merged:         merged,
			UnmatchedNew:   merged.Parts(),
			MatchedPercent: matchedPercent(0, merged.PartCount(), 0),
			Note:           merged.StatusNote,
		}
		e.logDecision(merged, res)
		return res
	}

	oldParts := existing.Parts()
	newParts := merged.Parts()
	m := newMatcher(oldParts, newParts, e.threshold)
	m.run()

	for _, match := range m.matches {
		ApplyMatch(match.Existing, match.New)
	}
	carryChapterIDs(existing, merged)
	carryCourseFields(existing, merged)
	merged.RecomputeAggregates()

	res := Result{
		Merged:            merged,
		Matches:           m.matches,
		UnmatchedExisting: m.unmatchedOld(),
		UnmatchedNew:      m.unmatchedNew(),
		MatchedPercent:    matchedPercent(len(m.matches), len(newParts), len(oldParts)),
	}
	applyDecision(merged, res.MatchedPercent)
	res.Note = merged.StatusNote
	e.logDecision(merged, res)
	return res
}

// ApplyMatch carries identity and progress from existing onto scanned. A
// zero position never overwrites, a watched flag is never cleared, and a
// known duration fills in only when the scan lacks one.
func ApplyMatch(existing, scanned *course.Part) {
	if existing == nil || scanned == nil {
		return
	}
	scanned.ID = existing.ID
	if existing.LastPositionSeconds != 0 {
		scanned.LastPositionSeconds = existing.LastPositionSeconds
	}
	if existing.Watched {
		scanned.Watched = true
	}
	if scanned.DurationSeconds == nil && existing.DurationSeconds != nil {
		d := *existing.DurationSeconds
		scanned.DurationSeconds = &d
	}
}

// FuzzyScore returns the tier-4 score for two parts: normalized-name
// similarity, raised to 0.90 for identical sizes or 0.85 for sizes within 2%.
func FuzzyScore(a, b *course.Part) float64 {
	na := textutil.NormalizeName(a.FileName)
	nb := textutil.NormalizeName(b.FileName)
	score := 0.0
	if na != "" && nb != "" {
		score = textutil.Similarity(na, nb)
	}
	switch {
	case a.FileSizeBytes == b.FileSizeBytes:
		score = math.Max(score, sameSizeBoost)
	case sizesNear(a.FileSizeBytes, b.FileSizeBytes):
		score = math.Max(score, nearSizeBoost)
	}
	return score
}

func sizesNear(a, b int64) bool {
	larger := max(a, b)
	if larger <= 0 {
		return false
	}
	diff := math.Abs(float64(a - b))
	return diff/float64(larger) < nearSizeRelDiff
}

func matchedPercent(matched, newCount, oldCount int) float64 {
	if newCount == 0 {
		if oldCount == 0 {
			return 1
		}
		return 0
	}
	return float64(matched) / float64(newCount)
}

func applyDecision(c *course.Course, pct float64) {
	label := formatPercent(pct)
	switch {
	case pct < ChangedBelow:
		c.Status = course.StatusChanged
		c.StatusNote = fmt.Sprintf("only %s of files matched previous metadata; review progress manually", label)
	case pct < MostlyMatchedAbove:
		c.Status = course.StatusInProgress
		c.StatusNote = fmt.Sprintf("partial match: %s of files matched previous metadata", label)
	default:
		c.Status = course.StatusInProgress
		c.StatusNote = fmt.Sprintf("mostly matched: %s of files matched previous metadata", label)
	}
	if c.Status != course.StatusChanged && c.AllWatched() {
		c.Status = course.StatusCompleted
	}
}

func formatPercent(pct float64) string {
	return strconv.FormatFloat(pct*100, 'f', 0, 64) + "%"
}

func carryChapterIDs(existing, merged *course.Course) {
	byPath := make(map[string]string, len(existing.Chapters))
	for _, ch := range existing.Chapters {
		byPath[ch.RelativePath] = ch.ID
	}
	for _, ch := range merged.Chapters {
		if id, ok := byPath[ch.RelativePath]; ok && id != "" {
			ch.ID = id
		}
	}
}

func carryCourseFields(existing, merged *course.Course) {
	if !existing.CreatedAt.IsZero() {
		merged.CreatedAt = existing.CreatedAt
	}
	if existing.Title != "" {
		merged.Title = existing.Title
	}
	merged.Resume = nil
	if existing.Resume != nil {
		if p, _ := merged.FindPart(existing.Resume.PartID); p != nil {
			marker := *existing.Resume
			merged.Resume = &marker
		}
	}
}

func (e *Engine) logDecision(c *course.Course, res Result) {
	result := string(c.Status)
	attrs := logging.DecisionAttrs("reconcile_status", result, res.Note)
	attrs = append(attrs,
		logging.String(logging.FieldCourseRoot, c.RootPath),
		logging.String(logging.FieldEventType, "merge_completed"),
		logging.Int("matched", len(res.Matches)),
		logging.Int("unmatched_existing", len(res.UnmatchedExisting)),
		logging.Int("unmatched_new", len(res.UnmatchedNew)),
		logging.Float64("matched_percent", res.MatchedPercent),
	)
	for tier, n := range tierCounts(res.Matches) {
		attrs = append(attrs, logging.Int("matched_"+tier.String(), n))
	}
	e.logger.Info("course reconciled", logging.Args(attrs...)...)
	if len(res.UnmatchedExisting) > 0 {
		logging.WarnWithContext(e.logger, "previously tracked videos no longer found", "progress_orphaned",
			logging.String(logging.FieldCourseRoot, c.RootPath),
			logging.Int("orphaned_parts", len(res.UnmatchedExisting)),
			logging.String(logging.FieldErrorHint, "restore the files or rename them closer to their previous names"),
			logging.String(logging.FieldImpact, "watch progress for these videos is not carried forward"))
	}
}

func tierCounts(matches []Match) map[Tier]int {
	out := make(map[Tier]int)
	for _, m := range matches {
		out[m.Tier]++
	}
	return out
}
