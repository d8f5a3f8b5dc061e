package reconcile

import (
	"path/filepath"
	"testing"
	"time"

	"coursetrack/internal/course"
	"coursetrack/internal/logging"
)

const root = "/courses/go"

func part(id, rel string, size int64) *course.Part {
	return &course.Part{
		ID:            id,
		FileName:      filepath.Base(rel),
		Path:          filepath.Join(root, rel),
		FileSizeBytes: size,
	}
}

func courseWith(chapters ...*course.Chapter) *course.Course {
	return &course.Course{
		RootPath:  root,
		Title:     "go",
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Status:    course.StatusInProgress,
		Chapters:  chapters,
	}
}

func chapter(id, rel string, parts ...*course.Part) *course.Chapter {
	return &course.Chapter{ID: id, Title: filepath.Base(rel), RelativePath: rel, Parts: parts}
}

func newEngine() *Engine {
	return New(DefaultFuzzyThreshold, logging.NewNop())
}

func TestMergeFirstScan(t *testing.T) {
	scanned := courseWith(chapter("c1", ".", part("n1", "a.mp4", 10)))
	res := newEngine().Merge(nil, scanned)
	if res.Merged.Status != course.StatusInProgress || res.Note != "first scan" {
		t.Fatalf("unexpected first-scan status %q note %q", res.Merged.Status, res.Note)
	}
	if len(res.UnmatchedNew) != 1 || len(res.Matches) != 0 {
		t.Fatalf("unexpected match sets: %+v", res)
	}
	if res.Merged == scanned {
		t.Fatalf("merge must not return the scanned graph itself")
	}
}

func TestExactPathWinsOverFuzzy(t *testing.T) {
	old := part("old-1", "lesson.mp4", 100)
	old.LastPositionSeconds = 42
	decoy := part("old-2", "lesson2.mp4", 100)
	existing := courseWith(chapter("c1", ".", decoy, old))

	scanned := courseWith(chapter("c2", ".", part("new-1", "lesson.mp4", 100)))
	res := newEngine().Merge(existing, scanned)

	if len(res.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(res.Matches))
	}
	m := res.Matches[0]
	if m.Tier != TierExactPath || m.Existing.ID != "old-1" {
		t.Fatalf("expected exact path match on old-1, got %s on %s", m.Tier, m.Existing.ID)
	}
	if m.Score != 1 {
		t.Fatalf("score = %v", m.Score)
	}
	if got := res.Merged.Parts()[0]; got.ID != "old-1" || got.LastPositionSeconds != 42 {
		t.Fatalf("identity not carried: %+v", got)
	}
	if len(res.UnmatchedExisting) != 1 || res.UnmatchedExisting[0].ID != "old-2" {
		t.Fatalf("expected old-2 orphaned, got %+v", res.UnmatchedExisting)
	}
}

func TestTiersInPriorityOrder(t *testing.T) {
	existing := courseWith(
		chapter("c-old", "old",
			part("p-name-size", "old/Intro.MP4", 500),
			part("p-normalized", "old/03 - Getting_Started.mp4", 700),
		),
	)
	scanned := courseWith(
		chapter("c-new", "new",
			part("x1", "new/intro.mp4", 500),
			part("x2", "new/[HD] 7 getting started.mkv", 900),
		),
	)
	res := newEngine().Merge(existing, scanned)
	if len(res.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(res.Matches))
	}
	want := map[string]Tier{"p-name-size": TierNameAndSize, "p-normalized": TierNormalizedName}
	for _, m := range res.Matches {
		if want[m.Existing.ID] != m.Tier {
			t.Fatalf("%s matched at %s", m.Existing.ID, m.Tier)
		}
	}
}

func TestRenamePreservesIdentity(t *testing.T) {
	old := part("keep-me", "A.mp4", 1000)
	old.LastPositionSeconds = 300
	existing := courseWith(chapter("c1", ".", old))
	scanned := courseWith(chapter("c1-new", ".", part("fresh", "B.mp4", 1000)))

	res := newEngine().Merge(existing, scanned)
	got := res.Merged.Parts()[0]
	if got.ID != "keep-me" || got.LastPositionSeconds != 300 {
		t.Fatalf("rename lost identity: %+v", got)
	}
	if res.Matches[0].Tier != TierFuzzy {
		t.Fatalf("expected fuzzy tier, got %s", res.Matches[0].Tier)
	}
	if res.Merged.Chapters[0].ID != "c1" {
		t.Fatalf("chapter id not carried: %s", res.Merged.Chapters[0].ID)
	}
}

func TestFuzzyThresholdBoundary(t *testing.T) {
	// "abcd" vs "abcx" scores exactly 0.75; sizes differ by more than 2%.
	tests := []struct {
		threshold float64
		matched   bool
	}{
		{threshold: 0.75, matched: true},
		{threshold: 0.76, matched: false},
	}
	for _, tt := range tests {
		existing := courseWith(chapter("c", ".", part("old", "abcd.mp4", 100)))
		scanned := courseWith(chapter("c", ".", part("new", "abcx.mp4", 200)))
		res := New(tt.threshold, nil).Merge(existing, scanned)
		if got := len(res.Matches) == 1; got != tt.matched {
			t.Fatalf("threshold %.2f: matched=%v, want %v", tt.threshold, got, tt.matched)
		}
		if !tt.matched && (len(res.UnmatchedNew) != 1 || res.UnmatchedNew[0].ID != "new") {
			t.Fatalf("threshold %.2f: expected new part unmatched", tt.threshold)
		}
	}
}

func TestFuzzyScoreBoosts(t *testing.T) {
	a := &course.Part{FileName: "alpha.mp4", FileSizeBytes: 1000}
	tests := []struct {
		name string
		b    *course.Part
		want float64
	}{
		{"same size", &course.Part{FileName: "zzzzzz.mp4", FileSizeBytes: 1000}, 0.90},
		{"within two percent", &course.Part{FileName: "zzzzzz.mp4", FileSizeBytes: 1019}, 0.85},
		{"identical names beat boost", &course.Part{FileName: "Alpha.mkv", FileSizeBytes: 5}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FuzzyScore(a, tt.b); got != tt.want {
				t.Fatalf("FuzzyScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGreedyFuzzyAssignment(t *testing.T) {
	// Both new parts prefer old "lecture one"; the first new part claims it.
	existing := courseWith(chapter("c", ".",
		part("o1", "lecture one.mp4", 10),
		part("o2", "lecture nine.mp4", 20),
	))
	scanned := courseWith(chapter("c", ".",
		part("n1", "lecture ones.mp4", 30),
		part("n2", "lecture onex.mp4", 20),
	))
	res := newEngine().Merge(existing, scanned)
	if len(res.Matches) != 2 {
		t.Fatalf("expected 2 fuzzy matches, got %d", len(res.Matches))
	}
	if res.Matches[0].New.FileName != "lecture ones.mp4" || res.Matches[0].Existing.ID != "o1" {
		t.Fatalf("first new part should claim o1, got %+v", res.Matches[0])
	}
	if res.Matches[1].Existing.ID != "o2" {
		t.Fatalf("second new part should fall back to o2")
	}
}

func TestApplyMatchCarryRules(t *testing.T) {
	dur := 60.0
	existing := &course.Part{ID: "old", LastPositionSeconds: 0, Watched: false, DurationSeconds: &dur}
	scanned := &course.Part{ID: "new", LastPositionSeconds: 12, Watched: true}
	ApplyMatch(existing, scanned)
	if scanned.ID != "old" {
		t.Fatalf("id not carried")
	}
	if scanned.LastPositionSeconds != 12 {
		t.Fatalf("zero position must not overwrite, got %v", scanned.LastPositionSeconds)
	}
	if !scanned.Watched {
		t.Fatalf("watched flag must never be cleared")
	}
	if scanned.DurationSeconds == nil || *scanned.DurationSeconds != 60 {
		t.Fatalf("duration not carried")
	}

	probed := 90.0
	other := &course.Part{DurationSeconds: &probed}
	ApplyMatch(existing, other)
	if *other.DurationSeconds != 90 {
		t.Fatalf("scanned duration must win")
	}
}

func TestDecisionPolicy(t *testing.T) {
	tests := []struct {
		name    string
		matched int
		total   int
		status  course.Status
	}{
		{"changed", 1, 3, course.StatusChanged},
		{"partial", 1, 2, course.StatusInProgress},
		{"mostly", 20, 20, course.StatusInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var oldParts, newParts []*course.Part
			for i := 0; i < tt.total; i++ {
				name := string(rune('a'+i)) + ".mp4"
				if i < tt.matched {
					oldParts = append(oldParts, part("o"+name, name, int64(i+1)))
				}
				// Distinct sizes and names so only exact path can match.
				newParts = append(newParts, part("n"+name, name, int64(i+1)))
			}
			for i := tt.matched; i < tt.total; i++ {
				newParts[i].FileName = "zz" + newParts[i].FileName
				newParts[i].Path = filepath.Join(root, "unrelated", newParts[i].FileName)
				newParts[i].FileSizeBytes = int64(1000 * (i + 1))
			}
			existing := courseWith(chapter("c", ".", oldParts...))
			scanned := courseWith(chapter("c", ".", newParts...))
			res := newEngine().Merge(existing, scanned)
			if res.Merged.Status != tt.status {
				t.Fatalf("status = %q (pct %.2f)", res.Merged.Status, res.MatchedPercent)
			}
			if res.Note == "" {
				t.Fatalf("expected a note")
			}
		})
	}
}

func TestMergeCompletesWhenAllWatched(t *testing.T) {
	old := part("o", "a.mp4", 10)
	old.Watched = true
	res := newEngine().Merge(courseWith(chapter("c", ".", old)), courseWith(chapter("c", ".", part("n", "a.mp4", 10))))
	if res.Merged.Status != course.StatusCompleted {
		t.Fatalf("status = %q", res.Merged.Status)
	}
}

func TestMergeCarriesCourseFields(t *testing.T) {
	kept := part("kept", "a.mp4", 10)
	gone := part("gone", "b.mp4", 20)
	existing := courseWith(chapter("c", ".", kept, gone))
	existing.Title = "Custom Title"
	existing.Resume = &course.ResumeMarker{PartID: "kept", PositionSeconds: 5}

	scanned := courseWith(chapter("c", ".", part("n", "a.mp4", 10)))
	scanned.Title = "go"
	scanned.CreatedAt = time.Now()
	res := newEngine().Merge(existing, scanned)
	if res.Merged.Title != "Custom Title" || !res.Merged.CreatedAt.Equal(existing.CreatedAt) {
		t.Fatalf("course fields not carried: %+v", res.Merged)
	}
	if res.Merged.Resume == nil || res.Merged.Resume.PartID != "kept" {
		t.Fatalf("resume marker should survive")
	}

	existing.Resume = &course.ResumeMarker{PartID: "gone", PositionSeconds: 5}
	res = newEngine().Merge(existing, scanned)
	if res.Merged.Resume != nil {
		t.Fatalf("resume marker for orphaned part must be dropped")
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	old := part("o", "a.mp4", 10)
	old.LastPositionSeconds = 7
	existing := courseWith(chapter("c", ".", old))
	scanned := courseWith(chapter("c2", ".", part("n", "a.mp4", 10)))
	newEngine().Merge(existing, scanned)
	if scanned.Chapters[0].Parts[0].ID != "n" || scanned.Chapters[0].ID != "c2" {
		t.Fatalf("scanned input was mutated")
	}
	if existing.Chapters[0].Parts[0].LastPositionSeconds != 7 {
		t.Fatalf("existing input was mutated")
	}
}

func TestMatchedPercentEmpty(t *testing.T) {
	if got := matchedPercent(0, 0, 0); got != 1 {
		t.Fatalf("empty/empty = %v", got)
	}
	if got := matchedPercent(0, 0, 3); got != 0 {
		t.Fatalf("empty new with old parts = %v", got)
	}
}

func TestEndToEndFuzzyRename(t *testing.T) {
	welcome := part("welcome-id", "01 Intro/01 Welcome.mp4", 500)
	welcome.Watched = true
	welcome.LastPositionSeconds = 100
	setup := part("setup-id", "01 Intro/02 Setup.mp4", 800)
	existing := courseWith(chapter("intro", "01 Intro", welcome, setup))

	scanned := courseWith(chapter("x", "01 Intro",
		part("fresh-1", "01 Intro/Welcome (final).mp4", 500),
		part("fresh-2", "01 Intro/02 Setup.mp4", 800),
	))
	res := newEngine().Merge(existing, scanned)
	got, _ := res.Merged.FindPart("welcome-id")
	if got == nil || got.FileName != "Welcome (final).mp4" || !got.Watched {
		t.Fatalf("renamed part lost identity: %+v", got)
	}
	if len(res.UnmatchedNew) != 0 || len(res.UnmatchedExisting) != 0 {
		t.Fatalf("expected full match, got new=%d old=%d", len(res.UnmatchedNew), len(res.UnmatchedExisting))
	}
}
