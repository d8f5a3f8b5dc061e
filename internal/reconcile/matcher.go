package reconcile

import (
	"strconv"

	"coursetrack/internal/course"
	"coursetrack/internal/textutil"
)

// matcher tracks which parts each tier has already claimed.
type matcher struct {
	oldParts  []*course.Part
	newParts  []*course.Part
	oldUsed   []bool
	newUsed   []bool
	threshold float64
	matches   []Match
}

func newMatcher(oldParts, newParts []*course.Part, threshold float64) *matcher {
	return &matcher{
		oldParts:  oldParts,
		newParts:  newParts,
		oldUsed:   make([]bool, len(oldParts)),
		newUsed:   make([]bool, len(newParts)),
		threshold: threshold,
	}
}

func (m *matcher) run() {
	m.matchByKey(TierExactPath, func(p *course.Part) string {
		return course.NormalizePath(p.Path)
	})
	m.matchByKey(TierNameAndSize, func(p *course.Part) string {
		return textutil.FoldKey(p.FileName) + "\x00" + strconv.FormatInt(p.FileSizeBytes, 10)
	})
	m.matchByKey(TierNormalizedName, func(p *course.Part) string {
		return textutil.NormalizeName(p.FileName)
	})
	m.matchFuzzy()
}

// matchByKey pairs each unmatched new part with the first unmatched old part
// sharing its key. Empty keys never match.
func (m *matcher) matchByKey(tier Tier, key func(*course.Part) string) {
	index := make(map[string][]int)
	for i, p := range m.oldParts {
		if m.oldUsed[i] {
			continue
		}
		k := key(p)
		if k == "" {
			continue
		}
		index[k] = append(index[k], i)
	}
	for j, p := range m.newParts {
		if m.newUsed[j] {
			continue
		}
		k := key(p)
		if k == "" {
			continue
		}
		candidates := index[k]
		for len(candidates) > 0 && m.oldUsed[candidates[0]] {
			candidates = candidates[1:]
		}
		index[k] = candidates
		if len(candidates) == 0 {
			continue
		}
		m.claim(candidates[0], j, tier, 1)
	}
}

// matchFuzzy assigns each new part, in order, to its single best remaining old
// part. Ties keep the earliest old part.
func (m *matcher) matchFuzzy() {
	for j, np := range m.newParts {
		if m.newUsed[j] {
			continue
		}
		best := -1
		bestScore := 0.0
		for i, op := range m.oldParts {
			if m.oldUsed[i] {
				continue
			}
			score := FuzzyScore(op, np)
			if best < 0 || score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best >= 0 && bestScore >= m.threshold {
			m.claim(best, j, TierFuzzy, bestScore)
		}
	}
}

func (m *matcher) claim(oldIdx, newIdx int, tier Tier, score float64) {
	m.oldUsed[oldIdx] = true
	m.newUsed[newIdx] = true
	m.matches = append(m.matches, Match{
		Existing: m.oldParts[oldIdx],
		New:      m.newParts[newIdx],
		Tier:     tier,
		Score:    score,
	})
}

func (m *matcher) unmatchedOld() []*course.Part {
	var out []*course.Part
	for i, p := range m.oldParts {
		if !m.oldUsed[i] {
			out = append(out, p)
		}
	}
	return out
}

func (m *matcher) unmatchedNew() []*course.Part {
	var out []*course.Part
	for j, p := range m.newParts {
		if !m.newUsed[j] {
			out = append(out, p)
		}
	}
	return out
}
