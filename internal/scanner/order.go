package scanner

import (
	"cmp"
	"math"
	"slices"

	"coursetrack/internal/course"
	"coursetrack/internal/textutil"
)

// assignIndices extracts an index from each file name. When no file in the
// chapter yields one, indices follow case-insensitive filename order.
func assignIndices(parts []*course.Part) {
	found := false
	for _, p := range parts {
		if n, ok := textutil.ExtractIndex(p.FileName); ok {
			p.Index = course.IntPtr(n)
			found = true
		}
	}
	if found {
		return
	}
	byName := slices.Clone(parts)
	slices.SortStableFunc(byName, func(a, b *course.Part) int {
		return textutil.CompareFold(a.FileName, b.FileName)
	})
	for i, p := range byName {
		p.Index = course.IntPtr(i + 1)
	}
}

// sortParts orders by (Index, FileName case-insensitive). Parts without an
// index sort last.
func sortParts(parts []*course.Part) {
	slices.SortStableFunc(parts, func(a, b *course.Part) int {
		if c := cmp.Compare(orderKey(a.Index), orderKey(b.Index)); c != 0 {
			return c
		}
		return textutil.CompareFold(a.FileName, b.FileName)
	})
}

// sortChapters orders by (Order, Title). Chapters without an order sort last.
func sortChapters(chapters []*course.Chapter) {
	slices.SortStableFunc(chapters, func(a, b *course.Chapter) int {
		if c := cmp.Compare(orderKey(a.Order), orderKey(b.Order)); c != 0 {
			return c
		}
		return textutil.CompareFold(a.Title, b.Title)
	})
}

func minIndex(parts []*course.Part) *int {
	var out *int
	for _, p := range parts {
		if p.Index == nil {
			continue
		}
		if out == nil || *p.Index < *out {
			out = course.IntPtr(*p.Index)
		}
	}
	return out
}

func orderKey(v *int) int {
	if v == nil {
		return math.MaxInt
	}
	return *v
}
