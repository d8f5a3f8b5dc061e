package textutil

import (
	"regexp"
	"strconv"
)

var (
	taggedIndexPattern  = regexp.MustCompile(`^\s*\[[^\]]*\]\s*(\d+)`)
	leadingIndexPattern = regexp.MustCompile(`^\s*(\d+)`)
	anyNumberPattern    = regexp.MustCompile(`(\d+)`)
)

// ExtractIndex derives a positional index from a file name. It tries, in
// order, a number right after a leading bracketed tag ("[Tag] 07 ..."), a
// leading number, and the first number anywhere in the name. The extension is
// ignored.
func ExtractIndex(fileName string) (int, bool) {
	base := StripExtension(fileName)
	for _, pattern := range []*regexp.Regexp{taggedIndexPattern, leadingIndexPattern, anyNumberPattern} {
		if n, ok := matchNumber(pattern, base); ok {
			return n, true
		}
	}
	return 0, false
}

// LeadingIndex derives an order from a directory name using only a tagged or
// leading number.
func LeadingIndex(name string) (int, bool) {
	for _, pattern := range []*regexp.Regexp{taggedIndexPattern, leadingIndexPattern} {
		if n, ok := matchNumber(pattern, name); ok {
			return n, true
		}
	}
	return 0, false
}

func matchNumber(pattern *regexp.Regexp, s string) (int, bool) {
	m := pattern.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
