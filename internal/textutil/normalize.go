package textutil

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	leadingTagPattern    = regexp.MustCompile(`^\s*(\[[^\]]*\]|\([^)]*\))\s*`)
	leadingNumberPattern = regexp.MustCompile(`^\s*\d+`)
)

// FoldKey returns a case-folded, NFC-normalized form of s for case-insensitive
// equality checks.
func FoldKey(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// EqualFold reports whether a and b are equal under Unicode case folding.
func EqualFold(a, b string) bool {
	return FoldKey(a) == FoldKey(b)
}

// CompareFold orders a and b case-insensitively, breaking ties ordinally.
func CompareFold(a, b string) int {
	if c := strings.Compare(FoldKey(a), FoldKey(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// StripExtension removes the final extension from name.
func StripExtension(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// NormalizeName reduces a filename to a comparison key: the extension, one
// leading bracketed or parenthesized tag, and one leading numeric prefix are
// removed, runs of non-alphanumeric characters collapse to a single space, and
// the result is case folded.
//
//	"[Udemy] 03 - Getting_Started.mp4" -> "getting started"
func NormalizeName(name string) string {
	base := norm.NFC.String(StripExtension(name))
	base = leadingTagPattern.ReplaceAllString(base, "")
	base = leadingNumberPattern.ReplaceAllString(base, "")

	var b strings.Builder
	b.Grow(len(base))
	pendingSpace := false
	for _, r := range base {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return cases.Fold().String(b.String())
}
