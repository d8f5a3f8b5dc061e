package textutil

import "strings"

// SanitizeToken converts a free-form label to a lowercase filesystem-safe
// token. Letters are lowercased, digits and hyphens are kept, everything else
// becomes an underscore, and runs of underscores collapse. Returns fallback
// when nothing usable remains.
func SanitizeToken(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	var b strings.Builder
	lastUnderscore := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return fallback
	}
	return out
}
