// Package textutil provides the filename text processing shared by scanning
// and reconciliation.
//
// The primary use cases are:
//   - Extracting positional indices from file and folder names
//   - Normalizing filenames into comparable keys (tag, number, and punctuation stripped)
//   - Computing Levenshtein-based similarity between normalized names
//   - Sanitizing free-form labels into filesystem-safe tokens
//
// Comparisons apply Unicode NFC normalization and case folding so names that
// differ only in composition or case (common on macOS volumes) compare equal.
package textutil
