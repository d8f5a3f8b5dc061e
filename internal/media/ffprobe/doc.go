// Package ffprobe wraps ffprobe to read container durations for playable
// files.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Prober: a per-file duration probe with a deadline, used by the scanner
//
// Probing is best-effort: callers record an unknown duration when Inspect
// fails rather than failing the surrounding scan.
package ffprobe
