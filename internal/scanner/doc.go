// Package scanner walks a course root and builds the ordered
// course/chapter/part tree.
//
// A directory becomes a chapter only when it directly contains at least one
// file with an allowed extension. Directories are visited at most once per
// scan by canonical path, symlinked directories are skipped outright, and
// unreadable or vanished subtrees are logged and skipped without failing the
// scan. Optional duration probing runs with bounded concurrency after the walk
// and records an unknown duration on failure.
package scanner
