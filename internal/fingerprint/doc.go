// Package fingerprint computes deterministic fingerprints for course folders.
//
// The fingerprint is a SHA-256 over the sorted manifest of playable files
// (relative path, size, modification time). It gates reconciliation: an equal
// fingerprint means nothing on disk changed since the last sync. File contents
// are never read.
package fingerprint
