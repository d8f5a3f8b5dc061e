// Package repository persists course graphs inside each course's metadata
// folder.
//
// Two backends share one contract: JSONStore writes a single course.json via
// temp-file-then-rename, SQLiteStore keeps a per-course course.db. Both keep
// timestamped snapshots under <metadata>/backups and prune them to the
// configured retention. Load reports an absent course as (nil, nil) so callers
// treat it as a first scan.
//
// Locks serializes writers per course root. Callers that load, modify and save
// hold the root's lock for the whole cycle.
package repository
