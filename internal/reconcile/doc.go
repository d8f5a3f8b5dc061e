// Package reconcile maps a freshly scanned course tree onto the previously
// persisted one so renamed or moved videos keep their identity and progress.
//
// Matching runs four tiers in strict priority order, each only considering
// parts left unmatched by earlier tiers:
//
//  1. exact normalized path
//  2. case-insensitive filename plus identical size
//  3. normalized name (tags, numbering, punctuation and case removed)
//  4. fuzzy name similarity boosted by size proximity, greedy best per new part
//
// Merge is pure: it performs no I/O and never mutates its inputs.
package reconcile
