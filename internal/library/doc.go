// Package library runs the sync pipeline for one course root: fingerprint,
// compare with the persisted course, scan, reconcile, back up and save.
//
// An unchanged fingerprint short-circuits the sync before scanning. A
// fingerprint that cannot be computed is treated as "changed". The scan runs
// without holding the course lock; the persisted course is reloaded under the
// lock before merging so concurrent progress writes are not lost.
package library
