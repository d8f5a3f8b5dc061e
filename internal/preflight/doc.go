// Package preflight provides readiness checks for the filesystem paths and
// external binaries coursetrack depends on.
//
// The CLI "coursetrack doctor" command runs RunAll and prints one row per
// check. Checks for optional features (duration probing) are reported as
// optional so a missing ffprobe does not fail the run when probing is off.
package preflight
