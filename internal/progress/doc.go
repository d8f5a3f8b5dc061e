// Package progress persists playback positions reported by players.
//
// Position events are frequent, so NotifyPosition only records the latest
// value per part and (re)arms a per-course debounce timer. When the course
// stays quiet for the debounce interval the pending values are written in one
// load-modify-save cycle. SavePositionByPartID and MarkWatched write
// immediately. Every write to a course root runs under the shared
// repository.Locks so scans and progress updates never interleave.
//
// Failed writes are retried with exponential backoff. If every attempt fails,
// values without a newer replacement are re-queued and the debounce timer is
// re-armed. Callers must Flush (or Close) on shutdown.
package progress
