// Package watch re-syncs tracked course folders when their contents change.
//
// Every directory below a tracked root is registered with fsnotify. Events
// touching playable files or directories arm a per-root settle timer; the
// root is synced once the folder has been quiet for the settle interval.
// Events inside the metadata folder are ignored so saves never retrigger a
// sync.
package watch
