package repository

import (
	"sync"

	"coursetrack/internal/course"
)

// Locks is a keyed mutex over normalized course roots. Entries are reference
// counted and dropped once no goroutine holds or waits on them.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*rootLock
}

type rootLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocks returns an empty lock set.
func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*rootLock)}
}

// Lock blocks until root is exclusively held and returns the release func.
func (l *Locks) Lock(root string) func() {
	key := course.NormalizePath(root)

	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &rootLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len reports how many roots are currently held or awaited.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
