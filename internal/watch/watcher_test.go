package watch

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"coursetrack/internal/library"
	"coursetrack/internal/testsupport"
)

type countingSyncer struct {
	mu    sync.Mutex
	roots []string
	calls chan string
}

func newCountingSyncer() *countingSyncer {
	return &countingSyncer{calls: make(chan string, 16)}
}

func (c *countingSyncer) Sync(_ context.Context, root string) (library.Report, error) {
	c.mu.Lock()
	c.roots = append(c.roots, root)
	c.mu.Unlock()
	c.calls <- root
	return library.Report{Root: root}, nil
}

func (c *countingSyncer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.roots)
}

func newTestWatcher(t *testing.T, syncer Syncer) *Watcher {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Watch.SettleMillis = 50
	w, err := New(cfg, syncer, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestWatcherSyncsAfterSettle(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "1 Intro", "a.mp4"), 10)

	syncer := newCountingSyncer()
	w := newTestWatcher(t, syncer)
	if err := w.Add(root); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	testsupport.WriteFile(t, filepath.Join(root, "1 Intro", "b.mp4"), 10)
	testsupport.WriteFile(t, filepath.Join(root, "1 Intro", "c.mp4"), 10)

	select {
	case got := <-syncer.calls:
		if got != root {
			t.Fatalf("synced %q, want %q", got, root)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sync")
	}
	time.Sleep(200 * time.Millisecond)
	if n := syncer.count(); n != 1 {
		t.Fatalf("expected burst to coalesce into one sync, got %d", n)
	}
}

func TestHandleEventFiltering(t *testing.T) {
	root := t.TempDir()
	syncer := newCountingSyncer()
	w := newTestWatcher(t, syncer)
	if err := w.Add(root); err != nil {
		t.Fatalf("Add: %v", err)
	}
	defer w.shutdown()

	ctx := context.Background()
	tests := []struct {
		name      string
		event     fsnotify.Event
		scheduled bool
	}{
		{"metadata save", fsnotify.Event{Name: filepath.Join(root, ".coursetrack", "course.json"), Op: fsnotify.Write}, false},
		{"text file", fsnotify.Event{Name: filepath.Join(root, "notes.txt"), Op: fsnotify.Create}, false},
		{"outside root", fsnotify.Event{Name: filepath.Join(t.TempDir(), "x.mp4"), Op: fsnotify.Create}, false},
		{"chmod only", fsnotify.Event{Name: filepath.Join(root, "a.mp4"), Op: fsnotify.Chmod}, false},
		{"video removed", fsnotify.Event{Name: filepath.Join(root, "a.MKV"), Op: fsnotify.Remove}, true},
		{"directory renamed", fsnotify.Event{Name: filepath.Join(root, "Chapter 2"), Op: fsnotify.Rename}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.handleEvent(ctx, tt.event)
			w.mu.Lock()
			_, scheduled := w.timers[root]
			if timer, ok := w.timers[root]; ok {
				timer.Stop()
				delete(w.timers, root)
			}
			w.mu.Unlock()
			if scheduled != tt.scheduled {
				t.Fatalf("scheduled = %v, want %v", scheduled, tt.scheduled)
			}
		})
	}
}

func TestAddRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.mp4")
	testsupport.WriteFile(t, file, 1)
	w := newTestWatcher(t, newCountingSyncer())
	defer w.shutdown()
	if err := w.Add(file); err == nil {
		t.Fatal("expected error for file root")
	}
}
