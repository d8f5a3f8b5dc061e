package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"coursetrack/internal/config"
	"coursetrack/internal/course"
	"coursetrack/internal/library"
	"coursetrack/internal/logging"
)

// Syncer is the pipeline entry point invoked after a root settles.
type Syncer interface {
	Sync(ctx context.Context, root string) (library.Report, error)
}

// Watcher monitors course roots and triggers debounced syncs.
type Watcher struct {
	fsw         *fsnotify.Watcher
	syncer      Syncer
	settle      time.Duration
	metadataDir string
	extensions  map[string]struct{}
	logger      *slog.Logger

	mu     sync.Mutex
	roots  []string
	timers map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

// New creates a watcher. Call Add for each course root, then Run.
func New(cfg *config.Config, syncer Syncer, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	exts := make(map[string]struct{}, len(cfg.Scanner.AllowedExtensions))
	for _, ext := range cfg.Scanner.AllowedExtensions {
		exts[ext] = struct{}{}
	}
	return &Watcher{
		fsw:         fsw,
		syncer:      syncer,
		settle:      cfg.SettleInterval(),
		metadataDir: cfg.Repository.MetadataDir,
		extensions:  exts,
		logger:      logging.NewComponentLogger(logger, "watch"),
		timers:      make(map[string]*time.Timer),
	}, nil
}

// Add registers root and every directory below it.
func (w *Watcher) Add(root string) error {
	root = course.NormalizePath(root)
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("watch: root is not a directory: " + root)
	}
	w.mu.Lock()
	w.roots = append(w.roots, root)
	w.mu.Unlock()
	return w.addRecursive(root)
}

// Roots returns the registered course roots.
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("skipping unreadable directory", logging.String("path", path), logging.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == w.metadataDir {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			logging.WarnWithContext(w.logger, "cannot watch directory", "watch_add_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches or watch fewer courses"),
				logging.String(logging.FieldImpact, "changes in this directory will not trigger a rescan"))
		}
		return nil
	})
}

// Run processes events until ctx is cancelled, then waits for in-flight syncs.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "filesystem watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some changes may be missed until the next manual scan"))
		}
	}
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	w.closed = true
	for root, t := range w.timers {
		t.Stop()
		delete(w.timers, root)
	}
	w.mu.Unlock()
	_ = w.fsw.Close()
	w.wg.Wait()
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	root, ok := w.rootFor(event.Name)
	if !ok || w.inMetadata(root, event.Name) {
		return
	}
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			w.schedule(ctx, root)
			return
		}
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Remove) &&
		!event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Write) {
		return
	}
	// Removed or renamed directories have no extension; rescan to be safe.
	if ext := filepath.Ext(event.Name); ext != "" && !w.isPlayable(event.Name) {
		return
	}
	w.schedule(ctx, root)
}

func (w *Watcher) isPlayable(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	_, ok := w.extensions[ext]
	return ok
}

func (w *Watcher) rootFor(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	best := ""
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			if len(root) > len(best) {
				best = root
			}
		}
	}
	return best, best != ""
}

func (w *Watcher) inMetadata(root, path string) bool {
	meta := filepath.Join(root, w.metadataDir)
	return path == meta || strings.HasPrefix(path, meta+string(filepath.Separator))
}

func (w *Watcher) schedule(ctx context.Context, root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[root]; ok {
		t.Stop()
	}
	w.timers[root] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, root)
		if w.closed {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()
		w.runSync(ctx, root)
	})
}

func (w *Watcher) runSync(ctx context.Context, root string) {
	if ctx.Err() != nil {
		return
	}
	report, err := w.syncer.Sync(ctx, root)
	if err != nil {
		logging.ErrorWithContext(w.logger, "automatic sync failed", "watch_sync_failed",
			logging.String(logging.FieldCourseRoot, root),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run coursetrack scan for details"))
		return
	}
	w.logger.Info("automatic sync finished",
		logging.String(logging.FieldEventType, "watch_sync_completed"),
		logging.String(logging.FieldCourseRoot, root),
		logging.Bool("unchanged", report.Unchanged))
}
