package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"coursetrack/internal/config"
	"coursetrack/internal/course"
	"coursetrack/internal/logging"
	"coursetrack/internal/repository"
)

var (
	// ErrNoCourseRoot reports that no persisted course owns the requested path or root.
	ErrNoCourseRoot = errors.New("no tracked course at path")
	// ErrUnknownPart reports a part identifier missing from the persisted course.
	ErrUnknownPart = errors.New("unknown part")
	// ErrClosed reports use after Close.
	ErrClosed = errors.New("progress persister closed")
	// ErrInvalidPosition reports a negative or non-finite position.
	ErrInvalidPosition = errors.New("invalid playback position")
)

const defaultBaseBackoff = 100 * time.Millisecond

// Persister debounces position events and writes them through a repository.
type Persister struct {
	repo        repository.Repository
	locks       *repository.Locks
	metadataDir string
	debounce    time.Duration
	maxAttempts int
	baseBackoff time.Duration
	clock       Clock
	sleep       func(context.Context, time.Duration) error
	logger      *slog.Logger

	courses sync.Map // canonical root -> *courseState
	closed  atomic.Bool
}

type pendingValue struct {
	seconds float64
	seq     uint64
}

// courseState guards one course's pending values and timer.
type courseState struct {
	mu         sync.Mutex
	pending    map[string]pendingValue
	seq        uint64
	stop       func() bool
	generation uint64
	index      map[string]string // canonical part path -> part id
	written    map[string]uint64 // part id -> seq of the last immediate write
}

// Option customizes a Persister.
type Option func(*Persister)

// WithClock replaces the timer source.
func WithClock(clock Clock) Option {
	return func(p *Persister) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithBackoff overrides the base retry backoff.
func WithBackoff(d time.Duration) Option {
	return func(p *Persister) {
		p.baseBackoff = d
	}
}

// New constructs a persister. locks must be shared with every other writer of
// the same course roots.
func New(cfg *config.Config, repo repository.Repository, locks *repository.Locks, logger *slog.Logger, opts ...Option) *Persister {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	if locks == nil {
		locks = repository.NewLocks()
	}
	p := &Persister{
		repo:        repo,
		locks:       locks,
		metadataDir: cfg.Repository.MetadataDir,
		debounce:    cfg.DebounceInterval(),
		maxAttempts: max(cfg.Progress.MaxSaveAttempts, 1),
		baseBackoff: defaultBaseBackoff,
		clock:       realClock{},
		sleep:       sleepContext,
		logger:      logging.NewComponentLogger(logger, "progress"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Persister) state(root string) *courseState {
	if v, ok := p.courses.Load(root); ok {
		return v.(*courseState)
	}
	v, _ := p.courses.LoadOrStore(root, &courseState{pending: make(map[string]pendingValue)})
	return v.(*courseState)
}

// canonicalPath resolves symlinks in the directory part of path. The last
// element is kept because symlinked files are tracked under their own name.
func canonicalPath(path string) string {
	abs := course.NormalizePath(path)
	if abs == "" {
		return ""
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return abs
	}
	return filepath.Join(dir, filepath.Base(abs))
}

// canonicalRoot resolves a course root the way the scanner and syncer do, so
// lock keys and state keys agree across writers.
func canonicalRoot(root string) string {
	abs := course.NormalizePath(root)
	if abs == "" {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// ResolveCourseRoot walks up from path until a directory containing the
// metadata folder is found. The returned root has symlinks resolved.
func (p *Persister) ResolveCourseRoot(path string) (string, error) {
	dir := filepath.Dir(canonicalPath(path))
	for {
		info, err := os.Stat(filepath.Join(dir, p.metadataDir))
		if err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s", ErrNoCourseRoot, path)
		}
		dir = parent
	}
}

// NotifyPosition records seconds as the latest position for the part at
// filePath and re-arms the course's debounce timer. Paths outside any tracked
// course, or not yet known to it, are ignored.
func (p *Persister) NotifyPosition(ctx context.Context, filePath string, seconds float64) {
	if p.closed.Load() {
		return
	}
	if !course.ValidPosition(seconds) {
		p.logger.Debug("position ignored",
			logging.String("path", filePath),
			logging.Float64("seconds", seconds),
			logging.Error(ErrInvalidPosition))
		return
	}
	root, err := p.ResolveCourseRoot(filePath)
	if err != nil {
		p.logger.Debug("position ignored", logging.String("path", filePath), logging.Error(err))
		return
	}
	logger := p.logger.With(logging.String(logging.FieldCourseRoot, root))

	st := p.state(root)
	st.mu.Lock()
	defer st.mu.Unlock()

	partID, err := p.lookupPart(ctx, st, root, filePath)
	if err != nil {
		logger.Debug("position ignored", logging.String("path", filePath), logging.Error(err))
		return
	}
	st.seq++
	st.pending[partID] = pendingValue{seconds: seconds, seq: st.seq}
	p.scheduleLocked(st, root)
}

// lookupPart resolves filePath through the cached index, reloading the course
// once on a miss.
func (p *Persister) lookupPart(ctx context.Context, st *courseState, root, filePath string) (string, error) {
	key := canonicalPath(filePath)
	if id, ok := st.index[key]; ok {
		return id, nil
	}
	c, err := p.repo.Load(ctx, root)
	if err != nil {
		return "", fmt.Errorf("load course: %w", err)
	}
	if c == nil {
		return "", fmt.Errorf("%w: %s", ErrNoCourseRoot, root)
	}
	st.index = make(map[string]string, c.PartCount())
	for _, part := range c.Parts() {
		st.index[canonicalPath(part.Path)] = part.ID
	}
	if id, ok := st.index[key]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownPart, filePath)
}

// Invalidate drops the cached path index for root. Call after a rescan saves
// a new graph.
func (p *Persister) Invalidate(root string) {
	v, ok := p.courses.Load(canonicalRoot(root))
	if !ok {
		return
	}
	st := v.(*courseState)
	st.mu.Lock()
	st.index = nil
	st.mu.Unlock()
}

func (p *Persister) scheduleLocked(st *courseState, root string) {
	if st.stop != nil {
		st.stop()
	}
	st.generation++
	gen := st.generation
	st.stop = p.clock.AfterFunc(p.debounce, func() {
		p.flushScheduled(root, gen)
	})
}

func (p *Persister) flushScheduled(root string, gen uint64) {
	st := p.state(root)
	st.mu.Lock()
	if st.generation != gen {
		st.mu.Unlock()
		return
	}
	entries := st.takeLocked()
	st.stop = nil
	st.mu.Unlock()

	if err := p.persist(context.Background(), root, entries); err != nil {
		p.requeue(root, entries, err)
	}
}

type entry struct {
	partID  string
	seconds float64
	seq     uint64
}

// takeLocked drains pending values in notification order.
func (st *courseState) takeLocked() []entry {
	if len(st.pending) == 0 {
		return nil
	}
	out := make([]entry, 0, len(st.pending))
	for id, v := range st.pending {
		out = append(out, entry{partID: id, seconds: v.seconds, seq: v.seq})
	}
	clear(st.pending)
	slices.SortFunc(out, func(a, b entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return out
}

// persist applies entries in one load-modify-save cycle, retrying with
// exponential backoff.
func (p *Persister) persist(ctx context.Context, root string, entries []entry) error {
	if len(entries) == 0 {
		return nil
	}
	backoff := p.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		lastErr = p.writeEntries(ctx, root, entries)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrNoCourseRoot) || errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
		if attempt == p.maxAttempts {
			break
		}
		p.logger.Debug("progress save failed, retrying",
			logging.String(logging.FieldCourseRoot, root),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", backoff),
			logging.Error(lastErr))
		if err := p.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
	return lastErr
}

func (p *Persister) writeEntries(ctx context.Context, root string, entries []entry) error {
	release := p.locks.Lock(root)
	defer release()

	// Checked under the course lock on every attempt.
	entries = p.current(root, entries)
	if len(entries) == 0 {
		return nil
	}

	c, err := p.repo.Load(ctx, root)
	if err != nil {
		return fmt.Errorf("load course: %w", err)
	}
	if c == nil {
		return fmt.Errorf("%w: %s", ErrNoCourseRoot, root)
	}
	applied := 0
	for _, e := range entries {
		part, _ := c.FindPart(e.partID)
		if part == nil {
			p.logger.Debug("pending position dropped for removed part",
				logging.String(logging.FieldCourseRoot, root),
				logging.String(logging.FieldPartID, e.partID))
			continue
		}
		applyPosition(c, part, e.seconds)
		applied++
	}
	if applied == 0 {
		return nil
	}
	finishUpdate(c)
	if err := p.repo.Save(ctx, c); err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	p.logger.Debug("positions flushed",
		logging.String(logging.FieldEventType, "progress_flushed"),
		logging.String(logging.FieldCourseRoot, root),
		logging.Int("parts", applied))
	return nil
}

// requeue restores values that have no newer replacement and re-arms the
// timer so the write is attempted again.
func (p *Persister) requeue(root string, entries []entry, cause error) {
	logging.ErrorWithContext(p.logger, "failed to persist playback progress", "progress_save_failed",
		logging.String(logging.FieldCourseRoot, root),
		logging.Int("parts", len(entries)),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check that the course metadata folder is writable"),
		logging.String(logging.FieldImpact, "positions stay queued in memory until a save succeeds"))
	if errors.Is(cause, ErrNoCourseRoot) {
		return
	}

	st := p.state(root)
	st.mu.Lock()
	defer st.mu.Unlock()
	restored := 0
	for _, e := range entries {
		if _, newer := st.pending[e.partID]; newer || st.supersededLocked(e) {
			continue
		}
		st.pending[e.partID] = pendingValue{seconds: e.seconds, seq: e.seq}
		restored++
	}
	if restored > 0 && !p.closed.Load() {
		p.scheduleLocked(st, root)
	}
}

// current filters out entries superseded by an immediate write.
func (p *Persister) current(root string, entries []entry) []entry {
	st := p.state(root)
	st.mu.Lock()
	defer st.mu.Unlock()
	out := entries[:0:0]
	for _, e := range entries {
		if st.supersededLocked(e) {
			p.logger.Debug("stale pending position discarded",
				logging.String(logging.FieldCourseRoot, root),
				logging.String(logging.FieldPartID, e.partID))
			continue
		}
		out = append(out, e)
	}
	return out
}

func (st *courseState) supersededLocked(e entry) bool {
	return e.seq < st.written[e.partID]
}

// SavePositionByPartID writes a position immediately, bypassing the debounce.
func (p *Persister) SavePositionByPartID(ctx context.Context, root, partID string, seconds float64) error {
	if !course.ValidPosition(seconds) {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, seconds)
	}
	root = canonicalRoot(root)
	p.supersede(root, partID)
	return p.update(ctx, root, partID, func(c *course.Course, part *course.Part) {
		applyPosition(c, part, seconds)
	})
}

// MarkWatched forces a part to watched and clears the resume marker if it
// pointed at that part.
func (p *Persister) MarkWatched(ctx context.Context, root, partID string) error {
	root = canonicalRoot(root)
	p.supersede(root, partID)
	return p.update(ctx, root, partID, func(c *course.Course, part *course.Part) {
		part.MarkWatched()
		c.ClearResumeIf(partID)
	})
}

func (p *Persister) update(ctx context.Context, root, partID string, mutate func(*course.Course, *course.Part)) error {
	if p.closed.Load() {
		return ErrClosed
	}
	release := p.locks.Lock(root)
	defer release()

	c, err := p.repo.Load(ctx, root)
	if err != nil {
		return fmt.Errorf("load course: %w", err)
	}
	if c == nil {
		return fmt.Errorf("%w: %s", ErrNoCourseRoot, root)
	}
	part, _ := c.FindPart(partID)
	if part == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPart, partID)
	}
	mutate(c, part)
	finishUpdate(c)
	if err := p.repo.Save(ctx, c); err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	return nil
}

// supersede drops partID's pending value and stamps the immediate write so
// entries already drained by a flush are discarded before they reach disk.
func (p *Persister) supersede(root, partID string) {
	if p.closed.Load() {
		return
	}
	st := p.state(root)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.seq++
	if st.written == nil {
		st.written = make(map[string]uint64)
	}
	st.written[partID] = st.seq
	delete(st.pending, partID)
}

// Pending reports how many part positions are waiting to be written for root.
func (p *Persister) Pending(root string) int {
	v, ok := p.courses.Load(canonicalRoot(root))
	if !ok {
		return 0
	}
	st := v.(*courseState)
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.pending)
}

// FlushCourse cancels root's timer and writes its pending values now.
func (p *Persister) FlushCourse(ctx context.Context, root string) error {
	root = canonicalRoot(root)
	v, ok := p.courses.Load(root)
	if !ok {
		return nil
	}
	st := v.(*courseState)
	st.mu.Lock()
	if st.stop != nil {
		st.stop()
		st.stop = nil
	}
	st.generation++
	entries := st.takeLocked()
	st.mu.Unlock()

	if err := p.persist(ctx, root, entries); err != nil {
		p.requeue(root, entries, err)
		return fmt.Errorf("flush %s: %w", root, err)
	}
	return nil
}

// Flush writes pending values for every course.
func (p *Persister) Flush(ctx context.Context) error {
	var roots []string
	p.courses.Range(func(key, _ any) bool {
		roots = append(roots, key.(string))
		return true
	})
	slices.Sort(roots)
	var errs []error
	for _, root := range roots {
		if err := p.FlushCourse(ctx, root); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting events and flushes everything pending.
func (p *Persister) Close(ctx context.Context) error {
	p.closed.Store(true)
	return p.Flush(ctx)
}

// applyPosition records seconds on part and points the resume marker at it.
// Reaching the watched threshold clears the marker again.
func applyPosition(c *course.Course, part *course.Part, seconds float64) {
	part.ApplyPosition(seconds)
	c.SetResume(part.ID, part.LastPositionSeconds)
	if course.IsWatchedAt(part.LastPositionSeconds, part.DurationSeconds) {
		c.ClearResumeIf(part.ID)
	}
}

func finishUpdate(c *course.Course) {
	c.RecomputeAggregates()
	if c.Status == course.StatusInProgress && c.AllWatched() {
		c.Status = course.StatusCompleted
	}
}
