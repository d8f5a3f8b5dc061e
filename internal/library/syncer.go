package library

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"coursetrack/internal/config"
	"coursetrack/internal/course"
	"coursetrack/internal/fingerprint"
	"coursetrack/internal/logging"
	"coursetrack/internal/reconcile"
	"coursetrack/internal/repository"
	"coursetrack/internal/scanner"
)

// Report summarizes one sync.
type Report struct {
	Root              string
	Fingerprint       string
	FingerprintFailed bool
	FirstScan         bool
	Unchanged         bool
	BackupPath        string
	Merge             *reconcile.Result
	Course            *course.Course
	Elapsed           time.Duration
}

// Syncer wires the pipeline stages together.
type Syncer struct {
	cfg     *config.Config
	scanner *scanner.Scanner
	engine  *reconcile.Engine
	repo    repository.Repository
	locks   *repository.Locks
	logger  *slog.Logger
	onSaved []func(root string)
	now     func() time.Time
}

// Option customizes a Syncer.
type Option func(*Syncer)

// WithSavedHook registers fn to run after a merged course is saved.
func WithSavedHook(fn func(root string)) Option {
	return func(s *Syncer) {
		if fn != nil {
			s.onSaved = append(s.onSaved, fn)
		}
	}
}

// WithScanner replaces the default scanner.
func WithScanner(sc *scanner.Scanner) Option {
	return func(s *Syncer) {
		if sc != nil {
			s.scanner = sc
		}
	}
}

// NewSyncer builds a syncer. prober may be nil when duration probing is off.
func NewSyncer(cfg *config.Config, repo repository.Repository, locks *repository.Locks, prober scanner.DurationProber, logger *slog.Logger, opts ...Option) *Syncer {
	if locks == nil {
		locks = repository.NewLocks()
	}
	s := &Syncer{
		cfg:     cfg,
		scanner: scanner.New(cfg, prober, logger),
		engine:  reconcile.New(cfg.Reconcile.FuzzyThreshold, logger),
		repo:    repo,
		locks:   locks,
		logger:  logging.NewComponentLogger(logger, "library"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync reconciles root when its fingerprint changed since the last save.
func (s *Syncer) Sync(ctx context.Context, root string) (Report, error) {
	return s.sync(ctx, root, false)
}

// ForceSync reconciles root even when the fingerprint is unchanged.
func (s *Syncer) ForceSync(ctx context.Context, root string) (Report, error) {
	return s.sync(ctx, root, true)
}

func (s *Syncer) sync(ctx context.Context, root string, force bool) (Report, error) {
	started := s.now()
	resolved, err := resolveRoot(root)
	if err != nil {
		return Report{}, err
	}
	ctx = logging.WithCourseRoot(ctx, resolved)
	logger := logging.WithContext(ctx, s.logger)
	report := Report{Root: resolved}

	fp, fpErr := fingerprint.ComputeTimeout(ctx, resolved, s.cfg.Scanner.AllowedExtensions, s.cfg.Repository.MetadataDir, 0)
	if fpErr != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.FingerprintFailed = true
		logging.WarnWithContext(logger, "fingerprint failed; reconciling anyway", "fingerprint_failed",
			logging.Error(fpErr),
			logging.String(logging.FieldErrorHint, "check file permissions below the course folder"),
			logging.String(logging.FieldImpact, "the course is rescanned on every sync until the fingerprint succeeds"))
	}
	report.Fingerprint = fp

	existing, err := s.repo.Load(ctx, resolved)
	if err != nil {
		return report, fmt.Errorf("load course: %w", err)
	}
	if !force && fpErr == nil && existing != nil && existing.Fingerprint == fp {
		report.Unchanged = true
		report.Course = existing
		report.Elapsed = s.now().Sub(started)
		logger.Info("course unchanged",
			logging.String(logging.FieldEventType, "sync_skipped"),
			logging.String("fingerprint", fp))
		return report, nil
	}

	scanned, err := s.scanner.Scan(ctx, scanner.OptionsFromConfig(s.cfg, resolved))
	if err != nil {
		return report, fmt.Errorf("scan course: %w", err)
	}
	scanned.Fingerprint = fp

	release := s.locks.Lock(resolved)
	defer release()

	existing, err = s.repo.Load(ctx, resolved)
	if err != nil {
		return report, fmt.Errorf("reload course: %w", err)
	}
	report.FirstScan = existing == nil
	result := s.engine.Merge(existing, scanned)
	report.Merge = &result
	report.Course = result.Merged

	if existing != nil {
		path, err := s.repo.Backup(ctx, resolved, "pre-merge")
		if err != nil {
			return report, fmt.Errorf("backup course: %w", err)
		}
		report.BackupPath = path
	}
	if err := s.repo.Save(ctx, result.Merged); err != nil {
		return report, fmt.Errorf("save course: %w", err)
	}
	for _, fn := range s.onSaved {
		fn(resolved)
	}

	report.Elapsed = s.now().Sub(started)
	logger.Info("course synced",
		logging.String(logging.FieldEventType, "sync_completed"),
		logging.Bool("first_scan", report.FirstScan),
		logging.Int("parts", result.Merged.PartCount()),
		logging.Float64("matched_percent", result.MatchedPercent),
		logging.String("status", string(result.Merged.Status)),
		logging.Duration("elapsed", report.Elapsed))
	return report, nil
}

func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", fingerprint.ErrNoRoot, abs)
	}
	return resolved, nil
}
