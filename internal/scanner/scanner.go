package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"coursetrack/internal/config"
	"coursetrack/internal/course"
	"coursetrack/internal/logging"
	"coursetrack/internal/textutil"
)

// DurationProber reads the playable duration of a media file.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Options describes one scan invocation.
type Options struct {
	Root              string
	AllowedExtensions []string
	ProbeDurations    bool
	MaxDepth          int
}

// OptionsFromConfig builds scan options for root from the scanner config section.
func OptionsFromConfig(cfg *config.Config, root string) Options {
	return Options{
		Root:              root,
		AllowedExtensions: cfg.Scanner.AllowedExtensions,
		ProbeDurations:    cfg.Scanner.ProbeDurations,
		MaxDepth:          cfg.Scanner.MaxDepth,
	}
}

// Scanner builds course trees from directories.
type Scanner struct {
	logger           *slog.Logger
	prober           DurationProber
	metadataDir      string
	probeConcurrency int
	newID            func() string
	now              func() time.Time
	readable         func(string) error
}

// New constructs a scanner. prober may be nil when duration probing is never
// requested.
func New(cfg *config.Config, prober DurationProber, logger *slog.Logger) *Scanner {
	s := &Scanner{
		logger:           logging.NewComponentLogger(logger, "scanner"),
		prober:           prober,
		metadataDir:      config.Default().Repository.MetadataDir,
		probeConcurrency: 1,
		newID:            uuid.NewString,
		now:              func() time.Time { return time.Now().UTC() },
		readable:         checkReadable,
	}
	if cfg != nil {
		s.metadataDir = cfg.Repository.MetadataDir
		s.probeConcurrency = max(cfg.Scanner.ProbeConcurrency, 1)
	}
	return s
}

// walkState is scoped to a single Scan call.
type walkState struct {
	root       string
	extensions map[string]struct{}
	maxDepth   int
	visited    map[string]struct{}
	chapters   []*course.Chapter
	skipped    int
}

// Scan walks opts.Root and returns a freshly identified course tree. Only a
// missing or unreadable root fails the scan.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*course.Course, error) {
	root, err := canonicalRoot(opts.Root)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(logging.String(logging.FieldCourseRoot, root))

	exts := config.NormalizeExtensions(opts.AllowedExtensions)
	if len(exts) == 0 {
		exts = config.DefaultExtensions()
	}
	state := &walkState{
		root:       root,
		extensions: make(map[string]struct{}, len(exts)),
		maxDepth:   opts.MaxDepth,
		visited:    make(map[string]struct{}),
	}
	for _, ext := range exts {
		state.extensions[ext] = struct{}{}
	}

	started := time.Now()
	if err := s.walk(ctx, logger, state, root, ".", 0); err != nil {
		return nil, err
	}
	sortChapters(state.chapters)

	now := s.now()
	c := &course.Course{
		RootPath:   root,
		Title:      filepath.Base(root),
		CreatedAt:  now,
		LastScanAt: now,
		Status:     course.StatusInProgress,
		Chapters:   state.chapters,
	}
	if c.Chapters == nil {
		c.Chapters = []*course.Chapter{}
	}

	if opts.ProbeDurations {
		if err := s.probeDurations(ctx, logger, c.Parts()); err != nil {
			return nil, err
		}
	}
	c.RecomputeAggregates()

	logger.Info("course scanned",
		logging.String(logging.FieldEventType, "scan_completed"),
		logging.Int("chapters", len(c.Chapters)),
		logging.Int("parts", c.PartCount()),
		logging.Int("skipped_dirs", state.skipped),
		logging.Duration("elapsed", time.Since(started)))
	return c, nil
}

func canonicalRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", errors.New("scan: empty root path")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("scan: resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("scan: resolve root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("scan: stat root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("scan: root %q is not a directory", resolved)
	}
	return resolved, nil
}

func (s *Scanner) walk(ctx context.Context, logger *slog.Logger, state *walkState, dir, rel string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		s.skipSubtree(logger, state, dir, err)
		return nil
	}
	if _, seen := state.visited[canonical]; seen {
		return nil
	}
	state.visited[canonical] = struct{}{}

	if err := s.readable(dir); err != nil {
		s.skipSubtree(logger, state, dir, err)
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.skipSubtree(logger, state, dir, err)
		return nil
	}

	var parts []*course.Part
	var subdirs []string
	for _, entry := range entries {
		name := entry.Name()
		full := filepath.Join(dir, name)

		if entry.Type()&os.ModeSymlink != 0 {
			info, err := os.Stat(full)
			if err != nil || info.IsDir() {
				continue
			}
			if part := s.newPart(state, full, name, info); part != nil {
				parts = append(parts, part)
			}
			continue
		}

		if entry.IsDir() {
			if name == s.metadataDir {
				continue
			}
			subdirs = append(subdirs, name)
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logger.Debug("file vanished during scan", logging.String("path", full), logging.Error(err))
			continue
		}
		if part := s.newPart(state, full, name, info); part != nil {
			parts = append(parts, part)
		}
	}

	if len(parts) > 0 {
		state.chapters = append(state.chapters, s.newChapter(dir, rel, parts))
	}

	if depth >= state.maxDepth {
		return nil
	}
	for _, name := range subdirs {
		childRel := name
		if rel != "." {
			childRel = filepath.Join(rel, name)
		}
		if err := s.walk(ctx, logger, state, filepath.Join(dir, name), childRel, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) skipSubtree(logger *slog.Logger, state *walkState, dir string, err error) {
	state.skipped++
	logging.WarnWithContext(logger, "skipping directory during scan", "scan_subtree_skipped",
		logging.String("path", dir),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check directory permissions or whether it was moved"),
		logging.String(logging.FieldImpact, "videos below this directory are not tracked"))
}

func (s *Scanner) newPart(state *walkState, full, name string, info os.FileInfo) *course.Part {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if _, ok := state.extensions[ext]; !ok {
		return nil
	}
	return &course.Part{
		ID:            s.newID(),
		FileName:      name,
		Path:          full,
		Title:         textutil.StripExtension(name),
		FileSizeBytes: info.Size(),
	}
}

func (s *Scanner) newChapter(dir, rel string, parts []*course.Part) *course.Chapter {
	assignIndices(parts)
	sortParts(parts)

	ch := &course.Chapter{
		ID:           s.newID(),
		Title:        filepath.Base(dir),
		RelativePath: rel,
		Parts:        parts,
	}
	if rel != "." {
		if n, ok := textutil.LeadingIndex(ch.Title); ok {
			ch.Order = course.IntPtr(n)
		}
	}
	if ch.Order == nil {
		ch.Order = minIndex(parts)
	}
	return ch
}

func (s *Scanner) probeDurations(ctx context.Context, logger *slog.Logger, parts []*course.Part) error {
	if s.prober == nil || len(parts) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.probeConcurrency)
	for _, part := range parts {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			seconds, err := s.prober.ProbeDuration(gctx, part.Path)
			if err != nil {
				logger.Debug("duration probe failed",
					logging.String(logging.FieldPartID, part.ID),
					logging.String("path", part.Path),
					logging.Error(err))
				return nil
			}
			part.DurationSeconds = course.Float64Ptr(seconds)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("probe durations: %w", err)
	}
	return nil
}
