package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"coursetrack/internal/config"
	"coursetrack/internal/library"
	"coursetrack/internal/logging"
	"coursetrack/internal/media/ffprobe"
	"coursetrack/internal/progress"
	"coursetrack/internal/repository"
	"coursetrack/internal/scanner"
)

type commandContext struct {
	configFlag *string
	levelFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	sessionID string
	locks     *repository.Locks
}

func newCommandContext(configFlag, levelFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		levelFlag:  levelFlag,
		sessionID:  uuid.NewString(),
		locks:      repository.NewLocks(),
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if c.levelFlag != nil && strings.TrimSpace(*c.levelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.levelFlag))
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger writes to stderr and the log file so stdout carries only
// command output.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		outputs := []string{"stderr"}
		if cfg.Paths.LogDir != "" {
			outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "coursetrack.log"))
		}
		logger, err := logging.New(logging.Options{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			OutputPaths: outputs,
			SessionID:   c.sessionID,
		})
		if err != nil {
			c.loggerErr = fmt.Errorf("setup logging: %w", err)
			return
		}
		c.logger = logger.With(logging.String(logging.FieldComponent, "cli"))
	})
	return c.logger, c.loggerErr
}

// services bundles what most commands need.
type services struct {
	cfg    *config.Config
	logger *slog.Logger
	repo   repository.Repository
	locks  *repository.Locks
}

func (c *commandContext) services() (*services, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	repo, err := repository.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return &services{cfg: cfg, logger: logger, repo: repo, locks: c.locks}, nil
}

func (s *services) prober() scanner.DurationProber {
	if !s.cfg.Scanner.ProbeDurations {
		return nil
	}
	return ffprobe.NewProber(s.cfg.Scanner.FFprobeBinary, s.cfg.ProbeTimeout())
}

func (s *services) syncer(opts ...library.Option) *library.Syncer {
	return library.NewSyncer(s.cfg, s.repo, s.locks, s.prober(), s.logger, opts...)
}

func (s *services) persister() *progress.Persister {
	return progress.New(s.cfg, s.repo, s.locks, s.logger)
}

// resolveRoot canonicalizes a course root the same way the syncer does so
// repository lookups land on the same metadata folder.
func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}
	return resolved, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
