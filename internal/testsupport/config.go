package testsupport

import (
	"path/filepath"
	"testing"

	"coursetrack/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp log directory per test.
// Duration probing is off so tests never need ffprobe on PATH.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Scanner.ProbeDurations = false
	cfgVal.Progress.DebounceMillis = 50

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithBackend selects the repository backend.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Repository.Backend = backend
	}
}

// WithFuzzyThreshold overrides the reconcile similarity threshold.
func WithFuzzyThreshold(threshold float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Reconcile.FuzzyThreshold = threshold
	}
}

// WithDebounceMillis overrides the progress debounce interval.
func WithDebounceMillis(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Progress.DebounceMillis = ms
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
