package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"coursetrack/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "coursetrack", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Scanner.MaxDepth != 20 {
		t.Fatalf("unexpected max depth: %d", cfg.Scanner.MaxDepth)
	}
	if cfg.Reconcile.FuzzyThreshold != 0.75 {
		t.Fatalf("unexpected fuzzy threshold: %v", cfg.Reconcile.FuzzyThreshold)
	}
	if cfg.DebounceInterval().Seconds() != 2 {
		t.Fatalf("unexpected debounce interval: %v", cfg.DebounceInterval())
	}
	if cfg.Repository.Backend != config.BackendJSON {
		t.Fatalf("unexpected backend: %q", cfg.Repository.Backend)
	}
	if got := strings.Join(cfg.Scanner.AllowedExtensions, ","); got != "avi,flv,mkv,mov,mp4,webm" {
		t.Fatalf("unexpected extensions: %s", got)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	overrides := map[string]any{
		"paths": map[string]any{"log_dir": filepath.Join(dir, "logs")},
		"scanner": map[string]any{
			"allowed_extensions": []string{".MP4", "mkv", "mp4"},
			"max_depth":          3,
		},
		"reconcile":  map[string]any{"fuzzy_threshold": 0.8},
		"repository": map[string]any{"backend": "SQLite"},
	}
	data, err := toml.Marshal(overrides)
	if err != nil {
		t.Fatalf("marshal overrides: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to be loaded, got %q exists=%v", resolved, exists)
	}
	if got := strings.Join(cfg.Scanner.AllowedExtensions, ","); got != "mkv,mp4" {
		t.Fatalf("expected normalized extensions, got %s", got)
	}
	if cfg.Scanner.MaxDepth != 3 {
		t.Fatalf("unexpected max depth: %d", cfg.Scanner.MaxDepth)
	}
	if cfg.Reconcile.FuzzyThreshold != 0.8 {
		t.Fatalf("unexpected threshold: %v", cfg.Reconcile.FuzzyThreshold)
	}
	if cfg.Repository.Backend != config.BackendSQLite {
		t.Fatalf("expected lowercased backend, got %q", cfg.Repository.Backend)
	}
	if cfg.Progress.DebounceMillis != 2000 {
		t.Fatalf("expected default debounce to survive partial config, got %d", cfg.Progress.DebounceMillis)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("COURSETRACK_BACKEND", "sqlite")
	t.Setenv("COURSETRACK_LOG_LEVEL", "DEBUG")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Repository.Backend != config.BackendSQLite {
		t.Fatalf("expected env backend, got %q", cfg.Repository.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env log level, got %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"threshold zero", func(c *config.Config) { c.Reconcile.FuzzyThreshold = 0 }, "fuzzy_threshold"},
		{"threshold above one", func(c *config.Config) { c.Reconcile.FuzzyThreshold = 1.2 }, "fuzzy_threshold"},
		{"negative depth", func(c *config.Config) { c.Scanner.MaxDepth = -1 }, "max_depth"},
		{"no extensions", func(c *config.Config) { c.Scanner.AllowedExtensions = nil }, "allowed_extensions"},
		{"debounce", func(c *config.Config) { c.Progress.DebounceMillis = 0 }, "debounce_millis"},
		{"backend", func(c *config.Config) { c.Repository.Backend = "postgres" }, "repository.backend"},
		{"metadata dir nested", func(c *config.Config) { c.Repository.MetadataDir = "a/b" }, "metadata_dir"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	t.Setenv("HOME", t.TempDir())
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Repository.MetadataDir != ".coursetrack" {
		t.Fatalf("unexpected metadata dir: %q", cfg.Repository.MetadataDir)
	}
}

func TestNormalizeExtensions(t *testing.T) {
	got := config.NormalizeExtensions([]string{" .MKV", "mp4", "", "..webm", "mkv"})
	if strings.Join(got, ",") != "mkv,mp4,webm" {
		t.Fatalf("unexpected normalized extensions: %v", got)
	}
}
