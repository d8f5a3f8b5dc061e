package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// Scanner controls directory walking and duration probing.
type Scanner struct {
	AllowedExtensions   []string `toml:"allowed_extensions"`
	MaxDepth            int      `toml:"max_depth"`
	ProbeDurations      bool     `toml:"probe_durations"`
	FFprobeBinary       string   `toml:"ffprobe_binary"`
	ProbeConcurrency    int      `toml:"probe_concurrency"`
	ProbeTimeoutSeconds int      `toml:"probe_timeout_seconds"`
}

// Reconcile controls how rescanned parts are matched against known parts.
type Reconcile struct {
	// FuzzyThreshold is the minimum score a fuzzy-name candidate must reach.
	FuzzyThreshold float64 `toml:"fuzzy_threshold"`
}

// Progress controls debounced position persistence.
type Progress struct {
	DebounceMillis  int `toml:"debounce_millis"`
	MaxSaveAttempts int `toml:"max_save_attempts"`
}

// Repository selects and tunes the course metadata backend.
type Repository struct {
	Backend         string `toml:"backend"`
	MetadataDir     string `toml:"metadata_dir"`
	BackupRetention int    `toml:"backup_retention"`
	CompressBackups bool   `toml:"compress_backups"`
}

// Watch controls filesystem-triggered rescans.
type Watch struct {
	SettleMillis int `toml:"settle_millis"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for coursetrack.
//
// Configuration sections by subsystem:
//   - Paths: log directory
//   - Scanner: extension allow-list, recursion depth, duration probing
//   - Reconcile: fuzzy match threshold
//   - Progress: debounce interval and save retry budget
//   - Repository: metadata backend, folder name, backup retention
//   - Watch: settle interval for filesystem-triggered rescans
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Scanner    Scanner    `toml:"scanner"`
	Reconcile  Reconcile  `toml:"reconcile"`
	Progress   Progress   `toml:"progress"`
	Repository Repository `toml:"repository"`
	Watch      Watch      `toml:"watch"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("coursetrack.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// DebounceInterval returns the quiet period before pending positions are written.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.Progress.DebounceMillis) * time.Millisecond
}

// SettleInterval returns how long the watcher waits for filesystem activity to stop.
func (c *Config) SettleInterval() time.Duration {
	return time.Duration(c.Watch.SettleMillis) * time.Millisecond
}

// ProbeTimeout returns the per-file duration probe deadline.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Scanner.ProbeTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
