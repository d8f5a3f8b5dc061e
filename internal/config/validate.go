package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateReconcile(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	if err := c.validateRepository(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateScanner() error {
	if len(c.Scanner.AllowedExtensions) == 0 {
		return errors.New("scanner.allowed_extensions must list at least one extension")
	}
	if c.Scanner.MaxDepth < 0 {
		return errors.New("scanner.max_depth must be zero or positive")
	}
	if c.Scanner.ProbeConcurrency <= 0 {
		return errors.New("scanner.probe_concurrency must be positive")
	}
	if c.Scanner.ProbeTimeoutSeconds <= 0 {
		return errors.New("scanner.probe_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateReconcile() error {
	if c.Reconcile.FuzzyThreshold <= 0 || c.Reconcile.FuzzyThreshold > 1 {
		return errors.New("reconcile.fuzzy_threshold must be greater than 0 and at most 1")
	}
	return nil
}

func (c *Config) validateProgress() error {
	if c.Progress.DebounceMillis <= 0 {
		return errors.New("progress.debounce_millis must be positive")
	}
	if c.Progress.MaxSaveAttempts <= 0 {
		return errors.New("progress.max_save_attempts must be positive")
	}
	return nil
}

func (c *Config) validateRepository() error {
	switch c.Repository.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("repository.backend: unsupported value %q (want %q or %q)", c.Repository.Backend, BackendJSON, BackendSQLite)
	}
	dir := c.Repository.MetadataDir
	if filepath.IsAbs(dir) || strings.ContainsAny(dir, `/\`) || dir == "." || dir == ".." {
		return fmt.Errorf("repository.metadata_dir must be a plain folder name, got %q", dir)
	}
	if c.Repository.BackupRetention < 0 {
		return errors.New("repository.backup_retention must be zero or positive")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.SettleMillis <= 0 {
		return errors.New("watch.settle_millis must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
