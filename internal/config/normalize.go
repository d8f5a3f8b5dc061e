package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScanner()
	c.normalizeRepository()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScanner() {
	c.Scanner.AllowedExtensions = NormalizeExtensions(c.Scanner.AllowedExtensions)
	if len(c.Scanner.AllowedExtensions) == 0 {
		c.Scanner.AllowedExtensions = DefaultExtensions()
	}
	c.Scanner.FFprobeBinary = strings.TrimSpace(c.Scanner.FFprobeBinary)
	if c.Scanner.FFprobeBinary == "" {
		c.Scanner.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeRepository() {
	if value, ok := os.LookupEnv("COURSETRACK_BACKEND"); ok && strings.TrimSpace(value) != "" {
		c.Repository.Backend = value
	}
	c.Repository.Backend = strings.ToLower(strings.TrimSpace(c.Repository.Backend))
	if c.Repository.Backend == "" {
		c.Repository.Backend = defaultBackend
	}
	c.Repository.MetadataDir = strings.TrimSpace(c.Repository.MetadataDir)
	if c.Repository.MetadataDir == "" {
		c.Repository.MetadataDir = defaultMetadataDir
	}
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("COURSETRACK_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// NormalizeExtensions lowercases extensions, strips leading dots, and removes
// duplicates. The result is sorted.
func NormalizeExtensions(exts []string) []string {
	seen := make(map[string]struct{}, len(exts))
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		ext = strings.TrimLeft(ext, ".")
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
