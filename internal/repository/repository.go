package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"coursetrack/internal/config"
	"coursetrack/internal/course"
)

// ErrSchemaMismatch indicates stored metadata was written by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const schemaVersion = 1

// Repository loads and saves course graphs.
type Repository interface {
	// Load returns the persisted course for root, or (nil, nil) when none exists.
	Load(ctx context.Context, root string) (*course.Course, error)
	// Save atomically replaces the persisted course.
	Save(ctx context.Context, c *course.Course) error
	// Backup snapshots the persisted course and returns the snapshot path. It
	// returns "" when there is nothing to back up.
	Backup(ctx context.Context, root, reason string) (string, error)
	// ListBackups returns snapshots for root, newest first.
	ListBackups(ctx context.Context, root string) ([]BackupInfo, error)
	// RepositoryFolder returns the metadata folder for root.
	RepositoryFolder(root string) string
}

// BackupInfo describes one snapshot on disk.
type BackupInfo struct {
	Path      string
	Reason    string
	CreatedAt time.Time
	SizeBytes int64
}

// Open builds the repository selected by cfg.Repository.Backend.
func Open(cfg *config.Config, logger *slog.Logger) (Repository, error) {
	if cfg == nil {
		return nil, errors.New("repository: config is nil")
	}
	rc := cfg.Repository
	switch rc.Backend {
	case config.BackendJSON, "":
		return NewJSONStore(rc.MetadataDir, rc.BackupRetention, rc.CompressBackups, logger), nil
	case config.BackendSQLite:
		return NewSQLiteStore(rc.MetadataDir, rc.BackupRetention, rc.CompressBackups, logger), nil
	default:
		return nil, fmt.Errorf("repository: unsupported backend %q", cfg.Repository.Backend)
	}
}

func metadataFolder(root, metadataDir string) string {
	if metadataDir == "" {
		metadataDir = config.Default().Repository.MetadataDir
	}
	return filepath.Join(course.NormalizePath(root), metadataDir)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
