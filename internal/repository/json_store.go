package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"coursetrack/internal/course"
	"coursetrack/internal/logging"
)

const jsonFileName = "course.json"

// jsonDocument is the on-disk envelope.
type jsonDocument struct {
	SchemaVersion int            `json:"schema_version"`
	SavedAt       time.Time      `json:"saved_at"`
	Course        *course.Course `json:"course"`
}

// JSONStore keeps one course.json per course.
type JSONStore struct {
	metadataDir string
	retention   int
	compress    bool
	logger      *slog.Logger
	now         func() time.Time
}

// NewJSONStore constructs a JSON-backed repository.
func NewJSONStore(metadataDir string, retention int, compress bool, logger *slog.Logger) *JSONStore {
	return &JSONStore{
		metadataDir: metadataDir,
		retention:   retention,
		compress:    compress,
		logger:      logging.NewComponentLogger(logger, "repository.json"),
		now:         time.Now,
	}
}

// RepositoryFolder returns <root>/<metadata_dir>.
func (s *JSONStore) RepositoryFolder(root string) string {
	return metadataFolder(root, s.metadataDir)
}

func (s *JSONStore) filePath(root string) string {
	return filepath.Join(s.RepositoryFolder(root), jsonFileName)
}

// Load reads course.json. A missing file yields (nil, nil).
func (s *JSONStore) Load(ctx context.Context, root string) (*course.Course, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.filePath(root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read course metadata: %w", err)
	}
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode course metadata: %w", err)
	}
	if doc.SchemaVersion != schemaVersion {
		return nil, fmt.Errorf("%w: %s has version %d, expected %d",
			ErrSchemaMismatch, s.filePath(root), doc.SchemaVersion, schemaVersion)
	}
	if doc.Course == nil {
		return nil, nil
	}
	doc.Course.RootPath = course.NormalizePath(root)
	if doc.Course.Chapters == nil {
		doc.Course.Chapters = []*course.Chapter{}
	}
	return doc.Course, nil
}

// Save replaces course.json atomically.
func (s *JSONStore) Save(ctx context.Context, c *course.Course) error {
	if err := ensureContext(ctx).Err(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	doc := jsonDocument{SchemaVersion: schemaVersion, SavedAt: s.now().UTC(), Course: c}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode course metadata: %w", err)
	}
	data = append(data, '\n')
	if err := writeFileAtomic(s.RepositoryFolder(c.RootPath), jsonFileName, data); err != nil {
		return fmt.Errorf("save course metadata: %w", err)
	}
	s.logger.Debug("course saved",
		logging.String(logging.FieldEventType, "course_saved"),
		logging.String(logging.FieldCourseRoot, c.RootPath),
		logging.Int("parts", c.PartCount()))
	return nil
}

// Backup snapshots course.json into the backups folder.
func (s *JSONStore) Backup(ctx context.Context, root, reason string) (string, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.filePath(root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read course metadata: %w", err)
	}
	dir := filepath.Join(s.RepositoryFolder(root), backupsDirName)
	name := backupName(s.now(), reason, ".json", s.compress)
	if err := writeBackup(bytes.NewReader(data), dir, name); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := pruneBackups(dir, s.retention, s.logger); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	s.logger.Info("course metadata backed up",
		logging.String(logging.FieldEventType, "backup_created"),
		logging.String(logging.FieldCourseRoot, course.NormalizePath(root)),
		logging.String("backup_path", path))
	return path, nil
}

// ListBackups returns snapshots, newest first.
func (s *JSONStore) ListBackups(ctx context.Context, root string) ([]BackupInfo, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return nil, err
	}
	return listBackups(filepath.Join(s.RepositoryFolder(root), backupsDirName))
}
