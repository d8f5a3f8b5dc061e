package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"coursetrack/internal/course"
	"coursetrack/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

const (
	sqliteFileName = "course.db"

	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps one course.db per course. Connections are opened per
// operation because each course lives in its own file.
type SQLiteStore struct {
	metadataDir string
	retention   int
	compress    bool
	logger      *slog.Logger
	now         func() time.Time
}

// NewSQLiteStore constructs a SQLite-backed repository.
func NewSQLiteStore(metadataDir string, retention int, compress bool, logger *slog.Logger) *SQLiteStore {
	return &SQLiteStore{
		metadataDir: metadataDir,
		retention:   retention,
		compress:    compress,
		logger:      logging.NewComponentLogger(logger, "repository.sqlite"),
		now:         time.Now,
	}
}

// RepositoryFolder returns <root>/<metadata_dir>.
func (s *SQLiteStore) RepositoryFolder(root string) string {
	return metadataFolder(root, s.metadataDir)
}

func (s *SQLiteStore) dbPath(root string) string {
	return filepath.Join(s.RepositoryFolder(root), sqliteFileName)
}

func (s *SQLiteStore) open(ctx context.Context, root string, create bool) (*sql.DB, error) {
	path := s.dbPath(root)
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create metadata folder: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	var tableExists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return createSchema(ctx, db)
	}

	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (restore a backup or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Load reads the course graph. A missing database yields (nil, nil).
func (s *SQLiteStore) Load(ctx context.Context, root string) (*course.Course, error) {
	ctx = ensureContext(ctx)
	db, err := s.open(ctx, root, false)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer db.Close()

	c, err := loadCourse(ctx, db)
	if err != nil || c == nil {
		return nil, err
	}
	c.RootPath = course.NormalizePath(root)
	return c, nil
}

func loadCourse(ctx context.Context, db *sql.DB) (*course.Course, error) {
	var (
		c                     course.Course
		createdAt, lastScanAt string
		totalDuration         sql.NullFloat64
		resumePart            sql.NullString
		resumePosition        sql.NullFloat64
	)
	err := db.QueryRowContext(ctx, `SELECT root_path, title, created_at, last_scan_at, fingerprint,
		total_duration_seconds, watched_seconds, status, status_note, resume_part_id, resume_position_seconds
		FROM course WHERE id = 1`).Scan(
		&c.RootPath, &c.Title, &createdAt, &lastScanAt, &c.Fingerprint,
		&totalDuration, &c.WatchedSeconds, &c.Status, &c.StatusNote, &resumePart, &resumePosition,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load course row: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.LastScanAt, err = parseTime(lastScanAt); err != nil {
		return nil, fmt.Errorf("parse last_scan_at: %w", err)
	}
	if totalDuration.Valid {
		c.TotalDurationSeconds = course.Float64Ptr(totalDuration.Float64)
	}
	if resumePart.Valid && resumePart.String != "" {
		c.Resume = &course.ResumeMarker{PartID: resumePart.String, PositionSeconds: resumePosition.Float64}
	}

	chapters, err := loadChapters(ctx, db)
	if err != nil {
		return nil, err
	}
	if err := loadParts(ctx, db, chapters); err != nil {
		return nil, err
	}
	c.Chapters = chapters
	return &c, nil
}

func loadChapters(ctx context.Context, db *sql.DB) ([]*course.Chapter, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, title, relative_path, sort_order FROM chapters ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	defer rows.Close()

	chapters := []*course.Chapter{}
	for rows.Next() {
		ch := &course.Chapter{Parts: []*course.Part{}}
		var order sql.NullInt64
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.RelativePath, &order); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		if order.Valid {
			ch.Order = course.IntPtr(int(order.Int64))
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

func loadParts(ctx context.Context, db *sql.DB, chapters []*course.Chapter) error {
	byID := make(map[string]*course.Chapter, len(chapters))
	for _, ch := range chapters {
		byID[ch.ID] = ch
	}
	rows, err := db.QueryContext(ctx, `SELECT id, chapter_id, file_name, path, part_index, title,
		duration_seconds, file_size_bytes, last_position_seconds, watched
		FROM parts ORDER BY chapter_id, position`)
	if err != nil {
		return fmt.Errorf("query parts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p         course.Part
			chapterID string
			index     sql.NullInt64
			duration  sql.NullFloat64
			watched   int
		)
		if err := rows.Scan(&p.ID, &chapterID, &p.FileName, &p.Path, &index, &p.Title,
			&duration, &p.FileSizeBytes, &p.LastPositionSeconds, &watched); err != nil {
			return fmt.Errorf("scan part: %w", err)
		}
		if index.Valid {
			p.Index = course.IntPtr(int(index.Int64))
		}
		if duration.Valid {
			p.DurationSeconds = course.Float64Ptr(duration.Float64)
		}
		p.Watched = watched != 0
		ch, ok := byID[chapterID]
		if !ok {
			return fmt.Errorf("part %s references unknown chapter %s", p.ID, chapterID)
		}
		ch.Parts = append(ch.Parts, &p)
	}
	return rows.Err()
}

// Save replaces the stored graph in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, c *course.Course) error {
	ctx = ensureContext(ctx)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	db, err := s.open(ctx, c.RootPath, true)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := retryOnBusy(ctx, func() error { return saveCourse(ctx, db, c) }); err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	s.logger.Debug("course saved",
		logging.String(logging.FieldEventType, "course_saved"),
		logging.String(logging.FieldCourseRoot, c.RootPath),
		logging.Int("parts", c.PartCount()))
	return nil
}

func saveCourse(ctx context.Context, db *sql.DB, c *course.Course) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{"DELETE FROM parts", "DELETE FROM chapters", "DELETE FROM course"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear tables: %w", err)
		}
	}

	var resumePart, resumePosition any
	if c.Resume != nil {
		resumePart = c.Resume.PartID
		resumePosition = c.Resume.PositionSeconds
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO course (id, root_path, title, created_at, last_scan_at,
		fingerprint, total_duration_seconds, watched_seconds, status, status_note, resume_part_id, resume_position_seconds)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RootPath, c.Title, formatTime(c.CreatedAt), formatTime(c.LastScanAt), c.Fingerprint,
		nullableFloat(c.TotalDurationSeconds), c.WatchedSeconds, string(c.Status), c.StatusNote,
		resumePart, resumePosition,
	); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}

	chapterStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chapters (id, position, title, relative_path, sort_order) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare chapter insert: %w", err)
	}
	defer chapterStmt.Close()
	partStmt, err := tx.PrepareContext(ctx, `INSERT INTO parts (id, chapter_id, position, file_name, path,
		part_index, title, duration_seconds, file_size_bytes, last_position_seconds, watched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare part insert: %w", err)
	}
	defer partStmt.Close()

	for i, ch := range c.Chapters {
		if _, err := chapterStmt.ExecContext(ctx, ch.ID, i, ch.Title, ch.RelativePath, nullableInt(ch.Order)); err != nil {
			return fmt.Errorf("insert chapter %s: %w", ch.ID, err)
		}
		for j, p := range ch.Parts {
			watched := 0
			if p.Watched {
				watched = 1
			}
			if _, err := partStmt.ExecContext(ctx, p.ID, ch.ID, j, p.FileName, p.Path, nullableInt(p.Index),
				p.Title, nullableFloat(p.DurationSeconds), p.FileSizeBytes, p.LastPositionSeconds, watched); err != nil {
				return fmt.Errorf("insert part %s: %w", p.ID, err)
			}
		}
	}
	return tx.Commit()
}

// Backup snapshots the database with VACUUM INTO, compressing the copy when
// configured.
func (s *SQLiteStore) Backup(ctx context.Context, root, reason string) (string, error) {
	ctx = ensureContext(ctx)
	db, err := s.open(ctx, root, false)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	defer db.Close()

	dir := filepath.Join(s.RepositoryFolder(root), backupsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backups folder: %w", err)
	}
	name := backupName(s.now(), reason, ".db", s.compress)
	snapshot := filepath.Join(dir, strings.TrimSuffix(name, brotliSuffix))
	if s.compress {
		snapshot = filepath.Join(dir, "."+strings.TrimSuffix(name, brotliSuffix)+".tmp")
	}
	if err := retryOnBusy(ctx, func() error {
		_, err := db.ExecContext(ctx, "VACUUM INTO ?", snapshot)
		return err
	}); err != nil {
		return "", fmt.Errorf("vacuum into backup: %w", err)
	}

	if s.compress {
		f, err := os.Open(snapshot)
		if err != nil {
			return "", fmt.Errorf("open snapshot: %w", err)
		}
		err = writeBackup(f, dir, name)
		_ = f.Close()
		_ = os.Remove(snapshot)
		if err != nil {
			return "", fmt.Errorf("compress backup: %w", err)
		}
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
func (s *SQLiteStore) ListBackups(ctx context.Context, root string) ([]BackupInfo, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return nil, err
	}
	return listBackups(filepath.Join(s.RepositoryFolder(root), backupsDirName))
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
