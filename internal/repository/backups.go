package repository

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"coursetrack/internal/logging"
	"coursetrack/internal/textutil"
)

const (
	backupsDirName   = "backups"
	backupPrefix     = "course-"
	backupTimeLayout = "20060102T150405.000000000Z"
	brotliSuffix     = ".br"
)

// backupName builds "course-<utc timestamp>-<reason><ext>[.br]". Names sort
// chronologically.
func backupName(now time.Time, reason, ext string, compress bool) string {
	name := backupPrefix + now.UTC().Format(backupTimeLayout) + "-" + textutil.SanitizeToken(reason, "manual") + ext
	if compress {
		name += brotliSuffix
	}
	return name
}

func parseBackupName(name string) (time.Time, string, bool) {
	if !strings.HasPrefix(name, backupPrefix) {
		return time.Time{}, "", false
	}
	rest := strings.TrimPrefix(name, backupPrefix)
	if len(rest) < len(backupTimeLayout)+1 {
		return time.Time{}, "", false
	}
	ts, err := time.Parse(backupTimeLayout, rest[:len(backupTimeLayout)])
	if err != nil {
		return time.Time{}, "", false
	}
	reason := strings.TrimPrefix(rest[len(backupTimeLayout):], "-")
	reason = strings.TrimSuffix(reason, brotliSuffix)
	reason = strings.TrimSuffix(reason, filepath.Ext(reason))
	return ts, reason, true
}

// writeBackup copies src into dir under name, brotli-compressing when the
// name carries the .br suffix.
func writeBackup(src io.Reader, dir, name string) error {
	return writeAtomicFrom(dir, name, func(w io.Writer) error {
		if !strings.HasSuffix(name, brotliSuffix) {
			_, err := io.Copy(w, src)
			return err
		}
		bw := brotli.NewWriterLevel(w, brotli.DefaultCompression)
		if _, err := io.Copy(bw, src); err != nil {
			_ = bw.Close()
			return err
		}
		return bw.Close()
	})
}

// OpenBackup returns a reader over a snapshot's original bytes.
func OpenBackup(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, brotliSuffix) {
		return f, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{brotli.NewReader(f), f}, nil
}

func listBackups(dir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backups: %w", err)
	}
	var out []BackupInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		ts, reason, ok := parseBackupName(entry.Name())
		if !ok {
			continue
		}
		info := BackupInfo{
			Path:      filepath.Join(dir, entry.Name()),
			Reason:    reason,
			CreatedAt: ts,
		}
		if fi, err := entry.Info(); err == nil {
			info.SizeBytes = fi.Size()
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b BackupInfo) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Path, a.Path)
	})
	return out, nil
}

// pruneBackups keeps the newest retention snapshots. Zero keeps everything.
func pruneBackups(dir string, retention int, logger *slog.Logger) error {
	if retention <= 0 {
		return nil
	}
	backups, err := listBackups(dir)
	if err != nil {
		return err
	}
	if len(backups) <= retention {
		return nil
	}
	for _, b := range backups[retention:] {
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(logger, "failed to prune backup", "backup_prune_failed",
				logging.String("path", b.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
				logging.String(logging.FieldImpact, "backup folder keeps an extra snapshot"))
		}
	}
	return nil
}
