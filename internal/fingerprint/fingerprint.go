package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrNoRoot reports a missing or non-directory course root.
var ErrNoRoot = errors.New("course root not found")

// Entry is one manifest line.
type Entry struct {
	RelativePath string
	SizeBytes    int64
	ModTime      time.Time
}

// Compute returns the hex fingerprint of the playable files below root. Any
// directory named metadataDir is excluded. I/O errors are returned as-is and
// callers must treat them as "changed".
func Compute(ctx context.Context, root string, extensions []string, metadataDir string) (string, error) {
	entries, err := Manifest(ctx, root, extensions, metadataDir)
	if err != nil {
		return "", err
	}
	return Hash(entries), nil
}

// Manifest enumerates the files that feed the fingerprint, sorted by relative
// path using ordinal comparison.
func Manifest(ctx context.Context, root string, extensions []string, metadataDir string) ([]Entry, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoRoot, root)
		}
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNoRoot, root)
	}

	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimLeft(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && metadataDir != "" && d.Name() == metadataDir {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(d.Name()), "."))
		if _, ok := allowed[ext]; !ok {
			return nil
		}
		fi, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		entries = append(entries, Entry{
			RelativePath: filepath.ToSlash(relativePath(root, path)),
			SizeBytes:    fi.Size(),
			ModTime:      fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.RelativePath, b.RelativePath)
	})
	return entries, nil
}

// Hash digests a sorted manifest. Each entry contributes one
// "path\tsize\tticks\n" line where ticks are nanoseconds since the Unix epoch.
func Hash(entries []Entry) string {
	h := sha256.New()
	for _, e := range entries {
		_, _ = h.Write([]byte(e.RelativePath))
		_, _ = h.Write([]byte{'\t'})
		_, _ = h.Write([]byte(strconv.FormatInt(e.SizeBytes, 10)))
		_, _ = h.Write([]byte{'\t'})
		_, _ = h.Write([]byte(strconv.FormatInt(e.ModTime.UnixNano(), 10)))
		_, _ = h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeTimeout wraps Compute with a deadline so slow network mounts cannot
// block a sync indefinitely. The default timeout is 30 seconds.
func ComputeTimeout(ctx context.Context, root string, extensions []string, metadataDir string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return Compute(ctx, root, extensions, metadataDir)
}

func relativePath(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return rel
}
