package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile creates path (and its parents) holding exactly size bytes. A size
// <= 0 writes a single byte. Existing files are truncated.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{'v'}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteTree creates one file per entry of files, keyed by slash-separated path
// relative to root, and returns root.
func WriteTree(t testing.TB, root string, files map[string]int64) string {
	t.Helper()
	for rel, size := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(rel)), size)
	}
	return root
}

// Touch sets both access and modification time of path.
func Touch(t testing.TB, path string, when time.Time) {
	t.Helper()
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

// Rename moves from to to, creating the destination directory.
func Rename(t testing.TB, from, to string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", to, err)
	}
	if err := os.Rename(from, to); err != nil {
		t.Fatalf("rename %s: %v", from, err)
	}
}
