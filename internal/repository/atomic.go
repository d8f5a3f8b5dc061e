package repository

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// renameFunc is swapped by tests to simulate rename failures.
var renameFunc = os.Rename

// writeFileAtomic writes data to dir/name through a temp file in the same
// directory followed by a rename, so readers see either the old or the new
// content.
func writeFileAtomic(dir, name string, data []byte) error {
	return writeAtomicFrom(dir, name, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func writeAtomicFrom(dir, name string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	dst := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := fill(tmp); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := renameFunc(tmpName, dst); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true
	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
