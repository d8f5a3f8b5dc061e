//go:build unix

package scanner

import "golang.org/x/sys/unix"

// checkReadable verifies the directory can be listed and traversed before
// ReadDir is attempted.
func checkReadable(path string) error {
	return unix.Access(path, unix.R_OK|unix.X_OK)
}
