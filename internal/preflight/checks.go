package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const (
	readOnly  = unix.R_OK | unix.X_OK
	readWrite = unix.R_OK | unix.W_OK | unix.X_OK
)

// BinaryRequirement describes an external command coursetrack may invoke.
type BinaryRequirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// CheckBinary resolves the command on PATH and runs "<command> -version" to
// confirm it starts.
func CheckBinary(ctx context.Context, req BinaryRequirement) Result {
	result := Result{Name: req.Name, Optional: req.Optional}
	cmd := strings.TrimSpace(req.Command)
	if cmd == "" {
		result.Detail = "command not configured"
		return result
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", cmd)
		if req.Optional {
			result.Detail += " (optional: " + req.Description + ")"
		}
		return result
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(checkCtx, path, "-version").Run(); err != nil {
		result.Detail = fmt.Sprintf("%s failed to start: %v", path, err)
		return result
	}
	result.Passed = true
	result.Detail = path
	return result
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkAccess(name, path, readWrite)
}

func checkAccess(name, path string, mode uint32) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	label := "read ok"
	if mode&unix.W_OK != 0 {
		label = "read/write ok"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, label)}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
