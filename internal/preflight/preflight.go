package preflight

import (
	"context"
	"path/filepath"

	"coursetrack/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes the checks that apply to cfg and the given course roots.
func RunAll(ctx context.Context, cfg *config.Config, roots []string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	results = append(results, CheckBinary(ctx, BinaryRequirement{
		Name:        "FFprobe",
		Command:     cfg.Scanner.FFprobeBinary,
		Description: "Reads part durations",
		Optional:    !cfg.Scanner.ProbeDurations,
	}))

	for _, root := range roots {
		results = append(results, CheckCourseRoot(root, cfg.Repository.MetadataDir))
	}
	return results
}

// Failed reports whether any required check did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}

// CheckCourseRoot verifies root is readable and that its metadata folder can
// be created or written.
func CheckCourseRoot(root, metadataDir string) Result {
	name := "Course " + filepath.Base(root)
	result := checkAccess(name, root, readOnly)
	if !result.Passed {
		return result
	}
	meta := filepath.Join(root, metadataDir)
	if exists(meta) {
		return checkAccess(name, meta, readWrite)
	}
	return checkAccess(name, root, readWrite)
}
