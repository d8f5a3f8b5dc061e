package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"coursetrack/internal/library"
	"coursetrack/internal/logging"
	"coursetrack/internal/progress"
	"coursetrack/internal/watch"
)

const ownerLockName = "owner.lock"

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var positions bool

	cmd := &cobra.Command{
		Use:   "watch <root>...",
		Short: "Keep courses in sync with their folders until interrupted",
		Long: "Take ownership of each course root, sync it once, then rescan whenever its files\n" +
			"change. With --positions, player events are read from stdin as \"<file> <seconds>\"\n" +
			"lines and written through the debounced persister.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()

			persister := svc.persister()
			syncer := svc.syncer(library.WithSavedHook(persister.Invalidate))

			watcher, err := watch.New(svc.cfg, syncer, svc.logger)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}

			var locks []*flock.Flock
			defer func() {
				for _, l := range locks {
					_ = l.Unlock()
				}
			}()

			out := cmd.OutOrStdout()
			for _, arg := range args {
				root, err := resolveRoot(arg)
				if err != nil {
					return err
				}
				lock, err := acquireOwnership(svc.repo.RepositoryFolder(root))
				if err != nil {
					return err
				}
				locks = append(locks, lock)

				report, err := syncer.Sync(runCtx, root)
				if err != nil {
					return fmt.Errorf("initial sync %s: %w", root, err)
				}
				if err := watcher.Add(root); err != nil {
					return fmt.Errorf("watch %s: %w", root, err)
				}
				fmt.Fprintf(out, "Watching %s (%d parts, %s)\n", root, report.Course.PartCount(), report.Course.Status)
			}

			if positions {
				go feedPositions(runCtx, cmd.InOrStdin(), persister, svc.logger)
			}

			runErr := watcher.Run(runCtx)

			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 30*time.Second)
			defer cancel()
			if err := persister.Close(flushCtx); err != nil {
				logging.ErrorWithContext(svc.logger, "final position flush failed", "progress_flush_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check that the metadata folder is writable"),
					logging.String(logging.FieldImpact, "the latest playback positions were not saved"))
				return errors.Join(runErr, err)
			}
			fmt.Fprintln(out, "Stopped watching")
			return runErr
		},
	}

	cmd.Flags().BoolVar(&positions, "positions", false, "Read \"<file> <seconds>\" position events from stdin")
	return cmd
}

// acquireOwnership takes the single-writer lock for a course's metadata
// folder.
func acquireOwnership(metadataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(metadataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create metadata folder: %w", err)
	}
	lock := flock.New(filepath.Join(metadataDir, ownerLockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire course lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("course at %s is already owned by another coursetrack process", filepath.Dir(metadataDir))
	}
	return lock, nil
}

func feedPositions(ctx context.Context, in io.Reader, persister *progress.Persister, logger *slog.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		file, seconds, err := parsePositionLine(scanner.Text())
		if err != nil {
			logger.Debug("position line ignored", logging.Error(err))
			continue
		}
		persister.NotifyPosition(ctx, file, seconds)
	}
}

// parsePositionLine splits "<file> <seconds>" on the last whitespace so file
// names may contain spaces.
func parsePositionLine(line string) (string, float64, error) {
	line = strings.TrimSpace(line)
	idx := strings.LastIndexAny(line, " \t")
	if idx <= 0 {
		return "", 0, fmt.Errorf("malformed position line %q", line)
	}
	seconds, err := parseSeconds(line[idx+1:])
	if err != nil {
		return "", 0, err
	}
	return strings.TrimSpace(line[:idx]), seconds, nil
}
