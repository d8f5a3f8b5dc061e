package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coursetrack/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// OutputPaths accepts "stdout", "stderr", or file paths. Defaults to stdout.
	OutputPaths []string
	// SessionID, when set, is attached to every record as session_id.
	SessionID   string
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))

	out, err := openOutputs(opts.OutputPaths)
	if err != nil {
		return nil, err
	}
	addSource := opts.Development || level.Level() <= slog.LevelDebug

	var handler slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		handler = newConsoleHandler(out, level, addSource)
	case "json":
		handler = newJSONHandler(out, level, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	if id := strings.TrimSpace(opts.SessionID); id != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String(FieldSessionID, id)})
	}
	return slog.New(handler), nil
}

// NewFromConfig logs to stdout and, when a log directory is configured, to
// <log_dir>/coursetrack.log.
func NewFromConfig(cfg *config.Config, sessionID string) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{SessionID: sessionID})
	}
	outputs := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "coursetrack.log"))
	}
	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		SessionID:   sessionID,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openOutputs resolves output targets into one writer. Duplicate targets are
// opened once and log files are created with their parent directory.
func openOutputs(paths []string) (io.Writer, error) {
	if len(paths) == 0 {
		return os.Stdout, nil
	}
	seen := make(map[string]struct{}, len(paths))
	writers := make([]io.Writer, 0, len(paths))
	for _, raw := range paths {
		target := strings.TrimSpace(raw)
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}

		switch target {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
			file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", target, err)
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

func newJSONHandler(w io.Writer, level *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	})
}
