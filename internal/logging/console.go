package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05.000"

// consoleHandler renders one line per record:
//
//	<time> <LEVEL> <component>: [<course>] <msg> key=value ...
//
// The course segment is the base name of course_root. session_id is left to
// the JSON format.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	attrs     []slog.Attr
	groups    []string
}

func newConsoleHandler(w io.Writer, level *slog.LevelVar, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]field, 0, len(h.attrs)+record.NumAttrs())
	for _, attr := range h.attrs {
		fields = appendField(fields, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.groups, attr)
		return true
	})

	var component, courseRoot string
	rest := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			if component == "" {
				component = f.value.String()
			}
		case FieldCourseRoot:
			courseRoot = f.value.String()
		case FieldSessionID:
		default:
			rest = append(rest, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var buf bytes.Buffer
	buf.WriteString(ts.Local().Format(consoleTimeLayout))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	buf.WriteByte(' ')
	if component != "" {
		buf.WriteString(component)
		buf.WriteString(": ")
	}
	if courseRoot != "" {
		buf.WriteByte('[')
		buf.WriteString(filepath.Base(courseRoot))
		buf.WriteString("] ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)

	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range rest {
		buf.WriteByte(' ')
		buf.WriteString(f.key)
		buf.WriteByte('=')
		buf.WriteString(renderValue(f.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

type field struct {
	key   string
	value slog.Value
}

// appendField flattens groups into dotted keys.
func appendField(dst []field, groups []string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			groups = append(append([]string(nil), groups...), attr.Key)
		}
		for _, child := range value.Group() {
			dst = appendField(dst, groups, child)
		}
		return dst
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(append(append([]string(nil), groups...), key), ".")
	}
	return append(dst, field{key: key, value: value})
}

func renderValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindFloat64:
		s = strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		s = v.Time().Local().Format(consoleTimeLayout)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
