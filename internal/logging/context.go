package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCourseRoot is the standardized structured logging key for course root paths.
	FieldCourseRoot = "course_root"
	// FieldPartID is the standardized structured logging key for part identifiers.
	FieldPartID = "part_id"
	// FieldEventType classifies a log record for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType names the decision being logged.
	FieldDecisionType = "decision_type"
	// FieldSessionID tags every record emitted by one CLI invocation.
	FieldSessionID = "session_id"
)

type contextKey int

const courseRootKey contextKey = iota

// WithCourseRoot returns a context tagged with the course root being processed.
func WithCourseRoot(ctx context.Context, root string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, courseRootKey, root)
}

// CourseRootFromContext returns the course root tagged by WithCourseRoot.
func CourseRootFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	root, ok := ctx.Value(courseRootKey).(string)
	return root, ok && root != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if root, ok := CourseRootFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCourseRoot, root))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
