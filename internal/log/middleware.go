package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey struct{}

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or the slog default tagged
// "unknown" outside a request.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return wrap(slog.Default(), "unknown")
}

// Middleware makes logger available to handlers through FromContext.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// RequestIDMiddleware binds the request ID to the context logger. It must
// run inside Middleware.
func RequestIDMiddleware(requestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestID(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			logger := FromContext(r.Context()).With(FieldRequestID, id)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger writes the domain events that have a fixed shape.
type StructuredLogger struct {
	base *slog.Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{base: logger.base}
}

// LogDatasetLoaded logs at warn level when any row was dropped.
func (sl *StructuredLogger) LogDatasetLoaded(ctx context.Context, username, source string, total, kept, dropped int) {
	level := slog.LevelInfo
	if dropped > 0 {
		level = slog.LevelWarn
	}
	fields := NewFields().
		Component(ComponentDataset).
		Operation(OpLoad).
		User(username).
		Load(source, total, kept, dropped)
	sl.base.Log(ctx, level, "Dataset loaded", fields.Args()...)
}

func (sl *StructuredLogger) LogExportRequested(ctx context.Context, username string, formats []string, queued bool) {
	fields := NewFields().
		Component(ComponentExport).
		Operation(OpExport).
		User(username).
		Set(FieldFormat, formats).
		Set(FieldQueued, queued)
	sl.base.InfoContext(ctx, "Export requested", fields.Args()...)
}

// LogError appends the error, operation and component to extra.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, extra Fields) {
	fields := NewFields().
		Component(component).
		Operation(operation)
	fields = append(fields, extra...)
	sl.base.ErrorContext(ctx, msg, fields.Err(err).Args()...)
}
