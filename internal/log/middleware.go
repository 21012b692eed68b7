package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type loggerKey struct{}

// Middleware puts logger into every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := NewContext(r.Context(), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// FromContextOr extracts a logger from ctx, falling back to fallback.
func FromContextOr(ctx context.Context, fallback *Logger) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return logger
	}
	return fallback
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// RequestRecord describes one finished API request.
type RequestRecord struct {
	Method   string
	Path     string
	ClientIP string
	Status   int
	Duration time.Duration
}

// LogRequest logs a finished request through the request-scoped logger, so
// the record carries its request id and goal operation. Client errors log
// at Warn and server errors at Error.
func (sl *StructuredLogger) LogRequest(ctx context.Context, rec RequestRecord) {
	level := slog.LevelInfo
	switch {
	case rec.Status >= http.StatusInternalServerError:
		level = slog.LevelError
	case rec.Status >= http.StatusBadRequest:
		level = slog.LevelWarn
	}

	fields := NewFields().
		With(FieldMethod, rec.Method).
		With(FieldPath, rec.Path).
		With(FieldStatusCode, rec.Status).
		With(FieldDuration, rec.Duration.Milliseconds()).
		WithClientIP(rec.ClientIP)

	FromContextOr(ctx, sl.logger).WithComponent(ComponentHTTP).log(ctx, level, "HTTP request completed", fields...)
}

// LogGoalChanged logs a successful goal mutation made through a front end.
func (sl *StructuredLogger) LogGoalChanged(ctx context.Context, op, id, title string, amountCents int64) {
	fields := NewFields().
		WithGoal(id, title).
		WithOperation(op)
	if amountCents > 0 {
		fields = fields.WithAmount(amountCents)
	}
	sl.logger.WithComponent(ComponentGoals).InfoContext(ctx, "Goal updated", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
