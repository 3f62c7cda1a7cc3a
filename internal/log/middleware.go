package log

import (
	"context"
	"log/slog"
	"net/http"
)

type loggerKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored by NewContext, or one over
// slog.Default with component "unknown".
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// Middleware puts logger into every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger writes the request and ledger write events with a fixed
// field set, so they can be queried the same way everywhere.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	FromContext(ctx).orElse(sl.logger).DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs at warn for 4xx and error for 5xx.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	FromContext(ctx).orElse(sl.logger).Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogTransactionWritten records a create or update of an expense or revenue.
func (sl *StructuredLogger) LogTransactionWritten(ctx context.Context, op string, kind, id, accountID, amount, category string) {
	fields := NewFields().
		WithTransaction(id, kind, accountID, amount, category).
		WithOperation(op).
		WithComponent(ComponentLedger)
	FromContext(ctx).orElse(sl.logger).InfoContext(ctx, "Transaction written", fields.ToSlice()...)
}

// LogAccountWritten records an account create, update or delete.
func (sl *StructuredLogger) LogAccountWritten(ctx context.Context, op, id, name string) {
	fields := NewFields().
		WithOperation(op).
		WithComponent(ComponentLedger)
	fields[FieldAccountID] = id
	if name != "" {
		fields["account_name"] = name
	}
	FromContext(ctx).orElse(sl.logger).InfoContext(ctx, "Account written", fields.ToSlice()...)
}

// orElse prefers a request-scoped logger over the fallback one.
func (l *Logger) orElse(fallback *Logger) *Logger {
	if l.component == "unknown" && fallback != nil {
		return fallback
	}
	return l
}
