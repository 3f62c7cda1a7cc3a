package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewText(&buf, slog.LevelInfo, ComponentMirror)
	l.Info("mirror done", FieldCount, 3)
	l.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "component=mirror") || !strings.Contains(out, "count=3") {
		t.Fatalf("missing fields in %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %q", out)
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewText(&buf, slog.LevelInfo, ComponentHTTP)

	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := NewContext(r.Context(), FromContext(r.Context()).With(FieldRequestID, "req-1"))
		FromContext(ctx).Info("inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("request id not propagated: %q", buf.String())
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}

func TestStructuredLoggerTransactionWritten(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(NewText(&buf, slog.LevelInfo, ComponentLedger))
	sl.LogTransactionWritten(context.Background(), OpCreate, "expense", "e1", "a1", "12.5", "Food")
	sl.LogAccountWritten(context.Background(), OpDelete, "a2", "")

	out := buf.String()
	for _, want := range []string{"transaction_id=e1", "type=expense", "operation=create", "operation=delete", "account_id=a2"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestStructuredLoggerPrefersRequestLogger(t *testing.T) {
	var fallback, scoped bytes.Buffer
	sl := NewStructuredLogger(NewText(&fallback, slog.LevelInfo, ComponentHTTP))
	ctx := NewContext(context.Background(), NewText(&scoped, slog.LevelInfo, ComponentHTTP).With(FieldRequestID, "req-9"))

	r := httptest.NewRequest(http.MethodGet, "/api/overview", nil)
	sl.LogHTTPEnd(ctx, r, http.StatusNotFound, 3, "10.0.0.1")

	if fallback.Len() != 0 {
		t.Fatalf("fallback logger used: %q", fallback.String())
	}
	out := scoped.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "request_id=req-9") {
		t.Fatalf("unexpected access log: %q", out)
	}
}
