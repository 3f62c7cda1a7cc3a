package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	applog "ledgerly/internal/log"
)

type recordedRequest struct {
	method, route string
	status        int
}

type fakeRecorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (f *fakeRecorder) SnapshotLoaded(time.Duration, error) {}
func (f *fakeRecorder) OverviewBuilt(int, int, int)         {}
func (f *fakeRecorder) Mutation(string, string, error)      {}
func (f *fakeRecorder) MirrorRun(time.Duration, error)      {}
func (f *fakeRecorder) HTTPRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, recordedRequest{method, route, status})
}

func TestMiddlewareRecordsRouteAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.NewText(&buf, slog.LevelInfo, "test")
	rec := &fakeRecorder{}
	m := NewMiddleware(func(*http.Request) string { return "1.2.3.4" }, logger, rec)

	var seenID string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /months/{key}", func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	m.Middleware(mux).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/months/2026-02", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status=%d", rr.Code)
	}
	if seenID == "" || rr.Header().Get(RequestIDHeader) != seenID {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seenID, rr.Header().Get(RequestIDHeader))
	}
	if len(rec.reqs) != 1 {
		t.Fatalf("expected one recorded request, got %d", len(rec.reqs))
	}
	if got := rec.reqs[0]; got.route != "GET /months/{key}" || got.status != http.StatusTeapot {
		t.Fatalf("unexpected record %+v", got)
	}
	if !strings.Contains(buf.String(), "HTTP request completed") {
		t.Fatalf("completion not logged: %s", buf.String())
	}
	if m.TotalRequests() != 1 {
		t.Fatalf("expected 1 request counted")
	}
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	m := NewMiddleware(nil, applog.NewText(&bytes.Buffer{}, slog.LevelError, "test"), nil)
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req.Header.Set(RequestIDHeader, "req_from_proxy")

	rr := httptest.NewRecorder()
	m.Middleware(http.NotFoundHandler()).ServeHTTP(rr, req)
	if got := rr.Header().Get(RequestIDHeader); got != "req_from_proxy" {
		t.Fatalf("expected incoming id, got %q", got)
	}
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if !strings.HasPrefix(a, "req_") || a == b {
		t.Fatalf("unexpected ids %q %q", a, b)
	}
}
