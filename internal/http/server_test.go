package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
	"ledgerly/internal/ledger/memory"
	applog "ledgerly/internal/log"
	"ledgerly/internal/metrics"
	"ledgerly/internal/middleware/ratelimit"
	"ledgerly/internal/services"
)

func seedDatabase() memory.Database {
	return memory.Database{
		Expenses: []core.RawTransaction{
			{ID: "e1", AccountID: "a1", Title: "Groceries", Amount: core.NewAmount(40), Category: "Food", CreatedAt: "2026-02-10T10:00:00.000Z"},
			{ID: "bad", AccountID: "a1", Title: "Broken", Amount: core.NewAmount(1), CreatedAt: "yesterday"},
		},
		Revenues: []core.RawTransaction{
			{ID: "r1", AccountID: "a1", Title: "Salary", Amount: core.NewAmount(1500), Category: "Work", CreatedAt: "2026-02-01T09:00:00.000Z"},
			{ID: "r2", AccountID: "a2", Title: "Refund", Amount: core.NewAmount(20), Category: "Other", CreatedAt: "2026-01-15T09:00:00.000Z"},
		},
		Accounts: []core.Account{
			{ID: "a1", Name: "Checking", Type: core.Bank, Balance: core.NewAmount(1000), Currency: "EUR"},
			{ID: "a2", Name: "Savings", Type: core.Savings, Balance: core.NewAmount(500), Currency: "EUR"},
		},
	}
}

// failingSource is a backend that is always down.
type failingSource struct{}

func (failingSource) ListExpenses(context.Context) ([]core.RawTransaction, error) {
	return nil, errors.New("connection refused")
}
func (failingSource) ListRevenues(context.Context) ([]core.RawTransaction, error) {
	return nil, errors.New("connection refused")
}
func (failingSource) ListAccounts(context.Context) ([]core.Account, error) {
	return nil, errors.New("connection refused")
}

var _ ledger.Source = failingSource{}

func newTestServer(t *testing.T, src ledger.Source) *Server {
	t.Helper()
	svc := services.NewLedgerService(src, nil, nil, services.DefaultLedgerServiceConfig())
	reg := prometheus.NewRegistry()
	srv := NewServer(":0", svc, Options{
		Logger:    applog.NewText(io.Discard, slog.LevelError, "test"),
		Recorder:  metrics.NewPrometheusMetrics(reg),
		Gatherer:  reg,
		RateLimit: ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000},
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

func TestHealthReadyAndMetrics(t *testing.T) {
	srv := newTestServer(t, memory.New(seedDatabase()))

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "ledgerly_http_requests_total") {
		t.Fatalf("metrics missing request counter:\n%s", rr.Body.String())
	}
}

func TestReadyWhenBackendDown(t *testing.T) {
	srv := newTestServer(t, failingSource{})

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "5" {
		t.Fatalf("expected Retry-After 5, got %q", rr.Header().Get("Retry-After"))
	}
}

func TestReadyIncludesBackendHealth(t *testing.T) {
	svc := services.NewLedgerService(memory.New(seedDatabase()), nil, nil, services.DefaultLedgerServiceConfig())
	var healthErr error
	health := func(context.Context) (map[string]any, error) {
		if healthErr != nil {
			return nil, healthErr
		}
		return map[string]any{"database": "ok"}, nil
	}
	srv := NewServer(":0", svc, Options{
		Logger:        applog.NewText(io.Discard, slog.LevelError, "test"),
		BackendHealth: health,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"database":"ok"`)

	healthErr = errors.New("database is closed")
	rr = do(t, srv, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "database is closed")
}

type overviewBody struct {
	Months []struct {
		Month        string `json:"month"`
		Transactions []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"transactions"`
	} `json:"months"`
	Quarantined []struct {
		Record struct {
			ID string `json:"id"`
		} `json:"record"`
	} `json:"quarantined"`
}

func TestOverviewAPI(t *testing.T) {
	srv := newTestServer(t, memory.New(seedDatabase()))

	rr := do(t, srv, http.MethodGet, "/api/overview", "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode[overviewBody](t, rr)

	require.Len(t, body.Months, 2)
	assert.Equal(t, "2026-02", body.Months[0].Month)
	assert.Equal(t, "2026-01", body.Months[1].Month)
	require.Len(t, body.Months[0].Transactions, 2)
	assert.Equal(t, "e1", body.Months[0].Transactions[0].ID)
	assert.Equal(t, "expense", body.Months[0].Transactions[0].Type)
	assert.Equal(t, "r1", body.Months[0].Transactions[1].ID)
	require.Len(t, body.Quarantined, 1)
	assert.Equal(t, "bad", body.Quarantined[0].Record.ID)
}

func TestMonthAPI(t *testing.T) {
	srv := newTestServer(t, memory.New(seedDatabase()))

	type monthBody struct {
		Month        string `json:"month"`
		Label        string `json:"label"`
		Transactions []struct {
			ID string `json:"id"`
		} `json:"transactions"`
		Categories []string `json:"categories"`
	}

	tests := []struct {
		name    string
		target  string
		status  int
		wantIDs []string
	}{
		{"whole month", "/api/months/2026-02", http.StatusOK, []string{"e1", "r1"}},
		{"oldest first", "/api/months/2026-02?sort=Oldest+first", http.StatusOK, []string{"r1", "e1"}},
		{"expenses only", "/api/months/2026-02?type=Expense", http.StatusOK, []string{"e1"}},
		{"search", "/api/months/2026-02?search=sal", http.StatusOK, []string{"r1"}},
		{"search keeps leading space", "/api/months/2026-02?search=%20sal", http.StatusOK, []string{}},
		{"category", "/api/months/2026-02?category=Food", http.StatusOK, []string{"e1"}},
		{"no match", "/api/months/2026-02?category=Travel", http.StatusOK, []string{}},
		{"unknown month", "/api/months/2025-12", http.StatusNotFound, nil},
		{"bad key", "/api/months/2026-13", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.target, "")
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			if tt.wantIDs == nil {
				return
			}
			body := decode[monthBody](t, rr)
			assert.Equal(t, "February 2026", body.Label)
			assert.Equal(t, []string{"Food", "Work"}, body.Categories)
			ids := []string{}
			for _, tx := range body.Transactions {
				ids = append(ids, tx.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestBackendDownReturns503(t *testing.T) {
	srv := newTestServer(t, failingSource{})

	for _, target := range []string{"/api/overview", "/api/months/2026-02", "/api/accounts"} {
		rr := do(t, srv, http.MethodGet, target, "")
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", target, rr.Code)
		}
		if rr.Header().Get("Retry-After") != "5" {
			t.Fatalf("%s: missing Retry-After", target)
		}
	}

	rr := do(t, srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("home page: expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not reachable") {
		t.Fatalf("home page should explain the outage")
	}
}

func TestAccountsAPI(t *testing.T) {
	srv := newTestServer(t, memory.New(seedDatabase()))

	rr := do(t, srv, http.MethodGet, "/api/accounts", "")
	require.Equal(t, http.StatusOK, rr.Code)
	accounts := decode[[]services.AccountView](t, rr)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a1", accounts[0].Account.ID)
	assert.Equal(t, "1460", accounts[0].Activity.Net.String())

	rr = do(t, srv, http.MethodGet, "/api/accounts/a2/months", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"month":"2026-01"`)

	rr = do(t, srv, http.MethodGet, "/api/accounts/missing/months", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTransactionWrites(t *testing.T) {
	srv := newTestServer(t, memory.New(seedDatabase()))

	created := do(t, srv, http.MethodPost, "/api/expenses",
		`{"accountId":"a1","title":"Coffee","amount":3.5,"category":"Food","createdAt":"2026-02-11T07:30:00.000Z"}`)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	rec := decode[core.RawTransaction](t, created)
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, "/api/expenses/"+rec.ID, created.Header().Get("Location"))

	// The new record shows up without waiting for the snapshot TTL.
	rr := do(t, srv, http.MethodGet, "/api/months/2026-02?type=Expense", "")
	assert.Contains(t, rr.Body.String(), rec.ID)

	updated := do(t, srv, http.MethodPut, "/api/expenses/"+rec.ID,
		`{"accountId":"a1","title":"Espresso","amount":"2.00","category":"Food","createdAt":"2026-02-11T07:30:00.000Z"}`)
	require.Equal(t, http.StatusOK, updated.Code, updated.Body.String())
	assert.Equal(t, "Espresso", decode[core.RawTransaction](t, updated).Title)

	deleted := do(t, srv, http.MethodDelete, "/api/expenses/"+rec.ID, "")
	require.Equal(t, http.StatusNoContent, deleted.Code)

	again := do(t, srv, http.MethodDelete, "/api/expenses/"+rec.ID, "")
	assert.Equal(t, http.StatusNotFound, again.Code)

	unknown := do(t, srv, http.MethodPost, "/api/transfers", `{}`)
	assert.Equal(t, http.StatusNotFound, unknown.Code)
}

func TestTransactionValidation(t *testing.T) {
	srv := newTestServer(t, memory.New(seedDatabase()))

	tests := []struct {
		name      string
		body      string
		status    int
		wantField string
	}{
		{"malformed json", `{"title":`, http.StatusBadRequest, ""},
		{"unknown field", `{"titel":"x"}`, http.StatusBadRequest, ""},
		{"missing title", `{"accountId":"a1","amount":3,"category":"Food","createdAt":"2026-02-11T07:30:00Z"}`, http.StatusUnprocessableEntity, "title"},
		{"zero amount", `{"accountId":"a1","title":"x","amount":0,"category":"Food","createdAt":"2026-02-11T07:30:00Z"}`, http.StatusUnprocessableEntity, "amount"},
		{"bad date", `{"accountId":"a1","title":"x","amount":1,"category":"Food","createdAt":"soon"}`, http.StatusUnprocessableEntity, "createdAt"},
		{"unknown account", `{"accountId":"zz","title":"x","amount":1,"category":"Food","createdAt":"2026-02-11T07:30:00Z"}`, http.StatusUnprocessableEntity, "accountId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/revenues", tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			if tt.wantField == "" {
				return
			}
			body := decode[errorBody](t, rr)
			fields := []string{}
			for _, f := range body.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestAccountWrites(t *testing.T) {
	srv := newTestServer(t, memory.New(seedDatabase()))

	rr := do(t, srv, http.MethodPost, "/api/accounts", `{"name":"Wallet","type":"Cash","balance":20,"currency":"EUR"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	acc := decode[core.Account](t, rr)
	require.NotEmpty(t, acc.ID)

	rr = do(t, srv, http.MethodPut, "/api/accounts/"+acc.ID, `{"name":"Pocket","type":"Wallet","balance":20,"currency":"EUR"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Pocket", decode[core.Account](t, rr).Name)

	rr = do(t, srv, http.MethodPost, "/api/accounts", `{"name":"Odd","type":"Piggy bank","currency":"EUR"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/api/accounts/a1", "")
	assert.Equal(t, http.StatusConflict, rr.Code, "account with transactions must not be deleted")

	rr = do(t, srv, http.MethodDelete, "/api/accounts/"+acc.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestReadOnlyBackend(t *testing.T) {
	srv := newTestServer(t, ledger.ReadOnly(memory.New(seedDatabase())))

	rr := do(t, srv, http.MethodPost, "/api/expenses",
		`{"accountId":"a1","title":"Coffee","amount":3.5,"category":"Food","createdAt":"2026-02-11T07:30:00.000Z"}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRefresh(t *testing.T) {
	store := memory.New(seedDatabase())
	srv := newTestServer(t, store)

	rr := do(t, srv, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rr.Code)
	counts := decode[map[string]int](t, rr)
	assert.Equal(t, 2, counts["expenses"])
	assert.Equal(t, 2, counts["revenues"])
}

func TestPages(t *testing.T) {
	srv := newTestServer(t, memory.New(seedDatabase()))

	tests := []struct {
		target string
		status int
		want   []string
	}{
		{"/", http.StatusOK, []string{"February 2026", "January 2026", "Salary", "1 record(s)"}},
		{"/months/2026-02?type=Revenue", http.StatusOK, []string{"February 2026", "Salary", "+1,500.00"}},
		{"/months/2026-03", http.StatusNotFound, []string{"month not found"}},
		{"/months/march", http.StatusBadRequest, []string{"invalid month key"}},
		{"/accounts", http.StatusOK, []string{"Checking", "Savings"}},
		{"/static/style.css", http.StatusOK, []string{"--accent"}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.target, "")
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			for _, want := range tt.want {
				assert.Contains(t, rr.Body.String(), want)
			}
		})
	}

	rr := do(t, srv, http.MethodGet, "/months/2026-02?type=Revenue", "")
	assert.NotContains(t, rr.Body.String(), "Groceries")
	assert.NotContains(t, rr.Body.String(), "&#43;", "the sign is markup, not escaped text")
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	svc := services.NewLedgerService(memory.New(seedDatabase()), nil, nil, services.DefaultLedgerServiceConfig())
	srv := NewServer(":0", svc, Options{
		Logger:    applog.NewText(&bytes.Buffer{}, slog.LevelError, "test"),
		RateLimit: ratelimit.Config{RequestsPerSecond: 0.001, Burst: 2},
	})
	defer srv.Shutdown(context.Background())

	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, srv, http.MethodGet, "/healthz", "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
