package http

import (
	"context"
	"net/http"
	"time"

	"ledgerly/internal/core"
	applog "ledgerly/internal/log"
	"ledgerly/internal/overview"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready once a snapshot can be loaded from the backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyTO)
	defer cancel()

	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients()},
		"writable":     s.ledger.Writable(),
		"caches":       s.ledger.CacheStats(),
	}
	status, code := "ready", http.StatusOK
	if s.health != nil {
		if details, err := s.health(ctx); err != nil {
			checks["backend"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["backend"] = details
		}
	}
	if snap, err := s.ledger.Snapshot(ctx); err != nil {
		checks["ledger"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["ledger"] = map[string]any{
			"expenses": len(snap.Expenses),
			"revenues": len(snap.Revenues),
			"accounts": len(snap.Accounts),
		}
	}

	b := NewJSONResponse().Status(code)
	if code == http.StatusServiceUnavailable {
		b.Header("Retry-After", retryAfterSeconds)
	}
	b.Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.ledger.Overview(r.Context())
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	if ov.Months == nil {
		ov.Months = []overview.MonthBucket{}
	}
	NewJSONResponse().Body(ov).Write(w)
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	sums, err := s.ledger.Summaries(r.Context())
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	if sums == nil {
		sums = []core.MonthSummary{}
	}
	NewJSONResponse().Body(sums).Write(w)
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	key, err := ParseMonthKey(r)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	view, err := s.ledger.Month(r.Context(), key, ParseFilter(r.URL.Query()))
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.Accounts(r.Context())
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(accounts).Write(w)
}

func (s *Server) handleAccountMonths(w http.ResponseWriter, r *http.Request) {
	account, months, err := s.ledger.AccountMonths(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	if months == nil {
		months = []overview.MonthBucket{}
	}
	NewJSONResponse().Body(map[string]any{
		"account": account,
		"months":  months,
	}).Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.Refresh(r.Context())
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"expenses": len(snap.Expenses),
		"revenues": len(snap.Revenues),
		"accounts": len(snap.Accounts),
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseCollection(r)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	var in core.TransactionInput
	if err := DecodeJSON(r, &in); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	rec, err := s.ledger.CreateTransaction(r.Context(), kind, in)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	s.logWritten(r, applog.OpCreate, kind, rec)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/"+kind.Collection()+"/"+rec.ID).
		Body(rec).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseCollection(r)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	var in core.TransactionInput
	if err := DecodeJSON(r, &in); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	rec, err := s.ledger.UpdateTransaction(r.Context(), kind, r.PathValue("id"), in)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	s.logWritten(r, applog.OpUpdate, kind, rec)
	NewJSONResponse().Body(rec).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseCollection(r)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), kind, r.PathValue("id")); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in core.AccountInput
	if err := DecodeJSON(r, &in); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	acc, err := s.ledger.CreateAccount(r.Context(), in)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	s.structured.LogAccountWritten(r.Context(), applog.OpCreate, acc.ID, acc.Name)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/accounts/"+acc.ID+"/months").
		Body(acc).
		Write(w)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var in core.AccountInput
	if err := DecodeJSON(r, &in); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	acc, err := s.ledger.UpdateAccount(r.Context(), r.PathValue("id"), in)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	s.structured.LogAccountWritten(r.Context(), applog.OpUpdate, acc.ID, acc.Name)
	NewJSONResponse().Body(acc).Write(w)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ledger.DeleteAccount(r.Context(), id); err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	s.structured.LogAccountWritten(r.Context(), applog.OpDelete, id, "")
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) logWritten(r *http.Request, op string, kind core.Kind, rec core.RawTransaction) {
	s.structured.LogTransactionWritten(r.Context(), op, kind.String(), rec.ID, rec.AccountID, rec.Amount.Display(), rec.Category)
}
