package http

import (
	"bytes"
	"net/http"

	applog "ledgerly/internal/log"
	"ledgerly/internal/overview"
	"ledgerly/internal/services"
)

type homePage struct {
	Title       string
	Cards       []services.MonthCard
	Quarantined int
}

type monthPage struct {
	Title string
	View  services.MonthView
	Types []string
	Sorts []string
	Sort  string
}

type accountsPage struct {
	Title    string
	Accounts []services.AccountView
}

type errorPage struct {
	Title   string
	Status  int
	Message string
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ov, err := s.ledger.Overview(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	cards, err := s.ledger.Home(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "home.html", homePage{
		Title:       "Months",
		Cards:       cards,
		Quarantined: len(ov.Quarantined),
	})
}

func (s *Server) handleMonthPage(w http.ResponseWriter, r *http.Request) {
	key, err := ParseMonthKey(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	view, err := s.ledger.Month(r.Context(), key, ParseFilter(r.URL.Query()))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "month.html", monthPage{
		Title: view.Label,
		View:  view,
		Types: overview.TypeOptions(),
		Sorts: overview.SortOptions(),
		Sort:  view.Filter.Order.String(),
	})
}

func (s *Server) handleAccountsPage(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.Accounts(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "accounts.html", accountsPage{Title: "Accounts", Accounts: accounts})
}

// render executes name into a buffer first so a template failure never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldComponent, applog.ComponentTemplate,
			applog.FieldOperation, applog.OpRender,
			"template", name,
			applog.FieldError, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", retryAfterSeconds)
		msg = "The ledger backend is not reachable right now. Try again in a few seconds."
	case http.StatusInternalServerError:
		msg = "Something went wrong."
		s.logger.ErrorContext(r.Context(), "Page failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
	}
	s.render(w, r, status, "error.html", errorPage{
		Title:   http.StatusText(status),
		Status:  status,
		Message: msg,
	})
}
