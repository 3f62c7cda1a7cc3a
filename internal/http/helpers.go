package http

import (
	"html/template"
	"net/url"
	"strings"
	"time"

	"ledgerly/internal/core"
	"ledgerly/internal/overview"
)

// templateFuncs are the helpers the page templates use.
var templateFuncs = template.FuncMap{
	"amount":    formatAmount,
	"date":      formatDate,
	"monthHref": monthHref,
	"isExpense": func(tx core.Transaction) bool { return tx.Kind == core.Expense },
}

// formatAmount renders an amount with two decimals, e.g. "1,234.50".
func formatAmount(a core.Amount) string {
	return a.Display()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04")
}

// monthHref links to a month page, keeping the filter if one is given.
func monthHref(key core.MonthKey, filters ...overview.Filter) string {
	href := "/months/" + key.String()
	if len(filters) == 0 {
		return href
	}
	f := filters[0]
	q := url.Values{}
	if f.Category != "" && f.Category != overview.All {
		q.Set("category", f.Category)
	}
	if f.Type != "" && f.Type != overview.All {
		q.Set("type", f.Type)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Order != overview.NewestFirst {
		q.Set("sort", f.Order.String())
	}
	if len(q) > 0 {
		href += "?" + q.Encode()
	}
	return href
}

// sanitizeInput removes control characters. Whitespace is kept.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
