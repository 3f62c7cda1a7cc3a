package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"ledgerly/internal/core"
	"ledgerly/internal/overview"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  overview.Filter
	}{
		{
			name:  "empty query means everything newest first",
			query: url.Values{},
			want:  overview.Filter{Category: overview.All, Type: overview.All},
		},
		{
			name:  "all values provided",
			query: url.Values{"category": {" Food "}, "type": {"Expense"}, "search": {"lunch"}, "sort": {"Oldest first"}},
			want:  overview.Filter{Category: "Food", Type: "Expense", Search: "lunch", Order: overview.OldestFirst},
		},
		{
			name:  "search keeps surrounding spaces",
			query: url.Values{"search": {" sal"}},
			want:  overview.Filter{Category: overview.All, Type: overview.All, Search: " sal"},
		},
		{
			name:  "control characters are stripped",
			query: url.Values{"search": {"sa\x00l"}},
			want:  overview.Filter{Category: overview.All, Type: overview.All, Search: "sal"},
		},
		{
			name:  "unknown sort is newest first",
			query: url.Values{"sort": {"sideways"}},
			want:  overview.Filter{Category: overview.All, Type: overview.All, Order: overview.NewestFirst},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseFilter(tt.query); got != tt.want {
				t.Errorf("ParseFilter() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseMonthKey(t *testing.T) {
	tests := []struct {
		value   string
		want    string
		wantErr bool
	}{
		{"2026-02", "2026-02", false},
		{"2026-2", "2026-02", false},
		{"2026-13", "", true},
		{"feb", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.SetPathValue("key", tt.value)
			got, err := ParseMonthKey(r)
			if tt.wantErr {
				if !errors.Is(err, ErrBadRequest) || !errors.Is(err, core.ErrInvalidMonthKey) {
					t.Fatalf("expected bad request wrapping ErrInvalidMonthKey, got %v", err)
				}
				return
			}
			if err != nil || got.String() != tt.want {
				t.Fatalf("ParseMonthKey() = %v, %v; want %s", got, err, tt.want)
			}
		})
	}
}

func TestParseCollection(t *testing.T) {
	tests := []struct {
		value   string
		want    core.Kind
		wantErr bool
	}{
		{"expenses", core.Expense, false},
		{"revenues", core.Revenue, false},
		{"expense", "", true},
		{"accounts", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.SetPathValue("collection", tt.value)
			got, err := ParseCollection(r)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("ParseCollection(%q) = %q, %v", tt.value, got, err)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantErr     bool
	}{
		{"valid", `{"title":"Coffee"}`, "application/json", false},
		{"no content type", `{"title":"Coffee"}`, "", false},
		{"form content type", `title=Coffee`, "application/x-www-form-urlencoded", true},
		{"unknown field", `{"name":"Coffee"}`, "application/json", true},
		{"two values", `{"title":"a"}{"title":"b"}`, "application/json", true},
		{"empty", ``, "application/json", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			var dst struct {
				Title string `json:"title"`
			}
			err := DecodeJSON(r, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrBadRequest) {
				t.Fatalf("expected ErrBadRequest, got %v", err)
			}
		})
	}
}
