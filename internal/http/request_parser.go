// Package http provides HTTP server and handler implementations.
//
// This file holds the helpers that turn path values, query strings and JSON
// bodies into domain values, so handlers stay a straight line from request to
// service call.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ledgerly/internal/core"
	"ledgerly/internal/overview"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var (
	ErrBadRequest        = errors.New("bad request")
	ErrUnknownCollection = errors.New("unknown collection")
)

// ParseFilter reads the month page filters from query parameters. Missing
// category and type mean All; an unknown sort is newest first. The search
// term is matched as typed, surrounding spaces included.
func ParseFilter(query url.Values) overview.Filter {
	f := overview.Filter{
		Category: strings.TrimSpace(sanitizeInput(query.Get("category"))),
		Type:     strings.TrimSpace(sanitizeInput(query.Get("type"))),
		Search:   sanitizeInput(query.Get("search")),
		Order:    overview.ParseSortOrder(query.Get("sort")),
	}
	if f.Category == "" {
		f.Category = overview.All
	}
	if f.Type == "" {
		f.Type = overview.All
	}
	return f
}

// ParseMonthKey reads the {key} path value.
func ParseMonthKey(r *http.Request) (core.MonthKey, error) {
	key, err := core.ParseMonthKey(r.PathValue("key"))
	if err != nil {
		return core.MonthKey{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return key, nil
}

// ParseCollection maps the {collection} path value ("expenses" or
// "revenues") to its kind.
func ParseCollection(r *http.Request) (core.Kind, error) {
	name := r.PathValue("collection")
	for _, k := range []core.Kind{core.Expense, core.Revenue} {
		if name == k.Collection() {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownCollection, name)
}

// DecodeJSON reads a single JSON value into dst. Unknown fields and trailing
// data are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("%w: content type must be application/json", ErrBadRequest)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON value", ErrBadRequest)
	}
	return nil
}
