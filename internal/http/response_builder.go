// Package http provides HTTP server and handler implementations.
//
// This file implements the builder used for every JSON response and the
// mapping from service errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
	applog "ledgerly/internal/log"
	"ledgerly/internal/overview"
	"ledgerly/internal/services"
)

// retryAfterSeconds is sent with 503s caused by an unreachable backend.
const retryAfterSeconds = "5"

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode JSON response", applog.FieldComponent, applog.ComponentHTTP, applog.FieldError, err)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string            `json:"error"`
	Fields []core.FieldError `json:"fields,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// StatusFor maps an error from the service layer to an HTTP status.
func StatusFor(err error) int {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrBadRequest), errors.Is(err, core.ErrInvalidMonthKey):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownCollection),
		errors.Is(err, overview.ErrMonthNotFound),
		errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAccountInUse):
		return http.StatusConflict
	case errors.Is(err, services.ErrReadOnly):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ledger.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ErrorFor builds the response for err. Internal errors are logged and
// reported without detail.
func ErrorFor(r *http.Request, err error) *JSONResponseBuilder {
	status := StatusFor(err)
	body := errorBody{Error: err.Error()}

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		body = errorBody{Error: "validation failed", Fields: verr.Fields}
	}

	b := NewJSONResponse().Status(status)
	switch status {
	case http.StatusServiceUnavailable:
		b.Header("Retry-After", retryAfterSeconds)
		body.Error = "ledger backend unavailable, try again shortly"
	case http.StatusInternalServerError:
		body.Error = "internal error"
	}
	if status >= http.StatusInternalServerError {
		fields := applog.NewFields().
			WithComponent(applog.ComponentHTTP).
			WithError(err)
		fields[applog.FieldPath] = r.URL.Path
		fields[applog.FieldStatusCode] = status
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	}
	return b.Body(body)
}
