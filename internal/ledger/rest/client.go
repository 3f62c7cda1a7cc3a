// Package rest talks to the json-server style finance backend that owns the
// expenses, revenues and accounts collections.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
)

// ErrNotFound is ledger.ErrNotFound, re-exported for callers of this package.
var ErrNotFound = ledger.ErrNotFound

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

type Client struct {
	base *url.URL
	http *http.Client
}

// Ensure interface conformance
var _ ledger.Store = (*Client)(nil)

// New creates a client for the backend rooted at baseURL. A nil httpClient
// gets a pooled client with the given timeout.
func New(baseURL string, httpClient *http.Client, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http or https, got %q", baseURL)
	}
	if httpClient == nil {
		httpClient = newHTTPClientWithPooling(timeout)
	}
	return &Client{base: u, http: httpClient}, nil
}

func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) endpoint(parts ...string) string {
	return c.base.JoinPath(parts...).String()
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, endpoint, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, URL: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// list fetches one transaction collection. Records are decoded one by one;
// a record that does not decode comes back with Invalid set.
func (c *Client) list(ctx context.Context, kind core.Kind) ([]core.RawTransaction, error) {
	endpoint := c.endpoint(kind.Collection())
	var body json.RawMessage
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &body); err != nil {
		return nil, err
	}
	out, err := core.DecodeTransactions(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return out, nil
}

func (c *Client) ListExpenses(ctx context.Context) ([]core.RawTransaction, error) {
	return c.list(ctx, core.Expense)
}

func (c *Client) ListRevenues(ctx context.Context) ([]core.RawTransaction, error) {
	return c.list(ctx, core.Revenue)
}

func (c *Client) ListAccounts(ctx context.Context) ([]core.Account, error) {
	var out []core.Account
	if err := c.do(ctx, http.MethodGet, c.endpoint("accounts"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create posts r to the kind's collection. json-server assigns the id when r
// has none.
func (c *Client) Create(ctx context.Context, kind core.Kind, r core.RawTransaction) (core.RawTransaction, error) {
	var out core.RawTransaction
	if err := c.do(ctx, http.MethodPost, c.endpoint(kind.Collection()), wireRecord{ID: r.ID, RawTransaction: r}, &out); err != nil {
		return core.RawTransaction{}, err
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, kind core.Kind, r core.RawTransaction) (core.RawTransaction, error) {
	if r.ID == "" {
		return core.RawTransaction{}, errors.New("update requires an id")
	}
	var out core.RawTransaction
	if err := c.do(ctx, http.MethodPut, c.endpoint(kind.Collection(), r.ID), wireRecord{ID: r.ID, RawTransaction: r}, &out); err != nil {
		return core.RawTransaction{}, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, kind core.Kind, id string) error {
	return c.do(ctx, http.MethodDelete, c.endpoint(kind.Collection(), id), nil, nil)
}

// wireRecord leaves the id out when it is empty so json-server assigns one.
type wireRecord struct {
	ID string `json:"id,omitempty"`
	core.RawTransaction
}

func (c *Client) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	var out core.Account
	if err := c.do(ctx, http.MethodPost, c.endpoint("accounts"), wireAccount{ID: a.ID, Account: a}, &out); err != nil {
		return core.Account{}, err
	}
	return out, nil
}

func (c *Client) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		return core.Account{}, errors.New("update requires an id")
	}
	var out core.Account
	if err := c.do(ctx, http.MethodPut, c.endpoint("accounts", a.ID), wireAccount{ID: a.ID, Account: a}, &out); err != nil {
		return core.Account{}, err
	}
	return out, nil
}

func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.endpoint("accounts", id), nil, nil)
}

type wireAccount struct {
	ID string `json:"id,omitempty"`
	core.Account
}
