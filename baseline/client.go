/*
Package baseline provides settlement.Fetcher implementations.

PURPOSE:
  The baseline payload is computed by an external service (leave balances,
  service-year accrual, payroll rates). The engine only consumes its output.
  This package talks to that service, or stands in for it.

FETCHERS:
  Client:          HTTP client for the remote computation service
  FixtureFetcher:  Canned payloads keyed by employee (demo / offline mode)

WIRE FORMAT:
  Request:   POST <base><method>  {"employee": "...", "transaction_date": "YYYY-MM-DD"}
  Response:  {"message": {<payload>}}  or a bare payload

  The remote side wraps return values in a "message" envelope; both forms
  are accepted. A null message is an absent payload, which the applicator
  reports as BaselineUnavailable.

FAILURES:
  Network errors, non-2xx statuses and undecodable bodies are returned as
  *settlement.TransportError. No retry is attempted.

SEE ALSO:
  - fixtures.go: FixtureFetcher
  - settlement/session.go: The consumer
*/
package baseline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/warp/settlement-engine/settlement"
)

// DefaultMethod is the remote method path that returns the payload.
const DefaultMethod = "/api/method/fnf.api.full_and_final.get_full_and_final_payload"

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 4 << 20

// Client fetches baseline payloads over HTTP.
type Client struct {
	BaseURL    string
	Method     string
	Token      string
	HTTPClient *http.Client
}

var _ settlement.Fetcher = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithMethod(method string) ClientOption { return func(c *Client) { c.Method = method } }
func WithToken(token string) ClientOption   { return func(c *Client) { c.Token = token } }
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.HTTPClient = &http.Client{Timeout: d} }
}
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.HTTPClient = hc }
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Method:     DefaultMethod,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type fetchRequest struct {
	Employee        string `json:"employee"`
	TransactionDate string `json:"transaction_date,omitempty"`
}

// Fetch calls the remote service once.
func (c *Client) Fetch(ctx context.Context, req settlement.Request) (*settlement.Payload, error) {
	fail := func(err error) (*settlement.Payload, error) {
		return nil, &settlement.TransportError{Employee: req.Employee, Err: err}
	}

	body, err := json.Marshal(fetchRequest{
		Employee:        req.Employee,
		TransactionDate: req.TransactionDate.String(),
	})
	if err != nil {
		return fail(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+c.Method, bytes.NewReader(body))
	if err != nil {
		return fail(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "token "+c.Token)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fail(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(fmt.Errorf("status %d: %s", resp.StatusCode, snippet(raw)))
	}

	payload, err := DecodePayload(raw)
	if err != nil {
		return fail(err)
	}
	return payload, nil
}

// DecodePayload decodes a response body, unwrapping the "message"
// envelope when present. An empty body or null message yields nil.
func DecodePayload(raw []byte) (*settlement.Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return nil, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if msg, wrapped := envelope["message"]; wrapped {
		if isNull(msg) {
			return nil, nil
		}
		raw = msg
	}

	var p settlement.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &p, nil
}

func isNull(b []byte) bool {
	return string(bytes.TrimSpace(b)) == "null"
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
