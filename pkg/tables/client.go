package tables

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RestPrefix is the path under which the backend serves tables.
const RestPrefix = "/rest/v1/"

// Client talks to a PostgREST-style table service over HTTP.
// It implements the Store interface.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retries int
	backoff time.Duration
	log     *slog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client (and with it the timeout).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithRetries sets how many times a fetch is retried after a transient failure.
func WithRetries(n int, initial time.Duration) ClientOption {
	return func(c *Client) {
		c.retries = n
		c.backoff = initial
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for the service at baseURL. apiKey is sent with
// every request and used as the bearer when no credential is supplied.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		retries: 2,
		backoff: 200 * time.Millisecond,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type singleAttemptKey struct{}

// SingleAttempt marks ctx so that fetches made with it are sent once and
// never retried, bounding a read to one round trip.
func SingleAttempt(ctx context.Context) context.Context {
	return context.WithValue(ctx, singleAttemptKey{}, true)
}

func isSingleAttempt(ctx context.Context) bool {
	v, _ := ctx.Value(singleAttemptKey{}).(bool)
	return v
}

// Fetch reads rows. Transient failures are retried with exponential backoff
// because reads are idempotent, unless ctx came from SingleAttempt.
func (c *Client) Fetch(ctx context.Context, table string, q Query, cred string) ([]Row, error) {
	retries := c.retries
	if isSingleAttempt(ctx) {
		retries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		rows, err := c.do(ctx, http.MethodGet, "fetch", table, q.Values(), nil, cred, "")
		if err == nil {
			return rows, nil
		}
		lastErr = err

		var re *RemoteError
		if !errors.As(err, &re) || !re.Temporary() || attempt == retries {
			break
		}
		wait := c.wait(attempt)
		c.log.Debug("fetch failed, retrying", "table", table, "attempt", attempt+1, "wait", wait, "err", err)
		select {
		case <-ctx.Done():
			return nil, &RemoteError{Op: "fetch", Table: table, Err: ctx.Err()}
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

// Insert posts rows. With onConflict set, duplicates are merged (upsert).
// Writes are never retried here.
func (c *Client) Insert(ctx context.Context, table, onConflict string, rows []Row, cred string) ([]Row, error) {
	params := url.Values{}
	prefer := "return=representation"
	if onConflict != "" {
		params.Set("on_conflict", onConflict)
		prefer += ",resolution=merge-duplicates"
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return nil, &RemoteError{Op: "insert", Table: table, Err: err}
	}
	return c.do(ctx, http.MethodPost, "insert", table, params, body, cred, prefer)
}

// Update patches rows matching q.
func (c *Client) Update(ctx context.Context, table string, q Query, patch Row, cred string) ([]Row, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, &RemoteError{Op: "update", Table: table, Err: err}
	}
	return c.do(ctx, http.MethodPatch, "update", table, q.Values(), body, cred, "return=representation")
}

// Delete removes rows matching q.
func (c *Client) Delete(ctx context.Context, table string, q Query, cred string) error {
	_, err := c.do(ctx, http.MethodDelete, "delete", table, q.Values(), nil, cred, "")
	return err
}

func (c *Client) do(ctx context.Context, method, op, table string, params url.Values, body []byte, cred, prefer string) ([]Row, error) {
	u := c.baseURL + RestPrefix + url.PathEscape(table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, &RemoteError{Op: op, Table: table, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if bearer := cmp.Or(cred, c.apiKey); bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteError{Op: op, Table: table, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &RemoteError{Op: op, Table: table, Status: res.StatusCode, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return nil, &RemoteError{Op: op, Table: table, Status: res.StatusCode, Err: errors.New(msg)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &RemoteError{Op: op, Table: table, Status: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return rows, nil
}

// wait computes the backoff for an attempt with ±20% jitter.
func (c *Client) wait(attempt int) time.Duration {
	d := float64(c.backoff) * float64(int(1)<<attempt)
	d += d * 0.2 * (2*rand.Float64() - 1)
	return time.Duration(max(d, 0))
}

