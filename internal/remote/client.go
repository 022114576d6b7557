// Package remote is the HTTP client of the remote service tier.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/rate"
	"github.com/rpggio/tabletime/internal/domain/session"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/tier"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

var (
	_ table.RemoteTables = (*Client)(nil)
	_ session.Remote     = (*Client)(nil)
	_ billing.Remote     = (*Client)(nil)
	_ rate.Remote        = (*Client)(nil)
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the remote service. Each method is a single request with
// no retries; timeouts come from the caller's context.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client for the service at cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse remote base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote base url %q must be http or https", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{base: base, token: cfg.Token, http: httpClient, logger: logger}, nil
}

// Health probes the liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// ListTables returns every table record.
func (c *Client) ListTables(ctx context.Context) ([]table.TableStatus, error) {
	var out []table.TableStatus
	if err := c.do(ctx, http.MethodGet, "/tables", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTable returns the record for label.
func (c *Client) GetTable(ctx context.Context, label string) (*table.TableStatus, error) {
	var out table.TableStatus
	if err := c.do(ctx, http.MethodGet, tablePath(label, ""), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpsertTable inserts or replaces a record.
func (c *Client) UpsertTable(ctx context.Context, rec table.TableStatus) error {
	return c.do(ctx, http.MethodPost, "/tables/upsert", nil, rec, nil)
}

// PutTable replaces the record stored under label.
func (c *Client) PutTable(ctx context.Context, label string, rec table.TableStatus) error {
	return c.do(ctx, http.MethodPut, tablePath(label, ""), nil, rec, nil)
}

// BulkUpsertTables sends the batch as one request, applied atomically by
// the service.
func (c *Client) BulkUpsertTables(ctx context.Context, recs []table.TableStatus) error {
	return c.do(ctx, http.MethodPost, "/tables/bulkUpsert", nil, recs, nil)
}

// SeedTables inserts the records whose labels the service does not know.
func (c *Client) SeedTables(ctx context.Context, recs []table.TableStatus) error {
	return c.do(ctx, http.MethodPost, "/tables/seed", nil, recs, nil)
}

// StartSession opens a session on label.
func (c *Client) StartSession(ctx context.Context, label string, req session.StartRequest) (*session.Started, error) {
	var out session.Started
	if err := c.do(ctx, http.MethodPost, tablePath(label, "start"), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StopSession closes the session on label and returns the finalized bill.
func (c *Client) StopSession(ctx context.Context, label string) (*billing.Bill, error) {
	var out billing.Bill
	if err := c.do(ctx, http.MethodPost, tablePath(label, "stop"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MoveSession moves the session on from to the table to.
func (c *Client) MoveSession(ctx context.Context, from, to string) (*session.Moved, error) {
	var out session.Moved
	q := url.Values{"to": {to}}
	if err := c.do(ctx, http.MethodPost, tablePath(from, "move"), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForceFree releases label without a bill.
func (c *Client) ForceFree(ctx context.Context, label string) (*table.TableStatus, error) {
	var out table.TableStatus
	if err := c.do(ctx, http.MethodPost, tablePath(label, "force-free"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListItems returns the item lines of the active session on label.
func (c *Client) ListItems(ctx context.Context, label string) ([]billing.ItemLine, error) {
	var out []billing.ItemLine
	if err := c.do(ctx, http.MethodGet, tablePath(label, "items"), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceItems replaces the item list of the active session on label.
func (c *Client) ReplaceItems(ctx context.Context, label string, items []billing.ItemLine) ([]billing.ItemLine, error) {
	var out []billing.ItemLine
	if err := c.do(ctx, http.MethodPost, tablePath(label, "items"), nil, items, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBills returns the bills matching filter.
func (c *Client) ListBills(ctx context.Context, filter billing.BillFilter) ([]billing.Bill, error) {
	q := url.Values{}
	setTime(q, "from", filter.From)
	setTime(q, "to", filter.To)
	setString(q, "table", filter.Table)
	setString(q, "server", filter.Server)

	var out []billing.Bill
	if err := c.do(ctx, http.MethodGet, "/bills", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBill returns a bill by id.
func (c *Client) GetBill(ctx context.Context, id string) (*billing.Bill, error) {
	var out billing.Bill
	if err := c.do(ctx, http.MethodGet, "/bills/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveSessions returns every running session.
func (c *Client) ActiveSessions(ctx context.Context) ([]billing.Session, error) {
	var out []billing.Session
	if err := c.do(ctx, http.MethodGet, "/sessions/active", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSessions returns session history matching filter.
func (c *Client) ListSessions(ctx context.Context, filter billing.SessionFilter) ([]billing.Session, error) {
	q := url.Values{}
	if filter.Limit > 0 {
		q.Set("limit", fmt.Sprint(filter.Limit))
	}
	setTime(q, "from", filter.From)
	setTime(q, "to", filter.To)
	setString(q, "table", filter.Table)
	setString(q, "server", filter.Server)

	var out []billing.Session
	if err := c.do(ctx, http.MethodGet, "/sessions", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRate returns the per-minute rate.
func (c *Client) GetRate(ctx context.Context) (money.Money, error) {
	body, err := c.send(ctx, http.MethodGet, "/settings/rate", nil, nil, "")
	if err != nil {
		return money.Zero, err
	}
	rate, err := money.Parse(string(body))
	if err != nil {
		return money.Zero, fmt.Errorf("decode rate: %w", err)
	}
	return rate, nil
}

// SetRate replaces the per-minute rate.
func (c *Client) SetRate(ctx context.Context, perMinute money.Money) error {
	_, err := c.send(ctx, http.MethodPut, "/settings/rate", nil, strings.NewReader(perMinute.String()), "text/plain")
	return err
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	data, err := c.send(ctx, method, path, q, body, contentType)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, q url.Values, body io.Reader, contentType string) ([]byte, error) {
	u := *c.base
	raw := strings.TrimRight(c.base.EscapedPath(), "/") + path
	unescaped, err := url.PathUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	u.Path, u.RawPath = unescaped, raw
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", tier.ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", tier.ErrUnavailable, method, path, err)
	}
	c.logger.Debug("remote request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func tablePath(label, action string) string {
	p := "/tables/" + url.PathEscape(label)
	if action != "" {
		p += "/" + action
	}
	return p
}

func setTime(q url.Values, key string, t time.Time) {
	if !t.IsZero() {
		q.Set(key, t.UTC().Format(time.RFC3339))
	}
}

func setString(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
