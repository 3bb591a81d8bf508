// Package odoo implements a read-only JSON-RPC client for the Odoo ERP API.
package odoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config carries the connection settings for the Odoo endpoint.
type Config struct {
	URL     string
	DB      string
	UID     int64
	APIKey  string
	Timeout time.Duration
}

// Client talks JSON-RPC to an Odoo instance. All calls are read-only.
type Client struct {
	http   *resty.Client
	url    string
	db     string
	uid    int64
	apiKey string
}

// ErrNotConfigured indicates the API key or database is missing.
var ErrNotConfigured = errors.New("odoo: api key not configured")

// ErrCallFailed wraps transport-level failures.
var ErrCallFailed = errors.New("odoo: call failed")

// NewClient builds an Odoo client from configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	httpClient := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &Client{
		http:   httpClient,
		url:    cfg.URL,
		db:     cfg.DB,
		uid:    cfg.UID,
		apiKey: cfg.APIKey,
	}
}

// Configured reports whether the client can reach the ERP.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.db != ""
}

// Record is a single row returned by Odoo.
type Record map[string]any

// Float reads a numeric field, tolerating Odoo's habit of returning
// `false` for empty values.
func (r Record) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

// String reads a text field, returning "" for absent or false values.
func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// ID reads the record's numeric id.
func (r Record) ID() int64 {
	return int64(r.Float("id"))
}

// Ref reads an Odoo many2one field, which arrives as [id, display name].
func (r Record) Ref(key string) (int64, string) {
	pair, ok := r[key].([]any)
	if !ok || len(pair) < 2 {
		return 0, ""
	}
	id, _ := pair[0].(float64)
	name, _ := pair[1].(string)
	return int64(id), name
}

// WebURL builds a deep link to a record in the Odoo backend.
func (c *Client) WebURL(model string, id int64) string {
	base := strings.TrimSuffix(c.url, "/jsonrpc")
	return fmt.Sprintf("%s/web#id=%d&model=%s&view_type=form", base, id, model)
}

// CallOptions tune a search_read call.
type CallOptions struct {
	Limit           int
	IncludeArchived bool
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int       `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// SearchRead fetches records matching the domain with the requested fields.
func (c *Client) SearchRead(ctx context.Context, model string, domain []any, fields []string, opts CallOptions) ([]Record, error) {
	kwargs := map[string]any{
		"fields":  fields,
		"context": c.callContext(opts.IncludeArchived),
	}
	if opts.Limit > 0 {
		kwargs["limit"] = opts.Limit
	}
	return c.executeKw(ctx, model, "search_read", domain, kwargs)
}

// ReadGroup runs a server-side aggregation. Archived records are always
// included so moves on archived partners still count.
func (c *Client) ReadGroup(ctx context.Context, model string, domain []any, fields, groupBy []string) ([]Record, error) {
	kwargs := map[string]any{
		"fields":  fields,
		"groupby": groupBy,
		"lazy":    false,
		"context": c.callContext(true),
	}
	return c.executeKw(ctx, model, "read_group", domain, kwargs)
}

func (c *Client) callContext(includeArchived bool) map[string]any {
	callCtx := map[string]any{"lang": "nl_NL"}
	if includeArchived {
		callCtx["active_test"] = false
	}
	return callCtx
}

func (c *Client) executeKw(ctx context.Context, model, method string, domain []any, kwargs map[string]any) ([]Record, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if domain == nil {
		domain = []any{}
	}
	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: rpcParams{
			Service: "object",
			Method:  "execute_kw",
			Args:    []any{c.db, c.uid, c.apiKey, model, method, []any{domain}, kwargs},
		},
		ID: 1,
	}

	var decoded rpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&decoded).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrCallFailed, model, method, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrCallFailed, model, method, resp.StatusCode())
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%w: %s %s: %s", ErrCallFailed, model, method, decoded.Error.Message)
	}
	if len(decoded.Result) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(decoded.Result, &records); err != nil {
		return nil, fmt.Errorf("%w: %s %s: decode result: %v", ErrCallFailed, model, method, err)
	}
	return records, nil
}
