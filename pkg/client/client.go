package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidPayload is matched when the daemon rejects a payload.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrNotFound is matched when a block does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is matched when a write token is missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// Is maps HTTP statuses onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrInvalidPayload:
		return e.Status == http.StatusBadRequest && strings.HasPrefix(e.Message, "invalid payload")
	}
	return false
}

// Overview is returned by GET /api/v1/ledger.
type Overview struct {
	LedgerID  string `json:"ledger_id"`
	Length    int    `json:"length"`
	Head      string `json:"head"`
	Algorithm string `json:"algorithm"`
	LinkMode  string `json:"link_mode"`
}

// Content is the hashed part of a block.
type Content struct {
	Timestamp int64 `json:"timestamp"`
	Payload   int32 `json:"payload"`
}

// Block is a ledger block as served by the daemon.
type Block struct {
	Content        Content `json:"content"`
	PreviousDigest string  `json:"previous_digest"`
	Digest         string  `json:"digest"`
}

// AppendResult describes a freshly appended block.
type AppendResult struct {
	Index    int    `json:"index"`
	Previous string `json:"previous"`
	Digest   string `json:"digest"`
}

// Page is one page of blocks.
type Page struct {
	Blocks []Block `json:"blocks"`
	Offset int     `json:"offset"`
	Total  int     `json:"total"`
}

// VerifyResult reports the daemon's integrity check.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// Client talks to one ledger daemon.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client is nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a writer token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout %s must be positive", d)
		}
		c.httpClient = &http.Client{Timeout: d}
		return nil
	}
}

// New creates a Client for the daemon at base, e.g. http://localhost:8080.
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", base)
	}

	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Overview returns the ledger length and head digest.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Append adds a block carrying payload.
func (c *Client) Append(ctx context.Context, payload int64) (*AppendResult, error) {
	body := map[string]int64{"payload": payload}
	var out AppendResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/ledger/blocks", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Block returns the block at the zero-based index.
func (c *Client) Block(ctx context.Context, index int) (*Block, error) {
	var out Block
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/blocks/"+strconv.Itoa(index), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Blocks returns up to limit blocks starting at offset.
func (c *Client) Blocks(ctx context.Context, offset, limit int) (*Page, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var out Page
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/blocks?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify asks the daemon to walk its chain.
func (c *Client) Verify(ctx context.Context) (*VerifyResult, error) {
	var out VerifyResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(raw, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage extracts {"error": "..."} from a response body, falling back
// to the raw text.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
