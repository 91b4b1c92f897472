// Package auditapi is the HTTP client for the platform's content audit API.
package auditapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reviewdesk/internal/config"

	"github.com/goccy/go-json"
	"github.com/google/go-querystring/query"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/singleflight"
)

const maxBodySize = 8 << 20

// Client calls the admin audit API. It is safe for concurrent use.
type Client struct {
	baseURL     string
	token       string
	endpoints   config.Endpoints
	httpClient  *http.Client
	limiter     ratelimit.Limiter
	detailGroup singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the value sent in the Authorization header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithRateLimit caps outgoing requests per second. Zero means unlimited.
func WithRateLimit(rps int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = ratelimit.New(rps)
		} else {
			c.limiter = ratelimit.NewUnlimited()
		}
	}
}

// WithEndpoints overrides the API paths.
func WithEndpoints(endpoints config.Endpoints) Option {
	return func(c *Client) { c.endpoints = endpoints }
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		endpoints:  config.DefaultEndpoints(),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    ratelimit.NewUnlimited(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientFromConfig builds a client from the application configuration.
func NewClientFromConfig(cfg *config.Config, endpoints config.Endpoints) (*Client, error) {
	return NewClient(cfg.BackendBaseURL,
		WithToken(cfg.BackendToken),
		WithRateLimit(cfg.BackendRateLimit),
		WithEndpoints(endpoints),
		WithHTTPClient(&http.Client{Timeout: cfg.BackendTimeout}),
	)
}

// do sends one request and decodes the envelope. params is encoded as the
// query string, body as JSON. When out is non-nil the envelope's data is
// decoded into it, and ErrEmptyPayload is returned if there is none.
func (c *Client) do(ctx context.Context, method, path string, params, body, out interface{}) error {
	target := c.baseURL + path
	if params != nil {
		values, err := query.Values(params)
		if err != nil {
			return fmt.Errorf("failed to encode query for %s %s: %w", method, path, err)
		}
		if len(values) > 0 {
			target += "?" + values.Encode()
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode body for %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	c.limiter.Take()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{Method: method, Path: path, Status: resp.StatusCode}
		if decodeErr == nil {
			httpErr.Message = env.Message
		}
		return httpErr
	}
	if decodeErr != nil {
		return fmt.Errorf("%s %s: failed to decode envelope: %w", method, path, decodeErr)
	}
	if env.Code != CodeSuccess {
		return &ServerError{Code: env.Code, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if !env.hasData() {
		return ErrEmptyPayload
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode data: %w", method, path, err)
	}
	return nil
}

type pageParams struct {
	PageNum  int `url:"pageNum"`
	PageSize int `url:"pageSize"`
}

type rejectParams struct {
	Reason *string `url:"reason,omitempty"`
}

type repliesRequest struct {
	PostID   int64 `json:"postId"`
	PageNum  int   `json:"pageNum"`
	PageSize int   `json:"pageSize"`
}

func expand(tmpl string, id int64) string {
	return strings.ReplaceAll(tmpl, "{id}", strconv.FormatInt(id, 10))
}

// getPage fetches one page from a list endpoint. A success envelope without
// data yields an empty page.
func getPage[T any](ctx context.Context, c *Client, method, path string, params, body interface{}) (*Page[T], error) {
	var page Page[T]
	err := c.do(ctx, method, path, params, body, &page)
	if errors.Is(err, ErrEmptyPayload) {
		return &Page[T]{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}
