// Package httpjson is the JSON-over-HTTP transport the story service uses
// to reach its peers. It applies a per-call deadline and classifies every
// failure into the platform error kinds.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/platform/httpx"
	"github.com/louisbranch/fulcrum/internal/platform/timeouts"
)

const maxErrorBody = 64 << 10

// Client calls one peer service.
type Client struct {
	name    string
	base    *url.URL
	http    *http.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New builds a client for the peer named name at baseURL.
func New(name, baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse %s url: %w", name, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s url %q must be absolute", name, baseURL)
	}
	c := &Client{
		name:    name,
		base:    base,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: timeouts.OutboundCall,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the peer name used in error messages.
func (c *Client) Name() string {
	return c.name
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Do performs one call. out may be nil to discard the response body.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("encode %s request", c.name), err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("build %s request", c.name), err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid := httpx.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set(httpx.HeaderRequestID, rid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUnavailable, fmt.Sprintf("%s %s %s", c.name, method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return apperrors.Wrap(apperrors.CodeUnavailable, fmt.Sprintf("%s %s %s", c.name, method, path), ctx.Err())
		}
		return apperrors.Wrap(apperrors.CodeDataCorruption, fmt.Sprintf("decode %s response for %s", c.name, path), err)
	}
	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := strings.TrimSpace(string(raw))
	var body httpx.ErrorBody
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		message = body.Error
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	kind := apperrors.KindFromHTTPStatus(resp.StatusCode)
	code := apperrors.CodeForKind(kind)
	// Keep the peer's specific code when it agrees with the status.
	if peer := apperrors.Code(body.Code); peer != "" && peer.Kind() == kind {
		code = peer
	}
	return &apperrors.Error{
		Code:    code,
		Message: fmt.Sprintf("%s %s %s: %d %s", c.name, method, path, resp.StatusCode, message),
		Metadata: map[string]string{
			"peer":   c.name,
			"status": fmt.Sprint(resp.StatusCode),
			"code":   body.Code,
		},
	}
}

// PathEscape escapes one path segment.
func PathEscape(segment string) string {
	return url.PathEscape(segment)
}
