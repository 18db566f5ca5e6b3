// Package remote is the HTTP client for the team board backend. Each
// operation is exactly one request; payloads go out in the backend's
// snake_case shape and responses come back through the normalizer.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/publicsuffix"

	"github.com/nhle/teamboard/internal/logging"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/normalize"
)

// Client is a thin HTTP client for the backend REST API. It carries the
// session cookie on every request, adds a Bearer token when a usable one
// is available, and retries with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	maxRetries int
	logger     *log.Logger
	now        func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A cookie jar is
// attached if it has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithNow overrides the clock used to check token expiry.
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for cfg. An empty cfg.BaseURL yields a client whose
// every call fails with ErrNotConfigured. tokens may be nil.
func New(cfg model.APIConfig, tokens TokenSource, opts ...Option) (*Client, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: max(cfg.MaxRetries, 0),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger)

	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

// Configured reports whether a backend URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// BaseURL returns the normalised backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Cookies returns the session cookies held for the backend.
func (c *Client) Cookies() []*http.Cookie {
	if !c.Configured() {
		return nil
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil
	}
	return c.httpClient.Jar.Cookies(u)
}

// bearer returns the token to attach, or "".
func (c *Client) bearer() string {
	if c.tokens == nil {
		return ""
	}
	tok, err := c.tokens.Token()
	if err != nil {
		c.logger.Debug("token unavailable", "err", err)
		return ""
	}
	if !usableToken(tok, c.now()) {
		return ""
	}
	return tok
}

// AuthHeader returns the headers a side channel (the event socket) needs
// to authenticate the same way as REST calls.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	if tok := c.bearer(); tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
	for _, ck := range c.Cookies() {
		h.Add("Cookie", ck.String())
	}
	return h
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
// The decoded response body is returned as generic JSON for the
// normalizer.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body any,
) (any, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if tok := c.bearer(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)
			c.logger.Debug("rate limited", "method", method, "path", path, "wait", waitDuration)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, &AuthError{
				Message: fmt.Sprintf("%s %s rejected; sign in again", method, path),
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{
				Code:   resp.StatusCode,
				Method: method,
				Path:   path,
				Body:   strings.TrimSpace(string(respBody)),
			}
		}

		return normalize.Decode(respBody), nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
