// Package api executes authenticated HTTP operations against the
// compute service with a uniform resilience policy: bearer tokens on
// every request, exponential backoff on transient failures, and one
// forced refresh on a 401.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 250 * time.Millisecond
	defaultMaxDelay    = 4 * time.Second
)

// TokenProvider supplies a currently-valid access token and accepts
// invalidation when the service rejects one.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Client performs JSON requests against one API host.
type Client struct {
	baseURL     string
	session     TokenProvider
	httpClient  *http.Client
	logger      zerolog.Logger
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger attaches a logger for retry tracing; the default discards
// everything, so the success path never logs.
func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithRetryPolicy sets the attempt cap and the backoff bounds.
func WithRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return func(cl *Client) {
		cl.maxAttempts = maxAttempts
		cl.baseDelay = baseDelay
		cl.maxDelay = maxDelay
	}
}

// New creates a client bound to baseURL, authenticating through
// session.
func New(baseURL string, session TokenProvider, options ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		session:     session,
		httpClient:  newHTTPClient(),
		logger:      zerolog.Nop(),
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with in as the JSON body, decoding into out when
// out is non-nil.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return errors.Wrapf(err, "[APIClient] failed to encode %s %s body", method, path)
		}
	}

	var lastErr error
	refreshed := false
	attempt := 0
	delay := c.baseDelay

	for {
		token, err := c.session.Token(ctx)
		if err != nil {
			return err
		}

		resp, respBody, err := c.send(ctx, method, path, token, body)
		if err == nil {
			switch {
			case resp.StatusCode == http.StatusUnauthorized:
				if refreshed {
					return ErrAuthentication
				}
				// Force exactly one refresh-and-retry cycle; this does
				// not consume a backoff attempt.
				refreshed = true
				c.session.Invalidate()
				continue
			case resp.StatusCode >= 500:
				err = fmt.Errorf("service returned status %d", resp.StatusCode)
			case resp.StatusCode >= 400:
				return &APIError{Status: resp.StatusCode, Body: string(respBody)}
			default:
				if out == nil {
					return nil
				}
				if err := json.Unmarshal(respBody, out); err != nil {
					return &MalformedResponseError{Reason: "response body is not valid JSON", Err: err}
				}
				return nil
			}
		}

		lastErr = err
		attempt++
		if attempt >= c.maxAttempts {
			return &NetworkError{Attempts: attempt, Err: lastErr}
		}

		c.logger.Debug().
			Err(err).
			Str("method", method).
			Str("path", path).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("retrying request")

		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = min(delay*2, c.maxDelay)
	}
}

// send performs one request attempt, draining the body so the
// connection can be reused.
func (c *Client) send(ctx context.Context, method, path, token string, body []byte) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, respBody, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newHTTPClient builds the default transport tuned for API calls.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        32,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}
