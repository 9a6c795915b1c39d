// Package api is the Huddle client's REST binding for the notification
// endpoints of the backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"io.winapps.huddle/internal/notify"
)

// ErrUnauthorized is returned when the backend rejects the session token.
var ErrUnauthorized = errors.New("session rejected by backend")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.Code, e.Method, e.Path, e.Body)
}

const (
	pathRegisterDevice   = "/api/notifications/register-device"
	pathUnregisterDevice = "/api/notifications/unregister-device"
	pathPreferences      = "/api/notifications/preferences"
	pathUnreadCount      = "/api/notifications/unread-count"
)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets how many times a 429 response is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(st gobreaker.Settings) Option {
	return func(c *Client) { c.breaker = gobreaker.NewCircuitBreaker(st) }
}

// Client is a thin HTTP client for the notification endpoints. It handles
// bearer authentication, JSON encoding, backoff on HTTP 429, and trips a
// circuit breaker when the backend keeps failing so callers fall back to
// local state quickly.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	breaker    *gobreaker.CircuitBreaker
}

var _ notify.Backend = (*Client)(nil)

// NewClient creates a client rooted at baseURL (e.g. https://api.huddle.app).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = gobreaker.NewCircuitBreaker(DefaultBreakerSettings())
	}
	return c
}

// DefaultBreakerSettings opens after five consecutive transport or 5xx
// failures and probes again after 30 seconds.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "huddle-api",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: countsAsHealthy,
	}
}

// countsAsHealthy treats client-side rejections as a reachable backend.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, ErrUnauthorized) || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code < 500
	}
	return false
}

func (c *Client) RegisterDevice(ctx context.Context, session string, req notify.RegisterDeviceRequest) error {
	return c.do(ctx, http.MethodPost, pathRegisterDevice, session, req, nil)
}

// UnregisterDevice deactivates deviceToken for the session's user. Other
// devices of the same user stay registered.
func (c *Client) UnregisterDevice(ctx context.Context, session string, deviceToken string) error {
	body := map[string]string{"deviceToken": deviceToken}
	return c.do(ctx, http.MethodPost, pathUnregisterDevice, session, body, nil)
}

func (c *Client) UpdatePreferences(ctx context.Context, session string, s notify.Settings) error {
	return c.do(ctx, http.MethodPut, pathPreferences, session, s, nil)
}

// Preferences fetches the settings the backend holds for the user.
func (c *Client) Preferences(ctx context.Context, session string) (notify.Settings, error) {
	var s notify.Settings
	if err := c.do(ctx, http.MethodGet, pathPreferences, session, nil, &s); err != nil {
		return notify.Settings{}, err
	}
	return s, nil
}

type unreadCountResponse struct {
	Count       *int `json:"count"`
	UnreadCount *int `json:"unreadCount"`
}

func (c *Client) UnreadCount(ctx context.Context, session string) (int, error) {
	var resp unreadCountResponse
	if err := c.do(ctx, http.MethodGet, pathUnreadCount, session, nil, &resp); err != nil {
		return 0, err
	}
	switch {
	case resp.UnreadCount != nil:
		return *resp.UnreadCount, nil
	case resp.Count != nil:
		return *resp.Count, nil
	default:
		return 0, fmt.Errorf("unread count missing from response")
	}
}

func (c *Client) do(ctx context.Context, method, path, session string, body, result interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, session, body, result)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("backend unavailable for %s %s: %w", method, path, err)
	}
	return err
}

// roundTrip builds the request, retries on 429 and decodes the JSON response.
func (c *Client) roundTrip(ctx context.Context, method, path, session string, body, result interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+session)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(respBody)}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(respBody)}
		}

		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads Retry-After, falling back to exponential backoff.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
