// Package api is a thin client for the childcare REST API endpoints the
// notification engine reads from.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/nhle/daycare-notify/internal/model"
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// IsUnauthorized reports whether err (or any error in its chain) is a 401.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// retryable reports whether a status code is worth another attempt.
func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Client talks to the childcare REST API with bearer authentication and
// retry with jittered backoff on 429, 5xx, and transport errors.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets the attempt count and the base delay between attempts.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.delay = delay
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates an API client. The baseURL should include any path
// prefix the API is mounted under (e.g., https://daycare.example.com/api).
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		attempts: 3,
		delay:    time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComplaintsByRecipient lists complaints addressed to role.
func (c *Client) ComplaintsByRecipient(ctx context.Context, role model.Recipient) ([]model.Complaint, error) {
	var complaints []model.Complaint
	if err := c.get(ctx, "/complaints", recipientQuery(role), &complaints); err != nil {
		return nil, fmt.Errorf("listing complaints for %s: %w", role, err)
	}
	return complaints, nil
}

// MeetingsByRecipient lists meetings addressed to role.
func (c *Client) MeetingsByRecipient(ctx context.Context, role model.Recipient) ([]model.Meeting, error) {
	var meetings []model.Meeting
	if err := c.get(ctx, "/meetings", recipientQuery(role), &meetings); err != nil {
		return nil, fmt.Errorf("listing meetings for %s: %w", role, err)
	}
	return meetings, nil
}

func recipientQuery(role model.Recipient) url.Values {
	return url.Values{"recipient": []string{string(role)}}
}

// get performs a GET with retries and decodes the JSON response into result.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	err := retry.Do(
		func() error {
			lastErr = c.do(ctx, http.MethodGet, path, target, result)
			return lastErr
		},
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(c.delay/2+time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying API request after error", "attempt", n, "path", path, "error", err)
		}),
		retry.RetryIf(shouldRetry),
	)
	if err == nil {
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return err
}

// errMalformed marks failures that no retry can fix.
var errMalformed = errors.New("malformed")

// shouldRetry reports whether err is transient: rate limiting, server
// errors, and transport failures not caused by the caller's context.
func shouldRetry(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return retryable(se.StatusCode)
	}
	if errors.Is(err, errMalformed) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// do executes a single attempt.
func (c *Client) do(ctx context.Context, method, path, target string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w request: %w", errMalformed, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w response from %s %s: %w", errMalformed, method, path, err)
	}
	return nil
}
