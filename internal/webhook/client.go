// Package webhook delivers messages to Discord webhooks.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Delivery errors
var (
	ErrNoURLs       = errors.New("webhook: no urls configured")
	ErrRateLimited  = errors.New("webhook: rate limited")
	ErrRejected     = errors.New("webhook: rejected")
	ErrUnreachable  = errors.New("webhook: unreachable")
	errServerStatus = errors.New("server error")
)

// HTTPClient allows injecting mock HTTP clients for testing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the delivery settings for one channel
type Config struct {
	URLs     []string `toml:"urls"`
	Username string   `toml:"username"`

	// MaxRetries bounds the attempts made after a 429 or 5xx
	MaxRetries      int           `toml:"max_retries"`
	InitialInterval time.Duration `toml:"initial_interval"`
	// MaxRetryAfter caps how long a single Retry-After is honored
	MaxRetryAfter time.Duration `toml:"max_retry_after"`
	Timeout       time.Duration `toml:"timeout"`
}

// DefaultConfig returns the default delivery settings
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxRetryAfter:   10 * time.Second,
		Timeout:         10 * time.Second,
	}
}

// Client posts messages to every configured webhook URL
type Client struct {
	config Config
	http   HTTPClient
	logger *slog.Logger
}

// NewClient creates a webhook client. A nil httpClient gets a default client
// bounded by config.Timeout.
func NewClient(config Config, httpClient HTTPClient, logger *slog.Logger) *Client {
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultConfig().Timeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		config: config,
		http:   httpClient,
		logger: logger,
	}
}

// Deliver posts msg to every URL. It fails when any URL fails; the returned
// error joins the failure of each URL.
func (c *Client) Deliver(ctx context.Context, msg Message) error {
	if len(c.config.URLs) == 0 {
		return ErrNoURLs
	}
	if msg.Username == "" {
		msg.Username = c.config.Username
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webhook: encoding message: %w", err)
	}

	var errs []error
	for _, url := range c.config.URLs {
		if err := c.post(ctx, url, body); err != nil {
			c.logger.Warn("webhook delivery failed",
				"target", redact(url),
				"error", err)
			errs = append(errs, fmt.Errorf("%s: %w", redact(url), err))
		}
	}
	return errors.Join(errs...)
}

func (c *Client) post(ctx context.Context, url string, body []byte) error {
	b := backoff.NewExponentialBackOff()
	if c.config.InitialInterval > 0 {
		b.InitialInterval = c.config.InitialInterval
	}

	maxTries := uint(c.config.MaxRetries) + 1

	// set once any attempt was answered with 429
	var limited bool
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.attempt(ctx, url, body)
		if errors.Is(err, ErrRateLimited) {
			limited = true
		}
		var retryAfter *backoff.RetryAfterError
		if errors.As(err, &retryAfter) {
			limited = true
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxTries),
	)
	if err == nil {
		return nil
	}

	var retryAfter *backoff.RetryAfterError
	switch {
	case errors.As(err, &retryAfter):
		return fmt.Errorf("%w: retries exhausted", ErrRateLimited)
	case errors.Is(err, ErrRateLimited):
		return err
	case errors.Is(err, errServerStatus):
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	case errors.Is(err, ErrRejected):
		return err
	case ctx.Err() != nil && limited:
		return fmt.Errorf("%w: %v", ErrRateLimited, ctx.Err())
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %v", ErrUnreachable, ctx.Err())
	default:
		return err
	}
}

// attempt makes one POST. Errors it returns are either permanent or carry
// the delay before the next try.
func (c *Client) attempt(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrRejected, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrUnreachable, err))
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := c.retryAfter(resp.Header, payload)
		c.logger.Debug("webhook rate limited", "target", redact(url), "retry_after", wait)
		if deadline, ok := ctx.Deadline(); ok && time.Now().Add(wait).After(deadline) {
			return backoff.Permanent(fmt.Errorf("%w: retry after %s outlasts the deadline", ErrRateLimited, wait))
		}
		return &backoff.RetryAfterError{Duration: wait}
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", errServerStatus, resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, bytes.TrimSpace(payload)))
	}
}

// retryAfter reads the wait from the Retry-After header or the retry_after
// body field, both in seconds.
func (c *Client) retryAfter(header http.Header, payload []byte) time.Duration {
	var seconds float64
	if v := header.Get("Retry-After"); v != "" {
		if s, err := strconv.ParseFloat(v, 64); err == nil {
			seconds = s
		}
	} else {
		var body struct {
			RetryAfter float64 `json:"retry_after"`
		}
		if json.Unmarshal(payload, &body) == nil {
			seconds = body.RetryAfter
		}
	}

	wait := time.Duration(seconds * float64(time.Second))
	if wait < 0 {
		wait = 0
	}
	if c.config.MaxRetryAfter > 0 && wait > c.config.MaxRetryAfter {
		wait = c.config.MaxRetryAfter
	}
	return wait
}

// redact keeps webhook tokens out of logs
func redact(url string) string {
	const keep = 40
	if len(url) <= keep {
		return url
	}
	return url[:keep] + "..."
}
