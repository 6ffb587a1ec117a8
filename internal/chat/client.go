package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRetryMax  = 3
	maxRetryMax      = 5
	retryBaseDelay   = 500 * time.Millisecond
	retryMaxDelay    = 8 * time.Second
	backoffFactor    = 2
	testTrafficValue = "diag-eval"

	// TestTrafficHeader tags every request so the target can separate eval
	// traffic from real users.
	TestTrafficHeader = "X-Eval-Traffic"
)

// Option configures a Client.
type Option func(*Client)

// WithRetry sets the max retry count for retryable statuses.
func WithRetry(maxRetries int) Option {
	return func(c *Client) {
		c.retryMax = clampRetryMax(maxRetries)
	}
}

// WithRetryBase sets the initial backoff delay.
func WithRetryBase(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryBase = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client delivers conversations to the target chat endpoint and decodes the
// response. Retries 429/502/503/504 with capped exponential backoff and
// jitter; any other non-2xx is surfaced, never retried.
type Client struct {
	chatURL    string
	httpClient *http.Client
	retryMax   int
	retryBase  time.Duration
	retryCap   time.Duration
	logger     *zap.Logger

	sleep func(context.Context, time.Duration) error
}

// NewClient constructs a client for the given chat endpoint URL.
func NewClient(chatURL string, opts ...Option) *Client {
	c := &Client{
		chatURL:    strings.TrimSpace(chatURL),
		httpClient: &http.Client{},
		retryMax:   defaultRetryMax,
		retryBase:  retryBaseDelay,
		retryCap:   retryMaxDelay,
		logger:     zap.NewNop(),
		sleep:      sleepWithContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Send delivers one conversation and returns the decoded reply. The caller
// bounds the call with a context timeout; an aborted request is returned as
// an error, never as an empty reply.
func (c *Client) Send(ctx context.Context, req *Request) (*Reply, error) {
	if c == nil {
		return nil, errors.New("chat: nil client")
	}
	if ctx == nil {
		return nil, errors.New("chat: nil context")
	}
	if req == nil || len(req.Messages) == 0 {
		return nil, errors.New("chat: empty request")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("chat: marshal request: %w", err)
	}

	retryMax := clampRetryMax(c.retryMax)
	var lastErr error
	for attempt := 0; ; attempt++ {
		reply, retryable, err := c.doOnce(ctx, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if !retryable || attempt >= retryMax {
			return nil, lastErr
		}

		delay := retryBackoff(c.retryBase, c.retryCap, attempt)
		c.logger.Debug("chat retry",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// doOnce performs a single HTTP exchange. The bool reports whether the
// failure is retryable.
func (c *Client) doOnce(ctx context.Context, body []byte) (*Reply, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("chat: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(TestTrafficHeader, testTrafficValue)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, fmt.Errorf("chat: request aborted: %w", ctx.Err())
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, true, fmt.Errorf("chat: request timeout: %w", err)
		}
		return nil, true, fmt.Errorf("chat: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("chat: read response: %w", err)
	}

	if isRetryableStatus(resp.StatusCode) {
		return nil, true, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       raw,
		}
	}

	if resp.StatusCode >= 500 {
		return nil, false, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       raw,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Non-2xx below 500 is a valid, error-signaling response.
		return errorReplyFromBody(resp.Status, raw), false, nil
	}

	reply, err := DecodeReply(raw)
	if err != nil {
		return nil, false, err
	}
	return reply, false, nil
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func clampRetryMax(maxRetries int) int {
	if maxRetries < 0 {
		return 0
	}
	if maxRetries > maxRetryMax {
		return maxRetryMax
	}
	return maxRetries
}

// retryBackoff doubles the delay each attempt up to the cap, plus jitter of
// at most a quarter of the computed delay. Doubling dominates the jitter, so
// successive delays never decrease until the cap.
func retryBackoff(base time.Duration, limit time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= backoffFactor
		if d >= limit {
			d = limit
			break
		}
	}
	if d < limit {
		d += time.Duration(rand.Int63n(int64(d/4) + 1))
		if d > limit {
			d = limit
		}
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
