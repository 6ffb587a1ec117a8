package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultProbeAttempts = 20
	defaultProbeDelay    = 500 * time.Millisecond
)

// Probe checks the target service's liveness endpoint before the first chat
// call, so a server still starting up does not produce spurious case
// failures. An instance owns its own state; construct one per target.
type Probe struct {
	url      string
	client   *http.Client
	attempts int
	delay    time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	ready bool
}

// NewProbe builds a probe for a health URL.
func NewProbe(healthURL string, logger *zap.Logger) *Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{
		url:      healthURL,
		client:   &http.Client{Timeout: 2 * time.Second},
		attempts: defaultProbeAttempts,
		delay:    defaultProbeDelay,
		logger:   logger,
	}
}

// WaitReady polls the health endpoint until it answers 2xx, the attempt
// budget runs out, or the context is cancelled. Success is cached.
func (p *Probe) WaitReady(ctx context.Context) error {
	if p == nil {
		return errors.New("chat: nil probe")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, p.delay); err != nil {
				return err
			}
		}

		ok, err := p.check(ctx)
		if ok {
			p.ready = true
			p.logger.Debug("target ready", zap.Int("attempts", attempt+1))
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("chat: target not ready after %d attempts: %w", p.attempts, lastErr)
	}
	return fmt.Errorf("chat: target not ready after %d attempts", p.attempts)
}

func (p *Probe) check(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, nil
	}
	return false, fmt.Errorf("health status %s", resp.Status)
}

// Reset clears the cached readiness, forcing the next WaitReady to probe
// again. Used when the service is restarted.
func (p *Probe) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.ready = false
	p.mu.Unlock()
}
