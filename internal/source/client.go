package source

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxAttempts = 3

// client wraps net/http with a token-bucket rate limiter and retry on
// 429/5xx. All adapters go through it, so per-source pacing lives in
// one place instead of sleeps scattered through batch loops.
type client struct {
	http    *http.Client
	limiter *rate.Limiter
}

func newClient(ratePerSec float64, timeout time.Duration) *client {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

// get fetches the URL with the given headers and returns the body.
// Non-2xx statuses other than 404 are retried with backoff; 404 is
// reported as-is so callers can map it to "not found".
func (c *client) get(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	var lastErr error
	for attempt := range maxAttempts {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, eris.Wrap(err, "source: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, 0, eris.Wrap(err, "source: create request")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			zap.L().Warn("source: request failed, retrying",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("source: http %d from %s", resp.StatusCode, url)
			zap.L().Warn("source: retryable status, backing off",
				zap.String("url", url),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			backoff(ctx, attempt)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, resp.StatusCode, eris.Wrap(err, "source: read body")
		}
		return body, resp.StatusCode, nil
	}

	return nil, 0, eris.Wrap(lastErr, "source: all retries exhausted")
}

func backoff(ctx context.Context, attempt int) {
	base := 500 * time.Millisecond
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
