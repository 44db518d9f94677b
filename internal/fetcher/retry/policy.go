// Package retry decides when a page fetch is retried and how long to wait.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

// DefaultStatuses are the response codes treated as transient.
var DefaultStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Policy implements status-based retries with exponential backoff.
type Policy struct {
	maxRetries    int
	backoffFactor time.Duration
	maxBackoff    time.Duration
	statuses      map[int]struct{}
}

// NewPolicy builds a policy allowing maxRetries retries after the first attempt.
// A zero maxBackoff disables the cap.
func NewPolicy(maxRetries int, backoffFactor, maxBackoff time.Duration) *Policy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	statuses := make(map[int]struct{}, len(DefaultStatuses))
	for _, code := range DefaultStatuses {
		statuses[code] = struct{}{}
	}
	return &Policy{
		maxRetries:    maxRetries,
		backoffFactor: backoffFactor,
		maxBackoff:    maxBackoff,
		statuses:      statuses,
	}
}

// MaxAttempts returns the total number of attempts including the first.
func (p *Policy) MaxAttempts() int {
	return p.maxRetries + 1
}

// RetryableStatus reports whether code is one of the transient statuses.
func (p *Policy) RetryableStatus(code int) bool {
	_, ok := p.statuses[code]
	return ok
}

// ShouldRetry decides whether attempt (1-based) may be followed by another.
// Transport errors, timeouts included, are retried; cancellation is not.
func (p *Policy) ShouldRetry(statusCode int, err error, attempt int) bool {
	if attempt >= p.MaxAttempts() {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	return p.RetryableStatus(statusCode)
}

// Backoff returns the wait before retry number retry (1-based). The first
// retry is immediate, later ones wait factor*2^(retry-1). A Retry-After
// header on 429/503 wins when it asks for longer.
func (p *Policy) Backoff(retry, statusCode int, header http.Header) time.Duration {
	var delay time.Duration
	if retry > 1 {
		delay = time.Duration(float64(p.backoffFactor) * math.Pow(2, float64(retry-1)))
	}
	if p.maxBackoff > 0 && delay > p.maxBackoff {
		delay = p.maxBackoff
	}
	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable {
		if after, ok := parseRetryAfter(header, time.Now()); ok && after > delay {
			delay = after
			if p.maxBackoff > 0 && delay > p.maxBackoff {
				delay = p.maxBackoff
			}
		}
	}
	return delay
}

func parseRetryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	raw := header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	when, err := http.ParseTime(raw)
	if err != nil {
		return 0, false
	}
	d := when.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff sleep: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
