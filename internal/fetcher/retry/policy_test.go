package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldRetryStatuses(t *testing.T) {
	t.Parallel()

	p := NewPolicy(3, time.Second, 0)
	for _, code := range []int{429, 500, 502, 503, 504} {
		require.True(t, p.ShouldRetry(code, nil, 1), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 403, 404, 501} {
		require.False(t, p.ShouldRetry(code, nil, 1), "status %d", code)
	}
}

func TestShouldRetryStopsAtMaxAttempts(t *testing.T) {
	t.Parallel()

	p := NewPolicy(3, time.Second, 0)
	require.Equal(t, 4, p.MaxAttempts())
	require.True(t, p.ShouldRetry(503, nil, 3))
	require.False(t, p.ShouldRetry(503, nil, 4))

	none := NewPolicy(-1, time.Second, 0)
	require.Equal(t, 1, none.MaxAttempts())
	require.False(t, none.ShouldRetry(503, nil, 1))
}

func TestShouldRetryErrors(t *testing.T) {
	t.Parallel()

	p := NewPolicy(2, time.Second, 0)
	require.True(t, p.ShouldRetry(0, errors.New("connection reset"), 1))
	require.False(t, p.ShouldRetry(0, context.Canceled, 1))
	require.True(t, p.ShouldRetry(0, context.DeadlineExceeded, 1))
	require.False(t, p.ShouldRetry(0, context.DeadlineExceeded, 3))
}

func TestBackoffSchedule(t *testing.T) {
	t.Parallel()

	p := NewPolicy(5, time.Second, 5*time.Second)
	require.Equal(t, time.Duration(0), p.Backoff(1, 500, nil))
	require.Equal(t, 2*time.Second, p.Backoff(2, 500, nil))
	require.Equal(t, 4*time.Second, p.Backoff(3, 500, nil))
	require.Equal(t, 5*time.Second, p.Backoff(4, 500, nil))
}

func TestBackoffHonorsRetryAfter(t *testing.T) {
	t.Parallel()

	p := NewPolicy(3, time.Second, time.Minute)
	header := http.Header{"Retry-After": {"7"}}
	require.Equal(t, 7*time.Second, p.Backoff(1, http.StatusTooManyRequests, header))
	require.Equal(t, 7*time.Second, p.Backoff(2, http.StatusServiceUnavailable, header))
	require.Equal(t, 2*time.Second, p.Backoff(2, http.StatusBadGateway, header))

	capped := NewPolicy(3, time.Second, 3*time.Second)
	require.Equal(t, 3*time.Second, capped.Backoff(1, http.StatusTooManyRequests, http.Header{"Retry-After": {"600"}}))
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	d, ok := parseRetryAfter(http.Header{"Retry-After": {now.Add(30 * time.Second).Format(http.TimeFormat)}}, now)
	require.True(t, ok)
	require.Equal(t, 30*time.Second, d)

	_, ok = parseRetryAfter(http.Header{"Retry-After": {"soon"}}, now)
	require.False(t, ok)
	_, ok = parseRetryAfter(http.Header{"Retry-After": {"-3"}}, now)
	require.False(t, ok)
	_, ok = parseRetryAfter(http.Header{}, now)
	require.False(t, ok)
}

func TestSleepHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, Sleep(context.Background(), 0))
}
