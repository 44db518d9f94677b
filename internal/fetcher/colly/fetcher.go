// Package collyfetcher implements monitor.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/phrasewatch/internal/fetcher/browser"
	"github.com/JakeFAU/phrasewatch/internal/fetcher/retry"
	"github.com/JakeFAU/phrasewatch/internal/metrics"
	"github.com/JakeFAU/phrasewatch/internal/monitor"
)

const defaultTimeout = 30 * time.Second

// errAbandoned marks an attempt left running after the caller gave up.
var errAbandoned = errors.New("colly fetch abandoned")

// Config controls collector behavior.
type Config struct {
	Timeout       time.Duration
	RespectRobots bool
	// DelayMin and DelayMax bound the random pause taken before each fetch.
	DelayMin time.Duration
	DelayMax time.Duration
}

// Fetcher implements monitor.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	policy        *retry.Policy
	profile       *browser.Profile
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. A nil policy disables retries.
func New(cfg Config, policy *retry.Policy, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if policy == nil {
		policy = retry.NewPolicy(0, 0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(cfg.Timeout)

	var transport http.RoundTripper = newHTTPTransport()
	if cfg.RespectRobots {
		transport = &robotsAwareTransport{base: transport}
	}
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		policy:        policy,
		profile:       browser.NewProfile(),
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch GETs request.URL, retrying transient failures per the policy.
// Any non-2xx status left after retries is reported as monitor.ErrUnexpectedStatus.
func (f *Fetcher) Fetch(ctx context.Context, request monitor.FetchRequest) (monitor.FetchResponse, error) {
	start := time.Now()
	defer func() { metrics.ObserveFetchDuration(time.Since(start)) }()

	if err := retry.Sleep(ctx, f.profile.Delay(f.cfg.DelayMin, f.cfg.DelayMax)); err != nil {
		return monitor.FetchResponse{}, fmt.Errorf("pre-request delay: %w", err)
	}

	for attempt := 1; ; attempt++ {
		result, transportErr := f.attempt(ctx, request)
		result.Attempts = attempt
		result.Duration = time.Since(start)

		if transportErr == nil && isSuccess(result.StatusCode) {
			metrics.ObserveFetchAttempt("ok")
			return result, nil
		}

		failure := transportErr
		if failure == nil {
			failure = fmt.Errorf("%w: %d", monitor.ErrUnexpectedStatus, result.StatusCode)
		}
		if ctx.Err() != nil || isFinal(transportErr) || !f.policy.ShouldRetry(result.StatusCode, transportErr, attempt) {
			metrics.ObserveFetchAttempt("error")
			return monitor.FetchResponse{
				URL:        request.URL,
				StatusCode: result.StatusCode,
				Attempts:   attempt,
				Duration:   result.Duration,
			}, fmt.Errorf("fetch %s after %d attempt(s): %w", request.URL, attempt, failure)
		}

		metrics.ObserveFetchAttempt("retry")
		delay := f.policy.Backoff(attempt, result.StatusCode, result.Headers)
		f.logger.Warn("fetch attempt failed, retrying",
			zap.String("run_id", request.RunID),
			zap.String("url", request.URL),
			zap.Int("attempt", attempt),
			zap.Int("status", result.StatusCode),
			zap.Duration("backoff", delay),
			zap.Error(failure),
		)
		if err := retry.Sleep(ctx, delay); err != nil {
			return monitor.FetchResponse{URL: request.URL, Attempts: attempt}, fmt.Errorf("fetch %s: %w", request.URL, err)
		}
	}
}

func (f *Fetcher) attempt(ctx context.Context, request monitor.FetchRequest) (monitor.FetchResponse, error) {
	var (
		result   monitor.FetchResponse
		fetchErr error
	)
	collector := f.buildCollector(request, time.Now(), &result, &fetchErr)
	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		if errors.Is(err, errAbandoned) {
			return monitor.FetchResponse{}, err
		}
		return result, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	request monitor.FetchRequest,
	start time.Time,
	result *monitor.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	f.configureCollectorHooks(collector, request, f.profile.Headers(), start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request monitor.FetchRequest,
	browserHeaders http.Header,
	start time.Time,
	result *monitor.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		copyHeaders(browserHeaders, r, true)
		copyHeaders(request.Headers, r, false)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = monitor.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    cloneHeaders(r.Headers),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		*fetchErr = err
		if r != nil && r.StatusCode != 0 {
			result.StatusCode = r.StatusCode
			result.Headers = cloneHeaders(r.Headers)
		}
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errAbandoned, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func copyHeaders(src http.Header, r *colly.Request, replace bool) {
	for key, values := range src {
		if replace {
			r.Headers.Del(key)
		}
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func cloneHeaders(h *http.Header) http.Header {
	if h == nil {
		return nil
	}
	return h.Clone()
}

// isFinal reports collector refusals that no retry can change.
func isFinal(err error) bool {
	return errors.Is(err, colly.ErrRobotsTxtBlocked) || errors.Is(err, colly.ErrForbiddenDomain)
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
