// Package headless contains fetchers that execute JavaScript via browsers.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/phrasewatch/internal/fetcher/browser"
	"github.com/JakeFAU/phrasewatch/internal/fetcher/retry"
	"github.com/JakeFAU/phrasewatch/internal/metrics"
	"github.com/JakeFAU/phrasewatch/internal/monitor"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	NavigationTimeout time.Duration
	DelayMin          time.Duration
	DelayMax          time.Duration
	// ExecPath overrides the browser binary; empty lets chromedp search PATH.
	ExecPath string
}

// Fetcher implements monitor.Fetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	policy      *retry.Policy
	profile     *browser.Profile
	logger      *zap.Logger
	mu          sync.Mutex
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp. A nil policy
// disables retries.
func NewChromedp(cfg Config, policy *retry.Policy, logger *zap.Logger) (*Fetcher, error) {
	if cfg.NavigationTimeout < 0 {
		return nil, fmt.Errorf("navigation timeout must be >= 0")
	}
	if cfg.DelayMax < cfg.DelayMin {
		return nil, fmt.Errorf("delay max must be >= delay min")
	}
	if policy == nil {
		policy = retry.NewPolicy(0, 0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		policy:      policy,
		profile:     browser.NewProfile(),
		logger:      logger,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates with a headless browser and returns the fully rendered DOM.
// Transient document statuses are retried per the policy.
func (f *Fetcher) Fetch(ctx context.Context, request monitor.FetchRequest) (monitor.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := time.Now()
	defer func() { metrics.ObserveFetchDuration(time.Since(start)) }()

	if err := retry.Sleep(ctx, f.profile.Delay(f.cfg.DelayMin, f.cfg.DelayMax)); err != nil {
		return monitor.FetchResponse{}, fmt.Errorf("pre-request delay: %w", err)
	}

	for attempt := 1; ; attempt++ {
		resp, navErr := f.render(ctx, request)
		resp.Attempts = attempt
		resp.Duration = time.Since(start)
		if navErr == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			metrics.ObserveFetchAttempt("ok")
			return resp, nil
		}

		failure := navErr
		if failure == nil {
			failure = fmt.Errorf("%w: %d", monitor.ErrUnexpectedStatus, resp.StatusCode)
		}
		if ctx.Err() != nil || !f.policy.ShouldRetry(resp.StatusCode, navErr, attempt) {
			metrics.ObserveFetchAttempt("error")
			return monitor.FetchResponse{
				URL:          request.URL,
				StatusCode:   resp.StatusCode,
				Attempts:     attempt,
				Duration:     resp.Duration,
				UsedHeadless: true,
			}, fmt.Errorf("headless fetch %s after %d attempt(s): %w", request.URL, attempt, failure)
		}

		metrics.ObserveFetchAttempt("retry")
		delay := f.policy.Backoff(attempt, resp.StatusCode, resp.Headers)
		f.logger.Warn("headless attempt failed, retrying",
			zap.String("run_id", request.RunID),
			zap.Int("attempt", attempt),
			zap.Int("status", resp.StatusCode),
			zap.Duration("backoff", delay),
			zap.Error(failure),
		)
		if err := retry.Sleep(ctx, delay); err != nil {
			return monitor.FetchResponse{URL: request.URL, Attempts: attempt, UsedHeadless: true},
				fmt.Errorf("headless fetch %s: %w", request.URL, err)
		}
	}
}

func (f *Fetcher) render(ctx context.Context, request monitor.FetchRequest) (monitor.FetchResponse, error) {
	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.navTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	headers := f.profile.Headers()
	for k, v := range request.Headers {
		headers[k] = append([]string(nil), v...)
	}
	html, finalURL, err := f.runHeadless(taskCtx, request.URL, headers)
	if err != nil {
		status, respHeaders, _ := meta.snapshot()
		return monitor.FetchResponse{StatusCode: status, Headers: respHeaders}, err
	}

	status, respHeaders, responseURL := meta.snapshotWithFallbacks(request.URL, finalURL)
	if respHeaders == nil {
		respHeaders = http.Header{}
	}

	return monitor.FetchResponse{
		URL:          responseURL,
		StatusCode:   status,
		Headers:      respHeaders,
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

func (f *Fetcher) runHeadless(ctx context.Context, url string, headers http.Header) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		networkSetupAction(headers),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

// networkSetupAction applies the User-Agent override and the remaining
// headers before navigation.
func networkSetupAction(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		extra := cloneHeader(headers)
		if ua := extra.Get("User-Agent"); ua != "" {
			if err := emulation.SetUserAgentOverride(ua).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
			extra.Del("User-Agent")
		}
		if len(extra) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(extra)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// responseMeta records the main frame's document response. The first
// document response pins the frame; iframe documents are ignored.
type responseMeta struct {
	mu      sync.RWMutex
	frameID cdp.FrameID
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: http.Header{},
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frameID == "" {
		m.frameID = event.FrameID
	} else if event.FrameID != m.frameID {
		return
	}
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
}

func (m *responseMeta) snapshot() (int, http.Header, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, cloneHeader(m.headers), m.url
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	status, headers, url := m.snapshot()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}

	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return 45 * time.Second
}

func cloneHeader(src http.Header) http.Header {
	if src == nil {
		return nil
	}
	dst := make(http.Header, len(src))
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	return dst
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
