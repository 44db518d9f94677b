package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/phrasewatch/internal/monitor"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{NavigationTimeout: -time.Second}, nil, nil)
	require.Error(t, err)

	_, err = NewChromedp(Config{DelayMin: 2 * time.Second, DelayMax: time.Second}, nil, nil)
	require.Error(t, err)

	fetcher, err := NewChromedp(Config{ExecPath: "/nonexistent/chrome"}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, fetcher.policy)
	fetcher.Close()
}

func TestFetchFailsWithoutBrowser(t *testing.T) {
	t.Parallel()

	fetcher, err := NewChromedp(Config{ExecPath: "/nonexistent/chrome", NavigationTimeout: 2 * time.Second}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(fetcher.Close)

	resp, err := fetcher.Fetch(context.Background(), fetchRequest("https://example.com"))
	require.Error(t, err)
	require.True(t, resp.UsedHeadless)
	require.Equal(t, 1, resp.Attempts)
}

func TestFetcherNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{}
	require.Equal(t, 45*time.Second, fetcher.navTimeout())
	fetcher.cfg.NavigationTimeout = time.Second
	require.Equal(t, time.Second, fetcher.navTimeout())
}

func TestCloneHeaderAndNetworkHeaders(t *testing.T) {
	t.Parallel()

	src := http.Header{"X-Test": {"a", "b"}, "X-Single": {"one"}}
	cloned := cloneHeader(src)
	cloned.Add("X-Test", "c")
	require.Len(t, src["X-Test"], 2)
	require.Nil(t, cloneHeader(nil))

	netHeaders := toNetworkHeaders(src)
	require.Equal(t, []string{"a", "b"}, netHeaders["X-Test"])
	require.Equal(t, "one", netHeaders["X-Single"])
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  204,
			URL:     "https://example.com/rendered",
			Headers: network.Headers{"X-Request-ID": "abc"},
		},
	})
	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, 204, status)
	require.Equal(t, "abc", headers.Get("X-Request-ID"))
	require.Equal(t, "https://example.com/rendered", url)

	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500, URL: "https://example.com/app.js"},
	})
	status, _, _ = meta.snapshot()
	require.Equal(t, 204, status)

	meta = newResponseMeta()
	status, _, url = meta.snapshotWithFallbacks("https://req", "https://final")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final", url)
}

func documentEvent(frame cdp.FrameID, status int64, url string) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		FrameID:  frame,
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: status, URL: url},
	}
}

func TestResponseMetaIgnoresSubframeDocuments(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(documentEvent("main", 200, "https://tickets.example/show"))
	meta.captureEvent(documentEvent("video", 404, "https://video.example/gone"))
	status, _, url := meta.snapshot()
	require.Equal(t, 200, status)
	require.Equal(t, "https://tickets.example/show", url)

	meta = newResponseMeta()
	meta.captureEvent(documentEvent("main", 503, "https://tickets.example/show"))
	meta.captureEvent(documentEvent("ads", 200, "https://ads.example/frame"))
	status, _, url = meta.snapshotWithFallbacks("https://req", "https://final")
	require.Equal(t, 503, status)
	require.Equal(t, "https://tickets.example/show", url)

	meta.captureEvent(documentEvent("main", 200, "https://tickets.example/retry"))
	status, _, url = meta.snapshot()
	require.Equal(t, 200, status)
	require.Equal(t, "https://tickets.example/retry", url)
}

func fetchRequest(url string) monitor.FetchRequest {
	return monitor.FetchRequest{RunID: "run-1", URL: url}
}
