package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/JakeFAU/phrasewatch/internal/extract"
	"github.com/JakeFAU/phrasewatch/internal/notify/memory"
)

const testURL = "https://tickets.example.com/show"

type fakeFetcher struct {
	mu    sync.Mutex
	body  string
	err   error
	calls int
	last  FetchRequest
}

func (f *fakeFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.err != nil {
		return FetchResponse{}, f.err
	}
	return FetchResponse{URL: req.URL, StatusCode: 200, Body: []byte(f.body)}, nil
}

type failingExtractor struct{}

func (failingExtractor) Text([]byte) (string, error) {
	return "", errors.New("bad markup")
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

type fakeIDGen struct {
	ids []string
	err error
}

func (g *fakeIDGen) NewID() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if len(g.ids) == 0 {
		return "run-x", nil
	}
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id, nil
}

type recorder struct {
	outcomes []Outcome
}

func (r *recorder) Record(o Outcome) {
	r.outcomes = append(r.outcomes, o)
}

func page(n int) string {
	return "<html><body><p>" + strings.Repeat("Tickets available. ", n) + "</p><script>Tickets available</script></body></html>"
}

func newTestChecker(t *testing.T, fetcher Fetcher, minOccurrences int) (*Checker, *memory.Notifier, *recorder) {
	t.Helper()
	notifier := memory.New()
	rec := &recorder{}
	c, err := NewChecker(
		Target{URL: testURL, Phrase: "Tickets available", MinOccurrences: minOccurrences},
		Dependencies{
			Fetcher:   fetcher,
			Extractor: extract.New(),
			Notifier:  notifier,
			Clock:     &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()},
			IDs:       &fakeIDGen{ids: []string{"run-1", "run-2"}},
			Recorder:  rec,
		},
		zap.NewNop(),
	)
	require.NoError(t, err)
	return c, notifier, rec
}

func TestNewCheckerValidation(t *testing.T) {
	t.Parallel()

	deps := Dependencies{
		Fetcher:   &fakeFetcher{},
		Extractor: extract.New(),
		Notifier:  memory.New(),
		Clock:     &fakeClock{},
		IDs:       &fakeIDGen{},
	}
	_, err := NewChecker(Target{Phrase: "x", MinOccurrences: 1}, deps, nil)
	require.Error(t, err)
	_, err = NewChecker(Target{URL: testURL, MinOccurrences: 1}, deps, nil)
	require.ErrorIs(t, err, ErrEmptyPhrase)
	_, err = NewChecker(Target{URL: testURL, Phrase: "x"}, deps, nil)
	require.Error(t, err)
	_, err = NewChecker(Target{URL: testURL, Phrase: "x", MinOccurrences: 1}, Dependencies{}, nil)
	require.Error(t, err)

	c, err := NewChecker(Target{URL: testURL, Phrase: "x", MinOccurrences: 1}, deps, nil)
	require.NoError(t, err)
	require.Equal(t, testURL, c.Target().URL)
}

func TestCheckFoundIffCountMeetsThreshold(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 3; n++ {
		for threshold := 1; threshold <= 3; threshold++ {
			c, _, _ := newTestChecker(t, &fakeFetcher{body: page(n)}, threshold)
			outcome := c.Check(context.Background())
			require.Equal(t, n, outcome.Count, "n=%d threshold=%d", n, threshold)
			require.Equal(t, n >= threshold, outcome.Found(), "n=%d threshold=%d", n, threshold)
			require.NotEqual(t, StatusFailed, outcome.Status)
			require.NoError(t, outcome.Err)
		}
	}
}

func TestCheckPopulatesMetadata(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: page(1)}
	c, _, _ := newTestChecker(t, fetcher, 1)
	outcome := c.Check(context.Background())

	require.Equal(t, "run-1", outcome.RunID)
	require.Equal(t, "run-1", fetcher.last.RunID)
	require.Equal(t, testURL, fetcher.last.URL)
	require.Equal(t, time.Unix(1_700_000_000, 0).UTC(), outcome.CheckedAt)
	require.Equal(t, time.Second, outcome.Duration)
	require.Equal(t, 1, outcome.Threshold)
}

func TestCheckFetchFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	c, _, _ := newTestChecker(t, &fakeFetcher{err: boom}, 1)
	outcome := c.Check(context.Background())

	require.Equal(t, StatusFailed, outcome.Status)
	require.False(t, outcome.Found())
	require.Zero(t, outcome.Count)
	require.ErrorIs(t, outcome.Err, boom)
	require.Contains(t, outcome.ErrorText, "fetch page")
}

func TestCheckExtractFailure(t *testing.T) {
	t.Parallel()

	c, err := NewChecker(
		Target{URL: testURL, Phrase: "x", MinOccurrences: 1},
		Dependencies{
			Fetcher:   &fakeFetcher{body: "x"},
			Extractor: failingExtractor{},
			Notifier:  memory.New(),
			Clock:     &fakeClock{},
			IDs:       &fakeIDGen{err: errors.New("no entropy")},
		},
		nil,
	)
	require.NoError(t, err)

	outcome := c.Check(context.Background())
	require.Equal(t, StatusFailed, outcome.Status)
	require.Contains(t, outcome.ErrorText, "extract text")
	require.Equal(t, "unknown", outcome.RunID)
}

func TestRunFoundNotifiesAndStops(t *testing.T) {
	t.Parallel()

	c, notifier, rec := newTestChecker(t, &fakeFetcher{body: page(2)}, 2)
	require.True(t, c.Run(context.Background()))
	require.Equal(t, []string{FoundMessage("Tickets available", 2, testURL)}, notifier.Messages())
	require.Len(t, rec.outcomes, 1)
	require.Equal(t, StatusFound, rec.outcomes[0].Status)
}

func TestRunNotFoundIsSilent(t *testing.T) {
	t.Parallel()

	c, notifier, rec := newTestChecker(t, &fakeFetcher{body: page(1)}, 2)
	require.False(t, c.Run(context.Background()))
	require.Empty(t, notifier.Messages())
	require.Equal(t, StatusNotFound, rec.outcomes[0].Status)
}

func TestRunFailureNotifiesAndContinues(t *testing.T) {
	t.Parallel()

	c, notifier, rec := newTestChecker(t, &fakeFetcher{err: errors.New("503 after retries")}, 1)
	require.False(t, c.Run(context.Background()))
	require.Equal(t, []string{"ERROR: Failed to check the webpage " + testURL}, notifier.Messages())
	require.Equal(t, StatusFailed, rec.outcomes[0].Status)
}

func TestRunNotificationFailureDoesNotChangeResult(t *testing.T) {
	t.Parallel()

	c, notifier, _ := newTestChecker(t, &fakeFetcher{body: page(1)}, 1)
	notifier.FailWith(errors.New("webhook down"))
	require.True(t, c.Run(context.Background()))
	require.Len(t, notifier.Messages(), 1)
}

func TestRunInterruptedSkipsErrorNotification(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, notifier, _ := newTestChecker(t, &fakeFetcher{err: context.Canceled}, 1)
	require.False(t, c.Run(ctx))
	require.Empty(t, notifier.Messages())
}

func TestNotifyWrapsError(t *testing.T) {
	t.Parallel()

	c, notifier, _ := newTestChecker(t, &fakeFetcher{}, 1)
	boom := errors.New("boom")
	notifier.FailWith(boom)
	err := c.Notify(context.Background(), KindLifecycle, StoppedMessage())
	require.ErrorIs(t, err, boom)
}

func TestCheckRecordsSpan(t *testing.T) {
	t.Parallel()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c, err := NewChecker(
		Target{URL: testURL, Phrase: "Tickets available", MinOccurrences: 1},
		Dependencies{
			Fetcher:   &fakeFetcher{err: errors.New("refused")},
			Extractor: extract.New(),
			Notifier:  memory.New(),
			Clock:     &fakeClock{},
			IDs:       &fakeIDGen{},
			Tracer:    tp.Tracer("test"),
		},
		nil,
	)
	require.NoError(t, err)

	outcome := c.Check(context.Background())
	require.NotEmpty(t, outcome.TraceID)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, "monitor.check", ended[0].Name())
	require.Equal(t, codes.Error, ended[0].Status().Code)
	require.Equal(t, outcome.TraceID, ended[0].SpanContext().TraceID().String())
}
