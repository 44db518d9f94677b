package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/phrasewatch/internal/metrics"
	"github.com/JakeFAU/phrasewatch/internal/occurrence"
)

// Target describes what is watched.
type Target struct {
	URL            string
	Phrase         string
	MinOccurrences int
}

const tracerName = "github.com/JakeFAU/phrasewatch/internal/monitor"

// Dependencies are the collaborators of a Checker. Recorder and Tracer are
// optional; Tracer defaults to the global provider.
type Dependencies struct {
	Fetcher   Fetcher
	Extractor TextExtractor
	Notifier  Notifier
	Clock     Clock
	IDs       IDGenerator
	Recorder  OutcomeRecorder
	Tracer    trace.Tracer
}

// Checker runs the fetch, extract and count routine for one Target.
type Checker struct {
	target Target
	deps   Dependencies
	logger *zap.Logger
}

// NewChecker validates target and deps and builds a Checker.
func NewChecker(target Target, deps Dependencies, logger *zap.Logger) (*Checker, error) {
	if target.URL == "" {
		return nil, errors.New("target url is required")
	}
	if target.Phrase == "" {
		return nil, ErrEmptyPhrase
	}
	if target.MinOccurrences < 1 {
		return nil, fmt.Errorf("min occurrences must be >= 1, got %d", target.MinOccurrences)
	}
	if deps.Fetcher == nil || deps.Extractor == nil || deps.Notifier == nil || deps.Clock == nil || deps.IDs == nil {
		return nil, errors.New("checker dependencies are incomplete")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}
	return &Checker{target: target, deps: deps, logger: logger}, nil
}

// Target returns the watched target.
func (c *Checker) Target() Target {
	return c.target
}

// Check performs a single fetch-extract-count pass without side effects
// beyond the fetch itself.
func (c *Checker) Check(ctx context.Context) Outcome {
	started := c.deps.Clock.Now()
	outcome := Outcome{
		RunID:     c.newRunID(),
		URL:       c.target.URL,
		Phrase:    c.target.Phrase,
		Threshold: c.target.MinOccurrences,
		CheckedAt: started,
	}

	ctx, span := c.deps.Tracer.Start(ctx, "monitor.check", trace.WithAttributes(
		attribute.String("url.full", c.target.URL),
		attribute.String("phrasewatch.run_id", outcome.RunID),
		attribute.Int("phrasewatch.threshold", c.target.MinOccurrences),
	))
	defer span.End()
	if sc := span.SpanContext(); sc.HasTraceID() {
		outcome.TraceID = sc.TraceID().String()
	}

	finish := func(status Status, err error) Outcome {
		outcome.Status = status
		outcome.Duration = c.deps.Clock.Now().Sub(started)
		span.SetAttributes(
			attribute.String("phrasewatch.status", string(status)),
			attribute.Int("phrasewatch.count", outcome.Count),
		)
		if err != nil {
			outcome.Err = err
			outcome.ErrorText = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return outcome
	}

	resp, err := c.deps.Fetcher.Fetch(ctx, FetchRequest{RunID: outcome.RunID, URL: c.target.URL})
	if err != nil {
		return finish(StatusFailed, fmt.Errorf("fetch page: %w", err))
	}
	text, err := c.deps.Extractor.Text(resp.Body)
	if err != nil {
		return finish(StatusFailed, fmt.Errorf("extract text: %w", err))
	}

	res := occurrence.Evaluate(text, c.target.Phrase, c.target.MinOccurrences)
	outcome.Count = res.Count
	if res.Found {
		return finish(StatusFound, nil)
	}
	return finish(StatusNotFound, nil)
}

// Run is the scheduled task: it checks, reports, and returns true when the
// phrase was found and the schedule should stop.
func (c *Checker) Run(ctx context.Context) bool {
	logger := c.logger.With(zap.String("url", c.target.URL), zap.String("phrase", c.target.Phrase))
	logger.Info("checking page for phrase")

	outcome := c.Check(ctx)
	logger = logger.With(zap.String("run_id", outcome.RunID))
	if outcome.TraceID != "" {
		logger = logger.With(zap.String("trace_id", outcome.TraceID))
	}
	if c.deps.Recorder != nil {
		c.deps.Recorder.Record(outcome)
	}
	metrics.ObserveCheck(c.target.URL, string(outcome.Status), outcome.Count, outcome.Status != StatusFailed)

	switch outcome.Status {
	case StatusFound:
		logger.Info("phrase found",
			zap.Int("occurrences", outcome.Count),
			zap.Int("threshold", outcome.Threshold),
		)
		_ = c.Notify(ctx, KindFound, FoundMessage(c.target.Phrase, outcome.Count, c.target.URL))
		return true
	case StatusNotFound:
		logger.Info("phrase below the minimum required",
			zap.Int("occurrences", outcome.Count),
			zap.Int("threshold", outcome.Threshold),
		)
		return false
	default:
		if ctx.Err() != nil {
			logger.Warn("check interrupted", zap.Error(outcome.Err))
			return false
		}
		logger.Error("failed to check the webpage", zap.Error(outcome.Err))
		_ = c.Notify(ctx, KindError, FailureMessage(c.target.URL))
		return false
	}
}

// Notify sends message and logs the result. Delivery errors are returned for
// callers that care but are never fatal.
func (c *Checker) Notify(ctx context.Context, kind, message string) error {
	err := c.deps.Notifier.Send(ctx, message)
	metrics.ObserveNotification(kind, err)
	if err != nil {
		c.logger.Error("failed to send notification", zap.String("kind", kind), zap.Error(err))
		return fmt.Errorf("send %s notification: %w", kind, err)
	}
	c.logger.Info("notification sent", zap.String("kind", kind))
	return nil
}

func (c *Checker) newRunID() string {
	id, err := c.deps.IDs.NewID()
	if err != nil || strings.TrimSpace(id) == "" {
		c.logger.Warn("run id generation failed", zap.Error(err))
		return "unknown"
	}
	return id
}
