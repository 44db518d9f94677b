// Package promote fetches over plain HTTP first and re-renders headlessly
// only when the response looks like a JavaScript shell.
package promote

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/phrasewatch/internal/monitor"
)

// Detector decides whether a probe response needs a headless render.
type Detector interface {
	ShouldPromote(resp monitor.FetchResponse) bool
}

// Fetcher implements monitor.Fetcher by chaining a probe and a renderer.
type Fetcher struct {
	probe    monitor.Fetcher
	headless monitor.Fetcher
	detector Detector
	logger   *zap.Logger
}

// New builds a Fetcher. headless may be nil, in which case probe responses
// are always returned as is.
func New(probe, headless monitor.Fetcher, detector Detector, logger *zap.Logger) (*Fetcher, error) {
	if probe == nil {
		return nil, errors.New("probe fetcher is required")
	}
	if headless != nil && detector == nil {
		return nil, errors.New("detector is required when a headless fetcher is set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{probe: probe, headless: headless, detector: detector, logger: logger}, nil
}

// Fetch returns the probe response unless the detector asks for promotion.
// A failed render falls back to the probe response.
func (f *Fetcher) Fetch(ctx context.Context, request monitor.FetchRequest) (monitor.FetchResponse, error) {
	resp, err := f.probe.Fetch(ctx, request)
	if err != nil {
		return resp, err
	}
	if f.headless == nil || !f.detector.ShouldPromote(resp) {
		return resp, nil
	}

	f.logger.Info("promoting fetch to headless",
		zap.String("run_id", request.RunID),
		zap.String("url", request.URL),
		zap.Int("probe_bytes", len(resp.Body)),
	)
	rendered, err := f.headless.Fetch(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			return monitor.FetchResponse{}, err
		}
		f.logger.Warn("headless render failed, using probe response",
			zap.String("run_id", request.RunID),
			zap.Error(err),
		)
		return resp, nil
	}
	rendered.Attempts += resp.Attempts
	return rendered, nil
}
