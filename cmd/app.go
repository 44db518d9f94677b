package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/phrasewatch/internal/clock/system"
	"github.com/JakeFAU/phrasewatch/internal/config"
	"github.com/JakeFAU/phrasewatch/internal/extract"
	collyfetcher "github.com/JakeFAU/phrasewatch/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/phrasewatch/internal/fetcher/headless"
	"github.com/JakeFAU/phrasewatch/internal/fetcher/promote"
	"github.com/JakeFAU/phrasewatch/internal/fetcher/retry"
	"github.com/JakeFAU/phrasewatch/internal/headless/detector"
	"github.com/JakeFAU/phrasewatch/internal/id/uuid"
	"github.com/JakeFAU/phrasewatch/internal/logging"
	"github.com/JakeFAU/phrasewatch/internal/monitor"
	"github.com/JakeFAU/phrasewatch/internal/notify"
	pubsubnotify "github.com/JakeFAU/phrasewatch/internal/notify/pubsub"
	"github.com/JakeFAU/phrasewatch/internal/notify/telepush"
	"github.com/JakeFAU/phrasewatch/internal/status"
	"github.com/JakeFAU/phrasewatch/internal/telemetry"
)

// App holds the services shared by subcommands.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Checker *monitor.Checker
	Status  *status.Store

	closers []func() error
}

// newApp and newLogger are variables so tests can swap them.
var (
	newApp    = buildApp
	newLogger = logging.New
)

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.Tracing.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		app.closers = append(app.closers, func() error {
			return tp.Shutdown(context.Background())
		})
	}

	fetcher, err := app.buildFetcher()
	if err != nil {
		app.Close()
		return nil, err
	}
	notifier, err := app.buildNotifier(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	clock := system.New()
	target := monitor.Target{
		URL:            cfg.Target.URL,
		Phrase:         cfg.Target.Phrase,
		MinOccurrences: cfg.Target.MinOccurrences,
	}
	app.Status = status.NewStore(target, clock.Now())

	checker, err := monitor.NewChecker(target, monitor.Dependencies{
		Fetcher:   fetcher,
		Extractor: extract.New(),
		Notifier:  notifier,
		Clock:     clock,
		IDs:       uuid.New(),
		Recorder:  app.Status,
	}, logger.Named("monitor"))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("build checker: %w", err)
	}
	app.Checker = checker
	return app, nil
}

func (a *App) buildFetcher() (monitor.Fetcher, error) {
	cfg := a.Config
	policy := retry.NewPolicy(cfg.HTTP.MaxRetries, cfg.BackoffFactor(), cfg.BackoffMax())
	delayMin, delayMax := cfg.FetchDelay()

	probe := func() monitor.Fetcher {
		return collyfetcher.New(collyfetcher.Config{
			Timeout:       cfg.HTTPTimeout(),
			RespectRobots: cfg.HTTP.RespectRobots,
			DelayMin:      delayMin,
			DelayMax:      delayMax,
		}, policy, a.Logger.Named("fetcher"))
	}
	headless := func(delayMin, delayMax time.Duration) (monitor.Fetcher, error) {
		f, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			NavigationTimeout: cfg.NavTimeout(),
			DelayMin:          delayMin,
			DelayMax:          delayMax,
			ExecPath:          cfg.Headless.ExecPath,
		}, policy, a.Logger.Named("headless"))
		if err != nil {
			return nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		a.closers = append(a.closers, func() error {
			f.Close()
			return nil
		})
		return f, nil
	}

	switch cfg.Fetch.Mode {
	case config.ModeHeadless:
		return headless(delayMin, delayMax)
	case config.ModeAuto:
		// The probe already paused, so the render goes straight out.
		renderer, err := headless(0, 0)
		if err != nil {
			return nil, err
		}
		f, err := promote.New(probe(), renderer, detector.NewHeuristic(cfg.Headless.PromotionMinText), a.Logger.Named("promote"))
		if err != nil {
			return nil, fmt.Errorf("init auto fetcher: %w", err)
		}
		return f, nil
	default:
		return probe(), nil
	}
}

func (a *App) buildNotifier(ctx context.Context) (monitor.Notifier, error) {
	cfg := a.Config.Notify
	switch cfg.Backend {
	case config.BackendPubSub:
		n, closeFn, err := pubsubnotify.Dial(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic, cfg.RecipientToken)
		if err != nil {
			return nil, fmt.Errorf("init pubsub notifier: %w", err)
		}
		a.closers = append(a.closers, closeFn)
		return n, nil
	case config.BackendLog:
		return notify.NewLog(a.Logger.Named("notify")), nil
	default:
		n, err := telepush.New(telepush.Config{
			BaseURL:        cfg.BaseURL,
			RecipientToken: cfg.RecipientToken,
			Timeout:        a.Config.NotifyTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("init telepush notifier: %w", err)
		}
		return n, nil
	}
}

// Close releases backends in reverse order of creation and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("failed to close service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = logging.Sync(a.Logger)
}
