package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/phrasewatch/internal/api"
	"github.com/JakeFAU/phrasewatch/internal/monitor"
	"github.com/JakeFAU/phrasewatch/internal/scheduler"
)

// newWatchCmd creates the 'watch' subcommand.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Check the page now and then on every interval until the phrase is found",
		Long: `Runs the first check immediately and then once per interval. When the
phrase reaches the minimum count a notification is sent and checking stops.
The process keeps running until interrupted unless scheduler.exit_on_found
is set.`,
		RunE: runWatchCommand,
	}
}

func runWatchCommand(cmd *cobra.Command, _ []string) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	return runWatch(cmd.Context(), app)
}

func runWatch(ctx context.Context, app *App) error {
	cfg := app.Config
	logger := app.Logger
	target := app.Checker.Target()

	logger.Info("monitoring app started",
		zap.String("url", target.URL),
		zap.String("phrase", target.Phrase),
		zap.Int("min_occurrences", target.MinOccurrences),
		zap.Duration("interval", cfg.Interval()),
		zap.String("notify_backend", cfg.Notify.Backend),
		zap.String("fetch_mode", cfg.Fetch.Mode),
	)
	if err := app.Checker.Notify(ctx, monitor.KindLifecycle, monitor.StartedMessage(target.URL, target.Phrase)); err != nil {
		logger.Warn("start notification not delivered, continuing", zap.Error(err))
	}

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	var serverErr chan error
	if cfg.Server.Enabled {
		serverErr = make(chan error, 1)
		srv := api.NewServer(app.Status, logger.Named("api"))
		go func() {
			serverErr <- srv.ListenAndServe(serverCtx, cfg.Server.Port)
		}()
	}

	report := func(ctx context.Context, err error) {
		_ = app.Checker.Notify(ctx, monitor.KindError, monitor.SchedulerErrorMessage(err))
	}
	sched, err := scheduler.New(scheduler.Config{
		Interval:     cfg.Interval(),
		ErrorBackoff: cfg.ErrorBackoff(),
	}, app.Checker, report, logger.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	found := sched.Done()
	if !cfg.Scheduler.ExitOnFound {
		found = nil
	}

wait:
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			break wait
		case <-found:
			logger.Info("phrase found, exiting")
			break wait
		case err := <-serverErr:
			if err != nil {
				logger.Error("status server failed, continuing without it", zap.Error(err))
			}
			serverErr = nil
		}
	}

	sched.Stop()
	stopServer()
	if serverErr != nil {
		if err := <-serverErr; err != nil {
			logger.Warn("status server shutdown", zap.Error(err))
		}
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.NotifyTimeout())
	defer cancel()
	_ = app.Checker.Notify(stopCtx, monitor.KindLifecycle, monitor.StoppedMessage())
	logger.Info("monitoring app stopped", zap.Int("runs", sched.Runs()))
	return nil
}
