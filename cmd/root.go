// Package cmd defines the CLI commands for the phrasewatch executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/phrasewatch/internal/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// cli owns the state shared between the root command's hooks and Execute.
type cli struct {
	cfgFile string
	app     *App
}

// newRootCmd creates and configures the root command. Running it without a
// subcommand behaves like "watch".
func (c *cli) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phrasewatch",
		Short: "Watch a web page until a phrase shows up, then send a push notification.",
		Long: `phrasewatch polls a single web page on a fixed interval, counts how often a
phrase appears in the page text and sends a notification once the count
reaches the configured minimum. Fetch failures are reported and polling
continues.`,
		SilenceUsage: true,

		// Config and services are built here so every subcommand gets the same App.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			c.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
		RunE: runWatchCommand,
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (YAML, JSON or TOML); env vars override it")
	cmd.AddCommand(newWatchCmd(), newCheckCmd())
	return cmd
}

// close releases whatever PersistentPreRunE built, even when RunE failed.
func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}

// Execute runs the CLI until it finishes or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	c := &cli{}
	defer c.close()
	root := c.newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	if err := root.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	return nil
}

func resolveApp(ctx context.Context) (*App, error) {
	appInstance, ok := ctx.Value(appKey).(*App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
