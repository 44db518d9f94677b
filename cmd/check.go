package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/phrasewatch/internal/monitor"
)

// errCheckFailed is returned when the page could not be checked.
var errCheckFailed = errors.New("check failed")

// newCheckCmd creates the 'check' subcommand.
func newCheckCmd() *cobra.Command {
	var sendNotifications bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single check and print the outcome as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), app, sendNotifications, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&sendNotifications, "notify", false, "send the same notifications a scheduled run would")
	return cmd
}

func runCheck(ctx context.Context, app *App, sendNotifications bool, out io.Writer) error {
	var outcome monitor.Outcome
	if sendNotifications {
		app.Checker.Run(ctx)
		last := app.Status.Snapshot().LastOutcome
		if last == nil {
			return errors.New("check produced no outcome")
		}
		outcome = *last
	} else {
		outcome = app.Checker.Check(ctx)
		app.Status.Record(outcome)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcome); err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}

	if outcome.Status == monitor.StatusFailed {
		return fmt.Errorf("%w: %s", errCheckFailed, outcome.ErrorText)
	}
	return nil
}
