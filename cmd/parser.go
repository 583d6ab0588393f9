package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	statusadapter "github.com/bnema/tgpanel/internal/adapters/render/status"
	"github.com/bnema/tgpanel/internal/adapters/render/watch"
	"github.com/bnema/tgpanel/internal/application"
	"github.com/spf13/cobra"
)

func newParserCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parser",
		Short: "Control manual parser runs and the hourly schedule",
	}

	cmd.AddCommand(
		newParserActionCmd(app, parserAction{use: "start", short: "Start a manual run", label: "Starting parser...", run: (*application.Scheduler).Start}),
		newParserActionCmd(app, parserAction{use: "stop", short: "Ask the running parser to stop", label: "Sending stop signal...", run: (*application.Scheduler).Stop, settle: true}),
		newParserActionCmd(app, parserAction{use: "pause", short: "Pause the hourly schedule", label: "Pausing schedule...", run: (*application.Scheduler).Pause}),
		newParserActionCmd(app, parserAction{use: "resume", short: "Resume the hourly schedule", label: "Resuming schedule...", run: (*application.Scheduler).Resume}),
		newParserStatusCmd(app),
		newParserWatchCmd(app),
	)

	return cmd
}

func newParserStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a run is active and when the next scheduled run is",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scheduler := app.newScheduler()
			defer scheduler.Close()

			refreshErr := scheduler.Refresh(cmd.Context())
			if err := writeScheduler(cmd, app, scheduler); err != nil {
				return err
			}
			return refreshErr
		},
	}
}

type parserAction struct {
	use    string
	short  string
	label  string
	run    func(*application.Scheduler, context.Context) error
	// settle waits for the confirming status poll before printing.
	settle bool
}

// newParserActionCmd reads the current status first so the action's guards
// see the remote state, then applies the action and prints the result.
func newParserActionCmd(app *app, action parserAction) *cobra.Command {
	return &cobra.Command{
		Use:   action.use,
		Short: action.short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scheduler := app.newScheduler()
			defer scheduler.Close()

			if err := scheduler.Refresh(cmd.Context()); err != nil {
				app.logger.Warn("status check before action failed", "action", action.use, "error", err)
			}

			steps := []remoteStep{{label: action.label, run: func(ctx context.Context) error {
				return action.run(scheduler, ctx)
			}}}
			if action.settle {
				steps = append(steps, remoteStep{label: "Waiting for the parser to confirm...", run: func(context.Context) error {
					scheduler.WaitIdle()
					return nil
				}})
			}
			actionErr := withSpinner(cmd.Context(), cmd.ErrOrStderr(), steps...)

			if err := writeScheduler(cmd, app, scheduler); err != nil {
				return err
			}
			return actionErr
		},
	}
}

func newParserWatchCmd(app *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Interactive parser screen with live status and run history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			scheduler := app.newScheduler()
			defer scheduler.Close()
			feed := app.newHistoryFeed(limit)
			defer feed.Close()

			if err := scheduler.Watch(ctx); err != nil {
				return fmt.Errorf("watch scheduler: %w", err)
			}
			if err := feed.Watch(ctx); err != nil {
				return fmt.Errorf("watch history: %w", err)
			}

			return watch.Run(ctx, scheduler, feed, watch.Options{
				Input:     cmd.InOrStdin(),
				Output:    cmd.OutOrStdout(),
				Location:  app.location,
				Now:       app.now,
				AltScreen: true,
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", application.DefaultSessionLimit, "Number of recent runs to show")

	return cmd
}

func writeScheduler(cmd *cobra.Command, app *app, scheduler *application.Scheduler) error {
	rendered, err := statusadapter.RenderScheduler(scheduler.State(), statusadapter.RenderOptions{
		Now:      app.now(),
		Location: app.location,
	})
	if err != nil {
		return fmt.Errorf("render parser status: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
