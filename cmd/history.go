package cmd

import (
	"fmt"

	statusadapter "github.com/bnema/tgpanel/internal/adapters/render/status"
	"github.com/bnema/tgpanel/internal/application"
	"github.com/bnema/tgpanel/internal/domain"
	"github.com/spf13/cobra"
)

func newHistoryCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past parser runs",
	}

	cmd.AddCommand(
		newHistorySessionsCmd(app),
		newHistoryLogsCmd(app),
		newHistoryErrorsCmd(app),
	)

	return cmd
}

func newHistorySessionsCmd(app *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent runs with their totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			feed := app.newHistoryFeed(limit)
			defer feed.Close()

			if err := feed.Refresh(cmd.Context()); err != nil {
				return err
			}
			sessions := feed.Snapshot().Sessions

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), sessions)
			}
			rendered, err := statusadapter.RenderSessions(sessions, renderOptions(app))
			if err != nil {
				return fmt.Errorf("render sessions: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().IntVar(&limit, "limit", application.DefaultSessionLimit, "Number of recent runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newHistoryLogsCmd(app *app) *cobra.Command {
	var (
		sessionID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the per-chat log of one run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			feed := app.newHistoryFeed(0)
			defer feed.Close()

			if err := feed.Select(cmd.Context(), sessionID); err != nil {
				return err
			}
			logs := feed.Snapshot().Logs

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), logs)
			}
			return writeLogs(cmd, app, "Session "+sessionID, logs)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newHistoryErrorsCmd(app *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List recent per-chat failures across runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			feed := app.newHistoryFeed(0)
			defer feed.Close()

			entries, err := feed.Errors(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeLogs(cmd, app, "Recent errors", entries)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Number of entries")

	return cmd
}

func writeLogs(cmd *cobra.Command, app *app, title string, entries []domain.RunLogEntry) error {
	rendered, err := statusadapter.RenderLogs(title, entries, renderOptions(app))
	if err != nil {
		return fmt.Errorf("render logs: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func renderOptions(app *app) statusadapter.RenderOptions {
	return statusadapter.RenderOptions{Now: app.now(), Location: app.location}
}
