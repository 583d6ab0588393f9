package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	statusadapter "github.com/bnema/tgpanel/internal/adapters/render/status"
	"github.com/bnema/tgpanel/internal/domain"
	"github.com/spf13/cobra"
)

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage registered Telegram accounts",
	}

	cmd.AddCommand(
		newAccountListCmd(app),
		newAccountDeleteCmd(app),
		newAccountCheckCmd(app),
	)

	return cmd
}

func newAccountListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := app.accounts.Refresh(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), accounts)
			}

			rendered, err := statusadapter.RenderAccounts(accounts)
			if err != nil {
				return fmt.Errorf("render accounts: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newAccountDeleteCmd(app *app) *cobra.Command {
	var accountRaw string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an account from the backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := domain.ParseAccountID(accountRaw)
			if err != nil {
				return err
			}

			if err := app.accounts.Delete(cmd.Context(), id); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted account #%s\n", id)
			return err
		},
	}

	cmd.Flags().StringVar(&accountRaw, "account", "", "Account ID")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newAccountCheckCmd(app *app) *cobra.Command {
	var accountRaw string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Ask the backend whether an account session is still valid",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := domain.ParseAccountID(accountRaw)
			if err != nil {
				return err
			}

			var connected bool
			err = withSpinner(cmd.Context(), cmd.ErrOrStderr(), remoteStep{label: "Checking connection...", run: func(ctx context.Context) error {
				var checkErr error
				connected, checkErr = app.accounts.CheckConnection(ctx, id)
				return checkErr
			}})
			if err != nil {
				return err
			}

			state := "not connected"
			if connected {
				state = "connected"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "account #%s: %s\n", id, state)
			return err
		},
	}

	cmd.Flags().StringVar(&accountRaw, "account", "", "Account ID")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func writeNotice(w io.Writer, notice domain.Notice) error {
	if notice.IsZero() {
		return nil
	}
	_, err := fmt.Fprintln(w, notice.Text)
	return err
}
