package cmd

import (
	"context"
	"fmt"

	statusadapter "github.com/bnema/tgpanel/internal/adapters/render/status"
	"github.com/bnema/tgpanel/internal/application"
	"github.com/bnema/tgpanel/internal/domain"
	"github.com/spf13/cobra"
)

func newChatsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Choose which chats an account scrapes",
	}

	cmd.AddCommand(
		newChatsListCmd(app),
		newChatsSelectCmd(app),
	)

	return cmd
}

func newChatsListCmd(app *app) *cobra.Command {
	var accountRaw string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the chats of a connected account and mark the selected ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			selector, err := loadChatSelector(cmd.Context(), app, accountRaw)
			if err != nil {
				return err
			}
			return writeChats(cmd, selector.State())
		},
	}

	cmd.Flags().StringVar(&accountRaw, "account", "", "Account ID")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newChatsSelectCmd(app *app) *cobra.Command {
	var (
		accountRaw string
		toggles    []string
		save       bool
	)

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Toggle chats in the selection and optionally save it",
		Long:  "select flips each --toggle chat in or out of the account's selection. Nothing is sent to the backend without --save, and an empty selection is never saved.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			selector, err := loadChatSelector(cmd.Context(), app, accountRaw)
			if err != nil {
				return err
			}

			for _, raw := range toggles {
				id, err := domain.ParseChatID(raw)
				if err != nil {
					return err
				}
				if _, err := selector.Toggle(id); err != nil {
					return err
				}
			}

			var saveErr error
			if save {
				if !selector.State().CanSave() {
					return domain.ErrEmptySelection
				}
				saveErr = withSpinner(cmd.Context(), cmd.ErrOrStderr(), remoteStep{label: "Saving selection...", run: selector.Save})
			}

			if err := writeChats(cmd, selector.State()); err != nil {
				return err
			}
			if !save {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "selection not saved, rerun with --save to apply")
			}
			return saveErr
		},
	}

	cmd.Flags().StringVar(&accountRaw, "account", "", "Account ID")
	cmd.Flags().StringSliceVar(&toggles, "toggle", nil, "Chat ID to flip in or out of the selection (repeatable)")
	cmd.Flags().BoolVar(&save, "save", false, "Replace the saved selection with the result")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func loadChatSelector(ctx context.Context, app *app, accountRaw string) (*application.ChatSelector, error) {
	id, err := domain.ParseAccountID(accountRaw)
	if err != nil {
		return nil, err
	}

	selector := app.newChatSelector()
	if err := selector.Load(ctx, id); err != nil {
		return nil, err
	}
	return selector, nil
}

func writeChats(cmd *cobra.Command, state application.ChatSelectorState) error {
	rendered, err := statusadapter.RenderChats(state)
	if err != nil {
		return fmt.Errorf("render chats: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
