package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	statusadapter "github.com/bnema/tgpanel/internal/adapters/render/status"
	"github.com/bnema/tgpanel/internal/application"
	"github.com/bnema/tgpanel/internal/domain"
	"github.com/spf13/cobra"
)

type credentialFlags struct {
	apiID   string
	apiHash string
	phone   string
	name    string
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.apiID, "api-id", "", "Telegram API id")
	cmd.Flags().StringVar(&f.apiHash, "api-hash", "", "Telegram API hash")
	cmd.Flags().StringVar(&f.phone, "phone", "", "Phone number in international format")
	cmd.Flags().StringVar(&f.name, "name", "", "Optional display name")
}

func (f credentialFlags) credentials() domain.Credentials {
	return domain.Credentials{APIID: f.apiID, APIHash: f.apiHash, PhoneNumber: f.phone, Name: f.name}
}

func newOnboardCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Register a Telegram account with the backend",
		Long:  "onboard walks an account through code verification or session import. Progress is kept between invocations, so each step is its own command.",
	}

	cmd.AddCommand(
		newOnboardAddCmd(app),
		newOnboardVerifyCmd(app),
		newOnboardNewCodeCmd(app),
		newOnboardImportCmd(app),
		newOnboardStatusCmd(app),
		newOnboardCancelCmd(app),
	)

	return cmd
}

func newOnboardAddCmd(app *app) *cobra.Command {
	var creds credentialFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Request a login code for a new account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnboardingStep(cmd, app, "Requesting login code...", func(ctx context.Context, o *application.Onboarding) error {
				return o.RequestCode(ctx, creds.credentials())
			})
		},
	}

	creds.register(cmd)

	return cmd
}

func newOnboardVerifyCmd(app *app) *cobra.Command {
	var (
		code     string
		password string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Submit the login code, and the two-factor password when asked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnboardingStep(cmd, app, "Verifying code...", func(ctx context.Context, o *application.Onboarding) error {
				if cmd.Flags().Changed("code") {
					if err := o.SetCode(code); err != nil {
						return err
					}
				}
				if password != "" {
					if err := o.SetPassword(password); err != nil {
						return err
					}
				}
				return o.SubmitCode(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Login code from Telegram (kept from the previous attempt when omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Two-factor password")

	return cmd
}

func newOnboardNewCodeCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new-code",
		Short: "Request a fresh login code after the previous one expired",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnboardingStep(cmd, app, "Requesting new code...", func(ctx context.Context, o *application.Onboarding) error {
				return o.RequestNewCode(ctx)
			})
		},
	}
}

func newOnboardImportCmd(app *app) *cobra.Command {
	var (
		creds       credentialFlags
		sessionPath string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Register an account from an existing .session file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(sessionPath)
			if err != nil {
				return fmt.Errorf("read session file: %w", err)
			}

			return runOnboardingStep(cmd, app, "Uploading session...", func(ctx context.Context, o *application.Onboarding) error {
				return o.ImportSession(ctx, domain.SessionImportRequest{
					Credentials: creds.credentials(),
					Session:     data,
					Filename:    filepath.Base(sessionPath),
				})
			})
		},
	}

	creds.register(cmd)
	cmd.Flags().StringVar(&sessionPath, "session", "", "Path to the .session file")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func newOnboardStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the onboarding progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			onboarding, err := restoreOnboarding(cmd.Context(), app)
			if err != nil {
				return err
			}
			defer onboarding.Close()

			return writeOnboarding(cmd, onboarding.State())
		},
	}
}

func newOnboardCancelCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Discard the pending verification or import",
		RunE: func(cmd *cobra.Command, _ []string) error {
			onboarding, err := restoreOnboarding(cmd.Context(), app)
			if err != nil {
				return err
			}
			defer onboarding.Close()

			previous := onboarding.State().Phase
			onboarding.Cancel()
			if err := app.onboarding.Clear(cmd.Context()); err != nil {
				return err
			}
			app.logger.Debug("onboarding cancelled", "previous_phase", previous)

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "onboarding cancelled")
			return err
		},
	}
}

func restoreOnboarding(ctx context.Context, app *app) (*application.Onboarding, error) {
	snapshot, err := app.onboarding.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load onboarding progress: %w", err)
	}

	onboarding := app.newOnboarding()
	onboarding.Restore(snapshot)
	return onboarding, nil
}

// runOnboardingStep restores the stored progress, runs step and stores the
// resulting state whether or not step failed.
func runOnboardingStep(cmd *cobra.Command, app *app, label string, step func(context.Context, *application.Onboarding) error) error {
	ctx := cmd.Context()

	onboarding, err := restoreOnboarding(ctx, app)
	if err != nil {
		return err
	}
	defer onboarding.Close()

	stepErr := withSpinner(ctx, cmd.ErrOrStderr(), remoteStep{label: label, run: func(ctx context.Context) error {
		return step(ctx, onboarding)
	}})

	state := onboarding.State()
	if saveErr := app.onboarding.Save(ctx, state); saveErr != nil {
		return errors.Join(stepErr, fmt.Errorf("save onboarding progress: %w", saveErr))
	}

	if err := writeOnboarding(cmd, state); err != nil {
		return err
	}
	return stepErr
}

func writeOnboarding(cmd *cobra.Command, state domain.OnboardingState) error {
	rendered, err := statusadapter.RenderOnboarding(state)
	if err != nil {
		return fmt.Errorf("render onboarding: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
