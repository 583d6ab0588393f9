package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tgp",
		Short:         "tgp: control panel for the Telegram chat scraper",
		Long:          "tgp registers Telegram accounts with the scraping backend, picks the chats each account scrapes, starts and stops parser runs, manages the hourly schedule and shows run history.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newAccountCmd(app),
		newOnboardCmd(app),
		newChatsCmd(app),
		newParserCmd(app),
		newHistoryCmd(app),
	)

	return rootCmd
}
