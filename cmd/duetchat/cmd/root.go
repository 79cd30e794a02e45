package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/duetapp/duetchat/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "duetchat",
	Short: "Terminal client for the couple chat service",
	Long: `duetchat is a terminal client for the couple chat service.

Available commands:
  chat      Start an interactive chat session
  upload    Upload an attachment and print its descriptor

Configuration comes from the environment (or a .env file):
  DUETCHAT_API_URL     base URL of the REST API
  DUETCHAT_WS_URL      base URL of the chat socket endpoint
  DUETCHAT_TOKEN       bearer token for the session
  DUETCHAT_USER_ID     your participant id
  DUETCHAT_PARTNER_ID  your partner's participant id

Use "duetchat [command] --help" for more information about a specific command.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.New()
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
