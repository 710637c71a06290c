// advisorctl talks to a running advisor server: an interactive chat and
// session inspection.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	userID    string
	sessionID string
)

var rootCmd = &cobra.Command{
	Use:   "advisorctl",
	Short: "Command-line client for the academic advisor",
	Long: `advisorctl connects to an advisor server.

Available subcommands:
  chat          - Interactive advising chat over a websocket
  session show  - Print the stored session and its completeness
  session reset - Delete the stored session`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if userID != "" {
			return nil
		}
		id, err := loadOrCreateUserID()
		if err != nil {
			return err
		}
		userID = id
		return nil
	},
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("ADVISOR_SERVER", "http://localhost:8080"), "advisor server base URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user", os.Getenv("ADVISOR_USER_ID"), "anonymous user id (generated and remembered when empty)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", envOr("ADVISOR_SESSION_ID", "cli"), "advising session id")

	sessionCmd.AddCommand(sessionShowCmd, sessionResetCmd)
	rootCmd.AddCommand(chatCmd, sessionCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}
