package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	host   string
	userID string
	role   string
	token  string
)

var rootCmd = &cobra.Command{
	Use:   "courtmatch-cli",
	Short: "A CLI to interact with the courtmatch server",
	Long: `A command-line interface for making requests to the various endpoints
of the courtmatch matchmaking server.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "The host address of the server")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "The user id to act as (sent as X-User-ID)")
	rootCmd.PersistentFlags().StringVar(&role, "role", "", "The role to act as (sent as X-User-Role)")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("COURTMATCH_TOKEN"), "A bearer token, used instead of --user and --role")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your command '%s'", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
