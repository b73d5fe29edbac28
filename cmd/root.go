package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the wiresim application
var rootCmd = &cobra.Command{
	Use:   "wiresim",
	Short: "Simulates third-party messaging APIs for hermetic testing",
	Long: `wiresim runs an HTTP server that mimics third-party messaging APIs
(a Gmail-style mail API and a Slack-style workspace API) closely enough
that client code can be tested against it without network access to the
real services.

All state is held in memory and partitioned by session: every request
carries an X-Session-ID header, and deleting a session discards all data
it owned. Test runs that use distinct sessions never observe each other.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "wiresim version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
