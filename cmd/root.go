package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonLogs   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "yardcheck",
	Short: "Verify landscaping work from before and after photos",
	Long: `Yardcheck compares a "before" photo of a property and one or more "after"
photos against a list of requested landscaping tasks. A vision model describes
each photo, a text model combines the notes into a per-task verdict, and the
result is rendered as a report listing any work still to be done.

Available commands:
  serve    - Run the web UI and JSON API
  analyze  - Inspect local photos and print the report
  suggest  - Propose tasks from a before photo
  bid      - Write the bid document for a before photo
  chat     - Ask follow-up questions about a report
  diff     - Compare two saved reports
  init     - Write a default configuration file`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.yardcheck/config.json)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "write the log file as JSON lines")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(bidCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(initCmd)
}
