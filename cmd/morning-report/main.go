package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the morning-report CLI.
var rootCmd = &cobra.Command{
	Use:   "morning-report",
	Short: "Collect energy market data and write the daily morning report",
	Long: `Collect weather forecasts, forward prices and thermal commodity closes from the
analytics and news portals, and write the morning report comment and table.

Available subcommands:
  run   - Generate the report for one day and exit
  serve - Serve the report API and generate reports on a daily schedule`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
