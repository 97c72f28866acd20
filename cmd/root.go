// Package cmd defines and implements the CLI commands for the harvester executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Builds the Google Play app id catalog from the store sitemaps.",
		Long: `harvester walks the Google Play sitemap hierarchy, extracts every app
identifier it lists, and merges the results into a single catalog file.
Completed sitemap parts are recorded on disk, so an interrupted run picks
up where it left off and only retries the missing or failed parts.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (HARVESTER_* environment variables apply on top)")

	cmd.AddCommand(newHarvestCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
