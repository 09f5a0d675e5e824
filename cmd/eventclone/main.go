package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/eventclone/internal/version"
)

var configFileFlag string

var rootCmd = &cobra.Command{
	Use:   "eventclone",
	Short: "Event configuration clone engine",
	Long: `eventclone copies the configuration of one event context into another.

It runs the HTTP API, the background clone workers and the maintenance
tasks, and offers commands to submit, inspect and cancel clone jobs.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "eventclone %s\n", version.Full())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFileFlag, "config", "c", "", "Path to a config file (default: config.yaml in $CONFIG_PATH or the working directory)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
