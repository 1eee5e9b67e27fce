package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	settingsFile string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "vibehub",
	Short: "Vibehub Gateway - LLM API reverse proxy with provider failover",
	Long: `Vibehub Gateway is a local reverse proxy that fans LLM API requests
out across configured upstream providers.

It provides:
  - Ordered provider failover on upstream errors
  - Streaming response pass-through
  - Live usage and cost metering per attempt
  - A management API with a provider status event stream`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsFile, "settings", "s", "settings.yaml", "settings file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
