// Package cli implements the haggle command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "haggle",
	Short: "Agent-driven price negotiation and atomic trade settlement",
	Long: `haggle runs a two-party price negotiation between a buyer agent and a
seller agent, then commits the agreed trade as a single all-or-nothing
state change across accounts and inventory.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default: $HAGGLE_HOME/config.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
