package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "txguard",
	Short: "Transaction security gate for non-custodial wallets",
	Long: "Gates every signing attempt behind device integrity checks, capability\n" +
		"probes, a configurable risk policy, and a bounded authentication session.\n" +
		"Enforcement happens before key material is ever touched.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.txguard/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
