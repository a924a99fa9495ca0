package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "coastwatch",
	Short: "Coastal telemetry and risk analytics service",
	Long: `Coastwatch streams synthesized readings from coastal monitoring devices,
evaluates them against alert thresholds and serves spatial risk analytics.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yaml and .env")
}

// Execute adds all child commands to the root command. It is called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}
