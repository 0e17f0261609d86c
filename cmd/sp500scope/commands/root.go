package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sp500scope",
	Short: "S&P 500 snapshot refresh and scoring",
	Long: `sp500scope keeps a daily metric snapshot of the S&P 500 constituents,
refreshes it incrementally, and scores every symbol.

Usage:
  go run ./cmd/sp500scope [command]

Examples:
  go run ./cmd/sp500scope refresh
  go run ./cmd/sp500scope refresh --force
  go run ./cmd/sp500scope api --with-scheduler
  go run ./cmd/sp500scope sectors`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// flags override the environment; config.Load reads both
		if cmd.Flags().Changed("env") {
			os.Setenv("ENV", env)
		}
		if verbose {
			os.Setenv("LOG_LEVEL", "debug")
			os.Setenv("LOG_FORMAT", "console")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
