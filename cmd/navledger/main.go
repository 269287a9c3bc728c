package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tropicaldog17/navledger/internal/app"
	"github.com/tropicaldog17/navledger/internal/config"
)

var configPath string

// rootCmd is the base command for the navledger CLI
var rootCmd = &cobra.Command{
	Use:   "navledger",
	Short: "Portfolio ledger replay and returns engine",
	Long: `navledger replays portfolio transaction logs into daily NAV snapshots,
posts cash interest and computes time-weighted returns against a benchmark.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("NAVLEDGER_CONFIG"), "Path to config.yaml")
}

// newApp loads configuration and wires the engine for one command.
func newApp() (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
