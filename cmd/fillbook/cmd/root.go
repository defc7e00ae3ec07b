package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fillbook",
	Short: "Position and realized PnL accounting for confirmed fills",
	Long: `Fillbook keeps a weighted-average position and a realized PnL bucket
per instrument, built from the fills a broker confirms.

It provides tools for:
  - Replaying fill files through per-instrument ledgers
  - Hedge-leg books for grid and hedge strategies
  - Lot size normalization and risk-based volume sizing
  - SQLite and CSV journals of every realization

Complete documentation is available at https://github.com/rustyeddy/fillbook`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
