package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trademgr",
	Short: "Webhook-driven simulated trading manager",
	Long: `Trademgr ingests trade alerts over a webhook, gates them through a
multi-factor risk budget and tracks the resulting simulated positions
to closure.

It provides:
  - A signed webhook intake with deduplication and rate limiting
  - Risk-based admission control and position sizing
  - A continuously revalued position ledger with stop/target exits
  - Trade journaling to CSV or SQLite
  - Performance reporting (win rate, profit factor, drawdown, Sharpe)`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
