package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/derj90/ai-trading-manager-clean/journal"
	"github.com/derj90/ai-trading-manager-clean/portfolio"
)

var (
	statsDBPath  string
	statsCapital float64
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a performance report from the trade journal",
	Long: `Read the SQLite trade journal and report win rate, profit factor,
max drawdown and total PnL over the closed-trade history.

Example:
  trademgr stats --db journal.db --capital 10000`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsDBPath, "db", "journal.db", "path to SQLite journal")
	statsCmd.Flags().Float64Var(&statsCapital, "capital", 10000, "initial capital (anchors the drawdown curve)")
}

func runStats(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(statsDBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	records, err := j.ListTrades()
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}

	trades := make([]portfolio.ClosedTrade, len(records))
	for i, r := range records {
		trades[i] = portfolio.ClosedTrade{
			Position: portfolio.Position{
				ID:         r.TradeID,
				Symbol:     r.Symbol,
				Side:       portfolio.Side(r.Side),
				EntryPrice: r.EntryPrice,
				Size:       r.Units,
				Strategy:   r.Strategy,
			},
			ClosePrice:  r.ExitPrice,
			ClosedAt:    r.CloseTime,
			RealizedPnL: r.RealizedPnL,
			CloseReason: portfolio.CloseReason(r.Reason),
		}
	}

	stats := portfolio.ComputeStats(trades, nil, statsCapital)
	printStats(os.Stdout, stats, statsCapital)

	if latest, err := j.LatestEquity(); err == nil {
		fmt.Printf("\nLatest equity:  %.2f (%d open)\n", latest.Equity, latest.OpenPositions)
	}
	return nil
}

func printStats(w io.Writer, s portfolio.Stats, capital float64) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Performance Report")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Initial Capital: %.2f\n", capital)
	fmt.Fprintf(w, "Closed Trades:   %d\n", s.TotalClosed)
	fmt.Fprintf(w, "Wins / Losses:   %d / %d\n", s.Wins, s.Losses)
	fmt.Fprintf(w, "Win Rate:        %.2f%%\n", s.WinRate*100)
	fmt.Fprintf(w, "Total PnL:       %.2f\n", s.TotalPnL)
	fmt.Fprintf(w, "Profit Factor:   %.2f\n", s.ProfitFactor)
	fmt.Fprintf(w, "Max Drawdown:    %.2f%%\n", s.MaxDrawdown*100)
	if s.SharpeRatio != 0 {
		fmt.Fprintf(w, "Sharpe Ratio:    %.2f\n", s.SharpeRatio)
	}
}
