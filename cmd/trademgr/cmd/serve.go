package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/derj90/ai-trading-manager-clean/config"
	"github.com/derj90/ai-trading-manager-clean/feed"
	"github.com/derj90/ai-trading-manager-clean/internal/logger"
	"github.com/derj90/ai-trading-manager-clean/journal"
	"github.com/derj90/ai-trading-manager-clean/market"
	"github.com/derj90/ai-trading-manager-clean/portfolio"
	"github.com/derj90/ai-trading-manager-clean/risk"
	"github.com/derj90/ai-trading-manager-clean/schedule"
	"github.com/derj90/ai-trading-manager-clean/signal"
	"github.com/derj90/ai-trading-manager-clean/webhook"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook intake and portfolio engine",
	Long: `Start the full pipeline: webhook HTTP server, signal dispatcher,
price feed (if enabled) and the scheduled rebalance sweep. Shuts down
cleanly on SIGINT/SIGTERM, closing all open positions.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "trademgr.yaml", "path to config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(serveConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	jnl, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jnl.Close()

	ledger := portfolio.NewLedger(
		cfg.Portfolio.InitialCapital,
		cfg.Risk.Policy(),
		market.DefaultCorrelations(),
		jnl,
		log,
	)
	ledger.SetListener(&logListener{log: log})

	ttl, _ := cfg.Signal.ParseTTL()
	drainEvery, _ := cfg.Signal.ParseDrainInterval()

	deduper := signal.NewDeduper(ttl)
	queue := signal.NewQueue()
	dispatcher := signal.NewDispatcher(queue, ledger, drainEvery, log)
	server := webhook.New(cfg.Server, deduper, queue, log)

	ctx, stop := osignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}
	httpErr := make(chan error, 1)
	go func() {
		log.Info("webhook server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	go dispatcher.Run(ctx)

	if cfg.Feed.Enabled {
		client := feed.NewClient(cfg.Feed.URL, cfg.Feed.Symbols, ledger, log)
		go func() {
			if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("price feed stopped", zap.Error(err))
			}
		}()
	}

	sched := schedule.New(log, ctx)
	if _, err := sched.Add(cfg.Portfolio.RebalanceCron, func(context.Context) {
		ledger.Rebalance()
		ledger.MarkDay()
	}); err != nil {
		return fmt.Errorf("schedule rebalance: %w", err)
	}
	sched.Start()

	select {
	case err := <-httpErr:
		stop()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop()

	if err := ledger.CloseAll(portfolio.ReasonShutdown); err != nil {
		log.Error("close all on shutdown", zap.Error(err))
	}

	s := ledger.Snapshot()
	log.Info("final portfolio",
		zap.Float64("equity", s.Equity),
		zap.Float64("realized_pnl", s.RealizedPnL),
		zap.Int("closed_trades", s.ClosedTrades))
	return nil
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "sqlite":
		return journal.NewSQLite(cfg.DBPath)
	default:
		return journal.NewCSV(cfg.TradesFile, cfg.EquityFile)
	}
}

// logListener publishes lifecycle events to the log. A chat bot or
// broker adapter would hang off the same interface.
type logListener struct {
	log *zap.Logger
}

func (l *logListener) PositionOpened(p portfolio.Position) {
	l.log.Info("event: opened",
		zap.String("position_id", p.ID),
		zap.String("symbol", p.Symbol),
		zap.String("side", string(p.Side)),
		zap.Float64("entry", p.EntryPrice),
		zap.Float64("size", p.Size),
		zap.Float64("stop_loss", p.StopLoss),
		zap.Float64("take_profit", p.TakeProfit))
}

func (l *logListener) PositionClosed(t portfolio.ClosedTrade) {
	l.log.Info("event: closed",
		zap.String("position_id", t.ID),
		zap.String("symbol", t.Symbol),
		zap.String("reason", string(t.CloseReason)),
		zap.Float64("close_price", t.ClosePrice),
		zap.Float64("realized_pnl", t.RealizedPnL),
		zap.Float64("duration_hours", t.DurationHours))
}

func (l *logListener) SignalRejected(sig signal.Signal, d risk.Decision) {
	fields := []zap.Field{
		zap.String("signal_id", sig.ID),
		zap.String("symbol", sig.Symbol),
		zap.Bool("capacity", d.Checks.Capacity),
		zap.Bool("correlation", d.Checks.Correlation),
		zap.Bool("risk_budget", d.Checks.RiskBudget),
		zap.Bool("capital", d.Checks.Capital),
	}
	for _, v := range d.Violations {
		fields = append(fields, zap.String("violation_"+v.Code, v.Msg))
	}
	l.log.Warn("event: rejected", fields...)
}

func (l *logListener) TakeProfitAdvisory(p portfolio.Position, gain float64) {
	l.log.Info("event: take-profit advisory",
		zap.String("position_id", p.ID),
		zap.String("symbol", p.Symbol),
		zap.Float64("gain_fraction", gain))
}
