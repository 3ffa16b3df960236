package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/derj90/ai-trading-manager-clean/internal/id"
	"github.com/derj90/ai-trading-manager-clean/journal"
	"github.com/derj90/ai-trading-manager-clean/market"
	"github.com/derj90/ai-trading-manager-clean/risk"
	"github.com/derj90/ai-trading-manager-clean/signal"
)

// ErrPositionNotFound is returned when closing an unknown or
// already-closed position id. It is a condition, not a crash.
var ErrPositionNotFound = errors.New("position not found")

const (
	rebalanceLossCut  = -0.15
	advisoryGainLevel = 0.25
	dailySeriesLen    = 252
)

// Listener receives lifecycle events for downstream consumers (chat
// bot, broker adapter). Callbacks fire after the ledger lock is
// released, never while it is held.
type Listener interface {
	PositionOpened(p Position)
	PositionClosed(t ClosedTrade)
	SignalRejected(sig signal.Signal, d risk.Decision)
	TakeProfitAdvisory(p Position, gainFraction float64)
}

// State is a point-in-time view of the portfolio aggregate.
type State struct {
	InitialCapital float64 `json:"initial_capital"`
	Available      float64 `json:"available_capital"`
	Committed      float64 `json:"committed_capital"`
	Unrealized     float64 `json:"unrealized_pnl"`
	Equity         float64 `json:"equity"`
	OpenPositions  int     `json:"open_positions"`
	ClosedTrades   int     `json:"closed_trades"`
	RealizedPnL    float64 `json:"realized_pnl"`
}

// Ledger owns the open position set, the closed trade history and the
// capital account. Every mutation serializes on one mutex; the webhook
// path never touches it (different resource: the signal queue).
type Ledger struct {
	mu sync.Mutex

	policy risk.Policy
	corr   market.CorrelationTable

	initialCapital float64
	available      float64
	positions      map[string]*Position
	closed         []ClosedTrade
	daily          []float64 // bounded ring, last dailySeriesLen entries
	lastEquity     float64

	ticks    *market.TickStore
	journal  journal.Journal
	logger   *zap.Logger
	listener Listener
}

func NewLedger(initialCapital float64, policy risk.Policy, corr market.CorrelationTable, j journal.Journal, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		policy:         policy,
		corr:           corr,
		initialCapital: initialCapital,
		available:      initialCapital,
		positions:      make(map[string]*Position),
		ticks:          market.NewTickStore(),
		journal:        j,
		logger:         logger,
		lastEquity:     initialCapital,
	}
}

// SetListener installs the event consumer. Call before signals flow.
func (l *Ledger) SetListener(listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listener = listener
}

// ProcessSignal is the dispatcher sink: one validated, deduplicated
// signal in arrival order. Admission failures are events, not errors.
func (l *Ledger) ProcessSignal(ctx context.Context, sig signal.Signal) {
	_ = ctx

	switch sig.Action {
	case signal.ActionClose:
		n := l.CloseSymbol(sig.Symbol, ReasonManual)
		l.logger.Info("close signal",
			zap.String("symbol", sig.Symbol),
			zap.Int("closed", n))
		return
	case signal.ActionBuy, signal.ActionSell:
	default:
		return
	}

	pos, dec, err := l.open(sig)
	if err != nil {
		l.logger.Warn("signal not opened",
			zap.String("signal_id", sig.ID),
			zap.String("symbol", sig.Symbol),
			zap.Error(err))
		return
	}
	if dec != nil {
		// Rejected by admission; full check vector already delivered to
		// the listener.
		l.logger.Info("signal rejected",
			zap.String("signal_id", sig.ID),
			zap.String("symbol", sig.Symbol),
			zap.Bool("capacity", dec.Checks.Capacity),
			zap.Bool("correlation", dec.Checks.Correlation),
			zap.Bool("risk_budget", dec.Checks.RiskBudget),
			zap.Bool("capital", dec.Checks.Capital))
		return
	}

	l.logger.Info("position opened",
		zap.String("position_id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(pos.Side)),
		zap.Float64("size", pos.Size),
		zap.Float64("entry", pos.EntryPrice))
}

// open admits, sizes and opens a position from a buy/sell signal.
// Returns a non-nil Decision when admission rejected the signal.
func (l *Ledger) open(sig signal.Signal) (Position, *risk.Decision, error) {
	price := sig.Price
	if price == 0 {
		t, err := l.ticks.Get(sig.Symbol)
		if err != nil {
			return Position{}, nil, fmt.Errorf("open %s: no price on signal and %w", sig.Symbol, err)
		}
		price = t.Mid()
	}
	if sig.StopLoss <= 0 {
		return Position{}, nil, fmt.Errorf("open %s: signal carries no stop loss", sig.Symbol)
	}

	l.mu.Lock()

	dec := risk.Evaluate(l.policy, l.corr, sig.Symbol, l.exposuresLocked(), l.available)
	if !dec.Allowed {
		listener := l.listener
		l.mu.Unlock()
		if listener != nil {
			listener.SignalRejected(sig, dec)
		}
		return Position{}, &dec, nil
	}

	sized, err := risk.Size(risk.SizeInputs{
		AvailableCapital: l.available,
		RiskPct:          l.policy.MaxRiskPerTrade,
		EntryPrice:       price,
		StopPrice:        sig.StopLoss,
		MaxPositionFrac:  l.policy.MaxPositionFrac,
	})
	if err != nil {
		l.mu.Unlock()
		return Position{}, nil, err
	}

	side := SideLong
	if sig.Action == signal.ActionSell {
		side = SideShort
	}

	p := &Position{
		ID:         id.New(),
		Symbol:     sig.Symbol,
		Side:       side,
		EntryPrice: price,
		Size:       sized.Units,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		OpenedAt:   sig.ReceivedAt,
		Strategy:   sig.Strategy,
		Status:     StatusOpen,
	}
	if p.OpenedAt.IsZero() {
		p.OpenedAt = time.Now().UTC()
	}

	l.positions[p.ID] = p
	l.available -= p.committed()

	opened := *p
	listener := l.listener
	l.mu.Unlock()

	if listener != nil {
		listener.PositionOpened(opened)
	}
	return opened, nil, nil
}

// UpdatePrice stores the tick, revalues every open position on the
// symbol, then checks exit triggers. Revaluation runs before the exit
// check so a close is never decided against a stale unrealized PnL.
// Stop-loss wins when both thresholds cross in the same tick.
func (l *Ledger) UpdatePrice(t market.Tick) error {
	l.ticks.Set(t)

	l.mu.Lock()

	var closedOut []ClosedTrade
	for _, p := range l.positions {
		if p.Symbol != t.Symbol {
			continue
		}

		mark := t.Bid
		if p.Side == SideShort {
			mark = t.Ask
		}

		l.revalueLocked(p, mark)

		var reason CloseReason
		switch {
		case p.hitStopLoss(mark):
			reason = ReasonStopLoss
		case p.hitTakeProfit(mark):
			reason = ReasonTakeProfit
		}
		if reason != "" {
			closedOut = append(closedOut, l.closeLocked(p, mark, t.Time, reason))
		}
	}

	if len(closedOut) > 0 {
		l.snapshotLocked(t.Time)
	}

	listener := l.listener
	l.mu.Unlock()

	if listener != nil {
		for _, ct := range closedOut {
			listener.PositionClosed(ct)
		}
	}
	return nil
}

// Close closes one position at the given price. A zero price closes at
// the latest tick for the symbol.
func (l *Ledger) Close(positionID string, price float64, reason CloseReason) error {
	if reason == "" {
		reason = ReasonManual
	}

	l.mu.Lock()

	p, ok := l.positions[positionID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("close %q: %w", positionID, ErrPositionNotFound)
	}

	closeTime := time.Now().UTC()
	if price == 0 {
		t, err := l.ticks.Get(p.Symbol)
		if err != nil {
			l.mu.Unlock()
			return fmt.Errorf("close %q: no price for %s: %w", positionID, p.Symbol, err)
		}
		price = t.Bid
		if p.Side == SideShort {
			price = t.Ask
		}
		if !t.Time.IsZero() {
			closeTime = t.Time
		}
	}

	ct := l.closeLocked(p, price, closeTime, reason)
	l.snapshotLocked(closeTime)

	listener := l.listener
	l.mu.Unlock()

	if listener != nil {
		listener.PositionClosed(ct)
	}
	return nil
}

// CloseSymbol closes every open position on a symbol at the latest
// tick; positions without a price are skipped. Returns how many closed.
func (l *Ledger) CloseSymbol(symbol string, reason CloseReason) int {
	l.mu.Lock()

	var closedOut []ClosedTrade
	now := time.Now().UTC()
	for _, p := range l.positions {
		if p.Symbol != symbol {
			continue
		}
		t, err := l.ticks.Get(p.Symbol)
		if err != nil {
			l.logger.Warn("close symbol: no price", zap.String("symbol", symbol))
			continue
		}
		mark := t.Bid
		if p.Side == SideShort {
			mark = t.Ask
		}
		closeTime := t.Time
		if closeTime.IsZero() {
			closeTime = now
		}
		closedOut = append(closedOut, l.closeLocked(p, mark, closeTime, reason))
	}

	if len(closedOut) > 0 {
		l.snapshotLocked(now)
	}

	listener := l.listener
	l.mu.Unlock()

	if listener != nil {
		for _, ct := range closedOut {
			listener.PositionClosed(ct)
		}
	}
	return len(closedOut)
}

// CloseAll force-closes the whole book, used at shutdown.
func (l *Ledger) CloseAll(reason CloseReason) error {
	l.mu.Lock()

	var closedOut []ClosedTrade
	now := time.Now().UTC()
	for _, p := range l.positions {
		mark := p.EntryPrice // fallback: flat close when no tick arrived
		closeTime := now
		if t, err := l.ticks.Get(p.Symbol); err == nil {
			mark = t.Bid
			if p.Side == SideShort {
				mark = t.Ask
			}
			if !t.Time.IsZero() {
				closeTime = t.Time
			}
		}
		closedOut = append(closedOut, l.closeLocked(p, mark, closeTime, reason))
	}

	if len(closedOut) > 0 {
		l.snapshotLocked(now)
	}

	listener := l.listener
	l.mu.Unlock()

	if listener != nil {
		for _, ct := range closedOut {
			listener.PositionClosed(ct)
		}
	}
	return nil
}

// Rebalance is the periodic risk backstop, independent of the stop and
// take-profit already on each position: force-close anything down more
// than 15% of committed capital, and advise (never force) a partial
// exit for anything up 25%+.
func (l *Ledger) Rebalance() {
	l.mu.Lock()

	var closedOut []ClosedTrade
	type advisory struct {
		pos  Position
		gain float64
	}
	var advisories []advisory

	now := time.Now().UTC()
	for _, p := range l.positions {
		t, err := l.ticks.Get(p.Symbol)
		if err != nil {
			continue
		}
		mark := t.Bid
		if p.Side == SideShort {
			mark = t.Ask
		}
		l.revalueLocked(p, mark)

		frac := p.UnrealizedPnL / p.committed()
		switch {
		case frac <= rebalanceLossCut:
			closeTime := t.Time
			if closeTime.IsZero() {
				closeTime = now
			}
			closedOut = append(closedOut, l.closeLocked(p, mark, closeTime, ReasonRebalance))
		case frac >= advisoryGainLevel:
			advisories = append(advisories, advisory{pos: *p, gain: frac})
		}
	}

	if len(closedOut) > 0 {
		l.snapshotLocked(now)
	}

	listener := l.listener
	l.mu.Unlock()

	if listener == nil {
		return
	}
	for _, ct := range closedOut {
		listener.PositionClosed(ct)
	}
	for _, a := range advisories {
		listener.TakeProfitAdvisory(a.pos, a.gain)
	}
}

// MarkDay appends today's equity change to the daily PnL ring. Driven
// by the daily schedule alongside Rebalance.
func (l *Ledger) MarkDay() {
	l.mu.Lock()
	defer l.mu.Unlock()

	eq := l.equityLocked()
	l.daily = append(l.daily, eq-l.lastEquity)
	if len(l.daily) > dailySeriesLen {
		l.daily = append(l.daily[:0:0], l.daily[len(l.daily)-dailySeriesLen:]...)
	}
	l.lastEquity = eq
}

func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := State{
		InitialCapital: l.initialCapital,
		Available:      l.available,
		OpenPositions:  len(l.positions),
		ClosedTrades:   len(l.closed),
	}
	for _, p := range l.positions {
		s.Committed += p.committed()
		s.Unrealized += p.UnrealizedPnL
	}
	for _, ct := range l.closed {
		s.RealizedPnL += ct.RealizedPnL
	}
	s.Equity = s.Available + s.Committed + s.Unrealized
	return s
}

// OpenPositions returns a copy of the open set.
func (l *Ledger) OpenPositions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	return out
}

// ClosedTrades returns a copy of the trade history, oldest first.
func (l *Ledger) ClosedTrades() []ClosedTrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ClosedTrade(nil), l.closed...)
}

// DailyPnL returns a copy of the daily PnL ring, oldest first.
func (l *Ledger) DailyPnL() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]float64(nil), l.daily...)
}

func (l *Ledger) exposuresLocked() []risk.OpenExposure {
	out := make([]risk.OpenExposure, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, risk.OpenExposure{
			Symbol:     p.Symbol,
			EntryPrice: p.EntryPrice,
			StopLoss:   p.StopLoss,
		})
	}
	return out
}

// revalueLocked recomputes unrealized PnL and the excursion extremes.
// It never closes a position.
func (l *Ledger) revalueLocked(p *Position, mark float64) {
	p.UnrealizedPnL = p.unrealizedAt(mark)
	frac := p.UnrealizedPnL / p.committed()
	if frac > p.MaxFavorable {
		p.MaxFavorable = frac
	}
	if frac < p.MaxAdverse {
		p.MaxAdverse = frac
	}
}

// closeLocked settles the position against the book. Journal failures
// are logged, not returned: once capital is credited and the trade is
// in the closed history, the caller must still see the trade and emit
// its listener event.
func (l *Ledger) closeLocked(p *Position, price float64, closeTime time.Time, reason CloseReason) ClosedTrade {
	pnl := p.unrealizedAt(price)

	p.Status = StatusClosed
	p.UnrealizedPnL = 0

	delete(l.positions, p.ID)
	l.available += p.committed() + pnl

	ct := ClosedTrade{
		Position:      *p,
		ClosePrice:    price,
		ClosedAt:      closeTime,
		RealizedPnL:   pnl,
		CloseReason:   reason,
		DurationHours: closeTime.Sub(p.OpenedAt).Hours(),
	}
	l.closed = append(l.closed, ct)

	err := l.journal.RecordTrade(journal.TradeRecord{
		TradeID:     ct.ID,
		Symbol:      ct.Symbol,
		Side:        string(ct.Side),
		Units:       ct.Size,
		EntryPrice:  ct.EntryPrice,
		ExitPrice:   price,
		StopLoss:    ct.StopLoss,
		TakeProfit:  ct.TakeProfit,
		OpenTime:    ct.OpenedAt,
		CloseTime:   closeTime,
		RealizedPnL: pnl,
		Reason:      string(reason),
		Strategy:    ct.Strategy,
	})
	if err != nil {
		l.logger.Error("journal trade", zap.String("trade_id", ct.ID), zap.Error(err))
	}
	return ct
}

func (l *Ledger) snapshotLocked(at time.Time) {
	var committed, unrealized float64
	for _, p := range l.positions {
		committed += p.committed()
		unrealized += p.UnrealizedPnL
	}
	err := l.journal.RecordEquity(journal.EquitySnapshot{
		Time:          at,
		Available:     l.available,
		Committed:     committed,
		Equity:        l.available + committed + unrealized,
		OpenPositions: len(l.positions),
	})
	if err != nil {
		l.logger.Error("journal equity snapshot", zap.Error(err))
	}
}

func (l *Ledger) equityLocked() float64 {
	eq := l.available
	for _, p := range l.positions {
		eq += p.committed() + p.UnrealizedPnL
	}
	return eq
}
