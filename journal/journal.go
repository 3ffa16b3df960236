// journal/journal.go
package journal

import "time"

// TradeRecord is a closed trade frozen for persistence.
type TradeRecord struct {
	TradeID     string
	Symbol      string
	Side        string // "long" or "short"
	Units       float64
	EntryPrice  float64
	ExitPrice   float64
	StopLoss    float64
	TakeProfit  float64
	OpenTime    time.Time
	CloseTime   time.Time
	RealizedPnL float64
	Reason      string
	Strategy    string
}

// EquitySnapshot captures the portfolio after a close.
type EquitySnapshot struct {
	Time          time.Time
	Available     float64 // uncommitted capital
	Committed     float64 // sum of size*entry across open positions
	Equity        float64 // available + committed + unrealized
	OpenPositions int
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}
