package portfolio

import "time"

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type CloseReason string

const (
	ReasonStopLoss   CloseReason = "stop_loss"
	ReasonTakeProfit CloseReason = "take_profit"
	ReasonManual     CloseReason = "manual"
	ReasonRebalance  CloseReason = "rebalance"
	ReasonShutdown   CloseReason = "shutdown"
)

// Position is a simulated open trade. Owned exclusively by the Ledger;
// mutated only by its revaluation and close routines.
type Position struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Size       float64   `json:"size"` // units, always > 0
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit,omitempty"` // 0 means none
	OpenedAt   time.Time `json:"opened_at"`
	Strategy   string    `json:"strategy"`

	UnrealizedPnL float64 `json:"unrealized_pnl"`
	MaxFavorable  float64 `json:"max_favorable_excursion"`
	MaxAdverse    float64 `json:"max_adverse_excursion"`
	Status        Status  `json:"status"`
}

// unrealizedAt marks the position against price.
func (p *Position) unrealizedAt(price float64) float64 {
	if p.Side == SideShort {
		return p.Size * (p.EntryPrice - price)
	}
	return p.Size * (price - p.EntryPrice)
}

// committed is the capital debited when the position opened.
func (p *Position) committed() float64 {
	return p.Size * p.EntryPrice
}

func (p *Position) hitStopLoss(price float64) bool {
	if p.StopLoss <= 0 {
		return false
	}
	if p.Side == SideLong {
		return price <= p.StopLoss
	}
	return price >= p.StopLoss
}

func (p *Position) hitTakeProfit(price float64) bool {
	if p.TakeProfit <= 0 {
		return false
	}
	if p.Side == SideLong {
		return price >= p.TakeProfit
	}
	return price <= p.TakeProfit
}

// ClosedTrade is a Position frozen at close time. Immutable once
// appended to the trade history.
type ClosedTrade struct {
	Position
	ClosePrice    float64     `json:"close_price"`
	ClosedAt      time.Time   `json:"closed_at"`
	RealizedPnL   float64     `json:"realized_pnl"`
	CloseReason   CloseReason `json:"close_reason"`
	DurationHours float64     `json:"duration_hours"`
}
