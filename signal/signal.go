// Package signal holds the intake side of the pipeline: the Signal
// model, payload validation, duplicate suppression and the buffered
// queue that feeds the risk engine.
package signal

import "time"

type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionClose Action = "close"
)

func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionClose:
		return true
	}
	return false
}

// Signal is an inbound trade intent. Immutable after intake; the queue
// and risk engine reference it but never mutate it.
type Signal struct {
	ID         string             `json:"id"`
	ReceivedAt time.Time          `json:"received_at"`
	Symbol     string             `json:"symbol"`
	Action     Action             `json:"action"`
	Price      float64            `json:"price,omitempty"`
	StopLoss   float64            `json:"stop_loss,omitempty"`
	TakeProfit float64            `json:"take_profit,omitempty"`
	Strategy   string             `json:"strategy"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
	Source     string             `json:"source"`
}
