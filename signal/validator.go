package signal

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/derj90/ai-trading-manager-clean/internal/id"
	"github.com/derj90/ai-trading-manager-clean/market"
)

// Rejection codes surfaced to webhook callers.
var (
	ErrMissingSymbol = fmt.Errorf("missing symbol")
	ErrMissingAction = fmt.Errorf("missing action")
	ErrBadSymbol     = fmt.Errorf("symbol not allow-listed")
	ErrBadAction     = fmt.Errorf("unrecognized action")
	ErrBadPrice      = fmt.Errorf("price must be a finite positive number")
)

const unknownStrategy = "unknown"

// rawPayload is the JSON shape TradingView-style alerts arrive in.
// Numeric fields tolerate being sent as strings.
type rawPayload struct {
	Symbol     string          `json:"symbol"`
	Ticker     string          `json:"ticker"` // alias some alert templates use
	Action     string          `json:"action"`
	Side       string          `json:"side"` // alias
	Price      json.RawMessage `json:"price"`
	StopLoss   json.RawMessage `json:"stop_loss"`
	TakeProfit json.RawMessage `json:"take_profit"`
	Strategy   string          `json:"strategy"`
	Indicators map[string]any  `json:"indicators"`
}

var (
	textActionRe   = regexp.MustCompile(`(?i)\b(buy|sell|close|long|short)\b`)
	textPriceRe    = regexp.MustCompile(`(?i)(?:@|price[:=\s]+)\s*([0-9]+(?:\.[0-9]+)?)`)
	textStopRe     = regexp.MustCompile(`(?i)(?:sl|stop)[:=\s]+([0-9]+(?:\.[0-9]+)?)`)
	textTakeRe     = regexp.MustCompile(`(?i)(?:tp|target)[:=\s]+([0-9]+(?:\.[0-9]+)?)`)
	textStrategyRe = regexp.MustCompile(`\[([^\]]+)\]`)
	textSymbolRe   = regexp.MustCompile(`(?i)\b[A-Z]{2,10}(?:USDT?|BTC|ETH)\b`)
)

// Validate turns one raw alert body into a Signal. It is a pure
// function over the payload except for ID generation and the
// received-at stamp. JSON bodies use direct field mapping; anything
// that does not parse as JSON goes through regex extraction.
func Validate(body []byte, source string) (Signal, error) {
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err == nil {
		return fromJSON(raw, source)
	}
	return fromText(string(body), source)
}

func fromJSON(raw rawPayload, source string) (Signal, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw.Symbol))
	if symbol == "" {
		symbol = strings.ToUpper(strings.TrimSpace(raw.Ticker))
	}
	action := strings.ToLower(strings.TrimSpace(raw.Action))
	if action == "" {
		action = strings.ToLower(strings.TrimSpace(raw.Side))
	}

	sig := Signal{
		Symbol:   symbol,
		Action:   normalizeAction(action),
		Price:    coerceFloat(raw.Price),
		StopLoss: coerceFloat(raw.StopLoss),
		Strategy: raw.Strategy,
		Source:   source,
	}
	sig.TakeProfit = coerceFloat(raw.TakeProfit)

	if len(raw.Indicators) > 0 {
		sig.Indicators = make(map[string]float64, len(raw.Indicators))
		for k, v := range raw.Indicators {
			if f, ok := toFloat(v); ok {
				sig.Indicators[k] = f
			}
		}
	}

	return finalize(sig)
}

func fromText(body, source string) (Signal, error) {
	sig := Signal{Source: source}

	if m := textSymbolRe.FindString(body); m != "" {
		sig.Symbol = strings.ToUpper(m)
	}
	if m := textActionRe.FindStringSubmatch(body); m != nil {
		sig.Action = normalizeAction(strings.ToLower(m[1]))
	}
	if m := textPriceRe.FindStringSubmatch(body); m != nil {
		sig.Price, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := textStopRe.FindStringSubmatch(body); m != nil {
		sig.StopLoss, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := textTakeRe.FindStringSubmatch(body); m != nil {
		sig.TakeProfit, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := textStrategyRe.FindStringSubmatch(body); m != nil {
		sig.Strategy = strings.TrimSpace(m[1])
	}

	return finalize(sig)
}

func finalize(sig Signal) (Signal, error) {
	if sig.Symbol == "" {
		return Signal{}, ErrMissingSymbol
	}
	if sig.Action == "" {
		return Signal{}, ErrMissingAction
	}
	if !market.ValidSymbol(sig.Symbol) {
		return Signal{}, fmt.Errorf("%w: %s", ErrBadSymbol, sig.Symbol)
	}
	if !sig.Action.Valid() {
		return Signal{}, fmt.Errorf("%w: %s", ErrBadAction, sig.Action)
	}
	if sig.Price != 0 && (sig.Price < 0 || math.IsInf(sig.Price, 0) || math.IsNaN(sig.Price)) {
		return Signal{}, ErrBadPrice
	}
	if sig.Strategy == "" {
		sig.Strategy = unknownStrategy
	}

	sig.ID = id.New()
	sig.ReceivedAt = time.Now().UTC()
	return sig, nil
}

func normalizeAction(a string) Action {
	switch a {
	case "long":
		return ActionBuy
	case "short":
		return ActionSell
	default:
		return Action(a)
	}
}

// coerceFloat accepts numbers and quoted numbers; anything else is 0.
func coerceFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
