package risk

import (
	"fmt"
	"math"
)

type SizeInputs struct {
	AvailableCapital float64
	RiskPct          float64 // capital fraction risked if the stop is hit
	EntryPrice       float64
	StopPrice        float64
	MaxPositionFrac  float64 // clamp: size*price <= frac*capital
}

type SizeResult struct {
	Units        float64
	RiskAmount   float64
	StopFraction float64 // |entry - stop| / entry
	Capped       bool
}

// Size computes risk-based position size:
//
//	riskAmount = capital * riskPct
//	units      = (riskAmount / stopFraction) / price
//
// clamped so the position's notional never exceeds MaxPositionFrac of
// available capital. A zero or missing stop is a caller error; signals
// must carry a stop before sizing.
func Size(in SizeInputs) (SizeResult, error) {
	if in.EntryPrice <= 0 || math.IsNaN(in.EntryPrice) || math.IsInf(in.EntryPrice, 0) {
		return SizeResult{}, fmt.Errorf("size: entry price %v is not a positive number", in.EntryPrice)
	}
	if in.StopPrice <= 0 {
		return SizeResult{}, fmt.Errorf("size: stop loss is required")
	}
	if in.StopPrice == in.EntryPrice {
		return SizeResult{}, fmt.Errorf("size: stop equals entry, stop distance is zero")
	}
	if in.AvailableCapital <= 0 {
		return SizeResult{}, fmt.Errorf("size: available capital %v must be positive", in.AvailableCapital)
	}

	r := SizeResult{
		RiskAmount:   in.AvailableCapital * in.RiskPct,
		StopFraction: math.Abs(in.EntryPrice-in.StopPrice) / in.EntryPrice,
	}

	r.Units = (r.RiskAmount / r.StopFraction) / in.EntryPrice

	maxUnits := in.MaxPositionFrac * in.AvailableCapital / in.EntryPrice
	if r.Units > maxUnits {
		r.Units = maxUnits
		r.Capped = true
	}

	return r, nil
}
