package risk

type Policy struct {
	// Exposure limits
	MaxOpenPositions  int     // 5
	MaxCorrelated     int     // 2: open positions allowed in a correlated group
	MaxRiskPerTrade   float64 // 0.02: capital fraction risked per trade
	MaxPortfolioRisk  float64 // 0.06: sum of open risk fractions
	MaxPositionFrac   float64 // 0.8: size*price cap as fraction of available capital
}

// OpenExposure is the slice of an open position admission cares about.
type OpenExposure struct {
	Symbol     string
	EntryPrice float64
	StopLoss   float64
}

// RiskFraction is |entry - stop| / entry for one open position.
func (e OpenExposure) RiskFraction() float64 {
	if e.EntryPrice == 0 {
		return 0
	}
	return abs(e.EntryPrice-e.StopLoss) / e.EntryPrice
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
