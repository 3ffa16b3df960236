package portfolio

import "math"

const tradingDaysPerYear = 252

// Stats summarizes the closed-trade history. All fields are derived;
// the zero value is a valid "no trades yet" report.
type Stats struct {
	TotalClosed  int     `json:"total_closed"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	TotalPnL     float64 `json:"total_pnl"`
	ProfitFactor float64 `json:"profit_factor"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
}

// ComputeStats derives performance from the closed trades and the
// daily PnL series. startEquity is the capital the trade sequence
// began with; it anchors the drawdown curve.
func ComputeStats(trades []ClosedTrade, daily []float64, startEquity float64) Stats {
	s := Stats{TotalClosed: len(trades)}

	var winSum, lossSum float64
	for _, t := range trades {
		s.TotalPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			s.Wins++
			winSum += t.RealizedPnL
		} else if t.RealizedPnL < 0 {
			s.Losses++
			lossSum += t.RealizedPnL
		}
	}

	if s.TotalClosed > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalClosed)
	}

	// When losses sum to zero, profit factor is defined as the winning
	// sum to avoid a divide-by-zero.
	if lossSum == 0 {
		s.ProfitFactor = winSum
	} else {
		s.ProfitFactor = winSum / math.Abs(lossSum)
	}

	s.MaxDrawdown = MaxDrawdown(trades, startEquity)
	s.SharpeRatio = SharpeRatio(daily)
	return s
}

// MaxDrawdown walks the cumulative equity curve over the closed-trade
// sequence and reports the largest peak-to-trough fraction observed.
func MaxDrawdown(trades []ClosedTrade, startEquity float64) float64 {
	equity := startEquity
	peak := equity
	var maxDD float64

	for _, t := range trades {
		equity += t.RealizedPnL
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// SharpeRatio annualizes the daily PnL series using the 252-day
// convention. Zero when the series has fewer than 2 points or zero
// variance.
func SharpeRatio(daily []float64) float64 {
	if len(daily) < 2 {
		return 0
	}

	var mean float64
	for _, r := range daily {
		mean += r
	}
	mean /= float64(len(daily))

	var variance float64
	for _, r := range daily {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(daily) - 1)

	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}
