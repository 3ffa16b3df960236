package risk

import (
	"fmt"

	"github.com/derj90/ai-trading-manager-clean/market"
)

type Violation struct {
	Code string
	Msg  string
}

// Checks is the full admission vector. Every field is evaluated even
// after one fails, so a rejection event can name all failing gates.
type Checks struct {
	Capacity    bool `json:"capacity"`
	Correlation bool `json:"correlation"`
	RiskBudget  bool `json:"risk_budget"`
	Capital     bool `json:"capital"`
}

type Decision struct {
	Allowed    bool
	Checks     Checks
	Violations []Violation

	PortfolioRisk  float64 // current sum of open risk fractions
	CorrelatedOpen int
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Evaluate runs every admission gate for a candidate symbol against the
// current open book. Unlike a short-circuit chain, all four checks are
// reported so callers can distinguish "no capital" from "too correlated".
func Evaluate(
	p Policy,
	corr market.CorrelationTable,
	symbol string,
	open []OpenExposure,
	availableCapital float64,
) Decision {
	d := Decision{Allowed: true, Checks: Checks{
		Capacity:    true,
		Correlation: true,
		RiskBudget:  true,
		Capital:     true,
	}}

	if len(open) >= p.MaxOpenPositions {
		d.Checks.Capacity = false
		d.add("MAX_OPEN_POSITIONS",
			fmt.Sprintf("open positions %d >= max %d", len(open), p.MaxOpenPositions))
	}

	for _, e := range open {
		d.PortfolioRisk += e.RiskFraction()
		if corr.Correlated(e.Symbol, symbol) {
			d.CorrelatedOpen++
		}
	}

	if d.CorrelatedOpen >= p.MaxCorrelated {
		d.Checks.Correlation = false
		d.add("TOO_CORRELATED",
			fmt.Sprintf("%d open positions correlated with %s (max %d)",
				d.CorrelatedOpen, symbol, p.MaxCorrelated))
	}

	if d.PortfolioRisk+p.MaxRiskPerTrade > p.MaxPortfolioRisk {
		d.Checks.RiskBudget = false
		d.add("RISK_BUDGET_EXCEEDED",
			fmt.Sprintf("portfolio risk %.2f%% + trade risk %.2f%% exceeds budget %.2f%%",
				100*d.PortfolioRisk, 100*p.MaxRiskPerTrade, 100*p.MaxPortfolioRisk))
	}

	if availableCapital <= 0 {
		d.Checks.Capital = false
		d.add("NO_CAPITAL",
			fmt.Sprintf("available capital %.2f must be positive", availableCapital))
	}

	return d
}
