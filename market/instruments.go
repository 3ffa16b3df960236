// market/instruments.go
package market

import (
	"regexp"
	"strings"
)

// SymbolPattern is the instrument allow-list. It deliberately accepts a
// narrow family of quoted pairs (XXXUSD, XXXUSDT, XXXBTC, XXXETH) rather
// than acting as a full instrument registry.
var SymbolPattern = regexp.MustCompile(`^[A-Z]{2,10}(USDT?|BTC|ETH)$`)

// ValidSymbol reports whether a symbol is allow-listed. Matching is
// case-insensitive; callers should store the uppercased form.
func ValidSymbol(symbol string) bool {
	return SymbolPattern.MatchString(strings.ToUpper(symbol))
}

// CorrelationTable maps a group name to the symbols that move together.
// The table is static configuration data, not computed online.
type CorrelationTable map[string][]string

// DefaultCorrelations covers the instrument families the allow-list
// admits. Override via config for other universes.
func DefaultCorrelations() CorrelationTable {
	return CorrelationTable{
		"btc-beta": {"BTCUSDT", "BTCUSD", "ETHUSDT", "ETHUSD", "SOLUSDT"},
		"eth-eco":  {"ETHUSDT", "ETHUSD", "ARBUSDT", "OPUSDT"},
		"metals":   {"XAUUSD", "XAGUSD", "XPTUSD"},
		"majors":   {"EURUSD", "GBPUSD", "AUDUSD", "NZDUSD"},
	}
}

// Correlated reports whether two symbols share at least one group.
// A symbol is always correlated with itself.
func (t CorrelationTable) Correlated(a, b string) bool {
	a = strings.ToUpper(a)
	b = strings.ToUpper(b)
	if a == b {
		return true
	}
	for _, group := range t {
		var hasA, hasB bool
		for _, s := range group {
			if s == a {
				hasA = true
			}
			if s == b {
				hasB = true
			}
		}
		if hasA && hasB {
			return true
		}
	}
	return false
}
