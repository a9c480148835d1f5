// Package topology derives persistent-homology features (β₀, β₁, TSI,
// cycle risk, hyperedge coordination) over a financial correlation
// graph built from the enriched signal batch.
package topology

import "strings"

var financialDomains = map[string]bool{
	"market": true, "prediction": true, "finance": true, "economic": true,
}

var financialSignalTypeTokens = []string{
	"market", "prediction", "volatility", "conviction", "etf", "flow",
	"yield", "spread", "commodity", "fx",
}

// isFinancial reports whether a signal belongs to the financial
// correlation graph, matching by domain, source prefix, or
// signal-type token.
func isFinancial(domain, sourceID, signalType string) bool {
	if financialDomains[strings.ToLower(domain)] {
		return true
	}
	lowerSource := strings.ToLower(sourceID)
	if strings.HasPrefix(lowerSource, "market:") || strings.HasPrefix(lowerSource, "prediction:") {
		return true
	}
	lowerType := strings.ToLower(signalType)
	for _, token := range financialSignalTypeTokens {
		if strings.Contains(lowerType, token) {
			return true
		}
	}
	return false
}
