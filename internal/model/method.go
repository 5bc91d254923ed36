package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// AggregationMethod selects the weighting scheme used to roll company
// scores up into group and portfolio scores.
type AggregationMethod string

const (
	// WATS weights by market capitalization.
	WATS AggregationMethod = "WATS"
	// TETS weights by total absolute emissions (S1+S2 plus S3).
	TETS AggregationMethod = "TETS"
	// MOTS weights by market capitalization times the ownership fraction.
	MOTS AggregationMethod = "MOTS"
	// EOTS weights by enterprise value times the ownership fraction.
	EOTS AggregationMethod = "EOTS"
	// ECOTS weights by enterprise value plus cash, times the ownership fraction.
	ECOTS AggregationMethod = "ECOTS"
	// AOTS weights every company equally.
	AOTS AggregationMethod = "AOTS"
	// ROTS weights by revenue.
	ROTS AggregationMethod = "ROTS"
)

// AggregationMethods lists every supported method in a fixed order.
func AggregationMethods() []AggregationMethod {
	return []AggregationMethod{WATS, TETS, MOTS, EOTS, ECOTS, AOTS, ROTS}
}

// ParseAggregationMethod converts a string into an AggregationMethod.
func ParseAggregationMethod(s string) (AggregationMethod, error) {
	m := AggregationMethod(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AggregationMethods() {
		if m == known {
			return m, nil
		}
	}
	return "", eris.Wrapf(ErrConfiguration, "aggregation method: unknown value %q", s)
}
