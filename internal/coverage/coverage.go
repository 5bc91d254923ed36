// Package coverage measures how much of a portfolio is covered by
// validated emission-reduction targets, weighted the same way the
// aggregation engine weights temperature scores.
package coverage

import (
	"go.uber.org/zap"

	"github.com/sells-group/tempscore-cli/internal/aggregate"
	"github.com/sells-group/tempscore-cli/internal/model"
)

// Result reports target coverage for one weighting method over the full
// portfolio. Percentages are in [0, 100].
type Result struct {
	Method       model.AggregationMethod `json:"method"`
	CoveragePct  float64                 `json:"coverage_pct"`
	Covered      int                     `json:"covered_companies"`
	Total        int                     `json:"total_companies"`
	Excluded     int                     `json:"excluded_companies"`
	CoveredIDs   []string                `json:"covered_ids,omitempty"`
	UncoveredIDs []string                `json:"uncovered_ids,omitempty"`
}

// Calculate computes the weighted share of the portfolio whose companies
// hold at least one validated target that actually produced a
// target-basis score. The weight strategy table is shared with the
// aggregation engine; companies whose weight basis is missing or zero
// are excluded from both numerator and denominator.
func Calculate(table *model.ScoredTable, fundamentals map[string]model.Fundamentals, method model.AggregationMethod) (*Result, error) {
	if _, err := model.ParseAggregationMethod(string(method)); err != nil {
		return nil, err
	}

	covered := coveredCompanies(table)

	res := &Result{Method: method}

	var totalBasis, coveredBasis float64
	seen := make(map[string]bool)
	for _, rec := range table.Records {
		if seen[rec.CompanyID] {
			continue
		}
		seen[rec.CompanyID] = true
		res.Total++

		f, ok := fundamentals[rec.CompanyID]
		if !ok {
			res.Excluded++
			continue
		}
		basis, ok := aggregate.WeightBasis(method, f)
		if !ok {
			res.Excluded++
			continue
		}

		totalBasis += basis
		if covered[rec.CompanyID] {
			coveredBasis += basis
			res.Covered++
			res.CoveredIDs = append(res.CoveredIDs, rec.CompanyID)
		} else {
			res.UncoveredIDs = append(res.UncoveredIDs, rec.CompanyID)
		}
	}

	if totalBasis > 0 {
		res.CoveragePct = coveredBasis / totalBasis * 100
	}

	zap.L().Info("coverage: calculation complete",
		zap.String("method", string(method)),
		zap.Float64("coverage_pct", res.CoveragePct),
		zap.Int("covered", res.Covered),
		zap.Int("total", res.Total),
	)

	return res, nil
}

// coveredCompanies marks every company with at least one validated
// target that produced a target-basis score in any partition.
func coveredCompanies(table *model.ScoredTable) map[string]bool {
	out := make(map[string]bool)
	for _, rec := range table.Records {
		if rec.Basis == model.BasisTarget && rec.TargetValidated {
			out[rec.CompanyID] = true
		}
	}
	return out
}
