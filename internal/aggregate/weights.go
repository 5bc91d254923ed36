// Package aggregate rolls per-company temperature scores up into group and
// portfolio scores under one of seven weighting methods.
package aggregate

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tempscore-cli/internal/model"
)

// weightBasisFuncs maps each weighting method to its raw per-company
// weight basis. The table is closed: adding a method is a single edit
// here plus the enum constant.
var weightBasisFuncs = map[model.AggregationMethod]func(model.Fundamentals) float64{
	model.WATS:  func(f model.Fundamentals) float64 { return f.MarketCap },
	model.TETS:  func(f model.Fundamentals) float64 { return f.EmissionsS1S2 + f.EmissionsS3 },
	model.MOTS:  func(f model.Fundamentals) float64 { return f.MarketCap * f.OwnershipPct / 100 },
	model.EOTS:  func(f model.Fundamentals) float64 { return f.EnterpriseValue * f.OwnershipPct / 100 },
	model.ECOTS: func(f model.Fundamentals) float64 { return (f.EnterpriseValue + f.Cash) * f.OwnershipPct / 100 },
	model.AOTS:  func(model.Fundamentals) float64 { return 1 },
	model.ROTS:  func(f model.Fundamentals) float64 { return f.Revenue },
}

// WeightBasis returns the raw (pre-normalization) weight basis for one
// company under the given method. The second return is false when the
// basis is zero, negative or not finite; such companies are excluded from
// the weight denominator and reported, never silently carried as
// zero-weight entries.
func WeightBasis(method model.AggregationMethod, f model.Fundamentals) (float64, bool) {
	fn, ok := weightBasisFuncs[method]
	if !ok {
		return 0, false
	}
	basis := fn(f)
	if basis <= 0 || math.IsNaN(basis) || math.IsInf(basis, 0) {
		return 0, false
	}
	return basis, true
}

func validateMethod(method model.AggregationMethod) error {
	if _, ok := weightBasisFuncs[method]; !ok {
		return eris.Wrapf(model.ErrConfiguration, "aggregation method: unknown value %q", string(method))
	}
	return nil
}
