package model

import "strings"

// ValidationStatus is the review state of an emissions-reduction target.
type ValidationStatus string

const (
	StatusValidated    ValidationStatus = "validated"
	StatusPending      ValidationStatus = "pending"
	StatusNotValidated ValidationStatus = "not_validated"
)

// ParseValidationStatus converts a string into a ValidationStatus.
// Unknown values are treated as not validated rather than rejected, since
// provider files routinely carry free-form status text.
func ParseValidationStatus(s string) ValidationStatus {
	switch ValidationStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusValidated:
		return StatusValidated
	case StatusPending:
		return StatusPending
	default:
		return StatusNotValidated
	}
}

// Position is a single portfolio holding.
type Position struct {
	CompanyID  string  `json:"company_id" yaml:"company_id"`
	Investment float64 `json:"investment_value" yaml:"investment_value"`
}

// Fundamentals holds per-company financial and emissions data from a
// data provider. Immutable once loaded for a computation run.
type Fundamentals struct {
	CompanyID       string  `json:"company_id" yaml:"company_id"`
	CompanyName     string  `json:"company_name" yaml:"company_name"`
	Sector          string  `json:"sector" yaml:"sector"`
	Region          string  `json:"region" yaml:"region"`
	MarketCap       float64 `json:"market_cap" yaml:"market_cap"`
	EnterpriseValue float64 `json:"enterprise_value" yaml:"enterprise_value"`
	OwnershipPct    float64 `json:"ownership_pct" yaml:"ownership_pct"` // 0-100
	Revenue         float64 `json:"revenue" yaml:"revenue"`
	Cash            float64 `json:"cash" yaml:"cash"`
	EmissionsS1S2   float64 `json:"emissions_s1s2" yaml:"emissions_s1s2"`
	EmissionsS3     float64 `json:"emissions_s3" yaml:"emissions_s3"`
}

// GroupValue returns the fundamental field addressed by a grouping key.
func (f Fundamentals) GroupValue(key string) (string, bool) {
	switch key {
	case "sector":
		return f.Sector, true
	case "region":
		return f.Region, true
	}
	return "", false
}

// GroupingKeys lists the supported grouping key names.
func GroupingKeys() []string { return []string{"sector", "region"} }

// Target is a single emissions-reduction target set by a company.
type Target struct {
	ID           string           `json:"target_id" yaml:"target_id"`
	CompanyID    string           `json:"company_id" yaml:"company_id"`
	Coverage     []BaseScope      `json:"scope_coverage" yaml:"scope_coverage"`
	BaseYear     int              `json:"base_year" yaml:"base_year"`
	TargetYear   int              `json:"target_year" yaml:"target_year"`
	ReductionPct float64          `json:"reduction_pct" yaml:"reduction_pct"` // 0-100
	Status       ValidationStatus `json:"status" yaml:"status"`
	Ambition     string           `json:"ambition,omitempty" yaml:"ambition,omitempty"`
}

// Covers reports whether the target's scope coverage includes every
// component of the requested scope. Partial coverage of a composite scope
// does not qualify.
func (t Target) Covers(scope Scope) bool {
	for _, want := range scope.Components() {
		found := false
		for _, have := range t.Coverage {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Horizon returns the number of years between base year and target year.
func (t Target) Horizon() int { return t.TargetYear - t.BaseYear }

// Validated reports whether the target passed validation.
func (t Target) Validated() bool { return t.Status == StatusValidated }
