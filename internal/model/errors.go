package model

import "github.com/rotisserie/eris"

// ErrConfiguration marks invalid or unsupported configuration values.
// Configuration errors are fatal and abort a run before any computation;
// callers detect them with eris.Is.
var ErrConfiguration = eris.New("invalid configuration")

// WarningCode classifies a non-fatal data-quality problem.
type WarningCode string

const (
	// WarnMissingBenchmark means no benchmark curve exists for the
	// company's sector and the requested scope.
	WarnMissingBenchmark WarningCode = "missing_benchmark"
	// WarnMissingProviderData means a portfolio company is absent from
	// the provider's fundamental data.
	WarnMissingProviderData WarningCode = "missing_provider_data"
	// WarnMissingWeightField means the fundamental field required by the
	// chosen weighting method is zero or absent.
	WarnMissingWeightField WarningCode = "missing_weight_field"
	// WarnClippedScore means a computed temperature fell outside the
	// plausible range and was clipped.
	WarnClippedScore WarningCode = "clipped_score"
	// WarnDegenerateTarget means a target could not be evaluated (for
	// example, base year equal to target year).
	WarnDegenerateTarget WarningCode = "degenerate_target"
)

// Warning is a non-fatal data-quality problem detected during a run.
// Warnings are accumulated and returned alongside results, never dropped.
type Warning struct {
	Code      WarningCode `json:"code"`
	CompanyID string      `json:"company_id,omitempty"`
	Scope     Scope       `json:"scope,omitempty"`
	TimeFrame TimeFrame   `json:"time_frame,omitempty"`
	Message   string      `json:"message"`
}
