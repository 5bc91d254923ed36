package model

// ScoreBasis tags how a temperature score was produced.
type ScoreBasis string

const (
	// BasisTarget means the score was derived from a qualifying target.
	BasisTarget ScoreBasis = "target"
	// BasisFallback means the configured default score was assigned.
	BasisFallback ScoreBasis = "fallback"
)

// ScoreRecord is the scored output for one (company, scope, time frame)
// combination.
type ScoreRecord struct {
	CompanyID   string     `json:"company_id"`
	CompanyName string     `json:"company_name"`
	Scope       Scope      `json:"scope"`
	TimeFrame   TimeFrame  `json:"time_frame"`
	Temperature float64    `json:"temperature_score"`
	Basis       ScoreBasis `json:"score_basis"`

	// TargetID and TargetValidated identify the target the score was
	// derived from, when Basis is BasisTarget. Blended composite scores
	// carry the S1S2 side's target.
	TargetID        string `json:"target_id,omitempty"`
	TargetValidated bool   `json:"target_validated,omitempty"`
}

// ScoredTable is the full scored output for a run, plus the data-quality
// warnings accumulated while producing it.
type ScoredTable struct {
	Records  []ScoreRecord `json:"records"`
	Warnings []Warning     `json:"warnings,omitempty"`
}

// ByCompany returns the record for a (company, scope, time frame)
// combination, or nil when absent.
func (t *ScoredTable) ByCompany(companyID string, scope Scope, tf TimeFrame) *ScoreRecord {
	for i := range t.Records {
		r := &t.Records[i]
		if r.CompanyID == companyID && r.Scope == scope && r.TimeFrame == tf {
			return r
		}
	}
	return nil
}
