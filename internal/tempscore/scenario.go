package tempscore

import "github.com/sells-group/tempscore-cli/internal/model"

// ScenarioType selects the engagement action a portfolio holder models to
// improve its temperature score.
type ScenarioType int

const (
	// ScenarioTargets assumes every company sets a target: the fallback
	// score drops to 2.0 degrees.
	ScenarioTargets ScenarioType = iota + 1
	// ScenarioApprovedTargets assumes in-flight targets get validated:
	// target-based scores are capped at 1.75 degrees.
	ScenarioApprovedTargets
	// ScenarioEngagement caps the scores of an explicit engagement list.
	ScenarioEngagement
)

// EngagementType defines how engaged companies are assumed to respond.
type EngagementType int

const (
	// EngagementSetTargets caps engaged companies at 2.0 degrees.
	EngagementSetTargets EngagementType = iota
	// EngagementSetValidatedTargets caps engaged companies at 1.75 degrees.
	EngagementSetValidatedTargets
)

// Scenario adjusts scores for a hypothetical engagement outcome.
type Scenario struct {
	Type       ScenarioType
	Engagement EngagementType

	// CompanyIDs lists the engaged companies for ScenarioEngagement.
	CompanyIDs []string
}

func (s *Scenario) scoreCap() float64 {
	if s.Engagement == EngagementSetTargets {
		return 2.0
	}
	return 1.75
}

func (s *Scenario) fallbackScore(base float64) float64 {
	if s.Type == ScenarioTargets {
		return 2.0
	}
	return base
}

func (s *Scenario) engaged(companyID string) bool {
	for _, id := range s.CompanyIDs {
		if id == companyID {
			return true
		}
	}
	return false
}

// apply caps a scored record according to the scenario. Only target-based
// scores are capped; fallback scores are handled via the fallback override.
func (s *Scenario) apply(rec *model.ScoreRecord) {
	if s == nil || rec.Basis != model.BasisTarget {
		return
	}
	switch s.Type {
	case ScenarioApprovedTargets:
		if cap := s.scoreCap(); rec.Temperature > cap {
			rec.Temperature = cap
		}
	case ScenarioEngagement:
		if !s.engaged(rec.CompanyID) {
			return
		}
		if cap := s.scoreCap(); rec.Temperature > cap {
			rec.Temperature = cap
		}
	}
}
