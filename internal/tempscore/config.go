// Package tempscore derives implied-temperature scores for portfolio
// companies from their emissions-reduction targets and sector benchmarks.
package tempscore

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/tempscore-cli/internal/model"
)

// FallbackScores are the supported default temperatures for companies
// without a qualifying target.
var FallbackScores = []float64{3.2, 3.9, 4.5}

// DefaultFallbackScore is assigned when the config leaves the fallback
// unset.
const DefaultFallbackScore = 3.2

// Config selects what a scoring run computes. Validation failures are
// configuration errors: fatal, detected before any computation.
type Config struct {
	TimeFrames    []model.TimeFrame
	Scopes        []model.Scope
	FallbackScore float64
	ModelVariant  int
	Scenario      *Scenario
}

// Validate checks every enumerated field and reports the first offending
// field and value.
func (c Config) Validate() error {
	if len(c.TimeFrames) == 0 {
		return eris.Wrap(model.ErrConfiguration, "time_frames: empty")
	}
	for _, tf := range c.TimeFrames {
		if _, err := model.ParseTimeFrame(string(tf)); err != nil {
			return err
		}
	}

	if len(c.Scopes) == 0 {
		return eris.Wrap(model.ErrConfiguration, "scopes: empty")
	}
	for _, s := range c.Scopes {
		if _, err := model.ParseScope(string(s)); err != nil {
			return err
		}
	}

	ok := false
	for _, f := range FallbackScores {
		if c.FallbackScore == f {
			ok = true
			break
		}
	}
	if !ok {
		return eris.Wrapf(model.ErrConfiguration, "fallback_score: %.2f (want one of 3.2, 3.9, 4.5)", c.FallbackScore)
	}

	if c.ModelVariant < 1 || c.ModelVariant > 4 {
		return eris.Wrapf(model.ErrConfiguration, "model: %d (want 1-4)", c.ModelVariant)
	}

	return nil
}

// EffectiveFallback returns the fallback score after any scenario override.
func (c Config) EffectiveFallback() float64 {
	if c.Scenario != nil {
		return c.Scenario.fallbackScore(c.FallbackScore)
	}
	return c.FallbackScore
}
