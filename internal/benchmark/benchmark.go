// Package benchmark holds the sector/scope regression trajectories used to
// translate a company's reduction target into an implied temperature.
// The data is read-only reference material; a Model is immutable after load.
package benchmark

import (
	_ "embed"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tempscore-cli/internal/model"
)

// Temperature scores outside this range represent data-quality failures
// and are clipped, never propagated.
const (
	MinTemperature = 1.0
	MaxTemperature = 4.5
)

// ErrNoCurve marks a missing (sector, scope) benchmark curve. The scoring
// engine downgrades it to a data-quality warning plus the fallback score.
var ErrNoCurve = eris.New("benchmark: no curve for sector/scope")

//go:embed curves.yaml
var defaultCurves []byte

// Point is one regression sample on a benchmark curve: at the given
// horizon (years from base year), implied temperature is
// param * annualReductionRate * 100 + intercept.
type Point struct {
	Horizon   int     `yaml:"horizon"`
	Param     float64 `yaml:"param"`
	Intercept float64 `yaml:"intercept"`
}

type curveKey struct {
	sector string
	scope  model.Scope
}

// Model is a loaded benchmark for one regression variant. Lookups are
// pure; the model carries no mutable state.
type Model struct {
	variant int
	curves  map[curveKey][]Point
}

type fileSchema struct {
	Sectors []struct {
		Sector   string      `yaml:"sector"`
		Scope    model.Scope `yaml:"scope"`
		Variable string      `yaml:"variable"`
	} `yaml:"sectors"`
	Regressions []struct {
		Model     int     `yaml:"model"`
		Variable  string  `yaml:"variable"`
		Horizon   int     `yaml:"horizon"`
		Param     float64 `yaml:"param"`
		Intercept float64 `yaml:"intercept"`
	} `yaml:"regressions"`
}

// Load builds a Model for the given regression variant (1-4) from the
// embedded default curve set.
func Load(variant int) (*Model, error) {
	return parse(defaultCurves, variant)
}

// LoadFile builds a Model for the given regression variant from a YAML
// curve file, for callers that ship their own benchmark data.
func LoadFile(path string, variant int) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "benchmark: read %s", path)
	}
	return parse(raw, variant)
}

func parse(raw []byte, variant int) (*Model, error) {
	if variant < 1 || variant > 4 {
		return nil, eris.Wrapf(model.ErrConfiguration, "benchmark model variant: %d (want 1-4)", variant)
	}

	var f fileSchema
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrap(err, "benchmark: parse curves")
	}

	// Regression points per variable, for the requested variant only.
	byVariable := make(map[string][]Point)
	for _, r := range f.Regressions {
		if r.Model != variant {
			continue
		}
		byVariable[r.Variable] = append(byVariable[r.Variable], Point{
			Horizon:   r.Horizon,
			Param:     r.Param,
			Intercept: r.Intercept,
		})
	}
	for v, pts := range byVariable {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Horizon < pts[j].Horizon })
		byVariable[v] = pts
	}

	m := &Model{variant: variant, curves: make(map[curveKey][]Point, len(f.Sectors))}
	for _, s := range f.Sectors {
		pts, ok := byVariable[s.Variable]
		if !ok {
			return nil, eris.Errorf("benchmark: sector %s/%s references unknown variable %q", s.Sector, s.Scope, s.Variable)
		}
		m.curves[curveKey{sector: s.Sector, scope: s.Scope}] = pts
	}

	return m, nil
}

// Variant returns the regression variant the model was loaded for.
func (m *Model) Variant() int { return m.variant }

// HasCurve reports whether a curve exists for the sector and scope.
func (m *Model) HasCurve(sector string, scope model.Scope) bool {
	_, ok := m.curves[curveKey{sector: sector, scope: scope}]
	return ok
}

// Temperature translates an annual reduction rate (fraction of base-year
// emissions per year) into an implied temperature for the sector/scope
// curve, interpolating between horizon points when the target horizon
// falls between them. The clipped return reports whether the raw value
// fell outside [MinTemperature, MaxTemperature].
func (m *Model) Temperature(sector string, scope model.Scope, horizonYears int, annualRate float64) (score float64, clipped bool, err error) {
	pts, ok := m.curves[curveKey{sector: sector, scope: scope}]
	if !ok || len(pts) == 0 {
		return 0, false, eris.Wrapf(ErrNoCurve, "sector %q scope %s", sector, scope)
	}

	param, intercept := interpolate(pts, horizonYears)
	score = param*annualRate*100 + intercept

	switch {
	case score < MinTemperature:
		return MinTemperature, true, nil
	case score > MaxTemperature:
		return MaxTemperature, true, nil
	}
	return score, false, nil
}

// interpolate returns the regression parameters at the given horizon,
// linearly interpolated between the bracketing curve points. Horizons
// outside the sampled range take the nearest endpoint.
func interpolate(pts []Point, horizon int) (param, intercept float64) {
	first, last := pts[0], pts[len(pts)-1]
	if horizon <= first.Horizon {
		return first.Param, first.Intercept
	}
	if horizon >= last.Horizon {
		return last.Param, last.Intercept
	}
	for i := 1; i < len(pts); i++ {
		lo, hi := pts[i-1], pts[i]
		if horizon > hi.Horizon {
			continue
		}
		frac := float64(horizon-lo.Horizon) / float64(hi.Horizon-lo.Horizon)
		return lo.Param + frac*(hi.Param-lo.Param), lo.Intercept + frac*(hi.Intercept-lo.Intercept)
	}
	return last.Param, last.Intercept
}
