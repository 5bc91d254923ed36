package tempscore

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tempscore-cli/internal/benchmark"
	"github.com/sells-group/tempscore-cli/internal/model"
	"github.com/sells-group/tempscore-cli/internal/provider"
)

// Engine scores portfolio companies against a loaded benchmark model.
type Engine struct {
	bm *benchmark.Model
}

// New creates an Engine for the given benchmark model. The model variant
// is threaded through explicitly so concurrent runs with different
// variants cannot cross-contaminate.
func New(bm *benchmark.Model) *Engine {
	return &Engine{bm: bm}
}

// Calculate produces one ScoreRecord per company x requested scope x
// requested time frame. Inputs are immutable; per-company work runs in
// parallel, each goroutine writing to its own slot, and the output is
// assembled in portfolio order so repeated runs are reproducible.
func (e *Engine) Calculate(ctx context.Context, rows []provider.CompanyRow, cfg Config) (*model.ScoredTable, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ModelVariant != e.bm.Variant() {
		return nil, eris.Wrapf(model.ErrConfiguration,
			"model: %d does not match loaded benchmark variant %d", cfg.ModelVariant, e.bm.Variant())
	}

	perCompany := make([][]model.ScoreRecord, len(rows))
	perWarnings := make([][]model.Warning, len(rows))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range rows {
		g.Go(func() error {
			perCompany[i], perWarnings[i] = e.scoreCompany(rows[i], cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := &model.ScoredTable{
		Records: make([]model.ScoreRecord, 0, len(rows)*len(cfg.TimeFrames)*len(cfg.Scopes)),
	}
	for i := range rows {
		table.Records = append(table.Records, perCompany[i]...)
		table.Warnings = append(table.Warnings, perWarnings[i]...)
	}

	zap.L().Info("tempscore: calculation complete",
		zap.Int("companies", len(rows)),
		zap.Int("records", len(table.Records)),
		zap.Int("warnings", len(table.Warnings)),
	)

	return table, nil
}

// scoreCompany evaluates every requested (time frame, scope) combination
// for one portfolio company.
func (e *Engine) scoreCompany(row provider.CompanyRow, cfg Config) ([]model.ScoreRecord, []model.Warning) {
	recs := make([]model.ScoreRecord, 0, len(cfg.TimeFrames)*len(cfg.Scopes))
	var warns []model.Warning

	for _, tf := range cfg.TimeFrames {
		for _, scope := range cfg.Scopes {
			rec := e.scoreOne(row, scope, tf, cfg, &warns)
			cfg.Scenario.apply(&rec)
			recs = append(recs, rec)
		}
	}
	return recs, warns
}

func (e *Engine) scoreOne(row provider.CompanyRow, scope model.Scope, tf model.TimeFrame, cfg Config, warns *[]model.Warning) model.ScoreRecord {
	if !row.HasFundamentals {
		// The join step already reported the missing provider data.
		return e.fallbackRecord(row, scope, tf, cfg)
	}

	if target, ok := selectTarget(row.Targets, scope, tf); ok {
		return e.scoreTarget(row, target, scope, scope, tf, cfg, warns)
	}

	// A composite request with no covering target may still be scored by
	// blending separate S1+S2 and S3 targets, weighted by reported
	// emissions. Partial coverage alone never blends: without both sides
	// the company falls back wholesale.
	if scope == model.ScopeS1S2S3 {
		if rec, ok := e.blendComposite(row, tf, cfg, warns); ok {
			return rec
		}
	}

	return e.fallbackRecord(row, scope, tf, cfg)
}

// scoreTarget scores one target against the benchmark curve for
// curveScope, recording the result under recordScope.
func (e *Engine) scoreTarget(row provider.CompanyRow, target model.Target, curveScope, recordScope model.Scope, tf model.TimeFrame, cfg Config, warns *[]model.Warning) model.ScoreRecord {
	horizon := target.Horizon()
	annualRate := target.ReductionPct / 100 / float64(horizon)

	score, clipped, err := e.bm.Temperature(row.Fundamentals.Sector, curveScope, horizon, annualRate)
	if err != nil {
		*warns = append(*warns, model.Warning{
			Code:      model.WarnMissingBenchmark,
			CompanyID: row.Position.CompanyID,
			Scope:     recordScope,
			TimeFrame: tf,
			Message:   fmt.Sprintf("no benchmark curve for sector %q, scope %s", row.Fundamentals.Sector, curveScope),
		})
		return e.fallbackRecord(row, recordScope, tf, cfg)
	}
	if clipped {
		*warns = append(*warns, model.Warning{
			Code:      model.WarnClippedScore,
			CompanyID: row.Position.CompanyID,
			Scope:     recordScope,
			TimeFrame: tf,
			Message:   fmt.Sprintf("implied temperature clipped to %.2f for target %s", score, target.ID),
		})
		zap.L().Warn("tempscore: clipped implausible score",
			zap.String("company_id", row.Position.CompanyID),
			zap.String("target_id", target.ID),
			zap.Float64("clipped_to", score),
		)
	}

	return model.ScoreRecord{
		CompanyID:       row.Position.CompanyID,
		CompanyName:     row.Fundamentals.CompanyName,
		Scope:           recordScope,
		TimeFrame:       tf,
		Temperature:     score,
		Basis:           model.BasisTarget,
		TargetID:        target.ID,
		TargetValidated: target.Validated(),
	}
}

// blendComposite combines separate S1+S2 and S3 target scores into an
// S1S2S3 score, weighted by the company's reported emissions. When the S3
// emissions share is under 40% the S1+S2 score stands alone.
func (e *Engine) blendComposite(row provider.CompanyRow, tf model.TimeFrame, cfg Config, warns *[]model.Warning) (model.ScoreRecord, bool) {
	t12, ok12 := selectTarget(row.Targets, model.ScopeS1S2, tf)
	t3, ok3 := selectTarget(row.Targets, model.ScopeS3, tf)
	if !ok12 || !ok3 {
		return model.ScoreRecord{}, false
	}

	r12 := e.scoreTarget(row, t12, model.ScopeS1S2, model.ScopeS1S2S3, tf, cfg, warns)
	r3 := e.scoreTarget(row, t3, model.ScopeS3, model.ScopeS1S2S3, tf, cfg, warns)
	if r12.Basis != model.BasisTarget || r3.Basis != model.BasisTarget {
		return model.ScoreRecord{}, false
	}

	e12, e3 := row.Fundamentals.EmissionsS1S2, row.Fundamentals.EmissionsS3
	total := e12 + e3
	if total <= 0 {
		*warns = append(*warns, model.Warning{
			Code:      model.WarnDegenerateTarget,
			CompanyID: row.Position.CompanyID,
			Scope:     model.ScopeS1S2S3,
			TimeFrame: tf,
			Message:   "cannot blend S1S2 and S3 scores: total reported emissions are zero",
		})
		return model.ScoreRecord{}, false
	}

	if e3/total < 0.4 {
		return r12, true
	}

	r12.Temperature = (r12.Temperature*e12 + r3.Temperature*e3) / total
	r12.TargetValidated = t12.Validated() && t3.Validated()
	return r12, true
}

func (e *Engine) fallbackRecord(row provider.CompanyRow, scope model.Scope, tf model.TimeFrame, cfg Config) model.ScoreRecord {
	return model.ScoreRecord{
		CompanyID:   row.Position.CompanyID,
		CompanyName: row.Fundamentals.CompanyName,
		Scope:       scope,
		TimeFrame:   tf,
		Temperature: cfg.EffectiveFallback(),
		Basis:       model.BasisFallback,
	}
}

// selectTarget picks the most relevant target for a (scope, time frame)
// request: coverage must include every component of the scope and the
// horizon must fall in the time frame's window. Ties break on validated
// status, then larger reduction, then most recent target year, then ID.
func selectTarget(targets []model.Target, scope model.Scope, tf model.TimeFrame) (model.Target, bool) {
	var candidates []model.Target
	for _, t := range targets {
		if t.Covers(scope) && tf.Contains(t.Horizon()) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return model.Target{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Validated() != b.Validated() {
			return a.Validated()
		}
		if a.ReductionPct != b.ReductionPct {
			return a.ReductionPct > b.ReductionPct
		}
		if a.TargetYear != b.TargetYear {
			return a.TargetYear > b.TargetYear
		}
		return a.ID < b.ID
	})
	return candidates[0], true
}
