package aggregate

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tempscore-cli/internal/model"
)

// WeightTolerance is the floating tolerance for normalized weights
// summing to 1 within a partition.
const WeightTolerance = 1e-9

// Options selects the weighting method and the grouping keys for a run.
type Options struct {
	Method   model.AggregationMethod
	Grouping []string
}

// Contribution is one company's share of a partition's weighted score.
type Contribution struct {
	CompanyID    string  `json:"company_id"`
	CompanyName  string  `json:"company_name"`
	Temperature  float64 `json:"temperature_score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	RelativePct  float64 `json:"contribution_relative_pct"`
}

// GroupScore is the weighted result for one partition (the whole
// portfolio, or one group value within it).
type GroupScore struct {
	Score            float64        `json:"score"`
	Companies        int            `json:"companies"`
	TotalWeight      float64        `json:"total_weight"`
	FallbackSharePct float64        `json:"fallback_share_pct"`
	Contributions    []Contribution `json:"contributions"`
}

// PartitionResult holds the results for one (time frame, scope) pair. A
// partition with no eligible companies after exclusions is explicitly
// undefined, never zero.
type PartitionResult struct {
	TimeFrame model.TimeFrame `json:"time_frame"`
	Scope     model.Scope     `json:"scope"`

	Portfolio *GroupScore `json:"portfolio,omitempty"`
	Undefined bool        `json:"undefined,omitempty"`
	Reason    string      `json:"reason,omitempty"`

	// Groups maps grouping key -> group value -> result. A nil GroupScore
	// marks a group that became empty after exclusions.
	Groups map[string]map[string]*GroupScore `json:"groups,omitempty"`
}

// Result is the full aggregation output for one weighting method.
type Result struct {
	Method   model.AggregationMethod                              `json:"method"`
	Scores   map[model.TimeFrame]map[model.Scope]*PartitionResult `json:"scores"`
	Warnings []model.Warning                                      `json:"warnings,omitempty"`
}

// Partition returns the result for a (time frame, scope) pair, or nil.
func (r *Result) Partition(tf model.TimeFrame, scope model.Scope) *PartitionResult {
	byScope, ok := r.Scores[tf]
	if !ok {
		return nil
	}
	return byScope[scope]
}

// entry pairs a scored record with the fundamentals its weight comes from.
type entry struct {
	rec model.ScoreRecord
	fun model.Fundamentals
	ok  bool // fundamentals present
}

// Aggregate reduces a scored table into portfolio- and group-level
// weighted scores. Partitions are reduced concurrently into disjoint
// slots; within a partition companies are summed in ID order so repeated
// runs are bit-for-bit reproducible.
func Aggregate(ctx context.Context, table *model.ScoredTable, fundamentals map[string]model.Fundamentals, opts Options) (*Result, error) {
	if err := validateMethod(opts.Method); err != nil {
		return nil, err
	}
	for _, key := range opts.Grouping {
		known := false
		for _, k := range model.GroupingKeys() {
			if key == k {
				known = true
				break
			}
		}
		if !known {
			return nil, eris.Wrapf(model.ErrConfiguration, "grouping: unknown key %q", key)
		}
	}

	partitions := splitPartitions(table)

	results := make([]*PartitionResult, len(partitions))
	partWarnings := make([][]model.Warning, len(partitions))

	g, _ := errgroup.WithContext(ctx)
	for i := range partitions {
		g.Go(func() error {
			results[i], partWarnings[i] = reducePartition(partitions[i], fundamentals, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Method: opts.Method,
		Scores: make(map[model.TimeFrame]map[model.Scope]*PartitionResult),
	}
	for i, pr := range results {
		byScope, ok := res.Scores[pr.TimeFrame]
		if !ok {
			byScope = make(map[model.Scope]*PartitionResult)
			res.Scores[pr.TimeFrame] = byScope
		}
		byScope[pr.Scope] = pr
		res.Warnings = append(res.Warnings, partWarnings[i]...)
	}

	zap.L().Info("aggregate: reduction complete",
		zap.String("method", string(opts.Method)),
		zap.Int("partitions", len(partitions)),
		zap.Int("warnings", len(res.Warnings)),
	)

	return res, nil
}

// partition is the scored slice for one (time frame, scope) pair.
type partition struct {
	tf      model.TimeFrame
	scope   model.Scope
	records []model.ScoreRecord
}

// splitPartitions groups the table by (time frame, scope) in a fixed,
// sorted order so the concurrent reduction assembles reproducibly.
func splitPartitions(table *model.ScoredTable) []partition {
	type key struct {
		tf    model.TimeFrame
		scope model.Scope
	}
	byKey := make(map[key][]model.ScoreRecord)
	var order []key
	for _, rec := range table.Records {
		k := key{tf: rec.TimeFrame, scope: rec.Scope}
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], rec)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].tf != order[j].tf {
			return order[i].tf < order[j].tf
		}
		return order[i].scope < order[j].scope
	})

	parts := make([]partition, 0, len(order))
	for _, k := range order {
		parts = append(parts, partition{tf: k.tf, scope: k.scope, records: byKey[k]})
	}
	return parts
}

func reducePartition(p partition, fundamentals map[string]model.Fundamentals, opts Options) (*PartitionResult, []model.Warning) {
	var warnings []model.Warning

	entries := make([]entry, 0, len(p.records))
	for _, rec := range p.records {
		f, ok := fundamentals[rec.CompanyID]
		entries = append(entries, entry{rec: rec, fun: f, ok: ok})
	}

	pr := &PartitionResult{TimeFrame: p.tf, Scope: p.scope}

	portfolio, err := reduceGroup(entries, opts.Method, p.tf, p.scope, &warnings)
	if err != nil {
		// Computation failures are fatal for this partition only.
		pr.Undefined = true
		pr.Reason = err.Error()
		zap.L().Error("aggregate: partition failed",
			zap.String("time_frame", string(p.tf)),
			zap.String("scope", string(p.scope)),
			zap.Error(err),
		)
		return pr, warnings
	}
	if portfolio == nil {
		pr.Undefined = true
		pr.Reason = "no eligible companies after exclusions"
		return pr, warnings
	}
	pr.Portfolio = portfolio

	if len(opts.Grouping) > 0 {
		pr.Groups = make(map[string]map[string]*GroupScore, len(opts.Grouping))
		for _, groupKey := range opts.Grouping {
			pr.Groups[groupKey] = reduceGroups(entries, groupKey, opts.Method, p.tf, p.scope, &warnings)
		}
	}

	return pr, warnings
}

// reduceGroups partitions the entries by one grouping key and reduces
// each group. Entries without a value for the key fall under "unknown".
func reduceGroups(entries []entry, groupKey string, method model.AggregationMethod, tf model.TimeFrame, scope model.Scope, warnings *[]model.Warning) map[string]*GroupScore {
	byValue := make(map[string][]entry)
	for _, e := range entries {
		value, _ := e.fun.GroupValue(groupKey)
		if value == "" {
			value = "unknown"
		}
		byValue[value] = append(byValue[value], e)
	}

	out := make(map[string]*GroupScore, len(byValue))
	for value, group := range byValue {
		gs, err := reduceGroup(group, method, tf, scope, warnings)
		if err != nil {
			zap.L().Error("aggregate: group failed",
				zap.String("group", groupKey+"="+value),
				zap.Error(err),
			)
			out[value] = nil
			continue
		}
		// A nil score marks a group that is empty after exclusions; it is
		// reported as undefined rather than omitted.
		out[value] = gs
	}
	return out
}

// reduceGroup computes the weighted score for one set of entries. It
// returns (nil, nil) when no company survives the weight exclusions.
func reduceGroup(entries []entry, method model.AggregationMethod, tf model.TimeFrame, scope model.Scope, warnings *[]model.Warning) (*GroupScore, error) {
	type weighted struct {
		e     entry
		basis float64
	}

	eligible := make([]weighted, 0, len(entries))
	var totalBasis float64
	for _, e := range entries {
		if !e.ok {
			// Missing provider data was warned at join time; the company
			// simply cannot carry weight here.
			continue
		}
		basis, ok := WeightBasis(method, e.fun)
		if !ok {
			*warnings = append(*warnings, model.Warning{
				Code:      model.WarnMissingWeightField,
				CompanyID: e.rec.CompanyID,
				Scope:     scope,
				TimeFrame: tf,
				Message:   fmt.Sprintf("excluded from %s weights: weight basis is zero or missing", method),
			})
			continue
		}
		eligible = append(eligible, weighted{e: e, basis: basis})
		totalBasis += basis
	}

	if len(eligible) == 0 {
		return nil, nil
	}

	// Fixed summation order: sort by company ID.
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].e.rec.CompanyID < eligible[j].e.rec.CompanyID
	})

	var weightSum float64
	for _, w := range eligible {
		weightSum += w.basis / totalBasis
	}
	if math.Abs(weightSum-1) > WeightTolerance {
		return nil, eris.Errorf("aggregate: normalized weights sum to %.12f for %s/%s", weightSum, tf, scope)
	}

	gs := &GroupScore{
		Companies:     len(eligible),
		TotalWeight:   totalBasis,
		Contributions: make([]Contribution, 0, len(eligible)),
	}

	var fallbackShare float64
	for _, w := range eligible {
		weight := w.basis / totalBasis
		contrib := weight * w.e.rec.Temperature
		gs.Score += contrib
		if w.e.rec.Basis == model.BasisFallback {
			fallbackShare += weight
		}
		gs.Contributions = append(gs.Contributions, Contribution{
			CompanyID:    w.e.rec.CompanyID,
			CompanyName:  w.e.rec.CompanyName,
			Temperature:  w.e.rec.Temperature,
			Weight:       weight,
			Contribution: contrib,
		})
	}
	gs.FallbackSharePct = fallbackShare * 100

	for i := range gs.Contributions {
		if gs.Score != 0 {
			gs.Contributions[i].RelativePct = gs.Contributions[i].Contribution / gs.Score * 100
		}
	}
	sort.SliceStable(gs.Contributions, func(i, j int) bool {
		return gs.Contributions[i].Contribution > gs.Contributions[j].Contribution
	})

	return gs, nil
}
