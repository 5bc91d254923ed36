package tempscore

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tempscore-cli/internal/benchmark"
	"github.com/sells-group/tempscore-cli/internal/model"
	"github.com/sells-group/tempscore-cli/internal/provider"
)

func testConfig() Config {
	return Config{
		TimeFrames:    []model.TimeFrame{model.TimeFrameMid},
		Scopes:        []model.Scope{model.ScopeS1S2},
		FallbackScore: 3.2,
		ModelVariant:  4,
	}
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	bm, err := benchmark.Load(4)
	require.NoError(t, err)
	return New(bm)
}

func steelRow(id string, targets ...model.Target) provider.CompanyRow {
	return provider.CompanyRow{
		Position: model.Position{CompanyID: id, Investment: 1000},
		Fundamentals: model.Fundamentals{
			CompanyID:     id,
			CompanyName:   "Steel Co " + id,
			Sector:        "steel",
			Region:        "Europe",
			MarketCap:     100,
			EmissionsS1S2: 400,
			EmissionsS3:   600,
		},
		Targets:         targets,
		HasFundamentals: true,
	}
}

// midTarget is a 45% reduction over 2020-2035: 3%/year, which the model 4
// gdp_intensity curve maps to exactly 1.700 degrees.
func midTarget(id string, status model.ValidationStatus, coverage ...model.BaseScope) model.Target {
	return model.Target{
		ID:           id,
		Coverage:     coverage,
		BaseYear:     2020,
		TargetYear:   2035,
		ReductionPct: 45,
		Status:       status,
	}
}

func TestCalculateTargetDerivedScore(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	row := steelRow("A", midTarget("t1", model.StatusValidated, model.BaseS1, model.BaseS2))

	table, err := e.Calculate(context.Background(), []provider.CompanyRow{row}, testConfig())
	require.NoError(t, err)
	require.Len(t, table.Records, 1)

	rec := table.Records[0]
	assert.Equal(t, model.BasisTarget, rec.Basis)
	assert.InDelta(t, 1.700, rec.Temperature, 1e-9)
	assert.Equal(t, "t1", rec.TargetID)
	assert.True(t, rec.TargetValidated)
	assert.Empty(t, table.Warnings)
}

func TestCalculateFallbackWithoutTarget(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	row := steelRow("A")

	table, err := e.Calculate(context.Background(), []provider.CompanyRow{row}, testConfig())
	require.NoError(t, err)
	require.Len(t, table.Records, 1)

	rec := table.Records[0]
	assert.Equal(t, model.BasisFallback, rec.Basis)
	assert.InDelta(t, 3.2, rec.Temperature, 1e-12)
	assert.Empty(t, rec.TargetID)
}

func TestCalculateCartesianProduct(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	cfg := Config{
		TimeFrames:    []model.TimeFrame{model.TimeFrameShort, model.TimeFrameMid, model.TimeFrameLong},
		Scopes:        []model.Scope{model.ScopeS1S2, model.ScopeS3},
		FallbackScore: 3.9,
		ModelVariant:  4,
	}
	rows := []provider.CompanyRow{steelRow("A"), steelRow("B"), steelRow("C")}

	table, err := e.Calculate(context.Background(), rows, cfg)
	require.NoError(t, err)
	assert.Len(t, table.Records, 3*3*2)

	// Every combination appears exactly once, in portfolio order.
	seen := map[string]int{}
	for _, rec := range table.Records {
		seen[rec.CompanyID+"/"+string(rec.Scope)+"/"+string(rec.TimeFrame)]++
	}
	for combo, n := range seen {
		assert.Equal(t, 1, n, combo)
	}
	assert.Equal(t, "A", table.Records[0].CompanyID)
	assert.Equal(t, "C", table.Records[len(table.Records)-1].CompanyID)
}

func TestCalculateDeterministicAcrossRuns(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	rows := make([]provider.CompanyRow, 0, 20)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		rows = append(rows, steelRow(id, midTarget("t-"+id, model.StatusValidated, model.BaseS1, model.BaseS2)))
	}

	first, err := e.Calculate(context.Background(), rows, testConfig())
	require.NoError(t, err)
	second, err := e.Calculate(context.Background(), rows, testConfig())
	require.NoError(t, err)
	assert.Equal(t, first.Records, second.Records)
}

func TestCompositeScopeWithPartialCoverageFallsBack(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	cfg := testConfig()
	cfg.Scopes = []model.Scope{model.ScopeS1S2S3}

	// Only an S1+S2 target: the composite request must not blend partial
	// coverage into a partial score.
	row := steelRow("A", midTarget("t1", model.StatusValidated, model.BaseS1, model.BaseS2))

	table, err := e.Calculate(context.Background(), []provider.CompanyRow{row}, cfg)
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, model.BasisFallback, table.Records[0].Basis)
	assert.InDelta(t, 3.2, table.Records[0].Temperature, 1e-12)
}

func TestCompositeScopeBlendsSeparateTargets(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	cfg := testConfig()
	cfg.Scopes = []model.Scope{model.ScopeS1S2S3}

	s3Target := model.Target{
		ID:           "t3",
		Coverage:     []model.BaseScope{model.BaseS3},
		BaseYear:     2020,
		TargetYear:   2035,
		ReductionPct: 30, // 2%/year on kyoto_total: -0.550*2.0+3.450 = 2.350
		Status:       model.StatusValidated,
	}
	row := steelRow("A", midTarget("t12", model.StatusValidated, model.BaseS1, model.BaseS2), s3Target)

	table, err := e.Calculate(context.Background(), []provider.CompanyRow{row}, cfg)
	require.NoError(t, err)
	require.Len(t, table.Records, 1)

	// Emissions split 400/600: blend = (1.700*400 + 2.350*600) / 1000.
	rec := table.Records[0]
	assert.Equal(t, model.BasisTarget, rec.Basis)
	assert.InDelta(t, 2.090, rec.Temperature, 1e-9)
	assert.True(t, rec.TargetValidated)
}

func TestCompositeScopeIgnoresMinorS3Share(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	cfg := testConfig()
	cfg.Scopes = []model.Scope{model.ScopeS1S2S3}

	s3Target := model.Target{
		ID:           "t3",
		Coverage:     []model.BaseScope{model.BaseS3},
		BaseYear:     2020,
		TargetYear:   2035,
		ReductionPct: 30,
		Status:       model.StatusValidated,
	}
	row := steelRow("A", midTarget("t12", model.StatusValidated, model.BaseS1, model.BaseS2), s3Target)
	row.Fundamentals.EmissionsS1S2 = 700
	row.Fundamentals.EmissionsS3 = 300 // under the 40% threshold

	table, err := e.Calculate(context.Background(), []provider.CompanyRow{row}, cfg)
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.InDelta(t, 1.700, table.Records[0].Temperature, 1e-9)
}

func TestSelectTargetTieBreaks(t *testing.T) {
	t.Parallel()

	validated := midTarget("validated", model.StatusValidated, model.BaseS1, model.BaseS2)
	validated.ReductionPct = 30

	ambitious := midTarget("ambitious", model.StatusPending, model.BaseS1, model.BaseS2)
	ambitious.ReductionPct = 60

	// Validated wins over a more ambitious unvalidated target.
	got, ok := selectTarget([]model.Target{ambitious, validated}, model.ScopeS1S2, model.TimeFrameMid)
	require.True(t, ok)
	assert.Equal(t, "validated", got.ID)

	// Among equals on status, the larger reduction wins.
	modest := midTarget("modest", model.StatusPending, model.BaseS1, model.BaseS2)
	modest.ReductionPct = 20
	got, ok = selectTarget([]model.Target{modest, ambitious}, model.ScopeS1S2, model.TimeFrameMid)
	require.True(t, ok)
	assert.Equal(t, "ambitious", got.ID)

	// Among equals on status and ambition, the most recent target year wins.
	older := midTarget("older", model.StatusPending, model.BaseS1, model.BaseS2)
	older.ReductionPct = 60
	older.TargetYear = 2032
	got, ok = selectTarget([]model.Target{older, ambitious}, model.ScopeS1S2, model.TimeFrameMid)
	require.True(t, ok)
	assert.Equal(t, "ambitious", got.ID)

	// Targets outside the time-frame window never qualify.
	_, ok = selectTarget([]model.Target{ambitious}, model.ScopeS1S2, model.TimeFrameShort)
	assert.False(t, ok)
}

func TestMissingBenchmarkCurveDowngradesToFallback(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	row := steelRow("A", midTarget("t1", model.StatusValidated, model.BaseS1, model.BaseS2))
	row.Fundamentals.Sector = "agriculture"

	table, err := e.Calculate(context.Background(), []provider.CompanyRow{row}, testConfig())
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, model.BasisFallback, table.Records[0].Basis)

	require.Len(t, table.Warnings, 1)
	assert.Equal(t, model.WarnMissingBenchmark, table.Warnings[0].Code)
	assert.Equal(t, "A", table.Warnings[0].CompanyID)
}

func TestClippedScoreIsReported(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	target := midTarget("t1", model.StatusValidated, model.BaseS1, model.BaseS2)
	target.ReductionPct = 95 // extreme enough to clip at the 1.0 floor
	row := steelRow("A", target)

	table, err := e.Calculate(context.Background(), []provider.CompanyRow{row}, testConfig())
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.InDelta(t, benchmark.MinTemperature, table.Records[0].Temperature, 1e-12)
	assert.Equal(t, model.BasisTarget, table.Records[0].Basis)

	require.Len(t, table.Warnings, 1)
	assert.Equal(t, model.WarnClippedScore, table.Warnings[0].Code)
}

func TestMissingFundamentalsScoresFallback(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	row := provider.CompanyRow{Position: model.Position{CompanyID: "ghost"}}

	table, err := e.Calculate(context.Background(), []provider.CompanyRow{row}, testConfig())
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, model.BasisFallback, table.Records[0].Basis)
}

func TestCalculateRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	e := testEngine(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty time frames", func(c *Config) { c.TimeFrames = nil }},
		{"unknown time frame", func(c *Config) { c.TimeFrames = []model.TimeFrame{"quarter"} }},
		{"empty scopes", func(c *Config) { c.Scopes = nil }},
		{"unknown scope", func(c *Config) { c.Scopes = []model.Scope{"s4"} }},
		{"unsupported fallback", func(c *Config) { c.FallbackScore = 2.5 }},
		{"model variant too low", func(c *Config) { c.ModelVariant = 0 }},
		{"model variant too high", func(c *Config) { c.ModelVariant = 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := e.Calculate(context.Background(), nil, cfg)
			require.Error(t, err)
			assert.True(t, eris.Is(err, model.ErrConfiguration))
		})
	}

	// A config variant that disagrees with the loaded benchmark is also fatal.
	cfg := testConfig()
	cfg.ModelVariant = 2
	_, err := e.Calculate(context.Background(), nil, cfg)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrConfiguration))
}

func TestScenarioTargetsRaisesFallback(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	cfg := testConfig()
	cfg.Scenario = &Scenario{Type: ScenarioTargets}

	table, err := e.Calculate(context.Background(), []provider.CompanyRow{steelRow("A")}, cfg)
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.InDelta(t, 2.0, table.Records[0].Temperature, 1e-12)
}

func TestScenarioApprovedTargetsCapsScores(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	cfg := testConfig()
	cfg.Scenario = &Scenario{Type: ScenarioApprovedTargets, Engagement: EngagementSetValidatedTargets}

	// 15% over 15 years is 1%/year: -0.600*1.0+3.500 = 2.900, above the cap.
	target := midTarget("t1", model.StatusValidated, model.BaseS1, model.BaseS2)
	target.ReductionPct = 15

	table, err := e.Calculate(context.Background(), []provider.CompanyRow{steelRow("A", target)}, cfg)
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.InDelta(t, 1.75, table.Records[0].Temperature, 1e-12)
}

func TestScenarioEngagementCapsOnlyEngagedCompanies(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	cfg := testConfig()
	cfg.Scenario = &Scenario{
		Type:       ScenarioEngagement,
		Engagement: EngagementSetTargets,
		CompanyIDs: []string{"A"},
	}

	target := midTarget("t", model.StatusValidated, model.BaseS1, model.BaseS2)
	target.ReductionPct = 15 // scores 2.900 unmodified

	rowA := steelRow("A", target)
	rowB := steelRow("B", target)

	table, err := e.Calculate(context.Background(), []provider.CompanyRow{rowA, rowB}, cfg)
	require.NoError(t, err)
	require.Len(t, table.Records, 2)
	assert.InDelta(t, 2.0, table.Records[0].Temperature, 1e-12)
	assert.InDelta(t, 2.900, table.Records[1].Temperature, 1e-9)
}
