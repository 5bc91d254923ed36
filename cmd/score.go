package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tempscore-cli/internal/aggregate"
	"github.com/sells-group/tempscore-cli/internal/benchmark"
	"github.com/sells-group/tempscore-cli/internal/coverage"
	"github.com/sells-group/tempscore-cli/internal/model"
	"github.com/sells-group/tempscore-cli/internal/provider"
	"github.com/sells-group/tempscore-cli/internal/store"
	"github.com/sells-group/tempscore-cli/internal/tempscore"
)

var (
	scorePortfolioPath string
	scoreMethod        string
	scoreGrouping      []string
	scoreTimeFrames    []string
	scoreScopes        []string
	scoreModelVariant  int
	scoreFallback      float64
	scoreScenario      int
	scoreEngagement    string
	scoreEngaged       []string
	scoreJSON          bool
	scoreSave          bool
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a portfolio and aggregate implied temperatures",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("score"); err != nil {
			return err
		}

		portfolio, err := loadPortfolio(ctx, scorePortfolioPath)
		if err != nil {
			return err
		}

		prov, cleanup, err := initProvider(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		params := scoreParams()
		params.PortfolioPath = scorePortfolioPath
		params.Source = cfg.Provider.Source

		result, err := executeScore(ctx, prov, portfolio, params)
		if err != nil {
			return err
		}

		if scoreSave {
			if err := saveRun(ctx, params, result); err != nil {
				return err
			}
		}

		if scoreJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		formatRunResult(os.Stdout, result)
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scorePortfolioPath, "portfolio", "", "portfolio file, .csv or .xlsx (required)")
	scoreCmd.Flags().StringVar(&scoreMethod, "method", "", "weighting method: WATS, TETS, MOTS, EOTS, ECOTS, AOTS, ROTS (default from config)")
	scoreCmd.Flags().StringSliceVar(&scoreGrouping, "group-by", nil, "grouping keys: sector, region")
	scoreCmd.Flags().StringSliceVar(&scoreTimeFrames, "time-frames", nil, "time frames to score: short, mid, long (default from config)")
	scoreCmd.Flags().StringSliceVar(&scoreScopes, "scopes", nil, "scopes to score: s1s2, s3, s1s2s3 (default from config)")
	scoreCmd.Flags().IntVar(&scoreModelVariant, "model", 0, "benchmark model variant 1-4 (default from config)")
	scoreCmd.Flags().Float64Var(&scoreFallback, "fallback", 0, "fallback score for companies without targets: 3.2, 3.9 or 4.5")
	scoreCmd.Flags().IntVar(&scoreScenario, "scenario", 0, "what-if scenario: 1=all set targets, 2=targets approved, 3=engagement")
	scoreCmd.Flags().StringVar(&scoreEngagement, "engagement", "set_targets", "engagement outcome for scenario 3: set_targets or set_validated_targets")
	scoreCmd.Flags().StringSliceVar(&scoreEngaged, "engage", nil, "company IDs engaged under scenario 3")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "emit the full result as JSON")
	scoreCmd.Flags().BoolVar(&scoreSave, "save", false, "persist the run to the history store")
	_ = scoreCmd.MarkFlagRequired("portfolio")
	rootCmd.AddCommand(scoreCmd)
}

// scoreParams merges config defaults with flag overrides.
func scoreParams() store.RunParams {
	params := store.RunParams{
		Method:        model.AggregationMethod(cfg.Score.Method),
		Grouping:      cfg.Score.Grouping,
		ModelVariant:  cfg.Score.ModelVariant,
		FallbackScore: cfg.Score.FallbackScore,
	}
	for _, tf := range cfg.Score.TimeFrames {
		params.TimeFrames = append(params.TimeFrames, model.TimeFrame(tf))
	}
	for _, s := range cfg.Score.Scopes {
		params.Scopes = append(params.Scopes, model.Scope(s))
	}

	if scoreMethod != "" {
		params.Method = model.AggregationMethod(scoreMethod)
	}
	if scoreGrouping != nil {
		params.Grouping = scoreGrouping
	}
	if scoreTimeFrames != nil {
		params.TimeFrames = nil
		for _, tf := range scoreTimeFrames {
			params.TimeFrames = append(params.TimeFrames, model.TimeFrame(tf))
		}
	}
	if scoreScopes != nil {
		params.Scopes = nil
		for _, s := range scoreScopes {
			params.Scopes = append(params.Scopes, model.Scope(s))
		}
	}
	if scoreModelVariant != 0 {
		params.ModelVariant = scoreModelVariant
	}
	if scoreFallback != 0 {
		params.FallbackScore = scoreFallback
	}
	return params
}

// buildScenario translates the scenario flags into an engine scenario.
func buildScenario() (*tempscore.Scenario, error) {
	if scoreScenario == 0 {
		return nil, nil
	}
	s := &tempscore.Scenario{CompanyIDs: scoreEngaged}
	switch scoreScenario {
	case 1:
		s.Type = tempscore.ScenarioTargets
	case 2:
		s.Type = tempscore.ScenarioApprovedTargets
	case 3:
		s.Type = tempscore.ScenarioEngagement
		if len(scoreEngaged) == 0 {
			return nil, eris.Wrap(model.ErrConfiguration, "scenario 3 needs --engage company IDs")
		}
	default:
		return nil, eris.Wrapf(model.ErrConfiguration, "scenario: %d (want 1-3)", scoreScenario)
	}
	switch scoreEngagement {
	case "set_targets":
		s.Engagement = tempscore.EngagementSetTargets
	case "set_validated_targets":
		s.Engagement = tempscore.EngagementSetValidatedTargets
	default:
		return nil, eris.Wrapf(model.ErrConfiguration, "engagement: unknown value %q", scoreEngagement)
	}
	return s, nil
}

// executeScore runs the full scoring pipeline: fetch and join provider
// data, score, aggregate, and measure coverage.
func executeScore(ctx context.Context, prov provider.Provider, portfolio []model.Position, params store.RunParams) (*store.RunResult, error) {
	data, err := fetchData(ctx, prov, portfolio)
	if err != nil {
		return nil, err
	}
	rows, joinWarnings := provider.Join(portfolio, data)

	var bm *benchmark.Model
	if cfg.Score.CurvesPath != "" {
		bm, err = benchmark.LoadFile(cfg.Score.CurvesPath, params.ModelVariant)
	} else {
		bm, err = benchmark.Load(params.ModelVariant)
	}
	if err != nil {
		return nil, err
	}

	scenario, err := buildScenario()
	if err != nil {
		return nil, err
	}

	engine := tempscore.New(bm)
	table, err := engine.Calculate(ctx, rows, tempscore.Config{
		TimeFrames:    params.TimeFrames,
		Scopes:        params.Scopes,
		FallbackScore: params.FallbackScore,
		ModelVariant:  params.ModelVariant,
		Scenario:      scenario,
	})
	if err != nil {
		return nil, err
	}

	agg, err := aggregate.Aggregate(ctx, table, data.Fundamentals, aggregate.Options{
		Method:   params.Method,
		Grouping: params.Grouping,
	})
	if err != nil {
		return nil, err
	}

	cov, err := coverage.Calculate(table, data.Fundamentals, params.Method)
	if err != nil {
		return nil, err
	}

	warnings := append(joinWarnings, table.Warnings...)
	warnings = append(warnings, agg.Warnings...)

	zap.L().Info("score: run complete",
		zap.Int("companies", len(portfolio)),
		zap.String("method", string(params.Method)),
		zap.Float64("coverage_pct", cov.CoveragePct),
		zap.Int("warnings", len(warnings)),
	)

	return &store.RunResult{
		Aggregation: agg,
		Coverage:    cov,
		Companies:   len(portfolio),
		Warnings:    warnings,
	}, nil
}

// saveRun persists a completed run to the history store.
func saveRun(ctx context.Context, params store.RunParams, result *store.RunResult) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	run, err := st.CreateRun(ctx, params)
	if err != nil {
		return err
	}
	if err := st.CompleteRun(ctx, run.ID, result); err != nil {
		return err
	}
	zap.L().Info("score: run saved", zap.String("run_id", run.ID))
	return nil
}
