package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tempscore-cli/internal/aggregate"
	"github.com/sells-group/tempscore-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testParams() RunParams {
	return RunParams{
		PortfolioPath: "portfolio.csv",
		Source:        "csv",
		Method:        model.WATS,
		TimeFrames:    []model.TimeFrame{model.TimeFrameMid},
		Scopes:        []model.Scope{model.ScopeS1S2},
		ModelVariant:  4,
		FallbackScore: 3.2,
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testParams())
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	result := &RunResult{
		Aggregation: &aggregate.Result{Method: model.WATS},
		Companies:   12,
	}
	require.NoError(t, s.CompleteRun(ctx, run.ID, result))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, got.Status)
	assert.Equal(t, model.WATS, got.Params.Method)
	require.NotNil(t, got.Result)
	assert.Equal(t, 12, got.Result.Companies)
	assert.Equal(t, model.WATS, got.Result.Aggregation.Method)
}

func TestSQLiteStore_FailRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testParams())
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, "provider unavailable"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "provider unavailable", got.Error)
	assert.Nil(t, got.Result)
}

func TestSQLiteStore_GetRun_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetRun(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteStore_CompleteRun_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	err := s.CompleteRun(context.Background(), "nonexistent", &RunResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	watsParams := testParams()
	aotsParams := testParams()
	aotsParams.Method = model.AOTS

	r1, err := s.CreateRun(ctx, watsParams)
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, r1.ID, &RunResult{}))

	r2, err := s.CreateRun(ctx, aotsParams)
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, r2.ID, "boom"))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := s.ListRuns(ctx, RunFilter{Status: RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, r2.ID, failed[0].ID)

	byMethod, err := s.ListRuns(ctx, RunFilter{Method: model.AOTS})
	require.NoError(t, err)
	require.Len(t, byMethod, 1)
	assert.Equal(t, r2.ID, byMethod[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
