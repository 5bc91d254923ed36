// Package store persists scoring run history: the parameters a run was
// invoked with and the aggregated results it produced, in SQLite for
// local use or Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/sells-group/tempscore-cli/internal/aggregate"
	"github.com/sells-group/tempscore-cli/internal/coverage"
	"github.com/sells-group/tempscore-cli/internal/model"
)

// RunStatus is the lifecycle state of a scoring run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams records how a scoring run was invoked.
type RunParams struct {
	PortfolioPath string                  `json:"portfolio_path"`
	Source        string                  `json:"source"` // csv, xlsx or postgres
	Method        model.AggregationMethod `json:"method"`
	Grouping      []string                `json:"grouping,omitempty"`
	TimeFrames    []model.TimeFrame       `json:"time_frames"`
	Scopes        []model.Scope           `json:"scopes"`
	ModelVariant  int                     `json:"model_variant"`
	FallbackScore float64                 `json:"fallback_score"`
}

// RunResult holds the outputs of a completed scoring run.
type RunResult struct {
	Aggregation *aggregate.Result `json:"aggregation"`
	Coverage    *coverage.Result  `json:"coverage"`
	Companies   int               `json:"companies"`
	Warnings    []model.Warning   `json:"warnings,omitempty"`
}

// Run is one persisted scoring run.
type Run struct {
	ID        string     `json:"id"`
	Params    RunParams  `json:"params"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus               `json:"status,omitempty"`
	Method model.AggregationMethod `json:"method,omitempty"`
	Limit  int                     `json:"limit,omitempty"`
	Offset int                     `json:"offset,omitempty"`
}

// Store defines the persistence interface for scoring run history.
type Store interface {
	CreateRun(ctx context.Context, params RunParams) (*Run, error)
	CompleteRun(ctx context.Context, runID string, result *RunResult) error
	FailRun(ctx context.Context, runID string, message string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
