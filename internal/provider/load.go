package provider

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/tempscore-cli/internal/db"
	"github.com/sells-group/tempscore-cli/internal/model"
)

var fundamentalsColumns = []string{
	"company_id", "company_name", "sector", "region", "market_cap",
	"enterprise_value", "ownership_pct", "revenue", "cash",
	"emissions_s1s2", "emissions_s3",
}

var targetsColumns = []string{
	"target_id", "company_id", "scope_coverage", "base_year", "target_year",
	"reduction_pct", "status", "ambition",
}

// LoadIntoPostgres imports a provider dataset into the database the
// PostgresProvider reads from. Upserts keyed on the natural IDs make
// re-imports idempotent.
func LoadIntoPostgres(ctx context.Context, pool db.Pool, data *Data) (int64, error) {
	var total int64

	fundamentalRows := make([][]any, 0, len(data.Fundamentals))
	for _, f := range data.Fundamentals {
		fundamentalRows = append(fundamentalRows, []any{
			f.CompanyID, f.CompanyName, f.Sector, f.Region, f.MarketCap,
			f.EnterpriseValue, f.OwnershipPct, f.Revenue, f.Cash,
			f.EmissionsS1S2, f.EmissionsS3,
		})
	}
	n, err := db.Upsert(ctx, pool, db.UpsertConfig{
		Table:        "fundamentals",
		Columns:      fundamentalsColumns,
		ConflictKeys: []string{"company_id"},
	}, fundamentalRows)
	if err != nil {
		return total, err
	}
	total += n

	targetRows := make([][]any, 0)
	for _, targets := range data.Targets {
		for _, t := range targets {
			targetRows = append(targetRows, []any{
				t.ID, t.CompanyID, formatCoverage(t.Coverage), t.BaseYear,
				t.TargetYear, t.ReductionPct, string(t.Status), t.Ambition,
			})
		}
	}
	n, err = db.Upsert(ctx, pool, db.UpsertConfig{
		Table:        "targets",
		Columns:      targetsColumns,
		ConflictKeys: []string{"target_id"},
	}, targetRows)
	if err != nil {
		return total, err
	}
	total += n

	zap.L().Info("provider: dataset loaded",
		zap.Int("fundamentals", len(fundamentalRows)),
		zap.Int("targets", len(targetRows)),
	)

	return total, nil
}

// BulkLoadIntoPostgres imports via the COPY protocol into empty tables.
// Faster than upserts for initial loads, but not idempotent.
func BulkLoadIntoPostgres(ctx context.Context, pool db.Pool, data *Data) (int64, error) {
	fundamentalRows := make([][]any, 0, len(data.Fundamentals))
	for _, f := range data.Fundamentals {
		fundamentalRows = append(fundamentalRows, []any{
			f.CompanyID, f.CompanyName, f.Sector, f.Region, f.MarketCap,
			f.EnterpriseValue, f.OwnershipPct, f.Revenue, f.Cash,
			f.EmissionsS1S2, f.EmissionsS3,
		})
	}
	n1, err := db.CopyFrom(ctx, pool, "fundamentals", fundamentalsColumns, fundamentalRows)
	if err != nil {
		return 0, err
	}

	targetRows := make([][]any, 0)
	for _, targets := range data.Targets {
		for _, t := range targets {
			targetRows = append(targetRows, []any{
				t.ID, t.CompanyID, formatCoverage(t.Coverage), t.BaseYear,
				t.TargetYear, t.ReductionPct, string(t.Status), t.Ambition,
			})
		}
	}
	n2, err := db.CopyFrom(ctx, pool, "targets", targetsColumns, targetRows)
	if err != nil {
		return n1, err
	}

	return n1 + n2, nil
}

func formatCoverage(coverage []model.BaseScope) string {
	parts := make([]string, len(coverage))
	for i, b := range coverage {
		parts[i] = string(b)
	}
	return strings.Join(parts, "+")
}
