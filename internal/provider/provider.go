// Package provider loads portfolio and company data from external sources
// (CSV, XLSX, Postgres) and joins them into the immutable table the scoring
// engine consumes. The scoring core never performs I/O; everything here is
// materialized before a run starts.
package provider

import (
	"context"

	"github.com/sells-group/tempscore-cli/internal/model"
)

// Data is the full provider payload for a set of companies.
type Data struct {
	Fundamentals map[string]model.Fundamentals
	Targets      map[string][]model.Target
}

// Provider supplies fundamental and target data for company IDs.
type Provider interface {
	Fundamentals(ctx context.Context, companyIDs []string) (map[string]model.Fundamentals, error)
	Targets(ctx context.Context, companyIDs []string) (map[string][]model.Target, error)
}

// CompanyRow is one pre-joined portfolio company: position, fundamentals
// and targets in a single immutable record.
type CompanyRow struct {
	Position     model.Position
	Fundamentals model.Fundamentals
	Targets      []model.Target

	// HasFundamentals is false when the provider had no record for the
	// company; such rows score as fallback and are excluded from weights.
	HasFundamentals bool
}

// Fetch loads provider data for every portfolio company.
func Fetch(ctx context.Context, p Provider, portfolio []model.Position) (*Data, error) {
	ids := make([]string, 0, len(portfolio))
	for _, pos := range portfolio {
		ids = append(ids, pos.CompanyID)
	}

	fundamentals, err := p.Fundamentals(ctx, ids)
	if err != nil {
		return nil, err
	}
	targets, err := p.Targets(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &Data{Fundamentals: fundamentals, Targets: targets}, nil
}

// ReadAll loads a provider's complete dataset. The file providers treat
// a nil ID filter as "every row"; this is how imports read whole files.
func ReadAll(ctx context.Context, p Provider) (*Data, error) {
	fundamentals, err := p.Fundamentals(ctx, nil)
	if err != nil {
		return nil, err
	}
	targets, err := p.Targets(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Data{Fundamentals: fundamentals, Targets: targets}, nil
}

// Join pre-joins the portfolio with provider data into one row per
// position, in portfolio order. Companies missing from the provider's
// fundamental data are kept (they score as fallback) and reported.
func Join(portfolio []model.Position, data *Data) ([]CompanyRow, []model.Warning) {
	rows := make([]CompanyRow, 0, len(portfolio))
	var warnings []model.Warning

	for _, pos := range portfolio {
		row := CompanyRow{Position: pos}
		if f, ok := data.Fundamentals[pos.CompanyID]; ok {
			row.Fundamentals = f
			row.HasFundamentals = true
		} else {
			warnings = append(warnings, model.Warning{
				Code:      model.WarnMissingProviderData,
				CompanyID: pos.CompanyID,
				Message:   "portfolio company absent from provider fundamental data",
			})
		}
		row.Targets = data.Targets[pos.CompanyID]
		rows = append(rows, row)
	}
	return rows, warnings
}
