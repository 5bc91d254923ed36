package provider

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tempscore-cli/internal/db"
	"github.com/sells-group/tempscore-cli/internal/model"
)

// PostgresProvider reads fundamentals and targets from a Postgres
// database populated by the dataset loader.
type PostgresProvider struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresProvider with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresProvider, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresProvider{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by the dataset
// loader.
func (p *PostgresProvider) Pool() db.Pool {
	return p.pool
}

// Close releases the connection pool.
func (p *PostgresProvider) Close() {
	if p.closeFn != nil {
		p.closeFn()
	}
}

const providerMigration = `
CREATE TABLE IF NOT EXISTS fundamentals (
	company_id       TEXT PRIMARY KEY,
	company_name     TEXT NOT NULL DEFAULT '',
	sector           TEXT NOT NULL DEFAULT '',
	region           TEXT NOT NULL DEFAULT '',
	market_cap       DOUBLE PRECISION NOT NULL DEFAULT 0,
	enterprise_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	ownership_pct    DOUBLE PRECISION NOT NULL DEFAULT 0,
	revenue          DOUBLE PRECISION NOT NULL DEFAULT 0,
	cash             DOUBLE PRECISION NOT NULL DEFAULT 0,
	emissions_s1s2   DOUBLE PRECISION NOT NULL DEFAULT 0,
	emissions_s3     DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS targets (
	target_id      TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	scope_coverage TEXT NOT NULL,
	base_year      INT NOT NULL,
	target_year    INT NOT NULL,
	reduction_pct  DOUBLE PRECISION NOT NULL,
	status         TEXT NOT NULL DEFAULT 'not_validated',
	ambition       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_targets_company_id ON targets(company_id);
CREATE INDEX IF NOT EXISTS idx_fundamentals_sector ON fundamentals(sector);
`

// Migrate creates the provider tables if they do not exist.
func (p *PostgresProvider) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, providerMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Fundamentals loads fundamental records for the requested company IDs.
func (p *PostgresProvider) Fundamentals(ctx context.Context, companyIDs []string) (map[string]model.Fundamentals, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT company_id, company_name, sector, region, market_cap, enterprise_value,
		        ownership_pct, revenue, cash, emissions_s1s2, emissions_s3
		 FROM fundamentals WHERE company_id = ANY($1)`,
		companyIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query fundamentals")
	}
	defer rows.Close()

	out := make(map[string]model.Fundamentals, len(companyIDs))
	for rows.Next() {
		var f model.Fundamentals
		if err := rows.Scan(&f.CompanyID, &f.CompanyName, &f.Sector, &f.Region,
			&f.MarketCap, &f.EnterpriseValue, &f.OwnershipPct, &f.Revenue, &f.Cash,
			&f.EmissionsS1S2, &f.EmissionsS3); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fundamentals")
		}
		out[f.CompanyID] = f
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate fundamentals")
}

// Targets loads reduction targets for the requested company IDs.
func (p *PostgresProvider) Targets(ctx context.Context, companyIDs []string) (map[string][]model.Target, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT target_id, company_id, scope_coverage, base_year, target_year,
		        reduction_pct, status, ambition
		 FROM targets WHERE company_id = ANY($1) ORDER BY target_id`,
		companyIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query targets")
	}
	defer rows.Close()

	out := make(map[string][]model.Target)
	for rows.Next() {
		var t model.Target
		var coverage, status string
		if err := rows.Scan(&t.ID, &t.CompanyID, &coverage, &t.BaseYear, &t.TargetYear,
			&t.ReductionPct, &status, &t.Ambition); err != nil {
			return nil, eris.Wrap(err, "postgres: scan target")
		}
		t.Coverage, err = model.ParseCoverage(coverage)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: target %s", t.ID)
		}
		t.Status = model.ParseValidationStatus(status)
		out[t.CompanyID] = append(out[t.CompanyID], t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate targets")
}
