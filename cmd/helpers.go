package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tempscore-cli/internal/model"
	"github.com/sells-group/tempscore-cli/internal/provider"
	"github.com/sells-group/tempscore-cli/internal/store"
)

// initStore creates the configured run history store.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	}
	return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// initProvider creates the configured company data provider. The returned
// cleanup function is a no-op for file providers.
func initProvider(ctx context.Context) (provider.Provider, func(), error) {
	noop := func() {}
	switch cfg.Provider.Source {
	case "csv":
		p := provider.NewCSV(cfg.Provider.FundamentalsPath, cfg.Provider.TargetsPath)
		p.Charset = cfg.Provider.Charset
		return p, noop, nil
	case "xlsx":
		return provider.NewXLSX(cfg.Provider.WorkbookPath), noop, nil
	case "postgres":
		p, err := provider.NewPostgres(ctx, cfg.Provider.DatabaseURL, &provider.PoolConfig{
			MaxConns: cfg.Provider.Pool.MaxConns,
			MinConns: cfg.Provider.Pool.MinConns,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}
	return nil, nil, eris.Errorf("unknown provider source %q", cfg.Provider.Source)
}

// loadPortfolio reads a portfolio file, dispatching on the extension.
func loadPortfolio(ctx context.Context, path string) ([]model.Position, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return provider.LoadPortfolioCSV(ctx, path)
	case ".xlsx":
		return provider.LoadPortfolioXLSX(ctx, path)
	}
	return nil, eris.Errorf("unsupported portfolio format %q (want .csv or .xlsx)", filepath.Ext(path))
}

// fetchData loads provider data for a portfolio and, when enabled,
// refreshes target statuses from the validation registry.
func fetchData(ctx context.Context, p provider.Provider, portfolio []model.Position) (*provider.Data, error) {
	data, err := provider.Fetch(ctx, p, portfolio)
	if err != nil {
		return nil, err
	}
	if cfg.Registry.Enabled {
		client := provider.NewStatusClient(provider.StatusClientOptions{
			BaseURL:    cfg.Registry.BaseURL,
			RatePerSec: cfg.Registry.RatePerSec,
		})
		if err := client.Refresh(ctx, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}
