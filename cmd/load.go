package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tempscore-cli/internal/provider"
)

var loadBulk bool

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Import a CSV or XLSX provider export into Postgres",
	Long:  "Reads the configured csv or xlsx provider files and writes them to the Postgres database the postgres provider source reads from.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("load"); err != nil {
			return err
		}

		src, cleanup, err := initProvider(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		data, err := provider.ReadAll(ctx, src)
		if err != nil {
			return err
		}

		dst, err := provider.NewPostgres(ctx, cfg.Provider.DatabaseURL, &provider.PoolConfig{
			MaxConns: cfg.Provider.Pool.MaxConns,
			MinConns: cfg.Provider.Pool.MinConns,
		})
		if err != nil {
			return err
		}
		defer dst.Close()

		if err := dst.Migrate(ctx); err != nil {
			return err
		}

		var rows int64
		if loadBulk {
			rows, err = provider.BulkLoadIntoPostgres(ctx, dst.Pool(), data)
		} else {
			rows, err = provider.LoadIntoPostgres(ctx, dst.Pool(), data)
		}
		if err != nil {
			return err
		}

		zap.L().Info("load: import complete",
			zap.Int64("rows", rows),
			zap.Bool("bulk", loadBulk),
		)
		fmt.Fprintf(os.Stdout, "Imported %d rows (%d companies, %d targets).\n",
			rows, len(data.Fundamentals), countTargets(data))
		return nil
	},
}

func init() {
	loadCmd.Flags().BoolVar(&loadBulk, "bulk", false, "use the COPY protocol; faster but requires empty tables")
	rootCmd.AddCommand(loadCmd)
}

func countTargets(data *provider.Data) int {
	var n int
	for _, targets := range data.Targets {
		n += len(targets)
	}
	return n
}
