package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestCopyFrom(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectCopyFrom(pgx.Identifier{"esg", "fundamentals"}, []string{"company_id", "market_cap"}).
		WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "esg.fundamentals",
		[]string{"company_id", "market_cap"},
		[][]any{{"A", 100.0}, {"B", 200.0}},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_EmptyRowsIsNoop(t *testing.T) {
	mock := newMockPool(t)

	n, err := CopyFrom(context.Background(), mock, "fundamentals", []string{"company_id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectExec(`INSERT INTO "fundamentals" .* ON CONFLICT \("company_id"\) DO UPDATE SET "market_cap" = EXCLUDED\."market_cap"`).
		WithArgs("A", 100.0, "B", 200.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	n, err := Upsert(context.Background(), mock, UpsertConfig{
		Table:        "fundamentals",
		Columns:      []string{"company_id", "market_cap"},
		ConflictKeys: []string{"company_id"},
	}, [][]any{{"A", 100.0}, {"B", 200.0}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_Validation(t *testing.T) {
	mock := newMockPool(t)
	ctx := context.Background()

	_, err := Upsert(ctx, mock, UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, [][]any{{1}})
	assert.Error(t, err)

	_, err = Upsert(ctx, mock, UpsertConfig{Table: "t", Columns: []string{"id"}}, [][]any{{1}})
	assert.Error(t, err)

	_, err = Upsert(ctx, mock, UpsertConfig{
		Table:        "t",
		Columns:      []string{"id", "v"},
		ConflictKeys: []string{"id"},
	}, [][]any{{1}})
	assert.Error(t, err)
}
