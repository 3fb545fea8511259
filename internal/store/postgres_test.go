package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/supply-risk/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	builtAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), builtAt, 3, 2, "digest-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"risk_rows"}, riskRowColumns).WillReturnResult(3)
	mock.ExpectCommit()

	run, err := s.SaveRun(context.Background(), testSnapshot(builtAt, "digest-1"))
	require.NoError(t, err)
	assert.Equal(t, 3, run.Rows)
	assert.Equal(t, "digest-1", run.SourceDigest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_CopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"risk_rows"}, riskRowColumns).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.SaveRun(context.Background(), testSnapshot(time.Now(), ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy rows for run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_BeginFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("db error"))

	_, err := s.SaveRun(context.Background(), testSnapshot(time.Now(), ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	t1 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, built_at, row_count, group_count, source_digest FROM runs`).
		WithArgs(DefaultListLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "built_at", "row_count", "group_count", "source_digest"}).
			AddRow("run-2", t1, 10, 2, "b").
			AddRow("run-1", t0, 8, 2, "a"))

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []model.Run{
		{ID: "run-2", BuiltAt: t1, Rows: 10, Groups: 2, SourceDigest: "b"},
		{ID: "run-1", BuiltAt: t0, Rows: 8, Groups: 2, SourceDigest: "a"},
	}, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RunRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectQuery(`SELECT country, year, commodity, risk_percentage FROM risk_rows`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"country", "year", "commodity", "risk_percentage"}).
			AddRow("Chile", 2022, "Copper", 60.0).
			AddRow("Peru", 2022, "Copper", 40.0))

	rows, err := s.RunRows(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []model.RiskRow{
		{Country: "Chile", Year: 2022, Commodity: "Copper", RiskPercentage: 60},
		{Country: "Peru", Year: 2022, Commodity: "Copper", RiskPercentage: 40},
	}, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RunRows_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.RunRows(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}
