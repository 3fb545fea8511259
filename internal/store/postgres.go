package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/supply-risk/internal/db"
	"github.com/sells-group/supply-risk/internal/model"
	"github.com/sells-group/supply-risk/internal/risk"
)

// PostgresStore implements Store using pgxpool. Risk rows are written with
// the COPY protocol inside the run's transaction.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	built_at      TIMESTAMPTZ NOT NULL,
	row_count     INTEGER NOT NULL,
	group_count   INTEGER NOT NULL,
	source_digest TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS risk_rows (
	run_id                  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	country                 TEXT NOT NULL,
	year                    INTEGER NOT NULL,
	commodity               TEXT NOT NULL,
	import_value_usd        DOUBLE PRECISION NOT NULL,
	lpi_score               DOUBLE PRECISION NOT NULL,
	consumption_pct         DOUBLE PRECISION,
	base_risk_score         DOUBLE PRECISION NOT NULL,
	country_commodity_share DOUBLE PRECISION NOT NULL,
	adjusted_risk_score     DOUBLE PRECISION NOT NULL,
	risk_percentage         DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, commodity, year, country)
);

CREATE INDEX IF NOT EXISTS idx_runs_built_at ON runs(built_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, snap *risk.Snapshot) (*model.Run, error) {
	run := newRun(snap)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, built_at, row_count, group_count, source_digest) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.BuiltAt, run.Rows, run.Groups, run.SourceDigest,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	if _, err := db.CopyFrom(ctx, tx, "risk_rows", riskRowColumns, rowValues(run.ID, snap)); err != nil {
		return nil, eris.Wrapf(err, "postgres: copy rows for run %s", run.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit run")
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, built_at, row_count, group_count, source_digest FROM runs
		 ORDER BY built_at DESC, created_at DESC LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.BuiltAt, &r.Rows, &r.Groups, &r.SourceDigest); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) RunRows(ctx context.Context, runID string) ([]model.RiskRow, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM runs WHERE id = $1`, runID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "postgres: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT country, year, commodity, risk_percentage FROM risk_rows WHERE run_id = $1
		 ORDER BY commodity, year, risk_percentage DESC, country`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list rows for run %s", runID)
	}
	defer rows.Close()

	var out []model.RiskRow
	for rows.Next() {
		var r model.RiskRow
		if err := rows.Scan(&r.Country, &r.Year, &r.Commodity, &r.RiskPercentage); err != nil {
			return nil, eris.Wrap(err, "postgres: scan risk row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list rows iterate")
}
