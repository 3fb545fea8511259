package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/supply-risk/internal/model"
	"github.com/sells-group/supply-risk/internal/risk"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	built_at      DATETIME NOT NULL,
	row_count     INTEGER NOT NULL,
	group_count   INTEGER NOT NULL,
	source_digest TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS risk_rows (
	run_id                  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	country                 TEXT NOT NULL,
	year                    INTEGER NOT NULL,
	commodity               TEXT NOT NULL,
	import_value_usd        REAL NOT NULL,
	lpi_score               REAL NOT NULL,
	consumption_pct         REAL,
	base_risk_score         REAL NOT NULL,
	country_commodity_share REAL NOT NULL,
	adjusted_risk_score     REAL NOT NULL,
	risk_percentage         REAL NOT NULL,
	PRIMARY KEY (run_id, commodity, year, country)
);

CREATE INDEX IF NOT EXISTS idx_runs_built_at ON runs(built_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, snap *risk.Snapshot) (*model.Run, error) {
	run := newRun(snap)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, built_at, row_count, group_count, source_digest) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.BuiltAt, run.Rows, run.Groups, run.SourceDigest,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(riskRowColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO risk_rows (`+strings.Join(riskRowColumns, ", ")+`) VALUES (`+placeholders+`)`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare risk row insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, vals := range rowValues(run.ID, snap) {
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert risk row for run %s", run.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit run")
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, built_at, row_count, group_count, source_digest FROM runs
		 ORDER BY built_at DESC, created_at DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.BuiltAt, &r.Rows, &r.Groups, &r.SourceDigest); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RunRows(ctx context.Context, runID string) ([]model.RiskRow, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT country, year, commodity, risk_percentage FROM risk_rows WHERE run_id = ?
		 ORDER BY commodity, year, risk_percentage DESC, country`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list rows for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RiskRow
	for rows.Next() {
		var r model.RiskRow
		if err := rows.Scan(&r.Country, &r.Year, &r.Commodity, &r.RiskPercentage); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan risk row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list rows iterate")
}
