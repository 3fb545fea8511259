// Package store persists scored snapshots as runs.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/supply-risk/internal/config"
	"github.com/sells-group/supply-risk/internal/model"
	"github.com/sells-group/supply-risk/internal/risk"
)

// DefaultListLimit bounds ListRuns when no positive limit is given.
const DefaultListLimit = 20

// ErrRunNotFound is returned by RunRows for an unknown run ID.
var ErrRunNotFound = eris.New("run not found")

// Store defines the persistence interface for computed snapshots.
type Store interface {
	// SaveRun writes the snapshot and all of its scored rows as a new run.
	SaveRun(ctx context.Context, snap *risk.Snapshot) (*model.Run, error)
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	// RunRows returns the risk rows of a run ordered by group then rank.
	RunRows(ctx context.Context, runID string) ([]model.RiskRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		s, err = openSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = openPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// The constructors return concrete pointers; these keep a nil *T from
// becoming a non-nil Store.
func openSQLite(dsn string) (Store, error) {
	s, err := NewSQLite(dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openPostgres(ctx context.Context, dsn string) (Store, error) {
	s, err := NewPostgres(ctx, dsn, nil)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// riskRowColumns is the column order used by every risk_rows insert.
var riskRowColumns = []string{
	"run_id",
	"country",
	"year",
	"commodity",
	"import_value_usd",
	"lpi_score",
	"consumption_pct",
	"base_risk_score",
	"country_commodity_share",
	"adjusted_risk_score",
	"risk_percentage",
}

func newRun(snap *risk.Snapshot) model.Run {
	return model.Run{
		ID:           uuid.New().String(),
		BuiltAt:      snap.BuiltAt.UTC(),
		Rows:         snap.Len(),
		Groups:       len(snap.Groups()),
		SourceDigest: snap.Digest,
	}
}

// rowValues flattens the snapshot rows in riskRowColumns order.
func rowValues(runID string, snap *risk.Snapshot) [][]any {
	rows := snap.Rows()
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{
			runID,
			r.Country,
			r.Year,
			r.Commodity,
			r.ImportValueUSD,
			r.LPIScore,
			r.Consumption,
			r.BaseRiskScore,
			r.CountryCommodityShare,
			r.AdjustedRiskScore,
			r.RiskPercentage,
		})
	}
	return out
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
