package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/supply-risk/internal/config"
	"github.com/sells-group/supply-risk/internal/fetcher"
	"github.com/sells-group/supply-risk/internal/ingest"
	"github.com/sells-group/supply-risk/internal/risk"
	"github.com/sells-group/supply-risk/internal/store"
)

// newBuilder wires the loader, remote fetcher and scorer from configuration.
func newBuilder(c *config.Config) *risk.Builder {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Fetch.UserAgent,
		Timeout:    time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: c.Fetch.MaxRetries,
		RatePerSec: c.Fetch.RatePerSec,

		BreakerThreshold: c.Fetch.BreakerThreshold,
		BreakerCooldown:  time.Duration(c.Fetch.BreakerCooldownSecs) * time.Second,
	})
	return risk.NewBuilder(ingest.NewLoader(c.Sources, f))
}

// initStore validates the store section and opens a migrated store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if err := c.Validate("store"); err != nil {
		return nil, err
	}
	return store.Open(ctx, c.Store)
}

// saveRun persists snap and logs the new run.
func saveRun(ctx context.Context, st store.Store, snap *risk.Snapshot) error {
	run, err := st.SaveRun(ctx, snap)
	if err != nil {
		return eris.Wrap(err, "save run")
	}
	zap.L().Info("run saved",
		zap.String("run_id", run.ID),
		zap.Int("rows", run.Rows),
		zap.Int("groups", run.Groups),
	)
	return nil
}
