package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/supply-risk/internal/api"
	"github.com/sells-group/supply-risk/internal/config"
	"github.com/sells-group/supply-risk/internal/query"
	"github.com/sells-group/supply-risk/internal/refresh"
	"github.com/sells-group/supply-risk/internal/risk"
	"github.com/sells-group/supply-risk/internal/store"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort  int
	serveWatch bool
	serveSave  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the risk snapshot and serve the query API",
	Long: `Loads and scores all sources once, then serves ranked risk shares over HTTP.
The server does not start listening if any source fails to load.

With --watch (or refresh.watch in config) local source files are watched and
the snapshot is rebuilt after changes or on SIGHUP. refresh.schedule takes a
cron expression for periodic rebuilds of remote sources. A failed rebuild keeps
the current snapshot.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "rebuild the snapshot when local sources change")
	serveCmd.Flags().BoolVar(&serveSave, "save", false, "persist every installed snapshot as a run")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("sources"); err != nil {
		return err
	}

	builder := newBuilder(cfg)
	snap, err := builder.Build(ctx)
	if err != nil {
		return eris.Wrap(err, "serve: build snapshot")
	}
	svc := query.NewService(snap)

	var st store.Store
	if serveSave {
		st, err = initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := saveRun(ctx, st, snap); err != nil {
			zap.L().Error("serve: initial snapshot not saved", zap.Error(err))
		}
	}

	if serveWatch || cfg.Refresh.Watch || cfg.Refresh.Schedule != "" {
		// Deferred after st.Close, so the refresher is joined before the store closes.
		stopRefresh := startRefresher(ctx, cfg, builder, svc, st)
		defer stopRefresh()
	}

	handler := api.NewRouter(svc, api.Options{
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second,
		CORSOrigins:    cfg.Server.CORSOrigins,
	})
	return startServer(ctx, handler, resolvePort(servePort, cfg.Server.Port))
}

// startRefresher runs a refresher in the background. Swapped snapshots are
// saved when st is non-nil. The returned stop func cancels the refresher and
// waits for any in-flight rebuild and save to finish.
func startRefresher(ctx context.Context, c *config.Config, builder refresh.Builder, svc *query.Service, st store.Store) func() {
	r := refresh.New(builder, svc, refresh.Options{
		Paths:    c.Sources.LocalSourcePaths(),
		Debounce: time.Duration(c.Refresh.DebounceMs) * time.Millisecond,
		Schedule: c.Refresh.Schedule,
		OnSwap: func(ctx context.Context, snap *risk.Snapshot) {
			if st == nil {
				return
			}
			if err := saveRun(ctx, st, snap); err != nil {
				zap.L().Error("serve: refreshed snapshot not saved", zap.Error(err))
			}
		},
	})

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.Run(ctx); err != nil {
			zap.L().Error("serve: refresher stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// startServer serves handler on port until ctx is cancelled, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	<-shutdownDone
	return nil
}
