// Package refresh rebuilds the risk snapshot when source files change, a
// SIGHUP arrives or a cron schedule fires, and swaps it into the query service.
package refresh

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/supply-risk/internal/risk"
)

// DefaultDebounce coalesces bursts of file events into one rebuild.
const DefaultDebounce = 500 * time.Millisecond

// Builder produces a fresh snapshot. *risk.Builder implements it.
type Builder interface {
	Build(ctx context.Context) (*risk.Snapshot, error)
}

// Target receives new snapshots. *query.Service implements it.
type Target interface {
	Snapshot() *risk.Snapshot
	Swap(snap *risk.Snapshot) *risk.Snapshot
}

// Options configures a Refresher.
type Options struct {
	// Paths are local source files to watch. Their parent directories are
	// watched so that editors replacing a file are seen too.
	Paths    []string
	Debounce time.Duration
	// Schedule is an optional cron expression ("0 */6 * * *", "@hourly")
	// for periodic rebuilds, used when sources are remote.
	Schedule string
	// OnSwap, if set, is called after a new snapshot is installed.
	OnSwap func(ctx context.Context, snap *risk.Snapshot)
}

// Refresher serializes rebuilds and installs successful ones. A failed
// rebuild leaves the current snapshot in place.
type Refresher struct {
	builder Builder
	target  Target
	opts    Options
	files   map[string]bool

	mu      sync.Mutex // serializes Refresh
	trigger chan struct{}
}

// New creates a Refresher.
func New(b Builder, t Target, opts Options) *Refresher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	files := make(map[string]bool, len(opts.Paths))
	for _, p := range opts.Paths {
		if abs, err := filepath.Abs(p); err == nil {
			files[abs] = true
		}
	}
	return &Refresher{
		builder: b,
		target:  t,
		opts:    opts,
		files:   files,
		trigger: make(chan struct{}, 1),
	}
}

// Refresh rebuilds the snapshot and swaps it in. When the source digest is
// unchanged the current snapshot is kept and no swap happens.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := zap.L().With(zap.String("component", "refresh"))

	snap, err := r.builder.Build(ctx)
	if err != nil {
		log.Error("rebuild failed, keeping current snapshot", zap.Error(err))
		return eris.Wrap(err, "refresh: rebuild")
	}

	if cur := r.target.Snapshot(); cur != nil && cur.Digest != "" && cur.Digest == snap.Digest {
		log.Info("sources unchanged, snapshot kept", zap.String("digest", snap.Digest))
		return nil
	}

	r.target.Swap(snap)
	log.Info("snapshot swapped",
		zap.String("digest", snap.Digest),
		zap.Int("rows", snap.Len()),
	)
	if r.opts.OnSwap != nil {
		r.opts.OnSwap(ctx, snap)
	}
	return nil
}

// Trigger requests a debounced refresh from a running Run loop. It never blocks.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run watches the source files, SIGHUP and the optional schedule until ctx
// is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	if r.opts.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(r.opts.Schedule, r.Trigger); err != nil {
			return eris.Wrapf(err, "refresh: schedule %q", r.opts.Schedule)
		}
		c.Start()
		defer c.Stop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "refresh: create watcher")
	}
	defer w.Close() //nolint:errcheck

	dirs := make(map[string]bool)
	for f := range r.files {
		dirs[filepath.Dir(f)] = true
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return eris.Wrapf(err, "refresh: watch %s", d)
		}
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	zap.L().Info("refresh: watching sources",
		zap.Int("files", len(r.files)),
		zap.Duration("debounce", r.opts.Debounce),
		zap.String("schedule", r.opts.Schedule),
	)

	timer := time.NewTimer(r.opts.Debounce)
	timer.Stop()
	defer timer.Stop()
	schedule := func() {
		timer.Reset(r.opts.Debounce)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if r.relevant(ev) {
				zap.L().Debug("refresh: source changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("refresh: watcher error", zap.Error(err))
		case <-hup:
			zap.L().Info("refresh: SIGHUP received")
			schedule()
		case <-r.trigger:
			schedule()
		case <-timer.C:
			_ = r.Refresh(ctx)
		}
	}
}

func (r *Refresher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return r.files[abs]
}
