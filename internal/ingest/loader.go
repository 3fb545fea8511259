// Package ingest loads the four risk input datasets and normalizes them into
// canonical records.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/supply-risk/internal/config"
	"github.com/sells-group/supply-risk/internal/fetcher"
	"github.com/sells-group/supply-risk/internal/model"
)

// Source names one of the four input datasets.
type Source string

const (
	SourceImports     Source = "imports"
	SourceLogistics   Source = "logistics"
	SourceGovernance  Source = "governance"
	SourceConsumption Source = "consumption"
)

// Dataset is the normalized output of a load.
type Dataset struct {
	Imports     []model.RawImportRecord
	Logistics   []model.LogisticsRecord
	Governance  []model.GovernanceRecord
	Consumption []model.ConsumptionRecord

	// Digest is a sha256 over the four source files, in source order.
	Digest string
}

// Loader reads the configured sources. Remote sources are staged through
// the fetcher into the staging directory first.
type Loader struct {
	cfg     config.SourcesConfig
	fetcher fetcher.Fetcher
}

// NewLoader creates a Loader. f may be nil when every source is local.
func NewLoader(cfg config.SourcesConfig, f fetcher.Fetcher) *Loader {
	return &Loader{cfg: cfg, fetcher: f}
}

// Load reads and normalizes all four sources concurrently. It fails if any
// source fails; the returned error is a *SourceError.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	ds := &Dataset{}
	var digests [4]string

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, d, err := l.readTable(gctx, SourceImports, l.cfg.Imports)
		if err != nil {
			return err
		}
		recs, err := NormalizeImports(t)
		if err != nil {
			return badFormat(SourceImports, l.cfg.Imports.Path, err)
		}
		ds.Imports, digests[0] = recs, d
		return nil
	})
	g.Go(func() error {
		t, d, err := l.readTable(gctx, SourceLogistics, l.cfg.Logistics)
		if err != nil {
			return err
		}
		recs, err := NormalizeLogistics(t)
		if err != nil {
			return badFormat(SourceLogistics, l.cfg.Logistics.Path, err)
		}
		ds.Logistics, digests[1] = recs, d
		return nil
	})
	g.Go(func() error {
		t, d, err := l.readTable(gctx, SourceGovernance, l.cfg.Governance)
		if err != nil {
			return err
		}
		recs, err := NormalizeGovernance(t)
		if err != nil {
			return badFormat(SourceGovernance, l.cfg.Governance.Path, err)
		}
		ds.Governance, digests[2] = recs, d
		return nil
	})
	g.Go(func() error {
		t, d, err := l.readTable(gctx, SourceConsumption, l.cfg.Consumption)
		if err != nil {
			return err
		}
		recs, err := NormalizeConsumption(t)
		if err != nil {
			return badFormat(SourceConsumption, l.cfg.Consumption.Path, err)
		}
		ds.Consumption, digests[3] = recs, d
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	h := sha256.New()
	for _, d := range digests {
		fmt.Fprintln(h, d)
	}
	ds.Digest = hex.EncodeToString(h.Sum(nil))

	zap.L().Info("sources loaded",
		zap.Int("imports", len(ds.Imports)),
		zap.Int("logistics", len(ds.Logistics)),
		zap.Int("governance", len(ds.Governance)),
		zap.Int("consumption", len(ds.Consumption)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

// readTable resolves the source to a local file and reads it. The format is
// chosen by extension: .xlsx is read as a workbook, anything else as CSV.
func (l *Loader) readTable(ctx context.Context, src Source, sc config.SourceConfig) (*fetcher.Table, string, error) {
	local, err := l.resolve(ctx, src, sc.Path)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(local)
	if err != nil {
		return nil, "", unavailable(src, sc.Path, err)
	}
	defer f.Close() //nolint:errcheck

	if fi, err := f.Stat(); err != nil || fi.IsDir() {
		if err == nil {
			err = eris.Errorf("%s is a directory", local)
		}
		return nil, "", unavailable(src, sc.Path, err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, "", unavailable(src, sc.Path, err)
	}
	digest := hex.EncodeToString(h.Sum(nil))
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, "", unavailable(src, sc.Path, err)
	}

	var t *fetcher.Table
	if strings.EqualFold(filepath.Ext(local), ".xlsx") {
		t, err = fetcher.ReadXLSX(local, fetcher.XLSXOptions{SheetName: sc.Sheet})
	} else {
		t, err = fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{Encoding: sc.Encoding, LazyQuotes: true})
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", unavailable(src, sc.Path, ctx.Err())
		}
		return nil, "", badFormat(src, sc.Path, err)
	}

	zap.L().Debug("source read",
		zap.String("source", string(src)),
		zap.String("path", local),
		zap.Int("rows", t.Len()),
	)
	return t, digest, nil
}

// resolve returns a local path for the source, downloading remote sources
// into the staging directory.
func (l *Loader) resolve(ctx context.Context, src Source, p string) (string, error) {
	if !config.IsRemote(p) {
		return p, nil
	}
	if l.fetcher == nil {
		return "", unavailable(src, p, eris.New("no fetcher configured for remote source"))
	}

	ext := ".csv"
	if u, err := url.Parse(p); err == nil {
		if e := path.Ext(u.Path); e != "" {
			ext = strings.ToLower(e)
		}
	}
	dir := l.cfg.StagingDir
	if dir == "" {
		dir = os.TempDir()
	}
	local := filepath.Join(dir, string(src)+ext)

	n, err := l.fetcher.DownloadToFile(ctx, p, local)
	if err != nil {
		return "", unavailable(src, p, err)
	}
	zap.L().Info("staged remote source",
		zap.String("source", string(src)),
		zap.String("url", p),
		zap.Int64("bytes", n),
	)
	return local, nil
}
