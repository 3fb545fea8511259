package risk

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/supply-risk/internal/ingest"
)

// Source provides normalized input records. *ingest.Loader implements it.
type Source interface {
	Load(ctx context.Context) (*ingest.Dataset, error)
}

// Builder runs the full pipeline: load, merge, scale, score, index.
type Builder struct {
	source  Source
	weights Weights
	now     func() time.Time
}

// NewBuilder creates a Builder using DefaultWeights.
func NewBuilder(src Source) *Builder {
	return &Builder{source: src, weights: DefaultWeights, now: time.Now}
}

// Build produces a fresh Snapshot. It is all-or-nothing: any load error is
// returned and no snapshot is produced.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	if err := ValidateWeights(b.weights); err != nil {
		return nil, err
	}

	start := b.now()
	ds, err := b.source.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "risk: load sources")
	}

	merged, stats := Merge(ds)
	scored := Score(merged, b.weights)
	snap := NewSnapshot(scored, b.now(), ds.Digest, stats)

	log := zap.L().With(zap.String("digest", ds.Digest))
	if snap.Len() == 0 {
		log.Warn("risk: snapshot is empty, every query will return not found",
			zap.Int("spine", stats.Spine),
			zap.Int("dropped_incomplete", stats.DroppedIncomplete),
		)
	}
	log.Info("risk: snapshot built",
		zap.Int("spine", stats.Spine),
		zap.Int("rows", snap.Len()),
		zap.Int("groups", len(snap.groups)),
		zap.Int("dropped_incomplete", stats.DroppedIncomplete),
		zap.Duration("elapsed", b.now().Sub(start)),
	)
	return snap, nil
}
