// Package query answers ranking queries against the current risk snapshot.
package query

import (
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/supply-risk/internal/model"
	"github.com/sells-group/supply-risk/internal/risk"
)

// DefaultTopN is the top-N size used when a caller does not give one.
const DefaultTopN = 3

// ErrNotFound is returned when a (commodity, year) group has no scored rows.
var ErrNotFound = eris.New("no data found for selected parameters")

// Service serves queries from an immutable snapshot that can be swapped
// atomically while readers are active.
type Service struct {
	snap atomic.Pointer[risk.Snapshot]
}

// NewService creates a Service over the initial snapshot.
func NewService(snap *risk.Snapshot) *Service {
	s := &Service{}
	s.snap.Store(snap)
	return s
}

// Swap installs a new snapshot and returns the previous one.
func (s *Service) Swap(snap *risk.Snapshot) *risk.Snapshot {
	return s.snap.Swap(snap)
}

// Snapshot returns the current snapshot.
func (s *Service) Snapshot() *risk.Snapshot {
	return s.snap.Load()
}

// AllRisksRanked returns every country in the group, highest risk first.
func (s *Service) AllRisksRanked(commodity string, year int) ([]model.CountryRisk, error) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, ErrNotFound
	}
	ranked := snap.Ranked(commodity, year)
	if len(ranked) == 0 {
		return nil, ErrNotFound
	}
	return ranked, nil
}

// TopRiskCountries returns the first topN entries of AllRisksRanked. A topN
// of zero or less yields an empty list.
func (s *Service) TopRiskCountries(commodity string, year int, topN int) ([]model.CountryRisk, error) {
	ranked, err := s.AllRisksRanked(commodity, year)
	if err != nil {
		return nil, err
	}
	if topN <= 0 {
		return ranked[:0], nil
	}
	if topN < len(ranked) {
		ranked = ranked[:topN]
	}
	return ranked, nil
}

// Explain returns the scored rows behind a group's ranking.
func (s *Service) Explain(commodity string, year int) ([]model.ScoredRow, error) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, ErrNotFound
	}
	rows := snap.Explain(commodity, year)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows, nil
}

// Groups lists the queryable (commodity, year) groups.
func (s *Service) Groups() []risk.GroupInfo {
	snap := s.snap.Load()
	if snap == nil {
		return nil
	}
	return snap.Groups()
}

// Status summarizes the current snapshot.
type Status struct {
	BuiltAt time.Time `json:"built_at"`
	Rows    int       `json:"rows"`
	Groups  int       `json:"groups"`
	Digest  string    `json:"source_digest"`
}

// Status reports on the current snapshot; the zero Status means none is loaded.
func (s *Service) Status() Status {
	snap := s.snap.Load()
	if snap == nil {
		return Status{}
	}
	return Status{
		BuiltAt: snap.BuiltAt,
		Rows:    snap.Len(),
		Groups:  len(snap.Groups()),
		Digest:  snap.Digest,
	}
}
