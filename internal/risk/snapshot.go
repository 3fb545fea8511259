package risk

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/sells-group/supply-risk/internal/model"
)

// GroupInfo describes one (commodity, year) group available for queries.
type GroupInfo struct {
	Commodity string `json:"commodity" yaml:"commodity"`
	Year      int    `json:"year" yaml:"year"`
	Countries int    `json:"countries" yaml:"countries"`
}

// Snapshot is an immutable scored table with a pre-ranked index per group.
// Accessors return copies, so a Snapshot is safe for concurrent readers.
type Snapshot struct {
	BuiltAt time.Time
	Digest  string
	Stats   MergeStats

	rows   []model.ScoredRow
	order  map[model.Group][]int // indices into rows, in rank order
	groups []GroupInfo
}

// NewSnapshot indexes scored rows. Each group is ranked by RiskPercentage
// descending, ties broken by Country ascending.
func NewSnapshot(rows []model.ScoredRow, builtAt time.Time, digest string, stats MergeStats) *Snapshot {
	s := &Snapshot{
		BuiltAt: builtAt,
		Digest:  digest,
		Stats:   stats,
		rows:    slices.Clone(rows),
		order:   make(map[model.Group][]int),
	}

	for i, r := range s.rows {
		g := r.Group()
		s.order[g] = append(s.order[g], i)
	}

	for g, idx := range s.order {
		slices.SortStableFunc(idx, func(a, b int) int {
			ra, rb := s.rows[a], s.rows[b]
			if c := cmp.Compare(rb.RiskPercentage, ra.RiskPercentage); c != 0 {
				return c
			}
			return strings.Compare(ra.Country, rb.Country)
		})
		s.groups = append(s.groups, GroupInfo{Commodity: g.Commodity, Year: g.Year, Countries: len(idx)})
	}

	slices.SortFunc(s.groups, func(a, b GroupInfo) int {
		if c := strings.Compare(a.Commodity, b.Commodity); c != 0 {
			return c
		}
		return cmp.Compare(a.Year, b.Year)
	})
	return s
}

// Len returns the number of scored rows.
func (s *Snapshot) Len() int {
	return len(s.rows)
}

// Ranked returns the group's countries in rank order, or nil if the group is
// absent.
func (s *Snapshot) Ranked(commodity string, year int) []model.CountryRisk {
	idx := s.order[model.Group{Commodity: commodity, Year: year}]
	if len(idx) == 0 {
		return nil
	}
	out := make([]model.CountryRisk, len(idx))
	for k, i := range idx {
		out[k] = model.CountryRisk{Country: s.rows[i].Country, RiskPercentage: s.rows[i].RiskPercentage}
	}
	return out
}

// Explain returns the full scored rows of a group in rank order.
func (s *Snapshot) Explain(commodity string, year int) []model.ScoredRow {
	idx := s.order[model.Group{Commodity: commodity, Year: year}]
	if len(idx) == 0 {
		return nil
	}
	out := make([]model.ScoredRow, len(idx))
	for k, i := range idx {
		out[k] = s.rows[i]
	}
	return out
}

// Groups returns the available groups sorted by commodity then year.
func (s *Snapshot) Groups() []GroupInfo {
	return slices.Clone(s.groups)
}

// RiskRows returns the (Country, Year, Commodity, RiskPercentage) table in
// group order, each group in rank order.
func (s *Snapshot) RiskRows() []model.RiskRow {
	out := make([]model.RiskRow, 0, len(s.rows))
	for _, g := range s.groups {
		for _, i := range s.order[model.Group{Commodity: g.Commodity, Year: g.Year}] {
			r := s.rows[i]
			out = append(out, model.RiskRow{
				Country:        r.Country,
				Year:           r.Year,
				Commodity:      r.Commodity,
				RiskPercentage: r.RiskPercentage,
			})
		}
	}
	return out
}

// Rows returns every scored row in group order, each group in rank order.
func (s *Snapshot) Rows() []model.ScoredRow {
	out := make([]model.ScoredRow, 0, len(s.rows))
	for _, g := range s.groups {
		out = append(out, s.Explain(g.Commodity, g.Year)...)
	}
	return out
}
