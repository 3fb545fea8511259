package risk

import (
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/supply-risk/internal/model"
)

// Scale min-max normalizes the eight risk features over all rows. Imports and
// consumption keep their direction; LPI and the governance indicators are
// inverted because higher raw values mean lower risk. Missing consumption
// counts as 0.
func Scale(rows []model.MergedRow) []model.Features {
	n := len(rows)
	feats := make([]model.Features, n)
	if n == 0 {
		return feats
	}

	col := make([]float64, n)

	fill := func(get func(model.MergedRow) float64) []float64 {
		for i, r := range rows {
			col[i] = get(r)
		}
		return minMax(col)
	}

	for i, v := range fill(func(r model.MergedRow) float64 { return r.ImportValueUSD }) {
		feats[i].Imports = v
	}
	for i, v := range fill(func(r model.MergedRow) float64 {
		if r.Consumption == nil {
			return 0
		}
		return *r.Consumption
	}) {
		feats[i].Consumption = v
	}
	for i, v := range fill(func(r model.MergedRow) float64 { return r.LPIScore }) {
		feats[i].LPI = 1 - v
	}
	for j := 0; j < 6; j++ {
		for i, v := range fill(func(r model.MergedRow) float64 { return r.WGI[j] }) {
			feats[i].WGI[j] = 1 - v
		}
	}
	return feats
}

// minMax maps x onto [0,1] in place and returns it. A constant column maps
// to all zeros.
func minMax(x []float64) []float64 {
	lo, hi := floats.Min(x), floats.Max(x)
	span := hi - lo
	for i, v := range x {
		if span == 0 {
			x[i] = 0
			continue
		}
		x[i] = (v - lo) / span
	}
	return x
}
