package risk

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/supply-risk/internal/model"
)

// Score computes base, market-share adjusted and renormalized risk for each
// merged row. Within every (Commodity, Year) group the RiskPercentage values
// sum to 100 up to rounding.
//
// A group whose import values sum to zero gets equal shares; a group whose
// adjusted scores sum to zero gets equal percentages.
func Score(rows []model.MergedRow, w Weights) []model.ScoredRow {
	feats := Scale(rows)
	out := make([]model.ScoredRow, len(rows))

	groups := make(map[model.Group][]int)
	var order []model.Group
	for i, r := range rows {
		out[i] = model.ScoredRow{
			MergedRow:     r,
			Norm:          feats[i],
			BaseRiskScore: baseScore(feats[i], w),
		}
		g := r.Group()
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], i)
	}

	imports := make([]float64, 0, 16)
	adjusted := make([]float64, 0, 16)
	for _, g := range order {
		idx := groups[g]
		n := float64(len(idx))

		imports = imports[:0]
		for _, i := range idx {
			imports = append(imports, out[i].ImportValueUSD)
		}
		totalImports := floats.Sum(imports)

		adjusted = adjusted[:0]
		for k, i := range idx {
			share := 1 / n
			if totalImports != 0 {
				share = imports[k] / totalImports
			}
			out[i].CountryCommodityShare = share
			out[i].AdjustedRiskScore = out[i].BaseRiskScore * share
			adjusted = append(adjusted, out[i].AdjustedRiskScore)
		}
		totalAdjusted := floats.Sum(adjusted)

		for k, i := range idx {
			pct := 100 / n
			if totalAdjusted != 0 {
				pct = 100 * adjusted[k] / totalAdjusted
			}
			out[i].RiskPercentage = round2(pct)
		}
	}
	return out
}

func baseScore(f model.Features, w Weights) float64 {
	return w.Imports*f.Imports +
		w.Consumption*f.Consumption +
		w.LPI*f.LPI +
		w.WGI*stat.Mean(f.WGI[:], nil)
}

// round2 rounds half to even at two decimals.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
