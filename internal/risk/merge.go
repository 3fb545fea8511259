package risk

import (
	"go.uber.org/zap"

	"github.com/sells-group/supply-risk/internal/ingest"
	"github.com/sells-group/supply-risk/internal/model"
)

// MergeStats counts what happened to the import spine during the joins.
type MergeStats struct {
	Spine                int `json:"spine"`
	Kept                 int `json:"kept"`
	DroppedIncomplete    int `json:"dropped_incomplete"`
	DuplicateLogistics   int `json:"duplicate_logistics"`
	DuplicateGovernance  int `json:"duplicate_governance"`
	DuplicateConsumption int `json:"duplicate_consumption"`
}

// Merge left-joins logistics and governance on (Country, Year) and
// consumption on (Year, Commodity) onto the import spine, then drops rows
// missing the import value, the LPI score or any governance indicator.
// When a right-side key repeats, its first occurrence is used so the output
// never has more rows than the spine. Spine order is preserved.
func Merge(ds *ingest.Dataset) ([]model.MergedRow, MergeStats) {
	stats := MergeStats{Spine: len(ds.Imports)}

	lpi := make(map[model.CountryYear]*float64, len(ds.Logistics))
	for _, r := range ds.Logistics {
		k := model.CountryYear{Country: r.Country, Year: r.Year}
		if _, ok := lpi[k]; ok {
			stats.DuplicateLogistics++
			continue
		}
		lpi[k] = r.LPIScore
	}

	wgi := make(map[model.CountryYear]model.GovernanceRecord, len(ds.Governance))
	for _, r := range ds.Governance {
		k := model.CountryYear{Country: r.Country, Year: r.Year}
		if _, ok := wgi[k]; ok {
			stats.DuplicateGovernance++
			continue
		}
		wgi[k] = r
	}

	cons := make(map[model.YearCommodity]*float64, len(ds.Consumption))
	for _, r := range ds.Consumption {
		k := model.YearCommodity{Year: r.Year, Commodity: r.Commodity}
		if _, ok := cons[k]; ok {
			stats.DuplicateConsumption++
			continue
		}
		cons[k] = r.ConsumptionPercentage
	}

	out := make([]model.MergedRow, 0, len(ds.Imports))
	for _, imp := range ds.Imports {
		cy := model.CountryYear{Country: imp.Country, Year: imp.Year}

		score := lpi[cy]
		gov, hasGov := wgi[cy]
		if imp.ImportValueUSD == nil || score == nil || !hasGov || !gov.Complete() {
			stats.DroppedIncomplete++
			continue
		}

		row := model.MergedRow{
			Country:        imp.Country,
			Year:           imp.Year,
			Commodity:      imp.Commodity,
			ImportValueUSD: *imp.ImportValueUSD,
			LPIScore:       *score,
			Consumption:    cons[model.YearCommodity{Year: imp.Year, Commodity: imp.Commodity}],
		}
		for i, v := range gov.Indicators() {
			row.WGI[i] = *v
		}
		out = append(out, row)
	}
	stats.Kept = len(out)

	if stats.DuplicateLogistics+stats.DuplicateGovernance+stats.DuplicateConsumption > 0 {
		zap.L().Warn("risk: duplicate join keys, first occurrence used",
			zap.Int("logistics", stats.DuplicateLogistics),
			zap.Int("governance", stats.DuplicateGovernance),
			zap.Int("consumption", stats.DuplicateConsumption),
		)
	}
	return out, stats
}
