package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/supply-risk/internal/fetcher"
	"github.com/sells-group/supply-risk/internal/model"
)

// worldTotal is the aggregate pseudo-country present in trade extracts.
const worldTotal = "World Total"

// Column alias groups, first alias preferred.
var (
	colCountry        = []string{"Country"}
	colYear           = []string{"Year"}
	colCommodity      = []string{"Commodity"}
	colImportValue    = []string{"ImportValueUSD"}
	colLPI            = []string{"LPI_Score_Interpolated", "LPI_Score"}
	colWGICountry     = []string{"countryname", "Country"}
	colWGIYear        = []string{"year", "Year"}
	colWGIIndicator   = []string{"indicator"}
	colWGIEstimate    = []string{"estimate"}
	colConsYear       = []string{"Year", "ConsumptionYear"}
	colConsCommodity  = []string{"Commodity Type", "Commodity"}
	colConsPercentage = []string{"Overall Consumption Percentage", "ConsumptionPercentage"}
)

// wgiIndicator maps governance indicator codes to their position in
// model.GovernanceRecord.Indicators.
var wgiIndicator = map[string]int{
	"cc": 0, // control of corruption
	"ge": 1, // government effectiveness
	"pv": 2, // political stability
	"rl": 3, // rule of law
	"rq": 4, // regulatory quality
	"va": 5, // voice and accountability
}

type importKey struct {
	country   string
	year      int
	commodity string
}

// NormalizeImports converts the imports table into records, dropping the
// "World Total" aggregate and rows without a country or commodity. A
// negative import value is treated as missing. Only the first row of a
// repeated (Country, Year, Commodity) is kept.
func NormalizeImports(t *fetcher.Table) ([]model.RawImportRecord, error) {
	idx, err := t.Columns(colCountry, colYear, colCommodity, colImportValue)
	if err != nil {
		return nil, err
	}

	out := make([]model.RawImportRecord, 0, t.Len())
	seen := make(map[importKey]bool, t.Len())
	var negative, duplicate int
	for i, row := range t.Rows {
		country := normalizeKey(fetcher.Cell(row, idx[0]))
		commodity := normalizeKey(fetcher.Cell(row, idx[2]))
		if country == "" || commodity == "" || strings.EqualFold(country, worldTotal) {
			continue
		}
		year, err := parseYear(fetcher.Cell(row, idx[1]))
		if err != nil {
			return nil, eris.Wrapf(err, "imports: row %d", i+2)
		}

		key := importKey{country: country, year: year, commodity: commodity}
		if seen[key] {
			duplicate++
			continue
		}
		seen[key] = true

		value := parseFloatPtr(fetcher.Cell(row, idx[3]))
		if value != nil && *value < 0 {
			negative++
			value = nil
		}
		out = append(out, model.RawImportRecord{
			Country:        country,
			Year:           year,
			Commodity:      commodity,
			ImportValueUSD: value,
		})
	}

	if negative > 0 || duplicate > 0 {
		zap.L().Warn("imports rows adjusted",
			zap.Int("negative_value", negative),
			zap.Int("duplicate_key", duplicate),
		)
	}
	return out, nil
}

// NormalizeLogistics projects the logistics table onto (Country, Year, LPI_Score).
func NormalizeLogistics(t *fetcher.Table) ([]model.LogisticsRecord, error) {
	idx, err := t.Columns(colCountry, colYear, colLPI)
	if err != nil {
		return nil, err
	}

	out := make([]model.LogisticsRecord, 0, t.Len())
	for i, row := range t.Rows {
		country := normalizeKey(fetcher.Cell(row, idx[0]))
		if country == "" {
			continue
		}
		year, err := parseYear(fetcher.Cell(row, idx[1]))
		if err != nil {
			return nil, eris.Wrapf(err, "logistics: row %d", i+2)
		}
		out = append(out, model.LogisticsRecord{
			Country:  country,
			Year:     year,
			LPIScore: parseFloatPtr(fetcher.Cell(row, idx[2])),
		})
	}
	return out, nil
}

type wgiAcc struct {
	sum [6]float64
	n   [6]int
}

// NormalizeGovernance pivots long-form governance rows (one estimate per
// country, year and indicator) into one wide record per (Country, Year).
// Sentinel and non-numeric estimates are dropped, repeated estimates are
// averaged and unknown indicator codes are ignored. Output follows the order
// in which each (Country, Year) first appears.
func NormalizeGovernance(t *fetcher.Table) ([]model.GovernanceRecord, error) {
	idx, err := t.Columns(colWGICountry, colWGIYear, colWGIIndicator, colWGIEstimate)
	if err != nil {
		return nil, err
	}

	var order []model.CountryYear
	acc := make(map[model.CountryYear]*wgiAcc)
	var dropped, unknown int

	for i, row := range t.Rows {
		est := parseFloatPtr(fetcher.Cell(row, idx[3]))
		if est == nil {
			dropped++
			continue
		}
		pos, ok := wgiIndicator[strings.ToLower(strings.TrimSpace(fetcher.Cell(row, idx[2])))]
		if !ok {
			unknown++
			continue
		}
		country := normalizeKey(fetcher.Cell(row, idx[0]))
		if country == "" {
			dropped++
			continue
		}
		year, err := parseYear(fetcher.Cell(row, idx[1]))
		if err != nil {
			return nil, eris.Wrapf(err, "governance: row %d", i+2)
		}

		key := model.CountryYear{Country: country, Year: year}
		a, ok := acc[key]
		if !ok {
			a = &wgiAcc{}
			acc[key] = a
			order = append(order, key)
		}
		a.sum[pos] += *est
		a.n[pos]++
	}

	if dropped > 0 || unknown > 0 {
		zap.L().Debug("governance rows skipped",
			zap.Int("missing_estimate", dropped),
			zap.Int("unknown_indicator", unknown),
		)
	}

	out := make([]model.GovernanceRecord, 0, len(order))
	for _, key := range order {
		a := acc[key]
		var vals [6]*float64
		for j := range vals {
			if a.n[j] > 0 {
				mean := a.sum[j] / float64(a.n[j])
				vals[j] = &mean
			}
		}
		out = append(out, model.GovernanceRecord{
			Country:             key.Country,
			Year:                key.Year,
			ControlOfCorruption: vals[0],
			GovtEffectiveness:   vals[1],
			PoliticalStability:  vals[2],
			RuleOfLaw:           vals[3],
			RegulatoryQuality:   vals[4],
			VoiceAccountability: vals[5],
		})
	}
	return out, nil
}

// NormalizeConsumption renames the consumption table onto (Year, Commodity,
// ConsumptionPercentage).
func NormalizeConsumption(t *fetcher.Table) ([]model.ConsumptionRecord, error) {
	idx, err := t.Columns(colConsYear, colConsCommodity, colConsPercentage)
	if err != nil {
		return nil, err
	}

	out := make([]model.ConsumptionRecord, 0, t.Len())
	for i, row := range t.Rows {
		commodity := normalizeKey(fetcher.Cell(row, idx[1]))
		if commodity == "" {
			continue
		}
		year, err := parseYear(fetcher.Cell(row, idx[0]))
		if err != nil {
			return nil, eris.Wrapf(err, "consumption: row %d", i+2)
		}
		out = append(out, model.ConsumptionRecord{
			Year:                  year,
			Commodity:             commodity,
			ConsumptionPercentage: parseFloatPtr(fetcher.Cell(row, idx[2])),
		})
	}
	return out, nil
}
