package risk

import (
	"context"

	"github.com/sells-group/supply-risk/internal/ingest"
	"github.com/sells-group/supply-risk/internal/model"
)

func f64(v float64) *float64 { return &v }

func merged(country, commodity string, year int, imports, lpi, wgi float64, consumption *float64) model.MergedRow {
	return model.MergedRow{
		Country:        country,
		Year:           year,
		Commodity:      commodity,
		ImportValueUSD: imports,
		LPIScore:       lpi,
		WGI:            [6]float64{wgi, wgi, wgi, wgi, wgi, wgi},
		Consumption:    consumption,
	}
}

func governance(country string, year int, v float64) model.GovernanceRecord {
	return model.GovernanceRecord{
		Country:             country,
		Year:                year,
		ControlOfCorruption: f64(v),
		GovtEffectiveness:   f64(v),
		RuleOfLaw:           f64(v),
		RegulatoryQuality:   f64(v),
		VoiceAccountability: f64(v),
		PoliticalStability:  f64(v),
	}
}

// widgetsDataset is three countries trading Widgets in 2020 with identical
// logistics, governance and consumption inputs.
func widgetsDataset() *ingest.Dataset {
	ds := &ingest.Dataset{Digest: "widgets"}
	for _, c := range []struct {
		name  string
		value float64
	}{{"A", 100}, {"B", 80}, {"C", 60}} {
		ds.Imports = append(ds.Imports, model.RawImportRecord{Country: c.name, Year: 2020, Commodity: "Widgets", ImportValueUSD: f64(c.value)})
		ds.Logistics = append(ds.Logistics, model.LogisticsRecord{Country: c.name, Year: 2020, LPIScore: f64(3)})
		ds.Governance = append(ds.Governance, governance(c.name, 2020, 0.5))
	}
	ds.Consumption = []model.ConsumptionRecord{{Year: 2020, Commodity: "Widgets", ConsumptionPercentage: f64(10)}}
	return ds
}

type fakeSource struct {
	ds    *ingest.Dataset
	err   error
	calls int
}

func (f *fakeSource) Load(context.Context) (*ingest.Dataset, error) {
	f.calls++
	return f.ds, f.err
}
