// Package model defines the canonical records flowing through the risk pipeline.
package model

import "time"

// RawImportRecord is one trade observation for (Country, Year, Commodity).
// ImportValueUSD is nil when the source cell is empty or unparseable.
type RawImportRecord struct {
	Country        string   `json:"Country"`
	Year           int      `json:"Year"`
	Commodity      string   `json:"Commodity"`
	ImportValueUSD *float64 `json:"ImportValueUSD"`
}

// LogisticsRecord holds the Logistics Performance Index for (Country, Year).
// Higher scores mean better logistics and therefore lower risk.
type LogisticsRecord struct {
	Country  string   `json:"Country"`
	Year     int      `json:"Year"`
	LPIScore *float64 `json:"LPI_Score"`
}

// GovernanceRecord is the wide form of the six Worldwide Governance Indicators
// for (Country, Year). Estimates are roughly in [-2.5, 2.5]; higher is better.
type GovernanceRecord struct {
	Country             string   `json:"Country"`
	Year                int      `json:"Year"`
	ControlOfCorruption *float64 `json:"WGI_ControlOfCorruption"`
	GovtEffectiveness   *float64 `json:"WGI_GovtEffectiveness"`
	RuleOfLaw           *float64 `json:"WGI_RuleOfLaw"`
	RegulatoryQuality   *float64 `json:"WGI_RegulatoryQuality"`
	VoiceAccountability *float64 `json:"WGI_VoiceAccountability"`
	PoliticalStability  *float64 `json:"WGI_PoliticalStability"`
}

// Indicators returns the six estimates in a fixed order: control of corruption,
// government effectiveness, political stability, rule of law, regulatory quality,
// voice and accountability.
func (g GovernanceRecord) Indicators() [6]*float64 {
	return [6]*float64{
		g.ControlOfCorruption,
		g.GovtEffectiveness,
		g.PoliticalStability,
		g.RuleOfLaw,
		g.RegulatoryQuality,
		g.VoiceAccountability,
	}
}

// Complete reports whether all six indicators are present.
func (g GovernanceRecord) Complete() bool {
	for _, v := range g.Indicators() {
		if v == nil {
			return false
		}
	}
	return true
}

// ConsumptionRecord is the overall demand share of a commodity in a year.
type ConsumptionRecord struct {
	Year                  int      `json:"Year"`
	Commodity             string   `json:"Commodity"`
	ConsumptionPercentage *float64 `json:"ConsumptionPercentage"`
}

// CountryYear keys logistics and governance joins.
type CountryYear struct {
	Country string
	Year    int
}

// YearCommodity keys consumption joins.
type YearCommodity struct {
	Year      int
	Commodity string
}

// Group identifies a (Commodity, Year) ranking group.
type Group struct {
	Commodity string `json:"commodity"`
	Year      int    `json:"year"`
}

// MergedRow is an import spine row that survived the joins with every
// required field present. Consumption is nil when no consumption row matched.
type MergedRow struct {
	Country        string
	Year           int
	Commodity      string
	ImportValueUSD float64
	LPIScore       float64
	WGI            [6]float64 // same order as GovernanceRecord.Indicators
	Consumption    *float64
}

// Group returns the ranking group of the row.
func (m MergedRow) Group() Group {
	return Group{Commodity: m.Commodity, Year: m.Year}
}

// Features holds the eight normalized risk features, each in [0,1] where
// higher always means riskier.
type Features struct {
	Imports     float64    `json:"norm_imports"`
	Consumption float64    `json:"norm_consumption"`
	LPI         float64    `json:"norm_lpi"`
	WGI         [6]float64 `json:"norm_wgi"`
}

// ScoredRow carries every intermediate value of the scoring for one row.
type ScoredRow struct {
	MergedRow
	Norm                  Features `json:"features"`
	BaseRiskScore         float64  `json:"base_risk_score"`
	CountryCommodityShare float64  `json:"country_commodity_share"`
	AdjustedRiskScore     float64  `json:"adjusted_risk_score"`
	RiskPercentage        float64  `json:"risk_percentage"`
}

// RiskRow is the unit of output: the renormalized risk share of a country
// within its (Commodity, Year) group.
type RiskRow struct {
	Country        string  `json:"Country"`
	Year           int     `json:"Year"`
	Commodity      string  `json:"Commodity"`
	RiskPercentage float64 `json:"RiskPercentage"`
}

// CountryRisk is the (Country, RiskPercentage) pair returned by ranking queries.
type CountryRisk struct {
	Country        string  `json:"Country" yaml:"country"`
	RiskPercentage float64 `json:"RiskPercentage" yaml:"risk_percentage"`
}

// Run describes a persisted snapshot.
type Run struct {
	ID           string    `json:"id"`
	BuiltAt      time.Time `json:"built_at"`
	Rows         int       `json:"rows"`
	Groups       int       `json:"groups"`
	SourceDigest string    `json:"source_digest"`
}
