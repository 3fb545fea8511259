package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/supply-risk/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// writeWidgetSources lays out CSV sources where only import values differ:
// A, B and C import 100, 80 and 60 of Widgets in 2020.
func writeWidgetSources(t *testing.T) config.SourcesConfig {
	t.Helper()
	dir := t.TempDir()

	var gov strings.Builder
	gov.WriteString("countryname,year,indicator,estimate\n")
	for _, c := range []string{"A", "B", "C"} {
		for _, ind := range []string{"cc", "ge", "pv", "rl", "rq", "va"} {
			gov.WriteString(c + ",2020," + ind + ",0.1\n")
		}
	}

	files := map[string]string{
		"imports.csv": "Country,Year,Commodity,ImportValueUSD\n" +
			"A,2020,Widgets,100\nB,2020,Widgets,80\nC,2020,Widgets,60\nWorld Total,2020,Widgets,240\n",
		"lpi.csv":         "Country,Year,LPI_Score\nA,2020,3\nB,2020,3\nC,2020,3\n",
		"wgi.csv":         gov.String(),
		"consumption.csv": "Year,Commodity,ConsumptionPercentage\n2020,Widgets,10\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	return config.SourcesConfig{
		Imports:     config.SourceConfig{Path: filepath.Join(dir, "imports.csv")},
		Logistics:   config.SourceConfig{Path: filepath.Join(dir, "lpi.csv")},
		Governance:  config.SourceConfig{Path: filepath.Join(dir, "wgi.csv")},
		Consumption: config.SourceConfig{Path: filepath.Join(dir, "consumption.csv")},
		StagingDir:  filepath.Join(dir, "staging"),
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Sources: writeWidgetSources(t),
		Fetch:   config.FetchConfig{TimeoutSecs: 5, MaxRetries: 1, RatePerSec: 10},
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "runs.db"),
		},
		Log: config.LogConfig{Level: "error", Format: "json"},
	}
}
