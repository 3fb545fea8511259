package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/supply-risk/internal/model"
	"github.com/sells-group/supply-risk/internal/query"
)

var scoreFormats = []string{"table", "csv", "json", "yaml"}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one commodity and year and print the ranking",
	Long: `Builds the risk snapshot once and prints the ranked countries of one
(commodity, year) group.

Examples:
  # Full ranking for copper in 2022
  score --commodity Copper --year 2022

  # Top 5 as JSON
  score --commodity Copper --year 2022 --top 5 --format json

  # Every intermediate feature, exported to CSV, and persist the run
  score --commodity Copper --year 2022 --explain --format csv --output copper.csv --save`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("commodity", "", "commodity to rank (exact match)")
	f.Int("year", 0, "year to rank")
	f.Int("top", 0, "limit to the N riskiest countries (0 = all)")
	f.String("format", "table", "output format: table, csv, json or yaml")
	f.Bool("explain", false, "include the normalized features and intermediate scores")
	f.Bool("save", false, "persist the snapshot as a run")
	f.String("output", "", "output file path (default: stdout)")
	_ = scoreCmd.MarkFlagRequired("commodity")
	_ = scoreCmd.MarkFlagRequired("year")

	rootCmd.AddCommand(scoreCmd)
}

// scoreOptions are the parsed flags of the score command.
type scoreOptions struct {
	Commodity string
	Year      int
	Top       int
	Format    string
	Explain   bool
	Save      bool
	Output    string
}

func parseScoreFlags(cmd *cobra.Command) (scoreOptions, error) {
	var o scoreOptions
	o.Commodity, _ = cmd.Flags().GetString("commodity")
	o.Year, _ = cmd.Flags().GetInt("year")
	o.Top, _ = cmd.Flags().GetInt("top")
	o.Format, _ = cmd.Flags().GetString("format")
	o.Explain, _ = cmd.Flags().GetBool("explain")
	o.Save, _ = cmd.Flags().GetBool("save")
	o.Output, _ = cmd.Flags().GetString("output")

	if o.Commodity == "" {
		return o, eris.New("score: --commodity is required")
	}
	if o.Year <= 0 {
		return o, eris.Errorf("score: --year must be a positive year (got %d)", o.Year)
	}
	if o.Top < 0 {
		return o, eris.Errorf("score: --top must be >= 0 (got %d)", o.Top)
	}
	if !validFormat(o.Format) {
		return o, eris.Errorf("score: --format must be one of table, csv, json, yaml (got %q)", o.Format)
	}
	return o, nil
}

func validFormat(f string) bool {
	return slices.Contains(scoreFormats, f)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := parseScoreFlags(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate("sources"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "score"))

	snap, err := newBuilder(cfg).Build(ctx)
	if err != nil {
		return eris.Wrap(err, "score: build snapshot")
	}
	log.Info("snapshot built", zap.Int("rows", snap.Len()), zap.Int("groups", len(snap.Groups())))

	var w io.Writer = os.Stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return eris.Wrapf(err, "score: create output file %s", opts.Output)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	if err := writeScore(w, query.NewService(snap), opts); err != nil {
		return err
	}

	if opts.Save {
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := saveRun(ctx, st, snap); err != nil {
			return eris.Wrap(err, "score")
		}
	}
	return nil
}

// writeScore renders the requested group from svc.
func writeScore(w io.Writer, svc *query.Service, o scoreOptions) error {
	if o.Explain {
		rows, err := svc.Explain(o.Commodity, o.Year)
		if err != nil {
			return eris.Wrapf(err, "score: %s %d", o.Commodity, o.Year)
		}
		if o.Top > 0 && o.Top < len(rows) {
			rows = rows[:o.Top]
		}
		return writeExplain(w, o.Format, newExplainOutput(o.Commodity, o.Year, rows))
	}

	var (
		ranked []model.CountryRisk
		err    error
	)
	if o.Top > 0 {
		ranked, err = svc.TopRiskCountries(o.Commodity, o.Year, o.Top)
	} else {
		ranked, err = svc.AllRisksRanked(o.Commodity, o.Year)
	}
	if err != nil {
		return eris.Wrapf(err, "score: %s %d", o.Commodity, o.Year)
	}
	return writeRanking(w, o.Format, rankingOutput{Commodity: o.Commodity, Year: o.Year, Countries: ranked})
}

type rankingOutput struct {
	Commodity string              `json:"commodity" yaml:"commodity"`
	Year      int                 `json:"year" yaml:"year"`
	Countries []model.CountryRisk `json:"countries" yaml:"countries"`
}

type explainRow struct {
	Country               string   `json:"country" yaml:"country"`
	ImportValueUSD        float64  `json:"import_value_usd" yaml:"import_value_usd"`
	LPIScore              float64  `json:"lpi_score" yaml:"lpi_score"`
	ConsumptionPct        *float64 `json:"consumption_pct" yaml:"consumption_pct"`
	NormImports           float64  `json:"norm_imports" yaml:"norm_imports"`
	NormConsumption       float64  `json:"norm_consumption" yaml:"norm_consumption"`
	NormLPI               float64  `json:"norm_lpi" yaml:"norm_lpi"`
	NormWGIMean           float64  `json:"norm_wgi_mean" yaml:"norm_wgi_mean"`
	BaseRiskScore         float64  `json:"base_risk_score" yaml:"base_risk_score"`
	CountryCommodityShare float64  `json:"country_commodity_share" yaml:"country_commodity_share"`
	AdjustedRiskScore     float64  `json:"adjusted_risk_score" yaml:"adjusted_risk_score"`
	RiskPercentage        float64  `json:"risk_percentage" yaml:"risk_percentage"`
}

type explainOutput struct {
	Commodity string       `json:"commodity" yaml:"commodity"`
	Year      int          `json:"year" yaml:"year"`
	Countries []explainRow `json:"countries" yaml:"countries"`
}

func newExplainOutput(commodity string, year int, rows []model.ScoredRow) explainOutput {
	out := explainOutput{Commodity: commodity, Year: year, Countries: make([]explainRow, 0, len(rows))}
	for _, r := range rows {
		out.Countries = append(out.Countries, explainRow{
			Country:               r.Country,
			ImportValueUSD:        r.ImportValueUSD,
			LPIScore:              r.LPIScore,
			ConsumptionPct:        r.Consumption,
			NormImports:           r.Norm.Imports,
			NormConsumption:       r.Norm.Consumption,
			NormLPI:               r.Norm.LPI,
			NormWGIMean:           stat.Mean(r.Norm.WGI[:], nil),
			BaseRiskScore:         r.BaseRiskScore,
			CountryCommodityShare: r.CountryCommodityShare,
			AdjustedRiskScore:     r.AdjustedRiskScore,
			RiskPercentage:        r.RiskPercentage,
		})
	}
	return out
}

func writeRanking(w io.Writer, format string, out rankingOutput) error {
	switch format {
	case "json":
		return writeJSON(w, out)
	case "yaml":
		return writeYAML(w, out)
	case "csv":
		rows := make([][]string, 0, len(out.Countries))
		for i, c := range out.Countries {
			rows = append(rows, []string{strconv.Itoa(i + 1), c.Country, formatPct(c.RiskPercentage)})
		}
		return writeCSV(w, []string{"rank", "country", "risk_percentage"}, rows)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(tw, "%s %d\n", out.Commodity, out.Year)
		_, _ = fmt.Fprintln(tw, "RANK\tCOUNTRY\tRISK %")
		_, _ = fmt.Fprintln(tw, "----\t-------\t------")
		for i, c := range out.Countries {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, c.Country, formatPct(c.RiskPercentage))
		}
		return eris.Wrap(tw.Flush(), "score: write table")
	default:
		return eris.Errorf("score: unsupported format %q", format)
	}
}

func writeExplain(w io.Writer, format string, out explainOutput) error {
	switch format {
	case "json":
		return writeJSON(w, out)
	case "yaml":
		return writeYAML(w, out)
	case "csv":
		header := []string{
			"rank", "country", "import_value_usd", "lpi_score", "consumption_pct",
			"norm_imports", "norm_consumption", "norm_lpi", "norm_wgi_mean",
			"base_risk_score", "country_commodity_share", "adjusted_risk_score", "risk_percentage",
		}
		rows := make([][]string, 0, len(out.Countries))
		for i, r := range out.Countries {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				r.Country,
				formatFloat(r.ImportValueUSD),
				formatFloat(r.LPIScore),
				formatOptional(r.ConsumptionPct),
				formatFloat(r.NormImports),
				formatFloat(r.NormConsumption),
				formatFloat(r.NormLPI),
				formatFloat(r.NormWGIMean),
				formatFloat(r.BaseRiskScore),
				formatFloat(r.CountryCommodityShare),
				formatFloat(r.AdjustedRiskScore),
				formatPct(r.RiskPercentage),
			})
		}
		return writeCSV(w, header, rows)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		_, _ = fmt.Fprintf(tw, "%s %d\n", out.Commodity, out.Year)
		_, _ = fmt.Fprintln(tw, "RANK\tCOUNTRY\tIMPORTS\tLPI\tCONS %\tBASE\tSHARE\tADJUSTED\tRISK %\t")
		for i, r := range out.Countries {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%.0f\t%.2f\t%s\t%.4f\t%.4f\t%.4f\t%s\t\n",
				i+1, r.Country, r.ImportValueUSD, r.LPIScore, formatOptional(r.ConsumptionPct),
				r.BaseRiskScore, r.CountryCommodityShare, r.AdjustedRiskScore, formatPct(r.RiskPercentage))
		}
		return eris.Wrap(tw.Flush(), "score: write table")
	default:
		return eris.Errorf("score: unsupported format %q", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "score: write json")
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "score: write yaml")
	}
	return eris.Wrap(enc.Close(), "score: close yaml")
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}
	if err := cw.WriteAll(rows); err != nil {
		return eris.Wrap(err, "score: write CSV rows")
	}
	return nil
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
