package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

// normalizeKey trims whitespace and applies Unicode NFC so the same country
// or commodity name read from a CSV and from a workbook compares equal.
func normalizeKey(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// parseYear parses a year cell. Spreadsheets may render integral years as
// "2022.0"; anything non-integral is rejected.
func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, eris.New("empty year")
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("invalid year %q", s)
	}
	return int(f), nil
}

// parseFloatPtr parses a numeric cell, returning nil for empty, sentinel
// ("..", "NA", "-") or otherwise unparseable values. Thousands separators
// are stripped.
func parseFloatPtr(s string) *float64 {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "..", "na", "n/a", "-", "nan":
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
