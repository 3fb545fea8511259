package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/supply-risk/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	built := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:           "abc12345-6789-0000-0000-000000000000",
			BuiltAt:      built,
			Rows:         120,
			Groups:       8,
			SourceDigest: "0123456789abcdef0123456789abcdef",
		},
		{
			ID:      "def12345-6789-0000-0000-000000000000",
			BuiltAt: built.Add(-time.Hour),
			Rows:    0,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "DIGEST")
	assert.Contains(t, output, "abc12345-6789-0000-0000-000000000000")
	assert.Contains(t, output, "2025-06-15 10:30:00")
	assert.Contains(t, output, "2025-06-15 09:30:00")
	assert.Contains(t, output, "120")
	assert.Contains(t, output, "0123456789ab")
	assert.NotContains(t, output, "0123456789abc")
}

func TestFormatRunRows(t *testing.T) {
	var buf bytes.Buffer
	formatRunRows(&buf, []model.RiskRow{
		{Country: "Chile", Year: 2022, Commodity: "Copper", RiskPercentage: 60},
		{Country: "Peru", Year: 2022, Commodity: "Copper", RiskPercentage: 40.5},
	})

	output := buf.String()
	assert.Contains(t, output, "COMMODITY")
	assert.Contains(t, output, "Chile")
	assert.Contains(t, output, "60.00")
	assert.Contains(t, output, "40.50")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 12))
	assert.Equal(t, "abcd", truncate("abcdefgh", 4))
	assert.Equal(t, "", truncate("", 4))
}
