// Package risk merges normalized source records, scales features and scores
// country supply risk per (commodity, year) group.
package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Weights are the coefficients of the base risk score. The WGI weight applies
// to the mean of the six normalized governance features.
type Weights struct {
	Imports     float64
	Consumption float64
	LPI         float64
	WGI         float64
}

// DefaultWeights are the fixed scoring weights (sum = 1).
var DefaultWeights = Weights{
	Imports:     0.3,
	Consumption: 0.2,
	LPI:         0.1,
	WGI:         0.4,
}

// weightTolerance bounds |Sum - 1|.
const weightTolerance = 1e-9

// Sum returns the sum of all weights.
func (w Weights) Sum() float64 {
	return w.Imports + w.Consumption + w.LPI + w.WGI
}

// ValidateWeights checks that every weight is non-negative and that they sum to 1.
func ValidateWeights(w Weights) error {
	var errs []string

	for _, c := range []struct {
		name string
		v    float64
	}{
		{"imports", w.Imports},
		{"consumption", w.Consumption},
		{"lpi", w.LPI},
		{"wgi", w.WGI},
	} {
		if c.v < 0 || math.IsNaN(c.v) {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", c.name))
		}
	}

	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %g", sum))
	}

	if len(errs) > 0 {
		return eris.Errorf("risk: weight validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
