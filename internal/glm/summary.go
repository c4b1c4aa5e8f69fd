package glm

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// CoefficientSummary is one row of a coefficient table.
type CoefficientSummary struct {
	Estimate float64
	StdError float64
	// Statistic is Estimate/StdError: a z value when the dispersion is
	// fixed, a t value otherwise.
	Statistic float64
	// PValue is two-sided. It is NaN when no residual degrees of freedom
	// remain for a t test.
	PValue  float64
	Aliased bool
}

// ResidualDF returns the residual degrees of freedom of res.
func (r *Result) ResidualDF() int {
	return r.GoodObservations - r.Rank
}

// Summarize builds the coefficient table of res. Aliased coefficients, and
// every coefficient of a fit whose dispersion could not be estimated, carry
// NaN in the inferential columns.
func Summarize(res *Result) []CoefficientSummary {
	aliased := make([]bool, len(res.Coefficients))
	for j := res.Rank; j < len(res.Factorization.Pivot); j++ {
		aliased[res.Factorization.Pivot[j]] = true
	}
	df := float64(res.ResidualDF())
	out := make([]CoefficientSummary, len(res.Coefficients))
	for i, beta := range res.Coefficients {
		se := res.StdErrors[i]
		row := CoefficientSummary{Estimate: beta, StdError: se, Aliased: aliased[i]}
		row.Statistic = beta / se
		switch {
		case math.IsNaN(se):
			row.Statistic = math.NaN()
			row.PValue = math.NaN()
		case res.DispersionFixed:
			row.PValue = 2 * distuv.UnitNormal.CDF(-math.Abs(row.Statistic))
		case df > 0:
			t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
			row.PValue = 2 * t.CDF(-math.Abs(row.Statistic))
		default:
			row.PValue = math.NaN()
		}
		out[i] = row
	}
	return out
}
