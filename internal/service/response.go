package service

import (
	"fmt"
	"math"

	"github.com/agbru/parglm/internal/glm"
	"github.com/agbru/parglm/pkg/models"
)

// optional maps NaN to nil so that it encodes as JSON null.
func optional(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// NewFitResponse converts a fit result into its JSON document.
//
// Parameters:
//   - res: The fit result.
//   - names: Predictor names; missing names default to x1..xp.
//   - n: The number of observations.
func NewFitResponse(res *glm.Result, names []string, n int) models.FitResponse {
	rows := glm.Summarize(res)
	coefs := make([]models.Coefficient, len(rows))
	for i, row := range rows {
		name := fmt.Sprintf("x%d", i+1)
		if i < len(names) {
			name = names[i]
		}
		coefs[i] = models.Coefficient{
			Name:      name,
			Estimate:  row.Estimate,
			StdError:  optional(row.StdError),
			Statistic: optional(row.Statistic),
			PValue:    optional(row.PValue),
			Aliased:   row.Aliased,
		}
	}

	resp := models.FitResponse{
		Family:           res.Family,
		Converged:        res.Converged,
		Iterations:       res.Iterations,
		Deviance:         res.Deviance,
		Dispersion:       optional(res.Dispersion),
		Rank:             res.Rank,
		Observations:     n,
		GoodObservations: res.GoodObservations,
		Coefficients:     coefs,
		Duration:         res.Duration.String(),
	}
	for _, rec := range res.Trace {
		resp.Trace = append(resp.Trace, models.IterationRecord{
			Iteration: rec.Iteration,
			Beta:      rec.Beta,
			DeltaNorm: rec.DeltaNorm,
			Deviance:  rec.Deviance,
		})
	}
	return resp
}
