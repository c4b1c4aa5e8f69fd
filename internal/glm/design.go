package glm

import (
	apperrors "github.com/agbru/parglm/internal/errors"
)

// Design is a dense p×n predictor matrix. Observation i occupies the
// contiguous slice Data[i*P:(i+1)*P], so any row range is itself a
// row-major (end-start)×P matrix. A Design is never written during a fit.
type Design struct {
	P    int
	N    int
	Data []float64
}

// NewDesign wraps data as a p×n design.
func NewDesign(p, n int, data []float64) (Design, error) {
	if len(data) != p*n {
		return Design{}, apperrors.NewDimensionError("x", p*n, len(data))
	}
	return Design{P: p, N: n, Data: data}, nil
}

// DesignFromRows builds a design from one slice per observation. All rows
// must have the same length.
func DesignFromRows(rows [][]float64) (Design, error) {
	if len(rows) == 0 {
		return Design{}, nil
	}
	p := len(rows[0])
	data := make([]float64, 0, p*len(rows))
	for _, row := range rows {
		if len(row) != p {
			return Design{}, apperrors.NewDimensionError("x row", p, len(row))
		}
		data = append(data, row...)
	}
	return Design{P: p, N: len(rows), Data: data}, nil
}

// Observation returns the predictor values of observation i.
func (d Design) Observation(i int) []float64 {
	return d.Data[i*d.P : (i+1)*d.P]
}

// Rows returns observations [start, end) as a row-major slice.
func (d Design) Rows(start, end int) []float64 {
	return d.Data[start*d.P : end*d.P]
}

// Problem holds the read-only inputs of one fit.
type Problem struct {
	X       Design
	Y       []float64
	Weights []float64
	Offset  []float64
	// Beta0 is the reference coefficient vector. IRLS starts from the
	// family's Initialize values, so Beta0 only serves as the "old"
	// coefficients of the first iteration record.
	Beta0 []float64
}

// NewProblem builds a problem with unit weights, zero offset and zero
// starting coefficients.
func NewProblem(x Design, y []float64) Problem {
	weights := make([]float64, x.N)
	for i := range weights {
		weights[i] = 1
	}
	return Problem{
		X:       x,
		Y:       y,
		Weights: weights,
		Offset:  make([]float64, x.N),
		Beta0:   make([]float64, x.P),
	}
}

// Validate checks every input length against the design. It runs before any
// work is dispatched.
func (p Problem) Validate() error {
	if p.X.P < 1 {
		return apperrors.NewValidationError("x", "design must have at least one predictor", p.X.P)
	}
	if p.X.N < 1 {
		return apperrors.NewValidationError("x", "design must have at least one observation", p.X.N)
	}
	if len(p.X.Data) != p.X.P*p.X.N {
		return apperrors.NewDimensionError("x", p.X.P*p.X.N, len(p.X.Data))
	}
	if len(p.Beta0) != p.X.P {
		return apperrors.NewDimensionError("beta0", p.X.P, len(p.Beta0))
	}
	checks := []struct {
		field string
		v     []float64
	}{
		{"y", p.Y},
		{"weights", p.Weights},
		{"offset", p.Offset},
	}
	for _, c := range checks {
		if len(c.v) != p.X.N {
			return apperrors.NewDimensionError(c.field, p.X.N, len(c.v))
		}
	}
	return nil
}
