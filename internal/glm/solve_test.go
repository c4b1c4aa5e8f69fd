package glm

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	apperrors "github.com/agbru/parglm/internal/errors"
)

func TestSolveCoefficients_KnownSystem(t *testing.T) {
	t.Parallel()
	// R = [[2, 1], [0, 4]], f = [6, 8] gives R·β = f with β = (2, 2), but
	// the pivot swaps the two predictors.
	f := Factorization{
		R:     mat.NewDense(2, 2, []float64{2, 1, 0, 4}),
		F:     mat.NewDense(2, 1, []float64{6, 8}),
		Pivot: []int{1, 0},
		Rank:  2,
	}
	beta, err := SolveCoefficients(f)
	if err != nil {
		t.Fatalf("SolveCoefficients failed: %v", err)
	}
	assertCoefficients(t, beta, []float64{2, 2}, 1e-12)

	f.F = mat.NewDense(2, 1, []float64{5, 4})
	beta, err = SolveCoefficients(f)
	if err != nil {
		t.Fatalf("SolveCoefficients failed: %v", err)
	}
	// γ = (2, 1) in pivoted order, so predictor 1 gets 2 and predictor 0 gets 1.
	assertCoefficients(t, beta, []float64{1, 2}, 1e-12)
}

func TestSolveCoefficients_Aliased(t *testing.T) {
	t.Parallel()
	f := Factorization{
		R:     mat.NewDense(3, 3, []float64{3, 1, 1, 0, 2, 2, 0, 0, 0}),
		F:     mat.NewDense(3, 1, []float64{9, 4, 0}),
		Pivot: []int{2, 0, 1},
		Rank:  2,
	}
	beta, err := SolveCoefficients(f)
	if err != nil {
		t.Fatalf("SolveCoefficients failed: %v", err)
	}
	if beta[1] != 0 {
		t.Errorf("aliased coefficient = %g, want 0", beta[1])
	}
	// Leading block [[3,1],[0,2]]·γ = (9,4) gives γ = (7/3, 2).
	assertCoefficients(t, beta, []float64{2, 0, 7.0 / 3}, 1e-12)
}

func TestSolveCoefficients_Failures(t *testing.T) {
	t.Parallel()
	zero := Factorization{
		R:     mat.NewDense(1, 1, []float64{0}),
		F:     mat.NewDense(1, 1, []float64{0}),
		Pivot: []int{0},
		Rank:  0,
	}
	_, err := SolveCoefficients(zero)
	if !errors.Is(err, ErrNoInformation) {
		t.Errorf("rank 0: expected ErrNoInformation, got %v", err)
	}

	singular := Factorization{
		R:     mat.NewDense(2, 2, []float64{1, 1, 0, 0}),
		F:     mat.NewDense(2, 1, []float64{1, 1}),
		Pivot: []int{0, 1},
		Rank:  2,
	}
	_, err = SolveCoefficients(singular)
	var kerr apperrors.KernelError
	if !errors.As(err, &kerr) || !errors.Is(err, ErrSingularFactor) {
		t.Errorf("zero diagonal: expected KernelError(ErrSingularFactor), got %v", err)
	}
}

func TestUnscaledCovariance(t *testing.T) {
	t.Parallel()
	// R = [[2, 1], [0, 4]] so RᵀR = [[4, 2], [2, 17]] with inverse
	// [[17, -2], [-2, 4]] / 64.
	f := Factorization{
		R:     mat.NewDense(2, 2, []float64{2, 1, 0, 4}),
		Pivot: []int{0, 1},
		Rank:  2,
	}
	diag, err := UnscaledCovariance(f)
	if err != nil {
		t.Fatalf("UnscaledCovariance failed: %v", err)
	}
	assertCoefficients(t, diag, []float64{17.0 / 64, 4.0 / 64}, 1e-12)

	cross, err := CrossProduct(f)
	if err != nil {
		t.Fatalf("CrossProduct failed: %v", err)
	}
	want := mat.NewSymDense(2, []float64{4, 2, 2, 17})
	if !mat.EqualApprox(cross, want, 1e-12) {
		t.Errorf("CrossProduct = %v, want %v", mat.Formatted(cross), mat.Formatted(want))
	}

	f.Rank = 1
	f.Pivot = []int{1, 0}
	diag, err = UnscaledCovariance(f)
	if err != nil {
		t.Fatalf("UnscaledCovariance failed: %v", err)
	}
	if !math.IsNaN(diag[0]) || !approxEqual(diag[1], 0.25, 1e-12) {
		t.Errorf("rank 1 diagonal = %v, want [NaN 0.25]", diag)
	}

	se := standardErrors([]float64{0.25, math.NaN()}, 4)
	if se[0] != 1 || !math.IsNaN(se[1]) {
		t.Errorf("standardErrors = %v, want [1 NaN]", se)
	}
}
