package glm

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/agbru/parglm/internal/errors"
)

// ErrSingularFactor is the cause of a KernelError raised when a triangular
// solve or inversion meets a zero diagonal.
var ErrSingularFactor = errors.New("singular triangular factor")

// ErrNoInformation is the cause of a KernelError raised when the merged
// factor has rank zero, i.e. no observation carries information.
var ErrNoInformation = errors.New("no informative observations: every row is degenerate or the design is zero")

// leading returns the leading k×k upper triangle of f.R.
func leading(f Factorization, k int) blas64.Triangular {
	raw := f.R.RawMatrix()
	return blas64.Triangular{Uplo: blas.Upper, Diag: blas.NonUnit, N: k, Stride: raw.Stride, Data: raw.Data}
}

// SolveCoefficients recovers the coefficients from a factorization.
//
// On the leading rank×rank block R_k it forms rhs = R_kᵀ·F_k, solves
// R_kᵀ·u = rhs and then R_k·γ = u, and scatters γ back through the pivot.
// Coefficients outside the leading block are aliased and set to zero.
//
// Returns:
//   - []float64: The coefficients in predictor order.
//   - error: A KernelError if the rank is zero or a solve fails.
func SolveCoefficients(f Factorization) ([]float64, error) {
	p := len(f.Pivot)
	k := f.Rank
	if k == 0 {
		return nil, apperrors.NewKernelError("rank", ErrNoInformation)
	}
	rk := leading(f, k)
	rhs := make([]float64, k)
	for j := range rhs {
		rhs[j] = f.F.At(j, 0)
	}
	b := blas64.General{Rows: k, Cols: 1, Stride: 1, Data: rhs}

	var ok bool
	err := guardKernel("trtrs", func() {
		blas64.Trmv(blas.Trans, rk, blas64.Vector{N: k, Inc: 1, Data: rhs})
		ok = lapack64.Trtrs(blas.Trans, rk, b) && lapack64.Trtrs(blas.NoTrans, rk, b)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewKernelError("trtrs", ErrSingularFactor)
	}

	beta := make([]float64, p)
	for j := 0; j < k; j++ {
		beta[f.Pivot[j]] = rhs[j]
	}
	return beta, nil
}

// CrossProduct returns RᵀR, the weighted cross-product XᵀWX of the last
// IRLS step, with rows and columns in pivoted order.
func CrossProduct(f Factorization) (*mat.SymDense, error) {
	p := len(f.Pivot)
	c := blas64.Symmetric{Uplo: blas.Upper, N: p, Stride: p, Data: make([]float64, p*p)}
	err := guardKernel("syrk", func() {
		blas64.Syrk(blas.Trans, 1, f.R.RawMatrix(), 0, c)
	})
	if err != nil {
		return nil, err
	}
	return mat.NewSymDense(p, c.Data), nil
}

// UnscaledCovariance returns diag((R_kᵀR_k)⁻¹) mapped back to predictor
// order. Aliased coefficients get NaN.
func UnscaledCovariance(f Factorization) ([]float64, error) {
	p := len(f.Pivot)
	k := f.Rank
	diag := make([]float64, p)
	for i := range diag {
		diag[i] = math.NaN()
	}
	if k == 0 {
		return diag, nil
	}

	// Invert R_k in a dense k×k copy whose lower triangle stays zero.
	inv := make([]float64, k*k)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			inv[i*k+j] = f.R.At(i, j)
		}
	}
	tri := blas64.Triangular{Uplo: blas.Upper, Diag: blas.NonUnit, N: k, Stride: k, Data: inv}
	cov := blas64.Symmetric{Uplo: blas.Upper, N: k, Stride: k, Data: make([]float64, k*k)}

	var ok bool
	err := guardKernel("trtri", func() {
		ok = lapack64.Trtri(tri)
		if ok {
			// (R_kᵀR_k)⁻¹ = R_k⁻¹·R_k⁻ᵀ
			blas64.Syrk(blas.NoTrans, 1, blas64.General{Rows: k, Cols: k, Stride: k, Data: inv}, 0, cov)
		}
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewKernelError("trtri", ErrSingularFactor)
	}
	for j := 0; j < k; j++ {
		diag[f.Pivot[j]] = cov.Data[j*k+j]
	}
	return diag, nil
}

// standardErrors scales the unscaled covariance diagonal by the dispersion.
func standardErrors(unscaled []float64, dispersion float64) []float64 {
	se := make([]float64, len(unscaled))
	for i, v := range unscaled {
		se[i] = math.Sqrt(dispersion * v)
	}
	return se
}
