package glm

import (
	"math"

	"github.com/sourcegraph/conc/panics"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/parallel"
)

// Factorization is the merged, rank-revealing QR of one IRLS step.
type Factorization struct {
	// R is the p×p upper-triangular factor in pivoted column order. Entries
	// below the diagonal are zero. The leading Rank columns are the kept
	// predictors in their original order; aliased ones follow.
	R *mat.Dense
	// Pivot maps factor columns to predictors: column j of R belongs to
	// predictor Pivot[j]. Indices are 0-based.
	Pivot []int
	// F is the p×1 projected working response Qᵀz.
	F *mat.Dense
	// Rank is the number of columns whose diagonal passed the rank test.
	Rank int
}

// blockFactor is the compact result of factoring one block or one group of
// merged blocks: a p×p upper-triangular factor and its projected response.
type blockFactor struct {
	R []float64
	F []float64
	// Rows is the number of good observations behind the factor.
	Rows int
}

// guardKernel runs a gonum call and turns its panics into a KernelError.
func guardKernel(op string, f func()) error {
	if r := panics.Try(f); r != nil {
		return apperrors.NewKernelError(op, r.AsError())
	}
	return nil
}

// workspace returns a work slice sized from a LAPACK workspace query.
func workspace(query func(work []float64), minimum int) []float64 {
	w := make([]float64, 1)
	query(w)
	return make([]float64, max(int(w[0]), minimum, 1))
}

// applyQT overwrites c with Qᵀc, where Q is stored as reflectors in a and tau.
func applyQT(a blas64.General, tau []float64, c blas64.General) {
	work := workspace(func(w []float64) {
		lapack64.Ormqr(blas.Left, blas.Trans, a, tau, c, w, -1)
	}, c.Cols)
	lapack64.Ormqr(blas.Left, blas.Trans, a, tau, c, work, len(work))
}

// upperFactor copies the leading min(rows, p) rows of the upper triangle of a
// into a zero-padded p×p factor, and the matching entries of c into f.
func upperFactor(a blas64.General, c []float64, p int) blockFactor {
	bf := blockFactor{R: make([]float64, p*p), F: make([]float64, p), Rows: a.Rows}
	k := min(a.Rows, p)
	for i := 0; i < k; i++ {
		copy(bf.R[i*p+i:(i+1)*p], a.Data[i*a.Stride+i:i*a.Stride+p])
	}
	copy(bf.F, c[:k])
	return bf
}

// factorWorkUnit reduces a work unit to its p×p triangular factor with an
// unpivoted QR and projects the weighted response onto it. A block with no
// good rows yields a zero factor, which contributes nothing to the merge.
func factorWorkUnit(wu WorkUnit) (blockFactor, error) {
	p := wu.P
	if wu.Rows == 0 {
		return blockFactor{R: make([]float64, p*p), F: make([]float64, p)}, nil
	}
	a := blas64.General{Rows: wu.Rows, Cols: p, Stride: p, Data: wu.X}
	c := blas64.General{Rows: wu.Rows, Cols: 1, Stride: 1, Data: wu.Z}
	tau := make([]float64, min(wu.Rows, p))

	err := guardKernel("geqrf", func() {
		work := workspace(func(w []float64) { lapack64.Geqrf(a, tau, w, -1) }, p)
		lapack64.Geqrf(a, tau, work, len(work))
	})
	if err != nil {
		return blockFactor{}, err
	}
	if err := guardKernel("ormqr", func() { applyQT(a, tau, c) }); err != nil {
		return blockFactor{}, err
	}
	return upperFactor(a, wu.Z, p), nil
}

// stack lays the factors on top of each other as a (len·p)×p matrix and a
// matching response vector.
func stack(factors []blockFactor, p int) (blas64.General, blas64.General, int) {
	rows := len(factors) * p
	a := blas64.General{Rows: rows, Cols: p, Stride: p, Data: make([]float64, 0, rows*p)}
	c := blas64.General{Rows: rows, Cols: 1, Stride: 1, Data: make([]float64, 0, rows)}
	good := 0
	for _, f := range factors {
		a.Data = append(a.Data, f.R...)
		c.Data = append(c.Data, f.F...)
		good += f.Rows
	}
	return a, c, good
}

// mergeFactors reduces a group of factors to one with an unpivoted QR. It is
// used by the intermediate levels of a multi-level reduction.
func mergeFactors(factors []blockFactor, p int) (blockFactor, error) {
	a, c, good := stack(factors, p)
	tau := make([]float64, p)
	err := guardKernel("geqrf", func() {
		work := workspace(func(w []float64) { lapack64.Geqrf(a, tau, w, -1) }, p)
		lapack64.Geqrf(a, tau, work, len(work))
		applyQT(a, tau, c)
	})
	if err != nil {
		return blockFactor{}, err
	}
	bf := upperFactor(a, c.Data, p)
	bf.Rows = good
	return bf, nil
}

// mergePivoted merges the stacked factors with an unpivoted QR, then moves
// collinear columns behind the others with limitPivots. Columns that pass the
// rank test keep predictor order, so the aliased set depends on the design
// and not on how the rows were blocked.
func mergePivoted(factors []blockFactor, p int, rankTol float64) (Factorization, error) {
	bf, err := mergeFactors(factors, p)
	if err != nil {
		return Factorization{}, err
	}
	pivot, rank, err := limitPivots(bf.R, bf.F, p, rankTol)
	if err != nil {
		return Factorization{}, err
	}
	return Factorization{
		R:     mat.NewDense(p, p, bf.R),
		Pivot: pivot,
		F:     mat.NewDense(p, 1, bf.F),
		Rank:  rank,
	}, nil
}

// limitPivots applies limited column pivoting to the p×p upper-triangular
// factor r and its projected response f, in place. Columns are visited in
// order; column l is aliased when |r[l,l]|, its norm after projection on the
// kept columns before it, is below tol times its original norm. An aliased
// column is rotated to the end and the trailing block is triangularized
// again. Zero columns are measured against a norm of 1.
//
// Returns the column order and the number of kept columns.
func limitPivots(r, f []float64, p int, tol float64) ([]int, int, error) {
	pivot := make([]int, p)
	norms := make([]float64, p)
	for j := range pivot {
		pivot[j] = j
		norms[j] = blas64.Nrm2(blas64.Vector{N: p, Inc: p, Data: r[j:]})
		if norms[j] == 0 {
			norms[j] = 1
		}
	}

	rank := p
	for l := 0; l < rank; {
		if math.Abs(r[l*p+l]) >= tol*norms[pivot[l]] {
			l++
			continue
		}
		for i := 0; i < p; i++ {
			row := r[i*p : (i+1)*p]
			v := row[l]
			copy(row[l:], row[l+1:])
			row[p-1] = v
		}
		moved := pivot[l]
		copy(pivot[l:], pivot[l+1:])
		pivot[p-1] = moved
		rank--
		if err := retriangularize(r, f, p, l); err != nil {
			return nil, 0, err
		}
	}
	return pivot, rank, nil
}

// retriangularize restores the upper-triangular form of rows and columns l
// onward of r after a column rotation, and applies the same reflections to
// f.
func retriangularize(r, f []float64, p, l int) error {
	m := p - l
	a := blas64.General{Rows: m, Cols: m, Stride: p, Data: r[l*p+l:]}
	c := blas64.General{Rows: m, Cols: 1, Stride: 1, Data: f[l:]}
	tau := make([]float64, m)
	err := guardKernel("geqrf", func() {
		work := workspace(func(w []float64) { lapack64.Geqrf(a, tau, w, -1) }, m)
		lapack64.Geqrf(a, tau, work, len(work))
		applyQT(a, tau, c)
	})
	if err != nil {
		return err
	}
	for i := 1; i < m; i++ {
		for j := 0; j < i; j++ {
			a.Data[i*p+j] = 0
		}
	}
	return nil
}

// reduceFactors merges the per-block factors into the global factorization.
//
// With fanIn < 2 the stacked block factors go straight into the final merge.
// Otherwise groups of fanIn factors are merged in parallel on exec, level
// after level, until at most fanIn remain; the last level always ends with
// the rank test.
func reduceFactors(exec *parallel.Executor, factors []blockFactor, p, fanIn int, rankTol float64) (Factorization, error) {
	for fanIn > 1 && len(factors) > fanIn {
		groups := (len(factors) + fanIn - 1) / fanIn
		futures := make([]*parallel.Future[blockFactor], groups)
		for g := 0; g < groups; g++ {
			group := factors[g*fanIn : min((g+1)*fanIn, len(factors))]
			futures[g] = parallel.Submit(exec, func() (blockFactor, error) {
				return mergeFactors(group, p)
			})
		}
		merged, err := parallel.JoinAll(futures)
		if err != nil {
			return Factorization{}, err
		}
		blockTasks.WithLabelValues("merge").Add(float64(groups))
		factors = merged
	}
	return mergePivoted(factors, p, rankTol)
}
