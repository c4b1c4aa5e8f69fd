package glm

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
)

// ─────────────────────────────────────────────────────────────────────────────
// Block partitioning
// ─────────────────────────────────────────────────────────────────────────────

// DefaultBlockSize is the number of observations per block when none is set.
const DefaultBlockSize = 10000

// zeroEps is the smallest |d(mu)/d(eta)| for which a row still contributes to
// a weighted least-squares step.
const zeroEps = 1e-100

// BlockRange is the half-open observation range [Start, End) of block Index.
type BlockRange struct {
	Index int
	Start int
	End   int
}

// Len returns the number of observations in the range.
func (r BlockRange) Len() int { return r.End - r.Start }

// BlockRanges partitions [0, n) into contiguous ranges of blockSize
// observations. The last range holds the remainder.
func BlockRanges(n, blockSize int) []BlockRange {
	if n <= 0 || blockSize < 1 {
		return nil
	}
	ranges := make([]BlockRange, 0, (n+blockSize-1)/blockSize)
	for start := 0; start < n; start += blockSize {
		ranges = append(ranges, BlockRange{
			Index: len(ranges),
			Start: start,
			End:   min(start+blockSize, n),
		})
	}
	return ranges
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared fit state
// ─────────────────────────────────────────────────────────────────────────────

// fitState is the data every block task reads. eta and mu are owned by the
// driver; a block task writes only eta[r.Start:r.End] and mu[r.Start:r.End]
// for its own range r, so tasks never touch the same index.
type fitState struct {
	x       Design
	y       []float64
	weights []float64
	offset  []float64
	family  Family

	eta []float64
	mu  []float64
}

func newFitState(p Problem, fam Family) *fitState {
	return &fitState{
		x:       p.X,
		y:       p.Y,
		weights: p.Weights,
		offset:  p.Offset,
		family:  fam,
		eta:     make([]float64, p.X.N),
		mu:      make([]float64, p.X.N),
	}
}

// blockStats are the partial sums of one block's mean update.
type blockStats struct {
	Deviance float64
	// Pearson is Σ weight·(y−mu)²/V(mu) over rows with positive weight.
	Pearson float64
	// Positive counts rows with positive prior weight.
	Positive int
}

func (s blockStats) add(o blockStats) blockStats {
	return blockStats{
		Deviance: s.Deviance + o.Deviance,
		Pearson:  s.Pearson + o.Pearson,
		Positive: s.Positive + o.Positive,
	}
}

// sumStats adds block partials in slice order.
func sumStats(parts []blockStats) blockStats {
	var total blockStats
	for _, p := range parts {
		total = total.add(p)
	}
	return total
}

// updateBlock refreshes eta and mu on r and returns the block's partial sums.
// With beta == nil the linear predictor is seeded from the family's
// Initialize; otherwise eta = x·beta + offset.
func (s *fitState) updateBlock(r BlockRange, beta []float64) blockStats {
	eta := s.eta[r.Start:r.End]
	if beta == nil {
		for i := r.Start; i < r.End; i++ {
			s.eta[i] = s.family.Initialize(s.y[i], s.weights[i])
		}
	} else {
		copy(eta, s.offset[r.Start:r.End])
		x := blas64.General{Rows: r.Len(), Cols: s.x.P, Stride: s.x.P, Data: s.x.Rows(r.Start, r.End)}
		blas64.Gemv(blas.NoTrans, 1, x,
			blas64.Vector{N: len(beta), Inc: 1, Data: beta},
			1, blas64.Vector{N: len(eta), Inc: 1, Data: eta})
	}

	var st blockStats
	for i := r.Start; i < r.End; i++ {
		mu := s.family.LinkInv(s.eta[i])
		s.mu[i] = mu
		w := s.weights[i]
		st.Deviance += s.family.DevResids(s.y[i], mu, w)
		if w > 0 {
			res := s.y[i] - mu
			st.Pearson += w * res * res / s.family.Variance(mu)
			st.Positive++
		}
	}
	return st
}

// ─────────────────────────────────────────────────────────────────────────────
// Work units
// ─────────────────────────────────────────────────────────────────────────────

// WorkUnit is one block's weighted least-squares contribution: the good rows
// of the design scaled by their working weights, laid out observation-major,
// and the matching scaled working response.
type WorkUnit struct {
	Range BlockRange
	// Rows is the number of good rows kept.
	Rows int
	// P is the number of predictors.
	P int
	// X is the Rows×P row-major weighted design block.
	X []float64
	// Z is the weighted working response.
	Z []float64
	// Deviance is left at zero; deviance is computed by the mean update.
	Deviance float64
}

// generateWorkUnit builds the weighted block for r from the current eta and
// mu. Rows with non-positive weight or |d(mu)/d(eta)| below zeroEps are
// dropped silently.
func generateWorkUnit(s *fitState, r BlockRange) WorkUnit {
	p := s.x.P
	wu := WorkUnit{
		Range: r,
		P:     p,
		X:     make([]float64, 0, r.Len()*p),
		Z:     make([]float64, 0, r.Len()),
	}
	for i := r.Start; i < r.End; i++ {
		muEta := s.family.MuEta(s.eta[i])
		if !(s.weights[i] > 0) || math.Abs(muEta) < zeroEps {
			continue
		}
		variance := s.family.Variance(s.mu[i])
		z := (s.eta[i] - s.offset[i]) + (s.y[i]-s.mu[i])/muEta
		w := math.Sqrt(s.weights[i] * muEta * muEta / variance)

		n := len(wu.X)
		wu.X = wu.X[:n+p]
		floats.ScaleTo(wu.X[n:], w, s.x.Observation(i))
		wu.Z = append(wu.Z, w*z)
	}
	wu.Rows = len(wu.Z)
	return wu
}
