package glm

import (
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// linearData builds n observations of an intercept plus p-1 uniform
// predictors, with y = x·beta + noise.
func linearData(n int, beta []float64, noise float64, seed uint64) (Design, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	p := len(beta)
	data := make([]float64, 0, n*p)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, p)
		row[0] = 1
		for j := 1; j < p; j++ {
			row[j] = rng.Float64()*4 - 2
		}
		for j, b := range beta {
			y[i] += row[j] * b
		}
		y[i] += noise * rng.NormFloat64()
		data = append(data, row...)
	}
	return Design{P: p, N: n, Data: data}, y
}

// poissonData draws counts with log(mu) = x·beta.
func poissonData(n int, beta []float64, seed uint64) (Design, []float64) {
	x, _ := linearData(n, beta, 0, seed)
	rng := rand.New(rand.NewPCG(seed+1, seed+2))
	y := make([]float64, n)
	for i := range y {
		eta := 0.0
		for j, b := range beta {
			eta += x.Observation(i)[j] * b
		}
		y[i] = float64(poissonDraw(rng, math.Exp(eta)))
	}
	return x, y
}

// binomialData draws 0/1 responses with logit(mu) = x·beta.
func binomialData(n int, beta []float64, seed uint64) (Design, []float64) {
	x, _ := linearData(n, beta, 0, seed)
	rng := rand.New(rand.NewPCG(seed+3, seed+4))
	y := make([]float64, n)
	for i := range y {
		eta := 0.0
		for j, b := range beta {
			eta += x.Observation(i)[j] * b
		}
		if rng.Float64() < 1/(1+math.Exp(-eta)) {
			y[i] = 1
		}
	}
	return x, y
}

func poissonDraw(rng *rand.Rand, lambda float64) int {
	l := math.Exp(-lambda)
	k, p := 0, 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

// referenceIRLS is a dense, single-threaded IRLS on the normal equations,
// run for a fixed number of iterations.
func referenceIRLS(t *testing.T, prob Problem, fam Family, iterations int) []float64 {
	t.Helper()
	n, p := prob.X.N, prob.X.P
	eta := make([]float64, n)
	for i := range eta {
		eta[i] = fam.Initialize(prob.Y[i], prob.Weights[i])
	}
	var beta []float64
	for it := 0; it < iterations; it++ {
		xtwx := mat.NewDense(p, p, nil)
		xtwz := mat.NewVecDense(p, nil)
		for i := 0; i < n; i++ {
			if prob.Weights[i] == 0 {
				continue
			}
			mu := fam.LinkInv(eta[i])
			me := fam.MuEta(eta[i])
			z := eta[i] - prob.Offset[i] + (prob.Y[i]-mu)/me
			w := prob.Weights[i] * me * me / fam.Variance(mu)
			xi := prob.X.Observation(i)
			for a := 0; a < p; a++ {
				xtwz.SetVec(a, xtwz.AtVec(a)+w*xi[a]*z)
				for b := 0; b < p; b++ {
					xtwx.Set(a, b, xtwx.At(a, b)+w*xi[a]*xi[b])
				}
			}
		}
		var sol mat.VecDense
		if err := sol.SolveVec(xtwx, xtwz); err != nil {
			t.Fatalf("reference solve failed: %v", err)
		}
		beta = make([]float64, p)
		for j := range beta {
			beta[j] = sol.AtVec(j)
		}
		for i := range eta {
			eta[i] = prob.Offset[i]
			for j, b := range beta {
				eta[i] += prob.X.Observation(i)[j] * b
			}
		}
	}
	return beta
}

// olsReference solves min ||y - Xb|| with a dense QR.
func olsReference(t *testing.T, x Design, y []float64) []float64 {
	t.Helper()
	a := mat.NewDense(x.N, x.P, append([]float64(nil), x.Data...))
	b := mat.NewVecDense(x.N, append([]float64(nil), y...))
	var qr mat.QR
	qr.Factorize(a)
	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, b); err != nil {
		t.Fatalf("OLS reference failed: %v", err)
	}
	out := make([]float64, x.P)
	for j := range out {
		out[j] = sol.AtVec(j)
	}
	return out
}

// countingFamily wraps a family and counts calls into it, to observe whether
// any block task ran.
type countingFamily struct {
	Family
	calls atomic.Int64
}

func (c *countingFamily) Initialize(y, w float64) float64 {
	c.calls.Add(1)
	return c.Family.Initialize(y, w)
}

func (c *countingFamily) LinkInv(eta float64) float64 {
	c.calls.Add(1)
	return c.Family.LinkInv(eta)
}

func mustFamily(t *testing.T, name string) Family {
	t.Helper()
	f, err := LookupFamily(name)
	if err != nil {
		t.Fatalf("family %s: %v", name, err)
	}
	return f
}

func approxEqual(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func assertCoefficients(t *testing.T, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d coefficients, got %d", len(want), len(got))
	}
	for j := range want {
		if !approxEqual(got[j], want[j], tol) {
			t.Errorf("coefficient %d: got %.12g, want %.12g", j, got[j], want[j])
		}
	}
}
