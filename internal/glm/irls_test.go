package glm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/agbru/parglm/internal/errors"
)

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

// TestFitParallel_GaussianScenario: 100 observations, 2 predictors, gaussian,
// tol=1e-8, 4 threads, 25 iterations max, blocks of 30.
func TestFitParallel_GaussianScenario(t *testing.T) {
	t.Parallel()
	x, y := linearData(100, []float64{1.5, -0.75}, 0.3, 42)

	res, err := FitParallel(context.Background(), x, y, "gaussian",
		make([]float64, 2), ones(100), make([]float64, 100),
		1e-8, 4, 25, false, 30)
	if err != nil {
		t.Fatalf("FitParallel failed: %v", err)
	}
	if !res.Converged {
		t.Error("expected convergence")
	}
	if res.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", res.Iterations)
	}
	assertCoefficients(t, res.Coefficients, olsReference(t, x, y), 1e-10)

	if res.Rank != 2 {
		t.Errorf("expected rank 2, got %d", res.Rank)
	}
	if len(res.Factorization.Pivot) != 2 {
		t.Errorf("expected 2 pivots, got %v", res.Factorization.Pivot)
	}
	if r, c := res.Factorization.R.Dims(); r != 2 || c != 2 {
		t.Errorf("expected a 2x2 R, got %dx%d", r, c)
	}
	if r, c := res.Factorization.F.Dims(); r != 2 || c != 1 {
		t.Errorf("expected a 2x1 F, got %dx%d", r, c)
	}
}

func TestFit_GaussianIdentityConvergesInOneIteration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		blockSize int
		threads   int
	}{
		{"single block", 1000, 1},
		{"many blocks", 17, 4},
		{"one row per block", 1, 3},
	}
	x, y := linearData(250, []float64{0.5, 2, -1}, 1, 7)
	want := olsReference(t, x, y)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := Fit(context.Background(), NewProblem(x, y), mustFamily(t, "gaussian"),
				Options{BlockSize: tt.blockSize, Threads: tt.threads, Trace: true})
			if err != nil {
				t.Fatalf("Fit failed: %v", err)
			}
			if !res.Converged || res.Iterations != 1 {
				t.Errorf("expected convergence in 1 iteration, got converged=%t iterations=%d",
					res.Converged, res.Iterations)
			}
			if len(res.Trace) != 2 {
				t.Errorf("expected one update and one confirming pass in the trace, got %d records", len(res.Trace))
			}
			assertCoefficients(t, res.Coefficients, want, 1e-10)
		})
	}
}

func TestFit_MatchesDenseReference(t *testing.T) {
	t.Parallel()
	px, py := poissonData(400, []float64{0.5, 0.3, -0.2}, 11)
	bx, by := binomialData(500, []float64{-0.3, 1.1, 0.4}, 12)

	tests := []struct {
		name   string
		family string
		x      Design
		y      []float64
	}{
		{"poisson log", "poisson", px, py},
		{"poisson sqrt", "poisson_sqrt", px, py},
		{"binomial logit", "binomial", bx, by},
		{"binomial probit", "binomial_probit", bx, by},
		{"binomial cloglog", "binomial_cloglog", bx, by},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fam := mustFamily(t, tt.family)
			prob := NewProblem(tt.x, tt.y)
			res, err := Fit(context.Background(), prob, fam, Options{Tolerance: 1e-12, BlockSize: 64, Threads: 4})
			if err != nil {
				t.Fatalf("Fit failed: %v", err)
			}
			if !res.Converged {
				t.Fatalf("expected convergence, got %d iterations", res.Iterations)
			}
			assertCoefficients(t, res.Coefficients, referenceIRLS(t, prob, fam, 40), 1e-7)
		})
	}
}

func TestFit_BlockwiseMatchesSingleBlock(t *testing.T) {
	t.Parallel()
	x, y := poissonData(300, []float64{1, -0.4, 0.25}, 5)
	prob := NewProblem(x, y)
	fam := mustFamily(t, "poisson")

	whole, err := Fit(context.Background(), prob, fam, Options{Tolerance: 1e-12, BlockSize: x.N, Threads: 1})
	if err != nil {
		t.Fatalf("single-block fit failed: %v", err)
	}
	for _, bs := range []int{1, 2, 3, 29, 100, 299} {
		res, err := Fit(context.Background(), prob, fam, Options{Tolerance: 1e-12, BlockSize: bs, Threads: 4})
		if err != nil {
			t.Fatalf("blockSize %d: %v", bs, err)
		}
		assertCoefficients(t, res.Coefficients, whole.Coefficients, 1e-8)
		if !approxEqual(res.Deviance, whole.Deviance, 1e-10) {
			t.Errorf("blockSize %d: deviance %.15g, want %.15g", bs, res.Deviance, whole.Deviance)
		}
	}
}

func TestFit_BlockSizeInvariance_PropertyBased(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	x, y := binomialData(180, []float64{0.2, -0.8, 0.5}, 99)
	prob := NewProblem(x, y)
	fam := mustFamily(t, "binomial")
	whole, err := Fit(context.Background(), prob, fam, Options{Tolerance: 1e-12, BlockSize: x.N, Threads: 1})
	if err != nil {
		t.Fatalf("reference fit failed: %v", err)
	}

	properties.Property("coefficients do not depend on the block size", prop.ForAll(
		func(blockSize, threads int) bool {
			res, err := Fit(context.Background(), prob, fam, Options{Tolerance: 1e-12, BlockSize: blockSize, Threads: threads})
			if err != nil {
				t.Logf("blockSize %d: %v", blockSize, err)
				return false
			}
			for j := range whole.Coefficients {
				if !approxEqual(res.Coefficients[j], whole.Coefficients[j], 1e-8) {
					t.Logf("blockSize %d: coefficient %d = %.12g, want %.12g",
						blockSize, j, res.Coefficients[j], whole.Coefficients[j])
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 200),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}

func TestFit_DevianceStabilizes(t *testing.T) {
	t.Parallel()
	x, y := poissonData(500, []float64{0.1, 0.6, -0.3}, 21)
	tol := 1e-9
	res, err := Fit(context.Background(), NewProblem(x, y), mustFamily(t, "poisson"),
		Options{Tolerance: tol, BlockSize: 50, Trace: true})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !res.Converged {
		t.Fatal("expected convergence")
	}
	n := len(res.Trace)
	if n < 2 {
		t.Fatalf("expected at least two trace records, got %d", n)
	}
	last, prev := res.Trace[n-1].Deviance, res.Trace[n-2].Deviance
	if !converged(last, prev, tol) {
		t.Errorf("final deviances %.15g and %.15g are not within tolerance", prev, last)
	}
	if last != res.Deviance {
		t.Errorf("result deviance %.15g differs from last trace record %.15g", res.Deviance, last)
	}
	for i, rec := range res.Trace {
		if rec.Iteration != i+1 {
			t.Errorf("record %d has iteration %d", i, rec.Iteration)
		}
	}
}

func TestDeviance_AccumulationOrderInvariance(t *testing.T) {
	t.Parallel()
	x, y := poissonData(1000, []float64{0.3, 0.2, 0.1}, 31)
	prob := NewProblem(x, y)
	st := newFitState(prob, mustFamily(t, "poisson"))
	ranges := BlockRanges(x.N, 37)

	parts := make([]blockStats, len(ranges))
	for i, r := range ranges {
		parts[i] = st.updateBlock(r, nil)
	}
	ordered := sumStats(parts)

	rng := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]blockStats(nil), parts...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		total := sumStats(shuffled)
		if !approxEqual(total.Deviance, ordered.Deviance, 1e-12) {
			t.Fatalf("trial %d: deviance %.17g vs %.17g", trial, total.Deviance, ordered.Deviance)
		}
		if total.Positive != ordered.Positive {
			t.Fatalf("trial %d: positive count %d vs %d", trial, total.Positive, ordered.Positive)
		}
	}
}

func TestFit_DevianceIsDeterministic(t *testing.T) {
	t.Parallel()
	x, y := poissonData(600, []float64{0.4, -0.1, 0.2}, 8)
	prob := NewProblem(x, y)
	fam := mustFamily(t, "poisson")

	first, err := Fit(context.Background(), prob, fam, Options{BlockSize: 13, Threads: 8})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Fit(context.Background(), prob, fam, Options{BlockSize: 13, Threads: 8})
		if err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		if again.Deviance != first.Deviance {
			t.Fatalf("run %d: deviance %.17g differs from %.17g", i, again.Deviance, first.Deviance)
		}
	}
}

func TestFit_ZeroWeightRowHasNoInfluence(t *testing.T) {
	t.Parallel()
	for _, famName := range []string{"gaussian", "poisson", "Gamma_log"} {
		t.Run(famName, func(t *testing.T) {
			t.Parallel()
			var x Design
			var y []float64
			switch famName {
			case "gaussian":
				x, y = linearData(80, []float64{1, 2}, 0.5, 3)
			default:
				x, y = poissonData(80, []float64{1, 0.3}, 3)
				for i := range y {
					y[i]++ // Gamma needs positive responses
				}
			}
			fam := mustFamily(t, famName)
			base, err := Fit(context.Background(), NewProblem(x, y), fam, Options{Tolerance: 1e-12, BlockSize: 16})
			if err != nil {
				t.Fatalf("base fit failed: %v", err)
			}

			// Insert an extreme observation with zero weight in the middle.
			mid := x.N / 2
			data := append([]float64(nil), x.Data[:mid*x.P]...)
			data = append(data, 1, 50)
			data = append(data, x.Data[mid*x.P:]...)
			yy := append(append(append([]float64(nil), y[:mid]...), 1000), y[mid:]...)
			withRow := NewProblem(Design{P: x.P, N: x.N + 1, Data: data}, yy)
			withRow.Weights[mid] = 0

			res, err := Fit(context.Background(), withRow, fam, Options{Tolerance: 1e-12, BlockSize: 16})
			if err != nil {
				t.Fatalf("fit with zero-weight row failed: %v", err)
			}
			assertCoefficients(t, res.Coefficients, base.Coefficients, 1e-10)
			if !approxEqual(res.Deviance, base.Deviance, 1e-10) {
				t.Errorf("deviance %.15g, want %.15g", res.Deviance, base.Deviance)
			}
			if res.GoodObservations != base.GoodObservations {
				t.Errorf("good observations %d, want %d", res.GoodObservations, base.GoodObservations)
			}
			if !approxEqual(res.Dispersion, base.Dispersion, 1e-10) {
				t.Errorf("dispersion %.15g, want %.15g", res.Dispersion, base.Dispersion)
			}
		})
	}
}

func TestFit_DimensionMismatchFailsBeforeDispatch(t *testing.T) {
	t.Parallel()
	x, y := linearData(20, []float64{1, 1, 1}, 0.1, 1)
	tests := []struct {
		name   string
		mutate func(p *Problem)
		field  string
	}{
		{"beta0 short", func(p *Problem) { p.Beta0 = p.Beta0[:2] }, "beta0"},
		{"y short", func(p *Problem) { p.Y = p.Y[:19] }, "y"},
		{"weights long", func(p *Problem) { p.Weights = append(p.Weights, 1) }, "weights"},
		{"offset missing", func(p *Problem) { p.Offset = nil }, "offset"},
		{"design data short", func(p *Problem) { p.X.Data = p.X.Data[:10] }, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prob := NewProblem(x, append([]float64(nil), y...))
			tt.mutate(&prob)
			fam := &countingFamily{Family: mustFamily(t, "gaussian")}

			_, err := Fit(context.Background(), prob, fam, Options{Threads: 2})
			if !errors.Is(err, apperrors.ErrDimensionMismatch) {
				t.Fatalf("expected a dimension mismatch, got %v", err)
			}
			var dimErr apperrors.DimensionError
			if !errors.As(err, &dimErr) || dimErr.Field != tt.field {
				t.Errorf("expected field %q, got %+v", tt.field, dimErr)
			}
			if calls := fam.calls.Load(); calls != 0 {
				t.Errorf("expected no family calls, got %d", calls)
			}
		})
	}
}

func TestFitParallel_Validation(t *testing.T) {
	t.Parallel()
	x, y := linearData(10, []float64{1, 2}, 0.1, 1)
	w, off, b0 := ones(10), make([]float64, 10), make([]float64, 2)

	tests := []struct {
		name      string
		family    string
		beta0     []float64
		tol       float64
		maxIter   int
		blockSize int
		check     func(error) bool
	}{
		{"zero tolerance", "gaussian", b0, 0, 25, 5, isValidation},
		{"no iterations", "gaussian", b0, 1e-8, 0, 5, isValidation},
		{"zero block size", "gaussian", b0, 1e-8, 25, 0, isValidation},
		{"unknown family", "weibull", b0, 1e-8, 25, 5, func(err error) bool { return errors.Is(err, ErrUnknownFamily) }},
		{"dimension before family lookup", "weibull", b0[:1], 1e-8, 25, 5, func(err error) bool {
			return errors.Is(err, apperrors.ErrDimensionMismatch)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := FitParallel(context.Background(), x, y, tt.family, tt.beta0, w, off,
				tt.tol, 2, tt.maxIter, false, tt.blockSize)
			if res != nil {
				t.Error("expected no result")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func isValidation(err error) bool {
	var v apperrors.ValidationError
	return errors.As(err, &v)
}

func TestFit_OptionValidation(t *testing.T) {
	t.Parallel()
	x, y := linearData(10, []float64{1, 2}, 0.1, 1)
	for _, opts := range []Options{
		{Tolerance: -1},
		{MaxIterations: -3},
		{BlockSize: -1},
		{Threads: -1},
		{MergeFanIn: -2},
		{RankTol: 2},
	} {
		if _, err := Fit(context.Background(), NewProblem(x, y), mustFamily(t, "gaussian"), opts); !isValidation(err) {
			t.Errorf("options %+v: expected a validation error, got %v", opts, err)
		}
	}
	if _, err := Fit(context.Background(), NewProblem(x, y), nil, Options{}); !isValidation(err) {
		t.Errorf("nil family: expected a validation error, got %v", err)
	}
}

func TestFit_IterationCapIsNotAnError(t *testing.T) {
	t.Parallel()
	x, y := poissonData(200, []float64{1, 0.5}, 17)
	res, err := Fit(context.Background(), NewProblem(x, y), mustFamily(t, "poisson"),
		Options{MaxIterations: 2, Tolerance: 1e-14})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if res.Converged {
		t.Error("expected no convergence within 2 iterations")
	}
	if res.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", res.Iterations)
	}
	if len(res.Coefficients) != 2 || math.IsNaN(res.Deviance) {
		t.Errorf("expected a best-effort result, got %+v", res)
	}
}

func TestFit_RankDeficientDesign(t *testing.T) {
	t.Parallel()
	base, y := linearData(120, []float64{1, 0.5}, 0.2, 4)
	// Third column duplicates twice the second.
	data := make([]float64, 0, base.N*3)
	for i := 0; i < base.N; i++ {
		row := base.Observation(i)
		data = append(data, row[0], row[1], 2*row[1])
	}
	x := Design{P: 3, N: base.N, Data: data}

	res, err := Fit(context.Background(), NewProblem(x, y), mustFamily(t, "gaussian"), Options{BlockSize: 25})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if res.Rank != 2 {
		t.Fatalf("expected rank 2, got %d", res.Rank)
	}
	aliased := 0
	for j, se := range res.StdErrors {
		if math.IsNaN(se) {
			aliased++
			if res.Coefficients[j] != 0 {
				t.Errorf("aliased coefficient %d should be 0, got %g", j, res.Coefficients[j])
			}
		}
	}
	if aliased != 1 {
		t.Errorf("expected one aliased coefficient, got %d (%v)", aliased, res.StdErrors)
	}
	if !math.IsNaN(res.StdErrors[2]) {
		t.Errorf("expected the later duplicate column to be aliased, got %v", res.StdErrors)
	}

	// Fitted values match the full-rank fit.
	ref := olsReference(t, base, y)
	for i := 0; i < x.N; i++ {
		got := mat.Dot(mat.NewVecDense(3, x.Observation(i)), mat.NewVecDense(3, res.Coefficients))
		want := mat.Dot(mat.NewVecDense(2, base.Observation(i)), mat.NewVecDense(2, ref))
		if !approxEqual(got, want, 1e-9) {
			t.Fatalf("observation %d: fitted %.12g, want %.12g", i, got, want)
		}
	}
}

func TestFit_AliasingIndependentOfBlocking(t *testing.T) {
	t.Parallel()
	const n = 40
	base, y := linearData(n, []float64{1, -1, 1}, 0.1, 21)
	// x = [1, a, b, a+b]
	data := make([]float64, 0, n*4)
	for i := 0; i < n; i++ {
		row := base.Observation(i)
		data = append(data, row[0], row[1], row[2], row[1]+row[2])
	}
	x := Design{P: 4, N: n, Data: data}
	ref := append(olsReference(t, base, y), 0)

	tests := []struct {
		blockSize, fanIn int
	}{
		{n, 0}, {25, 0}, {3, 0},
		{n, 2}, {25, 2}, {3, 2},
	}
	for _, tt := range tests {
		res, err := Fit(context.Background(), NewProblem(x, y), mustFamily(t, "gaussian"),
			Options{BlockSize: tt.blockSize, MergeFanIn: tt.fanIn})
		if err != nil {
			t.Fatalf("blockSize=%d fanIn=%d: %v", tt.blockSize, tt.fanIn, err)
		}
		if res.Rank != 3 {
			t.Fatalf("blockSize=%d fanIn=%d: rank %d, want 3", tt.blockSize, tt.fanIn, res.Rank)
		}
		if got := res.Factorization.Pivot; got[3] != 3 {
			t.Errorf("blockSize=%d fanIn=%d: pivot %v, want column 3 aliased", tt.blockSize, tt.fanIn, got)
		}
		for j := 0; j < 3; j++ {
			if math.IsNaN(res.StdErrors[j]) {
				t.Errorf("blockSize=%d fanIn=%d: coefficient %d unexpectedly aliased", tt.blockSize, tt.fanIn, j)
			}
		}
		if !math.IsNaN(res.StdErrors[3]) || res.Coefficients[3] != 0 {
			t.Errorf("blockSize=%d fanIn=%d: coefficient 3 = %g (se %g), want aliased 0",
				tt.blockSize, tt.fanIn, res.Coefficients[3], res.StdErrors[3])
		}
		assertCoefficients(t, res.Coefficients, ref, 1e-9)
	}
}

func TestFit_StandardErrorsMatchOLS(t *testing.T) {
	t.Parallel()
	x, y := linearData(150, []float64{2, -1, 0.5}, 0.7, 13)
	res, err := Fit(context.Background(), NewProblem(x, y), mustFamily(t, "gaussian"), Options{BlockSize: 40})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	a := mat.NewDense(x.N, x.P, x.Data)
	var xtx, inv mat.Dense
	xtx.Mul(a.T(), a)
	if err := inv.Inverse(&xtx); err != nil {
		t.Fatalf("inverse failed: %v", err)
	}
	rss := 0.0
	for i := 0; i < x.N; i++ {
		r := y[i] - mat.Dot(mat.NewVecDense(x.P, x.Observation(i)), mat.NewVecDense(x.P, res.Coefficients))
		rss += r * r
	}
	sigma2 := rss / float64(x.N-x.P)
	if !approxEqual(res.Dispersion, sigma2, 1e-9) {
		t.Errorf("dispersion %.12g, want %.12g", res.Dispersion, sigma2)
	}
	for j := 0; j < x.P; j++ {
		want := math.Sqrt(sigma2 * inv.At(j, j))
		if !approxEqual(res.StdErrors[j], want, 1e-8) {
			t.Errorf("std error %d: %.12g, want %.12g", j, res.StdErrors[j], want)
		}
	}
}

func TestFit_FixedDispersionFamilies(t *testing.T) {
	t.Parallel()
	x, y := binomialData(200, []float64{0, 1}, 2)
	res, err := Fit(context.Background(), NewProblem(x, y), mustFamily(t, "binomial"), Options{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if res.Dispersion != 1 {
		t.Errorf("binomial dispersion should be 1, got %g", res.Dispersion)
	}
}

func TestFit_MultiLevelMergeMatchesSingleLevel(t *testing.T) {
	t.Parallel()
	x, y := poissonData(400, []float64{0.2, 0.4, -0.3}, 23)
	prob := NewProblem(x, y)
	fam := mustFamily(t, "poisson")

	single, err := Fit(context.Background(), prob, fam, Options{Tolerance: 1e-12, BlockSize: 10})
	if err != nil {
		t.Fatalf("single-level fit failed: %v", err)
	}
	for _, fanIn := range []int{2, 3, 8} {
		multi, err := Fit(context.Background(), prob, fam, Options{Tolerance: 1e-12, BlockSize: 10, MergeFanIn: fanIn})
		if err != nil {
			t.Fatalf("fanIn %d: %v", fanIn, err)
		}
		assertCoefficients(t, multi.Coefficients, single.Coefficients, 1e-9)
	}
}

func TestFit_AllRowsDegenerate(t *testing.T) {
	t.Parallel()
	x, y := linearData(30, []float64{1, 1}, 0.1, 9)
	prob := NewProblem(x, y)
	for i := range prob.Weights {
		prob.Weights[i] = 0
	}
	_, err := Fit(context.Background(), prob, mustFamily(t, "gaussian"), Options{BlockSize: 8})
	if !errors.Is(err, ErrNoInformation) {
		t.Fatalf("expected ErrNoInformation, got %v", err)
	}
	if apperrors.ExitCodeFor(err) != apperrors.ExitErrorNumeric {
		t.Errorf("expected a numeric exit code, got %d", apperrors.ExitCodeFor(err))
	}
}

func TestFit_ObserversReceiveEveryIteration(t *testing.T) {
	t.Parallel()
	x, y := poissonData(150, []float64{0.5, 0.5}, 6)
	ch := make(chan IterationUpdate, 100)
	res, err := Fit(context.Background(), NewProblem(x, y), mustFamily(t, "poisson"),
		Options{Observers: []IterationObserver{NewChannelObserver(3, ch), NoOpObserver{}}})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	close(ch)

	count := 0
	var last IterationUpdate
	for u := range ch {
		count++
		last = u
		if u.FitIndex != 3 {
			t.Errorf("expected fit index 3, got %d", u.FitIndex)
		}
	}
	if count != res.Iterations+1 {
		t.Errorf("expected %d records, got %d", res.Iterations+1, count)
	}
	if last.Record.Deviance != res.Deviance {
		t.Errorf("last record deviance %.15g, want %.15g", last.Record.Deviance, res.Deviance)
	}
	if res.Trace != nil {
		t.Error("trace must stay empty without Options.Trace")
	}
}

func TestResult_String(t *testing.T) {
	t.Parallel()
	r := &Result{Family: "poisson_log", Deviance: 12.5, Iterations: 4, Converged: true, Rank: 3}
	want := "poisson_log: deviance=12.5 iterations=4 converged=true rank=3"
	if r.String() != want {
		t.Errorf("expected %q, got %q", want, r.String())
	}
}
