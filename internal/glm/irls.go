package glm

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/floats"

	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/logging"
	"github.com/agbru/parglm/internal/parallel"
)

// Default option values.
const (
	DefaultTolerance     = 1e-8
	DefaultMaxIterations = 25
	DefaultRankTol       = 1e-7
)

var tracer = otel.Tracer("github.com/agbru/parglm/internal/glm")

// Options configures a fit. Zero values select the defaults.
type Options struct {
	// Tolerance is the relative deviance change below which the fit has
	// converged.
	Tolerance float64
	// MaxIterations caps the number of IRLS iterations.
	MaxIterations int
	// Threads is the executor pool size; 0 means runtime.NumCPU().
	Threads int
	// BlockSize is the number of observations per block.
	BlockSize int
	// MergeFanIn > 1 enables intermediate merge levels of that width.
	MergeFanIn int
	// RankTol is the relative diagonal threshold of the rank test.
	RankTol float64
	// Trace logs every iteration and keeps the records in Result.Trace.
	Trace bool
	// Observers are notified after every iteration.
	Observers []IterationObserver
	// Logger receives debug and trace output. Nil discards it.
	Logger logging.Logger
}

// normalizeOptions fills zero fields with defaults and rejects negative or
// otherwise invalid values.
func normalizeOptions(o Options) (Options, error) {
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.BlockSize == 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.RankTol == 0 {
		o.RankTol = DefaultRankTol
	}
	if o.Logger == nil {
		o.Logger = logging.NopLogger{}
	}
	switch {
	case !(o.Tolerance > 0):
		return o, apperrors.NewValidationError("tol", "must be positive", o.Tolerance)
	case o.MaxIterations < 1:
		return o, apperrors.NewValidationError("maxIterations", "must be at least 1", o.MaxIterations)
	case o.BlockSize < 1:
		return o, apperrors.NewValidationError("blockSize", "must be at least 1", o.BlockSize)
	case o.Threads < 0:
		return o, apperrors.NewValidationError("threads", "must not be negative", o.Threads)
	case o.MergeFanIn < 0:
		return o, apperrors.NewValidationError("mergeFanIn", "must not be negative", o.MergeFanIn)
	case !(o.RankTol > 0 && o.RankTol < 1):
		return o, apperrors.NewValidationError("rankTol", "must be in (0, 1)", o.RankTol)
	}
	return o, nil
}

// Result is the outcome of a fit. It is not modified after Fit returns.
type Result struct {
	Family string
	// Coefficients are in predictor order; aliased coefficients are 0.
	Coefficients  []float64
	Factorization Factorization
	Deviance      float64
	// Iterations counts the IRLS updates up to the one whose coefficients
	// were accepted. The update that only confirms convergence is not
	// counted, so a gaussian identity fit reports 1.
	Iterations int
	Converged  bool
	Rank       int
	// Dispersion is 1 for binomial and poisson families, and the Pearson
	// estimate otherwise (NaN when no residual degrees of freedom remain).
	Dispersion float64
	// DispersionFixed reports that Dispersion was fixed at 1 rather than
	// estimated.
	DispersionFixed bool
	// StdErrors are NaN for aliased coefficients.
	StdErrors        []float64
	GoodObservations int
	Duration         time.Duration
	// Trace holds every iteration record when Options.Trace is set.
	Trace []IterationRecord
}

// converged is the relative deviance test.
func converged(dev, devOld, tol float64) bool {
	return math.Abs(dev-devOld)/(0.1+math.Abs(dev)) < tol
}

// driver holds the per-fit resources of one Fit call.
type driver struct {
	state  *fitState
	exec   *parallel.Executor
	ranges []BlockRange
	opts   Options
}

// updateMeans runs the eta/mu/deviance phase on every block and sums the
// partials in block order. A nil beta seeds eta from the family.
func (d *driver) updateMeans(beta []float64) (blockStats, error) {
	futures := make([]*parallel.Future[blockStats], len(d.ranges))
	for i, r := range d.ranges {
		futures[i] = parallel.Submit(d.exec, func() (stats blockStats, err error) {
			err = guardKernel("gemv", func() { stats = d.state.updateBlock(r, beta) })
			return stats, err
		})
	}
	blockTasks.WithLabelValues("update").Add(float64(len(futures)))
	parts, err := parallel.JoinAll(futures)
	if err != nil {
		return blockStats{}, err
	}
	return sumStats(parts), nil
}

// factor runs the generate-and-factor phase on every block and merges the
// results into the global factorization.
func (d *driver) factor() (Factorization, error) {
	futures := make([]*parallel.Future[blockFactor], len(d.ranges))
	for i, r := range d.ranges {
		futures[i] = parallel.Submit(d.exec, func() (blockFactor, error) {
			return factorWorkUnit(generateWorkUnit(d.state, r))
		})
	}
	blockTasks.WithLabelValues("factor").Add(float64(len(futures)))
	factors, err := parallel.JoinAll(futures)
	if err != nil {
		return Factorization{}, err
	}
	return reduceFactors(d.exec, factors, d.state.x.P, d.opts.MergeFanIn, d.opts.RankTol)
}

// Fit estimates the coefficients of problem under family by IRLS.
//
// The context only carries tracing; a fit runs to completion once started.
// Running out of iterations is not an error: the result comes back with
// Converged set to false and the last coefficients.
//
// Parameters:
//   - ctx: Parent context for the fit's spans.
//   - problem: The design, response, weights, offset and reference coefficients.
//   - family: The family formulas.
//   - opts: Fit options; zero values select defaults.
//
// Returns:
//   - *Result: The fit result.
//   - error: A DimensionError or ValidationError before any work starts, or
//     a KernelError if a numeric kernel fails.
func Fit(ctx context.Context, problem Problem, family Family, opts Options) (res *Result, err error) {
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	if family == nil {
		return nil, apperrors.NewValidationError("family", "must not be nil", nil)
	}
	opts, err = normalizeOptions(opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ranges := BlockRanges(problem.X.N, opts.BlockSize)
	ctx, span := tracer.Start(ctx, "glm.Fit", trace.WithAttributes(
		attribute.String("glm.family", family.Name()),
		attribute.Int("glm.observations", problem.X.N),
		attribute.Int("glm.predictors", problem.X.P),
		attribute.Int("glm.blocks", len(ranges)),
		attribute.Int("glm.block_size", opts.BlockSize),
	))
	defer func() {
		status := statusFailed
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			opts.Logger.Error("fit failed", err, logging.String("family", family.Name()))
		case res.Converged:
			status = statusConverged
		default:
			status = statusNotConverged
		}
		fitsTotal.WithLabelValues(family.Name(), status).Inc()
		fitDuration.WithLabelValues(family.Name()).Observe(time.Since(start).Seconds())
		span.End()
	}()

	exec := parallel.NewExecutor(opts.Threads)
	defer exec.Close()

	d := &driver{
		state:  newFitState(problem, family),
		exec:   exec,
		ranges: ranges,
		opts:   opts,
	}

	subject := NewIterationSubject()
	for _, o := range opts.Observers {
		subject.Register(o)
	}
	recorder := &recordingObserver{}
	if opts.Trace {
		subject.Register(recorder)
		subject.Register(traceObserver(opts.Logger, family.Name()))
	}

	opts.Logger.Debug("fit started",
		logging.String("family", family.Name()),
		logging.Int("observations", problem.X.N),
		logging.Int("predictors", problem.X.P),
		logging.Int("blocks", len(ranges)),
		logging.Int("threads", exec.Workers()),
	)

	stats, err := d.updateMeans(nil)
	if err != nil {
		return nil, err
	}
	dev := stats.Deviance
	beta := append([]float64(nil), problem.Beta0...)

	var (
		fact     Factorization
		iter     int
		accepted int
		done     bool
	)
	for iter = 1; iter <= opts.MaxIterations && !done; iter++ {
		_, itSpan := tracer.Start(ctx, "glm.iteration", trace.WithAttributes(attribute.Int("glm.iteration", iter)))

		fact, err = d.factor()
		if err != nil {
			itSpan.End()
			return nil, apperrors.WrapError(err, "iteration %d", iter)
		}
		newBeta, err := SolveCoefficients(fact)
		if err != nil {
			itSpan.End()
			return nil, apperrors.WrapError(err, "iteration %d", iter)
		}
		stats, err = d.updateMeans(newBeta)
		if err != nil {
			itSpan.End()
			return nil, apperrors.WrapError(err, "iteration %d", iter)
		}

		devOld := dev
		dev = stats.Deviance
		subject.Notify(IterationRecord{
			Iteration: iter,
			BetaOld:   beta,
			Beta:      newBeta,
			DeltaNorm: floats.Distance(beta, newBeta, 2),
			Deviance:  dev,
		})
		itSpan.SetAttributes(attribute.Float64("glm.deviance", dev), attribute.Int("glm.rank", fact.Rank))
		itSpan.End()

		beta = newBeta
		accepted = iter
		if converged(dev, devOld, opts.Tolerance) {
			done = true
			if iter > 1 {
				accepted = iter - 1
			}
		}
	}

	unscaled, err := UnscaledCovariance(fact)
	if err != nil {
		return nil, err
	}
	dispersion := 1.0
	if !FixedDispersion(family) {
		dispersion = math.NaN()
		if df := stats.Positive - fact.Rank; df > 0 {
			dispersion = stats.Pearson / float64(df)
		}
	}

	res = &Result{
		Family:           family.Name(),
		Coefficients:     beta,
		Factorization:    fact,
		Deviance:         dev,
		Iterations:       accepted,
		Converged:        done,
		Rank:             fact.Rank,
		Dispersion:       dispersion,
		DispersionFixed:  FixedDispersion(family),
		StdErrors:        standardErrors(unscaled, dispersion),
		GoodObservations: stats.Positive,
		Duration:         time.Since(start),
	}
	if opts.Trace {
		res.Trace = recorder.records
	}
	fitIterations.WithLabelValues(family.Name()).Observe(float64(res.Iterations))
	span.SetAttributes(
		attribute.Int("glm.iterations", res.Iterations),
		attribute.Bool("glm.converged", res.Converged),
		attribute.Float64("glm.deviance", res.Deviance),
	)
	opts.Logger.Debug("fit finished",
		logging.String("family", family.Name()),
		logging.Int("iterations", res.Iterations),
		logging.Bool("converged", res.Converged),
		logging.Float64("deviance", res.Deviance),
		logging.Uint64("block_tasks", exec.Submitted()),
	)
	return res, nil
}

// traceObserver logs trace records with zerolog directly when the Logger is
// backed by it, and through the Logger interface otherwise.
func traceObserver(log logging.Logger, family string) IterationObserver {
	if z, ok := log.(interface{ Zerolog() zerolog.Logger }); ok {
		return NewLoggingObserver(z.Zerolog(), family)
	}
	return traceLogger{log: log, family: family}
}

// traceLogger sends trace records through the fit's Logger.
type traceLogger struct {
	log    logging.Logger
	family string
}

func (t traceLogger) Observe(rec IterationRecord) {
	t.log.Info("irls iteration",
		logging.String("family", t.family),
		logging.Int("iteration", rec.Iteration),
		logging.Floats64("beta_old", rec.BetaOld),
		logging.Floats64("beta", rec.Beta),
		logging.Float64("delta_norm", rec.DeltaNorm),
		logging.Float64("deviance", rec.Deviance),
	)
}

// FitParallel is the flat-argument entry point. It validates every length
// before resolving the family or starting any work, then calls Fit.
//
// Parameters:
//   - ctx: Parent context for tracing.
//   - x: The p×n design.
//   - y, weight, offset: Length-n vectors.
//   - familyName: A name known to the default FamilyFactory.
//   - beta0: Length-p reference coefficients.
//   - tol: Relative deviance tolerance (> 0).
//   - maxThreads: Executor size (< 1 selects runtime.NumCPU()).
//   - maxIterations: Iteration cap (>= 1).
//   - trace: Log and keep every iteration record.
//   - blockSize: Observations per block (>= 1).
//
// Returns:
//   - *Result: The fit result.
//   - error: DimensionError, ValidationError, a wrapped ErrUnknownFamily or
//     KernelError.
func FitParallel(ctx context.Context, x Design, y []float64, familyName string, beta0, weight, offset []float64,
	tol float64, maxThreads, maxIterations int, trace bool, blockSize int) (*Result, error) {
	problem := Problem{X: x, Y: y, Weights: weight, Offset: offset, Beta0: beta0}
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	switch {
	case !(tol > 0):
		return nil, apperrors.NewValidationError("tol", "must be positive", tol)
	case maxIterations < 1:
		return nil, apperrors.NewValidationError("maxIterations", "must be at least 1", maxIterations)
	case blockSize < 1:
		return nil, apperrors.NewValidationError("blockSize", "must be at least 1", blockSize)
	}
	family, err := LookupFamily(familyName)
	if err != nil {
		return nil, err
	}
	if maxThreads < 0 {
		maxThreads = 0
	}
	return Fit(ctx, problem, family, Options{
		Tolerance:     tol,
		MaxIterations: maxIterations,
		Threads:       maxThreads,
		BlockSize:     blockSize,
		Trace:         trace,
	})
}

// String renders a one-line summary of the result.
func (r *Result) String() string {
	return fmt.Sprintf("%s: deviance=%.6g iterations=%d converged=%t rank=%d",
		r.Family, r.Deviance, r.Iterations, r.Converged, r.Rank)
}
