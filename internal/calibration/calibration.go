package calibration

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/agbru/parglm/internal/cli"
	"github.com/agbru/parglm/internal/config"
	"github.com/agbru/parglm/internal/dataset"
	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/glm"
)

const (
	// CalibrationObservations is the size of the synthetic calibration
	// dataset.
	CalibrationObservations = 200000
	// CalibrationPredictors is its number of predictors, intercept included.
	CalibrationPredictors = 10
	// calibrationFamily exercises every part of an IRLS iteration.
	calibrationFamily = "poisson_log"
)

// CalibrationOptions configures a calibration run.
type CalibrationOptions struct {
	// ProfilePath is where the profile is saved; empty means the default.
	ProfilePath string
	SaveProfile bool
	// Quick times fewer block sizes and skips the fan-in search.
	Quick bool
	// Observations and Predictors size the synthetic dataset.
	Observations int
	Predictors   int
	// Repetitions is the number of timed fits per trial.
	Repetitions int
}

// DefaultCalibrationOptions is a full calibration saved to profilePath.
func DefaultCalibrationOptions(profilePath string) CalibrationOptions {
	return CalibrationOptions{
		ProfilePath:  profilePath,
		SaveProfile:  true,
		Observations: CalibrationObservations,
		Predictors:   CalibrationPredictors,
		Repetitions:  DefaultRepetitions,
	}
}

// syntheticProblem draws the calibration dataset: a poisson response with
// small coefficients so that every mean stays moderate.
func syntheticProblem(fam glm.Family, n, p int) (glm.Problem, error) {
	beta := make([]float64, max(p, 1))
	beta[0] = 1
	for j := 1; j < len(beta); j++ {
		beta[j] = 0.5 / float64(j)
	}
	ds, err := dataset.Synthetic(fam, dataset.SyntheticOptions{Observations: n, Beta: beta, Seed: 42, Intercept: true})
	if err != nil {
		return glm.Problem{}, err
	}
	return ds.Problem, nil
}

// RunCalibration times fits of a synthetic dataset over candidate block
// sizes and merge fan-ins, prints the measurements and saves the fastest
// configuration to cfg.CalibrationProfile.
//
// Parameters:
//   - ctx: Bounds the run; an interrupted calibration saves nothing.
//   - cfg: The application configuration (threads, profile path).
//   - out: The io.Writer for progress and results.
//
// Returns:
//   - int: The exit code.
func RunCalibration(ctx context.Context, cfg config.AppConfig, out io.Writer) int {
	return RunCalibrationWithOptions(ctx, cfg, out, DefaultCalibrationOptions(cfg.CalibrationProfile))
}

// RunCalibrationWithOptions is RunCalibration with explicit options.
func RunCalibrationWithOptions(ctx context.Context, cfg config.AppConfig, out io.Writer, opts CalibrationOptions) int {
	fmt.Fprintf(out, "--- Calibration Mode: Finding the Optimal Block Size ---\n")

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	fam, err := glm.LookupFamily(calibrationFamily)
	if err != nil {
		return apperrors.HandleFitError(err, 0, out, cli.CLIColorProvider{})
	}
	prob, err := syntheticProblem(fam, opts.Observations, opts.Predictors)
	if err != nil {
		return apperrors.HandleFitError(err, 0, out, cli.CLIColorProvider{})
	}
	fmt.Fprintf(out, "%sTiming %s fits of %d observations and %d predictors on %d workers%s\n",
		cli.ColorCyan(), calibrationFamily, prob.X.N, prob.X.P, threads, cli.ColorReset())

	updates := make(chan glm.IterationUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go cli.DisplayProgress(&wg, updates, []string{"calibration"}, out)

	bench := NewMicroBenchmark(prob, fam, threads)
	bench.Repetitions = opts.Repetitions
	bench.Observers = []glm.IterationObserver{glm.NewChannelObserver(0, updates)}
	if cfg.Timeout > 0 {
		bench.PerTrial = cfg.Timeout
	}
	runner := newCalibrationRunner(ctx, bench)

	start := time.Now()
	sizes := GenerateBlockSizes(prob.X.N, threads)
	if opts.Quick {
		sizes = GenerateQuickBlockSizes(prob.X.N, threads)
	}
	blockResults, best := runner.findBestBlockSize(sizes, 0)

	var fanInResults []Measurement
	if !opts.Quick && best.Duration != maxDuration && ctx.Err() == nil {
		var bestFanIn Measurement
		fanInResults, bestFanIn = runner.findBestMergeFanIn(best.BlockSize, GenerateMergeFanIns())
		if bestFanIn.Duration < best.Duration {
			best = bestFanIn
		}
	}
	close(updates)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		fmt.Fprintf(out, "\n%sCalibration interrupted.%s\n", cli.ColorYellow(), cli.ColorReset())
		return apperrors.HandleFitError(err, time.Since(start), out, cli.CLIColorProvider{})
	}
	if best.Duration == maxDuration {
		fmt.Fprintf(out, "\n%sCalibration failed: no valid results obtained.%s\n", cli.ColorRed(), cli.ColorReset())
		return apperrors.ExitErrorGeneric
	}
	elapsed := time.Since(start)

	printCalibrationResults(out, "Block size", blockResults, best)
	if len(fanInResults) > 0 {
		printCalibrationResults(out, "Merge fan-in", fanInResults, best)
	}
	printRecommendation(out, best, blockResults)

	if opts.SaveProfile {
		profile := NewProfile()
		profile.OptimalBlockSize = ValidateBlockSize(best.BlockSize)
		profile.OptimalMergeFanIn = best.MergeFanIn
		profile.Threads = threads
		profile.CalibrationObservations = prob.X.N
		profile.CalibrationPredictors = prob.X.P
		profile.CalibrationTime = elapsed.Round(time.Millisecond).String()
		path := opts.ProfilePath
		if path == "" {
			path = GetDefaultProfilePath()
		}
		if err := profile.SaveProfile(path); err != nil {
			fmt.Fprintf(out, "%sWarning: failed to save profile: %v%s\n", cli.ColorYellow(), err, cli.ColorReset())
		} else {
			fmt.Fprintf(out, "%sCalibration profile saved to %s%s\n", cli.ColorGreen(), path, cli.ColorReset())
		}
	}
	return apperrors.ExitSuccess
}

// LoadCachedCalibration applies a valid profile at profilePath to cfg. An
// explicit -block-size wins over the profile, and the profile's fan-in is
// used only while cfg keeps the default of 0.
//
// Returns:
//   - config.AppConfig: cfg, updated when the profile applied.
//   - bool: true if a profile was applied.
func LoadCachedCalibration(cfg config.AppConfig, profilePath string) (updated config.AppConfig, ok bool) {
	if cfg.BlockSizeSet {
		return cfg, false
	}
	profile, loaded := LoadOrCreateProfile(profilePath)
	if !loaded {
		return cfg, false
	}
	updated = cfg
	updated.BlockSize = ValidateBlockSize(profile.OptimalBlockSize)
	if updated.MergeFanIn == 0 {
		updated.MergeFanIn = profile.OptimalMergeFanIn
	}
	return updated, true
}
