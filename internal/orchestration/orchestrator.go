// Package orchestration runs the fits requested on the command line
// concurrently and reports on them.
package orchestration

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agbru/parglm/internal/cli"
	"github.com/agbru/parglm/internal/config"
	"github.com/agbru/parglm/internal/dataset"
	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/glm"
)

// FitResult is the outcome of one family's fit.
type FitResult struct {
	// Name is the family name, e.g. "poisson_log".
	Name string
	// Result is nil if Err is set.
	Result   *glm.Result
	Duration time.Duration
	Err      error
}

// ProgressBufferMultiplier sizes the iteration update channel per fit.
// Updates that do not fit are dropped rather than slowing a fit down.
const ProgressBufferMultiplier = 5

// ExecuteFits fits every family to ds concurrently.
//
// Each fit gets its own worker pool of opts.Threads workers. Fits that have
// not started when ctx is done are not started and report ctx.Err(); a fit
// that has started always runs to completion.
//
// Parameters:
//   - ctx: Bounds the run.
//   - families: The families to fit.
//   - ds: The dataset, shared read-only by all fits.
//   - opts: Fit options; observers in opts are kept and a progress observer
//     and a metrics observer are added per fit.
//   - out: The io.Writer for progress display.
//
// Returns:
//   - []FitResult: One result per family, in the order of families.
func ExecuteFits(ctx context.Context, families []glm.Family, ds *dataset.Dataset, opts glm.Options, out io.Writer) []FitResult {
	g, ctx := errgroup.WithContext(ctx)
	results := make([]FitResult, len(families))
	updates := make(chan glm.IterationUpdate, len(families)*ProgressBufferMultiplier)

	names := make([]string, len(families))
	for i, f := range families {
		names[i] = f.Name()
	}

	var displayWg sync.WaitGroup
	displayWg.Add(1)
	go cli.DisplayProgress(&displayWg, updates, names, out)

	for i, fam := range families {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = FitResult{Name: fam.Name(), Err: err}
				return nil
			}
			metrics := glm.NewMetricsObserver(glm.NewFitID(fam.Name()))
			defer metrics.Reset()
			fitOpts := opts
			fitOpts.Observers = append(append([]glm.IterationObserver(nil), opts.Observers...),
				glm.NewChannelObserver(i, updates),
				metrics,
			)
			start := time.Now()
			res, err := glm.Fit(ctx, ds.Problem, fam, fitOpts)
			results[i] = FitResult{Name: fam.Name(), Result: res, Duration: time.Since(start), Err: err}
			return nil
		})
	}

	_ = g.Wait()
	close(updates)
	displayWg.Wait()

	return results
}

// Reports converts results to cli reports for ds.
func Reports(results []FitResult, ds *dataset.Dataset) []cli.FitReport {
	reports := make([]cli.FitReport, len(results))
	for i, r := range results {
		reports[i] = cli.FitReport{
			Family:       r.Name,
			Result:       r.Result,
			Err:          r.Err,
			Names:        ds.Names,
			Observations: ds.Observations(),
		}
	}
	return reports
}

// AnalyzeFitResults prints a comparison table when several families ran,
// then the results in the mode chosen by cfg, and returns the exit code of
// the run. The run fails only if no family could be fitted; otherwise it
// returns ExitErrorNotConverged when a fit hit the iteration cap and
// ExitSuccess when every successful fit converged.
//
// Parameters:
//   - results: The fit results, in request order.
//   - ds: The fitted dataset.
//   - cfg: The application configuration.
//   - out: The io.Writer for the report.
//
// Returns:
//   - int: The exit code.
func AnalyzeFitResults(results []FitResult, ds *dataset.Dataset, cfg config.AppConfig, out io.Writer) int {
	colors := cli.CLIColorProvider{}
	plain := cfg.Quiet || cfg.JSONOutput

	if len(results) > 1 && !plain {
		printComparison(results, out)
	}

	var firstErr error
	successCount := 0
	for _, r := range results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		successCount++
	}

	outCfg := cli.OutputConfig{OutputFile: cfg.OutputFile, Quiet: cfg.Quiet, JSON: cfg.JSONOutput}
	if err := cli.DisplayResults(out, Reports(results, ds), outCfg); err != nil {
		fmt.Fprintf(out, "Error writing results: %v\n", err)
		return apperrors.ExitErrorGeneric
	}

	if successCount == 0 {
		if plain {
			return apperrors.ExitCodeFor(firstErr)
		}
		fmt.Fprintf(out, "\nGlobal Status: Failure. No family could be fitted.\n")
		return apperrors.HandleFitError(firstErr, 0, out, colors)
	}
	for _, r := range results {
		if r.Err == nil && !r.Result.Converged {
			err := fmt.Errorf("%w: %s stopped after %d iterations", apperrors.ErrNotConverged, r.Name, r.Result.Iterations)
			if plain {
				return apperrors.ExitCodeFor(err)
			}
			fmt.Fprintln(out)
			return apperrors.HandleFitError(err, r.Duration, out, colors)
		}
	}
	return apperrors.ExitSuccess
}

// printComparison prints one row per fit: deviance, iterations, duration and
// status.
func printComparison(results []FitResult, out io.Writer) {
	fmt.Fprintf(out, "\n--- Comparison Summary ---\n")
	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "Family\tDeviance\tIterations\tDuration\tStatus\n")
	for _, r := range results {
		duration := cli.FormatExecutionDuration(r.Duration)
		if r.Duration == 0 {
			duration = "-"
		}
		switch {
		case r.Err != nil:
			fmt.Fprintf(tw, "%s\t-\t-\t%s\t%s\n", r.Name, duration, fmt.Sprintf("Failure (%v)", r.Err))
		case !r.Result.Converged:
			fmt.Fprintf(tw, "%s\t%.6g\t%d\t%s\tNot converged\n", r.Name, r.Result.Deviance, r.Result.Iterations, duration)
		default:
			fmt.Fprintf(tw, "%s\t%.6g\t%d\t%s\tSuccess\n", r.Name, r.Result.Deviance, r.Result.Iterations, duration)
		}
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(out, "Warning: failed to flush tabwriter: %v\n", err)
	}
}
