package calibration

import (
	"context"
	"slices"
	"time"

	"github.com/agbru/parglm/internal/glm"
)

const (
	// DefaultRepetitions is the number of timed fits per trial; the median
	// is kept.
	DefaultRepetitions = 3

	// DefaultTrialMaxIterations caps the IRLS iterations of a timed fit.
	DefaultTrialMaxIterations = 5
)

// Trial is one configuration to time.
type Trial struct {
	BlockSize  int
	MergeFanIn int
}

// Measurement is the outcome of timing a Trial.
type Measurement struct {
	Trial
	// Duration is the median fit time; zero when Err is set.
	Duration time.Duration
	Err      error
}

// MicroBenchmark times fits of one problem under different trials.
type MicroBenchmark struct {
	Problem glm.Problem
	Family  glm.Family
	Threads int
	// Repetitions is the number of timed fits per trial.
	Repetitions int
	// MaxIterations bounds each timed fit. Every trial runs the same
	// number of iterations, so durations are comparable.
	MaxIterations int
	// PerTrial bounds the time spent on one trial.
	PerTrial time.Duration
	// Observers receive the iterations of every timed fit.
	Observers []glm.IterationObserver
}

// NewMicroBenchmark times fits of problem with family on threads workers.
func NewMicroBenchmark(problem glm.Problem, family glm.Family, threads int) *MicroBenchmark {
	return &MicroBenchmark{
		Problem:       problem,
		Family:        family,
		Threads:       threads,
		Repetitions:   DefaultRepetitions,
		MaxIterations: DefaultTrialMaxIterations,
		PerTrial:      time.Minute,
	}
}

// Measure times trial Repetitions times and keeps the median. A fit is
// never interrupted, so a trial whose budget runs out mid-fit finishes that
// fit and then reports context.DeadlineExceeded.
func (mb *MicroBenchmark) Measure(ctx context.Context, trial Trial) Measurement {
	ctx, cancel := context.WithTimeout(ctx, mb.PerTrial)
	defer cancel()

	opts := glm.Options{
		Threads:       mb.Threads,
		BlockSize:     trial.BlockSize,
		MergeFanIn:    trial.MergeFanIn,
		MaxIterations: mb.MaxIterations,
		Observers:     mb.Observers,
	}
	reps := max(mb.Repetitions, 1)
	durations := make([]time.Duration, 0, reps)
	for range reps {
		if err := ctx.Err(); err != nil {
			return Measurement{Trial: trial, Err: err}
		}
		start := time.Now()
		if _, err := glm.Fit(ctx, mb.Problem, mb.Family, opts); err != nil {
			return Measurement{Trial: trial, Err: err}
		}
		durations = append(durations, time.Since(start))
	}
	if err := ctx.Err(); err != nil {
		return Measurement{Trial: trial, Err: err}
	}
	slices.Sort(durations)
	return Measurement{Trial: trial, Duration: durations[len(durations)/2]}
}
