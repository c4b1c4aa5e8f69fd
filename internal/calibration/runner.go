package calibration

import (
	"context"
	"time"
)

const maxDuration = time.Duration(1<<63 - 1)

// calibrationRunner searches the trials one dimension at a time.
type calibrationRunner struct {
	ctx   context.Context
	bench *MicroBenchmark
	// onMeasured is called after every trial.
	onMeasured func(Measurement)
}

func newCalibrationRunner(ctx context.Context, bench *MicroBenchmark) *calibrationRunner {
	return &calibrationRunner{ctx: ctx, bench: bench, onMeasured: func(Measurement) {}}
}

// best times every trial and returns the measurements in order together
// with the fastest successful one. best.Duration is maxDuration when every
// trial failed.
func (r *calibrationRunner) best(trials []Trial) (all []Measurement, best Measurement) {
	best.Duration = maxDuration
	for _, trial := range trials {
		if r.ctx.Err() != nil {
			break
		}
		m := r.bench.Measure(r.ctx, trial)
		r.onMeasured(m)
		all = append(all, m)
		if m.Err == nil && m.Duration < best.Duration {
			best = m
		}
	}
	return all, best
}

// findBestBlockSize times each block size with the given fan-in.
func (r *calibrationRunner) findBestBlockSize(sizes []int, fanIn int) ([]Measurement, Measurement) {
	trials := make([]Trial, len(sizes))
	for i, s := range sizes {
		trials[i] = Trial{BlockSize: s, MergeFanIn: fanIn}
	}
	return r.best(trials)
}

// findBestMergeFanIn times each fan-in with the given block size.
func (r *calibrationRunner) findBestMergeFanIn(blockSize int, fanIns []int) ([]Measurement, Measurement) {
	trials := make([]Trial, len(fanIns))
	for i, f := range fanIns {
		trials[i] = Trial{BlockSize: blockSize, MergeFanIn: f}
	}
	return r.best(trials)
}
