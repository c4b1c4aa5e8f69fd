package calibration

import (
	"runtime"
	"slices"
)

// Bounds of a calibrated block size.
const (
	MinBlockSize = 256
	MaxBlockSize = 1 << 20
)

// baseBlockSizes are timed on every machine.
var baseBlockSizes = []int{1000, 2000, 5000, 10000, 20000, 50000}

// perWorker is the block size that gives every worker exactly one block of
// an n-row dataset.
func perWorker(n, threads int) int {
	if threads < 1 {
		threads = runtime.NumCPU()
	}
	return (n + threads - 1) / threads
}

// candidates keeps the sizes in [MinBlockSize, n], sorted and unique.
func candidates(n int, sizes ...int) []int {
	out := make([]int, 0, len(sizes))
	for _, s := range sizes {
		if s >= MinBlockSize && s <= n {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = append(out, max(min(n, MaxBlockSize), 1))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// GenerateBlockSizes lists the block sizes a full calibration times on an
// n-row dataset with the given worker count. Besides the fixed ladder it
// tries one block per worker and four blocks per worker, the two layouts
// that keep every worker busy.
func GenerateBlockSizes(n, threads int) []int {
	sizes := append([]int(nil), baseBlockSizes...)
	pw := perWorker(n, threads)
	sizes = append(sizes, pw, max(pw/4, 1))
	return candidates(n, sizes...)
}

// GenerateQuickBlockSizes is the reduced set used by a quick calibration.
func GenerateQuickBlockSizes(n, threads int) []int {
	return candidates(n, 2000, 10000, perWorker(n, threads))
}

// GenerateMergeFanIns lists the merge fan-ins to time. A tree reduction only
// pays off when several workers can merge concurrently.
func GenerateMergeFanIns() []int {
	if runtime.NumCPU() < 4 {
		return []int{0, 4}
	}
	return []int{0, 4, 8, 16}
}

// EstimateOptimalBlockSize guesses a block size without measuring: four
// blocks per worker, within [1000, 50000].
func EstimateOptimalBlockSize(n, threads int) int {
	return ValidateBlockSize(min(max(perWorker(n, threads)/4, 1000), 50000))
}

// ValidateBlockSize clamps a block size to [MinBlockSize, MaxBlockSize].
func ValidateBlockSize(size int) int {
	return min(max(size, MinBlockSize), MaxBlockSize)
}
