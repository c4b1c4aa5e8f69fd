package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"

	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/glm"
)

// ErrUnsupportedDistribution is returned by Synthetic for families it cannot
// draw responses from.
var ErrUnsupportedDistribution = errors.New("cannot draw responses for this distribution")

// SyntheticOptions describes a generated dataset.
type SyntheticOptions struct {
	Observations int
	// Beta holds the true coefficients. Beta[0] is the intercept and every
	// further entry adds one uniform(-1, 1) predictor.
	Beta []float64
	// Dispersion is the noise variance of gaussian responses and the
	// squared coefficient of variation of Gamma responses. Zero means 1.
	Dispersion float64
	Seed       uint64
	// Intercept keeps the column of ones in the returned design.
	Intercept bool
}

// Synthetic draws a dataset whose response follows fam with the linear
// predictor x·Beta. Predictors are named x1, x2, ...
//
// Parameters:
//   - fam: The family; its distribution must be gaussian, poisson,
//     binomial or Gamma.
//   - opts: Size, coefficients and seed.
//
// Returns:
//   - *Dataset: The generated dataset.
//   - error: An error if the options are invalid, the distribution is not
//     supported, or a mean falls outside the distribution's domain.
func Synthetic(fam glm.Family, opts SyntheticOptions) (*Dataset, error) {
	const source = "synthetic"
	if opts.Observations < 1 {
		return nil, apperrors.NewValidationError("observations", "must be at least 1", opts.Observations)
	}
	if len(opts.Beta) == 0 {
		return nil, apperrors.NewValidationError("beta", "needs at least the intercept", opts.Beta)
	}
	dispersion := opts.Dispersion
	if dispersion == 0 {
		dispersion = 1
	}
	if dispersion < 0 {
		return nil, apperrors.NewValidationError("dispersion", "must be positive", dispersion)
	}

	src := rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)
	rng := rand.New(src)
	draw, err := sampler(fam, dispersion, src)
	if err != nil {
		return nil, err
	}

	k := len(opts.Beta) - 1
	names := make([]string, k)
	for j := range names {
		names[j] = "x" + strconv.Itoa(j+1)
	}
	b := newBuilder(names, opts.Intercept)
	row := make([]float64, k)
	for i := 0; i < opts.Observations; i++ {
		eta := opts.Beta[0]
		for j := range row {
			row[j] = 2*rng.Float64() - 1
			eta += row[j] * opts.Beta[j+1]
		}
		mu := fam.LinkInv(eta)
		y, err := draw(mu)
		if err != nil {
			return nil, apperrors.NewDataError(source, i+1, err)
		}
		b.add(row, y, 1, 0)
	}
	return b.build(source)
}

// sampler returns a function drawing one response with mean mu.
func sampler(fam glm.Family, dispersion float64, src rand.Source) (func(mu float64) (float64, error), error) {
	d, ok := fam.(interface{ Distribution() string })
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDistribution, fam.Name())
	}
	outOfDomain := func(mu float64) error {
		return fmt.Errorf("%w: mean %g is outside the %s domain", ErrMalformed, mu, d.Distribution())
	}
	switch d.Distribution() {
	case "gaussian":
		sigma := math.Sqrt(dispersion)
		return func(mu float64) (float64, error) {
			if math.IsNaN(mu) || math.IsInf(mu, 0) {
				return 0, outOfDomain(mu)
			}
			return distuv.Normal{Mu: mu, Sigma: sigma, Src: src}.Rand(), nil
		}, nil
	case "poisson":
		return func(mu float64) (float64, error) {
			if !(mu >= 0) || math.IsInf(mu, 0) {
				return 0, outOfDomain(mu)
			}
			if mu == 0 {
				return 0, nil
			}
			return distuv.Poisson{Lambda: mu, Src: src}.Rand(), nil
		}, nil
	case "binomial":
		return func(mu float64) (float64, error) {
			if !(mu >= 0 && mu <= 1) {
				return 0, outOfDomain(mu)
			}
			return distuv.Bernoulli{P: mu, Src: src}.Rand(), nil
		}, nil
	case "Gamma":
		shape := 1 / dispersion
		return func(mu float64) (float64, error) {
			if !(mu > 0) || math.IsInf(mu, 0) {
				return 0, outOfDomain(mu)
			}
			return distuv.Gamma{Alpha: shape, Beta: shape / mu, Src: src}.Rand(), nil
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDistribution, fam.Name())
}
