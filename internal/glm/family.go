package glm

import (
	"fmt"
	"math"
)

// Family supplies the per-observation formulas the IRLS driver needs. All
// methods are pure functions of their scalar arguments, so one Family value
// may be shared by every block task of a fit.
type Family interface {
	// Name identifies the family, e.g. "poisson_log".
	Name() string
	// Initialize seeds the linear predictor before any coefficients exist.
	Initialize(y, weight float64) float64
	// LinkInv maps the linear predictor to the mean.
	LinkInv(eta float64) float64
	// MuEta is the derivative of the mean with respect to eta.
	MuEta(eta float64) float64
	// Variance is the mean-variance relationship V(mu).
	Variance(mu float64) float64
	// DevResids is one observation's contribution to the deviance.
	DevResids(y, mu, weight float64) float64
}

// FixedDispersion reports whether f has a dispersion parameter fixed at 1
// (binomial and poisson). Families that do not say so get a Pearson estimate.
func FixedDispersion(f Family) bool {
	fd, ok := f.(interface{ FixedDispersion() bool })
	return ok && fd.FixedDispersion()
}

// distribution is the link-independent half of a family.
type distribution struct {
	name      string
	variance  func(mu float64) float64
	devResids func(y, mu, weight float64) float64
	// muStart is the starting mean fed through the link by Initialize.
	muStart func(y, weight float64) float64
	fixed   bool
	// links lists the supported links, canonical first.
	links []string
}

// yLogY is y*log(y/mu) with the 0*log(0) = 0 convention.
func yLogY(y, mu float64) float64 {
	if y == 0 {
		return 0
	}
	return y * math.Log(y/mu)
}

var distributions = []distribution{
	{
		name:      "gaussian",
		variance:  func(float64) float64 { return 1 },
		devResids: func(y, mu, w float64) float64 { return w * (y - mu) * (y - mu) },
		muStart:   func(y, _ float64) float64 { return y },
		links:     []string{"identity", "log", "inverse"},
	},
	{
		name:     "binomial",
		variance: func(mu float64) float64 { return mu * (1 - mu) },
		devResids: func(y, mu, w float64) float64 {
			return 2 * w * (yLogY(y, mu) + yLogY(1-y, 1-mu))
		},
		muStart: func(y, w float64) float64 { return (w*y + 0.5) / (w + 1) },
		fixed:   true,
		links:   []string{"logit", "probit", "cauchit", "log", "cloglog"},
	},
	{
		name:     "poisson",
		variance: func(mu float64) float64 { return mu },
		devResids: func(y, mu, w float64) float64 {
			if y > 0 {
				return 2 * w * (y*math.Log(y/mu) - (y - mu))
			}
			return 2 * w * mu
		},
		muStart: func(y, _ float64) float64 { return y + 0.1 },
		fixed:   true,
		links:   []string{"log", "identity", "sqrt"},
	},
	{
		name:     "Gamma",
		variance: func(mu float64) float64 { return mu * mu },
		devResids: func(y, mu, w float64) float64 {
			ratio := 1.0
			if y != 0 {
				ratio = y / mu
			}
			return -2 * w * (math.Log(ratio) - (y-mu)/mu)
		},
		muStart: func(y, _ float64) float64 { return y },
		links:   []string{"inverse", "identity", "log"},
	},
	{
		name:     "inverse.gaussian",
		variance: func(mu float64) float64 { return mu * mu * mu },
		devResids: func(y, mu, w float64) float64 {
			return w * (y - mu) * (y - mu) / (y * mu * mu)
		},
		muStart: func(y, _ float64) float64 { return y },
		links:   []string{"1/mu^2", "inverse", "identity", "log"},
	},
}

// family pairs a distribution with a link.
type family struct {
	dist distribution
	link Link
}

// NewFamily builds the family for a distribution and link name. An empty
// link selects the distribution's canonical link.
func NewFamily(dist, link string) (Family, error) {
	for _, d := range distributions {
		if d.name != dist {
			continue
		}
		if link == "" {
			link = d.links[0]
		}
		for _, name := range d.links {
			if name == link {
				return family{dist: d, link: links[name]}, nil
			}
		}
		return nil, fmt.Errorf("%w: link %q is not available for %s", ErrUnknownFamily, link, dist)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, dist)
}

func (f family) Name() string { return f.dist.name + "_" + f.link.Name }

// Distribution returns the distribution half of the name.
func (f family) Distribution() string { return f.dist.name }

// LinkName returns the link half of the name.
func (f family) LinkName() string { return f.link.Name }

func (f family) Initialize(y, weight float64) float64 {
	return f.link.LinkFun(f.dist.muStart(y, weight))
}

func (f family) LinkInv(eta float64) float64 { return f.link.LinkInv(eta) }
func (f family) MuEta(eta float64) float64   { return f.link.MuEta(eta) }
func (f family) Variance(mu float64) float64 { return f.dist.variance(mu) }

func (f family) DevResids(y, mu, weight float64) float64 {
	return f.dist.devResids(y, mu, weight)
}

func (f family) FixedDispersion() bool { return f.dist.fixed }
