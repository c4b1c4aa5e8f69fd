package glm

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// machineEps is the double precision machine epsilon used by the link
// clamps.
const machineEps = 2.220446049250313e-16

// logitThresh bounds eta in the logit inverse so that mu stays inside (0, 1).
const logitThresh = 30.0

// Link maps between the mean and the linear predictor.
type Link struct {
	// Name is the link name used in family names ("logit", "log", ...).
	Name string
	// LinkFun maps mu to eta.
	LinkFun func(mu float64) float64
	// LinkInv maps eta to mu.
	LinkInv func(eta float64) float64
	// MuEta is d(mu)/d(eta).
	MuEta func(eta float64) float64
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

var (
	probitThresh  = -distuv.UnitNormal.Quantile(machineEps)
	cauchitThresh = -cauchyQuantile(machineEps)
)

func cauchyCDF(x float64) float64      { return 0.5 + math.Atan(x)/math.Pi }
func cauchyDensity(x float64) float64  { return 1 / (math.Pi * (1 + x*x)) }
func cauchyQuantile(p float64) float64 { return math.Tan(math.Pi * (p - 0.5)) }

// links is the catalog of supported links keyed by name.
var links = map[string]Link{
	"identity": {
		Name:    "identity",
		LinkFun: func(mu float64) float64 { return mu },
		LinkInv: func(eta float64) float64 { return eta },
		MuEta:   func(float64) float64 { return 1 },
	},
	"log": {
		Name:    "log",
		LinkFun: math.Log,
		LinkInv: func(eta float64) float64 { return math.Max(math.Exp(eta), machineEps) },
		MuEta:   func(eta float64) float64 { return math.Max(math.Exp(eta), machineEps) },
	},
	"logit": {
		Name:    "logit",
		LinkFun: func(mu float64) float64 { return math.Log(mu / (1 - mu)) },
		LinkInv: func(eta float64) float64 {
			var t float64
			switch {
			case eta < -logitThresh:
				t = machineEps
			case eta > logitThresh:
				t = 1 / machineEps
			default:
				t = math.Exp(eta)
			}
			return t / (1 + t)
		},
		MuEta: func(eta float64) float64 {
			if eta > logitThresh || eta < -logitThresh {
				return machineEps
			}
			opexp := 1 + math.Exp(eta)
			return math.Exp(eta) / (opexp * opexp)
		},
	},
	"probit": {
		Name:    "probit",
		LinkFun: distuv.UnitNormal.Quantile,
		LinkInv: func(eta float64) float64 {
			return distuv.UnitNormal.CDF(clamp(eta, -probitThresh, probitThresh))
		},
		MuEta: func(eta float64) float64 {
			return math.Max(distuv.UnitNormal.Prob(eta), machineEps)
		},
	},
	"cauchit": {
		Name:    "cauchit",
		LinkFun: cauchyQuantile,
		LinkInv: func(eta float64) float64 {
			return cauchyCDF(clamp(eta, -cauchitThresh, cauchitThresh))
		},
		MuEta: func(eta float64) float64 {
			return math.Max(cauchyDensity(eta), machineEps)
		},
	},
	"cloglog": {
		Name:    "cloglog",
		LinkFun: func(mu float64) float64 { return math.Log(-math.Log(1 - mu)) },
		LinkInv: func(eta float64) float64 {
			return clamp(-math.Expm1(-math.Exp(eta)), machineEps, 1-machineEps)
		},
		MuEta: func(eta float64) float64 {
			eta = math.Min(eta, 700)
			return math.Max(math.Exp(eta)*math.Exp(-math.Exp(eta)), machineEps)
		},
	},
	"inverse": {
		Name:    "inverse",
		LinkFun: func(mu float64) float64 { return 1 / mu },
		LinkInv: func(eta float64) float64 { return 1 / eta },
		MuEta:   func(eta float64) float64 { return -1 / (eta * eta) },
	},
	"sqrt": {
		Name:    "sqrt",
		LinkFun: math.Sqrt,
		LinkInv: func(eta float64) float64 { return eta * eta },
		MuEta:   func(eta float64) float64 { return 2 * eta },
	},
	"1/mu^2": {
		Name:    "1/mu^2",
		LinkFun: func(mu float64) float64 { return 1 / (mu * mu) },
		LinkInv: func(eta float64) float64 { return 1 / math.Sqrt(eta) },
		MuEta:   func(eta float64) float64 { return -1 / (2 * math.Pow(eta, 1.5)) },
	},
}

// LookupLink returns the link registered under name.
func LookupLink(name string) (Link, bool) {
	l, ok := links[name]
	return l, ok
}
