// Package service runs fits on behalf of the HTTP server. It centralizes
// request limits, family resolution and option defaults.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/agbru/parglm/internal/dataset"
	"github.com/agbru/parglm/internal/glm"
	"github.com/agbru/parglm/internal/logging"
	"github.com/agbru/parglm/pkg/models"
)

var (
	// ErrTooManyObservations is returned when a dataset exceeds the
	// configured observation limit.
	ErrTooManyObservations = errors.New("maximum number of observations exceeded")
	// ErrTooManyPredictors is returned when a dataset exceeds the configured
	// predictor limit.
	ErrTooManyPredictors = errors.New("maximum number of predictors exceeded")
)

// Service fits models.
type Service interface {
	// Fit runs one fit of family on ds. Non-zero fields of overrides replace
	// the service defaults.
	Fit(ctx context.Context, family string, ds *dataset.Dataset, overrides glm.Options) (models.FitResponse, error)
	// Families lists the family names the service accepts.
	Families() []string
}

// Limits bound the size of a single request. Zero disables a limit.
type Limits struct {
	MaxObservations int
	MaxPredictors   int
}

// DefaultLimits allow a million observations of up to 500 predictors.
func DefaultLimits() Limits {
	return Limits{MaxObservations: 1_000_000, MaxPredictors: 500}
}

// FitService implements Service on top of glm.Fit.
type FitService struct {
	factory  glm.FamilyFactory
	defaults glm.Options
	limits   Limits
	logger   logging.Logger
}

var _ Service = (*FitService)(nil)

// NewFitService creates a service.
//
// Parameters:
//   - factory: Resolves family names.
//   - defaults: Options applied to every fit unless a request overrides them.
//   - limits: Request size limits.
//   - logger: Receives fit logs; nil discards them.
func NewFitService(factory glm.FamilyFactory, defaults glm.Options, limits Limits, logger logging.Logger) *FitService {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &FitService{factory: factory, defaults: defaults, limits: limits, logger: logger}
}

// Families implements Service.
func (s *FitService) Families() []string {
	return s.factory.List()
}

// Fit implements Service.
func (s *FitService) Fit(ctx context.Context, family string, ds *dataset.Dataset, overrides glm.Options) (models.FitResponse, error) {
	if s.limits.MaxObservations > 0 && ds.Problem.X.N > s.limits.MaxObservations {
		return models.FitResponse{}, fmt.Errorf("%w: %d > %d", ErrTooManyObservations, ds.Problem.X.N, s.limits.MaxObservations)
	}
	if s.limits.MaxPredictors > 0 && ds.Problem.X.P > s.limits.MaxPredictors {
		return models.FitResponse{}, fmt.Errorf("%w: %d > %d", ErrTooManyPredictors, ds.Problem.X.P, s.limits.MaxPredictors)
	}
	fam, err := s.factory.Get(family)
	if err != nil {
		return models.FitResponse{}, err
	}

	opts := mergeOptions(s.defaults, overrides)
	opts.Logger = s.logger
	metrics := glm.NewMetricsObserver(glm.NewFitID(fam.Name()))
	defer metrics.Reset()
	opts.Observers = append(opts.Observers, metrics)
	res, err := glm.Fit(ctx, ds.Problem, fam, opts)
	if err != nil {
		return models.FitResponse{}, err
	}
	return NewFitResponse(res, ds.Names, ds.Problem.X.N), nil
}

// mergeOptions overlays the non-zero fields of o on base.
func mergeOptions(base, o glm.Options) glm.Options {
	if o.Tolerance != 0 {
		base.Tolerance = o.Tolerance
	}
	if o.MaxIterations != 0 {
		base.MaxIterations = o.MaxIterations
	}
	if o.BlockSize != 0 {
		base.BlockSize = o.BlockSize
	}
	if o.Threads != 0 {
		base.Threads = o.Threads
	}
	if o.MergeFanIn != 0 {
		base.MergeFanIn = o.MergeFanIn
	}
	if o.RankTol != 0 {
		base.RankTol = o.RankTol
	}
	base.Trace = base.Trace || o.Trace
	base.Observers = append(append([]glm.IterationObserver(nil), base.Observers...), o.Observers...)
	return base
}
