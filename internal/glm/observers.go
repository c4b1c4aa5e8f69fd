package glm

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// IterationRecord describes one completed IRLS iteration.
type IterationRecord struct {
	// Iteration is 1-based.
	Iteration int
	BetaOld   []float64
	Beta      []float64
	// DeltaNorm is the Euclidean distance between BetaOld and Beta.
	DeltaNorm float64
	Deviance  float64
}

// IterationObserver receives a record after every IRLS iteration. Observers
// run on the driver's control goroutine and must not block for long.
type IterationObserver interface {
	Observe(rec IterationRecord)
}

// ─────────────────────────────────────────────────────────────────────────────
// Iteration Subject
// ─────────────────────────────────────────────────────────────────────────────

// IterationSubject fans iteration records out to registered observers, in
// registration order. It is safe for concurrent use.
type IterationSubject struct {
	observers []IterationObserver
	mu        sync.RWMutex
}

// NewIterationSubject creates an empty subject.
func NewIterationSubject() *IterationSubject {
	return &IterationSubject{}
}

// Register adds an observer. Nil observers are ignored.
func (s *IterationSubject) Register(o IterationObserver) {
	if o == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Unregister removes an observer if it is registered.
func (s *IterationSubject) Unregister(o IterationObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, obs := range s.observers {
		if obs == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Notify delivers rec to every observer.
func (s *IterationSubject) Notify(rec IterationRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.observers {
		o.Observe(rec)
	}
}

// ObserverCount returns the number of registered observers.
func (s *IterationSubject) ObserverCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// ─────────────────────────────────────────────────────────────────────────────
// Channel Observer
// ─────────────────────────────────────────────────────────────────────────────

// IterationUpdate tags a record with the index of the fit that produced it,
// for consumers that follow several fits at once.
type IterationUpdate struct {
	FitIndex int
	Record   IterationRecord
}

// ChannelObserver forwards records to a channel without blocking. Records are
// dropped when the channel is full.
type ChannelObserver struct {
	index   int
	channel chan<- IterationUpdate
}

// NewChannelObserver creates an observer sending to ch. A nil channel
// discards every record.
func NewChannelObserver(index int, ch chan<- IterationUpdate) *ChannelObserver {
	return &ChannelObserver{index: index, channel: ch}
}

// Observe implements IterationObserver.
func (o *ChannelObserver) Observe(rec IterationRecord) {
	if o.channel == nil {
		return
	}
	select {
	case o.channel <- IterationUpdate{FitIndex: o.index, Record: rec}:
	default:
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Logging Observer
// ─────────────────────────────────────────────────────────────────────────────

// LoggingObserver writes each record as a structured zerolog event. It is the
// trace output of a fit run with Options.Trace.
type LoggingObserver struct {
	logger zerolog.Logger
	family string
}

// NewLoggingObserver creates an observer logging at info level.
func NewLoggingObserver(logger zerolog.Logger, family string) *LoggingObserver {
	return &LoggingObserver{logger: logger, family: family}
}

// Observe implements IterationObserver.
func (o *LoggingObserver) Observe(rec IterationRecord) {
	o.logger.Info().
		Str("family", o.family).
		Int("iteration", rec.Iteration).
		Floats64("beta_old", rec.BetaOld).
		Floats64("beta", rec.Beta).
		Float64("delta_norm", rec.DeltaNorm).
		Float64("deviance", rec.Deviance).
		Msg("irls iteration")
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics Observer (Prometheus)
// ─────────────────────────────────────────────────────────────────────────────

var (
	devianceGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parglm_fit_deviance",
			Help: "Deviance after the latest IRLS iteration of a running fit.",
		},
		[]string{"fit"},
	)
	iterationGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parglm_fit_iteration",
			Help: "Latest completed IRLS iteration of a running fit.",
		},
		[]string{"fit"},
	)
)

var fitSeq atomic.Uint64

// NewFitID returns a metrics label unique to one fit of family within the
// process, e.g. "poisson_log-7".
func NewFitID(family string) string {
	return family + "-" + strconv.FormatUint(fitSeq.Add(1), 10)
}

// MetricsObserver exports the latest deviance and iteration of a running
// fit. Label it with NewFitID so that concurrent fits of one family keep
// separate series, and call Reset when the fit ends.
type MetricsObserver struct {
	fit       string
	deviance  *prometheus.GaugeVec
	iteration *prometheus.GaugeVec
}

// NewMetricsObserver creates an observer labelled with fit.
func NewMetricsObserver(fit string) *MetricsObserver {
	return &MetricsObserver{fit: fit, deviance: devianceGauge, iteration: iterationGauge}
}

// Observe implements IterationObserver.
func (o *MetricsObserver) Observe(rec IterationRecord) {
	o.deviance.WithLabelValues(o.fit).Set(rec.Deviance)
	o.iteration.WithLabelValues(o.fit).Set(float64(rec.Iteration))
}

// Reset removes this fit's series.
func (o *MetricsObserver) Reset() {
	o.deviance.DeleteLabelValues(o.fit)
	o.iteration.DeleteLabelValues(o.fit)
}

// ─────────────────────────────────────────────────────────────────────────────
// No-Op Observer
// ─────────────────────────────────────────────────────────────────────────────

// NoOpObserver discards every record.
type NoOpObserver struct{}

// Observe implements IterationObserver.
func (NoOpObserver) Observe(IterationRecord) {}

// recordingObserver keeps every record; the driver uses it to fill
// Result.Trace.
type recordingObserver struct {
	records []IterationRecord
}

func (o *recordingObserver) Observe(rec IterationRecord) {
	o.records = append(o.records, rec)
}

func (r IterationRecord) String() string {
	return fmt.Sprintf("iteration %d: deviance=%.6g delta=%.3g", r.Iteration, r.Deviance, r.DeltaNorm)
}
