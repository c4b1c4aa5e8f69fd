// The cli package renders parglm runs in the terminal. It follows the IRLS
// iterations of the running fits with a spinner and prints the finished fits
// as coefficient tables, quiet listings or JSON documents.
package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/agbru/parglm/internal/glm"
	"github.com/agbru/parglm/internal/ui"
	"github.com/briandowns/spinner"
)

// FormatExecutionDuration formats a time.Duration for display. Durations
// under a millisecond are shown in microseconds, under a second in
// milliseconds, and with the default representation otherwise.
//
// Parameters:
//   - d: The duration to format.
//
// Returns:
//   - string: A formatted string representing the duration.
func FormatExecutionDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	} else if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

// ProgressRefreshRate is the spinner refresh period.
const ProgressRefreshRate = 200 * time.Millisecond

// Color functions return escape codes from the current theme.

// ColorReset returns the reset escape code.
func ColorReset() string { return ui.GetCurrentTheme().Reset }

// ColorRed returns the error color.
func ColorRed() string { return ui.GetCurrentTheme().Error }

// ColorGreen returns the success color.
func ColorGreen() string { return ui.GetCurrentTheme().Success }

// ColorYellow returns the warning color.
func ColorYellow() string { return ui.GetCurrentTheme().Warning }

// ColorBlue returns the primary color.
func ColorBlue() string { return ui.GetCurrentTheme().Primary }

// ColorCyan returns the secondary color.
func ColorCyan() string { return ui.GetCurrentTheme().Secondary }

// ColorBold returns the bold escape code.
func ColorBold() string { return ui.GetCurrentTheme().Bold }

// ColorDim returns the dim escape code.
func ColorDim() string { return ui.GetCurrentTheme().Dim }

// Spinner abstracts the terminal spinner so that DisplayProgress can be
// tested without a terminal.
type Spinner interface {
	// Start begins the spinner animation.
	Start()
	// Stop halts the spinner animation.
	Stop()
	// UpdateSuffix sets the text displayed after the spinner.
	UpdateSuffix(suffix string)
}

// realSpinner adapts spinner.Spinner to Spinner.
type realSpinner struct {
	s *spinner.Spinner
}

func (rs *realSpinner) Start() { rs.s.Start() }

func (rs *realSpinner) Stop() { rs.s.Stop() }

func (rs *realSpinner) UpdateSuffix(suffix string) {
	rs.s.Lock()
	rs.s.Suffix = suffix
	rs.s.Unlock()
}

var newSpinner = func(options ...spinner.Option) Spinner {
	s := spinner.New(spinner.CharSets[11], ProgressRefreshRate, options...)
	return &realSpinner{s}
}

// FitProgress tracks the latest iteration reported by each running fit.
type FitProgress struct {
	names      []string
	iterations []int
	deviances  []float64
}

// NewFitProgress creates a tracker for the named fits. Update indices refer
// to positions in names.
func NewFitProgress(names []string) *FitProgress {
	return &FitProgress{
		names:      names,
		iterations: make([]int, len(names)),
		deviances:  make([]float64, len(names)),
	}
}

// Update records u. Updates for unknown fit indices are ignored.
func (p *FitProgress) Update(u glm.IterationUpdate) {
	if u.FitIndex < 0 || u.FitIndex >= len(p.names) {
		return
	}
	p.iterations[u.FitIndex] = u.Record.Iteration
	p.deviances[u.FitIndex] = u.Record.Deviance
}

// Iteration returns the last iteration reported by fit i, 0 if none.
func (p *FitProgress) Iteration(i int) int {
	if i < 0 || i >= len(p.iterations) {
		return 0
	}
	return p.iterations[i]
}

// String renders one "name: iteration k, deviance d" entry per fit.
func (p *FitProgress) String() string {
	parts := make([]string, len(p.names))
	for i, name := range p.names {
		if p.iterations[i] == 0 {
			parts[i] = name + ": starting"
			continue
		}
		parts[i] = fmt.Sprintf("%s: iteration %d, deviance %.6g", name, p.iterations[i], p.deviances[i])
	}
	return strings.Join(parts, " | ")
}

// DisplayProgress shows a spinner followed by the latest iteration of every
// fit until updates is closed, then prints the final state on its own line.
// It is meant to run in its own goroutine.
//
// Parameters:
//   - wg: Signaled when the display routine returns.
//   - updates: Iteration updates from glm.ChannelObserver.
//   - fits: The display name of each fit, indexed by FitIndex.
//   - out: The io.Writer the spinner renders to.
func DisplayProgress(wg *sync.WaitGroup, updates <-chan glm.IterationUpdate, fits []string, out io.Writer) {
	defer wg.Done()
	if len(fits) == 0 {
		for range updates {
		}
		return
	}

	state := NewFitProgress(fits)
	s := newSpinner(spinner.WithWriter(out))
	s.Start()
	stopped := false
	defer func() {
		if !stopped {
			s.Stop()
		}
	}()

	ticker := time.NewTicker(ProgressRefreshRate)
	defer ticker.Stop()

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				s.Stop()
				stopped = true
				fmt.Fprintf(out, "Progress: %s\n", state)
				return
			}
			state.Update(u)
		case <-ticker.C:
			s.UpdateSuffix(" " + state.String())
		}
	}
}
