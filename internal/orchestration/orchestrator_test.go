package orchestration

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/agbru/parglm/internal/config"
	"github.com/agbru/parglm/internal/dataset"
	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/glm"
	"github.com/agbru/parglm/internal/testutil"
)

const countCSV = "x,y\n0,1\n1,2\n2,2\n3,5\n4,7\n5,12\n6,15\n"

func loadCounts(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.ReadCSV(strings.NewReader(countCSV), "counts", dataset.Options{Intercept: true})
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func family(t *testing.T, name string) glm.Family {
	t.Helper()
	f, err := glm.LookupFamily(name)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// panickingFamily fails inside the block tasks of the first iteration.
type panickingFamily struct {
	glm.Family
}

func (panickingFamily) Name() string { return "broken_identity" }

func (panickingFamily) Variance(float64) float64 { panic("variance table corrupted") }

// spyObserver counts the records it receives.
type spyObserver struct {
	count int
}

func (s *spyObserver) Observe(glm.IterationRecord) { s.count++ }

func TestExecuteFits(t *testing.T) {
	t.Parallel()
	ds := loadCounts(t)
	families := []glm.Family{family(t, "poisson"), family(t, "gaussian"), panickingFamily{family(t, "gaussian")}}

	results := ExecuteFits(context.Background(), families, ds, glm.Options{BlockSize: 3, Threads: 2}, io.Discard)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"poisson_log", "gaussian_identity", "broken_identity"} {
		if results[i].Name != want {
			t.Errorf("result %d is %s, want %s", i, results[i].Name, want)
		}
	}
	for _, r := range results[:2] {
		if r.Err != nil || !r.Result.Converged {
			t.Errorf("%s: err=%v result=%+v", r.Name, r.Err, r.Result)
		}
	}
	var kernelErr apperrors.KernelError
	if !errors.As(results[2].Err, &kernelErr) {
		t.Errorf("expected a KernelError, got %v", results[2].Err)
	}
}

func TestExecuteFits_KeepsCallerObservers(t *testing.T) {
	t.Parallel()
	spy := &spyObserver{}
	results := ExecuteFits(context.Background(), []glm.Family{family(t, "gaussian")}, loadCounts(t),
		glm.Options{Observers: []glm.IterationObserver{spy}}, io.Discard)
	if results[0].Err != nil {
		t.Fatal(results[0].Err)
	}
	// One update plus the confirming pass.
	if spy.count != 2 {
		t.Errorf("observer saw %d records, want 2", spy.count)
	}
}

func TestExecuteFits_CanceledBeforeStart(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := ExecuteFits(ctx, []glm.Family{family(t, "gaussian")}, loadCounts(t), glm.Options{}, io.Discard)
	if !errors.Is(results[0].Err, context.Canceled) || results[0].Result != nil {
		t.Errorf("expected a canceled result, got %+v", results[0])
	}
}

func TestAnalyzeFitResults(t *testing.T) {
	t.Parallel()
	ds := loadCounts(t)
	ok := ExecuteFits(context.Background(), []glm.Family{family(t, "poisson")}, ds, glm.Options{}, io.Discard)[0]
	capped := ok
	capped.Result = &glm.Result{}
	*capped.Result = *ok.Result
	capped.Result.Converged = false
	failed := FitResult{Name: "Gamma_inverse", Duration: time.Millisecond, Err: apperrors.NewKernelError("trtrs", glm.ErrSingularFactor)}

	tests := []struct {
		name     string
		results  []FitResult
		cfg      config.AppConfig
		want     int
		contains []string
	}{
		{"success", []FitResult{ok}, config.AppConfig{}, apperrors.ExitSuccess, []string{"Family: poisson_log", "z value"}},
		{"comparison with a failure", []FitResult{ok, failed}, config.AppConfig{}, apperrors.ExitSuccess,
			[]string{"--- Comparison Summary ---", "Gamma_inverse", "Failure (", "Success"}},
		{"all failed", []FitResult{failed}, config.AppConfig{}, apperrors.ExitErrorNumeric, []string{"Global Status: Failure", "Status: Failure (Numeric)"}},
		{"not converged", []FitResult{capped}, config.AppConfig{}, apperrors.ExitErrorNotConverged, []string{"Status: Not converged"}},
		{"quiet failure", []FitResult{failed}, config.AppConfig{Quiet: true}, apperrors.ExitErrorNumeric, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			if got := AnalyzeFitResults(tt.results, ds, tt.cfg, &buf); got != tt.want {
				t.Errorf("exit code = %d, want %d\n%s", got, tt.want, buf.String())
			}
			out := testutil.StripAnsiCodes(buf.String())
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("expected %q in:\n%s", s, out)
				}
			}
			if tt.cfg.Quiet && strings.Contains(buf.String(), "Status:") {
				t.Errorf("quiet mode printed a status:\n%s", buf.String())
			}
		})
	}
}

func TestAnalyzeFitResults_JSON(t *testing.T) {
	t.Parallel()
	ds := loadCounts(t)
	results := ExecuteFits(context.Background(), []glm.Family{family(t, "poisson"), family(t, "gaussian")}, ds, glm.Options{}, io.Discard)

	var buf bytes.Buffer
	if code := AnalyzeFitResults(results, ds, config.AppConfig{JSONOutput: true}, &buf); code != apperrors.ExitSuccess {
		t.Fatalf("exit code %d", code)
	}
	doc := gjson.ParseBytes(buf.Bytes())
	if !doc.IsArray() || doc.Get("#").Int() != 2 {
		t.Fatalf("expected a JSON array of two fits, got:\n%s", buf.String())
	}
	if doc.Get("0.family").String() != "poisson_log" || doc.Get("1.family").String() != "gaussian_identity" {
		t.Errorf("unexpected order: %s", buf.String())
	}
	if d := doc.Get("0.dispersion").Float(); math.Abs(d-1) > 0 {
		t.Errorf("poisson dispersion = %g", d)
	}
}
