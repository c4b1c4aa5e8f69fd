package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/agbru/parglm/internal/config"
	"github.com/agbru/parglm/internal/dataset"
	"github.com/agbru/parglm/internal/glm"
	"github.com/agbru/parglm/internal/testutil"
)

func TestGetFamiliesToRun(t *testing.T) {
	t.Parallel()
	factory := glm.DefaultFactory()
	tests := []struct {
		family string
		want   []string
	}{
		{"poisson,gaussian", []string{"poisson_log", "gaussian_identity"}},
		{"binomial, nope", []string{"binomial_logit"}},
		{"all", nil},
	}
	for _, tt := range tests {
		got := GetFamiliesToRun(config.AppConfig{Family: tt.family}, factory)
		if tt.want == nil {
			if len(got) != len(factory.List()) {
				t.Errorf("all: got %d families, want %d", len(got), len(factory.List()))
			}
			continue
		}
		if len(got) != len(tt.want) {
			t.Fatalf("%q: got %d families, want %d", tt.family, len(got), len(tt.want))
		}
		for i, f := range got {
			if f.Name() != tt.want[i] {
				t.Errorf("%q: family %d = %s, want %s", tt.family, i, f.Name(), tt.want[i])
			}
		}
	}
}

func TestPrintExecution(t *testing.T) {
	t.Parallel()
	ds, err := dataset.ReadCSV(strings.NewReader(lineCSV), "test", dataset.Options{Intercept: true})
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.AppConfig{DataPath: "line.csv", Tolerance: 1e-8, MaxIterations: 25, RankTol: 1e-7, BlockSize: 1000, Threads: 3, Timeout: time.Minute}

	var buf bytes.Buffer
	PrintExecutionConfig(cfg, ds, &buf)
	out := testutil.StripAnsiCodes(buf.String())
	for _, want := range []string{"line.csv: 6 observations, 2 predictors ((Intercept), x)", "tol=1e-08", "Blocks of 1000 observations on 3 workers"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}

	gaussian, _ := glm.LookupFamily("gaussian")
	poisson, _ := glm.LookupFamily("poisson")
	buf.Reset()
	PrintExecutionMode([]glm.Family{gaussian}, &buf)
	if out := testutil.StripAnsiCodes(buf.String()); !strings.Contains(out, "Single fit of the gaussian_identity family (gaussian distribution, identity link)") {
		t.Errorf("unexpected single mode: %s", out)
	}
	buf.Reset()
	PrintExecutionMode([]glm.Family{gaussian, poisson}, &buf)
	if out := buf.String(); !strings.Contains(out, "Concurrent comparison of 2 families (gaussian_identity, poisson_log)") {
		t.Errorf("unexpected comparison mode: %s", out)
	}
}
