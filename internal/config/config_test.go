package config

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/glm"
)

var testFamilies = []string{"binomial", "gaussian", "poisson", "poisson_sqrt"}

func TestParseConfig_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := ParseConfig("parglm", []string{"-data", "in.csv"}, io.Discard, testFamilies)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Family != DefaultFamily {
		t.Errorf("Expected default family %q, got %q", DefaultFamily, cfg.Family)
	}
	if cfg.Tolerance != glm.DefaultTolerance || cfg.MaxIterations != glm.DefaultMaxIterations {
		t.Errorf("Expected IRLS defaults, got tol=%g max-iter=%d", cfg.Tolerance, cfg.MaxIterations)
	}
	if cfg.BlockSize != glm.DefaultBlockSize || cfg.BlockSizeSet {
		t.Errorf("Expected default block size not marked as set, got %d (set=%t)", cfg.BlockSize, cfg.BlockSizeSet)
	}
	if cfg.Timeout != DefaultTimeout || cfg.Port != DefaultPort || cfg.LogLevel != DefaultLogLevel {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
	if cfg.Response != "y" || cfg.NoIntercept {
		t.Errorf("Unexpected dataset defaults: response=%q no-intercept=%t", cfg.Response, cfg.NoIntercept)
	}
}

func TestParseConfig_Flags(t *testing.T) {
	t.Parallel()
	args := []string{
		"-data", "counts.json",
		"-format", "JSON",
		"-family", "poisson,binomial",
		"-tol", "1e-6",
		"-threads", "3",
		"-max-iter", "40",
		"-block-size", "512",
		"-merge-fan-in", "4",
		"-rank-tol", "1e-9",
		"-weights", "w",
		"-no-intercept",
		"-trace",
		"-q",
		"-o", "out.txt",
		"-timeout", "10s",
	}
	cfg, err := ParseConfig("parglm", args, io.Discard, testFamilies)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Format != "json" {
		t.Errorf("Expected lower-cased format, got %q", cfg.Format)
	}
	if !cfg.BlockSizeSet || cfg.BlockSize != 512 {
		t.Errorf("Expected explicit block size 512, got %d (set=%t)", cfg.BlockSize, cfg.BlockSizeSet)
	}
	if !cfg.Quiet || cfg.OutputFile != "out.txt" || cfg.Timeout != 10*time.Second {
		t.Errorf("Unexpected output settings: %+v", cfg)
	}

	opts := cfg.ToFitOptions()
	want := glm.Options{Tolerance: 1e-6, MaxIterations: 40, Threads: 3, BlockSize: 512, MergeFanIn: 4, RankTol: 1e-9, Trace: true}
	if opts.Tolerance != want.Tolerance || opts.MaxIterations != want.MaxIterations ||
		opts.Threads != want.Threads || opts.BlockSize != want.BlockSize ||
		opts.MergeFanIn != want.MergeFanIn || opts.RankTol != want.RankTol || !opts.Trace {
		t.Errorf("ToFitOptions() = %+v, want %+v", opts, want)
	}

	dsOpts := cfg.DatasetOptions()
	if dsOpts.Intercept || dsOpts.Weights != "w" || dsOpts.Response != "y" {
		t.Errorf("DatasetOptions() = %+v", dsOpts)
	}

	if got := cfg.FamilyNames(testFamilies); strings.Join(got, ",") != "poisson,binomial" {
		t.Errorf("FamilyNames() = %v", got)
	}
}

// Environment tests cannot run in parallel with each other because they
// mutate the process environment.
func TestParseConfig_EnvOverrides(t *testing.T) {
	env := map[string]string{
		"PARGLM_DATA":         "env.csv",
		"PARGLM_FAMILY":       "all",
		"PARGLM_TOL":          "1e-5",
		"PARGLM_THREADS":      "2",
		"PARGLM_MAX_ITER":     "7",
		"PARGLM_BLOCK_SIZE":   "64",
		"PARGLM_MERGE_FAN_IN": "3",
		"PARGLM_RANK_TOL":     "1e-6",
		"PARGLM_TRACE":        "yes",
		"PARGLM_JSON":         "1",
		"PARGLM_QUIET":        "true",
		"PARGLM_NO_COLOR":     "true",
		"PARGLM_PORT":         "3000",
		"PARGLM_TIMEOUT":      "2m",
		"PARGLM_LOG_LEVEL":    "debug",
		"PARGLM_OUTPUT":       "env.out",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := ParseConfig("parglm", nil, io.Discard, testFamilies)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.DataPath != "env.csv" || cfg.Family != "all" || cfg.Port != "3000" || cfg.LogLevel != "debug" {
		t.Errorf("Unexpected string overrides: %+v", cfg)
	}
	if cfg.Tolerance != 1e-5 || cfg.RankTol != 1e-6 {
		t.Errorf("Unexpected float overrides: tol=%g rank-tol=%g", cfg.Tolerance, cfg.RankTol)
	}
	if cfg.Threads != 2 || cfg.MaxIterations != 7 || cfg.BlockSize != 64 || cfg.MergeFanIn != 3 {
		t.Errorf("Unexpected int overrides: %+v", cfg)
	}
	if !cfg.BlockSizeSet {
		t.Error("Expected block size from the environment to count as set")
	}
	if !cfg.Trace || !cfg.JSONOutput || !cfg.Quiet || !cfg.NoColor {
		t.Errorf("Unexpected bool overrides: %+v", cfg)
	}
	if cfg.Timeout != 2*time.Minute || cfg.OutputFile != "env.out" {
		t.Errorf("Unexpected overrides: timeout=%v output=%q", cfg.Timeout, cfg.OutputFile)
	}
	if got := cfg.FamilyNames(testFamilies); len(got) != len(testFamilies) {
		t.Errorf("'all' expanded to %v", got)
	}
}

func TestParseConfig_FlagPrecedenceOverEnv(t *testing.T) {
	t.Setenv("PARGLM_MAX_ITER", "7")
	t.Setenv("PARGLM_QUIET", "false")

	cfg, err := ParseConfig("parglm", []string{"-data", "x.csv", "-max-iter", "9", "-quiet"}, io.Discard, testFamilies)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.MaxIterations != 9 {
		t.Errorf("Expected max-iter 9 from the flag, got %d", cfg.MaxIterations)
	}
	if !cfg.Quiet {
		t.Error("Expected -quiet to win over PARGLM_QUIET")
	}
}

func TestParseConfig_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-unknown"}},
		{"missing data", []string{}},
		{"unknown family", []string{"-data", "x.csv", "-family", "tweedie"}},
		{"bad format", []string{"-data", "x.csv", "-format", "xml"}},
		{"bad shell", []string{"-completion", "tcsh"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			if _, err := ParseConfig("parglm", tt.args, &out, testFamilies); err == nil {
				t.Error("Expected an error")
			}
			if !strings.Contains(out.String(), "Usage:") {
				t.Errorf("Expected usage text, got %q", out.String())
			}
		})
	}
}

func TestParseConfig_ModesWithoutData(t *testing.T) {
	t.Parallel()
	for _, args := range [][]string{{"-server"}, {"-calibrate"}, {"-completion", "zsh"}} {
		if _, err := ParseConfig("parglm", args, io.Discard, testFamilies); err != nil {
			t.Errorf("%v: unexpected error %v", args, err)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	valid := AppConfig{
		DataPath:      "x.csv",
		Family:        "gaussian",
		Tolerance:     1e-8,
		MaxIterations: 25,
		BlockSize:     100,
		RankTol:       1e-7,
		Timeout:       time.Second,
	}
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"valid", func(*AppConfig) {}, false},
		{"all families", func(c *AppConfig) { c.Family = "all" }, false},
		{"list with spaces", func(c *AppConfig) { c.Family = "poisson, binomial" }, false},
		{"empty family", func(c *AppConfig) { c.Family = " , " }, true},
		{"zero timeout", func(c *AppConfig) { c.Timeout = 0 }, true},
		{"zero tolerance", func(c *AppConfig) { c.Tolerance = 0 }, true},
		{"zero max-iter", func(c *AppConfig) { c.MaxIterations = 0 }, true},
		{"zero block size", func(c *AppConfig) { c.BlockSize = 0 }, true},
		{"negative threads", func(c *AppConfig) { c.Threads = -1 }, true},
		{"negative fan-in", func(c *AppConfig) { c.MergeFanIn = -2 }, true},
		{"rank-tol of one", func(c *AppConfig) { c.RankTol = 1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := valid
			tt.mutate(&c)
			err := c.Validate(testFamilies)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %t", err, tt.wantErr)
			}
			var cfgErr apperrors.ConfigError
			if err != nil && !errors.As(err, &cfgErr) {
				t.Errorf("Expected ConfigError, got %T", err)
			}
		})
	}
}

func TestFamilyNames_Deduplicates(t *testing.T) {
	t.Parallel()
	c := AppConfig{Family: "poisson,gaussian,poisson"}
	if got := c.FamilyNames(testFamilies); strings.Join(got, ",") != "poisson,gaussian" {
		t.Errorf("FamilyNames() = %v", got)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv(EnvPrefix+"TEST_INT", "-123")
	t.Setenv(EnvPrefix+"TEST_FLOAT", "2.5e-3")
	t.Setenv(EnvPrefix+"TEST_BAD", "abc")
	t.Setenv(EnvPrefix+"TEST_BOOL", "No")
	t.Setenv(EnvPrefix+"TEST_DURATION", "1h")

	if val := getEnvInt("TEST_INT", 0); val != -123 {
		t.Errorf("Expected -123, got %d", val)
	}
	if val := getEnvFloat("TEST_FLOAT", 0); val != 2.5e-3 {
		t.Errorf("Expected 2.5e-3, got %g", val)
	}
	if val := getEnvInt("TEST_BAD", 7); val != 7 {
		t.Errorf("Expected default 7 for invalid input, got %d", val)
	}
	if val := getEnvFloat("TEST_BAD", 1.5); val != 1.5 {
		t.Errorf("Expected default 1.5 for invalid input, got %g", val)
	}
	if val := getEnvBool("TEST_BOOL", true); val {
		t.Error("Expected false for 'No'")
	}
	if val := getEnvBool("TEST_BAD", true); !val {
		t.Error("Expected default true for invalid input")
	}
	if val := getEnvDuration("TEST_DURATION", 0); val != time.Hour {
		t.Errorf("Expected 1h, got %v", val)
	}
	if val := getEnvString("NONEXISTENT", "default"); val != "default" {
		t.Errorf("Expected 'default', got %q", val)
	}
}
