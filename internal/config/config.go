// Package config provides the configuration management for parglm.
// It defines the configuration structure, parses command-line arguments
// with environment overrides, and validates the result.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/agbru/parglm/internal/dataset"
	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/glm"
)

const (
	// EnvPrefix is the prefix for all environment variables read by parglm.
	EnvPrefix = "PARGLM_"
)

// Default configuration values.
const (
	// DefaultFamily is fitted when no family is given.
	DefaultFamily = "gaussian"
	// AllFamilies selects every registered family name.
	AllFamilies = "all"
	// DefaultTimeout bounds a whole CLI run.
	DefaultTimeout = 5 * time.Minute
	// DefaultPort is the default server port.
	DefaultPort = "8080"
	// DefaultLogLevel is the zerolog level name used when none is given.
	DefaultLogLevel = "info"
)

// AppConfig aggregates the parameters of one parglm invocation.
type AppConfig struct {
	// DataPath is the dataset file to fit.
	DataPath string
	// Format is "csv", "json", or empty to infer it from the extension.
	Format string
	// Response, Weights and Offset name dataset columns.
	Response string
	Weights  string
	Offset   string
	// NoIntercept disables the generated intercept column.
	NoIntercept bool
	// Family is a comma-separated list of family names, or "all".
	Family string

	Tolerance     float64
	Threads       int
	MaxIterations int
	BlockSize     int
	// BlockSizeSet records that -block-size or PARGLM_BLOCK_SIZE was given,
	// in which case a calibration profile must not override it.
	BlockSizeSet bool
	MergeFanIn   int
	RankTol      float64
	Trace        bool

	// JSONOutput prints the result as JSON.
	JSONOutput bool
	// Quiet suppresses the spinner and the banners.
	Quiet bool
	// OutputFile, if set, receives the result.
	OutputFile string
	// NoColor disables color output. NO_COLOR is honored as well.
	NoColor bool

	ServerMode bool
	Port       string

	// Calibrate runs the block-size calibration instead of a fit.
	Calibrate bool
	// CalibrationProfile overrides ~/.parglm_calibration.json.
	CalibrationProfile string

	LogLevel string
	// Completion names a shell to print a completion script for.
	Completion string
	// Timeout bounds the whole run. It never interrupts a fit in progress.
	Timeout time.Duration
}

// FamilyNames expands Family into the list of families to fit.
//
// Parameters:
//   - available: All registered family names, used to expand "all".
//
// Returns:
//   - []string: The requested names in order, without duplicates.
func (c AppConfig) FamilyNames(available []string) []string {
	if strings.TrimSpace(c.Family) == AllFamilies {
		return slices.Clone(available)
	}
	var names []string
	for _, name := range strings.Split(c.Family, ",") {
		name = strings.TrimSpace(name)
		if name != "" && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// ToFitOptions converts the numeric settings into glm.Options.
func (c AppConfig) ToFitOptions() glm.Options {
	return glm.Options{
		Tolerance:     c.Tolerance,
		MaxIterations: c.MaxIterations,
		Threads:       c.Threads,
		BlockSize:     c.BlockSize,
		MergeFanIn:    c.MergeFanIn,
		RankTol:       c.RankTol,
		Trace:         c.Trace,
	}
}

// DatasetOptions converts the column settings into dataset.Options.
func (c AppConfig) DatasetOptions() dataset.Options {
	return dataset.Options{
		Response:  c.Response,
		Weights:   c.Weights,
		Offset:    c.Offset,
		Intercept: !c.NoIntercept,
	}
}

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

// Validate checks the semantic consistency of the configuration.
//
// Parameters:
//   - availableFamilies: The registered family names.
//
// Returns:
//   - error: A ConfigError describing the first problem, nil otherwise.
func (c AppConfig) Validate(availableFamilies []string) error {
	if c.Timeout <= 0 {
		return apperrors.NewConfigError("timeout value must be strictly positive")
	}
	if !(c.Tolerance > 0) {
		return apperrors.NewConfigError("tolerance must be strictly positive: %g", c.Tolerance)
	}
	if c.MaxIterations < 1 {
		return apperrors.NewConfigError("max-iter must be at least 1: %d", c.MaxIterations)
	}
	if c.BlockSize < 1 {
		return apperrors.NewConfigError("block-size must be at least 1: %d", c.BlockSize)
	}
	if c.Threads < 0 {
		return apperrors.NewConfigError("threads cannot be negative: %d", c.Threads)
	}
	if c.MergeFanIn < 0 {
		return apperrors.NewConfigError("merge-fan-in cannot be negative: %d", c.MergeFanIn)
	}
	if !(c.RankTol > 0 && c.RankTol < 1) {
		return apperrors.NewConfigError("rank-tol must be in (0, 1): %g", c.RankTol)
	}
	switch dataset.Format(c.Format) {
	case "", dataset.FormatCSV, dataset.FormatJSON:
	default:
		return apperrors.NewConfigError("unrecognized format: '%s'. Valid formats are: csv, json", c.Format)
	}
	if c.Completion != "" && !slices.Contains(completionShells, c.Completion) {
		return apperrors.NewConfigError("unsupported completion shell: '%s'. Valid shells are: %s", c.Completion, strings.Join(completionShells, ", "))
	}

	names := c.FamilyNames(availableFamilies)
	if len(names) == 0 {
		return apperrors.NewConfigError("no family selected")
	}
	for _, name := range names {
		if !slices.Contains(availableFamilies, name) {
			return apperrors.NewConfigError("unrecognized family: '%s'. Use 'all' or one of [%s]", name, strings.Join(availableFamilies, ", "))
		}
	}

	needsData := !c.ServerMode && !c.Calibrate && c.Completion == ""
	if needsData && c.DataPath == "" {
		return apperrors.NewConfigError("a dataset is required: pass -data <file>")
	}
	return nil
}

// ParseConfig parses the command-line arguments into an AppConfig, applies
// PARGLM_ environment overrides for flags that were not set, and validates
// the result.
//
// Parameters:
//   - programName: The name shown in the usage message.
//   - args: The arguments, typically os.Args[1:].
//   - errorWriter: Receives parse errors and usage text.
//   - availableFamilies: The registered family names.
//
// Returns:
//   - AppConfig: The populated configuration.
//   - error: An error if parsing or validation fails.
func ParseConfig(programName string, args []string, errorWriter io.Writer, availableFamilies []string) (AppConfig, error) {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errorWriter)

	config := AppConfig{}
	fs.StringVar(&config.DataPath, "data", "", "Dataset file (CSV with header, or JSON).")
	fs.StringVar(&config.Format, "format", "", "Dataset format: csv or json (default: from the file extension).")
	fs.StringVar(&config.Response, "response", dataset.DefaultResponse, "Name of the response column.")
	fs.StringVar(&config.Weights, "weights", "", "Name of the prior weights column.")
	fs.StringVar(&config.Offset, "offset", "", "Name of the offset column.")
	fs.BoolVar(&config.NoIntercept, "no-intercept", false, "Do not add an intercept column.")
	fs.StringVar(&config.Family, "family", DefaultFamily, "Family to fit, a comma-separated list, or 'all'.")
	fs.Float64Var(&config.Tolerance, "tol", glm.DefaultTolerance, "Relative deviance change that stops IRLS.")
	fs.IntVar(&config.Threads, "threads", 0, "Worker pool size (0 uses every CPU).")
	fs.IntVar(&config.MaxIterations, "max-iter", glm.DefaultMaxIterations, "Maximum number of IRLS iterations.")
	fs.IntVar(&config.BlockSize, "block-size", glm.DefaultBlockSize, "Observations per block.")
	fs.IntVar(&config.MergeFanIn, "merge-fan-in", 0, "Factors merged per intermediate level (0 or 1 merges in one step).")
	fs.Float64Var(&config.RankTol, "rank-tol", glm.DefaultRankTol, "Relative tolerance of the rank test.")
	fs.BoolVar(&config.Trace, "trace", false, "Log every IRLS iteration.")
	fs.BoolVar(&config.JSONOutput, "json", false, "Output results in JSON format.")
	fs.BoolVar(&config.Quiet, "quiet", false, "Quiet mode - minimal output for scripts.")
	fs.BoolVar(&config.Quiet, "q", false, "Quiet mode (shorthand).")
	fs.StringVar(&config.OutputFile, "output", "", "Output file path for the result.")
	fs.StringVar(&config.OutputFile, "o", "", "Output file path (shorthand).")
	fs.BoolVar(&config.NoColor, "no-color", false, "Disable colored output (also respects NO_COLOR env var).")
	fs.BoolVar(&config.ServerMode, "server", false, "Start in HTTP server mode.")
	fs.StringVar(&config.Port, "port", DefaultPort, "Port to listen on in server mode.")
	fs.BoolVar(&config.Calibrate, "calibrate", false, "Measure the best block size for this machine and save it.")
	fs.StringVar(&config.CalibrationProfile, "calibration-profile", "", "Path to calibration profile file (default: ~/.parglm_calibration.json).")
	fs.StringVar(&config.LogLevel, "log-level", DefaultLogLevel, "Log level: debug, info, warn, error.")
	fs.StringVar(&config.Completion, "completion", "", "Generate shell completion script (bash, zsh, fish, powershell).")
	fs.DurationVar(&config.Timeout, "timeout", DefaultTimeout, "Maximum duration of the whole run.")

	setCustomUsage(fs)

	if err := fs.Parse(args); err != nil {
		return AppConfig{}, err
	}

	applyEnvOverrides(&config, fs)
	config.BlockSizeSet = isFlagSet(fs, "block-size") || envIsSet("BLOCK_SIZE")
	config.Format = strings.ToLower(config.Format)

	if err := config.Validate(availableFamilies); err != nil {
		fmt.Fprintln(errorWriter, "Configuration error:", err)
		fs.Usage()
		return AppConfig{}, errors.Join(errors.New("invalid configuration"), err)
	}
	return config, nil
}
