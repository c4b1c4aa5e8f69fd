package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Environment Variable Utilities
// ─────────────────────────────────────────────────────────────────────────────

func envIsSet(key string) bool {
	return os.Getenv(EnvPrefix+key) != ""
}

// getEnvString returns PARGLM_<key>, or defaultVal if it is unset.
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns PARGLM_<key> parsed as int, or defaultVal if it is unset
// or invalid.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvBool accepts "true", "1", "yes" and "false", "0", "no", in any case.
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// isFlagSet reports whether any of names was given on the command line.
func isFlagSet(fs *flag.FlagSet, names ...string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				found = true
			}
		}
	})
	return found
}

// envBinding ties a flag to its environment variable. Exactly one of the
// destination pointers is set.
type envBinding struct {
	flags []string
	key   string
	str      *string
	integer  *int
	float    *float64
	boolean  *bool
	duration *time.Duration
}

// applyEnvOverrides applies PARGLM_ variables to every flag that was not set
// on the command line, giving the priority flags > environment > defaults.
// The variable name is the flag name upper-cased with dashes replaced by
// underscores, e.g. -max-iter reads PARGLM_MAX_ITER.
func applyEnvOverrides(config *AppConfig, fs *flag.FlagSet) {
	bindings := []envBinding{
		{flags: []string{"data"}, key: "DATA", str: &config.DataPath},
		{flags: []string{"format"}, key: "FORMAT", str: &config.Format},
		{flags: []string{"response"}, key: "RESPONSE", str: &config.Response},
		{flags: []string{"weights"}, key: "WEIGHTS", str: &config.Weights},
		{flags: []string{"offset"}, key: "OFFSET", str: &config.Offset},
		{flags: []string{"no-intercept"}, key: "NO_INTERCEPT", boolean: &config.NoIntercept},
		{flags: []string{"family"}, key: "FAMILY", str: &config.Family},
		{flags: []string{"tol"}, key: "TOL", float: &config.Tolerance},
		{flags: []string{"threads"}, key: "THREADS", integer: &config.Threads},
		{flags: []string{"max-iter"}, key: "MAX_ITER", integer: &config.MaxIterations},
		{flags: []string{"block-size"}, key: "BLOCK_SIZE", integer: &config.BlockSize},
		{flags: []string{"merge-fan-in"}, key: "MERGE_FAN_IN", integer: &config.MergeFanIn},
		{flags: []string{"rank-tol"}, key: "RANK_TOL", float: &config.RankTol},
		{flags: []string{"trace"}, key: "TRACE", boolean: &config.Trace},
		{flags: []string{"json"}, key: "JSON", boolean: &config.JSONOutput},
		{flags: []string{"quiet", "q"}, key: "QUIET", boolean: &config.Quiet},
		{flags: []string{"output", "o"}, key: "OUTPUT", str: &config.OutputFile},
		{flags: []string{"no-color"}, key: "NO_COLOR", boolean: &config.NoColor},
		{flags: []string{"server"}, key: "SERVER", boolean: &config.ServerMode},
		{flags: []string{"port"}, key: "PORT", str: &config.Port},
		{flags: []string{"calibrate"}, key: "CALIBRATE", boolean: &config.Calibrate},
		{flags: []string{"calibration-profile"}, key: "CALIBRATION_PROFILE", str: &config.CalibrationProfile},
		{flags: []string{"log-level"}, key: "LOG_LEVEL", str: &config.LogLevel},
		{flags: []string{"timeout"}, key: "TIMEOUT", duration: &config.Timeout},
	}
	for _, b := range bindings {
		if isFlagSet(fs, b.flags...) {
			continue
		}
		switch {
		case b.str != nil:
			*b.str = getEnvString(b.key, *b.str)
		case b.integer != nil:
			*b.integer = getEnvInt(b.key, *b.integer)
		case b.float != nil:
			*b.float = getEnvFloat(b.key, *b.float)
		case b.boolean != nil:
			*b.boolean = getEnvBool(b.key, *b.boolean)
		case b.duration != nil:
			*b.duration = getEnvDuration(b.key, *b.duration)
		}
	}
}
