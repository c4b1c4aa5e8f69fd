package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/agbru/parglm/internal/calibration"
	"github.com/agbru/parglm/internal/cli"
	"github.com/agbru/parglm/internal/config"
	"github.com/agbru/parglm/internal/dataset"
	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/glm"
	"github.com/agbru/parglm/internal/logging"
	"github.com/agbru/parglm/internal/orchestration"
	"github.com/agbru/parglm/internal/server"
	"github.com/agbru/parglm/internal/service"
	"github.com/agbru/parglm/internal/ui"
)

// Application is one parglm invocation: the parsed configuration and the
// dependencies of the mode it runs in (fit, server, calibration or
// completion).
type Application struct {
	// Config holds the parsed application configuration.
	Config config.AppConfig
	// Factory resolves family names.
	Factory glm.FamilyFactory
	// ErrWriter receives errors and log output (typically os.Stderr).
	ErrWriter io.Writer
	// Logger is built from Config.LogLevel.
	Logger logging.Logger
	// profileLoaded records that a calibration profile set the block size.
	profileLoaded bool
}

// New parses the command line into an Application. A valid calibration
// profile is applied unless -block-size was given.
//
// Parameters:
//   - args: The command-line arguments (typically os.Args).
//   - errWriter: The writer for error output.
//
// Returns:
//   - *Application: A new application instance.
//   - error: An error if configuration parsing or validation fails.
func New(args []string, errWriter io.Writer) (*Application, error) {
	factory := glm.DefaultFactory()

	programName := "parglm"
	var cmdArgs []string
	if len(args) > 0 {
		programName = args[0]
		cmdArgs = args[1:]
	}

	cfg, err := config.ParseConfig(programName, cmdArgs, errWriter, factory.List())
	if err != nil {
		return nil, err
	}

	logger := logging.NewLevelLogger(errWriter, "parglm", logging.ParseLevel(cfg.LogLevel))
	cfg, loaded := calibration.LoadCachedCalibration(cfg, cfg.CalibrationProfile)
	if !cfg.Calibrate {
		checkProfile(cfg, loaded, logger)
	}
	return &Application{
		Config:        cfg,
		Factory:       factory,
		ErrWriter:     errWriter,
		Logger:        logger,
		profileLoaded: loaded,
	}, nil
}

// ProfileMaxAge is the age after which a calibration profile is reported
// as stale.
const ProfileMaxAge = 90 * 24 * time.Hour

// checkProfile logs when the calibration profile is stale or present but
// unusable on this machine.
func checkProfile(cfg config.AppConfig, loaded bool, logger logging.Logger) {
	path := cfg.CalibrationProfile
	if !loaded {
		if !cfg.BlockSizeSet && calibration.ProfileExists(path) {
			logger.Info("calibration profile ignored; run -calibrate to refresh it", logging.String("path", path))
		}
		return
	}
	if profile, err := calibration.LoadProfile(path); err == nil && profile.IsStale(ProfileMaxAge) {
		logger.Info("calibration profile is stale; run -calibrate to refresh it",
			logging.String("calibrated_at", profile.CalibratedAt.Format(time.DateOnly)))
	}
}

// Run dispatches to the configured mode.
//
// Parameters:
//   - ctx: The parent context.
//   - out: The writer for standard output.
//
// Returns:
//   - int: The exit code.
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	if a.Config.Completion != "" {
		return a.runCompletion(out)
	}
	if a.Logger == nil {
		a.Logger = logging.NopLogger{}
	}

	ui.InitTheme(a.Config.NoColor)

	if a.Config.ServerMode {
		return a.runServer()
	}
	if a.Config.Calibrate {
		return a.runCalibration(ctx, out)
	}
	return a.runFit(ctx, out)
}

func (a *Application) runCompletion(out io.Writer) int {
	if err := cli.GenerateCompletion(out, a.Config.Completion, a.Factory.List()); err != nil {
		fmt.Fprintf(a.ErrWriter, "Error generating completion: %v\n", err)
		return apperrors.ExitErrorConfig
	}
	return apperrors.ExitSuccess
}

// fitOptions are the fit defaults of the configuration, logging through
// the application logger.
func (a *Application) fitOptions() glm.Options {
	opts := a.Config.ToFitOptions()
	opts.Logger = a.Logger
	return opts
}

func (a *Application) runServer() int {
	svc := service.NewFitService(a.Factory, a.fitOptions(), service.DefaultLimits(), a.Logger)
	srv := server.NewServer(svc, a.Config, server.WithLogger(a.Logger))
	if err := srv.Start(); err != nil {
		fmt.Fprintf(a.ErrWriter, "Server error: %v\n", err)
		return apperrors.ExitCodeFor(err)
	}
	return apperrors.ExitSuccess
}

func (a *Application) runCalibration(ctx context.Context, out io.Writer) int {
	ctx, cancel := SetupLifecycle(ctx, a.Config.Timeout)
	defer cancel.Cleanup()
	return calibration.RunCalibration(ctx, a.Config, out)
}

// runFit loads the dataset, fits every requested family and reports.
func (a *Application) runFit(ctx context.Context, out io.Writer) int {
	ctx, cancel := SetupLifecycle(ctx, a.Config.Timeout)
	defer cancel.Cleanup()

	plain := a.Config.Quiet || a.Config.JSONOutput
	errOut := out
	if plain {
		errOut = a.ErrWriter
	}

	ds, err := dataset.Load(a.Config.DataPath, dataset.Format(a.Config.Format), a.Config.DatasetOptions())
	if err != nil {
		return apperrors.HandleFitError(err, 0, errOut, cli.CLIColorProvider{})
	}
	a.applyAdaptiveBlockSize(ds.Observations())
	a.Logger.Debug("dataset loaded",
		logging.String("path", a.Config.DataPath),
		logging.Int("observations", ds.Observations()),
		logging.Int("predictors", len(ds.Names)),
		logging.Int("block_size", a.Config.BlockSize),
	)

	families := cli.GetFamiliesToRun(a.Config, a.Factory)
	if len(families) == 0 {
		return apperrors.HandleFitError(apperrors.NewConfigError("no family selected"), 0, errOut, cli.CLIColorProvider{})
	}

	progressOut := out
	if plain {
		progressOut = io.Discard
	} else {
		cli.PrintExecutionConfig(a.Config, ds, out)
		cli.PrintExecutionMode(families, out)
	}

	results := orchestration.ExecuteFits(ctx, families, ds, a.fitOptions(), progressOut)
	return orchestration.AnalyzeFitResults(results, ds, a.Config, out)
}

// applyAdaptiveBlockSize replaces the default block size by an estimate for
// n observations when neither -block-size nor a calibration profile chose
// one.
func (a *Application) applyAdaptiveBlockSize(n int) {
	if a.Config.BlockSizeSet || a.profileLoaded {
		return
	}
	a.Config.BlockSize = calibration.EstimateOptimalBlockSize(n, a.Config.Threads)
}

// IsHelpError reports whether err comes from -help.
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
