package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pdx/config"
	"pdx/misc"
	"pdx/state"
)

// errLogged is set when final error already went to the log.
var errLogged bool

// setup runs after command line is parsed and prepares environment for
// command actions.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.NArg() == 0 {
		// help or version only
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)
	cfgFile := cmd.String("config")

	cfg, err := config.LoadConfiguration(cfgFile)
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	env.Cfg = cfg

	if cmd.Bool("debug") {
		if env.Rpt, err = cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		if cfgFile != "" {
			if data, err := config.Dump(cfg); err == nil {
				env.Rpt.StoreData("config/"+filepath.Base(cfgFile), data)
			}
		}
	}

	if env.Log, err = cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started",
		zap.Strings("args", os.Args),
		zap.String("ver", misc.GetVersion()),
		zap.String("runtime", runtime.Version()),
		zap.String("hash", misc.GetGitHash()))
	switch {
	case env.Rpt != nil:
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	case cfgFile == "":
		env.Log.Debug("No configuration file, using defaults")
	}
	return ctx, nil
}

// teardown flushes logs and closes report. Nothing is logged after report is
// closed, errors are returned to be printed to stderr.
func teardown(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}
	env.RestoreStdLog()

	var err error
	if env.Rpt != nil {
		if e := env.Rpt.Close(); e != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", e))
		}
	}
	if env.Cfg != nil {
		err = multierr.Append(err, removeEmptyPanicLog(env.Cfg.Logging.FileLogger.Destination))
	}
	return err
}

// removeEmptyPanicLog deletes crash output file created next to the log when
// program did not crash.
func removeEmptyPanicLog(logFile string) error {
	if logFile == "" {
		return nil
	}
	_ = debug.SetCrashOutput(nil, debug.CrashOptions{})

	name := filepath.Join(filepath.Dir(logFile), misc.GetAppName()+"-panic.log")
	fi, err := os.Stat(name)
	if err != nil || fi.Size() > 0 {
		return nil
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unable to remove empty panic log '%s': %w", name, err)
	}
	return nil
}

func logExitError(ctx context.Context, _ *cli.Command, err error) {
	if log := state.EnvFromContext(ctx).Log; log != nil {
		log.Error("Program ended with error", zap.Error(err))
		errLogged = true
	}
}

func passUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

func unknownCommand(ctx context.Context, _ *cli.Command, name string) {
	if log := state.EnvFromContext(ctx).Log; log != nil {
		log.Warn("Unknown command, nothing to do", zap.String("command", name))
		return
	}
	fmt.Fprintf(os.Stderr, "Unknown command %q\n", name)
}
