package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"folio/config"
	"folio/misc"
	"folio/state"
)

// initializeAppContext prepares application context before command execution but
// after command line has been parsed
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		// nothing to do, just return
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	env.ConfigFile = cmd.String("config")
	env.Debug = cmd.Bool("debug")
	if env.Cfg, err = config.LoadConfiguration(env.ConfigFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if env.Debug {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		// save complete processed configuration if external configuration was provided
		if len(env.ConfigFile) > 0 {
			if data, err := config.Dump(env.Cfg); err == nil {
				env.Rpt.StoreData(fmt.Sprintf("config/%s", filepath.Base(env.ConfigFile)), data)
			}
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()))

	if env.Rpt != nil {
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	}
	if len(env.ConfigFile) == 0 {
		env.Log.Info("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	// close logging
	env.RestoreStdLog()

	// log is synced now and result can be used in report if necessary, errors
	// must be reported directly to stderr from now on
	if env.Rpt != nil {
		if er := env.Rpt.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
		}
	}
	// reporting is closed now - remove empty panic file if any
	if env.Cfg != nil && len(env.Cfg.Logging.FileLogger.Destination) > 0 {
		debug.SetCrashOutput(nil, debug.CrashOptions{})
		fname := filepath.Join(filepath.Dir(env.Cfg.Logging.FileLogger.Destination), misc.GetAppName()+"-panic.log")
		if fi, er := os.Stat(fname); er == nil && fi.Size() == 0 {
			if er := os.Remove(fname); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to remove empty panic log file '%s': %w", fname, er))
			}
		}
	}
	return
}

// Errors are returned from subcommands as regular errors, cli.Exit() is not
// used.
var errWasHandled bool

// this is called before appContext is destroyed, so we have a chance to
// properly log any error from subcommand
func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	// do nothing special, error is reported either by exitErrHandler or on
	// exit directly to stderr.
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	state.EnvFromContext(ctx).Log.Warn("Unknown command, nothing to do", zap.String("command", name))
}

const sourceHelp = `
SOURCE:
    book to read, following formats are supported:
        fiction book: "[path_to_file]file.fb2"
        zip archive: "[path_to_archive]archive.zip" - first fb2 file in the archive is used
        YAML book: "[path_to_file]file.yaml" - title, chapters with text and styled phrases
        plain text: "[path_to_file]file.txt" - chapters are separated by form feed or a line of "***"
        directory: "[path_to_directory]directory" - every .txt file is a chapter, in natural order
    if absent - built-in sample story
`

func main() {
	// allow graceful shutdown on interrupt, serve and watch run until stopped
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	viewportFlags := []cli.Flag{
		&cli.FloatFlag{Name: "width", Aliases: []string{"W"}, Usage: "page box `WIDTH` in points, overrides configuration"},
		&cli.FloatFlag{Name: "height", Aliases: []string{"H"}, Usage: "page box `HEIGHT` in points, overrides configuration"},
	}

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "deterministic pagination engine for e-books",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, produces report archive"},
		},
		Commands: []*cli.Command{
			{
				Name:         "paginate",
				Usage:        "Splits book into pages and prints them",
				OnUsageError: usageErrorHandler,
				Action:       runPaginate,
				Flags: append(viewportFlags,
					&cli.IntFlag{Name: "bookmark", Aliases: []string{"b"}, Value: -1, Usage: "report page shown for stored `OFFSET`"},
				),
				ArgsUsage:          "[SOURCE]",
				CustomHelpTemplate: cli.CommandHelpTemplate + sourceHelp,
			},
			{
				Name:               "toc",
				Usage:              "Prints chapter menu",
				OnUsageError:       usageErrorHandler,
				Action:             runTOC,
				Flags:              append(viewportFlags, &cli.BoolFlag{Name: "yaml", Usage: "output entries as YAML"}),
				ArgsUsage:          "[SOURCE]",
				CustomHelpTemplate: cli.CommandHelpTemplate + sourceHelp,
			},
			{
				Name:               "resolve",
				Usage:              "Prints page shown for stored bookmark offset",
				OnUsageError:       usageErrorHandler,
				Action:             runResolve,
				Flags:              viewportFlags,
				ArgsUsage:          "OFFSET [SOURCE]",
				CustomHelpTemplate: cli.CommandHelpTemplate + sourceHelp,
			},
			{
				Name:         "read",
				Usage:        "Opens book at persisted bookmark, turns pages and persists new position",
				OnUsageError: usageErrorHandler,
				Action:       runRead,
				Flags: append(viewportFlags,
					&cli.IntFlag{Name: "select", Aliases: []string{"s"}, Usage: "select page `NUMBER`"},
					&cli.IntFlag{Name: "chapter", Usage: "jump to chapter `NUMBER`"},
					&cli.BoolFlag{Name: "next", Aliases: []string{"n"}, Usage: "turn to the next page"},
					&cli.BoolFlag{Name: "prev", Aliases: []string{"p"}, Usage: "turn to the previous page"},
				),
				ArgsUsage:          "[SOURCE]",
				CustomHelpTemplate: cli.CommandHelpTemplate + sourceHelp,
			},
			{
				Name:         "verify",
				Usage:        "Checks pagination invariants for a number of viewports",
				OnUsageError: usageErrorHandler,
				Action:       runVerify,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "size", Value: []string{"160x240", "240x320", "360x540", "600x800", "1200x1600"},
						Usage: "page box `WIDTHxHEIGHT` in points, may be repeated"},
				},
				ArgsUsage:          "[SOURCE]",
				CustomHelpTemplate: cli.CommandHelpTemplate + sourceHelp,
			},
			{
				Name:               "watch",
				Usage:              "Prints current page and repaginates whenever book source changes",
				OnUsageError:       usageErrorHandler,
				Action:             runWatch,
				Flags:              viewportFlags,
				ArgsUsage:          "SOURCE",
				CustomHelpTemplate: cli.CommandHelpTemplate + sourceHelp,
			},
			{
				Name:         "serve",
				Usage:        "Serves reading session over HTTP JSON API",
				OnUsageError: usageErrorHandler,
				Action:       runServe,
				Flags: append(viewportFlags,
					&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "listen on `ADDRESS`, overrides configuration"},
				),
				ArgsUsage:          "[SOURCE]",
				CustomHelpTemplate: cli.CommandHelpTemplate + sourceHelp,
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
				CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values wich is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`, cli.CommandHelpTemplate),
			},
		},
	}

	var err error
	// NOTE: os.Exit is called at the end of main to set exit code, make sure
	// there are no other deffered functions after that
	defer func() {
		stop()
		if err != nil {
			// It may happen that log is either not set yet (argument parsing) or already closed,
			// report errors to stderr directly
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err   error
		data  []byte
		state string
	)

	out := os.Stdout
	if len(fname) > 0 {
		out, err = os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()
	}

	if cmd.Bool("default") {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Info("Outputing configuration", zap.String("state", state), zap.String("file", fname))

	_, err = out.Write(data)
	if err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
