package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"pdx/misc"
	"pdx/state"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "links Pokémon mentions in EPUB books to generated Pokedex chapter",
		Version:         fmt.Sprintf("%s (%s) : %s", misc.GetVersion(), runtime.Version(), misc.GetGitHash()),
		HideHelpCommand: true,
		Before:          setup,
		After:           teardown,
		OnUsageError:    passUsageError,
		ExitErrHandler:  logExitError,
		CommandNotFound: unknownCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "read configuration from YAML `FILE`"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "log everything and collect troubleshooting report archive"},
		},
		Commands: []*cli.Command{
			patchCommand(),
			importCommand(),
			listCommand(),
			dumpConfigCommand(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	err := newApp().Run(ctx, os.Args)
	stop()

	if err == nil {
		return
	}
	if !errLogged {
		fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
	}
	os.Exit(1)
}
