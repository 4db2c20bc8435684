package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"pdx/config"
	"pdx/patch"
	"pdx/state"
)

func withHelp(extra string) string {
	return cli.CommandHelpTemplate + extra
}

func patchCommand() *cli.Command {
	return &cli.Command{
		Name:         "patch",
		Usage:        "Links Pokémon mentions in EPUB book(s) and appends Pokedex chapter",
		ArgsUsage:    "SOURCE [DESTINATION]",
		OnUsageError: passUsageError,
		Action:       patch.Run,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "nodirs", Aliases: []string{"nd"}, Usage: "put all patched books directly into destination"},
			&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "replace previously patched books in destination"},
		},
		CustomHelpTemplate: withHelp(`
SOURCE:
    EPUB book or directory, all *.epub files found under directory are
    patched, symbolic links are not followed

DESTINATION:
    directory for patched books, current working directory when absent.
    Names come from source or from configured template. Source book is
    never replaced.
`),
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:         "import",
		Usage:        "Imports Pokémon records into local store",
		ArgsUsage:    "SOURCE",
		OnUsageError: passUsageError,
		Action:       importRecords,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "replace", Usage: "remove all stored records before import"},
		},
		CustomHelpTemplate: withHelp(`
SOURCE:
    YAML file with list of records (number, name, description, image) or
    directory of JSON files (name, index, description, img_filepath), one
    per Pokémon. Relative image paths are resolved against source location.
`),
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:         "list",
		Usage:        "Lists stored Pokémon",
		OnUsageError: passUsageError,
		Action:       listRecords,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mentioned-in", Usage: "list only Pokémon mentioned in EPUB `BOOK`"},
		},
	}
}

func dumpConfigCommand() *cli.Command {
	return &cli.Command{
		Name:         "dumpconfig",
		Usage:        "Writes default or active configuration (YAML)",
		ArgsUsage:    "DESTINATION",
		OnUsageError: passUsageError,
		Action:       dumpConfig,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "default", Usage: "write configuration embedded into program"},
		},
		CustomHelpTemplate: withHelp(`
DESTINATION:
    file to write configuration to, STDOUT when absent

Active configuration is embedded defaults merged with configuration file
given by --config.
`),
	}
}

func dumpConfig(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	kind, dump := "actual", func() ([]byte, error) { return config.Dump(env.Cfg) }
	if cmd.Bool("default") {
		kind, dump = "default", config.Prepare
	}
	data, err := dump()
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	dst := cmd.Args().Get(0)
	env.Log.Info("Writing configuration", zap.String("state", kind), zap.String("to", cmp.Or(dst, "STDOUT")))
	if dst == "" {
		return writeConfig(os.Stdout, data)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to create destination file '%s': %w", dst, err)
	}
	if err := writeConfig(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeConfig(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
