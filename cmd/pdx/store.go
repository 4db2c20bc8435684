package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"pdx/entity"
	"pdx/epub"
	"pdx/linker"
	"pdx/patch"
	"pdx/pokedex"
	"pdx/state"
)

func readRecords(src string, log *zap.Logger) ([]pokedex.Record, error) {
	fi, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("input source was not found (%s): %w", src, err)
	}
	if fi.IsDir() {
		return pokedex.ReadJSONDir(src, log)
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pokedex.ReadYAML(f, filepath.Dir(src), log)
}

func importRecords(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named("import")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err := filepath.Abs(src)
	if err != nil {
		return err
	}

	records, err := readRecords(src, log)
	if err != nil {
		return fmt.Errorf("unable to read records: %w", err)
	}

	store, err := pokedex.Open(env.Cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if cmd.Bool("replace") {
		log.Info("Removing stored records", zap.String("store", store.Path()))
		if err := store.Clear(); err != nil {
			return err
		}
	}
	if err := store.Put(records...); err != nil {
		return fmt.Errorf("unable to store records: %w", err)
	}

	total, err := store.Count()
	if err != nil {
		return err
	}
	log.Info("Import completed", zap.String("source", src), zap.Int("imported", len(records)), zap.Int("total", total))
	return nil
}

func listRecords(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named("list")

	var entities []*entity.Entity
	if book := cmd.String("mentioned-in"); book != "" {
		dict, err := patch.LoadDictionary(env, log)
		if err != nil {
			return err
		}
		b, err := epub.Open(book, log)
		if err != nil {
			return fmt.Errorf("unable to open book (%s): %w", book, err)
		}
		if entities, err = b.Mentions(ctx, linker.New(dict, &env.Cfg.Linking, log), log); err != nil {
			return err
		}
	} else {
		store, err := pokedex.Open(env.Cfg.Store.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		if entities, err = store.Entities(); err != nil {
			return err
		}
	}
	return printEntities(os.Stdout, entities)
}

func printEntities(w io.Writer, entities []*entity.Entity) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range entities {
		fmt.Fprintf(tw, "#%03d\t%s\t%s\n", e.Number, e.Name, e.LinkID)
	}
	return tw.Flush()
}
