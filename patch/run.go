// Package patch implements "patch" command: it links Pokémon mentions in
// EPUB books and writes patched copies.
package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	rdebug "runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"pdx/entity"
	"pdx/epub"
	"pdx/linker"
	"pdx/pokedex"
	"pdx/state"
	"pdx/utils/debug"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("patch")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	dict, err := LoadDictionary(env, log)
	if err != nil {
		return err
	}
	l := linker.New(dict, &env.Cfg.Linking, log)

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Int("entities", dict.Len()))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, l, src, dst, log)
}

// LoadDictionary reads all entities from the store and builds dictionary using
// configured aliases.
func LoadDictionary(env *state.LocalEnv, log *zap.Logger) (*entity.Dictionary, error) {
	store, err := pokedex.Open(env.Cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	entities, err := store.Entities()
	if err != nil {
		return nil, fmt.Errorf("unable to read entities: %w", err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("store %s is empty, import Pokédex first", store.Path())
	}

	dict, err := entity.NewDictionary(entities, env.Cfg.Linking.Aliases, env.Cfg.Linking.Rules())
	if err != nil {
		return nil, fmt.Errorf("unable to build dictionary: %w", err)
	}
	for _, e := range dict.Skipped {
		log.Debug("Skipping duplicate name", zap.Int("number", e.Number), zap.String("name", e.Name))
	}
	if env.Rpt != nil {
		env.Rpt.StoreData("dictionary.txt", []byte(dict.String()))
	}
	log.Debug("Dictionary loaded", zap.String("store", store.Path()), zap.Int("entities", dict.Len()), zap.Int("skipped", len(dict.Skipped)))
	return dict, nil
}

func isBookFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".epub")
}

// process handles single book or directory with books.
func process(ctx context.Context, l *linker.Linker, src, dst string, log *zap.Logger) error {
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("input source was not found (%s): %w", src, err)
	}

	if fi.IsDir() {
		if err := processDir(ctx, l, src, dst, log); err != nil {
			return fmt.Errorf("unable to process directory: %w", err)
		}
		return nil
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("unexpected path mode for (%s)", src)
	}
	if !isBookFile(src) {
		return fmt.Errorf("input was not recognized as EPUB book (%s)", src)
	}
	return processBook(ctx, l, src, filepath.Base(src), dst, log)
}

// processDir walks directory tree finding books and processes them. Failed
// books are logged and do not stop processing.
func processDir(ctx context.Context, l *linker.Linker, dir, dst string, log *zap.Logger) error {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.Type().IsRegular() || !isBookFile(path) {
			return nil
		}
		count++

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		if err := processBook(ctx, l, path, rel, dst, log); err != nil {
			log.Error("Unable to process book", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
	if err == nil && count == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
	}
	return err
}

// processBook patches single book. "src" is full path to the book, "rel" is
// its path relative to the processed directory (base name for single book).
func processBook(ctx context.Context, l *linker.Linker, src, rel, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var refID, outputName string

	log.Info("Patching starting", zap.String("from", src))
	defer func(start time.Time) {
		// image decoders may panic on broken artwork, other books should
		// still be processed
		if r := recover(); r != nil {
			log.Error("Patching ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", rdebug.Stack()))
			rerr = fmt.Errorf("patching panic: %v", r)
		} else if rerr == nil {
			log.Info("Patching completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.String("ref_id", refID))
		}
	}(time.Now())

	book, err := epub.Open(src, log)
	if err != nil {
		return fmt.Errorf("unable to open book (%s): %w", src, err)
	}

	refID = book.Identifier
	if refID == "" {
		refID = uuid.NewString()
		log.Debug("Book has no identifier, using random one", zap.String("ref_id", refID))
	}

	outputName = buildOutputPath(book, rel, dst, env)
	if err := checkOutput(src, outputName, env.Overwrite, log); err != nil {
		return err
	}

	res, err := book.Patch(ctx, l, &epub.Options{
		Index:       &env.Cfg.Index,
		Images:      &env.Cfg.Document.Images,
		Placeholder: env.DefaultArtwork,
	}, log)
	if err != nil {
		return fmt.Errorf("unable to patch book: %w", err)
	}

	if err := book.Write(outputName, env.Cfg.Document.FixZip); err != nil {
		return fmt.Errorf("unable to write book: %w", err)
	}

	if env.Rpt != nil {
		name := slug.Make(refID)
		env.Rpt.Store(fmt.Sprintf("result-%s.epub", name), outputName)
		env.Rpt.StoreData(fmt.Sprintf("mentioned-%s.txt", name), []byte(describeResult(book, res)))
	}
	return nil
}

// checkOutput makes sure output could be written. Source is never replaced,
// existing output is replaced only when overwrite was requested.
func checkOutput(src, outputName string, overwrite bool, log *zap.Logger) error {
	if filepath.Clean(src) == filepath.Clean(outputName) {
		return fmt.Errorf("output would replace source book: %s", outputName)
	}
	if sfi, err := os.Stat(src); err == nil {
		if ofi, err := os.Stat(outputName); err == nil && os.SameFile(sfi, ofi) {
			return fmt.Errorf("output would replace source book: %s", outputName)
		}
	}

	if _, err := os.Stat(outputName); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}

func describeResult(book *epub.Book, res *epub.Result) string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Book %q (EPUB %s)", book.Title, book.Version)
	tw.Text(1, "source", book.Source)
	tw.Text(1, "index", res.IndexPath)
	tw.Line(1, "chapters: %d, links: %d", res.Chapters, res.Links)
	for _, e := range res.Mentioned {
		tw.Line(2, "#%03d %q link[%q]", e.Number, e.Name, e.LinkID)
	}
	return tw.String()
}
