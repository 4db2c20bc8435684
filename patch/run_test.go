package patch

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"pdx/config"
	"pdx/epub"
	"pdx/linker"
	"pdx/pokedex"
	"pdx/state"
)

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" unique-identifier="id" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Kanto Tales</dc:title><dc:identifier id="id">urn:uuid:kanto</dc:identifier></metadata>
  <manifest><item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/></manifest>
  <spine><itemref idref="ch1"/></spine>
</package>`

func writeBook(t *testing.T, name string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(name)
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range []struct{ name, content string }{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", `<container><rootfiles><rootfile full-path="content.opf" media-type="application/oebps-package+xml"/></rootfiles></container>`},
		{"content.opf", testOPF},
		{"ch1.xhtml", `<html xmlns="http://www.w3.org/1999/xhtml"><head><title>1</title></head><body><p>A tauros and a Vulpix.</p></body></html>`},
	} {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := io.WriteString(w, e.content); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func readEntry(t *testing.T, book, name string) string {
	t.Helper()

	zr, err := zip.OpenReader(book)
	if err != nil {
		t.Fatalf("open %s: %v", book, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read entry: %v", err)
		}
		return string(data)
	}
	t.Fatalf("%s has no entry %s", book, name)
	return ""
}

// setupTestContext returns context with environment using fresh store filled
// with a few records.
func setupTestContext(t *testing.T) context.Context {
	t.Helper()

	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Store.Path = filepath.Join(t.TempDir(), "pokedex.db")

	store, err := pokedex.Open(cfg.Store.Path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	err = store.Put(
		pokedex.Record{Number: 37, Name: "Vulpix", Description: "Vulpix is a Fire-type Pokémon."},
		pokedex.Record{Number: 122, Name: "Mr. Mime", Description: "Barrier."},
		pokedex.Record{Number: 128, Name: "Tauros", Description: "Tauros is a Normal-type Pokémon."},
		pokedex.Record{Number: 29, Name: "Nidoran♂", Description: "Poison pin."},
		pokedex.Record{Number: 83, Name: "Farfetch'd", Description: "Leek."},
		pokedex.Record{Number: 439, Name: "Mime Jr.", Description: "Mimic."},
	)
	if err != nil {
		t.Fatalf("put records: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Cfg = cfg
	env.Log = zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller()))
	return ctx
}

func setupTestLinker(t *testing.T, ctx context.Context) *linker.Linker {
	t.Helper()

	env := state.EnvFromContext(ctx)
	dict, err := LoadDictionary(env, env.Log)
	if err != nil {
		t.Fatalf("LoadDictionary() error = %v", err)
	}
	return linker.New(dict, &env.Cfg.Linking, env.Log)
}

func TestLoadDictionary(t *testing.T) {
	ctx := setupTestContext(t)
	env := state.EnvFromContext(ctx)

	dict, err := LoadDictionary(env, env.Log)
	if err != nil {
		t.Fatalf("LoadDictionary() error = %v", err)
	}
	if dict.Len() != 6 {
		t.Errorf("Len() = %d, want 6", dict.Len())
	}
	if first := dict.Entities()[0]; first.Number != 29 {
		t.Errorf("first entity = #%d, want store order by number", first.Number)
	}
	if e, ok := dict.Lookup("barrierd"); !ok || e.Name != "Mr. Mime" {
		t.Errorf("configured alias not applied: %v, %v", e, ok)
	}
}

func TestLoadDictionary_EmptyStore(t *testing.T) {
	ctx := setupTestContext(t)
	env := state.EnvFromContext(ctx)
	env.Cfg.Store.Path = filepath.Join(t.TempDir(), "empty.db")

	if _, err := LoadDictionary(env, env.Log); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Errorf("LoadDictionary() error = %v, want empty store error", err)
	}
}

func TestProcess_SingleBook(t *testing.T) {
	ctx := setupTestContext(t)
	l := setupTestLinker(t, ctx)
	log := state.EnvFromContext(ctx).Log

	src := filepath.Join(t.TempDir(), "kanto.epub")
	writeBook(t, src)
	dst := t.TempDir()

	if err := process(ctx, l, src, dst, log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	out := filepath.Join(dst, "kanto.epub")
	ch1 := readEntry(t, out, "ch1.xhtml")
	for _, want := range []string{
		`<a href="np_pokedex.xhtml#pokemon-id-tauros">tauros</a>`,
		`<a href="np_pokedex.xhtml#pokemon-id-vulpix">Vulpix</a>`,
	} {
		if !strings.Contains(ch1, want) {
			t.Errorf("chapter missing %s\n%s", want, ch1)
		}
	}
	index := readEntry(t, out, "np_pokedex.xhtml")
	if !strings.Contains(index, "<p>Vulpix is a Fire-type Pokémon.</p>") {
		t.Errorf("unexpected index chapter\n%s", index)
	}
	// no artwork in store, every entity gets shared placeholder
	if strings.Count(index, `src="pokemon/placeholder.png"`) != 2 {
		t.Errorf("placeholder expected for both entities\n%s", index)
	}

	// second run must not overwrite without permission
	if err := processBook(ctx, l, src, "kanto.epub", dst, log); err == nil {
		t.Error("expected error for existing output")
	}
	state.EnvFromContext(ctx).Overwrite = true
	if err := processBook(ctx, l, src, "kanto.epub", dst, log); err != nil {
		t.Errorf("processBook() with overwrite error = %v", err)
	}
}

func TestProcess_RefusesToReplaceSource(t *testing.T) {
	ctx := setupTestContext(t)
	l := setupTestLinker(t, ctx)
	env := state.EnvFromContext(ctx)
	env.Overwrite = true

	dir := t.TempDir()
	src := filepath.Join(dir, "kanto.epub")
	writeBook(t, src)
	before, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}

	if err := processBook(ctx, l, src, "kanto.epub", dir, env.Log); err == nil {
		t.Fatal("expected error when output is the source")
	}
	after, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("source book was modified")
	}
}

func TestProcess_Directory(t *testing.T) {
	tests := []struct {
		name   string
		noDirs bool
		want   []string
	}{
		{"keep structure", false, []string{"a.epub", filepath.Join("kanto", "b.epub")}},
		{"flat", true, []string{"a.epub", "b.epub"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := setupTestContext(t)
			l := setupTestLinker(t, ctx)
			env := state.EnvFromContext(ctx)
			env.NoDirs = tt.noDirs

			src := t.TempDir()
			writeBook(t, filepath.Join(src, "a.epub"))
			writeBook(t, filepath.Join(src, "kanto", "b.epub"))
			if err := os.WriteFile(filepath.Join(src, "notes.txt"), []byte("tauros"), 0644); err != nil {
				t.Fatal(err)
			}
			// broken book is logged and skipped
			if err := os.WriteFile(filepath.Join(src, "broken.epub"), []byte("not a zip"), 0644); err != nil {
				t.Fatal(err)
			}

			dst := t.TempDir()
			if err := process(ctx, l, src, dst, env.Log); err != nil {
				t.Fatalf("process() error = %v", err)
			}
			for _, name := range tt.want {
				if _, err := os.Stat(filepath.Join(dst, name)); err != nil {
					t.Errorf("expected output %s: %v", name, err)
				}
			}
			if _, err := os.Stat(filepath.Join(dst, "broken.epub")); err == nil {
				t.Error("broken book must not produce output")
			}
		})
	}
}

func TestProcess_Errors(t *testing.T) {
	ctx := setupTestContext(t)
	l := setupTestLinker(t, ctx)
	log := state.EnvFromContext(ctx).Log

	dir := t.TempDir()
	txt := filepath.Join(dir, "book.txt")
	if err := os.WriteFile(txt, []byte("text"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := process(ctx, l, filepath.Join(dir, "missing.epub"), t.TempDir(), log); err == nil {
		t.Error("expected error for missing source")
	}
	if err := process(ctx, l, txt, t.TempDir(), log); err == nil {
		t.Error("expected error for non EPUB source")
	}
}

func TestDescribeResult(t *testing.T) {
	ctx := setupTestContext(t)
	l := setupTestLinker(t, ctx)
	log := state.EnvFromContext(ctx).Log

	src := filepath.Join(t.TempDir(), "kanto.epub")
	writeBook(t, src)
	book, err := epub.Open(src, log)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	mentioned, err := book.Mentions(ctx, l, log)
	if err != nil {
		t.Fatalf("Mentions() error = %v", err)
	}

	out := describeResult(book, &epub.Result{Chapters: 1, Links: 2, Mentioned: mentioned, IndexPath: "np_pokedex.xhtml"})
	for _, want := range []string{
		`Book "Kanto Tales" (EPUB 2.0)`,
		`  index: "np_pokedex.xhtml"`,
		`  chapters: 1, links: 2`,
		`    #037 "Vulpix" link["vulpix"]`,
		`    #128 "Tauros" link["tauros"]`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("describeResult() missing %q:\n%s", want, out)
		}
	}
}
