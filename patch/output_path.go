package patch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"pdx/config"
	"pdx/epub"
	"pdx/state"
)

const outputExt = ".epub"

// Values holds variables available for output name template expansion.
type Values struct {
	Context    string
	Title      string
	Identifier string
	Version    string
	SourceFile string
}

func expandTemplate(book *epub.Book, src string, name config.TemplateFieldName, field string) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values := Values{
		Context:    string(name),
		Title:      book.Title,
		Identifier: book.Identifier,
		Version:    book.Version,
		SourceFile: strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// buildOutputPath returns output file path for book. "src" is the book path
// relative to processed directory. Source directory structure is kept unless
// NoDirs is set, file name comes either from source or from configured
// template (which may add subdirectories).
func buildOutputPath(book *epub.Book, src, dst string, env *state.LocalEnv) string {
	outDir := dst
	if !env.NoDirs {
		outDir = filepath.Join(dst, filepath.Dir(src))
	}
	defaultFile := cleanPathSegment(strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)), env) + outputExt

	if env.Cfg.Document.OutputNameTemplate == "" {
		return filepath.Join(outDir, defaultFile)
	}

	expanded, err := expandTemplate(book, src, config.OutputNameTemplateFieldName, env.Cfg.Document.OutputNameTemplate)
	if err != nil {
		env.Log.Warn("Unable to prepare output filename", zap.Error(err))
		return filepath.Join(outDir, defaultFile)
	}

	segments := splitPath(filepath.FromSlash(expanded))
	if len(segments) == 0 {
		return filepath.Join(outDir, defaultFile)
	}

	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, outDir)
	for _, s := range segments[:len(segments)-1] {
		parts = append(parts, cleanPathSegment(s, env))
	}
	parts = append(parts, cleanPathSegment(segments[len(segments)-1], env)+outputExt)
	return filepath.Join(parts...)
}

// splitPath returns non empty path segments, leading separators are ignored.
func splitPath(p string) []string {
	p = strings.TrimSuffix(p, string(os.PathSeparator))
	segments := make([]string, 0, 8)
	for head, tail := filepath.Split(p); ; head, tail = filepath.Split(head) {
		if tail != "" {
			segments = slices.Insert(segments, 0, tail)
		}
		head = strings.TrimSuffix(head, string(os.PathSeparator))
		if head == "" || head == p {
			break
		}
		p = head
	}
	return segments
}

func cleanPathSegment(segment string, env *state.LocalEnv) string {
	if env.Cfg.Document.FileNameTransliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}
