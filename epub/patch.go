package epub

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"pdx/config"
	"pdx/entity"
	"pdx/linker"
	"pdx/utils/images"
)

// Options controls index chapter and artwork produced by Patch.
type Options struct {
	Index  *config.IndexConfig
	Images *config.ImagesConfig
	// SVG rasterized for entities without usable artwork, nil - no artwork
	// for such entities.
	Placeholder []byte
}

// Result summarizes what Patch did.
type Result struct {
	Chapters  int
	Links     int
	Mentioned []*entity.Entity
	IndexPath string
}

func isXHTML(it *Item) bool {
	switch it.MediaType {
	case xhtmlMediaType, "text/html":
		return true
	}
	return false
}

// firstChapter returns first XHTML document of reading order which is not
// navigation document.
func (b *Book) firstChapter() *Item {
	for _, it := range b.spine {
		if isXHTML(it) && !it.HasProperty("nav") {
			return it
		}
	}
	return nil
}

// IndexPath returns container path index chapter will have.
func (b *Book) IndexPath(fileName string) (string, error) {
	first := b.firstChapter()
	if first == nil {
		return "", errors.New("book has no XHTML documents in reading order")
	}
	return path.Join(path.Dir(first.Path), fileName), nil
}

// checkIndex makes sure book was not patched already.
func (b *Book) checkIndex(id, indexPath string) error {
	if _, ok := b.byID[id]; ok {
		return fmt.Errorf("%w: manifest has item %q", ErrIndexExists, id)
	}
	if _, ok := b.ItemByPath(indexPath); ok {
		return fmt.Errorf("%w: manifest has %s", ErrIndexExists, indexPath)
	}
	if _, ok := b.byName[indexPath]; ok {
		return fmt.Errorf("%w: container has %s", ErrIndexExists, indexPath)
	}
	return nil
}

// Patch links first mention of every entity in each chapter to generated
// index chapter which is added to the book. Dictionary mention flags are reset
// before processing. Nothing is changed when book already has index chapter.
func (b *Book) Patch(ctx context.Context, l *linker.Linker, opts *Options, log *zap.Logger) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	indexPath, err := b.IndexPath(opts.Index.FileName)
	if err != nil {
		return nil, err
	}
	if err := b.checkIndex(opts.Index.ID, indexPath); err != nil {
		return nil, err
	}

	res, err := b.linkChapters(ctx, l, indexPath, log)
	if err != nil {
		return nil, err
	}

	entries, err := b.addArtwork(res.Mentioned, path.Join(path.Dir(indexPath), opts.Index.ImagesDir), opts, log)
	if err != nil {
		return nil, err
	}

	index := buildIndex(indexPath, opts.Index.Title, l.IDPrefix(), b.epub3(), entries, newDescriber(opts.Index.MaxSentences, log))
	data, err := serializeXML(index)
	if err != nil {
		return nil, fmt.Errorf("unable to serialize index chapter: %w", err)
	}
	b.setFile(indexPath, data)

	item := b.addItem(opts.Index.ID, indexPath, xhtmlMediaType, "")
	b.appendSpine(item)
	if opts.Index.TOC {
		if err := b.addToTOC(item, opts.Index.Title, log); err != nil {
			return nil, fmt.Errorf("unable to update table of contents: %w", err)
		}
	}

	opf, err := serializeXML(b.opf)
	if err != nil {
		return nil, fmt.Errorf("unable to serialize package document: %w", err)
	}
	b.setFile(b.opfPath, opf)
	return res, nil
}

// Mentions links chapters in memory and returns entities found in the book
// without adding index chapter. Book must not be written afterwards.
func (b *Book) Mentions(ctx context.Context, l *linker.Linker, log *zap.Logger) ([]*entity.Entity, error) {
	indexPath, err := b.IndexPath("index.xhtml")
	if err != nil {
		return nil, err
	}
	res, err := b.linkChapters(ctx, l, indexPath, log)
	if err != nil {
		return nil, err
	}
	return res.Mentioned, nil
}

// linkChapters resets dictionary and rewrites every chapter of reading order,
// navigation documents are left alone.
func (b *Book) linkChapters(ctx context.Context, l *linker.Linker, indexPath string, log *zap.Logger) (*Result, error) {
	dict := l.Dictionary()
	dict.Reset()

	res := &Result{IndexPath: indexPath}
	for _, it := range b.spine {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !isXHTML(it) || it.HasProperty("nav") {
			continue
		}
		data, ok := b.file(it.Path)
		if !ok {
			log.Warn("Chapter is missing from container, skipping", zap.String("chapter", it.Path))
			continue
		}
		doc, err := parseXML(it.Path, data)
		if err != nil {
			log.Warn("Unable to parse chapter, skipping", zap.String("chapter", it.Path), zap.Error(err))
			continue
		}

		res.Chapters++
		links := l.RewriteChapter(doc, relativeHref(path.Dir(it.Path), indexPath))
		if links == 0 {
			continue
		}
		out, err := serializeXML(doc)
		if err != nil {
			return nil, fmt.Errorf("unable to serialize chapter %s: %w", it.Path, err)
		}
		b.setFile(it.Path, out)
		res.Links += links
	}
	res.Mentioned = dict.Mentioned()

	log.Info("Chapters linked",
		zap.Int("chapters", res.Chapters),
		zap.Int("links", res.Links),
		zap.Int("entities", len(res.Mentioned)))
	return res, nil
}

// artworkName returns base file name for entity artwork.
func artworkName(e *entity.Entity, ext string) string {
	name := slug.Make(e.Name)
	if name == "" {
		name = e.LinkID
	}
	return fmt.Sprintf("%03d-%s.%s", e.Number, name, ext)
}

// addArtwork stores artwork of mentioned entities in dir. Entities without
// usable artwork get placeholder if it is configured.
func (b *Book) addArtwork(mentioned []*entity.Entity, dir string, opts *Options, log *zap.Logger) ([]indexEntry, error) {
	var (
		entries     = make([]indexEntry, 0, len(mentioned))
		placeholder string
	)

	usePlaceholder := func() (string, error) {
		if placeholder != "" || opts.Placeholder == nil || !opts.Images.Placeholder {
			return placeholder, nil
		}
		art, err := images.Placeholder(opts.Placeholder, opts.Images.MaxHeight)
		if err != nil {
			return "", err
		}
		placeholder = b.uniquePath(path.Join(dir, "placeholder."+art.Ext))
		b.setFile(placeholder, art.Data)
		b.addItem(b.uniqueID("pdx-placeholder"), placeholder, art.MimeType, "")
		return placeholder, nil
	}

	for _, e := range mentioned {
		ie := indexEntry{entity: e}

		art, err := loadArtwork(e, opts.Images, log)
		if err != nil {
			log.Warn("Unable to use artwork", zap.String("name", e.Name), zap.Error(err))
			if ie.image, err = usePlaceholder(); err != nil {
				return nil, err
			}
			entries = append(entries, ie)
			continue
		}

		ie.image = b.uniquePath(path.Join(dir, artworkName(e, art.Ext)))
		b.setFile(ie.image, art.Data)
		b.addItem(b.uniqueID(fmt.Sprintf("pdx-img-%03d", e.Number)), ie.image, art.MimeType, "")
		entries = append(entries, ie)
	}
	return entries, nil
}

var errNoArtwork = errors.New("no artwork")

func loadArtwork(e *entity.Entity, cfg *config.ImagesConfig, log *zap.Logger) (*images.Artwork, error) {
	if strings.TrimSpace(e.ImagePath) == "" {
		return nil, errNoArtwork
	}
	data, err := os.ReadFile(e.ImagePath)
	if err != nil {
		return nil, err
	}
	return images.PrepareArtwork(data, cfg, log.With(zap.String("name", e.Name)))
}
