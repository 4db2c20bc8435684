// Package epub opens EPUB books, links entity mentions in their chapters,
// appends index chapter and writes result back.
package epub

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"pdx/archive"
)

var (
	ErrNoContainer  = errors.New("missing META-INF/container.xml")
	ErrNoRootfile   = errors.New("no package document in container")
	ErrDRMProtected = errors.New("DRM-protected book cannot be processed")
	ErrIndexExists  = errors.New("book already has index chapter")
)

const (
	mimetypeName    = "mimetype"
	mimetypeContent = "application/epub+zip"
	containerName   = "META-INF/container.xml"
	opfMediaType    = "application/oebps-package+xml"
	xhtmlMediaType  = "application/xhtml+xml"
	ncxMediaType    = "application/x-dtbncx+xml"
)

// Item is package manifest entry. Href is relative to package document, Path
// is full name inside the container.
type Item struct {
	ID         string
	Href       string
	Path       string
	MediaType  string
	Properties string

	elem *etree.Element
}

func (it *Item) HasProperty(p string) bool {
	for prop := range strings.FieldsSeq(it.Properties) {
		if prop == p {
			return true
		}
	}
	return false
}

// Book is EPUB container loaded in memory.
type Book struct {
	Source     string
	Version    string
	Identifier string
	Title      string

	entries []*archive.Entry
	byName  map[string]*archive.Entry

	opfPath  string
	opf      *etree.Document
	manifest []*Item
	byID     map[string]*Item
	spine    []*Item
}

// newDocument returns etree document set up for reading book content which
// may use any declared encoding and HTML named entities.
func newDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.WriteSettings = etree.WriteSettings{
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Entity:        xml.HTMLEntity,
		Permissive:    true,
	}
	return doc
}

func parseXML(name string, data []byte) (*etree.Document, error) {
	doc := newDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", name, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("unable to parse %s: no root element", name)
	}
	return doc, nil
}

// serializeXML writes document as UTF-8, content was converted when it was
// read so declared encoding has to follow.
func serializeXML(doc *etree.Document) ([]byte, error) {
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			pi.Inst = `version="1.0" encoding="UTF-8"`
			break
		}
	}
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Open loads book and parses its package document.
func Open(src string, log *zap.Logger) (*Book, error) {
	entries, err := archive.Load(src)
	if err != nil {
		return nil, fmt.Errorf("unable to read book: %w", err)
	}

	b := &Book{
		Source:  src,
		entries: entries,
		byName:  make(map[string]*archive.Entry, len(entries)),
		byID:    make(map[string]*Item),
	}
	for _, e := range entries {
		b.byName[e.Name] = e
	}

	if data, ok := b.file(mimetypeName); !ok || strings.TrimSpace(string(data)) != mimetypeContent {
		log.Warn("Book has missing or wrong mimetype, continuing anyway")
	}
	if err := b.checkDRM(); err != nil {
		return nil, err
	}
	if b.opfPath, err = b.rootfile(); err != nil {
		return nil, err
	}
	if err := b.parsePackage(); err != nil {
		return nil, err
	}

	log.Debug("Book opened",
		zap.String("version", b.Version),
		zap.String("package", b.opfPath),
		zap.Int("manifest", len(b.manifest)),
		zap.Int("spine", len(b.spine)))
	return b, nil
}

func (b *Book) file(name string) ([]byte, bool) {
	e, ok := b.byName[name]
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// setFile replaces content of existing entry or appends new one.
func (b *Book) setFile(name string, data []byte) {
	if e, ok := b.byName[name]; ok {
		e.Data = data
		return
	}
	e := &archive.Entry{Name: name, Method: deflate, Data: data}
	b.entries = append(b.entries, e)
	b.byName[name] = e
}

func (b *Book) rootfile() (string, error) {
	data, ok := b.file(containerName)
	if !ok {
		return "", ErrNoContainer
	}
	doc, err := parseXML(containerName, data)
	if err != nil {
		return "", err
	}

	var first string
	for _, rf := range doc.FindElements("//rootfiles/rootfile") {
		full := rf.SelectAttrValue("full-path", "")
		if full == "" {
			continue
		}
		mt := rf.SelectAttrValue("media-type", "")
		if mt == opfMediaType || mt == "" {
			return full, nil
		}
		if first == "" {
			first = full
		}
	}
	if first == "" {
		return "", ErrNoRootfile
	}
	return first, nil
}

func (b *Book) parsePackage() error {
	data, ok := b.file(b.opfPath)
	if !ok {
		return fmt.Errorf("%w: %s not found", ErrNoRootfile, b.opfPath)
	}
	doc, err := parseXML(b.opfPath, data)
	if err != nil {
		return err
	}
	b.opf = doc

	pkg := doc.Root()
	b.Version = pkg.SelectAttrValue("version", "2.0")

	if md := pkg.SelectElement("metadata"); md != nil {
		if t := md.SelectElement("title"); t != nil {
			b.Title = strings.TrimSpace(t.Text())
		}
		uid := pkg.SelectAttrValue("unique-identifier", "")
		for _, id := range md.SelectElements("identifier") {
			if uid == "" || id.SelectAttrValue("id", "") == uid {
				b.Identifier = strings.TrimSpace(id.Text())
				break
			}
		}
	}

	manifest := pkg.SelectElement("manifest")
	if manifest == nil {
		return fmt.Errorf("package document %s has no manifest", b.opfPath)
	}
	for _, el := range manifest.SelectElements("item") {
		it := &Item{
			ID:         el.SelectAttrValue("id", ""),
			Href:       el.SelectAttrValue("href", ""),
			MediaType:  el.SelectAttrValue("media-type", ""),
			Properties: el.SelectAttrValue("properties", ""),
			elem:       el,
		}
		it.Path = b.resolve(it.Href)
		b.manifest = append(b.manifest, it)
		if it.ID != "" {
			b.byID[it.ID] = it
		}
	}

	if spine := pkg.SelectElement("spine"); spine != nil {
		for _, ref := range spine.SelectElements("itemref") {
			if it, ok := b.byID[ref.SelectAttrValue("idref", "")]; ok {
				b.spine = append(b.spine, it)
			}
		}
	}
	return nil
}

// resolve converts href relative to package document to container path.
func (b *Book) resolve(href string) string {
	href, _, _ = strings.Cut(href, "#")
	return path.Join(path.Dir(b.opfPath), unescapeHref(href))
}

// Item returns manifest item by id.
func (b *Book) Item(id string) (*Item, bool) {
	it, ok := b.byID[id]
	return it, ok
}

// ItemByPath returns manifest item by container path.
func (b *Book) ItemByPath(p string) (*Item, bool) {
	for _, it := range b.manifest {
		if it.Path == p {
			return it, true
		}
	}
	return nil, false
}

// Spine returns reading order.
func (b *Book) Spine() []*Item {
	return b.spine
}

// Manifest returns all manifest items in document order.
func (b *Book) Manifest() []*Item {
	return b.manifest
}

func (b *Book) epub3() bool {
	return strings.HasPrefix(b.Version, "3")
}

// addItem appends item to manifest, Path must be set.
func (b *Book) addItem(id, p, mediaType, properties string) *Item {
	manifest := b.opf.Root().SelectElement("manifest")

	it := &Item{
		ID:         id,
		Href:       relativeHref(path.Dir(b.opfPath), p),
		Path:       p,
		MediaType:  mediaType,
		Properties: properties,
	}
	it.elem = manifest.CreateElement("item")
	it.elem.CreateAttr("id", it.ID)
	it.elem.CreateAttr("href", it.Href)
	it.elem.CreateAttr("media-type", it.MediaType)
	if properties != "" {
		it.elem.CreateAttr("properties", properties)
	}

	b.manifest = append(b.manifest, it)
	b.byID[id] = it
	return it
}

// appendSpine adds item to the end of reading order.
func (b *Book) appendSpine(it *Item) {
	spine := b.opf.Root().SelectElement("spine")
	if spine == nil {
		spine = b.opf.Root().CreateElement("spine")
	}
	ref := spine.CreateElement("itemref")
	ref.CreateAttr("idref", it.ID)
	b.spine = append(b.spine, it)
}

// uniqueID returns base or base with numeric suffix not used in manifest.
func (b *Book) uniqueID(base string) string {
	id := base
	for i := 2; ; i++ {
		if _, exists := b.byID[id]; !exists {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, i)
	}
}

// uniquePath returns p or p with numeric suffix before extension not used in
// container.
func (b *Book) uniquePath(p string) string {
	ext := path.Ext(p)
	stem := strings.TrimSuffix(p, ext)
	candidate := p
	for i := 2; ; i++ {
		if _, exists := b.byName[candidate]; !exists {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
}

func (b *Book) checkDRM() error {
	if _, ok := b.byName["META-INF/rights.xml"]; ok {
		return ErrDRMProtected
	}
	data, ok := b.file("META-INF/encryption.xml")
	if !ok {
		return nil
	}
	doc, err := parseXML("encryption.xml", data)
	if err != nil {
		// cannot tell, assume the worst
		return ErrDRMProtected
	}
	for _, ed := range doc.FindElements("//EncryptedData") {
		algo := ""
		if m := ed.SelectElement("EncryptionMethod"); m != nil {
			algo = m.SelectAttrValue("Algorithm", "")
		}
		if strings.Contains(algo, "obfuscation") {
			// font obfuscation is not DRM
			continue
		}
		uri := ""
		if ref := ed.FindElement(".//CipherReference"); ref != nil {
			uri = strings.ToLower(ref.SelectAttrValue("URI", ""))
		}
		switch path.Ext(uri) {
		case ".xhtml", ".html", ".htm", ".xml", ".css", ".opf", ".ncx":
			return ErrDRMProtected
		}
	}
	return nil
}
