package epub

import (
	"fmt"
	"path"

	"github.com/beevik/etree"

	"pdx/entity"
)

// indexEntry is mentioned entity with location of its artwork inside the
// container (empty when there is none).
type indexEntry struct {
	entity *entity.Entity
	image  string
}

func createXHTMLDocument(title string, epub3 bool) (*etree.Document, *etree.Element) {
	doc := newDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	if epub3 {
		doc.CreateDirective("DOCTYPE html")
	} else {
		doc.CreateDirective(`DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd"`)
	}

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	if epub3 {
		html.CreateAttr("xmlns:epub", "http://www.idpf.org/2007/ops")
	}

	head := html.CreateElement("head")
	meta := head.CreateElement("meta")
	meta.CreateAttr("http-equiv", "Content-Type")
	meta.CreateAttr("content", "text/html; charset=utf-8")
	head.CreateElement("title").SetText(title)

	return doc, html.CreateElement("body")
}

// buildIndex produces index chapter located at indexPath. Entities are listed
// in given order, every one gets heading with anchor links point to.
func buildIndex(indexPath, title, prefix string, epub3 bool, entries []indexEntry, d *describer) *etree.Document {
	doc, body := createXHTMLDocument(title, epub3)
	body.CreateElement("h1").SetText(title)

	dir := path.Dir(indexPath)
	for _, ie := range entries {
		e := ie.entity

		h2 := body.CreateElement("h2")
		h2.CreateAttr("id", e.Anchor(prefix))
		h2.SetText(e.Name)

		if ie.image != "" {
			img := body.CreateElement("p").CreateElement("img")
			img.CreateAttr("alt", fmt.Sprintf("[Pokemon %s]", e.Name))
			img.CreateAttr("src", relativeHref(dir, ie.image))
		}
		for _, text := range d.paragraphs(e.Description) {
			body.CreateElement("p").SetText(text)
		}
	}
	return doc
}
