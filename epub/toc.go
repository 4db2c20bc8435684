package epub

import (
	"fmt"
	"path"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// ncxItem returns EPUB2 table of contents, spine reference wins over media
// type lookup.
func (b *Book) ncxItem() *Item {
	if spine := b.opf.Root().SelectElement("spine"); spine != nil {
		if it, ok := b.byID[spine.SelectAttrValue("toc", "")]; ok {
			return it
		}
	}
	for _, it := range b.manifest {
		if it.MediaType == ncxMediaType {
			return it
		}
	}
	return nil
}

// navItem returns EPUB3 navigation document.
func (b *Book) navItem() *Item {
	for _, it := range b.manifest {
		if it.HasProperty("nav") {
			return it
		}
	}
	return nil
}

// addToTOC appends entry pointing to item to every table of contents book
// has.
func (b *Book) addToTOC(it *Item, title string, log *zap.Logger) error {
	var added int
	if ncx := b.ncxItem(); ncx != nil {
		if err := b.addNCXEntry(ncx, it, title); err != nil {
			return err
		}
		added++
	}
	if nav := b.navItem(); nav != nil {
		if err := b.addNavEntry(nav, it, title); err != nil {
			return err
		}
		added++
	}
	if added == 0 {
		log.Warn("Book has no table of contents, index chapter is only added to reading order")
	}
	return nil
}

func (b *Book) editXML(it *Item, edit func(doc *etree.Document) error) error {
	data, ok := b.file(it.Path)
	if !ok {
		return fmt.Errorf("%s is in manifest but not in container", it.Path)
	}
	doc, err := parseXML(it.Path, data)
	if err != nil {
		return err
	}
	if err := edit(doc); err != nil {
		return err
	}
	out, err := serializeXML(doc)
	if err != nil {
		return fmt.Errorf("unable to serialize %s: %w", it.Path, err)
	}
	b.setFile(it.Path, out)
	return nil
}

func (b *Book) addNCXEntry(ncx, it *Item, title string) error {
	return b.editXML(ncx, func(doc *etree.Document) error {
		navMap := doc.FindElement("//navMap")
		if navMap == nil {
			return fmt.Errorf("%s has no navMap", ncx.Path)
		}

		playOrder := 0
		ids := make(map[string]bool)
		for _, np := range doc.FindElements("//navPoint") {
			if n, err := strconv.Atoi(np.SelectAttrValue("playOrder", "")); err == nil {
				playOrder = max(playOrder, n)
			}
			ids[np.SelectAttrValue("id", "")] = true
		}

		id := "navpoint-" + it.ID
		for i := 2; ids[id]; i++ {
			id = fmt.Sprintf("navpoint-%s-%d", it.ID, i)
		}

		navPoint := navMap.CreateElement("navPoint")
		navPoint.CreateAttr("id", id)
		navPoint.CreateAttr("playOrder", strconv.Itoa(playOrder+1))
		navPoint.CreateElement("navLabel").CreateElement("text").SetText(title)
		navPoint.CreateElement("content").CreateAttr("src", relativeHref(path.Dir(ncx.Path), it.Path))
		return nil
	})
}

func (b *Book) addNavEntry(nav, it *Item, title string) error {
	return b.editXML(nav, func(doc *etree.Document) error {
		var toc *etree.Element
		for _, el := range doc.FindElements("//nav") {
			if el.SelectAttrValue("epub:type", "") == "toc" {
				toc = el
				break
			}
		}
		if toc == nil {
			return fmt.Errorf("%s has no toc navigation", nav.Path)
		}

		ol := toc.SelectElement("ol")
		if ol == nil {
			ol = toc.CreateElement("ol")
		}
		a := ol.CreateElement("li").CreateElement("a")
		a.CreateAttr("href", relativeHref(path.Dir(nav.Path), it.Path))
		a.SetText(title)
		return nil
	})
}
