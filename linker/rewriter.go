package linker

import (
	"github.com/beevik/etree"
	"go.uber.org/zap"

	"pdx/entity"
)

// Rewrite links entities in all text under element. Element itself and all
// nested elements stay in place, only text children are replaced. Returns
// number of links inserted.
func (s *ChapterState) Rewrite(el *etree.Element) int {
	if s.skip[el.Tag] {
		return 0
	}

	var (
		links    int
		changed  bool
		children = make([]etree.Token, 0, len(el.Child))
	)

	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			if t.IsCData() {
				children = append(children, t)
				continue
			}
			items := s.Match(Tokenize(t.Data))
			if len(items) == 1 {
				// nothing found, keep original node
				children = append(children, t)
				continue
			}
			for _, it := range items {
				if !it.IsLink() {
					children = append(children, etree.NewText(it.Text))
					continue
				}
				children = append(children, s.newLink(it))
				links++
			}
			changed = true
		case *etree.Element:
			links += s.Rewrite(t)
			children = append(children, t)
		default:
			// comments, processing instructions and such
			children = append(children, tok)
		}
	}

	if changed {
		for i := len(el.Child) - 1; i >= 0; i-- {
			el.RemoveChildAt(i)
		}
		for _, tok := range children {
			el.AddChild(tok)
		}
	}
	return links
}

func (s *ChapterState) newLink(it Item) *etree.Element {
	a := etree.NewElement("a")
	a.CreateAttr("href", s.href(it.Entity))
	a.SetText(it.Text)
	return a
}

// RewriteChapter links entities in every paragraph of chapter document using
// fresh chapter state. indexHref is location of index chapter relative to the
// chapter being processed. Returns number of links inserted.
func (l *Linker) RewriteChapter(doc *etree.Document, indexHref string) int {
	root := doc.Root()
	if root == nil {
		return 0
	}

	state := NewChapterState(l.dict, func(e *entity.Entity) string {
		return indexHref + "#" + e.Anchor(l.cfg.IDPrefix)
	}, l.cfg.SkipTags...)

	var walk func(el *etree.Element) int
	walk = func(el *etree.Element) int {
		if state.skip[el.Tag] {
			return 0
		}
		if l.paragraphs[el.Tag] {
			return state.Rewrite(el)
		}
		links := 0
		for _, child := range el.ChildElements() {
			links += walk(child)
		}
		return links
	}
	links := walk(root)
	l.log.Debug("Chapter linked", zap.String("index", indexHref), zap.Int("links", links), zap.Int("entities", state.Linked()))
	return links
}
