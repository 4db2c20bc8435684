package linker

import (
	"strings"

	"pdx/entity"
)

// Item is a piece of rewritten text: plain text run when Entity is nil, link
// to Entity with Text as display text otherwise.
type Item struct {
	Text   string
	Entity *entity.Entity
}

func (it Item) IsLink() bool {
	return it.Entity != nil
}

// ChapterState holds everything needed to link single chapter. Entity is
// linked only once per chapter, state must not be reused between chapters.
type ChapterState struct {
	dict   *entity.Dictionary
	fold   func(string) string
	linked map[string]bool
	skip   map[string]bool
	// produces link target for entity
	href func(*entity.Entity) string
}

// NewChapterState creates fresh state for a chapter. Elements with local names
// listed in skip are left untouched by Rewrite.
func NewChapterState(dict *entity.Dictionary, href func(*entity.Entity) string, skip ...string) *ChapterState {
	s := &ChapterState{
		dict:   dict,
		fold:   entity.NewFolder(),
		linked: make(map[string]bool),
		skip:   make(map[string]bool, len(skip)),
		href:   href,
	}
	for _, tag := range skip {
		s.skip[tag] = true
	}
	return s
}

// Linked returns number of distinct entities linked so far.
func (s *ChapterState) Linked() int {
	return len(s.linked)
}

// candidate finds entity starting at chunk i and number of chunks it spans.
// Direct dictionary hit always wins over alias rules, among rules the first
// configured one wins.
func (s *ChapterState) candidate(keys []string, i int) (*entity.Entity, int) {
	if keys[i] != "" {
		if e, ok := s.dict.Lookup(keys[i]); ok {
			return e, 1
		}
	}
	for _, rule := range s.dict.Rules() {
		n := rule.Len()
		if i+n > len(keys) || !windowMatches(keys[i:i+n], rule.Chunks) {
			continue
		}
		if e, ok := s.dict.Lookup(rule.Canonical); ok {
			return e, n
		}
	}
	return nil, 0
}

func windowMatches(window, pattern []string) bool {
	for j := range pattern {
		if window[j] != pattern[j] {
			return false
		}
	}
	return true
}

// Match converts chunks into sequence of text runs and links. Result always
// starts and ends with text run (possibly empty) and alternates between runs
// and links. Concatenating Text of all items gives back original text.
func (s *ChapterState) Match(chunks []string) []Item {
	keys := make([]string, len(chunks))
	for i, c := range chunks {
		keys[i] = s.fold(c)
	}

	items := make([]Item, 0, 1)
	var run strings.Builder

	for i := 0; i < len(chunks); {
		e, n := s.candidate(keys, i)
		if e == nil || s.linked[e.Name] {
			run.WriteString(chunks[i])
			i++
			continue
		}

		e.MarkMentioned()
		s.linked[e.Name] = true

		items = append(items,
			Item{Text: run.String()},
			Item{Text: strings.Join(chunks[i:i+n], ""), Entity: e},
		)
		run.Reset()
		i += n
	}
	return append(items, Item{Text: run.String()})
}
