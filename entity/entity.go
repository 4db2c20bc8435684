// Package entity defines named subjects eligible for auto-linking and the
// dictionary used to find them in text.
package entity

import (
	"strings"
	"sync/atomic"

	"golang.org/x/text/cases"
)

// Entity is a single Pokémon known to the program. Entities are created once
// per run and only the mentioned flag changes afterwards.
type Entity struct {
	Number      int
	Name        string
	LinkID      string
	Description string
	ImagePath   string

	// set when entity was linked anywhere in the book, gates inclusion into
	// generated index chapter
	mentioned atomic.Bool
}

// New creates entity with link id derived from its name.
func New(number int, name, description, imagePath string) *Entity {
	return &Entity{
		Number:      number,
		Name:        name,
		LinkID:      MakeLinkID(name),
		Description: description,
		ImagePath:   imagePath,
	}
}

// MarkMentioned records that entity appeared in the book. Setting flag more
// than once is harmless.
func (e *Entity) MarkMentioned() {
	e.mentioned.Store(true)
}

func (e *Entity) Mentioned() bool {
	return e.mentioned.Load()
}

// ResetMentioned clears the flag so the same entities could be reused for the
// next book.
func (e *Entity) ResetMentioned() {
	e.mentioned.Store(false)
}

// Anchor returns element id used for entity heading in the index chapter.
func (e *Entity) Anchor(prefix string) string {
	return prefix + e.LinkID
}

// MakeLinkID produces URL safe identifier from entity name: name is lowercased
// and everything except latin letters is dropped. "Mr. Mime" becomes "mrmime",
// "Nidoran♂" becomes "nidoran".
func MakeLinkID(name string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, strings.ToLower(name))
}

// NewFolder returns function producing lookup keys. Returned function keeps
// state and must not be shared between goroutines.
func NewFolder() func(string) string {
	c := cases.Fold()
	return c.String
}
