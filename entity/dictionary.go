package entity

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"pdx/utils/debug"
)

var (
	ErrUnknownCanonical = errors.New("alias refers to unknown entity")
	ErrAmbiguousAlias   = errors.New("ambiguous alias")
	ErrEmptyAliasRule   = errors.New("alias rule has no chunks")
)

// AliasRule describes multi-chunk surface form which has to be matched as a
// contiguous unit, for example "Mr. Mime" is split by tokenizer into "Mr",
// ". " and "Mime".
type AliasRule struct {
	Chunks    []string
	Canonical string
}

func (r AliasRule) Len() int {
	return len(r.Chunks)
}

func (r AliasRule) String() string {
	return fmt.Sprintf("%q -> %q", r.Chunks, r.Canonical)
}

// Dictionary maps lookup keys to entities. It is built once and used read-only
// afterwards, only entity flags change during linking.
type Dictionary struct {
	entities []*Entity
	keys     map[string]*Entity
	rules    []AliasRule

	// Skipped lists entities dropped because entity with the same canonical
	// key was already present.
	Skipped []*Entity
}

// NewDictionary builds dictionary from entities in canonical order, direct
// aliases (alias key -> canonical key) and alias rules. All configuration
// problems are reported here, never during matching.
func NewDictionary(entities []*Entity, aliases map[string]string, rules []AliasRule) (*Dictionary, error) {
	fold := NewFolder()

	d := &Dictionary{
		entities: make([]*Entity, 0, len(entities)),
		keys:     make(map[string]*Entity, len(entities)+len(aliases)),
	}

	for _, e := range entities {
		key := fold(e.Name)
		if _, exists := d.keys[key]; exists {
			d.Skipped = append(d.Skipped, e)
			continue
		}
		d.keys[key] = e
		d.entities = append(d.entities, e)
	}

	// sorted for stable error reporting
	aliasKeys := slices.Sorted(maps.Keys(aliases))
	for _, alias := range aliasKeys {
		canonical := aliases[alias]
		target, ok := d.keys[fold(canonical)]
		if !ok {
			return nil, fmt.Errorf("alias %q: %w %q", alias, ErrUnknownCanonical, canonical)
		}
		key := fold(alias)
		if existing, ok := d.keys[key]; ok && existing != target {
			return nil, fmt.Errorf("alias %q for %q already names %q: %w", alias, target.Name, existing.Name, ErrAmbiguousAlias)
		}
		d.keys[key] = target
	}

	seen := make(map[string]*Entity, len(rules))
	for i, r := range rules {
		if r.Len() == 0 {
			return nil, fmt.Errorf("alias rule %d (%q): %w", i, r.Canonical, ErrEmptyAliasRule)
		}
		target, ok := d.keys[fold(r.Canonical)]
		if !ok {
			return nil, fmt.Errorf("alias rule %d %v: %w %q", i, r.Chunks, ErrUnknownCanonical, r.Canonical)
		}
		chunks := make([]string, len(r.Chunks))
		for j, c := range r.Chunks {
			chunks[j] = fold(c)
		}
		// NUL never appears in text so it is safe as a separator here
		sig := strings.Join(chunks, "\x00")
		if existing, ok := seen[sig]; ok && existing != target {
			return nil, fmt.Errorf("alias rule %d %v resolves to both %q and %q: %w", i, r.Chunks, existing.Name, target.Name, ErrAmbiguousAlias)
		}
		seen[sig] = target
		d.rules = append(d.rules, AliasRule{Chunks: chunks, Canonical: fold(r.Canonical)})
	}
	return d, nil
}

// Lookup returns entity for already folded key.
func (d *Dictionary) Lookup(key string) (*Entity, bool) {
	e, ok := d.keys[key]
	return e, ok
}

// Rules returns alias rules in configuration order with folded chunks.
func (d *Dictionary) Rules() []AliasRule {
	return d.rules
}

// Entities returns all entities in canonical order.
func (d *Dictionary) Entities() []*Entity {
	return d.entities
}

func (d *Dictionary) Len() int {
	return len(d.entities)
}

// Mentioned returns entities which have been linked at least once, in
// canonical order.
func (d *Dictionary) Mentioned() []*Entity {
	var res []*Entity
	for _, e := range d.entities {
		if e.Mentioned() {
			res = append(res, e)
		}
	}
	return res
}

// Reset clears mentioned flags on all entities.
func (d *Dictionary) Reset() {
	for _, e := range d.entities {
		e.ResetMentioned()
	}
}

// String returns readable dump of the dictionary for debugging.
func (d *Dictionary) String() string {
	if d == nil {
		return "<nil Dictionary>"
	}

	tw := debug.NewTreeWriter()
	tw.Line(0, "Dictionary: %d entities, %d keys, %d rules", len(d.entities), len(d.keys), len(d.rules))

	keys := slices.Collect(maps.Keys(d.keys))
	sort.Sort(natural.StringSlice(keys))
	for _, k := range keys {
		e := d.keys[k]
		tw.Line(1, "Key[%q] -> #%d %q link[%q]", k, e.Number, e.Name, e.LinkID)
	}
	for i, r := range d.rules {
		tw.Line(1, "Rule[%d] -> %q", i, r.Canonical)
		for _, c := range r.Chunks {
			tw.Text(2, "chunk", c)
		}
	}
	for _, e := range d.Skipped {
		tw.Line(1, "Skipped #%d %q", e.Number, e.Name)
	}
	return tw.String()
}
