// Package pokedex keeps entity records in local sqlite database and imports
// them from files.
package pokedex

import (
	"fmt"
	"strings"

	"pdx/entity"
)

// speculativePrefix starts descriptions of entries which are not final yet.
const speculativePrefix = "This article's contents will change"

// Record is single stored entry.
type Record struct {
	Number      int    `yaml:"number"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	ImagePath   string `yaml:"image"`
	HTMLURL     string `yaml:"html_url,omitempty"`
	ImageURL    string `yaml:"img_url,omitempty"`
}

// Speculative reports whether record describes not yet finalized entry.
func (r *Record) Speculative() bool {
	return strings.HasPrefix(strings.TrimSpace(r.Description), speculativePrefix)
}

func (r *Record) validate() error {
	if r.Number <= 0 {
		return fmt.Errorf("record %q: number must be positive, got %d", r.Name, r.Number)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("record #%d: empty name", r.Number)
	}
	return nil
}

// Entity converts record for linking.
func (r *Record) Entity() *entity.Entity {
	return entity.New(r.Number, r.Name, r.Description, r.ImagePath)
}

func (r *Record) String() string {
	return fmt.Sprintf("#%03d %s", r.Number, r.Name)
}

// filterSpeculative drops speculative records in place.
func filterSpeculative(records []Record) ([]Record, int) {
	kept := records[:0]
	for _, r := range records {
		if r.Speculative() {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(records) - len(kept)
}
