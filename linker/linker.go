// Package linker finds entity mentions in chapter markup and turns first
// mention of every entity in a chapter into a link to the index chapter.
package linker

import (
	"go.uber.org/zap"

	"pdx/config"
	"pdx/entity"
)

// Linker keeps book level linking setup, it is safe to reuse it for all
// chapters of the book.
type Linker struct {
	dict       *entity.Dictionary
	cfg        *config.LinkingConfig
	paragraphs map[string]bool
	log        *zap.Logger
}

func New(dict *entity.Dictionary, cfg *config.LinkingConfig, log *zap.Logger) *Linker {
	l := &Linker{
		dict:       dict,
		cfg:        cfg,
		paragraphs: make(map[string]bool, len(cfg.ParagraphTags)),
		log:        log,
	}
	for _, tag := range cfg.ParagraphTags {
		l.paragraphs[tag] = true
	}
	return l
}

func (l *Linker) Dictionary() *entity.Dictionary {
	return l.dict
}

// IDPrefix returns prefix of index chapter anchors.
func (l *Linker) IDPrefix() string {
	return l.cfg.IDPrefix
}
