package epub

import (
	"strings"
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
)

// describer shortens entity descriptions for index chapter.
type describer struct {
	tokenizer    *sentences.DefaultSentenceTokenizer
	maxSentences int
}

func newDescriber(maxSentences int, log *zap.Logger) *describer {
	d := &describer{maxSentences: maxSentences}
	if maxSentences <= 0 {
		return d
	}
	t, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.Warn("Unable to load sentences tokenizer data, descriptions will not be shortened", zap.Error(err))
		return d
	}
	d.tokenizer = t
	return d
}

// limit returns at most maxSentences first sentences of text. Leading spaces
// tokenizer attaches to sentences are dropped.
func (d *describer) limit(text string) string {
	if d.tokenizer == nil {
		return text
	}
	var sb strings.Builder
	for i, s := range d.tokenizer.Tokenize(text) {
		if i == d.maxSentences {
			break
		}
		part := s.Text
		if i == 0 {
			part = strings.TrimLeftFunc(part, unicode.IsSpace)
		}
		sb.WriteString(part)
	}
	return strings.TrimRightFunc(sb.String(), unicode.IsSpace)
}

// paragraphs splits description into non empty newline delimited segments
// applying sentence limit to the description as a whole.
func (d *describer) paragraphs(description string) []string {
	text := d.limit(strings.TrimSpace(description))

	var res []string
	for line := range strings.SplitSeq(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			res = append(res, line)
		}
	}
	return res
}
