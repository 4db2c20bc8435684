package linker

// isSeparator reports whether rune belongs to punctuation class splitting
// words. Any mixture of these forms a single separator chunk.
func isSeparator(r rune) bool {
	switch r {
	case ':', ',', '.', '!', '?', '“', '”', '‘', '’', '…', ' ':
		return true
	}
	return false
}

// Tokenize splits text into alternating word and separator chunks. Result
// always has odd length: even positions hold words, odd positions hold
// separators. Words at the boundaries (or between separators) may be empty
// strings, this keeps positions uniform for alias windows. Concatenating all
// chunks gives back original text.
func Tokenize(text string) []string {
	chunks := make([]string, 0, 8)

	start, inSep := 0, false
	for i, r := range text {
		if isSeparator(r) == inSep {
			continue
		}
		chunks = append(chunks, text[start:i])
		start, inSep = i, !inSep
	}
	chunks = append(chunks, text[start:])
	if inSep {
		// text ends with separator, close with empty word
		chunks = append(chunks, "")
	}
	return chunks
}
