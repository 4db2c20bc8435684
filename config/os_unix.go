//go:build !windows

package config

import (
	"os"
	"strings"
	"unicode"

	"golang.org/x/term"
)

// CleanFileName drops path separators and control characters from file name
// produced from book metadata. Leading dots are removed so result is never
// hidden.
func CleanFileName(in string) string {
	forbidden := string(os.PathSeparator) + string(os.PathListSeparator)
	out := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(forbidden, r) {
			return -1
		}
		return r
	}, in)
	if out = strings.TrimLeft(strings.TrimSpace(out), "."); out == "" {
		return "_bad_file_name_"
	}
	return out
}

// EnableColorOutput reports whether stream is a terminal.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
