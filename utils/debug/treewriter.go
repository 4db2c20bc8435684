// Package debug renders indented dumps stored in debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

const indent = "  "

// TreeWriter accumulates lines indented by depth.
type TreeWriter struct {
	sb    strings.Builder
	lines int
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{}
}

func (tw *TreeWriter) String() string {
	return tw.sb.String()
}

// Lines returns number of lines written so far.
func (tw *TreeWriter) Lines() int {
	return tw.lines
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.sb.WriteString(strings.Repeat(indent, depth))
	fmt.Fprintf(&tw.sb, format, args...)
	tw.sb.WriteByte('\n')
	tw.lines++
}

// Text writes labeled value quoted so whitespace and separators stay
// visible. Empty value is written as is.
func (tw *TreeWriter) Text(depth int, label, value string) {
	if value != "" {
		value = strconv.Quote(value)
	}
	tw.Line(depth, "%s: %s", label, value)
}
