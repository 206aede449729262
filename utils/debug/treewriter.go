// Package debug has helpers producing human readable dumps of program
// structures.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

// TreeWriter writes indented lines, two spaces per level.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes labeled value quoted, so control characters are visible.
func (tw TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

// Preview is TextBlock for long values, only first limit characters are
// written followed by number of characters left out.
func (tw TreeWriter) Preview(depth int, label, value string, limit int) {
	runes := []rune(value)
	if limit < 0 || len(runes) <= limit {
		tw.TextBlock(depth, label, value)
		return
	}
	tw.indent(depth)
	fmt.Fprintf(tw.w, "%s: %s... (+%d)\n", label, encodeText(string(runes[:limit])), len(runes)-limit)
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
