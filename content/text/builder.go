package text

import (
	"fmt"
	"slices"

	"golang.org/x/text/unicode/norm"
)

// Builder accumulates characters and spans. Input strings are NFC
// normalized so offsets stay stable for the same visible text regardless of
// source encoding quirks.
type Builder struct {
	runes []rune
	spans []Span
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Len returns number of characters written so far.
func (b *Builder) Len() int {
	return len(b.runes)
}

// WriteString appends s tagging it with all tags given and returns range the
// new characters occupy.
func (b *Builder) WriteString(s string, tags ...Tag) (start, end int) {
	start = len(b.runes)
	b.runes = append(b.runes, []rune(norm.NFC.String(s))...)
	end = len(b.runes)
	if start == end {
		return
	}
	for _, tag := range tags {
		b.spans = append(b.spans, Span{Start: start, End: end, Tag: tag})
	}
	return
}

// Apply tags already written range [start, end).
func (b *Builder) Apply(start, end int, tag Tag) error {
	if start < 0 || end > len(b.runes) || start > end {
		return fmt.Errorf("apply %q to [%d:%d] of %d characters: %w", tag, start, end, len(b.runes), ErrRange)
	}
	if start < end {
		b.spans = append(b.spans, Span{Start: start, End: end, Tag: tag})
	}
	return nil
}

// ApplyPhrase tags every non-overlapping occurrence of phrase, scanning left
// to right, and returns number of occurrences found.
func (b *Builder) ApplyPhrase(phrase string, tag Tag) int {
	p := []rune(norm.NFC.String(phrase))
	if len(p) == 0 {
		return 0
	}
	var count int
	for i := 0; i+len(p) <= len(b.runes); {
		if slices.Equal(b.runes[i:i+len(p)], p) {
			b.spans = append(b.spans, Span{Start: i, End: i + len(p), Tag: tag})
			count++
			i += len(p)
			continue
		}
		i++
	}
	return count
}

// Build returns immutable text. Builder may be used further, texts built
// earlier are not affected.
func (b *Builder) Build() *Text {
	if len(b.runes) == 0 {
		return empty
	}
	return &Text{
		runes: slices.Clone(b.runes),
		spans: normalizeSpans(slices.Clone(b.spans)),
	}
}
