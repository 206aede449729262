// Package text implements immutable styled text: a run of characters with a
// set of tagged ranges on top of it.
//
// Character here is a Unicode code point of NFC normalized input, all offsets
// and lengths are counted in characters, never in bytes.
package text

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"unicode"
)

// ErrRange is returned when requested range falls outside of the text.
var ErrRange = errors.New("range out of bounds")

// Tag names typographic role of a range of characters. Layout engine decides
// what the role looks like.
type Tag string

const (
	Body     Tag = "body"
	Heading  Tag = "heading"
	Emphasis Tag = "emphasis"
	Strong   Tag = "strong"
	Code     Tag = "code"
)

var knownTags = []Tag{Body, Heading, Emphasis, Strong, Code}

// KnownTags returns all tags layout engines are expected to understand.
func KnownTags() []Tag {
	return slices.Clone(knownTags)
}

// ParseTag converts tag name, case insensitive, to known tag.
func ParseTag(name string) (Tag, error) {
	for _, t := range knownTags {
		if strings.EqualFold(string(t), name) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tag %q", name)
}

// Span is a half-open range [Start, End) carrying single tag.
type Span struct {
	Start int
	End   int
	Tag   Tag
}

func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) Contains(i int) bool {
	return s.Start <= i && i < s.End
}

// Run is a maximal range of characters sharing exactly the same tags.
type Run struct {
	Start int
	End   int
	Tags  []Tag
}

// Text is immutable styled text. Spans are kept sorted by start and spans of
// the same tag never overlap or touch each other. Zero value and nil are
// valid empty texts.
type Text struct {
	runes []rune
	spans []Span
}

var empty = &Text{}

// Empty returns text with no characters.
func Empty() *Text {
	return empty
}

// Plain returns unstyled text.
func Plain(s string) *Text {
	b := NewBuilder()
	b.WriteString(s)
	return b.Build()
}

// Len returns text length in characters.
func (t *Text) Len() int {
	if t == nil {
		return 0
	}
	return len(t.runes)
}

func (t *Text) String() string {
	if t == nil {
		return ""
	}
	return string(t.runes)
}

// At returns character at position i, it panics when i is out of range.
func (t *Text) At(i int) rune {
	return t.runes[i]
}

// Spans returns copy of text spans.
func (t *Text) Spans() []Span {
	if t == nil {
		return nil
	}
	return slices.Clone(t.spans)
}

// TagsAt returns tags applied to character at position i.
func (t *Text) TagsAt(i int) []Tag {
	if t == nil {
		return nil
	}
	var tags []Tag
	for _, s := range t.spans {
		if s.Start > i {
			break
		}
		if s.Contains(i) {
			tags = append(tags, s.Tag)
		}
	}
	return tags
}

// HasTag reports if character at position i carries tag.
func (t *Text) HasTag(i int, tag Tag) bool {
	return slices.Contains(t.TagsAt(i), tag)
}

// Slice returns characters [start, end) with spans clipped and rebased to the
// new text.
func (t *Text) Slice(start, end int) (*Text, error) {
	if start < 0 || end > t.Len() || start > end {
		return nil, fmt.Errorf("slice [%d:%d] of %d characters: %w", start, end, t.Len(), ErrRange)
	}
	if start == 0 && end == t.Len() {
		return t, nil
	}
	if start == end {
		return empty, nil
	}
	out := &Text{runes: t.runes[start:end:end]}
	for _, s := range t.spans {
		if s.Start >= end {
			break
		}
		b, e := max(s.Start, start), min(s.End, end)
		if b < e {
			out.spans = append(out.spans, Span{Start: b - start, End: e - start, Tag: s.Tag})
		}
	}
	return out, nil
}

// TrimTrailingSpace returns text without trailing white space and line
// breaks. Text made entirely of white space trims to empty.
func (t *Text) TrimTrailingSpace() *Text {
	last := t.Len() - 1
	for last >= 0 && unicode.IsSpace(t.runes[last]) {
		last--
	}
	if last == t.Len()-1 {
		return t
	}
	if last < 0 {
		return empty
	}
	out, _ := t.Slice(0, last+1)
	return out
}

// Prefix returns at most n first characters as a string.
func (t *Text) Prefix(n int) string {
	if n >= t.Len() {
		return t.String()
	}
	if n <= 0 {
		return ""
	}
	return string(t.runes[:n])
}

// Runs returns iterator over maximal ranges with constant set of tags,
// covering the whole text in order. Untagged ranges have nil Tags.
func (t *Text) Runs() iter.Seq[Run] {
	return func(yield func(Run) bool) {
		n := t.Len()
		if n == 0 {
			return
		}
		bounds := make([]int, 0, 2+2*len(t.spans))
		bounds = append(bounds, 0, n)
		for _, s := range t.spans {
			bounds = append(bounds, s.Start, s.End)
		}
		slices.Sort(bounds)
		bounds = slices.Compact(bounds)

		for i := 0; i+1 < len(bounds); i++ {
			r := Run{Start: bounds[i], End: bounds[i+1]}
			for _, s := range t.spans {
				if s.Start > r.Start {
					break
				}
				if s.Contains(r.Start) {
					r.Tags = append(r.Tags, s.Tag)
				}
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Equal reports if both texts have the same characters and spans.
func (t *Text) Equal(o *Text) bool {
	if t.Len() != o.Len() {
		return false
	}
	if t.Len() == 0 {
		return true
	}
	return slices.Equal(t.runes, o.runes) && slices.Equal(t.spans, o.spans)
}

func normalizeSpans(spans []Span) []Span {
	byTag := make(map[Tag][]Span)
	var order []Tag
	for _, s := range spans {
		if s.Start >= s.End {
			continue
		}
		if _, ok := byTag[s.Tag]; !ok {
			order = append(order, s.Tag)
		}
		byTag[s.Tag] = append(byTag[s.Tag], s)
	}

	out := make([]Span, 0, len(spans))
	for _, tag := range order {
		list := byTag[tag]
		slices.SortFunc(list, func(a, b Span) int { return cmp.Compare(a.Start, b.Start) })
		cur := list[0]
		for _, s := range list[1:] {
			if s.Start <= cur.End {
				cur.End = max(cur.End, s.End)
				continue
			}
			out = append(out, cur)
			cur = s
		}
		out = append(out, cur)
	}
	slices.SortStableFunc(out, func(a, b Span) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(b.End, a.End)
	})
	return out
}
