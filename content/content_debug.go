package content

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"folio/utils/debug"
)

// String returns a readable tree of the whole Book. It exists solely for
// manual inspection during debugging.
func (b *Book) String() string {
	if b == nil {
		return "<nil Book>"
	}

	tw := debug.NewTreeWriter()
	tw.Line(0, "Book id[%s] chapters[%d] characters[%d]", b.ID, len(b.Chapters), b.Len())
	tw.TextBlock(1, "Title", b.Title)
	tw.TextBlock(1, "Lang", b.Lang)
	tw.TextBlock(1, "Source", b.Source)
	offset := 0
	for i, ch := range b.Chapters {
		tw.Line(1, "Chapter[%d] id[%s] offset[%d] length[%d]", i, ch.ID, offset, ch.Len())
		tw.TextBlock(2, "Title", ch.Title)
		tw.Preview(2, "Text", ch.Text.String(), 40)

		counts := make(map[string]int)
		for _, sp := range ch.Text.Spans() {
			counts[string(sp.Tag)]++
		}
		keys := slices.Collect(maps.Keys(counts))
		sort.Sort(natural.StringSlice(keys))
		for _, k := range keys {
			tw.Line(2, "Tag[%q] spans[%d]", k, counts[k])
		}
		offset += ch.Len()
	}
	return tw.String()
}
