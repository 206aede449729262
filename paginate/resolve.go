package paginate

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"folio/content"
)

// Resolve returns id of the first page starting at or after offset. Pages
// must be ordered by Start, as paginator produces them.
func Resolve(pages []Page, offset int) (uuid.UUID, bool) {
	i := sort.Search(len(pages), func(i int) bool { return pages[i].Start >= offset })
	if i == len(pages) {
		return uuid.Nil, false
	}
	return pages[i].ID, true
}

// Locate returns index of page with id.
func Locate(pages []Page, id uuid.UUID) (int, bool) {
	for i := range pages {
		if pages[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// Containing returns index of page whose consumed range holds offset.
func Containing(pages []Page, offset int) (int, bool) {
	i := sort.Search(len(pages), func(i int) bool { return pages[i].End() > offset })
	if i == len(pages) || pages[i].Start > offset {
		return -1, false
	}
	return i, true
}

// Stats summarizes pagination result.
type Stats struct {
	Pages      int
	Chapters   int
	Characters int // characters in the book
	Shown      int // characters consumed by pages
	MinExtent  int
	MaxExtent  int
}

// Dropped returns number of characters no page shows.
func (s Stats) Dropped() int {
	return s.Characters - s.Shown
}

func Summarize(chapters []content.Chapter, pages []Page) Stats {
	st := Stats{Chapters: len(chapters)}
	for _, ch := range chapters {
		st.Characters += ch.Len()
	}
	for _, p := range pages {
		if p.IsPlaceholder() {
			continue
		}
		st.Pages++
		st.Shown += p.Extent
		if st.Pages == 1 || p.Extent < st.MinExtent {
			st.MinExtent = p.Extent
		}
		st.MaxExtent = max(st.MaxExtent, p.Extent)
	}
	return st
}

// Coverage verifies invariants of pagination result against chapters it was
// produced from: page numbers are contiguous starting with 1, offsets strictly
// increase, pages of every chapter follow each other without gaps and
// together consume the whole chapter, and page content is its consumed text
// without trailing white space. All violations found are returned.
func Coverage(chapters []content.Chapter, pages []Page) error {
	if len(pages) == 0 {
		return fmt.Errorf("no pages")
	}
	if len(pages) == 1 && pages[0].IsPlaceholder() {
		var err error
		for _, ch := range chapters {
			if ch.Len() > 0 {
				err = multierr.Append(err, fmt.Errorf("chapter %q has %d characters but book has placeholder page only", ch.Title, ch.Len()))
			}
		}
		return err
	}

	var err error
	for i, p := range pages {
		if p.Number != i+1 {
			err = multierr.Append(err, fmt.Errorf("page %d has number %d", i+1, p.Number))
		}
		if i > 0 && p.Start <= pages[i-1].Start {
			err = multierr.Append(err, fmt.Errorf("page %d starts at %d, previous page at %d", p.Number, p.Start, pages[i-1].Start))
		}
	}

	next := 0
	for _, ch := range chapters {
		var chPages []Page
		for next < len(pages) && pages[next].ChapterID == ch.ID {
			chPages = append(chPages, pages[next])
			next++
		}
		err = multierr.Append(err, chapterCoverage(ch, chPages))
	}
	if next != len(pages) {
		err = multierr.Append(err, fmt.Errorf("page %d does not belong to any chapter in order", pages[next].Number))
	}
	return err
}

func chapterCoverage(ch content.Chapter, pages []Page) error {
	if len(pages) == 0 {
		if ch.Len() > 0 {
			return fmt.Errorf("chapter %q has %d characters and no pages", ch.Title, ch.Len())
		}
		return nil
	}

	var err error
	base, local := pages[0].Start, 0
	for _, p := range pages {
		if p.Start-base != local {
			err = multierr.Append(err, fmt.Errorf("chapter %q: page %d starts at %d, expected %d", ch.Title, p.Number, p.Start, base+local))
		}
		chunk, e := ch.Text.Slice(local, local+p.Extent)
		if e != nil {
			return multierr.Append(err, fmt.Errorf("chapter %q: page %d: %w", ch.Title, p.Number, e))
		}
		if !chunk.TrimTrailingSpace().Equal(p.Content) {
			err = multierr.Append(err, fmt.Errorf("chapter %q: page %d content does not match chapter text", ch.Title, p.Number))
		}
		local += p.Extent
	}
	if local != ch.Len() {
		err = multierr.Append(err, fmt.Errorf("chapter %q: pages consume %d of %d characters", ch.Title, local, ch.Len()))
	}
	return err
}
