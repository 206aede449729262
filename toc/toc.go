// Package toc builds chapter navigation menu for paginated book.
package toc

import (
	"github.com/google/uuid"

	"folio/content"
	"folio/paginate"
)

// DefaultPreviewLength is number of characters of chapter text shown in menu
// entry.
const DefaultPreviewLength = 20

// Entry is one line of chapter menu. FirstPage is the page selected when entry
// is chosen, PageNumber is its number. Pages counts pages owned by the
// chapter, it is 0 for chapters without text.
type Entry struct {
	ChapterID  uuid.UUID `json:"chapter_id" yaml:"chapter_id"`
	Title      string    `json:"title" yaml:"title"`
	Preview    string    `json:"preview" yaml:"preview"`
	FirstPage  uuid.UUID `json:"first_page" yaml:"first_page"`
	PageNumber int       `json:"page_number" yaml:"page_number"`
	Pages      int       `json:"pages" yaml:"pages"`
}

// Build returns menu entry for every chapter, including empty ones. Chapter
// without pages points to the first page of the next chapter which has any,
// or to the last page of the book. When previewLen is not positive
// DefaultPreviewLength is used.
func Build(chapters []content.Chapter, pages []paginate.Page, previewLen int) []Entry {
	if previewLen <= 0 {
		previewLen = DefaultPreviewLength
	}

	first := make(map[uuid.UUID]int, len(chapters))
	count := make(map[uuid.UUID]int, len(chapters))
	for i, p := range pages {
		if _, ok := first[p.ChapterID]; !ok {
			first[p.ChapterID] = i
		}
		count[p.ChapterID]++
	}

	entries := make([]Entry, len(chapters))
	// walk backwards so empty chapters can borrow page of the following one
	next := len(pages) - 1
	for i := len(chapters) - 1; i >= 0; i-- {
		ch := chapters[i]
		if idx, ok := first[ch.ID]; ok {
			next = idx
		}
		e := Entry{
			ChapterID: ch.ID,
			Title:     ch.Title,
			Preview:   ch.Text.Prefix(previewLen),
			Pages:     count[ch.ID],
		}
		if next >= 0 {
			e.FirstPage, e.PageNumber = pages[next].ID, pages[next].Number
		}
		entries[i] = e
	}
	return entries
}

// Find returns entry for chapter.
func Find(entries []Entry, chapterID uuid.UUID) (Entry, bool) {
	for _, e := range entries {
		if e.ChapterID == chapterID {
			return e, true
		}
	}
	return Entry{}, false
}
