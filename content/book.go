package content

import (
	"github.com/google/uuid"

	"folio/content/text"
)

// Chapter is a titled unit of book content.
type Chapter struct {
	ID    uuid.UUID
	Title string
	Text  *text.Text
}

// Len returns chapter length in characters.
func (c Chapter) Len() int {
	return c.Text.Len()
}

// Book is an ordered list of chapters. Book is not modified after it has
// been loaded.
type Book struct {
	ID       uuid.UUID
	Title    string
	Lang     string
	Source   string
	Chapters []Chapter
}

// Len returns total book length in characters.
func (b *Book) Len() int {
	var n int
	for _, c := range b.Chapters {
		n += c.Len()
	}
	return n
}

// Chapter returns chapter by its id.
func (b *Book) Chapter(id uuid.UUID) (Chapter, bool) {
	for _, c := range b.Chapters {
		if c.ID == id {
			return c, true
		}
	}
	return Chapter{}, false
}

// NewChapter creates chapter with fresh id.
func NewChapter(title string, t *text.Text) (Chapter, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Chapter{}, err
	}
	if t == nil {
		t = text.Empty()
	}
	return Chapter{ID: id, Title: title, Text: t}, nil
}
