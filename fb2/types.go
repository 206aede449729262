// Package fb2 reads FictionBook 2 documents into chapters of styled text.
package fb2

import (
	"golang.org/x/text/language"

	"folio/content/text"
)

// Document is the part of FictionBook which is needed to read the book: main
// body split into top level sections, and enough of description to identify
// it.
type Document struct {
	ID       string
	Title    string
	Lang     language.Tag
	Sections []Section
}

// Section is top level section of the main body with all nested sections
// flattened into its text. Title is plain text of section title, it could be
// empty.
type Section struct {
	Title string
	Text  *text.Text
}
