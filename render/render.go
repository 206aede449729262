// Package render formats pages for text output using configurable template.
package render

import (
	"bytes"
	"fmt"
	"io"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"folio/config"
	"folio/content"
	"folio/paginate"
)

// Values are available to page template.
type Values struct {
	Book        string
	Chapter     string
	Number      int
	Total       int
	Start       int
	Extent      int
	Selected    bool
	Placeholder bool
	Content     string
}

type PageTemplate struct {
	tmpl *template.Template
}

func NewPageTemplate(field string) (*PageTemplate, error) {
	tmpl, err := template.New(string(config.PageTemplateFieldName)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return nil, fmt.Errorf("unable to parse template field %s: %w", config.PageTemplateFieldName, err)
	}
	return &PageTemplate{tmpl: tmpl}, nil
}

func newValues(book *content.Book, pages []paginate.Page, i int) Values {
	p := pages[i]
	v := Values{
		Book:        book.Title,
		Number:      p.Number,
		Total:       len(pages),
		Start:       p.Start,
		Extent:      p.Extent,
		Placeholder: p.IsPlaceholder(),
		Content:     p.Content.String(),
	}
	if ch, ok := book.Chapter(p.ChapterID); ok {
		v.Chapter = ch.Title
	}
	return v
}

// Page renders single page, pages[i], followed by new line.
func (pt *PageTemplate) Page(w io.Writer, book *content.Book, pages []paginate.Page, i int, selected bool) error {
	v := newValues(book, pages, i)
	v.Selected = selected

	buf := new(bytes.Buffer)
	if err := pt.tmpl.Execute(buf, v); err != nil {
		return fmt.Errorf("unable to render page %d: %w", v.Number, err)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

// Pages renders all pages.
func (pt *PageTemplate) Pages(w io.Writer, book *content.Book, pages []paginate.Page) error {
	for i := range pages {
		if err := pt.Page(w, book, pages, i, false); err != nil {
			return err
		}
	}
	return nil
}
