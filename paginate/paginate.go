// Package paginate splits chapters of styled text into pages for a given
// viewport and maps stored character offsets back to pages.
package paginate

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"folio/config"
	"folio/content"
	"folio/content/text"
	"folio/layout"
)

// ErrDegenerateLayout is reported when layout engine cannot place a single
// character on a page while chapter still has text left.
var ErrDegenerateLayout = errors.New("layout placed nothing on a page")

// Page is one screenful of chapter content. Start is absolute book offset of
// the first character, Extent is number of characters consumed including
// trailing white space removed from Content.
type Page struct {
	ID        uuid.UUID
	ChapterID uuid.UUID
	Content   *text.Text
	Start     int
	Extent    int
	Number    int
}

// End returns absolute offset right after the last consumed character.
func (p Page) End() int {
	return p.Start + p.Extent
}

// IsPlaceholder reports page substituted for a book without any pages.
func (p Page) IsPlaceholder() bool {
	return p.ChapterID == uuid.Nil && p.Extent == 0
}

// Placeholder returns the single empty page shown when book has nothing to
// paginate.
func Placeholder() (Page, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Page{}, fmt.Errorf("unable to generate page id: %w", err)
	}
	return Page{ID: id, Content: text.Empty(), Number: 1}, nil
}

// Paginator drives layout engine over chapters. Paginator itself keeps no
// state between calls, but it is only as safe for concurrent use as its
// engine.
type Paginator struct {
	log    *zap.Logger
	engine layout.Engine
	mode   config.OffsetMode
	strict bool
}

func New(engine layout.Engine, conf *config.PaginationConfig, log *zap.Logger) *Paginator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Paginator{
		log:    log.Named("paginate"),
		engine: engine,
		mode:   conf.Offsets,
		strict: conf.Strict,
	}
}

// Chapter paginates single chapter text. Offsets of produced pages start at
// base, page numbers at startNumber.
func (p *Paginator) Chapter(t *text.Text, vp layout.Viewport, chapterID uuid.UUID, base, startNumber int) ([]Page, error) {
	var pages []Page
	for i := 0; i < t.Len(); {
		n := p.engine.VisibleRange(t, i, vp)
		if n < 0 || n > t.Len()-i {
			return nil, fmt.Errorf("layout placed %d characters at %d with %d left: %w", n, i, t.Len()-i, text.ErrRange)
		}
		if n == 0 {
			err := fmt.Errorf("viewport %s, offset %d, %d characters left: %w", vp, base+i, t.Len()-i, ErrDegenerateLayout)
			if p.strict {
				return nil, err
			}
			p.log.Warn("Chapter pagination stopped early, remaining text is not shown",
				zap.Stringer("chapter", chapterID), zap.Error(err))
			break
		}

		chunk, err := t.Slice(i, i+n)
		if err != nil {
			return nil, err
		}
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("unable to generate page id: %w", err)
		}
		pages = append(pages, Page{
			ID:        id,
			ChapterID: chapterID,
			Content:   chunk.TrimTrailingSpace(),
			Start:     base + i,
			Extent:    n,
			Number:    startNumber + len(pages),
		})
		i += n
	}
	return pages, nil
}

// Book paginates all chapters in order producing flat list of pages with
// continuous numbering. Result is never empty: book without pages gets a
// single placeholder page.
func (p *Paginator) Book(chapters []content.Chapter, vp layout.Viewport) ([]Page, error) {
	var (
		pages  []Page
		offset int
		number = 1
	)
	for _, ch := range chapters {
		chPages, err := p.Chapter(ch.Text, vp, ch.ID, offset, number)
		if err != nil {
			return nil, fmt.Errorf("chapter %q: %w", ch.Title, err)
		}
		pages = append(pages, chPages...)
		number += len(chPages)

		switch p.mode {
		case config.OffsetModeTrimmed:
			if len(chPages) > 0 {
				// blank last page still takes one character
				last := chPages[len(chPages)-1]
				offset = last.Start + max(last.Content.Len(), 1)
			}
		default:
			offset += ch.Text.Len()
		}
	}

	if len(pages) == 0 {
		ph, err := Placeholder()
		if err != nil {
			return nil, err
		}
		p.log.Debug("Nothing to paginate, using placeholder", zap.Int("chapters", len(chapters)), zap.Stringer("viewport", vp))
		return []Page{ph}, nil
	}

	p.log.Debug("Book paginated", zap.Int("chapters", len(chapters)), zap.Int("pages", len(pages)), zap.Stringer("viewport", vp))
	return pages, nil
}
