// Package reader keeps reading session of a single book: the viewport, pages
// laid out for it, selected page and bookmark. All changes go through Reader
// which publishes consistent snapshots to subscribers.
package reader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"folio/bookmark"
	"folio/content"
	"folio/layout"
	"folio/paginate"
	"folio/toc"
)

var (
	ErrUnknownPage    = errors.New("unknown page")
	ErrUnknownChapter = errors.New("unknown chapter")
)

// State is snapshot of reading session. Pages are never modified once
// published and may be shared.
type State struct {
	Version  uint64
	Book     *content.Book
	Viewport layout.Viewport
	Pages    []paginate.Page
	Selected uuid.UUID
	Bookmark int
}

// Page returns selected page.
func (s State) Page() (paginate.Page, bool) {
	i, ok := paginate.Locate(s.Pages, s.Selected)
	if !ok {
		return paginate.Page{}, false
	}
	return s.Pages[i], true
}

type subscriber struct {
	id int
	fn func(State)
}

// Reader is safe for concurrent use.
type Reader struct {
	log        *zap.Logger
	paginator  *paginate.Paginator
	slot       bookmark.Slot
	previewLen int

	mu       sync.Mutex
	laidOut  bool
	state    State
	chapters []toc.Entry

	// held while subscribers are called so snapshots are delivered in
	// publishing order
	notify  sync.Mutex
	nextSub int
	subs    []subscriber
}

// New creates reader for the book restoring bookmark from slot. Until first
// Resize reader shows placeholder page.
func New(ctx context.Context, book *content.Book, p *paginate.Paginator, slot bookmark.Slot, previewLen int, log *zap.Logger) (*Reader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	offset, err := slot.Load(ctx)
	if err != nil {
		return nil, err
	}
	ph, err := paginate.Placeholder()
	if err != nil {
		return nil, err
	}

	r := &Reader{
		log:        log.Named("reader"),
		paginator:  p,
		slot:       slot,
		previewLen: previewLen,
		state: State{
			Book:     book,
			Pages:    []paginate.Page{ph},
			Selected: ph.ID,
			Bookmark: offset,
		},
	}
	r.chapters = toc.Build(book.Chapters, r.state.Pages, previewLen)
	r.log.Debug("Reader created", zap.String("book", book.Title), zap.String("bookmark", slot.Key), zap.Int("offset", offset))
	return r, nil
}

// State returns current snapshot.
func (r *Reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Book returns book being read.
func (r *Reader) Book() *content.Book {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Book
}

// Chapters returns chapter menu for current pages.
func (r *Reader) Chapters() []toc.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.chapters)
}

// Subscribe registers fn to be called with every published snapshot, in
// publishing order. fn must not call Reader methods, snapshot has everything
// it needs. Returned function removes subscription.
func (r *Reader) Subscribe(fn func(State)) (cancel func()) {
	r.notify.Lock()
	defer r.notify.Unlock()

	id := r.nextSub
	r.nextSub++
	r.subs = append(r.subs, subscriber{id: id, fn: fn})
	return func() {
		r.notify.Lock()
		defer r.notify.Unlock()
		r.subs = slices.DeleteFunc(r.subs, func(s subscriber) bool { return s.id == id })
	}
}

// publish must be called with r.mu held, it releases it.
func (r *Reader) publish() {
	r.state.Version++
	st := r.state

	r.notify.Lock()
	r.mu.Unlock()
	defer r.notify.Unlock()

	for _, s := range r.subs {
		s.fn(st)
	}
}

// Resize lays book out for viewport vp measured by the caller. Resize to the
// viewport already laid out is ignored. Bookmark is resolved against new
// pages so reader stays at the same place of the book, bookmark itself is
// not changed. When pagination fails previous pages are kept and error is
// returned.
func (r *Reader) Resize(ctx context.Context, vp layout.Viewport) error {
	r.mu.Lock()
	if r.laidOut && r.state.Viewport == vp {
		r.mu.Unlock()
		return nil
	}
	return r.layout(ctx, r.state.Book, vp)
}

// Reload replaces book, for instance after its source changed, and lays it
// out again for current viewport keeping bookmark. When new book cannot be
// laid out previous one stays.
func (r *Reader) Reload(ctx context.Context, book *content.Book) error {
	r.mu.Lock()
	if !r.laidOut {
		r.state.Book = book
		r.chapters = toc.Build(book.Chapters, r.state.Pages, r.previewLen)
		r.publish()
		return nil
	}
	return r.layout(ctx, book, r.state.Viewport)
}

// layout must be called with r.mu held, it releases it. Book becomes current
// only when it was laid out.
func (r *Reader) layout(ctx context.Context, book *content.Book, vp layout.Viewport) error {
	if err := ctx.Err(); err != nil {
		r.mu.Unlock()
		return err
	}

	pages, err := r.paginator.Book(book.Chapters, vp)
	if err != nil {
		r.log.Error("Unable to paginate, keeping previous pages", zap.Stringer("viewport", vp), zap.Error(err))
		r.mu.Unlock()
		return fmt.Errorf("unable to lay out book for viewport %s: %w", vp, err)
	}

	r.state.Book = book
	r.laidOut = true
	r.state.Viewport = vp
	r.state.Pages = pages
	r.chapters = toc.Build(book.Chapters, pages, r.previewLen)

	// bookmark moves only when reader selects a page
	if id, ok := paginate.Resolve(pages, r.state.Bookmark); ok {
		r.state.Selected = id
	} else {
		r.log.Debug("Bookmark is past the last page, showing first page", zap.Int("offset", r.state.Bookmark))
		r.state.Selected = pages[0].ID
	}
	r.log.Debug("Book laid out", zap.Stringer("viewport", vp), zap.Int("pages", len(pages)), zap.Int("offset", r.state.Bookmark))
	r.publish()
	return nil
}

// Select makes page with id current and stores its start as bookmark.
func (r *Reader) Select(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	i, ok := paginate.Locate(r.state.Pages, id)
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("page %s: %w", id, ErrUnknownPage)
	}
	return r.selectIndex(ctx, i)
}

// SelectNumber makes page with number n current, see Select.
func (r *Reader) SelectNumber(ctx context.Context, n int) error {
	r.mu.Lock()
	if n < 1 || n > len(r.state.Pages) {
		total := len(r.state.Pages)
		r.mu.Unlock()
		return fmt.Errorf("page %d of %d: %w", n, total, ErrUnknownPage)
	}
	return r.selectIndex(ctx, n-1)
}

// selectIndex must be called with r.mu held, it releases it.
func (r *Reader) selectIndex(ctx context.Context, i int) error {
	pg := r.state.Pages[i]
	r.state.Selected = pg.ID
	r.state.Bookmark = pg.Start
	err := r.slot.Save(ctx, pg.Start)
	r.publish()
	return err
}

// JumpToChapter selects first page of the chapter as chapter menu shows it.
func (r *Reader) JumpToChapter(ctx context.Context, chapterID uuid.UUID) error {
	r.mu.Lock()
	e, ok := toc.Find(r.chapters, chapterID)
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("chapter %s: %w", chapterID, ErrUnknownChapter)
	}
	i, ok := paginate.Locate(r.state.Pages, e.FirstPage)
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("chapter %s first page %s: %w", chapterID, e.FirstPage, ErrUnknownPage)
	}
	return r.selectIndex(ctx, i)
}

// Next turns to the following page. It reports false when already at the
// last page.
func (r *Reader) Next(ctx context.Context) (bool, error) {
	return r.turn(ctx, 1)
}

// Prev turns to the previous page. It reports false when already at the
// first page.
func (r *Reader) Prev(ctx context.Context) (bool, error) {
	return r.turn(ctx, -1)
}

func (r *Reader) turn(ctx context.Context, delta int) (bool, error) {
	r.mu.Lock()
	i, ok := paginate.Locate(r.state.Pages, r.state.Selected)
	if !ok || i+delta < 0 || i+delta >= len(r.state.Pages) {
		r.mu.Unlock()
		return false, nil
	}
	return true, r.selectIndex(ctx, i+delta)
}
