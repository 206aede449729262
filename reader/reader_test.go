package reader

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"folio/bookmark"
	"folio/config"
	"folio/content"
	"folio/content/text"
	"folio/layout"
	"folio/paginate"
)

var (
	small = layout.Viewport{Width: 300, Height: 400}
	large = layout.Viewport{Width: 600, Height: 800}
)

func newBook(t *testing.T, lengths ...int) *content.Book {
	t.Helper()
	b := &content.Book{ID: uuid.New(), Title: "Reader Test"}
	for i, n := range lengths {
		ch, err := content.NewChapter("Chapter "+string(rune('1'+i)), text.Plain(strings.Repeat("xxxxxxxxx ", n/10+1)[:n]))
		if err != nil {
			t.Fatal(err)
		}
		b.Chapters = append(b.Chapters, ch)
	}
	return b
}

type fixture struct {
	book  *content.Book
	store *bookmark.Memory
	r     *Reader
}

// newFixture creates reader over 1200 and 800 characters chapters, 500
// characters per page, with bookmark preset to offset when it is not negative.
func newFixture(t *testing.T, engine layout.Engine, offset int) fixture {
	t.Helper()
	return newBookFixture(t, newBook(t, 1200, 800), engine, offset)
}

func newBookFixture(t *testing.T, book *content.Book, engine layout.Engine, offset int) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{book: book, store: bookmark.NewMemory()}
	slot := bookmark.NewSlot(f.store, f.book)
	if offset >= 0 {
		if err := slot.Save(ctx, offset); err != nil {
			t.Fatal(err)
		}
	}
	log := zaptest.NewLogger(t)
	p := paginate.New(engine, &config.PaginationConfig{Offsets: config.OffsetModeExact}, log)

	r, err := New(ctx, f.book, p, slot, 20, log)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.r = r
	return f
}

func (f fixture) stored(t *testing.T) int {
	t.Helper()
	offset, ok := f.lookup(t)
	if !ok {
		t.Fatal("bookmark not stored")
	}
	return offset
}

func (f fixture) lookup(t *testing.T) (int, bool) {
	t.Helper()
	offset, ok, err := f.store.Load(context.Background(), bookmark.Key(f.book))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return offset, ok
}

// widthEngine puts as many characters on a page as viewport is wide.
var widthEngine = layout.EngineFunc(func(t *text.Text, start int, vp layout.Viewport) int {
	return min(int(vp.Width), t.Len()-start)
})

func selectedPage(t *testing.T, st State) paginate.Page {
	t.Helper()
	pg, ok := st.Page()
	if !ok {
		t.Fatalf("selected page %s is not among %d pages", st.Selected, len(st.Pages))
	}
	return pg
}

func TestNew(t *testing.T) {
	f := newFixture(t, layout.Fixed(500), 1300)
	st := f.r.State()
	if len(st.Pages) != 1 || !st.Pages[0].IsPlaceholder() {
		t.Fatalf("new reader must show placeholder, got %d pages", len(st.Pages))
	}
	if st.Bookmark != 1300 {
		t.Errorf("Bookmark = %d, want 1300", st.Bookmark)
	}
	if got := len(f.r.Chapters()); got != 2 {
		t.Errorf("Chapters() = %d entries", got)
	}
}

func TestResize(t *testing.T) {
	tests := []struct {
		name     string
		bookmark int
		selected int // page start
	}{
		{"no bookmark", -1, 0},
		{"page start", 1000, 1000},
		{"inside page", 1300, 1700},
		{"chapter boundary", 1001, 1200},
		{"past end", 5000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, layout.Fixed(500), tt.bookmark)
			if err := f.r.Resize(context.Background(), small); err != nil {
				t.Fatalf("Resize() error = %v", err)
			}
			st := f.r.State()
			if st.Viewport != small || len(st.Pages) != 5 {
				t.Fatalf("state %s with %d pages", st.Viewport, len(st.Pages))
			}
			if pg := selectedPage(t, st); pg.Start != tt.selected {
				t.Errorf("selected page starts at %d, want %d", pg.Start, tt.selected)
			}
			// laying out never moves bookmark
			want := max(tt.bookmark, 0)
			if st.Bookmark != want {
				t.Errorf("Bookmark = %d, want %d", st.Bookmark, want)
			}
			got, ok := f.lookup(t)
			if ok != (tt.bookmark >= 0) || (ok && got != tt.bookmark) {
				t.Errorf("stored bookmark = %d, %v", got, ok)
			}
		})
	}
}

func TestResizeKeepsPosition(t *testing.T) {
	f := newFixture(t, widthEngine, -1)
	ctx := context.Background()

	if err := f.r.Resize(ctx, small); err != nil {
		t.Fatal(err)
	}
	st := f.r.State()
	if err := f.r.Select(ctx, st.Pages[3].ID); err != nil {
		t.Fatal(err)
	}
	if got := f.r.State().Bookmark; got != 900 {
		t.Fatalf("Bookmark = %d, want 900", got)
	}

	// 600 per page: 0 600 | 1200 1800, first page at or after 900 is 1200
	if err := f.r.Resize(ctx, large); err != nil {
		t.Fatal(err)
	}
	if pg := selectedPage(t, f.r.State()); pg.Start != 1200 {
		t.Errorf("after resize selected page starts at %d, want 1200", pg.Start)
	}
	// back to small, the page selected before is shown again
	if err := f.r.Resize(ctx, small); err != nil {
		t.Fatal(err)
	}
	if pg := selectedPage(t, f.r.State()); pg.Start != 900 || f.stored(t) != 900 {
		t.Errorf("selected page starts at %d, stored %d", pg.Start, f.stored(t))
	}
}

func TestResizeStable(t *testing.T) {
	f := newBookFixture(t, newBook(t, 5000), widthEngine, 510)
	ctx := context.Background()

	tests := []struct {
		vp    layout.Viewport
		start int
	}{
		{layout.Viewport{Width: 500, Height: 1}, 1000},
		{layout.Viewport{Width: 400, Height: 1}, 800},
	}
	for round := range 6 {
		tt := tests[round%len(tests)]
		if err := f.r.Resize(ctx, tt.vp); err != nil {
			t.Fatal(err)
		}
		st := f.r.State()
		if pg := selectedPage(t, st); pg.Start != tt.start {
			t.Errorf("round %d %s: selected page starts at %d, want %d", round, tt.vp, pg.Start, tt.start)
		}
		if st.Bookmark != 510 || f.stored(t) != 510 {
			t.Errorf("round %d %s: bookmark %d, stored %d, want 510", round, tt.vp, st.Bookmark, f.stored(t))
		}
	}
}

func TestSelectNumber(t *testing.T) {
	f := newFixture(t, layout.Fixed(500), -1)
	ctx := context.Background()
	if err := f.r.Resize(ctx, small); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		number int
		start  int
		err    error
	}{
		{1, 0, nil},
		{4, 1200, nil},
		{5, 1700, nil},
		{0, 1700, ErrUnknownPage},
		{6, 1700, ErrUnknownPage},
	}
	for _, tt := range tests {
		err := f.r.SelectNumber(ctx, tt.number)
		if !errors.Is(err, tt.err) {
			t.Errorf("SelectNumber(%d) error = %v, want %v", tt.number, err, tt.err)
			continue
		}
		st := f.r.State()
		if pg := selectedPage(t, st); pg.Start != tt.start || st.Bookmark != tt.start {
			t.Errorf("SelectNumber(%d): page at %d, bookmark %d, want %d", tt.number, pg.Start, st.Bookmark, tt.start)
		}
	}
	if got := f.stored(t); got != 1700 {
		t.Errorf("stored bookmark = %d, want 1700", got)
	}
}

func TestResizeSameViewport(t *testing.T) {
	f := newFixture(t, layout.Fixed(500), -1)
	ctx := context.Background()
	if err := f.r.Resize(ctx, small); err != nil {
		t.Fatal(err)
	}
	before := f.r.State()
	if err := f.r.Resize(ctx, small); err != nil {
		t.Fatal(err)
	}
	after := f.r.State()
	if after.Version != before.Version || after.Pages[0].ID != before.Pages[0].ID {
		t.Error("resize to the same viewport must be ignored")
	}
}

func TestResizeError(t *testing.T) {
	bad := layout.Viewport{Width: 13, Height: 13}
	engine := layout.EngineFunc(func(t *text.Text, start int, vp layout.Viewport) int {
		if vp == bad {
			return -1
		}
		return min(500, t.Len()-start)
	})
	ctx := context.Background()

	t.Run("before first layout", func(t *testing.T) {
		f := newFixture(t, engine, -1)
		err := f.r.Resize(ctx, bad)
		if !errors.Is(err, text.ErrRange) {
			t.Fatalf("Resize() error = %v, want ErrRange", err)
		}
		st := f.r.State()
		if len(st.Pages) != 1 || !st.Pages[0].IsPlaceholder() || st.Viewport == bad {
			t.Errorf("placeholder must be kept, got %d pages for %s", len(st.Pages), st.Viewport)
		}
		// failed viewport is not remembered, good one still lays out
		if err := f.r.Resize(ctx, small); err != nil || len(f.r.State().Pages) != 5 {
			t.Errorf("Resize() after error = %v", err)
		}
	})

	t.Run("after layout", func(t *testing.T) {
		f := newFixture(t, engine, 1200)
		if err := f.r.Resize(ctx, small); err != nil {
			t.Fatal(err)
		}
		before := f.r.State()
		if err := f.r.Resize(ctx, bad); !errors.Is(err, text.ErrRange) {
			t.Fatalf("Resize() error = %v, want ErrRange", err)
		}
		after := f.r.State()
		if after.Version != before.Version || after.Viewport != small || !slices.Equal(pageIDs(after.Pages), pageIDs(before.Pages)) {
			t.Error("previous pages must be kept")
		}
	})
}

func pageIDs(pages []paginate.Page) []uuid.UUID {
	ids := make([]uuid.UUID, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
	}
	return ids
}

func TestSelect(t *testing.T) {
	f := newFixture(t, layout.Fixed(500), -1)
	ctx := context.Background()
	if err := f.r.Resize(ctx, small); err != nil {
		t.Fatal(err)
	}
	pages := f.r.State().Pages

	if err := f.r.Select(ctx, pages[4].ID); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if st := f.r.State(); st.Selected != pages[4].ID || st.Bookmark != 1700 || f.stored(t) != 1700 {
		t.Errorf("state after Select() = %+v", st)
	}
	if err := f.r.Select(ctx, uuid.New()); !errors.Is(err, ErrUnknownPage) {
		t.Errorf("Select(unknown) error = %v", err)
	}
	if f.r.State().Selected != pages[4].ID {
		t.Error("failed Select() must not change selection")
	}
}

func TestJumpToChapter(t *testing.T) {
	f := newFixture(t, layout.Fixed(500), -1)
	ctx := context.Background()
	if err := f.r.Resize(ctx, small); err != nil {
		t.Fatal(err)
	}

	entries := f.r.Chapters()
	if err := f.r.JumpToChapter(ctx, entries[1].ChapterID); err != nil {
		t.Fatalf("JumpToChapter() error = %v", err)
	}
	if pg := selectedPage(t, f.r.State()); pg.Start != 1200 || pg.Number != 4 {
		t.Errorf("jumped to page %d at %d", pg.Number, pg.Start)
	}
	if err := f.r.JumpToChapter(ctx, uuid.New()); !errors.Is(err, ErrUnknownChapter) {
		t.Errorf("JumpToChapter(unknown) error = %v", err)
	}
}

func TestTurn(t *testing.T) {
	f := newFixture(t, layout.Fixed(500), -1)
	ctx := context.Background()
	if err := f.r.Resize(ctx, small); err != nil {
		t.Fatal(err)
	}

	if ok, err := f.r.Prev(ctx); ok || err != nil {
		t.Errorf("Prev() on first page = %v, %v", ok, err)
	}
	var got []int
	for {
		ok, err := f.r.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, f.r.State().Bookmark)
	}
	if want := []int{500, 1000, 1200, 1700}; !slices.Equal(got, want) {
		t.Errorf("Next() bookmarks = %v, want %v", got, want)
	}
	if ok, err := f.r.Prev(ctx); !ok || err != nil || f.stored(t) != 1200 {
		t.Errorf("Prev() = %v, %v, stored %d", ok, err, f.stored(t))
	}
}

func TestReload(t *testing.T) {
	f := newFixture(t, layout.Fixed(500), 1300)
	ctx := context.Background()
	if err := f.r.Resize(ctx, small); err != nil {
		t.Fatal(err)
	}

	longer := newBook(t, 600, 1200, 800)
	longer.Title = f.book.Title
	if err := f.r.Reload(ctx, longer); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	st := f.r.State()
	if len(st.Pages) != 7 || f.r.Book() != longer {
		t.Fatalf("reloaded book has %d pages", len(st.Pages))
	}
	// pages now start at 0 500 600 1100 1600 1800 2300, bookmark 1300 is
	// resolved as offset into the new book
	if pg := selectedPage(t, st); pg.Start != 1600 || f.stored(t) != 1300 {
		t.Errorf("selected page starts at %d, stored %d, want 1600 and 1300", pg.Start, f.stored(t))
	}
	if len(f.r.Chapters()) != 3 {
		t.Errorf("Chapters() = %d entries, want 3", len(f.r.Chapters()))
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, layout.Fixed(500), -1)
	ctx := context.Background()

	var versions []uint64
	cancel := f.r.Subscribe(func(st State) {
		selectedPage(t, st)
		if st.Book != f.book {
			t.Error("snapshot does not carry the book")
		}
		versions = append(versions, st.Version)
	})

	if err := f.r.Resize(ctx, small); err != nil {
		t.Fatal(err)
	}
	if _, err := f.r.Next(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, err := f.r.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if want := []uint64{1, 2}; !slices.Equal(versions, want) {
		t.Errorf("versions = %v, want %v", versions, want)
	}
}

func TestConcurrent(t *testing.T) {
	f := newFixture(t, widthEngine, -1)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		last uint64
	)
	f.r.Subscribe(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		if st.Version <= last {
			t.Errorf("version %d delivered after %d", st.Version, last)
		}
		last = st.Version
		if _, ok := st.Page(); !ok {
			t.Errorf("version %d: selected page is not among pages", st.Version)
		}
	})

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Go(func() {
			for j := range 20 {
				switch (i + j) % 3 {
				case 0:
					_ = f.r.Resize(ctx, layout.Viewport{Width: float64(100 + 50*j), Height: 100})
				case 1:
					_, _ = f.r.Next(ctx)
				default:
					_, _ = f.r.Prev(ctx)
				}
			}
		})
	}
	wg.Wait()
}

func TestReloadError(t *testing.T) {
	// refuses chapters of exactly 600 characters
	engine := layout.EngineFunc(func(t *text.Text, start int, vp layout.Viewport) int {
		if t.Len() == 600 {
			return -1
		}
		return min(500, t.Len()-start)
	})
	f := newFixture(t, engine, -1)
	ctx := context.Background()
	if err := f.r.Resize(ctx, small); err != nil {
		t.Fatal(err)
	}
	before := f.r.State()

	if err := f.r.Reload(ctx, newBook(t, 600)); !errors.Is(err, text.ErrRange) {
		t.Fatalf("Reload() error = %v, want ErrRange", err)
	}
	if f.r.Book() != f.book || f.r.State().Version != before.Version || len(f.r.Chapters()) != 2 {
		t.Error("previous book must stay after failed reload")
	}
}
