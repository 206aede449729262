package bookmark

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"folio/config"
	"folio/content"
)

func stores(t *testing.T) map[string]func(dir string) (Store, error) {
	t.Helper()
	return map[string]func(dir string) (Store, error){
		"memory": func(string) (Store, error) { return NewMemory(), nil },
		"file":   func(dir string) (Store, error) { return NewFile(filepath.Join(dir, "marks", "bookmarks.yaml")), nil },
		"sqlite": func(dir string) (Store, error) { return OpenSQLite(filepath.Join(dir, "bookmarks.db")) },
	}
}

func TestStore(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, err := open(t.TempDir())
			if err != nil {
				t.Fatalf("open error = %v", err)
			}
			defer s.Close()

			if _, ok, err := s.Load(ctx, "absent"); err != nil || ok {
				t.Fatalf("Load(absent) = %v, %v", ok, err)
			}
			for _, offset := range []int{1200, 0, 1700} {
				if err := s.Save(ctx, "book", offset); err != nil {
					t.Fatalf("Save(%d) error = %v", offset, err)
				}
				got, ok, err := s.Load(ctx, "book")
				if err != nil || !ok || got != offset {
					t.Errorf("Load() = %d, %v, %v, want %d", got, ok, err, offset)
				}
			}
			if err := s.Save(ctx, "other", 5); err != nil {
				t.Fatal(err)
			}
			if got, _, _ := s.Load(ctx, "book"); got != 1700 {
				t.Errorf("keys are not independent, got %d", got)
			}
		})
	}
}

func TestStoreConcurrent(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, err := open(t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()

			var wg sync.WaitGroup
			for i := range 8 {
				wg.Go(func() {
					if err := s.Save(ctx, "book", i*100); err != nil {
						t.Error(err)
					}
					if _, _, err := s.Load(ctx, "book"); err != nil {
						t.Error(err)
					}
				})
			}
			wg.Wait()

			got, ok, err := s.Load(ctx, "book")
			if err != nil || !ok || got%100 != 0 || got < 0 || got > 700 {
				t.Errorf("Load() = %d, %v, %v", got, ok, err)
			}
		})
	}
}

func TestPersistence(t *testing.T) {
	for _, name := range []string{"file", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			open := stores(t)[name]

			s, err := open(dir)
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Save(ctx, "book", 42); err != nil {
				t.Fatal(err)
			}
			if err := s.Close(); err != nil {
				t.Fatal(err)
			}

			s, err = open(dir)
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			if got, ok, err := s.Load(ctx, "book"); err != nil || !ok || got != 42 {
				t.Errorf("Load() after reopen = %d, %v, %v", got, ok, err)
			}
		})
	}
}

func TestFileCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	if err := os.WriteFile(path, []byte("book: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	f := NewFile(path)
	if _, _, err := f.Load(context.Background(), "book"); err == nil {
		t.Error("expected error for corrupted file")
	}
	if err := f.Save(context.Background(), "book", 1); err == nil {
		t.Error("corrupted file must not be overwritten")
	}
}

func TestMemoryCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory()
	if err := m.Save(ctx, "book", 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() error = %v", err)
	}
	if _, _, err := m.Load(ctx, "book"); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v", err)
	}
}

func TestSlot(t *testing.T) {
	ctx := context.Background()
	book := &content.Book{ID: uuid.New(), Title: "The Whispering Woods"}
	slot := NewSlot(NewMemory(), book)

	if slot.Key != "the-whispering-woods" {
		t.Errorf("Key = %q", slot.Key)
	}
	if got, err := slot.Load(ctx); err != nil || got != 0 {
		t.Errorf("Load() of new slot = %d, %v", got, err)
	}
	if err := slot.Save(ctx, 1000); err != nil {
		t.Fatal(err)
	}
	if got, err := slot.Load(ctx); err != nil || got != 1000 {
		t.Errorf("Load() = %d, %v", got, err)
	}
	if err := slot.Save(ctx, -1); !errors.Is(err, ErrInvalidOffset) {
		t.Errorf("Save(-1) error = %v", err)
	}

	var detached Slot
	if err := detached.Save(ctx, 5); err != nil {
		t.Errorf("Save() without store error = %v", err)
	}
	if got, err := detached.Load(ctx); err != nil || got != 0 {
		t.Errorf("Load() without store = %d, %v", got, err)
	}
}

func TestKey(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		title string
		want  string
	}{
		{"The Whispering Woods", "the-whispering-woods"},
		{"  Chapter 1: Start!  ", "chapter-1-start"},
		{"", id.String()},
		{"!!!", id.String()},
	}
	for _, tt := range tests {
		if got := Key(&content.Book{ID: id, Title: tt.title}); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
	if got := Key(&content.Book{ID: id, Title: "Война и мир"}); got == "" || got == id.String() {
		t.Errorf("Key() must transliterate title, got %q", got)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		conf config.BookmarksConfig
		want string
	}{
		{"none", config.BookmarksConfig{Storage: config.StorageKindNone}, "*bookmark.Memory"},
		{"file", config.BookmarksConfig{Storage: config.StorageKindFile, Path: filepath.Join(dir, "b.yaml")}, "*bookmark.File"},
		{"sqlite", config.BookmarksConfig{Storage: config.StorageKindSqlite, Path: filepath.Join(dir, "b.db")}, "*bookmark.SQLite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(&tt.conf, zaptest.NewLogger(t))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer s.Close()
			if got := fmt.Sprintf("%T", s); got != tt.want {
				t.Errorf("Open() = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := Open(&config.BookmarksConfig{Storage: config.StorageKind(9)}, nil); err == nil {
		t.Error("expected error for unknown storage")
	}
}

func TestSQLiteMemory(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Save(context.Background(), "book", 3); err != nil {
		t.Fatal(err)
	}
	if got, ok, err := s.Load(context.Background(), "book"); err != nil || !ok || got != 3 {
		t.Errorf("Load() = %d, %v, %v", got, ok, err)
	}
}
