// Package bookmark persists reading position of a book: the offset of the
// first character shown to the reader.
package bookmark

import (
	"context"
	"errors"
	"fmt"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"folio/config"
	"folio/content"
)

// ErrInvalidOffset is returned when saving negative offset.
var ErrInvalidOffset = errors.New("bookmark offset must not be negative")

// Store keeps bookmark offsets by book key. Implementations are safe for
// concurrent use.
type Store interface {
	// Load returns stored offset, ok is false when nothing is stored for key.
	Load(ctx context.Context, key string) (offset int, ok bool, err error)
	Save(ctx context.Context, key string, offset int) error
	Close() error
}

// Slot is bookmark of a single book.
type Slot struct {
	Store Store
	Key   string
}

// NewSlot binds store to the book.
func NewSlot(store Store, book *content.Book) Slot {
	return Slot{Store: store, Key: Key(book)}
}

// Load returns stored offset or 0 when book has no bookmark yet.
func (s Slot) Load(ctx context.Context) (int, error) {
	if s.Store == nil {
		return 0, nil
	}
	offset, ok, err := s.Store.Load(ctx, s.Key)
	if err != nil {
		return 0, fmt.Errorf("unable to load bookmark %q: %w", s.Key, err)
	}
	if !ok || offset < 0 {
		return 0, nil
	}
	return offset, nil
}

func (s Slot) Save(ctx context.Context, offset int) error {
	if offset < 0 {
		return fmt.Errorf("bookmark %q, offset %d: %w", s.Key, offset, ErrInvalidOffset)
	}
	if s.Store == nil {
		return nil
	}
	if err := s.Store.Save(ctx, s.Key, offset); err != nil {
		return fmt.Errorf("unable to save bookmark %q: %w", s.Key, err)
	}
	return nil
}

// Key returns storage key of the book: slug of its title, or its id when
// title gives nothing usable.
func Key(book *content.Book) string {
	if k := slug.Make(book.Title); k != "" {
		return k
	}
	return book.ID.String()
}

// Open creates store selected by configuration.
func Open(conf *config.BookmarksConfig, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("bookmark")

	switch conf.Storage {
	case config.StorageKindNone:
		log.Debug("Bookmarks are not persisted")
		return NewMemory(), nil
	case config.StorageKindFile:
		log.Debug("Using bookmarks file", zap.String("path", conf.Path))
		return NewFile(conf.Path), nil
	case config.StorageKindSqlite:
		log.Debug("Using bookmarks database", zap.String("path", conf.Path))
		return OpenSQLite(conf.Path)
	default:
		return nil, fmt.Errorf("unknown bookmarks storage %s", conf.Storage)
	}
}
