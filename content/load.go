package content

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"folio/archive"
	"folio/config"
	"folio/fb2"
	"folio/state"
)

// ErrUnsupported is returned for sources Load does not know how to read.
var ErrUnsupported = errors.New("unsupported book source")

// Load reads book from path. Source kind is detected by name: ".fb2" files,
// ".zip" archives with FB2 inside, ".yaml"/".yml" books, ".txt" files and
// directories of ".txt" files.
func Load(ctx context.Context, path string, log *zap.Logger) (*Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to access book source: %w", err)
	}

	var book *Book
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case fi.IsDir():
		book, err = loadDir(path, log)
	case ext == ".fb2":
		book, err = loadFB2File(path, log)
	case ext == ".zip":
		book, err = loadZip(path, log)
	case ext == ".yaml", ext == ".yml":
		book, err = loadYAMLFile(path, log)
	case ext == ".txt":
		book, err = loadTextFile(path)
	default:
		return nil, fmt.Errorf("%q: %w", path, ErrUnsupported)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load %q: %w", path, err)
	}
	book.Source = path

	if env, ok := state.LookupEnv(ctx); ok && env.Rpt != nil {
		name := book.Title
		if name == "" {
			name = filepath.Base(path)
		}
		env.Rpt.StoreData(config.CleanFileName(name)+"_parsed.txt", []byte(book.String()))
	}
	log.Debug("Book loaded", zap.String("source", path), zap.Stringer("id", book.ID),
		zap.Int("chapters", len(book.Chapters)), zap.Int("characters", book.Len()))
	return book, nil
}

func loadFB2File(path string, log *zap.Logger) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := fb2.Read(f, log)
	if err != nil {
		return nil, err
	}
	return fromFB2(doc, log)
}

// loadZip reads the first FB2 file found in archive.
func loadZip(path string, log *zap.Logger) (*Book, error) {
	var doc *fb2.Document
	err := archive.Walk(path, archive.Ext(".fb2"), func(_ string, file *zip.File) error {
		r, err := file.Open()
		if err != nil {
			return fmt.Errorf("unable to open %q: %w", file.Name, err)
		}
		defer r.Close()

		if doc, err = fb2.Read(r, log); err != nil {
			return fmt.Errorf("%q: %w", file.Name, err)
		}
		log.Debug("Using book from archive", zap.String("file", file.Name))
		return fs.SkipAll
	})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("archive has no FB2 files: %w", ErrUnsupported)
	}
	return fromFB2(doc, log)
}

func fromFB2(doc *fb2.Document, log *zap.Logger) (*Book, error) {
	id, err := bookID(doc.ID)
	if err != nil {
		return nil, err
	}
	if doc.ID == "" {
		log.Warn("Book has no ID, generated one", zap.Stringer("id", id))
	}

	book := &Book{ID: id, Title: doc.Title, Lang: doc.Lang.String()}
	for i, s := range doc.Sections {
		title := s.Title
		if title == "" {
			title = fmt.Sprintf("Section %d", i+1)
		}
		ch, err := NewChapter(title, s.Text)
		if err != nil {
			return nil, err
		}
		book.Chapters = append(book.Chapters, ch)
	}
	return book, nil
}

// bookID returns raw as is when it is UUID already. Other non empty ids are
// mapped to name based UUID so the same book always gets the same id, empty
// ones get fresh random id.
func bookID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return uuid.Nil, fmt.Errorf("unable to generate book id: %w", err)
		}
		return id, nil
	}
	if id, err := uuid.Parse(raw); err == nil {
		return id, nil
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(raw)), nil
}
