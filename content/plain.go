package content

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/maruel/natural"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"folio/content/text"
)

// chapter separator in plain text files: form feed or a line of three
// asterisks. Blank parts are skipped.
var separator = regexp.MustCompile(`(?m)\f|^[ \t]*\*\*\*[ \t]*$`)

func loadTextFile(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	abs, _ := filepath.Abs(path)
	id, err := bookID(abs)
	if err != nil {
		return nil, err
	}
	book := &Book{ID: id, Title: baseName(path)}
	for _, part := range separator.Split(strings.ReplaceAll(s, "\r\n", "\n"), -1) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		ch, err := plainChapter(part, fmt.Sprintf("Chapter %d", len(book.Chapters)+1))
		if err != nil {
			return nil, err
		}
		book.Chapters = append(book.Chapters, ch)
	}
	return book, nil
}

// loadDir makes chapter of every ".txt" file in the directory, in natural
// order of file names. Subdirectories are not visited.
func loadDir(path string, log *zap.Logger) (*Book, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(natural.StringSlice(names))

	abs, _ := filepath.Abs(path)
	id, err := bookID(abs)
	if err != nil {
		return nil, err
	}
	book := &Book{ID: id, Title: filepath.Base(abs)}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(path, name))
		if err != nil {
			return nil, err
		}
		s, err := decodeText(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		ch, err := plainChapter(s, baseName(name))
		if err != nil {
			return nil, err
		}
		book.Chapters = append(book.Chapters, ch)
	}
	if len(book.Chapters) == 0 {
		log.Warn("Directory has no text files", zap.String("path", path))
	}
	return book, nil
}

// plainChapter makes chapter of plain text. Leading blank lines are dropped,
// the first line becomes the title and is tagged as heading.
func plainChapter(s, fallbackTitle string) (Chapter, error) {
	s = strings.TrimLeft(strings.ReplaceAll(s, "\r\n", "\n"), "\n\r\t ")
	heading, rest, _ := strings.Cut(s, "\n")
	heading = strings.TrimSpace(heading)

	b := text.NewBuilder()
	title := fallbackTitle
	if heading != "" {
		title = heading
		b.WriteString(heading, text.Heading)
		b.WriteString("\n")
	}
	b.WriteString(rest)
	return NewChapter(title, b.Build())
}

// decodeText returns UTF-8 text of data. Byte order mark is dropped, input
// which is not valid UTF-8 is decoded with encoding guessed from its
// content.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}
	enc, _, _ := charset.DetermineEncoding(data, "text/plain")
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("unable to decode text: %w", err)
	}
	return string(out), nil
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
