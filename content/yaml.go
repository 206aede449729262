package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"folio/content/text"
)

// yamlBook is a book authored by hand. First line of every chapter text is
// its heading, styles tag either every occurrence of a phrase or explicit
// character range.
type yamlBook struct {
	ID       string        `yaml:"id"`
	Title    string        `yaml:"title"`
	Lang     string        `yaml:"lang"`
	Chapters []yamlChapter `yaml:"chapters"`
}

type yamlChapter struct {
	Title  string      `yaml:"title"`
	Text   string      `yaml:"text"`
	Styles []yamlStyle `yaml:"styles"`
}

type yamlStyle struct {
	Tag    string `yaml:"tag"`
	Phrase string `yaml:"phrase,omitempty"`
	Start  *int   `yaml:"start,omitempty"`
	End    *int   `yaml:"end,omitempty"`
}

func loadYAMLFile(path string, log *zap.Logger) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseYAML(data, log)
}

func parseYAML(data []byte, log *zap.Logger) (*Book, error) {
	var src yamlBook

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&src); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode book: %w", err)
	}

	id, err := bookID(src.ID)
	if err != nil {
		return nil, err
	}
	book := &Book{ID: id, Title: src.Title, Lang: src.Lang}
	for i, c := range src.Chapters {
		ch, err := c.chapter(log)
		if err != nil {
			return nil, fmt.Errorf("chapter %d: %w", i+1, err)
		}
		if ch.Title == "" {
			ch.Title = fmt.Sprintf("Chapter %d", i+1)
		}
		book.Chapters = append(book.Chapters, ch)
	}
	return book, nil
}

func (c yamlChapter) chapter(log *zap.Logger) (Chapter, error) {
	b := text.NewBuilder()
	heading, rest, found := strings.Cut(c.Text, "\n")
	b.WriteString(heading, text.Heading)
	if found {
		b.WriteString("\n")
		b.WriteString(rest)
	}

	for _, st := range c.Styles {
		tag, err := text.ParseTag(st.Tag)
		if err != nil {
			return Chapter{}, err
		}
		switch {
		case st.Phrase != "" && st.Start == nil && st.End == nil:
			if b.ApplyPhrase(st.Phrase, tag) == 0 {
				log.Warn("Styled phrase not found", zap.String("phrase", st.Phrase), zap.String("chapter", c.Title))
			}
		case st.Phrase == "" && st.Start != nil && st.End != nil:
			if err := b.Apply(*st.Start, *st.End, tag); err != nil {
				return Chapter{}, err
			}
		default:
			return Chapter{}, fmt.Errorf("style %q needs either phrase or start and end", st.Tag)
		}
	}

	title := c.Title
	if title == "" {
		title = strings.TrimSpace(heading)
	}
	return NewChapter(title, b.Build())
}
