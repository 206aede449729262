package fb2

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"folio/content/text"
)

// XML parsing functions for FictionBook2 format. Only main body text and a
// few description fields are extracted, everything else is skipped. Unknown
// tags are logged and their text is kept whenever it makes sense.

// Read parses FB2 document from r.
func Read(r io.Reader, log *zap.Logger) (*Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		// Respect HTML named character references, old FB2s often do not
		// properly follow XML standard
		Entity:        xml.HTMLEntity,
		ValidateInput: false,
		Permissive:    true,
	}
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("unable to read FB2: %w", err)
	}
	return ParseBookXML(doc, log)
}

// ParseBookXML walks the etree DOM of FictionBook. Only the first body is
// used, additional bodies usually hold footnotes.
func ParseBookXML(doc *etree.Document, log *zap.Logger) (*Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	if log == nil {
		log = zap.NewNop()
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	if root.Tag != "FictionBook" {
		return nil, fmt.Errorf("unexpected root element %q", root.Tag)
	}

	book := &Document{Lang: language.Und}
	var bodies int
	for _, child := range root.ChildElements() {
		switch child.Tag {
		case "description":
			parseDescription(child, book, log)
		case "body":
			bodies++
			if bodies > 1 {
				log.Debug("Skipping additional body", zap.String("name", child.SelectAttrValue("name", "")))
				continue
			}
			book.Sections = parseBody(child, book.Title, log)
		case "stylesheet", "binary":
		default:
			log.Warn("Unexpected tag in FictionBook, ignoring", zap.String("parent", root.Tag), zap.String("tag", child.Tag))
		}
	}
	if bodies == 0 {
		return nil, fmt.Errorf("document has no body")
	}
	return book, nil
}

func parseDescription(el *etree.Element, book *Document, log *zap.Logger) {
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "title-info":
			for _, info := range child.ChildElements() {
				switch info.Tag {
				case "book-title":
					book.Title = collapseSpace(info.Text())
				case "lang":
					book.Lang = parseBookLang(info.Text(), log)
				}
			}
		case "document-info":
			if id := child.SelectElement("id"); id != nil {
				book.ID = strings.TrimSpace(id.Text())
			}
		case "src-title-info", "publish-info", "custom-info", "output":
		default:
			log.Warn("Unexpected tag in description, ignoring", zap.String("parent", el.Tag), zap.String("tag", child.Tag))
		}
	}
}

func parseBookLang(in string, log *zap.Logger) language.Tag {
	lang := strings.TrimSpace(in)
	if lang == "" {
		return language.Und
	}

	tag, err := language.Parse(lang)
	if err == nil {
		return tag
	}

	// last resort - try names directly
	for _, supportedTag := range display.Supported.Tags() {
		if strings.EqualFold(display.Self.Name(supportedTag), lang) {
			return supportedTag
		}
	}
	log.Warn("Unable to parse book language", zap.String("lang", lang))
	return language.Und
}

// parseBody returns one section per top level section of the body. Body
// title, image and epigraphs, if present, become a section of their own named
// after the book.
func parseBody(el *etree.Element, bookTitle string, log *zap.Logger) []Section {
	var (
		sections []Section
		intro    = newFlow(log)
	)
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "title":
			if t := intro.title(child); intro.heading == "" {
				intro.heading = t
			}
		case "epigraph":
			intro.epigraph(child)
		case "image":
		case "section":
			f := newFlow(log)
			f.section(child, 0)
			sections = append(sections, Section{Title: f.heading, Text: f.b.Build()})
		default:
			log.Warn("Unexpected tag in body, ignoring", zap.String("parent", el.Tag), zap.String("tag", child.Tag))
		}
	}
	if intro.b.Len() > 0 {
		title := intro.heading
		if title == "" {
			title = bookTitle
		}
		sections = append([]Section{{Title: title, Text: intro.b.Build()}}, sections...)
	}
	return sections
}

// flow accumulates paragraphs of a single chapter. Every paragraph ends with
// '\n'.
type flow struct {
	log     *zap.Logger
	b       *text.Builder
	heading string
}

func newFlow(log *zap.Logger) *flow {
	return &flow{log: log, b: text.NewBuilder()}
}

func (f *flow) section(el *etree.Element, depth int) {
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "title":
			t := f.title(child)
			if depth == 0 && f.heading == "" {
				f.heading = t
			}
		case "epigraph":
			f.epigraph(child)
		case "annotation":
			f.items(child, text.Emphasis)
		case "section":
			f.section(child, depth+1)
		default:
			f.item(child, el.Tag)
		}
	}
}

// title writes title paragraphs tagged as heading and returns their plain
// text.
func (f *flow) title(el *etree.Element) string {
	var parts []string
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "p":
			if s := f.paragraph(child, text.Heading); s != "" {
				parts = append(parts, s)
			}
		case "empty-line":
			f.emptyLine()
		default:
			f.log.Warn("Unexpected tag in title, ignoring", zap.String("parent", el.Tag), zap.String("tag", child.Tag))
		}
	}
	return strings.Join(parts, " ")
}

func (f *flow) epigraph(el *etree.Element) {
	for _, child := range el.ChildElements() {
		if child.Tag == "text-author" {
			f.paragraph(child, text.Strong)
			continue
		}
		f.item(child, el.Tag, text.Emphasis)
	}
}

func (f *flow) items(el *etree.Element, tags ...text.Tag) {
	for _, child := range el.ChildElements() {
		f.item(child, el.Tag, tags...)
	}
}

func (f *flow) item(el *etree.Element, parentTag string, tags ...text.Tag) {
	switch el.Tag {
	case "p":
		f.paragraph(el, tags...)
	case "subtitle":
		f.paragraph(el, with(tags, text.Strong)...)
	case "empty-line":
		f.emptyLine()
	case "poem":
		f.poem(el, tags...)
	case "cite":
		for _, child := range el.ChildElements() {
			if child.Tag == "text-author" {
				f.paragraph(child, with(tags, text.Strong)...)
				continue
			}
			f.item(child, el.Tag, with(tags, text.Emphasis)...)
		}
	case "table":
		for _, row := range el.SelectElements("tr") {
			var cells []string
			for _, cell := range row.ChildElements() {
				cells = append(cells, collapseSpace(allText(cell)))
			}
			f.line(strings.Join(cells, "\t"), tags...)
		}
	case "image":
	case "section":
		f.section(el, 1)
	case "text-author", "date", "v", "stanza", "annotation":
		f.log.Warn("Unexpected tag in "+parentTag+", converting to paragraph", zap.String("tag", el.Tag))
		f.line(collapseSpace(allText(el)), tags...)
	default:
		f.log.Warn("Unexpected tag in "+parentTag+", ignoring", zap.String("tag", el.Tag))
	}
}

func (f *flow) poem(el *etree.Element, tags ...text.Tag) {
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "title":
			for _, p := range child.SelectElements("p") {
				f.paragraph(p, with(tags, text.Strong)...)
			}
		case "epigraph":
			f.epigraph(child)
		case "subtitle", "text-author":
			f.paragraph(child, with(tags, text.Strong)...)
		case "date":
			f.paragraph(child, tags...)
		case "stanza":
			for _, line := range child.ChildElements() {
				switch line.Tag {
				case "v":
					f.paragraph(line, tags...)
				case "title", "subtitle":
					f.paragraph(line, with(tags, text.Strong)...)
				default:
					f.log.Warn("Unexpected tag in stanza, ignoring", zap.String("parent", child.Tag), zap.String("tag", line.Tag))
				}
			}
			f.emptyLine()
		default:
			f.log.Warn("Unexpected tag in poem, ignoring", zap.String("parent", el.Tag), zap.String("tag", child.Tag))
		}
	}
}

func (f *flow) emptyLine() {
	f.b.WriteString("\n")
}

func (f *flow) line(s string, tags ...text.Tag) {
	if s == "" {
		return
	}
	f.b.WriteString(s, tags...)
	f.b.WriteString("\n")
}

// paragraph writes inline content of el with white space collapsed, tags
// apply to the whole paragraph. It returns plain paragraph text.
func (f *flow) paragraph(el *etree.Element, tags ...text.Tag) string {
	var s segments
	s.inline(el, tags, f.log)
	plain := s.write(f.b)
	if plain != "" {
		f.b.WriteString("\n")
	}
	return plain
}

type segment struct {
	text string
	tags []text.Tag
}

type segments []segment

func (s *segments) inline(parent *etree.Element, tags []text.Tag, log *zap.Logger) {
	for _, node := range parent.Child {
		switch token := node.(type) {
		case *etree.CharData:
			if token.Data != "" {
				*s = append(*s, segment{text: token.Data, tags: tags})
			}
		case *etree.Element:
			switch token.Tag {
			case "image":
				continue
			case "strong", "emphasis", "code", "style":
				inner := tags
				if tag, ok := inlineTag(token); ok {
					inner = with(tags, tag)
				}
				s.inline(token, inner, log)
			case "a", "strikethrough", "sub", "sup":
				s.inline(token, tags, log)
			default:
				log.Debug("Unexpected inline tag, using its text", zap.String("parent", parent.Tag), zap.String("tag", token.Tag))
				s.inline(token, tags, log)
			}
		}
	}
}

// inlineTag maps inline FB2 element to text tag. Named styles are mapped by
// their name.
func inlineTag(el *etree.Element) (text.Tag, bool) {
	switch el.Tag {
	case "strong":
		return text.Strong, true
	case "emphasis":
		return text.Emphasis, true
	case "code":
		return text.Code, true
	}
	name := strings.ToLower(el.SelectAttrValue("name", ""))
	switch {
	case strings.Contains(name, "bold"), strings.Contains(name, "strong"):
		return text.Strong, true
	case strings.Contains(name, "italic"), strings.Contains(name, "emphasis"):
		return text.Emphasis, true
	case strings.Contains(name, "code"), strings.Contains(name, "mono"):
		return text.Code, true
	}
	return "", false
}

// isXMLSpace reports XML white space, other Unicode spaces (no-break space
// for one) are content.
func isXMLSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// write collapses white space across segment boundaries, trims the result
// and writes it to b.
func (s segments) write(b *text.Builder) string {
	var (
		plain   strings.Builder
		pending bool
	)
	for _, seg := range s {
		var out strings.Builder
		for _, r := range seg.text {
			if isXMLSpace(r) {
				pending = true
				continue
			}
			if pending && plain.Len()+out.Len() > 0 {
				out.WriteByte(' ')
			}
			pending = false
			out.WriteRune(r)
		}
		if out.Len() == 0 {
			continue
		}
		b.WriteString(out.String(), seg.tags...)
		plain.WriteString(out.String())
	}
	return plain.String()
}

func allText(el *etree.Element) string {
	var sb strings.Builder
	for _, node := range el.Child {
		switch token := node.(type) {
		case *etree.CharData:
			sb.WriteString(token.Data)
		case *etree.Element:
			sb.WriteString(allText(token))
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func with(tags []text.Tag, tag text.Tag) []text.Tag {
	return append(tags[:len(tags):len(tags)], tag)
}
