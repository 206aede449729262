package layout

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"folio/content/text"
	"folio/css"
)

type variant int

const (
	regular variant = iota
	bold
	italic
	boldItalic
	mono
	monoBold
	monoItalic
	monoBoldItalic
)

var fontData = [...][]byte{
	regular:        goregular.TTF,
	bold:           gobold.TTF,
	italic:         goitalic.TTF,
	boldItalic:     gobolditalic.TTF,
	mono:           gomono.TTF,
	monoBold:       gomonobold.TTF,
	monoItalic:     gomonoitalic.TTF,
	monoBoldItalic: gomonobolditalic.TTF,
}

// parsed fonts are read only and shared by all typesetters.
var loadFonts = sync.OnceValues(func() ([]*opentype.Font, error) {
	fonts := make([]*opentype.Font, len(fontData))
	for i, data := range fontData {
		f, err := opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("unable to parse font %d: %w", i, err)
		}
		fonts[i] = f
	}
	return fonts, nil
})

func variantOf(st css.Style) variant {
	v := regular
	if st.Bold {
		v |= bold
	}
	if st.Italic {
		v |= italic
	}
	if st.Mono {
		v |= mono
	}
	return v
}

// metrics of one resolved style.
type metrics struct {
	face     font.Face
	height   float64 // line height in pixels, spacing included
	fallback fixed.Int26_6
}

func (m *metrics) advance(r rune) fixed.Int26_6 {
	if a, ok := m.face.GlyphAdvance(r); ok {
		return a
	}
	return m.fallback
}

// Typesetter is Engine measuring text with Go fonts. Lines are broken
// greedily at white space, words not fitting a line by themselves are broken
// at any character, white space is allowed to hang past the right edge and
// '\n' always ends the line. Kerning is not applied.
//
// Typesetter caches font faces and is not safe for concurrent use.
type Typesetter struct {
	log    *zap.Logger
	sheet  *css.Stylesheet
	base   css.Style
	dpi    float64
	fonts  []*opentype.Font
	styles map[string]css.Style
	faces  map[css.Style]*metrics
}

// NewTypesetter creates typesetter with base style for untagged text, the
// stylesheet refines it per tag.
func NewTypesetter(sheet *css.Stylesheet, base css.Style, dpi float64, log *zap.Logger) (*Typesetter, error) {
	if base.Size <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %g", base.Size)
	}
	if base.LineHeight <= 0 {
		return nil, fmt.Errorf("line spacing must be positive, got %g", base.LineHeight)
	}
	if dpi <= 0 {
		return nil, fmt.Errorf("dpi must be positive, got %g", dpi)
	}
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Typesetter{
		log:    log.Named("typesetter"),
		sheet:  sheet,
		base:   base,
		dpi:    dpi,
		fonts:  fonts,
		styles: make(map[string]css.Style),
		faces:  make(map[css.Style]*metrics),
	}, nil
}

// Close releases font faces.
func (ts *Typesetter) Close() error {
	var err error
	for st, m := range ts.faces {
		err = multierr.Append(err, m.face.Close())
		delete(ts.faces, st)
	}
	return err
}

func (ts *Typesetter) style(tags []text.Tag) css.Style {
	key := strings.Join(slices.Sorted(slices.Values(tagStrings(tags))), "\x00")
	if st, ok := ts.styles[key]; ok {
		return st
	}
	st := ts.sheet.Resolve(ts.base, tags)
	ts.styles[key] = st
	return st
}

func tagStrings(tags []text.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}

func (ts *Typesetter) metrics(st css.Style) (*metrics, error) {
	if m, ok := ts.faces[st]; ok {
		return m, nil
	}
	face, err := opentype.NewFace(ts.fonts[variantOf(st)], &opentype.FaceOptions{
		Size:    st.Size,
		DPI:     ts.dpi,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create face for %s: %w", st, err)
	}
	fm := face.Metrics()
	m := &metrics{
		face:     face,
		height:   float64(fm.Height) / 64 * st.LineHeight,
		fallback: fm.Height / 2,
	}
	ts.faces[st] = m
	ts.log.Debug("Created face", zap.Stringer("style", st), zap.Float64("line", m.height))
	return m, nil
}

// cursor walks style runs of a text, positions must not decrease.
type cursor struct {
	ts   *Typesetter
	runs []text.Run
	idx  int
	cur  *metrics
}

func (c *cursor) at(i int) (*metrics, error) {
	for c.idx < len(c.runs) && c.runs[c.idx].End <= i {
		c.idx++
		c.cur = nil
	}
	if c.cur != nil {
		return c.cur, nil
	}
	m, err := c.ts.metrics(c.ts.style(c.runs[c.idx].Tags))
	if err != nil {
		return nil, err
	}
	c.cur = m
	return m, nil
}

// VisibleRange implements Engine. Result includes white space or line break
// which ended the last line on the page.
func (ts *Typesetter) VisibleRange(t *text.Text, start int, vp Viewport) int {
	if vp.Empty() || start < 0 || start >= t.Len() {
		return 0
	}

	scale := ts.dpi / 72
	maxW := fixed.Int26_6(vp.Width * scale * 64)
	maxH := vp.Height * scale

	c := &cursor{ts: ts, runs: slices.Collect(t.Runs())}
	pos, used := start, 0.0
	for pos < t.Len() {
		end, h, err := ts.line(t, pos, maxW, c)
		if err != nil {
			ts.log.Error("Unable to measure line", zap.Int("offset", pos), zap.Error(err))
			break
		}
		if used+h > maxH {
			break
		}
		used += h
		pos = end
	}
	return pos - start
}

// line returns end of the line starting at pos and its height.
func (ts *Typesetter) line(t *text.Text, pos int, maxW fixed.Int26_6, c *cursor) (int, float64, error) {
	var (
		width     fixed.Int26_6
		height    float64
		breakAt   = -1
		breakH    float64
		inSpace   bool
		lastSpace = -1
	)
	for i := pos; i < t.Len(); i++ {
		m, err := c.at(i)
		if err != nil {
			return 0, 0, err
		}

		r := t.At(i)
		switch {
		case r == '\n':
			return i + 1, max(height, m.height), nil
		case unicode.IsSpace(r):
			width += m.advance(r)
			height = max(height, m.height)
			inSpace, lastSpace = true, i
			continue
		}
		if inSpace {
			breakAt, breakH = lastSpace+1, height
			inSpace = false
		}

		a := m.advance(r)
		if width+a > maxW && i > pos {
			if breakAt > pos {
				return breakAt, breakH, nil
			}
			return i, height, nil
		}
		width += a
		height = max(height, m.height)
	}
	return t.Len(), height, nil
}
