package css

import (
	_ "embed"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"folio/content/text"
)

//go:embed default.css
var defaultCSS []byte

// Default returns built-in stylesheet.
func Default(log *zap.Logger) *Stylesheet {
	return NewParser(log).Parse(defaultCSS, "default.css")
}

// DefaultSource returns text of built-in stylesheet.
func DefaultSource() []byte {
	return defaultCSS
}

// Style is fully resolved typographic style of a character.
type Style struct {
	Size       float64 // font size in points
	LineHeight float64 // line height as multiple of font height
	Bold       bool
	Italic     bool
	Mono       bool
}

func (s Style) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%gpt x%g", s.Size, s.LineHeight)
	if s.Bold {
		b.WriteString(" bold")
	}
	if s.Italic {
		b.WriteString(" italic")
	}
	if s.Mono {
		b.WriteString(" mono")
	}
	return b.String()
}

// Resolve computes style for a set of tags. Base is modified by "body" rules
// first and then by rules for the tags, in stylesheet order.
func (s *Stylesheet) Resolve(base Style, tags []text.Tag) Style {
	st := base
	if s == nil {
		return st
	}
	for _, r := range s.Rules {
		if r.Selector == text.Body {
			r.apply(&st)
		}
	}
	if len(tags) == 0 {
		return st
	}
	for _, r := range s.Rules {
		if r.Selector == text.Body {
			continue
		}
		for _, tag := range tags {
			if r.Selector == tag {
				r.apply(&st)
				break
			}
		}
	}
	return st
}

func (r Rule) apply(st *Style) {
	// font-size first, relative line-height units depend on it
	if v, ok := r.Properties["font-size"]; ok {
		if size := length(v, st.Size); size > 0 {
			st.Size = size
		}
	}
	if v, ok := r.Properties["line-height"]; ok {
		switch {
		case v.Keyword == "normal":
			st.LineHeight = 1.2
		case v.Unit == "" && v.Value > 0:
			st.LineHeight = v.Value
		case v.Unit == "%" && v.Value > 0:
			st.LineHeight = v.Value / 100
		case v.Unit == "em" && v.Value > 0:
			st.LineHeight = v.Value
		case v.IsNumeric() && st.Size > 0:
			if h := length(v, st.Size); h > 0 {
				st.LineHeight = h / st.Size
			}
		}
	}
	if v, ok := r.Properties["font-weight"]; ok {
		switch {
		case v.Keyword == "bold" || v.Keyword == "bolder":
			st.Bold = true
		case v.Keyword == "normal" || v.Keyword == "lighter":
			st.Bold = false
		case v.IsNumeric():
			st.Bold = v.Value >= 600
		}
	}
	if v, ok := r.Properties["font-style"]; ok {
		switch v.Keyword {
		case "italic", "oblique":
			st.Italic = true
		case "normal":
			st.Italic = false
		}
	}
	if v, ok := r.Properties["font-family"]; ok {
		st.Mono = strings.Contains(v.Keyword, "monospace")
	}
}

// length converts value to points, relative units are relative to current.
func length(v Value, current float64) float64 {
	switch v.Unit {
	case "pt", "":
		return v.Value
	case "px":
		return v.Value * 0.75
	case "em", "rem":
		return v.Value * current
	case "%":
		return v.Value * current / 100
	case "in":
		return v.Value * 72
	case "mm":
		return v.Value * 72 / 25.4
	case "cm":
		return v.Value * 72 / 2.54
	}
	return 0
}
