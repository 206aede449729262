package css_test

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"folio/content/text"
	"folio/css"
)

func TestParser_ParseDefaultCSS(t *testing.T) {
	sheet := css.Default(zap.NewNop())

	if len(sheet.Rules) == 0 {
		t.Fatal("expected rules to be parsed from default.css")
	}
	if len(sheet.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", sheet.Warnings)
	}

	for _, tag := range []text.Tag{text.Body, text.Heading, text.Emphasis, text.Strong, text.Code} {
		if len(sheet.RulesBySelector(tag)) == 0 {
			t.Errorf("expected %q selector rule", tag)
		}
	}
}

func TestParser_GroupedSelectors(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	sheet := p.Parse([]byte(`heading, .strong { font-weight: bold; }`))
	if len(sheet.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(sheet.Rules))
	}
	if sheet.Rules[0].Selector != text.Heading || sheet.Rules[1].Selector != text.Strong {
		t.Errorf("unexpected selectors: %q, %q", sheet.Rules[0].Selector, sheet.Rules[1].Selector)
	}
	if v := sheet.Rules[1].Properties["font-weight"]; v.Keyword != "bold" {
		t.Errorf("expected bold, got %+v", v)
	}
}

func TestParser_Values(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	sheet := p.Parse([]byte(`body { font-size: 12pt; line-height: 150%; font-weight: 700; font-family: "Go Mono", monospace; }`))
	if len(sheet.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(sheet.Rules))
	}
	props := sheet.Rules[0].Properties

	tests := []struct {
		name    string
		value   float64
		unit    string
		numeric bool
	}{
		{"font-size", 12, "pt", true},
		{"line-height", 150, "%", true},
		{"font-weight", 700, "", true},
	}
	for _, tt := range tests {
		v, ok := props[tt.name]
		if !ok {
			t.Errorf("%s: missing", tt.name)
			continue
		}
		if v.Value != tt.value || v.Unit != tt.unit || v.IsNumeric() != tt.numeric {
			t.Errorf("%s: got %+v", tt.name, v)
		}
	}
	if v := props["font-family"]; !strings.Contains(v.Keyword, "monospace") || !v.IsKeyword() {
		t.Errorf("font-family: got %+v", v)
	}
}

func TestParser_Warnings(t *testing.T) {
	p := css.NewParser(zap.NewNop())

	input := []byte(`
@media screen { body { font-size: 10pt; } }
p code { font-style: italic; }
a:hover { font-weight: bold; }
emphasis { color: red; font-style: italic; }
`)
	sheet := p.Parse(input, "test")

	if len(sheet.Rules) != 1 {
		t.Fatalf("expected only emphasis rule, got %d rules", len(sheet.Rules))
	}
	if _, ok := sheet.Rules[0].Properties["color"]; ok {
		t.Error("unsupported property must be dropped")
	}
	if len(sheet.Warnings) != 4 {
		t.Errorf("expected 4 warnings, got %d: %v", len(sheet.Warnings), sheet.Warnings)
	}
}

func TestResolve(t *testing.T) {
	sheet := css.Default(zap.NewNop())
	base := css.Style{Size: 16, LineHeight: 1.2}

	tests := []struct {
		name string
		tags []text.Tag
		want css.Style
	}{
		{"body", nil, css.Style{Size: 16, LineHeight: 1.2}},
		{"heading", []text.Tag{text.Heading}, css.Style{Size: 24, LineHeight: 1.3, Bold: true}},
		{"emphasis", []text.Tag{text.Emphasis}, css.Style{Size: 16, LineHeight: 1.2, Italic: true}},
		{"heading emphasis", []text.Tag{text.Emphasis, text.Heading}, css.Style{Size: 24, LineHeight: 1.3, Bold: true, Italic: true}},
		{"code", []text.Tag{text.Code}, css.Style{Size: 16 * 0.9, LineHeight: 1.2, Mono: true}},
		{"unknown tag", []text.Tag{"aside"}, css.Style{Size: 16, LineHeight: 1.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sheet.Resolve(base, tt.tags); got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve_StylesheetOrder(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	sheet := p.Parse([]byte(`
strong { font-size: 10pt; }
body { font-size: 12px; }
emphasis { font-size: 2em; }
`))
	base := css.Style{Size: 16, LineHeight: 1}

	// body applies first regardless of position, then strong, then emphasis
	got := sheet.Resolve(base, []text.Tag{text.Emphasis, text.Strong})
	if got.Size != 20 {
		t.Errorf("Size = %g, want 20", got.Size)
	}
	if got := sheet.Resolve(base, nil); got.Size != 9 {
		t.Errorf("body Size = %g, want 9", got.Size)
	}
}

func TestStylesheet_String(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	sheet := p.Parse([]byte(`heading { font-weight: bold; font-size: 20pt }`))

	want := "heading {\n  font-size: 20pt;\n  font-weight: bold;\n}\n"
	if got := sheet.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	again := p.Parse([]byte(sheet.String()))
	if len(again.Rules) != 1 || again.Rules[0].Properties["font-size"].Value != 20 {
		t.Errorf("round trip lost rule: %+v", again.Rules)
	}
}
