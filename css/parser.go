package css

import (
	"bytes"
	"maps"
	"strconv"
	"strings"
	"unicode"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"folio/content/text"
)

// properties typesetter understands, anything else is reported and dropped.
var supported = map[string]bool{
	"font-size":   true,
	"font-weight": true,
	"font-style":  true,
	"font-family": true,
	"line-height": true,
}

// Parser parses CSS stylesheets into structured rules.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet. Unsupported constructs never fail
// parsing, they end up in Stylesheet.Warnings.
// The optional source parameter identifies what's being parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	sheet := &Stylesheet{
		Rules:    make([]Rule, 0),
		Warnings: make([]string, 0),
	}

	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	input := parse.NewInput(bytes.NewReader(data))
	parser := css.NewParser(input, false)

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			// End of input or error
			if parser.Err() != nil && parser.Err().Error() != "EOF" {
				p.log.Debug("CSS parse error", zap.Error(parser.Err()))
				sheet.Warnings = append(sheet.Warnings, "parse error: "+parser.Err().Error())
			}
			return sheet

		case css.BeginAtRuleGrammar:
			p.skipAtRuleBlock(parser)
			sheet.Warnings = append(sheet.Warnings, "unsupported @-rule: "+string(data))
			p.log.Debug("Skipping @-rule", zap.String("rule", string(data)))

		case css.AtRuleGrammar:
			sheet.Warnings = append(sheet.Warnings, "unsupported @-rule: "+string(data))
			p.log.Debug("Skipping @-rule", zap.String("rule", string(data)))

		case css.BeginRulesetGrammar:
			selectors := p.parseSelectors(data, parser.Values())
			props := p.parseDeclarations(parser, sheet)

			for _, selStr := range selectors {
				tag, ok := p.parseSelector(selStr, sheet)
				if !ok {
					continue
				}
				sheet.Rules = append(sheet.Rules, Rule{
					Selector:   tag,
					Properties: maps.Clone(props),
				})
			}
		}
	}
}

// parseSelectors extracts selector strings from token data.
func (p *Parser) parseSelectors(data []byte, values []css.Token) []string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}

	var selectors []string
	for s := range strings.SplitSeq(sb.String(), ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			selectors = append(selectors, s)
		}
	}
	return selectors
}

// parseSelector accepts plain names and single classes, both name a style tag.
func (p *Parser) parseSelector(selStr string, sheet *Stylesheet) (text.Tag, bool) {
	name := strings.TrimPrefix(strings.TrimSpace(selStr), ".")
	if name == "" {
		return "", false
	}
	for _, r := range name {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			sheet.Warnings = append(sheet.Warnings, "unsupported selector: "+selStr)
			p.log.Debug("Skipping selector", zap.String("selector", selStr))
			return "", false
		}
	}
	return text.Tag(strings.ToLower(name)), true
}

// parseDeclarations parses property declarations until EndRulesetGrammar.
func (p *Parser) parseDeclarations(parser *css.Parser, sheet *Stylesheet) map[string]Value {
	props := make(map[string]Value)

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar, css.EndRulesetGrammar:
			return props

		case css.DeclarationGrammar:
			propName := strings.ToLower(string(data))
			if !supported[propName] {
				sheet.Warnings = append(sheet.Warnings, "unsupported property: "+propName)
				p.log.Debug("Skipping property", zap.String("property", propName))
				continue
			}
			if values := parser.Values(); len(values) > 0 {
				props[propName] = p.parsePropertyValue(values)
			}

		case css.CustomPropertyGrammar:
			continue
		}
	}
}

// parsePropertyValue converts CSS tokens to a Value.
func (p *Parser) parsePropertyValue(tokens []css.Token) Value {
	var rawParts []string
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			rawParts = append(rawParts, string(t.Data))
		} else if len(rawParts) > 0 {
			rawParts = append(rawParts, " ")
		}
	}
	raw := strings.TrimSpace(strings.Join(rawParts, ""))

	val := Value{Raw: raw}

	if len(tokens) == 1 || (len(tokens) == 2 && tokens[1].TokenType == css.WhitespaceToken) {
		t := tokens[0]
		switch t.TokenType {
		case css.DimensionToken:
			val.Value, val.Unit = parseDimension(string(t.Data))
		case css.PercentageToken:
			val.Value, _ = strconv.ParseFloat(strings.TrimSuffix(string(t.Data), "%"), 64)
			val.Unit = "%"
		case css.NumberToken:
			val.Value, _ = strconv.ParseFloat(string(t.Data), 64)
		case css.IdentToken:
			val.Keyword = strings.ToLower(string(t.Data))
		case css.StringToken:
			val.Keyword = unquote(string(t.Data))
		}
		return val
	}

	// Multi-value properties - store as keyword with raw value
	val.Keyword = strings.ToLower(raw)
	return val
}

// parseDimension extracts numeric value and unit from dimension token.
func parseDimension(s string) (float64, string) {
	numEnd := 0
	for i, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == '-' || r == '+' {
			numEnd = i + 1
		} else {
			break
		}
	}

	if numEnd == 0 {
		return 0, ""
	}

	num, _ := strconv.ParseFloat(s[:numEnd], 64)
	unit := strings.ToLower(s[numEnd:])
	return num, unit
}

// skipAtRuleBlock skips tokens until the matching end of an @-rule block.
func (p *Parser) skipAtRuleBlock(parser *css.Parser) {
	depth := 1
	for depth > 0 {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
