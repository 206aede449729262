package css

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"

	"folio/content/text"
)

// Value represents a parsed CSS property value.
type Value struct {
	Raw     string  // Original CSS value string (e.g., "1.2em", "bold")
	Value   float64 // Numeric value if applicable
	Unit    string  // Unit if applicable: "em", "px", "%", "pt"
	Keyword string  // Keyword if applicable: "bold", "italic", "monospace"
}

// IsNumeric returns true if the value has a numeric component.
// This includes explicit zero values like "0" or "0px".
func (v Value) IsNumeric() bool {
	if v.Unit != "" {
		return true
	}
	if v.Value != 0 && v.Keyword == "" {
		return true
	}
	if v.Raw != "" && v.Keyword == "" {
		firstChar := rune(v.Raw[0])
		if unicode.IsDigit(firstChar) || firstChar == '.' || firstChar == '-' || firstChar == '+' {
			return true
		}
	}
	return false
}

// IsKeyword returns true if the value is a keyword (no numeric component).
func (v Value) IsKeyword() bool {
	return v.Keyword != "" && v.Unit == ""
}

// Rule is a single CSS rule: style tag it selects and its properties.
type Rule struct {
	Selector   text.Tag         // Style tag, "body" is the base of every resolution
	Properties map[string]Value // Property name -> value
}

// Stylesheet is an ordered list of rules. Later rules override earlier ones.
type Stylesheet struct {
	Rules    []Rule   // All rules in source order
	Warnings []string // Warnings for unsupported features
}

// RulesBySelector returns all rules for the given tag in source order.
func (s *Stylesheet) RulesBySelector(tag text.Tag) []Rule {
	var matches []Rule
	for _, r := range s.Rules {
		if r.Selector == tag {
			matches = append(matches, r)
		}
	}
	return matches
}

// WriteTo writes the stylesheet to w in source order, implementing io.WriterTo.
// Property order within a rule is sorted alphabetically for deterministic output.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, r := range s.Rules {
		if i > 0 {
			n, err := fmt.Fprint(w, "\n")
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
		n, err := writeRule(w, &r)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

func writeRule(w io.Writer, rule *Rule) (int, error) {
	var total int
	n, err := fmt.Fprintf(w, "%s {\n", rule.Selector)
	total += n
	if err != nil {
		return total, err
	}

	names := make([]string, 0, len(rule.Properties))
	for name := range rule.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		n, err = fmt.Fprintf(w, "  %s: %s;\n", name, rule.Properties[name].Raw)
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = fmt.Fprint(w, "}\n")
	total += n
	return total, err
}
