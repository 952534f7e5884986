package syntax

import (
	"github.com/magnetde/starlark-rex/regex"
	"github.com/magnetde/starlark-rex/util"
)

// TemplateRule is one node of a compiled replacement template.
type TemplateRule struct {
	Literal string
	Index   int // is -1 if template rule is literal
}

// IsLiteral reports whether the rule is a literal run.
func (t *TemplateRule) IsLiteral() bool {
	return t.Index < 0
}

// Submatches is the view of one match a template is expanded with.
type Submatches interface {
	// Group returns the text of group i; false if the group did not participate in the match.
	Group(i int) (string, bool)
}

// Template is a compiled replacement template.
type Template struct {
	rules []TemplateRule
}

// ParseTemplate compiles a replacement template for a pattern with ncap capture groups.
// "%d" references group d, "%c" for any other character c is the literal c,
// so "%%" is a literal percent sign. A trailing lone '%' is dropped.
// If the pattern has no groups, "%1" references the whole match.
func ParseTemplate(ncap int, template string) (*Template, error) {
	var rules []TemplateRule

	addLiteral := func(s string) {
		if s == "" {
			return
		}

		if len(rules) > 0 {
			lastRule := &rules[len(rules)-1]

			if lastRule.IsLiteral() { // if last rule is also a literal, then concat the strings
				lastRule.Literal += s
				return
			}
		}

		rules = append(rules, TemplateRule{Literal: s, Index: -1})
	}

	start := 0

	for i := 0; i < len(template); i++ {
		if template[i] != '%' {
			continue
		}

		addLiteral(template[start:i])

		i++
		start = i + 1

		if i == len(template) {
			break
		}

		c := template[i]
		if !isDigitByte(c) {
			addLiteral(template[i : i+1])
			continue
		}

		index := digitByte(c)
		if index == 1 && ncap == 0 {
			index = 0
		} else if index > ncap {
			return nil, regex.ErrInvalidCaptureIndex.New(index)
		}

		rules = append(rules, TemplateRule{Index: index})
	}

	if start < len(template) {
		addLiteral(template[start:])
	}

	return &Template{rules: rules}, nil
}

// Rules returns the compiled rules.
func (t *Template) Rules() []TemplateRule {
	return t.rules
}

// IsLiteral reports whether the template contains no group references.
func (t *Template) IsLiteral() bool {
	for i := range t.rules {
		if !t.rules[i].IsLiteral() {
			return false
		}
	}
	return true
}

// Expand appends the template, expanded with the groups of m, to dst.
// Groups that did not participate in the match expand to nothing.
func (t *Template) Expand(dst *util.Buffer, m Submatches) error {
	for i := range t.rules {
		r := &t.rules[i]

		if r.IsLiteral() {
			if err := dst.AppendString(r.Literal); err != nil {
				return err
			}
			continue
		}

		if s, ok := m.Group(r.Index); ok {
			if err := dst.AppendString(s); err != nil {
				return err
			}
		}
	}

	return nil
}

func isDigitByte(c byte) bool {
	return '0' <= c && c <= '9'
}

func digitByte(c byte) int {
	return int(c - '0')
}
