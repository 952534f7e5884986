package regex

import (
	"errors"
	"regexp"
	"regexp/syntax"
	"slices"
	"strings"
	"unicode"
)

// posixFlags returns the parser flags for a POSIX pattern.
// Without newline sensitivity, anchors only match at the ends of the subject
// and the dot and negated classes match a newline.
func posixFlags(icase, newline bool) syntax.Flags {
	f := syntax.POSIX
	if icase {
		f |= syntax.FoldCase
	}
	if !newline {
		f |= syntax.OneLine | syntax.DotNL | syntax.ClassNL
	}
	return f
}

// parsePOSIX parses an extended regular expression.
func parsePOSIX(pattern string, icase, newline bool) (*syntax.Regexp, error) {
	re, err := syntax.Parse(pattern, posixFlags(icase, newline))
	if err != nil {
		return nil, syntaxCompileError(pattern, err)
	}
	return re, nil
}

// parseGNU parses an extended regular expression with the GNU escapes already rewritten.
// Perl syntax is enabled for \b and \B only; the constructs it would otherwise add are rejected.
func parseGNU(pattern string, icase, newline bool) (*syntax.Regexp, error) {
	if err := rejectPerlSyntax(pattern); err != nil {
		return nil, err
	}

	re, err := syntax.Parse(pattern, posixFlags(icase, newline)|syntax.PerlX)
	if err != nil {
		return nil, syntaxCompileError(pattern, err)
	}
	return re, nil
}

func syntaxCompileError(pattern string, err error) error {
	var se *syntax.Error
	if errors.As(err, &se) {
		offset := -1
		if se.Expr != "" {
			offset = strings.Index(pattern, se.Expr)
		}

		return &CompileError{
			Offset:  offset,
			Message: se.Code.String() + ": `" + se.Expr + "`",
		}
	}

	msg := err.Error()
	if m, ok := strings.CutPrefix(msg, "error parsing regexp: "); ok {
		msg = m
	}

	return &CompileError{Offset: -1, Message: msg}
}

// gnuEscapes maps the GNU escapes to the extended syntax. The word boundaries \< and \> become \b.
// Letters that the regexp package reads as Perl escapes stand for themselves.
var gnuEscapes = map[byte]string{
	'w':  `[[:alnum:]_]`,
	'W':  `[^[:alnum:]_]`,
	's':  `[[:space:]]`,
	'S':  `[^[:space:]]`,
	'b':  `\b`,
	'B':  `\B`,
	'<':  `\b`,
	'>':  `\b`,
	'`':  `\A`,
	'\'': `\z`,
	'd':  "d",
	'D':  "D",
	'A':  "A",
	'z':  "z",
	'Q':  "Q",
	'E':  "E",
}

// translateGNU rewrites the GNU escapes of an extended regular expression.
// Backslashes are literal inside bracket expressions.
func translateGNU(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s) + 8)

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			i++
			if i >= len(s) {
				return "", &CompileError{Offset: i - 1, Message: "trailing backslash (\\)"}
			}

			if e, ok := gnuEscapes[s[i]]; ok {
				b.WriteString(e)
			} else {
				b.WriteByte('\\')
				b.WriteByte(s[i])
			}
		case '[':
			end, err := copyBracket(&b, s, i)
			if err != nil {
				return "", err
			}
			i = end
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}

var intervalRE = regexp.MustCompile(`^\{[0-9]+(,[0-9]*)?\}`)

// rejectPerlSyntax fails on a '?' that follows a repetition or an opening parenthesis.
// Without Perl syntax both are errors; with it they would select a lazy repetition or a group flag.
func rejectPerlSyntax(s string) error {
	var rep, open bool

	for i := 0; i < len(s); i++ {
		c := s[i]

		if c == '?' && rep {
			return &CompileError{Offset: i, Message: "invalid nested repetition operator: `" + s[i-1:i+1] + "`"}
		}
		if c == '?' && open {
			return &CompileError{Offset: i, Message: "missing argument to repetition operator: `?`"}
		}

		rep, open = false, false

		switch c {
		case '\\':
			i++
		case '[':
			i = classEnd(s, i)
		case '*', '+', '?':
			rep = true
		case '{':
			if loc := intervalRE.FindStringIndex(s[i:]); loc != nil {
				i += loc[1] - 1
				rep = true
			}
		case '(':
			open = true
		}
	}

	return nil
}

// classEnd returns the index of the bracket closing the class that starts at s[i].
func classEnd(s string, i int) int {
	i++
	if i < len(s) && s[i] == '^' {
		i++
	}

	for ; i < len(s); i++ {
		switch {
		case s[i] == '\\':
			i++
		case s[i] == '[' && i+1 < len(s) && s[i+1] == ':':
			if end := strings.Index(s[i+2:], ":]"); end >= 0 {
				i += end + 3
			}
		case s[i] == ']':
			return i
		}
	}

	return len(s)
}

// translateBRE rewrites a POSIX basic regular expression into the extended syntax.
// If gnu is set, the GNU operators \| \+ and \? and the GNU escapes are recognized.
func translateBRE(s string, gnu bool) (string, error) {
	var b strings.Builder
	b.Grow(len(s) + 8)

	// atStart is true where '*' is literal and '^' is an anchor.
	atStart := true

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch c {
		case '\\':
			i++
			if i >= len(s) {
				return "", &CompileError{Offset: i - 1, Message: "trailing backslash (\\)"}
			}

			d := s[i]
			switch {
			case d == '(' || d == ')' || d == '{' || d == '}':
				b.WriteByte(d)
				atStart = d == '('
				continue
			case gnu && d == '|':
				b.WriteByte('|')
				atStart = true
				continue
			case gnu && (d == '+' || d == '?'):
				if atStart {
					b.WriteByte('\\')
				}
				b.WriteByte(d)
			case gnu && gnuEscapes[d] != "":
				b.WriteString(gnuEscapes[d])
			default:
				b.WriteByte('\\')
				b.WriteByte(d)
			}
		case '(', ')', '{', '}', '|', '+', '?':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '*':
			if atStart {
				b.WriteByte('\\')
			}
			b.WriteByte('*')
		case '^':
			if atStart {
				b.WriteByte('^')
				continue // a '*' after a leading '^' is still literal
			}
			b.WriteString(`\^`)
		case '$':
			if breAtEnd(s, i+1, gnu) {
				b.WriteByte('$')
			} else {
				b.WriteString(`\$`)
			}
		case '[':
			end, err := copyBracket(&b, s, i)
			if err != nil {
				return "", err
			}
			i = end
		default:
			b.WriteByte(c)
		}

		atStart = false
	}

	return b.String(), nil
}

// breAtEnd reports whether position i ends the expression or a group.
func breAtEnd(s string, i int, gnu bool) bool {
	if i == len(s) {
		return true
	}
	if i+1 < len(s) && s[i] == '\\' {
		return s[i+1] == ')' || (gnu && s[i+1] == '|')
	}
	return false
}

// copyBracket copies the bracket expression starting at s[i] and returns the index of its closing bracket.
// Backslashes are literal inside POSIX bracket expressions.
func copyBracket(b *strings.Builder, s string, i int) (int, error) {
	start := i

	b.WriteByte('[')
	i++

	if i < len(s) && s[i] == '^' {
		b.WriteByte('^')
		i++
	}
	if i < len(s) && s[i] == ']' { // a leading ']' is literal
		b.WriteString(`\]`)
		i++
	}

	for ; i < len(s); i++ {
		c := s[i]

		switch {
		case c == ']':
			b.WriteByte(']')
			return i, nil
		case c == '[' && i+1 < len(s) && (s[i+1] == ':' || s[i+1] == '.' || s[i+1] == '='):
			end := strings.Index(s[i+2:], string(s[i+1])+"]")
			if end < 0 {
				return 0, &CompileError{Offset: i, Message: "missing closing ]: `" + s[start:] + "`"}
			}

			end += i + 2 + 2
			b.WriteString(s[i:end])
			i = end - 1
		case c == '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(c)
		}
	}

	return 0, &CompileError{Offset: start, Message: "missing closing ]: `" + s[start:] + "`"}
}

// rewriteTree returns a copy of re in which every node with operator op is replaced by a no-match node.
func rewriteTree(re *syntax.Regexp, ops ...syntax.Op) *syntax.Regexp {
	c := *re

	for _, op := range ops {
		if re.Op == op {
			c = syntax.Regexp{Op: syntax.OpNoMatch, Flags: re.Flags}
			return &c
		}
	}

	if len(re.Sub) > 0 {
		c.Sub = make([]*syntax.Regexp, len(re.Sub))
		for i, sub := range re.Sub {
			c.Sub[i] = rewriteTree(sub, ops...)
		}
		c.Sub0 = [1]*syntax.Regexp{}
	}

	return &c
}

// eolSentinel is appended to subjects searched with the not-EOL flag. The programs for
// those searches come from excludeRune and never consume it, so neither '$' nor the end
// of a line can match at the real end of the subject.
const eolSentinel = '\U0010FFFF'

// excludeRune returns a copy of re in which no node matches the rune r.
func excludeRune(re *syntax.Regexp, r rune) *syntax.Regexp {
	c := *re

	switch re.Op {
	case syntax.OpAnyChar:
		c.Op = syntax.OpCharClass
		c.Rune = subtractRune([]rune{0, unicode.MaxRune}, r)
	case syntax.OpAnyCharNotNL:
		c.Op = syntax.OpCharClass
		c.Rune = subtractRune([]rune{0, '\n' - 1, '\n' + 1, unicode.MaxRune}, r)
	case syntax.OpCharClass:
		c.Rune = subtractRune(re.Rune, r)
	case syntax.OpLiteral:
		if slices.Contains(re.Rune, r) {
			return &syntax.Regexp{Op: syntax.OpNoMatch, Flags: re.Flags}
		}
	}

	if len(re.Sub) > 0 {
		c.Sub = make([]*syntax.Regexp, len(re.Sub))
		for i, sub := range re.Sub {
			c.Sub[i] = excludeRune(sub, r)
		}
		c.Sub0 = [1]*syntax.Regexp{}
	}

	return &c
}

// subtractRune removes r from a list of rune ranges.
func subtractRune(ranges []rune, r rune) []rune {
	out := make([]rune, 0, len(ranges)+2)

	for i := 0; i+1 < len(ranges); i += 2 {
		lo, hi := ranges[i], ranges[i+1]

		if r < lo || r > hi {
			out = append(out, lo, hi)
			continue
		}
		if lo < r {
			out = append(out, lo, r-1)
		}
		if r < hi {
			out = append(out, r+1, hi)
		}
	}

	return out
}
