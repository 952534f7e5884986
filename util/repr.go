package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// Repr returns the Starlark representation of a str or bytes value.
// Bytes values are prefixed with "b" and escape every non-ASCII byte.
func Repr(s string, isString bool) string {
	var b strings.Builder
	b.Grow(len(s) + 3)

	quote := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		quote = '"'
	}

	if !isString {
		b.WriteByte('b')
	}

	b.WriteByte(quote)

	var ch rune
	for size := 0; len(s) > 0; s = s[size:] {
		if isString {
			ch, size = utf8.DecodeRuneInString(s)
			if ch == utf8.RuneError && size == 1 {
				ch = rune(s[0])
				hexEscape(&b, ch)
				continue
			}
		} else {
			ch, size = rune(s[0]), 1
		}

		writeRune(&b, ch, quote, isString)
	}

	b.WriteByte(quote)

	return b.String()
}

// Abbrev returns the representation of s, shortened to at most n characters of s.
func Abbrev(s string, isString bool, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return Repr(s, isString)
	}

	i := 0
	for j := range s {
		if n == 0 {
			i = j
			break
		}
		n--
	}

	return Repr(s[:i], isString) + "..."
}

func writeRune(b *strings.Builder, ch rune, quote byte, isString bool) {
	switch {
	case ch == rune(quote) || ch == '\\':
		b.WriteByte('\\')
		b.WriteByte(byte(ch))
	case ch == '\t':
		b.WriteString(`\t`)
	case ch == '\n':
		b.WriteString(`\n`)
	case ch == '\r':
		b.WriteString(`\r`)
	case ch < ' ' || ch == unicode.MaxASCII:
		hexEscape(b, ch)
	case !unicode.IsPrint(ch) || (!isString && ch > unicode.MaxASCII):
		hexEscape(b, ch)
	default:
		b.WriteRune(ch)
	}
}

// hexEscape writes ch as \xhh, \uhhhh or \Uhhhhhhhh.
func hexEscape(b *strings.Builder, ch rune) {
	var digits int

	b.WriteByte('\\')
	switch {
	case ch <= 0xff:
		b.WriteByte('x')
		digits = 2
	case ch <= 0xffff:
		b.WriteByte('u')
		digits = 4
	default:
		b.WriteByte('U')
		digits = 8
	}

	for shift := 4 * (digits - 1); shift >= 0; shift -= 4 {
		b.WriteByte(hexDigits[(ch>>shift)&0xf])
	}
}
