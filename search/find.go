// Package search implements the matching operations on top of a compiled pattern:
// single searches, match streams, splitting and global substitution.
// The same code serves every engine.
package search

import (
	"github.com/magnetde/starlark-rex/regex"
)

// Capture is the text of one capture group.
type Capture struct {
	Text  string
	Valid bool // false if the group did not participate in the match
}

// Find searches text for the leftmost match starting at byte offset init.
// A nil match without error means there is no match.
// If init exceeds the length of the text, the engine is not invoked.
func Find(p *regex.Pattern, text string, init int, flags int) (*regex.Match, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}
	if init < 0 {
		init = 0
	}
	if init > len(text) {
		return nil, nil
	}

	subj, err := p.Prepare(text)
	if err != nil {
		return nil, err
	}

	var m regex.Match

	ok, err := subj.Exec(init, flags, &m)
	if err != nil || !ok {
		return nil, err
	}

	return &m, nil
}

// MatchCaptures returns the captures of m as returned by a match:
// the groups 1..N, or the whole match if the pattern has no groups.
func MatchCaptures(m *regex.Match) []Capture {
	if m.NumGroups() == 0 {
		s, _ := m.Group(0)
		return []Capture{{Text: s, Valid: true}}
	}

	return Captures(m)
}

// Captures returns the groups 1..N of m.
func Captures(m *regex.Match) []Capture {
	caps := make([]Capture, m.NumGroups())

	for i := range caps {
		s, ok := m.Group(i + 1)
		caps[i] = Capture{Text: s, Valid: ok}
	}

	return caps
}

// PlainFind searches text for the literal string pattern starting at byte offset init.
// If ci is true, ASCII letters are compared case-insensitively.
// It returns the bounds of the first occurrence, or ok == false.
func PlainFind(text, pattern string, init int, ci bool) (start, end int, ok bool) {
	if init < 0 {
		init = 0
	}

	for from := init; from+len(pattern) <= len(text); from++ {
		if equalBytes(text[from:from+len(pattern)], pattern, ci) {
			return from, from + len(pattern), true
		}
	}

	return -1, -1, false
}

func equalBytes(a, b string, ci bool) bool {
	if !ci {
		return a == b
	}

	for i := 0; i < len(a); i++ {
		if toUpper(a[i]) != toUpper(b[i]) {
			return false
		}
	}

	return true
}

func toUpper(c byte) byte {
	if 'a' <= c && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
