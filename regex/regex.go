package regex

import (
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// Engine compiles patterns for one regular expression dialect.
type Engine interface {
	Name() string
	Compile(pattern string, flags int, opts Options) (Regex, error)

	DefaultFlags() int            // compile flags used when the caller passes none
	CompileFlags() map[string]int // named compile flags
	ExecFlags() map[string]int    // named execution flags
	FlagLetters() map[byte]int    // letters accepted in a flag string; nil if unsupported
}

// Regex is a compiled pattern of a specific engine.
type Regex interface {
	SubexpCount() int
	SubexpNames() []string // names[0] is the whole match; unnamed groups are ""
	BuildInput(s string) Input
}

// Input is a subject prepared for repeated execution of one Regex.
type Input interface {
	// Exec searches for the leftmost match starting at byte offset pos.
	// The result holds 2*(N+1) offsets and may reuse dst. A nil result means no match.
	Exec(pos int, flags int, dst []int) ([]int, error)
}

// Retrier is implemented by inputs that can execute a non-empty match anchored at pos.
// Drivers use it after an empty match instead of skipping a character.
type Retrier interface {
	Retry(pos int, flags int, dst []int) ([]int, error)
}

// Options configure compilation. The zero value selects the engine defaults.
// Options replace the locale tables and the syntax selection that would otherwise be global state.
type Options struct {
	Locale       string        // recorded only; case folding is always Unicode simple folding
	Syntax       string        // GNU: syntax name, e.g. "POSIX_EXTENDED" or "GREP"
	Translate    *[256]byte    // GNU: byte translation applied to pattern and subject
	MatchTimeout time.Duration // PCRE: abort a single execution after this duration
}

// Engines returns all available engines.
func Engines() []Engine {
	return []Engine{PCRE, POSIX, GNU}
}

// Lookup returns the engine with the given name.
func Lookup(name string) (Engine, bool) {
	for _, e := range Engines() {
		if e.Name() == strings.ToLower(name) {
			return e, true
		}
	}

	return nil, false
}

// Pattern is a compiled pattern handle.
// After Free, every operation fails with ErrUseAfterFree.
type Pattern struct {
	engine Engine
	re     atomic.Pointer[Regex]
	source string
	flags  int
	ncap   int
	names  []string
}

// Compile compiles pattern with engine e.
func Compile(e Engine, pattern string, flags int, opts Options) (*Pattern, error) {
	re, err := e.Compile(pattern, flags, opts)
	if err != nil {
		return nil, err
	}

	p := &Pattern{
		engine: e,
		source: pattern,
		flags:  flags,
		ncap:   re.SubexpCount(),
		names:  re.SubexpNames(),
	}
	p.re.Store(&re)

	return p, nil
}

// Engine returns the engine that compiled the pattern.
func (p *Pattern) Engine() Engine { return p.engine }

// Source returns the pattern string.
func (p *Pattern) Source() string { return p.source }

// Flags returns the compile flags.
func (p *Pattern) Flags() int { return p.flags }

// SubexpCount returns the number of capture groups.
func (p *Pattern) SubexpCount() int { return p.ncap }

// SubexpNames returns the group names; unnamed groups are "".
func (p *Pattern) SubexpNames() []string { return p.names }

// SubexpIndex returns the index of the named group, or -1.
func (p *Pattern) SubexpIndex(name string) int {
	if name == "" {
		return -1
	}

	for i, n := range p.names {
		if n == name {
			return i
		}
	}

	return -1
}

// Free releases the compiled program. Freeing twice is a no-op.
func (p *Pattern) Free() {
	p.re.Store(nil)
}

// Freed reports whether Free was called.
func (p *Pattern) Freed() bool {
	return p.re.Load() == nil
}

// Check returns ErrUseAfterFree if the pattern was freed.
func (p *Pattern) Check() error {
	if p.Freed() {
		return ErrUseAfterFree.New()
	}
	return nil
}

// Prepare prepares text for searching.
func (p *Pattern) Prepare(text string) (*Subject, error) {
	re := p.re.Load()
	if re == nil {
		return nil, ErrUseAfterFree.New()
	}

	s := &Subject{
		pattern: p,
		text:    text,
		input:   (*re).BuildInput(text),
	}

	return s, nil
}

// Subject is a text prepared for one pattern. It owns the offset storage reused by Exec.
type Subject struct {
	pattern *Pattern
	text    string
	input   Input
	ovector []int
}

// Text returns the subject text.
func (s *Subject) Text() string { return s.text }

// Pattern returns the pattern the subject was prepared for.
func (s *Subject) Pattern() *Pattern { return s.pattern }

// CanRetry reports whether the engine supports non-empty anchored retries.
func (s *Subject) CanRetry() bool {
	_, ok := s.input.(Retrier)
	return ok
}

// Exec executes the pattern at pos and stores the result in m.
// It reports false if there is no match.
func (s *Subject) Exec(pos int, flags int, m *Match) (bool, error) {
	if s.pattern.Freed() {
		return false, ErrUseAfterFree.New()
	}

	a, err := s.input.Exec(pos, flags, s.ovector)
	return s.store(a, err, m)
}

// Retry executes a non-empty match anchored at pos. It must only be called if CanRetry is true.
func (s *Subject) Retry(pos int, flags int, m *Match) (bool, error) {
	if s.pattern.Freed() {
		return false, ErrUseAfterFree.New()
	}

	a, err := s.input.(Retrier).Retry(pos, flags, s.ovector)
	return s.store(a, err, m)
}

func (s *Subject) store(a []int, err error, m *Match) (bool, error) {
	if err != nil || a == nil {
		return false, err
	}

	s.ovector = a

	m.text = s.text
	m.offsets = a[:2*(s.pattern.ncap+1)]
	return true, nil
}

// NextPos returns the offset one character after pos.
// Invalid UTF-8 bytes count as one character each.
func NextPos(text string, pos int) int {
	if pos >= len(text) {
		return pos + 1
	}

	_, size := utf8.DecodeRuneInString(text[pos:])
	return pos + size
}

// growSlice returns a slice of length n, reusing the storage of s if possible.
// All elements are set to -1.
func growSlice(s []int, n int) []int {
	if cap(s) < n {
		s = make([]int, n)
	}

	s = s[:n]
	for i := range s {
		s[i] = -1
	}
	return s
}
