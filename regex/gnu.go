package regex

import (
	"bytes"
	"regexp/syntax"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/coregx/coregex/meta"
)

// GNU compile and execution flags.
const (
	GNUICase   = 1
	GNUNewline = 2

	GNUNotBOL = 1
	GNUNotEOL = 2
)

const (
	gnuCompileMask = GNUICase | GNUNewline
	gnuExecMask    = GNUNotBOL | GNUNotEOL
)

// DefaultGNUSyntax is the syntax used when Options.Syntax is empty.
const DefaultGNUSyntax = "POSIX_EXTENDED"

// gnuSyntaxes maps the supported syntax names to whether they are basic (true) or extended.
var gnuSyntaxes = map[string]bool{
	"AWK":                    false,
	"GNU_AWK":                false,
	"POSIX_AWK":              false,
	"EGREP":                  false,
	"POSIX_EGREP":            false,
	"POSIX_EXTENDED":         false,
	"POSIX_MINIMAL_EXTENDED": false,
	"ED":                     true,
	"EMACS":                  true,
	"GREP":                   true,
	"POSIX_BASIC":            true,
	"POSIX_MINIMAL_BASIC":    true,
	"SED":                    true,
}

// GNU is the GNU regex compatible engine, backed by the coregex meta engine
// in leftmost-longest mode.
var GNU Engine = gnuEngine{}

type gnuEngine struct{}

func (gnuEngine) Name() string              { return "gnu" }
func (gnuEngine) DefaultFlags() int         { return 0 }
func (gnuEngine) FlagLetters() map[byte]int { return nil }

func (gnuEngine) CompileFlags() map[string]int {
	return map[string]int{
		"ICASE":   GNUICase,
		"NEWLINE": GNUNewline,
	}
}

func (gnuEngine) ExecFlags() map[string]int {
	return map[string]int{
		"not_bol": GNUNotBOL,
		"not_eol": GNUNotEOL,
	}
}

// Syntaxes returns the names of the supported GNU syntaxes.
func Syntaxes() []string {
	names := make([]string, 0, len(gnuSyntaxes))
	for name := range gnuSyntaxes {
		names = append(names, name)
	}
	return names
}

func (e gnuEngine) Compile(pattern string, flags int, opts Options) (Regex, error) {
	if bad := flags &^ gnuCompileMask; bad != 0 {
		return nil, ErrUnsupportedFlag.New(e.Name(), bad)
	}

	name := strings.ToUpper(opts.Syntax)
	if name == "" {
		name = DefaultGNUSyntax
	}

	basic, ok := gnuSyntaxes[name]
	if !ok {
		return nil, ErrUnknownSyntax.New(e.Name(), opts.Syntax)
	}

	src := translate(pattern, opts.Translate)

	var err error
	if basic {
		src, err = translateBRE(src, true)
	} else {
		src, err = translateGNU(src)
	}
	if err != nil {
		return nil, err
	}

	tree, err := parseGNU(src, flags&GNUICase != 0, flags&GNUNewline != 0)
	if err != nil {
		return nil, err
	}

	r := &gnuRegex{
		ncap:      tree.MaxCap(),
		names:     tree.CapNames(),
		translate: opts.Translate,
	}

	if r.normal, err = newGNUProgram(tree); err != nil {
		return nil, &CompileError{Offset: -1, Message: err.Error()}
	}

	r.noEOL = sync.OnceValues(func() (*gnuProgram, error) {
		return newGNUProgram(excludeRune(tree, eolSentinel))
	})
	r.noEnd = sync.OnceValues(func() (*gnuProgram, error) {
		return newGNUProgram(rewriteTree(tree, syntax.OpEndText))
	})

	return r, nil
}

// gnuProgram is a compiled GNU pattern.
// The meta engine finds the match; a regexp program takes over where the meta
// engine falls short. The meta engine reports an empty match at the end of a
// non-empty haystack without looking at the preceding text, and it reports a
// group under a repetition as empty at the end of the match instead of holding
// the last iteration.
type gnuProgram struct {
	engine   *meta.Engine
	repeated bool // a capture group is under a repetition
	std      func() (*posixProgram, error)
}

func newGNUProgram(tree *syntax.Regexp) (*gnuProgram, error) {
	eng, err := meta.CompileRegexp(tree, meta.DefaultConfig())
	if err != nil {
		return nil, err
	}

	eng.SetLongest(true)

	p := &gnuProgram{
		engine:   eng,
		repeated: repeatedCapture(tree, false),
		std: sync.OnceValues(func() (*posixProgram, error) {
			return newPosixProgram(tree)
		}),
	}

	return p, nil
}

// repeatedCapture reports whether re has a capture group inside a repetition.
func repeatedCapture(re *syntax.Regexp, repeated bool) bool {
	switch re.Op {
	case syntax.OpCapture:
		if repeated {
			return true
		}
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest, syntax.OpRepeat:
		repeated = true
	}

	for _, sub := range re.Sub {
		if repeatedCapture(sub, repeated) {
			return true
		}
	}
	return false
}

// search returns the leftmost-longest match in haystack at or after at.
func (p *gnuProgram) search(haystack []byte, at int, ncap int) ([]int, error) {
	if at > 0 && at == len(haystack) {
		return p.find(haystack, at)
	}

	m := p.engine.FindSubmatchAt(haystack, at)
	if m == nil {
		return nil, nil
	}

	loc := growSlice(nil, 2*(ncap+1))
	n := m.NumCaptures()

	for k := 0; k <= ncap && k < n; k++ {
		idx := m.GroupIndex(k)
		if len(idx) < 2 || idx[0] < 0 || idx[1] < 0 {
			continue
		}

		loc[2*k] = idx[0]
		loc[2*k+1] = idx[1]
	}

	if ncap > 0 && p.repeated {
		std, err := p.find(haystack, loc[0])
		if err != nil {
			return nil, err
		}
		if std != nil && std[0] == loc[0] {
			return std, nil
		}
	}

	return loc, nil
}

// find runs the regexp program from at, with the character before at as context.
func (p *gnuProgram) find(haystack []byte, at int) ([]int, error) {
	std, err := p.std()
	if err != nil {
		return nil, err
	}

	if at == 0 {
		return std.plain.FindSubmatchIndex(haystack), nil
	}

	_, size := utf8.DecodeLastRune(haystack[:at])
	base := at - size

	loc := std.context.FindSubmatchIndex(haystack[base:])
	if loc == nil {
		return nil, nil
	}

	loc[0] += size // skip the context character

	for k, v := range loc {
		if v >= 0 {
			loc[k] = v + base
		}
	}

	return loc, nil
}

// translate maps every byte of s through the table.
func translate(s string, table *[256]byte) string {
	if table == nil {
		return s
	}

	b := []byte(s)
	for i, c := range b {
		b[i] = table[c]
	}
	return string(b)
}

type gnuRegex struct {
	normal    *gnuProgram
	noEOL     func() (*gnuProgram, error) // never consumes eolSentinel
	noEnd     func() (*gnuProgram, error) // '$' never matches at the end of the subject
	ncap      int
	names     []string
	translate *[256]byte
}

type gnuInput struct {
	re       *gnuRegex
	haystack []byte
	padded   [4][]byte // the haystack behind a leading character for not_bol, followed by eolSentinel for not_eol
}

var (
	_ Regex = (*gnuRegex)(nil)
	_ Input = (*gnuInput)(nil)
)

func (r *gnuRegex) SubexpCount() int {
	return r.ncap
}

func (r *gnuRegex) SubexpNames() []string {
	return r.names
}

func (r *gnuRegex) BuildInput(s string) Input {
	return &gnuInput{
		re:       r,
		haystack: []byte(translate(s, r.translate)),
	}
}

func (i *gnuInput) Exec(pos int, flags int, dst []int) ([]int, error) {
	if bad := flags &^ gnuExecMask; bad != 0 {
		return nil, ErrUnsupportedFlag.New("gnu", bad)
	}
	if pos > len(i.haystack) {
		return nil, nil
	}

	notBOL := flags&GNUNotBOL != 0 && pos == 0
	notEOL := flags&GNUNotEOL != 0

	prog := i.re.normal
	if notEOL {
		var err error

		// a subject that contains the sentinel falls back to a program
		// that only drops '$' outside of newline mode
		if bytes.ContainsRune(i.haystack, eolSentinel) {
			prog, err = i.re.noEnd()
			notEOL = false
		} else {
			prog, err = i.re.noEOL()
		}

		if err != nil {
			return nil, &EngineError{Engine: "gnu", Code: CodeInternal, Message: err.Error()}
		}
	}

	haystack, shift := i.subject(notBOL, notEOL)

	loc, err := prog.search(haystack, pos+shift, i.re.ncap)
	if err != nil {
		return nil, &EngineError{Engine: "gnu", Code: CodeInternal, Message: err.Error()}
	}
	if loc == nil || loc[1]-shift > len(i.haystack) {
		return nil, nil
	}

	a := growSlice(dst, 2*(i.re.ncap+1))
	for k := 0; k < len(a) && k < len(loc); k += 2 {
		if loc[k] >= 0 && loc[k+1] >= 0 {
			a[k] = max(loc[k]-shift, 0)
			a[k+1] = max(loc[k+1]-shift, 0)
		}
	}

	return a, nil
}

// subject returns the haystack to search and the offset of the subject in it.
// For not_bol the subject is preceded by a character that is not a newline.
func (i *gnuInput) subject(notBOL, notEOL bool) ([]byte, int) {
	if !notBOL && !notEOL {
		return i.haystack, 0
	}

	shift := 0
	if notBOL {
		shift = 1
	}

	k := shift
	if notEOL {
		k |= 2
	}

	if i.padded[k] == nil {
		b := make([]byte, 0, len(i.haystack)+1+utf8.UTFMax)
		if notBOL {
			b = append(b, 0)
		}
		b = append(b, i.haystack...)
		if notEOL {
			b = utf8.AppendRune(b, eolSentinel)
		}
		i.padded[k] = b
	}

	return i.padded[k], shift
}
