package regex

import (
	"strconv"
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
)

// PCRE compile and execution flags. The values are those of libpcre.
const (
	PCRECaseless  = 0x0001
	PCREMultiline = 0x0002
	PCREDotAll    = 0x0004
	PCREExtended  = 0x0008
	PCREAnchored  = 0x0010
	PCRENotBOL    = 0x0080
	PCRENotEmpty  = 0x0400
	PCREUTF8      = 0x0800
)

const (
	pcreCompileMask = PCRECaseless | PCREMultiline | PCREDotAll | PCREExtended | PCREAnchored | PCREUTF8
	pcreExecMask    = PCREAnchored | PCRENotBOL | PCRENotEmpty
)

// PCRE is the Perl compatible engine, backed by regexp2.
// It supports non-empty anchored retries.
var PCRE Engine = pcreEngine{}

type pcreEngine struct{}

func (pcreEngine) Name() string      { return "pcre" }
func (pcreEngine) DefaultFlags() int { return 0 }

func (pcreEngine) CompileFlags() map[string]int {
	return map[string]int{
		"CASELESS":  PCRECaseless,
		"MULTILINE": PCREMultiline,
		"DOTALL":    PCREDotAll,
		"EXTENDED":  PCREExtended,
		"ANCHORED":  PCREAnchored,
		"UTF8":      PCREUTF8,
	}
}

func (pcreEngine) ExecFlags() map[string]int {
	return map[string]int{
		"ANCHORED": PCREAnchored,
		"NOTBOL":   PCRENotBOL,
		"NOTEMPTY": PCRENotEmpty,
	}
}

func (pcreEngine) FlagLetters() map[byte]int {
	return map[byte]int{
		'i': PCRECaseless,
		'm': PCREMultiline,
		's': PCREDotAll,
		'x': PCREExtended,
	}
}

func (e pcreEngine) Compile(pattern string, flags int, opts Options) (Regex, error) {
	if bad := flags &^ pcreCompileMask; bad != 0 {
		return nil, ErrUnsupportedFlag.New(e.Name(), bad)
	}

	options := regexp2.None

	if flags&PCRECaseless != 0 {
		options |= regexp2.IgnoreCase
	}
	if flags&PCREMultiline != 0 {
		options |= regexp2.Multiline
	}
	if flags&PCREDotAll != 0 {
		options |= regexp2.Singleline
	}
	if flags&PCREExtended != 0 {
		options |= regexp2.IgnorePatternWhitespace
	}

	r := &pcreRegex{
		source:  pattern,
		options: options,
		opts:    opts,
	}

	src := pattern
	if flags&PCREAnchored != 0 {
		src = r.wrap(`\G(?:`, ")")
	}

	re, err := r.compile(src)
	if err != nil {
		return nil, pcreCompileError(err)
	}

	r.re = re

	nums := re.GetGroupNumbers()
	r.groups = nums[1:] // group 0 is always first

	names := make([]string, len(nums))
	for i, n := range nums {
		if i == 0 {
			continue
		}

		name := re.GroupNameFromNumber(n)
		if _, err := strconv.Atoi(name); err != nil { // unnamed groups are named by their number
			names[i] = name
		}
	}
	r.names = names

	r.anchored = sync.OnceValues(func() (*regexp2.Regexp, error) {
		return r.compile(r.wrap(`\G(?:`, ")"))
	})
	r.nonEmpty = sync.OnceValues(func() (*regexp2.Regexp, error) {
		return r.compile(r.wrap(`\G(?:`, `)(?!\G)`))
	})

	return r, nil
}

func pcreCompileError(err error) error {
	msg := err.Error()
	if m, ok := strings.CutPrefix(msg, "error parsing regexp: "); ok {
		msg = m
	}

	return &CompileError{Offset: -1, Message: msg}
}

type pcreRegex struct {
	re      *regexp2.Regexp
	source  string
	options regexp2.RegexOptions
	opts    Options
	groups  []int // regexp2 group numbers of groups 1..N
	names   []string

	// derived programs, compiled on first use
	anchored func() (*regexp2.Regexp, error)
	nonEmpty func() (*regexp2.Regexp, error)
}

type pcreInput struct {
	re       *pcreRegex
	text     string
	runes    *runeText
	sentinel []rune // the subject behind one extra character; used for NOTBOL
}

var (
	_ Regex   = (*pcreRegex)(nil)
	_ Input   = (*pcreInput)(nil)
	_ Retrier = (*pcreInput)(nil)
)

// wrap surrounds the pattern. In extended mode, a comment at the end of the
// pattern must not swallow the suffix.
func (r *pcreRegex) wrap(prefix, suffix string) string {
	if r.options&regexp2.IgnorePatternWhitespace != 0 {
		return prefix + r.source + "\n" + suffix
	}
	return prefix + r.source + suffix
}

func (r *pcreRegex) compile(src string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(src, r.options)
	if err != nil {
		return nil, err
	}

	if r.opts.MatchTimeout > 0 {
		re.MatchTimeout = r.opts.MatchTimeout
	}

	return re, nil
}

func (r *pcreRegex) SubexpCount() int {
	return len(r.groups)
}

func (r *pcreRegex) SubexpNames() []string {
	return r.names
}

func (r *pcreRegex) BuildInput(s string) Input {
	return &pcreInput{
		re:    r,
		text:  s,
		runes: newRuneText(s),
	}
}

func (i *pcreInput) Exec(pos int, flags int, dst []int) ([]int, error) {
	if bad := flags &^ pcreExecMask; bad != 0 {
		return nil, ErrUnsupportedFlag.New("pcre", bad)
	}

	re := i.re.re
	if flags&PCREAnchored != 0 {
		var err error
		if re, err = i.re.anchored(); err != nil {
			return nil, &EngineError{Engine: "pcre", Code: CodeInternal, Message: err.Error()}
		}
	}

	notbol := flags&PCRENotBOL != 0

	if flags&PCRENotEmpty != 0 {
		return i.execNonEmpty(re, pos, notbol, flags&PCREAnchored != 0, dst)
	}

	return i.find(re, pos, notbol, dst)
}

func (i *pcreInput) Retry(pos int, flags int, dst []int) ([]int, error) {
	re, err := i.re.nonEmpty()
	if err != nil {
		return nil, &EngineError{Engine: "pcre", Code: CodeInternal, Message: err.Error()}
	}

	return i.find(re, pos, flags&PCRENotBOL != 0, dst)
}

// execNonEmpty finds the leftmost non-empty match. An empty match at some position
// is retried there as a non-empty anchored match before the search moves on.
func (i *pcreInput) execNonEmpty(re *regexp2.Regexp, pos int, notbol, anchored bool, dst []int) ([]int, error) {
	for pos <= len(i.text) {
		a, err := i.find(re, pos, notbol, dst)
		if err != nil || a == nil {
			return nil, err
		}
		if a[1] > a[0] {
			return a, nil
		}

		start := a[0]

		a, err = i.Retry(start, boolFlag(notbol, PCRENotBOL), a)
		if err != nil || a != nil || anchored {
			return a, err
		}

		pos = NextPos(i.text, start)
	}

	return nil, nil
}

func boolFlag(b bool, flag int) int {
	if b {
		return flag
	}
	return 0
}

func (i *pcreInput) find(re *regexp2.Regexp, pos int, notbol bool, dst []int) ([]int, error) {
	if pos > len(i.text) {
		return nil, nil
	}

	chars := i.runes.chars
	start := i.runes.toRune(pos)
	shift := 0

	if notbol && start == 0 {
		if i.sentinel == nil {
			i.sentinel = append([]rune{0}, chars...)
		}

		chars = i.sentinel
		start = 1
		shift = 1
	}

	m, err := re.FindRunesMatchStartingAt(chars, start)
	if err != nil {
		return nil, pcreEngineError(err)
	}
	if m == nil {
		return nil, nil
	}

	n := len(i.re.groups)
	a := growSlice(dst, 2*(n+1))

	for k := 0; k <= n; k++ {
		var g *regexp2.Group
		if k == 0 {
			g = &m.Group
		} else {
			g = m.GroupByNumber(i.re.groups[k-1])
		}

		if g == nil || len(g.Captures) == 0 {
			continue
		}

		// a capture inside a lookbehind may reach into the sentinel
		a[2*k] = i.runes.toByte(max(g.Index-shift, 0))
		a[2*k+1] = i.runes.toByte(max(g.Index+g.Length-shift, 0))
	}

	return a, nil
}

func pcreEngineError(err error) error {
	code := CodeInternal
	if strings.Contains(err.Error(), "timeout") {
		code = CodeMatchLimit
	}

	return &EngineError{Engine: "pcre", Code: code, Message: err.Error()}
}
