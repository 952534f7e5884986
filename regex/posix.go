package regex

import (
	"regexp"
	"regexp/syntax"
	"strings"
	"sync"
	"unicode/utf8"
)

// POSIX compile and execution flags. The values are those of glibc.
const (
	PosixExtended = 1
	PosixICase    = 2
	PosixNewline  = 4
	PosixNoSub    = 8

	PosixNotBOL = 1
	PosixNotEOL = 2
)

const (
	posixCompileMask = PosixExtended | PosixICase | PosixNewline | PosixNoSub
	posixExecMask    = PosixNotBOL | PosixNotEOL
)

// POSIX is the POSIX regcomp/regexec compatible engine, backed by the regexp package
// in leftmost-longest mode. Basic regular expressions are translated to the extended syntax.
var POSIX Engine = posixEngine{}

type posixEngine struct{}

func (posixEngine) Name() string              { return "posix" }
func (posixEngine) DefaultFlags() int         { return PosixExtended }
func (posixEngine) FlagLetters() map[byte]int { return nil }

func (posixEngine) CompileFlags() map[string]int {
	return map[string]int{
		"EXTENDED": PosixExtended,
		"ICASE":    PosixICase,
		"NEWLINE":  PosixNewline,
		"NOSUB":    PosixNoSub,
	}
}

func (posixEngine) ExecFlags() map[string]int {
	return map[string]int{
		"NOTBOL": PosixNotBOL,
		"NOTEOL": PosixNotEOL,
	}
}

func (e posixEngine) Compile(pattern string, flags int, _ Options) (Regex, error) {
	if bad := flags &^ posixCompileMask; bad != 0 {
		return nil, ErrUnsupportedFlag.New(e.Name(), bad)
	}

	src := pattern
	if flags&PosixExtended == 0 {
		var err error
		if src, err = translateBRE(pattern, false); err != nil {
			return nil, err
		}
	}

	tree, err := parsePOSIX(src, flags&PosixICase != 0, flags&PosixNewline != 0)
	if err != nil {
		return nil, err
	}

	r := &posixRegex{
		ncap:  tree.MaxCap(),
		nosub: flags&PosixNoSub != 0,
	}

	if r.normal, err = newPosixProgram(tree); err != nil {
		return nil, syntaxCompileError(src, err)
	}

	r.noEOL = sync.OnceValues(func() (*posixProgram, error) {
		return newPosixProgram(excludeRune(tree, eolSentinel))
	})
	r.noEnd = sync.OnceValues(func() (*posixProgram, error) {
		return newPosixProgram(rewriteTree(tree, syntax.OpEndText))
	})

	return r, nil
}

// posixProgram holds a pattern in two forms: plain, for searches from the start
// of the subject, and prefixed with one arbitrary character, for searches that
// need the character before the start position as context.
type posixProgram struct {
	plain   *regexp.Regexp
	context *regexp.Regexp
}

func newPosixProgram(tree *syntax.Regexp) (*posixProgram, error) {
	s := tree.String()

	plain, err := regexp.Compile(s)
	if err != nil {
		return nil, err
	}

	context, err := regexp.Compile(`(?s:.)(?:` + s + `)`)
	if err != nil {
		return nil, err
	}

	plain.Longest()
	context.Longest()

	return &posixProgram{plain: plain, context: context}, nil
}

// find returns the leftmost-longest match in text at or after pos.
// If notBOL is set, the subject is treated as preceded by a character that is not a newline.
func (p *posixProgram) find(text string, pos int, notBOL bool) []int {
	var base int

	switch {
	case pos == 0 && !notBOL:
		return p.plain.FindStringSubmatchIndex(text)
	case pos == 0:
		text = "\x00" + text
		base = -1
	default:
		_, size := utf8.DecodeLastRuneInString(text[:pos])
		base = pos - size
		text = text[base:]
	}

	loc := p.context.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil
	}

	// skip the context character consumed by the prefix
	_, size := utf8.DecodeRuneInString(text[loc[0]:])
	loc[0] += size

	for k, v := range loc {
		if v >= 0 {
			loc[k] = v + base
		}
	}

	return loc
}

type posixRegex struct {
	normal *posixProgram
	noEOL  func() (*posixProgram, error) // never consumes eolSentinel
	noEnd  func() (*posixProgram, error) // '$' never matches at the end of the subject
	ncap   int
	nosub  bool
}

type posixInput struct {
	re     *posixRegex
	text   string
	padded string // text followed by eolSentinel
}

var (
	_ Regex = (*posixRegex)(nil)
	_ Input = (*posixInput)(nil)
)

func (r *posixRegex) SubexpCount() int {
	if r.nosub {
		return 0
	}
	return r.ncap
}

func (r *posixRegex) SubexpNames() []string {
	return make([]string, r.SubexpCount()+1)
}

func (r *posixRegex) BuildInput(s string) Input {
	return &posixInput{re: r, text: s}
}

func (i *posixInput) Exec(pos int, flags int, dst []int) ([]int, error) {
	if bad := flags &^ posixExecMask; bad != 0 {
		return nil, ErrUnsupportedFlag.New("posix", bad)
	}
	if pos > len(i.text) {
		return nil, nil
	}

	prog := i.re.normal
	text := i.text

	if flags&PosixNotEOL != 0 {
		var err error

		// a subject that contains the sentinel falls back to a program
		// that only drops '$' outside of newline mode
		if strings.ContainsRune(i.text, eolSentinel) {
			prog, err = i.re.noEnd()
		} else {
			if i.padded == "" {
				i.padded = i.text + string(eolSentinel)
			}
			prog, err = i.re.noEOL()
			text = i.padded
		}

		if err != nil {
			return nil, &EngineError{Engine: "posix", Code: CodeInternal, Message: err.Error()}
		}
	}

	loc := prog.find(text, pos, flags&PosixNotBOL != 0)
	if loc == nil || loc[1] > len(i.text) {
		return nil, nil
	}

	return i.store(loc, dst), nil
}

func (i *posixInput) store(loc []int, dst []int) []int {
	n := i.re.SubexpCount()
	a := growSlice(dst, 2*(n+1))

	for k := 0; k < len(a) && k < len(loc); k += 2 {
		if loc[k] >= 0 && loc[k+1] >= 0 {
			a[k] = loc[k]
			a[k+1] = loc[k+1]
		}
	}

	return a
}
