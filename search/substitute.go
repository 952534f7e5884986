package search

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/magnetde/starlark-rex/regex"
	"github.com/magnetde/starlark-rex/syntax"
	"github.com/magnetde/starlark-rex/util"
)

// ErrNoDecider is returned for a conditional substitution without a decision function.
var ErrNoDecider = errors.NewKind("conditional substitution requires a decision function")

// Limit is the maximum number of substitutions, or one of the sentinels Unlimited and Conditional.
type Limit int

const (
	// Unlimited substitutes every match.
	Unlimited Limit = -1
	// Conditional lets a Decider confirm each substitution.
	Conditional Limit = -2
)

// Replacer computes the replacement of a match.
type Replacer interface {
	// Replace appends the replacement of m to dst.
	// It returns false if the matched text should be kept; then nothing was appended.
	Replace(dst *util.Buffer, m *regex.Match) (bool, error)
}

// TemplateReplacer replaces matches with an expanded template.
type TemplateReplacer struct {
	tmpl *syntax.Template

	// literal is the whole replacement of a template without group references
	literal string
	fixed   bool
}

// NewTemplateReplacer compiles the template for the groups of p.
func NewTemplateReplacer(p *regex.Pattern, template string) (*TemplateReplacer, error) {
	tmpl, err := syntax.ParseTemplate(p.SubexpCount(), template)
	if err != nil {
		return nil, err
	}

	r := &TemplateReplacer{tmpl: tmpl}

	if tmpl.IsLiteral() {
		var b strings.Builder
		for _, rule := range tmpl.Rules() {
			b.WriteString(rule.Literal)
		}

		r.literal = b.String()
		r.fixed = true
	}

	return r, nil
}

func (r *TemplateReplacer) Replace(dst *util.Buffer, m *regex.Match) (bool, error) {
	if r.fixed {
		return true, dst.AppendString(r.literal)
	}
	return true, r.tmpl.Expand(dst, m)
}

// Table is a replacement lookup table.
type Table interface {
	// Lookup returns the value for key and whether the key exists.
	Lookup(key string) (any, bool, error)
}

// MapTable is a Table backed by a map.
type MapTable map[string]string

func (t MapTable) Lookup(key string) (any, bool, error) {
	v, ok := t[key]
	return v, ok, nil
}

// TableReplacer replaces matches with values from a table.
// The key is the first capture group, or the whole match if the pattern has no groups.
// Missing keys keep the matched text.
type TableReplacer struct {
	Table Table
}

func (r *TableReplacer) Replace(dst *util.Buffer, m *regex.Match) (bool, error) {
	key, ok := m.Group(min(m.NumGroups(), 1))
	if !ok {
		return false, nil
	}

	v, ok, err := r.Table.Lookup(key)
	if err != nil || !ok {
		return false, err
	}

	return appendValue(dst, v)
}

// FuncReplacer replaces matches with the result of a function.
// The result is interpreted by Coerce.
type FuncReplacer func(m *regex.Match) (any, error)

func (f FuncReplacer) Replace(dst *util.Buffer, m *regex.Match) (bool, error) {
	v, err := f(m)
	if err != nil {
		return false, err
	}

	return appendValue(dst, v)
}

func appendValue(dst *util.Buffer, v any) (bool, error) {
	s, ok, err := Coerce(v)
	if err != nil || !ok {
		return false, err
	}

	return true, dst.AppendString(s)
}

// Coerce converts a replacement value into its text.
// Nil and false keep the matched text (ok == false). Strings, byte slices and numbers
// are replacements. Any other value is an ErrInvalidReplacement.
func Coerce(v any) (s string, ok bool, err error) {
	switch v := v.(type) {
	case nil:
		return "", false, nil
	case bool:
		if !v {
			return "", false, nil
		}
	case string:
		return v, true, nil
	case []byte:
		return string(v), true, nil
	case int, int8, int16, int32, int64, float32, float64:
		if s, err = cast.ToStringE(v); err != nil {
			return "", false, err
		}
		return s, true, nil
	}

	return "", false, regex.ErrInvalidReplacement.New(fmt.Sprintf("%T", v))
}

// Action is the decision about a proposed substitution.
type Action int

const (
	// Accept applies the proposed replacement.
	Accept Action = iota
	// Reject keeps the matched text.
	Reject
	// Override replaces the match with Verdict.Text instead.
	Override
)

// Proposal is a substitution presented to a Decider.
type Proposal struct {
	Match    *regex.Match
	Start    int
	End      int
	Text     string // the proposed replacement; the matched text if Replaced is false
	Replaced bool
}

// Verdict is the result of a Decider.
type Verdict struct {
	Action Action
	Text   string // replacement for Override

	// Then controls the following matches: Conditional keeps asking, Unlimited substitutes
	// all remaining matches, and n >= 0 substitutes at most n more matches without asking.
	Then Limit
}

// Decider decides whether a proposed substitution is applied.
type Decider func(p Proposal) (Verdict, error)

// Substitution is the result of a global substitution.
type Substitution struct {
	Text          string
	Matches       int
	Substitutions int
}

// Gsub is a global substitution.
type Gsub struct {
	Replacer      Replacer
	Limit         Limit // a negative limit other than Conditional is Unlimited
	Decide        Decider
	Flags         int
	MaxBufferSize int // 0 means unlimited
}

// Substitute replaces at most limit matches of p in text.
func Substitute(p *regex.Pattern, text string, r Replacer, limit Limit, flags int) (*Substitution, error) {
	g := &Gsub{Replacer: r, Limit: limit, Flags: flags}
	return g.Run(p, text)
}

// SubstituteFunc replaces the matches of p in text that decide confirms.
func SubstituteFunc(p *regex.Pattern, text string, r Replacer, decide Decider, flags int) (*Substitution, error) {
	g := &Gsub{Replacer: r, Limit: Conditional, Decide: decide, Flags: flags}
	return g.Run(p, text)
}

// Run executes the substitution on text.
// On error, no partial result is returned.
func (g *Gsub) Run(p *regex.Pattern, text string) (*Substitution, error) {
	limit := g.Limit
	if limit == Conditional && g.Decide == nil {
		return nil, ErrNoDecider.New()
	}

	subj, err := p.Prepare(text)
	if err != nil {
		return nil, err
	}

	out := util.NewBuffer(g.MaxBufferSize)
	defer out.Release()

	var side *util.Buffer // the proposed replacement in conditional mode
	if limit == Conditional {
		side = util.NewBuffer(g.MaxBufferSize)
		defer side.Release()
	}

	var (
		m   regex.Match
		res Substitution
		st  int
	)

	for (limit < 0 || res.Substitutions < int(limit)) && st <= len(text) {
		ok, err := subj.Exec(st, g.Flags, &m)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		res.Matches++

		from, to := m.Span()
		if st < from {
			if err := out.AppendString(text[st:from]); err != nil {
				return nil, err
			}
			st = from
		}

		dst := out
		if limit == Conditional {
			side.Clear()
			dst = side
		}

		replaced, err := g.Replacer.Replace(dst, &m)
		if err != nil {
			return nil, err
		}
		if !replaced {
			if err := dst.AppendString(text[from:to]); err != nil {
				return nil, err
			}
		}

		if limit == Conditional {
			v, err := g.Decide(Proposal{
				Match:    &m,
				Start:    from,
				End:      to,
				Text:     side.String(),
				Replaced: replaced,
			})
			if err != nil {
				return nil, err
			}

			if replaced, err = g.apply(out, side, v, text[from:to], replaced); err != nil {
				return nil, err
			}

			if replaced {
				res.Substitutions++
			}

			switch {
			case v.Then == Conditional:
			case v.Then < 0:
				limit = Unlimited
			default:
				limit = Limit(res.Substitutions) + v.Then
			}
		} else if replaced {
			res.Substitutions++
		}

		// advance; an empty match copies one character
		if st < to {
			st = to
		} else if st < len(text) {
			next := regex.NextPos(text, st)
			if err := out.AppendString(text[st:next]); err != nil {
				return nil, err
			}
			st = next
		} else {
			break
		}
	}

	if st < len(text) {
		if err := out.AppendString(text[st:]); err != nil {
			return nil, err
		}
	}

	res.Text = out.String()
	return &res, nil
}

// apply writes the decided replacement to out and reports whether it was a substitution.
func (g *Gsub) apply(out, side *util.Buffer, v Verdict, matched string, replaced bool) (bool, error) {
	switch v.Action {
	case Accept:
		return replaced, out.AppendBuffer(side)
	case Override:
		return true, out.AppendString(v.Text)
	case Reject:
		return false, out.AppendString(matched)
	}

	return false, fmt.Errorf("unknown substitution action %d", v.Action)
}
