package rex

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/magnetde/starlark-rex/regex"
	"github.com/magnetde/starlark-rex/search"
)

// newReplacer creates the replacer for the repl argument of gsub:
// a template string, a dict keyed by the first capture or a function called with the captures.
func newReplacer(thread *starlark.Thread, p *Pattern, subj strOrBytes, repl starlark.Value) (search.Replacer, error) {
	switch t := repl.(type) {
	case starlark.String, starlark.Bytes:
		var tmpl strOrBytes
		_ = tmpl.Unpack(t)

		if err := subj.sameType(tmpl); err != nil {
			return nil, fmt.Errorf("replacement: %w", err)
		}

		return search.NewTemplateReplacer(p.re, tmpl.value)
	case starlark.Mapping:
		return &search.TableReplacer{Table: &dictTable{m: t, subj: subj}}, nil
	case starlark.Callable:
		f := func(m *regex.Match) (any, error) {
			args := captureValues(subj, search.MatchCaptures(m))

			v, err := starlark.Call(thread, t, args, nil)
			if err != nil {
				return nil, err
			}

			return toGo(v)
		}

		return search.FuncReplacer(f), nil
	}

	return nil, fmt.Errorf("got %s for repl, want str, bytes, dict or callable", repl.Type())
}

// dictTable looks up replacements in a Starlark mapping.
type dictTable struct {
	m    starlark.Mapping
	subj strOrBytes
}

func (d *dictTable) Lookup(key string) (any, bool, error) {
	v, found, err := d.m.Get(d.subj.asType(key))
	if err != nil || !found {
		return nil, false, err
	}

	g, err := toGo(v)
	return g, true, err
}

// toGo converts a replacement value into a value accepted by search.Coerce.
func toGo(v starlark.Value) (any, error) {
	switch t := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(t), nil
	case starlark.String:
		return string(t), nil
	case starlark.Bytes:
		return []byte(t), nil
	case starlark.Int:
		if n, ok := t.Int64(); ok {
			return n, nil
		}
		return t.String(), nil
	case starlark.Float:
		return t.String(), nil
	}

	return nil, regex.ErrInvalidReplacement.New(v.Type())
}

// newDecider wraps the decision function of a conditional gsub.
// The function is called with the start and end of the match and the proposed replacement,
// which is False if the replacer keeps the match. It returns a pair:
// the first value is a string to substitute instead, a true value to accept the proposal
// or a false value to keep the match. The second value is the number of following matches
// to substitute without asking, a true value to substitute all of them, or a false value to
// continue asking.
func newDecider(thread *starlark.Thread, fn starlark.Callable, subj strOrBytes) search.Decider {
	return func(prop search.Proposal) (search.Verdict, error) {
		var proposed starlark.Value = starlark.False
		if prop.Replaced {
			proposed = subj.asType(prop.Text)
		}

		args := starlark.Tuple{starlark.MakeInt(prop.Start), starlark.MakeInt(prop.End), proposed}

		v, err := starlark.Call(thread, fn, args, nil)
		if err != nil {
			return search.Verdict{}, err
		}

		return toVerdict(v)
	}
}

func toVerdict(v starlark.Value) (search.Verdict, error) {
	var first, second starlark.Value = v, starlark.None

	if t, ok := v.(starlark.Tuple); ok {
		switch len(t) {
		case 0:
			first = starlark.None
		case 1:
			first = t[0]
		case 2:
			first, second = t[0], t[1]
		default:
			return search.Verdict{}, fmt.Errorf("decision function returned %d values, want at most 2", len(t))
		}
	}

	var res search.Verdict

	switch t := first.(type) {
	case starlark.String:
		res.Action = search.Override
		res.Text = string(t)
	case starlark.Bytes:
		res.Action = search.Override
		res.Text = string(t)
	default:
		if first.Truth() {
			res.Action = search.Accept
		} else {
			res.Action = search.Reject
		}
	}

	switch t := second.(type) {
	case starlark.Int:
		n, err := toInt(t)
		if err != nil {
			return search.Verdict{}, err
		}
		res.Then = search.Limit(max(n, 0))
	default:
		if second.Truth() {
			res.Then = search.Unlimited
		} else {
			res.Then = search.Conditional
		}
	}

	return res, nil
}
