package search

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magnetde/starlark-rex/regex"
	"github.com/magnetde/starlark-rex/util"
)

func template(t *testing.T, p *regex.Pattern, s string) Replacer {
	t.Helper()

	r, err := NewTemplateReplacer(p, s)
	require.NoError(t, err)
	return r
}

func TestSubstituteTemplate(t *testing.T) {
	require := require.New(t)

	p := compile(t, regex.PCRE, `(\d+)-(\d+)`)

	res, err := Substitute(p, "12-34 and 56-78", template(t, p, "%2/%1"), Unlimited, 0)
	require.NoError(err)
	require.Equal(&Substitution{Text: "34/12 and 78/56", Matches: 2, Substitutions: 2}, res)
}

func TestSubstituteEngines(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		p := compile(t, e, "([0-9]+)-([0-9]+)")

		res, err := Substitute(p, "12-34 and 56-78", template(t, p, "%2/%1"), Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, &Substitution{Text: "34/12 and 78/56", Matches: 2, Substitutions: 2}, res)
	})
}

func TestSubstituteLimit(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		require := require.New(t)

		p := compile(t, e, "[a-z]")
		r := template(t, p, "<%1>")

		res, err := Substitute(p, "a b c d e", r, 2, 0)
		require.NoError(err)
		require.Equal("<a> <b> c d e", res.Text)
		require.Equal(2, res.Matches)
		require.Equal(2, res.Substitutions)

		res, err = Substitute(p, "a b c d e", r, 0, 0)
		require.NoError(err)
		require.Equal(&Substitution{Text: "a b c d e"}, res)

		res, err = Substitute(p, "a b", r, 10, 0)
		require.NoError(err)
		require.Equal(&Substitution{Text: "<a> <b>", Matches: 2, Substitutions: 2}, res)

		// any negative limit other than the conditional one is unlimited
		res, err = Substitute(p, "a b", r, -7, 0)
		require.NoError(err)
		require.Equal("<a> <b>", res.Text)
	})
}

func TestSubstituteEmptyMatches(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		p := compile(t, e, "x*")
		r := template(t, p, "-")

		res, err := Substitute(p, "abc", r, Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, &Substitution{Text: "-a-b-c-", Matches: 4, Substitutions: 4}, res)

		res, err = Substitute(p, "äb", r, Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, "-ä-b-", res.Text)

		res, err = Substitute(p, "", r, Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, &Substitution{Text: "-", Matches: 1, Substitutions: 1}, res)

		p = compile(t, e, "b*")
		res, err = Substitute(p, "abc", template(t, p, "[%1]"), Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, &Substitution{Text: "[]a[b][]c[]", Matches: 4, Substitutions: 4}, res)
	})
}

func TestSubstituteTemplateEscape(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		p := compile(t, e, "(b)")

		res, err := Substitute(p, "abcb", template(t, p, "%%1"), Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, "a%1c%1", res.Text)
	})
}

func TestSubstituteRepeatedGroup(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		// a group under a repetition holds its last iteration
		p := compile(t, e, "(a|b)+")

		res, err := Substitute(p, "xabba yb", template(t, p, "<%1>"), Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, "x<a> y<b>", res.Text)

		p = compile(t, e, "([0-9])*-")
		res, err = Substitute(p, "12- 3-", template(t, p, "<%1>"), Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, "<2> <3>", res.Text)
	})
}

func TestTemplateReplacerLiteral(t *testing.T) {
	require := require.New(t)

	p := compile(t, regex.PCRE, "(a)")

	r, err := NewTemplateReplacer(p, "x%%y")
	require.NoError(err)
	require.True(r.fixed)
	require.Equal("x%y", r.literal)

	res, err := Substitute(p, "bab", r, Unlimited, 0)
	require.NoError(err)
	require.Equal(&Substitution{Text: "bx%yb", Matches: 1, Substitutions: 1}, res)

	r, err = NewTemplateReplacer(p, "[%1]")
	require.NoError(err)
	require.False(r.fixed)

	r, err = NewTemplateReplacer(p, "")
	require.NoError(err)
	require.True(r.fixed)

	res, err = Substitute(p, "bab", r, Unlimited, 0)
	require.NoError(err)
	require.Equal("bb", res.Text)
}

func TestSubstituteInvalidGroup(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		p := compile(t, e, "(a)(b)")

		_, err := NewTemplateReplacer(p, "%5")
		require.Error(t, err)
		require.True(t, regex.ErrInvalidCaptureIndex.Is(err))

		// optional groups that did not match expand to nothing
		p = compile(t, e, "(a)(x)?")
		res, err := Substitute(p, "ab", template(t, p, "[%1%2]"), Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, "[a]b", res.Text)
	})
}

func TestSubstituteTable(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		table := &TableReplacer{Table: MapTable{"a": "1", "b": "2"}}

		res, err := Substitute(compile(t, e, "[a-z]"), "abc", table, Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, &Substitution{Text: "12c", Matches: 3, Substitutions: 2}, res)

		// keyed by the first capture
		res, err = Substitute(compile(t, e, "<([a-z])>"), "<a><c>", table, Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, &Substitution{Text: "1<c>", Matches: 2, Substitutions: 1}, res)

		// an invalid first capture keeps the match
		res, err = Substitute(compile(t, e, "(x)?[a-z]"), "ab", table, Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, &Substitution{Text: "ab", Matches: 2, Substitutions: 0}, res)
	})
}

func TestSubstituteFunc(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		values := map[string]any{
			"a": "x",
			"b": nil,
			"c": false,
			"d": 42,
			"e": 1.5,
			"f": []byte("y"),
		}

		f := FuncReplacer(func(m *regex.Match) (any, error) {
			s, _ := m.Group(0)
			return values[s], nil
		})

		res, err := Substitute(compile(t, e, "[a-z]"), "abcdefg", f, Unlimited, 0)
		require.NoError(t, err)
		require.Equal(t, &Substitution{Text: "xbc421.5yg", Matches: 7, Substitutions: 4}, res)
	})
}

func TestSubstituteInvalidValue(t *testing.T) {
	tests := []any{true, struct{}{}, []string{"a"}}

	for _, v := range tests {
		f := FuncReplacer(func(*regex.Match) (any, error) {
			return v, nil
		})

		res, err := Substitute(compile(t, regex.PCRE, "a"), "bab", f, Unlimited, 0)
		require.Error(t, err)
		require.True(t, regex.ErrInvalidReplacement.Is(err))
		require.Nil(t, res)
	}
}

func TestSubstituteCallbackError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0

	f := FuncReplacer(func(*regex.Match) (any, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return "x", nil
	})

	res, err := Substitute(compile(t, regex.POSIX, "a"), "aaaa", f, Unlimited, 0)
	require.Equal(t, boom, err)
	require.Nil(t, res)
	require.Equal(t, 2, calls)
}

func TestSubstituteBufferLimit(t *testing.T) {
	p := compile(t, regex.GNU, "a")

	g := &Gsub{
		Replacer:      template(t, p, strings.Repeat("b", 10)),
		Limit:         Unlimited,
		MaxBufferSize: 32,
	}

	res, err := g.Run(p, "aaa")
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("b", 30), res.Text)

	res, err = g.Run(p, "aaaa")
	require.Error(t, err)
	require.True(t, util.ErrBufferOverflow.Is(err))
	require.Nil(t, res)
}

func TestSubstituteConditional(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		p := compile(t, e, "[0-9]+")

		verdicts := []Verdict{
			{Action: Accept, Then: Conditional},
			{Action: Reject, Then: Conditional},
			{Action: Override, Text: "X", Then: 1},
		}

		var proposals []Proposal

		decide := func(prop Proposal) (Verdict, error) {
			prop.Match = nil
			proposals = append(proposals, prop)
			return verdicts[len(proposals)-1], nil
		}

		res, err := SubstituteFunc(p, "1 2 3 4 5", template(t, p, "<%1>"), decide, 0)
		require.NoError(t, err)
		require.Equal(t, &Substitution{Text: "<1> 2 X <4> 5", Matches: 4, Substitutions: 3}, res)

		require.Equal(t, []Proposal{
			{Start: 0, End: 1, Text: "<1>", Replaced: true},
			{Start: 2, End: 3, Text: "<2>", Replaced: true},
			{Start: 4, End: 5, Text: "<3>", Replaced: true},
		}, proposals)
	})
}

func TestSubstituteConditionalUnlimited(t *testing.T) {
	p := compile(t, regex.PCRE, "[a-z]")
	calls := 0

	decide := func(Proposal) (Verdict, error) {
		calls++
		return Verdict{Action: Reject, Then: Unlimited}, nil
	}

	res, err := SubstituteFunc(p, "abc", template(t, p, "-"), decide, 0)
	require.NoError(t, err)
	require.Equal(t, &Substitution{Text: "a--", Matches: 3, Substitutions: 2}, res)
	require.Equal(t, 1, calls)
}

func TestSubstituteConditionalStop(t *testing.T) {
	p := compile(t, regex.PCRE, "[a-z]")

	decide := func(Proposal) (Verdict, error) {
		return Verdict{Action: Accept}, nil // no more substitutions
	}

	res, err := SubstituteFunc(p, "abc", template(t, p, "-"), decide, 0)
	require.NoError(t, err)
	require.Equal(t, &Substitution{Text: "-bc", Matches: 1, Substitutions: 1}, res)
}

func TestSubstituteConditionalTable(t *testing.T) {
	p := compile(t, regex.POSIX, "[a-z]")
	table := &TableReplacer{Table: MapTable{"a": "A"}}

	var proposals []Proposal

	decide := func(prop Proposal) (Verdict, error) {
		prop.Match = nil
		proposals = append(proposals, prop)
		return Verdict{Action: Accept, Then: Conditional}, nil
	}

	res, err := SubstituteFunc(p, "ab", table, decide, 0)
	require.NoError(t, err)
	require.Equal(t, &Substitution{Text: "Ab", Matches: 2, Substitutions: 1}, res)

	require.Equal(t, []Proposal{
		{Start: 0, End: 1, Text: "A", Replaced: true},
		{Start: 1, End: 2, Text: "b", Replaced: false},
	}, proposals)
}

func TestSubstituteConditionalErrors(t *testing.T) {
	p := compile(t, regex.PCRE, "a")

	_, err := (&Gsub{Replacer: template(t, p, "b"), Limit: Conditional}).Run(p, "a")
	require.True(t, ErrNoDecider.Is(err))

	boom := errors.New("boom")
	res, err := SubstituteFunc(p, "aa", template(t, p, "b"), func(Proposal) (Verdict, error) {
		return Verdict{}, boom
	}, 0)
	require.Equal(t, boom, err)
	require.Nil(t, res)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		v  any
		s  string
		ok bool
	}{
		{nil, "", false},
		{false, "", false},
		{"abc", "abc", true},
		{"", "", true},
		{[]byte("xy"), "xy", true},
		{7, "7", true},
		{int64(-3), "-3", true},
		{0.25, "0.25", true},
	}

	for _, test := range tests {
		s, ok, err := Coerce(test.v)
		require.NoError(t, err)
		assert.Equal(t, test.s, s)
		assert.Equal(t, test.ok, ok)
	}

	_, _, err := Coerce(true)
	require.Error(t, err)
	assert.Equal(t, "invalid replacement value (a bool)", err.Error())
}
