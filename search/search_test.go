package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magnetde/starlark-rex/regex"
)

func compile(t *testing.T, e regex.Engine, pattern string) *regex.Pattern {
	t.Helper()

	p, err := regex.Compile(e, pattern, e.DefaultFlags(), regex.Options{})
	require.NoError(t, err)
	return p
}

func forEachEngine(t *testing.T, f func(t *testing.T, e regex.Engine)) {
	for _, e := range regex.Engines() {
		t.Run(e.Name(), func(t *testing.T) {
			f(t, e)
		})
	}
}

func spans(t *testing.T, p *regex.Pattern, text string) [][2]int {
	t.Helper()

	it, err := Iterate(p, text, 0)
	require.NoError(t, err)

	var res [][2]int
	for {
		m, err := it.Next()
		require.NoError(t, err)
		if m == nil {
			return res
		}

		s, e := m.Span()
		res = append(res, [2]int{s, e})
	}
}

func TestFind(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		require := require.New(t)
		p := compile(t, e, "b+")

		m, err := Find(p, "abbcb", 0, 0)
		require.NoError(err)
		require.NotNil(m)
		s, end := m.Span()
		require.Equal(1, s)
		require.Equal(3, end)

		m, err = Find(p, "abbcb", 3, 0)
		require.NoError(err)
		require.Equal([]int{4, 5}, m.Offsets())

		m, err = Find(p, "abbcb", 6, 0)
		require.NoError(err)
		require.Nil(m)

		m, err = Find(p, "xyz", 0, 0)
		require.NoError(err)
		require.Nil(m)

		// a start offset equal to the length still executes
		m, err = Find(compile(t, e, "x*"), "ab", 2, 0)
		require.NoError(err)
		require.Equal([]int{2, 2}, m.Offsets())
	})
}

func TestMatchCaptures(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		require := require.New(t)

		m, err := Find(compile(t, e, "[0-9]+"), "ab12", 0, 0)
		require.NoError(err)
		require.Equal([]Capture{{Text: "12", Valid: true}}, MatchCaptures(m))

		m, err = Find(compile(t, e, "(a)(x)?"), "ab", 0, 0)
		require.NoError(err)
		require.Equal([]Capture{{Text: "a", Valid: true}, {}}, MatchCaptures(m))
		require.Equal(MatchCaptures(m), Captures(m))
	})
}

func TestFindUseAfterFree(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		p := compile(t, e, "a")
		p.Free()

		_, err := Find(p, "a", 0, 0)
		require.Error(t, err)
		require.True(t, regex.ErrUseAfterFree.Is(err))

		_, err = Iterate(p, "a", 0)
		require.True(t, regex.ErrUseAfterFree.Is(err))

		_, err = Split(p, "a", 0)
		require.True(t, regex.ErrUseAfterFree.Is(err))

		_, err = Substitute(p, "a", &TableReplacer{Table: MapTable{}}, Unlimited, 0)
		require.True(t, regex.ErrUseAfterFree.Is(err))
	})
}

func TestFreeDuringIteration(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		p := compile(t, e, "a")

		it, err := Iterate(p, "aaa", 0)
		require.NoError(t, err)

		m, err := it.Next()
		require.NoError(t, err)
		require.NotNil(t, m)

		p.Free()

		_, err = it.Next()
		require.True(t, regex.ErrUseAfterFree.Is(err))

		m, err = it.Next()
		require.NoError(t, err)
		require.Nil(t, m)
	})
}

func TestPlainFind(t *testing.T) {
	require := require.New(t)

	s, e, ok := PlainFind("a.b.c", ".", 0, false)
	require.True(ok)
	require.Equal(1, s)
	require.Equal(2, e)

	s, _, ok = PlainFind("a.b.c", ".", 2, false)
	require.True(ok)
	require.Equal(3, s)

	_, _, ok = PlainFind("Hello", "LL", 0, false)
	require.False(ok)

	s, e, ok = PlainFind("Hello", "LL", 0, true)
	require.True(ok)
	require.Equal(2, s)
	require.Equal(4, e)

	s, e, ok = PlainFind("abc", "", 3, false)
	require.True(ok)
	require.Equal(3, s)
	require.Equal(3, e)

	_, _, ok = PlainFind("abc", "c", 4, false)
	require.False(ok)
}

func TestIterate(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		p := compile(t, e, "[0-9]+")
		assert.Equal(t, [][2]int{{0, 2}, {3, 5}, {7, 8}}, spans(t, p, "12,34, 5"))
		assert.Nil(t, spans(t, p, "abc"))
		assert.Nil(t, spans(t, p, ""))
	})
}

func TestIterateEmptyMatches(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		assert.Equal(t, [][2]int{{0, 0}, {1, 1}, {2, 2}, {3, 3}}, spans(t, compile(t, e, "x*"), "abc"))
		assert.Equal(t, [][2]int{{0, 0}, {1, 4}, {4, 4}, {5, 5}}, spans(t, compile(t, e, "a*"), "baaac"))
		assert.Equal(t, [][2]int{{0, 0}}, spans(t, compile(t, e, "x*"), ""))

		// empty matches advance by characters, not bytes
		assert.Equal(t, [][2]int{{0, 0}, {2, 2}, {3, 3}}, spans(t, compile(t, e, "x*"), "äb"))
	})
}

func TestIterateTerminates(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		for _, text := range []string{"", "a", "xax", "aaxxaa", strings.Repeat("xa", 20)} {
			it, err := Iterate(compile(t, e, "x*"), text, 0)
			require.NoError(t, err)

			steps, last := 0, -1
			for {
				m, err := it.Next()
				require.NoError(t, err)
				if m == nil {
					break
				}

				steps++
				require.True(t, steps <= 2*len(text)+1, text)

				s, _ := m.Span()
				require.True(t, s >= last, text)
				last = s
			}
		}
	})
}

func TestIterateRetry(t *testing.T) {
	p := compile(t, regex.PCRE, "a*?")

	it, err := Iterate(p, "aa", 0)
	require.NoError(t, err)
	require.True(t, it.State().Subject.CanRetry())

	assert.Equal(t, [][2]int{{0, 0}, {0, 1}, {1, 1}, {1, 2}, {2, 2}}, spans(t, p, "aa"))

	it, err = Iterate(compile(t, regex.POSIX, "a*"), "aa", 0)
	require.NoError(t, err)
	require.False(t, it.State().Subject.CanRetry())
}

func TestCount(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		n, err := Count(compile(t, e, "[a-z]+"), "ab cd, ef", 0)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		n, err = Count(compile(t, e, "x*"), "abc", 0)
		require.NoError(t, err)
		require.Equal(t, 4, n)
	})
}

func TestSplit(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		tests := []struct {
			pattern string
			text    string
			fields  []string
		}{
			{",", "a,b,,c", []string{"a", "b", "", "c"}},
			{",", "", []string{""}},
			{",", "abc", []string{"abc"}},
			{",", "a,", []string{"a", ""}},
			{",", ",a", []string{"", "a"}},
			{" *, *", "a , b,c", []string{"a", "b", "c"}},
			{"x*", "abc", []string{"abc"}},
			{",*", "a,,b", []string{"a", "b"}},
			{"[0-9]", "ä1ö2ü", []string{"ä", "ö", "ü"}},
		}

		for _, test := range tests {
			fields, err := SplitAll(compile(t, e, test.pattern), test.text, 0)
			require.NoError(t, err)
			assert.Equal(t, test.fields, fields, "%q on %q", test.pattern, test.text)
		}
	})
}

func TestSplitJoin(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		for _, text := range []string{"", "a", "a-b--c-", "--", "a1b22c333"} {
			s, err := Split(compile(t, e, "-|[0-9]+"), text, 0)
			require.NoError(t, err)

			var b strings.Builder
			n := 0

			for {
				f, err := s.Next()
				require.NoError(t, err)
				if f == nil {
					break
				}

				n++
				b.WriteString(f.Text)

				if f.Delimiter != nil {
					d, ok := f.Delimiter.Group(0)
					require.True(t, ok)
					b.WriteString(d)
				}
			}

			require.True(t, n >= 1)
			require.Equal(t, text, b.String())
		}
	})
}

func TestSplitDelimiterCaptures(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e regex.Engine) {
		s, err := Split(compile(t, e, "([=:])(x)?"), "a=b:xc", 0)
		require.NoError(t, err)

		f, err := s.Next()
		require.NoError(t, err)
		require.Equal(t, "a", f.Text)
		require.Equal(t, []Capture{{Text: "=", Valid: true}, {}}, Captures(f.Delimiter))

		f, err = s.Next()
		require.NoError(t, err)
		require.Equal(t, "b", f.Text)
		require.Equal(t, []Capture{{Text: ":", Valid: true}, {Text: "x", Valid: true}}, Captures(f.Delimiter))

		f, err = s.Next()
		require.NoError(t, err)
		require.Equal(t, "c", f.Text)
		require.Nil(t, f.Delimiter)

		f, err = s.Next()
		require.NoError(t, err)
		require.Nil(t, f)
	})
}
