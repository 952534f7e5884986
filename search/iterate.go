package search

import (
	"github.com/magnetde/starlark-rex/regex"
)

// SearchState is the resumable state of a match stream.
type SearchState struct {
	Subject *regex.Subject
	Offset  int  // byte offset of the next execution
	Flags   int  // execution flags
	Retry   bool // the last match was empty; retry non-empty at Offset before advancing
}

// Iterator produces the successive non-overlapping matches of a pattern.
//
// After an empty match, engines that support it retry a non-empty match anchored at the
// same offset; other engines advance by one character. Either way the stream terminates.
type Iterator struct {
	state SearchState
	retry bool // the engine supports anchored retries
	match regex.Match
	done  bool
}

// Iterate returns an iterator over the matches of p in text.
func Iterate(p *regex.Pattern, text string, flags int) (*Iterator, error) {
	subj, err := p.Prepare(text)
	if err != nil {
		return nil, err
	}

	it := &Iterator{
		state: SearchState{
			Subject: subj,
			Flags:   flags,
		},
		retry: subj.CanRetry(),
	}

	return it, nil
}

// State returns the current search state.
func (it *Iterator) State() SearchState {
	return it.state
}

// Next returns the next match, or nil if there are no more matches.
// The returned match is only valid until the next call; use Clone to keep it.
// After an error, the iterator is exhausted.
func (it *Iterator) Next() (*regex.Match, error) {
	st := &it.state
	text := st.Subject.Text()

	for !it.done {
		if st.Offset > len(text) {
			break
		}

		var (
			ok  bool
			err error
		)

		if st.Retry {
			ok, err = st.Subject.Retry(st.Offset, st.Flags, &it.match)
		} else {
			ok, err = st.Subject.Exec(st.Offset, st.Flags, &it.match)
		}

		if err != nil {
			it.done = true
			return nil, err
		}

		if !ok {
			if st.Retry {
				st.Retry = false
				st.Offset = regex.NextPos(text, st.Offset)
				continue
			}
			break
		}

		start, end := it.match.Span()

		switch {
		case end > start:
			st.Offset = end
			st.Retry = false
		case it.retry:
			st.Offset = end
			st.Retry = true
		default:
			st.Offset = regex.NextPos(text, end)
		}

		return &it.match, nil
	}

	it.done = true
	return nil, nil
}

// Count returns the number of matches of p in text.
func Count(p *regex.Pattern, text string, flags int) (int, error) {
	it, err := Iterate(p, text, flags)
	if err != nil {
		return 0, err
	}

	n := 0

	for {
		m, err := it.Next()
		if err != nil {
			return 0, err
		}
		if m == nil {
			return n, nil
		}

		n++
	}
}
