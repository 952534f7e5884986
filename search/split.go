package search

import (
	"github.com/magnetde/starlark-rex/regex"
)

// Field is one piece of a split text.
type Field struct {
	Text      string
	Delimiter *regex.Match // the match that ends the field; nil for the last field
}

// Splitter splits a text at the matches of a pattern.
// Every non-empty match is a delimiter; empty matches never split.
// A text with n delimiters yields n+1 fields, so there is always at least one field.
type Splitter struct {
	subject *regex.Subject
	offset  int // start of the next field
	flags   int
	match   regex.Match
	done    bool
}

// Split returns a splitter over the fields of text.
func Split(p *regex.Pattern, text string, flags int) (*Splitter, error) {
	subj, err := p.Prepare(text)
	if err != nil {
		return nil, err
	}

	return &Splitter{subject: subj, flags: flags}, nil
}

// Next returns the next field, or nil after the last one.
// The delimiter of the field is only valid until the next call.
func (s *Splitter) Next() (*Field, error) {
	if s.done {
		return nil, nil
	}

	text := s.subject.Text()

	for pos := s.offset; pos < len(text); {
		ok, err := s.subject.Exec(pos, s.flags, &s.match)
		if err != nil {
			s.done = true
			return nil, err
		}
		if !ok {
			break
		}

		start, end := s.match.Span()
		if end > start {
			f := &Field{
				Text:      text[s.offset:start],
				Delimiter: &s.match,
			}

			s.offset = end
			return f, nil
		}

		pos = regex.NextPos(text, start)
	}

	s.done = true
	return &Field{Text: text[s.offset:]}, nil
}

// SplitAll returns the text of all fields.
func SplitAll(p *regex.Pattern, text string, flags int) ([]string, error) {
	s, err := Split(p, text, flags)
	if err != nil {
		return nil, err
	}

	var fields []string

	for {
		f, err := s.Next()
		if err != nil {
			return nil, err
		}
		if f == nil {
			return fields, nil
		}

		fields = append(fields, f.Text)
	}
}
