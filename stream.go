package rex

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"go.starlark.net/starlark"
)

// Stream is the lazy result of gmatch and split.
// It can be used in a for loop or advanced with its next method, which returns None at the end.
type Stream struct {
	thread *starlark.Thread // cancelled when a loop over the stream fails
	name   string
	next   func() (starlark.Value, error) // returns nil at the end
	done   bool
}

// Check, if the type satisfies the interfaces.
var (
	_ starlark.Value    = (*Stream)(nil)
	_ starlark.Iterable = (*Stream)(nil)
	_ starlark.HasAttrs = (*Stream)(nil)
)

func newStream(thread *starlark.Thread, name string, next func() (starlark.Value, error)) *Stream {
	return &Stream{thread: thread, name: name, next: next}
}

func (s *Stream) String() string        { return fmt.Sprintf("<%s stream>", s.name) }
func (s *Stream) Type() string          { return "stream" }
func (s *Stream) Freeze()               {}
func (s *Stream) Truth() starlark.Bool  { return true }
func (s *Stream) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", s.Type()) }

// advance returns the next item, or nil after the last item.
// After an error, the stream is exhausted.
func (s *Stream) advance() (starlark.Value, error) {
	if s.done {
		return nil, nil
	}

	v, err := s.next()
	if err != nil || v == nil {
		s.done = true
	}

	return v, err
}

func (s *Stream) Iterate() starlark.Iterator { return &streamIterator{s} }

func (s *Stream) Attr(name string) (starlark.Value, error) {
	if name == "next" {
		return starlark.NewBuiltin("next", streamNext).BindReceiver(s), nil
	}

	return nil, nil
}

func (s *Stream) AttrNames() []string { return []string{"next"} }

// streamNext returns the next item of the stream, or None if the stream is exhausted.
func streamNext(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs("next", args, kwargs); err != nil {
		return nil, err
	}

	v, err := b.Receiver().(*Stream).advance()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return starlark.None, nil
	}

	return v, nil
}

type streamIterator struct {
	s *Stream
}

// Next advances the stream. Iterators cannot return errors, so an error cancels
// the thread that created the stream, which fails the loop at its next step.
func (it *streamIterator) Next(p *starlark.Value) bool {
	v, err := it.s.advance()
	if err != nil {
		logrus.WithError(err).WithField("stream", it.s.name).Warn("stream stopped")

		if it.s.thread != nil {
			it.s.thread.Cancel(fmt.Sprintf("%s: %v", it.s.name, err))
		}
		return false
	}
	if v == nil {
		return false
	}

	*p = v
	return true
}

func (it *streamIterator) Done() {}
