package rex

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"

	"github.com/magnetde/starlark-rex/regex"
	"github.com/magnetde/starlark-rex/syntax"
)

// strOrBytes is a Starlark str or bytes argument.
type strOrBytes struct {
	value    string
	isString bool
}

// patternParam is a Starlark type, representing the possible types of the pattern parameter.
type patternParam struct {
	compiled *Pattern
	raw      strOrBytes
}

// flagsParam is a compile flags argument: None, an int, or a string of flag letters.
type flagsParam struct {
	value starlark.Value
}

// limitParam is the `n` argument of gsub: None, an int, or a decision function.
type limitParam struct {
	limit  int
	decide starlark.Callable
	set    bool
}

var (
	_ starlark.Unpacker = (*strOrBytes)(nil)
	_ starlark.Unpacker = (*patternParam)(nil)
	_ starlark.Unpacker = (*flagsParam)(nil)
	_ starlark.Unpacker = (*limitParam)(nil)
)

func (s *strOrBytes) Unpack(v starlark.Value) error {
	switch t := v.(type) {
	case starlark.String:
		s.value = string(t)
		s.isString = true
	case starlark.Bytes:
		s.value = string(t)
		s.isString = false
	default:
		return fmt.Errorf("got %s, want str or bytes", v.Type())
	}

	return nil
}

func (s *strOrBytes) sameType(v strOrBytes) error {
	if s.isString != v.isString {
		return fmt.Errorf("got %s, want %s", v.typeString(), s.typeString())
	}

	return nil
}

func (s *strOrBytes) typeString() string {
	if s.isString {
		return "str"
	}

	return "bytes"
}

func (s *strOrBytes) asType(v string) starlark.Value {
	if s.isString {
		return starlark.String(v)
	}

	return starlark.Bytes(v)
}

func (p *patternParam) Unpack(v starlark.Value) error {
	if c, ok := v.(*Pattern); ok {
		p.compiled = c
		return nil
	}

	err := p.raw.Unpack(v)
	if err != nil {
		return errors.New("pattern must be str, bytes or a compiled pattern")
	}

	return nil
}

func (f *flagsParam) Unpack(v starlark.Value) error {
	switch v.(type) {
	case starlark.NoneType, starlark.Int, starlark.String:
		f.value = v
		return nil
	}

	return fmt.Errorf("got %s, want int, str or None", v.Type())
}

// resolve returns the compile flags for engine e.
// A missing argument selects the default flags of the engine.
func (f *flagsParam) resolve(e regex.Engine) (int, error) {
	switch t := f.value.(type) {
	case nil, starlark.NoneType:
		return e.DefaultFlags(), nil
	case starlark.Int:
		return toInt(t)
	case starlark.String:
		flags, err := syntax.ParseFlagString(e.FlagLetters(), string(t))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", e.Name(), err)
		}

		return flags, nil
	}

	return 0, fmt.Errorf("unexpected flags %s", f.value.Type())
}

func (l *limitParam) Unpack(v starlark.Value) error {
	switch t := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Int:
		n, err := toInt(t)
		if err != nil {
			return err
		}

		l.limit = max(n, 0)
		l.set = true
	case starlark.Callable:
		l.decide = t
	default:
		return fmt.Errorf("got %s, want int, callable or None", v.Type())
	}

	return nil
}

func toInt(v starlark.Int) (int, error) {
	n, ok := v.Int64()
	if !ok || int64(int(n)) != n {
		return 0, fmt.Errorf("integer %s out of range", v)
	}

	return int(n), nil
}

// startOffset converts the init argument into a byte offset.
// Negative values count from the end of the subject.
func startOffset(init, length int) int {
	if init < 0 {
		init = max(length+init, 0)
	}
	return init
}
