package rex

import (
	"fmt"

	"go.starlark.net/starlark"
)

// Tables is the character table value returned by maketables.
// It selects the locale used for case folding and is accepted by the lo argument of the PCRE module.
type Tables struct {
	locale string
}

var _ starlark.Value = (*Tables)(nil)

func (t *Tables) String() string        { return fmt.Sprintf("<tables %q>", t.locale) }
func (t *Tables) Type() string          { return "tables" }
func (t *Tables) Freeze()               {}
func (t *Tables) Truth() starlark.Bool  { return true }
func (t *Tables) Hash() (uint32, error) { return starlark.String(t.locale).Hash() }

// rexMaketables creates character tables for a locale, by default the locale of the module.
func rexMaketables(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	m := b.Receiver().(*Module)

	locale := m.config.Options.Locale
	if err := starlark.UnpackArgs("maketables", args, kwargs, "locale?", &locale); err != nil {
		return nil, err
	}

	return &Tables{locale: locale}, nil
}
