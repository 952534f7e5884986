package rex

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/magnetde/starlark-rex/regex"
	"github.com/magnetde/starlark-rex/search"
	"github.com/magnetde/starlark-rex/util"
)

// Pattern is a compiled regular expression of one module.
type Pattern struct {
	module  *Module
	re      *regex.Pattern
	pattern strOrBytes
}

// Check, if the type satiesfies the interfaces.
var (
	_ starlark.Value      = (*Pattern)(nil)
	_ starlark.HasAttrs   = (*Pattern)(nil)
	_ starlark.Comparable = (*Pattern)(nil)
)

// Regex returns the compiled pattern.
func (p *Pattern) Regex() *regex.Pattern { return p.re }

func (p *Pattern) String() string {
	var b strings.Builder
	b.WriteString(p.module.name)
	b.WriteString(".new(")
	b.WriteString(util.Abbrev(p.pattern.value, p.pattern.isString, 200))
	p.writeflags(&b)
	b.WriteByte(')')
	return b.String()
}

// writeflags writes the compile flags as a sum of module constants.
// The default flags of the engine are omitted.
func (p *Pattern) writeflags(b *strings.Builder) {
	flags := p.re.Flags()
	if flags == p.module.engine.DefaultFlags() {
		return
	}

	b.WriteString(", ")

	if flags == 0 {
		b.WriteByte('0')
		return
	}

	type flag struct {
		name  string
		value int
	}

	var named []flag
	for name, v := range p.module.engine.CompileFlags() {
		// single bits only; combined constants would be written twice
		if v != 0 && v&(v-1) == 0 && flags&v != 0 {
			named = append(named, flag{name, v})
		}
	}

	slices.SortFunc(named, func(x, y flag) int { return x.value - y.value })

	first := true
	for _, f := range named {
		if flags&f.value == 0 {
			continue
		}
		if !first {
			b.WriteByte('|')
		}
		first = false

		b.WriteString(p.module.name)
		b.WriteByte('.')
		b.WriteString(f.name)
		flags &^= f.value
	}

	if flags != 0 {
		if !first {
			b.WriteByte('|')
		}
		b.WriteString("0x")
		b.WriteString(strconv.FormatUint(uint64(flags), 16))
	}
}

func (p *Pattern) Type() string         { return "pattern" }
func (p *Pattern) Freeze()              {}
func (p *Pattern) Truth() starlark.Bool { return true }

func (p *Pattern) Hash() (uint32, error) {
	return starlark.String(p.pattern.value).Hash()
}

// Methods of the pattern object.
var patternMethods = map[string]*starlark.Builtin{
	"exec":   starlark.NewBuiltin("exec", patternExec),
	"tfind":  starlark.NewBuiltin("tfind", patternTfind),
	"find":   starlark.NewBuiltin("find", patternFind),
	"match":  starlark.NewBuiltin("match", patternMatch),
	"gmatch": starlark.NewBuiltin("gmatch", patternGmatch),
	"gsub":   starlark.NewBuiltin("gsub", patternGsub),
	"split":  starlark.NewBuiltin("split", patternSplit),
	"count":  starlark.NewBuiltin("count", patternCount),
	"free":   starlark.NewBuiltin("free", patternFree),
}

// patternMembers contains members of the pattern object.
var patternMembers = map[string]func(p *Pattern) starlark.Value{
	"pattern": func(p *Pattern) starlark.Value { return p.pattern.asType(p.pattern.value) },
	"flags":   func(p *Pattern) starlark.Value { return starlark.MakeInt(p.re.Flags()) },
	"groups":  func(p *Pattern) starlark.Value { return starlark.MakeInt(p.re.SubexpCount()) },
	"groupindex": func(p *Pattern) starlark.Value {
		names := p.re.SubexpNames()

		gi := starlark.NewDict(len(names))
		for i, name := range names {
			if i != 0 && len(name) > 0 {
				_ = gi.SetKey(starlark.String(name), starlark.MakeInt(i))
			}
		}

		gi.Freeze()

		return gi
	},
}

// Attr gets a value for a string attribute.
func (p *Pattern) Attr(name string) (starlark.Value, error) {
	if o, ok := patternMethods[name]; ok {
		return o.BindReceiver(p), nil
	}

	if o, ok := patternMembers[name]; ok {
		return o(p), nil
	}

	return nil, nil
}

// AttrNames lists available dot expression strings.
func (p *Pattern) AttrNames() []string {
	names := make([]string, 0, len(patternMethods)+len(patternMembers))

	for name := range patternMethods {
		names = append(names, name)
	}
	for name := range patternMembers {
		names = append(names, name)
	}

	slices.Sort(names)
	return names
}

func (p *Pattern) CompareSameType(op syntax.Token, y starlark.Value, _ int) (bool, error) {
	o := y.(*Pattern)

	switch op {
	case syntax.EQL:
		return patternEquals(p, o), nil
	case syntax.NEQ:
		return !patternEquals(p, o), nil
	default:
		return false, fmt.Errorf("%s %s %s not implemented", p.Type(), op, o.Type())
	}
}

func patternEquals(x, y *Pattern) bool {
	return x.module.engine == y.module.engine && x.pattern == y.pattern && x.re.Flags() == y.re.Flags()
}

// subject checks the type of a subject argument and converts the start offset.
// ok is false if the start offset lies behind the end of the subject.
func (p *Pattern) subject(subj strOrBytes, init int) (int, bool, error) {
	if err := p.pattern.sameType(subj); err != nil {
		return 0, false, err
	}

	init = startOffset(init, len(subj.value))
	return init, init <= len(subj.value), nil
}

// find executes the pattern once. If span is true, the result is the tuple (start, end, captures...),
// else the value returned by matchValue.
func (p *Pattern) find(subj strOrBytes, init, ef int, span bool) (starlark.Value, error) {
	init, ok, err := p.subject(subj, init)
	if err != nil || !ok {
		return starlark.None, err
	}

	m, err := search.Find(p.re, subj.value, init, ef)
	if err != nil || m == nil {
		return starlark.None, err
	}

	if !span {
		return matchValue(subj, m), nil
	}

	start, end := m.Span()

	res := starlark.Tuple{starlark.MakeInt(start), starlark.MakeInt(end)}
	res = append(res, captureValues(subj, search.Captures(m))...)
	return res, nil
}

// matchValue returns the whole match if the pattern has no groups,
// the only capture if it has one group and a tuple of the captures otherwise.
func matchValue(subj strOrBytes, m *regex.Match) starlark.Value {
	caps := captureValues(subj, search.MatchCaptures(m))
	if len(caps) == 1 {
		return caps[0]
	}

	return caps
}

// captureValues converts captures into values of the subject type; invalid captures are None.
func captureValues(subj strOrBytes, caps []search.Capture) starlark.Tuple {
	res := make(starlark.Tuple, len(caps))
	for i, c := range caps {
		if c.Valid {
			res[i] = subj.asType(c.Text)
		} else {
			res[i] = starlark.None
		}
	}

	return res
}

func (p *Pattern) gmatch(thread *starlark.Thread, subj strOrBytes, ef int) (starlark.Value, error) {
	if err := p.pattern.sameType(subj); err != nil {
		return nil, err
	}

	it, err := search.Iterate(p.re, subj.value, ef)
	if err != nil {
		return nil, err
	}

	next := func() (starlark.Value, error) {
		m, err := it.Next()
		if err != nil || m == nil {
			return nil, err
		}

		return matchValue(subj, m), nil
	}

	return newStream(thread, "gmatch", next), nil
}

func (p *Pattern) split(thread *starlark.Thread, subj strOrBytes, ef int) (starlark.Value, error) {
	if err := p.pattern.sameType(subj); err != nil {
		return nil, err
	}

	s, err := search.Split(p.re, subj.value, ef)
	if err != nil {
		return nil, err
	}

	width := max(p.re.SubexpCount(), 1)

	next := func() (starlark.Value, error) {
		f, err := s.Next()
		if err != nil || f == nil {
			return nil, err
		}

		res := make(starlark.Tuple, 0, width+1)
		res = append(res, subj.asType(f.Text))

		if f.Delimiter != nil {
			res = append(res, captureValues(subj, search.MatchCaptures(f.Delimiter))...)
		} else {
			for range width {
				res = append(res, starlark.None)
			}
		}

		return res, nil
	}

	return newStream(thread, "split", next), nil
}

func (p *Pattern) count(subj strOrBytes, ef int) (starlark.Value, error) {
	if err := p.pattern.sameType(subj); err != nil {
		return nil, err
	}

	n, err := search.Count(p.re, subj.value, ef)
	if err != nil {
		return nil, err
	}

	return starlark.MakeInt(n), nil
}

func (p *Pattern) gsub(thread *starlark.Thread, subj strOrBytes, repl starlark.Value, n limitParam, ef int) (starlark.Value, error) {
	if err := p.pattern.sameType(subj); err != nil {
		return nil, err
	}

	r, err := newReplacer(thread, p, subj, repl)
	if err != nil {
		return nil, err
	}

	g := &search.Gsub{
		Replacer:      r,
		Limit:         search.Unlimited,
		Flags:         ef,
		MaxBufferSize: p.module.config.MaxBufferSize,
	}

	switch {
	case n.decide != nil:
		g.Limit = search.Conditional
		g.Decide = newDecider(thread, n.decide, subj)
	case n.set:
		g.Limit = search.Limit(n.limit)
	}

	res, err := g.Run(p.re, subj.value)
	if err != nil {
		return nil, err
	}

	return starlark.Tuple{
		subj.asType(res.Text),
		starlark.MakeInt(res.Matches),
		starlark.MakeInt(res.Substitutions),
	}, nil
}

// patternExec returns the tuple (start, end, offsets), where offsets holds the start and end
// of every group, or None for groups that did not participate.
func patternExec(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		init int
		ef   int
	)
	if err := starlark.UnpackArgs("exec", args, kwargs, "subj", &subj, "init?", &init, "ef?", &ef); err != nil {
		return nil, err
	}

	p := b.Receiver().(*Pattern)

	init, ok, err := p.subject(subj, init)
	if err != nil || !ok {
		return starlark.None, err
	}

	m, err := search.Find(p.re, subj.value, init, ef)
	if err != nil || m == nil {
		return starlark.None, err
	}

	offsets := make([]starlark.Value, 0, 2*m.NumGroups())
	for i := 1; i <= m.NumGroups(); i++ {
		if m.Valid(i) {
			offsets = append(offsets, starlark.MakeInt(m.Start(i)), starlark.MakeInt(m.End(i)))
		} else {
			offsets = append(offsets, starlark.None, starlark.None)
		}
	}

	start, end := m.Span()
	return starlark.Tuple{starlark.MakeInt(start), starlark.MakeInt(end), starlark.NewList(offsets)}, nil
}

// patternTfind returns the tuple (start, end, captures), where captures maps the group numbers
// and the group names to the captured text.
func patternTfind(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		init int
		ef   int
	)
	if err := starlark.UnpackArgs("tfind", args, kwargs, "subj", &subj, "init?", &init, "ef?", &ef); err != nil {
		return nil, err
	}

	p := b.Receiver().(*Pattern)

	init, ok, err := p.subject(subj, init)
	if err != nil || !ok {
		return starlark.None, err
	}

	m, err := search.Find(p.re, subj.value, init, ef)
	if err != nil || m == nil {
		return starlark.None, err
	}

	caps := captureValues(subj, search.Captures(m))
	names := p.re.SubexpNames()

	d := starlark.NewDict(len(caps))
	for i, c := range caps {
		if err := d.SetKey(starlark.MakeInt(i+1), c); err != nil {
			return nil, err
		}

		if i+1 < len(names) && names[i+1] != "" {
			if err := d.SetKey(starlark.String(names[i+1]), c); err != nil {
				return nil, err
			}
		}
	}

	start, end := m.Span()
	return starlark.Tuple{starlark.MakeInt(start), starlark.MakeInt(end), d}, nil
}

// patternFind - see `rexFind`.
func patternFind(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		init int
		ef   int
	)
	if err := starlark.UnpackArgs("find", args, kwargs, "subj", &subj, "init?", &init, "ef?", &ef); err != nil {
		return nil, err
	}

	return b.Receiver().(*Pattern).find(subj, init, ef, true)
}

// patternMatch - see `rexMatch`.
func patternMatch(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		init int
		ef   int
	)
	if err := starlark.UnpackArgs("match", args, kwargs, "subj", &subj, "init?", &init, "ef?", &ef); err != nil {
		return nil, err
	}

	return b.Receiver().(*Pattern).find(subj, init, ef, false)
}

// patternGmatch - see `rexGmatch`.
func patternGmatch(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		ef   int
	)
	if err := starlark.UnpackArgs("gmatch", args, kwargs, "subj", &subj, "ef?", &ef); err != nil {
		return nil, err
	}

	return b.Receiver().(*Pattern).gmatch(thread, subj, ef)
}

// patternGsub - see `rexGsub`.
func patternGsub(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		repl starlark.Value
		n    limitParam
		ef   int
	)
	if err := starlark.UnpackArgs("gsub", args, kwargs, "subj", &subj, "repl", &repl, "n?", &n, "ef?", &ef); err != nil {
		return nil, err
	}

	return b.Receiver().(*Pattern).gsub(thread, subj, repl, n, ef)
}

// patternSplit - see `rexSplit`.
func patternSplit(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		ef   int
	)
	if err := starlark.UnpackArgs("split", args, kwargs, "subj", &subj, "ef?", &ef); err != nil {
		return nil, err
	}

	return b.Receiver().(*Pattern).split(thread, subj, ef)
}

// patternCount - see `rexCount`.
func patternCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		ef   int
	)
	if err := starlark.UnpackArgs("count", args, kwargs, "subj", &subj, "ef?", &ef); err != nil {
		return nil, err
	}

	return b.Receiver().(*Pattern).count(subj, ef)
}

// patternFree releases the compiled pattern. Every later use of the pattern fails.
func patternFree(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs("free", args, kwargs); err != nil {
		return nil, err
	}

	b.Receiver().(*Pattern).re.Free()
	return starlark.None, nil
}
