// Package rex exposes the PCRE, POSIX and GNU regular expression engines to Starlark.
// Each engine is a module with the same set of functions; see NewModule.
package rex

import (
	"container/list"
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
	"go.starlark.net/starlark"

	"github.com/magnetde/starlark-rex/regex"
	"github.com/magnetde/starlark-rex/search"
)

// Module is a module type used for the rex modules.
// A new type is implemented instead of using the previous `starlarkstruct.Module` type,
// since the module contains a LRU cache for compiled patterns.
// The cache is implemented with a map and a linked list.
// When the cache exceeds the maximum size, the oldest used element is purged.
type Module struct {
	name    string
	engine  regex.Engine
	config  Config
	members starlark.StringDict

	mu    sync.Mutex
	list  *list.List                 // Least recent used patterns
	cache map[cacheKey]*list.Element // Mapping of patterns to list elements
}

// cacheKey is a type, that is used for cache key, containing the pattern and the flags.
type cacheKey struct {
	pattern string
	isStr   bool
	flags   int
}

// Is necessary, because each list element needs to store the key in the map.
type cacheValue struct {
	pattern *Pattern
	key     cacheKey
}

// NewModule creates a module for engine e. The module is named "rex_" followed by the engine name.
func NewModule(e regex.Engine, config Config) *Module {
	members := starlark.StringDict{
		"new":       starlark.NewBuiltin("new", rexNew),
		"find":      starlark.NewBuiltin("find", rexFind),
		"match":     starlark.NewBuiltin("match", rexMatch),
		"gmatch":    starlark.NewBuiltin("gmatch", rexGmatch),
		"gsub":      starlark.NewBuiltin("gsub", rexGsub),
		"split":     starlark.NewBuiltin("split", rexSplit),
		"count":     starlark.NewBuiltin("count", rexCount),
		"plainfind": starlark.NewBuiltin("plainfind", rexPlainfind),
		"flags":     starlark.NewBuiltin("flags", rexFlags),
	}

	if e == regex.PCRE {
		members["maketables"] = starlark.NewBuiltin("maketables", rexMaketables)
	}

	for name, v := range e.CompileFlags() {
		members[name] = starlark.MakeInt(v)
	}
	for name, v := range e.ExecFlags() {
		members[name] = starlark.MakeInt(v)
	}

	m := &Module{
		name:    "rex_" + e.Name(),
		engine:  e,
		config:  config,
		members: members,
		list:    list.New(),
		cache:   make(map[cacheKey]*list.Element),
	}

	return m
}

// Modules returns a module for each engine, keyed by module name.
func Modules(config Config) starlark.StringDict {
	d := make(starlark.StringDict)
	for _, e := range regex.Engines() {
		m := NewModule(e, config)
		d[m.name] = m
	}
	return d
}

// Check, if the type satisfies the interfaces.
var (
	_ starlark.Value    = (*Module)(nil)
	_ starlark.HasAttrs = (*Module)(nil)
)

func (m *Module) Freeze()               { m.members.Freeze() }
func (m *Module) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", m.Type()) }
func (m *Module) String() string        { return "<module " + m.name + ">" }
func (m *Module) Truth() starlark.Bool  { return true }
func (m *Module) Type() string          { return "module" }

func (m *Module) Attr(name string) (starlark.Value, error) {
	if v, ok := m.members[name]; ok {
		if b, ok := v.(*starlark.Builtin); ok {
			return b.BindReceiver(m), nil
		}

		return v, nil
	}

	return nil, nil
}

func (m *Module) AttrNames() []string {
	names := m.members.Keys()
	slices.Sort(names)
	return names
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Engine returns the engine of the module.
func (m *Module) Engine() regex.Engine { return m.engine }

// compile compiles a pattern. If the pattern is already in the cache,
// the compiled pattern is returned from the cache.
// Else, the pattern is compiled and then added to the cache.
// Patterns compiled with options other than the module defaults are not cached.
func (m *Module) compile(pattern strOrBytes, flags int, opts *regex.Options) (*Pattern, error) {
	if opts != nil || m.config.CacheSize <= 0 {
		return m.newPattern(pattern, flags, opts)
	}

	key := cacheKey{
		pattern: pattern.value,
		isStr:   pattern.isString,
		flags:   flags,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.cache[key]; ok { // pattern found in the cache
		p := e.Value.(*cacheValue).pattern
		if !p.re.Freed() {
			m.list.MoveToFront(e) // "refresh" the pattern in the linked list
			return p, nil
		}

		// freed by the script; compile again
		delete(m.cache, key)
		m.list.Remove(e)
	}

	// purge elements, if the size exceeds a certain threshold
	for m.list.Len() >= m.config.CacheSize {
		last := m.list.Back() // determine the oldest element
		lastValue := last.Value.(*cacheValue)

		logrus.WithFields(logrus.Fields{
			"module":  m.name,
			"pattern": lastValue.key.pattern,
		}).Debug("evicting compiled pattern from cache")

		// Delete from map and list
		delete(m.cache, lastValue.key)
		m.list.Remove(last)
	}

	p, err := m.newPattern(pattern, flags, nil)
	if err != nil {
		return nil, err
	}

	// Add the compiled pattern to the cache.
	v := &cacheValue{
		pattern: p,
		key:     key,
	}

	m.cache[key] = m.list.PushFront(v)

	return p, nil
}

// newPattern compiles a pattern without the cache.
func (m *Module) newPattern(pattern strOrBytes, flags int, opts *regex.Options) (*Pattern, error) {
	o := m.config.Options
	if opts != nil {
		o = *opts
	}

	re, err := regex.Compile(m.engine, pattern.value, flags, o)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}

	p := &Pattern{
		module:  m,
		re:      re,
		pattern: pattern,
	}

	return p, nil
}

// compilePattern returns the compiled pattern of a pattern argument.
func (m *Module) compilePattern(pp patternParam, cf flagsParam, o *optionParams) (*Pattern, error) {
	if pp.compiled != nil {
		if pp.compiled.module.engine != m.engine {
			return nil, fmt.Errorf("%s: got a %s pattern", m.name, pp.compiled.module.name)
		}

		return pp.compiled, nil
	}

	flags, err := cf.resolve(m.engine)
	if err != nil {
		return nil, err
	}

	opts, err := o.options(m)
	if err != nil {
		return nil, err
	}

	return m.compile(pp.raw, flags, opts)
}

// optionParams are the engine specific compile arguments: `lo` for PCRE, `syn` and `tr` for GNU.
type optionParams struct {
	locale    starlark.Value
	syntax    string
	translate strOrBytes
}

// pairs returns the UnpackArgs pairs of the engine specific arguments.
func (o *optionParams) pairs(e regex.Engine) []any {
	switch e {
	case regex.PCRE:
		return []any{"lo?", &o.locale}
	case regex.GNU:
		return []any{"syn?", &o.syntax, "tr?", &o.translate}
	}
	return nil
}

// options returns the compile options, or nil if the module defaults apply.
func (o *optionParams) options(m *Module) (*regex.Options, error) {
	if o == nil {
		return nil, nil
	}

	opts := m.config.Options
	custom := false

	switch t := o.locale.(type) {
	case nil, starlark.NoneType:
	case *Tables:
		opts.Locale = t.locale
		custom = true
	case starlark.String:
		opts.Locale = string(t)
		custom = true
	default:
		return nil, fmt.Errorf("%s: got %s for lo, want tables, str or None", m.name, o.locale.Type())
	}

	if o.syntax != "" {
		opts.Syntax = o.syntax
		custom = true
	}

	if o.translate.value != "" || o.translate.isString {
		if len(o.translate.value) != 256 {
			return nil, fmt.Errorf("%s: translation table must have 256 bytes, got %d", m.name, len(o.translate.value))
		}

		var tr [256]byte
		copy(tr[:], o.translate.value)
		opts.Translate = &tr
		custom = true
	}

	if !custom {
		return nil, nil
	}

	return &opts, nil
}

func unpack(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple, o *optionParams, pairs ...any) error {
	m := b.Receiver().(*Module)
	if o != nil {
		pairs = append(pairs, o.pairs(m.engine)...)
	}

	return starlark.UnpackArgs(b.Name(), args, kwargs, pairs...)
}

// rexNew compiles a pattern into a pattern object. The pattern is not cached.
func rexNew(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		patt strOrBytes
		cf   flagsParam
		o    optionParams
	)
	if err := unpack(b, args, kwargs, &o, "patt", &patt, "cf?", &cf); err != nil {
		return nil, err
	}

	m := b.Receiver().(*Module)

	flags, err := cf.resolve(m.engine)
	if err != nil {
		return nil, err
	}

	opts, err := o.options(m)
	if err != nil {
		return nil, err
	}

	return m.newPattern(patt, flags, opts)
}

// rexFind searches the subject for the first match of the pattern, starting at init.
// It returns the tuple (start, end, captures...) or None.
func rexFind(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		patt patternParam
		init int
		cf   flagsParam
		ef   int
		o    optionParams
	)
	if err := unpack(b, args, kwargs, &o, "subj", &subj, "patt", &patt, "init?", &init, "cf?", &cf, "ef?", &ef); err != nil {
		return nil, err
	}

	p, err := b.Receiver().(*Module).compilePattern(patt, cf, &o)
	if err != nil {
		return nil, err
	}

	return p.find(subj, init, ef, true)
}

// rexMatch is like rexFind, but returns the captures only, or the whole match if the pattern has no groups.
func rexMatch(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		patt patternParam
		init int
		cf   flagsParam
		ef   int
		o    optionParams
	)
	if err := unpack(b, args, kwargs, &o, "subj", &subj, "patt", &patt, "init?", &init, "cf?", &cf, "ef?", &ef); err != nil {
		return nil, err
	}

	p, err := b.Receiver().(*Module).compilePattern(patt, cf, &o)
	if err != nil {
		return nil, err
	}

	return p.find(subj, init, ef, false)
}

// rexGmatch returns a stream over all matches of the pattern in the subject.
func rexGmatch(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		patt patternParam
		cf   flagsParam
		ef   int
		o    optionParams
	)
	if err := unpack(b, args, kwargs, &o, "subj", &subj, "patt", &patt, "cf?", &cf, "ef?", &ef); err != nil {
		return nil, err
	}

	p, err := b.Receiver().(*Module).compilePattern(patt, cf, &o)
	if err != nil {
		return nil, err
	}

	return p.gmatch(thread, subj, ef)
}

// rexGsub replaces the matches of the pattern in the subject.
// It returns the tuple (result, number of matches, number of substitutions).
func rexGsub(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		patt patternParam
		repl starlark.Value
		n    limitParam
		cf   flagsParam
		ef   int
		o    optionParams
	)
	if err := unpack(b, args, kwargs, &o, "subj", &subj, "patt", &patt, "repl", &repl, "n?", &n, "cf?", &cf, "ef?", &ef); err != nil {
		return nil, err
	}

	p, err := b.Receiver().(*Module).compilePattern(patt, cf, &o)
	if err != nil {
		return nil, err
	}

	return p.gsub(thread, subj, repl, n, ef)
}

// rexSplit returns a stream over the fields of the subject, separated by the matches of the pattern.
func rexSplit(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		sep  patternParam
		cf   flagsParam
		ef   int
		o    optionParams
	)
	if err := unpack(b, args, kwargs, &o, "subj", &subj, "sep", &sep, "cf?", &cf, "ef?", &ef); err != nil {
		return nil, err
	}

	p, err := b.Receiver().(*Module).compilePattern(sep, cf, &o)
	if err != nil {
		return nil, err
	}

	return p.split(thread, subj, ef)
}

// rexCount returns the number of matches of the pattern in the subject.
func rexCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj strOrBytes
		patt patternParam
		cf   flagsParam
		ef   int
		o    optionParams
	)
	if err := unpack(b, args, kwargs, &o, "subj", &subj, "patt", &patt, "cf?", &cf, "ef?", &ef); err != nil {
		return nil, err
	}

	p, err := b.Receiver().(*Module).compilePattern(patt, cf, &o)
	if err != nil {
		return nil, err
	}

	return p.count(subj, ef)
}

// rexPlainfind searches the subject for a literal string.
// It returns the tuple (start, end) or None.
func rexPlainfind(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		subj, patt strOrBytes
		init       int
		ci         bool
	)
	if err := unpack(b, args, kwargs, nil, "subj", &subj, "patt", &patt, "init?", &init, "ci?", &ci); err != nil {
		return nil, err
	}

	init = startOffset(init, len(subj.value))
	if init > len(subj.value) {
		return starlark.None, nil
	}

	start, end, ok := search.PlainFind(subj.value, patt.value, init, ci)
	if !ok {
		return starlark.None, nil
	}

	return starlark.Tuple{starlark.MakeInt(start), starlark.MakeInt(end)}, nil
}

// rexFlags returns a dict of all compile and execution flags of the engine.
// If a dict is given, the flags are added to it.
func rexFlags(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var d *starlark.Dict
	if err := unpack(b, args, kwargs, nil, "tb?", &d); err != nil {
		return nil, err
	}

	m := b.Receiver().(*Module)

	if d == nil {
		d = starlark.NewDict(len(m.members))
	}

	for _, flags := range []map[string]int{m.engine.CompileFlags(), m.engine.ExecFlags()} {
		for name, v := range flags {
			if err := d.SetKey(starlark.String(name), starlark.MakeInt(v)); err != nil {
				return nil, err
			}
		}
	}

	return d, nil
}
