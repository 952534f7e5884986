package rex

import (
	_ "embed"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/magnetde/starlark-rex/regex"
)

//go:embed rex_test.star
var rexScript string

// TestRex runs the Starlark tests of rex_test.star against all modules.
func TestRex(t *testing.T) {
	predeclared := Modules(DefaultConfig())

	helpers := map[string]func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error){
		"eval":           evalFunc,
		"trycatch":       tryCatchFunc,
		"capture_output": captureOutput,
	}

	for name, fn := range helpers {
		predeclared[name] = starlark.NewBuiltin(name, fn)
	}

	opts := syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}

	_, prog, err := starlark.SourceProgramOptions(&opts, "rex_test.star", rexScript, predeclared.Has)
	if err != nil {
		t.Fatal(err)
	}

	thread := &starlark.Thread{
		Name: "test rex",
		Print: func(thread *starlark.Thread, msg string) {
			fmt.Println(msg)
		},
	}

	_, err = prog.Init(thread, predeclared)
	if err != nil {
		if e, ok := err.(*starlark.EvalError); ok {
			t.Fatal(e.Backtrace())
		}
		t.Fatal(err)
	}
}

func evalFunc(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		code string
		vars *starlark.Dict
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &code, &vars); err != nil {
		return nil, err
	}

	env := starlark.StringDict{}

	if vars != nil {
		for _, item := range vars.Items() {
			if s, ok := item[0].(starlark.String); ok {
				env[string(s)] = item[1]
			} else {
				env[item[0].String()] = item[1]
			}
		}
	}

	opts := syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}

	return starlark.EvalOptions(&opts, thread, "eval", code, env)
}

func tryCatchFunc(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("%s: got %d arguments, want at least 1", b.Name(), len(args))
	}

	fn, ok := args[0].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("got %s, want callable", args[0].Type())
	}

	res, err := starlark.Call(thread, fn, args[1:], kwargs)
	if err != nil {
		msg := err.Error()
		if e, ok := err.(*starlark.EvalError); ok {
			msg = e.Msg
		}

		return starlark.Tuple{starlark.None, starlark.String(msg)}, nil
	}

	return starlark.Tuple{res, starlark.None}, nil
}

func captureOutput(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn); err != nil {
		return nil, err
	}

	oldPrint := thread.Print

	var output strings.Builder
	thread.Print = func(thread *starlark.Thread, msg string) {
		output.WriteString(msg)
		output.WriteByte('\n')
	}

	_, err := starlark.Call(thread, fn, nil, nil)
	thread.Print = oldPrint

	if err != nil {
		return nil, err
	}

	return starlark.String(output.String()), nil
}

func TestModuleCache(t *testing.T) {
	require := require.New(t)

	config := DefaultConfig()
	config.CacheSize = 2

	m := NewModule(regex.PCRE, config)
	a := strOrBytes{value: "a", isString: true}
	b := strOrBytes{value: "b", isString: true}
	c := strOrBytes{value: "c", isString: true}

	p1, err := m.compile(a, 0, nil)
	require.NoError(err)

	p2, err := m.compile(a, 0, nil)
	require.NoError(err)
	require.True(p1 == p2)

	// different flags and types are different entries
	p3, err := m.compile(a, regex.PCRECaseless, nil)
	require.NoError(err)
	require.True(p1 != p3)

	_, err = m.compile(b, 0, nil)
	require.NoError(err)
	require.Equal(2, m.list.Len())
	require.Len(m.cache, 2)

	// "a" without flags was the least recently used pattern
	p4, err := m.compile(a, 0, nil)
	require.NoError(err)
	require.True(p1 != p4)

	// freed patterns are compiled again
	p4.Regex().Free()
	p5, err := m.compile(a, 0, nil)
	require.NoError(err)
	require.True(p4 != p5)
	require.False(p5.Regex().Freed())

	// patterns with own options bypass the cache
	p6, err := m.compile(c, 0, &regex.Options{Locale: "C"})
	require.NoError(err)
	p7, err := m.compile(c, 0, &regex.Options{Locale: "C"})
	require.NoError(err)
	require.True(p6 != p7)
	require.True(m.list.Len() <= 2)
}

func TestModuleCacheDisabled(t *testing.T) {
	config := DefaultConfig()
	config.CacheSize = 0

	m := NewModule(regex.GNU, config)
	a := strOrBytes{value: "a", isString: true}

	p1, err := m.compile(a, 0, nil)
	require.NoError(t, err)
	p2, err := m.compile(a, 0, nil)
	require.NoError(t, err)

	require.True(t, p1 != p2)
	require.Equal(t, 0, m.list.Len())
}

func TestModules(t *testing.T) {
	mods := Modules(DefaultConfig())
	require.Len(t, mods, 3)

	for _, name := range []string{"rex_pcre", "rex_posix", "rex_gnu"} {
		v, ok := mods[name]
		require.True(t, ok, name)
		require.Equal(t, "<module "+name+">", v.String())
	}

	pcre := mods["rex_pcre"].(*Module)
	require.Contains(t, pcre.AttrNames(), "maketables")
	require.NotContains(t, mods["rex_posix"].(*Module).AttrNames(), "maketables")
}

func TestStreamErrorFailsLoop(t *testing.T) {
	config := DefaultConfig()
	config.Options.MatchTimeout = 20 * time.Millisecond

	predeclared := Modules(config)
	predeclared["subject"] = starlark.String("ok ok " + strings.Repeat("a", 90) + "!")

	scripts := map[string]string{
		"gmatch": `
def f():
    n = 0
    for x in rex_pcre.gmatch(subject, "ok|(a+)+$"):
        n += 1
    return n

n = f()
`,
		"split": `
for f in rex_pcre.split(subject, " |(a+)+$"):
    pass
`,
		"list": `
l = list(rex_pcre.new("ok|(a+)+$").gmatch(subject))
`,
	}

	for name, src := range scripts {
		t.Run(name, func(t *testing.T) {
			thread := &starlark.Thread{Name: name}
			opts := syntax.FileOptions{TopLevelControl: true}

			globals, err := starlark.ExecFileOptions(&opts, thread, name+".star", src, predeclared)
			require.Error(t, err)
			require.Contains(t, err.Error(), "cancelled")
			require.Contains(t, err.Error(), "pcre error")
			require.NotContains(t, globals, "n")
			require.NotContains(t, globals, "l")
		})
	}
}
