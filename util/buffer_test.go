package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferAppend(t *testing.T) {
	require := require.New(t)

	b := NewBuffer(0)
	defer b.Release()

	require.NoError(b.AppendString("foo"))
	require.NoError(b.AppendByte('-'))
	require.NoError(b.AppendString(""))
	require.NoError(b.AppendString("bar"))

	require.Equal("foo-bar", b.String())
	require.Equal(7, b.Len())
}

func TestBufferGrowth(t *testing.T) {
	require := require.New(t)

	b := &Buffer{}

	require.NoError(b.AppendString("abc"))
	require.Equal(6, b.Cap()) // 2 * (length + incoming)

	require.NoError(b.AppendString("de"))
	require.Equal(6, b.Cap())

	s := strings.Repeat("x", 10)
	require.NoError(b.AppendString(s))
	require.Equal(2*(5+10), b.Cap())
	require.Equal("abcde"+s, b.String())
	require.True(b.Len() <= b.Cap())
}

func TestBufferClear(t *testing.T) {
	require := require.New(t)

	b := NewBuffer(0)
	defer b.Release()

	require.NoError(b.AppendString(strings.Repeat("y", 1000)))
	c := b.Cap()

	b.Clear()
	require.Equal(0, b.Len())
	require.Equal(c, b.Cap())
	require.Equal("", b.String())
}

func TestBufferAppendBuffer(t *testing.T) {
	require := require.New(t)

	a := NewBuffer(0)
	defer a.Release()
	o := NewBuffer(0)
	defer o.Release()

	require.NoError(a.AppendString("ab"))
	require.NoError(o.AppendString("cd"))
	require.NoError(a.AppendBuffer(o))

	require.Equal("abcd", a.String())
	require.Equal("cd", o.String())
}

func TestBufferLimit(t *testing.T) {
	require := require.New(t)

	b := NewBuffer(8)
	defer b.Release()

	require.NoError(b.AppendString("12345678"))

	err := b.AppendByte('9')
	require.Error(err)
	require.True(ErrBufferOverflow.Is(err))
	require.Equal("12345678", b.String())
}

func TestBufferStringIsCopy(t *testing.T) {
	require := require.New(t)

	b := NewBuffer(0)
	defer b.Release()

	require.NoError(b.AppendString("abc"))
	s := b.String()

	b.Clear()
	require.NoError(b.AppendString("xyz"))
	require.Equal("abc", s)
}
