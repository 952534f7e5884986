package regex

import (
	"unicode"
	"unicode/utf8"
)

// isASCIIString checks, if the string only contains ASCII characters.
func isASCIIString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// runeText is a subject decoded into runes, for engines that match on runes.
// Invalid UTF-8 bytes are decoded as the rune with the same value, one rune per byte.
type runeText struct {
	chars  []rune
	byteOf []int // rune index -> byte offset; nil if the text is ASCII
	runeOf []int // byte offset -> index of the first rune starting at or after it; nil if ASCII
}

func newRuneText(s string) *runeText {
	if isASCIIString(s) { // offsets are the identity
		return &runeText{chars: []rune(s)}
	}

	t := &runeText{
		chars:  make([]rune, 0, len(s)),
		byteOf: make([]int, 0, len(s)+1),
		runeOf: make([]int, 0, len(s)+1),
	}

	for i := 0; i < len(s); {
		ch, size := utf8.DecodeRuneInString(s[i:])
		if ch == utf8.RuneError && size <= 1 {
			ch = rune(s[i])
			size = 1
		}

		r := len(t.chars)

		t.chars = append(t.chars, ch)
		t.byteOf = append(t.byteOf, i)

		t.runeOf = append(t.runeOf, r)
		for j := 1; j < size; j++ {
			t.runeOf = append(t.runeOf, r+1) // inside a rune: continue with the next one
		}

		i += size
	}

	t.byteOf = append(t.byteOf, len(s))
	t.runeOf = append(t.runeOf, len(t.chars))

	return t
}

// toRune converts a byte offset to a rune index.
func (t *runeText) toRune(pos int) int {
	if t.runeOf == nil {
		return pos
	}
	return t.runeOf[pos]
}

// toByte converts a rune index to a byte offset.
func (t *runeText) toByte(i int) int {
	if t.byteOf == nil {
		return i
	}
	return t.byteOf[i]
}
