package syntax

import (
	"fmt"
)

// ParseFlagString converts a string of flag letters, such as "im", into compile flags.
// Letters maps each accepted letter to its flag bit.
func ParseFlagString(letters map[byte]int, s string) (int, error) {
	if letters == nil {
		return 0, fmt.Errorf("flag strings are not supported")
	}

	flags := 0

	for i := 0; i < len(s); i++ {
		f, ok := letters[s[i]]
		if !ok {
			return 0, fmt.Errorf("unknown flag %q", s[i])
		}

		flags |= f
	}

	return flags, nil
}
