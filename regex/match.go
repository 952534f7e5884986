package regex

// Match is a view of the capture offsets produced by one execution.
// Group 0 is the whole match. A group that did not participate in the match is invalid,
// which is different from a group that matched the empty string.
//
// The offsets of a Match filled by Subject.Exec are reused by the next execution;
// use Clone to keep them.
type Match struct {
	text    string
	offsets []int
}

// NewMatch creates a match over text from the offset pairs of groups 0..N.
// Negative offsets mark invalid groups.
func NewMatch(text string, offsets []int) *Match {
	return &Match{text: text, offsets: offsets}
}

// Subject returns the searched text.
func (m *Match) Subject() string { return m.text }

// NumGroups returns the number of capture groups N, not counting group 0.
func (m *Match) NumGroups() int {
	return len(m.offsets)/2 - 1
}

// Valid reports whether group i participated in the match.
func (m *Match) Valid(i int) bool {
	return i >= 0 && 2*i+1 < len(m.offsets) && m.offsets[2*i] >= 0 && m.offsets[2*i+1] >= 0
}

// Start returns the start offset of group i, or -1 if the group is invalid.
func (m *Match) Start(i int) int {
	if !m.Valid(i) {
		return -1
	}
	return m.offsets[2*i]
}

// End returns the end offset of group i, or -1 if the group is invalid.
func (m *Match) End(i int) int {
	if !m.Valid(i) {
		return -1
	}
	return m.offsets[2*i+1]
}

// Len returns the length of group i, or 0 if the group is invalid.
func (m *Match) Len(i int) int {
	if !m.Valid(i) {
		return 0
	}
	return m.offsets[2*i+1] - m.offsets[2*i]
}

// Span returns the bounds of the whole match.
func (m *Match) Span() (int, int) {
	return m.offsets[0], m.offsets[1]
}

// Empty reports whether the whole match has zero length.
func (m *Match) Empty() bool {
	return m.Len(0) == 0
}

// Group returns the text of group i. The boolean is false if the group is invalid.
func (m *Match) Group(i int) (string, bool) {
	if !m.Valid(i) {
		return "", false
	}
	return m.text[m.offsets[2*i]:m.offsets[2*i+1]], true
}

// Offsets returns a copy of the offset pairs.
func (m *Match) Offsets() []int {
	return append([]int(nil), m.offsets...)
}

// Clone returns a match that does not share storage with m.
func (m *Match) Clone() *Match {
	return &Match{text: m.text, offsets: m.Offsets()}
}
