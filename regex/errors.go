package regex

import (
	"fmt"

	errors "gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrUseAfterFree is returned by every operation on a pattern that has been freed.
	ErrUseAfterFree = errors.NewKind("attempt to access the deleted regex")

	// ErrInvalidCaptureIndex is returned when a replacement template references a group
	// the pattern does not have.
	ErrInvalidCaptureIndex = errors.NewKind("invalid capture index %%%d in replacement string")

	// ErrInvalidReplacement is returned when a replacement callback or table yields a value
	// that is neither a string nor a request to keep the original text.
	ErrInvalidReplacement = errors.NewKind("invalid replacement value (a %s)")

	// ErrUnsupportedFlag is returned when flag bits are passed that an engine cannot honor.
	ErrUnsupportedFlag = errors.NewKind("%s: unsupported flags 0x%x")

	// ErrUnknownSyntax is returned for an unknown GNU syntax name.
	ErrUnknownSyntax = errors.NewKind("%s: unknown syntax %q")
)

// CompileError reports a malformed pattern.
type CompileError struct {
	Offset  int // byte offset in the pattern; -1 if unknown
	Message string
}

func (e *CompileError) Error() string {
	if e.Offset < 0 {
		return e.Message
	}

	return fmt.Sprintf("%s (pattern offset: %d)", e.Message, e.Offset)
}

// Engine error codes.
const (
	CodeInternal   = -1
	CodeMatchLimit = -8 // the match ran out of its time or step budget
)

// EngineError reports a failure inside an engine during execution.
// It is never used for a search that simply did not match.
type EngineError struct {
	Engine  string
	Code    int
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Engine, e.Code, e.Message)
}
