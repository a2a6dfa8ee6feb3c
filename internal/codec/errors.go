package codec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownFormat      = errors.New("unknown format")
	ErrUnsupportedVersion = errors.New("value not supported by grid version")
)

// ParseError reports malformed wire text with its position (1-based).
type ParseError struct {
	Format Format
	Line   int
	Col    int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s parse error at line %d, column %d: %s", e.Format, e.Line, e.Col, e.Msg)
}

// newParseError locates offset in src.
func newParseError(f Format, src string, offset int, format string, args ...any) *ParseError {
	offset = min(max(offset, 0), len(src))
	before := src[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndexByte(before, '\n')
	return &ParseError{Format: f, Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func versionError(kind fmt.Stringer, ver fmt.Stringer) error {
	return fmt.Errorf("%w: %s under version %s", ErrUnsupportedVersion, kind, ver)
}
