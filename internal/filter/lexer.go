package filter

import (
	"fmt"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/grid"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokAnd
	tokOr
	tokNot
	tokArrow
	tokLParen
	tokRParen
	tokOp
	tokIllegal
)

type token struct {
	kind tokenKind
	text string
	op   Op
	pos  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of filter"
	case tokName:
		return fmt.Sprintf("name %q", t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

var keywords = map[string]tokenKind{
	"and": tokAnd,
	"or":  tokOr,
	"not": tokNot,
}

// lexer splits filter text into tokens. Literal values are not tokens:
// the parser asks for one with value() right after a comparison operator.
type lexer struct {
	input string
	pos   int
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) next() token {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: start}
	}

	c := l.input[l.pos]
	two := ""
	if l.pos+1 < len(l.input) {
		two = l.input[l.pos : l.pos+2]
	}
	switch {
	case isNameStart(c):
		for l.pos < len(l.input) && isNameChar(l.input[l.pos]) {
			l.pos++
		}
		text := l.input[start:l.pos]
		if kind, ok := keywords[text]; ok {
			return token{kind: kind, text: text, pos: start}
		}
		return token{kind: tokName, text: text, pos: start}
	case two == "->":
		l.pos += 2
		return token{kind: tokArrow, text: two, pos: start}
	case two == "==" || two == "!=" || two == "<=" || two == ">=":
		l.pos += 2
		return token{kind: tokOp, text: two, op: opFromText(two), pos: start}
	case c == '<' || c == '>':
		l.pos++
		return token{kind: tokOp, text: string(c), op: opFromText(string(c)), pos: start}
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}
	}
	l.pos++
	return token{kind: tokIllegal, text: string(c), pos: start}
}

// value reads a literal: a zinc scalar, or true/false.
func (l *lexer) value() (grid.Value, int, error) {
	l.skipSpace()
	start := l.pos
	for _, word := range []string{"true", "false"} {
		end := start + len(word)
		if end <= len(l.input) && l.input[start:end] == word && (end == len(l.input) || !isNameChar(l.input[end])) {
			l.pos = end
			return grid.Bool(word == "true"), start, nil
		}
	}
	if start >= len(l.input) {
		return nil, start, fmt.Errorf("expected a value")
	}
	v, n, err := codec.ScanScalar(l.input[start:])
	if err != nil {
		return nil, start, err
	}
	l.pos += n
	return v, start, nil
}

func opFromText(s string) Op {
	switch s {
	case "==":
		return OpEq
	case "!=":
		return OpNe
	case "<":
		return OpLt
	case "<=":
		return OpLe
	case ">":
		return OpGt
	default:
		return OpGe
	}
}

func isNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}
