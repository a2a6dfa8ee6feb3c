package filter

import (
	"errors"
	"fmt"

	"github.com/pprados/haystackapi/internal/codec"
)

// ParseError reports malformed filter text. Pos is a byte offset.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("filter parse error at offset %d: %s", e.Pos, e.Msg)
}

type parser struct {
	lex *lexer
	tok token
}

// parse builds the AST without going through the cache.
func parse(text string) (*AST, error) {
	p := &parser{lex: &lexer{input: text}}
	p.advance()
	if p.tok.kind == tokEOF {
		return nil, &ParseError{Pos: 0, Msg: "empty filter"}
	}
	root, err := p.orExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %s", p.tok)
	}
	return &AST{Text: text, Root: root}, nil
}

func (p *parser) advance() {
	p.tok = p.lex.next()
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Pos: p.tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) orExpr() (Node, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		p.advance()
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) andExpr() (Node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd {
		p.advance()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) term() (Node, error) {
	switch p.tok.kind {
	case tokLParen:
		p.advance()
		inner, err := p.orExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, p.errorf("expected ')', found %s", p.tok)
		}
		p.advance()
		return inner, nil
	case tokNot:
		p.advance()
		path, err := p.path()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: OpNot, Path: path}, nil
	case tokName:
		path, err := p.path()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokOp {
			return &Unary{Op: OpHas, Path: path}, nil
		}
		op := p.tok.op
		// The literal is scanned straight from the input after the operator.
		v, pos, err := p.lex.value()
		if err != nil {
			var perr *codec.ParseError
			if errors.As(err, &perr) {
				return nil, &ParseError{Pos: pos + perr.Col - 1, Msg: perr.Msg}
			}
			return nil, &ParseError{Pos: pos, Msg: err.Error()}
		}
		p.advance()
		return &Binary{Op: op, Left: path, Right: Literal{Value: v}}, nil
	}
	return nil, p.errorf("unexpected %s", p.tok)
}

func (p *parser) path() (Path, error) {
	if p.tok.kind != tokName {
		return nil, p.errorf("expected tag name, found %s", p.tok)
	}
	path := Path{p.tok.text}
	p.advance()
	for p.tok.kind == tokArrow {
		p.advance()
		if p.tok.kind != tokName {
			return nil, p.errorf("expected tag name after '->', found %s", p.tok)
		}
		path = append(path, p.tok.text)
		p.advance()
	}
	return path, nil
}
