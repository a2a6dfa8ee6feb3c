package filter

import (
	"strings"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/grid"
)

// Node is a filter expression node: Path, *Binary, *Unary or Literal.
type Node interface {
	node()
	String() string
}

// Path is a tag name followed by the names reached through refs,
// "a->b->c".
type Path []string

func (Path) node() {}

func (p Path) String() string {
	return strings.Join(p, "->")
}

// Op is a binary operator.
type Op int

const (
	OpOr Op = iota
	OpAnd
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var opText = [...]string{
	OpOr:  "or",
	OpAnd: "and",
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
}

func (o Op) String() string {
	return opText[o]
}

// IsComparison reports whether o compares a path with a literal.
func (o Op) IsComparison() bool {
	return o >= OpEq
}

// Binary is "left op right". For comparisons Left is a Path and Right a
// Literal; for and/or both sides are expressions.
type Binary struct {
	Op    Op
	Left  Node
	Right Node
}

func (*Binary) node() {}

func (b *Binary) String() string {
	if b.Op.IsComparison() {
		return b.Left.String() + " " + b.Op.String() + " " + b.Right.String()
	}
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}

// UnaryOp is the presence test applied to a path.
type UnaryOp int

const (
	OpHas UnaryOp = iota
	OpNot
)

// Unary is "path" (has) or "not path".
type Unary struct {
	Op   UnaryOp
	Path Path
}

func (*Unary) node() {}

func (u *Unary) String() string {
	if u.Op == OpNot {
		return "not " + u.Path.String()
	}
	return u.Path.String()
}

// Literal is the value side of a comparison.
type Literal struct {
	Value grid.Value
}

func (Literal) node() {}

func (l Literal) String() string {
	switch v := l.Value.(type) {
	case grid.Bool:
		if v {
			return "true"
		}
		return "false"
	}
	text, err := codec.EncodeScalar(l.Value, codec.Zinc, grid.LatestVersion)
	if err != nil {
		return "?"
	}
	return text
}

// AST is a parsed filter. It is immutable once built.
type AST struct {
	Text string
	Root Node
}

func (a *AST) String() string {
	return a.Root.String()
}
