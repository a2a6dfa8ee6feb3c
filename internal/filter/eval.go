package filter

import (
	"github.com/pprados/haystackapi/internal/grid"
)

// resolve walks path from row. A Ref met before the last segment is
// followed through g's id index; a nested dict is entered directly. The
// boolean is false when any step is missing, which is the "not found"
// result that makes every comparison false.
func resolve(g *grid.Grid, row *grid.Dict, path Path) (grid.Value, bool) {
	cur := row
	for i, name := range path {
		v, ok := cur.Get(name)
		if !ok || grid.IsNull(v) {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		switch next := v.(type) {
		case grid.Ref:
			if g == nil {
				return nil, false
			}
			target, found := g.Get(next)
			if !found {
				return nil, false
			}
			cur = target
		case *grid.Dict:
			cur = next
		default:
			return nil, false
		}
	}
	return nil, false
}

// compare applies a comparison operator to a resolved value.
func compare(op Op, v, lit grid.Value) bool {
	switch op {
	case OpEq:
		return grid.Same(v, lit)
	case OpNe:
		return !grid.Same(v, lit)
	}
	c, ok := grid.Compare(v, lit)
	if !ok {
		return false
	}
	switch op {
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	}
	return false
}

// Eval interprets the AST against one row of g.
func Eval(a *AST, g *grid.Grid, row *grid.Dict) bool {
	return evalNode(a.Root, g, row)
}

func evalNode(n Node, g *grid.Grid, row *grid.Dict) bool {
	switch x := n.(type) {
	case *Binary:
		switch x.Op {
		case OpOr:
			return evalNode(x.Left, g, row) || evalNode(x.Right, g, row)
		case OpAnd:
			return evalNode(x.Left, g, row) && evalNode(x.Right, g, row)
		}
		v, found := resolve(g, row, x.Left.(Path))
		if !found {
			return false
		}
		return compare(x.Op, v, x.Right.(Literal).Value)
	case *Unary:
		_, found := resolve(g, row, x.Path)
		if x.Op == OpNot {
			return !found
		}
		return found
	case Path:
		_, found := resolve(g, row, x)
		return found
	}
	return false
}
