package filter

import (
	"github.com/pprados/haystackapi/internal/grid"
)

// Compile lowers the AST to a tree of closures. The result agrees with
// Eval on every row and does no type switching at match time.
func Compile(a *AST) grid.Predicate {
	return compileNode(a.Root)
}

func compileNode(n Node) grid.Predicate {
	switch x := n.(type) {
	case *Binary:
		switch x.Op {
		case OpOr:
			left, right := compileNode(x.Left), compileNode(x.Right)
			return func(g *grid.Grid, row *grid.Dict) bool {
				return left(g, row) || right(g, row)
			}
		case OpAnd:
			left, right := compileNode(x.Left), compileNode(x.Right)
			return func(g *grid.Grid, row *grid.Dict) bool {
				return left(g, row) && right(g, row)
			}
		}
		return compileComparison(x.Op, x.Left.(Path), x.Right.(Literal).Value)
	case *Unary:
		get := compilePath(x.Path)
		if x.Op == OpNot {
			return func(g *grid.Grid, row *grid.Dict) bool {
				_, found := get(g, row)
				return !found
			}
		}
		return func(g *grid.Grid, row *grid.Dict) bool {
			_, found := get(g, row)
			return found
		}
	case Path:
		get := compilePath(x)
		return func(g *grid.Grid, row *grid.Dict) bool {
			_, found := get(g, row)
			return found
		}
	}
	return func(*grid.Grid, *grid.Dict) bool { return false }
}

type getter func(g *grid.Grid, row *grid.Dict) (grid.Value, bool)

// compilePath specialises the common single-tag path.
func compilePath(path Path) getter {
	if len(path) == 1 {
		name := path[0]
		return func(_ *grid.Grid, row *grid.Dict) (grid.Value, bool) {
			v, ok := row.Get(name)
			if !ok || grid.IsNull(v) {
				return nil, false
			}
			return v, true
		}
	}
	path = append(Path(nil), path...)
	return func(g *grid.Grid, row *grid.Dict) (grid.Value, bool) {
		return resolve(g, row, path)
	}
}

func compileComparison(op Op, path Path, lit grid.Value) grid.Predicate {
	get := compilePath(path)
	switch op {
	case OpEq:
		return func(g *grid.Grid, row *grid.Dict) bool {
			v, found := get(g, row)
			return found && grid.Same(v, lit)
		}
	case OpNe:
		return func(g *grid.Grid, row *grid.Dict) bool {
			v, found := get(g, row)
			return found && !grid.Same(v, lit)
		}
	}
	var accept func(c int) bool
	switch op {
	case OpLt:
		accept = func(c int) bool { return c < 0 }
	case OpLe:
		accept = func(c int) bool { return c <= 0 }
	case OpGt:
		accept = func(c int) bool { return c > 0 }
	default:
		accept = func(c int) bool { return c >= 0 }
	}
	return func(g *grid.Grid, row *grid.Dict) bool {
		v, found := get(g, row)
		if !found {
			return false
		}
		c, ok := grid.Compare(v, lit)
		return ok && accept(c)
	}
}
