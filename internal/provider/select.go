package provider

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/pprados/haystackapi/internal/filter"
	"github.com/pprados/haystackapi/internal/grid"
)

// SelectColumns keeps the tags named in sel, separated by commas or
// spaces, in that order. Column metadata is carried over. A blank
// selection or "*" returns g unchanged.
func SelectColumns(g *grid.Grid, sel string) *grid.Grid {
	names := selection(sel)
	if len(names) == 0 {
		return g
	}

	out := grid.New()
	if g.Pinned() {
		out = grid.NewVersion(g.Version())
	}
	for k, v := range g.Meta().All() {
		_ = out.SetMeta(k, v)
	}
	for _, name := range names {
		var meta *grid.Dict
		if c, ok := g.Column(name); ok {
			meta = c.Meta.Clone()
		}
		_ = out.AddColumn(name, meta)
	}
	for _, row := range g.All() {
		kept := grid.NewDict()
		for _, name := range names {
			if v, ok := row.Get(name); ok {
				kept.Set(name, v)
			}
		}
		// The values already fit g's version.
		_ = out.Append(kept)
	}
	return out
}

func selection(sel string) []string {
	sel = strings.TrimSpace(sel)
	if sel == "" || sel == "*" {
		return nil
	}
	fields := strings.FieldsFunc(sel, func(r rune) bool { return r == ',' || r == ' ' })
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if !slices.Contains(names, f) {
			names = append(names, f)
		}
	}
	return names
}

// ReadGrid answers a read request against one version of the entities.
// The result is a copy the caller may modify.
func ReadGrid(g *grid.Grid, req ReadRequest) (*grid.Grid, error) {
	var res *grid.Grid
	if len(req.IDs) > 0 {
		res = g.Slice(0, 0)
		for _, id := range req.IDs {
			if row, ok := g.Get(id); ok {
				_ = res.Append(row)
			}
		}
	} else {
		var err error
		res, err = filter.Apply(g, req.Filter, req.Limit)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
	}
	return SelectColumns(res, req.Select).Copy(), nil
}

// TagValues returns the distinct values of tag across the rows of g, kinds
// grouped in kind order and values sorted within a kind.
func TagValues(g *grid.Grid, tag string) []grid.Value {
	values := []grid.Value{}
	for _, row := range g.All() {
		v, ok := row.Get(tag)
		if !ok || grid.IsNull(v) {
			continue
		}
		if slices.ContainsFunc(values, func(seen grid.Value) bool { return grid.ApproxEqual(seen, v) }) {
			continue
		}
		values = append(values, v)
	}
	slices.SortStableFunc(values, func(a, b grid.Value) int {
		if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
			return c
		}
		c, _ := grid.Compare(a, b)
		return c
	})
	return values
}
