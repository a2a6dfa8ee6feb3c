// Package patch computes and applies grid deltas.
//
// A patch is an ordinary grid, so it travels in every wire format. Its
// metadata carries the "diff_" marker. Metadata, column metadata and row
// tags that disappear are set to Remove. A row that disappears is kept as
// a tombstone tagged "remove_": its id alone when it has one, its full
// content otherwise. A column declared with "remove_" in its metadata is
// not a column of the merged grid.
//
// For any grids a and b, Merge(a, Diff(a, b)) equals b.
package patch

import (
	"fmt"

	"github.com/pprados/haystackapi/internal/grid"
)

const (
	// DiffTag marks a grid as a patch.
	DiffTag = "diff_"
	// RemoveTag marks a tombstone row, or a column to drop.
	RemoveTag = "remove_"
)

// IsPatch reports whether g carries the patch marker.
func IsPatch(g *grid.Grid) bool {
	v, ok := g.Meta().Get(DiffTag)
	if !ok {
		return false
	}
	_, marker := v.(grid.Marker)
	return marker
}

// Diff returns the patch turning base into target.
//
// Rows are paired by id. Rows without an id are paired by content: each
// base row takes the first target row, in target order, that has no id,
// equals it and is not yet taken.
func Diff(base, target *grid.Grid) *grid.Grid {
	out := grid.New()
	_ = out.SetMeta(DiffTag, grid.Marker{})
	diffMeta(out, base.Meta(), target.Meta())

	for _, c := range target.Columns() {
		meta := c.Meta.Clone()
		if old, ok := base.Column(c.Name); ok {
			meta = dictDelta(old.Meta, c.Meta)
		}
		_ = out.AddColumn(c.Name, meta)
	}
	for _, c := range base.Columns() {
		if !target.HasColumn(c.Name) {
			_ = out.AddColumn(c.Name, dropColumn())
		}
	}

	consumed := make([]bool, target.Len())
	positions := make(map[string]int, target.Len())
	for i, row := range target.All() {
		if id, ok := row.ID(); ok {
			positions[id.ID] = i
		}
	}

	var rows []*grid.Dict
	for _, b := range base.All() {
		if id, ok := b.ID(); ok {
			ti, found := positions[id.ID]
			if !found {
				rows = append(rows, grid.NewDict(grid.P("id", id), grid.P(RemoveTag, grid.Remove{})))
				continue
			}
			consumed[ti] = true
			delta := dictDelta(b, target.Row(ti))
			if delta.Len() > 0 {
				row := grid.NewDict(grid.P("id", id))
				for k, v := range delta.All() {
					row.Set(k, v)
				}
				rows = append(rows, row)
			}
			continue
		}

		matched := false
		for ti, t := range target.All() {
			if consumed[ti] || t.Has("id") {
				continue
			}
			if grid.DictApproxEqual(b, t) {
				consumed[ti] = true
				matched = true
				break
			}
		}
		if !matched {
			tomb := b.Clone()
			tomb.Set(RemoveTag, grid.Remove{})
			rows = append(rows, tomb)
		}
	}
	for ti, t := range target.All() {
		if !consumed[ti] {
			rows = append(rows, t.Clone())
		}
	}

	for _, row := range rows {
		for k := range row.All() {
			if !out.HasColumn(k) {
				_ = out.AddColumn(k, dropColumn())
			}
		}
		// Rows come from valid grids; the patch is unpinned so any
		// value fits.
		_ = out.Append(row)
	}

	ver := target.Version()
	if ver.Less(out.Version()) {
		ver = out.Version()
	}
	_ = out.SetVersion(ver)
	return out
}

// Merge applies patch p to a copy of base.
func Merge(base, p *grid.Grid) (*grid.Grid, error) {
	out := base.Copy()
	ver := p.Version()
	if ver.Less(out.Version()) {
		ver = out.Version()
	}
	if err := out.SetVersion(ver); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	for k, v := range p.Meta().All() {
		if k == DiffTag {
			continue
		}
		if _, ok := v.(grid.Remove); ok {
			out.Meta().Delete(k)
			continue
		}
		if err := out.SetMeta(k, v); err != nil {
			return nil, fmt.Errorf("merge meta %s: %w", k, err)
		}
	}

	if err := mergeColumns(out, p); err != nil {
		return nil, err
	}

	for i, pr := range p.All() {
		if err := mergeRow(out, pr); err != nil {
			return nil, fmt.Errorf("merge row %d: %w", i, err)
		}
	}
	return out, nil
}

// mergeColumns lays out the columns in patch order. Base columns the patch
// does not mention are kept after them.
func mergeColumns(out, p *grid.Grid) error {
	baseCols := out.Columns()
	for _, c := range baseCols {
		out.RemoveColumn(c.Name)
	}

	for _, c := range p.Columns() {
		if c.Meta.Has(RemoveTag) {
			continue
		}
		meta := grid.NewDict()
		for _, old := range baseCols {
			if old.Name == c.Name {
				meta = old.Meta.Clone()
			}
		}
		applyDelta(meta, c.Meta)
		if err := out.AddColumn(c.Name, meta); err != nil {
			return fmt.Errorf("merge column %s: %w", c.Name, err)
		}
	}
	for _, c := range baseCols {
		if !p.HasColumn(c.Name) {
			if err := out.AddColumn(c.Name, c.Meta); err != nil {
				return fmt.Errorf("merge column %s: %w", c.Name, err)
			}
		}
	}
	return nil
}

func mergeRow(out *grid.Grid, pr *grid.Dict) error {
	removing := pr.Has(RemoveTag)
	content := pr.Without(RemoveTag)

	if id, ok := pr.ID(); ok {
		existing, found := out.Get(id)
		switch {
		case found && removing:
			out.Delete(id)
			return nil
		case found:
			merged := existing.Clone()
			applyDelta(merged, content)
			return out.Replace(id, merged)
		case removing:
			return nil
		}
		return out.Append(stripRemoved(content))
	}

	if !removing {
		return out.Append(stripRemoved(content))
	}
	for i, row := range out.All() {
		if !row.Has("id") && grid.DictApproxEqual(row, content) {
			out.Delete(grid.Pos(i))
			break
		}
	}
	return nil
}

// dictDelta returns the tags of to that differ from from, plus Remove for
// the tags only from has.
func dictDelta(from, to *grid.Dict) *grid.Dict {
	delta := grid.NewDict()
	for k, v := range to.All() {
		old, ok := from.Get(k)
		if !ok || !grid.ApproxEqual(old, v) {
			delta.Set(k, v)
		}
	}
	for k := range from.All() {
		if !to.Has(k) {
			delta.Set(k, grid.Remove{})
		}
	}
	return delta
}

func diffMeta(out *grid.Grid, from, to *grid.Dict) {
	for k, v := range dictDelta(from, to).All() {
		if k == DiffTag {
			continue
		}
		_ = out.SetMeta(k, v)
	}
}

// applyDelta writes delta into d, deleting the tags set to Remove.
func applyDelta(d, delta *grid.Dict) {
	for k, v := range delta.All() {
		if _, ok := v.(grid.Remove); ok {
			d.Delete(k)
			continue
		}
		d.Set(k, v)
	}
}

func stripRemoved(d *grid.Dict) *grid.Dict {
	out := grid.NewDict()
	applyDelta(out, d)
	return out
}

func dropColumn() *grid.Dict {
	return grid.NewDict(grid.P(RemoveTag, grid.Remove{}))
}
