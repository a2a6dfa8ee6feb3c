package provider

import (
	"fmt"

	"github.com/pprados/haystackapi/internal/grid"
)

// HisGrid builds the hisRead answer from a series of rows carrying a "ts"
// DateTime. Rows outside r, or without a usable ts, are dropped; the rest
// are sorted by ts. Bounded ranges are reported in the hisStart and hisEnd
// metadata.
func HisGrid(ref grid.Ref, series *grid.Grid, r DateRange) *grid.Grid {
	out := grid.New()
	_ = out.SetMeta("id", ref)
	if !r.Start.IsZero() {
		_ = out.SetMeta("hisStart", grid.DT(r.Start))
	}
	if !r.End.IsZero() {
		_ = out.SetMeta("hisEnd", grid.DT(r.End))
	}
	_ = out.AddColumn("ts", nil)
	_ = out.AddColumn("val", nil)
	if series == nil {
		return out
	}
	for _, c := range series.Columns() {
		_ = out.AddColumn(c.Name, c.Meta.Clone())
	}
	for _, row := range series.All() {
		ts, ok := row.Get("ts")
		if !ok {
			continue
		}
		dt, ok := ts.(grid.DateTime)
		if !ok || !r.Contains(dt.Time) {
			continue
		}
		// Series rows are stored in a grid already; the unpinned answer
		// takes any version they need.
		_ = out.Append(row.Clone())
	}
	out.Sort("ts")
	return out
}

// ValidateSeries checks that every row of a history grid has a DateTime ts.
func ValidateSeries(series *grid.Grid) error {
	for i, row := range series.All() {
		ts, ok := row.Get("ts")
		if !ok {
			return fmt.Errorf("history row %d: missing ts", i)
		}
		if _, ok := ts.(grid.DateTime); !ok {
			return fmt.Errorf("history row %d: ts is %s, not dateTime", i, ts.Kind())
		}
	}
	return nil
}

// Levels is the number of priority levels of a writable point.
const Levels = 17

// Level is one slot of a priority array. A nil Val is an empty slot.
type Level struct {
	Val grid.Value
	Who string
}

// PriorityArray holds the levels of a writable point, level 1 first.
type PriorityArray [Levels]Level

// Write sets level (1..17). A nil or Null val relinquishes it.
func (pa *PriorityArray) Write(level int, val grid.Value, who string) error {
	if level < 1 || level > Levels {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	if val == nil || grid.IsNull(val) {
		pa[level-1] = Level{}
		return nil
	}
	pa[level-1] = Level{Val: val, Who: who}
	return nil
}

// Effective returns the value of the highest priority level set.
func (pa *PriorityArray) Effective() (grid.Value, int, bool) {
	for i, l := range pa {
		if l.Val != nil {
			return l.Val, i + 1, true
		}
	}
	return nil, 0, false
}

// Grid returns the pointWrite read answer: one row per level.
func (pa *PriorityArray) Grid() *grid.Grid {
	g := grid.New()
	for _, name := range []string{"level", "levelDis", "val", "who"} {
		_ = g.AddColumn(name, nil)
	}
	for i, l := range pa {
		row := grid.NewDict(
			grid.P("level", grid.N(float64(i+1))),
			grid.P("levelDis", grid.Str(LevelDis(i+1))),
		)
		if l.Val != nil {
			row.Set("val", l.Val)
			if l.Who != "" {
				row.Set("who", grid.Str(l.Who))
			}
		}
		_ = g.Append(row)
	}
	return g
}

// LevelDis names a priority level.
func LevelDis(level int) string {
	switch level {
	case 1:
		return "emergency"
	case 8:
		return "manual"
	case 16:
		return "default"
	case 17:
		return "relinquishDefault"
	}
	return fmt.Sprintf("Level %d", level)
}
