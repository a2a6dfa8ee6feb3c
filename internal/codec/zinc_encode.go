package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pprados/haystackapi/internal/grid"
)

// emptyColumn stands in for the column line of a grid without columns.
const emptyColumn = "empty"

func encodeZinc(g *grid.Grid) (string, error) {
	var b strings.Builder
	if err := writeZincGrid(&b, g); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeZincGrid(b *strings.Builder, g *grid.Grid) error {
	ver := g.Version()
	b.WriteString(`ver:"`)
	b.WriteString(ver.String())
	b.WriteByte('"')
	if g.Meta().Len() > 0 {
		b.WriteByte(' ')
		if err := writeZincMeta(b, g.Meta(), ver); err != nil {
			return err
		}
	}
	b.WriteByte('\n')

	cols := g.Columns()
	if len(cols) == 0 {
		b.WriteString(emptyColumn)
	}
	for i, c := range cols {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c.Name)
		if c.Meta.Len() > 0 {
			b.WriteByte(' ')
			if err := writeZincMeta(b, c.Meta, ver); err != nil {
				return err
			}
		}
	}
	b.WriteByte('\n')

	for _, row := range g.All() {
		for i, c := range cols {
			if i > 0 {
				b.WriteByte(',')
			}
			v, ok := row.Get(c.Name)
			if !ok {
				// A lone empty cell would read as a blank line.
				if len(cols) == 1 {
					b.WriteByte('N')
				}
				continue
			}
			if err := writeZincScalar(b, v, ver); err != nil {
				return fmt.Errorf("row %s: %w", c.Name, err)
			}
		}
		b.WriteByte('\n')
	}
	return nil
}

func writeZincMeta(b *strings.Builder, meta *grid.Dict, ver grid.Version) error {
	first := true
	for k, v := range meta.All() {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteString(k)
		if _, ok := v.(grid.Marker); ok {
			continue
		}
		b.WriteByte(':')
		if err := writeZincScalar(b, v, ver); err != nil {
			return fmt.Errorf("meta %s: %w", k, err)
		}
	}
	return nil
}

func writeZincScalar(b *strings.Builder, v grid.Value, ver grid.Version) error {
	if v == nil {
		v = grid.Null{}
	}
	if ver.Less(grid.MinVersion(v)) {
		return versionError(v.Kind(), ver)
	}
	switch x := v.(type) {
	case grid.Null:
		b.WriteByte('N')
	case grid.Marker:
		b.WriteByte('M')
	case grid.NA:
		b.WriteString("NA")
	case grid.Remove:
		b.WriteByte('R')
	case grid.Bool:
		if x {
			b.WriteByte('T')
		} else {
			b.WriteByte('F')
		}
	case grid.Number:
		b.WriteString(formatNumber(x))
	case grid.Str:
		b.WriteByte('"')
		b.WriteString(escapeStr(string(x)))
		b.WriteByte('"')
	case grid.URI:
		b.WriteByte('`')
		b.WriteString(escapeURI(string(x)))
		b.WriteByte('`')
	case grid.Bin:
		b.WriteString("Bin(")
		b.WriteString(string(x))
		b.WriteByte(')')
	case grid.XStr:
		b.WriteString(x.Type)
		b.WriteString(`("`)
		b.WriteString(escapeStr(x.Val))
		b.WriteString(`")`)
	case grid.Ref:
		b.WriteByte('@')
		b.WriteString(x.ID)
		if x.Dis != "" {
			b.WriteString(` "`)
			b.WriteString(escapeStr(x.Dis))
			b.WriteByte('"')
		}
	case grid.Date:
		b.WriteString(x.String())
	case grid.Time:
		b.WriteString(x.String())
	case grid.DateTime:
		b.WriteString(x.String())
	case grid.Coord:
		b.WriteString("C(")
		b.WriteString(formatCoord(x.Lat))
		b.WriteByte(',')
		b.WriteString(formatCoord(x.Lng))
		b.WriteByte(')')
	case grid.List:
		b.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeZincScalar(b, item, ver); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case *grid.Dict:
		b.WriteByte('{')
		if err := writeZincMeta(b, x, ver); err != nil {
			return err
		}
		b.WriteByte('}')
	case *grid.Grid:
		b.WriteString("<<")
		if err := writeZincGrid(b, x); err != nil {
			return err
		}
		b.WriteString(">>")
	default:
		return fmt.Errorf("unsupported value %T", v)
	}
	return nil
}

// formatNumber renders a number with its unit, INF/-INF/NaN for the
// special values.
func formatNumber(n grid.Number) string {
	return formatFloat(n.Val) + n.Unit
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
