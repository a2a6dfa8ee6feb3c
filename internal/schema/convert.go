package schema

import (
	"math"

	"github.com/pprados/haystackapi/internal/grid"
)

func rowData(row *grid.Dict) map[string]any {
	out := make(map[string]any, row.Len())
	for k, v := range row.All() {
		if _, ok := v.(grid.Remove); ok {
			continue
		}
		out[k] = data(v)
	}
	return out
}

func data(v grid.Value) any {
	switch x := v.(type) {
	case nil, grid.Null, grid.NA:
		return nil
	case grid.Marker:
		return true
	case grid.Bool:
		return bool(x)
	case grid.Number:
		switch {
		case math.IsNaN(x.Val):
			return "NaN"
		case math.IsInf(x.Val, 1):
			return "INF"
		case math.IsInf(x.Val, -1):
			return "-INF"
		}
		return x.Val
	case grid.Str:
		return string(x)
	case grid.URI:
		return string(x)
	case grid.Bin:
		return string(x)
	case grid.XStr:
		return x.Type + "(" + x.Val + ")"
	case grid.Ref:
		return "@" + x.ID
	case grid.Date:
		return x.String()
	case grid.Time:
		return x.String()
	case grid.DateTime:
		return x.ISO()
	case grid.Coord:
		return map[string]any{"lat": x.Lat, "lng": x.Lng}
	case grid.List:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = data(item)
		}
		return out
	case *grid.Dict:
		return rowData(x)
	case *grid.Grid:
		out := make([]any, 0, x.Len())
		for _, row := range x.All() {
			out = append(out, rowData(row))
		}
		return out
	}
	return nil
}
