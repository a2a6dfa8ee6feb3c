package grid

import (
	"bytes"
	"cmp"
	"math"
	"strings"
	"time"
)

// Tolerance is the absolute tolerance of ApproxEqual on numbers.
const Tolerance = 1e-6

// ApproxEqual compares two values the way grid equality and diffing do:
//   - numbers within Tolerance, units must match exactly
//   - date-times at second granularity after UTC normalisation
//   - times at second granularity
//   - coords component-wise within Tolerance
//   - lists element-wise, dicts key-wise with absent keys read as Null
//   - grids with Equal
//
// Values of different kinds are unequal, except a Str against a URI or Bin
// holding the same text. A nil value is read as Null.
func ApproxEqual(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	if a.Kind() != b.Kind() {
		return stringLikeEqual(a, b)
	}

	switch x := a.(type) {
	case Null, Marker, NA, Remove:
		return true
	case Bool:
		return x == b.(Bool)
	case Number:
		y := b.(Number)
		return x.Unit == y.Unit && approxFloat(x.Val, y.Val)
	case Str:
		return x == b.(Str)
	case URI:
		return x == b.(URI)
	case Bin:
		return x == b.(Bin)
	case XStr:
		return xstrEqual(x, b.(XStr))
	case Ref:
		return x.ID == b.(Ref).ID
	case Date:
		return x == b.(Date)
	case Time:
		y := b.(Time)
		return x.Hour == y.Hour && x.Minute == y.Minute && x.Second == y.Second
	case DateTime:
		y := b.(DateTime)
		return x.UTC().Truncate(time.Second).Equal(y.UTC().Truncate(time.Second))
	case Coord:
		y := b.(Coord)
		return approxFloat(x.Lat, y.Lat) && approxFloat(x.Lng, y.Lng)
	case List:
		y := b.(List)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !ApproxEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Dict:
		return DictApproxEqual(x, b.(*Dict))
	case *Grid:
		return Equal(x, b.(*Grid))
	}
	return false
}

// DictApproxEqual compares every key present in either dict.
func DictApproxEqual(a, b *Dict) bool {
	for k, v := range a.All() {
		w, _ := b.Get(k)
		if !ApproxEqual(v, w) {
			return false
		}
	}
	for k, w := range b.All() {
		if a.Has(k) {
			continue
		}
		if !ApproxEqual(nil, w) {
			return false
		}
	}
	return true
}

// Same is the strict equality of the filter "==" operator: same kind,
// exact numeric value, refs by ID, xstrs by decoded payload.
// A unitless number matches a quantity of the same magnitude.
func Same(a, b Value) bool {
	if a == nil || b == nil {
		return IsNull(a) && IsNull(b)
	}
	if a.Kind() != b.Kind() {
		return stringLikeEqual(a, b)
	}
	switch x := a.(type) {
	case Number:
		y := b.(Number)
		if x.Unit != "" && y.Unit != "" && x.Unit != y.Unit {
			return false
		}
		return x.Val == y.Val || (math.IsNaN(x.Val) && math.IsNaN(y.Val))
	case DateTime:
		return x.Equal(b.(DateTime).Time)
	case Time:
		return x == b.(Time)
	case Coord:
		return x == b.(Coord)
	default:
		return ApproxEqual(a, b)
	}
}

// Compare orders two values of the same comparable kind. The boolean is
// false when the kinds differ or have no natural order.
func Compare(a, b Value) (int, bool) {
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return 0, false
	}
	switch x := a.(type) {
	case Bool:
		y := b.(Bool)
		switch {
		case x == y:
			return 0, true
		case !bool(x):
			return -1, true
		default:
			return 1, true
		}
	case Number:
		y := b.(Number)
		if x.Unit != "" && y.Unit != "" && x.Unit != y.Unit {
			return 0, false
		}
		return cmp.Compare(x.Val, y.Val), true
	case Str:
		return strings.Compare(string(x), string(b.(Str))), true
	case URI:
		return strings.Compare(string(x), string(b.(URI))), true
	case Ref:
		return strings.Compare(x.ID, b.(Ref).ID), true
	case Date:
		y := b.(Date)
		return x.In(time.UTC).Compare(y.In(time.UTC)), true
	case Time:
		y := b.(Time)
		return cmp.Or(
			cmp.Compare(x.Hour, y.Hour),
			cmp.Compare(x.Minute, y.Minute),
			cmp.Compare(x.Second, y.Second),
			cmp.Compare(x.Nanosecond, y.Nanosecond),
		), true
	case DateTime:
		return x.Compare(b.(DateTime).Time), true
	}
	return 0, false
}

func approxFloat(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	return math.Abs(a-b) <= Tolerance
}

func xstrEqual(a, b XStr) bool {
	if a.Type != b.Type {
		return false
	}
	da, errA := a.Bytes()
	db, errB := b.Bytes()
	if errA != nil || errB != nil {
		return a.Val == b.Val
	}
	return bytes.Equal(da, db)
}

func stringLikeEqual(a, b Value) bool {
	sa, okA := stringLike(a)
	sb, okB := stringLike(b)
	if !okA || !okB {
		return false
	}
	_, aStr := a.(Str)
	_, bStr := b.(Str)
	return (aStr || bStr) && sa == sb
}

func stringLike(v Value) (string, bool) {
	switch x := v.(type) {
	case Str:
		return string(x), true
	case URI:
		return string(x), true
	case Bin:
		return string(x), true
	}
	return "", false
}
