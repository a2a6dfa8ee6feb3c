package grid

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Value is a sealed interface over the Haystack scalar kinds.
// Only the types in this package implement it; consumers dispatch with
// exhaustive type switches.
//
// Implementations:
//   - Null, Bool, Number, Str, URI, Bin, XStr, Ref
//   - Date, Time, DateTime, Coord
//   - Marker, NA, Remove
//   - List, *Dict, *Grid
type Value interface {
	Kind() Kind
	value() // Sealed
}

// Kind identifies the active variant of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindStr
	KindURI
	KindBin
	KindXStr
	KindRef
	KindDate
	KindTime
	KindDateTime
	KindCoord
	KindMarker
	KindNA
	KindRemove
	KindList
	KindDict
	KindGrid
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindNumber:   "number",
	KindStr:      "str",
	KindURI:      "uri",
	KindBin:      "bin",
	KindXStr:     "xstr",
	KindRef:      "ref",
	KindDate:     "date",
	KindTime:     "time",
	KindDateTime: "dateTime",
	KindCoord:    "coord",
	KindMarker:   "marker",
	KindNA:       "na",
	KindRemove:   "remove",
	KindList:     "list",
	KindDict:     "dict",
	KindGrid:     "grid",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Null is the explicit null scalar. Rows treat a Null cell as absent.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) value()     {}

// Bool is a boolean scalar.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) value()     {}

// Number is a floating point scalar with an optional unit.
// A Number with a non-empty Unit is a quantity.
type Number struct {
	Val  float64
	Unit string
}

func (Number) Kind() Kind { return KindNumber }
func (Number) value()     {}

// N builds a unitless Number.
func N(v float64) Number {
	return Number{Val: v}
}

// Q builds a quantity.
func Q(v float64, unit string) Number {
	return Number{Val: v, Unit: unit}
}

// Str is a plain string scalar.
type Str string

func (Str) Kind() Kind { return KindStr }
func (Str) value()     {}

// URI is a uniform resource identifier.
type URI string

func (URI) Kind() Kind { return KindURI }
func (URI) value()     {}

// Bin is a binary blob reference holding only its MIME type.
type Bin string

func (Bin) Kind() Kind { return KindBin }
func (Bin) value()     {}

// XStr is an extended string: a type name plus its textual payload.
// The "hex" and "b64" types carry encoded binary data.
type XStr struct {
	Type string
	Val  string
}

func (XStr) Kind() Kind { return KindXStr }
func (XStr) value()     {}

// NewXStr encodes data for the hex or b64 types; any other type keeps
// data verbatim as text.
func NewXStr(typ string, data []byte) XStr {
	switch typ {
	case "hex":
		return XStr{Type: typ, Val: hex.EncodeToString(data)}
	case "b64":
		return XStr{Type: typ, Val: base64.StdEncoding.EncodeToString(data)}
	default:
		return XStr{Type: typ, Val: string(data)}
	}
}

// Bytes returns the payload, decoded for the hex and b64 types.
func (x XStr) Bytes() ([]byte, error) {
	switch x.Type {
	case "hex":
		return hex.DecodeString(x.Val)
	case "b64":
		return base64.StdEncoding.DecodeString(x.Val)
	default:
		return []byte(x.Val), nil
	}
}

// Ref is an entity reference. Two refs are equal when their IDs are equal;
// the display string is informational.
type Ref struct {
	ID  string
	Dis string
}

func (Ref) Kind() Kind { return KindRef }
func (Ref) value()     {}
func (Ref) key()       {}

// R builds a Ref without display string.
func R(id string) Ref {
	return Ref{ID: id}
}

func (r Ref) String() string {
	if r.Dis != "" {
		return fmt.Sprintf("@%s %q", r.ID, r.Dis)
	}
	return "@" + r.ID
}

// Date is a calendar date without time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (Date) Kind() Kind { return KindDate }
func (Date) value()     {}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// In returns midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date n days later (earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time is a wall clock time without date or zone.
type Time struct {
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

func (Time) Kind() Kind { return KindTime }
func (Time) value()     {}

// TimeOf returns the wall clock time of t in its own location.
func TimeOf(t time.Time) Time {
	return Time{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Nanosecond: t.Nanosecond()}
}

func (t Time) String() string {
	s := fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	if t.Nanosecond != 0 {
		frac := fmt.Sprintf("%09d", t.Nanosecond)
		s += "." + strings.TrimRight(frac, "0")
	}
	return s
}

// DateTime is an instant carrying its time zone as the location of the
// embedded time.Time.
type DateTime struct {
	time.Time
}

func (DateTime) Kind() Kind { return KindDateTime }
func (DateTime) value()     {}

// DT wraps t.
func DT(t time.Time) DateTime {
	return DateTime{Time: t}
}

// ISO returns the ISO 8601 form without the zone name.
func (d DateTime) ISO() string {
	return d.Time.Format("2006-01-02T15:04:05.999999999Z07:00")
}

// String returns the ISO form followed by the Haystack zone name.
func (d DateTime) String() string {
	return d.ISO() + " " + ZoneName(d.Location())
}

// Coord is a geographic coordinate in decimal degrees.
type Coord struct {
	Lat float64
	Lng float64
}

func (Coord) Kind() Kind { return KindCoord }
func (Coord) value()     {}

// Marker is the valueless tag scalar.
type Marker struct{}

func (Marker) Kind() Kind { return KindMarker }
func (Marker) value()     {}

// NA is the "not available" scalar. It requires version 3.0.
type NA struct{}

func (NA) Kind() Kind { return KindNA }
func (NA) value()     {}

// Remove is the tombstone scalar used by patches.
type Remove struct{}

func (Remove) Kind() Kind { return KindRemove }
func (Remove) value()     {}

// List is an ordered sequence of values. It requires version 3.0.
type List []Value

func (List) Kind() Kind { return KindList }
func (List) value()     {}

// Clone returns a deep copy of l.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	for i, v := range l {
		out[i] = CloneValue(v)
	}
	return out
}

// CloneValue returns a deep copy of the mutable kinds (List, *Dict, *Grid);
// the remaining kinds are immutable and returned as is.
func CloneValue(v Value) Value {
	switch val := v.(type) {
	case List:
		return val.Clone()
	case *Dict:
		return val.Clone()
	case *Grid:
		return val.Copy()
	default:
		return v
	}
}

// IsNull reports whether v is nil or the Null scalar.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}
