package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pprados/haystackapi/internal/grid"
)

// Haystack JSON tags a string's kind with a one letter prefix.
const (
	jsonStr      = "s:"
	jsonNumber   = "n:"
	jsonRef      = "r:"
	jsonURI      = "u:"
	jsonBin      = "b:"
	jsonXStr     = "x:"
	jsonCoord    = "c:"
	jsonDate     = "d:"
	jsonTime     = "h:"
	jsonDateTime = "t:"
	jsonMarker   = "m:"
	jsonNA       = "z:"
	jsonRemove   = "-:"
)

func encodeJSON(g *grid.Grid) (string, error) {
	var b bytes.Buffer
	if err := writeJSONGrid(&b, g); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeJSONGrid(b *bytes.Buffer, g *grid.Grid) error {
	ver := g.Version()
	b.WriteString(`{"meta":{"ver":`)
	writeJSONString(b, ver.String())
	for k, v := range g.Meta().All() {
		b.WriteByte(',')
		if err := writeJSONPair(b, k, v, ver); err != nil {
			return fmt.Errorf("meta %s: %w", k, err)
		}
	}

	b.WriteString(`},"cols":[`)
	cols := g.Columns()
	for i, c := range cols {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`{"name":`)
		writeJSONString(b, c.Name)
		for k, v := range c.Meta.All() {
			b.WriteByte(',')
			if err := writeJSONPair(b, k, v, ver); err != nil {
				return fmt.Errorf("column %s meta %s: %w", c.Name, k, err)
			}
		}
		b.WriteByte('}')
	}

	b.WriteString(`],"rows":[`)
	for i, row := range g.All() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('{')
		first := true
		for _, c := range cols {
			v, ok := row.Get(c.Name)
			if !ok || grid.IsNull(v) {
				continue
			}
			if !first {
				b.WriteByte(',')
			}
			first = false
			if err := writeJSONPair(b, c.Name, v, ver); err != nil {
				return fmt.Errorf("row %d %s: %w", i, c.Name, err)
			}
		}
		b.WriteByte('}')
	}
	b.WriteString("]}")
	return nil
}

func writeJSONPair(b *bytes.Buffer, k string, v grid.Value, ver grid.Version) error {
	writeJSONString(b, k)
	b.WriteByte(':')
	return writeJSONValue(b, v, ver)
}

func writeJSONValue(b *bytes.Buffer, v grid.Value, ver grid.Version) error {
	if v == nil {
		v = grid.Null{}
	}
	if ver.Less(grid.MinVersion(v)) {
		return versionError(v.Kind(), ver)
	}
	switch x := v.(type) {
	case grid.Null:
		b.WriteString("null")
	case grid.Bool:
		if x {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case grid.Marker:
		writeJSONString(b, jsonMarker)
	case grid.NA:
		writeJSONString(b, jsonNA)
	case grid.Remove:
		if ver.Less(grid.Ver3_0) {
			writeJSONString(b, jsonXStr)
		} else {
			writeJSONString(b, jsonRemove)
		}
	case grid.Number:
		s := jsonNumber + formatFloat(x.Val)
		if x.Unit != "" {
			s += " " + x.Unit
		}
		writeJSONString(b, s)
	case grid.Str:
		writeJSONString(b, jsonStr+string(x))
	case grid.URI:
		writeJSONString(b, jsonURI+string(x))
	case grid.Bin:
		writeJSONString(b, jsonBin+string(x))
	case grid.XStr:
		writeJSONString(b, jsonXStr+x.Type+":"+x.Val)
	case grid.Ref:
		s := jsonRef + x.ID
		if x.Dis != "" {
			s += " " + x.Dis
		}
		writeJSONString(b, s)
	case grid.Date:
		writeJSONString(b, jsonDate+x.String())
	case grid.Time:
		writeJSONString(b, jsonTime+x.String())
	case grid.DateTime:
		writeJSONString(b, jsonDateTime+x.String())
	case grid.Coord:
		writeJSONString(b, jsonCoord+formatCoord(x.Lat)+","+formatCoord(x.Lng))
	case grid.List:
		b.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeJSONValue(b, item, ver); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case *grid.Dict:
		b.WriteByte('{')
		first := true
		for k, item := range x.All() {
			if !first {
				b.WriteByte(',')
			}
			first = false
			if err := writeJSONPair(b, k, item, ver); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case *grid.Grid:
		return writeJSONGrid(b, x)
	default:
		return fmt.Errorf("unsupported value %T", v)
	}
	return nil
}

// writeJSONString writes s as a JSON string literal, leaving <, > and &
// unescaped. Runes >= U+0080 become \uXXXX so the document is pure ASCII.
func writeJSONString(b *bytes.Buffer, s string) {
	start := b.Len()
	enc := json.NewEncoder(b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	lit := asciiOnly(string(b.Bytes()[start:b.Len()-1]), 0) // Encode appends a newline
	b.Truncate(start)
	b.WriteString(lit)
}
