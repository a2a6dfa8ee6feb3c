package codec

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pprados/haystackapi/internal/grid"
)

// Encode renders g in format f.
func Encode(g *grid.Grid, f Format) (string, error) {
	switch f {
	case Zinc:
		return encodeZinc(g)
	case JSON:
		return encodeJSON(g)
	case CSV:
		return encodeCSV(g)
	}
	return "", fmt.Errorf("encode: %w: %s", ErrUnknownFormat, f)
}

// Decode reads one grid from text in format f.
func Decode(text string, f Format) (*grid.Grid, error) {
	var (
		g   *grid.Grid
		err error
	)
	switch f {
	case Zinc:
		g, err = decodeZinc(text)
	case JSON:
		g, err = decodeJSON(text)
	case CSV:
		g, err = decodeCSV(text)
	default:
		return nil, fmt.Errorf("decode: %w: %s", ErrUnknownFormat, f)
	}
	if err != nil {
		slog.Debug("grid decode failed", "format", f, "error", err)
		return nil, err
	}
	return g, nil
}

// EncodeAll renders several grids in one payload: zinc and CSV grids are
// separated by a blank line, JSON grids form an array.
func EncodeAll(grids []*grid.Grid, f Format) (string, error) {
	if f == JSON {
		var b bytes.Buffer
		b.WriteByte('[')
		for i, g := range grids {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeJSONGrid(&b, g); err != nil {
				return "", err
			}
		}
		b.WriteByte(']')
		return b.String(), nil
	}

	parts := make([]string, 0, len(grids))
	for _, g := range grids {
		text, err := Encode(g, f)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}

// DecodeAll reads every grid of a payload written by EncodeAll.
func DecodeAll(text string, f Format) ([]*grid.Grid, error) {
	var (
		grids []*grid.Grid
		err   error
	)
	switch f {
	case Zinc:
		grids, err = decodeZincAll(text)
	case JSON:
		grids, err = decodeJSONAll(text)
	case CSV:
		grids, err = decodeCSVAll(text)
	default:
		return nil, fmt.Errorf("decode: %w: %s", ErrUnknownFormat, f)
	}
	if err != nil {
		slog.Debug("grid decode failed", "format", f, "error", err)
		return nil, err
	}
	return grids, nil
}

// EncodeScalar renders a single value as it would appear in a grid of
// version ver.
func EncodeScalar(v grid.Value, f Format, ver grid.Version) (string, error) {
	switch f {
	case Zinc:
		var b strings.Builder
		if err := writeZincScalar(&b, v, ver); err != nil {
			return "", err
		}
		return b.String(), nil
	case JSON:
		var b bytes.Buffer
		if err := writeJSONValue(&b, v, ver); err != nil {
			return "", err
		}
		return b.String(), nil
	case CSV:
		return csvCell(v, ver)
	}
	return "", fmt.Errorf("encode: %w: %s", ErrUnknownFormat, f)
}

// DecodeScalar reads a single value. Values that version ver cannot carry
// are rejected with ErrUnsupportedVersion.
func DecodeScalar(text string, f Format, ver grid.Version) (grid.Value, error) {
	var (
		v   grid.Value
		err error
	)
	switch f {
	case Zinc:
		v, err = decodeZincScalar(text)
	case JSON:
		r := newJSONReader(text)
		var n *jsonNode
		if n, err = r.read(); err == nil {
			v, err = r.value(n)
		}
	case CSV:
		v, err = decodeCSVScalar(text)
	default:
		return nil, fmt.Errorf("decode: %w: %s", ErrUnknownFormat, f)
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = grid.Null{}
	}
	if ver.Less(grid.MinVersion(v)) {
		return nil, versionError(v.Kind(), ver)
	}
	return v, nil
}

// ScanScalar parses the longest zinc scalar at the start of text and
// returns it with the number of bytes consumed.
func ScanScalar(text string) (grid.Value, int, error) {
	p := newZincParser(text)
	v, err := p.parseScalar()
	if err != nil {
		return nil, 0, err
	}
	return v, p.pos, nil
}

func decodeZincScalar(text string) (grid.Value, error) {
	p := newZincParser(text)
	p.skipSpaces()
	v, err := p.parseScalar()
	if err != nil {
		return nil, err
	}
	p.skipBlank()
	if !p.eof() {
		return nil, p.errorf("unexpected content after value")
	}
	return v, nil
}

func decodeCSVScalar(text string) (grid.Value, error) {
	r := &csvReader{src: strings.TrimRight(text, "\r\n")}
	rec, err := r.record()
	if err != nil {
		return nil, err
	}
	if len(rec) != 1 || !r.eof() {
		return nil, r.errorAt(0, "expected a single field")
	}
	v, err := csvValue(rec[0])
	if err != nil {
		return nil, r.errorAt(0, "%v", err)
	}
	return v, nil
}
