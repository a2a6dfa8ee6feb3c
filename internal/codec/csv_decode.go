package codec

import (
	"strings"

	"github.com/pprados/haystackapi/internal/grid"
)

// csvField is a raw field. Quotedness decides how the text is typed.
type csvField struct {
	pos    int
	text   string
	quoted bool
}

type csvRecord []csvField

func (r csvRecord) blank() bool {
	return len(r) == 1 && !r[0].quoted && r[0].text == ""
}

// csvReader splits RFC 4180 text into records. Unlike encoding/csv it
// reports whether each field was quoted.
type csvReader struct {
	src string
	pos int
}

func (r *csvReader) errorAt(pos int, format string, args ...any) error {
	return newParseError(CSV, r.src, pos, format, args...)
}

func (r *csvReader) eof() bool {
	return r.pos >= len(r.src)
}

// record reads one line of fields.
func (r *csvReader) record() (csvRecord, error) {
	var rec csvRecord
	for {
		f, err := r.field()
		if err != nil {
			return nil, err
		}
		rec = append(rec, f)
		if r.eof() {
			return rec, nil
		}
		switch c := r.src[r.pos]; c {
		case ',':
			r.pos++
		case '\r':
			r.pos++
			if !r.eof() && r.src[r.pos] == '\n' {
				r.pos++
			}
			return rec, nil
		case '\n':
			r.pos++
			return rec, nil
		default:
			return nil, r.errorAt(r.pos, "unexpected %q after field", c)
		}
	}
}

func (r *csvReader) field() (csvField, error) {
	start := r.pos
	if r.eof() || r.src[r.pos] != '"' {
		end := strings.IndexAny(r.src[r.pos:], ",\r\n")
		if end < 0 {
			end = len(r.src) - r.pos
		}
		r.pos += end
		return csvField{pos: start, text: r.src[start:r.pos]}, nil
	}

	r.pos++
	var b strings.Builder
	for {
		i := strings.IndexByte(r.src[r.pos:], '"')
		if i < 0 {
			return csvField{}, r.errorAt(start, "unterminated quoted field")
		}
		b.WriteString(r.src[r.pos : r.pos+i])
		r.pos += i + 1
		if !r.eof() && r.src[r.pos] == '"' {
			b.WriteByte('"')
			r.pos++
			continue
		}
		return csvField{pos: start, text: b.String(), quoted: true}, nil
	}
}

func decodeCSV(src string) (*grid.Grid, error) {
	grids, err := decodeCSVAll(src)
	if err != nil {
		return nil, err
	}
	switch len(grids) {
	case 0:
		return grid.New(), nil
	case 1:
		return grids[0], nil
	}
	return nil, newParseError(CSV, src, len(src), "expected one grid, found %d", len(grids))
}

// decodeCSVAll reads grids separated by blank lines. Each grid starts with
// its header line.
func decodeCSVAll(src string) ([]*grid.Grid, error) {
	r := &csvReader{src: src}
	grids := []*grid.Grid{}
	var header csvRecord
	var rows []csvRecord
	flush := func() error {
		if header == nil {
			return nil
		}
		g, err := r.build(header, rows)
		if err != nil {
			return err
		}
		grids = append(grids, g)
		header, rows = nil, nil
		return nil
	}

	for !r.eof() {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		switch {
		case rec.blank():
			if err := flush(); err != nil {
				return nil, err
			}
		case header == nil:
			header = rec
		default:
			rows = append(rows, rec)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return grids, nil
}

func (r *csvReader) build(header csvRecord, rows []csvRecord) (*grid.Grid, error) {
	g := grid.New()
	names := make([]string, 0, len(header))
	for _, f := range header {
		if f.text == "" {
			return nil, r.errorAt(f.pos, "empty column name")
		}
		names = append(names, f.text)
	}
	if len(names) == 1 && names[0] == emptyColumn && len(rows) == 0 {
		names = nil
	}
	for _, name := range names {
		if err := g.AddColumn(name, nil); err != nil {
			return nil, r.errorAt(header[0].pos, "%v", err)
		}
	}

	for _, rec := range rows {
		row := grid.NewDict()
		for i, f := range rec {
			if i >= len(names) {
				if f.text != "" || f.quoted {
					return nil, r.errorAt(f.pos, "row has more fields than columns")
				}
				continue
			}
			v, err := csvValue(f)
			if err != nil {
				return nil, r.errorAt(f.pos, "%v", err)
			}
			if !grid.IsNull(v) {
				row.Set(names[i], v)
			}
		}
		if err := g.Append(row); err != nil {
			return nil, r.errorAt(rec[0].pos, "%v", err)
		}
	}
	return g, nil
}

// csvValue types a field: quoted text is a string unless it carries a
// complex zinc value; unquoted text is inferred.
func csvValue(f csvField) (grid.Value, error) {
	if f.quoted {
		if looksComplex(f.text) {
			if v, n, err := ScanScalar(f.text); err == nil && n == len(f.text) {
				return v, nil
			}
		}
		s, err := unescape(f.text, false)
		if err != nil {
			return grid.Str(f.text), nil
		}
		return grid.Str(s), nil
	}

	text := strings.TrimSpace(f.text)
	switch text {
	case "":
		return nil, nil
	case string(checkmark):
		return grid.Marker{}, nil
	case "true":
		return grid.Bool(true), nil
	case "false":
		return grid.Bool(false), nil
	}
	if v, n, err := ScanScalar(text); err == nil && n == len(text) {
		return v, nil
	}
	return grid.Str(f.text), nil
}
