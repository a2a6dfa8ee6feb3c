package codec

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pprados/haystackapi/internal/grid"
)

// jsonNode is a JSON value read with its key order intact.
type jsonNode struct {
	pos  int
	kind byte // '{', '[', 's', 'n', 'b', '0'
	keys []string
	vals []*jsonNode
	str  string
	num  json.Number
	flag bool
}

func (n *jsonNode) field(k string) (*jsonNode, bool) {
	for i, key := range n.keys {
		if key == k {
			return n.vals[i], true
		}
	}
	return nil, false
}

func (n *jsonNode) isGrid() bool {
	if n.kind != '{' {
		return false
	}
	_, hasMeta := n.field("meta")
	_, hasCols := n.field("cols")
	return hasMeta && hasCols
}

type jsonReader struct {
	src string
	dec *json.Decoder
}

func newJSONReader(src string) *jsonReader {
	dec := json.NewDecoder(strings.NewReader(src))
	dec.UseNumber()
	return &jsonReader{src: src, dec: dec}
}

func (r *jsonReader) errorAt(pos int, format string, args ...any) error {
	return newParseError(JSON, r.src, pos, format, args...)
}

func (r *jsonReader) wrap(err error) error {
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		return r.errorAt(int(syntax.Offset), "%v", err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return r.errorAt(len(r.src), "unexpected end of input")
	}
	return r.errorAt(int(r.dec.InputOffset()), "%v", err)
}

// read returns the whole document, rejecting trailing content.
func (r *jsonReader) read() (*jsonNode, error) {
	n, err := r.node()
	if err != nil {
		return nil, err
	}
	if _, err := r.dec.Token(); !errors.Is(err, io.EOF) {
		return nil, r.errorAt(int(r.dec.InputOffset()), "unexpected content after value")
	}
	return n, nil
}

func (r *jsonReader) node() (*jsonNode, error) {
	pos := int(r.dec.InputOffset())
	tok, err := r.dec.Token()
	if err != nil {
		return nil, r.wrap(err)
	}
	n := &jsonNode{pos: pos}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n.kind = '{'
			for r.dec.More() {
				keyTok, err := r.dec.Token()
				if err != nil {
					return nil, r.wrap(err)
				}
				key, _ := keyTok.(string)
				val, err := r.node()
				if err != nil {
					return nil, err
				}
				n.keys = append(n.keys, key)
				n.vals = append(n.vals, val)
			}
		case '[':
			n.kind = '['
			for r.dec.More() {
				val, err := r.node()
				if err != nil {
					return nil, err
				}
				n.vals = append(n.vals, val)
			}
		default:
			return nil, r.errorAt(pos, "unexpected %q", t)
		}
		if _, err := r.dec.Token(); err != nil {
			return nil, r.wrap(err)
		}
	case string:
		n.kind, n.str = 's', t
	case json.Number:
		n.kind, n.num = 'n', t
	case bool:
		n.kind, n.flag = 'b', t
	case nil:
		n.kind = '0'
	}
	return n, nil
}

func decodeJSON(src string) (*grid.Grid, error) {
	r := newJSONReader(src)
	n, err := r.read()
	if err != nil {
		return nil, err
	}
	if !n.isGrid() {
		return nil, r.errorAt(n.pos, "expected a grid object with meta, cols and rows")
	}
	return r.grid(n)
}

func decodeJSONAll(src string) ([]*grid.Grid, error) {
	r := newJSONReader(src)
	n, err := r.read()
	if err != nil {
		return nil, err
	}
	nodes := []*jsonNode{n}
	if n.kind == '[' {
		nodes = n.vals
	}
	grids := make([]*grid.Grid, 0, len(nodes))
	for _, item := range nodes {
		if !item.isGrid() {
			return nil, r.errorAt(item.pos, "expected a grid object")
		}
		g, err := r.grid(item)
		if err != nil {
			return nil, err
		}
		grids = append(grids, g)
	}
	return grids, nil
}

func (r *jsonReader) grid(n *jsonNode) (*grid.Grid, error) {
	meta, _ := n.field("meta")
	cols, _ := n.field("cols")
	rows, hasRows := n.field("rows")
	if meta.kind != '{' || cols.kind != '[' || (hasRows && rows.kind != '[') {
		return nil, r.errorAt(n.pos, "malformed grid object")
	}

	ver := grid.LatestVersion
	if vn, ok := meta.field("ver"); ok {
		var err error
		if vn.kind != 's' {
			return nil, r.errorAt(vn.pos, "ver must be a string")
		}
		if ver, err = grid.ParseVersion(vn.str); err != nil {
			return nil, r.errorAt(vn.pos, "%v", err)
		}
	}
	g := grid.NewVersion(ver)

	for i, k := range meta.keys {
		if k == "ver" {
			continue
		}
		v, err := r.value(meta.vals[i])
		if err != nil {
			return nil, err
		}
		if err := g.SetMeta(k, v); err != nil {
			return nil, r.errorAt(meta.vals[i].pos, "%v", err)
		}
	}

	var names []string
	for _, c := range cols.vals {
		nameNode, ok := c.field("name")
		if c.kind != '{' || !ok || nameNode.kind != 's' {
			return nil, r.errorAt(c.pos, "column needs a name")
		}
		colMeta := grid.NewDict()
		for i, k := range c.keys {
			if k == "name" {
				continue
			}
			v, err := r.value(c.vals[i])
			if err != nil {
				return nil, err
			}
			colMeta.Set(k, v)
		}
		names = append(names, nameNode.str)
		if err := g.AddColumn(nameNode.str, colMeta); err != nil {
			return nil, r.errorAt(c.pos, "%v", err)
		}
	}
	if hasRows && len(rows.vals) == 0 && len(names) == 1 && names[0] == emptyColumn {
		g.RemoveColumn(emptyColumn)
	}
	if !hasRows {
		return g, nil
	}

	for _, rn := range rows.vals {
		if rn.kind != '{' {
			return nil, r.errorAt(rn.pos, "row must be an object")
		}
		row, err := r.dict(rn)
		if err != nil {
			return nil, err
		}
		if err := g.Append(row); err != nil {
			return nil, r.errorAt(rn.pos, "%v", err)
		}
	}
	return g, nil
}

func (r *jsonReader) dict(n *jsonNode) (*grid.Dict, error) {
	d := grid.NewDict()
	for i, k := range n.keys {
		v, err := r.value(n.vals[i])
		if err != nil {
			return nil, err
		}
		if !grid.IsNull(v) {
			d.Set(k, v)
		}
	}
	return d, nil
}

func (r *jsonReader) value(n *jsonNode) (grid.Value, error) {
	switch n.kind {
	case '0':
		return grid.Null{}, nil
	case 'b':
		return grid.Bool(n.flag), nil
	case 'n':
		f, err := n.num.Float64()
		if err != nil {
			return nil, r.errorAt(n.pos, "invalid number %s", n.num)
		}
		return grid.N(f), nil
	case '[':
		list := make(grid.List, 0, len(n.vals))
		for _, item := range n.vals {
			v, err := r.value(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case '{':
		if n.isGrid() {
			return r.grid(n)
		}
		return r.dict(n)
	}
	v, err := decodeJSONString(n.str)
	if err != nil {
		return nil, r.errorAt(n.pos, "%v", err)
	}
	return v, nil
}

// decodeJSONString interprets a kind-prefixed JSON string. Text without a
// recognised prefix is a plain string.
func decodeJSONString(s string) (grid.Value, error) {
	if len(s) < 2 || s[1] != ':' {
		return grid.Str(s), nil
	}
	body := s[2:]
	switch s[:2] {
	case jsonStr:
		return grid.Str(body), nil
	case jsonMarker:
		return grid.Marker{}, nil
	case jsonNA:
		return grid.NA{}, nil
	case jsonRemove:
		return grid.Remove{}, nil
	case jsonNumber:
		return decodeJSONNumber(body)
	case jsonRef:
		id, dis, _ := strings.Cut(body, " ")
		return grid.Ref{ID: id, Dis: dis}, nil
	case jsonURI:
		return grid.URI(body), nil
	case jsonBin:
		return grid.Bin(body), nil
	case jsonXStr:
		if body == "" {
			return grid.Remove{}, nil
		}
		typ, val, ok := strings.Cut(body, ":")
		if !ok {
			return nil, errors.New("xstr needs type:value")
		}
		return grid.XStr{Type: typ, Val: val}, nil
	case jsonCoord:
		lat, lng, ok := strings.Cut(body, ",")
		if !ok {
			return nil, errors.New("coord needs lat,lng")
		}
		la, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		lo, err2 := strconv.ParseFloat(strings.TrimSpace(lng), 64)
		if err1 != nil || err2 != nil {
			return nil, errors.New("invalid coord")
		}
		return grid.Coord{Lat: la, Lng: lo}, nil
	case jsonDate:
		d, err := time.Parse("2006-01-02", body)
		if err != nil {
			return nil, err
		}
		return grid.DateOf(d), nil
	case jsonTime:
		p := newZincParser(body)
		if !matchDigits(body, "dd:dd") {
			return nil, errors.New("invalid time")
		}
		t, err := p.parseTime()
		if err != nil || !p.eof() {
			return nil, errors.New("invalid time")
		}
		return t, nil
	case jsonDateTime:
		return decodeDateTime(body)
	}
	return grid.Str(s), nil
}

func decodeJSONNumber(body string) (grid.Value, error) {
	text, unit, _ := strings.Cut(body, " ")
	var f float64
	switch text {
	case "INF":
		f = math.Inf(1)
	case "-INF":
		f = math.Inf(-1)
	case "NaN":
		f = math.NaN()
	default:
		var err error
		if f, err = strconv.ParseFloat(text, 64); err != nil {
			return nil, errors.New("invalid number")
		}
	}
	return grid.Q(f, unit), nil
}

// decodeDateTime reads "ISO [Zone]". Without a zone name the instant is
// expressed in UTC.
func decodeDateTime(body string) (grid.Value, error) {
	iso, zone, _ := strings.Cut(body, " ")
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return nil, err
	}
	loc := time.UTC
	if zone != "" {
		if loc, err = grid.LoadZone(zone); err != nil {
			return nil, err
		}
	}
	return grid.DT(t.In(loc)), nil
}
