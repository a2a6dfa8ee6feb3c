package codec

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pprados/haystackapi/internal/grid"
)

// zincParser is a hand-written recursive-descent reader over zinc text.
// It is also used for the zinc fragments embedded in CSV cells and for
// filter literals.
type zincParser struct {
	src    string
	pos    int
	format Format
}

func newZincParser(src string) *zincParser {
	return &zincParser{src: src, format: Zinc}
}

func (p *zincParser) errorf(format string, args ...any) error {
	return newParseError(p.format, p.src, p.pos, format, args...)
}

func (p *zincParser) errorAt(pos int, format string, args ...any) error {
	return newParseError(p.format, p.src, pos, format, args...)
}

func (p *zincParser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *zincParser) peek() byte {
	return p.peekAt(0)
}

func (p *zincParser) peekAt(n int) byte {
	if p.pos+n >= len(p.src) {
		return 0
	}
	return p.src[p.pos+n]
}

func (p *zincParser) hasPrefix(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

func (p *zincParser) expect(s string) error {
	if !p.hasPrefix(s) {
		return p.errorf("expected %q", s)
	}
	p.pos += len(s)
	return nil
}

func (p *zincParser) skipSpaces() {
	for p.peek() == ' ' || p.peek() == '\t' {
		p.pos++
	}
}

func (p *zincParser) atNewline() bool {
	return p.peek() == '\n' || (p.peek() == '\r' && p.peekAt(1) == '\n')
}

func (p *zincParser) skipNewline() bool {
	switch {
	case p.peek() == '\n':
		p.pos++
		return true
	case p.hasPrefix("\r\n"):
		p.pos += 2
		return true
	}
	return false
}

func (p *zincParser) skipBlank() {
	for {
		p.skipSpaces()
		if !p.skipNewline() {
			return
		}
	}
}

// decodeZinc reads exactly one grid.
func decodeZinc(src string) (*grid.Grid, error) {
	p := newZincParser(src)
	p.skipBlank()
	g, err := p.parseGrid()
	if err != nil {
		return nil, err
	}
	p.skipBlank()
	if !p.eof() {
		return nil, p.errorf("unexpected content after grid")
	}
	return g, nil
}

// decodeZincAll reads grids separated by blank lines.
func decodeZincAll(src string) ([]*grid.Grid, error) {
	p := newZincParser(src)
	grids := []*grid.Grid{}
	for {
		p.skipBlank()
		if p.eof() {
			return grids, nil
		}
		g, err := p.parseGrid()
		if err != nil {
			return nil, err
		}
		grids = append(grids, g)
	}
}

type zincColumn struct {
	name string
	meta *grid.Dict
}

func (p *zincParser) parseGrid() (*grid.Grid, error) {
	if err := p.expect("ver:"); err != nil {
		return nil, err
	}
	verPos := p.pos
	verText, err := p.parseStr()
	if err != nil {
		return nil, err
	}
	ver, err := grid.ParseVersion(verText)
	if err != nil {
		return nil, p.errorAt(verPos, "%v", err)
	}
	g := grid.NewVersion(ver)

	p.skipSpaces()
	if isIDStart(p.peek()) {
		metaPos := p.pos
		meta, err := p.parseMeta()
		if err != nil {
			return nil, err
		}
		for k, v := range meta.All() {
			if err := g.SetMeta(k, v); err != nil {
				return nil, p.errorAt(metaPos, "%v", err)
			}
		}
	}
	p.skipSpaces()
	if !p.skipNewline() {
		return nil, p.errorf("expected newline after grid metadata")
	}

	cols, err := p.parseColumns()
	if err != nil {
		return nil, err
	}

	type rowAt struct {
		pos   int
		cells []grid.Value
	}
	var rows []rowAt
	for !p.eof() && !p.atNewline() && !p.hasPrefix(">>") {
		start := p.pos
		cells, err := p.parseRow()
		if err != nil {
			return nil, err
		}
		if len(cells) > len(cols) {
			return nil, p.errorAt(start, "row has %d cells, grid declares %d columns", len(cells), len(cols))
		}
		rows = append(rows, rowAt{pos: start, cells: cells})
	}

	if len(cols) == 1 && cols[0].name == emptyColumn && cols[0].meta.Len() == 0 && len(rows) == 0 {
		cols = nil
	}
	for _, c := range cols {
		if err := g.AddColumn(c.name, c.meta); err != nil {
			return nil, p.errorf("column %s: %v", c.name, err)
		}
	}
	for _, r := range rows {
		row := grid.NewDict()
		for i, v := range r.cells {
			if grid.IsNull(v) {
				continue
			}
			row.Set(cols[i].name, v)
		}
		if err := g.Append(row); err != nil {
			return nil, p.errorAt(r.pos, "%v", err)
		}
	}
	return g, nil
}

func (p *zincParser) parseColumns() ([]zincColumn, error) {
	var cols []zincColumn
	for {
		p.skipSpaces()
		name, err := p.parseID()
		if err != nil {
			return nil, err
		}
		col := zincColumn{name: name, meta: grid.NewDict()}
		p.skipSpaces()
		if isIDStart(p.peek()) {
			if col.meta, err = p.parseMeta(); err != nil {
				return nil, err
			}
			p.skipSpaces()
		}
		cols = append(cols, col)
		if p.peek() != ',' {
			break
		}
		p.pos++
	}
	if !p.skipNewline() && !p.eof() {
		return nil, p.errorf("expected ',' or newline in column list")
	}
	return cols, nil
}

func (p *zincParser) parseRow() ([]grid.Value, error) {
	var cells []grid.Value
	for {
		p.skipSpaces()
		var v grid.Value
		if p.peek() != ',' && !p.atNewline() && !p.eof() && !p.hasPrefix(">>") {
			var err error
			if v, err = p.parseScalar(); err != nil {
				return nil, err
			}
			p.skipSpaces()
		}
		cells = append(cells, v)
		if p.peek() != ',' {
			break
		}
		p.pos++
	}
	if !p.skipNewline() && !p.eof() && !p.hasPrefix(">>") {
		return nil, p.errorf("expected ',' or newline in row")
	}
	return cells, nil
}

// parseMeta reads space separated "name" markers and "name:value" pairs.
func (p *zincParser) parseMeta() (*grid.Dict, error) {
	meta := grid.NewDict()
	for {
		name, err := p.parseID()
		if err != nil {
			return nil, err
		}
		save := p.pos
		p.skipSpaces()
		if p.peek() == ':' {
			p.pos++
			p.skipSpaces()
			v, err := p.parseScalar()
			if err != nil {
				return nil, err
			}
			meta.Set(name, v)
		} else {
			p.pos = save
			meta.Set(name, grid.Marker{})
		}

		save = p.pos
		p.skipSpaces()
		if p.pos == save || !isIDStart(p.peek()) {
			p.pos = save
			return meta, nil
		}
	}
}

func (p *zincParser) parseID() (string, error) {
	start := p.pos
	if !isIDStart(p.peek()) {
		return "", p.errorf("expected tag name")
	}
	for isIDChar(p.peek()) {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

// parseScalar reads one value at the current position.
func (p *zincParser) parseScalar() (grid.Value, error) {
	c := p.peek()
	switch {
	case p.eof():
		return nil, p.errorf("expected value")
	case c == '"':
		s, err := p.parseStr()
		return grid.Str(s), err
	case c == '`':
		return p.parseURI()
	case c == '@':
		return p.parseRef()
	case c == '[':
		return p.parseList()
	case c == '{':
		return p.parseDict()
	case c == '<' && p.peekAt(1) == '<':
		return p.parseNested()
	case c == '-' && p.hasPrefix("-INF"):
		p.pos += 4
		return grid.N(math.Inf(-1)), nil
	case c == '-' || isDigit(c):
		return p.parseNumeric()
	case isAlpha(c):
		return p.parseKeyword()
	}
	return nil, p.errorf("unexpected character %q", c)
}

func (p *zincParser) parseStr() (string, error) {
	return p.parseQuoted('"', false)
}

func (p *zincParser) parseURI() (grid.Value, error) {
	s, err := p.parseQuoted('`', true)
	return grid.URI(s), err
}

func (p *zincParser) parseQuoted(quote byte, uri bool) (string, error) {
	start := p.pos
	if p.peek() != quote {
		return "", p.errorf("expected %q", quote)
	}
	p.pos++
	for {
		if p.eof() {
			return "", p.errorAt(start, "unterminated literal")
		}
		c := p.src[p.pos]
		switch {
		case c == quote:
			raw := p.src[start+1 : p.pos]
			p.pos++
			s, err := unescape(raw, uri)
			if err != nil {
				return "", p.errorAt(start, "%v", err)
			}
			return s, nil
		case c == '\\':
			p.pos += 2
		case c < 0x20:
			return "", p.errorf("control character in literal")
		default:
			p.pos++
		}
	}
}

func (p *zincParser) parseRef() (grid.Value, error) {
	p.pos++ // @
	start := p.pos
	for isRefChar(p.peek()) {
		p.pos++
	}
	ref := grid.Ref{ID: p.src[start:p.pos]}
	if p.peek() == ' ' && p.peekAt(1) == '"' {
		p.pos++
		dis, err := p.parseStr()
		if err != nil {
			return nil, err
		}
		ref.Dis = dis
	}
	return ref, nil
}

func (p *zincParser) parseList() (grid.Value, error) {
	p.pos++ // [
	list := grid.List{}
	for {
		p.skipBlank()
		if p.peek() == ']' {
			p.pos++
			return list, nil
		}
		v, err := p.parseScalar()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
		p.skipBlank()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
		default:
			return nil, p.errorf("expected ',' or ']' in list")
		}
	}
}

func (p *zincParser) parseDict() (grid.Value, error) {
	p.pos++ // {
	dict := grid.NewDict()
	for {
		p.skipBlank()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if p.peek() == '}' {
			p.pos++
			return dict, nil
		}
		name, err := p.parseID()
		if err != nil {
			return nil, err
		}
		p.skipSpaces()
		if p.peek() != ':' {
			dict.Set(name, grid.Marker{})
			continue
		}
		p.pos++
		p.skipSpaces()
		v, err := p.parseScalar()
		if err != nil {
			return nil, err
		}
		dict.Set(name, v)
	}
}

func (p *zincParser) parseNested() (grid.Value, error) {
	p.pos += 2 // <<
	p.skipBlank()
	g, err := p.parseGrid()
	if err != nil {
		return nil, err
	}
	p.skipBlank()
	if err := p.expect(">>"); err != nil {
		return nil, err
	}
	return g, nil
}

// parseNumeric reads a date, time, date-time or number.
func (p *zincParser) parseNumeric() (grid.Value, error) {
	rest := p.src[p.pos:]
	switch {
	case matchDigits(rest, "dddd-dd-dd"):
		return p.parseDateOrDateTime()
	case matchDigits(rest, "dd:dd"):
		t, err := p.parseTime()
		return t, err
	}
	return p.parseNumber()
}

func (p *zincParser) parseNumber() (grid.Value, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	if !isDigit(p.peek()) {
		return nil, p.errorf("expected digit")
	}
	p.skipDigits()
	if p.peek() == '.' && isDigit(p.peekAt(1)) {
		p.pos++
		p.skipDigits()
	}
	if e := p.peek(); e == 'e' || e == 'E' {
		n := 1
		if s := p.peekAt(1); s == '+' || s == '-' {
			n = 2
		}
		if isDigit(p.peekAt(n)) {
			p.pos += n
			p.skipDigits()
		}
	}
	text := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errorAt(start, "invalid number %q", text)
	}

	unitStart := p.pos
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !isUnitRune(r) {
			break
		}
		p.pos += size
	}
	return grid.Q(f, p.src[unitStart:p.pos]), nil
}

func (p *zincParser) skipDigits() {
	for isDigit(p.peek()) || p.peek() == '_' {
		p.pos++
	}
}

func (p *zincParser) parseDateOrDateTime() (grid.Value, error) {
	d, err := time.Parse("2006-01-02", p.src[p.pos:p.pos+10])
	if err != nil {
		return nil, p.errorf("invalid date: %v", err)
	}
	p.pos += 10
	date := grid.DateOf(d)
	if p.peek() != 'T' && p.peek() != 't' {
		return date, nil
	}
	p.pos++
	if !matchDigits(p.src[p.pos:], "dd:dd") {
		return nil, p.errorf("expected time after 'T'")
	}
	tm, err := p.parseTime()
	if err != nil {
		return nil, err
	}

	loc := time.UTC
	hasOffset := false
	offset := 0
	switch c := p.peek(); {
	case c == 'Z' || c == 'z':
		p.pos++
		hasOffset = true
	case (c == '+' || c == '-') && matchDigits(p.src[p.pos+1:], "dd:dd"):
		h, _ := strconv.Atoi(p.src[p.pos+1 : p.pos+3])
		m, _ := strconv.Atoi(p.src[p.pos+4 : p.pos+6])
		offset = h*3600 + m*60
		if c == '-' {
			offset = -offset
		}
		p.pos += 6
		hasOffset = true
	}

	if p.peek() == ' ' && isZoneStart(p.peekAt(1)) {
		p.pos++
		zoneStart := p.pos
		for isZoneChar(p.peek()) {
			p.pos++
		}
		name := p.src[zoneStart:p.pos]
		if loc, err = grid.LoadZone(name); err != nil {
			return nil, p.errorAt(zoneStart, "%v", err)
		}
	}

	wall := func(l *time.Location) time.Time {
		return time.Date(date.Year, date.Month, date.Day, tm.Hour, tm.Minute, tm.Second, tm.Nanosecond, l)
	}
	if !hasOffset {
		return grid.DT(wall(loc)), nil
	}
	// Without a zone name the instant is kept in UTC.
	return grid.DT(wall(time.FixedZone("", offset)).In(loc)), nil
}

func (p *zincParser) parseTime() (grid.Time, error) {
	start := p.pos
	h, _ := strconv.Atoi(p.src[p.pos : p.pos+2])
	m, _ := strconv.Atoi(p.src[p.pos+3 : p.pos+5])
	p.pos += 5
	t := grid.Time{Hour: h, Minute: m}
	if p.peek() == ':' && matchDigits(p.src[p.pos+1:], "dd") {
		t.Second, _ = strconv.Atoi(p.src[p.pos+1 : p.pos+3])
		p.pos += 3
		if p.peek() == '.' && isDigit(p.peekAt(1)) {
			p.pos++
			fracStart := p.pos
			for isDigit(p.peek()) {
				p.pos++
			}
			frac := p.src[fracStart:p.pos]
			if len(frac) > 9 {
				frac = frac[:9]
			}
			frac += strings.Repeat("0", 9-len(frac))
			t.Nanosecond, _ = strconv.Atoi(frac)
		}
	}
	if t.Hour > 23 || t.Minute > 59 || t.Second > 59 {
		return grid.Time{}, p.errorAt(start, "invalid time %s", p.src[start:p.pos])
	}
	return t, nil
}

func (p *zincParser) parseKeyword() (grid.Value, error) {
	start := p.pos
	for isIDChar(p.peek()) {
		p.pos++
	}
	word := p.src[start:p.pos]

	if p.peek() == '(' {
		p.pos++
		switch word {
		case "C":
			return p.parseCoord()
		case "Bin":
			return p.parseBin()
		default:
			s, err := p.parseStr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return grid.XStr{Type: word, Val: s}, nil
		}
	}

	switch word {
	case "T":
		return grid.Bool(true), nil
	case "F":
		return grid.Bool(false), nil
	case "M":
		return grid.Marker{}, nil
	case "N":
		return grid.Null{}, nil
	case "NA":
		return grid.NA{}, nil
	case "R":
		return grid.Remove{}, nil
	case "INF":
		return grid.N(math.Inf(1)), nil
	case "NaN":
		return grid.N(math.NaN()), nil
	}
	return nil, p.errorAt(start, "unexpected identifier %q", word)
}

func (p *zincParser) parseCoord() (grid.Value, error) {
	lat, err := p.parseCoordPart()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if err := p.expect(","); err != nil {
		return nil, err
	}
	p.skipSpaces()
	lng, err := p.parseCoordPart()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return grid.Coord{Lat: lat, Lng: lng}, nil
}

func (p *zincParser) parseCoordPart() (float64, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for isDigit(p.peek()) || p.peek() == '.' {
		p.pos++
	}
	f, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, p.errorAt(start, "invalid coordinate")
	}
	return f, nil
}

func (p *zincParser) parseBin() (grid.Value, error) {
	if p.peek() == '"' {
		s, err := p.parseStr()
		if err != nil {
			return nil, err
		}
		return grid.Bin(s), p.expect(")")
	}
	start := p.pos
	for !p.eof() && p.peek() != ')' {
		p.pos++
	}
	mimeType := p.src[start:p.pos]
	return grid.Bin(mimeType), p.expect(")")
}

// matchDigits reports whether s starts with pattern, where 'd' stands for
// an ASCII digit and any other byte must match literally.
func matchDigits(s, pattern string) bool {
	if len(s) < len(pattern) {
		return false
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == 'd' {
			if !isDigit(s[i]) {
				return false
			}
		} else if s[i] != pattern[i] {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isIDStart(c byte) bool { return isAlpha(c) || c == '_' }

func isIDChar(c byte) bool { return isAlpha(c) || isDigit(c) || c == '_' }

func isRefChar(c byte) bool {
	return isIDChar(c) || c == ':' || c == '-' || c == '.' || c == '~'
}

func isZoneStart(c byte) bool { return c >= 'A' && c <= 'Z' }

func isZoneChar(c byte) bool {
	return isIDChar(c) || c == '-' || c == '+' || c == '/'
}

func isUnitRune(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		r == '%' || r == '_' || r == '/' || r == '$' || r >= 0x80
}
