package codec

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pprados/haystackapi/internal/grid"
)

func encodeCSV(g *grid.Grid) (string, error) {
	var b strings.Builder
	if err := writeCSVGrid(&b, g); err != nil {
		return "", err
	}
	return b.String(), nil
}

// writeCSVGrid writes the header line and one line per row. Grid and
// column metadata have no CSV rendering and are dropped.
func writeCSVGrid(b *strings.Builder, g *grid.Grid) error {
	cols := g.ColumnNames()
	if len(cols) == 0 {
		b.WriteString(emptyColumn)
	}
	for i, name := range cols {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(csvQuoteIfNeeded(name))
	}
	b.WriteByte('\n')

	ver := g.Version()
	for i, row := range g.All() {
		for j, name := range cols {
			if j > 0 {
				b.WriteByte(',')
			}
			v, ok := row.Get(name)
			if !ok || grid.IsNull(v) {
				if len(cols) == 1 {
					b.WriteByte('N')
				}
				continue
			}
			cell, err := csvCell(v, ver)
			if err != nil {
				return fmt.Errorf("row %d %s: %w", i, name, err)
			}
			b.WriteString(cell)
		}
		b.WriteByte('\n')
	}
	return nil
}

// csvCell renders one value as a CSV field, quoted when needed.
func csvCell(v grid.Value, ver grid.Version) (string, error) {
	if v == nil {
		return "", nil
	}
	if ver.Less(grid.MinVersion(v)) {
		return "", versionError(v.Kind(), ver)
	}
	switch x := v.(type) {
	case grid.Null:
		return "", nil
	case grid.Marker:
		return string(checkmark), nil
	case grid.Bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case grid.Str:
		return csvQuote(csvEscapeStr(string(x))), nil
	}
	var b strings.Builder
	if err := writeZincScalar(&b, v, ver); err != nil {
		return "", err
	}
	return csvQuoteIfNeeded(b.String()), nil
}

// csvEscapeStr escapes backslashes, runes >= U+0080 other than the
// checkmark, and the first rune when the text would otherwise read back as
// a zinc value.
func csvEscapeStr(s string) string {
	s = asciiOnly(strings.ReplaceAll(s, `\`, `\\`), checkmark)
	if looksComplex(s) {
		r, size := utf8.DecodeRuneInString(s)
		var b strings.Builder
		writeUnicodeEscape(&b, r)
		return b.String() + s[size:]
	}
	return s
}

// looksComplex reports whether s starts like a zinc value that CSV carries
// as quoted text: a coord, list, dict, nested grid, ref, uri, or a
// Name(...) call such as Bin( or an xstr.
func looksComplex(s string) bool {
	for _, prefix := range []string{"[", "{", "<<", "@", "`"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	if s == "" || !isAlpha(s[0]) {
		return false
	}
	i := 1
	for i < len(s) && isIDChar(s[i]) {
		i++
	}
	return i < len(s) && s[i] == '('
}

func csvQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func csvQuoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, ",\"\r\n") || s[0] == ' ' || s[len(s)-1] == ' ' {
		return csvQuote(s)
	}
	return s
}
