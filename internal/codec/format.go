package codec

import (
	"fmt"
	"mime"
	"strings"
)

// Format is one of the three wire encodings of a grid.
type Format int

const (
	Zinc Format = iota
	JSON
	CSV
)

var formatInfo = [...]struct {
	name   string
	mime   string
	suffix string
}{
	Zinc: {name: "zinc", mime: "text/zinc", suffix: ".zinc"},
	JSON: {name: "json", mime: "application/json", suffix: ".json"},
	CSV:  {name: "csv", mime: "text/csv", suffix: ".csv"},
}

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{Zinc, JSON, CSV}
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatInfo) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatInfo[f].name
}

// MIME returns the media type of f.
func (f Format) MIME() string {
	return formatInfo[f].mime
}

// Suffix returns the file suffix of f, dot included.
func (f Format) Suffix() string {
	return formatInfo[f].suffix
}

// ParseFormat maps a short name ("zinc"), a file suffix (".zinc") or a
// media type ("text/zinc; charset=utf-8") to its format.
func ParseFormat(id string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if strings.Contains(key, "/") {
		if mt, _, err := mime.ParseMediaType(key); err == nil {
			key = mt
		}
	}
	for i, info := range formatInfo {
		if key == info.name || key == info.mime || key == info.suffix {
			return Format(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, id)
}

// FormatFromPath picks the format from a file name suffix.
func FormatFromPath(path string) (Format, error) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return 0, fmt.Errorf("%w: no suffix in %q", ErrUnknownFormat, path)
	}
	return ParseFormat(path[i:])
}
