package codec

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const checkmark = '✓'

// escapeStr escapes s for a double-quoted Haystack string literal.
// Control characters and runes >= U+0080 become \uXXXX (surrogate pairs
// outside the BMP).
func escapeStr(s string) string {
	return escape(s, '"', true)
}

// escapeURI escapes s for a back-quoted URI literal.
func escapeURI(s string) string {
	return escape(s, '`', false)
}

func escape(s string, quote rune, dollar bool) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	for _, r := range s {
		switch {
		case r == '\\' || r == quote || (dollar && r == '$'):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\b':
			b.WriteString(`\b`)
		case r == '\f':
			b.WriteString(`\f`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r >= 0x80:
			writeUnicodeEscape(&b, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// asciiOnly replaces every rune >= U+0080 of s but keep with its \uXXXX
// escape.
func asciiOnly(s string, keep rune) string {
	i := strings.IndexFunc(s, func(r rune) bool { return r >= utf8.RuneSelf && r != keep })
	if i < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	b.WriteString(s[:i])
	for _, r := range s[i:] {
		if r >= utf8.RuneSelf && r != keep {
			writeUnicodeEscape(&b, r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func writeUnicodeEscape(b io.Writer, r rune) {
	if r > 0xFFFF {
		hi, lo := utf16.EncodeRune(r)
		fmt.Fprintf(b, `\u%04x\u%04x`, hi, lo)
		return
	}
	fmt.Fprintf(b, `\u%04x`, r)
}

// unescape reverses escapeStr and escapeURI. In URIs an escaped reserved
// character other than the quote and backslash keeps its backslash.
func unescape(s string, uri bool) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			r, size := utf8.DecodeRuneInString(s[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("dangling escape")
		}
		esc := s[i+1]
		i += 2
		switch esc {
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u', 'U':
			r, n, err := decodeUnicodeEscape(s[i:])
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += n
		case '\\', '"', '`', '$':
			b.WriteByte(esc)
		default:
			if !uri {
				return "", fmt.Errorf("invalid escape \\%c", esc)
			}
			b.WriteByte('\\')
			b.WriteByte(esc)
		}
	}
	return b.String(), nil
}

// decodeUnicodeEscape reads the 4 hex digits after \u, joining a following
// \uXXXX low surrogate when the first one is high. It returns the rune and
// the number of bytes consumed after the "\u".
func decodeUnicodeEscape(s string) (rune, int, error) {
	if len(s) < 4 {
		return 0, 0, fmt.Errorf("short unicode escape")
	}
	v, err := strconv.ParseUint(s[:4], 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid unicode escape \\u%s", s[:4])
	}
	r := rune(v)
	if utf16.IsSurrogate(r) && len(s) >= 10 && s[4] == '\\' && (s[5] == 'u' || s[5] == 'U') {
		lo, err := strconv.ParseUint(s[6:10], 16, 32)
		if err == nil {
			if joined := utf16.DecodeRune(r, rune(lo)); joined != utf8.RuneError {
				return joined, 10, nil
			}
		}
	}
	return r, 4, nil
}
