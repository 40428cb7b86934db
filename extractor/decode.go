package extractor

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Decode converts tool output or text files to a string, trying ASCII, then
// UTF-8, then Windows-1252. ISO 8859-1 is the final fallback and accepts any
// input.
//
// Windows-1252 leaves five bytes undefined; input containing them falls
// through to ISO 8859-1.
func Decode(b []byte) string {
	if isASCII(b) || utf8.Valid(b) {
		return string(b)
	}
	if s, err := charmap.Windows1252.NewDecoder().Bytes(b); err == nil && !hasUndefined1252(b) {
		return string(s)
	}
	s, _ := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(s)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// HasUndefined1252 reports whether b holds a byte with no Windows-1252
// mapping.
func hasUndefined1252(b []byte) bool {
	for _, c := range b {
		switch c {
		case 0x81, 0x8d, 0x8f, 0x90, 0x9d:
			return true
		}
	}
	return false
}
