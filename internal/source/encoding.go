package source

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names a text encoding a CSV file can be read from and written
// back in.
type Encoding string

const (
	UTF8        Encoding = "utf-8"
	UTF8BOM     Encoding = "utf-8-sig"
	UTF16LE     Encoding = "utf-16le"
	UTF16BE     Encoding = "utf-16be"
	Windows1252 Encoding = "windows-1252"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// ParseEncoding accepts the names above plus a few common aliases.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return "", nil
	case "utf-8", "utf8":
		return UTF8, nil
	case "utf-8-sig", "utf8-bom", "utf-8-bom":
		return UTF8BOM, nil
	case "utf-16", "utf-16le", "utf16le":
		return UTF16LE, nil
	case "utf-16be", "utf16be":
		return UTF16BE, nil
	case "windows-1252", "cp1252", "latin-1", "latin1", "iso-8859-1":
		return Windows1252, nil
	default:
		return "", fmt.Errorf("encoding error: unsupported encoding %q", name)
	}
}

// Detect guesses the encoding of raw file content. A byte order mark wins,
// and a NUL in exactly one of the first two bytes means BOM-less UTF-16.
// Otherwise valid UTF-8 is UTF-8 and anything else is treated as
// Windows-1252, which can decode every byte.
func Detect(data []byte) Encoding {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return UTF8BOM
	case bytes.HasPrefix(data, bomUTF16LE):
		return UTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		return UTF16BE
	case len(data) >= 2 && data[0] != 0 && data[1] == 0:
		return UTF16LE
	case len(data) >= 2 && data[0] == 0 && data[1] != 0:
		return UTF16BE
	case utf8.Valid(data):
		return UTF8
	default:
		return Windows1252
	}
}

// codec returns the x/text encoding for enc. UTF-16 uses the byte order
// mark when present and writes one on encode.
func codec(enc Encoding) (encoding.Encoding, error) {
	switch enc {
	case UTF8, "":
		return unicode.UTF8, nil
	case UTF8BOM:
		return unicode.UTF8BOM, nil
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	case Windows1252:
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("encoding error: unsupported encoding %q", enc)
	}
}

// Decode converts data in enc to a UTF-8 string.
func Decode(data []byte, enc Encoding) (string, error) {
	c, err := codec(enc)
	if err != nil {
		return "", err
	}
	out, err := c.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("encoding error: decode %s: %w", enc, err)
	}
	return string(out), nil
}
