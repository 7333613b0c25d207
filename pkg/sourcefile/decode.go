// Package sourcefile turns raw CSV export bytes into parsed rows: encoding
// detection first, then a quote-aware delimited-text parser.
package sourcefile

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Decode converts raw file bytes into text. UTF-16 byte order marks are
// honoured; anything else is treated as UTF-8, falling back to UTF-16LE
// when the bytes are not valid UTF-8 (some clinical systems export UTF-16
// without a BOM).
func Decode(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return decodeUTF16(data, unicode.LittleEndian)
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return decodeUTF16(data, unicode.BigEndian)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return decodeUTF16(data, unicode.LittleEndian)
}

func decodeUTF16(data []byte, endian unicode.Endianness) (string, error) {
	dec := unicode.UTF16(endian, unicode.ExpectBOM)
	out, err := dec.NewDecoder().Bytes(data)
	if err != nil {
		// No BOM present: decode as-is.
		dec = unicode.UTF16(endian, unicode.IgnoreBOM)
		out, err = dec.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decode utf-16: %w", err)
		}
	}
	return string(out), nil
}
