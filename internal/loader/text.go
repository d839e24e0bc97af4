package loader

import (
	"bytes"
	"context"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Text loads plain text files. Input that is not valid UTF-8 is decoded as
// Windows-1252.
type Text struct{}

func NewText() *Text { return &Text{} }

func (t *Text) Load(_ context.Context, path string) ([]Segment, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- path is chosen by the server
	if err != nil {
		return nil, err
	}
	s, err := decodeText(raw)
	if err != nil {
		return nil, err
	}
	return single(s, nil), nil
}

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

func decodeText(raw []byte) (string, error) {
	switch {
	case bytes.HasPrefix(raw, utf8BOM):
		raw = raw[len(utf8BOM):]
	case bytes.HasPrefix(raw, utf16LEBOM), bytes.HasPrefix(raw, utf16BEBOM):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, raw)
		return string(out), err
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
	return string(out), err
}
