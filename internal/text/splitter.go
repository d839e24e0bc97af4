package text

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var ErrInvalidSplitter = errors.New("invalid splitter configuration")

// Span is one window of a split text. Start and End are rune offsets.
type Span struct {
	Start int
	End   int
	Text  string
}

// Splitter cuts text into fixed-size character windows that overlap by
// Overlap characters. Lengths are measured in runes.
type Splitter struct {
	Size    int
	Overlap int
}

func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidSplitter
	}
	return &Splitter{Size: size, Overlap: overlap}, nil
}

// Split returns the windows of s in order. A window starts every
// Size-Overlap runes for as long as the start lies inside s, so the tail of
// a text may be covered by more than one window. Whitespace-only windows are
// skipped.
//
// The trailing window that lies inside its predecessor is kept on purpose:
// 2500 runes at 1000/200 yield four windows, the last being [2400,2500).
func (sp *Splitter) Split(s string) []Span {
	if s == "" {
		return nil
	}

	runes := []rune(s)
	if !utf8.ValidString(s) {
		runes = []rune(strings.ToValidUTF8(s, "�"))
	}

	n := len(runes)
	stride := sp.Size - sp.Overlap
	var spans []Span
	for start := 0; start < n; start += stride {
		end := start + sp.Size
		if end > n {
			end = n
		}
		chunk := string(runes[start:end])
		if strings.TrimSpace(chunk) != "" {
			spans = append(spans, Span{Start: start, End: end, Text: chunk})
		}
	}
	return spans
}
