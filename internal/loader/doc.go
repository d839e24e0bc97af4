package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// DOC loads legacy Word 97-2003 files. It prefers antiword when installed
// and otherwise recovers the longest readable text runs from the binary.
type DOC struct {
	runner CommandRunner
}

func NewDOC(runner CommandRunner) *DOC {
	return &DOC{runner: runner}
}

func (d *DOC) Load(ctx context.Context, path string) ([]Segment, error) {
	if d.runner != nil {
		out, err := d.runner.Run(ctx, "antiword", "-m", "UTF-8.txt", path)
		if err == nil && strings.TrimSpace(string(out)) != "" {
			return single(strings.TrimSpace(string(out)), nil), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.DebugContext(ctx, "antiword unavailable, falling back to binary scan", "error", err)
	}

	raw, err := os.ReadFile(path) // #nosec G304 -- path is chosen by the server
	if err != nil {
		return nil, err
	}
	if len(raw) < 8 || string(raw[:4]) != "\xD0\xCF\x11\xE0" {
		return nil, fmt.Errorf("%w: not an OLE2 compound file", ErrInvalidDocument)
	}

	wide := strings.Join(utf16Runs(raw, 6), "\n")
	narrow := strings.Join(byteRuns(raw, 6), "\n")
	if len(wide) >= len(narrow) {
		return single(wide, nil), nil
	}
	return single(narrow, nil), nil
}

func printable(r rune) bool {
	return r == '\t' || r == '\n' || r == '\r' || (r >= 0x20 && r != 0x7f && r < 0xfffe)
}

// byteRuns returns Windows-1252 runs of at least minLen printable characters.
func byteRuns(b []byte, minLen int) []string {
	var (
		runs []string
		cur  []rune
	)
	flush := func() {
		if len(cur) >= minLen {
			if s := strings.TrimSpace(string(cur)); s != "" {
				runs = append(runs, s)
			}
		}
		cur = cur[:0]
	}
	dec := charmap.Windows1252
	for _, c := range b {
		r := dec.DecodeByte(c)
		if c >= 0x20 || c == '\t' || c == '\r' || c == '\n' {
			if printable(r) && (r < 0x80 || r >= 0xa0) {
				cur = append(cur, r)
				continue
			}
		}
		flush()
	}
	flush()
	return runs
}

// utf16Runs returns little-endian UTF-16 runs of at least minLen printable
// characters.
func utf16Runs(b []byte, minLen int) []string {
	var (
		runs []string
		cur  []uint16
	)
	flush := func() {
		if len(cur) >= minLen {
			if s := strings.TrimSpace(string(utf16.Decode(cur))); s != "" {
				runs = append(runs, s)
			}
		}
		cur = cur[:0]
	}
	for i := 0; i+1 < len(b); i += 2 {
		u := uint16(b[i]) | uint16(b[i+1])<<8
		if wideText(u) {
			cur = append(cur, u)
			continue
		}
		flush()
	}
	flush()
	return runs
}

// wideText accepts the Latin, Greek and Cyrillic blocks plus general
// punctuation. Pairs of ASCII bytes land outside these ranges.
func wideText(u uint16) bool {
	switch {
	case u == '\t', u == '\r', u == '\n':
		return true
	case u >= 0x20 && u < 0x7f, u >= 0xa0 && u <= 0x024f:
		return true
	case u >= 0x0370 && u <= 0x04ff, u >= 0x2010 && u <= 0x2044:
		return true
	}
	return false
}
