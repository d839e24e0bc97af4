package loader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// PDF extracts one segment per page with poppler's pdfinfo and pdftotext.
type PDF struct {
	runner CommandRunner
}

func NewPDF(runner CommandRunner) *PDF {
	return &PDF{runner: runner}
}

func (p *PDF) Load(ctx context.Context, path string) ([]Segment, error) {
	pages, err := p.pageCount(ctx, path)
	if err != nil {
		return nil, err
	}

	var segments []Segment
	for page := 1; page <= pages; page++ {
		out, err := p.runner.Run(ctx, "pdftotext",
			"-f", strconv.Itoa(page), "-l", strconv.Itoa(page),
			"-enc", "UTF-8", "-nopgbrk", path, "-")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.WarnContext(ctx, "failed to extract pdf page", "page", page, "error", err)
			continue
		}
		text := cleanPDFText(string(out))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Text: text,
			Metadata: map[string]any{
				"page":        page,
				"total_pages": pages,
			},
		})
	}
	return segments, nil
}

func (p *PDF) pageCount(ctx context.Context, path string) (int, error) {
	out, err := p.runner.Run(ctx, "pdfinfo", path)
	if err != nil {
		return 0, fmt.Errorf("%w: pdfinfo: %v", ErrInvalidDocument, err)
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("%w: bad page count %q", ErrInvalidDocument, line)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: pdfinfo reported no page count", ErrInvalidDocument)
}

var pdfReplacer = strings.NewReplacer(
	"\f", "\n",
	"\u00a0", " ",
	"\u00ad", "",
	"\ufb01", "fi",
	"\ufb02", "fl",
)

func cleanPDFText(s string) string {
	s = pdfReplacer.Replace(s)
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		out = append(out, strings.TrimRight(l, " \t\r"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
