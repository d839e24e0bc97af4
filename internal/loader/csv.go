package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSV emits one segment per data row, rendered as "header: value" lines.
type CSV struct{}

func NewCSV() *CSV { return &CSV{} }

func (c *CSV) Load(ctx context.Context, path string) ([]Segment, error) {
	f, err := os.Open(path) // #nosec G304 -- path is chosen by the server
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var segments []Segment
	for row := 0; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidDocument, row, err)
		}

		lines := make([]string, 0, len(rec))
		for i, v := range rec {
			name := fmt.Sprintf("column_%d", i)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				name = strings.TrimSpace(header[i])
			}
			lines = append(lines, name+": "+strings.TrimSpace(v))
		}
		segments = append(segments, Segment{
			Text:     strings.Join(lines, "\n"),
			Metadata: map[string]any{"row": row},
		})
	}
	return segments, nil
}
