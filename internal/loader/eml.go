package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jhillyerd/enmime"
)

// EML loads RFC 822 messages: headers plus the text body, falling back to
// the HTML alternative when there is no text/plain part.
type EML struct{}

func NewEML() *EML { return &EML{} }

func (e *EML) Load(ctx context.Context, path string) ([]Segment, error) {
	f, err := os.Open(path) // #nosec G304 -- path is chosen by the server
	if err != nil {
		return nil, err
	}
	defer f.Close()

	env, err := enmime.ReadEnvelope(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if len(env.Errors) > 0 {
		slog.DebugContext(ctx, "email parsed with warnings", "path", path, "warnings", len(env.Errors))
	}

	body := strings.TrimSpace(env.Text)
	if body == "" && env.HTML != "" {
		text, _, err := extractHTML(strings.NewReader(env.HTML))
		if err != nil {
			return nil, err
		}
		body = text
	}

	subject := env.GetHeader("Subject")
	from := env.GetHeader("From")
	date := env.GetHeader("Date")

	var sb strings.Builder
	if subject != "" {
		sb.WriteString("Subject: " + subject + "\n")
	}
	if from != "" {
		sb.WriteString("From: " + from + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(body)

	meta := map[string]any{}
	if subject != "" {
		meta["subject"] = subject
	}
	if from != "" {
		meta["from"] = from
	}
	if date != "" {
		meta["date"] = date
	}
	return single(strings.TrimSpace(sb.String()), meta), nil
}
