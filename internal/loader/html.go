package loader

import (
	"context"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTML extracts visible text, skipping script and style content.
type HTML struct{}

func NewHTML() *HTML { return &HTML{} }

func (h *HTML) Load(_ context.Context, path string) ([]Segment, error) {
	f, err := os.Open(path) // #nosec G304 -- path is chosen by the server
	if err != nil {
		return nil, err
	}
	defer f.Close()

	text, title, err := extractHTML(f)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{}
	if title != "" {
		meta["title"] = title
	}
	return single(text, meta), nil
}

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Blockquote: true, atom.Pre: true,
}

func extractHTML(r io.Reader) (text, title string, err error) {
	z := html.NewTokenizer(r)
	var (
		sb      strings.Builder
		skip    int
		inTitle bool
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return collapseLines(sb.String()), strings.TrimSpace(title), nil
			}
			return "", "", z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				if tok.Type == html.StartTagToken {
					skip++
				}
			case atom.Title:
				inTitle = tok.Type == html.StartTagToken
			}
			if blockAtoms[tok.DataAtom] {
				sb.WriteString("\n")
			}
		case html.EndTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				if skip > 0 {
					skip--
				}
			case atom.Title:
				inTitle = false
			}
			if blockAtoms[tok.DataAtom] {
				sb.WriteString("\n")
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			data := string(z.Text())
			if inTitle {
				title += data
				continue
			}
			sb.WriteString(data)
		}
	}
}

// collapseLines squeezes runs of whitespace inside each line and drops
// empty lines.
func collapseLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
