package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCX reads the paragraphs of word/document.xml.
type DOCX struct{}

func NewDOCX() *DOCX { return &DOCX{} }

type docxBody struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
		Tabs []struct{} `xml:"tab"`
	} `xml:"r"`
}

type docxCore struct {
	Title string `xml:"title"`
}

func (d *DOCX) Load(_ context.Context, path string) ([]Segment, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	defer zr.Close()

	var (
		body  []byte
		title string
	)
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			if body, err = readZipFile(f); err != nil {
				return nil, err
			}
		case "docProps/core.xml":
			raw, err := readZipFile(f)
			if err != nil {
				continue
			}
			var core docxCore
			if xml.Unmarshal(raw, &core) == nil {
				title = strings.TrimSpace(core.Title)
			}
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: word/document.xml not found", ErrInvalidDocument)
	}

	var doc docxBody
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var sb strings.Builder
	for i, p := range doc.Body.Paragraphs {
		if i > 0 {
			sb.WriteString("\n")
		}
		for _, r := range p.Runs {
			for range r.Tabs {
				sb.WriteString("\t")
			}
			for _, t := range r.Text {
				sb.WriteString(t.Content)
			}
		}
	}

	meta := map[string]any{}
	if title != "" {
		meta["title"] = title
	}
	return single(strings.TrimSpace(sb.String()), meta), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, 64<<20))
}
