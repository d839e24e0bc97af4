// Package loader extracts raw text segments from uploaded files.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrInvalidDocument = errors.New("invalid document")
)

// Segment is one piece of raw text taken from a file, e.g. a PDF page or a
// CSV row, with whatever metadata the format offers.
type Segment struct {
	Text     string
	Metadata map[string]any
}

type Loader interface {
	Load(ctx context.Context, path string) ([]Segment, error)
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc func(ctx context.Context, path string) ([]Segment, error)

func (f LoaderFunc) Load(ctx context.Context, path string) ([]Segment, error) {
	return f(ctx, path)
}

// Registry binds lower-cased file extensions (without the dot) to loaders.
type Registry struct {
	loaders map[string]Loader
}

func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

// Default returns the registry for pdf, docx, doc, txt, csv, eml, html and
// htm. runner executes the poppler and antiword binaries.
func Default(runner CommandRunner) *Registry {
	r := NewRegistry()
	r.Register("pdf", NewPDF(runner))
	r.Register("docx", NewDOCX())
	r.Register("doc", NewDOC(runner))
	r.Register("txt", NewText())
	r.Register("csv", NewCSV())
	r.Register("eml", NewEML())
	html := NewHTML()
	r.Register("html", html)
	r.Register("htm", html)
	return r
}

func (r *Registry) Register(ext string, l Loader) {
	r.loaders[normalizeExt(ext)] = l
}

// Lookup returns the loader bound to ext, with or without the leading dot.
func (r *Registry) Lookup(ext string) (Loader, error) {
	key := normalizeExt(ext)
	l, ok := r.loaders[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, key)
	}
	return l, nil
}

// ForPath returns the loader for the extension of path.
func (r *Registry) ForPath(path string) (Loader, error) {
	return r.Lookup(filepath.Ext(path))
}

func (r *Registry) Supports(ext string) bool {
	_, err := r.Lookup(ext)
	return err == nil
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func single(text string, meta map[string]any) []Segment {
	if meta == nil {
		meta = map[string]any{}
	}
	return []Segment{{Text: text, Metadata: meta}}
}
