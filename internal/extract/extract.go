// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns files into page-aware text for the retrieval
// index. Plain text and Markdown are read directly; PDFs are converted by
// the markitdown container.
package extract

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Page is the text of one page, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// Document is an extracted file.
type Document struct {
	// Path is the file the text came from.
	Path string

	// Title is the first Markdown heading, or the file name without
	// extension.
	Title string

	// Text is the full text with page markers removed.
	Text string

	// Pages holds per-page text. Files without page breaks are one page.
	Pages []Page
}

// Extractor reads a file into a Document.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, path string) (*Document, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, path string) (*Document, error) {
	return f(ctx, path)
}

// textExtensions are read as UTF-8 without conversion.
var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".text":     true,
}

// ForPath picks the extractor for path by extension. pdf handles .pdf
// files and may be nil when no container runtime is available.
func ForPath(path string, pdf Extractor) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case textExtensions[ext]:
		return PlainText{}, nil
	case ext == ".pdf":
		if pdf == nil {
			return nil, fmt.Errorf("%w: no PDF extractor available for %s", types.ErrConfig, path)
		}
		return pdf, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", types.ErrInvalidInput, ext)
	}
}

// PlainText reads UTF-8 text and Markdown files.
type PlainText struct{}

// Extract reads path as text.
func (PlainText) Extract(_ context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ExtractReader(f, path)
}

// ExtractReader builds a Document from r. name supplies the path and the
// fallback title. Input that is not valid UTF-8 is a corrupt document.
func ExtractReader(r io.Reader, name string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8 text", types.ErrCorruptDocument, name)
	}
	return newDocument(name, string(data)), nil
}

func newDocument(path, raw string) *Document {
	pages := SplitPages(raw)
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.Text)
	}
	return &Document{
		Path:  path,
		Title: title(raw, path),
		Text:  strings.Join(texts, "\n\n"),
		Pages: pages,
	}
}

var pageMarker = regexp.MustCompile(`^<!--\s*page\s+(\d+)\s*-->$`)

// SplitPages splits raw text into pages at form feeds or at HTML page
// markers of the form <!-- page N -->. A marker sets the number of the
// page that follows it. Blank pages are dropped.
func SplitPages(raw string) []Page {
	var pages []Page
	current := 1
	var buf []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if text != "" {
			pages = append(pages, Page{Number: current, Text: text})
		}
		buf = nil
	}

	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if m := pageMarker.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()
			n, _ := strconv.Atoi(m[1])
			current = n
			continue
		}
		if strings.Contains(line, "\f") {
			parts := strings.Split(line, "\f")
			for i, part := range parts {
				if i > 0 {
					flush()
					current++
				}
				buf = append(buf, part)
			}
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return pages
}

// title returns the first level-one Markdown heading, else the base name
// of path without its extension.
func title(raw, path string) string {
	for _, line := range strings.Split(raw, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(t, "# "))
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
