// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citation

import (
	"fmt"
	"strings"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Style names a citation format.
type Style string

const (
	StyleAPA     Style = "apa"
	StyleMLA     Style = "mla"
	StyleChicago Style = "chicago"
	StyleBibTeX  Style = "bibtex"
)

// Styles lists the supported styles.
var Styles = []Style{StyleAPA, StyleMLA, StyleChicago, StyleBibTeX}

// ParseStyle resolves a case-insensitive style name.
func ParseStyle(s string) (Style, error) {
	st := Style(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Styles {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown citation style %q", types.ErrInvalidInput, s)
}

// FormatCitation renders one citation. Styles outside Styles fall back to
// the raw locator.
func FormatCitation(c types.Citation, style Style) string {
	switch Style(strings.ToLower(string(style))) {
	case StyleAPA:
		return formatAPA(c)
	case StyleMLA:
		return formatMLA(c)
	case StyleChicago:
		return formatChicago(c)
	case StyleBibTeX:
		return formatBibTeX(c)
	default:
		return Raw(c)
	}
}

// Raw returns the locator form of a citation: the URL for web sources,
// "title, p. N" for documents.
func Raw(c types.Citation) string {
	if c.Kind == types.KindWeb {
		return c.URL
	}
	name := c.Title
	if name == "" {
		name = c.DocumentID
	}
	if c.Page > 0 {
		return fmt.Sprintf("%s, p. %d", name, c.Page)
	}
	return name
}

func formatAPA(c types.Citation) string {
	switch c.Kind {
	case types.KindWeb:
		title := titleOr(c)
		author := c.Author
		if author == "" && c.Domain != "" {
			author = organization(c.Domain)
		}
		if author != "" {
			return fmt.Sprintf("%s. (%s). %s. Retrieved from %s", author, year(c), title, c.URL)
		}
		return fmt.Sprintf("%s. (n.d.). Retrieved %s from %s", title, c.AccessedDate, c.URL)
	case types.KindDocument:
		return document(c, " (p. %d)")
	}
	return Raw(c)
}

func formatMLA(c types.Citation) string {
	switch c.Kind {
	case types.KindWeb:
		return fmt.Sprintf("\"%s.\" %s. Accessed %s.", titleOr(c), c.URL, c.AccessedDate)
	case types.KindDocument:
		return document(c, " (p. %d)")
	}
	return Raw(c)
}

func formatChicago(c types.Citation) string {
	switch c.Kind {
	case types.KindWeb:
		return fmt.Sprintf("\"%s.\" %s. Accessed %s.", titleOr(c), c.URL, c.AccessedDate)
	case types.KindDocument:
		return document(c, ", %d")
	}
	return Raw(c)
}

// formatBibTeX emits a single-line @misc entry keyed by the citation id.
func formatBibTeX(c types.Citation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@misc{%s, title = {%s}", c.ID, titleOr(c))
	if c.Author != "" {
		fmt.Fprintf(&b, ", author = {%s}", c.Author)
	}
	if y := year(c); y != "" {
		fmt.Fprintf(&b, ", year = {%s}", y)
	}
	if c.URL != "" {
		fmt.Fprintf(&b, ", howpublished = {\\url{%s}}, note = {Accessed %s}", c.URL, c.AccessedDate)
	}
	if c.Page > 0 {
		fmt.Fprintf(&b, ", pages = {%d}", c.Page)
	}
	b.WriteString("}")
	return b.String()
}

// document renders "author. title" plus the page in the given layout.
func document(c types.Citation, pageFormat string) string {
	out := c.Title
	if c.Author != "" {
		out = c.Author + ". " + c.Title
	}
	if c.Page > 0 {
		out += fmt.Sprintf(pageFormat, c.Page)
	}
	return out
}

func titleOr(c types.Citation) string {
	if c.Title == "" {
		return "Untitled"
	}
	return c.Title
}

// year prefers the publication year and falls back to the access year.
func year(c types.Citation) string {
	for _, d := range []string{c.PublishedDate, c.AccessedDate} {
		if len(d) >= 4 {
			return d[:4]
		}
	}
	return ""
}
