package citation

import (
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form.
// Field names follow the CSL-YAML schema so Pandoc and reference managers
// can consume the output directly.
type CSLItem struct {
	ID        string    `yaml:"id"`
	Type      string    `yaml:"type"`
	Title     string    `yaml:"title"`
	Author    []CSLName `yaml:"author,omitempty"`
	URL       string    `yaml:"URL,omitempty"`
	Page      string    `yaml:"page,omitempty"`
	Abstract  string    `yaml:"abstract,omitempty"`
	Publisher string    `yaml:"publisher,omitempty"`
	Issued    *CSLDate  `yaml:"issued,omitempty"`
	Accessed  *CSLDate  `yaml:"accessed,omitempty"`
}

// CSLName is a person or organization name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a date in CSL date-parts form.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// WriteCSL writes citations as a CSL-YAML list to w.
func WriteCSL(w io.Writer, cs []types.Citation) error {
	items := make([]CSLItem, len(cs))
	for i, c := range cs {
		items[i] = toCSLItem(c)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func toCSLItem(c types.Citation) CSLItem {
	item := CSLItem{
		ID:       c.ID,
		Title:    c.Title,
		Abstract: c.Snippet,
		Issued:   parseDate(c.PublishedDate),
		Accessed: parseDate(c.AccessedDate),
	}

	switch c.Kind {
	case types.KindWeb:
		item.Type = "webpage"
		item.URL = c.URL
		item.Publisher = organization(c.Domain)
	default:
		item.Type = "document"
		if c.Page > 0 {
			item.Page = strconv.Itoa(c.Page)
		}
	}

	if c.Author != "" {
		item.Author = []CSLName{parseAuthorName(c.Author)}
	}
	return item
}

// parseAuthorName splits a full name on the last space: everything before
// is given, the last token is family. Single-token names use literal.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{Given: name[:idx], Family: name[idx+1:]}
}

// parseDate reads "YYYY", "YYYY-MM" or "YYYY-MM-DD" prefixes into date
// parts. Anything else yields nil.
func parseDate(s string) *CSLDate {
	var parts []int
	for _, field := range strings.SplitN(strings.TrimSpace(s), "-", 3) {
		if len(field) > 2 && len(parts) > 0 {
			field = field[:2]
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			break
		}
		parts = append(parts, n)
	}
	if len(parts) == 0 {
		return nil
	}
	return &CSLDate{DateParts: [][]int{parts}}
}
