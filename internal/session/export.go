// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-pipeline/internal/citation"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// frontmatter is the YAML header written ahead of an exported report.
type frontmatter struct {
	SessionID string             `yaml:"session_id"`
	Query     string             `yaml:"query"`
	Title     string             `yaml:"title,omitempty"`
	CreatedAt string             `yaml:"created_at"`
	UpdatedAt string             `yaml:"updated_at"`
	Average   float64            `yaml:"quality_average"`
	Scores    map[string]float64 `yaml:"quality_scores,omitempty"`
	Citations int                `yaml:"citations"`
	WordCount int                `yaml:"word_count,omitempty"`
}

// ExportMarkdown writes sess as a Markdown document: YAML frontmatter, the
// report body, and a reference list in the requested style. A session
// without a report exports its query and references only.
func ExportMarkdown(w io.Writer, sess types.Session, style citation.Style) error {
	fm := frontmatter{
		SessionID: sess.ID,
		Query:     sess.Query,
		CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: sess.UpdatedAt.UTC().Format(time.RFC3339),
		Average:   sess.QualityScores.Average,
		Scores:    sess.QualityScores.Dimensions,
		Citations: len(sess.Citations),
	}
	if sess.Report != nil {
		fm.Title = sess.Report.Title
		fm.WordCount = sess.Report.WordCount
	}

	var b strings.Builder
	b.WriteString("---\n")
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return fmt.Errorf("encoding frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding frontmatter: %w", err)
	}
	b.WriteString("---\n\n")

	if sess.Report != nil {
		b.WriteString(strings.TrimSpace(sess.Report.Body))
		b.WriteString("\n")
		if sess.Report.Summary != "" {
			fmt.Fprintf(&b, "\n## Summary\n\n%s\n", strings.TrimSpace(sess.Report.Summary))
		}
	} else {
		fmt.Fprintf(&b, "# %s\n\n_No report was produced for this session._\n", sess.Query)
	}

	if len(sess.Citations) > 0 {
		b.WriteString("\n")
		b.WriteString(citation.ReferenceList(sess.Citations, style, true))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Summary is one line of a session listing.
type Summary struct {
	ID        string
	Query     string
	Title     string
	Average   float64
	Citations int
	CreatedAt time.Time
}

// Summarize condenses sessions for list output, keeping their order.
func Summarize(sessions []types.Session) []Summary {
	out := make([]Summary, len(sessions))
	for i, s := range sessions {
		out[i] = Summary{
			ID:        s.ID,
			Query:     s.Query,
			Average:   s.QualityScores.Average,
			Citations: len(s.Citations),
			CreatedAt: s.CreatedAt,
		}
		if s.Report != nil {
			out[i].Title = s.Report.Title
		}
	}
	return out
}

// SortedPreferenceKeys returns preference keys in lexical order.
func SortedPreferenceKeys(prefs map[string]any) []string {
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
