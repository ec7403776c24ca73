// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// summaryWords is the length requested for report summaries.
const summaryWords = 200

// citedID matches inline citation ids such as [web_0] or [doc_12, web_3].
var citedID = regexp.MustCompile(`\b((?:web|doc)_\d+)\b`)

// Synthesizer turns verified findings into a titled Markdown report.
type Synthesizer struct {
	Completer llm.Completer

	// Summarize adds a short summary to every report. A failed summary
	// call is logged and leaves Report.Summary empty.
	Summarize bool

	Logger *zap.Logger
}

// Synthesize writes the report for query. The body always opens with a
// Markdown heading: when the model omits one the body is wrapped under
// "Research Report: {query}". CitedIDs lists the evidence ids the body
// refers to, in order of first mention.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, vf types.VerifiedFindings) (types.Report, error) {
	if s.Completer == nil {
		return types.Report{}, fmt.Errorf("%w: synthesis stage has no completion service", types.ErrConfig)
	}
	prompt, err := render(synthesisTmpl, struct {
		Query        string
		Findings     string
		Verification string
		Confidence   float64
		Evidence     []types.EvidenceItem
	}{query, vf.Findings.Narrative, vf.Narrative, vf.Confidence, vf.Findings.Evidence})
	if err != nil {
		return types.Report{}, fmt.Errorf("rendering synthesis prompt: %w", err)
	}

	text, err := s.Completer.Complete(ctx, synthesisSystem, prompt, synthesisTemperature)
	if err != nil {
		return types.Report{}, fmt.Errorf("synthesizing report: %w", types.Upstream("completion", err))
	}

	title, body := addTitle(strings.TrimSpace(text), query)
	report := types.Report{
		Title:     title,
		Body:      body,
		CitedIDs:  CitedIDs(body, vf.Findings.CitationIDs()),
		WordCount: len(strings.Fields(body)),
	}

	if s.Summarize {
		summary, err := s.summarize(ctx, body)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("report summary failed", zap.Error(err))
			}
		} else {
			report.Summary = summary
		}
	}
	return report, nil
}

func (s *Synthesizer) summarize(ctx context.Context, body string) (string, error) {
	prompt, err := render(summaryTmpl, struct {
		Report string
		Words  int
	}{body, summaryWords})
	if err != nil {
		return "", fmt.Errorf("rendering summary prompt: %w", err)
	}
	text, err := s.Completer.Complete(ctx, synthesisSystem, prompt, synthesisTemperature)
	if err != nil {
		return "", types.Upstream("completion", err)
	}
	return strings.TrimSpace(text), nil
}

// addTitle returns the report title and a body guaranteed to start with a
// heading.
func addTitle(body, query string) (string, string) {
	if strings.HasPrefix(body, "#") {
		first, _, _ := strings.Cut(body, "\n")
		title := strings.TrimSpace(strings.TrimLeft(first, "#"))
		if title == "" {
			title = "Research Report: " + query
		}
		return title, body
	}
	title := "Research Report: " + query
	var b strings.Builder
	b.WriteString("# " + title + "\n\n")
	b.WriteString("**Query:** " + query + "\n\n")
	b.WriteString("---\n\n")
	b.WriteString(body)
	return title, b.String()
}

// CitedIDs returns the citation ids mentioned in body, in order of first
// mention. When known is non-nil, ids outside it are dropped.
func CitedIDs(body string, known []string) []string {
	var allowed map[string]bool
	if known != nil {
		allowed = make(map[string]bool, len(known))
		for _, id := range known {
			allowed[id] = true
		}
	}
	seen := make(map[string]bool)
	ids := []string{}
	for _, m := range citedID.FindAllStringSubmatch(body, -1) {
		id := m[1]
		if seen[id] || (allowed != nil && !allowed[id]) {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
