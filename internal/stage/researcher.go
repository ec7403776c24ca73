// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stage implements the four content stages of a research run:
// research, verification, synthesis and evaluation. Each stage is a thin
// prompt around the completion service plus the bookkeeping that turns its
// free-text answer into typed results.
package stage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-pipeline/internal/citation"
	"github.com/pdiddy/research-pipeline/internal/index"
	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/internal/websearch"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Source keys used in Findings.SourceErrors.
const (
	SourceWeb   = "web"
	SourceIndex = "index"
)

// snippetLimit bounds the excerpt stored with each citation.
const snippetLimit = 200

// Retriever is the part of the retrieval index the research stage needs.
type Retriever interface {
	Search(ctx context.Context, question string, k int, filter map[string]string) ([]index.Match, error)
}

// ResearchOptions adjusts a single research pass.
type ResearchOptions struct {
	// AllowEmpty lets the pass continue to the narrative when no source
	// produced evidence.
	AllowEmpty bool

	// Filter restricts index matches by chunk metadata.
	Filter map[string]string

	IncludeDomains []string
	ExcludeDomains []string
}

// Researcher gathers evidence from the web and the retrieval index and
// asks the completion service to synthesize it. Search, Index and Registry
// may be nil; a nil source counts as failed when the strategy enables it.
type Researcher struct {
	Search    websearch.Searcher
	Index     Retriever
	Registry  *citation.Registry
	Completer llm.Completer
	Logger    *zap.Logger
}

// Research fetches web results and index matches concurrently, registers a
// citation for each and synthesizes a narrative. A failing source is
// recorded in Findings.SourceErrors as long as the other one produced
// evidence. When nothing was gathered the error wraps types.ErrNoEvidence
// together with each source's failure, unless opts.AllowEmpty is set.
func (r *Researcher) Research(ctx context.Context, query string, strategy types.Strategy, opts ResearchOptions) (types.Findings, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return types.Findings{}, fmt.Errorf("%w: query is empty", types.ErrInvalidInput)
	}
	logger := r.logger()

	var (
		webResults []websearch.Result
		matches    []index.Match
		webErr     error
		indexErr   error
	)

	var g errgroup.Group
	if strategy.UseWeb {
		g.Go(func() error {
			webResults, webErr = r.fetchWeb(ctx, query, strategy.MaxWebResults, opts)
			return nil
		})
	}
	if strategy.UseIndex {
		g.Go(func() error {
			matches, indexErr = r.fetchIndex(ctx, query, strategy.MaxIndexResults, opts.Filter)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return types.Findings{}, fmt.Errorf("researching: %w", err)
	}

	findings := types.Findings{Query: query}
	if webErr != nil {
		logger.Warn("web search failed", zap.Error(webErr))
		findings.SourceErrors = addSourceError(findings.SourceErrors, SourceWeb, webErr)
	}
	if indexErr != nil {
		logger.Warn("index retrieval failed", zap.Error(indexErr))
		findings.SourceErrors = addSourceError(findings.SourceErrors, SourceIndex, indexErr)
	}

	for _, res := range webResults {
		findings.Evidence = append(findings.Evidence, r.webEvidence(res))
	}
	for _, m := range matches {
		findings.Evidence = append(findings.Evidence, r.documentEvidence(m))
	}
	logger.Debug("research evidence gathered",
		zap.Int("web", len(webResults)),
		zap.Int("documents", len(matches)))

	if len(findings.Evidence) == 0 && !opts.AllowEmpty {
		return findings, noEvidence(query, strategy, webErr, indexErr)
	}

	if r.Completer == nil {
		return findings, fmt.Errorf("%w: research stage has no completion service", types.ErrConfig)
	}
	prompt, err := render(researchTmpl, researchData(query, findings.Evidence))
	if err != nil {
		return findings, fmt.Errorf("rendering research prompt: %w", err)
	}
	narrative, err := r.Completer.Complete(ctx, researchSystem, prompt, researchTemperature)
	if err != nil {
		return findings, fmt.Errorf("synthesizing findings: %w", types.Upstream("completion", err))
	}
	findings.Narrative = strings.TrimSpace(narrative)
	return findings, nil
}

func (r *Researcher) fetchWeb(ctx context.Context, query string, limit int, opts ResearchOptions) ([]websearch.Result, error) {
	if r.Search == nil {
		return nil, fmt.Errorf("%w: web search is not configured", types.ErrConfig)
	}
	resp := r.Search.Search(ctx, query, websearch.Options{
		MaxResults:     limit,
		IncludeDomains: opts.IncludeDomains,
		ExcludeDomains: opts.ExcludeDomains,
	})
	if resp.Error != "" && len(resp.Results) == 0 {
		return nil, types.Upstream("web search", errors.New(resp.Error))
	}
	return resp.Results, nil
}

func (r *Researcher) fetchIndex(ctx context.Context, query string, k int, filter map[string]string) ([]index.Match, error) {
	if r.Index == nil {
		return nil, fmt.Errorf("%w: retrieval index is not configured", types.ErrConfig)
	}
	return r.Index.Search(ctx, query, k, filter)
}

func (r *Researcher) webEvidence(res websearch.Result) types.EvidenceItem {
	item := types.EvidenceItem{
		Kind:    types.KindWeb,
		URL:     res.URL,
		Title:   res.Title,
		Snippet: res.Content,
	}
	if r.Registry != nil {
		item.CitationID = r.Registry.Register(types.KindWeb,
			types.Locator{URL: res.URL},
			types.CitationMeta{
				Title:         res.Title,
				PublishedDate: res.PublishedDate,
				Snippet:       clip(res.Content, snippetLimit),
			})
	}
	return item
}

func (r *Researcher) documentEvidence(m index.Match) types.EvidenceItem {
	c := m.Chunk
	title := c.Title
	if title == "" {
		title = c.Source
	}
	item := types.EvidenceItem{
		Kind:       types.KindDocument,
		DocumentID: c.DocumentID,
		Page:       c.Page,
		Title:      title,
		Snippet:    c.Text,
	}
	if r.Registry != nil {
		item.CitationID = r.Registry.Register(types.KindDocument,
			types.Locator{DocumentID: c.DocumentID, Page: c.Page},
			types.CitationMeta{
				Title:   title,
				Author:  c.Metadata[index.MetaAuthor],
				Snippet: clip(c.Text, snippetLimit),
			})
	}
	return item
}

func (r *Researcher) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func addSourceError(m map[string]string, source string, err error) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[source] = err.Error()
	return m
}

// noEvidence combines the per-source failures into one error.
func noEvidence(query string, strategy types.Strategy, webErr, indexErr error) error {
	var reasons []string
	if !strategy.UseWeb && !strategy.UseIndex {
		reasons = append(reasons, "all sources disabled")
	}
	if strategy.UseWeb && webErr == nil {
		reasons = append(reasons, "web search returned no results")
	}
	if strategy.UseIndex && indexErr == nil {
		reasons = append(reasons, "index returned no matches")
	}
	head := fmt.Errorf("%w for %q", types.ErrNoEvidence, query)
	if len(reasons) > 0 {
		head = fmt.Errorf("%w for %q: %s", types.ErrNoEvidence, query, strings.Join(reasons, "; "))
	}
	var errs []error
	errs = append(errs, head)
	if webErr != nil {
		errs = append(errs, fmt.Errorf("web: %w", webErr))
	}
	if indexErr != nil {
		errs = append(errs, fmt.Errorf("index: %w", indexErr))
	}
	return errors.Join(errs...)
}

type researchPromptData struct {
	Query     string
	Web       []types.EvidenceItem
	Documents []types.EvidenceItem
}

func researchData(query string, evidence []types.EvidenceItem) researchPromptData {
	d := researchPromptData{Query: query}
	for _, e := range evidence {
		if e.Kind == types.KindWeb {
			d.Web = append(d.Web, e)
		} else {
			d.Documents = append(d.Documents, e)
		}
	}
	return d
}

// formatSources renders evidence as a numbered source list for prompts.
func formatSources(evidence []types.EvidenceItem) string {
	if len(evidence) == 0 {
		return "No sources provided"
	}
	lines := make([]string, 0, len(evidence))
	for i, e := range evidence {
		id := e.CitationID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		switch e.Kind {
		case types.KindWeb:
			lines = append(lines, fmt.Sprintf("[%s] Web: %s - %s", id, orDefault(e.Title, "Unknown"), orDefault(e.URL, "No URL")))
		default:
			page := "N/A"
			if e.Page > 0 {
				page = strconv.Itoa(e.Page)
			}
			lines = append(lines, fmt.Sprintf("[%s] Document: %s (Page %s)", id, orDefault(e.DocumentID, "Unknown"), page))
		}
	}
	return strings.Join(lines, "\n")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
