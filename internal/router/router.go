// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package router classifies a research query into a Strategy. The
// completion service describes the query in free text; the strategy is
// read from that text by keyword.
package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

const temperature = 0.3

const systemPrompt = `You are a research strategy coordinator. Analyze research queries
and determine the optimal research strategy.

Consider:
1. Query complexity (simple fact vs. comprehensive analysis)
2. Query type (factual, analytical, comparative, etc.)
3. Information needs (current events, historical, technical, etc.)
4. Required depth (quick answer vs. deep dive)

Determine:
- Whether to use web search, document retrieval, or both
- How many sources to gather
- What level of fact-checking is needed
- Whether the query requires specialized handling

Respond with a short structured description of the strategy.`

// Keyword groups. Each group matches at the start of a word, so "compare"
// also matches "compared" but "vs" does not match "canvas".
var (
	simpleWords      = keywords("simple", "quick", "factual", "basic")
	complexWords     = keywords("complex", "comprehensive", "deep", "detailed")
	comparativeWords = keywords("compare", "comparison", "versus", "vs")
	analyticalWords  = keywords("how", "why", "explain", "analyze")
	factualWords     = keywords("what", "when", "where", "who")
	documentWords    = keywords("document", "uploaded", "file", "pdf")
	currentWords     = keywords("current", "recent", "latest", "news")
)

func keywords(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)`)
}

// Decision is the router output: the strategy and the text it was read from.
type Decision struct {
	Strategy types.Strategy
	Text     string

	// FromQuery is set when the completion call failed and the strategy
	// was read from the query itself.
	FromQuery bool
}

// Router derives a Strategy for each query.
type Router struct {
	completer llm.Completer
	logger    *zap.Logger
}

// New returns a Router backed by completer. A nil completer makes every
// decision from the query text.
func New(completer llm.Completer, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{completer: completer, logger: logger}
}

// Route classifies query. A completion failure is not fatal: the strategy
// is parsed from the query text and the failure is logged.
func (r *Router) Route(ctx context.Context, query string) (Decision, error) {
	if strings.TrimSpace(query) == "" {
		return Decision{}, fmt.Errorf("%w: empty query", types.ErrInvalidInput)
	}
	if r.completer == nil {
		return Decision{Strategy: ParseStrategy(query), Text: query, FromQuery: true}, nil
	}

	text, err := r.completer.Complete(ctx, systemPrompt, "Research query: "+query, temperature)
	if err != nil {
		if ctx.Err() != nil {
			return Decision{}, ctx.Err()
		}
		r.logger.Warn("routing completion failed, classifying from query", zap.Error(err))
		return Decision{Strategy: ParseStrategy(query), Text: query, FromQuery: true}, nil
	}

	s := ParseStrategy(text)
	r.logger.Debug("routed query",
		zap.String("class", string(s.QueryClass)),
		zap.String("complexity", string(s.Complexity)),
		zap.Bool("web", s.UseWeb),
		zap.Bool("index", s.UseIndex))
	return Decision{Strategy: s, Text: text}, nil
}

// ParseStrategy reads a Strategy from routing text. Keyword groups are
// checked in priority order; the first matching group in each category
// wins and anything unmatched keeps the default.
func ParseStrategy(text string) types.Strategy {
	s := types.DefaultStrategy()

	switch {
	case simpleWords.MatchString(text):
		s.Complexity = types.ComplexitySimple
		s.MaxWebResults, s.MaxIndexResults = 3, 3
		s.VerificationDepth = types.DepthBasic
	case complexWords.MatchString(text):
		s.Complexity = types.ComplexityComplex
		s.MaxWebResults, s.MaxIndexResults = 8, 8
		s.VerificationDepth = types.DepthThorough
	}

	switch {
	case comparativeWords.MatchString(text):
		s.QueryClass = types.ClassComparative
	case analyticalWords.MatchString(text):
		s.QueryClass = types.ClassAnalytical
	case factualWords.MatchString(text):
		s.QueryClass = types.ClassFactual
	}

	switch {
	case documentWords.MatchString(text):
		s.UseIndex = true
	case currentWords.MatchString(text):
		s.UseIndex = false
	}

	return s
}
