// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/internal/fieldscan"
	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Evaluator scores finished reports.
type Evaluator struct {
	Completer llm.Completer
	Logger    *zap.Logger
}

// Evaluate scores report on the six quality dimensions.
func (e *Evaluator) Evaluate(ctx context.Context, query string, report types.Report, sourceCount int) (types.Evaluation, error) {
	if e.Completer == nil {
		return types.Evaluation{}, fmt.Errorf("%w: evaluation stage has no completion service", types.ErrConfig)
	}
	prompt, err := render(evaluationTmpl, struct {
		Query   string
		Report  string
		Sources int
	}{query, report.Body, sourceCount})
	if err != nil {
		return types.Evaluation{}, fmt.Errorf("rendering evaluation prompt: %w", err)
	}

	text, err := e.Completer.Complete(ctx, evaluationSystem, prompt, evaluationTemperature)
	if err != nil {
		return types.Evaluation{}, fmt.Errorf("evaluating report: %w", types.Upstream("completion", err))
	}

	ev := ParseEvaluation(text)
	if e.Logger != nil {
		e.Logger.Debug("report evaluated",
			zap.Int("dimensions", len(ev.Scores.Dimensions)),
			zap.Float64("average", ev.Scores.Average))
	}
	return ev, nil
}

// ParseEvaluation reads dimension scores and the strengths, weaknesses
// and suggestions sections out of evaluation text. Missing dimensions are
// left out of the scores; missing sections are empty.
func ParseEvaluation(text string) types.Evaluation {
	dims := make(map[string]float64)
	for _, dim := range types.Dimensions {
		if v, ok := fieldscan.Score(text, dim); ok {
			dims[dim] = v
		}
	}
	return types.Evaluation{
		Scores:      types.NewQualityScores(dims),
		Text:        strings.TrimSpace(text),
		Strengths:   fieldscan.Section(text, "strength"),
		Weaknesses:  fieldscan.Section(text, "weakness"),
		Suggestions: fieldscan.Section(text, "suggestion"),
	}
}
