// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs a research query through routing, research,
// verification, synthesis, evaluation and persistence. A failure in any
// content stage triggers one reduced fallback run through the same stages
// with verification skipped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/internal/citation"
	"github.com/pdiddy/research-pipeline/internal/index"
	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/internal/router"
	"github.com/pdiddy/research-pipeline/internal/session"
	"github.com/pdiddy/research-pipeline/internal/stage"
	"github.com/pdiddy/research-pipeline/internal/websearch"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// State is a step of the run state machine.
type State string

const (
	StateRouting              State = "routing"
	StateResearching          State = "researching"
	StateVerifying            State = "verifying"
	StateSynthesizing         State = "synthesizing"
	StateEvaluating           State = "evaluating"
	StatePersisting           State = "persisting"
	StateDone                 State = "done"
	StateFallbackResearching  State = "fallback_researching"
	StateFallbackSynthesizing State = "fallback_synthesizing"
	StateFallbackEvaluating   State = "fallback_evaluating"
	StateFailed               State = "failed"
)

// Deps are the collaborators of a pipeline. Router, Sessions and Index may
// be nil: without a router every run uses types.DefaultStrategy, without a
// session store nothing is persisted, and without an index Ingest fails.
type Deps struct {
	Router      *router.Router
	Researcher  *stage.Researcher
	Verifier    *stage.Verifier
	Synthesizer *stage.Synthesizer
	Evaluator   *stage.Evaluator
	Registry    *citation.Registry
	Sessions    *session.Store
	Index       *index.Index

	// IndexDir is where Ingest saves the index. Empty keeps it in memory.
	IndexDir string
}

// NewDeps wires every stage to one completer. search and ix may be nil.
func NewDeps(completer llm.Completer, search websearch.Searcher, ix *index.Index, reg *citation.Registry, sessions *session.Store, cfg types.PipelineConfig, logger *zap.Logger) Deps {
	researcher := &stage.Researcher{Search: search, Registry: reg, Completer: completer, Logger: logger}
	if ix != nil {
		researcher.Index = ix
	}
	return Deps{
		Router:      router.New(completer, logger),
		Researcher:  researcher,
		Verifier:    &stage.Verifier{Completer: completer, Logger: logger},
		Synthesizer: &stage.Synthesizer{Completer: completer, Summarize: cfg.Summarize, Logger: logger},
		Evaluator:   &stage.Evaluator{Completer: completer, Logger: logger},
		Registry:    reg,
		Sessions:    sessions,
		Index:       ix,
	}
}

// Request is one research run.
type Request struct {
	Query string

	// UseWeb and UseIndex override the router's choice when non-nil.
	UseWeb   *bool
	UseIndex *bool

	// Persist saves the result as a session.
	Persist bool

	// Filter restricts index matches by chunk metadata.
	Filter map[string]string
}

// Result is the outcome of a run. On failure it still carries the trace.
type Result struct {
	Query         string              `json:"query"`
	Report        types.Report        `json:"report"`
	Citations     []types.Citation    `json:"citations"`
	QualityScores types.QualityScores `json:"quality_scores"`
	Evaluation    types.Evaluation    `json:"evaluation"`
	Confidence    float64             `json:"confidence"`
	Verified      bool                `json:"verified"`
	SessionID     string              `json:"session_id,omitempty"`
	Strategy      types.Strategy      `json:"strategy"`

	// Degraded marks a result produced by the fallback path.
	Degraded bool `json:"degraded"`

	// Trace lists every state entered, in order.
	Trace []State `json:"trace"`

	// Warnings collects absorbed problems: failed sources, a failed
	// primary path, an unsaved session.
	Warnings []string `json:"warnings,omitempty"`
}

// RunError is returned when the primary path failed and the fallback path
// was unavailable or failed too.
type RunError struct {
	Primary  error
	Fallback error
}

func (e *RunError) Error() string {
	if e.Fallback == nil {
		return "research run failed: " + e.Primary.Error()
	}
	return fmt.Sprintf("research run failed: %v; fallback also failed: %v", e.Primary, e.Fallback)
}

// Unwrap exposes both causes to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	errs := make([]error, 0, 2)
	for _, err := range []error{e.Primary, e.Fallback} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// path names the states of one pass through the content stages.
type path struct {
	researching  State
	verifying    State
	synthesizing State
	evaluating   State
	skipVerify   bool
	allowEmpty   bool
}

var primaryPath = path{
	researching:  StateResearching,
	verifying:    StateVerifying,
	synthesizing: StateSynthesizing,
	evaluating:   StateEvaluating,
}

// Pipeline runs research queries. It holds no per-run state, so one
// Pipeline serves concurrent runs.
type Pipeline struct {
	deps   Deps
	cfg    types.PipelineConfig
	logger *zap.Logger
}

// New returns a pipeline over deps.
func New(deps Deps, cfg types.PipelineConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, cfg: cfg, logger: logger}
}

// outcome is what one pass through the content stages produces.
type outcome struct {
	findings types.Findings
	verified types.VerifiedFindings
	report   types.Report
	eval     types.Evaluation
}

// Run executes req. The returned Result is never nil; on error its trace
// ends in StateFailed. When both the primary and the fallback path fail the
// error is a *RunError carrying both causes.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	query := strings.TrimSpace(req.Query)
	res := &Result{Query: query}
	if query == "" {
		return p.fail(res, fmt.Errorf("%w: query is empty", types.ErrInvalidInput))
	}
	log := p.logger.With(zap.String("query", query))

	p.enter(res, StateRouting)
	strategy := types.DefaultStrategy()
	if p.deps.Router != nil {
		decision, err := p.deps.Router.Route(ctx, query)
		if err != nil {
			return p.fail(res, fmt.Errorf("routing: %w", err))
		}
		strategy = decision.Strategy
	}
	strategy = strategy.WithOverrides(req.UseWeb, req.UseIndex)
	res.Strategy = strategy

	var sess *types.Session
	if req.Persist && p.deps.Sessions != nil {
		sess = p.deps.Sessions.Create(query)
	}

	out, primaryErr := p.attempt(ctx, res, query, strategy, primaryPath, req.Filter)
	if primaryErr != nil {
		if !p.canFallback(ctx, primaryErr) {
			return p.fail(res, &RunError{Primary: primaryErr})
		}
		log.Warn("primary path failed, running fallback", zap.Error(primaryErr))
		res.Warnings = append(res.Warnings, "primary path failed: "+primaryErr.Error())

		reduced := strategy.Reduced(p.cfg.Fallback.MaxWebResults, p.cfg.Fallback.MaxIndexResults)
		fallback := path{
			researching:  StateFallbackResearching,
			synthesizing: StateFallbackSynthesizing,
			evaluating:   StateFallbackEvaluating,
			skipVerify:   true,
			allowEmpty:   p.cfg.Fallback.AllowEmptyEvidence,
		}
		var fallbackErr error
		out, fallbackErr = p.attempt(ctx, res, query, reduced, fallback, req.Filter)
		if fallbackErr != nil {
			return p.fail(res, &RunError{Primary: primaryErr, Fallback: fallbackErr})
		}
		res.Strategy = reduced
		res.Degraded = true
	}

	p.collect(res, out)

	if req.Persist {
		p.enter(res, StatePersisting)
		p.persist(res, sess)
	}
	p.enter(res, StateDone)
	log.Info("research run complete",
		zap.Bool("degraded", res.Degraded),
		zap.Float64("confidence", res.Confidence),
		zap.Float64("quality", res.QualityScores.Average),
		zap.Int("citations", len(res.Citations)))
	return res, nil
}

// attempt runs research, verification, synthesis and evaluation once.
func (p *Pipeline) attempt(ctx context.Context, res *Result, query string, strategy types.Strategy, pp path, filter map[string]string) (outcome, error) {
	var out outcome

	p.enter(res, pp.researching)
	findings, err := p.deps.Researcher.Research(ctx, query, strategy, stage.ResearchOptions{
		AllowEmpty: pp.allowEmpty,
		Filter:     filter,
	})
	if err != nil {
		return out, fmt.Errorf("research: %w", err)
	}
	out.findings = findings

	if pp.skipVerify {
		out.verified = p.deps.Verifier.Skip(findings)
	} else {
		p.enter(res, pp.verifying)
		out.verified, err = p.deps.Verifier.Verify(ctx, query, findings, strategy.VerificationDepth)
		if err != nil {
			return out, fmt.Errorf("verification: %w", err)
		}
	}

	p.enter(res, pp.synthesizing)
	out.report, err = p.deps.Synthesizer.Synthesize(ctx, query, out.verified)
	if err != nil {
		return out, fmt.Errorf("synthesis: %w", err)
	}

	p.enter(res, pp.evaluating)
	out.eval, err = p.deps.Evaluator.Evaluate(ctx, query, out.report, len(findings.CitationIDs()))
	if err != nil {
		return out, fmt.Errorf("evaluation: %w", err)
	}
	return out, nil
}

func (p *Pipeline) canFallback(ctx context.Context, err error) bool {
	if !p.cfg.Fallback.Enabled || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, types.ErrInvalidInput)
}

func (p *Pipeline) collect(res *Result, out outcome) {
	res.Report = out.report
	res.Evaluation = out.eval
	res.QualityScores = out.eval.Scores
	res.Confidence = out.verified.Confidence
	res.Verified = out.verified.Verified
	if p.deps.Registry != nil {
		res.Citations = p.deps.Registry.Lookup(out.findings.CitationIDs())
	}
	if res.Citations == nil {
		res.Citations = []types.Citation{}
	}
	for _, source := range []string{stage.SourceWeb, stage.SourceIndex} {
		if msg, ok := out.findings.SourceErrors[source]; ok {
			res.Warnings = append(res.Warnings, source+" source failed: "+msg)
		}
	}
}

// persist saves the run as a session. Failures are warnings.
func (p *Pipeline) persist(res *Result, sess *types.Session) {
	if sess == nil {
		res.Warnings = append(res.Warnings, "session not saved: no session store configured")
		return
	}
	err := p.deps.Sessions.Save(sess,
		session.WithReport(res.Report),
		session.WithScores(res.QualityScores),
		session.WithCitations(res.Citations))
	if err != nil {
		p.logger.Warn("session not saved", zap.String("session", sess.ID), zap.Error(err))
		res.Warnings = append(res.Warnings, "session not saved: "+err.Error())
		return
	}
	res.SessionID = sess.ID
}

func (p *Pipeline) enter(res *Result, s State) {
	res.Trace = append(res.Trace, s)
	p.logger.Debug("pipeline state", zap.String("state", string(s)), zap.String("query", res.Query))
}

func (p *Pipeline) fail(res *Result, err error) (*Result, error) {
	p.enter(res, StateFailed)
	p.logger.Error("research run failed", zap.String("query", res.Query), zap.String("kind", types.Kind(err)), zap.Error(err))
	return res, err
}

// Ingest adds documents to the retrieval index and saves it to IndexDir.
func (p *Pipeline) Ingest(ctx context.Context, docs []string, meta []map[string]string) (int, error) {
	if p.deps.Index == nil {
		return 0, fmt.Errorf("%w: no retrieval index configured", types.ErrConfig)
	}
	n, err := p.deps.Index.Ingest(ctx, docs, meta)
	if err != nil {
		return 0, fmt.Errorf("ingesting documents: %w", err)
	}
	if p.deps.IndexDir != "" {
		if err := p.deps.Index.Save(ctx, p.deps.IndexDir); err != nil {
			return n, fmt.Errorf("saving index: %w", err)
		}
	}
	return n, nil
}
