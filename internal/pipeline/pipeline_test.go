// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdiddy/research-pipeline/internal/citation"
	"github.com/pdiddy/research-pipeline/internal/index"
	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/internal/session"
	"github.com/pdiddy/research-pipeline/internal/websearch"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Stage roles, recognized by their system prompts.
const (
	roleRouter     = "strategy coordinator"
	roleResearch   = "research specialist"
	roleVerify     = "fact-checking specialist"
	roleSynthesize = "research synthesizer"
	roleEvaluate   = "quality evaluator"
)

var roles = []string{roleRouter, roleResearch, roleVerify, roleSynthesize, roleEvaluate}

// script answers completion calls per stage role. A role mapped to an
// error fails every call.
type script struct {
	mu      sync.Mutex
	replies map[string]string
	fail    map[string]error
	calls   map[string]int
}

func newScript() *script {
	return &script{
		replies: map[string]string{
			roleRouter:     "A simple factual question about current events.",
			roleResearch:   "Go 1 was released in 2012 [web_0].",
			roleVerify:     "Verified Facts: release year\nContradictions: None\nOverall Confidence: 8/10",
			roleSynthesize: "# Go 1\n\nGo 1 shipped in 2012 [web_0].",
			roleEvaluate:   "Completeness: 8\nAccuracy: 6\nRelevance: 7\nClarity: 8\nSource Quality: 7\nCitation Quality: 6",
		},
		fail:  map[string]error{},
		calls: map[string]int{},
	}
}

func (s *script) Complete(_ context.Context, system, _ string, _ float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range roles {
		if strings.Contains(system, role) {
			s.calls[role]++
			if err := s.fail[role]; err != nil {
				return "", err
			}
			return s.replies[role], nil
		}
	}
	return "", fmt.Errorf("unexpected system prompt %q", system)
}

func (s *script) failRole(role string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[role] = err
}

func (s *script) count(role string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[role]
}

type stubSearcher struct {
	resp  websearch.Response
	calls atomic.Int32
}

func (s *stubSearcher) Search(_ context.Context, query string, opts websearch.Options) websearch.Response {
	s.calls.Add(1)
	resp := s.resp
	resp.Query = query
	if opts.MaxResults > 0 && len(resp.Results) > opts.MaxResults {
		resp.Results = resp.Results[:opts.MaxResults]
	}
	return resp
}

func goHits() websearch.Response {
	return websearch.Response{Results: []websearch.Result{
		{Title: "Go 1 release", URL: "https://go.dev/blog/go1", Content: "Go 1 was released in March 2012."},
		{Title: "Go history", URL: "https://en.wikipedia.org/wiki/Go_(programming_language)", Content: "Go was announced in 2009."},
		{Title: "Go FAQ", URL: "https://go.dev/doc/faq", Content: "Frequently asked questions."},
		{Title: "Go spec", URL: "https://go.dev/ref/spec", Content: "The Go programming language specification."},
	}}
}

func bucketEmbedder() llm.Embedder {
	return llm.EmbedderFunc(func(_ context.Context, text string) ([]float32, error) {
		v := make([]float32, 16)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			v[len(strings.Trim(w, ".,?!"))%16]++
		}
		return v, nil
	})
}

type fixture struct {
	script   *script
	search   *stubSearcher
	index    *index.Index
	registry *citation.Registry
	sessions *session.Store
	sessDir  string
	pipeline *Pipeline
}

func newFixture(t *testing.T, cfg types.PipelineConfig) *fixture {
	t.Helper()
	f := &fixture{
		script:   newScript(),
		search:   &stubSearcher{resp: goHits()},
		registry: citation.NewRegistry(),
		sessDir:  filepath.Join(t.TempDir(), "sessions"),
	}
	f.index = index.New(bucketEmbedder(), f.script, types.IndexConfig{ChunkSize: 200, ChunkOverlap: 20}, nil)
	_, err := f.index.Ingest(context.Background(),
		[]string{"Go 1 froze the language specification in 2012."},
		[]map[string]string{{index.MetaDocumentID: "go-history", index.MetaTitle: "A History of Go", index.MetaPage: "4"}})
	require.NoError(t, err)

	f.sessions, err = session.NewStore(f.sessDir, nil)
	require.NoError(t, err)

	deps := NewDeps(f.script, f.search, f.index, f.registry, f.sessions, cfg, nil)
	f.pipeline = New(deps, cfg, nil)
	return f
}

func defaultConfig() types.PipelineConfig {
	return types.PipelineConfig{Fallback: types.DefaultFallback()}
}

func boolPtr(b bool) *bool { return &b }

func TestRunPrimaryPath(t *testing.T) {
	f := newFixture(t, defaultConfig())

	res, err := f.pipeline.Run(context.Background(), Request{Query: "When was Go 1 released?", Persist: true})
	require.NoError(t, err)

	want := []State{StateRouting, StateResearching, StateVerifying, StateSynthesizing, StateEvaluating, StatePersisting, StateDone}
	if diff := cmp.Diff(want, res.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, res.Degraded)
	assert.InDelta(t, 8.0, res.Confidence, 1e-9)
	assert.True(t, res.Verified)
	assert.Equal(t, "Go 1", res.Report.Title)
	assert.Equal(t, []string{"web_0"}, res.Report.CitedIDs)
	assert.InDelta(t, 7.0, res.QualityScores.Average, 1e-9)
	assert.Empty(t, res.Warnings)

	// "simple" and "current" in the router text: three web results, no index.
	assert.Equal(t, 3, res.Strategy.MaxWebResults)
	assert.False(t, res.Strategy.UseIndex)
	require.Len(t, res.Citations, 3)
	for _, c := range res.Citations {
		assert.Equal(t, types.KindWeb, c.Kind)
	}

	require.NotEmpty(t, res.SessionID)
	sess, ok := f.sessions.Get(res.SessionID)
	require.True(t, ok)
	require.NotNil(t, sess.Report)
	assert.Equal(t, res.Report, *sess.Report)
	assert.Equal(t, res.QualityScores, sess.QualityScores)
	assert.Equal(t, res.Citations, sess.Citations)
}

func TestRunComparativeQuery(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.script.replies[roleRouter] = "The user wants to compare X and Y in a detailed analysis."

	res, err := f.pipeline.Run(context.Background(), Request{Query: "Compare X and Y"})
	require.NoError(t, err)
	assert.Equal(t, types.ClassComparative, res.Strategy.QueryClass)
	assert.Equal(t, types.DepthThorough, res.Strategy.VerificationDepth)
	assert.Empty(t, res.SessionID)
	assert.NotContains(t, res.Trace, StatePersisting)
	assert.Empty(t, f.sessions.All())
}

func TestRunWebFailsIndexSucceeds(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.search.resp = websearch.Response{Error: "tavily: HTTP 503"}

	res, err := f.pipeline.Run(context.Background(), Request{Query: "Go language history", UseIndex: boolPtr(true)})
	require.NoError(t, err)

	assert.Contains(t, res.Trace, StateSynthesizing)
	assert.False(t, res.Degraded)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, types.KindDocument, res.Citations[0].Kind)
	assert.Equal(t, "go-history", res.Citations[0].DocumentID)
	assert.Equal(t, 4, res.Citations[0].Page)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "web source failed")
}

func TestRunOverridesWinOverRouter(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.script.replies[roleRouter] = "Search the uploaded document collection."

	res, err := f.pipeline.Run(context.Background(), Request{Query: "q", UseWeb: boolPtr(false), UseIndex: boolPtr(true)})
	require.NoError(t, err)
	assert.False(t, res.Strategy.UseWeb)
	assert.True(t, res.Strategy.UseIndex)
	assert.Zero(t, f.search.calls.Load())
}

func TestRunBothSourcesDisabled(t *testing.T) {
	f := newFixture(t, defaultConfig())

	res, err := f.pipeline.Run(context.Background(), Request{Query: "q", UseWeb: boolPtr(false), UseIndex: boolPtr(false), Persist: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNoEvidence)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Error(t, runErr.Primary)
	assert.Error(t, runErr.Fallback)

	want := []State{StateRouting, StateResearching, StateFallbackResearching, StateFailed}
	if diff := cmp.Diff(want, res.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, f.script.count(roleResearch))
	assert.Empty(t, f.sessions.All())
}

func TestRunBothSourcesDisabledWithEmptyEvidenceAllowed(t *testing.T) {
	cfg := defaultConfig()
	cfg.Fallback.AllowEmptyEvidence = true
	f := newFixture(t, cfg)

	res, err := f.pipeline.Run(context.Background(), Request{Query: "q", UseWeb: boolPtr(false), UseIndex: boolPtr(false)})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Citations)
	assert.Equal(t, StateDone, res.Trace[len(res.Trace)-1])
}

func TestRunFallbackAfterVerificationFailure(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.script.replies[roleRouter] = "A comprehensive deep dive."
	f.script.failRole(roleVerify, types.Upstream("completion", errors.New("HTTP 500")))

	res, err := f.pipeline.Run(context.Background(), Request{Query: "q", Persist: true})
	require.NoError(t, err)

	want := []State{
		StateRouting, StateResearching, StateVerifying,
		StateFallbackResearching, StateFallbackSynthesizing, StateFallbackEvaluating,
		StatePersisting, StateDone,
	}
	if diff := cmp.Diff(want, res.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, res.Degraded)
	assert.Equal(t, types.NeutralScore, res.Confidence)
	assert.False(t, res.Verified)
	assert.Equal(t, types.DepthBasic, res.Strategy.VerificationDepth)
	assert.Equal(t, 3, res.Strategy.MaxWebResults)
	assert.Equal(t, 3, res.Strategy.MaxIndexResults)
	assert.Equal(t, 1, f.script.count(roleVerify))
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "primary path failed")
	assert.NotEmpty(t, res.SessionID)
}

func TestRunFallbackDisabled(t *testing.T) {
	f := newFixture(t, types.PipelineConfig{})
	f.script.failRole(roleEvaluate, types.Upstream("completion", errors.New("timeout")))

	res, err := f.pipeline.Run(context.Background(), Request{Query: "q"})
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.NoError(t, runErr.Fallback)
	assert.ErrorIs(t, err, types.ErrUpstream)
	assert.Equal(t, StateFailed, res.Trace[len(res.Trace)-1])
	assert.NotContains(t, res.Trace, StateFallbackResearching)
}

func TestRunBothPathsFail(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.script.failRole(roleSynthesize, types.Upstream("completion", context.DeadlineExceeded))

	res, err := f.pipeline.Run(context.Background(), Request{Query: "q", Persist: true})
	require.Error(t, err)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.ErrorIs(t, runErr.Primary, types.ErrUpstream)
	assert.ErrorIs(t, runErr.Fallback, types.ErrUpstream)
	assert.Contains(t, err.Error(), "fallback also failed")
	assert.Equal(t, "timeout", types.Kind(err))

	want := []State{
		StateRouting, StateResearching, StateVerifying, StateSynthesizing,
		StateFallbackResearching, StateFallbackSynthesizing, StateFailed,
	}
	if diff := cmp.Diff(want, res.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, f.sessions.All())
}

func TestRunEmptyQuery(t *testing.T) {
	f := newFixture(t, defaultConfig())
	res, err := f.pipeline.Run(context.Background(), Request{Query: "  "})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Equal(t, []State{StateFailed}, res.Trace)
	assert.Zero(t, f.script.count(roleRouter))
}

func TestRunRouterFailureFallsBackToQueryText(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.script.failRole(roleRouter, errors.New("router down"))

	res, err := f.pipeline.Run(context.Background(), Request{Query: "Compare the latest Go and Rust releases"})
	require.NoError(t, err)
	assert.Equal(t, types.ClassComparative, res.Strategy.QueryClass)
	assert.False(t, res.Strategy.UseIndex)
	assert.False(t, res.Degraded)
}

func TestRunPersistenceFailureIsAWarning(t *testing.T) {
	f := newFixture(t, defaultConfig())
	require.NoError(t, os.RemoveAll(f.sessDir))

	res, err := f.pipeline.Run(context.Background(), Request{Query: "q", Persist: true})
	require.NoError(t, err)
	assert.Empty(t, res.SessionID)
	assert.Equal(t, StateDone, res.Trace[len(res.Trace)-1])
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[len(res.Warnings)-1], "session not saved")
	assert.NotEmpty(t, res.Report.Body)
}

func TestRunWithoutSessionStore(t *testing.T) {
	s := newScript()
	deps := NewDeps(s, &stubSearcher{resp: goHits()}, nil, citation.NewRegistry(), nil, defaultConfig(), nil)
	res, err := New(deps, defaultConfig(), nil).Run(context.Background(), Request{Query: "q", Persist: true})
	require.NoError(t, err)
	assert.Empty(t, res.SessionID)
	assert.Contains(t, res.Warnings, "session not saved: no session store configured")
}

func TestRunConcurrent(t *testing.T) {
	f := newFixture(t, defaultConfig())

	const runs = 8
	var wg sync.WaitGroup
	ids := make([]string, runs)
	errs := make([]error, runs)
	for i := range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.pipeline.Run(context.Background(), Request{Query: fmt.Sprintf("query %d", i), Persist: true})
			errs[i] = err
			if res != nil {
				ids[i] = res.SessionID
			}
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := range runs {
		require.NoError(t, errs[i])
		require.NotEmpty(t, ids[i])
		seen[ids[i]] = true
	}
	assert.Len(t, seen, runs)
	assert.Len(t, f.sessions.All(), runs)
	assert.Equal(t, 3, f.registry.Len())
}

func TestIngestSavesIndex(t *testing.T) {
	f := newFixture(t, defaultConfig())
	dir := filepath.Join(t.TempDir(), "index")
	f.pipeline.deps.IndexDir = dir

	n, err := f.pipeline.Ingest(context.Background(),
		[]string{"Rust was first released in 2015."},
		[]map[string]string{{index.MetaDocumentID: "rust", index.MetaSource: "rust.md"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, filepath.Join(dir, "index.db"))
	assert.FileExists(t, filepath.Join(dir, "metadata.json"))

	restored := index.New(bucketEmbedder(), nil, types.IndexConfig{}, nil)
	require.NoError(t, restored.Load(context.Background(), dir))
	assert.Equal(t, 2, restored.DocumentCount())
}

func TestIngestWithoutIndex(t *testing.T) {
	p := New(Deps{}, defaultConfig(), nil)
	_, err := p.Ingest(context.Background(), []string{"x"}, nil)
	assert.ErrorIs(t, err, types.ErrConfig)
}
