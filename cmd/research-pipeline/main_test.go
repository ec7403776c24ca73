// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"strings"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-pipeline/internal/citation"
	"github.com/pdiddy/research-pipeline/internal/extract"
	"github.com/pdiddy/research-pipeline/internal/index"
	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/internal/pipeline"
	"github.com/pdiddy/research-pipeline/internal/stage"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractFile_SinglePage(t *testing.T) {
	path := writeFile(t, "history.md", "# Go History\n\nGo was announced in 2009.\n")

	docs, meta, err := extractFile(context.Background(), path, nil, "", "", "Rob Pike")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Contains(t, docs[0], "announced in 2009")
	assert.Equal(t, map[string]string{
		index.MetaDocumentID: "history.md",
		index.MetaSource:     "history.md",
		index.MetaTitle:      "Go History",
		index.MetaAuthor:     "Rob Pike",
	}, meta[0])
}

func TestExtractFile_PagesShareDocumentID(t *testing.T) {
	path := writeFile(t, "report.txt", "<!-- page 3 -->\nfirst page\n<!-- page 4 -->\n\n<!-- page 5 -->\nthird page\n")

	docs, meta, err := extractFile(context.Background(), path, nil, "annual report", "Report", "")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, []string{"first page", "third page"}, docs)
	assert.Equal(t, "3", meta[0][index.MetaPage])
	assert.Equal(t, "5", meta[1][index.MetaPage])
	for _, m := range meta {
		assert.Equal(t, "report.txt", m[index.MetaDocumentID])
		assert.Equal(t, "annual report", m[index.MetaSource])
		assert.Equal(t, "Report", m[index.MetaTitle])
		assert.NotContains(t, m, index.MetaAuthor)
	}
}

func TestExtractFile_Errors(t *testing.T) {
	_, _, err := extractFile(context.Background(), writeFile(t, "blank.md", "   \n\n"), nil, "", "", "")
	assert.ErrorIs(t, err, types.ErrCorruptDocument)

	_, _, err = extractFile(context.Background(), writeFile(t, "paper.pdf", "%PDF"), nil, "", "", "")
	assert.ErrorIs(t, err, types.ErrConfig)

	_, _, err = extractFile(context.Background(), writeFile(t, "data.xlsx", "x"), nil, "", "", "")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestExtractFile_UsesPDFExtractor(t *testing.T) {
	pdf := extract.ExtractorFunc(func(_ context.Context, path string) (*extract.Document, error) {
		return &extract.Document{
			Path:  path,
			Title: "Converted",
			Pages: []extract.Page{{Number: 1, Text: "one"}, {Number: 2, Text: "two"}},
		}, nil
	})

	docs, meta, err := extractFile(context.Background(), writeFile(t, "paper.pdf", "%PDF"), pdf, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, docs)
	assert.Equal(t, "Converted", meta[1][index.MetaTitle])
	assert.Equal(t, "2", meta[1][index.MetaPage])
}

func TestParsePreference(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"apa", "apa"},
		{"5", float64(5)},
		{"true", true},
		{`["web","index"]`, []any{"web", "index"}},
		{`{"depth":"thorough"}`, map[string]any{"depth": "thorough"}},
		{"not json {", "not json {"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePreference(tt.raw))
		})
	}
}

func TestWriteResult(t *testing.T) {
	res := &pipeline.Result{
		Query:  "When was Go released?",
		Report: types.Report{Title: "Go", Body: "# Go\n\nGo was released in 2009 [web_0].", Summary: "Released 2009."},
		Citations: []types.Citation{{
			ID:      "web_0",
			Kind:    types.KindWeb,
			Locator: types.Locator{URL: "https://go.dev/doc/history"},
			Title:   "Go History",
		}},
		QualityScores: types.NewQualityScores(map[string]float64{"accuracy": 8, "clarity": 6}),
		Confidence:    7.5,
		Verified:      true,
		SessionID:     "abc",
		Degraded:      true,
		Warnings:      []string{"index source failed: not ready"},
	}

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, res, citation.StyleAPA, false))
	out := buf.String()

	assert.Contains(t, out, "Go was released in 2009 [web_0].")
	assert.Contains(t, out, "References")
	assert.Contains(t, out, "[web_0]")
	assert.Contains(t, out, "7.5/10 (verified: true)")
	assert.Contains(t, out, "fallback path")
	assert.Regexp(t, `Session\s+abc`, out)
	assert.Contains(t, out, "Warning: index source failed: not ready")

	buf.Reset()
	require.NoError(t, writeResult(&buf, res, citation.StyleAPA, true))
	assert.Contains(t, buf.String(), "Released 2009.")
	assert.NotContains(t, buf.String(), "[web_0].")
}

func TestJoinStates(t *testing.T) {
	got := joinStates([]pipeline.State{pipeline.StateRouting, pipeline.StateFailed})
	assert.Equal(t, "routing -> failed", got)
}

func TestClaimEvidence(t *testing.T) {
	matches := []index.Match{
		{Chunk: types.Chunk{DocumentID: "go.md", Title: "Go History", Page: 2, Text: "Go was announced in 2009."}},
		{Chunk: types.Chunk{DocumentID: "notes", Source: "notes.txt", Text: "Generics arrived in 1.18."}},
	}

	got := claimEvidence(matches)
	require.Len(t, got, 2)
	assert.Equal(t, types.EvidenceItem{
		Kind:       types.KindDocument,
		DocumentID: "go.md",
		Page:       2,
		Title:      "Go History",
		Snippet:    "Go was announced in 2009.",
	}, got[0])
	assert.Equal(t, "notes.txt", got[1].Title, "source stands in for a missing title")
	assert.Empty(t, claimEvidence(nil))
}

func TestVerifyClaimWithIndexEvidence(t *testing.T) {
	ctx := context.Background()
	emb := llm.EmbedderFunc(func(_ context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "2009") {
			return []float32{1, 0}, nil
		}
		return []float32{0, 1}, nil
	})
	ix := index.New(emb, nil, types.IndexConfig{}, nil)
	_, err := ix.Ingest(ctx, []string{"Go was announced in 2009.", "Bread needs yeast."},
		[]map[string]string{{index.MetaTitle: "Go History"}, {index.MetaTitle: "Baking"}})
	require.NoError(t, err)

	matches, err := ix.Search(ctx, "Go appeared in 2009", 1, nil)
	require.NoError(t, err)

	var prompt string
	completer := llm.CompleterFunc(func(_ context.Context, _, user string, _ float64) (string, error) {
		prompt = user
		return "The source supports the claim.\nConfidence: 9/10", nil
	})
	v := &stage.Verifier{Completer: completer}
	check, err := v.VerifyClaim(ctx, "Go appeared in 2009", claimEvidence(matches))
	require.NoError(t, err)

	assert.Contains(t, prompt, "Document: doc_0")
	assert.NotContains(t, prompt, "doc_1")
	assert.Equal(t, 9.0, check.Confidence)
	assert.True(t, check.Verified)
}

func TestWriteClaimCheck(t *testing.T) {
	var buf bytes.Buffer
	writeClaimCheck(&buf, stage.ClaimCheck{
		Claim:      "Go appeared in 2009",
		Text:       "Supported by the history page.",
		Confidence: 6,
	}, 3)
	out := buf.String()

	assert.Contains(t, out, "Supported by the history page.")
	assert.Regexp(t, `Claim\s+Go appeared in 2009`, out)
	assert.Contains(t, out, "6.0/10 (verified: false)")
	assert.Regexp(t, `Index evidence\s+3`, out)
}
