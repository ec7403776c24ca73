// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides the text-completion and embedding collaborators the
// pipeline stages and retrieval index depend on. Every failure surfaces as
// types.ErrUpstream, with types.ErrTimeout added when the call timed out.
package llm

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Completer turns a system prompt and user text into a completion.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, system, user string, temperature float64) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	return f(ctx, system, user, temperature)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed calls f.
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// New builds the configured completion and embedding collaborators,
// wrapped with retry-once behavior and, when EmbeddingCacheTTL is set, an
// embedding cache.
func New(ctx context.Context, cfg types.AIConfig, logger *zap.Logger) (Completer, Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		return nil, nil, fmt.Errorf("%w: no API key configured for provider %q", types.ErrConfig, cfg.Provider)
	}

	var (
		c Completer
		e Embedder
	)
	switch cfg.Provider {
	case ProviderOpenAI, "":
		client := NewOpenAI(cfg)
		c, e = client, client
	case ProviderGemini:
		client, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		c, e = client, client
	default:
		return nil, nil, fmt.Errorf("%w: unknown AI provider %q", types.ErrConfig, cfg.Provider)
	}

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	rc := &RetryingCompleter{Next: c, Retries: retries, Logger: logger}
	var re Embedder = &RetryingEmbedder{Next: e, Retries: retries, Logger: logger}
	if cfg.EmbeddingCacheTTL > 0 {
		re = NewCachedEmbedder(re, cfg.EmbeddingCacheTTL)
	}
	return rc, re, nil
}

// CosineSimilarity computes cosine similarity between two vectors. Vectors
// of different length or zero norm score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
