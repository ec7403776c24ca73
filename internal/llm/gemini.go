// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

const (
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultGeminiEmbeddingModel = "gemini-embedding-001"
)

// Gemini uses Google's GenAI SDK for completions and embeddings. It
// implements both Completer and Embedder.
type Gemini struct {
	client         *genai.Client
	model          string
	embeddingModel string
}

// NewGemini creates a Gemini client from cfg.
func NewGemini(ctx context.Context, cfg types.AIConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", types.ErrConfig)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating GenAI client: %w", types.ErrConfig, err)
	}

	g := &Gemini{client: client, model: cfg.Model, embeddingModel: cfg.EmbeddingModel}
	if g.model == "" {
		g.model = defaultGeminiModel
	}
	if g.embeddingModel == "" {
		g.embeddingModel = defaultGeminiEmbeddingModel
	}
	return g, nil
}

// Complete generates content with system as the system instruction.
func (g *Gemini) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if strings.TrimSpace(system) != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), config)
	if err != nil {
		return "", types.Upstream("completion", err)
	}
	text := resp.Text()
	if text == "" {
		return "", types.Upstream("completion", fmt.Errorf("empty response from %s", g.model))
	}
	return text, nil
}

// Embed returns the embedding vector for text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	result, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, nil)
	if err != nil {
		return nil, types.Upstream("embedding", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, types.Upstream("embedding", fmt.Errorf("no embeddings returned"))
	}
	return result.Embeddings[0].Values, nil
}
