// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/internal/citation"
	"github.com/pdiddy/research-pipeline/internal/index"
	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/internal/pipeline"
	"github.com/pdiddy/research-pipeline/internal/session"
	"github.com/pdiddy/research-pipeline/internal/websearch"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// app holds the collaborators a command needs, built from one config.
type app struct {
	cfg      types.Config
	index    *index.Index
	sessions *session.Store
	pipeline *pipeline.Pipeline
}

// openSessions opens the session store without touching the AI services.
func openSessions(cfg types.Config) (*session.Store, error) {
	return session.NewStore(cfg.Sessions.Dir, logger)
}

// openIndex builds the AI collaborators and loads the index from
// cfg.Index.Dir. A missing index directory yields an empty index.
func openIndex(ctx context.Context, cfg types.Config) (llm.Completer, *index.Index, error) {
	completer, embedder, err := llm.New(ctx, cfg.AI, logger)
	if err != nil {
		return nil, nil, err
	}
	ix := index.New(embedder, completer, cfg.Index, logger)
	if err := ix.Load(ctx, cfg.Index.Dir); err != nil {
		return nil, nil, fmt.Errorf("loading index from %s: %w", cfg.Index.Dir, err)
	}
	return completer, ix, nil
}

// openSearch builds the web search collaborator. It returns nil when no
// provider has an API key, which leaves web research disabled.
func openSearch(cfg types.Config) (websearch.Searcher, error) {
	if cfg.Search.TavilyAPIKey == "" && cfg.Search.SerperAPIKey == "" {
		logger.Warn("no web search API key configured; web research disabled")
		return nil, nil
	}
	m, err := websearch.New(cfg.Search, logger)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// newApp wires every collaborator for a research run.
func newApp(ctx context.Context) (*app, error) {
	cfg := loadConfig()

	completer, ix, err := openIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	search, err := openSearch(cfg)
	if err != nil {
		return nil, err
	}
	sessions, err := openSessions(cfg)
	if err != nil {
		return nil, err
	}

	deps := pipeline.NewDeps(completer, search, ix, citation.NewRegistry(), sessions, cfg.Pipeline, logger)
	deps.IndexDir = cfg.Index.Dir

	logger.Debug("pipeline ready",
		zap.String("provider", cfg.AI.Provider),
		zap.Int("chunks", ix.ChunkCount()),
		zap.Int("sessions", len(sessions.All())))

	return &app{
		cfg:      cfg,
		index:    ix,
		sessions: sessions,
		pipeline: pipeline.New(deps, cfg.Pipeline, logger),
	}, nil
}
