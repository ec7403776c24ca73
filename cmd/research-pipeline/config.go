package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/research-pipeline/internal/extract"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

const defaultUserAgent = "research-pipeline/0.1"

// setDefaults registers the default for every configuration key.
func setDefaults() {
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.embedding_model", "")
	viper.SetDefault("ai.base_url", "")
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.timeout", 60*time.Second)
	viper.SetDefault("ai.max_retries", 1)
	viper.SetDefault("ai.embedding_cache_ttl", 10*time.Minute)

	viper.SetDefault("search.providers", []string{"tavily"})
	viper.SetDefault("search.timeout", 10*time.Second)
	viper.SetDefault("search.requests_per_second", 2.0)
	viper.SetDefault("search.include_domains", []string{})
	viper.SetDefault("search.exclude_domains", []string{})
	viper.SetDefault("search.tavily_api_key", "")
	viper.SetDefault("search.serper_api_key", "")

	viper.SetDefault("index.dir", ".research/index")
	viper.SetDefault("index.chunk_size", 1000)
	viper.SetDefault("index.chunk_overlap", 200)
	viper.SetDefault("index.default_k", 5)

	viper.SetDefault("sessions.dir", ".research/sessions")

	viper.SetDefault("extraction.image", extract.DefaultImage)

	fb := types.DefaultFallback()
	viper.SetDefault("pipeline.fallback.enabled", fb.Enabled)
	viper.SetDefault("pipeline.fallback.max_web_results", fb.MaxWebResults)
	viper.SetDefault("pipeline.fallback.max_index_results", fb.MaxIndexResults)
	viper.SetDefault("pipeline.fallback.allow_empty_evidence", fb.AllowEmptyEvidence)
	viper.SetDefault("pipeline.summarize", false)
}

// loadConfig reads the configuration from viper and fills missing API keys
// from the loaded secrets.
func loadConfig() types.Config {
	cfg := types.Config{
		AI: types.AIConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("ai.timeout"),
				UserAgent: defaultUserAgent,
			},
			Provider:          viper.GetString("ai.provider"),
			Model:             viper.GetString("ai.model"),
			EmbeddingModel:    viper.GetString("ai.embedding_model"),
			BaseURL:           viper.GetString("ai.base_url"),
			APIKey:            viper.GetString("ai.api_key"),
			MaxRetries:        viper.GetInt("ai.max_retries"),
			EmbeddingCacheTTL: viper.GetDuration("ai.embedding_cache_ttl"),
		},
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("search.timeout"),
				UserAgent: defaultUserAgent,
			},
			Providers:         viper.GetStringSlice("search.providers"),
			TavilyAPIKey:      viper.GetString("search.tavily_api_key"),
			SerperAPIKey:      viper.GetString("search.serper_api_key"),
			RequestsPerSecond: viper.GetFloat64("search.requests_per_second"),
			IncludeDomains:    viper.GetStringSlice("search.include_domains"),
			ExcludeDomains:    viper.GetStringSlice("search.exclude_domains"),
		},
		Index: types.IndexConfig{
			Dir:          viper.GetString("index.dir"),
			ChunkSize:    viper.GetInt("index.chunk_size"),
			ChunkOverlap: viper.GetInt("index.chunk_overlap"),
			DefaultK:     viper.GetInt("index.default_k"),
		},
		Sessions: types.SessionConfig{
			Dir: viper.GetString("sessions.dir"),
		},
		Extraction: types.ExtractionConfig{
			Image: viper.GetString("extraction.image"),
		},
		Pipeline: types.PipelineConfig{
			Fallback: types.FallbackConfig{
				Enabled:            viper.GetBool("pipeline.fallback.enabled"),
				MaxWebResults:      viper.GetInt("pipeline.fallback.max_web_results"),
				MaxIndexResults:    viper.GetInt("pipeline.fallback.max_index_results"),
				AllowEmptyEvidence: viper.GetBool("pipeline.fallback.allow_empty_evidence"),
			},
			Summarize: viper.GetBool("pipeline.summarize"),
		},
	}
	loadedSecrets.Apply(&cfg)
	return cfg
}
