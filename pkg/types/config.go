package types

import "time"

// HTTPConfig holds shared HTTP settings used by collaborators that make
// network requests.
type HTTPConfig struct {
	// Timeout bounds each request. A timeout surfaces as ErrTimeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-pipeline/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds shared settings for the completion and embedding services.
type AIConfig struct {
	HTTPConfig `yaml:",inline"`

	// Provider selects the backend: "openai" (any OpenAI-compatible API)
	// or "gemini".
	Provider string `json:"provider" yaml:"provider"`

	// Model is the completion model identifier.
	Model string `json:"model" yaml:"model"`

	// EmbeddingModel is the embedding model identifier.
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`

	// BaseURL overrides the API root for OpenAI-compatible providers.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of extra attempts after an upstream failure
	// (default 1: retried once).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// EmbeddingCacheTTL is how long query embeddings are cached (0 disables).
	EmbeddingCacheTTL time.Duration `json:"embedding_cache_ttl" yaml:"embedding_cache_ttl"`
}

// SearchConfig holds settings for the web search collaborator.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Providers lists the enabled backends in preference order
	// ("tavily", "serper").
	Providers []string `json:"providers" yaml:"providers"`

	// TavilyAPIKey authenticates against the Tavily API.
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty"`

	// SerperAPIKey authenticates against the Serper API.
	SerperAPIKey string `json:"serper_api_key,omitempty" yaml:"serper_api_key,omitempty"`

	// RequestsPerSecond throttles each backend (default 2).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// IncludeDomains restricts results to these domains when non-empty.
	IncludeDomains []string `json:"include_domains,omitempty" yaml:"include_domains,omitempty"`

	// ExcludeDomains drops results from these domains.
	ExcludeDomains []string `json:"exclude_domains,omitempty" yaml:"exclude_domains,omitempty"`
}

// IndexConfig holds settings for the retrieval index.
type IndexConfig struct {
	// Dir is the retrieval-index directory (index.db + metadata.json).
	Dir string `json:"dir" yaml:"dir"`

	// ChunkSize is the target chunk length in characters (default 1000).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// ChunkOverlap is the overlap between neighbouring chunks (default 200).
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// DefaultK is the number of matches returned when the caller passes k <= 0.
	DefaultK int `json:"default_k" yaml:"default_k"`
}

// SessionConfig holds settings for the session store.
type SessionConfig struct {
	// Dir holds one JSON file per session plus preferences.json.
	Dir string `json:"dir" yaml:"dir"`
}

// ExtractionConfig holds settings for document extraction.
type ExtractionConfig struct {
	// Image is the container image used to convert PDFs (default markitdown:latest).
	Image string `json:"image" yaml:"image"`
}

// FallbackConfig controls the reduced pipeline retried after a failure.
type FallbackConfig struct {
	// Enabled turns the fallback path on (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxWebResults caps web results on the fallback path (default 3).
	MaxWebResults int `json:"max_web_results" yaml:"max_web_results"`

	// MaxIndexResults caps index matches on the fallback path (default 3).
	MaxIndexResults int `json:"max_index_results" yaml:"max_index_results"`

	// AllowEmptyEvidence lets the fallback path synthesize from the query
	// alone when no source produced evidence.
	AllowEmptyEvidence bool `json:"allow_empty_evidence" yaml:"allow_empty_evidence"`
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	Fallback FallbackConfig `json:"fallback" yaml:"fallback"`

	// Summarize requests a short summary alongside the report.
	Summarize bool `json:"summarize" yaml:"summarize"`
}

// Config groups every component configuration.
type Config struct {
	AI         AIConfig         `json:"ai" yaml:"ai"`
	Search     SearchConfig     `json:"search" yaml:"search"`
	Index      IndexConfig      `json:"index" yaml:"index"`
	Sessions   SessionConfig    `json:"sessions" yaml:"sessions"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Pipeline   PipelineConfig   `json:"pipeline" yaml:"pipeline"`
}

// DefaultFallback returns the fallback settings used when none are configured.
func DefaultFallback() FallbackConfig {
	return FallbackConfig{Enabled: true, MaxWebResults: 3, MaxIndexResults: 3}
}
