// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files. Each
// file holds one secret: the file name is the key and the trimmed contents
// are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Key file names.
const (
	OpenAIAPIKey = "openai-api-key"
	GeminiAPIKey = "gemini-api-key"
	TavilyAPIKey = "tavily-api-key"
	SerperAPIKey = "serper-api-key"
)

// Secrets maps key file names to their values.
type Secrets map[string]string

// Load reads every file in dir. A missing directory yields an empty set.
// Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("key", name), zap.Error(err))
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// lookup returns the value of key or a configuration error naming the
// file that should hold it.
func (s Secrets) lookup(key string) (string, error) {
	if v := s[key]; v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: missing secret %s (create .secrets/%s)", types.ErrConfig, key, key)
}

// Apply fills empty API keys in cfg from the loaded secrets. Keys already
// set through configuration or environment win.
func (s Secrets) Apply(cfg *types.Config) {
	if cfg.AI.APIKey == "" {
		switch strings.ToLower(cfg.AI.Provider) {
		case "gemini":
			cfg.AI.APIKey = s[GeminiAPIKey]
		default:
			cfg.AI.APIKey = s[OpenAIAPIKey]
		}
	}
	if cfg.Search.TavilyAPIKey == "" {
		cfg.Search.TavilyAPIKey = s[TavilyAPIKey]
	}
	if cfg.Search.SerperAPIKey == "" {
		cfg.Search.SerperAPIKey = s[SerperAPIKey]
	}
}
