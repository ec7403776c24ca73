// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// serperAPIURL is the Serper (Google results) search endpoint.
var serperAPIURL = "https://google.serper.dev/search"

// Serper queries the Serper API. Serper does not score results, so hits
// are scored by rank.
type Serper struct {
	Client    *http.Client
	APIKey    string
	UserAgent string
}

// Name returns the backend identifier.
func (b *Serper) Name() string { return ProviderSerper }

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
		Date    string `json:"date"`
	} `json:"organic"`
}

// Search runs a Serper query. Included domains become site: operators.
func (b *Serper) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if b.APIKey == "" {
		return nil, fmt.Errorf("%w: Serper API key not configured", types.ErrConfig)
	}

	body, err := json.Marshal(serperRequest{Q: serperQuery(query, opts.IncludeDomains), Num: opts.MaxResults})
	if err != nil {
		return nil, fmt.Errorf("encoding Serper request: %w", err)
	}

	var sr serperResponse
	headers := map[string]string{"X-API-KEY": b.APIKey}
	if err := postJSON(ctx, b.Client, serperAPIURL, body, b.UserAgent, headers, &sr); err != nil {
		return nil, types.Upstream("Serper", err)
	}

	total := len(sr.Organic)
	results := make([]Result, 0, total)
	for i, r := range sr.Organic {
		results = append(results, Result{
			Title:         r.Title,
			Content:       r.Snippet,
			URL:           r.Link,
			Score:         rankScore(i, total),
			PublishedDate: r.Date,
		})
	}
	return results, nil
}

func serperQuery(query string, include []string) string {
	if len(include) == 0 {
		return query
	}
	sites := make([]string, len(include))
	for i, d := range include {
		sites[i] = "site:" + d
	}
	return query + " (" + strings.Join(sites, " OR ") + ")"
}

// rankScore maps a 0-based rank to a score in (0.1, 1].
func rankScore(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}
