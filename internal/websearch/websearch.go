// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package websearch queries web search APIs and returns unified,
// deduplicated results. Searchers never return errors: failures are
// reported in Response.Error so a failing source degrades a research run
// instead of aborting it.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

const (
	defaultMaxResults        = 5
	defaultTimeout           = 10 * time.Second
	defaultRequestsPerSecond = 2.0
)

// Result is one web search hit.
type Result struct {
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	URL           string  `json:"url"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`

	// Source names the backend(s) that returned the hit.
	Source string `json:"source"`
}

// Response is the outcome of one search. Error is non-empty when no
// backend produced results because of a failure.
type Response struct {
	Query         string   `json:"query"`
	Results       []Result `json:"results"`
	Error         string   `json:"error,omitempty"`
	BackendErrors []string `json:"backend_errors,omitempty"`
	DupsRemoved   int      `json:"dups_removed,omitempty"`
}

// Options narrows a search.
type Options struct {
	MaxResults     int
	IncludeDomains []string
	ExcludeDomains []string
}

// Searcher is the web search collaborator used by the research stage.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) Response
}

// Backend searches a single web search API.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Provider names accepted in SearchConfig.Providers.
const (
	ProviderTavily = "tavily"
	ProviderSerper = "serper"
)

// Multi fans a query out to every backend, merges the results and removes
// duplicates. Each backend is throttled by its own token bucket.
type Multi struct {
	backends []Backend
	limiters []*rate.Limiter
	include  []string
	exclude  []string
	logger   *zap.Logger
}

// NewMulti returns a Multi over backends. rps <= 0 uses the default rate.
func NewMulti(backends []Backend, rps float64, logger *zap.Logger) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	m := &Multi{backends: backends, logger: logger}
	for range backends {
		m.limiters = append(m.limiters, rate.NewLimiter(rate.Limit(rps), 1))
	}
	return m
}

// New builds a Multi from cfg. Providers are created in the configured
// order; an unknown provider name is a configuration error.
func New(cfg types.SearchConfig, logger *zap.Logger) (*Multi, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	providers := cfg.Providers
	if len(providers) == 0 {
		providers = []string{ProviderTavily}
	}

	var backends []Backend
	for _, p := range providers {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case ProviderTavily:
			backends = append(backends, &Tavily{Client: client, APIKey: cfg.TavilyAPIKey, UserAgent: cfg.UserAgent})
		case ProviderSerper:
			backends = append(backends, &Serper{Client: client, APIKey: cfg.SerperAPIKey, UserAgent: cfg.UserAgent})
		default:
			return nil, fmt.Errorf("%w: unknown search provider %q", types.ErrConfig, p)
		}
	}

	m := NewMulti(backends, cfg.RequestsPerSecond, logger)
	m.include = cfg.IncludeDomains
	m.exclude = cfg.ExcludeDomains
	return m, nil
}

// Search queries all backends concurrently. Backend failures are collected
// in BackendErrors; Error is set only when every backend failed.
func (m *Multi) Search(ctx context.Context, query string, opts Options) Response {
	resp := Response{Query: query}
	if strings.TrimSpace(query) == "" {
		resp.Error = "empty search query"
		return resp
	}
	if len(m.backends) == 0 {
		resp.Error = "no web search backend configured"
		return resp
	}

	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if len(opts.IncludeDomains) == 0 {
		opts.IncludeDomains = m.include
	}
	if len(opts.ExcludeDomains) == 0 {
		opts.ExcludeDomains = m.exclude
	}

	type backendResult struct {
		name    string
		results []Result
		err     error
	}

	// Results are gathered per backend slot so merging follows the
	// configured provider order.
	outs := make([]backendResult, len(m.backends))
	var wg sync.WaitGroup
	for i, b := range m.backends {
		wg.Add(1)
		go func(i int, b Backend) {
			defer wg.Done()
			outs[i].name = b.Name()
			if err := m.limiters[i].Wait(ctx); err != nil {
				outs[i].err = err
				return
			}
			results, err := b.Search(ctx, query, opts)
			for j := range results {
				results[j].Source = b.Name()
			}
			outs[i].results, outs[i].err = results, err
		}(i, b)
	}
	wg.Wait()

	var all []Result
	for _, br := range outs {
		if br.err != nil {
			resp.BackendErrors = append(resp.BackendErrors, fmt.Sprintf("%s: %v", br.name, br.err))
			m.logger.Warn("search backend failed", zap.String("backend", br.name), zap.Error(br.err))
			continue
		}
		all = append(all, br.results...)
	}

	all = filterDomains(all, opts.IncludeDomains, opts.ExcludeDomains)
	deduped, removed := deduplicate(all)
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Score > deduped[j].Score
	})
	if len(deduped) > opts.MaxResults {
		deduped = deduped[:opts.MaxResults]
	}

	resp.Results = deduped
	resp.DupsRemoved = removed
	if len(resp.BackendErrors) == len(m.backends) {
		resp.Error = strings.Join(resp.BackendErrors, "; ")
	}
	return resp
}

// deduplicate merges results that share a normalized URL or title.
func deduplicate(results []Result) ([]Result, int) {
	seen := make(map[string]int)
	var deduped []Result
	removed := 0

	for _, r := range results {
		keys := []string{"url:" + normalizeURL(r.URL), "title:" + normalizeTitle(r.Title)}
		merged := false
		for _, k := range keys {
			if k == "url:" || k == "title:" {
				continue
			}
			if idx, ok := seen[k]; ok {
				mergeInto(&deduped[idx], r)
				removed++
				merged = true
				break
			}
		}
		if merged {
			continue
		}
		idx := len(deduped)
		deduped = append(deduped, r)
		for _, k := range keys {
			if k != "url:" && k != "title:" {
				seen[k] = idx
			}
		}
	}
	return deduped, removed
}

// mergeInto fills empty fields of dst from src and keeps the higher score.
func mergeInto(dst *Result, src Result) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if len(src.Content) > len(dst.Content) {
		dst.Content = src.Content
	}
	if dst.PublishedDate == "" {
		dst.PublishedDate = src.PublishedDate
	}
	if src.Score > dst.Score {
		dst.Score = src.Score
	}
	if src.Source != "" && !strings.Contains(dst.Source, src.Source) {
		dst.Source = dst.Source + "," + src.Source
	}
}

// normalizeURL drops the scheme and a leading www., lowercases the host and
// trims the trailing slash so trivially different links compare equal.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.TrimSpace(raw), "/")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host + strings.TrimSuffix(u.EscapedPath(), "/") + rawQuery(u)
}

func rawQuery(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}
	return "?" + u.RawQuery
}

// normalizeTitle returns a lowercased, punctuation-stripped title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// filterDomains keeps results whose host matches include (when given) and
// none of exclude. A domain matches itself and its subdomains.
func filterDomains(results []Result, include, exclude []string) []Result {
	if len(include) == 0 && len(exclude) == 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		host := hostOf(r.URL)
		if len(include) > 0 && !matchesAny(host, include) {
			continue
		}
		if matchesAny(host, exclude) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func matchesAny(host string, domains []string) bool {
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "www."))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
