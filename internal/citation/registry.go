// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citation registers, de-duplicates and formats source references.
// A Registry owns its citations and id counter; the pipeline holds one
// instance and passes it by reference to the stages that cite sources.
package citation

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Registry stores citations in insertion order. Ids are "{prefix}_{n}"
// where n comes from a single counter that only Clear resets. All methods
// are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	citations []types.Citation
	byID      map[string]int
	byKey     map[string]string // dedup key → id
	counter   int
	now       func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used for accessed dates. Tests use it to pin dates.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byID:  make(map[string]int),
		byKey: make(map[string]string),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register records a source and returns its citation id. Registering the
// same kind and locator again returns the existing id and leaves the
// stored citation untouched. Malformed locators are stored verbatim.
func (r *Registry) Register(kind types.EvidenceKind, loc types.Locator, meta types.CitationMeta) string {
	key := dedupKey(kind, loc)

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[key]; ok {
		return id
	}

	c := build(kind, loc, meta, r.now())
	c.ID = fmt.Sprintf("%s_%d", kind.Prefix(), r.counter)
	r.counter++

	r.byID[c.ID] = len(r.citations)
	r.byKey[key] = c.ID
	r.citations = append(r.citations, c)
	return c.ID
}

// Get returns the citation with the given id. The boolean is false when
// the id is unknown.
func (r *Registry) Get(id string) (types.Citation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byID[id]
	if !ok {
		return types.Citation{}, false
	}
	return r.citations[idx], true
}

// List returns every citation in insertion order.
func (r *Registry) List() []types.Citation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Citation, len(r.citations))
	copy(out, r.citations)
	return out
}

// Lookup returns the citations for ids in the given order, skipping
// unknown and repeated ids.
func (r *Registry) Lookup(ids []string) []types.Citation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(ids))
	out := make([]types.Citation, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if idx, ok := r.byID[id]; ok {
			out = append(out, r.citations[idx])
		}
	}
	return out
}

// byKind returns the citations of one kind in insertion order.
func (r *Registry) byKind(kind types.EvidenceKind) []types.Citation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.Citation
	for _, c := range r.citations {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of registered citations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.citations)
}

// Clear removes every citation and resets the id counter.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.citations = nil
	r.byID = make(map[string]int)
	r.byKey = make(map[string]string)
	r.counter = 0
}

// Format renders citations in the given style. With no ids every citation
// is formatted in insertion order; otherwise only the known ids are.
func (r *Registry) Format(style Style, ids ...string) []string {
	var cs []types.Citation
	if len(ids) == 0 {
		cs = r.List()
	} else {
		cs = r.Lookup(ids)
	}
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = FormatCitation(c, style)
	}
	return out
}

// ReferenceList renders a numbered reference list. APA lists are headed
// "References", every other style "Works Cited".
func (r *Registry) ReferenceList(style Style, includeIDs bool, ids ...string) string {
	var cs []types.Citation
	if len(ids) == 0 {
		cs = r.List()
	} else {
		cs = r.Lookup(ids)
	}
	return ReferenceList(cs, style, includeIDs)
}

// ReferenceList renders cs as a numbered list under a style-specific header.
func ReferenceList(cs []types.Citation, style Style, includeIDs bool) string {
	header := "Works Cited"
	if style == StyleAPA {
		header = "References"
	}
	lines := []string{header, strings.Repeat("=", len(header)), ""}
	for i, c := range cs {
		entry := FormatCitation(c, style)
		if includeIDs {
			entry = fmt.Sprintf("[%s] %s", c.ID, entry)
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, entry))
	}
	return strings.Join(lines, "\n")
}

// build fills a citation from the registration inputs. Web titles missing
// from the metadata are derived from the URL path or host.
func build(kind types.EvidenceKind, loc types.Locator, meta types.CitationMeta, now time.Time) types.Citation {
	c := types.Citation{
		Kind:          kind,
		Locator:       loc,
		Title:         meta.Title,
		Author:        meta.Author,
		PublishedDate: meta.PublishedDate,
		Snippet:       truncate(meta.Snippet, 200),
		AccessedDate:  now.Format("2006-01-02"),
	}

	switch kind {
	case types.KindWeb:
		c.Domain = hostOf(loc.URL)
		if c.Title == "" {
			c.Title = titleFromURL(loc.URL)
		}
	case types.KindDocument:
		if c.Title == "" {
			c.Title = "Document " + loc.DocumentID
		}
	}
	return c
}

func dedupKey(kind types.EvidenceKind, loc types.Locator) string {
	switch kind {
	case types.KindWeb:
		return "web|" + strings.TrimSuffix(strings.TrimSpace(loc.URL), "/")
	default:
		return fmt.Sprintf("%s|%s|%d", kind, loc.DocumentID, loc.Page)
	}
}

// hostOf returns the host of raw, or an empty string when raw does not parse.
func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Host
}

// titleFromURL turns the last path segment ("quantum-error_correction")
// into a title ("Quantum Error Correction"), falling back to the
// organization derived from the host.
func titleFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	path := strings.Trim(u.Path, "/")
	if path != "" {
		parts := strings.Split(path, "/")
		last := strings.NewReplacer("-", " ", "_", " ").Replace(parts[len(parts)-1])
		return titleCase(last)
	}
	if org := organization(u.Host); org != "" {
		return org
	}
	return raw
}

// organization derives an organization name from a domain:
// "www.nature.com" becomes "Nature".
func organization(domain string) string {
	domain = strings.TrimPrefix(strings.ToLower(domain), "www.")
	if i := strings.Index(domain, ":"); i >= 0 {
		domain = domain[:i]
	}
	first, _, _ := strings.Cut(domain, ".")
	return titleCase(first)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
