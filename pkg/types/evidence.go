// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EvidenceKind identifies where a piece of evidence came from.
type EvidenceKind string

const (
	KindWeb      EvidenceKind = "web"
	KindDocument EvidenceKind = "document"
)

// Prefix returns the citation id prefix for the kind ("web", "doc").
func (k EvidenceKind) Prefix() string {
	switch k {
	case KindWeb:
		return "web"
	case KindDocument:
		return "doc"
	default:
		if k == "" {
			return "src"
		}
		return string(k)
	}
}

// Locator points at a source: a URL for web evidence, a document id and
// optional page for indexed documents. Malformed values are kept verbatim.
type Locator struct {
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`
	DocumentID string `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	Page       int    `json:"page,omitempty" yaml:"page,omitempty"`
}

// CitationMeta carries the descriptive fields supplied at registration.
type CitationMeta struct {
	Title         string `json:"title,omitempty" yaml:"title,omitempty"`
	Author        string `json:"author,omitempty" yaml:"author,omitempty"`
	PublishedDate string `json:"published_date,omitempty" yaml:"published_date,omitempty"`
	Snippet       string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// Citation is a registered source reference. It is created once by the
// citation registry and only referenced by id afterwards.
type Citation struct {
	// ID is unique within a registry, e.g. "web_0" or "doc_3".
	ID string `json:"id" yaml:"id"`

	// Kind is web or document.
	Kind EvidenceKind `json:"kind" yaml:"kind"`

	Locator `yaml:",inline"`

	// Domain is the host of a web URL, empty for documents.
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`

	Title         string `json:"title" yaml:"title"`
	Author        string `json:"author,omitempty" yaml:"author,omitempty"`
	PublishedDate string `json:"published_date,omitempty" yaml:"published_date,omitempty"`

	// AccessedDate is the registration date in YYYY-MM-DD form.
	AccessedDate string `json:"accessed_date" yaml:"accessed_date"`

	// Snippet is a short excerpt of the cited content.
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// EvidenceItem is one retrieved piece of information with enough metadata
// to cite it.
type EvidenceItem struct {
	Kind       EvidenceKind `json:"kind" yaml:"kind"`
	URL        string       `json:"url,omitempty" yaml:"url,omitempty"`
	DocumentID string       `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	Page       int          `json:"page,omitempty" yaml:"page,omitempty"`
	Title      string       `json:"title" yaml:"title"`
	Snippet    string       `json:"snippet" yaml:"snippet"`
	CitationID string       `json:"citation_id" yaml:"citation_id"`
}

// Findings is the output of the research stage.
type Findings struct {
	Query    string         `json:"query" yaml:"query"`
	Evidence []EvidenceItem `json:"evidence" yaml:"evidence"`

	// Narrative is the completion service's synthesis of the raw evidence.
	Narrative string `json:"narrative" yaml:"narrative"`

	// SourceErrors records absorbed per-source failures, keyed by source
	// ("web", "index").
	SourceErrors map[string]string `json:"source_errors,omitempty" yaml:"source_errors,omitempty"`
}

// CitationIDs returns the distinct citation ids of the evidence in order
// of first appearance. Several chunks of one page share a citation.
func (f Findings) CitationIDs() []string {
	ids := make([]string, 0, len(f.Evidence))
	seen := make(map[string]bool, len(f.Evidence))
	for _, e := range f.Evidence {
		if e.CitationID == "" || seen[e.CitationID] {
			continue
		}
		seen[e.CitationID] = true
		ids = append(ids, e.CitationID)
	}
	return ids
}
