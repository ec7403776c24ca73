// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Session is the durable record of one research run.
type Session struct {
	ID            string        `json:"id" yaml:"id"`
	Query         string        `json:"query" yaml:"query"`
	Report        *Report       `json:"report,omitempty" yaml:"report,omitempty"`
	QualityScores QualityScores `json:"quality_scores" yaml:"quality_scores"`
	Citations     []Citation    `json:"citations" yaml:"citations"`
	CreatedAt     time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" yaml:"updated_at"`
}

// Chunk is a bounded slice of an ingested document. The retrieval index
// owns the chunk and its embedding.
type Chunk struct {
	ID         int64  `json:"id" yaml:"id"`
	Text       string `json:"text" yaml:"text"`
	DocumentID string `json:"document_id" yaml:"document_id"`

	// Source is the human-readable origin label (file name, URL).
	Source string `json:"source" yaml:"source"`
	Title  string `json:"title" yaml:"title"`

	// Page is the 1-based page number, zero when unknown.
	Page int `json:"page,omitempty" yaml:"page,omitempty"`

	// Metadata holds the parent document's metadata.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Embedding []float32 `json:"-" yaml:"-"`
}
