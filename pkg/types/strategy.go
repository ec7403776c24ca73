// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research pipeline:
// strategies, evidence, citations, findings, reports, quality scores,
// sessions, document chunks and stage configuration.
package types

// VerificationDepth controls how much effort the verification stage spends.
type VerificationDepth string

const (
	DepthBasic    VerificationDepth = "basic"
	DepthStandard VerificationDepth = "standard"
	DepthThorough VerificationDepth = "thorough"
)

// QueryClass categorizes the intent of a query.
type QueryClass string

const (
	ClassFactual     QueryClass = "factual"
	ClassAnalytical  QueryClass = "analytical"
	ClassComparative QueryClass = "comparative"
	ClassGeneral     QueryClass = "general"
)

// Complexity is the router's estimate of how much research a query needs.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Strategy is the per-query research plan. It is derived once per run by
// the router and treated as a value afterwards.
type Strategy struct {
	// UseWeb enables the web search source.
	UseWeb bool `json:"use_web" yaml:"use_web"`

	// UseIndex enables the retrieval index source.
	UseIndex bool `json:"use_index" yaml:"use_index"`

	// MaxWebResults caps web search results.
	MaxWebResults int `json:"max_web_results" yaml:"max_web_results"`

	// MaxIndexResults caps retrieval index matches.
	MaxIndexResults int `json:"max_index_results" yaml:"max_index_results"`

	// VerificationDepth selects basic, standard or thorough checking.
	VerificationDepth VerificationDepth `json:"verification_depth" yaml:"verification_depth"`

	// QueryClass is the router's classification of the query.
	QueryClass QueryClass `json:"query_class" yaml:"query_class"`

	// Complexity is the router's effort estimate.
	Complexity Complexity `json:"complexity" yaml:"complexity"`
}

// DefaultStrategy returns the plan used when the router finds no signal.
func DefaultStrategy() Strategy {
	return Strategy{
		UseWeb:            true,
		UseIndex:          true,
		MaxWebResults:     5,
		MaxIndexResults:   5,
		VerificationDepth: DepthStandard,
		QueryClass:        ClassGeneral,
		Complexity:        ComplexityMedium,
	}
}

// WithOverrides returns a copy of s with explicit caller choices applied.
// A nil pointer leaves the router's decision in place.
func (s Strategy) WithOverrides(useWeb, useIndex *bool) Strategy {
	if useWeb != nil {
		s.UseWeb = *useWeb
	}
	if useIndex != nil {
		s.UseIndex = *useIndex
	}
	return s
}

// Reduced returns the smaller plan used by the fallback path: result
// counts are capped and verification depth drops to basic.
func (s Strategy) Reduced(maxWeb, maxIndex int) Strategy {
	if maxWeb > 0 && s.MaxWebResults > maxWeb {
		s.MaxWebResults = maxWeb
	}
	if maxIndex > 0 && s.MaxIndexResults > maxIndex {
		s.MaxIndexResults = maxIndex
	}
	s.VerificationDepth = DepthBasic
	return s
}
