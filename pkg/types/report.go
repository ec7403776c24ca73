// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

const (
	// NeutralScore is the default for any score that could not be read
	// from model output: neither trusted nor distrusted.
	NeutralScore = 5.0

	// VerifiedThreshold is the confidence at or above which findings count
	// as verified.
	VerifiedThreshold = 7.0
)

// VerifiedFindings is the output of the verification stage.
type VerifiedFindings struct {
	Findings Findings `json:"findings" yaml:"findings"`

	// Confidence is in [0,10]. With conflicting sources it reflects the
	// worst-supported claim.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Narrative is the verification report text.
	Narrative string `json:"narrative" yaml:"narrative"`

	// Verified is Confidence >= VerifiedThreshold.
	Verified bool `json:"verified" yaml:"verified"`

	// Contradictions holds the contradictions section of the verification
	// text, empty when none were flagged.
	Contradictions string `json:"contradictions,omitempty" yaml:"contradictions,omitempty"`

	// Skipped is set when verification was bypassed on the fallback path.
	Skipped bool `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Report is the synthesis output.
type Report struct {
	Title     string   `json:"title" yaml:"title"`
	Body      string   `json:"body" yaml:"body"`
	CitedIDs  []string `json:"cited_ids" yaml:"cited_ids"`
	Summary   string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	WordCount int      `json:"word_count" yaml:"word_count"`
}

// Quality dimensions scored by the evaluation stage.
const (
	DimCompleteness    = "completeness"
	DimAccuracy        = "accuracy"
	DimRelevance       = "relevance"
	DimClarity         = "clarity"
	DimSourceQuality   = "source_quality"
	DimCitationQuality = "citation_quality"
)

// Dimensions lists the quality dimensions in presentation order.
var Dimensions = []string{
	DimCompleteness,
	DimAccuracy,
	DimRelevance,
	DimClarity,
	DimSourceQuality,
	DimCitationQuality,
}

// QualityScores maps each extracted dimension to a score in [0,10].
// Dimensions missing from the model output are absent from the map.
type QualityScores struct {
	Dimensions map[string]float64 `json:"dimensions" yaml:"dimensions"`
	Average    float64            `json:"average" yaml:"average"`
}

// NewQualityScores computes the average over the extracted dimensions,
// defaulting to NeutralScore when nothing was extracted.
func NewQualityScores(dims map[string]float64) QualityScores {
	if dims == nil {
		dims = map[string]float64{}
	}
	avg := NeutralScore
	if len(dims) > 0 {
		var sum float64
		for _, v := range dims {
			sum += v
		}
		avg = sum / float64(len(dims))
	}
	return QualityScores{Dimensions: dims, Average: avg}
}

// Evaluation is the evaluation stage output.
type Evaluation struct {
	Scores      QualityScores `json:"scores" yaml:"scores"`
	Text        string        `json:"text" yaml:"text"`
	Strengths   string        `json:"strengths" yaml:"strengths"`
	Weaknesses  string        `json:"weaknesses" yaml:"weaknesses"`
	Suggestions string        `json:"suggestions" yaml:"suggestions"`
}
