// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fieldscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   float64
		wantOK bool
	}{
		{"overall out of ten", "Overall Confidence: 8/10", 8.0, true},
		{"hundred scale is divided", "confidence 85/10", 8.5, true},
		{"score label", "Final score: 6.5", 6.5, true},
		{"bare fraction", "I would rate this 7/10.", 7.0, true},
		{"out of ten", "roughly 4 out of 10", 4.0, true},
		{"clamped above range", "confidence: 250", 10.0, true},
		{"overall wins over per-fact", "- Claim A (confidence: 9)\nOverall Confidence: 3", 3.0, true},
		{"bold markdown", "**Overall Confidence:** 7", 7.0, true},
		{"nothing parsable", "The findings look reasonable.", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Confidence(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0.0, Normalize(-3))
	assert.Equal(t, 10.0, Normalize(10))
	assert.Equal(t, 9.5, Normalize(95))
	assert.Equal(t, 10.0, Normalize(1000))
}

func TestScore(t *testing.T) {
	text := `Completeness: 8
**Accuracy**: 7/10
Source Quality (0-10): 6
citation_quality 90`

	tests := []struct {
		label  string
		want   float64
		wantOK bool
	}{
		{"completeness", 8, true},
		{"accuracy", 7, true},
		{"source quality", 6, true},
		{"citation_quality", 9, true},
		{"clarity", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := Score(text, tt.label)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScoreTriesLabelsInOrder(t *testing.T) {
	got, ok := Score("relevance: 4", "missing", "relevance")
	assert.True(t, ok)
	assert.Equal(t, 4.0, got)
}

func TestFactScores(t *testing.T) {
	text := `Verified Facts:
- Water boils at 100C at sea level (confidence: 9)
- The moon is made of cheese (2/10)
- An unscored fact
1. Light is fast, score: 8
Overall Confidence: 6`

	assert.Equal(t, []float64{9, 2, 8}, FactScores(text))
	assert.Empty(t, FactScores("no lists here, confidence 8"))
}

func TestSection(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		label string
		want  string
	}{
		{
			name:  "inline bullet fields",
			text:  "- Verified Facts: a\n- Contradictions: Source A and B disagree on dates\n- Uncertain Claims: none",
			label: "contradiction",
			want:  "Source A and B disagree on dates",
		},
		{
			name:  "bold heading with list",
			text:  "**Strengths:**\n- clear\n- cited\n\n**Weaknesses:**\n- short",
			label: "strength",
			want:  "- clear\n- cited",
		},
		{
			name:  "plural matched from singular label",
			text:  "Suggestions: add more sources",
			label: "suggestion",
			want:  "add more sources",
		},
		{
			name:  "absent section is empty",
			text:  "Completeness: 8\nAccuracy: 7",
			label: "weakness",
			want:  "",
		},
		{
			name:  "label inside a sentence is ignored",
			text:  "2. No contradictions were found between the sources.\n- Contradictions: None",
			label: "contradiction",
			want:  "None",
		},
		{
			name:  "prose mention only",
			text:  "Completeness: 8 - its main strength is breadth",
			label: "strength",
			want:  "",
		},
		{
			name:  "numbered heading",
			text:  "3. **Weaknesses**: few primary sources\n- Suggestions: add some",
			label: "weakness",
			want:  "few primary sources",
		},
		{
			name:  "markdown heading stops section",
			text:  "## Weaknesses\nthin coverage\n## Suggestions\nmore",
			label: "weakness",
			want:  "thin coverage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Section(tt.text, tt.label))
		})
	}
}

func TestFlagged(t *testing.T) {
	assert.False(t, Flagged(""))
	assert.False(t, Flagged("None found."))
	assert.False(t, Flagged("- No contradictions identified"))
	assert.False(t, Flagged("N/A"))
	assert.True(t, Flagged("Source A reports 1990, source B reports 1992"))
}
