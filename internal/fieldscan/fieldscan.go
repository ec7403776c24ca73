// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fieldscan pulls structured fields out of unstructured model
// output. Every extractor is best effort: a miss is reported through the
// boolean result and callers pick their own default (types.NeutralScore).
package fieldscan

import (
	"regexp"
	"strconv"
	"strings"
)

const number = `(\d+(?:\.\d+)?)`

// confidencePatterns are tried in order against lowercased text.
var confidencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`overall[\s_]+confidence[*:\s]+` + number),
	regexp.MustCompile(`confidence[*:\s]+` + number),
	regexp.MustCompile(`score[*:\s]+` + number),
	regexp.MustCompile(number + `/10`),
	regexp.MustCompile(number + ` out of 10`),
}

// listItem matches a bulleted or numbered line.
var listItem = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// fieldHeading matches a line that opens a new "Label:" field, optionally
// bulleted, bolded or written as a Markdown heading.
var fieldHeading = regexp.MustCompile(`^\s*(?:#+\s*|[-*•]\s+)?\**[A-Za-z][A-Za-z ]{0,40}\**\s*:`)

// Normalize maps a raw score onto [0,10]. Values above 10 are assumed to
// be on a 0-100 scale and divided by 10 before clamping.
func Normalize(v float64) float64 {
	if v > 10 {
		v /= 10
	}
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// Score returns the first number following any of the labels, e.g.
// "Completeness: 8", "**Clarity**: 7" or "Source Quality (0-10): 6".
// Spaces in a label also match underscores. The result is normalized.
func Score(text string, labels ...string) (float64, bool) {
	lower := strings.ToLower(text)
	for _, label := range labels {
		re, err := regexp.Compile(labelPattern(label) + `\**(?:\s*\([^)]*\))?[*:\s]+` + number)
		if err != nil {
			continue
		}
		if v, ok := firstNumber(re, lower); ok {
			return v, true
		}
	}
	return 0, false
}

// Confidence returns the overall confidence stated in text. An explicit
// "overall confidence" wins; otherwise the first of "confidence N",
// "score N", "N/10" and "N out of 10" is used.
func Confidence(text string) (float64, bool) {
	lower := strings.ToLower(text)
	for _, re := range confidencePatterns {
		if v, ok := firstNumber(re, lower); ok {
			return v, true
		}
	}
	return 0, false
}

// FactScores returns one score per list item that states one, skipping
// the overall confidence line.
func FactScores(text string) []float64 {
	var scores []float64
	for _, line := range strings.Split(strings.ToLower(text), "\n") {
		if !listItem.MatchString(line) || strings.Contains(line, "overall") {
			continue
		}
		for _, re := range confidencePatterns[1:] {
			if v, ok := firstNumber(re, line); ok {
				scores = append(scores, v)
				break
			}
		}
	}
	return scores
}

// Section returns the body following a field heading such as
// "Strengths:", "- **Contradictions**:" or "## Weaknesses" up to the next
// blank line or the next field heading. The heading must open a line and
// either end with a colon or stand alone on its line; mentions of the
// label inside prose are ignored. The label matches case-insensitively
// with an optional plural. A missing section yields "".
func Section(text, label string) string {
	re, err := regexp.Compile(`(?im)^[ \t]*(?:#+[ \t]*|[-*•][ \t]+|\d+[.)][ \t]+)?\**` +
		labelPattern(label) + `(?:s|es)?\**[ \t]*(?::[* \t]*|$)\n?`)
	if err != nil {
		return ""
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return ""
	}

	rest := text[loc[1]:]
	lines := strings.Split(rest, "\n")
	var kept []string
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			if len(kept) > 0 {
				break
			}
			continue
		}
		if i > 0 && len(kept) > 0 && (fieldHeading.MatchString(line) || strings.HasPrefix(strings.TrimSpace(line), "#")) {
			break
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Flagged reports whether a section body carries real content rather
// than an explicit "none".
func Flagged(section string) bool {
	s := strings.ToLower(strings.TrimSpace(section))
	s = strings.TrimLeft(s, "-*•[] ")
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, empty := range []string{"none", "no ", "n/a", "nil", "not found", "nothing"} {
		if strings.HasPrefix(s, empty) {
			return false
		}
	}
	return s != "no" && s != "no."
}

func labelPattern(label string) string {
	words := strings.Fields(strings.ToLower(strings.ReplaceAll(label, "_", " ")))
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(words, `[\s_]+`)
}

func firstNumber(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return Normalize(v), true
}
