// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"bytes"
	"strings"
	"text/template"
	"unicode/utf8"
)

// Sampling temperatures. Checking and scoring run cooler than writing.
const (
	researchTemperature   = 0.7
	verifyTemperature     = 0.3
	synthesisTemperature  = 0.7
	evaluationTemperature = 0.3
)

const researchSystem = `You are a research specialist. Your role is to gather
comprehensive information on topics from multiple sources.

When researching:
1. Use web search to find current information
2. Use document retrieval to find relevant information from uploaded documents
3. Synthesize information from both sources
4. Track all sources for citation
5. Provide detailed, well-sourced information

Always cite your sources and indicate the reliability of information.`

const verifySystem = `You are a fact-checking specialist. Your role is to verify
information accuracy by:
1. Cross-referencing information across multiple sources
2. Identifying contradictions or inconsistencies
3. Flagging uncertain or unverified claims
4. Providing confidence scores for each fact
5. Suggesting additional verification when needed

Be thorough and conservative. When in doubt, flag information as uncertain.`

const synthesisSystem = `You are a professional research synthesizer. Your role is to
organize and structure research findings into coherent, well-formatted reports.

When synthesizing:
1. Organize information by topic/themes
2. Create a logical flow and narrative
3. Use clear headings and structure
4. Include citations for all claims
5. Maintain accuracy while improving readability
6. Highlight key findings and insights

Create professional, publication-ready reports.`

const evaluationSystem = `You are a research quality evaluator. Your role is to assess
research reports on multiple dimensions:
1. Completeness (0-10): Does the report fully address the query?
2. Accuracy (0-10): Are the facts correct and well-verified?
3. Relevance (0-10): Is the information relevant to the query?
4. Clarity (0-10): Is the report well-written and easy to understand?
5. Source Quality (0-10): Are the sources reliable and appropriate?
6. Citation Quality (0-10): Are citations properly included and formatted?

Provide specific scores for each dimension, an overall average score, and actionable
suggestions for improvement.`

var funcs = template.FuncMap{
	"clip":    clip,
	"sources": formatSources,
}

// researchTmpl asks for a synthesis of the raw evidence.
var researchTmpl = template.Must(template.New("research").Funcs(funcs).Parse(`Research Query: {{.Query}}
{{if .Web}}
Web Search Results:
{{range .Web}}
[{{.CitationID}}] {{.Title}}
URL: {{.URL}}
Content: {{clip .Snippet 300}}
{{end}}{{end}}{{if .Documents}}
Document Retrieval Results:
{{range .Documents}}
[{{.CitationID}}] {{.Title}}{{if .Page}} (Page {{.Page}}){{end}}
{{clip .Snippet 300}}
{{end}}{{end}}{{if not (or .Web .Documents)}}
No sources returned results. Answer from general knowledge and state clearly that no sources were consulted.
{{end}}
Based on the information from web search and document retrieval above, synthesize
a comprehensive research finding. Include:
1. Key information relevant to the query
2. Important details from multiple sources
3. Any contradictions or uncertainties
4. Source references using the bracketed ids above, e.g. [web_0]

Provide a well-structured synthesis that combines information from all sources.`))

// verifyTmpl asks for a verification report in a fixed field layout.
var verifyTmpl = template.Must(template.New("verify").Funcs(funcs).Parse(`Research Query: {{.Query}}

Research Findings:
{{.Narrative}}

Sources Used:
{{sources .Evidence}}

Please verify the accuracy of the research findings by:
1. Cross-referencing claims across sources
2. Identifying any contradictions
3. Flagging uncertain or unverified information
4. Providing confidence scores (0-10) for key facts
5. Suggesting areas that need additional verification
{{- if eq .Depth "basic"}}

Focus on the most important claims only.
{{- else if eq .Depth "thorough"}}

Check every claim individually and give each verified fact its own confidence score.
{{- end}}

Format your response as:
- Verified Facts: [list of verified facts with confidence scores]
- Contradictions: [any contradictions found, or "None"]
- Uncertain Claims: [claims that need more verification]
- Overall Confidence: [0-10 score]
- Recommendations: [suggestions for improvement]`))

// claimTmpl checks a single claim.
var claimTmpl = template.Must(template.New("claim").Funcs(funcs).Parse(`Claim to verify: {{.Claim}}

Sources:
{{sources .Evidence}}

Verify this claim by:
1. Checking if sources support the claim
2. Identifying any contradictions
3. Providing a confidence score (0-10)
4. Explaining your reasoning`))

// synthesisTmpl asks for the final report.
var synthesisTmpl = template.Must(template.New("synthesis").Funcs(funcs).Parse(`Original Research Query: {{.Query}}

Research Findings:
{{.Findings}}

Verification Report:
{{.Verification}}

Confidence Score: {{printf "%.1f" .Confidence}}/10

Available Sources:
{{sources .Evidence}}

Please synthesize this information into a comprehensive, well-structured research report.
The report should include:
1. Executive Summary (brief overview)
2. Main Findings (organized by topic)
3. Key Insights
4. Limitations and Uncertainties (if any)
5. Conclusion

Format the report with clear headings, bullet points where appropriate, and proper
citations using the source ids in square brackets, e.g. [web_0] or [doc_1]. Make it
professional and easy to read.`))

// summaryTmpl asks for a short abstract of a finished report.
var summaryTmpl = template.Must(template.New("summary").Funcs(funcs).Parse(`Research Report:
{{clip .Report 2000}}

Create a brief summary ({{.Words}} words or less) that captures the key findings
and conclusions.`))

// evaluationTmpl asks for scores on every quality dimension.
var evaluationTmpl = template.Must(template.New("evaluation").Funcs(funcs).Parse(`Research Query: {{.Query}}

Research Report:
{{.Report}}

Number of Sources: {{.Sources}}

Evaluate this research report on the following dimensions (0-10 scale):
1. Completeness: Does the report fully address the query?
2. Accuracy: Are the facts correct and well-verified?
3. Relevance: Is the information relevant to the query?
4. Clarity: Is the report well-written and easy to understand?
5. Source Quality: Are the sources reliable and appropriate?
6. Citation Quality: Are citations properly included and formatted?

Provide:
- Score for each dimension (0-10)
- Overall average score
- Specific strengths
- Specific weaknesses
- Actionable improvement suggestions

Format your response clearly with scores and explanations.`))

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// clip shortens s to at most n bytes on a rune boundary and marks the cut.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
