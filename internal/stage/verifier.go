// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/internal/fieldscan"
	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// ContradictionCap is the highest confidence findings can keep once the
// verification report flags a contradiction. It sits below
// types.VerifiedThreshold so contradicted findings never count as verified.
const ContradictionCap = 6.0

// SkippedNarrative is the verification narrative of a fallback run.
const SkippedNarrative = "Verification skipped: reduced fallback run. Confidence fixed at the neutral default."

// Verifier cross-checks research findings through the completion service.
type Verifier struct {
	Completer llm.Completer
	Logger    *zap.Logger
}

// ClaimCheck is the outcome of verifying one claim.
type ClaimCheck struct {
	Claim      string  `json:"claim"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`
}

// Verify asks for a verification report on findings and derives the
// confidence from it. depth selects how many claims are checked.
func (v *Verifier) Verify(ctx context.Context, query string, findings types.Findings, depth types.VerificationDepth) (types.VerifiedFindings, error) {
	if v.Completer == nil {
		return types.VerifiedFindings{}, fmt.Errorf("%w: verification stage has no completion service", types.ErrConfig)
	}
	if depth == "" {
		depth = types.DepthStandard
	}
	prompt, err := render(verifyTmpl, struct {
		Query     string
		Narrative string
		Evidence  []types.EvidenceItem
		Depth     types.VerificationDepth
	}{query, findings.Narrative, findings.Evidence, depth})
	if err != nil {
		return types.VerifiedFindings{}, fmt.Errorf("rendering verification prompt: %w", err)
	}

	text, err := v.Completer.Complete(ctx, verifySystem, prompt, verifyTemperature)
	if err != nil {
		return types.VerifiedFindings{}, fmt.Errorf("verifying findings: %w", types.Upstream("completion", err))
	}

	confidence, contradictions := ScoreVerification(text)
	vf := types.VerifiedFindings{
		Findings:       findings,
		Confidence:     confidence,
		Narrative:      strings.TrimSpace(text),
		Verified:       confidence >= types.VerifiedThreshold,
		Contradictions: contradictions,
	}
	if v.Logger != nil {
		v.Logger.Debug("findings verified",
			zap.Float64("confidence", confidence),
			zap.Bool("contradictions", contradictions != ""),
			zap.String("depth", string(depth)))
	}
	return vf, nil
}

// VerifyClaim checks a single claim against evidence.
func (v *Verifier) VerifyClaim(ctx context.Context, claim string, evidence []types.EvidenceItem) (ClaimCheck, error) {
	claim = strings.TrimSpace(claim)
	if claim == "" {
		return ClaimCheck{}, fmt.Errorf("%w: claim is empty", types.ErrInvalidInput)
	}
	if v.Completer == nil {
		return ClaimCheck{}, fmt.Errorf("%w: verification stage has no completion service", types.ErrConfig)
	}
	prompt, err := render(claimTmpl, struct {
		Claim    string
		Evidence []types.EvidenceItem
	}{claim, evidence})
	if err != nil {
		return ClaimCheck{}, fmt.Errorf("rendering claim prompt: %w", err)
	}
	text, err := v.Completer.Complete(ctx, verifySystem, prompt, verifyTemperature)
	if err != nil {
		return ClaimCheck{}, fmt.Errorf("verifying claim: %w", types.Upstream("completion", err))
	}
	confidence, _ := ScoreVerification(text)
	return ClaimCheck{
		Claim:      claim,
		Text:       strings.TrimSpace(text),
		Confidence: confidence,
		Verified:   confidence >= types.VerifiedThreshold,
	}, nil
}

// Skip returns findings unverified at the neutral confidence, marked as
// skipped.
func (v *Verifier) Skip(findings types.Findings) types.VerifiedFindings {
	return types.VerifiedFindings{
		Findings:   findings,
		Confidence: types.NeutralScore,
		Narrative:  SkippedNarrative,
		Skipped:    true,
	}
}

// ScoreVerification reads the confidence from a verification report and
// returns it with the flagged contradictions, if any.
//
// Without contradictions an explicit "Overall Confidence" wins, then the
// mean of the per-fact scores, then any other stated score, then
// types.NeutralScore. With contradictions the lowest stated score wins and
// the result is capped at ContradictionCap.
func ScoreVerification(text string) (float64, string) {
	contradictions := fieldscan.Section(text, "contradiction")
	if !fieldscan.Flagged(contradictions) {
		contradictions = ""
	}

	explicit, hasExplicit := fieldscan.Score(text, "overall confidence")
	stated, hasStated := explicit, hasExplicit
	if !hasStated {
		stated, hasStated = fieldscan.Confidence(text)
	}
	facts := fieldscan.FactScores(text)

	if contradictions == "" {
		switch {
		case hasExplicit:
			return explicit, ""
		case len(facts) > 0:
			var sum float64
			for _, f := range facts {
				sum += f
			}
			return sum / float64(len(facts)), ""
		case hasStated:
			return stated, ""
		default:
			return types.NeutralScore, ""
		}
	}

	worst := types.NeutralScore
	if hasStated {
		worst = stated
	}
	for i, f := range facts {
		if (i == 0 && !hasStated) || f < worst {
			worst = f
		}
	}
	return min(worst, ContradictionCap), contradictions
}
