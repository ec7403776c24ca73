// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pipeline/internal/index"
	"github.com/pdiddy/research-pipeline/internal/stage"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [claim]",
	Short: "Check a single claim against the document index",
	Long: `Verify asks the model to assess one claim. When the document index holds
chunks, the nearest ones are passed along as evidence; otherwise the claim
is judged on the model's own knowledge. The confidence and the
verification text are printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := loadConfig()

	completer, ix, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	claim := strings.Join(args, " ")

	var evidence []types.EvidenceItem
	if noIndex, _ := cmd.Flags().GetBool("no-index"); !noIndex && ix.Ready() {
		k, _ := cmd.Flags().GetInt("k")
		matches, err := ix.Search(ctx, claim, k, nil)
		if err != nil {
			return err
		}
		evidence = claimEvidence(matches)
	}

	v := &stage.Verifier{Completer: completer, Logger: logger}
	check, err := v.VerifyClaim(ctx, claim, evidence)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(check)
	}
	writeClaimCheck(os.Stdout, check, len(evidence))
	return nil
}

// claimEvidence turns index matches into document evidence for a claim.
func claimEvidence(matches []index.Match) []types.EvidenceItem {
	out := make([]types.EvidenceItem, 0, len(matches))
	for _, m := range matches {
		title := m.Chunk.Title
		if title == "" {
			title = m.Chunk.Source
		}
		out = append(out, types.EvidenceItem{
			Kind:       types.KindDocument,
			DocumentID: m.Chunk.DocumentID,
			Page:       m.Chunk.Page,
			Title:      title,
			Snippet:    m.Chunk.Text,
		})
	}
	return out
}

func writeClaimCheck(w io.Writer, check stage.ClaimCheck, sources int) {
	fmt.Fprintln(w, check.Text)
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "%-22s  %s\n", "Claim", check.Claim)
	fmt.Fprintf(w, "%-22s  %.1f/10 (verified: %t)\n", "Confidence", check.Confidence, check.Verified)
	fmt.Fprintf(w, "%-22s  %d\n", "Index evidence", sources)
}

func init() {
	verifyCmd.Flags().Int("k", 0, "number of chunks to pass as evidence (default from index.default_k)")
	verifyCmd.Flags().Bool("no-index", false, "do not consult the document index")
	verifyCmd.Flags().Bool("json", false, "output the check as JSON")

	rootCmd.AddCommand(verifyCmd)
}
