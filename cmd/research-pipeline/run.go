// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pipeline/internal/citation"
	"github.com/pdiddy/research-pipeline/internal/index"
	"github.com/pdiddy/research-pipeline/internal/pipeline"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Research a question and write a cited report",
	Long: `Run routes the query to a research strategy, gathers evidence from web
search and the document index, verifies the findings, synthesizes a cited
report and scores its quality. If any stage fails, a reduced fallback run
is attempted and the result is marked degraded.

The result is saved as a session unless --no-persist is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func runResearch(cmd *cobra.Command, args []string) error {
	styleName, _ := cmd.Flags().GetString("style")
	style, err := citation.ParseStyle(styleName)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	noPersist, _ := cmd.Flags().GetBool("no-persist")
	req := pipeline.Request{
		Query:   strings.Join(args, " "),
		Persist: !noPersist,
	}
	if cmd.Flags().Changed("web") {
		v, _ := cmd.Flags().GetBool("web")
		req.UseWeb = &v
	}
	if cmd.Flags().Changed("index") {
		v, _ := cmd.Flags().GetBool("index")
		req.UseIndex = &v
	}
	if doc, _ := cmd.Flags().GetString("document"); doc != "" {
		req.Filter = map[string]string{index.MetaDocumentID: doc}
	}

	res, err := a.pipeline.Run(cmd.Context(), req)
	if err != nil {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			fmt.Fprintf(os.Stderr, "Trace: %s\n", joinStates(res.Trace))
		}
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	summaryOnly, _ := cmd.Flags().GetBool("summary")
	return writeResult(os.Stdout, res, style, summaryOnly)
}

// writeResult prints the report, its references and the run metadata.
func writeResult(w io.Writer, res *pipeline.Result, style citation.Style, summaryOnly bool) error {
	if summaryOnly && res.Report.Summary != "" {
		fmt.Fprintln(w, res.Report.Summary)
	} else {
		fmt.Fprintln(w, res.Report.Body)
	}

	if len(res.Citations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, citation.ReferenceList(res.Citations, style, true))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 60))
	writeScores(w, res.QualityScores)
	fmt.Fprintf(w, "%-22s  %.1f/10 (verified: %t)\n", "Confidence", res.Confidence, res.Verified)
	fmt.Fprintf(w, "%-22s  web=%t index=%t depth=%s\n", "Strategy",
		res.Strategy.UseWeb, res.Strategy.UseIndex, res.Strategy.VerificationDepth)
	if res.Degraded {
		fmt.Fprintf(w, "%-22s  yes (fallback path)\n", "Degraded")
	}
	if res.SessionID != "" {
		fmt.Fprintf(w, "%-22s  %s\n", "Session", res.SessionID)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warn)
	}
	return nil
}

func writeScores(w io.Writer, q types.QualityScores) {
	for _, dim := range types.Dimensions {
		if v, ok := q.Dimensions[dim]; ok {
			fmt.Fprintf(w, "%-22s  %.1f\n", dim, v)
		}
	}
	fmt.Fprintf(w, "%-22s  %.1f\n", "average", q.Average)
}

func joinStates(states []pipeline.State) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, " -> ")
}

func init() {
	runCmd.Flags().Bool("web", true, "use web search (overrides the router when set)")
	runCmd.Flags().Bool("index", false, "use the document index (overrides the router when set)")
	runCmd.Flags().String("document", "", "restrict index matches to one document id")
	runCmd.Flags().Bool("no-persist", false, "do not save the result as a session")
	runCmd.Flags().String("style", "apa", "citation style: apa, mla, chicago, bibtex")
	runCmd.Flags().Bool("summary", false, "print the summary instead of the full report")
	runCmd.Flags().Bool("json", false, "output the result as JSON")

	rootCmd.AddCommand(runCmd)
}
