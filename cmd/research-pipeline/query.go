// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pipeline/internal/index"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from the document index alone",
	Long: `Query retrieves the chunks nearest to the question from the document index
and asks the model to answer from that context only. Matches are listed
with their similarity, source and page.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := loadConfig()

	_, ix, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	if !ix.Ready() {
		return fmt.Errorf("%w: index at %s is empty; run ingest first", types.ErrNotReady, cfg.Index.Dir)
	}

	k, _ := cmd.Flags().GetInt("k")
	var filter map[string]string
	if doc, _ := cmd.Flags().GetString("document"); doc != "" {
		filter = map[string]string{index.MetaDocumentID: doc}
	}

	res, err := ix.Query(ctx, strings.Join(args, " "), k, filter)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(os.Stdout, res.Answer)
	if len(res.Matches) == 0 {
		return nil
	}

	fmt.Fprintln(os.Stdout)
	fmt.Fprintf(os.Stdout, "%-4s  %-6s  %-30s  %-4s  %s\n", "Rank", "Score", "Source", "Page", "Text")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for i, m := range res.Matches {
		source := m.Chunk.Source
		if len(source) > 30 {
			source = source[:27] + "..."
		}
		page := "-"
		if m.Chunk.Page > 0 {
			page = fmt.Sprint(m.Chunk.Page)
		}
		text := strings.Join(strings.Fields(m.Chunk.Text), " ")
		if len(text) > 50 {
			text = text[:47] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-6.3f  %-30s  %-4s  %s\n", i+1, m.Score, source, page, text)
	}
	fmt.Fprintf(os.Stdout, "\n%d matches\n", len(res.Matches))
	return nil
}

func init() {
	queryCmd.Flags().Int("k", 0, "number of chunks to retrieve (default from index.default_k)")
	queryCmd.Flags().String("document", "", "restrict matches to one document id")
	queryCmd.Flags().Bool("json", false, "output the answer and matches as JSON")

	rootCmd.AddCommand(queryCmd)
}
