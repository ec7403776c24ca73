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
	"github.com/pdiddy/research-pipeline/internal/session"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List, show, delete and export saved research sessions",
	Long: `Sessions manages the research runs saved under the sessions directory.
Each session holds the query, the report, its quality scores and the
citations it used.`,
}

// --- list subcommand ---

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions, newest first",
	RunE:  runSessionsList,
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := openSessions(loadConfig())
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	summaries := session.Summarize(store.ListRecent(limit))

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-16s  %-5s  %-4s  %s\n", "ID", "Created", "Score", "Refs", "Query")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, s := range summaries {
		query := s.Query
		if len(query) > 40 {
			query = query[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-16s  %-5.1f  %-4d  %s\n",
			s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Average, s.Citations, query)
	}
	fmt.Fprintf(os.Stdout, "\n%d sessions\n", len(summaries))
	return nil
}

// --- show subcommand ---

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	sess, err := findSession(args[0])
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	}

	fmt.Fprintf(os.Stdout, "%-10s  %s\n", "Session", sess.ID)
	fmt.Fprintf(os.Stdout, "%-10s  %s\n", "Query", sess.Query)
	fmt.Fprintf(os.Stdout, "%-10s  %s\n", "Created", sess.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(os.Stdout)
	if sess.Report != nil {
		fmt.Fprintln(os.Stdout, sess.Report.Body)
		fmt.Fprintln(os.Stdout)
	}
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 60))
	writeScores(os.Stdout, sess.QualityScores)
	fmt.Fprintf(os.Stdout, "%-22s  %d\n", "citations", len(sess.Citations))
	return nil
}

// --- delete subcommand ---

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSessions(loadConfig())
		if err != nil {
			return err
		}
		ok, err := store.Delete(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: session %q not found", types.ErrInvalidInput, args[0])
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

// --- export subcommand ---

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a session as Markdown with YAML frontmatter",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsExport,
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	styleName, _ := cmd.Flags().GetString("style")
	style, err := citation.ParseStyle(styleName)
	if err != nil {
		return err
	}
	sess, err := findSession(args[0])
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("%w: creating %s: %w", types.ErrPersistence, output, err)
		}
		defer f.Close()
		w = f
	}
	if err := session.ExportMarkdown(w, sess, style); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "Exported session %s to %s\n", sess.ID, output)
	}
	return nil
}

// --- shared helpers ---

func findSession(id string) (types.Session, error) {
	store, err := openSessions(loadConfig())
	if err != nil {
		return types.Session{}, err
	}
	sess, ok := store.Get(id)
	if !ok {
		return types.Session{}, fmt.Errorf("%w: session %q not found", types.ErrInvalidInput, id)
	}
	return sess, nil
}

func init() {
	sessionsListCmd.Flags().Int("limit", 20, "maximum number of sessions to list")
	sessionsListCmd.Flags().Bool("json", false, "output as JSON")

	sessionsShowCmd.Flags().Bool("json", false, "output the full session as JSON")

	sessionsExportCmd.Flags().String("style", "apa", "citation style: apa, mla, chicago, bibtex")
	sessionsExportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	rootCmd.AddCommand(sessionsCmd)
}
