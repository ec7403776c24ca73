// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/internal/container"
	"github.com/pdiddy/research-pipeline/internal/extract"
	"github.com/pdiddy/research-pipeline/internal/index"
	"github.com/pdiddy/research-pipeline/internal/pipeline"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <files...>",
	Short: "Add documents to the retrieval index",
	Long: `Ingest extracts text from Markdown, plain-text and PDF files, splits it
into overlapping chunks, embeds each chunk and saves the index to the
configured directory. PDFs are converted with the markitdown container
image and each page is indexed separately so citations can name the page.

Files that fail extraction are reported and skipped; the remaining files
are still ingested.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := loadConfig()

	_, ix, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	p := pipeline.New(pipeline.Deps{Index: ix, IndexDir: cfg.Index.Dir}, cfg.Pipeline, logger)

	source, _ := cmd.Flags().GetString("source")
	title, _ := cmd.Flags().GetString("title")
	author, _ := cmd.Flags().GetString("author")

	pdf := &lazyPDF{image: cfg.Extraction.Image}
	var (
		docs   []string
		meta   []map[string]string
		failed int
	)
	for _, path := range args {
		d, m, err := extractFile(ctx, path, pdf, source, title, author)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
			continue
		}
		docs = append(docs, d...)
		meta = append(meta, m...)
		fmt.Fprintf(os.Stdout, "%-40s  %d page(s)\n", path, len(d))
	}

	if len(docs) > 0 {
		chunks, err := p.Ingest(ctx, docs, meta)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "\n%d chunks added; index holds %d chunks from %d documents\n",
			chunks, ix.ChunkCount(), ix.DocumentCount())
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed extraction", failed)
	}
	return nil
}

// extractFile returns one document per non-empty page of path, each with
// the metadata the index records for citations.
func extractFile(ctx context.Context, path string, pdf extract.Extractor, source, title, author string) ([]string, []map[string]string, error) {
	ex, err := extract.ForPath(path, pdf)
	if err != nil {
		return nil, nil, err
	}
	doc, err := ex.Extract(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	base := filepath.Base(path)
	if source == "" {
		source = base
	}
	if title == "" {
		title = doc.Title
	}

	var (
		docs []string
		meta []map[string]string
	)
	paged := len(doc.Pages) > 1
	for _, pg := range doc.Pages {
		if strings.TrimSpace(pg.Text) == "" {
			continue
		}
		m := map[string]string{
			index.MetaDocumentID: base,
			index.MetaSource:     source,
			index.MetaTitle:      title,
		}
		if paged {
			m[index.MetaPage] = strconv.Itoa(pg.Number)
		}
		if author != "" {
			m[index.MetaAuthor] = author
		}
		docs = append(docs, pg.Text)
		meta = append(meta, m)
	}
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("%w: no text extracted from %s", types.ErrCorruptDocument, path)
	}
	return docs, meta, nil
}

// lazyPDF detects the container runtime on the first PDF so text-only
// ingests never need one.
type lazyPDF struct {
	image string
	md    *extract.Markitdown
	err   error
	tried bool
}

func (l *lazyPDF) Extract(ctx context.Context, path string) (*extract.Document, error) {
	if !l.tried {
		l.tried = true
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			l.err = fmt.Errorf("%w: %w", types.ErrConfig, err)
		} else {
			l.md, l.err = extract.NewMarkitdown(ctx, rt, l.image)
		}
		if l.err == nil {
			logger.Debug("PDF extraction ready", zap.String("runtime", rt.Name()), zap.String("image", l.image))
		}
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.md.Extract(ctx, path)
}

func init() {
	ingestCmd.Flags().String("source", "", "source label recorded for citations (default: file name)")
	ingestCmd.Flags().String("title", "", "document title (default: first heading or file name)")
	ingestCmd.Flags().String("author", "", "document author recorded for citations")

	rootCmd.AddCommand(ingestCmd)
}
