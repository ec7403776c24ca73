// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index chunks and embeds documents and answers questions from the
// nearest chunks. Chunks are append-only: ingestion embeds outside the lock
// and publishes all of a call's chunks at once, so a concurrent query sees
// either none or all of them.
package index

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Metadata keys understood by Ingest. Every other key is carried through
// to the chunks unchanged.
const (
	MetaDocumentID = "document_id"
	MetaSource     = "source"
	MetaTitle      = "title"
	MetaPage       = "page"
	MetaAuthor     = "author"
)

// DefaultK is the number of matches returned when a caller passes k <= 0.
const DefaultK = 5

const groundingPrompt = `You are a research assistant that answers questions based on the provided context from documents. Use only the information from the context to answer questions. If the context doesn't contain enough information to answer the question, say so. Always cite your sources when providing information.

Context:
%s

Answer the question based on the context above. Include relevant citations.`

// Match is a retrieved chunk and its cosine similarity to the question.
type Match struct {
	Chunk types.Chunk `json:"chunk"`
	Score float64     `json:"score"`
}

// Result is the outcome of a grounded query.
type Result struct {
	Question string  `json:"question"`
	Matches  []Match `json:"matches"`
	Context  string  `json:"context"`
	Answer   string  `json:"answer"`
}

// Document describes one ingested document.
type Document struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// Index is an in-memory vector index over document chunks.
type Index struct {
	embedder  llm.Embedder
	completer llm.Completer
	splitter  Splitter
	defaultK  int
	logger    *zap.Logger

	mu       sync.RWMutex
	chunks   []types.Chunk
	docs     map[string]map[string]string
	docOrder []string
	nextID   int64
	docSeq   int
}

// New creates an empty index. A nil completer limits the index to Search.
func New(embedder llm.Embedder, completer llm.Completer, cfg types.IndexConfig, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	k := cfg.DefaultK
	if k <= 0 {
		k = DefaultK
	}
	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if size <= 0 && overlap == 0 {
		overlap = DefaultChunkOverlap
	}
	return &Index{
		embedder:  embedder,
		completer: completer,
		splitter:  NewSplitter(size, overlap),
		defaultK:  k,
		logger:    logger,
		docs:      make(map[string]map[string]string),
	}
}

// Ingest chunks, embeds and appends docs. meta may be nil or shorter than
// docs; missing entries default to an empty map. A document without a
// document_id gets "doc_{n}" where n counts documents ingested so far.
// Metadata for a document id is recorded the first time the id is seen and
// never replaced. It returns the number of chunks created. An embedding
// failure aborts the whole call and nothing is appended.
func (ix *Index) Ingest(ctx context.Context, docs []string, meta []map[string]string) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	type embedded struct {
		text string
		vec  []float32
	}
	pieces := make([][]embedded, len(docs))
	total := 0

	for i, text := range docs {
		for _, piece := range ix.splitter.Split(text) {
			if err := ctx.Err(); err != nil {
				return 0, types.Upstream("embedding", err)
			}
			vec, err := ix.embedder.Embed(ctx, piece)
			if err != nil {
				return 0, types.Upstream("embedding", err)
			}
			pieces[i] = append(pieces[i], embedded{text: piece, vec: vec})
			total++
		}
	}

	// Default ordinals are taken only once every embedding succeeded.
	ix.mu.Lock()
	defer ix.mu.Unlock()
	base := ix.docSeq
	ix.docSeq += len(docs)
	for i := range docs {
		var m map[string]string
		if i < len(meta) {
			m = meta[i]
		}
		docMeta := documentMetadata(m, base+i)
		for _, p := range pieces[i] {
			c := newChunk(p.text, docMeta, p.vec)
			c.ID = ix.nextID
			ix.nextID++
			ix.chunks = append(ix.chunks, c)
			ix.recordDocument(c.DocumentID, docMeta)
		}
	}

	ix.logger.Info("ingested documents",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", total),
		zap.Int("total_chunks", len(ix.chunks)))
	return total, nil
}

// recordDocument stores metadata for id unless it is already known.
// Callers hold ix.mu.
func (ix *Index) recordDocument(id string, meta map[string]string) {
	if _, ok := ix.docs[id]; ok {
		return
	}
	ix.docs[id] = meta
	ix.docOrder = append(ix.docOrder, id)
}

// Search returns the k chunks nearest to question that satisfy filter.
// Every filter key must equal the chunk's metadata value.
func (ix *Index) Search(ctx context.Context, question string, k int, filter map[string]string) ([]Match, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is empty", types.ErrInvalidInput)
	}

	chunks := ix.snapshot()
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no documents have been ingested", types.ErrNotReady)
	}
	if k <= 0 {
		k = ix.defaultK
	}

	qvec, err := ix.embedder.Embed(ctx, question)
	if err != nil {
		return nil, types.Upstream("embedding", err)
	}

	matches := make([]Match, 0, len(chunks))
	for _, c := range chunks {
		if !matchesFilter(c, filter) {
			continue
		}
		matches = append(matches, Match{Chunk: c, Score: llm.CosineSimilarity(qvec, c.Embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Query retrieves the k nearest chunks and asks the completer for an
// answer grounded in them. When the filter excludes every chunk the result
// has no matches and no answer.
func (ix *Index) Query(ctx context.Context, question string, k int, filter map[string]string) (Result, error) {
	matches, err := ix.Search(ctx, question, k, filter)
	if err != nil {
		return Result{}, err
	}
	res := Result{Question: question, Matches: matches}
	if len(matches) == 0 {
		return res, nil
	}
	if ix.completer == nil {
		return Result{}, fmt.Errorf("%w: index has no completion service", types.ErrConfig)
	}

	res.Context = FormatContext(matches)
	answer, err := ix.completer.Complete(ctx, fmt.Sprintf(groundingPrompt, res.Context), question, 0)
	if err != nil {
		return Result{}, types.Upstream("completion", err)
	}
	res.Answer = answer
	return res, nil
}

// FormatContext renders matches as "[Source: s, Page p]" annotated blocks
// separated by horizontal rules.
func FormatContext(matches []Match) string {
	blocks := make([]string, len(matches))
	for i, m := range matches {
		header := "[Source: " + m.Chunk.Source
		if m.Chunk.Page > 0 {
			header += fmt.Sprintf(", Page %d", m.Chunk.Page)
		}
		blocks[i] = header + "]\n" + m.Chunk.Text
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// ChunkCount returns the number of indexed chunks.
func (ix *Index) ChunkCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// DocumentCount returns the number of distinct document ids.
func (ix *Index) DocumentCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Ready reports whether the index holds at least one chunk.
func (ix *Index) Ready() bool {
	return ix.ChunkCount() > 0
}

// Documents returns the known documents in first-ingest order.
func (ix *Index) Documents() []Document {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Document, len(ix.docOrder))
	for i, id := range ix.docOrder {
		out[i] = Document{ID: id, Metadata: copyMap(ix.docs[id])}
	}
	return out
}

// snapshot returns the current chunk slice. Chunks are never modified once
// appended, so the returned slice stays consistent after the lock is released.
func (ix *Index) snapshot() []types.Chunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.chunks[:len(ix.chunks):len(ix.chunks)]
}

func documentMetadata(m map[string]string, ordinal int) map[string]string {
	out := copyMap(m)
	if out[MetaDocumentID] == "" {
		out[MetaDocumentID] = fmt.Sprintf("doc_%d", ordinal)
	}
	if out[MetaSource] == "" {
		out[MetaSource] = "unknown"
	}
	if out[MetaTitle] == "" {
		out[MetaTitle] = fmt.Sprintf("Document %d", ordinal+1)
	}
	return out
}

func newChunk(text string, meta map[string]string, vec []float32) types.Chunk {
	page, _ := strconv.Atoi(meta[MetaPage])
	return types.Chunk{
		Text:       text,
		DocumentID: meta[MetaDocumentID],
		Source:     meta[MetaSource],
		Title:      meta[MetaTitle],
		Page:       page,
		Metadata:   meta,
		Embedding:  vec,
	}
}

func matchesFilter(c types.Chunk, filter map[string]string) bool {
	for k, v := range filter {
		if k == MetaDocumentID && c.DocumentID == v {
			continue
		}
		if c.Metadata[k] != v {
			return false
		}
	}
	return true
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
