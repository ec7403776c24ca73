// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

const (
	dbFile       = "index.db"
	metadataFile = "metadata.json"
)

const schema = `CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY,
	document_id TEXT NOT NULL,
	source TEXT,
	title TEXT,
	page INTEGER,
	text TEXT NOT NULL,
	metadata TEXT,
	embedding BLOB NOT NULL
)`

// Save writes the index to dir: chunk rows and vectors to index.db and the
// document metadata map to metadata.json. Only chunks not yet in index.db
// are inserted.
func (ix *Index) Save(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating index directory: %w", types.ErrPersistence, err)
	}

	ix.mu.RLock()
	chunks := ix.chunks[:len(ix.chunks):len(ix.chunks)]
	docs := make(map[string]map[string]string, len(ix.docs))
	for id, m := range ix.docs {
		docs[id] = m
	}
	ix.mu.RUnlock()

	db, err := openDB(dir)
	if err != nil {
		return err
	}
	defer db.Close()

	var maxID int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), -1) FROM chunks`).Scan(&maxID); err != nil {
		return fmt.Errorf("%w: reading index state: %w", types.ErrPersistence, err)
	}

	written, err := insertChunks(ctx, db, chunks, maxID)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrPersistence, err)
	}

	if err := writeJSON(filepath.Join(dir, metadataFile), docs); err != nil {
		return fmt.Errorf("%w: writing %s: %w", types.ErrPersistence, metadataFile, err)
	}

	ix.logger.Info("saved index",
		zap.String("dir", dir),
		zap.Int("new_chunks", written),
		zap.Int("documents", len(docs)))
	return nil
}

func insertChunks(ctx context.Context, db *sql.DB, chunks []types.Chunk, after int64) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO chunks (id, document_id, source, title, page, text, metadata, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, c := range chunks {
		if c.ID <= after {
			continue
		}
		metaJSON, _ := json.Marshal(c.Metadata)
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.Source, c.Title, c.Page, c.Text,
			string(metaJSON), encodeVector(c.Embedding),
		); err != nil {
			return 0, fmt.Errorf("inserting chunk %d: %w", c.ID, err)
		}
		written++
	}
	return written, tx.Commit()
}

// Load replaces the index contents with what Save wrote to dir. A directory
// without index.db is an empty index, not an error.
func (ix *Index) Load(ctx context.Context, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, dbFile)); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	db, err := openDB(dir)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT id, document_id, source, title, page, text, metadata, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return fmt.Errorf("%w: reading chunks: %w", types.ErrPersistence, err)
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var (
			c        types.Chunk
			source   sql.NullString
			title    sql.NullString
			page     sql.NullInt64
			metaJSON sql.NullString
			blob     []byte
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &source, &title, &page, &c.Text, &metaJSON, &blob); err != nil {
			return fmt.Errorf("%w: scanning chunk: %w", types.ErrPersistence, err)
		}
		c.Source = source.String
		c.Title = title.String
		c.Page = int(page.Int64)
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &c.Metadata); err != nil {
				return fmt.Errorf("%w: parsing metadata of chunk %d: %w", types.ErrPersistence, c.ID, err)
			}
		}
		c.Embedding = decodeVector(blob)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: reading chunks: %w", types.ErrPersistence, err)
	}

	docs := make(map[string]map[string]string)
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &docs); err != nil {
			return fmt.Errorf("%w: parsing %s: %w", types.ErrPersistence, metadataFile, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: reading %s: %w", types.ErrPersistence, metadataFile, err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.chunks = chunks
	ix.docs = docs
	ix.docOrder = ix.docOrder[:0]
	ix.nextID = 0
	for _, c := range chunks {
		if _, ok := docs[c.DocumentID]; !ok {
			docs[c.DocumentID] = c.Metadata
		}
		if !slices.Contains(ix.docOrder, c.DocumentID) {
			ix.docOrder = append(ix.docOrder, c.DocumentID)
		}
		if c.ID >= ix.nextID {
			ix.nextID = c.ID + 1
		}
	}
	for id := range docs {
		if !slices.Contains(ix.docOrder, id) {
			ix.docOrder = append(ix.docOrder, id)
		}
	}
	ix.docSeq = len(docs)

	ix.logger.Info("loaded index",
		zap.String("dir", dir),
		zap.Int("chunks", len(chunks)),
		zap.Int("documents", len(docs)))
	return nil
}

func openDB(dir string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("%w: opening index database: %w", types.ErrPersistence, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %w", types.ErrPersistence, err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %w", types.ErrPersistence, err)
	}
	return db, nil
}

// encodeVector packs v as little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

// writeJSON writes v to path through a temporary file so readers never see
// a partial file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
