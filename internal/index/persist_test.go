// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

func countRows(t *testing.T, dir string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile))
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM chunks`).Scan(&n))
	return n
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ix, _ := newTestIndex(t)
	_, err := ix.Ingest(ctx, []string{"quantum computing basics", "bread baking"}, []map[string]string{
		{MetaDocumentID: "qc", MetaSource: "qc.pdf", MetaPage: "2", MetaAuthor: "Ada"},
		{MetaSource: "bread.md"},
	})
	require.NoError(t, err)
	require.NoError(t, ix.Save(ctx, dir))

	assert.FileExists(t, filepath.Join(dir, dbFile))
	assert.FileExists(t, filepath.Join(dir, metadataFile))

	restored, _ := newTestIndex(t)
	require.NoError(t, restored.Load(ctx, dir))
	assert.Equal(t, 2, restored.ChunkCount())
	assert.Equal(t, 2, restored.DocumentCount())

	matches, err := restored.Search(ctx, "quantum computing", 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	c := matches[0].Chunk
	assert.Equal(t, "qc", c.DocumentID)
	assert.Equal(t, "qc.pdf", c.Source)
	assert.Equal(t, 2, c.Page)
	assert.Equal(t, "Ada", c.Metadata[MetaAuthor])
	assert.Greater(t, matches[0].Score, 0.5)
}

func TestSaveIsIncremental(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ix, _ := newTestIndex(t)
	_, err := ix.Ingest(ctx, []string{"first"}, nil)
	require.NoError(t, err)
	require.NoError(t, ix.Save(ctx, dir))
	assert.Equal(t, 1, countRows(t, dir))

	_, err = ix.Ingest(ctx, []string{"second"}, nil)
	require.NoError(t, err)
	require.NoError(t, ix.Save(ctx, dir))
	require.NoError(t, ix.Save(ctx, dir))
	assert.Equal(t, 2, countRows(t, dir))
}

func TestLoadContinuesIDs(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ix, _ := newTestIndex(t)
	_, err := ix.Ingest(ctx, []string{"one"}, nil)
	require.NoError(t, err)
	require.NoError(t, ix.Save(ctx, dir))

	restored, _ := newTestIndex(t)
	require.NoError(t, restored.Load(ctx, dir))
	_, err = restored.Ingest(ctx, []string{"two"}, nil)
	require.NoError(t, err)
	require.NoError(t, restored.Save(ctx, dir))

	assert.Equal(t, 2, countRows(t, dir))
	ids := []string{}
	for _, d := range restored.Documents() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"doc_0", "doc_1"}, ids)
}

func TestLoadMissingDirectoryIsEmpty(t *testing.T) {
	ix, _ := newTestIndex(t)
	require.NoError(t, ix.Load(context.Background(), filepath.Join(t.TempDir(), "nope")))
	assert.False(t, ix.Ready())
}

func TestLoadCorruptMetadata(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ix, _ := newTestIndex(t)
	_, err := ix.Ingest(ctx, []string{"one"}, nil)
	require.NoError(t, err)
	require.NoError(t, ix.Save(ctx, dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFile), []byte("{not json"), 0o644))

	err = ix.Load(ctx, dir)
	assert.ErrorIs(t, err, types.ErrPersistence)
}

func TestLoadCorruptChunkMetadata(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ix, _ := newTestIndex(t)
	_, err := ix.Ingest(ctx, []string{"one"}, nil)
	require.NoError(t, err)
	require.NoError(t, ix.Save(ctx, dir))

	db, err := openDB(dir)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE chunks SET metadata = '{bad'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	restored, _ := newTestIndex(t)
	err = restored.Load(ctx, dir)
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.Contains(t, err.Error(), "metadata of chunk")
	assert.False(t, restored.Ready())
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3e-7}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}
