package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/nexus/pkg/types"
)

// seedDocument inserts a document row directly; ingestion is out of scope for
// this store, so tests populate the tables the way the external pipeline would.
func seedDocument(t *testing.T, s *Store, instanceID, id, filename, status, content string, sizeBytes int64) {
	t.Helper()
	_, err := s.db.Exec(`
		INSERT INTO documents (id, instance_id, filename, title, status, size_bytes, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, instanceID, filename, filename, status, sizeBytes, content)
	require.NoError(t, err)
}

func seedChunk(t *testing.T, s *Store, instanceID, id, documentID string, index int, content string, embedding []float32) {
	t.Helper()
	_, err := s.db.Exec(`
		INSERT INTO document_chunks (id, document_id, instance_id, chunk_index, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, documentID, instanceID, index, content, serializeEmbedding(embedding))
	require.NoError(t, err)
}

func TestSearchChunksByVector(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, s, "inst-1", "doc-1", "handbook.pdf", types.DocumentReady, "full text", 1024)
	seedChunk(t, s, "inst-1", "chunk-1", "doc-1", 0, "vacation policy details", []float32{1, 0})
	seedChunk(t, s, "inst-1", "chunk-2", "doc-1", 1, "expense reporting steps", []float32{0, 1})

	chunks, err := s.SearchChunksByVector(ctx, "inst-1", []float32{0.9, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "vacation policy details", chunks[0].Content)
	require.Equal(t, "handbook.pdf", chunks[0].Source.Filename)
	require.Equal(t, 0, chunks[0].Source.ChunkIndex)
}

func TestSearchChunksByText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, s, "inst-1", "doc-1", "handbook.pdf", types.DocumentReady, "", 0)
	seedChunk(t, s, "inst-1", "chunk-1", "doc-1", 0, "the vacation policy allows 25 days", nil)
	seedChunk(t, s, "inst-2", "chunk-2", "doc-1", 1, "vacation text on another instance", nil)

	chunks, err := s.SearchChunksByText(ctx, "inst-1", "vacation", 5)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Contains(t, chunks[0].Content, "25 days")
}

func TestListDocumentsWithContentSkipsPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, s, "inst-1", "doc-ready", "ready.md", types.DocumentReady, "ready text", 10)
	seedDocument(t, s, "inst-1", "doc-pending", "pending.md", types.DocumentIndexing, "", 10)

	docs, err := s.ListDocumentsWithContent(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "ready.md", docs[0].Filename)
	require.Equal(t, "ready text", docs[0].Content)

	all, err := s.ListDocuments(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestDocumentUsageAccounting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.CountDocuments(ctx, "inst-1")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	mb, err := s.TotalDocumentsMB(ctx, "inst-1")
	require.NoError(t, err)
	require.Zero(t, mb)

	seedDocument(t, s, "inst-1", "doc-1", "a.md", types.DocumentReady, "", 512*1024)
	seedDocument(t, s, "inst-1", "doc-2", "b.md", types.DocumentReady, "", 512*1024)

	count, err = s.CountDocuments(ctx, "inst-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	mb, err = s.TotalDocumentsMB(ctx, "inst-1")
	require.NoError(t, err)
	require.InDelta(t, 1.0, mb, 1e-9)
}
