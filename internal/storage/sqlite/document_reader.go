package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/openclaw/nexus/internal/storage"
	"github.com/openclaw/nexus/pkg/types"
)

// Ensure *Store also satisfies the read-only document interface.
var _ storage.DocumentReader = (*Store)(nil)

// SearchChunksByVector ranks document chunks by cosine similarity to the
// query embedding.
func (s *Store) SearchChunksByVector(ctx context.Context, instanceID string, query []float32, limit int) ([]types.DocumentChunk, error) {
	if len(query) == 0 {
		return []types.DocumentChunk{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.embedding FROM document_chunks c
		WHERE c.instance_id = ? AND c.embedding IS NOT NULL`,
		instanceID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load chunk embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type scored struct {
		id    string
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			continue
		}
		embedding := deserializeEmbedding(blob)
		if embedding == nil {
			continue
		}
		candidates = append(candidates, scored{id, cosineSimilarity(query, embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating chunk embeddings: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	chunks := make([]types.DocumentChunk, 0, len(candidates))
	for _, c := range candidates {
		chunk, err := s.getChunk(ctx, c.id)
		if err != nil {
			continue
		}
		chunk.Similarity = c.score
		chunks = append(chunks, *chunk)
	}
	return chunks, nil
}

// SearchChunksByText is the lexical fallback over chunk text, ranked by FTS5.
func (s *Store) SearchChunksByText(ctx context.Context, instanceID, query string, limit int) ([]types.DocumentChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	ftsQuery := sanitiseFTSQuery(query)
	if ftsQuery == "" {
		return []types.DocumentChunk{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, -fts.rank AS score
		FROM document_chunks_fts fts
		JOIN document_chunks c ON c.rowid = fts.rowid
		WHERE document_chunks_fts MATCH ? AND c.instance_id = ?
		ORDER BY fts.rank
		LIMIT ?`,
		ftsQuery, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: chunk text search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type hit struct {
		id    string
		score float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.id, &h.score); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan chunk search row: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating chunk search rows: %w", err)
	}

	chunks := make([]types.DocumentChunk, 0, len(hits))
	for _, h := range hits {
		chunk, err := s.getChunk(ctx, h.id)
		if err != nil {
			continue
		}
		chunk.Similarity = h.score
		chunks = append(chunks, *chunk)
	}
	return chunks, nil
}

func (s *Store) getChunk(ctx context.Context, id string) (*types.DocumentChunk, error) {
	var chunk types.DocumentChunk
	err := s.db.QueryRowContext(ctx, `
		SELECT c.content, c.document_id, d.filename, c.chunk_index
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.id = ?`, id).Scan(
		&chunk.Content, &chunk.Source.DocumentID,
		&chunk.Source.Filename, &chunk.Source.ChunkIndex)
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// ListDocumentsWithContent returns ready documents with their full extracted
// text, newest first.
func (s *Store) ListDocumentsWithContent(ctx context.Context, instanceID string) ([]types.DocumentContent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.filename, d.size_bytes, COALESCE(d.content, ''),
			(SELECT COUNT(*) FROM document_chunks c WHERE c.document_id = d.id)
		FROM documents d
		WHERE d.instance_id = ? AND d.status = ?
		ORDER BY d.created_at DESC`,
		instanceID, types.DocumentReady)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list documents with content: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []types.DocumentContent
	for rows.Next() {
		var d types.DocumentContent
		if err := rows.Scan(&d.ID, &d.Filename, &d.SizeBytes, &d.Content, &d.ChunkCount); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan document content row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating document rows: %w", err)
	}
	return docs, nil
}

// ListDocuments returns metadata for all documents regardless of status.
func (s *Store) ListDocuments(ctx context.Context, instanceID string) ([]types.DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, status, size_bytes, created_at
		FROM documents
		WHERE instance_id = ?
		ORDER BY created_at DESC`,
		instanceID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []types.DocumentInfo
	for rows.Next() {
		var d types.DocumentInfo
		if err := rows.Scan(&d.ID, &d.Filename, &d.Status, &d.SizeBytes, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan document info row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating document info rows: %w", err)
	}
	return docs, nil
}

// CountDocuments returns the number of documents for an instance.
func (s *Store) CountDocuments(ctx context.Context, instanceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE instance_id = ?`, instanceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count documents: %w", err)
	}
	return count, nil
}

// TotalDocumentsMB returns total document storage used, in megabytes.
func (s *Store) TotalDocumentsMB(ctx context.Context, instanceID string) (float64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(size_bytes) FROM documents WHERE instance_id = ?`, instanceID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to sum document sizes: %w", err)
	}
	return float64(total.Int64) / (1024 * 1024), nil
}
