package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/openclaw/nexus/pkg/types"
)

// SearchChunksByVector returns chunks ranked by pgvector cosine similarity.
func (s *Store) SearchChunksByVector(ctx context.Context, instanceID string, query []float32, limit int) ([]types.DocumentChunk, error) {
	if len(query) == 0 || !s.pgvectorAvailable {
		return []types.DocumentChunk{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.content, c.document_id, d.filename, c.chunk_index,
			1 - (c.embedding <=> $1::vector) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.instance_id = $2 AND c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $1::vector
		LIMIT $3`,
		pgvector.NewVector(query), instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: chunk vector search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

// SearchChunksByText is the lexical fallback over chunk text.
func (s *Store) SearchChunksByText(ctx context.Context, instanceID, query string, limit int) ([]types.DocumentChunk, error) {
	if strings.TrimSpace(query) == "" {
		return []types.DocumentChunk{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.content, c.document_id, d.filename, c.chunk_index,
			ts_rank(c.content_tsv, plainto_tsquery('english', $1)) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.instance_id = $2
		  AND c.content_tsv @@ plainto_tsquery('english', $1)
		ORDER BY similarity DESC
		LIMIT $3`,
		query, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: chunk text search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]types.DocumentChunk, error) {
	var chunks []types.DocumentChunk
	for rows.Next() {
		var c types.DocumentChunk
		if err := rows.Scan(&c.Content, &c.Source.DocumentID, &c.Source.Filename,
			&c.Source.ChunkIndex, &c.Similarity); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating chunk rows: %w", err)
	}
	return chunks, nil
}

// ListDocumentsWithContent returns ready documents with their full extracted
// text, newest first.
func (s *Store) ListDocumentsWithContent(ctx context.Context, instanceID string) ([]types.DocumentContent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.filename, d.size_bytes, COALESCE(d.content, ''),
			(SELECT COUNT(*) FROM document_chunks c WHERE c.document_id = d.id)
		FROM documents d
		WHERE d.instance_id = $1 AND d.status = $2
		ORDER BY d.created_at DESC`,
		instanceID, types.DocumentReady)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list documents with content: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []types.DocumentContent
	for rows.Next() {
		var d types.DocumentContent
		if err := rows.Scan(&d.ID, &d.Filename, &d.SizeBytes, &d.Content, &d.ChunkCount); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan document content row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating document rows: %w", err)
	}
	return docs, nil
}

// ListDocuments returns metadata for all documents regardless of status.
func (s *Store) ListDocuments(ctx context.Context, instanceID string) ([]types.DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, status, size_bytes, created_at
		FROM documents
		WHERE instance_id = $1
		ORDER BY created_at DESC`,
		instanceID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []types.DocumentInfo
	for rows.Next() {
		var d types.DocumentInfo
		if err := rows.Scan(&d.ID, &d.Filename, &d.Status, &d.SizeBytes, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan document info row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating document info rows: %w", err)
	}
	return docs, nil
}

// CountDocuments returns the number of documents for an instance.
func (s *Store) CountDocuments(ctx context.Context, instanceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE instance_id = $1`, instanceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count documents: %w", err)
	}
	return count, nil
}

// TotalDocumentsMB returns total document storage used, in megabytes.
func (s *Store) TotalDocumentsMB(ctx context.Context, instanceID string) (float64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(size_bytes) FROM documents WHERE instance_id = $1`, instanceID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to sum document sizes: %w", err)
	}
	return float64(total.Int64) / (1024 * 1024), nil
}
