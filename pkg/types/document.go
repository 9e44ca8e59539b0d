package types

import "time"

// Document statuses as reported by the external knowledge-base store.
const (
	DocumentReady    = "READY"
	DocumentIndexing = "INDEXING"
	DocumentFailed   = "FAILED"
)

// DocumentChunk is a ranked knowledge-base chunk returned by the external
// document store's retrieval interface.
type DocumentChunk struct {
	Content    string      `json:"content"`
	Similarity float64     `json:"similarity"`
	Source     ChunkSource `json:"source"`
}

// ChunkSource identifies where a retrieved chunk came from.
type ChunkSource struct {
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunkIndex"`
}

// DocumentInfo is document metadata as exposed by the external store.
type DocumentInfo struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Status    string    `json:"status"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

// DocumentContent is a ready document with its full extracted text, consumed
// by the digest builder.
type DocumentContent struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	SizeBytes  int64  `json:"sizeBytes"`
	Content    string `json:"content"`
	ChunkCount int    `json:"chunkCount"`
}
