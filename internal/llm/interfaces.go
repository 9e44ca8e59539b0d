// Package llm provides the extraction and embedding clients used by the
// memory engine. Extraction calls go through a circuit breaker so a degraded
// model service cannot stall mining or consolidation.
package llm

import (
	"context"

	"github.com/openclaw/nexus/pkg/types"
)

// Embedder generates vector embeddings for text. Implementations may return
// a nil embedding with a nil error when embeddings are unavailable; callers
// degrade to lexical retrieval in that case.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}

// Extractor is the language-model extraction service behind mining and
// consolidation. All methods tolerate sloppy model output: they return empty
// results rather than failing on prose around the JSON payload.
type Extractor interface {
	// ExtractEntities identifies notable entities in conversation text.
	ExtractEntities(ctx context.Context, text string) ([]types.ExtractedEntity, error)

	// ExtractEvents identifies meaningful conversation events in raw agent
	// logs, skipping infrastructure noise.
	ExtractEvents(ctx context.Context, logs string) ([]types.ExtractedEvent, error)

	// ConsolidateProfile synthesizes a sender profile from event history.
	// A nil profile with a nil error means the sender could not be profiled.
	ConsolidateProfile(ctx context.Context, senderID string, events []types.MemoryEvent) (*types.SenderProfile, error)

	GetModel() string
}
