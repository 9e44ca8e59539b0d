// Package storage provides composable storage interfaces for the Nexus
// memory engine.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. Two backends ship with
// the engine: SQLite (default, zero-dependency deployments and tests) and
// PostgreSQL with pgvector (production).
//
// All interface methods are instance-scoped: implementations must never
// return or mutate data belonging to a different instance than the one
// named in the call.
package storage

import (
	"context"
	"time"

	"github.com/openclaw/nexus/pkg/types"
)

// EventStore is the append-only episodic event store.
type EventStore interface {
	// AppendEvent persists a new event, computing expires_at from the given
	// tier at write time. Importance defaults to 0.5 when the payload does
	// not carry one. The event is durable when AppendEvent returns; the
	// embedding is attached later via AttachEventEmbedding.
	AppendEvent(ctx context.Context, create types.MemoryEventCreate, tier types.Tier) (string, error)

	// AttachEventEmbedding sets the embedding for a stored event.
	// Best-effort enrichment: callers must not fail an append when this
	// errors.
	AttachEventEmbedding(ctx context.Context, id string, embedding []float32) error

	// ListRecentEvents returns the newest non-expired events for an
	// instance, newest first, optionally bounded below by since.
	ListRecentEvents(ctx context.Context, instanceID string, limit int, since *time.Time) ([]types.MemoryEvent, error)

	// ListUnconsolidatedEvents returns non-expired events with no
	// consolidated_at that are older than the cutoff, oldest first. The
	// result is capped at a bounded batch size so a large backlog cannot
	// exhaust memory; callers drain the backlog across successive passes.
	ListUnconsolidatedEvents(ctx context.Context, instanceID string, olderThanDays int) ([]types.MemoryEvent, error)

	// MarkConsolidated stamps consolidated_at on the given events as a
	// single atomic set, so a crash mid-pass cannot leave a sender bucket
	// half-marked.
	MarkConsolidated(ctx context.Context, ids []string) error

	// PurgeExpired deletes events whose expiry has passed and returns the
	// count removed. Idempotent and safe to run concurrently with appends.
	PurgeExpired(ctx context.Context) (int, error)

	// CountEvents returns the number of events for an instance, optionally
	// restricted to those created at or after since. Expired rows are
	// included until purged, matching the original accounting.
	CountEvents(ctx context.Context, instanceID string, since *time.Time) (int, error)

	// SearchEventsByVector ranks non-expired events by cosine similarity to
	// the query embedding, highest first.
	SearchEventsByVector(ctx context.Context, instanceID string, query []float32, limit int) ([]types.EventSearchResult, error)

	// SearchEventsByText is the lexical fallback: term-frequency/rank-based
	// relevance over content and summary text.
	SearchEventsByText(ctx context.Context, instanceID string, query string, limit int) ([]types.EventSearchResult, error)
}

// EntityStore is the mutable store of consolidated entity profiles and the
// relationship graph between them.
type EntityStore interface {
	// UpsertEntity merges an observation into the entity identified by
	// (instance, name). On a hit it increments interaction_count, refreshes
	// last_seen, and replaces summary/aliases/metadata only when the
	// incoming values are non-empty. On a miss it creates the entity with
	// interaction_count = 1 (the creating observation counts).
	UpsertEntity(ctx context.Context, create types.EntityCreate) (*types.Entity, error)

	// AttachEntityEmbedding sets the embedding for a stored entity.
	AttachEntityEmbedding(ctx context.Context, id string, embedding []float32) error

	// GetEntity returns an entity with both directions of its relationship
	// edges resolved. Reverse-direction edges are tagged "inverse:<type>".
	GetEntity(ctx context.Context, instanceID, id string) (*types.EntityWithRelationships, error)

	// FindEntityByName looks an entity up by its merge key.
	FindEntityByName(ctx context.Context, instanceID, name string) (*types.Entity, error)

	// ListTopEntities orders by interaction_count desc, last_seen desc:
	// most engaged, most recent first. This ordering drives what the digest
	// surfaces.
	ListTopEntities(ctx context.Context, instanceID string, limit int) ([]types.Entity, error)

	// AddRelationship upserts an edge keyed by (a, b, relationshipType):
	// re-adding updates confidence and notes instead of duplicating.
	AddRelationship(ctx context.Context, entityA, entityB, relationshipType string, confidence float64, notes string) error

	// CountEntities returns the number of entities for an instance.
	CountEntities(ctx context.Context, instanceID string) (int, error)

	// SearchEntitiesByVector ranks entities by cosine similarity to the
	// query embedding. Entities have no lexical fallback.
	SearchEntitiesByVector(ctx context.Context, instanceID string, query []float32, limit int) ([]types.Entity, error)
}

// DecisionStore is the decision audit store: append-only except for the
// outcome fields.
type DecisionStore interface {
	// RecordDecision persists a new decision, defaulting confidence to 0.7
	// when the payload does not carry one.
	RecordDecision(ctx context.Context, create types.DecisionCreate) (string, error)

	// AttachDecisionEmbedding sets the embedding for a stored decision.
	AttachDecisionEmbedding(ctx context.Context, id string, embedding []float32) error

	// GetDecision returns a single decision.
	GetDecision(ctx context.Context, instanceID, id string) (*types.Decision, error)

	// ListDecisions returns decisions newest first with offset pagination.
	ListDecisions(ctx context.Context, instanceID string, limit, offset int) ([]types.Decision, error)

	// RecordOutcome sets outcome and outcome_at together. A second call is
	// treated as an update, not an error.
	RecordOutcome(ctx context.Context, instanceID, id, outcome string) error

	// CountDecisions returns the number of decisions for an instance.
	CountDecisions(ctx context.Context, instanceID string) (int, error)

	// SearchDecisionsByVector ranks decisions by cosine similarity to the
	// query embedding. Decisions have no lexical fallback.
	SearchDecisionsByVector(ctx context.Context, instanceID string, query []float32, limit int) ([]types.Decision, error)
}

// ConfigStore manages the per-instance memory configuration row.
type ConfigStore interface {
	// GetOrCreateConfig returns the config row for an instance, creating it
	// with tier-appropriate defaults and a fresh API credential on first
	// access.
	GetOrCreateConfig(ctx context.Context, instanceID string) (*types.MemoryConfig, error)

	// RotateAPIKey replaces the instance's API credential and returns the
	// new value. The previous credential is invalid as soon as this returns.
	RotateAPIKey(ctx context.Context, instanceID string) (string, error)

	// UpdateTier changes the instance's subscription tier. Existing event
	// expiries are not recomputed.
	UpdateTier(ctx context.Context, instanceID string, t types.Tier) error

	// SaveDigest caches the built digest text and stamps last_digest_at.
	SaveDigest(ctx context.Context, instanceID, digest string) error

	// TouchLastMined stamps last_mined_at to now.
	TouchLastMined(ctx context.Context, instanceID string) error

	// TouchLastConsolidated stamps last_consolidated_at to now.
	TouchLastConsolidated(ctx context.Context, instanceID string) error
}

// InstanceLister enumerates the instances known to the store. Batch
// maintenance iterates this list.
type InstanceLister interface {
	ListInstanceIDs(ctx context.Context) ([]string, error)
}

// Store composes all instance-memory storage concerns backed by a single
// database, plus lifecycle management.
type Store interface {
	EventStore
	EntityStore
	DecisionStore
	ConfigStore
	InstanceLister

	// Close releases any resources held by the store.
	Close() error
}

// DocumentReader is the read interface onto the external knowledge-base
// document store. Document ingestion and chunking happen outside this core;
// retrieval and the digest builder only ever read.
type DocumentReader interface {
	// SearchChunksByVector returns chunks ranked by similarity to the query
	// embedding.
	SearchChunksByVector(ctx context.Context, instanceID string, query []float32, limit int) ([]types.DocumentChunk, error)

	// SearchChunksByText is the lexical fallback over chunk text.
	SearchChunksByText(ctx context.Context, instanceID, query string, limit int) ([]types.DocumentChunk, error)

	// ListDocumentsWithContent returns ready documents with their full
	// extracted text, newest first.
	ListDocumentsWithContent(ctx context.Context, instanceID string) ([]types.DocumentContent, error)

	// ListDocuments returns metadata for all documents regardless of status.
	ListDocuments(ctx context.Context, instanceID string) ([]types.DocumentInfo, error)

	// CountDocuments returns the number of documents for an instance.
	CountDocuments(ctx context.Context, instanceID string) (int, error)

	// TotalDocumentsMB returns total document storage used, in megabytes.
	TotalDocumentsMB(ctx context.Context, instanceID string) (float64, error)
}
