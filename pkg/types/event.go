package types

import "time"

// MemoryEvent is a single recorded interaction or occurrence in the episodic
// store. Events are append-only: after creation the only permitted mutations
// are setting ConsolidatedAt (by the consolidation engine) and deletion by
// the expiry sweep.
type MemoryEvent struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instanceId"`
	SessionID  string    `json:"sessionId,omitempty"`
	EventType  EventType `json:"eventType"`
	Channel    string    `json:"channel,omitempty"`  // e.g. "whatsapp", "telegram", "discord"
	SenderID   string    `json:"senderId,omitempty"` // consolidation groups events by this key
	Content    string    `json:"content"`
	Summary    string    `json:"summary,omitempty"`

	// Importance is a 0..1 relevance score, either estimated by the
	// extraction service or computed by the keyword heuristic scorer.
	Importance float64 `json:"importance"`

	// Embedding is attached best-effort after the event is durable.
	// A nil embedding simply means vector search skips this event.
	Embedding []float32 `json:"embedding,omitempty"`

	// ConsolidatedAt is set once the event has been folded into an entity
	// profile (or skipped as unprofilable) by the consolidation engine.
	ConsolidatedAt *time.Time `json:"consolidatedAt,omitempty"`

	// ExpiresAt is fixed at write time from the owning instance's tier and
	// never recomputed. Nil means the event does not expire.
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// MemoryEventCreate is the ingest payload for a new episodic event.
type MemoryEventCreate struct {
	InstanceID string    `json:"instanceId"`
	SessionID  string    `json:"sessionId,omitempty"`
	EventType  EventType `json:"eventType"`
	Channel    string    `json:"channel,omitempty"`
	SenderID   string    `json:"senderId,omitempty"`
	Content    string    `json:"content"`
	Summary    string    `json:"summary,omitempty"`

	// Importance defaults to 0.5 when nil.
	Importance *float64 `json:"importance,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// EventSearchResult is a MemoryEvent annotated with a retrieval score.
// For vector search the score is cosine similarity; for the lexical
// fallback it is a term-frequency rank. Scores are only comparable within
// a single result set.
type EventSearchResult struct {
	MemoryEvent
	Similarity float64 `json:"similarity"`
}
