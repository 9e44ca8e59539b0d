package types

import "time"

// Entity is a consolidated, named subject the agent has learned about over
// time: a person, organization, topic, product, or location. Entities are
// merged by (instance, name): repeated observations of the same name update
// the existing row instead of creating duplicates.
type Entity struct {
	ID         string     `json:"id"`
	InstanceID string     `json:"instanceId"`
	Type       EntityType `json:"type"`

	// Name is the merge key: at most one entity per (instance, name).
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Summary string   `json:"summary,omitempty"`

	Importance float64 `json:"importance"`

	// InteractionCount increments by exactly one per upsert and never
	// decreases. The digest surfaces entities ordered by this counter.
	InteractionCount int `json:"interactionCount"`

	LastSeen  *time.Time             `json:"lastSeen,omitempty"`
	Embedding []float32              `json:"embedding,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// EntityCreate is the upsert payload for an entity observation.
// Summary and Aliases only replace stored values when non-empty, so a sparse
// observation never erases previously learned detail.
type EntityCreate struct {
	InstanceID string                 `json:"instanceId"`
	Type       EntityType             `json:"type"`
	Name       string                 `json:"name"`
	Aliases    []string               `json:"aliases,omitempty"`
	Summary    string                 `json:"summary,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// RelatedEntity is one edge of an entity's relationship graph as seen from a
// given entity. Edges stored in the reverse direction are tagged with an
// "inverse:" prefix on the relationship type so callers can tell which
// endpoint the edge was recorded from.
type RelatedEntity struct {
	RelationshipID   string     `json:"id"`
	EntityID         string     `json:"entityId"`
	EntityName       string     `json:"entityName"`
	EntityType       EntityType `json:"entityType"`
	RelationshipType string     `json:"relationshipType"`
	Confidence       float64    `json:"confidence"`
	Notes            string     `json:"notes,omitempty"`
}

// EntityWithRelationships is an Entity joined with both directions of its
// relationship edges.
type EntityWithRelationships struct {
	Entity
	Relationships []RelatedEntity `json:"relationships"`
}
