// Package types defines the core domain types for the Nexus agent-memory
// engine: episodic events, consolidated entities, recorded decisions, and the
// per-instance configuration that ties them to a subscription tier.
//
// All memory data is scoped to exactly one instance (a tenant's deployed
// agent runtime). No type in this package carries cross-instance references.
package types

// Tier is a subscription level governing retention and capacity quotas.
type Tier string

const (
	// TierStandard is the entry tier: 30-day retention and bounded quotas.
	TierStandard Tier = "STANDARD"

	// TierPro removes retention and entity limits and raises storage quotas.
	TierPro Tier = "PRO"
)

// Valid reports whether the tier is one of the known subscription levels.
func (t Tier) Valid() bool {
	return t == TierStandard || t == TierPro
}

// EventType classifies an episodic memory event.
type EventType string

const (
	EventConversation  EventType = "CONVERSATION"
	EventDecision      EventType = "DECISION"
	EventTaskCompleted EventType = "TASK_COMPLETED"
	EventFeedback      EventType = "FEEDBACK"
	EventError         EventType = "ERROR"
)

// Valid reports whether the event type is one of the known classifications.
func (e EventType) Valid() bool {
	switch e {
	case EventConversation, EventDecision, EventTaskCompleted, EventFeedback, EventError:
		return true
	}
	return false
}

// EntityType classifies a consolidated entity.
type EntityType string

const (
	EntityPerson       EntityType = "PERSON"
	EntityOrganization EntityType = "ORGANIZATION"
	EntityTopic        EntityType = "TOPIC"
	EntityProduct      EntityType = "PRODUCT"
	EntityLocation     EntityType = "LOCATION"
	EntityOther        EntityType = "OTHER"
)

// Valid reports whether the entity type is one of the known classifications.
func (e EntityType) Valid() bool {
	switch e {
	case EntityPerson, EntityOrganization, EntityTopic, EntityProduct, EntityLocation, EntityOther:
		return true
	}
	return false
}

// NormalizeEntityType maps an arbitrary string (typically produced by the
// extraction service) to a known EntityType, falling back to EntityOther.
func NormalizeEntityType(s string) EntityType {
	t := EntityType(s)
	if t.Valid() {
		return t
	}
	return EntityOther
}

// TierLimits holds the quota values for a subscription tier.
// Nil pointer fields mean "unlimited".
type TierLimits struct {
	// RetentionDays is the episodic event retention window. Nil = keep forever.
	RetentionDays *int `yaml:"retention_days" json:"retentionDays"`

	// MaxEntities caps the number of consolidated entities. Nil = unlimited.
	MaxEntities *int `yaml:"max_entities" json:"maxEntities"`

	// MaxDocumentsMB caps total knowledge-base document storage in megabytes.
	MaxDocumentsMB int `yaml:"max_documents_mb" json:"maxDocumentsMB"`

	// MaxEventsPerMonth caps episodic event ingestion per calendar month.
	MaxEventsPerMonth int `yaml:"max_events_per_month" json:"maxEventsPerMonth"`
}
