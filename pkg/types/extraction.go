package types

// ExtractedEvent is one candidate event identified by the extraction service
// in a raw transcript log. A candidate may optionally carry a decision with
// its reasoning chain.
type ExtractedEvent struct {
	EventType EventType `json:"eventType"`
	SessionID string    `json:"sessionId,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	SenderID  string    `json:"senderId,omitempty"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary"`

	// Importance is the extraction service's own estimate. Zero means the
	// service did not provide one and the heuristic scorer applies.
	Importance float64 `json:"importance"`

	Decision  string   `json:"decision,omitempty"`
	Reasoning []string `json:"reasoning,omitempty"`
}

// ExtractedEntity is one entity mention identified by the extraction service,
// optionally with relationship mentions to other entities by name.
type ExtractedEntity struct {
	Name          string                  `json:"name"`
	Type          EntityType              `json:"type"`
	Aliases       []string                `json:"aliases"`
	Context       string                  `json:"context"`
	Relationships []ExtractedRelationship `json:"relationships"`
}

// ExtractedRelationship is a relationship mention between the extracted
// entity and another entity, identified by name within the same instance.
type ExtractedRelationship struct {
	Entity string `json:"entity"`
	Type   string `json:"type"`
}

// SenderProfile is the consolidated profile the extraction service
// synthesizes from a sender's event history. A nil Name means the service
// could not identify the subject well enough to commit a profile.
type SenderProfile struct {
	Name       string                 `json:"name"`
	Type       EntityType             `json:"type"`
	Aliases    []string               `json:"aliases"`
	Summary    string                 `json:"summary"`
	Importance float64                `json:"importance"`
	Metadata   map[string]interface{} `json:"metadata"`
}
