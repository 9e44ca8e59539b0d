package types

import "time"

// Decision is an audited agent recommendation with its reasoning chain.
// Rows are immutable after creation except for Outcome/OutcomeAt, which are
// set together when the result of the decision is later observed.
type Decision struct {
	ID         string `json:"id"`
	InstanceID string `json:"instanceId"`
	SessionID  string `json:"sessionId,omitempty"`
	Channel    string `json:"channel,omitempty"`
	SenderID   string `json:"senderId,omitempty"`

	// Decision is a one-sentence statement of what was decided.
	Decision string `json:"decision"`

	// Reasoning is the ordered chain of reasoning steps behind the decision.
	Reasoning []string `json:"reasoning"`

	Confidence       float64  `json:"confidence"`
	EntitiesInvolved []string `json:"entitiesInvolved"`
	DocumentsUsed    []string `json:"documentsUsed"`
	MemoriesUsed     []string `json:"memoriesUsed"`
	ModelUsed        string   `json:"modelUsed,omitempty"`
	TokensUsed       int      `json:"tokensUsed,omitempty"`

	ContextSnapshot map[string]interface{} `json:"contextSnapshot,omitempty"`

	// Outcome records what actually happened. Re-recording is treated as an
	// update, not an error.
	Outcome   string     `json:"outcome,omitempty"`
	OutcomeAt *time.Time `json:"outcomeAt,omitempty"`

	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DecisionCreate is the ingest payload for a new decision record.
type DecisionCreate struct {
	InstanceID string   `json:"instanceId"`
	SessionID  string   `json:"sessionId,omitempty"`
	Channel    string   `json:"channel,omitempty"`
	SenderID   string   `json:"senderId,omitempty"`
	Decision   string   `json:"decision"`
	Reasoning  []string `json:"reasoning"`

	// Confidence defaults to 0.7 when nil.
	Confidence *float64 `json:"confidence,omitempty"`

	EntitiesInvolved []string               `json:"entitiesInvolved,omitempty"`
	DocumentsUsed    []string               `json:"documentsUsed,omitempty"`
	MemoriesUsed     []string               `json:"memoriesUsed,omitempty"`
	ModelUsed        string                 `json:"modelUsed,omitempty"`
	TokensUsed       int                    `json:"tokensUsed,omitempty"`
	ContextSnapshot  map[string]interface{} `json:"contextSnapshot,omitempty"`
}
