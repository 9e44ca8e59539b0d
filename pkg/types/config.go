package types

import "time"

// MemoryConfig is the per-instance memory configuration row. It is created
// lazily on first access with tier-appropriate defaults and carries the
// rotatable API credential plus the cached digest.
type MemoryConfig struct {
	InstanceID string `json:"instanceId"`
	Tier       Tier   `json:"tier"`
	Enabled    bool   `json:"enabled"`

	// APIKey is the bearer credential agents use to self-report decisions.
	// Rotation replaces it and invalidates the previous value immediately.
	APIKey string `json:"apiKey"`

	// DigestContent is the most recently built digest, cached so the agent
	// runtime can be served without rebuilding on every prompt.
	DigestContent string     `json:"digestContent,omitempty"`
	LastDigestAt  *time.Time `json:"lastDigestAt,omitempty"`

	LastMinedAt        *time.Time `json:"lastMinedAt,omitempty"`
	LastConsolidatedAt *time.Time `json:"lastConsolidatedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MemoryStats is the aggregate usage snapshot for one instance, returned by
// the stats endpoint so callers can render quota usage against tier limits.
type MemoryStats struct {
	Tier            Tier       `json:"tier"`
	TotalEvents     int        `json:"totalEvents"`
	TotalEntities   int        `json:"totalEntities"`
	TotalDecisions  int        `json:"totalDecisions"`
	TotalDocuments  int        `json:"totalDocuments"`
	DocumentsUsedMB float64    `json:"documentsUsedMB"`
	EventsThisMonth int        `json:"eventsThisMonth"`
	Limits          TierLimits `json:"limits"`
	APIKey          string     `json:"memoryApiKey"`
}
