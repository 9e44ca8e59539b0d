package memory

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/openclaw/nexus/internal/llm"
	"github.com/openclaw/nexus/internal/storage"
	"github.com/openclaw/nexus/internal/tier"
	"github.com/openclaw/nexus/pkg/types"
)

// embedTimeout bounds the fire-and-forget embedding enrichment that follows
// a durable write.
const embedTimeout = 30 * time.Second

// CapabilityReader reports runtime capabilities of a deployed agent
// instance. The digest builder uses it to decide whether the agent can make
// outbound HTTP calls to self-report decisions.
type CapabilityReader interface {
	OutboundNetworkEnabled(ctx context.Context, instanceID string) (bool, error)
}

// ServiceConfig carries the dependencies of the memory service. Store is
// required; everything else is optional and its absence degrades the
// corresponding feature rather than failing.
type ServiceConfig struct {
	Store     storage.Store
	Documents storage.DocumentReader // knowledge-base reads; nil disables document sources
	Embedder  llm.Embedder           // nil disables vector enrichment and vector search
	Extractor llm.Extractor          // nil disables mining and consolidation profiling

	Capabilities CapabilityReader // nil means no outbound network capability
	AppURL       string           // public base URL for the decision-logging instruction
}

// Service is the front door to the memory engine: validated ingest with tier
// quotas, reads, retrieval, digest building, and credential management.
type Service struct {
	store     storage.Store
	docs      storage.DocumentReader
	embedder  llm.Embedder
	extractor llm.Extractor
	caps      CapabilityReader
	appURL    string
}

// NewService creates a memory service from its dependencies.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		store:     cfg.Store,
		docs:      cfg.Documents,
		embedder:  cfg.Embedder,
		extractor: cfg.Extractor,
		caps:      cfg.Capabilities,
		appURL:    strings.TrimRight(cfg.AppURL, "/"),
	}
}

// RecordEvent validates and appends an episodic event, enforcing the tier's
// monthly event quota. The write is durable when this returns; the embedding
// is attached afterwards best-effort.
func (s *Service) RecordEvent(ctx context.Context, create types.MemoryEventCreate) (string, error) {
	config, err := s.store.GetOrCreateConfig(ctx, create.InstanceID)
	if err != nil {
		return "", err
	}

	limits := tier.Limits(config.Tier)
	if limits.MaxEventsPerMonth > 0 {
		monthStart := startOfMonth(time.Now().UTC())
		used, err := s.store.CountEvents(ctx, create.InstanceID, &monthStart)
		if err != nil {
			return "", err
		}
		if used >= limits.MaxEventsPerMonth {
			return "", &storage.QuotaError{
				Resource: "events",
				Limit:    float64(limits.MaxEventsPerMonth),
				Used:     float64(used),
				Unit:     "events/month",
			}
		}
	}

	id, err := s.store.AppendEvent(ctx, create, config.Tier)
	if err != nil {
		return "", err
	}

	text := create.Summary
	if text == "" {
		text = create.Content
	}
	s.enrichAsync("event", id, text, s.store.AttachEventEmbedding)

	return id, nil
}

// RecordDecision validates and records a decision, then attaches a
// best-effort embedding of the decision plus its reasoning chain.
func (s *Service) RecordDecision(ctx context.Context, create types.DecisionCreate) (string, error) {
	if _, err := s.store.GetOrCreateConfig(ctx, create.InstanceID); err != nil {
		return "", err
	}

	id, err := s.store.RecordDecision(ctx, create)
	if err != nil {
		return "", err
	}

	text := create.Decision + " " + strings.Join(create.Reasoning, " ")
	s.enrichAsync("decision", id, text, s.store.AttachDecisionEmbedding)

	return id, nil
}

// RecordOutcome attaches an observed outcome to a past decision.
func (s *Service) RecordOutcome(ctx context.Context, instanceID, decisionID, outcome string) error {
	return s.store.RecordOutcome(ctx, instanceID, decisionID, outcome)
}

// ObserveEntity upserts an entity observation, enforcing the tier's entity
// cap for new entities, and refreshes the entity embedding best-effort.
func (s *Service) ObserveEntity(ctx context.Context, create types.EntityCreate) (*types.Entity, error) {
	config, err := s.store.GetOrCreateConfig(ctx, create.InstanceID)
	if err != nil {
		return nil, err
	}

	limits := tier.Limits(config.Tier)
	if limits.MaxEntities != nil {
		if _, err := s.store.FindEntityByName(ctx, create.InstanceID, create.Name); errors.Is(err, storage.ErrNotFound) {
			used, err := s.store.CountEntities(ctx, create.InstanceID)
			if err != nil {
				return nil, err
			}
			if used >= *limits.MaxEntities {
				return nil, &storage.QuotaError{
					Resource: "entities",
					Limit:    float64(*limits.MaxEntities),
					Used:     float64(used),
					Unit:     "entities",
				}
			}
		} else if err != nil {
			return nil, err
		}
	}

	entity, err := s.store.UpsertEntity(ctx, create)
	if err != nil {
		return nil, err
	}

	text := entity.Name
	if len(entity.Aliases) > 0 {
		text += " " + strings.Join(entity.Aliases, " ")
	}
	if entity.Summary != "" {
		text += " " + entity.Summary
	}
	s.enrichAsync("entity", entity.ID, text, s.store.AttachEntityEmbedding)

	return entity, nil
}

// GetEntity returns an entity with its relationship graph.
func (s *Service) GetEntity(ctx context.Context, instanceID, id string) (*types.EntityWithRelationships, error) {
	return s.store.GetEntity(ctx, instanceID, id)
}

// ListRecentEvents returns the newest non-expired events.
func (s *Service) ListRecentEvents(ctx context.Context, instanceID string, limit int, since *time.Time) ([]types.MemoryEvent, error) {
	return s.store.ListRecentEvents(ctx, instanceID, limit, since)
}

// ListDecisions returns decisions newest first.
func (s *Service) ListDecisions(ctx context.Context, instanceID string, limit, offset int) ([]types.Decision, error) {
	return s.store.ListDecisions(ctx, instanceID, limit, offset)
}

// GetConfig returns the per-instance memory configuration, creating it on
// first access.
func (s *Service) GetConfig(ctx context.Context, instanceID string) (*types.MemoryConfig, error) {
	return s.store.GetOrCreateConfig(ctx, instanceID)
}

// RotateAPIKey replaces the instance's API credential and returns the new
// value.
func (s *Service) RotateAPIKey(ctx context.Context, instanceID string) (string, error) {
	return s.store.RotateAPIKey(ctx, instanceID)
}

// UpdateTier changes the instance's subscription tier.
func (s *Service) UpdateTier(ctx context.Context, instanceID string, t types.Tier) error {
	return s.store.UpdateTier(ctx, instanceID, t)
}

// Stats returns the aggregate usage snapshot for one instance.
func (s *Service) Stats(ctx context.Context, instanceID string) (*types.MemoryStats, error) {
	config, err := s.store.GetOrCreateConfig(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	stats := &types.MemoryStats{
		Tier:   config.Tier,
		Limits: tier.Limits(config.Tier),
		APIKey: config.APIKey,
	}

	if stats.TotalEvents, err = s.store.CountEvents(ctx, instanceID, nil); err != nil {
		return nil, err
	}
	monthStart := startOfMonth(time.Now().UTC())
	if stats.EventsThisMonth, err = s.store.CountEvents(ctx, instanceID, &monthStart); err != nil {
		return nil, err
	}
	if stats.TotalEntities, err = s.store.CountEntities(ctx, instanceID); err != nil {
		return nil, err
	}
	if stats.TotalDecisions, err = s.store.CountDecisions(ctx, instanceID); err != nil {
		return nil, err
	}

	if s.docs != nil {
		if stats.TotalDocuments, err = s.docs.CountDocuments(ctx, instanceID); err != nil {
			return nil, err
		}
		if stats.DocumentsUsedMB, err = s.docs.TotalDocumentsMB(ctx, instanceID); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

// enrichAsync computes and attaches an embedding for a freshly written row.
// Fire-and-forget: runs on its own context with its own timeout, never
// affects the originating write, and logs failures instead of returning them.
func (s *Service) enrichAsync(kind, id, text string, attach func(context.Context, string, []float32) error) {
	if s.embedder == nil || text == "" {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("memory: %s embedding enrichment panicked for %s: %v", kind, id, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), embedTimeout)
		defer cancel()

		embedding, err := s.embedder.Embed(ctx, text)
		if err != nil {
			log.Printf("memory: %s embedding failed for %s: %v", kind, id, err)
			return
		}
		if len(embedding) == 0 {
			return
		}
		if err := attach(ctx, id, embedding); err != nil {
			log.Printf("memory: failed to attach %s embedding for %s: %v", kind, id, err)
		}
	}()
}

// embedQuery embeds a search query, returning nil on any failure so callers
// degrade to lexical retrieval.
func (s *Service) embedQuery(ctx context.Context, query string) []float32 {
	if s.embedder == nil {
		return nil
	}
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("memory: query embedding failed: %v", err)
		return nil
	}
	return embedding
}

func startOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
