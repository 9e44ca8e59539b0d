package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/openclaw/nexus/internal/storage"
	"github.com/openclaw/nexus/pkg/types"
)

const (
	// minLogLength is the minimum transcript size worth mining. Shorter
	// fetches carry too little signal to justify an extraction call.
	minLogLength = 100

	// logFetchTimeout bounds the transcript fetch from the agent runtime.
	logFetchTimeout = 15 * time.Second
)

// LogFetcher pulls recent raw transcript logs for an instance from the agent
// runtime.
type LogFetcher interface {
	FetchLogs(ctx context.Context, instanceID string) (string, error)
}

// MineResult summarizes one mining pass over one instance.
type MineResult struct {
	EventsExtracted int
	EntitiesFound   int
}

// Miner is the log-mining pipeline: it turns raw transcript logs into
// episodic events, decisions, and entity observations.
type Miner struct {
	service *Service
	logs    LogFetcher

	// limiter bounds the rate of extraction calls across a batch so one
	// noisy instance cannot saturate the model service.
	limiter *rate.Limiter
}

// NewMiner creates a mining pipeline on top of the memory service.
func NewMiner(service *Service, logs LogFetcher) *Miner {
	return &Miner{
		service: service,
		logs:    logs,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}
}

// Mine runs one mining pass for one instance: fetch logs, extract candidate
// events, and write events, decisions, and entities into the stores.
// Quota rejections stop the pass for this instance but are not fatal.
func (m *Miner) Mine(ctx context.Context, instanceID string) (MineResult, error) {
	var result MineResult

	if m.service.extractor == nil {
		return result, nil
	}

	config, err := m.service.GetConfig(ctx, instanceID)
	if err != nil {
		return result, err
	}
	if !config.Enabled {
		return result, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, logFetchTimeout)
	logs, err := m.logs.FetchLogs(fetchCtx, instanceID)
	cancel()
	if err != nil {
		log.Printf("miner: could not fetch logs for %s: %v", instanceID, err)
		return result, nil
	}
	if len(strings.TrimSpace(logs)) < minLogLength {
		return result, nil
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return result, err
	}
	events, err := m.service.extractor.ExtractEvents(ctx, logs)
	if err != nil {
		log.Printf("miner: event extraction failed for %s: %v", instanceID, err)
		return result, nil
	}

	for _, candidate := range events {
		importance := candidate.Importance
		if importance == 0 {
			importance = ScoreImportance(candidate.Content)
		}

		eventType := candidate.EventType
		if !eventType.Valid() {
			eventType = types.EventConversation
		}

		_, err := m.service.RecordEvent(ctx, types.MemoryEventCreate{
			InstanceID: instanceID,
			SessionID:  candidate.SessionID,
			EventType:  eventType,
			Channel:    candidate.Channel,
			SenderID:   candidate.SenderID,
			Content:    candidate.Content,
			Summary:    candidate.Summary,
			Importance: &importance,
		})
		if err != nil {
			if storage.IsQuotaError(err) {
				log.Printf("miner: event quota reached for %s, stopping pass: %v", instanceID, err)
				break
			}
			log.Printf("miner: failed to store event for %s: %v", instanceID, err)
			continue
		}
		result.EventsExtracted++

		// A candidate carrying a decision with at least one reasoning step
		// is audited separately, with importance doubling as confidence.
		if candidate.Decision != "" && len(candidate.Reasoning) > 0 {
			confidence := importance
			_, err := m.service.RecordDecision(ctx, types.DecisionCreate{
				InstanceID: instanceID,
				SessionID:  candidate.SessionID,
				Channel:    candidate.Channel,
				SenderID:   candidate.SenderID,
				Decision:   candidate.Decision,
				Reasoning:  candidate.Reasoning,
				Confidence: &confidence,
			})
			if err != nil {
				log.Printf("miner: failed to store decision for %s: %v", instanceID, err)
			}
		}

		found, err := m.mineEntities(ctx, instanceID, candidate.Content)
		if err != nil {
			log.Printf("miner: entity extraction failed for %s: %v", instanceID, err)
			continue
		}
		result.EntitiesFound += found
	}

	if err := m.service.store.TouchLastMined(ctx, instanceID); err != nil {
		log.Printf("miner: failed to stamp last mined for %s: %v", instanceID, err)
	}

	return result, nil
}

// mineEntities extracts and upserts entities mentioned in one event's
// content, then resolves relationship mentions by name within the instance.
func (m *Miner) mineEntities(ctx context.Context, instanceID, content string) (int, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	entities, err := m.service.extractor.ExtractEntities(ctx, content)
	if err != nil {
		return 0, err
	}

	found := 0
	for _, ent := range entities {
		if ent.Name == "" {
			continue
		}

		_, err := m.service.ObserveEntity(ctx, types.EntityCreate{
			InstanceID: instanceID,
			Type:       ent.Type,
			Name:       ent.Name,
			Aliases:    ent.Aliases,
			Summary:    ent.Context,
		})
		if err != nil {
			if storage.IsQuotaError(err) {
				return found, fmt.Errorf("entity quota reached: %w", err)
			}
			log.Printf("miner: failed to upsert entity %q: %v", ent.Name, err)
			continue
		}
		found++

		for _, rel := range ent.Relationships {
			if rel.Entity == "" || rel.Type == "" || rel.Entity == ent.Name {
				continue
			}
			m.linkEntities(ctx, instanceID, ent.Name, rel.Entity, rel.Type)
		}
	}
	return found, nil
}

// linkEntities adds a relationship edge between two entities resolved by
// name. Either endpoint missing means the mention is dropped; self-edges are
// filtered by ID in case two names resolved to the same row.
func (m *Miner) linkEntities(ctx context.Context, instanceID, fromName, toName, relType string) {
	from, err := m.service.store.FindEntityByName(ctx, instanceID, fromName)
	if err != nil {
		return
	}
	to, err := m.service.store.FindEntityByName(ctx, instanceID, toName)
	if err != nil {
		return
	}
	if from.ID == to.ID {
		return
	}
	if err := m.service.store.AddRelationship(ctx, from.ID, to.ID, relType, 0.8, ""); err != nil {
		log.Printf("miner: failed to add relationship %s -> %s: %v", fromName, toName, err)
	}
}
