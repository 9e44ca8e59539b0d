package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/nexus/pkg/types"
)

func minableLogs() string {
	return strings.Repeat("[10:02] +15551234: what would you recommend for the launch? ", 4)
}

func TestMineStoresEventsDecisionsAndEntities(t *testing.T) {
	store := newTestStore(t)
	extractor := &stubExtractor{
		events: []types.ExtractedEvent{{
			EventType:  types.EventConversation,
			SenderID:   "+15551234",
			Channel:    "whatsapp",
			Content:    "Dana from Acme asked which plan fits their team",
			Summary:    "Plan question from Acme.",
			Importance: 0.9,
			Decision:   "Recommend the pro plan",
			Reasoning:  []string{"team size exceeds standard limits"},
		}},
		entities: []types.ExtractedEntity{
			{Name: "Acme", Type: types.EntityOrganization, Context: "customer organization"},
			{Name: "Dana", Type: types.EntityPerson, Relationships: []types.ExtractedRelationship{
				{Entity: "Acme", Type: "works_at"},
			}},
		},
	}
	svc := NewService(ServiceConfig{Store: store, Extractor: extractor})
	miner := NewMiner(svc, &stubFetcher{logs: minableLogs()})
	ctx := context.Background()

	result, err := miner.Mine(ctx, "inst-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.EventsExtracted)
	require.Equal(t, 2, result.EntitiesFound)

	events, err := store.ListRecentEvents(ctx, "inst-1", 10, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 0.9, events[0].Importance)
	require.Equal(t, "+15551234", events[0].SenderID)

	decisions, err := store.ListDecisions(ctx, "inst-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	require.Equal(t, 0.9, decisions[0].Confidence)

	dana, err := store.FindEntityByName(ctx, "inst-1", "Dana")
	require.NoError(t, err)
	withRels, err := store.GetEntity(ctx, "inst-1", dana.ID)
	require.NoError(t, err)
	require.Len(t, withRels.Relationships, 1)
	require.Equal(t, "works_at", withRels.Relationships[0].RelationshipType)
	require.Equal(t, "Acme", withRels.Relationships[0].EntityName)

	config, err := store.GetOrCreateConfig(ctx, "inst-1")
	require.NoError(t, err)
	require.NotNil(t, config.LastMinedAt)
}

func TestMineFallsBackToHeuristicImportance(t *testing.T) {
	content := "customer confirmed the migration deadline"
	store := newTestStore(t)
	extractor := &stubExtractor{
		events: []types.ExtractedEvent{{
			EventType: types.EventConversation,
			Content:   content,
		}},
	}
	svc := NewService(ServiceConfig{Store: store, Extractor: extractor})
	miner := NewMiner(svc, &stubFetcher{logs: minableLogs()})

	_, err := miner.Mine(context.Background(), "inst-1")
	require.NoError(t, err)

	events, err := store.ListRecentEvents(context.Background(), "inst-1", 10, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.InDelta(t, ScoreImportance(content), events[0].Importance, 1e-9)
}

func TestMineSkipsShortLogs(t *testing.T) {
	extractor := &stubExtractor{}
	svc := NewService(ServiceConfig{Store: newTestStore(t), Extractor: extractor})
	miner := NewMiner(svc, &stubFetcher{logs: "hi"})

	result, err := miner.Mine(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Zero(t, result.EventsExtracted)
	require.Zero(t, extractor.eventCalls)
}

func TestMineSurvivesFetchFailure(t *testing.T) {
	extractor := &stubExtractor{}
	svc := NewService(ServiceConfig{Store: newTestStore(t), Extractor: extractor})
	miner := NewMiner(svc, &stubFetcher{err: errors.New("runtime unreachable")})

	result, err := miner.Mine(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Zero(t, result.EventsExtracted)
	require.Zero(t, extractor.eventCalls)
}

func TestMineWithoutExtractorIsNoop(t *testing.T) {
	svc := NewService(ServiceConfig{Store: newTestStore(t)})
	miner := NewMiner(svc, &stubFetcher{logs: minableLogs()})

	result, err := miner.Mine(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Zero(t, result.EventsExtracted)
}

func TestMineSurvivesExtractionFailure(t *testing.T) {
	extractor := &stubExtractor{eventErr: errors.New("model overloaded")}
	svc := NewService(ServiceConfig{Store: newTestStore(t), Extractor: extractor})
	miner := NewMiner(svc, &stubFetcher{logs: minableLogs()})

	result, err := miner.Mine(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Zero(t, result.EventsExtracted)
}
