package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/nexus/pkg/types"
)

func TestSearchFansOutAcrossSources(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Ingest without an embedder, then attach embeddings directly so the
	// test does not depend on asynchronous enrichment.
	ingest := NewService(ServiceConfig{Store: store})

	eventID, err := ingest.RecordEvent(ctx, types.MemoryEventCreate{
		InstanceID: "inst-1",
		EventType:  types.EventConversation,
		Content:    "kubernetes migration planning session",
	})
	require.NoError(t, err)
	require.NoError(t, store.AttachEventEmbedding(ctx, eventID, []float32{1, 0, 0}))

	entity, err := ingest.ObserveEntity(ctx, types.EntityCreate{
		InstanceID: "inst-1", Type: types.EntityTopic, Name: "kubernetes",
	})
	require.NoError(t, err)
	require.NoError(t, store.AttachEntityEmbedding(ctx, entity.ID, []float32{1, 0, 0}))

	decisionID, err := ingest.RecordDecision(ctx, types.DecisionCreate{
		InstanceID: "inst-1",
		Decision:   "Migrate to kubernetes",
		Reasoning:  []string{"current hosts are at capacity"},
	})
	require.NoError(t, err)
	require.NoError(t, store.AttachDecisionEmbedding(ctx, decisionID, []float32{1, 0, 0}))

	docs := &fakeDocs{chunks: []types.DocumentChunk{{
		Content: "cluster sizing guidance",
		Source:  types.ChunkSource{DocumentID: "d1", Filename: "infra.md"},
	}}}

	svc := NewService(ServiceConfig{
		Store:     store,
		Documents: docs,
		Embedder:  &stubEmbedder{vec: []float32{1, 0, 0}},
	})

	result, err := svc.Search(ctx, "inst-1", "kubernetes migration", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	require.Equal(t, eventID, result.Events[0].ID)
	require.Len(t, result.Entities, 1)
	require.Len(t, result.Decisions, 1)
	require.Len(t, result.Documents, 1)
}

func TestSearchDegradesToLexicalWithoutEmbedder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ingest := NewService(ServiceConfig{Store: store})

	_, err := ingest.RecordEvent(ctx, types.MemoryEventCreate{
		InstanceID: "inst-1",
		EventType:  types.EventConversation,
		Content:    "kubernetes migration planning session",
	})
	require.NoError(t, err)

	entity, err := ingest.ObserveEntity(ctx, types.EntityCreate{
		InstanceID: "inst-1", Type: types.EntityTopic, Name: "kubernetes",
	})
	require.NoError(t, err)
	require.NoError(t, store.AttachEntityEmbedding(ctx, entity.ID, []float32{1, 0, 0}))

	docs := &fakeDocs{chunks: []types.DocumentChunk{{Content: "cluster sizing guidance"}}}
	svc := NewService(ServiceConfig{Store: store, Documents: docs})

	result, err := svc.Search(ctx, "inst-1", "kubernetes", SearchOptions{})
	require.NoError(t, err)

	// Events and documents fall back to lexical matching; entities and
	// decisions require an embedding and come back empty.
	require.Len(t, result.Events, 1)
	require.Len(t, result.Documents, 1)
	require.Empty(t, result.Entities)
	require.Empty(t, result.Decisions)
}

func TestSearchEmptyQuery(t *testing.T) {
	svc := NewService(ServiceConfig{Store: newTestStore(t)})

	result, err := svc.Search(context.Background(), "inst-1", "", SearchOptions{})
	require.NoError(t, err)
	require.Empty(t, result.Events)
	require.Empty(t, result.Entities)
}

func TestSearchSourceFailureIsIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ingest := NewService(ServiceConfig{Store: store})

	_, err := ingest.RecordEvent(ctx, types.MemoryEventCreate{
		InstanceID: "inst-1",
		EventType:  types.EventConversation,
		Content:    "kubernetes migration planning session",
	})
	require.NoError(t, err)

	docs := &fakeDocs{chunkErr: errors.New("document store offline")}
	svc := NewService(ServiceConfig{Store: store, Documents: docs})

	result, err := svc.Search(ctx, "inst-1", "kubernetes", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	require.Empty(t, result.Documents)
}

func TestSearchSkipFlags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ingest := NewService(ServiceConfig{Store: store})

	_, err := ingest.RecordEvent(ctx, types.MemoryEventCreate{
		InstanceID: "inst-1",
		EventType:  types.EventConversation,
		Content:    "kubernetes migration planning session",
	})
	require.NoError(t, err)

	svc := NewService(ServiceConfig{Store: store})

	result, err := svc.Search(ctx, "inst-1", "kubernetes", SearchOptions{SkipEvents: true})
	require.NoError(t, err)
	require.Empty(t, result.Events)
}
