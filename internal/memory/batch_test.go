package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/nexus/internal/storage"
	"github.com/openclaw/nexus/pkg/types"
)

func TestDigestAllCoversEveryInstance(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(ServiceConfig{Store: store})
	ctx := context.Background()

	for _, instanceID := range []string{"inst-a", "inst-b"} {
		_, err := svc.ObserveEntity(ctx, types.EntityCreate{
			InstanceID: instanceID, Type: types.EntityPerson, Name: "Dana",
		})
		require.NoError(t, err)
	}

	NewBatch(svc, nil).DigestAll(ctx)

	for _, instanceID := range []string{"inst-a", "inst-b"} {
		config, err := store.GetOrCreateConfig(ctx, instanceID)
		require.NoError(t, err)
		require.NotEmpty(t, config.DigestContent)
	}
}

// flakyStore fails consolidation reads for one instance only.
type flakyStore struct {
	storage.Store
	failFor string
}

func (s *flakyStore) ListUnconsolidatedEvents(ctx context.Context, instanceID string, olderThanDays int) ([]types.MemoryEvent, error) {
	if instanceID == s.failFor {
		return nil, errors.New("disk I/O error")
	}
	return s.Store.ListUnconsolidatedEvents(ctx, instanceID, olderThanDays)
}

func TestConsolidateAllIsolatesFailingInstances(t *testing.T) {
	base := newTestStore(t)
	store := &flakyStore{Store: base, failFor: "inst-a"}
	svc := NewService(ServiceConfig{Store: store})
	ctx := context.Background()

	for _, instanceID := range []string{"inst-a", "inst-b"} {
		_, err := store.GetOrCreateConfig(ctx, instanceID)
		require.NoError(t, err)
	}

	NewBatch(svc, nil).ConsolidateAll(ctx)

	// The failing instance is skipped; the healthy one completes its pass.
	configA, err := base.GetOrCreateConfig(ctx, "inst-a")
	require.NoError(t, err)
	require.Nil(t, configA.LastConsolidatedAt)

	configB, err := base.GetOrCreateConfig(ctx, "inst-b")
	require.NoError(t, err)
	require.NotNil(t, configB.LastConsolidatedAt)
}

func TestMineAllSweepsEveryInstance(t *testing.T) {
	store := newTestStore(t)
	extractor := &stubExtractor{
		events: []types.ExtractedEvent{{
			EventType: types.EventConversation,
			Content:   "customer asked about onboarding",
		}},
	}
	svc := NewService(ServiceConfig{Store: store, Extractor: extractor})
	ctx := context.Background()

	for _, instanceID := range []string{"inst-a", "inst-b"} {
		_, err := store.GetOrCreateConfig(ctx, instanceID)
		require.NoError(t, err)
	}

	miner := NewMiner(svc, &stubFetcher{logs: minableLogs()})
	NewBatch(svc, miner).MineAll(ctx)

	for _, instanceID := range []string{"inst-a", "inst-b"} {
		events, err := store.ListRecentEvents(ctx, instanceID, 10, nil)
		require.NoError(t, err)
		require.Len(t, events, 1)
	}
}

func TestMineAllWithoutMinerIsNoop(t *testing.T) {
	svc := NewService(ServiceConfig{Store: newTestStore(t)})
	NewBatch(svc, nil).MineAll(context.Background())
}

func TestBatchStopsWhenContextIsDone(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(ServiceConfig{Store: store})
	ctx, cancel := context.WithCancel(context.Background())

	_, err := svc.ObserveEntity(context.Background(), types.EntityCreate{
		InstanceID: "inst-a", Type: types.EntityPerson, Name: "Dana",
	})
	require.NoError(t, err)

	cancel()
	NewBatch(svc, nil).DigestAll(ctx)

	config, err := store.GetOrCreateConfig(context.Background(), "inst-a")
	require.NoError(t, err)
	require.Empty(t, config.DigestContent)
}
