package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/nexus/internal/storage"
	"github.com/openclaw/nexus/pkg/types"
)

func appendTestEvent(t *testing.T, s *Store, instanceID, content string) string {
	t.Helper()
	id, err := s.AppendEvent(context.Background(), types.MemoryEventCreate{
		InstanceID: instanceID,
		EventType:  types.EventConversation,
		Content:    content,
	}, types.TierStandard)
	require.NoError(t, err)
	return id
}

func TestAppendEventDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AppendEvent(ctx, types.MemoryEventCreate{
		InstanceID: "inst-1",
		EventType:  types.EventConversation,
		Content:    "met with the vendor about renewal terms",
	}, types.TierStandard)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	events, err := s.ListRecentEvents(ctx, "inst-1", 10, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 0.5, events[0].Importance)
	require.NotNil(t, events[0].ExpiresAt, "standard tier events must expire")

	// 30-day retention, give or take scheduling slop.
	ttl := time.Until(*events[0].ExpiresAt)
	require.InDelta(t, 30*24*time.Hour, ttl, float64(time.Minute))
}

func TestAppendEventProTierNeverExpires(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AppendEvent(ctx, types.MemoryEventCreate{
		InstanceID: "inst-1",
		EventType:  types.EventConversation,
		Content:    "pro tier content",
	}, types.TierPro)
	require.NoError(t, err)

	events, err := s.ListRecentEvents(ctx, "inst-1", 10, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Nil(t, events[0].ExpiresAt)
}

func TestAppendEventValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AppendEvent(ctx, types.MemoryEventCreate{
		EventType: types.EventConversation, Content: "x",
	}, types.TierStandard)
	require.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = s.AppendEvent(ctx, types.MemoryEventCreate{
		InstanceID: "inst-1", EventType: types.EventConversation,
	}, types.TierStandard)
	require.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = s.AppendEvent(ctx, types.MemoryEventCreate{
		InstanceID: "inst-1", EventType: "BOGUS", Content: "x",
	}, types.TierStandard)
	require.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestEventIDsAreTimeSortable(t *testing.T) {
	s := newTestStore(t)

	var prev string
	for i := 0; i < 5; i++ {
		id := appendTestEvent(t, s, "inst-1", "event content")
		if prev != "" {
			require.Greater(t, id, prev, "ULIDs must sort in creation order")
		}
		prev = id
	}
}

func TestListRecentEventsExcludesExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	keep := appendTestEvent(t, s, "inst-1", "still fresh")
	gone := appendTestEvent(t, s, "inst-1", "already stale")
	expireEvent(t, s, gone)

	events, err := s.ListRecentEvents(ctx, "inst-1", 10, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, keep, events[0].ID)
}

func TestListRecentEventsIsolatesInstances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appendTestEvent(t, s, "inst-1", "mine")
	appendTestEvent(t, s, "inst-2", "theirs")

	events, err := s.ListRecentEvents(ctx, "inst-1", 10, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "mine", events[0].Content)
}

func TestPurgeExpiredIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appendTestEvent(t, s, "inst-1", "keeper")
	gone := appendTestEvent(t, s, "inst-1", "expired one")
	expireEvent(t, s, gone)

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = s.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n, "second sweep must delete nothing")

	count, err := s.CountEvents(ctx, "inst-1", nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestUnconsolidatedLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old1 := appendTestEvent(t, s, "inst-1", "old event one")
	old2 := appendTestEvent(t, s, "inst-1", "old event two")
	appendTestEvent(t, s, "inst-1", "fresh event")
	backdateEvent(t, s, old1, 8*24*time.Hour)
	backdateEvent(t, s, old2, 9*24*time.Hour)

	events, err := s.ListUnconsolidatedEvents(ctx, "inst-1", 7)
	require.NoError(t, err)
	require.Len(t, events, 2, "the fresh event has not dwelled long enough")
	require.Equal(t, old2, events[0].ID, "oldest first")
	require.Equal(t, old1, events[1].ID)

	require.NoError(t, s.MarkConsolidated(ctx, []string{old1, old2}))

	events, err = s.ListUnconsolidatedEvents(ctx, "inst-1", 7)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestMarkConsolidatedEmptySet(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.MarkConsolidated(context.Background(), nil))
}

func TestCountEventsSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := appendTestEvent(t, s, "inst-1", "last month")
	appendTestEvent(t, s, "inst-1", "this month")
	backdateEvent(t, s, old, 45*24*time.Hour)

	total, err := s.CountEvents(ctx, "inst-1", nil)
	require.NoError(t, err)
	require.Equal(t, 2, total)

	monthStart := time.Now().UTC().AddDate(0, 0, -30)
	recent, err := s.CountEvents(ctx, "inst-1", &monthStart)
	require.NoError(t, err)
	require.Equal(t, 1, recent)
}

func TestSearchEventsByVector(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := appendTestEvent(t, s, "inst-1", "about databases")
	b := appendTestEvent(t, s, "inst-1", "about cooking")
	c := appendTestEvent(t, s, "inst-1", "no embedding attached")
	_ = c

	require.NoError(t, s.AttachEventEmbedding(ctx, a, []float32{1, 0, 0}))
	require.NoError(t, s.AttachEventEmbedding(ctx, b, []float32{0, 1, 0}))

	results, err := s.SearchEventsByVector(ctx, "inst-1", []float32{0.9, 0.1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2, "events without embeddings are skipped")
	require.Equal(t, a, results[0].ID)
	require.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestSearchEventsByVectorEmptyQuery(t *testing.T) {
	s := newTestStore(t)
	results, err := s.SearchEventsByVector(context.Background(), "inst-1", nil, 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchEventsByText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appendTestEvent(t, s, "inst-1", "discussed the quarterly budget review with finance")
	appendTestEvent(t, s, "inst-1", "lunch order for the team offsite")
	appendTestEvent(t, s, "inst-2", "budget talk on another instance")

	results, err := s.SearchEventsByText(ctx, "inst-1", "budget", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results[0].Content, "quarterly budget")
}

func TestSearchEventsByTextSurvivesHostileInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appendTestEvent(t, s, "inst-1", "something searchable")

	for _, q := range []string{`"unbalanced`, `(((`, `NOT AND OR`, `*`, ``} {
		_, err := s.SearchEventsByText(ctx, "inst-1", q, 10)
		require.NoError(t, err, "query %q must not raise", q)
	}
}

func TestSearchEventsByTextExcludesExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gone := appendTestEvent(t, s, "inst-1", "expired budget note")
	expireEvent(t, s, gone)

	results, err := s.SearchEventsByText(ctx, "inst-1", "budget", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestAttachEventEmbeddingNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.AttachEventEmbedding(context.Background(), "missing", []float32{1})
	require.ErrorIs(t, err, storage.ErrNotFound)
}
