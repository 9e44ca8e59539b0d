package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/nexus/internal/storage"
	"github.com/openclaw/nexus/internal/storage/sqlite"
	"github.com/openclaw/nexus/pkg/types"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// stubEmbedder returns a fixed vector for every input. A nil vector models a
// deployment without an embedding provider that still wires the interface.
type stubEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	calls int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.vec, nil
}

func (e *stubEmbedder) GetModel() string { return "stub-embedder" }

// stubExtractor returns canned extraction results and counts calls.
type stubExtractor struct {
	mu sync.Mutex

	events   []types.ExtractedEvent
	entities []types.ExtractedEntity
	profile  *types.SenderProfile

	eventErr   error
	entityErr  error
	profileErr error

	eventCalls   int
	entityCalls  int
	profileCalls int
}

func (x *stubExtractor) ExtractEvents(ctx context.Context, logs string) ([]types.ExtractedEvent, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.eventCalls++
	return x.events, x.eventErr
}

func (x *stubExtractor) ExtractEntities(ctx context.Context, text string) ([]types.ExtractedEntity, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entityCalls++
	return x.entities, x.entityErr
}

func (x *stubExtractor) ConsolidateProfile(ctx context.Context, senderID string, events []types.MemoryEvent) (*types.SenderProfile, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.profileCalls++
	return x.profile, x.profileErr
}

func (x *stubExtractor) GetModel() string { return "stub-extractor" }

// stubFetcher returns a fixed transcript.
type stubFetcher struct {
	logs string
	err  error
}

func (f *stubFetcher) FetchLogs(ctx context.Context, instanceID string) (string, error) {
	return f.logs, f.err
}

// stubCaps reports a fixed outbound-network capability.
type stubCaps struct {
	enabled bool
	err     error
}

func (c *stubCaps) OutboundNetworkEnabled(ctx context.Context, instanceID string) (bool, error) {
	return c.enabled, c.err
}

// fakeDocs is an in-memory DocumentReader for digest and search tests.
type fakeDocs struct {
	chunks   []types.DocumentChunk
	ready    []types.DocumentContent
	all      []types.DocumentInfo
	totalMB  float64
	chunkErr error
}

var _ storage.DocumentReader = (*fakeDocs)(nil)

func (d *fakeDocs) SearchChunksByVector(ctx context.Context, instanceID string, query []float32, limit int) ([]types.DocumentChunk, error) {
	return d.chunks, d.chunkErr
}

func (d *fakeDocs) SearchChunksByText(ctx context.Context, instanceID, query string, limit int) ([]types.DocumentChunk, error) {
	return d.chunks, d.chunkErr
}

func (d *fakeDocs) ListDocumentsWithContent(ctx context.Context, instanceID string) ([]types.DocumentContent, error) {
	return d.ready, nil
}

func (d *fakeDocs) ListDocuments(ctx context.Context, instanceID string) ([]types.DocumentInfo, error) {
	return d.all, nil
}

func (d *fakeDocs) CountDocuments(ctx context.Context, instanceID string) (int, error) {
	return len(d.all), nil
}

func (d *fakeDocs) TotalDocumentsMB(ctx context.Context, instanceID string) (float64, error) {
	return d.totalMB, nil
}

func appendEvents(t *testing.T, svc *Service, instanceID, senderID string, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id, err := svc.RecordEvent(context.Background(), types.MemoryEventCreate{
			InstanceID: instanceID,
			EventType:  types.EventConversation,
			SenderID:   senderID,
			Content:    "conversation snippet about ongoing project work",
		})
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func eventsFor(t *testing.T, store storage.Store, instanceID string, ids []string) []types.MemoryEvent {
	t.Helper()
	all, err := store.ListRecentEvents(context.Background(), instanceID, len(ids)+10, nil)
	require.NoError(t, err)
	byID := make(map[string]types.MemoryEvent, len(all))
	for _, ev := range all {
		byID[ev.ID] = ev
	}
	out := make([]types.MemoryEvent, 0, len(ids))
	for _, id := range ids {
		ev, ok := byID[id]
		require.True(t, ok, "event %s not found", id)
		out = append(out, ev)
	}
	return out
}
