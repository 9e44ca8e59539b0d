package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// backdateEvent shifts an event's created_at into the past so tests can
// exercise age-based queries without sleeping.
func backdateEvent(t *testing.T, s *Store, id string, age time.Duration) {
	t.Helper()
	_, err := s.db.Exec(`UPDATE memory_events SET created_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-age), id)
	require.NoError(t, err)
}

// expireEvent forces an event's expiry into the past.
func expireEvent(t *testing.T, s *Store, id string) {
	t.Helper()
	_, err := s.db.Exec(`UPDATE memory_events SET expires_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Hour), id)
	require.NoError(t, err)
}

func TestSerializeEmbeddingRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3.75, 0}
	out := deserializeEmbedding(serializeEmbedding(in))
	require.Equal(t, in, out)
}

func TestDeserializeEmbeddingMalformed(t *testing.T) {
	require.Nil(t, deserializeEmbedding(nil))
	require.Nil(t, deserializeEmbedding([]byte{1, 2, 3})) // not a multiple of 4
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			require.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSanitiseFTSQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello world", "hello* OR world*"},
		{`"broken (syntax` + "'", "broken* OR syntax*"},
		{"a", ""}, // single-char words dropped
		{"", ""},
		{"What's the plan?", "what* OR the* OR plan*"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, sanitiseFTSQuery(tt.in), "input %q", tt.in)
	}
}

func TestNewAPIKey(t *testing.T) {
	a, err := newAPIKey()
	require.NoError(t, err)
	b, err := newAPIKey()
	require.NoError(t, err)
	require.Len(t, a, 64)
	require.NotEqual(t, a, b)
}

func TestListInstanceIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.ListInstanceIDs(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)

	_, err = s.GetOrCreateConfig(ctx, "inst-b")
	require.NoError(t, err)
	_, err = s.GetOrCreateConfig(ctx, "inst-a")
	require.NoError(t, err)

	ids, err = s.ListInstanceIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"inst-a", "inst-b"}, ids)
}
