package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/nexus/internal/storage"
	"github.com/openclaw/nexus/pkg/types"
)

func TestBuildDigestEmptyInstance(t *testing.T) {
	svc := NewService(ServiceConfig{Store: newTestStore(t)})
	require.Empty(t, svc.BuildDigest(context.Background(), "inst-1"))
}

func TestBuildDigestSections(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(ServiceConfig{Store: store})
	ctx := context.Background()

	_, err := svc.ObserveEntity(ctx, types.EntityCreate{
		InstanceID: "inst-1",
		Type:       types.EntityPerson,
		Name:       "Dana",
		Summary:    "Regular customer.",
	})
	require.NoError(t, err)
	_, err = svc.RecordDecision(ctx, types.DecisionCreate{
		InstanceID: "inst-1",
		Decision:   "Recommend the pro plan",
		Reasoning:  []string{"usage exceeds standard limits"},
	})
	require.NoError(t, err)
	appendEvents(t, svc, "inst-1", "+15551234", 2)

	digest := svc.BuildDigest(ctx, "inst-1")
	require.NotEmpty(t, digest)

	require.True(t, strings.HasPrefix(digest, "[NEXUS MEMORY]"))
	require.True(t, strings.HasSuffix(digest, "[/NEXUS MEMORY]"))
	require.Contains(t, digest, "KNOWN CONTACTS & ENTITIES (1):")
	require.Contains(t, digest, "• Dana (PERSON) — Regular customer. Last seen 0d ago.")
	require.Contains(t, digest, "RECENT DECISIONS:")
	today := time.Now().UTC().Format("2006-01-02")
	require.Contains(t, digest, fmt.Sprintf("• %s: Recommend the pro plan — \"usage exceeds standard limits\"", today))
	require.Contains(t, digest, "MEMORY: 2 total interactions stored.")
	require.NotContains(t, digest, "DECISION LOGGING:")

	// The digest is cached on the config row.
	config, err := store.GetOrCreateConfig(ctx, "inst-1")
	require.NoError(t, err)
	require.Equal(t, digest, config.DigestContent)
	require.NotNil(t, config.LastDigestAt)
}

func TestBuildDigestClipsLongFields(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(ServiceConfig{Store: store})
	ctx := context.Background()

	_, err := svc.ObserveEntity(ctx, types.EntityCreate{
		InstanceID: "inst-1",
		Type:       types.EntityTopic,
		Name:       "billing",
		Summary:    strings.Repeat("s", 200),
	})
	require.NoError(t, err)
	_, err = svc.RecordDecision(ctx, types.DecisionCreate{
		InstanceID: "inst-1",
		Decision:   strings.Repeat("d", 200),
		Reasoning:  []string{strings.Repeat("r", 100)},
	})
	require.NoError(t, err)

	digest := svc.BuildDigest(ctx, "inst-1")
	require.Contains(t, digest, strings.Repeat("s", 120))
	require.NotContains(t, digest, strings.Repeat("s", 121))
	require.Contains(t, digest, strings.Repeat("d", 140))
	require.NotContains(t, digest, strings.Repeat("d", 141))
	require.Contains(t, digest, strings.Repeat("r", 80))
	require.NotContains(t, digest, strings.Repeat("r", 81))
}

func TestBuildDigestKnowledgeBaseBudget(t *testing.T) {
	docs := &fakeDocs{
		ready: []types.DocumentContent{
			{ID: "d1", Filename: "notes.md", Content: strings.Repeat("a", docContentBudget+500)},
			{ID: "d2", Filename: "later.md", Content: "short follow-up"},
		},
		all: []types.DocumentInfo{
			{ID: "d1", Filename: "notes.md", Status: types.DocumentReady},
			{ID: "d2", Filename: "later.md", Status: types.DocumentReady},
			{ID: "d3", Filename: "pending.pdf", Status: types.DocumentIndexing},
		},
	}
	svc := NewService(ServiceConfig{Store: newTestStore(t), Documents: docs})

	digest := svc.BuildDigest(context.Background(), "inst-1")
	require.Contains(t, digest, "KNOWLEDGE BASE (3 docs):")
	require.Contains(t, digest, "--- notes.md ---")
	require.Contains(t, digest, "[...truncated, 500 chars remaining]")

	// The budget is spent, so the second ready document is not inlined, but
	// only genuinely unindexed documents are listed as pending.
	require.NotContains(t, digest, "--- later.md ---")
	require.Contains(t, digest, "\nIndexing: pending.pdf")
}

func TestBuildDigestEmptyDocumentContent(t *testing.T) {
	docs := &fakeDocs{
		ready: []types.DocumentContent{{ID: "d1", Filename: "empty.md"}},
		all:   []types.DocumentInfo{{ID: "d1", Filename: "empty.md", Status: types.DocumentReady}},
	}
	svc := NewService(ServiceConfig{Store: newTestStore(t), Documents: docs})

	digest := svc.BuildDigest(context.Background(), "inst-1")
	require.Contains(t, digest, "--- empty.md (empty) ---")
}

func TestBuildDigestDecisionLoggingInstruction(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(ServiceConfig{
		Store:        store,
		Capabilities: &stubCaps{enabled: true},
		AppURL:       "https://nexus.example.com/",
	})
	ctx := context.Background()

	_, err := svc.ObserveEntity(ctx, types.EntityCreate{
		InstanceID: "inst-1", Type: types.EntityPerson, Name: "Dana",
	})
	require.NoError(t, err)

	config, err := store.GetOrCreateConfig(ctx, "inst-1")
	require.NoError(t, err)

	digest := svc.BuildDigest(ctx, "inst-1")
	require.Contains(t, digest, "DECISION LOGGING:")
	require.Contains(t, digest, "POST https://nexus.example.com/api/memory/inst-1/decisions")
	require.Contains(t, digest, "Authorization: Bearer "+config.APIKey)
}

func TestBuildDigestOmitsInstructionWithoutNetwork(t *testing.T) {
	svc := NewService(ServiceConfig{
		Store:        newTestStore(t),
		Capabilities: &stubCaps{enabled: false},
		AppURL:       "https://nexus.example.com",
	})
	ctx := context.Background()

	_, err := svc.ObserveEntity(ctx, types.EntityCreate{
		InstanceID: "inst-1", Type: types.EntityPerson, Name: "Dana",
	})
	require.NoError(t, err)

	digest := svc.BuildDigest(ctx, "inst-1")
	require.NotEmpty(t, digest)
	require.NotContains(t, digest, "DECISION LOGGING:")
}

// brokenStore fails entity listing, standing in for a degraded database.
type brokenStore struct {
	storage.Store
}

func (s *brokenStore) ListTopEntities(ctx context.Context, instanceID string, limit int) ([]types.Entity, error) {
	return nil, errors.New("disk I/O error")
}

func TestBuildDigestNeverFails(t *testing.T) {
	svc := NewService(ServiceConfig{Store: &brokenStore{Store: newTestStore(t)}})
	require.Empty(t, svc.BuildDigest(context.Background(), "inst-1"))
}
