package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/openclaw/nexus/internal/storage"
	"github.com/openclaw/nexus/pkg/types"
)

const defaultDecisionConfidence = 0.7

// RecordDecision persists a new decision record.
func (s *Store) RecordDecision(ctx context.Context, create types.DecisionCreate) (string, error) {
	if create.InstanceID == "" {
		return "", fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}
	if create.Decision == "" {
		return "", fmt.Errorf("%w: decision text is required", storage.ErrInvalidInput)
	}
	if len(create.Reasoning) == 0 {
		return "", fmt.Errorf("%w: at least one reasoning step is required", storage.ErrInvalidInput)
	}

	confidence := defaultDecisionConfidence
	if create.Confidence != nil {
		confidence = *create.Confidence
	}

	reasoningJSON, err := marshalJSON(create.Reasoning)
	if err != nil {
		return "", err
	}
	entitiesJSON, err := marshalJSON(create.EntitiesInvolved)
	if err != nil {
		return "", err
	}
	documentsJSON, err := marshalJSON(create.DocumentsUsed)
	if err != nil {
		return "", err
	}
	memoriesJSON, err := marshalJSON(create.MemoriesUsed)
	if err != nil {
		return "", err
	}
	snapshotJSON, err := marshalJSON(create.ContextSnapshot)
	if err != nil {
		return "", err
	}

	id := newID()
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			id, instance_id, session_id, channel, sender_id,
			decision, reasoning, confidence,
			entities_involved, documents_used, memories_used,
			model_used, tokens_used, context_snapshot,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, create.InstanceID, nullString(create.SessionID),
		nullString(create.Channel), nullString(create.SenderID),
		create.Decision, reasoningJSON, confidence,
		entitiesJSON, documentsJSON, memoriesJSON,
		nullString(create.ModelUsed), create.TokensUsed, snapshotJSON,
		now, now)
	if err != nil {
		return "", fmt.Errorf("sqlite: failed to record decision: %w", err)
	}
	return id, nil
}

// AttachDecisionEmbedding sets the embedding blob for a stored decision.
func (s *Store) AttachDecisionEmbedding(ctx context.Context, id string, embedding []float32) error {
	if id == "" || len(embedding) == 0 {
		return fmt.Errorf("%w: decision ID and embedding are required", storage.ErrInvalidInput)
	}
	err := execAffectingOne(ctx, s.db,
		`UPDATE decisions SET embedding = ? WHERE id = ?`,
		serializeEmbedding(embedding), id)
	if err != nil {
		if err == storage.ErrNotFound {
			return err
		}
		return fmt.Errorf("sqlite: failed to attach decision embedding: %w", err)
	}
	return nil
}

const decisionColumns = `
	id, instance_id, session_id, channel, sender_id,
	decision, reasoning, confidence,
	entities_involved, documents_used, memories_used,
	model_used, tokens_used, context_snapshot,
	outcome, outcome_at, embedding, created_at, updated_at`

// GetDecision returns a single decision scoped to an instance.
func (s *Store) GetDecision(ctx context.Context, instanceID, id string) (*types.Decision, error) {
	if instanceID == "" || id == "" {
		return nil, fmt.Errorf("%w: instance ID and decision ID are required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT`+decisionColumns+` FROM decisions WHERE id = ? AND instance_id = ?`,
		id, instanceID)
	decision, err := scanDecision(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get decision: %w", err)
	}
	return decision, nil
}

// ListDecisions returns decisions newest first with offset pagination.
func (s *Store) ListDecisions(ctx context.Context, instanceID string, limit, offset int) ([]types.Decision, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `SELECT`+decisionColumns+`
		FROM decisions
		WHERE instance_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`,
		instanceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []types.Decision
	for rows.Next() {
		decision, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan decision row: %w", err)
		}
		decisions = append(decisions, *decision)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating decision rows: %w", err)
	}
	return decisions, nil
}

// RecordOutcome sets outcome and outcome_at together. Recording an outcome a
// second time updates it.
func (s *Store) RecordOutcome(ctx context.Context, instanceID, id, outcome string) error {
	if instanceID == "" || id == "" {
		return fmt.Errorf("%w: instance ID and decision ID are required", storage.ErrInvalidInput)
	}
	if outcome == "" {
		return fmt.Errorf("%w: outcome text is required", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	err := execAffectingOne(ctx, s.db, `
		UPDATE decisions SET outcome = ?, outcome_at = ?, updated_at = ?
		WHERE id = ? AND instance_id = ?`,
		outcome, now, now, id, instanceID)
	if err != nil {
		if err == storage.ErrNotFound {
			return err
		}
		return fmt.Errorf("sqlite: failed to record outcome: %w", err)
	}
	return nil
}

// CountDecisions returns the number of decisions for an instance.
func (s *Store) CountDecisions(ctx context.Context, instanceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM decisions WHERE instance_id = ?`, instanceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count decisions: %w", err)
	}
	return count, nil
}

// SearchDecisionsByVector ranks decisions by cosine similarity to the query
// embedding. Decisions have no lexical fallback.
func (s *Store) SearchDecisionsByVector(ctx context.Context, instanceID string, query []float32, limit int) ([]types.Decision, error) {
	if len(query) == 0 {
		return []types.Decision{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, embedding FROM decisions
		WHERE instance_id = ? AND embedding IS NOT NULL`,
		instanceID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load decision embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type scored struct {
		id    string
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			continue
		}
		embedding := deserializeEmbedding(blob)
		if embedding == nil {
			continue
		}
		candidates = append(candidates, scored{id, cosineSimilarity(query, embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating decision embeddings: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	decisions := make([]types.Decision, 0, len(candidates))
	for _, c := range candidates {
		row := s.db.QueryRowContext(ctx,
			`SELECT`+decisionColumns+` FROM decisions WHERE id = ?`, c.id)
		decision, err := scanDecision(row)
		if err != nil {
			continue
		}
		decisions = append(decisions, *decision)
	}
	return decisions, nil
}

func scanDecision(row rowScanner) (*types.Decision, error) {
	var d types.Decision
	var sessionID, channel, senderID sql.NullString
	var reasoningJSON, entitiesJSON, documentsJSON, memoriesJSON sql.NullString
	var modelUsed, snapshotJSON, outcome sql.NullString
	var tokensUsed sql.NullInt64
	var outcomeAt sql.NullTime
	var embedding []byte

	err := row.Scan(
		&d.ID, &d.InstanceID, &sessionID, &channel, &senderID,
		&d.Decision, &reasoningJSON, &d.Confidence,
		&entitiesJSON, &documentsJSON, &memoriesJSON,
		&modelUsed, &tokensUsed, &snapshotJSON,
		&outcome, &outcomeAt, &embedding, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.SessionID = sessionID.String
	d.Channel = channel.String
	d.SenderID = senderID.String
	d.Reasoning = unmarshalStrings(reasoningJSON)
	d.EntitiesInvolved = unmarshalStrings(entitiesJSON)
	d.DocumentsUsed = unmarshalStrings(documentsJSON)
	d.MemoriesUsed = unmarshalStrings(memoriesJSON)
	d.ModelUsed = modelUsed.String
	d.TokensUsed = int(tokensUsed.Int64)
	d.ContextSnapshot = unmarshalMap(snapshotJSON)
	d.Outcome = outcome.String
	d.Embedding = deserializeEmbedding(embedding)
	if outcomeAt.Valid {
		t := outcomeAt.Time
		d.OutcomeAt = &t
	}
	return &d, nil
}
