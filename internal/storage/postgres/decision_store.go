package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	pgvector "github.com/pgvector/pgvector-go"

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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		id, create.InstanceID, nullString(create.SessionID),
		nullString(create.Channel), nullString(create.SenderID),
		create.Decision, reasoningJSON, confidence,
		entitiesJSON, documentsJSON, memoriesJSON,
		nullString(create.ModelUsed), create.TokensUsed, snapshotJSON,
		now, now)
	if err != nil {
		return "", fmt.Errorf("postgres: failed to record decision: %w", err)
	}
	return id, nil
}

// AttachDecisionEmbedding sets the embedding vector for a stored decision.
func (s *Store) AttachDecisionEmbedding(ctx context.Context, id string, embedding []float32) error {
	return s.attachEmbedding(ctx, "decisions", id, embedding)
}

const decisionColumns = `
	id, instance_id, session_id, channel, sender_id,
	decision, reasoning, confidence,
	entities_involved, documents_used, memories_used,
	model_used, tokens_used, context_snapshot,
	outcome, outcome_at, created_at, updated_at`

// GetDecision returns a single decision scoped to an instance.
func (s *Store) GetDecision(ctx context.Context, instanceID, id string) (*types.Decision, error) {
	if instanceID == "" || id == "" {
		return nil, fmt.Errorf("%w: instance ID and decision ID are required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT`+decisionColumns+` FROM decisions WHERE id = $1 AND instance_id = $2`,
		id, instanceID)
	decision, err := scanDecision(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get decision: %w", err)
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
		WHERE instance_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		instanceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDecisions(rows)
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

	res, err := s.db.ExecContext(ctx, `
		UPDATE decisions SET outcome = $1, outcome_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND instance_id = $3`,
		outcome, id, instanceID)
	if err != nil {
		return fmt.Errorf("postgres: failed to record outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to check rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CountDecisions returns the number of decisions for an instance.
func (s *Store) CountDecisions(ctx context.Context, instanceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM decisions WHERE instance_id = $1`, instanceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count decisions: %w", err)
	}
	return count, nil
}

// SearchDecisionsByVector ranks decisions by cosine similarity using pgvector.
func (s *Store) SearchDecisionsByVector(ctx context.Context, instanceID string, query []float32, limit int) ([]types.Decision, error) {
	if len(query) == 0 || !s.pgvectorAvailable {
		return []types.Decision{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `SELECT`+decisionColumns+`
		FROM decisions
		WHERE instance_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2::vector
		LIMIT $3`,
		instanceID, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: decision vector search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDecisions(rows)
}

func scanDecision(row rowScanner) (*types.Decision, error) {
	var d types.Decision
	var sessionID, channel, senderID sql.NullString
	var reasoningJSON, entitiesJSON, documentsJSON, memoriesJSON sql.NullString
	var modelUsed, snapshotJSON, outcome sql.NullString
	var tokensUsed sql.NullInt64
	var outcomeAt sql.NullTime

	err := row.Scan(
		&d.ID, &d.InstanceID, &sessionID, &channel, &senderID,
		&d.Decision, &reasoningJSON, &d.Confidence,
		&entitiesJSON, &documentsJSON, &memoriesJSON,
		&modelUsed, &tokensUsed, &snapshotJSON,
		&outcome, &outcomeAt, &d.CreatedAt, &d.UpdatedAt,
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
	if outcomeAt.Valid {
		t := outcomeAt.Time
		d.OutcomeAt = &t
	}
	return &d, nil
}

func scanDecisions(rows *sql.Rows) ([]types.Decision, error) {
	var decisions []types.Decision
	for rows.Next() {
		decision, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan decision row: %w", err)
		}
		decisions = append(decisions, *decision)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating decision rows: %w", err)
	}
	return decisions, nil
}
