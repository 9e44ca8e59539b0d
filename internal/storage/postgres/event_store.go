package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/openclaw/nexus/internal/storage"
	"github.com/openclaw/nexus/internal/tier"
	"github.com/openclaw/nexus/pkg/types"
)

const unconsolidatedBatchSize = 200

// AppendEvent persists a new episodic event. The expiry timestamp is fixed
// here from the instance's tier and never recomputed.
func (s *Store) AppendEvent(ctx context.Context, create types.MemoryEventCreate, t types.Tier) (string, error) {
	if create.InstanceID == "" {
		return "", fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}
	if create.Content == "" {
		return "", fmt.Errorf("%w: event content is required", storage.ErrInvalidInput)
	}
	if !create.EventType.Valid() {
		return "", fmt.Errorf("%w: unknown event type %q", storage.ErrInvalidInput, create.EventType)
	}

	importance := 0.5
	if create.Importance != nil {
		importance = *create.Importance
	}

	now := time.Now().UTC()
	expiresAt := tier.ExpiryFrom(t, now)

	metadataJSON, err := marshalJSON(create.Metadata)
	if err != nil {
		return "", err
	}

	id := s.newEventID()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_events (
			id, instance_id, session_id, event_type, channel, sender_id,
			content, summary, importance, expires_at, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, create.InstanceID, nullString(create.SessionID), string(create.EventType),
		nullString(create.Channel), nullString(create.SenderID),
		create.Content, nullString(create.Summary), importance,
		nullTime(expiresAt), metadataJSON, now,
	)
	if err != nil {
		return "", fmt.Errorf("postgres: failed to append event: %w", err)
	}
	return id, nil
}

// AttachEventEmbedding sets the embedding vector for a stored event.
func (s *Store) AttachEventEmbedding(ctx context.Context, id string, embedding []float32) error {
	return s.attachEmbedding(ctx, "memory_events", id, embedding)
}

const eventColumns = `
	id, instance_id, session_id, event_type, channel, sender_id,
	content, summary, importance, consolidated_at, expires_at,
	metadata, created_at`

// ListRecentEvents returns the newest non-expired events, newest first.
func (s *Store) ListRecentEvents(ctx context.Context, instanceID string, limit int, since *time.Time) ([]types.MemoryEvent, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT` + eventColumns + `
		FROM memory_events
		WHERE instance_id = $1
		  AND (expires_at IS NULL OR expires_at > NOW())`
	args := []interface{}{instanceID}

	if since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args)+1)
		args = append(args, since.UTC())
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list recent events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// ListUnconsolidatedEvents returns non-expired events awaiting consolidation
// older than the dwell cutoff, oldest first, capped at unconsolidatedBatchSize.
func (s *Store) ListUnconsolidatedEvents(ctx context.Context, instanceID string, olderThanDays int) ([]types.MemoryEvent, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	rows, err := s.db.QueryContext(ctx, `SELECT`+eventColumns+`
		FROM memory_events
		WHERE instance_id = $1
		  AND consolidated_at IS NULL
		  AND created_at < $2
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at ASC
		LIMIT $3`,
		instanceID, cutoff, unconsolidatedBatchSize)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list unconsolidated events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// MarkConsolidated stamps consolidated_at on the given events in one
// statement, so a sender bucket is marked all-or-none.
func (s *Store) MarkConsolidated(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE memory_events SET consolidated_at = $1 WHERE id IN (`+strings.Join(placeholders, ",")+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("postgres: failed to mark events consolidated: %w", err)
	}
	return nil
}

// PurgeExpired deletes events whose expiry has passed.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_events WHERE expires_at IS NOT NULL AND expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to purge expired events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count purged events: %w", err)
	}
	return int(n), nil
}

// CountEvents returns the number of events for an instance, optionally
// bounded below by since.
func (s *Store) CountEvents(ctx context.Context, instanceID string, since *time.Time) (int, error) {
	if instanceID == "" {
		return 0, fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}

	query := `SELECT COUNT(*) FROM memory_events WHERE instance_id = $1`
	args := []interface{}{instanceID}
	if since != nil {
		query += ` AND created_at >= $2`
		args = append(args, since.UTC())
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: failed to count events: %w", err)
	}
	return count, nil
}

// SearchEventsByVector ranks non-expired events by cosine similarity using
// the pgvector ANN index. Similarity is 1 - cosine distance.
func (s *Store) SearchEventsByVector(ctx context.Context, instanceID string, query []float32, limit int) ([]types.EventSearchResult, error) {
	if len(query) == 0 || !s.pgvectorAvailable {
		return []types.EventSearchResult{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT`+eventColumns+`, 1 - (embedding <=> $1::vector) AS similarity
		FROM memory_events
		WHERE instance_id = $2
		  AND embedding IS NOT NULL
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY embedding <=> $1::vector
		LIMIT $3`,
		pgvector.NewVector(query), instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: event vector search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEventResults(rows)
}

// SearchEventsByText is the lexical fallback over event content and summary,
// ranked by ts_rank.
func (s *Store) SearchEventsByText(ctx context.Context, instanceID string, query string, limit int) ([]types.EventSearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []types.EventSearchResult{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT`+eventColumns+`,
			ts_rank(content_tsv, plainto_tsquery('english', $1)) AS similarity
		FROM memory_events
		WHERE instance_id = $2
		  AND content_tsv @@ plainto_tsquery('english', $1)
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY similarity DESC
		LIMIT $3`,
		query, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: event text search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEventResults(rows)
}

func scanEvent(row rowScanner, extra ...interface{}) (*types.MemoryEvent, error) {
	var event types.MemoryEvent
	var sessionID, channel, senderID, summary, metadataJSON sql.NullString
	var consolidatedAt, expiresAt sql.NullTime
	var eventType string

	dest := []interface{}{
		&event.ID, &event.InstanceID, &sessionID, &eventType, &channel, &senderID,
		&event.Content, &summary, &event.Importance,
		&consolidatedAt, &expiresAt, &metadataJSON, &event.CreatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	event.SessionID = sessionID.String
	event.EventType = types.EventType(eventType)
	event.Channel = channel.String
	event.SenderID = senderID.String
	event.Summary = summary.String
	event.Metadata = unmarshalMap(metadataJSON)
	if consolidatedAt.Valid {
		t := consolidatedAt.Time
		event.ConsolidatedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		event.ExpiresAt = &t
	}
	return &event, nil
}

func scanEvents(rows *sql.Rows) ([]types.MemoryEvent, error) {
	var events []types.MemoryEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan event row: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating event rows: %w", err)
	}
	return events, nil
}

func scanEventResults(rows *sql.Rows) ([]types.EventSearchResult, error) {
	var results []types.EventSearchResult
	for rows.Next() {
		var similarity float64
		event, err := scanEvent(rows, &similarity)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan event search row: %w", err)
		}
		results = append(results, types.EventSearchResult{MemoryEvent: *event, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating event search rows: %w", err)
	}
	return results, nil
}
