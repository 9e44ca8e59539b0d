package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openclaw/nexus/internal/storage"
	"github.com/openclaw/nexus/internal/tier"
	"github.com/openclaw/nexus/pkg/types"
)

// unconsolidatedBatchSize bounds how many unconsolidated events a single
// consolidation pass pulls, so a large backlog is drained across successive
// passes instead of loaded into memory at once.
const unconsolidatedBatchSize = 200

// vectorSearchMaxCandidates caps the number of embeddings loaded into memory
// during a vector search. Candidates are selected newest first, so recent
// events are always considered even on large instances.
const vectorSearchMaxCandidates = 10_000

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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, create.InstanceID, nullString(create.SessionID), string(create.EventType),
		nullString(create.Channel), nullString(create.SenderID),
		create.Content, nullString(create.Summary), importance,
		nullTime(expiresAt), metadataJSON, now,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: failed to append event: %w", err)
	}

	return id, nil
}

// AttachEventEmbedding sets the embedding blob for a stored event.
func (s *Store) AttachEventEmbedding(ctx context.Context, id string, embedding []float32) error {
	if id == "" || len(embedding) == 0 {
		return fmt.Errorf("%w: event ID and embedding are required", storage.ErrInvalidInput)
	}
	err := execAffectingOne(ctx, s.db,
		`UPDATE memory_events SET embedding = ? WHERE id = ?`,
		serializeEmbedding(embedding), id)
	if err != nil {
		if err == storage.ErrNotFound {
			return err
		}
		return fmt.Errorf("sqlite: failed to attach event embedding: %w", err)
	}
	return nil
}

const eventColumns = `
	id, instance_id, session_id, event_type, channel, sender_id,
	content, summary, importance, embedding, consolidated_at, expires_at,
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
		WHERE instance_id = ?
		  AND (expires_at IS NULL OR expires_at > ?)`
	args := []interface{}{instanceID, time.Now().UTC()}

	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list recent events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// ListUnconsolidatedEvents returns non-expired events awaiting consolidation
// that are older than the dwell cutoff, oldest first, capped at
// unconsolidatedBatchSize.
func (s *Store) ListUnconsolidatedEvents(ctx context.Context, instanceID string, olderThanDays int) ([]types.MemoryEvent, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -olderThanDays)

	rows, err := s.db.QueryContext(ctx, `SELECT`+eventColumns+`
		FROM memory_events
		WHERE instance_id = ?
		  AND consolidated_at IS NULL
		  AND created_at < ?
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at ASC
		LIMIT ?`,
		instanceID, cutoff, now, unconsolidatedBatchSize)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list unconsolidated events: %w", err)
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

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE memory_events SET consolidated_at = ? WHERE id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("sqlite: failed to mark events consolidated: %w", err)
	}
	return nil
}

// PurgeExpired deletes events whose expiry has passed. The cutoff is taken
// once at sweep start, so rows created during the sweep with a later expiry
// are never touched.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_events WHERE expires_at IS NOT NULL AND expires_at < ?`,
		time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to purge expired events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count purged events: %w", err)
	}
	return int(n), nil
}

// CountEvents returns the number of events for an instance, optionally
// bounded below by since.
func (s *Store) CountEvents(ctx context.Context, instanceID string, since *time.Time) (int, error) {
	if instanceID == "" {
		return 0, fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}

	query := `SELECT COUNT(*) FROM memory_events WHERE instance_id = ?`
	args := []interface{}{instanceID}
	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, since.UTC())
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: failed to count events: %w", err)
	}
	return count, nil
}

// SearchEventsByVector ranks non-expired events by cosine similarity.
// Embeddings are loaded into Go memory (newest first, capped) and ranked
// in-process; see the package comment for the scaling trade-off.
func (s *Store) SearchEventsByVector(ctx context.Context, instanceID string, query []float32, limit int) ([]types.EventSearchResult, error) {
	if len(query) == 0 {
		return []types.EventSearchResult{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, embedding FROM memory_events
		WHERE instance_id = ?
		  AND embedding IS NOT NULL
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at DESC
		LIMIT ?`,
		instanceID, time.Now().UTC(), vectorSearchMaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load event embeddings: %w", err)
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
		return nil, fmt.Errorf("sqlite: error iterating event embeddings: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]types.EventSearchResult, 0, len(candidates))
	for _, c := range candidates {
		event, err := s.getEvent(ctx, c.id)
		if err != nil {
			continue
		}
		results = append(results, types.EventSearchResult{MemoryEvent: *event, Similarity: c.score})
	}
	return results, nil
}

// SearchEventsByText is the lexical fallback over event content and summary,
// backed by the FTS5 index. Scores are negated bm25 ranks (higher = better).
func (s *Store) SearchEventsByText(ctx context.Context, instanceID string, query string, limit int) ([]types.EventSearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	ftsQuery := sanitiseFTSQuery(query)
	if ftsQuery == "" {
		return []types.EventSearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, -fts.rank AS score
		FROM memory_events_fts fts
		JOIN memory_events m ON m.rowid = fts.rowid
		WHERE memory_events_fts MATCH ?
		  AND m.instance_id = ?
		  AND (m.expires_at IS NULL OR m.expires_at > ?)
		ORDER BY fts.rank
		LIMIT ?`,
		ftsQuery, instanceID, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: text search MATCH %q: %w", query, err)
	}
	defer func() { _ = rows.Close() }()

	type scored struct {
		id    string
		score float64
	}
	var hits []scored
	for rows.Next() {
		var h scored
		if err := rows.Scan(&h.id, &h.score); err != nil {
			continue
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating text search results: %w", err)
	}

	results := make([]types.EventSearchResult, 0, len(hits))
	for _, h := range hits {
		event, err := s.getEvent(ctx, h.id)
		if err != nil {
			continue
		}
		results = append(results, types.EventSearchResult{MemoryEvent: *event, Similarity: h.score})
	}
	return results, nil
}

// getEvent fetches a single event row by ID.
func (s *Store) getEvent(ctx context.Context, id string) (*types.MemoryEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+eventColumns+` FROM memory_events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get event: %w", err)
	}
	return event, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning code.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*types.MemoryEvent, error) {
	var event types.MemoryEvent
	var sessionID, channel, senderID, summary, metadataJSON sql.NullString
	var embedding []byte
	var consolidatedAt, expiresAt sql.NullTime
	var eventType string

	err := row.Scan(
		&event.ID, &event.InstanceID, &sessionID, &eventType, &channel, &senderID,
		&event.Content, &summary, &event.Importance, &embedding,
		&consolidatedAt, &expiresAt, &metadataJSON, &event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.SessionID = sessionID.String
	event.EventType = types.EventType(eventType)
	event.Channel = channel.String
	event.SenderID = senderID.String
	event.Summary = summary.String
	event.Embedding = deserializeEmbedding(embedding)
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
			return nil, fmt.Errorf("sqlite: failed to scan event row: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating event rows: %w", err)
	}
	return events, nil
}

// sanitiseFTSQuery converts free-form user input into a safe FTS5 prefix
// query with OR semantics. FTS5 syntax is fragile: an unbalanced quote or a
// stray operator keyword produces "fts5: syntax error".
func sanitiseFTSQuery(query string) string {
	replacer := strings.NewReplacer(
		`"`, ` `, `'`, ` `, `(`, ` `, `)`, ` `,
		`*`, ` `, `-`, ` `, `^`, ` `, `?`, ` `, `:`, ` `,
	)
	cleaned := replacer.Replace(query)

	var terms []string
	for _, w := range strings.Fields(strings.ToLower(cleaned)) {
		if len(w) >= 2 {
			terms = append(terms, w+"*")
		}
	}
	return strings.Join(terms, " OR ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
