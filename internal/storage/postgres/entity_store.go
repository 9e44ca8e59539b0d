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

// UpsertEntity merges an observation into the entity identified by
// (instance, name), inside one transaction.
func (s *Store) UpsertEntity(ctx context.Context, create types.EntityCreate) (*types.Entity, error) {
	if create.InstanceID == "" {
		return nil, fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}
	if create.Name == "" {
		return nil, fmt.Errorf("%w: entity name is required", storage.ErrInvalidInput)
	}
	if !create.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown entity type %q", storage.ErrInvalidInput, create.Type)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to begin upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM entities WHERE instance_id = $1 AND name = $2 FOR UPDATE`,
		create.InstanceID, create.Name).Scan(&id)

	switch {
	case err == sql.ErrNoRows:
		id = newID()
		aliasesJSON, mErr := marshalJSON(create.Aliases)
		if mErr != nil {
			return nil, mErr
		}
		metadataJSON, mErr := marshalJSON(create.Metadata)
		if mErr != nil {
			return nil, mErr
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entities (
				id, instance_id, type, name, aliases, summary,
				interaction_count, last_seen, metadata, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $9, $10)`,
			id, create.InstanceID, string(create.Type), create.Name,
			aliasesJSON, nullString(create.Summary), now, metadataJSON, now, now)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to create entity: %w", err)
		}

	case err != nil:
		return nil, fmt.Errorf("postgres: failed to look up entity by name: %w", err)

	default:
		query := `UPDATE entities SET
			interaction_count = interaction_count + 1,
			last_seen = $1, updated_at = $2`
		args := []interface{}{now, now}

		if create.Summary != "" {
			query += fmt.Sprintf(`, summary = $%d`, len(args)+1)
			args = append(args, create.Summary)
		}
		if len(create.Aliases) > 0 {
			aliasesJSON, mErr := marshalJSON(create.Aliases)
			if mErr != nil {
				return nil, mErr
			}
			query += fmt.Sprintf(`, aliases = $%d`, len(args)+1)
			args = append(args, aliasesJSON)
		}
		if len(create.Metadata) > 0 {
			metadataJSON, mErr := marshalJSON(create.Metadata)
			if mErr != nil {
				return nil, mErr
			}
			query += fmt.Sprintf(`, metadata = $%d`, len(args)+1)
			args = append(args, metadataJSON)
		}
		query += fmt.Sprintf(` WHERE id = $%d`, len(args)+1)
		args = append(args, id)

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("postgres: failed to update entity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: failed to commit entity upsert: %w", err)
	}

	return s.getEntityRow(ctx, id)
}

// AttachEntityEmbedding sets the embedding vector for a stored entity.
func (s *Store) AttachEntityEmbedding(ctx context.Context, id string, embedding []float32) error {
	return s.attachEmbedding(ctx, "entities", id, embedding)
}

const entityColumns = `
	id, instance_id, type, name, aliases, summary, importance,
	interaction_count, last_seen, metadata, created_at, updated_at`

// GetEntity returns an entity with both directions of its relationship
// edges resolved. Reverse-direction edges are tagged "inverse:<type>".
func (s *Store) GetEntity(ctx context.Context, instanceID, id string) (*types.EntityWithRelationships, error) {
	if instanceID == "" || id == "" {
		return nil, fmt.Errorf("%w: instance ID and entity ID are required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT`+entityColumns+` FROM entities WHERE id = $1 AND instance_id = $2`,
		id, instanceID)
	entity, err := scanEntity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get entity: %w", err)
	}

	result := &types.EntityWithRelationships{Entity: *entity, Relationships: []types.RelatedEntity{}}

	forward, err := s.queryRelated(ctx, `
		SELECT r.id, e.id, e.name, e.type, r.relationship_type, r.confidence, r.notes
		FROM entity_relationships r
		JOIN entities e ON e.id = r.entity_b_id
		WHERE r.entity_a_id = $1`, id, "")
	if err != nil {
		return nil, err
	}
	result.Relationships = append(result.Relationships, forward...)

	reverse, err := s.queryRelated(ctx, `
		SELECT r.id, e.id, e.name, e.type, r.relationship_type, r.confidence, r.notes
		FROM entity_relationships r
		JOIN entities e ON e.id = r.entity_a_id
		WHERE r.entity_b_id = $1`, id, "inverse:")
	if err != nil {
		return nil, err
	}
	result.Relationships = append(result.Relationships, reverse...)

	return result, nil
}

func (s *Store) queryRelated(ctx context.Context, query, entityID, typePrefix string) ([]types.RelatedEntity, error) {
	rows, err := s.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query relationships: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var related []types.RelatedEntity
	for rows.Next() {
		var r types.RelatedEntity
		var entityType string
		var notes sql.NullString
		if err := rows.Scan(&r.RelationshipID, &r.EntityID, &r.EntityName,
			&entityType, &r.RelationshipType, &r.Confidence, &notes); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan relationship row: %w", err)
		}
		r.EntityType = types.EntityType(entityType)
		r.RelationshipType = typePrefix + r.RelationshipType
		r.Notes = notes.String
		related = append(related, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating relationship rows: %w", err)
	}
	return related, nil
}

// FindEntityByName looks an entity up by its merge key.
func (s *Store) FindEntityByName(ctx context.Context, instanceID, name string) (*types.Entity, error) {
	if instanceID == "" || name == "" {
		return nil, fmt.Errorf("%w: instance ID and name are required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT`+entityColumns+` FROM entities WHERE instance_id = $1 AND name = $2`,
		instanceID, name)
	entity, err := scanEntity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to find entity by name: %w", err)
	}
	return entity, nil
}

// ListTopEntities orders by interaction_count desc, last_seen desc.
func (s *Store) ListTopEntities(ctx context.Context, instanceID string, limit int) ([]types.Entity, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `SELECT`+entityColumns+`
		FROM entities
		WHERE instance_id = $1
		ORDER BY interaction_count DESC, last_seen DESC
		LIMIT $2`,
		instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list top entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entities []types.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan entity row: %w", err)
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating entity rows: %w", err)
	}
	return entities, nil
}

// AddRelationship upserts an edge keyed by (a, b, type).
func (s *Store) AddRelationship(ctx context.Context, entityA, entityB, relationshipType string, confidence float64, notes string) error {
	if entityA == "" || entityB == "" || relationshipType == "" {
		return fmt.Errorf("%w: both entity IDs and a relationship type are required", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_relationships (
			id, entity_a_id, entity_b_id, relationship_type, confidence, notes
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entity_a_id, entity_b_id, relationship_type) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			notes = EXCLUDED.notes,
			updated_at = NOW()`,
		newID(), entityA, entityB, relationshipType, confidence, nullString(notes))
	if err != nil {
		return fmt.Errorf("postgres: failed to add relationship: %w", err)
	}
	return nil
}

// CountEntities returns the number of entities for an instance.
func (s *Store) CountEntities(ctx context.Context, instanceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE instance_id = $1`, instanceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count entities: %w", err)
	}
	return count, nil
}

// SearchEntitiesByVector ranks entities by cosine similarity using pgvector.
func (s *Store) SearchEntitiesByVector(ctx context.Context, instanceID string, query []float32, limit int) ([]types.Entity, error) {
	if len(query) == 0 || !s.pgvectorAvailable {
		return []types.Entity{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `SELECT`+entityColumns+`
		FROM entities
		WHERE instance_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2::vector
		LIMIT $3`,
		instanceID, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: entity vector search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entities []types.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan entity search row: %w", err)
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating entity search rows: %w", err)
	}
	return entities, nil
}

func (s *Store) getEntityRow(ctx context.Context, id string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+entityColumns+` FROM entities WHERE id = $1`, id)
	entity, err := scanEntity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get entity row: %w", err)
	}
	return entity, nil
}

func scanEntity(row rowScanner) (*types.Entity, error) {
	var entity types.Entity
	var entityType string
	var aliasesJSON, summary, metadataJSON sql.NullString
	var lastSeen sql.NullTime

	err := row.Scan(
		&entity.ID, &entity.InstanceID, &entityType, &entity.Name,
		&aliasesJSON, &summary, &entity.Importance, &entity.InteractionCount,
		&lastSeen, &metadataJSON, &entity.CreatedAt, &entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entity.Type = types.EntityType(entityType)
	entity.Aliases = unmarshalStrings(aliasesJSON)
	entity.Summary = summary.String
	entity.Metadata = unmarshalMap(metadataJSON)
	if lastSeen.Valid {
		t := lastSeen.Time
		entity.LastSeen = &t
	}
	return &entity, nil
}
