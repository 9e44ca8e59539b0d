package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openclaw/nexus/internal/storage"
	"github.com/openclaw/nexus/pkg/types"
)

// GetOrCreateConfig returns the config row for an instance, creating it with
// STANDARD-tier defaults and a fresh API credential on first access.
func (s *Store) GetOrCreateConfig(ctx context.Context, instanceID string) (*types.MemoryConfig, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}

	config, err := s.getConfig(ctx, instanceID)
	if err == nil {
		return config, nil
	}
	if err != storage.ErrNotFound {
		return nil, err
	}

	key, err := newAPIKey()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	// Another writer may create the row between our read and this insert;
	// ON CONFLICT keeps the first credential rather than overwriting it.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_configs (instance_id, tier, enabled, api_key, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT(instance_id) DO NOTHING`,
		instanceID, string(types.TierStandard), key, now, now)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to create memory config: %w", err)
	}

	return s.getConfig(ctx, instanceID)
}

func (s *Store) getConfig(ctx context.Context, instanceID string) (*types.MemoryConfig, error) {
	var c types.MemoryConfig
	var tier string
	var digest sql.NullString
	var lastDigestAt, lastMinedAt, lastConsolidatedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT instance_id, tier, enabled, api_key, digest_content,
			last_digest_at, last_mined_at, last_consolidated_at,
			created_at, updated_at
		FROM memory_configs WHERE instance_id = ?`,
		instanceID).Scan(
		&c.InstanceID, &tier, &c.Enabled, &c.APIKey, &digest,
		&lastDigestAt, &lastMinedAt, &lastConsolidatedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get memory config: %w", err)
	}

	c.Tier = types.Tier(tier)
	c.DigestContent = digest.String
	if lastDigestAt.Valid {
		t := lastDigestAt.Time
		c.LastDigestAt = &t
	}
	if lastMinedAt.Valid {
		t := lastMinedAt.Time
		c.LastMinedAt = &t
	}
	if lastConsolidatedAt.Valid {
		t := lastConsolidatedAt.Time
		c.LastConsolidatedAt = &t
	}
	return &c, nil
}

// RotateAPIKey replaces the instance's API credential. The previous
// credential stops working the moment this returns.
func (s *Store) RotateAPIKey(ctx context.Context, instanceID string) (string, error) {
	if instanceID == "" {
		return "", fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}

	key, err := newAPIKey()
	if err != nil {
		return "", err
	}
	err = execAffectingOne(ctx, s.db, `
		UPDATE memory_configs SET api_key = ?, updated_at = ? WHERE instance_id = ?`,
		key, time.Now().UTC(), instanceID)
	if err != nil {
		if err == storage.ErrNotFound {
			return "", err
		}
		return "", fmt.Errorf("sqlite: failed to rotate api key: %w", err)
	}
	return key, nil
}

// UpdateTier changes the instance's subscription tier. Existing event
// expiries keep the expiry computed at their write time.
func (s *Store) UpdateTier(ctx context.Context, instanceID string, t types.Tier) error {
	if instanceID == "" {
		return fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}
	if !t.Valid() {
		return fmt.Errorf("%w: unknown tier %q", storage.ErrInvalidInput, t)
	}

	err := execAffectingOne(ctx, s.db, `
		UPDATE memory_configs SET tier = ?, updated_at = ? WHERE instance_id = ?`,
		string(t), time.Now().UTC(), instanceID)
	if err != nil {
		if err == storage.ErrNotFound {
			return err
		}
		return fmt.Errorf("sqlite: failed to update tier: %w", err)
	}
	return nil
}

// SaveDigest caches the built digest text and stamps last_digest_at.
func (s *Store) SaveDigest(ctx context.Context, instanceID, digest string) error {
	if instanceID == "" {
		return fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	err := execAffectingOne(ctx, s.db, `
		UPDATE memory_configs SET digest_content = ?, last_digest_at = ?, updated_at = ?
		WHERE instance_id = ?`,
		digest, now, now, instanceID)
	if err != nil {
		if err == storage.ErrNotFound {
			return err
		}
		return fmt.Errorf("sqlite: failed to save digest: %w", err)
	}
	return nil
}

// TouchLastMined stamps last_mined_at to now.
func (s *Store) TouchLastMined(ctx context.Context, instanceID string) error {
	return s.touchTimestamp(ctx, instanceID, "last_mined_at")
}

// TouchLastConsolidated stamps last_consolidated_at to now.
func (s *Store) TouchLastConsolidated(ctx context.Context, instanceID string) error {
	return s.touchTimestamp(ctx, instanceID, "last_consolidated_at")
}

func (s *Store) touchTimestamp(ctx context.Context, instanceID, column string) error {
	if instanceID == "" {
		return fmt.Errorf("%w: instance ID is required", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	err := execAffectingOne(ctx, s.db,
		`UPDATE memory_configs SET `+column+` = ?, updated_at = ? WHERE instance_id = ?`,
		now, now, instanceID)
	if err != nil {
		if err == storage.ErrNotFound {
			return err
		}
		return fmt.Errorf("sqlite: failed to touch %s: %w", column, err)
	}
	return nil
}

// ListInstanceIDs returns every instance with a config row, the population
// batch maintenance iterates over.
func (s *Store) ListInstanceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT instance_id FROM memory_configs WHERE enabled = 1 ORDER BY instance_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list instances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan instance id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating instance ids: %w", err)
	}
	return ids, nil
}
