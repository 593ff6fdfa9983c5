// Copyright 2026 TRIP Verifier Project
//
// Mobility Profile Repository - periodic JSON snapshots of pkg/mobility
// state, so a profile survives a process restart without replaying every
// breadcrumb.

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// MobilityRepository handles mobility-profile snapshot persistence.
type MobilityRepository struct {
	client *Client
}

// NewMobilityRepository creates a new mobility-profile repository.
func NewMobilityRepository(client *Client) *MobilityRepository {
	return &MobilityRepository{client: client}
}

// Upsert stores or replaces an identity's mobility snapshot.
func (r *MobilityRepository) Upsert(ctx context.Context, rec *MobilityProfileRecord) error {
	query := `
		INSERT INTO mobility_profiles (identity, predictability, anchor_count, snapshot, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (identity) DO UPDATE SET
			predictability = EXCLUDED.predictability,
			anchor_count = EXCLUDED.anchor_count,
			snapshot = EXCLUDED.snapshot,
			updated_at = now()`

	_, err := r.client.ExecContext(ctx, query, rec.Identity, rec.Predictability, rec.AnchorCount, rec.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to upsert mobility profile: %w", err)
	}
	return nil
}

// Get retrieves an identity's mobility snapshot.
func (r *MobilityRepository) Get(ctx context.Context, identity []byte) (*MobilityProfileRecord, error) {
	query := `
		SELECT identity, predictability, anchor_count, snapshot, updated_at
		FROM mobility_profiles
		WHERE identity = $1`

	rec := &MobilityProfileRecord{}
	err := r.client.QueryRowContext(ctx, query, identity).Scan(
		&rec.Identity, &rec.Predictability, &rec.AnchorCount, &rec.Snapshot, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mobility profile: %w", err)
	}
	return rec, nil
}
