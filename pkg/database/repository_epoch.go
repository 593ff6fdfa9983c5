// Copyright 2026 TRIP Verifier Project
//
// Epoch Repository - persisted sealed epochs for audit and historical
// Merkle-inclusion verification.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EpochRepository handles sealed-epoch persistence.
type EpochRepository struct {
	client *Client
}

// NewEpochRepository creates a new epoch repository.
func NewEpochRepository(client *Client) *EpochRepository {
	return &EpochRepository{client: client}
}

// Create persists a newly sealed epoch.
func (r *EpochRepository) Create(ctx context.Context, rec *EpochRecord) (*EpochRecord, error) {
	if rec.EpochID == uuid.Nil {
		rec.EpochID = uuid.New()
	}

	query := `
		INSERT INTO epochs (
			epoch_id, identity, first_index, last_index, first_timestamp,
			last_timestamp, merkle_root, signature, sealed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING sealed_at`

	sealedAt := rec.SealedAt
	if sealedAt.IsZero() {
		sealedAt = time.Now()
	}

	err := r.client.QueryRowContext(ctx, query,
		rec.EpochID, rec.Identity, rec.FirstIndex, rec.LastIndex, rec.FirstTimestamp,
		rec.LastTimestamp, rec.MerkleRoot, rec.Signature, sealedAt,
	).Scan(&rec.SealedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create epoch: %w", err)
	}
	return rec, nil
}

// Latest returns the most recently sealed epoch for an identity.
func (r *EpochRepository) Latest(ctx context.Context, identity []byte) (*EpochRecord, error) {
	query := `
		SELECT epoch_id, identity, first_index, last_index, first_timestamp,
			last_timestamp, merkle_root, signature, sealed_at
		FROM epochs
		WHERE identity = $1
		ORDER BY last_index DESC
		LIMIT 1`

	rec := &EpochRecord{}
	err := r.client.QueryRowContext(ctx, query, identity).Scan(
		&rec.EpochID, &rec.Identity, &rec.FirstIndex, &rec.LastIndex, &rec.FirstTimestamp,
		&rec.LastTimestamp, &rec.MerkleRoot, &rec.Signature, &rec.SealedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrEpochNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest epoch: %w", err)
	}
	return rec, nil
}

// Count returns the number of sealed epochs for an identity.
func (r *EpochRepository) Count(ctx context.Context, identity []byte) (uint64, error) {
	var count uint64
	err := r.client.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM epochs WHERE identity = $1`, identity,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count epochs: %w", err)
	}
	return count, nil
}
