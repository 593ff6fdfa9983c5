// Copyright 2026 TRIP Verifier Project
//
// Chain Head Repository - durable tail state for breadcrumb chains.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ChainRepository handles chain-head persistence.
type ChainRepository struct {
	client *Client
}

// NewChainRepository creates a new chain-head repository.
func NewChainRepository(client *Client) *ChainRepository {
	return &ChainRepository{client: client}
}

// Upsert records or updates the durable tail of an identity's chain.
func (r *ChainRepository) Upsert(ctx context.Context, rec *ChainHeadRecord) error {
	query := `
		INSERT INTO chain_heads (
			identity, head_index, head_hash, head_timestamp, head_cell,
			total_count, unique_cells, first_seen_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (identity) DO UPDATE SET
			head_index = EXCLUDED.head_index,
			head_hash = EXCLUDED.head_hash,
			head_timestamp = EXCLUDED.head_timestamp,
			head_cell = EXCLUDED.head_cell,
			total_count = EXCLUDED.total_count,
			unique_cells = EXCLUDED.unique_cells,
			updated_at = now()`

	firstSeen := rec.FirstSeenAt
	if firstSeen.IsZero() {
		firstSeen = time.Now()
	}

	_, err := r.client.ExecContext(ctx, query,
		rec.Identity, rec.HeadIndex, rec.HeadHash, rec.HeadTimestamp, rec.HeadCell,
		rec.TotalCount, rec.UniqueCells, firstSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chain head: %w", err)
	}
	return nil
}

// Get retrieves the durable chain head for an identity.
func (r *ChainRepository) Get(ctx context.Context, identity []byte) (*ChainHeadRecord, error) {
	query := `
		SELECT identity, head_index, head_hash, head_timestamp, head_cell,
			total_count, unique_cells, first_seen_at, updated_at
		FROM chain_heads
		WHERE identity = $1`

	rec := &ChainHeadRecord{}
	err := r.client.QueryRowContext(ctx, query, identity).Scan(
		&rec.Identity, &rec.HeadIndex, &rec.HeadHash, &rec.HeadTimestamp, &rec.HeadCell,
		&rec.TotalCount, &rec.UniqueCells, &rec.FirstSeenAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrChainHeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chain head: %w", err)
	}
	return rec, nil
}
