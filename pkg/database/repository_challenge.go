// Copyright 2026 TRIP Verifier Project
//
// Challenge Repository - audit trail and cross-process recovery for the
// liveness-challenge state machine. The in-memory pkg/challenge.Coordinator
// is authoritative while a challenge is active; this repository exists so
// an operator can reconstruct challenge history after a restart.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ChallengeRepository handles challenge-record persistence.
type ChallengeRepository struct {
	client *Client
}

// NewChallengeRepository creates a new challenge repository.
func NewChallengeRepository(client *Client) *ChallengeRepository {
	return &ChallengeRepository{client: client}
}

// Upsert records or updates a challenge's state.
func (r *ChallengeRepository) Upsert(ctx context.Context, rec *ChallengeRecord) error {
	query := `
		INSERT INTO challenges (
			nonce, identity, state, requested_at, challenge_timestamp, deadline,
			response_timestamp, response_head_hash, response_index, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (nonce) DO UPDATE SET
			state = EXCLUDED.state,
			challenge_timestamp = EXCLUDED.challenge_timestamp,
			deadline = EXCLUDED.deadline,
			response_timestamp = EXCLUDED.response_timestamp,
			response_head_hash = EXCLUDED.response_head_hash,
			response_index = EXCLUDED.response_index,
			updated_at = now()`

	requestedAt := rec.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now()
	}

	_, err := r.client.ExecContext(ctx, query,
		rec.Nonce, rec.Identity, rec.State, requestedAt, rec.ChallengeTimestamp, rec.Deadline,
		rec.ResponseTimestamp, rec.ResponseHeadHash, rec.ResponseIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert challenge: %w", err)
	}
	return nil
}

// Get retrieves a challenge record by nonce.
func (r *ChallengeRepository) Get(ctx context.Context, nonce []byte) (*ChallengeRecord, error) {
	query := `
		SELECT nonce, identity, state, requested_at, challenge_timestamp, deadline,
			response_timestamp, response_head_hash, response_index, updated_at
		FROM challenges
		WHERE nonce = $1`

	rec := &ChallengeRecord{}
	err := r.client.QueryRowContext(ctx, query, nonce).Scan(
		&rec.Nonce, &rec.Identity, &rec.State, &rec.RequestedAt, &rec.ChallengeTimestamp, &rec.Deadline,
		&rec.ResponseTimestamp, &rec.ResponseHeadHash, &rec.ResponseIndex, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return rec, nil
}

// PurgeTerminal deletes challenge records in a terminal state older than
// olderThan, bounding table growth from long-running deployments.
func (r *ChallengeRepository) PurgeTerminal(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.client.ExecContext(ctx,
		`DELETE FROM challenges WHERE state IN ('RESPONDED', 'TIMED_OUT', 'CANCELLED') AND updated_at < $1`,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge terminal challenges: %w", err)
	}
	return res.RowsAffected()
}
