// Copyright 2026 TRIP Verifier Project
//
// Certificate Repository - audit trail for issued PoH Certificates.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// CertificateRepository handles issued-certificate persistence.
type CertificateRepository struct {
	client *Client
}

// NewCertificateRepository creates a new certificate repository.
func NewCertificateRepository(client *Client) *CertificateRepository {
	return &CertificateRepository{client: client}
}

// Create records a newly issued certificate.
func (r *CertificateRepository) Create(ctx context.Context, rec *CertificateRecord) (*CertificateRecord, error) {
	if rec.CertificateID == uuid.Nil {
		rec.CertificateID = uuid.New()
	}

	query := `
		INSERT INTO certificates (
			certificate_id, identity, issued_at, validity_seconds, nonce,
			head_hash, trust_score, classification, signature, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING created_at`

	err := r.client.QueryRowContext(ctx, query,
		rec.CertificateID, rec.Identity, rec.IssuedAt, rec.ValiditySeconds, rec.Nonce,
		rec.HeadHash, rec.TrustScore, rec.Classification, rec.Signature,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate record: %w", err)
	}
	return rec, nil
}

// ListByIdentity returns the most recently issued certificates for an
// identity, newest first.
func (r *CertificateRepository) ListByIdentity(ctx context.Context, identity []byte, limit int) ([]*CertificateRecord, error) {
	query := `
		SELECT certificate_id, identity, issued_at, validity_seconds, nonce,
			head_hash, trust_score, classification, signature, created_at
		FROM certificates
		WHERE identity = $1
		ORDER BY issued_at DESC
		LIMIT $2`

	rows, err := r.client.QueryContext(ctx, query, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	var out []*CertificateRecord
	for rows.Next() {
		rec := &CertificateRecord{}
		if err := rows.Scan(
			&rec.CertificateID, &rec.Identity, &rec.IssuedAt, &rec.ValiditySeconds, &rec.Nonce,
			&rec.HeadHash, &rec.TrustScore, &rec.Classification, &rec.Signature, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ByNonce retrieves the certificate issued for a given relying-party nonce,
// if any. Nonces are unique per challenge, so at most one certificate
// should exist.
func (r *CertificateRepository) ByNonce(ctx context.Context, nonce []byte) (*CertificateRecord, error) {
	query := `
		SELECT certificate_id, identity, issued_at, validity_seconds, nonce,
			head_hash, trust_score, classification, signature, created_at
		FROM certificates
		WHERE nonce = $1
		LIMIT 1`

	rec := &CertificateRecord{}
	err := r.client.QueryRowContext(ctx, query, nonce).Scan(
		&rec.CertificateID, &rec.Identity, &rec.IssuedAt, &rec.ValiditySeconds, &rec.Nonce,
		&rec.HeadHash, &rec.TrustScore, &rec.Classification, &rec.Signature, &rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCertificateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate by nonce: %w", err)
	}
	return rec, nil
}
