// Copyright 2026 TRIP Verifier Project
//
// Database Types for Verifier persistence. These map directly to the
// PostgreSQL schema in migrations/001_initial_schema.sql.

package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ChainHeadRecord is the durable tail of an identity's breadcrumb chain:
// head position, hash, timestamp and cell plus summary counts. It does not
// hold per-cell visit counts, and no Chain constructor restores from it.
type ChainHeadRecord struct {
	Identity      []byte // 32-byte Ed25519 public key
	HeadIndex     uint64
	HeadHash      []byte // 32 bytes
	HeadTimestamp int64
	HeadCell      uint64
	TotalCount    uint64
	UniqueCells   uint64
	FirstSeenAt   time.Time
	UpdatedAt     time.Time
}

// MobilityProfileRecord is a periodic JSON snapshot of an identity's
// mobility profile (anchors, transition matrix, circadian histograms),
// persisted so the profile survives process restarts without replaying
// every breadcrumb.
type MobilityProfileRecord struct {
	Identity       []byte
	Predictability float64
	AnchorCount    int
	Snapshot       []byte // JSON-encoded pkg/mobility snapshot
	UpdatedAt      time.Time
}

// EpochRecord is a sealed epoch (pkg/epoch.Epoch), persisted for audit and
// for relying parties that want to verify historical Merkle inclusion.
type EpochRecord struct {
	EpochID        uuid.UUID
	Identity       []byte
	FirstIndex     uint64
	LastIndex      uint64
	FirstTimestamp int64
	LastTimestamp  int64
	MerkleRoot     []byte
	Signature      []byte
	SealedAt       time.Time
}

// ChallengeRecord persists a liveness challenge's state for audit and
// cross-process recovery; the in-memory pkg/challenge.Coordinator remains
// the authoritative source during an active challenge.
type ChallengeRecord struct {
	Nonce              []byte // 16 bytes
	Identity           []byte
	State              string
	RequestedAt        time.Time
	ChallengeTimestamp sql.NullInt64
	Deadline           sql.NullTime
	ResponseTimestamp  sql.NullInt64
	ResponseHeadHash   []byte
	ResponseIndex      sql.NullInt64
	UpdatedAt          time.Time
}

// CertificateRecord persists an issued PoH Certificate for audit, so a
// relying party or operator can confirm a certificate was genuinely issued
// without trusting the bearer's copy alone.
type CertificateRecord struct {
	CertificateID uuid.UUID
	Identity      []byte
	IssuedAt      int64
	ValiditySeconds int64
	Nonce         []byte
	HeadHash      []byte
	TrustScore    float64
	Classification string
	Signature     []byte
	CreatedAt     time.Time
}
