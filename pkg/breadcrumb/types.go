// Copyright 2026 TRIP Verifier Project
//
// Breadcrumb - a signed, spatially-quantized location attestation.
// Wire format per spec.md section 6: a canonical binary-object map with
// integer keys 0..8.

package breadcrumb

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/gns-foundation/trip-verifier/pkg/canon"
	"github.com/gns-foundation/trip-verifier/pkg/cellgrid"
	"github.com/gns-foundation/trip-verifier/pkg/identity"
)

const (
	fieldIndex     = 0
	fieldIdentity  = 1
	fieldTimestamp = 2
	fieldCell      = 3
	fieldResolution = 4
	fieldContext   = 5
	fieldPrevHash  = 6
	fieldMeta      = 7
	fieldSignature = 8
)

// BlockHash is the SHA-256 hash of a breadcrumb's full canonical encoding
// (fields 0..8). It is what the next breadcrumb's predecessor-hash field,
// and the chain-head hash, point to.
type BlockHash [32]byte

// Breadcrumb is one signed record in an identity's append-only chain.
type Breadcrumb struct {
	Index          uint64
	Identity       identity.ID
	Timestamp      int64 // Unix seconds
	Cell           cellgrid.Cell
	Resolution     cellgrid.Resolution
	ContextDigest  [32]byte
	PredecessorHash *BlockHash // nil for index 0
	Meta           map[string]bool
	Signature      [ed25519.SignatureSize]byte
}

// ExplorationFlag is the meta key that opts a breadcrumb out of the
// soft (< 15 minute) interval policy warning.
const ExplorationFlag = "exploration"

func (b *Breadcrumb) signableEntries() []canon.Entry {
	var prev canon.Value
	if b.PredecessorHash == nil {
		prev = canon.Null()
	} else {
		prev = canon.Bytes(b.PredecessorHash[:])
	}
	return []canon.Entry{
		{Key: fieldIndex, Value: canon.Uint(b.Index)},
		{Key: fieldIdentity, Value: canon.Bytes(b.Identity[:])},
		{Key: fieldTimestamp, Value: canon.Uint(uint64(b.Timestamp))},
		{Key: fieldCell, Value: canon.Uint(uint64(b.Cell))},
		{Key: fieldResolution, Value: canon.Uint(uint64(b.Resolution))},
		{Key: fieldContext, Value: canon.Bytes(b.ContextDigest[:])},
		{Key: fieldPrevHash, Value: prev},
		{Key: fieldMeta, Value: canon.MetaMap(b.Meta)},
	}
}

// EncodeSignable returns the canonical encoding of fields 0..7 — the bytes
// an Ed25519 signature is computed and verified over.
func (b *Breadcrumb) EncodeSignable() ([]byte, error) {
	return canon.Encode(b.signableEntries())
}

// Encode returns the canonical encoding of all fields 0..8, including the
// signature. This is what gets hashed to produce the block hash.
func (b *Breadcrumb) Encode() ([]byte, error) {
	entries := append(b.signableEntries(), canon.Entry{
		Key: fieldSignature, Value: canon.Bytes(b.Signature[:]),
	})
	return canon.Encode(entries)
}

// Hash returns the block hash: SHA-256 of the full canonical encoding.
func (b *Breadcrumb) Hash() (BlockHash, error) {
	enc, err := b.Encode()
	if err != nil {
		return BlockHash{}, err
	}
	return sha256.Sum256(enc), nil
}

// VerifySignature checks the Ed25519 signature over fields 0..7 against the
// breadcrumb's own identity.
func (b *Breadcrumb) VerifySignature() (bool, error) {
	msg, err := b.EncodeSignable()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(b.Identity.PublicKey(), msg, b.Signature[:]), nil
}

// Sign computes and sets the signature over fields 0..7 using priv.
func (b *Breadcrumb) Sign(priv ed25519.PrivateKey) error {
	msg, err := b.EncodeSignable()
	if err != nil {
		return err
	}
	sig := ed25519.Sign(priv, msg)
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("breadcrumb: unexpected signature size %d", len(sig))
	}
	copy(b.Signature[:], sig)
	return nil
}

// Decode parses fields 0..8 from a canonical encoding into a Breadcrumb.
func Decode(entries []canon.Entry) (*Breadcrumb, error) {
	b := &Breadcrumb{Meta: map[string]bool{}}

	idx, ok := canon.Lookup(entries, fieldIndex)
	if !ok || idx.Kind != canon.KindUint {
		return nil, fmt.Errorf("breadcrumb: missing or malformed field %d (index)", fieldIndex)
	}
	b.Index = idx.Uint

	idBytes, ok := canon.Lookup(entries, fieldIdentity)
	if !ok {
		return nil, fmt.Errorf("breadcrumb: missing field %d (identity)", fieldIdentity)
	}
	id, err := identity.FromBytes(idBytes.Bytes)
	if err != nil {
		return nil, fmt.Errorf("breadcrumb: %w", err)
	}
	b.Identity = id

	ts, ok := canon.Lookup(entries, fieldTimestamp)
	if !ok {
		return nil, fmt.Errorf("breadcrumb: missing field %d (timestamp)", fieldTimestamp)
	}
	b.Timestamp = int64(ts.Uint)

	cellV, ok := canon.Lookup(entries, fieldCell)
	if !ok {
		return nil, fmt.Errorf("breadcrumb: missing field %d (cell)", fieldCell)
	}
	b.Cell = cellgrid.Cell(cellV.Uint)

	resV, ok := canon.Lookup(entries, fieldResolution)
	if !ok {
		return nil, fmt.Errorf("breadcrumb: missing field %d (resolution)", fieldResolution)
	}
	b.Resolution = cellgrid.Resolution(resV.Uint)
	if !b.Resolution.Valid() {
		return nil, cellgrid.ErrInvalidResolution
	}

	ctxV, ok := canon.Lookup(entries, fieldContext)
	if !ok || len(ctxV.Bytes) != 32 {
		return nil, fmt.Errorf("breadcrumb: missing or malformed field %d (context digest)", fieldContext)
	}
	copy(b.ContextDigest[:], ctxV.Bytes)

	prevV, ok := canon.Lookup(entries, fieldPrevHash)
	if !ok {
		return nil, fmt.Errorf("breadcrumb: missing field %d (predecessor hash)", fieldPrevHash)
	}
	if prevV.Kind != canon.KindNull {
		if len(prevV.Bytes) != 32 {
			return nil, fmt.Errorf("breadcrumb: malformed field %d (predecessor hash)", fieldPrevHash)
		}
		var h BlockHash
		copy(h[:], prevV.Bytes)
		b.PredecessorHash = &h
	}

	metaV, ok := canon.Lookup(entries, fieldMeta)
	if !ok {
		return nil, fmt.Errorf("breadcrumb: missing field %d (meta)", fieldMeta)
	}
	if metaV.Meta != nil {
		b.Meta = metaV.Meta
	}

	sigV, ok := canon.Lookup(entries, fieldSignature)
	if !ok || len(sigV.Bytes) != ed25519.SignatureSize {
		return nil, fmt.Errorf("breadcrumb: missing or malformed field %d (signature)", fieldSignature)
	}
	copy(b.Signature[:], sigV.Bytes)

	return b, nil
}

// DecodeAll parses a concatenation of one or more canonically-encoded
// breadcrumbs, in order.
func DecodeAll(raw []byte) ([]*Breadcrumb, error) {
	var out []*Breadcrumb
	for len(raw) > 0 {
		entries, consumed, err := canon.DecodeOne(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		b, err := Decode(entries)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		out = append(out, b)
		raw = raw[consumed:]
	}
	return out, nil
}
