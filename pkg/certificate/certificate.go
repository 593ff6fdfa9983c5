// Copyright 2026 TRIP Verifier Project
//
// Certificate Issuer - §4.9: assembles and signs the PoH Certificate from
// a Verdict, identity key, fresh timestamp, relying-party nonce, and chain-
// head hash. Grounded on pkg/anchor_proof's builder/signer split: a Builder
// assembles the unsigned artifact from its inputs, a Signer signs it with
// the Verifier's own key. The certificate carries only statistical
// summaries — no cell identifiers, coordinates, or breadcrumb material.

package certificate

import (
	"crypto/ed25519"
	"fmt"

	"github.com/gns-foundation/trip-verifier/pkg/canon"
	"github.com/gns-foundation/trip-verifier/pkg/challenge"
	"github.com/gns-foundation/trip-verifier/pkg/criticality"
	"github.com/gns-foundation/trip-verifier/pkg/identity"
)

const (
	fieldIdentity              = 0
	fieldIssuedAt              = 1
	fieldEpochCount            = 2
	fieldAlpha                 = 3
	fieldBeta                  = 4
	fieldKappa                 = 5
	fieldPredictability        = 6
	fieldCriticalityConfidence = 7
	fieldTrustScore            = 8
	fieldUniqueCells           = 9
	fieldBreadcrumbCount       = 10
	fieldValiditySeconds       = 11
	fieldNonce                 = 12
	fieldHeadHash              = 13
	fieldSignature             = 14

	// fixedPointScale converts the spec's floating-point statistics into
	// canon's unsigned-integer wire values without losing meaningful
	// precision: four decimal digits is well beyond the numerical
	// routines' own convergence tolerance.
	fixedPointScale = 10000
)

// Certificate is the PoH Certificate: statistical summaries only, bound to
// a relying-party nonce and a chain-head hash at issuance.
type Certificate struct {
	Identity    identity.ID
	IssuedAt    int64
	EpochCount  uint64

	Alpha                 float64
	Beta                  float64
	Kappa                 float64
	Predictability        float64
	CriticalityConfidence float64
	TrustScore            float64

	UniqueCells     uint64
	BreadcrumbCount uint64

	ValiditySeconds int64

	Nonce    challenge.Nonce
	HeadHash [32]byte

	Signature [ed25519.SignatureSize]byte
}

// Builder assembles an unsigned Certificate from a Verdict and the
// issuance context. It holds no key material.
type Builder struct{}

// NewBuilder returns a certificate builder.
func NewBuilder() *Builder { return &Builder{} }

// Build assembles a Certificate (unsigned) from v and the issuance
// context. Callers must call Signer.Sign before transmitting it.
func (Builder) Build(id identity.ID, v criticality.Verdict, issuedAt int64, epochCount, uniqueCells, breadcrumbCount uint64, validitySeconds int64, nonce challenge.Nonce, headHash [32]byte) *Certificate {
	return &Certificate{
		Identity:              id,
		IssuedAt:              issuedAt,
		EpochCount:            epochCount,
		Alpha:                 v.Alpha,
		Beta:                  v.Beta,
		Kappa:                 v.Kappa,
		Predictability:        v.Predictability,
		CriticalityConfidence: v.CriticalityConfidence,
		TrustScore:            v.TrustScore,
		UniqueCells:           uniqueCells,
		BreadcrumbCount:       breadcrumbCount,
		ValiditySeconds:       validitySeconds,
		Nonce:                 nonce,
		HeadHash:              headHash,
	}
}

func fixedPoint(f float64) uint64 {
	if f < 0 {
		f = 0
	}
	return uint64(f*fixedPointScale + 0.5)
}

func unFixedPoint(v uint64) float64 {
	return float64(v) / fixedPointScale
}

func (c *Certificate) signableEntries() []canon.Entry {
	return []canon.Entry{
		{Key: fieldIdentity, Value: canon.Bytes(c.Identity[:])},
		{Key: fieldIssuedAt, Value: canon.Uint(uint64(c.IssuedAt))},
		{Key: fieldEpochCount, Value: canon.Uint(c.EpochCount)},
		{Key: fieldAlpha, Value: canon.Uint(fixedPoint(c.Alpha))},
		{Key: fieldBeta, Value: canon.Uint(fixedPoint(c.Beta))},
		{Key: fieldKappa, Value: canon.Uint(fixedPoint(c.Kappa))},
		{Key: fieldPredictability, Value: canon.Uint(fixedPoint(c.Predictability))},
		{Key: fieldCriticalityConfidence, Value: canon.Uint(fixedPoint(c.CriticalityConfidence))},
		{Key: fieldTrustScore, Value: canon.Uint(fixedPoint(c.TrustScore))},
		{Key: fieldUniqueCells, Value: canon.Uint(c.UniqueCells)},
		{Key: fieldBreadcrumbCount, Value: canon.Uint(c.BreadcrumbCount)},
		{Key: fieldValiditySeconds, Value: canon.Uint(uint64(c.ValiditySeconds))},
		{Key: fieldNonce, Value: canon.Bytes(c.Nonce[:])},
		{Key: fieldHeadHash, Value: canon.Bytes(c.HeadHash[:])},
	}
}

// EncodeSignable returns the canonical encoding of every field but the
// signature — what the Verifier signs and a relying party verifies
// against.
func (c *Certificate) EncodeSignable() ([]byte, error) {
	return canon.Encode(c.signableEntries())
}

// Encode returns the canonical encoding of the full, signed certificate.
func (c *Certificate) Encode() ([]byte, error) {
	entries := append(c.signableEntries(), canon.Entry{
		Key: fieldSignature, Value: canon.Bytes(c.Signature[:]),
	})
	return canon.Encode(entries)
}

// Signer signs certificates with the Verifier's long-lived signing key.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner returns a Signer backed by priv.
func NewSigner(priv ed25519.PrivateKey) *Signer {
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}
}

// PublicKey returns the Verifier's signing public key, which relying
// parties use to verify issued certificates.
func (s *Signer) PublicKey() ed25519.PublicKey { return s.pub }

// Sign computes and sets c's signature.
func (s *Signer) Sign(c *Certificate) error {
	msg, err := c.EncodeSignable()
	if err != nil {
		return err
	}
	sig := ed25519.Sign(s.priv, msg)
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("certificate: unexpected signature size %d", len(sig))
	}
	copy(c.Signature[:], sig)
	return nil
}

// Verify checks c's signature against the Verifier's public key.
func Verify(c *Certificate, verifierPub ed25519.PublicKey) (bool, error) {
	msg, err := c.EncodeSignable()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(verifierPub, msg, c.Signature[:]), nil
}

// Alpha, Beta, Kappa, Predictability, CriticalityConfidence, and
// TrustScore are stored as float64 on Certificate for convenient access,
// but round-trip through the canonical wire encoding at fixed-point
// precision; DecodedStats recovers exactly the values a decoder would see.
type DecodedStats struct {
	Alpha, Beta, Kappa, Predictability, CriticalityConfidence, TrustScore float64
}

// Decode parses a canonical certificate encoding back into a Certificate.
func Decode(entries []canon.Entry) (*Certificate, error) {
	c := &Certificate{}

	idV, ok := canon.Lookup(entries, fieldIdentity)
	if !ok {
		return nil, fmt.Errorf("certificate: missing field %d (identity)", fieldIdentity)
	}
	id, err := identity.FromBytes(idV.Bytes)
	if err != nil {
		return nil, fmt.Errorf("certificate: %w", err)
	}
	c.Identity = id

	issuedV, ok := canon.Lookup(entries, fieldIssuedAt)
	if !ok {
		return nil, fmt.Errorf("certificate: missing field %d (issued_at)", fieldIssuedAt)
	}
	c.IssuedAt = int64(issuedV.Uint)

	epochV, ok := canon.Lookup(entries, fieldEpochCount)
	if !ok {
		return nil, fmt.Errorf("certificate: missing field %d (epoch_count)", fieldEpochCount)
	}
	c.EpochCount = epochV.Uint

	alphaV, ok := canon.Lookup(entries, fieldAlpha)
	if !ok {
		return nil, fmt.Errorf("certificate: missing field %d (alpha)", fieldAlpha)
	}
	c.Alpha = unFixedPoint(alphaV.Uint)

	betaV, ok := canon.Lookup(entries, fieldBeta)
	if !ok {
		return nil, fmt.Errorf("certificate: missing field %d (beta)", fieldBeta)
	}
	c.Beta = unFixedPoint(betaV.Uint)

	kappaV, ok := canon.Lookup(entries, fieldKappa)
	if !ok {
		return nil, fmt.Errorf("certificate: missing field %d (kappa)", fieldKappa)
	}
	c.Kappa = unFixedPoint(kappaV.Uint)

	piV, ok := canon.Lookup(entries, fieldPredictability)
	if !ok {
		return nil, fmt.Errorf("certificate: missing field %d (predictability)", fieldPredictability)
	}
	c.Predictability = unFixedPoint(piV.Uint)

	confV, ok := canon.Lookup(entries, fieldCriticalityConfidence)
	if !ok {
		return nil, fmt.Errorf("certificate: missing field %d (criticality_confidence)", fieldCriticalityConfidence)
	}
	c.CriticalityConfidence = unFixedPoint(confV.Uint)

	trustV, ok := canon.Lookup(entries, fieldTrustScore)
	if !ok {
		return nil, fmt.Errorf("certificate: missing field %d (trust_score)", fieldTrustScore)
	}
	c.TrustScore = unFixedPoint(trustV.Uint)

	cellsV, ok := canon.Lookup(entries, fieldUniqueCells)
	if !ok {
		return nil, fmt.Errorf("certificate: missing field %d (unique_cells)", fieldUniqueCells)
	}
	c.UniqueCells = cellsV.Uint

	countV, ok := canon.Lookup(entries, fieldBreadcrumbCount)
	if !ok {
		return nil, fmt.Errorf("certificate: missing field %d (breadcrumb_count)", fieldBreadcrumbCount)
	}
	c.BreadcrumbCount = countV.Uint

	validityV, ok := canon.Lookup(entries, fieldValiditySeconds)
	if !ok {
		return nil, fmt.Errorf("certificate: missing field %d (validity_seconds)", fieldValiditySeconds)
	}
	c.ValiditySeconds = int64(validityV.Uint)

	nonceV, ok := canon.Lookup(entries, fieldNonce)
	if !ok || len(nonceV.Bytes) != challenge.NonceSize {
		return nil, fmt.Errorf("certificate: missing or malformed field %d (nonce)", fieldNonce)
	}
	copy(c.Nonce[:], nonceV.Bytes)

	headV, ok := canon.Lookup(entries, fieldHeadHash)
	if !ok || len(headV.Bytes) != 32 {
		return nil, fmt.Errorf("certificate: missing or malformed field %d (head_hash)", fieldHeadHash)
	}
	copy(c.HeadHash[:], headV.Bytes)

	sigV, ok := canon.Lookup(entries, fieldSignature)
	if !ok || len(sigV.Bytes) != ed25519.SignatureSize {
		return nil, fmt.Errorf("certificate: missing or malformed field %d (signature)", fieldSignature)
	}
	copy(c.Signature[:], sigV.Bytes)

	return c, nil
}
