// Copyright 2026 TRIP Verifier Project
//
// Certificate issuance: consumes a RESPONDED challenge and the identity's
// current verdict to build and sign a PoH Certificate, then frees the
// challenge slot.

package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/gns-foundation/trip-verifier/pkg/certificate"
	"github.com/gns-foundation/trip-verifier/pkg/challenge"
	"github.com/gns-foundation/trip-verifier/pkg/database"
)

// IssueCertificate builds and signs a PoH Certificate bound to a
// previously completed challenge. The challenge must be in the RESPONDED
// state; once consumed its slot is freed and it cannot be reused.
func (v *Verifier) IssueCertificate(ctx context.Context, nonce challenge.Nonce) (*certificate.Certificate, error) {
	cs, ok := v.challenges.Get(nonce)
	if !ok {
		return nil, challenge.ErrUnknownNonce
	}
	if cs.State != challenge.StateResponded {
		return nil, fmt.Errorf("verifier: challenge not yet responded")
	}

	st, ok := v.states.get(cs.Identity)
	if !ok {
		return nil, fmt.Errorf("verifier: no chain state for identity")
	}
	st.mu.Lock()
	verdict := v.evaluateLocked(st)
	headHash, _ := st.chain.HeadHash()
	epochCount := st.epochCount
	uniqueCells := uint64(st.chain.UniqueCells())
	breadcrumbCount := uint64(st.chain.TotalCount())
	st.mu.Unlock()

	cert := certificate.NewBuilder().Build(
		cs.Identity,
		verdict,
		time.Now().Unix(),
		epochCount,
		uniqueCells,
		breadcrumbCount,
		int64(v.policy.CertificateValidity.Seconds()),
		nonce,
		headHash,
	)
	if err := v.signer.Sign(cert); err != nil {
		return nil, fmt.Errorf("verifier: signing certificate: %w", err)
	}

	v.challenges.Remove(nonce)
	if v.metrics != nil {
		v.metrics.CertificatesIssued.Inc()
	}
	if v.repos != nil {
		rec := &database.CertificateRecord{
			Identity:        cs.Identity[:],
			IssuedAt:        cert.IssuedAt,
			ValiditySeconds: cert.ValiditySeconds,
			Nonce:           nonce[:],
			HeadHash:        headHash[:],
			TrustScore:      verdict.TrustScore,
			Classification:  string(verdict.Classification),
			Signature:       cert.Signature[:],
		}
		if _, err := v.repos.Certificates.Create(ctx, rec); err != nil {
			v.logger.Printf("failed to persist certificate for %s: %v", cs.Identity, err)
		}
	}

	return cert, nil
}

// VerifierPublicKey returns the Ed25519 public key a relying party should
// verify PoH Certificates against.
func (v *Verifier) VerifierPublicKey() []byte {
	return v.signer.PublicKey()
}
