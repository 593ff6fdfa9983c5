// Copyright 2026 TRIP Verifier Project
//
// Criticality evaluation, epoch sealing, and persistence glue for the
// Verifier pipeline. Split from verifier.go to keep Submit's control flow
// readable; grounded on the same proof-cycle-orchestrator shape as
// verifier.go.

package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/gns-foundation/trip-verifier/pkg/criticality"
	"github.com/gns-foundation/trip-verifier/pkg/database"
	"github.com/gns-foundation/trip-verifier/pkg/epoch"
	"github.com/gns-foundation/trip-verifier/pkg/hamiltonian"
	"github.com/gns-foundation/trip-verifier/pkg/identity"
)

// evaluateLocked assembles a criticality.Verdict from the identity's
// current derived state. Caller must hold st.mu.
func (v *Verifier) evaluateLocked(st *identityState) criticality.Verdict {
	n := 0
	var alpha, r2, beta, kappa, confidence float64
	if st.haveSpectral {
		n = len(displacementMagnitudes(st))
		alpha = st.spectralResult.Alpha
		r2 = st.spectralResult.R2
		confidence = st.spectralResult.Confidence
	}
	if st.haveHeavyTail {
		beta = st.heavyTailFit.Beta
		kappa = st.heavyTailFit.Kappa
	}

	alertLevel := criticality.AlertNominal
	if st.alertLevel != "" {
		alertLevel = criticality.AlertLevel(st.alertLevel)
	}

	in := criticality.Inputs{
		N:                     n,
		Alpha:                 alpha,
		R2:                    r2,
		Beta:                  beta,
		Kappa:                 kappa,
		Predictability:        st.predictability,
		CriticalityConfidence: confidence,
		BreadcrumbCount:       st.chain.TotalCount(),
		UniqueCells:           st.chain.UniqueCells(),
		DaysSinceFirst:        time.Since(st.firstSeenAt).Hours() / 24,
		ChainIntegrity:        st.chainIntegrity,
		AlertLevel:            alertLevel,
	}
	return criticality.Evaluate(in)
}

// sealEpoch verifies an Attester-sealed epoch against the breadcrumbs
// buffered since the prior boundary, then clears the buffer and rebuilds
// the Mobility Profiler's Markov matrix and predictability score. Caller
// must hold st.mu.
func (v *Verifier) sealEpoch(ctx context.Context, st *identityState, sealed *epoch.Epoch) error {
	if len(st.epochMembers) == 0 {
		return fmt.Errorf("verifier: no buffered breadcrumbs to seal an epoch over")
	}
	ok, err := sealed.Verify(st.epochMembers)
	if err != nil {
		return fmt.Errorf("verifier: epoch verification: %w", err)
	}
	if !ok {
		return fmt.Errorf("verifier: epoch signature or Merkle root does not match")
	}

	pred, _ := st.mobility.RebuildEpoch()
	st.predictability = pred
	st.epochCount++
	st.epochMembers = nil

	if v.metrics != nil {
		v.metrics.EpochsSealed.Inc()
	}
	if v.repos != nil {
		rec := &database.EpochRecord{
			Identity:       st.id[:],
			FirstIndex:     sealed.FirstIndex,
			LastIndex:      sealed.LastIndex,
			FirstTimestamp: sealed.FirstTimestamp,
			LastTimestamp:  sealed.LastTimestamp,
			MerkleRoot:     sealed.MerkleRoot[:],
			Signature:      sealed.Signature[:],
		}
		if _, err := v.repos.Epochs.Create(ctx, rec); err != nil {
			v.logger.Printf("failed to persist epoch for %s: %v", st.id, err)
		}
	}
	return nil
}

// persistChainHeadLocked upserts the identity's durable chain-head
// snapshot. The Verifier only writes this record; it does not read it back
// at startup, so in-memory chain state still starts empty after a restart.
// Caller must hold st.mu.
func (v *Verifier) persistChainHeadLocked(ctx context.Context, st *identityState) {
	headIdx, _ := st.chain.HeadIndex()
	headHash, _ := st.chain.HeadHash()
	headCell, _ := st.chain.HeadCell()

	rec := &database.ChainHeadRecord{
		Identity:      st.id[:],
		HeadIndex:     headIdx,
		HeadHash:      headHash[:],
		HeadTimestamp: 0,
		HeadCell:      headCell,
		TotalCount:    uint64(st.chain.TotalCount()),
		UniqueCells:   uint64(st.chain.UniqueCells()),
		FirstSeenAt:   st.firstSeenAt,
	}
	if ts, ok := st.chain.HeadTimestamp(); ok {
		rec.HeadTimestamp = ts
	}
	if err := v.repos.Chains.Upsert(ctx, rec); err != nil {
		v.logger.Printf("failed to persist chain head for %s: %v", st.id, err)
	}
}

// AlertLevel reports the identity's most recently computed Hamiltonian
// alert band, or NOMINAL if none has been computed yet.
func (v *Verifier) AlertLevel(id identity.ID) hamiltonian.Band {
	st, ok := v.states.get(id)
	if !ok {
		return hamiltonian.BandNominal
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.alertLevel == "" {
		return hamiltonian.BandNominal
	}
	return st.alertLevel
}
