// Copyright 2026 TRIP Verifier Project
//
// Challenge side channel: wraps pkg/challenge.Coordinator with the
// Verifier's own nonce generation, chain-head lookup, and persistence.

package verifier

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/gns-foundation/trip-verifier/pkg/challenge"
	"github.com/gns-foundation/trip-verifier/pkg/database"
	"github.com/gns-foundation/trip-verifier/pkg/identity"
)

// IssuedChallenge is what a relying party receives after RequestChallenge:
// a nonce the Attester must sign a response over before deadline.
type IssuedChallenge struct {
	Nonce    challenge.Nonce
	Deadline time.Time
}

// RequestChallenge opens a new liveness challenge for id and immediately
// delivers it (REQUESTED -> CHALLENGED), since the Verifier has no
// separate delivery transport of its own to wait on.
func (v *Verifier) RequestChallenge(ctx context.Context, id identity.ID) (*IssuedChallenge, error) {
	if v.registry != nil && !v.registry.IsTrusted(id) {
		return nil, ErrUntrustedIdentity
	}

	var nonce challenge.Nonce
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("verifier: generating challenge nonce: %w", err)
	}

	if _, err := v.challenges.Request(id, nonce); err != nil {
		return nil, err
	}

	now := time.Now()
	deadline := now.Add(v.policy.ChallengeDeadline)
	if err := v.challenges.Challenge(nonce, now.Unix(), deadline); err != nil {
		return nil, err
	}
	if v.metrics != nil {
		v.metrics.ChallengesIssued.Inc()
	}
	if v.repos != nil {
		v.persistChallenge(ctx, id, nonce, challenge.StateChallenged, now, now.Unix(), deadline)
	}

	return &IssuedChallenge{Nonce: nonce, Deadline: deadline}, nil
}

// CompleteChallenge validates the Attester's signed response against the
// identity's current chain head and, on success, transitions the
// challenge to RESPONDED.
func (v *Verifier) CompleteChallenge(ctx context.Context, resp challenge.Response, attesterKey ed25519.PublicKey) (*challenge.ChallengeState, error) {
	cs, ok := v.challenges.Get(resp.Nonce)
	if !ok {
		return nil, challenge.ErrUnknownNonce
	}

	st, ok := v.states.get(cs.Identity)
	if !ok {
		return nil, fmt.Errorf("verifier: no chain state for challenged identity")
	}
	st.mu.Lock()
	headHash, _ := st.chain.HeadHash()
	headIdx, _ := st.chain.HeadIndex()
	st.mu.Unlock()

	view := challenge.ChainView{HeadHash: headHash, HeadIndex: headIdx}
	result, err := v.challenges.Respond(resp, attesterKey, view, time.Now())
	if err != nil {
		if v.metrics != nil {
			v.metrics.ChallengesFailed.WithLabelValues(failureReason(err)).Inc()
		}
		return nil, err
	}

	if v.metrics != nil {
		v.metrics.ChallengesPassed.Inc()
	}
	if v.repos != nil {
		v.persistChallenge(ctx, cs.Identity, resp.Nonce, challenge.StateResponded, cs.RequestedAt, cs.ChallengeTimestamp, cs.Deadline)
	}
	return result, nil
}

func failureReason(err error) string {
	switch {
	case err == challenge.ErrUnknownNonce:
		return "unknown_nonce"
	case err == challenge.ErrNotChallenged:
		return "not_challenged"
	default:
		return "response_invalid"
	}
}

func (v *Verifier) persistChallenge(ctx context.Context, id identity.ID, nonce challenge.Nonce, state challenge.State, requestedAt time.Time, challengeTimestamp int64, deadline time.Time) {
	rec := &database.ChallengeRecord{
		Nonce:       nonce[:],
		Identity:    id[:],
		State:       string(state),
		RequestedAt: requestedAt,
	}
	if challengeTimestamp != 0 {
		rec.ChallengeTimestamp.Int64 = challengeTimestamp
		rec.ChallengeTimestamp.Valid = true
	}
	if !deadline.IsZero() {
		rec.Deadline.Time = deadline
		rec.Deadline.Valid = true
	}
	if err := v.repos.Challenges.Upsert(ctx, rec); err != nil {
		v.logger.Printf("failed to persist challenge %x: %v", nonce, err)
	}
}
