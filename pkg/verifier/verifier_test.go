package verifier

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gns-foundation/trip-verifier/pkg/breadcrumb"
	"github.com/gns-foundation/trip-verifier/pkg/cellgrid"
	"github.com/gns-foundation/trip-verifier/pkg/certificate"
	"github.com/gns-foundation/trip-verifier/pkg/challenge"
	"github.com/gns-foundation/trip-verifier/pkg/identity"
)

func testIdentity(t *testing.T) (identity.ID, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := identity.FromBytes(pub)
	require.NoError(t, err)
	return id, priv
}

// buildChain constructs n sequential, validly-signed breadcrumbs for id,
// cycling through a ring of 24 cells with a 6-minute cadence so no cell
// repeats consecutively and the per-cell cap is never exceeded.
func buildChain(t *testing.T, id identity.ID, priv ed25519.PrivateKey, n int) []byte {
	t.Helper()
	var raw []byte
	var prevHash *breadcrumb.BlockHash
	base := int64(1_700_000_000)

	for i := 0; i < n; i++ {
		ring := int32(i % 24)
		cell, err := cellgrid.New(cellgrid.MinResolution, ring, -ring)
		require.NoError(t, err)

		b := &breadcrumb.Breadcrumb{
			Index:           uint64(i),
			Identity:        id,
			Timestamp:       base + int64(i)*360,
			Cell:            cell,
			Resolution:      cellgrid.MinResolution,
			PredecessorHash: prevHash,
			Meta:            map[string]bool{},
		}
		require.NoError(t, b.Sign(priv))

		enc, err := b.Encode()
		require.NoError(t, err)
		raw = append(raw, enc...)

		h, err := b.Hash()
		require.NoError(t, err)
		prevHash = &h
	}
	return raw
}

func newTestVerifier(t *testing.T) (*Verifier, identity.ID, ed25519.PrivateKey) {
	t.Helper()
	id, attesterPriv := testIdentity(t)
	reg := identity.NewRegistry(nil, true)
	_, verifierPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	v := New(DefaultPolicy(), reg, verifierPriv)
	return v, id, attesterPriv
}

func TestSubmitAcceptsValidChain(t *testing.T) {
	v, id, priv := newTestVerifier(t)
	raw := buildChain(t, id, priv, 80)

	result, err := v.Submit(context.Background(), raw, nil)
	require.NoError(t, err)
	require.Equal(t, 80, result.Accepted)
	require.Equal(t, uint64(79), result.HeadIndex)
}

func TestSubmitRejectsUntrustedIdentity(t *testing.T) {
	id, priv := testIdentity(t)
	reg := identity.NewRegistry(nil, false) // trusts nobody
	_, verifierPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	v := New(DefaultPolicy(), reg, verifierPriv)

	raw := buildChain(t, id, priv, 5)
	_, err = v.Submit(context.Background(), raw, nil)
	require.ErrorIs(t, err, ErrUntrustedIdentity)
}

func TestSubmitRejectsTamperedSignature(t *testing.T) {
	v, id, priv := newTestVerifier(t)
	raw := buildChain(t, id, priv, 3)
	raw[len(raw)-1] ^= 0xFF // corrupt the last encoded byte (signature tail)

	_, err := v.Submit(context.Background(), raw, nil)
	require.Error(t, err)
}

func TestChallengeAndCertificateFlow(t *testing.T) {
	v, id, priv := newTestVerifier(t)
	raw := buildChain(t, id, priv, 80)
	_, err := v.Submit(context.Background(), raw, nil)
	require.NoError(t, err)

	issued, err := v.RequestChallenge(context.Background(), id)
	require.NoError(t, err)

	st, ok := v.states.get(id)
	require.True(t, ok)
	st.mu.Lock()
	headHash, _ := st.chain.HeadHash()
	headIdx, _ := st.chain.HeadIndex()
	st.mu.Unlock()

	responseTS := time.Now().Unix()
	msg, err := challenge.EncodeResponseSignable(issued.Nonce, headHash, responseTS, headIdx)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, msg)

	resp := challenge.Response{
		Nonce:             issued.Nonce,
		ChainHeadHash:     headHash,
		ResponseTimestamp: responseTS,
		CurrentIndex:      headIdx,
		Signature:         sig,
	}

	_, err = v.CompleteChallenge(context.Background(), resp, id.PublicKey())
	require.NoError(t, err)

	cert, err := v.IssueCertificate(context.Background(), issued.Nonce)
	require.NoError(t, err)
	require.Equal(t, id, cert.Identity)

	ok2, err := certificate.Verify(cert, v.VerifierPublicKey())
	require.NoError(t, err)
	require.True(t, ok2)

	// The nonce is single-use: issuing again must fail.
	_, err = v.IssueCertificate(context.Background(), issued.Nonce)
	require.Error(t, err)
}

func TestCompleteChallengeRejectsBadSignature(t *testing.T) {
	v, id, attesterPriv := newTestVerifier(t)
	_, otherPriv := testIdentity(t)
	raw := buildChain(t, id, otherPriv, 0) // unused; build real chain below
	_ = raw

	realRaw := buildChain(t, id, attesterPriv, 70)
	_, err := v.Submit(context.Background(), realRaw, nil)
	require.NoError(t, err)

	issued, err := v.RequestChallenge(context.Background(), id)
	require.NoError(t, err)

	st, _ := v.states.get(id)
	st.mu.Lock()
	headHash, _ := st.chain.HeadHash()
	headIdx, _ := st.chain.HeadIndex()
	st.mu.Unlock()

	responseTS := time.Now().Unix()
	msg, err := challenge.EncodeResponseSignable(issued.Nonce, headHash, responseTS, headIdx)
	require.NoError(t, err)
	wrongSig := ed25519.Sign(otherPriv, msg) // signed by the wrong key

	resp := challenge.Response{
		Nonce:             issued.Nonce,
		ChainHeadHash:     headHash,
		ResponseTimestamp: responseTS,
		CurrentIndex:      headIdx,
		Signature:         wrongSig,
	}
	_, err = v.CompleteChallenge(context.Background(), resp, id.PublicKey())
	require.Error(t, err)
}
