package challenge

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gns-foundation/trip-verifier/pkg/identity"
)

func testID(t *testing.T) (identity.ID, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := identity.FromBytes(pub)
	require.NoError(t, err)
	return id, priv
}

func TestRequestRejectsNonceReuse(t *testing.T) {
	id, _ := testID(t)
	c := NewCoordinator(nil)
	var nonce Nonce
	_, err := c.Request(id, nonce)
	require.NoError(t, err)
	_, err = c.Request(id, nonce)
	require.ErrorIs(t, err, ErrNonceReuse)
}

func TestHappyPathRespond(t *testing.T) {
	id, priv := testID(t)
	c := NewCoordinator(nil)
	var nonce Nonce
	nonce[0] = 1

	_, err := c.Request(id, nonce)
	require.NoError(t, err)

	challengeTS := int64(1000)
	deadline := time.Unix(2000, 0)
	require.NoError(t, c.Challenge(nonce, challengeTS, deadline))

	view := ChainView{HeadHash: [32]byte{1, 2, 3}, HeadIndex: 5}
	respTS := int64(1500)
	msg, err := EncodeResponseSignable(nonce, view.HeadHash, respTS, view.HeadIndex)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, msg)

	resp := Response{
		Nonce:             nonce,
		ChainHeadHash:     view.HeadHash,
		ResponseTimestamp: respTS,
		CurrentIndex:      view.HeadIndex,
		Signature:         sig,
	}
	cs, err := c.Respond(resp, priv.Public().(ed25519.PublicKey), view, time.Unix(respTS, 0))
	require.NoError(t, err)
	require.Equal(t, StateResponded, cs.State)
}

func TestRespondRejectsHeadHashMismatch(t *testing.T) {
	id, priv := testID(t)
	c := NewCoordinator(nil)
	var nonce Nonce
	nonce[0] = 2
	_, err := c.Request(id, nonce)
	require.NoError(t, err)
	require.NoError(t, c.Challenge(nonce, 1000, time.Unix(2000, 0)))

	view := ChainView{HeadHash: [32]byte{1}, HeadIndex: 0}
	wrongHash := [32]byte{9, 9, 9}
	msg, err := EncodeResponseSignable(nonce, wrongHash, 1500, 0)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, msg)

	resp := Response{Nonce: nonce, ChainHeadHash: wrongHash, ResponseTimestamp: 1500, CurrentIndex: 0, Signature: sig}
	_, err = c.Respond(resp, priv.Public().(ed25519.PublicKey), view, time.Unix(1500, 0))
	require.ErrorIs(t, err, ErrResponseInvalid)
}

func TestRespondRejectsAfterDeadline(t *testing.T) {
	id, priv := testID(t)
	c := NewCoordinator(nil)
	var nonce Nonce
	nonce[0] = 3
	_, err := c.Request(id, nonce)
	require.NoError(t, err)
	require.NoError(t, c.Challenge(nonce, 1000, time.Unix(2000, 0)))

	view := ChainView{HeadHash: [32]byte{1}, HeadIndex: 0}
	msg, err := EncodeResponseSignable(nonce, view.HeadHash, 2500, 0)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, msg)
	resp := Response{Nonce: nonce, ChainHeadHash: view.HeadHash, ResponseTimestamp: 2500, CurrentIndex: 0, Signature: sig}

	_, err = c.Respond(resp, priv.Public().(ed25519.PublicKey), view, time.Unix(2500, 0))
	require.Error(t, err)
	cs, ok := c.Get(nonce)
	require.True(t, ok)
	require.Equal(t, StateTimedOut, cs.State)
}

func TestTimeoutFreesSlot(t *testing.T) {
	id, _ := testID(t)
	c := NewCoordinator(nil)
	var nonce Nonce
	nonce[0] = 4
	_, err := c.Request(id, nonce)
	require.NoError(t, err)
	require.NoError(t, c.Challenge(nonce, 1000, time.Unix(1100, 0)))

	require.True(t, c.Timeout(nonce, time.Unix(1200, 0)))
	_, ok := c.Get(nonce)
	require.False(t, ok)
}

func TestCancelFreesSlot(t *testing.T) {
	id, _ := testID(t)
	c := NewCoordinator(nil)
	var nonce Nonce
	nonce[0] = 5
	_, err := c.Request(id, nonce)
	require.NoError(t, err)

	require.NoError(t, c.Cancel(nonce))
	_, ok := c.Get(nonce)
	require.False(t, ok)
}

func TestRespondRejectsUnknownNonce(t *testing.T) {
	c := NewCoordinator(nil)
	var nonce Nonce
	_, err := c.Respond(Response{Nonce: nonce}, nil, ChainView{}, time.Now())
	require.ErrorIs(t, err, ErrUnknownNonce)
}
