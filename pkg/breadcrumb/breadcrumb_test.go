package breadcrumb

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gns-foundation/trip-verifier/pkg/canon"
	"github.com/gns-foundation/trip-verifier/pkg/cellgrid"
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

func newCrumb(t *testing.T, id identity.ID, index uint64, ts int64, q, r int32, prev *BlockHash) *Breadcrumb {
	t.Helper()
	cell, err := cellgrid.New(cellgrid.MinResolution, q, r)
	require.NoError(t, err)
	return &Breadcrumb{
		Index:           index,
		Identity:        id,
		Timestamp:       ts,
		Cell:            cell,
		Resolution:      cellgrid.MinResolution,
		PredecessorHash: prev,
		Meta:            map[string]bool{},
	}
}

func TestBreadcrumbRoundTrip(t *testing.T) {
	id, priv := testIdentity(t)
	b := newCrumb(t, id, 0, 1000, 1, -1, nil)
	require.NoError(t, b.Sign(priv))

	enc, err := b.Encode()
	require.NoError(t, err)

	parsedEntries, err := canon.Decode(enc)
	require.NoError(t, err)
	decoded, err := Decode(parsedEntries)
	require.NoError(t, err)
	require.Equal(t, b.Index, decoded.Index)
	require.Equal(t, b.Identity, decoded.Identity)
	require.Equal(t, b.Cell, decoded.Cell)

	ok, err := decoded.VerifySignature()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDecodeAllMultiple(t *testing.T) {
	id, priv := testIdentity(t)
	b0 := newCrumb(t, id, 0, 1000, 0, 0, nil)
	require.NoError(t, b0.Sign(priv))
	h0, err := b0.Hash()
	require.NoError(t, err)

	b1 := newCrumb(t, id, 1, 1400, 1, 0, &h0)
	require.NoError(t, b1.Sign(priv))

	enc0, err := b0.Encode()
	require.NoError(t, err)
	enc1, err := b1.Encode()
	require.NoError(t, err)

	all, err := DecodeAll(append(enc0, enc1...))
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, uint64(0), all[0].Index)
	require.Equal(t, uint64(1), all[1].Index)
}

func TestDecodeAllRejectsMalformed(t *testing.T) {
	_, err := DecodeAll([]byte{0xff, 0xff, 0xff})
	require.ErrorIs(t, err, ErrMalformedEncoding)
}

func TestSignatureTamperDetected(t *testing.T) {
	id, priv := testIdentity(t)
	b := newCrumb(t, id, 0, 1000, 0, 0, nil)
	require.NoError(t, b.Sign(priv))
	b.Timestamp++ // mutate signed content after signing

	ok, err := b.VerifySignature()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestChainHappyPath(t *testing.T) {
	id, priv := testIdentity(t)
	c := NewChain(DefaultValidatorConfig())

	b0 := newCrumb(t, id, 0, 1000, 0, 0, nil)
	require.NoError(t, b0.Sign(priv))
	require.NoError(t, c.Append(b0))

	h0, err := b0.Hash()
	require.NoError(t, err)
	b1 := newCrumb(t, id, 1, 1000+int64(DefaultWarnInterval.Seconds())+1, 1, 0, &h0)
	require.NoError(t, b1.Sign(priv))
	require.NoError(t, c.Append(b1))
	require.Empty(t, c.Warnings)

	head, ok := c.HeadIndex()
	require.True(t, ok)
	require.Equal(t, uint64(1), head)
}

func TestChainEmitsShortIntervalWarning(t *testing.T) {
	id, priv := testIdentity(t)
	c := NewChain(DefaultValidatorConfig())

	b0 := newCrumb(t, id, 0, 1000, 0, 0, nil)
	require.NoError(t, b0.Sign(priv))
	require.NoError(t, c.Append(b0))

	h0, err := b0.Hash()
	require.NoError(t, err)
	b1 := newCrumb(t, id, 1, 1000+int64(DefaultMinInterval.Seconds())+1, 1, 0, &h0)
	require.NoError(t, b1.Sign(priv))
	require.NoError(t, c.Append(b1))
	require.Len(t, c.Warnings, 1)
}

func TestChainExplorationFlagSuppressesWarning(t *testing.T) {
	id, priv := testIdentity(t)
	c := NewChain(DefaultValidatorConfig())

	b0 := newCrumb(t, id, 0, 1000, 0, 0, nil)
	require.NoError(t, b0.Sign(priv))
	require.NoError(t, c.Append(b0))

	h0, err := b0.Hash()
	require.NoError(t, err)
	b1 := newCrumb(t, id, 1, 1000+int64(DefaultMinInterval.Seconds())+1, 1, 0, &h0)
	b1.Meta[ExplorationFlag] = true
	require.NoError(t, b1.Sign(priv))
	require.NoError(t, c.Append(b1))
	require.Empty(t, c.Warnings)
}

func TestChainRejectsIndexGap(t *testing.T) {
	id, priv := testIdentity(t)
	c := NewChain(DefaultValidatorConfig())
	b1 := newCrumb(t, id, 1, 1000, 0, 0, nil)
	require.NoError(t, b1.Sign(priv))
	err := c.Append(b1)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, KindIndexGap, ve.Kind)
}

func TestChainRejectsInvalidSignature(t *testing.T) {
	id, priv := testIdentity(t)
	c := NewChain(DefaultValidatorConfig())
	b0 := newCrumb(t, id, 0, 1000, 0, 0, nil)
	require.NoError(t, b0.Sign(priv))
	b0.Signature[0] ^= 0xff
	err := c.Append(b0)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, KindInvalidSignature, ve.Kind)
}

func TestChainRejectsTimestampRegress(t *testing.T) {
	id, priv := testIdentity(t)
	c := NewChain(DefaultValidatorConfig())
	b0 := newCrumb(t, id, 0, 2000, 0, 0, nil)
	require.NoError(t, b0.Sign(priv))
	require.NoError(t, c.Append(b0))

	h0, _ := b0.Hash()
	b1 := newCrumb(t, id, 1, 1000, 1, 0, &h0)
	require.NoError(t, b1.Sign(priv))
	err := c.Append(b1)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, KindTimestampRegress, ve.Kind)
}

func TestChainRejectsBrokenLink(t *testing.T) {
	id, priv := testIdentity(t)
	c := NewChain(DefaultValidatorConfig())
	b0 := newCrumb(t, id, 0, 1000, 0, 0, nil)
	require.NoError(t, b0.Sign(priv))
	require.NoError(t, c.Append(b0))

	var wrongHash BlockHash
	b1 := newCrumb(t, id, 1, 2000, 1, 0, &wrongHash)
	require.NoError(t, b1.Sign(priv))
	err := c.Append(b1)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, KindBrokenLink, ve.Kind)
}

func TestChainRejectsDuplicateCell(t *testing.T) {
	id, priv := testIdentity(t)
	c := NewChain(DefaultValidatorConfig())
	b0 := newCrumb(t, id, 0, 1000, 0, 0, nil)
	require.NoError(t, b0.Sign(priv))
	require.NoError(t, c.Append(b0))

	h0, _ := b0.Hash()
	b1 := newCrumb(t, id, 1, 1000+int64(DefaultWarnInterval.Seconds())+1, 0, 0, &h0)
	require.NoError(t, b1.Sign(priv))
	err := c.Append(b1)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, KindDuplicateCell, ve.Kind)
}

func TestChainRejectsIntervalTooShort(t *testing.T) {
	id, priv := testIdentity(t)
	c := NewChain(DefaultValidatorConfig())
	b0 := newCrumb(t, id, 0, 1000, 0, 0, nil)
	require.NoError(t, b0.Sign(priv))
	require.NoError(t, c.Append(b0))

	h0, _ := b0.Hash()
	b1 := newCrumb(t, id, 1, 1000+60, 1, 0, &h0)
	require.NoError(t, b1.Sign(priv))
	err := c.Append(b1)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, KindIntervalTooShort, ve.Kind)
}

func TestChainRejectsCellCapExceeded(t *testing.T) {
	id, priv := testIdentity(t)
	cfg := DefaultValidatorConfig()
	cfg.PerCellCap = 1
	c := NewChain(cfg)

	b0 := newCrumb(t, id, 0, 1000, 0, 0, nil)
	require.NoError(t, b0.Sign(priv))
	require.NoError(t, c.Append(b0))

	h0, _ := b0.Hash()
	b1 := newCrumb(t, id, 1, 1000+int64(DefaultWarnInterval.Seconds())+1, 1, 0, &h0)
	require.NoError(t, b1.Sign(priv))
	require.NoError(t, c.Append(b1))

	h1, _ := b1.Hash()
	b2 := newCrumb(t, id, 2, int64(1000+2*(DefaultWarnInterval.Seconds()+1)), 0, 0, &h1)
	require.NoError(t, b2.Sign(priv))
	err := c.Append(b2)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, KindCellCapExceeded, ve.Kind)
}
