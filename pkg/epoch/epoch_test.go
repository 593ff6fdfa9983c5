package epoch

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gns-foundation/trip-verifier/pkg/breadcrumb"
	"github.com/gns-foundation/trip-verifier/pkg/cellgrid"
	"github.com/gns-foundation/trip-verifier/pkg/identity"
)

func buildChain(t *testing.T, n int) (identity.ID, ed25519.PrivateKey, []*breadcrumb.Breadcrumb) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := identity.FromBytes(pub)
	require.NoError(t, err)

	chain := breadcrumb.NewChain(breadcrumb.DefaultValidatorConfig())
	var members []*breadcrumb.Breadcrumb
	var prevHash *breadcrumb.BlockHash
	ts := int64(1000)
	for i := 0; i < n; i++ {
		cell, err := cellgrid.New(cellgrid.MinResolution, int32(i), 0)
		require.NoError(t, err)
		b := &breadcrumb.Breadcrumb{
			Index:           uint64(i),
			Identity:        id,
			Timestamp:       ts,
			Cell:            cell,
			Resolution:      cellgrid.MinResolution,
			PredecessorHash: prevHash,
			Meta:            map[string]bool{},
		}
		require.NoError(t, b.Sign(priv))
		require.NoError(t, chain.Append(b))
		h, err := b.Hash()
		require.NoError(t, err)
		prevHash = &h
		members = append(members, b)
		ts += int64(breadcrumb.DefaultWarnInterval.Seconds()) + 1
	}
	return id, priv, members
}

func TestSealAndVerify(t *testing.T) {
	id, priv, members := buildChain(t, 5)
	e, err := Seal(id, members, priv)
	require.NoError(t, err)
	require.Equal(t, uint64(0), e.FirstIndex)
	require.Equal(t, uint64(4), e.LastIndex)

	ok, err := e.Verify(members)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyRejectsTamperedRoot(t *testing.T) {
	id, priv, members := buildChain(t, 5)
	e, err := Seal(id, members, priv)
	require.NoError(t, err)
	e.MerkleRoot[0] ^= 0xff

	ok, err := e.Verify(nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyRejectsMismatchedMembers(t *testing.T) {
	id, priv, members := buildChain(t, 5)
	e, err := Seal(id, members, priv)
	require.NoError(t, err)

	ok, err := e.Verify(members[:4])
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSealRejectsEmptyMembers(t *testing.T) {
	_, priv, _ := buildChain(t, 1)
	_, err := Seal(identity.ID{}, nil, priv)
	require.ErrorIs(t, err, ErrEmptyMembers)
}

func TestProveAndVerifyInclusion(t *testing.T) {
	id, priv, members := buildChain(t, 9)
	e, err := Seal(id, members, priv)
	require.NoError(t, err)

	target := members[3]
	proof, err := e.ProveInclusion(members, target)
	require.NoError(t, err)
	require.Equal(t, 3, proof.LeafIndex)

	leafHash, err := target.Hash()
	require.NoError(t, err)

	ok, err := e.VerifyInclusion(leafHash, proof)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyInclusionRejectsWrongLeaf(t *testing.T) {
	id, priv, members := buildChain(t, 9)
	e, err := Seal(id, members, priv)
	require.NoError(t, err)

	proof, err := e.ProveInclusion(members, members[3])
	require.NoError(t, err)

	otherHash, err := members[4].Hash()
	require.NoError(t, err)

	ok, err := e.VerifyInclusion(otherHash, proof)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProveInclusionRejectsNonMember(t *testing.T) {
	id, priv, members := buildChain(t, 5)
	e, err := Seal(id, members[:4], priv)
	require.NoError(t, err)

	_, err = e.ProveInclusion(members[:4], members[4])
	require.Error(t, err)
}
