// Copyright 2026 TRIP Verifier Project
//
// Epoch - §3 "Epoch": a sealed, immutable group of consecutive breadcrumbs
// (default 100) with a Merkle root over their block hashes. Sealing and
// verification is built directly on pkg/merkle.Tree (adapted here for
// breadcrumb block hashes rather than anchor-batch transaction hashes),
// and the seal's signature uses the same canonical-encode-then-Ed25519-
// sign discipline as pkg/breadcrumb. ProveInclusion/VerifyInclusion let a
// relying party confirm a single breadcrumb belongs to a sealed epoch
// without holding every other member, using pkg/merkle's own inclusion
// proof path rather than reproducing one here.

package epoch

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/gns-foundation/trip-verifier/pkg/breadcrumb"
	"github.com/gns-foundation/trip-verifier/pkg/canon"
	"github.com/gns-foundation/trip-verifier/pkg/identity"
	"github.com/gns-foundation/trip-verifier/pkg/merkle"
)

// DefaultSize is the default number of consecutive breadcrumbs per epoch.
const DefaultSize = 100

// ErrEmptyMembers is returned when Seal is given no block hashes.
var ErrEmptyMembers = errors.New("epoch: cannot seal an empty member set")

const (
	fieldFirstIndex     = 0
	fieldLastIndex      = 1
	fieldFirstTimestamp = 2
	fieldLastTimestamp  = 3
	fieldMerkleRoot     = 4
	fieldIdentity       = 5
	fieldSignature      = 6
)

// Epoch is a sealed, immutable group of breadcrumbs.
type Epoch struct {
	FirstIndex     uint64
	LastIndex      uint64
	FirstTimestamp int64
	LastTimestamp  int64
	MerkleRoot     [32]byte
	Identity       identity.ID
	Signature      [ed25519.SignatureSize]byte
}

func (e *Epoch) signableEntries() []canon.Entry {
	return []canon.Entry{
		{Key: fieldFirstIndex, Value: canon.Uint(e.FirstIndex)},
		{Key: fieldLastIndex, Value: canon.Uint(e.LastIndex)},
		{Key: fieldFirstTimestamp, Value: canon.Uint(uint64(e.FirstTimestamp))},
		{Key: fieldLastTimestamp, Value: canon.Uint(uint64(e.LastTimestamp))},
		{Key: fieldMerkleRoot, Value: canon.Bytes(e.MerkleRoot[:])},
		{Key: fieldIdentity, Value: canon.Bytes(e.Identity[:])},
	}
}

// EncodeSignable returns the canonical encoding of every field but the
// signature.
func (e *Epoch) EncodeSignable() ([]byte, error) {
	return canon.Encode(e.signableEntries())
}

// Seal builds the Merkle root over members' block hashes (in their natural
// chain order) and signs the resulting epoch with priv, which must
// correspond to identity id.
func Seal(id identity.ID, members []*breadcrumb.Breadcrumb, priv ed25519.PrivateKey) (*Epoch, error) {
	if len(members) == 0 {
		return nil, ErrEmptyMembers
	}

	leaves := make([][]byte, len(members))
	for i, b := range members {
		h, err := b.Hash()
		if err != nil {
			return nil, fmt.Errorf("epoch: hashing member %d: %w", i, err)
		}
		leaf := h
		leaves[i] = leaf[:]
	}

	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, fmt.Errorf("epoch: %w", err)
	}

	e := &Epoch{
		FirstIndex:     members[0].Index,
		LastIndex:      members[len(members)-1].Index,
		FirstTimestamp: members[0].Timestamp,
		LastTimestamp:  members[len(members)-1].Timestamp,
		Identity:       id,
	}
	copy(e.MerkleRoot[:], tree.Root())

	msg, err := e.EncodeSignable()
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(priv, msg)
	copy(e.Signature[:], sig)
	return e, nil
}

// Verify checks the epoch's signature against its own identity and,
// if members is non-nil, recomputes the Merkle root over members' block
// hashes and checks it matches.
func (e *Epoch) Verify(members []*breadcrumb.Breadcrumb) (bool, error) {
	msg, err := e.EncodeSignable()
	if err != nil {
		return false, err
	}
	if !ed25519.Verify(e.Identity.PublicKey(), msg, e.Signature[:]) {
		return false, nil
	}
	if members == nil {
		return true, nil
	}

	leaves := make([][]byte, len(members))
	for i, b := range members {
		h, err := b.Hash()
		if err != nil {
			return false, fmt.Errorf("epoch: hashing member %d: %w", i, err)
		}
		leaf := h
		leaves[i] = leaf[:]
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return false, fmt.Errorf("epoch: %w", err)
	}
	root := tree.Root()
	if len(root) != len(e.MerkleRoot) {
		return false, nil
	}
	for i := range root {
		if root[i] != e.MerkleRoot[i] {
			return false, nil
		}
	}
	return true, nil
}

// ProveInclusion rebuilds the epoch's Merkle tree over members (which must
// be the same set and order Seal was given) and returns an inclusion proof
// for target, letting a relying party confirm target belongs to this epoch
// without holding every other member.
func (e *Epoch) ProveInclusion(members []*breadcrumb.Breadcrumb, target *breadcrumb.Breadcrumb) (*merkle.InclusionProof, error) {
	leaves := make([][]byte, len(members))
	targetIdx := -1
	for i, b := range members {
		h, err := b.Hash()
		if err != nil {
			return nil, fmt.Errorf("epoch: hashing member %d: %w", i, err)
		}
		leaf := h
		leaves[i] = leaf[:]
		if b.Index == target.Index && b.Identity == target.Identity {
			targetIdx = i
		}
	}
	if targetIdx == -1 {
		return nil, fmt.Errorf("epoch: target breadcrumb is not a member of this epoch")
	}

	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, fmt.Errorf("epoch: %w", err)
	}
	if tree.RootHex() != hex.EncodeToString(e.MerkleRoot[:]) {
		return nil, fmt.Errorf("epoch: members do not reproduce the sealed Merkle root")
	}

	return tree.GenerateProof(targetIdx)
}

// VerifyInclusion checks proof against this epoch's sealed Merkle root for
// the breadcrumb whose block hash is leafHash.
func (e *Epoch) VerifyInclusion(leafHash [32]byte, proof *merkle.InclusionProof) (bool, error) {
	return merkle.VerifyProof(leafHash[:], proof, e.MerkleRoot[:])
}
