// Copyright 2026 TRIP Verifier Project
//
// Identity - the 32-byte public key that anchors a breadcrumb chain, and the
// process-global registry of identities the Verifier chooses to serve.

package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidKeySize is returned when a key is not exactly ed25519.PublicKeySize bytes.
var ErrInvalidKeySize = errors.New("identity: public key must be 32 bytes")

// ID is the 32-byte Ed25519 public key anchoring a chain. It is immutable
// once constructed.
type ID [ed25519.PublicKeySize]byte

// FromBytes validates and constructs an ID from a raw public key.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != ed25519.PublicKeySize {
		return id, fmt.Errorf("%w: got %d", ErrInvalidKeySize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// PublicKey returns the ed25519.PublicKey view of the identity.
func (id ID) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(id[:])
}

// String returns the hex encoding of the identity.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Registry is the process-wide set of trusted identity public keys the
// Verifier chooses to serve. Per the specification's "Global state" design
// note, it is initialized once at startup and reloaded only through an
// explicit administrative transition — never a background poll.
type Registry struct {
	mu      sync.RWMutex
	trusted map[ID]struct{}
	openAll bool
}

// NewRegistry constructs a registry trusting exactly the given identities.
// An empty set with openAll=true trusts any identity (policy choice for
// deployments that don't maintain an allowlist).
func NewRegistry(trusted []ID, openAll bool) *Registry {
	r := &Registry{
		trusted: make(map[ID]struct{}, len(trusted)),
		openAll: openAll,
	}
	for _, id := range trusted {
		r.trusted[id] = struct{}{}
	}
	return r
}

// IsTrusted reports whether the registry currently serves the given identity.
func (r *Registry) IsTrusted(id ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.openAll {
		return true
	}
	_, ok := r.trusted[id]
	return ok
}

// Reload atomically replaces the trusted set. This is the only supported
// mutation path — there is no background refresh.
func (r *Registry) Reload(trusted []ID, openAll bool) {
	m := make(map[ID]struct{}, len(trusted))
	for _, id := range trusted {
		m[id] = struct{}{}
	}
	r.mu.Lock()
	r.trusted = m
	r.openAll = openAll
	r.mu.Unlock()
}

// Count returns the number of explicitly trusted identities; openAll does
// not change the count.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trusted)
}
