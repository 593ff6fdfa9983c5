// Copyright 2026 TRIP Verifier Project
//
// Per-identity pipeline state: everything the Verifier accumulates across
// a chain's breadcrumbs between requests. Grounded on pkg/execution's
// proof-cycle orchestrator, which keeps one long-lived struct per active
// cycle behind a map guarded by a single mutex; here the map is keyed by
// identity instead of cycle ID, and each entry owns its own lock so two
// identities never block each other.

package verifier

import (
	"math"
	"sync"
	"time"

	"github.com/gns-foundation/trip-verifier/pkg/breadcrumb"
	"github.com/gns-foundation/trip-verifier/pkg/displacement"
	"github.com/gns-foundation/trip-verifier/pkg/hamiltonian"
	"github.com/gns-foundation/trip-verifier/pkg/heavytail"
	"github.com/gns-foundation/trip-verifier/pkg/identity"
	"github.com/gns-foundation/trip-verifier/pkg/mobility"
	"github.com/gns-foundation/trip-verifier/pkg/spectral"
)

// identityState is the Verifier's full working set for one identity. All
// mutation happens under mu, which also serializes processing for this
// identity — a second Submit for the same identity blocks until the first
// completes, per the single-consumer-per-identity policy.
type identityState struct {
	mu sync.Mutex

	id identity.ID

	chain        *breadcrumb.Chain
	displacement *displacement.Cache
	mobility     *mobility.Profile
	baseline     *hamiltonian.Baseline

	spectralResult  spectral.Result
	haveSpectral    bool
	heavyTailFit    heavytail.Fit
	haveHeavyTail   bool
	predictability  float64
	alertLevel      hamiltonian.Band

	firstSeenAt    time.Time
	chainIntegrity int // 1 until the first validation failure, then 0 forever

	epochMembers []*breadcrumb.Breadcrumb // buffered since the last sealed epoch
	epochCount   uint64

	recentIntervals []float64 // last 16 inter-breadcrumb intervals, seconds
}

func newIdentityState(id identity.ID, cfg ValidatorPolicy, now time.Time) *identityState {
	return &identityState{
		id:             id,
		chain:          breadcrumb.NewChain(cfg.ChainConfig),
		displacement:   displacement.NewCache(),
		mobility:       mobility.NewProfile(),
		baseline:       hamiltonian.NewBaseline(),
		chainIntegrity: 1,
		firstSeenAt:    now,
	}
}

// recordInterval keeps a bounded window of the most recent inter-breadcrumb
// intervals, the input pkg/hamiltonian's StructureComponent needs.
func (s *identityState) recordInterval(seconds float64) {
	const window = 16
	s.recentIntervals = append(s.recentIntervals, seconds)
	if len(s.recentIntervals) > window {
		s.recentIntervals = s.recentIntervals[len(s.recentIntervals)-window:]
	}
}

func (s *identityState) intervalStdDev() float64 {
	n := len(s.recentIntervals)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, v := range s.recentIntervals {
		sum += v
	}
	mean := sum / float64(n)
	var variance float64
	for _, v := range s.recentIntervals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)
	return math.Sqrt(variance)
}

// registry is the Verifier's map of live per-identity state, guarded by its
// own lock so creating a new entry never blocks work against an existing
// one.
type registry struct {
	mu    sync.RWMutex
	byID  map[identity.ID]*identityState
}

func newStateRegistry() *registry {
	return &registry{byID: make(map[identity.ID]*identityState)}
}

// getOrCreate returns the existing state for id, or creates and stores one.
func (r *registry) getOrCreate(id identity.ID, cfg ValidatorPolicy, now time.Time) *identityState {
	r.mu.RLock()
	s, ok := r.byID[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		return s
	}
	s = newIdentityState(id, cfg, now)
	r.byID[id] = s
	return s
}

func (r *registry) get(id identity.ID) (*identityState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// Count returns the number of identities with live in-memory state.
func (r *registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
