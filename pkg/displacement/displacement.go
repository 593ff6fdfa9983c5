// Copyright 2026 TRIP Verifier Project
//
// Displacement Extractor - §4.2: great-circle distance (km) and elapsed
// time (s) between consecutive breadcrumb cells. The resulting sequence is
// an append-only, build-once-per-chain vector in the same spirit as
// pkg/merkle.Tree: once a displacement has been computed for a pair of
// adjacent breadcrumbs it never needs recomputing, so a Cache only ever
// grows.

package displacement

import (
	"math"
	"sync"

	"github.com/gns-foundation/trip-verifier/pkg/cellgrid"
)

// Sample is one displacement observation between a breadcrumb and its
// immediate predecessor.
type Sample struct {
	// DistanceKm is the haversine great-circle distance between the two
	// cell centroids, in kilometers.
	DistanceKm float64
	// DeltaSeconds is the elapsed time between the two breadcrumbs.
	DeltaSeconds int64
}

// earthRadiusKm matches cellgrid's constant; kept in sync deliberately
// rather than exported, since both packages independently implement the
// spec's fixed constant.
const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between the
// centroids of cells a and b.
func Haversine(a, b cellgrid.Cell) float64 {
	lat1, lon1 := cellgrid.Centroid(a)
	lat2, lon2 := cellgrid.Centroid(b)

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// Cache is a per-chain, append-only vector of displacement samples. It is
// safe for concurrent use; callers append each newly accepted breadcrumb's
// displacement from its predecessor exactly once.
type Cache struct {
	mu      sync.RWMutex
	samples []Sample
}

// NewCache returns an empty displacement cache.
func NewCache() *Cache {
	return &Cache{}
}

// Append records the displacement between prevCell/prevTimestamp and
// curCell/curTimestamp.
func (c *Cache) Append(prevCell, curCell cellgrid.Cell, prevTimestamp, curTimestamp int64) Sample {
	s := Sample{
		DistanceKm:   Haversine(prevCell, curCell),
		DeltaSeconds: curTimestamp - prevTimestamp,
	}
	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
	return s
}

// Samples returns a copy of the accumulated displacement sequence, in
// chain order.
func (c *Cache) Samples() []Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// Len reports the number of recorded samples.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

// Magnitudes returns just the distance component of the sequence, the
// input shape the Heavy-Tail Fitter (§4.4) consumes.
func Magnitudes(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.DistanceKm
	}
	return out
}
