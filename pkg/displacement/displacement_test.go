package displacement

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gns-foundation/trip-verifier/pkg/cellgrid"
)

func TestHaversineZeroForSameCell(t *testing.T) {
	c, err := cellgrid.New(cellgrid.MinResolution, 5, -2)
	require.NoError(t, err)
	require.InDelta(t, 0, Haversine(c, c), 1e-9)
}

func TestHaversineSymmetric(t *testing.T) {
	a, _ := cellgrid.New(cellgrid.MinResolution, 0, 0)
	b, _ := cellgrid.New(cellgrid.MinResolution, 10, -4)
	require.InDelta(t, Haversine(a, b), Haversine(b, a), 1e-9)
}

func TestCacheAppendAccumulates(t *testing.T) {
	a, _ := cellgrid.New(cellgrid.MinResolution, 0, 0)
	b, _ := cellgrid.New(cellgrid.MinResolution, 1, 0)

	c := NewCache()
	s := c.Append(a, b, 1000, 1300)
	require.Equal(t, int64(300), s.DeltaSeconds)
	require.Greater(t, s.DistanceKm, 0.0)
	require.Equal(t, 1, c.Len())

	c.Append(b, a, 1300, 1900)
	require.Equal(t, 2, c.Len())

	mags := Magnitudes(c.Samples())
	require.Len(t, mags, 2)
	require.InDelta(t, mags[0], mags[1], 1e-9)
}
