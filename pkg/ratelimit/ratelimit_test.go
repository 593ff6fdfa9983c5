package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(5, 60)
	for i := 0; i < 5; i++ {
		require.True(t, l.Allow("identity-a"), "request %d should be allowed within burst", i)
	}
	require.False(t, l.Allow("identity-a"), "request beyond burst should be denied")
}

func TestAllowIsPerKey(t *testing.T) {
	l := New(1, 60)
	require.True(t, l.Allow("identity-a"))
	require.False(t, l.Allow("identity-a"))
	require.True(t, l.Allow("identity-b"), "a distinct key must have its own bucket")
}

func TestDisabledLimiterAlwaysAllows(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 1000; i++ {
		require.True(t, l.Allow("identity-a"))
	}
}

func TestCountTracksDistinctKeys(t *testing.T) {
	l := New(10, 60)
	l.Allow("a")
	l.Allow("b")
	l.Allow("a")
	require.Equal(t, 2, l.Count())
}
