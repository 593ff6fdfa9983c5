package heavytail

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFitSeriesRejectsInsufficientData(t *testing.T) {
	_, err := FitSeries([]float64{1}, DefaultEpochSamples)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestFitSeriesWithinConstraints(t *testing.T) {
	// Deterministic pseudo-random source so the test never flakes.
	r := rand.New(rand.NewSource(42))
	series := make([]float64, 200)
	for i := range series {
		series[i] = 0.1 + r.Float64()*5
	}
	fit, err := FitSeries(series, DefaultEpochSamples)
	require.NoError(t, err)
	require.GreaterOrEqual(t, fit.Beta, 1.0)
	require.LessOrEqual(t, fit.Beta, 3.0)
	require.GreaterOrEqual(t, fit.Kappa, 0.05)
	require.LessOrEqual(t, fit.Kappa, 1000.0)
	require.GreaterOrEqual(t, fit.Quality, 0.0)
	require.LessOrEqual(t, fit.Quality, 1.0)
}

func TestAnomalyThresholdExceedsXmin(t *testing.T) {
	fit := Fit{Beta: 2.0, Kappa: 1.0, Xmin: 0.1}
	require.Greater(t, fit.AnomalyThreshold(), fit.Xmin)
}

func TestConsistencyWarning(t *testing.T) {
	fit := Fit{Beta: 2.0} // band is [0.3, 0.7]
	require.False(t, fit.ConsistencyWarning(0.5))
	require.True(t, fit.ConsistencyWarning(0.9))
}

func TestCDFMonotonic(t *testing.T) {
	beta, kappa, xmin := 2.0, 1.0, 0.1
	low := cdf(beta, kappa, xmin, xmin+0.5)
	high := cdf(beta, kappa, xmin, xmin+5)
	require.LessOrEqual(t, low, high)
}

func TestQuantileInvertsCDF(t *testing.T) {
	beta, kappa, xmin := 2.0, 1.0, 0.1
	q := quantile(beta, kappa, xmin, 0.5)
	p := cdf(beta, kappa, xmin, q)
	require.InDelta(t, 0.5, p, 0.02)
}

func TestGoldenSectionMaxFindsPeak(t *testing.T) {
	// f(x) = -(x-3)^2, maximized at x=3.
	peak := goldenSectionMax(func(x float64) float64 {
		return -(x - 3) * (x - 3)
	}, 0, 10, 60)
	require.InDelta(t, 3, peak, 1e-3)
}

func TestSimpsonIntegrateKnownIntegral(t *testing.T) {
	// Integral of x^2 from 0 to 1 is 1/3.
	got := simpsonIntegrate(func(x float64) float64 { return x * x }, 0, 1, 100)
	require.InDelta(t, 1.0/3.0, got, 1e-6)
}

func TestHillSeedWithinBounds(t *testing.T) {
	data := []float64{1, 1.5, 2, 3, 5, 8, 13}
	beta := hillSeed(data, 1)
	require.GreaterOrEqual(t, beta, 1.0)
	require.LessOrEqual(t, beta, 3.0)
	require.False(t, math.IsNaN(beta))
}
