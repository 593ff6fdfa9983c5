package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyzeRejectsShortSeries(t *testing.T) {
	_, err := Analyze(make([]float64, 10), DefaultBands())
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestAnalyzeMultiSineYieldsDefinedAlpha(t *testing.T) {
	// A deterministic sum of three sinusoids with decreasing amplitudes.
	// This checks only that the pipeline returns a non-NaN alpha and a
	// confidence in [0, 1]; it does not assert a classification band.
	n := 512
	series := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i)
		series[i] = math.Sin(t*0.1) + 0.5*math.Sin(t*0.37) + 0.25*math.Sin(t*1.3)
	}
	res, err := Analyze(series, DefaultBands())
	require.NoError(t, err)
	require.False(t, math.IsNaN(res.Alpha))
	require.GreaterOrEqual(t, res.Confidence, 0.0)
	require.LessOrEqual(t, res.Confidence, 1.0)
}

func TestClassifyBands(t *testing.T) {
	b := DefaultBands()
	require.Equal(t, BandBiological, Classify(0.55, b))
	require.Equal(t, BandSynthetic, Classify(0.05, b))
	require.Equal(t, BandReplay, Classify(1.5, b))
	require.Equal(t, BandSuspicious, Classify(1.0, b))
	require.Equal(t, BandSuspicious, Classify(-0.1, b))
}

func TestFitLogLogConstantSeriesYieldsZeroR2(t *testing.T) {
	freqs := []float64{0.1, 0.2, 0.3, 0.4}
	psd := []float64{1, 1, 1, 1}
	alpha, r2 := fitLogLog(freqs, psd)
	require.InDelta(t, 0, alpha, 1e-9)
	require.InDelta(t, 0, r2, 1e-6)
}

func TestSegmentLengthPowerOfTwo(t *testing.T) {
	require.Equal(t, 16, segmentLength(64))
	require.Equal(t, 64, segmentLength(256))
}
