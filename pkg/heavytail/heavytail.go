// Copyright 2026 TRIP Verifier Project
//
// Heavy-Tail Fitter - §4.4: maximum-likelihood fit of a truncated power law
// P(Δr) ∝ Δr^(-β) * exp(-Δr/κ) over a displacement magnitude sequence, plus
// a percentile "quality" placement of the observed maximum and the fitted
// 99.9th-percentile anomaly threshold. No per-identity anomaly counter is
// kept, here or in pkg/verifier. No pack repo performs distribution fitting, so the MLE is a
// small from-scratch Hill-seed + coordinate-descent routine over stdlib
// math, in the same spirit and for the same stdlib-justification reason as
// pkg/spectral.

package heavytail

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when fewer than two positive samples are
// available to fit against.
var ErrInsufficientData = errors.New("heavytail: insufficient data")

const (
	// DefaultEpochSamples is the default window of most-recent samples the
	// fit is performed over.
	DefaultEpochSamples = 100

	minBeta  = 1.0
	maxBeta  = 3.0
	minKappa = 0.05
	maxKappa = 1000.0
)

// Fit is the result of fitting a truncated power law to a displacement
// magnitude sequence.
type Fit struct {
	Beta  float64
	Kappa float64
	// Quality is the percentile placement (0..1) of the observed maximum
	// against the fitted distribution's CDF.
	Quality float64
	// Xmin is the left truncation point used for the fit (the smallest
	// strictly positive observed displacement).
	Xmin float64
}

// PDF returns the fitted distribution's normalized density at x.
func (f Fit) PDF(x float64) float64 {
	if x < f.Xmin {
		return 0
	}
	total := normConst(f.Beta, f.Kappa, f.Xmin, math.Inf(1))
	if total <= 0 {
		return 0
	}
	return unnormalizedDensity(x, f.Beta, f.Kappa) / total
}

// AnomalyThreshold returns the displacement magnitude at the fitted 99.9th
// percentile. Nothing in this repository counts displacements above it.
func (f Fit) AnomalyThreshold() float64 {
	return quantile(f.Beta, f.Kappa, f.Xmin, 0.999)
}

// ConsistencyWarning reports whether alpha (from §4.3) falls outside the
// advisory band [0.3*(3-beta), 0.7*(3-beta)]. It never affects the verdict.
func (f Fit) ConsistencyWarning(alpha float64) bool {
	lo := 0.3 * (3 - f.Beta)
	hi := 0.7 * (3 - f.Beta)
	return alpha < lo || alpha > hi
}

// FitSeries fits beta/kappa by maximum likelihood over the most recent
// window (capped to epochSamples) of series, seeded by a Hill estimator.
func FitSeries(series []float64, epochSamples int) (Fit, error) {
	if epochSamples <= 0 {
		epochSamples = DefaultEpochSamples
	}
	window := series
	if len(window) > epochSamples {
		window = window[len(window)-epochSamples:]
	}

	var positive []float64
	for _, v := range window {
		if v > 0 {
			positive = append(positive, v)
		}
	}
	if len(positive) < 2 {
		return Fit{}, ErrInsufficientData
	}

	xmin := positive[0]
	maxVal := positive[0]
	for _, v := range positive {
		if v < xmin {
			xmin = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	beta := hillSeed(positive, xmin)
	kappa := clamp(meanAbove(positive, xmin), minKappa, maxKappa)

	for round := 0; round < 12; round++ {
		beta = clamp(goldenSectionMax(func(b float64) float64 {
			return logLikelihood(positive, b, kappa, xmin)
		}, minBeta, maxBeta, 40), minBeta, maxBeta)

		kappa = clamp(goldenSectionMax(func(k float64) float64 {
			return logLikelihood(positive, beta, k, xmin)
		}, minKappa, maxKappa, 40), minKappa, maxKappa)
	}

	quality := cdf(beta, kappa, xmin, maxVal)

	return Fit{Beta: beta, Kappa: kappa, Quality: quality, Xmin: xmin}, nil
}

// hillSeed computes the classic Hill estimator for the power-law exponent,
// used only as a starting point for the coordinate-descent refinement.
func hillSeed(data []float64, xmin float64) float64 {
	var sum float64
	n := 0
	for _, x := range data {
		if x >= xmin && xmin > 0 {
			sum += math.Log(x / xmin)
			n++
		}
	}
	if n == 0 || sum == 0 {
		return 1.5
	}
	return clamp(1+float64(n)/sum, minBeta, maxBeta)
}

func meanAbove(data []float64, xmin float64) float64 {
	var sum float64
	n := 0
	for _, x := range data {
		if x > xmin {
			sum += x - xmin
			n++
		}
	}
	if n == 0 {
		return minKappa
	}
	return sum / float64(n)
}

// logLikelihood returns the log-likelihood of data under the truncated
// power law with the given parameters, computed via numeric normalization.
func logLikelihood(data []float64, beta, kappa, xmin float64) float64 {
	logZ := math.Log(normConst(beta, kappa, xmin, math.Inf(1)))
	if math.IsInf(logZ, 0) || math.IsNaN(logZ) {
		return math.Inf(-1)
	}
	var ll float64
	for _, x := range data {
		ll += -beta*math.Log(x) - x/kappa
	}
	ll -= float64(len(data)) * logZ
	return ll
}

// unnormalizedDensity is x^(-beta) * exp(-x/kappa).
func unnormalizedDensity(x, beta, kappa float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Exp(-beta*math.Log(x) - x/kappa)
}

// normConst numerically integrates the unnormalized density from xmin to
// upper (Inf meaning "the full tail") via Simpson's rule over a bounded,
// deterministic range: the exponential cutoff makes the density negligible
// beyond xmin + 60*kappa, so that bound stands in for infinity.
func normConst(beta, kappa, xmin, upper float64) float64 {
	hi := upper
	if math.IsInf(upper, 1) || upper > xmin+60*kappa {
		hi = xmin + 60*kappa
	}
	if hi <= xmin {
		return 0
	}
	return simpsonIntegrate(func(x float64) float64 {
		return unnormalizedDensity(x, beta, kappa)
	}, xmin, hi, 2000)
}

// cdf returns P(X <= x) under the fitted distribution.
func cdf(beta, kappa, xmin, x float64) float64 {
	total := normConst(beta, kappa, xmin, math.Inf(1))
	if total <= 0 {
		return 0
	}
	partial := normConst(beta, kappa, xmin, x)
	return clamp(partial/total, 0, 1)
}

// quantile inverts cdf by bisection over [xmin, xmin+60*kappa].
func quantile(beta, kappa, xmin, p float64) float64 {
	lo, hi := xmin, xmin+60*kappa
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if cdf(beta, kappa, xmin, mid) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

func simpsonIntegrate(f func(float64) float64, a, b float64, n int) float64 {
	if n%2 != 0 {
		n++
	}
	h := (b - a) / float64(n)
	sum := f(a) + f(b)
	for i := 1; i < n; i++ {
		x := a + float64(i)*h
		if i%2 == 0 {
			sum += 2 * f(x)
		} else {
			sum += 4 * f(x)
		}
	}
	return sum * h / 3
}

// goldenSectionMax maximizes a unimodal f over [lo, hi] via golden-section
// search for the given number of iterations.
func goldenSectionMax(f func(float64) float64, lo, hi float64, iters int) float64 {
	const gr = 0.6180339887498949
	a, b := lo, hi
	c := b - gr*(b-a)
	d := a + gr*(b-a)
	fc, fd := f(c), f(d)
	for i := 0; i < iters; i++ {
		if fc > fd {
			b, d, fd = d, c, fc
			c = b - gr*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + gr*(b-a)
			fd = f(d)
		}
	}
	return (a + b) / 2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
