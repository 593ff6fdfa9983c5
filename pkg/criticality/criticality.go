// Copyright 2026 TRIP Verifier Project
//
// Criticality Engine - §4.7: orchestrates the spectral, heavy-tail, and
// mobility diagnostics over a chain into a single Verdict. Stateless
// across calls except for the caches it delegates to the mobility and
// Hamiltonian packages, grounded on pkg/execution's stateless per-request
// fan-out-and-combine proof-cycle orchestrator: each call takes a fresh
// snapshot of inputs and produces a fresh Verdict, never holding chain
// state of its own.

package criticality

import "math"

// Classification is the Verdict's classification tag.
type Classification string

const (
	ClassHuman            Classification = "HUMAN"
	ClassSuspicious        Classification = "SUSPICIOUS"
	ClassSynthetic        Classification = "SYNTHETIC"
	ClassInsufficientData Classification = "INSUFFICIENT_DATA"
)

// AlertLevel mirrors the Hamiltonian Scorer's alert bands (§4.6) as
// carried into the Verdict.
type AlertLevel string

const (
	AlertNominal    AlertLevel = "NOMINAL"
	AlertElevated   AlertLevel = "ELEVATED"
	AlertSuspicious AlertLevel = "SUSPICIOUS"
	AlertCritical   AlertLevel = "CRITICAL"
)

// Inputs is everything the Criticality Engine needs about one chain
// evaluation to produce a Verdict. Callers assemble it from the Spectral
// Analyzer, Heavy-Tail Fitter, Mobility Profiler, and Hamiltonian Scorer.
type Inputs struct {
	// N is the length of the displacement sequence the spectral/heavy-tail
	// fits were computed over.
	N int

	Alpha float64
	R2    float64

	Beta  float64
	Kappa float64

	Predictability float64

	CriticalityConfidence float64

	// BreadcrumbCount is the chain's total accepted breadcrumb count.
	BreadcrumbCount int
	// UniqueCells is the number of distinct cells visited.
	UniqueCells int
	// DaysSinceFirst is the age of the chain in days.
	DaysSinceFirst float64
	// ChainIntegrity is 1 if the chain has never failed validation, 0
	// otherwise.
	ChainIntegrity int

	// AlertLevel is the Hamiltonian Scorer's most recent alert band for
	// this identity.
	AlertLevel AlertLevel
}

// Verdict is the Criticality Engine's snapshot output, per spec.md §3.
type Verdict struct {
	Alpha                 float64
	R2                    float64
	Beta                  float64
	Kappa                 float64
	Predictability        float64
	CriticalityConfidence float64
	TrustScore            float64
	Classification        Classification
	AlertLevel            AlertLevel
	// HandleClaimEligible reports whether the identity meets the handle-
	// claim policy (N >= 100 and trust score >= 20).
	HandleClaimEligible bool
}

const (
	minSpectralWindow  = 64
	handleClaimMinN    = 100
	handleClaimMinTrust = 20
)

// alphaBand mirrors pkg/spectral's default classification bands; it is
// duplicated rather than imported so the engine's classification policy
// stays readable as a single self-contained decision table, matching
// spec.md §4.7's phrasing directly.
type alphaBand struct {
	biologicalLow, biologicalHigh, syntheticHigh, replayLow float64
}

func defaultAlphaBand() alphaBand {
	return alphaBand{biologicalLow: 0.30, biologicalHigh: 0.80, syntheticHigh: 0.15, replayLow: 1.20}
}

// Evaluate combines in into a Verdict per the trust-score formula and
// classification policy of spec.md §4.7.
func Evaluate(in Inputs) Verdict {
	trust := trustScore(in)

	var classification Classification
	band := defaultAlphaBand()

	switch {
	case in.N < minSpectralWindow:
		classification = ClassInsufficientData
	case in.Alpha < band.syntheticHigh:
		classification = ClassSynthetic
		trust = math.Min(trust, 50)
	case in.Alpha > band.replayLow:
		classification = ClassSynthetic
		trust = math.Min(trust, 50)
	case in.Alpha < band.biologicalLow || in.Alpha > band.biologicalHigh:
		classification = ClassSuspicious
		trust = math.Min(trust, 50)
	default:
		classification = ClassHuman
	}

	eligible := in.N >= handleClaimMinN && trust >= handleClaimMinTrust

	return Verdict{
		Alpha:                 in.Alpha,
		R2:                    in.R2,
		Beta:                  in.Beta,
		Kappa:                 in.Kappa,
		Predictability:        in.Predictability,
		CriticalityConfidence: in.CriticalityConfidence,
		TrustScore:            trust,
		Classification:        classification,
		AlertLevel:            in.AlertLevel,
		HandleClaimEligible:   eligible,
	}
}

// trustScore implements: T = 40*min(count/200,1) + 30*min(unique/50,1) +
// 20*min(days/365,1) + 10*chain_integrity.
func trustScore(in Inputs) float64 {
	t := 40*math.Min(float64(in.BreadcrumbCount)/200.0, 1.0) +
		30*math.Min(float64(in.UniqueCells)/50.0, 1.0) +
		20*math.Min(in.DaysSinceFirst/365.0, 1.0) +
		10*float64(in.ChainIntegrity)
	return t
}
