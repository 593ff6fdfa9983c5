// Copyright 2026 TRIP Verifier Project
//
// Verifier - top-level pipeline orchestration. Wires the Chain Validator,
// Displacement Extractor, Spectral Analyzer, Heavy-Tail Fitter, Mobility
// Profiler, Hamiltonian Scorer, and Criticality Engine into the single
// entry point a transport layer calls per submission, plus the Challenge
// Coordinator and Certificate Issuer side channel. Grounded on
// pkg/execution/proof_cycle_orchestrator.go's shape (a struct of
// sub-collaborators plus a logger and a repos handle), generalized from a
// single active-cycle map to the per-identity registry in state.go.

package verifier

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gns-foundation/trip-verifier/pkg/breadcrumb"
	"github.com/gns-foundation/trip-verifier/pkg/cellgrid"
	"github.com/gns-foundation/trip-verifier/pkg/certificate"
	"github.com/gns-foundation/trip-verifier/pkg/challenge"
	"github.com/gns-foundation/trip-verifier/pkg/config"
	"github.com/gns-foundation/trip-verifier/pkg/criticality"
	"github.com/gns-foundation/trip-verifier/pkg/database"
	"github.com/gns-foundation/trip-verifier/pkg/epoch"
	"github.com/gns-foundation/trip-verifier/pkg/hamiltonian"
	"github.com/gns-foundation/trip-verifier/pkg/heavytail"
	"github.com/gns-foundation/trip-verifier/pkg/identity"
	"github.com/gns-foundation/trip-verifier/pkg/metrics"
	"github.com/gns-foundation/trip-verifier/pkg/ratelimit"
	"github.com/gns-foundation/trip-verifier/pkg/spectral"
)

// ValidatorPolicy bundles the protocol-tunable thresholds a Verifier
// enforces, generalized from config.Tunables into the concrete types each
// collaborator package expects.
type ValidatorPolicy struct {
	ChainConfig    breadcrumb.ValidatorConfig
	SpectralBands  spectral.Bands
	HamiltonWeights hamiltonian.Weights
	HeavyTailEpochSamples int
	EpochSize             int
	ChallengeDeadline     time.Duration
	CertificateValidity   time.Duration
	HandleClaimMinN       int
	HandleClaimMinTrust   float64
	UseUTCCircadian       bool
}

// DefaultPolicy returns the protocol-fixed defaults, matching what
// config.Tunables.applyDefaults sets.
func DefaultPolicy() ValidatorPolicy {
	return ValidatorPolicy{
		ChainConfig:           breadcrumb.DefaultValidatorConfig(),
		SpectralBands:         spectral.DefaultBands(),
		HamiltonWeights:       hamiltonian.DefaultWeights(),
		HeavyTailEpochSamples: heavytail.DefaultEpochSamples,
		EpochSize:             epoch.DefaultSize,
		ChallengeDeadline:     30 * time.Second,
		CertificateValidity:   24 * time.Hour,
		HandleClaimMinN:       100,
		HandleClaimMinTrust:   20,
		UseUTCCircadian:       true,
	}
}

// PolicyFromTunables maps an operator's loaded Tunables onto a
// ValidatorPolicy.
func PolicyFromTunables(t *config.Tunables) ValidatorPolicy {
	p := DefaultPolicy()
	if t == nil {
		return p
	}
	p.SpectralBands = spectral.Bands{
		BiologicalLow:  t.Spectral.BiologicalLow,
		BiologicalHigh: t.Spectral.BiologicalHigh,
		SyntheticHigh:  t.Spectral.SyntheticHigh,
		ReplayLow:      t.Spectral.ReplayLow,
	}
	p.HamiltonWeights = hamiltonian.Weights{
		Spatial:   t.Hamiltonian.SpatialWeight,
		Temporal:  t.Hamiltonian.TemporalWeight,
		Kinetic:   t.Hamiltonian.KineticWeight,
		Flock:     t.Hamiltonian.FlockWeight,
		Context:   t.Hamiltonian.ContextWeight,
		Structure: t.Hamiltonian.StructureWeight,
	}
	p.HeavyTailEpochSamples = t.HeavyTail.EpochSamples
	p.EpochSize = t.Epoch.Size
	p.ChallengeDeadline = time.Duration(t.Challenge.DeadlineSeconds) * time.Second
	p.CertificateValidity = t.Criticality.CertificateValidity.Duration()
	p.HandleClaimMinN = t.Criticality.HandleClaimMinBreadcrumbs
	p.HandleClaimMinTrust = t.Criticality.HandleClaimMinTrust
	return p
}

// Verifier is the process-wide pipeline. A single instance is expected to
// serve every identity the process is configured to trust.
type Verifier struct {
	policy   ValidatorPolicy
	registry *identity.Registry
	states   *registry

	challenges *challenge.Coordinator
	sweeper    *challenge.Sweeper
	signer     *certificate.Signer

	repos   *database.Repositories // nil when running without persistence
	metrics *metrics.Registry      // nil disables instrumentation
	limiter *ratelimit.Limiter     // nil disables rate limiting

	logger *log.Logger
}

// Option configures optional Verifier collaborators.
type Option func(*Verifier)

// WithRepositories attaches durable persistence of chain heads, challenges,
// epochs and certificates. The Verifier writes these records but does not
// load them at startup; without repositories nothing is written.
func WithRepositories(repos *database.Repositories) Option {
	return func(v *Verifier) { v.repos = repos }
}

// WithMetrics attaches a Prometheus registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(v *Verifier) { v.metrics = m }
}

// WithRateLimiter attaches per-identity request throttling.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(v *Verifier) { v.limiter = l }
}

// WithLogger overrides the default stdlib logger.
func WithLogger(logger *log.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// New constructs a Verifier. signingKey is the Verifier's own Ed25519 key,
// used to sign PoH Certificates — distinct from any Attester identity key.
func New(policy ValidatorPolicy, idRegistry *identity.Registry, signingKey ed25519.PrivateKey, opts ...Option) *Verifier {
	v := &Verifier{
		policy:     policy,
		registry:   idRegistry,
		states:     newStateRegistry(),
		challenges: challenge.NewCoordinator(nil),
		signer:     certificate.NewSigner(signingKey),
		logger:     log.New(os.Stderr, "[Verifier] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(v)
	}
	sweepInterval := policy.ChallengeDeadline / 3
	if sweepInterval < time.Second {
		sweepInterval = time.Second
	}
	v.sweeper = challenge.NewSweeper(v.challenges, sweepInterval, v.logger)
	return v
}

// StartChallengeSweeper begins background expiry of stale, unanswered
// challenges. Callers should stop it with StopChallengeSweeper during
// shutdown.
func (v *Verifier) StartChallengeSweeper(ctx context.Context) {
	v.sweeper.Start(ctx)
}

// StopChallengeSweeper halts the background challenge-expiry sweep.
func (v *Verifier) StopChallengeSweeper() {
	v.sweeper.Stop()
}

// ErrUntrustedIdentity is returned when a submission's identity is not
// served by the configured registry.
var ErrUntrustedIdentity = fmt.Errorf("verifier: identity not trusted")

// ErrRateLimited is returned when a submission is rejected by backpressure.
var ErrRateLimited = fmt.Errorf("verifier: rate limited")

// SubmitResult is the outcome of validating and scoring a batch of
// breadcrumbs for one identity.
type SubmitResult struct {
	Accepted        int
	HeadIndex       uint64
	HeadHash        breadcrumb.BlockHash
	Verdict         criticality.Verdict
	Warnings        []string
	EpochSealed     bool
}

// Submit validates and ingests raw, canonically-encoded breadcrumbs for a
// single identity (all breadcrumbs in one call must belong to the same
// chain) and returns the resulting verdict. sealedEpoch is optional: when
// the Attester is closing out an epoch boundary it supplies the epoch it
// sealed over the buffered members, which Submit verifies and persists;
// a nil sealedEpoch simply continues accumulating members toward the next
// boundary.
func (v *Verifier) Submit(ctx context.Context, raw []byte, sealedEpoch *epoch.Epoch) (*SubmitResult, error) {
	crumbs, err := breadcrumb.DecodeAll(raw)
	if err != nil {
		v.countRejection("malformed_encoding")
		return nil, err
	}
	if len(crumbs) == 0 {
		return &SubmitResult{}, nil
	}

	id := crumbs[0].Identity
	if v.limiter != nil && !v.limiter.Allow(id.String()) {
		if v.metrics != nil {
			v.metrics.RateLimited.WithLabelValues("submit").Inc()
		}
		return nil, ErrRateLimited
	}
	if v.registry != nil && !v.registry.IsTrusted(id) {
		v.countRejection("untrusted_identity")
		return nil, ErrUntrustedIdentity
	}

	st := v.states.getOrCreate(id, v.policy, time.Now())
	st.mu.Lock()
	defer st.mu.Unlock()

	result := &SubmitResult{}
	for _, b := range crumbs {
		if b.Identity != id {
			return nil, fmt.Errorf("verifier: submission mixes identities")
		}
		if err := v.processBreadcrumb(st, b); err != nil {
			st.chainIntegrity = 0
			v.countRejection(rejectionReason(err))
			return nil, err
		}
		result.Accepted++
	}
	result.Warnings = append(result.Warnings, st.chain.Warnings...)
	st.chain.Warnings = nil
	if n := len(st.epochMembers); sealedEpoch == nil && n > 2*v.policy.EpochSize {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"verifier: %d breadcrumbs buffered without an epoch seal (expected one every %d)", n, v.policy.EpochSize))
	}

	if sealedEpoch != nil {
		if err := v.sealEpoch(ctx, st, sealedEpoch); err != nil {
			return nil, err
		}
		result.EpochSealed = true
	}

	headIdx, _ := st.chain.HeadIndex()
	headHash, _ := st.chain.HeadHash()
	result.HeadIndex = headIdx
	result.HeadHash = headHash
	result.Verdict = v.evaluateLocked(st)

	if v.metrics != nil {
		v.metrics.BreadcrumbsIngested.WithLabelValues(id.String()).Add(float64(result.Accepted))
		v.metrics.TrustScore.Observe(result.Verdict.TrustScore)
		v.metrics.ActiveIdentities.Set(float64(v.states.Count()))
	}
	if v.repos != nil {
		v.persistChainHeadLocked(ctx, st)
	}

	return result, nil
}

func (v *Verifier) countRejection(reason string) {
	if v.metrics != nil {
		v.metrics.ChainRejections.WithLabelValues(reason).Inc()
	}
}

func rejectionReason(err error) string {
	var ve *breadcrumb.ValidationError
	if ok := asValidationError(err, &ve); ok {
		return string(ve.Kind)
	}
	return "unknown"
}

func asValidationError(err error, target **breadcrumb.ValidationError) bool {
	for err != nil {
		if ve, ok := err.(*breadcrumb.ValidationError); ok {
			*target = ve
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// processBreadcrumb runs one breadcrumb through chain validation,
// displacement extraction, mobility observation, and the Hamiltonian
// score. Caller must hold st.mu.
func (v *Verifier) processBreadcrumb(st *identityState, b *breadcrumb.Breadcrumb) error {
	prevCell, havePrev := st.chain.HeadCell()
	prevTimestamp, _ := st.chain.HeadTimestamp()

	if err := st.chain.Append(b); err != nil {
		return err
	}
	st.epochMembers = append(st.epochMembers, b)

	if havePrev {
		sample := st.displacement.Append(cellgrid.Cell(prevCell), b.Cell, prevTimestamp, b.Timestamp)
		st.recordInterval(float64(sample.DeltaSeconds))
		v.refitLocked(st)
		v.scoreBreadcrumbLocked(st, b.Cell, sample.DistanceKm)
	}

	st.mobility.Observe(b.Cell, b.Timestamp, v.policy.UseUTCCircadian)
	return nil
}

// refitLocked recomputes the spectral and heavy-tail fits once enough
// displacement samples exist. Both fits are cheap enough, and displacement
// sequences short-lived enough per epoch, to recompute on every accepted
// breadcrumb rather than only at epoch boundaries — matching spec.md's
// "sliding window" framing for the Spectral Analyzer.
func (v *Verifier) refitLocked(st *identityState) {
	series := displacementMagnitudes(st)
	if len(series) >= spectral.MinWindow {
		if res, err := spectral.Analyze(series, v.policy.SpectralBands); err == nil {
			st.spectralResult = res
			st.haveSpectral = true
		}
	}
	if fit, err := heavytail.FitSeries(series, v.policy.HeavyTailEpochSamples); err == nil {
		st.heavyTailFit = fit
		st.haveHeavyTail = true
	}
}

func displacementMagnitudes(st *identityState) []float64 {
	samples := st.displacement.Samples()
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.DistanceKm
	}
	return out
}

// scoreBreadcrumbLocked computes the Hamiltonian energy for the
// most-recently-accepted breadcrumb and records it into the rolling
// baseline. Flock and context components are reported unavailable: the
// Verifier receives no peer-proximity or sensor-divergence input in this
// deployment, so their weight redistributes across the remaining four
// components per pkg/hamiltonian.Score's policy.
func (v *Verifier) scoreBreadcrumbLocked(st *identityState, cell cellgrid.Cell, distanceKm float64) {
	if !st.haveHeavyTail {
		return
	}
	w := v.policy.HamiltonWeights
	hour, weekday := circadianFractions(st)

	components := []hamiltonian.Component{
		hamiltonian.SpatialComponent(w.Spatial, st.heavyTailFit.PDF(distanceKm)),
		hamiltonian.TemporalComponent(w.Temporal, hour, weekday),
		hamiltonian.KineticComponent(w.Kinetic, transitionProbability(st, cell)),
		hamiltonian.FlockComponent(w.Flock, false, 0),
		hamiltonian.ContextComponent(w.Context, false, 0),
		hamiltonian.StructureComponent(w.Structure, st.intervalStdDev(), false, 0),
	}

	maturity := hamiltonian.Maturity(st.chain.TotalCount())
	h, _ := hamiltonian.Score(components, maturity)
	baseline := st.baseline.Record(h)
	st.alertLevel = hamiltonian.Classify(h, baseline)
}

func circadianFractions(st *identityState) (hourFrac, weekdayFrac float64) {
	hh := st.mobility.HourHistogram()
	wh := st.mobility.WeekdayHistogram()
	var hourTotal, weekdayTotal int
	for _, c := range hh {
		hourTotal += c
	}
	for _, c := range wh {
		weekdayTotal += c
	}
	if hourTotal == 0 || weekdayTotal == 0 {
		return 0, 0
	}
	t := time.Now()
	if v2 := hh[t.Hour()]; v2 > 0 {
		hourFrac = float64(v2) / float64(hourTotal)
	}
	if v2 := wh[int(t.Weekday())]; v2 > 0 {
		weekdayFrac = float64(v2) / float64(weekdayTotal)
	}
	return hourFrac, weekdayFrac
}

// transitionProbability looks up T[from][to] for the specific transition
// the current breadcrumb represents: from is the anchor the identity was
// last seen at (before this breadcrumb), to is cell's nearest anchor. It is
// computed from pkg/mobility's cumulative transition counts, which update
// on every accepted breadcrumb, not just at epoch boundaries, so it tracks
// this exact pair rather than the identity's aggregate predictability. With
// no anchor history yet, or no observed transitions out of `from`, it falls
// back to a neutral 0.5 prior.
func transitionProbability(st *identityState, cell cellgrid.Cell) float64 {
	to, ok := st.mobility.NearestAnchor(cell)
	if !ok {
		return 0.5
	}
	from, ok := st.mobility.CurrentAnchor()
	if !ok {
		return 0.5
	}
	if from == to {
		return 1.0
	}
	if p, ok := st.mobility.TransitionProbability(from, to); ok {
		return p
	}
	return 0.5
}
