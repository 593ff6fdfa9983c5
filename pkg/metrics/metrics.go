// Copyright 2026 TRIP Verifier Project
//
// Prometheus instrumentation for the Verifier pipeline: chain validation
// throughput, statistical-diagnostic latency, challenge outcomes, and
// certificate issuance.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the Verifier exports. It is safe for
// concurrent use; the underlying collectors handle their own locking.
type Registry struct {
	registry *prometheus.Registry

	BreadcrumbsIngested *prometheus.CounterVec
	ChainRejections     *prometheus.CounterVec
	DiagnosticDuration  *prometheus.HistogramVec
	TrustScore          prometheus.Histogram
	ChallengesIssued    prometheus.Counter
	ChallengesPassed    prometheus.Counter
	ChallengesFailed    *prometheus.CounterVec
	CertificatesIssued  prometheus.Counter
	RateLimited         *prometheus.CounterVec
	EpochsSealed        prometheus.Counter
	ActiveIdentities     prometheus.Gauge
}

// New creates a Registry and registers all collectors against a fresh
// prometheus.Registry, so multiple Verifier instances in the same
// process (tests, embedding) never collide on the global default
// registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,

		BreadcrumbsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trip_verifier",
			Name:      "breadcrumbs_ingested_total",
			Help:      "Total breadcrumbs accepted into an identity's hash chain.",
		}, []string{"identity"}),

		ChainRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trip_verifier",
			Name:      "chain_rejections_total",
			Help:      "Total breadcrumbs rejected, labeled by rejection reason.",
		}, []string{"reason"}),

		DiagnosticDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trip_verifier",
			Name:      "diagnostic_duration_seconds",
			Help:      "Time spent computing a statistical diagnostic, by stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),

		TrustScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trip_verifier",
			Name:      "trust_score",
			Help:      "Distribution of computed trust scores across verdicts.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),

		ChallengesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trip_verifier",
			Name:      "challenges_issued_total",
			Help:      "Total liveness challenges issued.",
		}),

		ChallengesPassed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trip_verifier",
			Name:      "challenges_passed_total",
			Help:      "Total liveness challenges answered within deadline with a valid response.",
		}),

		ChallengesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trip_verifier",
			Name:      "challenges_failed_total",
			Help:      "Total liveness challenges that failed, labeled by failure reason.",
		}, []string{"reason"}),

		CertificatesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trip_verifier",
			Name:      "certificates_issued_total",
			Help:      "Total PoH Certificates issued.",
		}),

		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trip_verifier",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter, by endpoint.",
		}, []string{"endpoint"}),

		EpochsSealed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trip_verifier",
			Name:      "epochs_sealed_total",
			Help:      "Total epochs sealed into a Merkle root.",
		}),

		ActiveIdentities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "trip_verifier",
			Name:      "active_identities",
			Help:      "Number of identities with an open in-memory chain head.",
		}),
	}
}

// Handler returns an http.Handler serving this registry's metrics in the
// Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
