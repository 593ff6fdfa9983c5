package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	r := New()
	require.NotNil(t, r.BreadcrumbsIngested)
	require.NotNil(t, r.DiagnosticDuration)
	require.NotNil(t, r.TrustScore)
}

func TestHandlerServesExposition(t *testing.T) {
	r := New()
	r.BreadcrumbsIngested.WithLabelValues("identity-a").Inc()
	r.ChallengesIssued.Inc()
	r.CertificatesIssued.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "trip_verifier_breadcrumbs_ingested_total")
	require.Contains(t, rec.Body.String(), "trip_verifier_challenges_issued_total")
}

func TestNewIsIsolatedPerInstance(t *testing.T) {
	a := New()
	b := New()
	a.CertificatesIssued.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)
	require.NotContains(t, rec.Body.String(), "trip_verifier_certificates_issued_total 1")
}
