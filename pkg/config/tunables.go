// Copyright 2026 TRIP Verifier Project
//
// Tunables loader: operator-adjustable statistical parameters loaded from a
// YAML file with ${VAR_NAME} environment-variable substitution, the same
// pattern the teacher used for its anchor configuration file.

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Tunables holds the statistical and protocol parameters an operator may
// adjust without a redeploy: spectral classification bands, Hamiltonian
// component weights, heavy-tail fit bounds, and challenge/epoch sizing.
type Tunables struct {
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`

	Spectral   SpectralSettings   `yaml:"spectral"`
	Hamiltonian HamiltonianSettings `yaml:"hamiltonian"`
	HeavyTail  HeavyTailSettings  `yaml:"heavy_tail"`
	Challenge  ChallengeSettings  `yaml:"challenge"`
	Epoch      EpochSettings      `yaml:"epoch"`
	Criticality CriticalitySettings `yaml:"criticality"`
	Monitoring MonitoringSettings `yaml:"monitoring"`
}

// SpectralSettings configures spectral-exponent classification bands.
type SpectralSettings struct {
	BiologicalLow  float64 `yaml:"biological_low"`
	BiologicalHigh float64 `yaml:"biological_high"`
	SyntheticHigh  float64 `yaml:"synthetic_high"`
	ReplayLow      float64 `yaml:"replay_low"`
	MinWindow      int     `yaml:"min_window"`
}

// HamiltonianSettings configures the six Hamiltonian component weights.
type HamiltonianSettings struct {
	SpatialWeight   float64 `yaml:"spatial_weight"`
	TemporalWeight  float64 `yaml:"temporal_weight"`
	KineticWeight   float64 `yaml:"kinetic_weight"`
	FlockWeight     float64 `yaml:"flock_weight"`
	ContextWeight   float64 `yaml:"context_weight"`
	StructureWeight float64 `yaml:"structure_weight"`
}

// HeavyTailSettings bounds the truncated power-law MLE fit.
type HeavyTailSettings struct {
	MinBeta      float64 `yaml:"min_beta"`
	MaxBeta      float64 `yaml:"max_beta"`
	MinKappa     float64 `yaml:"min_kappa"`
	MaxKappa     float64 `yaml:"max_kappa"`
	EpochSamples int     `yaml:"epoch_samples"`
}

// ChallengeSettings configures the liveness-challenge state machine.
type ChallengeSettings struct {
	DeadlineSeconds int `yaml:"deadline_seconds"`
}

// EpochSettings configures epoch sealing.
type EpochSettings struct {
	Size int `yaml:"size"`
}

// CriticalitySettings configures the trust-score/classification policy.
type CriticalitySettings struct {
	HandleClaimMinBreadcrumbs int     `yaml:"handle_claim_min_breadcrumbs"`
	HandleClaimMinTrust       float64 `yaml:"handle_claim_min_trust"`
	CertificateValidity       Duration `yaml:"certificate_validity"`
}

// MonitoringSettings mirrors the teacher's observability configuration
// block, generalized to the Verifier's own metrics and logging.
type MonitoringSettings struct {
	Metrics MetricsSettings `yaml:"metrics"`
	Health  HealthSettings  `yaml:"health"`
	Logging LoggingSettings `yaml:"logging"`
}

// MetricsSettings configures the Prometheus metrics endpoint.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// HealthSettings configures the health-check endpoint.
type HealthSettings struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingSettings configures structured logging output.
type LoggingSettings struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	IncludeCaller bool   `yaml:"include_caller"`
}

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// LoadTunables loads tunables from a YAML file, substituting ${VAR_NAME} and
// ${VAR_NAME:-default} references against the process environment.
func LoadTunables(path string) (*Tunables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tunables file %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var t Tunables
	if err := yaml.Unmarshal([]byte(expanded), &t); err != nil {
		return nil, fmt.Errorf("failed to parse tunables file %s: %w", path, err)
	}

	t.applyDefaults()
	return &t, nil
}

func (t *Tunables) applyDefaults() {
	if t.Spectral.BiologicalLow == 0 {
		t.Spectral.BiologicalLow = 0.30
	}
	if t.Spectral.BiologicalHigh == 0 {
		t.Spectral.BiologicalHigh = 0.80
	}
	if t.Spectral.SyntheticHigh == 0 {
		t.Spectral.SyntheticHigh = 0.15
	}
	if t.Spectral.ReplayLow == 0 {
		t.Spectral.ReplayLow = 1.20
	}
	if t.Spectral.MinWindow == 0 {
		t.Spectral.MinWindow = 64
	}

	if t.Hamiltonian.SpatialWeight == 0 && t.Hamiltonian.TemporalWeight == 0 &&
		t.Hamiltonian.KineticWeight == 0 && t.Hamiltonian.FlockWeight == 0 &&
		t.Hamiltonian.ContextWeight == 0 && t.Hamiltonian.StructureWeight == 0 {
		t.Hamiltonian.SpatialWeight = 0.25
		t.Hamiltonian.TemporalWeight = 0.20
		t.Hamiltonian.KineticWeight = 0.20
		t.Hamiltonian.FlockWeight = 0.15
		t.Hamiltonian.ContextWeight = 0.10
		t.Hamiltonian.StructureWeight = 0.10
	}

	if t.HeavyTail.MinBeta == 0 {
		t.HeavyTail.MinBeta = 1.0
	}
	if t.HeavyTail.MaxBeta == 0 {
		t.HeavyTail.MaxBeta = 3.0
	}
	if t.HeavyTail.MinKappa == 0 {
		t.HeavyTail.MinKappa = 0.05
	}
	if t.HeavyTail.MaxKappa == 0 {
		t.HeavyTail.MaxKappa = 1000.0
	}
	if t.HeavyTail.EpochSamples == 0 {
		t.HeavyTail.EpochSamples = 100
	}

	if t.Challenge.DeadlineSeconds == 0 {
		t.Challenge.DeadlineSeconds = 30
	}
	if t.Epoch.Size == 0 {
		t.Epoch.Size = 100
	}

	if t.Criticality.HandleClaimMinBreadcrumbs == 0 {
		t.Criticality.HandleClaimMinBreadcrumbs = 100
	}
	if t.Criticality.HandleClaimMinTrust == 0 {
		t.Criticality.HandleClaimMinTrust = 20
	}
	if t.Criticality.CertificateValidity == 0 {
		t.Criticality.CertificateValidity = Duration(24 * time.Hour)
	}

	if t.Monitoring.Metrics.Port == 0 {
		t.Monitoring.Metrics.Port = 9090
	}
	if t.Monitoring.Metrics.Path == "" {
		t.Monitoring.Metrics.Path = "/metrics"
	}
	if t.Monitoring.Health.Port == 0 {
		t.Monitoring.Health.Port = 8081
	}
	if t.Monitoring.Health.Path == "" {
		t.Monitoring.Health.Path = "/health"
	}
	if t.Monitoring.Logging.Level == "" {
		t.Monitoring.Logging.Level = "info"
	}
	if t.Monitoring.Logging.Format == "" {
		t.Monitoring.Logging.Format = "json"
	}
	if t.Monitoring.Logging.Output == "" {
		t.Monitoring.Logging.Output = "stdout"
	}
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}

		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// ValidateForEnvironment validates the tunables appropriate for the
// declared environment. Non-production environments get relaxed checks.
func (t *Tunables) ValidateForEnvironment() error {
	var errors []string

	if t.Hamiltonian.SpatialWeight+t.Hamiltonian.TemporalWeight+t.Hamiltonian.KineticWeight+
		t.Hamiltonian.FlockWeight+t.Hamiltonian.ContextWeight+t.Hamiltonian.StructureWeight <= 0 {
		errors = append(errors, "hamiltonian component weights must sum to a positive value")
	}
	if t.Spectral.BiologicalLow >= t.Spectral.BiologicalHigh {
		errors = append(errors, "spectral.biological_low must be less than spectral.biological_high")
	}
	if t.HeavyTail.MinBeta >= t.HeavyTail.MaxBeta {
		errors = append(errors, "heavy_tail.min_beta must be less than heavy_tail.max_beta")
	}

	if t.Environment == "production" {
		if t.Challenge.DeadlineSeconds <= 0 {
			errors = append(errors, "challenge.deadline_seconds must be positive for production")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("tunables validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

// IsProduction returns true if this is a production tunables profile.
func (t *Tunables) IsProduction() bool {
	return t.Environment == "production"
}
