// Copyright 2026 TRIP Verifier Project
//
// Environment-variable configuration for the Verifier service.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the Verifier's process-level configuration.
type Config struct {
	// Server Configuration
	ListenAddr  string
	MetricsAddr string
	HealthAddr  string

	// Database Configuration
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds
	DatabaseRequired    bool

	// Verifier Signing Key
	// The Verifier signs PoH Certificates with its own Ed25519 key,
	// distinct from any Attester identity key.
	SigningKeyPath string
	DataDir        string

	// Service Identity
	VerifierID string
	LogLevel   string

	// Identity Registry
	// When OpenRegistry is true the Verifier serves any identity; otherwise
	// only identities loaded from IdentityAllowlistPath are served.
	OpenRegistry         bool
	IdentityAllowlistPath string

	// Protocol Tunables
	EpochSize                  int
	ChallengeDeadlineSeconds   int
	CertificateValiditySeconds int

	// Security Configuration
	JWTSecret   string
	CORSOrigins []string
	TLSEnabled  bool
	TLSCertFile string
	TLSKeyFile  string

	// Rate Limiting
	RateLimitRequests int
	RateLimitWindow   int
}

// Load reads configuration from environment variables.
//
// SECURITY: Required variables have no defaults and must be explicitly set.
// Call Validate() after Load() to ensure all required configuration is present.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),
		MetricsAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("METRICS_PORT", "9090"),
		HealthAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("HEALTH_CHECK_PORT", "8081"),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),
		DatabaseRequired:    getEnvBool("DATABASE_REQUIRED", false),

		SigningKeyPath: getEnv("VERIFIER_SIGNING_KEY_PATH", ""),
		DataDir:        getEnv("DATA_DIR", "./data"),

		VerifierID: getEnv("VERIFIER_ID", "verifier-default"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		OpenRegistry:          getEnvBool("IDENTITY_OPEN_REGISTRY", false),
		IdentityAllowlistPath: getEnv("IDENTITY_ALLOWLIST_PATH", ""),

		EpochSize:                  getEnvInt("EPOCH_SIZE", 100),
		ChallengeDeadlineSeconds:   getEnvInt("CHALLENGE_DEADLINE_SECONDS", 30),
		CertificateValiditySeconds: getEnvInt("CERTIFICATE_VALIDITY_SECONDS", 86400),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		TLSEnabled:  getEnvBool("TLS_ENABLED", true),
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and secure.
// This must be called after Load() before starting the service.
func (c *Config) Validate() error {
	var errors []string

	if c.SigningKeyPath == "" {
		errors = append(errors, "VERIFIER_SIGNING_KEY_PATH is required but not set")
	}

	if c.DatabaseURL == "" {
		errors = append(errors, "DATABASE_URL is required but not set")
	} else if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		errors = append(errors, "DATABASE_URL must use sslmode=require for production security")
	}

	if c.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET is required but not set")
	} else {
		weakSecrets := []string{"development", "secret", "password", "change-me", "changeme", "default", "test"}
		lowerSecret := strings.ToLower(c.JWTSecret)
		for _, weak := range weakSecrets {
			if strings.Contains(lowerSecret, weak) {
				errors = append(errors, "JWT_SECRET contains weak/default value - generate a secure random secret")
				break
			}
		}
		if len(c.JWTSecret) < 32 {
			errors = append(errors, "JWT_SECRET must be at least 32 characters for security")
		}
	}

	if !c.TLSEnabled {
		fmt.Println("WARNING: TLS_ENABLED is false - enable TLS for production security")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// ValidateForDevelopment performs relaxed validation suitable for local development.
// WARNING: Do not use this in production - use Validate() instead.
func (c *Config) ValidateForDevelopment() error {
	if c.SigningKeyPath == "" {
		return fmt.Errorf("development configuration validation failed:\n  - VERIFIER_SIGNING_KEY_PATH is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

