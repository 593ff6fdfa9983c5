// Copyright 2026 TRIP Verifier Project
//
// verifierd - the TRIP protocol Verifier service entry point: loads
// configuration, connects to Postgres, loads or generates the Verifier's
// own Ed25519 signing key, wires the pipeline, and serves HTTP.

package main

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gns-foundation/trip-verifier/pkg/config"
	"github.com/gns-foundation/trip-verifier/pkg/database"
	"github.com/gns-foundation/trip-verifier/pkg/identity"
	"github.com/gns-foundation/trip-verifier/pkg/metrics"
	"github.com/gns-foundation/trip-verifier/pkg/ratelimit"
	"github.com/gns-foundation/trip-verifier/pkg/verifier"
)

// healthStatus tracks the service's dependency health for the /health
// endpoint, updated as each dependency comes up during startup.
type healthStatus struct {
	mu         sync.RWMutex
	status     string
	database   string
	identities int
	startTime  time.Time
}

func newHealthStatus() *healthStatus {
	return &healthStatus{status: "starting", database: "unknown", startTime: time.Now()}
}

func (h *healthStatus) setDatabase(state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.database = state
	h.recompute()
}

func (h *healthStatus) setIdentityCount(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.identities = n
}

// recompute must be called with mu held.
func (h *healthStatus) recompute() {
	switch h.database {
	case "connected", "disabled":
		h.status = "ok"
	case "disconnected":
		h.status = "degraded"
	default:
		h.status = "starting"
	}
}

func (h *healthStatus) toJSON() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data, _ := json.Marshal(struct {
		Status        string `json:"status"`
		Database      string `json:"database"`
		Identities    int    `json:"trusted_identities"`
		UptimeSeconds int64  `json:"uptime_seconds"`
	}{
		Status:        h.status,
		Database:      h.database,
		Identities:    h.identities,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
	return data
}

func (h *healthStatus) statusCode() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.status == "starting" {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("starting TRIP verifier service")

	var (
		verifierID = flag.String("verifier-id", "", "Verifier ID (overrides VERIFIER_ID env var)")
		tunablesPath = flag.String("tunables", "", "path to a tunables.yaml overriding protocol defaults")
		showHelp   = flag.Bool("help", false, "show help message")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}
	if *verifierID != "" {
		cfg.VerifierID = *verifierID
	}

	if cfg.LogLevel == "development" {
		if err := cfg.ValidateForDevelopment(); err != nil {
			log.Fatal(err)
		}
	} else if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	health := newHealthStatus()

	signingKey, err := loadOrGenerateSigningKey(cfg.SigningKeyPath)
	if err != nil {
		log.Fatal("failed to load signing key:", err)
	}
	log.Printf("verifier signing key fingerprint: %s", fingerprint(signingKey.Public().(ed25519.PublicKey)))

	idRegistry, err := loadIdentityRegistry(cfg)
	if err != nil {
		log.Fatal("failed to load identity registry:", err)
	}
	health.setIdentityCount(idRegistry.Count())

	var tunables *config.Tunables
	if *tunablesPath != "" {
		tunables, err = config.LoadTunables(*tunablesPath)
		if err != nil {
			log.Fatal("failed to load tunables:", err)
		}
		if err := tunables.ValidateForEnvironment(); err != nil {
			log.Fatal("tunables failed validation:", err)
		}
		log.Printf("loaded tunables from %s (environment=%s)", *tunablesPath, tunables.Environment)
	}
	policy := verifier.DefaultPolicy()
	if tunables != nil {
		policy = verifier.PolicyFromTunables(tunables)
	}

	var repos *database.Repositories
	log.Println("connecting to database...")
	dbClient, err := database.NewClient(cfg, database.WithLogger(
		log.New(log.Writer(), "[Database] ", log.LstdFlags),
	))
	if err != nil {
		if cfg.DatabaseRequired {
			log.Fatalf("database connection required but failed: %v", err)
		}
		log.Printf("database connection failed, running without persistence: %v", err)
		health.setDatabase("disconnected")
	} else {
		defer dbClient.Close()
		if err := dbClient.MigrateUp(context.Background()); err != nil {
			log.Printf("database migration failed: %v", err)
		}
		repos = database.NewRepositories(dbClient)
		health.setDatabase("connected")
		log.Println("connected to database")
	}

	metricsRegistry := metrics.New()
	var limiter *ratelimit.Limiter
	if cfg.RateLimitRequests > 0 {
		limiter = ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow)
	}

	opts := []verifier.Option{
		verifier.WithMetrics(metricsRegistry),
		verifier.WithLogger(log.New(log.Writer(), "[Verifier] ", log.LstdFlags)),
	}
	if repos != nil {
		opts = append(opts, verifier.WithRepositories(repos))
	}
	if limiter != nil {
		opts = append(opts, verifier.WithRateLimiter(limiter))
	}
	v := verifier.New(policy, idRegistry, signingKey, opts...)
	_ = v // this binary serves no protocol transport; v runs only the challenge sweeper below

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	v.StartChallengeSweeper(sweepCtx)
	defer func() {
		cancelSweep()
		v.StopChallengeSweeper()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(health.statusCode())
		w.Write(health.toJSON())
	})
	mux.Handle("/metrics", metricsRegistry.Handler())

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutdown signal received, draining connections...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	log.Println("verifier service stopped")
}

func printHelp() {
	fmt.Println("verifierd - TRIP protocol Verifier service")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Configuration is otherwise read from environment variables; see pkg/config.")
}

// loadOrGenerateSigningKey reads a hex-encoded Ed25519 private key from
// path, or generates and persists a fresh one if the file does not exist.
func loadOrGenerateSigningKey(path string) (ed25519.PrivateKey, error) {
	if path == "" {
		return nil, fmt.Errorf("signing key path is empty")
	}
	if data, err := os.ReadFile(path); err == nil {
		raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("signing key file is not valid hex: %w", err)
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("signing key file has wrong length: got %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
		}
		return ed25519.PrivateKey(raw), nil
	}

	log.Printf("no signing key found at %s, generating one", path)
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(priv)), 0600); err != nil {
		return nil, fmt.Errorf("persisting generated signing key: %w", err)
	}
	return priv, nil
}

// loadIdentityRegistry builds the Verifier's trusted-identity set. With
// cfg.OpenRegistry set the Verifier serves any identity; otherwise it
// loads one hex-encoded public key per line from cfg.IdentityAllowlistPath.
func loadIdentityRegistry(cfg *config.Config) (*identity.Registry, error) {
	if cfg.OpenRegistry {
		return identity.NewRegistry(nil, true), nil
	}
	if cfg.IdentityAllowlistPath == "" {
		return identity.NewRegistry(nil, false), nil
	}

	f, err := os.Open(cfg.IdentityAllowlistPath)
	if err != nil {
		return nil, fmt.Errorf("opening identity allowlist: %w", err)
	}
	defer f.Close()

	var ids []identity.ID
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("identity allowlist: invalid hex %q: %w", line, err)
		}
		id, err := identity.FromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("identity allowlist: %w", err)
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading identity allowlist: %w", err)
	}
	return identity.NewRegistry(ids, false), nil
}

func fingerprint(pub ed25519.PublicKey) string {
	s := hex.EncodeToString(pub)
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
