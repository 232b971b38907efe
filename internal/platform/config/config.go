// Package config builds runtime configuration from the environment so main
// stays lean. Every knob has a development default; production deployments
// override via FIDES_* variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures the full node configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// PostgresURL switches the durable stores from memory to Postgres when
	// set. Schema migrations are applied out of band.
	PostgresURL string

	Redis RedisConfig
	Kafka KafkaConfig

	// IssuerID is this node's stable issuer identity. Empty means a fresh
	// identity per start, acceptable for development.
	IssuerID string

	// IssuerKeySeed derives a stable ed25519 identity across restarts,
	// hex encoded. Empty means a fresh keypair per start, acceptable for
	// development.
	IssuerKeySeed string

	// AdminToken gates the operator routes. Empty leaves them open, which
	// is only acceptable for development.
	AdminToken string

	ReverificationThreshold float64

	// EvolutionMaxStep bounds how far a signature's evolution counter may
	// advance past its issuance snapshot in one verification.
	EvolutionMaxStep int

	NegotiationTimeout time.Duration
	SweepInterval           time.Duration
	ShutdownTimeout         time.Duration
}

// RedisConfig configures the shared revocation list client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the revocation distribution and audit fan-out
// producer. An empty broker list disables Kafka entirely.
type KafkaConfig struct {
	Brokers         []string
	RevocationTopic string
	SecurityTopic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:          envString("FIDES_ADDR", ":8080"),
		JWTSigningKey: envString("FIDES_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresURL:   os.Getenv("FIDES_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("FIDES_REDIS_URL"),
			PoolSize:     envInt("FIDES_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("FIDES_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("FIDES_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("FIDES_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("FIDES_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         envList("FIDES_KAFKA_BROKERS"),
			RevocationTopic: envString("FIDES_KAFKA_REVOCATION_TOPIC", "fides.revocations"),
			SecurityTopic:   envString("FIDES_KAFKA_SECURITY_TOPIC", "fides.audit.security"),
		},
		IssuerID:                os.Getenv("FIDES_ISSUER_ID"),
		IssuerKeySeed:           os.Getenv("FIDES_ISSUER_KEY_SEED"),
		AdminToken:              os.Getenv("FIDES_ADMIN_TOKEN"),
		ReverificationThreshold: envFloat("FIDES_REVERIFICATION_THRESHOLD", 0.7),
		EvolutionMaxStep:        envInt("FIDES_EVOLUTION_MAX_STEP", 100),
		NegotiationTimeout:      envDuration("FIDES_NEGOTIATION_TIMEOUT", 24*time.Hour),
		SweepInterval:           envDuration("FIDES_SWEEP_INTERVAL", 15*time.Minute),
		ShutdownTimeout:         envDuration("FIDES_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
