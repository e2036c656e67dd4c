// Package config builds runtime configuration from the environment so main
// stays lean. Every value has a development default; production overrides via
// environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// Postgres captures database configuration. An empty DSN selects the
// in-memory stores.
type Postgres struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Redis captures queue cache configuration. An empty URL disables the cache.
type Redis struct {
	URL          string
	QueueTTL     time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures event publishing configuration. Empty brokers disable
// publishing.
type Kafka struct {
	Brokers    []string
	Topic      string
	Partitions int32
	Replicas   int16
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("BURSARY_ADDR", ":8080"),
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     envOr("JWT_ISSUER", "ssc-auth"),
			JWTAudience:   envOr("JWT_AUDIENCE", "bursary"),
		},
		Postgres: Postgres{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxOpenConns:    envIntOr("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envIntOr("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDurationOr("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			QueueTTL:     envDurationOr("QUEUE_CACHE_TTL", 15*time.Second),
			DialTimeout:  envDurationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:    envList("KAFKA_BROKERS"),
			Topic:      envOr("KAFKA_TOPIC", "ssc.review.events"),
			Partitions: int32(envIntOr("KAFKA_TOPIC_PARTITIONS", 3)),
			Replicas:   int16(envIntOr("KAFKA_TOPIC_REPLICAS", 1)),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
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
