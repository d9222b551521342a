// Package config builds application configuration from environment variables
// so main stays lean. Every knob has a development default; production
// deployments override via the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures all tunables for the server and the privacy core.
type Config struct {
	Addr          string
	JWTSigningKey string

	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	SMTP     SMTPConfig
	GCS      GCSConfig

	Privacy PrivacyConfig
}

// HTTPConfig tunes the server's connection handling. The write timeout must
// exceed the router's per-request timeout.
type HTTPConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// PostgresConfig configures the document, user, and audit stores.
// An empty DSN selects the in-memory stores.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
}

// RedisConfig configures the token blacklist client.
// An empty URL disables Redis (in-memory blacklist is used).
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional audit stream publisher.
// No brokers means the stream sink is disabled.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// SMTPConfig configures the transactional mailer. An empty host selects the
// noop mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	UseTLS   bool
}

// GCSConfig configures object storage for export bundles. An empty bucket
// selects the in-memory object store.
type GCSConfig struct {
	Bucket                  string
	CredentialsFile         string
	SignedURLAccessID       string
	SignedURLPrivateKeyFile string
}

// PrivacyConfig holds the tunables of the privacy compliance core.
type PrivacyConfig struct {
	// ConfirmationPhrase must be supplied verbatim on deletion requests.
	ConfirmationPhrase string
	// ExportTTL bounds the life of an export bundle and its signed URL.
	ExportTTL time.Duration
	// PipelineTimeout bounds one full deletion pipeline run.
	PipelineTimeout time.Duration
	// CollaboratorTimeout bounds a single external collaborator call.
	CollaboratorTimeout time.Duration
	// CollaboratorRetries is the retry budget per collaborator call.
	CollaboratorRetries int
	// RetryBackoff is the base for exponential backoff between retries.
	RetryBackoff time.Duration
	// BlacklistTTL is how long a deleted user's credentials stay blacklisted.
	BlacklistTTL time.Duration
	// Workers bounds the background job pool.
	Workers int
	// QueueDepth bounds the pending job queue.
	QueueDepth int
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          envStr("MEMBERHUB_ADDR", ":8080"),
		JWTSigningKey: envStr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		HTTP: HTTPConfig{
			ReadHeaderTimeout: envDur("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       envDur("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      envDur("HTTP_WRITE_TIMEOUT", 45*time.Second),
			IdleTimeout:       envDur("HTTP_IDLE_TIMEOUT", time.Minute),
		},
		Postgres: PostgresConfig{
			DSN:          os.Getenv("POSTGRES_DSN"),
			MaxOpenConns: envInt("POSTGRES_MAX_OPEN_CONNS", 20),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: envStr("KAFKA_AUDIT_TOPIC", "memberhub.audit"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envStr("SMTP_FROM", "no-reply@memberhub.dev"),
			UseTLS:   os.Getenv("SMTP_USE_TLS") == "true",
		},
		GCS: GCSConfig{
			Bucket:                  os.Getenv("GCS_BUCKET"),
			CredentialsFile:         os.Getenv("GCS_CREDENTIALS_FILE"),
			SignedURLAccessID:       os.Getenv("GCS_SIGNED_URL_ACCESS_ID"),
			SignedURLPrivateKeyFile: os.Getenv("GCS_SIGNED_URL_PRIVATE_KEY_FILE"),
		},
		Privacy: PrivacyConfig{
			ConfirmationPhrase:  envStr("PRIVACY_CONFIRMATION_PHRASE", "DELETE MY ACCOUNT"),
			ExportTTL:           envDur("PRIVACY_EXPORT_TTL", 24*time.Hour),
			PipelineTimeout:     envDur("PRIVACY_PIPELINE_TIMEOUT", 5*time.Minute),
			CollaboratorTimeout: envDur("PRIVACY_COLLABORATOR_TIMEOUT", 3*time.Second),
			CollaboratorRetries: envInt("PRIVACY_COLLABORATOR_RETRIES", 3),
			RetryBackoff:        envDur("PRIVACY_RETRY_BACKOFF", 250*time.Millisecond),
			BlacklistTTL:        envDur("PRIVACY_BLACKLIST_TTL", 30*24*time.Hour),
			Workers:             envInt("PRIVACY_WORKERS", 4),
			QueueDepth:          envInt("PRIVACY_QUEUE_DEPTH", 128),
		},
	}
}

func envStr(key, fallback string) string {
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

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(csv string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if s := csv[start:i]; s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	return out
}
