package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures the whole operational surface of the service: transport,
// stores, external collaborators, and the per-worker scheduling knobs.
// FromEnv builds it from environment variables so main stays lean.
type Config struct {
	Addr string

	PostgresDSN string
	Redis       Redis

	Kafka Kafka

	AWSRegion string
	S3Bucket  string

	// Case-management directory.
	DirectoryBaseURL string

	// Checkin lifecycle.
	GracePeriodDays int           // days past due date before a check-in expires
	ReminderDay     int           // day inside the grace window on which to remind
	UploadTTL       time.Duration // presigned upload/download URL lifetime

	// Facial verification.
	FaceSimilarityThreshold float32

	Notify  Notify
	Workers Workers
}

// Redis configures the shared redis client used for the cluster lock.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the domain event output.
type Kafka struct {
	Brokers       []string
	Topic         string
	DetailURLBase string // base for the human-readable callback URL in events
}

// Notify configures the notification delivery provider and channel fan-out.
type Notify struct {
	BaseURL              string
	APIKey               string
	OffenderSMSEnabled   bool
	OffenderEmailEnabled bool
	PractitionerEmail    bool
	RatePerMinute        int
	StatusLookback       time.Duration // how far back reconciliation scans
}

// Workers holds the per-worker schedule and lock hold durations.
type Workers struct {
	CreationInterval  time.Duration
	ExpiryInterval    time.Duration
	ReminderInterval  time.Duration
	ReconcileInterval time.Duration
	LockMinHold       time.Duration // a released lock stays held this long so fast runs don't re-fire
	LockMaxHold       time.Duration // lock TTL; auto-expires if a process dies mid-run
	MaxConcurrent     int           // bounded pool size for the scheduler
}

// FromEnv reads configuration with development defaults.
func FromEnv() Config {
	return Config{
		Addr:        envStr("ESUPERVISION_ADDR", ":8080"),
		PostgresDSN: envStr("POSTGRES_DSN", "postgres://localhost:5432/esupervision?sslmode=disable"),
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			// No default: an empty broker list keeps domain events on the
			// in-process publisher.
			Brokers:       splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:         envStr("KAFKA_TOPIC", "esupervision.domain-events"),
			DetailURLBase: envStr("EVENT_DETAIL_URL_BASE", "http://localhost:8080"),
		},
		AWSRegion:               envStr("AWS_REGION", "eu-west-2"),
		S3Bucket:                envStr("S3_BUCKET", "esupervision-media"),
		DirectoryBaseURL:        envStr("CASE_DIRECTORY_BASE_URL", "http://localhost:8081"),
		GracePeriodDays:         envInt("CHECKIN_GRACE_PERIOD_DAYS", 3),
		ReminderDay:             envInt("CHECKIN_REMINDER_DAY", 1),
		UploadTTL:               envDur("UPLOAD_URL_TTL", 15*time.Minute),
		FaceSimilarityThreshold: float32(envInt("FACE_SIMILARITY_THRESHOLD", 80)),
		Notify: Notify{
			BaseURL:              envStr("NOTIFY_BASE_URL", "https://api.notifications.service.gov.uk"),
			APIKey:               os.Getenv("NOTIFY_API_KEY"),
			OffenderSMSEnabled:   envBool("NOTIFY_OFFENDER_SMS", true),
			OffenderEmailEnabled: envBool("NOTIFY_OFFENDER_EMAIL", true),
			PractitionerEmail:    envBool("NOTIFY_PRACTITIONER_EMAIL", true),
			RatePerMinute:        envInt("NOTIFY_RATE_PER_MINUTE", 3000),
			StatusLookback:       envDur("NOTIFY_STATUS_LOOKBACK", 72*time.Hour),
		},
		Workers: Workers{
			CreationInterval:  envDur("WORKER_CREATION_INTERVAL", time.Hour),
			ExpiryInterval:    envDur("WORKER_EXPIRY_INTERVAL", time.Hour),
			ReminderInterval:  envDur("WORKER_REMINDER_INTERVAL", time.Hour),
			ReconcileInterval: envDur("WORKER_RECONCILE_INTERVAL", 10*time.Minute),
			LockMinHold:       envDur("WORKER_LOCK_MIN_HOLD", time.Minute),
			LockMaxHold:       envDur("WORKER_LOCK_MAX_HOLD", 30*time.Minute),
			MaxConcurrent:     envInt("WORKER_MAX_CONCURRENT", 2),
		},
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitNonEmpty(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
