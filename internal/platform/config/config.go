package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pkgstrings "verifid/pkg/platform/strings"
)

// Config captures everything the server needs from the environment so main
// stays lean. FromEnv is the single source of truth; components never read
// os.Getenv themselves.
type Config struct {
	Addr       string
	AdminToken string

	Recognition RecognitionConfig
	Extraction  ExtractionConfig
	Storage     StorageConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Kafka       KafkaConfig

	Thresholds Thresholds
	Retry      RetryConfig
	Results    ResultsConfig
	Liveness   LivenessConfig
}

// RecognitionConfig locates the face recognition gateway and the collection
// faces are indexed into.
type RecognitionConfig struct {
	BaseURL      string
	CollectionID string
	APIKey       string
	Timeout      time.Duration
}

// ExtractionConfig locates the text extraction gateway used to cross-check
// document numbers. An empty BaseURL disables the cross-check.
type ExtractionConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MinConfidence float64
}

// StorageConfig describes the two logical buckets: long-retained documents
// and short-retained subject photos.
type StorageConfig struct {
	Endpoint            string
	AccessKey           string
	SecretKey           string
	UseSSL              bool
	Region              string
	DocumentsBucket     string
	SubjectPhotosBucket string
	PresignExpiry       time.Duration
}

type PostgresConfig struct {
	DSN string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig drives the subject-photo upload event consumer. An empty
// Brokers list disables the consumer; the HTTP path still works.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Group   string
}

// Thresholds is the single source of truth for every confidence cutoff.
// The original deployment showed several inconsistent values across handler
// variants; here they are configuration, validated for monotonicity.
type Thresholds struct {
	// ConfirmBar and below classify the best similarity into tiers.
	ConfirmBar  float64
	PossibleBar float64
	LowBar      float64

	// SearchFloor is the low bar for index search candidates (hybrid mode).
	SearchFloor float64

	// MaxCandidates caps hybrid candidate search results.
	MaxCandidates int

	// LivenessFloor gates liveness session confidence, distinct from the
	// match-confidence tiers above.
	LivenessFloor float64
}

// Validate enforces that tier boundaries are monotonic and contiguous.
func (t Thresholds) Validate() error {
	if t.ConfirmBar <= t.PossibleBar || t.PossibleBar <= t.LowBar || t.LowBar <= 0 {
		return fmt.Errorf("thresholds must satisfy 0 < low (%v) < possible (%v) < confirm (%v)",
			t.LowBar, t.PossibleBar, t.ConfirmBar)
	}
	if t.ConfirmBar > 100 || t.LivenessFloor > 100 {
		return fmt.Errorf("thresholds are percentages and cannot exceed 100")
	}
	if t.MaxCandidates < 1 {
		return fmt.Errorf("max candidates must be at least 1")
	}
	return nil
}

type RetryConfig struct {
	MaxAttempts int
	CounterTTL  time.Duration
}

// ResultsConfig controls comparison result retention.
type ResultsConfig struct {
	TTL time.Duration
}

type LivenessConfig struct {
	SessionTokenKey    string
	SessionTokenExpiry time.Duration
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Addr:       getEnv("VERIFID_ADDR", ":8080"),
		AdminToken: os.Getenv("VERIFID_ADMIN_TOKEN"),
		Recognition: RecognitionConfig{
			BaseURL:      getEnv("RECOGNITION_URL", "http://localhost:9090"),
			CollectionID: getEnv("RECOGNITION_COLLECTION_ID", "identity-documents"),
			APIKey:       os.Getenv("RECOGNITION_API_KEY"),
			Timeout:      getDuration("RECOGNITION_TIMEOUT", 15*time.Second),
		},
		Extraction: ExtractionConfig{
			BaseURL:       os.Getenv("EXTRACTION_URL"),
			APIKey:        os.Getenv("EXTRACTION_API_KEY"),
			Timeout:       getDuration("EXTRACTION_TIMEOUT", 15*time.Second),
			MinConfidence: getFloat("EXTRACTION_MIN_CONFIDENCE", 80),
		},
		Storage: StorageConfig{
			Endpoint:            getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKey:           os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey:           os.Getenv("STORAGE_SECRET_KEY"),
			UseSSL:              os.Getenv("STORAGE_USE_SSL") == "true",
			Region:              getEnv("STORAGE_REGION", "us-east-1"),
			DocumentsBucket:     getEnv("DOCUMENTS_BUCKET", "documents"),
			SubjectPhotosBucket: getEnv("SUBJECT_PHOTOS_BUCKET", "subject-photos"),
			PresignExpiry:       getDuration("STORAGE_PRESIGN_EXPIRY", 15*time.Minute),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_UPLOADS_TOPIC", "subject-photo-uploads"),
			Group:   getEnv("KAFKA_CONSUMER_GROUP", "verifid-validator"),
		},
		Thresholds: Thresholds{
			ConfirmBar:    getFloat("THRESHOLD_CONFIRM", 90),
			PossibleBar:   getFloat("THRESHOLD_POSSIBLE", 80),
			LowBar:        getFloat("THRESHOLD_LOW", 70),
			SearchFloor:   getFloat("THRESHOLD_SEARCH_FLOOR", 75),
			MaxCandidates: getInt("SEARCH_MAX_CANDIDATES", 5),
			LivenessFloor: getFloat("THRESHOLD_LIVENESS", 90),
		},
		Retry: RetryConfig{
			MaxAttempts: getInt("MAX_ATTEMPTS", 5),
			CounterTTL:  getDuration("ATTEMPT_COUNTER_TTL", 24*time.Hour),
		},
		Results: ResultsConfig{
			TTL: getDuration("RESULTS_TTL", 365*24*time.Hour),
		},
		Liveness: LivenessConfig{
			SessionTokenKey:    getEnv("LIVENESS_TOKEN_KEY", "dev-secret-key-change-in-production"),
			SessionTokenExpiry: getDuration("LIVENESS_TOKEN_EXPIRY", 30*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	out := pkgstrings.DedupeAndTrim(strings.Split(s, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
