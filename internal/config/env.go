package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/markdave123-py/pagetext/internal/core"
)

// Config holds every setting of the CLI and the service. Values come from the
// environment (and an optional .env file); CLI flags override them afterwards.
type Config struct {
	// Service
	DatabaseURL string
	SslCertPath string
	Port        string
	JWTSecret   string
	Workers     int

	// Object storage
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	// Models
	AIAPIKey     string
	ExtractModel string
	EmbedModel   string
	EmbedDim     int
	GenModel     string

	// Extraction
	Backend           string // gemini | local
	Language          string
	PagesPerChunk     int
	Concurrency       int
	Pacing            time.Duration
	MaxAttempts       int
	RateLimitWait     time.Duration
	TransportWait     time.Duration
	FallbackPages     int
	RequestsPerMinute int
	RequestTimeout    time.Duration

	// Passage indexing
	PassageTokens int
	OverlapTokens int
	EmbedBatch    int

	LogLevel  string
	LogFormat string
}

const (
	BackendGemini = "gemini"
	BackendLocal  = "local"
)

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		Workers:     getEnvInt("INGEST_WORKERS", 2),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),

		AIAPIKey:     getEnv("GEMINI_API_KEY", ""),
		ExtractModel: getEnv("EXTRACT_MODEL", "gemini-2.5-flash"),
		EmbedModel:   getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:     getEnvInt("EMBED_DIM", 768),
		GenModel:     getEnv("GEN_MODEL", "gemini-2.5-flash"),

		Backend:           strings.ToLower(getEnv("EXTRACT_BACKEND", BackendGemini)),
		Language:          getEnv("EXTRACT_LANGUAGE", "Arabic"),
		PagesPerChunk:     getEnvInt("PAGES_PER_CHUNK", 5),
		Concurrency:       getEnvInt("EXTRACT_CONCURRENCY", 2),
		Pacing:            getEnvDuration("EXTRACT_PACING", 6*time.Second),
		MaxAttempts:       getEnvInt("EXTRACT_MAX_ATTEMPTS", 4),
		RateLimitWait:     getEnvDuration("RATE_LIMIT_WAIT", 30*time.Second),
		TransportWait:     getEnvDuration("TRANSPORT_WAIT", 2*time.Second),
		FallbackPages:     getEnvInt("FALLBACK_PAGES", 30),
		RequestsPerMinute: getEnvInt("REQUESTS_PER_MINUTE", 0),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 120*time.Second),

		PassageTokens: getEnvInt("PASSAGE_TOKENS", 400),
		OverlapTokens: getEnvInt("PASSAGE_OVERLAP_TOKENS", 50),
		EmbedBatch:    getEnvInt("EMBED_BATCH", 32),

		LogLevel:  getEnv("LOG_LEVEL", "INFO"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate checks the extraction settings shared by the CLI and the service.
func (c *Config) Validate() error {
	var errs []error
	if c.PagesPerChunk < 1 {
		errs = append(errs, fmt.Errorf("PAGES_PER_CHUNK must be >= 1, got %d", c.PagesPerChunk))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("EXTRACT_CONCURRENCY must be >= 1, got %d", c.Concurrency))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("EXTRACT_MAX_ATTEMPTS must be >= 1, got %d", c.MaxAttempts))
	}
	if c.Pacing < 0 || c.RateLimitWait < 0 || c.TransportWait < 0 {
		errs = append(errs, errors.New("pacing and wait durations must be >= 0"))
	}
	if c.FallbackPages < 1 {
		errs = append(errs, fmt.Errorf("FALLBACK_PAGES must be >= 1, got %d", c.FallbackPages))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("REQUESTS_PER_MINUTE must be >= 0, got %d", c.RequestsPerMinute))
	}
	switch c.Backend {
	case BackendGemini:
		if c.AIAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY not set (or pass --api-key)"))
		}
	case BackendLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown extraction backend %q (want %s or %s)", c.Backend, BackendGemini, BackendLocal))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateService checks what `serve` needs on top of Validate.
func (c *Config) ValidateService() error {
	if err := c.Validate(); err != nil {
		return err
	}
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	if c.BucketName == "" {
		errs = append(errs, errors.New("BUCKET_NAME not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET not set"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("INGEST_WORKERS must be >= 1, got %d", c.Workers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

// getEnvDuration accepts Go durations ("6s", "1m30s") or bare seconds ("6").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
	return def
}
